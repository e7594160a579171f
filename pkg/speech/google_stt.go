package speech

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"time"

	speechapi "google.golang.org/api/speech/v1"
)

const (
	// DefaultLanguage is the recognition language when none is configured.
	DefaultLanguage = "en-US"

	// DefaultRecognizeTimeout bounds a single recognition request.
	DefaultRecognizeTimeout = 30 * time.Second
)

// GoogleRecognizer transcribes audio with the Google Cloud Speech API.
type GoogleRecognizer struct {
	svc      *speechapi.Service
	language string
	timeout  time.Duration
	logger   *slog.Logger
}

// RecognizerOption configures a GoogleRecognizer.
type RecognizerOption func(*GoogleRecognizer)

// WithRecognizerLanguage sets the recognition language code, e.g. "en-US".
func WithRecognizerLanguage(lang string) RecognizerOption {
	return func(r *GoogleRecognizer) {
		if lang != "" {
			r.language = lang
		}
	}
}

// WithRecognizerTimeout bounds each recognition request.
func WithRecognizerTimeout(d time.Duration) RecognizerOption {
	return func(r *GoogleRecognizer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRecognizerLogger sets the logger.
func WithRecognizerLogger(logger *slog.Logger) RecognizerOption {
	return func(r *GoogleRecognizer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewGoogleRecognizer creates a recognizer backed by the Cloud Speech
// REST API. Credentials come from GOOGLE_APPLICATION_CREDENTIALS when
// set, otherwise application default credentials.
func NewGoogleRecognizer(ctx context.Context, opts ...RecognizerOption) (*GoogleRecognizer, error) {
	r := &GoogleRecognizer{
		language: DefaultLanguage,
		timeout:  DefaultRecognizeTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	copts, err := googleClientOptions(ctx, speechapi.CloudPlatformScope)
	if err != nil {
		return nil, WrapError("google-stt", err)
	}

	svc, err := speechapi.NewService(ctx, copts...)
	if err != nil {
		return nil, WrapError("google-stt", err)
	}
	r.svc = svc

	r.logger.Info("Speech recognizer ready", "language", r.language)
	return r, nil
}

// Recognize transcribes a single utterance of LINEAR16 mono PCM.
func (r *GoogleRecognizer) Recognize(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	if len(pcm) == 0 {
		return "", WrapError("google-stt", ErrNoAudio)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req := &speechapi.RecognizeRequest{
		Audio: &speechapi.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(pcm),
		},
		Config: &speechapi.RecognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: int64(sampleRate),
			LanguageCode:    r.language,
		},
	}

	start := time.Now()
	resp, err := r.svc.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		return "", WrapError("google-stt", err)
	}

	transcript := joinTranscripts(resp)
	if transcript == "" {
		return "", WrapError("google-stt", ErrNoSpeech)
	}

	r.logger.Debug("Recognized speech",
		"transcript", transcript,
		"latency_ms", time.Since(start).Milliseconds())
	return transcript, nil
}

// Close releases the recognizer. The REST client holds no connection
// state, so this is a no-op kept for interface symmetry.
func (r *GoogleRecognizer) Close() error {
	return nil
}

// joinTranscripts concatenates the top alternative of each result. Long
// audio comes back as multiple results.
func joinTranscripts(resp *speechapi.RecognizeResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, res := range resp.Results {
		if res == nil || len(res.Alternatives) == 0 {
			continue
		}
		t := strings.TrimSpace(res.Alternatives[0].Transcript)
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t)
	}
	return b.String()
}

// Verify GoogleRecognizer implements Recognizer at compile time.
var _ Recognizer = (*GoogleRecognizer)(nil)
