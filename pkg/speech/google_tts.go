package speech

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"log/slog"
	"strings"
	"time"

	texttospeech "google.golang.org/api/texttospeech/v1"
)

const (
	// DefaultVoice is the synthesis voice when none is configured.
	DefaultVoice = "en-US-Neural2-C"

	// DefaultSpeakSampleRate is the synthesis output rate in Hz.
	DefaultSpeakSampleRate = 24000

	// DefaultSpeakTimeout bounds a single synthesis request.
	DefaultSpeakTimeout = 30 * time.Second
)

// GoogleSpeaker synthesizes speech with the Google Cloud
// Text-to-Speech API and hands the PCM to a Sink.
type GoogleSpeaker struct {
	svc        *texttospeech.Service
	voice      string
	language   string
	sampleRate int
	sink       Sink
	timeout    time.Duration
	logger     *slog.Logger
}

// SpeakerOption configures a GoogleSpeaker.
type SpeakerOption func(*GoogleSpeaker)

// WithVoice sets the synthesis voice name, e.g. "en-US-Neural2-C".
func WithVoice(name string) SpeakerOption {
	return func(s *GoogleSpeaker) {
		if name != "" {
			s.voice = name
		}
	}
}

// WithSpeakerLanguage sets the synthesis language code.
func WithSpeakerLanguage(lang string) SpeakerOption {
	return func(s *GoogleSpeaker) {
		if lang != "" {
			s.language = lang
		}
	}
}

// WithSpeakerSampleRate sets the synthesis output rate in Hz.
func WithSpeakerSampleRate(rate int) SpeakerOption {
	return func(s *GoogleSpeaker) {
		if rate > 0 {
			s.sampleRate = rate
		}
	}
}

// WithSink sets where synthesized audio is delivered.
func WithSink(sink Sink) SpeakerOption {
	return func(s *GoogleSpeaker) {
		s.sink = sink
	}
}

// WithSpeakerTimeout bounds each synthesis request.
func WithSpeakerTimeout(d time.Duration) SpeakerOption {
	return func(s *GoogleSpeaker) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSpeakerLogger sets the logger.
func WithSpeakerLogger(logger *slog.Logger) SpeakerOption {
	return func(s *GoogleSpeaker) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewGoogleSpeaker creates a speaker backed by the Cloud Text-to-Speech
// REST API. Credentials come from GOOGLE_APPLICATION_CREDENTIALS when
// set, otherwise application default credentials.
func NewGoogleSpeaker(ctx context.Context, opts ...SpeakerOption) (*GoogleSpeaker, error) {
	s := &GoogleSpeaker{
		voice:      DefaultVoice,
		language:   DefaultLanguage,
		sampleRate: DefaultSpeakSampleRate,
		timeout:    DefaultSpeakTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	copts, err := googleClientOptions(ctx, texttospeech.CloudPlatformScope)
	if err != nil {
		return nil, WrapError("google-tts", err)
	}

	svc, err := texttospeech.NewService(ctx, copts...)
	if err != nil {
		return nil, WrapError("google-tts", err)
	}
	s.svc = svc

	s.logger.Info("Speech synthesizer ready", "voice", s.voice, "sample_rate", s.sampleRate)
	return s, nil
}

// Speak synthesizes text and delivers the PCM to the sink. Empty text
// is a no-op.
func (s *GoogleSpeaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if s.sink == nil {
		return WrapError("google-tts", ErrNoSink)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: s.language,
			Name:         s.voice,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: int64(s.sampleRate),
		},
	}

	start := time.Now()
	resp, err := s.svc.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return WrapError("google-tts", err)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return WrapError("google-tts", err)
	}
	pcm := pcmFromWAV(audio)

	s.logger.Debug("Synthesized speech",
		"chars", len(text),
		"bytes", len(pcm),
		"latency_ms", time.Since(start).Milliseconds())

	if err := s.sink(pcm, s.sampleRate); err != nil {
		return WrapError("google-tts", err)
	}
	return nil
}

// Close releases the speaker. The REST client holds no connection
// state, so this is a no-op kept for interface symmetry.
func (s *GoogleSpeaker) Close() error {
	return nil
}

// pcmFromWAV strips the RIFF container that LINEAR16 responses arrive
// in, returning the raw samples from the data chunk. Input that is not
// a WAV file passes through unchanged.
func pcmFromWAV(data []byte) []byte {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return data
	}
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += 8
		if id == "data" {
			end := off + size
			if end > len(data) {
				end = len(data)
			}
			return data[off:end]
		}
		off += size
		if size%2 == 1 {
			off++
		}
	}
	return nil
}

// Verify GoogleSpeaker implements Speaker at compile time.
var _ Speaker = (*GoogleSpeaker)(nil)
