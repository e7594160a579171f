package speech

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	opus "gopkg.in/hraban/opus.v2"

	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
)

// Audio frame encodings accepted on the microphone topic.
const (
	SourceEncodingOpus  = "opus"
	SourceEncodingPCM16 = "pcm16"
)

// Source segmentation defaults. The threshold is normalized RMS; speech
// over a close microphone sits well above 0.02, room noise below 0.01.
const (
	DefaultSourceSampleRate = 48000
	DefaultSpeechThreshold  = 0.015
	DefaultHangover         = 400 * time.Millisecond
	DefaultMinUtterance     = 300 * time.Millisecond
	DefaultMaxUtterance     = 15 * time.Second
)

// maxOpusFrame is the largest opus frame in samples (120 ms at 48 kHz).
const maxOpusFrame = 5760

// UtteranceHandler receives one segmented utterance of mono PCM.
type UtteranceHandler func(pcm []int16, sampleRate int)

// opusDecoder is the slice of *opus.Decoder the source uses. Tests
// substitute their own.
type opusDecoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

// SourceStats counts source activity for the dashboard.
type SourceStats struct {
	FramesReceived int64 `json:"frames_received"`
	FramesDropped  int64 `json:"frames_dropped"`
	DecodeErrors   int64 `json:"decode_errors"`
	Utterances     int64 `json:"utterances"`
}

// Source turns the microphone topic into discrete utterances. Frames
// are decoded off the bus thread, gated on RMS level, and buffered
// until the speaker pauses; each pause hands one utterance to the
// handler on a dedicated goroutine so a slow recognizer never stalls
// capture.
type Source struct {
	bus      bridge.Bus
	topics   *bridge.Topics
	logger   *slog.Logger
	handler  UtteranceHandler
	encoding string
	rate     int

	threshold    float64
	hangover     time.Duration
	minUtterance time.Duration
	maxUtterance time.Duration

	dec    opusDecoder
	frames chan []byte

	mu      sync.Mutex
	stats   SourceStats
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithSourceEncoding sets the frame encoding on the audio topic.
func WithSourceEncoding(enc string) SourceOption {
	return func(s *Source) {
		if enc != "" {
			s.encoding = enc
		}
	}
}

// WithSourceSampleRate sets the capture sample rate in Hz.
func WithSourceSampleRate(rate int) SourceOption {
	return func(s *Source) {
		if rate > 0 {
			s.rate = rate
		}
	}
}

// WithSpeechThreshold sets the normalized RMS level that counts as
// speech.
func WithSpeechThreshold(level float64) SourceOption {
	return func(s *Source) {
		if level > 0 {
			s.threshold = level
		}
	}
}

// WithHangover sets how much trailing silence ends an utterance.
func WithHangover(d time.Duration) SourceOption {
	return func(s *Source) {
		if d > 0 {
			s.hangover = d
		}
	}
}

// WithUtteranceHandler sets the utterance callback.
func WithUtteranceHandler(fn UtteranceHandler) SourceOption {
	return func(s *Source) { s.handler = fn }
}

// NewSource creates an audio source reading the given bus.
func NewSource(bus bridge.Bus, topics *bridge.Topics, logger *slog.Logger, opts ...SourceOption) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	if topics == nil {
		topics = bridge.NewTopics("")
	}
	s := &Source{
		bus:          bus,
		topics:       topics,
		logger:       logger,
		encoding:     SourceEncodingOpus,
		rate:         DefaultSourceSampleRate,
		threshold:    DefaultSpeechThreshold,
		hangover:     DefaultHangover,
		minUtterance: DefaultMinUtterance,
		maxUtterance: DefaultMaxUtterance,
		frames:       make(chan []byte, 8),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SampleRate returns the capture rate utterances are delivered at.
func (s *Source) SampleRate() int { return s.rate }

// Stats returns a snapshot of the source counters.
func (s *Source) Stats() SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Start subscribes to the audio topic and begins segmenting. Starting a
// running source is a no-op.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	switch s.encoding {
	case SourceEncodingPCM16:
		// Raw frames need no decoder.
	case SourceEncodingOpus:
		if s.dec == nil {
			dec, err := opus.NewDecoder(s.rate, 1)
			if err != nil {
				return WrapError("audio-source", err)
			}
			s.dec = dec
		}
	default:
		return WrapError("audio-source", fmt.Errorf("unknown encoding %q", s.encoding))
	}

	if s.bus != nil {
		if err := s.bus.Subscribe(s.topics.Audio(), s.onAudio); err != nil {
			return fmt.Errorf("subscribe audio: %w", err)
		}
	}

	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	utterances := make(chan []int16, 2)
	go s.segment(s.stop, utterances)
	go s.dispatch(utterances, s.done)

	s.logger.Info("Audio source started",
		"topic", s.topics.Audio(),
		"encoding", s.encoding,
		"sample_rate", s.rate)
	return nil
}

// Close unsubscribes and stops the workers. Closing a stopped source is
// a no-op.
func (s *Source) Close() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done

	if s.bus != nil {
		_ = s.bus.Unsubscribe(s.topics.Audio())
	}
	return nil
}

// onAudio runs on the bus read pump. It decodes the envelope and queues
// the frame; a full queue drops the frame rather than stall the pump.
func (s *Source) onAudio(data []byte) {
	var msg bridge.AudioData
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	payload, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil || len(payload) == 0 {
		return
	}

	s.mu.Lock()
	s.stats.FramesReceived++
	s.mu.Unlock()

	select {
	case s.frames <- payload:
	default:
		s.mu.Lock()
		s.stats.FramesDropped++
		s.mu.Unlock()
	}
}

// segment decodes queued frames and splits them into utterances. It
// owns the segmentation state; closing the utterance channel on exit
// lets dispatch drain and finish.
func (s *Source) segment(stop <-chan struct{}, utterances chan<- []int16) {
	defer close(utterances)

	hangoverSamples := int(float64(s.rate) * s.hangover.Seconds())
	maxSamples := int(float64(s.rate) * s.maxUtterance.Seconds())
	pcmBuf := make([]int16, maxOpusFrame)

	var (
		buf     []int16
		voiced  bool
		silence int
	)

	flush := func() {
		spoken := len(buf) - silence
		if spoken >= int(float64(s.rate)*s.minUtterance.Seconds()) {
			out := make([]int16, len(buf))
			copy(out, buf)
			select {
			case utterances <- out:
				s.mu.Lock()
				s.stats.Utterances++
				s.mu.Unlock()
			default:
				s.logger.Warn("Utterance dropped, recognizer busy",
					"samples", len(out))
			}
		}
		buf, voiced, silence = nil, false, 0
	}

	for {
		select {
		case <-stop:
			return
		case frame := <-s.frames:
			pcm, err := s.decode(frame, pcmBuf)
			if err != nil {
				s.mu.Lock()
				s.stats.DecodeErrors++
				s.mu.Unlock()
				s.logger.Debug("Audio decode failed", "error", err)
				continue
			}
			if len(pcm) == 0 {
				continue
			}

			if RMS(pcm) >= s.threshold {
				voiced = true
				silence = 0
				buf = append(buf, pcm...)
			} else if voiced {
				buf = append(buf, pcm...)
				silence += len(pcm)
				if silence >= hangoverSamples {
					flush()
				}
			}

			if voiced && len(buf) >= maxSamples {
				flush()
			}
		}
	}
}

// decode turns one wire frame into PCM samples. The scratch buffer is
// reused across calls.
func (s *Source) decode(frame []byte, scratch []int16) ([]int16, error) {
	if s.encoding == SourceEncodingPCM16 {
		return BytesToSamples(frame), nil
	}
	n, err := s.dec.Decode(frame, scratch)
	if err != nil {
		return nil, err
	}
	return scratch[:n], nil
}

// dispatch delivers utterances to the handler one at a time, then
// signals done once the queue is drained.
func (s *Source) dispatch(utterances <-chan []int16, done chan<- struct{}) {
	defer close(done)
	for u := range utterances {
		if s.handler == nil {
			continue
		}
		s.handler(u, s.rate)
	}
}
