// Package voice wires the spoken command loop: segmented utterances
// from the microphone topic are transcribed, gated on the wake word,
// and executed as commands. Acknowledgments are spoken by the command
// layer, so the pipeline itself only listens, recognizes, and routes.
//
// The loop is turn-based. Utterances are handled one at a time in
// arrival order; a recognition failure drops that turn and the loop
// keeps listening.
package voice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
	"github.com/asadbey/turtlebot3-automation/pkg/command"
	"github.com/asadbey/turtlebot3-automation/pkg/speech"
)

// Common errors returned by the pipeline.
var (
	ErrNoRecognizer = errors.New("voice: recognizer required")
	ErrNoExecutor   = errors.New("voice: command executor required")
)

// DefaultRecognizeRate is the sample rate utterances are resampled to
// before recognition. Microphone audio usually arrives at 48 kHz;
// recognizing at 16 kHz cuts the payload without hurting accuracy.
const DefaultRecognizeRate = 16000

// Executor runs one utterance as a command and returns its result.
type Executor interface {
	Execute(ctx context.Context, text string) command.Result
}

// Stats counts pipeline activity since start. Latencies are from the
// most recent turn.
type Stats struct {
	Utterances      int    `json:"utterances"`
	Recognized      int    `json:"recognized"`
	Ignored         int    `json:"ignored"`
	Commands        int    `json:"commands"`
	RecognizeErrors int    `json:"recognize_errors"`
	LastTranscript  string `json:"last_transcript,omitempty"`
	ASRLatencyMS    int64  `json:"asr_latency_ms"`
	TurnLatencyMS   int64  `json:"turn_latency_ms"`
}

// Pipeline owns the audio source and drives utterances through
// recognition into the command executor.
type Pipeline struct {
	source     *speech.Source
	sourceOpts []speech.SourceOption
	rec        speech.Recognizer
	exec       Executor
	logger     *slog.Logger
	wakeWord   string
	rate       int

	mu      sync.Mutex
	stats   Stats
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithWakeWord sets the word a transcript must contain to be executed.
// An empty wake word executes every transcript.
func WithWakeWord(word string) PipelineOption {
	return func(p *Pipeline) { p.wakeWord = strings.ToLower(strings.TrimSpace(word)) }
}

// WithRecognizeRate sets the sample rate utterances are resampled to
// before recognition.
func WithRecognizeRate(rate int) PipelineOption {
	return func(p *Pipeline) {
		if rate > 0 {
			p.rate = rate
		}
	}
}

// WithListenOptions forwards options to the underlying audio source.
func WithListenOptions(opts ...speech.SourceOption) PipelineOption {
	return func(p *Pipeline) { p.sourceOpts = append(p.sourceOpts, opts...) }
}

// NewPipeline creates the voice loop reading microphone audio from bus.
// The recognizer and executor may be nil at construction; Init reports
// them missing so the module manager can degrade the suite instead of
// crashing it.
func NewPipeline(bus bridge.Bus, topics *bridge.Topics, rec speech.Recognizer, exec Executor, logger *slog.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		rec:      rec,
		exec:     exec,
		logger:   logger,
		wakeWord: "turtlebot",
		rate:     DefaultRecognizeRate,
	}
	for _, opt := range opts {
		opt(p)
	}

	sourceOpts := append(p.sourceOpts, speech.WithUtteranceHandler(p.handleUtterance))
	p.source = speech.NewSource(bus, topics, logger, sourceOpts...)
	return p
}

// Name implements the automation module interface.
func (p *Pipeline) Name() string { return "voice" }

// Init verifies the pipeline has a recognizer and an executor.
func (p *Pipeline) Init(ctx context.Context) error {
	if p.rec == nil {
		return ErrNoRecognizer
	}
	if p.exec == nil {
		return ErrNoExecutor
	}
	return nil
}

// Start begins listening. Utterances are handled serially in arrival
// order until Shutdown.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	p.runCtx, p.cancel = context.WithCancel(context.Background())
	p.running = true

	if err := p.source.Start(); err != nil {
		p.cancel()
		p.running = false
		return err
	}
	p.logger.Info("voice pipeline listening", "wake_word", p.wakeWord)
	return nil
}

// Shutdown cancels any in-flight recognition and stops the source,
// bounded by ctx.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()

	closed := make(chan error, 1)
	go func() { closed <- p.source.Close() }()
	select {
	case err := <-closed:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// SourceStats returns counters from the underlying audio source.
func (p *Pipeline) SourceStats() speech.SourceStats {
	return p.source.Stats()
}

// handleUtterance runs one turn: recognize, gate, execute. It is called
// from the source's dispatch goroutine, so turns never overlap.
func (p *Pipeline) handleUtterance(pcm []int16, sampleRate int) {
	p.mu.Lock()
	ctx := p.runCtx
	running := p.running
	p.stats.Utterances++
	p.mu.Unlock()
	if !running {
		return
	}

	if p.rate > 0 && sampleRate != p.rate {
		pcm = speech.Resample(pcm, sampleRate, p.rate)
		sampleRate = p.rate
	}

	start := time.Now()
	text, err := p.rec.Recognize(ctx, speech.SamplesToBytes(pcm), sampleRate)
	if err != nil {
		if errors.Is(err, speech.ErrNoSpeech) {
			p.logger.Debug("utterance had no recognizable speech")
			return
		}
		p.mu.Lock()
		p.stats.RecognizeErrors++
		p.mu.Unlock()
		p.logger.Warn("speech recognition failed", "error", err)
		return
	}

	p.mu.Lock()
	p.stats.Recognized++
	p.stats.LastTranscript = text
	p.stats.ASRLatencyMS = time.Since(start).Milliseconds()
	p.mu.Unlock()

	if p.wakeWord != "" && !strings.Contains(strings.ToLower(text), p.wakeWord) {
		p.mu.Lock()
		p.stats.Ignored++
		p.mu.Unlock()
		p.logger.Debug("transcript ignored without wake word", "text", text)
		return
	}

	res := p.exec.Execute(ctx, text)

	p.mu.Lock()
	p.stats.Commands++
	p.stats.TurnLatencyMS = time.Since(start).Milliseconds()
	p.mu.Unlock()
	p.logger.Info("voice command handled", "intent", res.Intent, "text", text)
}
