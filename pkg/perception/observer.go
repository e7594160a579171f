package perception

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
)

// DefaultInferenceInterval bounds how often frames reach the detector.
const DefaultInferenceInterval = 200 * time.Millisecond

// StaleAfter is how long a detection result stays usable. Summaries and
// person lookups ignore anything older.
const StaleAfter = 2 * time.Second

// Stats counts the observer's frame handling.
type Stats struct {
	FramesReceived int64   `json:"frames_received"`
	FramesDropped  int64   `json:"frames_dropped"`
	Inferences     int64   `json:"inferences"`
	Failures       int64   `json:"failures"`
	LastLatencyMS  float64 `json:"last_latency_ms"`
}

// Observer subscribes to the compressed camera stream, runs the
// detector at a bounded rate, and keeps the newest result. Frames that
// arrive while one is already pending are dropped; the camera is always
// ahead of the model.
type Observer struct {
	det      Detector
	bus      bridge.Bus
	topics   *bridge.Topics
	logger   *slog.Logger
	interval time.Duration
	notify   func([]Detection)

	frames chan []byte

	mu       sync.Mutex
	latest   []Detection
	latestAt time.Time
	lastRun  time.Time
	stats    Stats
	running  bool
	stop     chan struct{}
	done     chan struct{}
}

// ObserverOption configures an Observer.
type ObserverOption func(*Observer)

// WithInterval sets the minimum time between inference runs.
func WithInterval(d time.Duration) ObserverOption {
	return func(o *Observer) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithDetectionNotify registers a callback fired after every successful
// inference.
func WithDetectionNotify(fn func([]Detection)) ObserverOption {
	return func(o *Observer) { o.notify = fn }
}

// NewObserver builds an observer around a detector. The observer owns
// the detector and closes it on shutdown.
func NewObserver(det Detector, bus bridge.Bus, topics *bridge.Topics, logger *slog.Logger, opts ...ObserverOption) *Observer {
	if topics == nil {
		topics = bridge.NewTopics("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Observer{
		det:      det,
		bus:      bus,
		topics:   topics,
		logger:   logger,
		interval: DefaultInferenceInterval,
		frames:   make(chan []byte, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name implements the automation module interface.
func (o *Observer) Name() string { return "perception" }

// Init subscribes to the camera topic.
func (o *Observer) Init(ctx context.Context) error {
	if o.bus == nil {
		return nil
	}
	if err := o.bus.Subscribe(o.topics.CameraImage(), o.onFrame); err != nil {
		return fmt.Errorf("subscribe camera: %w", err)
	}
	return nil
}

// Start launches the inference loop.
func (o *Observer) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return nil
	}
	o.running = true
	o.stop = make(chan struct{})
	o.done = make(chan struct{})
	go o.run(o.stop, o.done)
	return nil
}

// Shutdown stops the loop, unsubscribes, and closes the detector.
func (o *Observer) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = false
	stop := o.stop
	done := o.done
	o.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if o.bus != nil {
		_ = o.bus.Unsubscribe(o.topics.CameraImage())
	}
	return o.det.Close()
}

// Latest returns the newest detections and when they were produced.
func (o *Observer) Latest() ([]Detection, time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Detection, len(o.latest))
	copy(out, o.latest)
	return out, o.latestAt
}

// Fresh returns the newest detections if they are recent enough to act
// on, or nil.
func (o *Observer) Fresh() []Detection {
	dets, at := o.Latest()
	if time.Since(at) > StaleAfter {
		return nil
	}
	return dets
}

// BestPerson returns the strongest fresh person detection.
func (o *Observer) BestPerson() (Detection, bool) {
	people := FilterClass(o.Fresh(), "person")
	best := SelectBest(people)
	if best == nil {
		return Detection{}, false
	}
	return *best, true
}

// Summary describes the fresh detections in a sentence.
func (o *Observer) Summary() string {
	return Summarize(o.Fresh())
}

// Stats returns frame handling counters.
func (o *Observer) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// onFrame decodes a sensor_msgs/CompressedImage and queues the newest
// frame, replacing any frame still waiting.
func (o *Observer) onFrame(data []byte) {
	var msg bridge.CompressedImage
	if err := json.Unmarshal(data, &msg); err != nil {
		o.logger.Warn("malformed camera message", "error", err)
		return
	}
	jpeg, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		o.logger.Warn("bad camera frame encoding", "error", err)
		return
	}

	o.mu.Lock()
	o.stats.FramesReceived++
	o.mu.Unlock()

	for {
		select {
		case o.frames <- jpeg:
			return
		default:
		}
		select {
		case <-o.frames:
			o.mu.Lock()
			o.stats.FramesDropped++
			o.mu.Unlock()
		default:
		}
	}
}

func (o *Observer) run(stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case frame := <-o.frames:
			o.mu.Lock()
			throttled := !o.lastRun.IsZero() && time.Since(o.lastRun) < o.interval
			if throttled {
				o.stats.FramesDropped++
			} else {
				o.lastRun = time.Now()
			}
			o.mu.Unlock()
			if throttled {
				continue
			}
			o.infer(frame)
		}
	}
}

func (o *Observer) infer(frame []byte) {
	start := time.Now()
	dets, err := o.det.Detect(frame)
	latency := time.Since(start)

	o.mu.Lock()
	if err != nil {
		o.stats.Failures++
		o.mu.Unlock()
		o.logger.Warn("detection failed", "error", err)
		return
	}
	o.stats.Inferences++
	o.stats.LastLatencyMS = float64(latency.Microseconds()) / 1000
	o.latest = dets
	o.latestAt = time.Now()
	notify := o.notify
	o.mu.Unlock()

	if len(dets) > 0 {
		o.logger.Debug("objects detected", "count", len(dets), "latency", latency)
	}
	if notify != nil {
		notify(dets)
	}
}
