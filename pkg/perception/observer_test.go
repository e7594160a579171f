package perception

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
)

func publishFrame(t *testing.T, lb *bridge.Loopback, topics *bridge.Topics, payload string) {
	t.Helper()
	msg := bridge.CompressedImage{
		Format: "jpeg",
		Data:   base64.StdEncoding.EncodeToString([]byte(payload)),
	}
	if err := lb.Publish(topics.CameraImage(), msg); err != nil {
		t.Fatalf("Publish frame failed: %v", err)
	}
}

func waitStats(t *testing.T, o *Observer, ok func(Stats) bool) Stats {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := o.Stats(); ok(s) {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for observer stats, have %+v", o.Stats())
	return Stats{}
}

func TestObserverPipeline(t *testing.T) {
	lb := bridge.NewLoopback()
	defer lb.Close()
	topics := bridge.NewTopics("")

	det := NewMockDetector()
	notified := make(chan []Detection, 4)
	o := NewObserver(det, lb, topics, nil,
		WithDetectionNotify(func(d []Detection) { notified <- d }))

	if err := o.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	publishFrame(t, lb, topics, "fake jpeg bytes")

	select {
	case dets := <-notified:
		if len(dets) != 1 || dets[0].ClassName != "person" {
			t.Errorf("Expected one person detection, got %v", dets)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for detection notify")
	}

	dets, at := o.Latest()
	if len(dets) != 1 || at.IsZero() {
		t.Errorf("Expected stored latest detections, got %v at %v", dets, at)
	}
	if _, ok := o.BestPerson(); !ok {
		t.Error("Expected a fresh person detection")
	}
	if got := o.Summary(); got != "I can see a person." {
		t.Errorf("Unexpected summary: %q", got)
	}

	s := o.Stats()
	if s.FramesReceived < 1 || s.Inferences < 1 {
		t.Errorf("Expected counters advanced, got %+v", s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := o.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if got := det.CallCount("Close"); got != 1 {
		t.Errorf("Expected detector closed once, got %d", got)
	}
	if err := o.Shutdown(ctx); err != nil {
		t.Fatalf("Second Shutdown failed: %v", err)
	}
	if got := det.CallCount("Close"); got != 1 {
		t.Errorf("Expected idempotent shutdown, detector closed %d times", got)
	}
}

func TestObserverThrottle(t *testing.T) {
	lb := bridge.NewLoopback()
	defer lb.Close()
	topics := bridge.NewTopics("")

	det := NewMockDetector()
	o := NewObserver(det, lb, topics, nil, WithInterval(time.Minute))
	if err := o.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	}()

	publishFrame(t, lb, topics, "frame one")
	waitStats(t, o, func(s Stats) bool { return s.Inferences == 1 })

	// Within the interval the next frame is dropped without inference.
	publishFrame(t, lb, topics, "frame two")
	s := waitStats(t, o, func(s Stats) bool { return s.FramesDropped >= 1 })
	if s.Inferences != 1 {
		t.Errorf("Expected throttled frame to skip inference, got %+v", s)
	}
}

func TestObserverBadPayloads(t *testing.T) {
	lb := bridge.NewLoopback()
	defer lb.Close()
	topics := bridge.NewTopics("")

	det := NewMockDetector()
	o := NewObserver(det, lb, topics, nil)
	if err := o.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	}()

	// Not base64: dropped before it reaches the detector.
	if err := lb.Publish(topics.CameraImage(), bridge.CompressedImage{Format: "jpeg", Data: "!!! not base64 !!!"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := det.CallCount("Detect"); got != 0 {
		t.Errorf("Expected bad frame dropped, detector ran %d times", got)
	}

	// A valid frame still flows.
	publishFrame(t, lb, topics, "good frame")
	waitStats(t, o, func(s Stats) bool { return s.Inferences == 1 })
}

func TestObserverDetectorFailure(t *testing.T) {
	lb := bridge.NewLoopback()
	defer lb.Close()
	topics := bridge.NewTopics("")

	det := NewMockDetector()
	det.DetectFunc = func(jpeg []byte) ([]Detection, error) {
		return nil, errors.New("inference backend down")
	}
	o := NewObserver(det, lb, topics, nil)
	if err := o.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	}()

	publishFrame(t, lb, topics, "frame")
	s := waitStats(t, o, func(s Stats) bool { return s.Failures >= 1 })
	if s.Inferences != 0 {
		t.Errorf("Expected no successful inference, got %+v", s)
	}
	if dets, _ := o.Latest(); len(dets) != 0 {
		t.Errorf("Expected no stored detections, got %v", dets)
	}
}

func TestObserverStaleness(t *testing.T) {
	det := NewMockDetector()
	o := NewObserver(det, nil, nil, nil)

	o.mu.Lock()
	o.latest = []Detection{{ClassName: "person", Confidence: 0.9}}
	o.latestAt = time.Now().Add(-3 * time.Second)
	o.mu.Unlock()

	if got := o.Fresh(); got != nil {
		t.Errorf("Expected stale detections hidden, got %v", got)
	}
	if _, ok := o.BestPerson(); ok {
		t.Error("Expected no person from stale detections")
	}
	if got := o.Summary(); got != "I don't see anything right now." {
		t.Errorf("Expected empty summary for stale data, got %q", got)
	}
}
