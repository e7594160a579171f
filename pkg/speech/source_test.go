package speech

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
)

// fakeDecoder treats the wire frame as raw PCM16 so tests control the
// decoded samples exactly.
type fakeDecoder struct {
	fail bool
}

func (d *fakeDecoder) Decode(data []byte, pcm []int16) (int, error) {
	if d.fail {
		return 0, errors.New("decode failure")
	}
	samples := BytesToSamples(data)
	return copy(pcm, samples), nil
}

type utterance struct {
	pcm  []int16
	rate int
}

func tone(amp int16, n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = amp
	}
	return samples
}

func publishAudio(t *testing.T, lb *bridge.Loopback, topics *bridge.Topics, samples []int16) {
	t.Helper()
	msg := bridge.AudioData{
		Data: base64.StdEncoding.EncodeToString(SamplesToBytes(samples)),
	}
	if err := lb.Publish(topics.Audio(), msg); err != nil {
		t.Fatalf("Publish audio failed: %v", err)
	}
}

func waitSourceStats(t *testing.T, s *Source, ok func(SourceStats) bool) SourceStats {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st := s.Stats(); ok(st) {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for source stats, have %+v", s.Stats())
	return SourceStats{}
}

// newTestSource uses a 1 kHz rate so sample counts stay small: frames
// are 100 samples, the 50 ms hangover is 50 samples, and the default
// 300 ms utterance minimum is 300 samples.
func newTestSource(t *testing.T, lb *bridge.Loopback, topics *bridge.Topics, got chan utterance, opts ...SourceOption) *Source {
	t.Helper()
	base := []SourceOption{
		WithSourceSampleRate(1000),
		WithHangover(50 * time.Millisecond),
		WithUtteranceHandler(func(pcm []int16, rate int) {
			got <- utterance{pcm: pcm, rate: rate}
		}),
	}
	src := NewSource(lb, topics, nil, append(base, opts...)...)
	src.dec = &fakeDecoder{}
	return src
}

func TestSourceSegmentsUtterance(t *testing.T) {
	lb := bridge.NewLoopback()
	defer lb.Close()
	topics := bridge.NewTopics("")
	got := make(chan utterance, 2)

	src := newTestSource(t, lb, topics, got)
	if err := src.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	// Four voiced frames then silence long enough to close the segment.
	for i := 0; i < 4; i++ {
		publishAudio(t, lb, topics, tone(10000, 100))
	}
	publishAudio(t, lb, topics, tone(0, 100))

	select {
	case u := <-got:
		if len(u.pcm) != 500 {
			t.Errorf("Expected 500-sample utterance, got %d", len(u.pcm))
		}
		if u.rate != 1000 {
			t.Errorf("Expected sample rate 1000, got %d", u.rate)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for utterance")
	}

	stats := waitSourceStats(t, src, func(s SourceStats) bool { return s.Utterances == 1 })
	if stats.FramesReceived != 5 {
		t.Errorf("Expected 5 frames received, got %d", stats.FramesReceived)
	}
	if stats.DecodeErrors != 0 {
		t.Errorf("Expected no decode errors, got %d", stats.DecodeErrors)
	}
}

func TestSourceDiscardsShortBlip(t *testing.T) {
	lb := bridge.NewLoopback()
	defer lb.Close()
	topics := bridge.NewTopics("")
	got := make(chan utterance, 2)

	src := newTestSource(t, lb, topics, got)
	if err := src.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	// 200 voiced samples is under the 300-sample minimum.
	publishAudio(t, lb, topics, tone(12000, 100))
	publishAudio(t, lb, topics, tone(12000, 100))
	publishAudio(t, lb, topics, tone(0, 100))

	waitSourceStats(t, src, func(s SourceStats) bool { return s.FramesReceived == 3 })
	time.Sleep(50 * time.Millisecond)

	select {
	case u := <-got:
		t.Fatalf("Expected blip to be discarded, got %d-sample utterance", len(u.pcm))
	default:
	}
	if stats := src.Stats(); stats.Utterances != 0 {
		t.Errorf("Expected no utterances, got %d", stats.Utterances)
	}
}

func TestSourceCountsDecodeErrors(t *testing.T) {
	lb := bridge.NewLoopback()
	defer lb.Close()
	topics := bridge.NewTopics("")
	got := make(chan utterance, 2)

	src := newTestSource(t, lb, topics, got)
	src.dec = &fakeDecoder{fail: true}
	if err := src.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	for i := 0; i < 3; i++ {
		publishAudio(t, lb, topics, tone(10000, 100))
	}

	stats := waitSourceStats(t, src, func(s SourceStats) bool { return s.DecodeErrors == 3 })
	if stats.Utterances != 0 {
		t.Errorf("Expected no utterances from failed decodes, got %d", stats.Utterances)
	}
}

func TestSourceRawPCMEncoding(t *testing.T) {
	lb := bridge.NewLoopback()
	defer lb.Close()
	topics := bridge.NewTopics("")
	got := make(chan utterance, 2)

	src := newTestSource(t, lb, topics, got, WithSourceEncoding(SourceEncodingPCM16))
	src.dec = nil // raw mode needs no decoder
	if err := src.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer src.Close()

	for i := 0; i < 4; i++ {
		publishAudio(t, lb, topics, tone(8000, 100))
	}
	publishAudio(t, lb, topics, tone(0, 100))

	select {
	case u := <-got:
		if len(u.pcm) != 500 {
			t.Errorf("Expected 500-sample utterance, got %d", len(u.pcm))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for raw PCM utterance")
	}
}

func TestSourceLifecycle(t *testing.T) {
	lb := bridge.NewLoopback()
	defer lb.Close()
	topics := bridge.NewTopics("")
	got := make(chan utterance, 2)

	src := newTestSource(t, lb, topics, got)
	if err := src.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := src.Start(); err != nil {
		t.Errorf("Second Start should be a no-op, got %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}

	// Unsubscribed: new frames no longer reach the source.
	before := src.Stats().FramesReceived
	publishAudio(t, lb, topics, tone(10000, 100))
	time.Sleep(20 * time.Millisecond)
	if after := src.Stats().FramesReceived; after != before {
		t.Errorf("Expected no frames after Close, got %d new", after-before)
	}
}

func TestSourceRejectsUnknownEncoding(t *testing.T) {
	src := NewSource(nil, nil, nil, WithSourceEncoding("mp3"))
	if err := src.Start(); err == nil {
		t.Fatal("Expected error for unknown encoding")
	}
}
