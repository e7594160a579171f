package speech

import (
	"context"
	"sync"
	"time"
)

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Text   string
	Time   time.Time
}

// MockRecognizer implements Recognizer for testing.
// All methods can be customized via function fields.
type MockRecognizer struct {
	// RecognizeFunc is called when Recognize is invoked.
	// If nil, returns ErrNoSpeech.
	RecognizeFunc func(ctx context.Context, pcm []byte, sampleRate int) (string, error)

	// CloseFunc is called when Close is invoked.
	// If nil, returns nil.
	CloseFunc func() error

	mu    sync.Mutex
	calls []MockCall
}

// NewMockRecognizer creates a mock that returns the given transcripts
// in order, repeating the last one once exhausted.
func NewMockRecognizer(transcripts ...string) *MockRecognizer {
	m := &MockRecognizer{}
	if len(transcripts) > 0 {
		var i int
		var mu sync.Mutex
		m.RecognizeFunc = func(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			t := transcripts[i]
			if i < len(transcripts)-1 {
				i++
			}
			return t, nil
		}
	}
	return m
}

// Recognize calls RecognizeFunc and records the call.
func (m *MockRecognizer) Recognize(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	m.record("Recognize", "")
	if m.RecognizeFunc != nil {
		return m.RecognizeFunc(ctx, pcm, sampleRate)
	}
	return "", WrapError("mock", ErrNoSpeech)
}

// Close calls CloseFunc and records the call.
func (m *MockRecognizer) Close() error {
	m.record("Close", "")
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockRecognizer) record(method, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Text: text, Time: time.Now()})
}

// CallCount returns the number of times a method was called.
func (m *MockRecognizer) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// MockSpeaker implements Speaker for testing.
type MockSpeaker struct {
	// SpeakFunc is called when Speak is invoked.
	// If nil, the text is recorded and the call succeeds.
	SpeakFunc func(ctx context.Context, text string) error

	// CloseFunc is called when Close is invoked.
	// If nil, returns nil.
	CloseFunc func() error

	mu    sync.Mutex
	calls []MockCall
}

// NewMockSpeaker creates a mock speaker that records spoken text.
func NewMockSpeaker() *MockSpeaker {
	return &MockSpeaker{}
}

// Speak calls SpeakFunc and records the call.
func (m *MockSpeaker) Speak(ctx context.Context, text string) error {
	m.record("Speak", text)
	if m.SpeakFunc != nil {
		return m.SpeakFunc(ctx, text)
	}
	return nil
}

// Close calls CloseFunc and records the call.
func (m *MockSpeaker) Close() error {
	m.record("Close", "")
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockSpeaker) record(method, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Text: text, Time: time.Now()})
}

// Spoken returns the text of every Speak call in order.
func (m *MockSpeaker) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if c.Method == "Speak" {
			out = append(out, c.Text)
		}
	}
	return out
}

// CallCount returns the number of times a method was called.
func (m *MockSpeaker) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// LastSpoken returns the most recent Speak text, or "".
func (m *MockSpeaker) LastSpoken() string {
	spoken := m.Spoken()
	if len(spoken) == 0 {
		return ""
	}
	return spoken[len(spoken)-1]
}

// Verify mocks implement their interfaces at compile time.
var (
	_ Recognizer = (*MockRecognizer)(nil)
	_ Speaker    = (*MockSpeaker)(nil)
)
