package perception

import (
	"sync"
	"time"
)

// MockDetector implements Detector for testing.
type MockDetector struct {
	// DetectFunc is called when Detect is invoked.
	DetectFunc func(jpeg []byte) ([]Detection, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Time   time.Time
}

// NewMockDetector creates a mock that reports a single person in the
// middle of the frame.
func NewMockDetector() *MockDetector {
	return &MockDetector{
		DetectFunc: func(jpeg []byte) ([]Detection, error) {
			return []Detection{{
				X: 0.4, Y: 0.3, W: 0.2, H: 0.4,
				Confidence: 0.9,
				ClassID:    0,
				ClassName:  "person",
			}}, nil
		},
	}
}

// Detect calls DetectFunc and records the call.
func (m *MockDetector) Detect(jpeg []byte) ([]Detection, error) {
	m.record("Detect")
	if m.DetectFunc != nil {
		return m.DetectFunc(jpeg)
	}
	return nil, nil
}

// Close calls CloseFunc and records the call.
func (m *MockDetector) Close() error {
	m.record("Close")
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// CallCount returns how many times the named method was invoked.
func (m *MockDetector) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *MockDetector) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Time: time.Now()})
}

var _ Detector = (*MockDetector)(nil)
