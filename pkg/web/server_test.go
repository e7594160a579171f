package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/asadbey/turtlebot3-automation/pkg/automation"
	"github.com/asadbey/turtlebot3-automation/pkg/command"
	"github.com/asadbey/turtlebot3-automation/pkg/health"
	"github.com/asadbey/turtlebot3-automation/pkg/nav"
	"github.com/asadbey/turtlebot3-automation/pkg/perception"
	"github.com/asadbey/turtlebot3-automation/pkg/speech"
	"github.com/asadbey/turtlebot3-automation/pkg/voice"
)

type fakeHealth struct{ healthy bool }

func (f *fakeHealth) Healthy() bool         { return f.healthy }
func (f *fakeHealth) Report() health.Report { return health.Report{} }

type fakeGoals struct{ snap nav.Snapshot }

func (f *fakeGoals) Snapshot() nav.Snapshot { return f.snap }

type fakeDetections struct{ dets []perception.Detection }

func (f *fakeDetections) Latest() ([]perception.Detection, time.Time) {
	return f.dets, time.Now()
}
func (f *fakeDetections) Stats() perception.Stats { return perception.Stats{} }

type fakeModules struct{ statuses []automation.ModuleStatus }

func (f *fakeModules) Status() []automation.ModuleStatus { return f.statuses }

type fakeVoice struct{}

func (f *fakeVoice) Stats() voice.Stats              { return voice.Stats{Commands: 3} }
func (f *fakeVoice) SourceStats() speech.SourceStats { return speech.SourceStats{} }

type fakeExecutor struct{ last string }

func (f *fakeExecutor) Execute(ctx context.Context, text string) command.Result {
	f.last = text
	return command.Result{
		Intent:   command.Classify(text),
		Text:     text,
		Response: "ok",
		At:       time.Now(),
	}
}

func get(t *testing.T, s *Server, path string) *http.Response {
	t.Helper()
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	if err != nil {
		t.Fatalf("Request %s failed: %v", path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestServerEndpointsWithoutSources(t *testing.T) {
	s := NewServer(0, slog.Default())

	for _, path := range []string{
		"/api/health", "/api/goal", "/api/detections", "/api/modules", "/api/voice",
	} {
		resp := get(t, s, path)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503 without a source, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestServerHealthEndpoint(t *testing.T) {
	s := NewServer(0, slog.Default(), WithHealth(&fakeHealth{healthy: true}))

	resp := get(t, s, "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Healthy bool          `json:"healthy"`
		Report  health.Report `json:"report"`
	}
	decode(t, resp, &body)
	if !body.Healthy {
		t.Error("Expected healthy true")
	}
}

func TestServerModulesEndpoint(t *testing.T) {
	s := NewServer(0, slog.Default(), WithModules(&fakeModules{
		statuses: []automation.ModuleStatus{
			{Name: "nav", Status: automation.StatusRunning},
		},
	}))

	resp := get(t, s, "/api/modules")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var body []automation.ModuleStatus
	decode(t, resp, &body)
	if len(body) != 1 || body[0].Name != "nav" {
		t.Errorf("Unexpected modules %v", body)
	}
}

func TestServerVoiceEndpoint(t *testing.T) {
	s := NewServer(0, slog.Default(), WithVoice(&fakeVoice{}))

	resp := get(t, s, "/api/voice")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Pipeline voice.Stats `json:"pipeline"`
	}
	decode(t, resp, &body)
	if body.Pipeline.Commands != 3 {
		t.Errorf("Unexpected voice stats %+v", body.Pipeline)
	}
}

func TestServerCommandEndpoint(t *testing.T) {
	exec := &fakeExecutor{}
	s := NewServer(0, slog.Default(), WithExecutor(exec))

	post := func(body string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/api/command", bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.app.Test(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		return resp
	}

	resp := post(`{"text": "move forward"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var res command.Result
	decode(t, resp, &res)
	if res.Intent != command.IntentMoveForward || res.Response != "ok" {
		t.Errorf("Unexpected result %+v", res)
	}
	if exec.last != "move forward" {
		t.Errorf("Executor saw %q", exec.last)
	}

	resp = post(`{"text": "  "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty text, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	bare := NewServer(0, slog.Default())
	req := httptest.NewRequest(http.MethodPost, "/api/command", bytes.NewReader([]byte(`{"text":"x"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := bare.app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without executor, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestServerLogsEndpoint(t *testing.T) {
	s := NewServer(0, slog.Default())
	s.mirrorLog("INFO", "first")
	s.mirrorLog("WARN", "second")

	resp := get(t, s, "/api/logs")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var body []LogEntry
	decode(t, resp, &body)
	if len(body) != 2 || body[1].Level != "WARN" || body[1].Message != "second" {
		t.Errorf("Unexpected logs %v", body)
	}
}

func TestServerIndex(t *testing.T) {
	s := NewServer(0, slog.Default())

	resp := get(t, s, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	defer resp.Body.Close()
	page, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	if !strings.Contains(string(page), "TurtleBot3 Dashboard") {
		t.Error("Expected the dashboard page")
	}
}

func TestServerStatusComposition(t *testing.T) {
	t.Run("all sources", func(t *testing.T) {
		s := NewServer(0, slog.Default(),
			WithHealth(&fakeHealth{healthy: true}),
			WithGoals(&fakeGoals{}),
			WithDetections(&fakeDetections{dets: []perception.Detection{{}, {}}}),
			WithModules(&fakeModules{}),
			WithVoice(&fakeVoice{}),
		)
		doc := s.status()
		if doc.Healthy == nil || !*doc.Healthy {
			t.Error("Expected healthy set")
		}
		if doc.Health == nil || doc.Goal == nil || doc.Voice == nil {
			t.Error("Expected all sections populated")
		}
		if doc.Detections != 2 {
			t.Errorf("Expected 2 detections, got %d", doc.Detections)
		}
	})

	t.Run("no sources", func(t *testing.T) {
		doc := NewServer(0, slog.Default()).status()
		if doc.Healthy != nil || doc.Health != nil || doc.Goal != nil || doc.Voice != nil {
			t.Errorf("Expected an empty document, got %+v", doc)
		}
	})
}

func TestMirrorRingBounded(t *testing.T) {
	s := NewServer(0, slog.Default())
	for i := 0; i < logBuffer+50; i++ {
		s.mirrorLog("INFO", "line")
	}
	if got := len(s.recentLogs()); got != logBuffer {
		t.Errorf("Expected the ring capped at %d, got %d", logBuffer, got)
	}
}

func TestServerBroadcastStatusKeepsLatest(t *testing.T) {
	s := NewServer(0, slog.Default(), WithHealth(&fakeHealth{healthy: true}))
	if err := s.statusHub.Start(); err != nil {
		t.Fatalf("Hub start failed: %v", err)
	}
	defer s.statusHub.Close()

	s.broadcastStatus()

	s.mu.Lock()
	last := s.lastStatus
	s.mu.Unlock()
	if last == nil {
		t.Fatal("Expected a retained status document")
	}
	var evt Event
	if err := json.Unmarshal(last, &evt); err != nil {
		t.Fatalf("Failed to decode retained status: %v", err)
	}
	if evt.Type != "status" {
		t.Errorf("Unexpected event type %q", evt.Type)
	}
}
