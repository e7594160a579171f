package nav

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
)

type mockService struct {
	mu          sync.Mutex
	sendCalls   int
	cancelCalls int
	sendErr     error
	cancelErr   error
	lastID      string
	lastPose    bridge.PoseStamped
	onFeedback  func(Feedback)
	onResult    func(status int)
}

func (m *mockService) SendGoal(id string, pose bridge.PoseStamped, fb func(Feedback), res func(status int)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendCalls++
	if m.sendErr != nil {
		return m.sendErr
	}
	m.lastID = id
	m.lastPose = pose
	m.onFeedback = fb
	m.onResult = res
	return nil
}

func (m *mockService) CancelGoal(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCalls++
	if m.cancelErr != nil {
		return m.cancelErr
	}
	if m.onResult != nil {
		res := m.onResult
		go res(bridge.GoalStatusCanceled)
	}
	return nil
}

func (m *mockService) feedback(fb Feedback) {
	m.mu.Lock()
	f := m.onFeedback
	m.mu.Unlock()
	if f != nil {
		f(fb)
	}
}

func (m *mockService) result(status int) {
	m.mu.Lock()
	r := m.onResult
	m.mu.Unlock()
	if r != nil {
		r(status)
	}
}

func (m *mockService) resultFn() func(int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onResult
}

func (m *mockService) cancels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelCalls
}

func waitState(t *testing.T, tr *Tracker, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tr.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for state %s, still %s", want, tr.State())
}

func TestTrackerLifecycle(t *testing.T) {
	svc := &mockService{}
	tr := NewTracker(svc, nil, nil, nil)

	id, err := tr.NavigateTo(2, 0, 0)
	if err != nil {
		t.Fatalf("NavigateTo failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a goal id")
	}
	if got := tr.State(); got != StateAccepted {
		t.Errorf("Expected accepted after submit, got %v", got)
	}
	if svc.lastPose.Header.FrameID != "map" {
		t.Errorf("Expected map frame, got %q", svc.lastPose.Header.FrameID)
	}
	if svc.lastPose.Pose.Position.X != 2 {
		t.Errorf("Expected goal x=2, got %v", svc.lastPose.Pose.Position.X)
	}

	svc.feedback(Feedback{DistanceRemaining: 1.5})
	if got := tr.State(); got != StateExecuting {
		t.Errorf("Expected executing after feedback, got %v", got)
	}
	if got := tr.Snapshot().Feedback.DistanceRemaining; got != 1.5 {
		t.Errorf("Expected distance remaining 1.5, got %v", got)
	}

	svc.result(bridge.GoalStatusSucceeded)
	snap := tr.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("Expected idle after result, got %v", snap.State)
	}
	if snap.LastResult != StateSucceeded {
		t.Errorf("Expected succeeded result, got %v", snap.LastResult)
	}
	if snap.FinishedAt.IsZero() {
		t.Error("Expected finish time recorded")
	}
}

func TestTrackerSingleGoalRule(t *testing.T) {
	svc := &mockService{}
	tr := NewTracker(svc, nil, nil, nil)

	first, err := tr.NavigateTo(1, 0, 0)
	if err != nil {
		t.Fatalf("NavigateTo failed: %v", err)
	}
	if _, err := tr.NavigateTo(2, 0, 0); !errors.Is(err, ErrGoalActive) {
		t.Errorf("Expected ErrGoalActive, got %v", err)
	}
	if svc.sendCalls != 1 {
		t.Errorf("Expected rejected submit to never reach the transport, got %d sends", svc.sendCalls)
	}

	svc.result(bridge.GoalStatusSucceeded)

	second, err := tr.NavigateTo(2, 0, 0)
	if err != nil {
		t.Fatalf("Resubmit after terminal failed: %v", err)
	}
	if second == first {
		t.Error("Expected a fresh goal id per submission")
	}
}

func TestTrackerCancel(t *testing.T) {
	svc := &mockService{}
	tr := NewTracker(svc, nil, nil, nil)

	if err := tr.Cancel(); !errors.Is(err, ErrNoActiveGoal) {
		t.Errorf("Expected ErrNoActiveGoal with nothing in flight, got %v", err)
	}

	if _, err := tr.NavigateTo(1, 1, 0); err != nil {
		t.Fatalf("NavigateTo failed: %v", err)
	}
	svc.feedback(Feedback{DistanceRemaining: 1})

	if err := tr.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if svc.cancels() != 1 {
		t.Errorf("Expected one cancel call, got %d", svc.cancels())
	}

	waitState(t, tr, StateIdle)
	if got := tr.Snapshot().LastResult; got != StateCanceled {
		t.Errorf("Expected canceled result, got %v", got)
	}

	if err := tr.Cancel(); !errors.Is(err, ErrNoActiveGoal) {
		t.Errorf("Expected ErrNoActiveGoal after terminal, got %v", err)
	}
}

type blockingService struct {
	mockService
	entered chan struct{}
	release chan struct{}
}

func (b *blockingService) SendGoal(id string, pose bridge.PoseStamped, fb func(Feedback), res func(status int)) error {
	b.entered <- struct{}{}
	<-b.release
	return b.mockService.SendGoal(id, pose, fb, res)
}

func TestTrackerCancelWhileSubmitting(t *testing.T) {
	svc := &blockingService{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	tr := NewTracker(svc, nil, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := tr.NavigateTo(1, 0, 0)
		done <- err
	}()

	select {
	case <-svc.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit never reached the transport")
	}

	if err := tr.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition while submitting, got %v", err)
	}

	close(svc.release)
	if err := <-done; err != nil {
		t.Fatalf("NavigateTo failed: %v", err)
	}
	if got := tr.State(); got != StateAccepted {
		t.Errorf("Expected accepted after release, got %v", got)
	}
}

func TestTrackerRejectedSubmit(t *testing.T) {
	svc := &mockService{sendErr: errors.New("bridge gone")}
	tr := NewTracker(svc, nil, nil, nil)

	if _, err := tr.NavigateTo(1, 0, 0); err == nil {
		t.Fatal("Expected submit error")
	}
	snap := tr.Snapshot()
	if snap.State != StateIdle {
		t.Errorf("Expected idle after rejection, got %v", snap.State)
	}
	if snap.LastResult != StateRejected {
		t.Errorf("Expected rejected result, got %v", snap.LastResult)
	}
	if snap.LastError == "" {
		t.Error("Expected the submit error recorded")
	}

	svc.mu.Lock()
	svc.sendErr = nil
	svc.mu.Unlock()
	if _, err := tr.NavigateTo(1, 0, 0); err != nil {
		t.Errorf("Expected resubmit after rejection to work, got %v", err)
	}
}

func TestTrackerIgnoresStaleCallbacks(t *testing.T) {
	svc := &mockService{}
	tr := NewTracker(svc, nil, nil, nil)

	if _, err := tr.NavigateTo(1, 0, 0); err != nil {
		t.Fatalf("NavigateTo failed: %v", err)
	}
	staleResult := svc.resultFn()
	staleResult(bridge.GoalStatusSucceeded)

	if _, err := tr.NavigateTo(2, 0, 0); err != nil {
		t.Fatalf("Second NavigateTo failed: %v", err)
	}

	// A late result for the finished goal must not touch the new one.
	staleResult(bridge.GoalStatusAborted)
	if got := tr.State(); got != StateAccepted {
		t.Errorf("Expected new goal unaffected by stale result, got %v", got)
	}
	if got := tr.Snapshot().LastResult; got != StateSucceeded {
		t.Errorf("Expected last result still succeeded, got %v", got)
	}
}

func TestTrackerGoalTimeout(t *testing.T) {
	svc := &mockService{cancelErr: errors.New("server hung")}
	tr := NewTracker(svc, nil, nil, nil, WithGoalTimeout(50*time.Millisecond))

	if _, err := tr.NavigateTo(5, 5, 0); err != nil {
		t.Fatalf("NavigateTo failed: %v", err)
	}

	waitState(t, tr, StateIdle)
	snap := tr.Snapshot()
	if snap.LastResult != StateAborted {
		t.Errorf("Expected aborted on timeout, got %v", snap.LastResult)
	}
	if !strings.Contains(snap.LastError, "timeout") {
		t.Errorf("Expected timeout in last error, got %q", snap.LastError)
	}
	if svc.cancels() == 0 {
		t.Error("Expected a best-effort cancel after timeout")
	}
}

func TestTrackerWaitResult(t *testing.T) {
	svc := &mockService{}
	tr := NewTracker(svc, nil, nil, nil)

	id, err := tr.NavigateTo(1, 0, 0)
	if err != nil {
		t.Fatalf("NavigateTo failed: %v", err)
	}

	if _, err := tr.WaitResult(context.Background(), "bogus"); !errors.Is(err, ErrNoActiveGoal) {
		t.Errorf("Expected ErrNoActiveGoal for unknown id, got %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		svc.result(bridge.GoalStatusSucceeded)
	}()
	res, err := tr.WaitResult(context.Background(), id)
	if err != nil {
		t.Fatalf("WaitResult failed: %v", err)
	}
	if res != StateSucceeded {
		t.Errorf("Expected succeeded, got %v", res)
	}

	// A canceled context unblocks the wait.
	id2, err := tr.NavigateTo(2, 0, 0)
	if err != nil {
		t.Fatalf("NavigateTo failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := tr.WaitResult(ctx, id2); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
}

func TestTrackerNavigateToLocation(t *testing.T) {
	svc := &mockService{}
	tr := NewTracker(svc, nil, nil, nil, WithLocations(map[string]Target{
		"Kitchen": {X: 3, Y: 2, Yaw: 0},
	}))

	if _, err := tr.NavigateToLocation("  kitchen "); err != nil {
		t.Fatalf("NavigateToLocation failed: %v", err)
	}
	if svc.lastPose.Pose.Position.X != 3 || svc.lastPose.Pose.Position.Y != 2 {
		t.Errorf("Expected kitchen pose (3,2), got %+v", svc.lastPose.Pose.Position)
	}

	if _, err := tr.NavigateToLocation("garage"); !errors.Is(err, ErrUnknownLocation) {
		t.Errorf("Expected ErrUnknownLocation, got %v", err)
	}
}

func TestTrackerStopRobotAndInitialPose(t *testing.T) {
	lb := bridge.NewLoopback()
	defer lb.Close()
	topics := bridge.NewTopics("")

	var mu sync.Mutex
	twists := []bridge.Twist{}
	if err := lb.Subscribe(topics.CmdVel(), func(data []byte) {
		var tw bridge.Twist
		if err := json.Unmarshal(data, &tw); err != nil {
			t.Errorf("Bad twist payload: %v", err)
			return
		}
		mu.Lock()
		twists = append(twists, tw)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	poses := make(chan bridge.PoseWithCovarianceStamped, 1)
	if err := lb.Subscribe(topics.InitialPose(), func(data []byte) {
		var p bridge.PoseWithCovarianceStamped
		if err := json.Unmarshal(data, &p); err != nil {
			t.Errorf("Bad pose payload: %v", err)
			return
		}
		poses <- p
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	tr := NewTracker(&mockService{}, lb, topics, nil)
	if err := tr.StopRobot(); err != nil {
		t.Fatalf("StopRobot failed: %v", err)
	}
	mu.Lock()
	if len(twists) != 1 || twists[0].Linear.X != 0 || twists[0].Angular.Z != 0 {
		t.Errorf("Expected a single zero twist, got %+v", twists)
	}
	mu.Unlock()

	if err := tr.SetInitialPose(1, 2, 1.57); err != nil {
		t.Fatalf("SetInitialPose failed: %v", err)
	}
	select {
	case p := <-poses:
		if p.Header.FrameID != "map" {
			t.Errorf("Expected map frame, got %q", p.Header.FrameID)
		}
		if p.Pose.Pose.Position.X != 1 || p.Pose.Pose.Position.Y != 2 {
			t.Errorf("Expected position (1,2), got %+v", p.Pose.Pose.Position)
		}
		if p.Pose.Pose.Orientation.W == 1 {
			t.Error("Expected a rotated quaternion for yaw 1.57")
		}
	default:
		t.Fatal("Expected an initial pose publish")
	}
}

func TestTrackerTransitionNotify(t *testing.T) {
	svc := &mockService{}
	var mu sync.Mutex
	var states []State
	var results []State
	tr := NewTracker(svc, nil, nil, nil, WithTransitionNotify(func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		results = append(results, s.LastResult)
		mu.Unlock()
	}))

	if _, err := tr.NavigateTo(1, 0, 0); err != nil {
		t.Fatalf("NavigateTo failed: %v", err)
	}
	svc.feedback(Feedback{DistanceRemaining: 0.5})
	svc.result(bridge.GoalStatusSucceeded)

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateSubmitting, StateAccepted, StateExecuting, StateIdle}
	if len(states) != len(want) {
		t.Fatalf("Expected %d transitions, got %v", len(want), states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("Expected transition %d = %s, got %s", i, want[i], states[i])
		}
	}
	if results[len(results)-1] != StateSucceeded {
		t.Errorf("Expected final notify to carry the result, got %v", results[len(results)-1])
	}
}

func TestTrackerShutdownStopsRobot(t *testing.T) {
	lb := bridge.NewLoopback()
	defer lb.Close()
	topics := bridge.NewTopics("")

	got := make(chan struct{}, 1)
	if err := lb.Subscribe(topics.CmdVel(), func([]byte) {
		select {
		case got <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	svc := &mockService{}
	tr := NewTracker(svc, lb, topics, nil)
	if _, err := tr.NavigateTo(1, 0, 0); err != nil {
		t.Fatalf("NavigateTo failed: %v", err)
	}

	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if svc.cancels() != 1 {
		t.Errorf("Expected active goal canceled on shutdown, got %d cancels", svc.cancels())
	}
	select {
	case <-got:
	default:
		t.Error("Expected zero velocity published on shutdown")
	}
}
