package nav

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/asadbey/turtlebot3-automation/pkg/bridge"
)

// Service is the navigation transport. Implementations deliver feedback
// and exactly one result per goal from their own goroutines.
type Service interface {
	// SendGoal submits a goal. A nil error means the transport accepted
	// it and will eventually call onResult with a terminal status code.
	SendGoal(id string, pose bridge.PoseStamped, onFeedback func(Feedback), onResult func(status int)) error

	// CancelGoal asks the transport to stop the goal. The cancellation
	// outcome still arrives through onResult.
	CancelGoal(id string) error
}

// ActionSender is the slice of the bridge client the real service
// needs.
type ActionSender interface {
	SendActionGoal(action, actionType, id string, args interface{},
		onFeedback func(values []byte), onResult func(status int, values []byte)) error
	CancelActionGoal(id string) error
}

var _ ActionSender = (*bridge.Client)(nil)

// BridgeService sends Nav2 NavigateToPose goals through rosbridge.
type BridgeService struct {
	sender ActionSender
	topics *bridge.Topics
	logger *slog.Logger
}

// NewBridgeService wraps a connected bridge client.
func NewBridgeService(sender ActionSender, topics *bridge.Topics, logger *slog.Logger) *BridgeService {
	if topics == nil {
		topics = bridge.NewTopics("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BridgeService{sender: sender, topics: topics, logger: logger}
}

// SendGoal implements Service.
func (s *BridgeService) SendGoal(id string, pose bridge.PoseStamped, onFeedback func(Feedback), onResult func(status int)) error {
	args := bridge.NavigateToPoseGoal{Pose: pose}

	fb := func(values []byte) {
		var raw bridge.NavigateToPoseFeedback
		if err := json.Unmarshal(values, &raw); err != nil {
			s.logger.Warn("malformed navigation feedback", "goal_id", id, "error", err)
			return
		}
		if onFeedback != nil {
			onFeedback(Feedback{
				DistanceRemaining: raw.DistanceRemaining,
				CurrentPose:       raw.CurrentPose.Pose,
			})
		}
	}
	res := func(status int, _ []byte) {
		if onResult != nil {
			onResult(status)
		}
	}

	err := s.sender.SendActionGoal(s.topics.NavigateToPose(), bridge.ActionTypeNavigateToPose, id, args, fb, res)
	if err != nil {
		return fmt.Errorf("send navigation goal: %w", err)
	}
	return nil
}

// CancelGoal implements Service.
func (s *BridgeService) CancelGoal(id string) error {
	if err := s.sender.CancelActionGoal(id); err != nil {
		return fmt.Errorf("cancel navigation goal: %w", err)
	}
	return nil
}

var _ Service = (*BridgeService)(nil)
