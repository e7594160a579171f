package bridge

import (
	"encoding/json"
	"fmt"
)

// Op identifies a rosbridge protocol operation.
type Op string

const (
	// Client → server operations
	OpAdvertise        Op = "advertise"
	OpPublish          Op = "publish"
	OpSubscribe        Op = "subscribe"
	OpUnsubscribe      Op = "unsubscribe"
	OpSendActionGoal   Op = "send_action_goal"
	OpCancelActionGoal Op = "cancel_action_goal"

	// Server → client operations
	OpActionFeedback Op = "action_feedback"
	OpActionResult   Op = "action_result"
	OpStatus         Op = "status"
)

// Envelope is the rosbridge wire frame. Fields are populated per-op;
// unused ones are omitted from the JSON.
type Envelope struct {
	Op         Op              `json:"op"`
	ID         string          `json:"id,omitempty"`
	Topic      string          `json:"topic,omitempty"`
	Type       string          `json:"type,omitempty"`
	Msg        json.RawMessage `json:"msg,omitempty"`
	Action     string          `json:"action,omitempty"`
	ActionType string          `json:"action_type,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Feedback   bool            `json:"feedback,omitempty"`
	Values     json.RawMessage `json:"values,omitempty"`
	Status     int             `json:"status,omitempty"`
	Result     bool            `json:"result,omitempty"`
	Level      string          `json:"level,omitempty"`
}

// ParseEnvelope parses a rosbridge frame from bytes.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bridge: parse frame: %w", err)
	}
	if env.Op == "" {
		return nil, fmt.Errorf("bridge: frame has no op")
	}
	return &env, nil
}

// Bytes returns the JSON-encoded frame.
func (e *Envelope) Bytes() ([]byte, error) {
	return json.Marshal(e)
}

// Action goal status codes, as reported in action_result frames.
const (
	GoalStatusUnknown   = 0
	GoalStatusAccepted  = 1
	GoalStatusExecuting = 2
	GoalStatusCanceling = 3
	GoalStatusSucceeded = 4
	GoalStatusCanceled  = 5
	GoalStatusAborted   = 6
)
