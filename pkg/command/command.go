// Package command turns utterances into robot actions.
//
// Classification walks a fixed, ordered rule table of case-insensitive
// patterns; the first match wins, so exactly one dispatch runs per
// utterance. The Commander executes the matched intent against the
// velocity topic, the goal tracker, the perception observer, and the
// follow controller, and produces one acknowledgment per utterance.
package command

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Intent is a classified utterance category.
type Intent string

const (
	IntentUnknown         Intent = "unknown"
	IntentMoveForward     Intent = "move-forward"
	IntentMoveBackward    Intent = "move-backward"
	IntentTurnLeft        Intent = "turn-left"
	IntentTurnRight       Intent = "turn-right"
	IntentStop            Intent = "stop"
	IntentNavigate        Intent = "navigate-to-location"
	IntentExplore         Intent = "explore"
	IntentQueryDetections Intent = "query-detections"
	IntentFollowMe        Intent = "follow-me"
	IntentEmergencyStop   Intent = "emergency-stop"
)

// rule pairs an intent with its utterance pattern.
type rule struct {
	intent  Intent
	pattern *regexp.Regexp
}

// rules is the classification table, walked in order. The emergency
// rule leads so "stop right now, this is an emergency" resolves to
// emergency-stop rather than the plain stop rule further down.
var rules = []rule{
	{IntentEmergencyStop, regexp.MustCompile(`(?i)(emergency|stop).*(now|emergency)`)},
	{IntentMoveForward, regexp.MustCompile(`(?i)(move|go).*(forward|ahead)`)},
	{IntentMoveBackward, regexp.MustCompile(`(?i)(move|go).*(back|backward)`)},
	{IntentTurnLeft, regexp.MustCompile(`(?i)(turn|rotate).*(left)`)},
	{IntentTurnRight, regexp.MustCompile(`(?i)(turn|rotate).*(right)`)},
	{IntentStop, regexp.MustCompile(`(?i)stop`)},
	{IntentNavigate, regexp.MustCompile(`(?i)(navigate|go to).*(\w+)`)},
	{IntentExplore, regexp.MustCompile(`(?i)explore`)},
	{IntentQueryDetections, regexp.MustCompile(`(?i)(what|tell me).*(you see|detect)`)},
	{IntentFollowMe, regexp.MustCompile(`(?i)follow me`)},
}

// Classify maps an utterance to an intent. Pure and deterministic:
// repeated calls on the same text return the same intent.
func Classify(text string) Intent {
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.intent
		}
	}
	return IntentUnknown
}

// Result is the outcome of one dispatched utterance. Err carries the
// dispatch failure for callers; Error mirrors it for the dashboard
// stream.
type Result struct {
	Intent   Intent    `json:"intent"`
	Text     string    `json:"text"`
	Response string    `json:"response"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`

	Err error `json:"-"`
}

// matchLocation finds the first known location mentioned in the
// utterance. Longer names are tried first so "living room" is not
// shadowed by a shorter name it contains.
func matchLocation(text string, names []string) string {
	lower := strings.ToLower(text)
	ordered := make([]string, len(names))
	copy(ordered, names)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i]) > len(ordered[j])
	})
	for _, name := range ordered {
		if name != "" && strings.Contains(lower, name) {
			return name
		}
	}
	return ""
}
