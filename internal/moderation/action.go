package moderation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadCustomID is returned when an interaction custom ID does not decode
// to a known case action.
var ErrBadCustomID = errors.New("malformed action custom ID")

// Action identifies one moderator control on a case alert or wizard. All
// interactive controls dispatch through a single router keyed by
// (case ID, action), never through per-message closures.
type Action string

const (
	ActionAdmit        Action = "admit"
	ActionAdmitConfirm Action = "admit_confirm"
	ActionAdmitCancel  Action = "admit_cancel"
	ActionInvestigate  Action = "investigate"
	ActionWarn         Action = "warn"
	ActionKick         Action = "kick"
	ActionBan          Action = "ban"
	ActionTarget       Action = "target"
	ActionDuration     Action = "duration"
	ActionReason       Action = "reason"
	ActionCustomReason Action = "custom_reason"
	ActionSubmit       Action = "submit"
	ActionCancel       Action = "cancel"
)

// knownActions guards decoding against arbitrary custom IDs arriving from
// stale or foreign components.
var knownActions = map[Action]struct{}{
	ActionAdmit:        {},
	ActionAdmitConfirm: {},
	ActionAdmitCancel:  {},
	ActionInvestigate:  {},
	ActionWarn:         {},
	ActionKick:         {},
	ActionBan:          {},
	ActionTarget:       {},
	ActionDuration:     {},
	ActionReason:       {},
	ActionCustomReason: {},
	ActionSubmit:       {},
	ActionCancel:       {},
}

const customIDPrefix = "case"

// CustomID encodes a case action into an interaction custom ID.
func CustomID(caseID string, action Action) string {
	return fmt.Sprintf("%s:%s:%s", customIDPrefix, caseID, action)
}

// ParseCustomID decodes an interaction custom ID into its case ID and action.
func ParseCustomID(customID string) (string, Action, error) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 || parts[0] != customIDPrefix || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadCustomID, customID)
	}

	action := Action(parts[2])
	if _, ok := knownActions[action]; !ok {
		return "", "", fmt.Errorf("%w: unknown action %q", ErrBadCustomID, parts[2])
	}

	return parts[1], action, nil
}
