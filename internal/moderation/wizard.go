package moderation

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// PunishmentKind selects which guided builder a moderator opened.
type PunishmentKind string

const (
	PunishWarn PunishmentKind = "warn"
	PunishKick PunishmentKind = "kick"
	PunishBan  PunishmentKind = "ban"
)

// Resolution returns the terminal case resolution for the punishment kind.
func (k PunishmentKind) Resolution() Resolution {
	switch k {
	case PunishWarn:
		return ResolutionWarned
	case PunishKick:
		return ResolutionKicked
	case PunishBan:
		return ResolutionBanned
	default:
		return ResolutionNone
	}
}

// Warn durations a moderator can pick from. Kick and Ban carry fixed
// semantics instead of a selectable duration.
var WarnDurations = []string{"1d", "3d", "7d"}

// Fixed duration labels for the punishment kinds without a selectable one.
const (
	DurationNotApplicable = "N/A"
	DurationPermanent     = "Permanent"
)

// ReasonTemplates is the fixed set of selectable reasons. CustomReasonKey
// routes to a free-text prompt instead.
var ReasonTemplates = []string{
	"rule_1",
	"rule_2",
	"rule_3",
	"rule_4",
}

// CustomReasonKey is the reason-selector value that opens the free-text
// reason prompt.
const CustomReasonKey = "custom"

// Draft is the in-flight state of a punishment wizard. Drafts live in Redis
// under the wizard timeout so an abandoned wizard disappears on its own with
// no side effects.
type Draft struct {
	CaseID    string         `json:"caseId"`
	Kind      PunishmentKind `json:"kind"`
	StartedBy snowflake.ID   `json:"startedBy"`
	StartedAt time.Time      `json:"startedAt"`

	// Required fields. Submission stays disabled until all are present.
	TargetID snowflake.ID `json:"targetId"`
	Duration string       `json:"duration"`
	Reason   string       `json:"reason"`
}

// NewDraft starts a wizard draft for a case. Kick and Ban get their fixed
// duration immediately; Warn requires the moderator to pick one.
func NewDraft(caseID string, kind PunishmentKind, moderatorID snowflake.ID, now time.Time) *Draft {
	draft := &Draft{
		CaseID:    caseID,
		Kind:      kind,
		StartedBy: moderatorID,
		StartedAt: now,
	}

	switch kind {
	case PunishKick:
		draft.Duration = DurationNotApplicable
	case PunishBan:
		draft.Duration = DurationPermanent
	case PunishWarn:
	}

	return draft
}

// Complete reports whether every required field is present. The submit
// control stays disabled until this returns true.
func (d *Draft) Complete() bool {
	return d.TargetID != 0 && d.Duration != "" && d.Reason != ""
}
