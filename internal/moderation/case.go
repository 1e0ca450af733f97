// Package moderation owns the lifecycle of unresolved-arrival cases: the
// per-case state machine, the punishment wizard, and the submission pipeline
// that executes a moderator's chosen resolution.
package moderation

import (
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/dodogate/dodogate/internal/arrival"
	"github.com/dodogate/dodogate/internal/platform"
	"github.com/google/uuid"
)

var (
	// ErrCaseClosed is returned for any action against a case that has
	// already reached its terminal state.
	ErrCaseClosed = errors.New("case is already closed")

	// ErrCaseNotFound is returned when no open case matches the given ID.
	ErrCaseNotFound = errors.New("no such case")
)

// Status is the case lifecycle state. Transitions are monotonic: a case moves
// from open to closed, optionally through investigating, and never back.
type Status int

const (
	StatusOpen Status = iota
	StatusInvestigating
	StatusClosed
)

// String returns the display form of the status.
func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusInvestigating:
		return "INVESTIGATING"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Resolution is the terminal outcome of a case. It is set exactly once, at
// the moment the case closes.
type Resolution int

const (
	ResolutionNone Resolution = iota
	ResolutionAuthorized
	ResolutionWarned
	ResolutionKicked
	ResolutionBanned
)

// String returns the display form of the resolution.
func (r Resolution) String() string {
	switch r {
	case ResolutionAuthorized:
		return "AUTHORIZED"
	case ResolutionWarned:
		return "WARNED"
	case ResolutionKicked:
		return "KICKED"
	case ResolutionBanned:
		return "BANNED"
	default:
		return "NONE"
	}
}

// Case is one tracked, moderator-actionable record of an arrival that could
// not be identity-matched. The engine is the only writer of Status and
// Resolution; everything else is set once at creation or at close.
type Case struct {
	ID    string
	Event arrival.Event

	Status     Status
	Resolution Resolution

	// TargetMember is set when a punishment wizard resolves a target, nil
	// for admitted or still-open cases.
	TargetMember *platform.Member
	ModeratorID  snowflake.ID
	ReasonText   string

	// InvestigatedBy records who opened the investigation, zero if nobody
	// did. Investigate disables itself after first use.
	InvestigatedBy snowflake.ID

	// AlertRef locates the posted alert, the case's sole externally visible
	// presentation. If the message cannot be edited the case is orphaned and
	// fails closed.
	AlertRef platform.MessageRef

	CreatedAt time.Time
	ClosedAt  time.Time
}

// NewCaseID generates a unique, human-decodable case identifier: a UTC
// timestamp followed by a short random suffix.
func NewCaseID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102-150405"), uuid.NewString()[:6])
}

// close transitions the case to its terminal state. The caller must hold the
// engine lock. Returns ErrCaseClosed when the case is already terminal so a
// second submission has no effect.
func (c *Case) close(resolution Resolution, moderatorID snowflake.ID, reason string, now time.Time) error {
	if c.Status == StatusClosed {
		return ErrCaseClosed
	}

	c.Status = StatusClosed
	c.Resolution = resolution
	c.ModeratorID = moderatorID
	c.ReasonText = reason
	c.ClosedAt = now

	return nil
}
