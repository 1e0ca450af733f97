package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/dodogate/dodogate/internal/arrival"
	"github.com/dodogate/dodogate/internal/database/types"
	"github.com/dodogate/dodogate/internal/platform"
	"go.uber.org/zap"
)

// Ledger is the warning-ledger surface the engine writes through during
// submission. Satisfied by the database warning model.
type Ledger interface {
	Add(ctx context.Context, record *types.WarningRecord) error
	CountSince(ctx context.Context, memberID, workspaceID uint64, since time.Time) (int, error)
}

// Archiver persists the final state of closed cases. Satisfied by the
// database case model.
type Archiver interface {
	Archive(ctx context.Context, record *types.CaseRecord) error
}

// AuditEntry is the data an audit log post is built from. The engine
// generates a fresh identifier per entry so audit posts remain traceable
// even if the case alert is later deleted.
type AuditEntry struct {
	AuditID      string
	CaseID       string
	Resolution   Resolution
	Reason       string
	Duration     string
	ModeratorID  snowflake.ID
	TargetID     snowflake.ID
	WarningCount int
	// ExpiresAt is set for warnings only: the instant the warning stops
	// counting against the member.
	ExpiresAt time.Time
}

// Renderer builds the moderator-facing messages. Presentation lives in the
// bot layer; the engine only decides what each message must convey.
type Renderer interface {
	// Alert renders the case alert with controls matching the case state.
	Alert(c *Case) discord.MessageCreate
	// AlertUpdate re-renders the alert after a state change.
	AlertUpdate(c *Case) discord.MessageUpdate
	// AuditMessage renders a permanent audit log entry.
	AuditMessage(entry AuditEntry) discord.MessageCreate
	// DirectMessage renders the private notification sent to a target.
	DirectMessage(c *Case, draft *Draft) string
}

// Config carries the engine's workspace wiring.
type Config struct {
	WorkspaceID       uint64
	AlertChannelID    snowflake.ID
	AuditChannelID    snowflake.ID
	AccessRoleID      snowflake.ID
	DefaultWindowDays int
	WarnExpiryDays    int
}

// Engine owns every open case. Case state transitions happen under one lock
// and are checked before any side effect, so a double submission finds the
// case already closed and does nothing.
type Engine struct {
	mu    sync.Mutex
	cases map[string]*Case

	directory platform.Directory
	feed      platform.ChatFeed
	ledger    Ledger
	archiver  Archiver
	drafts    *DraftStore
	renderer  Renderer
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates a case engine.
func NewEngine(
	directory platform.Directory, feed platform.ChatFeed, ledger Ledger, archiver Archiver,
	drafts *DraftStore, renderer Renderer, cfg Config, logger *zap.Logger,
) *Engine {
	return &Engine{
		cases:     make(map[string]*Case),
		directory: directory,
		feed:      feed,
		ledger:    ledger,
		archiver:  archiver,
		drafts:    drafts,
		renderer:  renderer,
		cfg:       cfg,
		logger:    logger.Named("case_engine"),
		now:       time.Now,
	}
}

// SetNow overrides the engine clock, for tests.
func (e *Engine) SetNow(now func() time.Time) {
	e.now = now
}

// Case returns a snapshot of the case with the given ID.
func (e *Engine) Case(caseID string) (Case, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.cases[caseID]
	if !ok {
		return Case{}, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}

	return *c, nil
}

// OpenCase creates a case for an arrival the resolver could not match and
// posts its actionable alert. Duplicate arrivals for the same traveler open
// independent cases; cases are per event, not per traveler.
func (e *Engine) OpenCase(ctx context.Context, event arrival.Event) (*Case, error) {
	c := &Case{
		ID:        NewCaseID(e.now()),
		Event:     event,
		Status:    StatusOpen,
		CreatedAt: e.now(),
	}

	ref, err := e.feed.SendMessage(ctx, e.cfg.AlertChannelID, e.renderer.Alert(c))
	if err != nil {
		return nil, fmt.Errorf("failed to post case alert: %w", err)
	}

	c.AlertRef = ref

	e.mu.Lock()
	e.cases[c.ID] = c
	e.mu.Unlock()

	e.logger.Info("Opened case",
		zap.String("caseID", c.ID),
		zap.String("traveler", event.TravelerName),
		zap.String("origin", event.OriginLocation),
		zap.String("destination", event.DestinationLocation))

	return c, nil
}

// Investigate marks the case as being looked at. It does not close the case
// and disables itself after first use: a second click finds the status
// already advanced and changes nothing.
func (e *Engine) Investigate(ctx context.Context, caseID string, moderatorID snowflake.ID) error {
	e.mu.Lock()

	c, ok := e.cases[caseID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}

	if c.Status != StatusOpen {
		e.mu.Unlock()

		if c.Status == StatusClosed {
			return ErrCaseClosed
		}

		return nil
	}

	c.Status = StatusInvestigating
	c.InvestigatedBy = moderatorID
	snapshot := *c
	e.mu.Unlock()

	e.syncAlert(ctx, &snapshot)

	return nil
}

// Admit closes the case as AUTHORIZED. The bot layer gates this behind an
// explicit confirm step; by the time Admit runs the moderator has confirmed.
func (e *Engine) Admit(ctx context.Context, caseID string, moderatorID snowflake.ID) error {
	e.mu.Lock()

	c, ok := e.cases[caseID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}

	if err := c.close(ResolutionAuthorized, moderatorID, "admitted by moderator", e.now()); err != nil {
		e.mu.Unlock()
		return err
	}

	snapshot := *c
	e.mu.Unlock()

	e.syncAlert(ctx, &snapshot)
	e.archive(ctx, &snapshot)

	return nil
}

// StartWizard opens a punishment builder for the case. The draft lives in
// Redis under the wizard timeout; an abandoned wizard expires with no side
// effects.
func (e *Engine) StartWizard(
	ctx context.Context, caseID string, kind PunishmentKind, moderatorID snowflake.ID,
) (*Draft, error) {
	e.mu.Lock()

	c, ok := e.cases[caseID]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}

	if c.Status == StatusClosed {
		e.mu.Unlock()
		return nil, ErrCaseClosed
	}
	e.mu.Unlock()

	draft := NewDraft(caseID, kind, moderatorID, e.now())
	if err := e.drafts.Save(ctx, draft); err != nil {
		return nil, err
	}

	return draft, nil
}

// UpdateDraft loads the case's draft, applies the mutation, and saves it
// back. Used by the bot layer for target, duration, and reason selections.
func (e *Engine) UpdateDraft(ctx context.Context, caseID string, apply func(*Draft)) (*Draft, error) {
	draft, err := e.drafts.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}

	apply(draft)

	if err := e.drafts.Save(ctx, draft); err != nil {
		return nil, err
	}

	return draft, nil
}

// CancelWizard abandons the draft with no side effects.
func (e *Engine) CancelWizard(ctx context.Context, caseID string) error {
	return e.drafts.Delete(ctx, caseID)
}

// Submit executes the punishment pipeline. The case is transitioned to
// CLOSED under the lock before any side effect runs, which is what makes a
// concurrent second submission a no-op.
//
// Pipeline order: private notification (best effort), the directory action,
// the unconditional ledger append, the trailing-window count, the audit
// post, and finally the alert edit. A permission fault on the directory
// action reopens the case for another moderator; any later fault is
// reported but does not stop the audit post, since the punitive action may
// already have happened.
func (e *Engine) Submit(ctx context.Context, caseID string, moderatorID snowflake.ID) error {
	draft, err := e.drafts.Get(ctx, caseID)
	if err != nil {
		return err
	}

	if !draft.Complete() {
		return errors.New("wizard is missing required fields")
	}

	target, err := e.directory.GetMember(ctx, draft.TargetID)
	if err != nil {
		return fmt.Errorf("failed to resolve target member: %w", err)
	}

	e.mu.Lock()

	c, ok := e.cases[caseID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}

	if err := c.close(draft.Kind.Resolution(), moderatorID, draft.Reason, e.now()); err != nil {
		e.mu.Unlock()
		return err
	}

	c.TargetMember = &target
	snapshot := *c
	e.mu.Unlock()

	// Step 1: best-effort private notification. Undeliverable DMs are
	// expected (members may have them disabled) and never fatal.
	if err := e.directory.SendDirectMessage(ctx, target.ID, e.renderer.DirectMessage(&snapshot, draft)); err != nil {
		e.logger.Debug("Failed to deliver DM to target",
			zap.String("caseID", caseID), zap.Error(err))
	}

	// Step 2: the directory action.
	if err := e.applyDirectoryAction(ctx, draft, target); err != nil {
		if errors.Is(err, platform.ErrPermission) {
			// Reopen so a better-privileged moderator can retry.
			e.reopen(ctx, caseID)
			return fmt.Errorf("insufficient privilege, case left open for retry: %w", err)
		}

		// Past this point the engine does not guess whether the action
		// partially happened; the remaining steps still run best-effort.
		e.logger.Error("Directory action failed mid-submission",
			zap.String("caseID", caseID), zap.Error(err))

		err = fmt.Errorf("directory action failed: %w", err)

		return errors.Join(err, e.finishSubmission(ctx, &snapshot, draft, target))
	}

	return e.finishSubmission(ctx, &snapshot, draft, target)
}

// finishSubmission runs steps 3 through 6: ledger append, count, audit post,
// alert edit, and case archive. Each failure is reported but later steps
// still run, so a punitive action that did happen is never silently lost.
func (e *Engine) finishSubmission(
	ctx context.Context, c *Case, draft *Draft, target platform.Member,
) error {
	var errs []error

	now := e.now()

	// Step 3: the ledger reflects all punitive history, kicks and bans
	// included.
	record := &types.WarningRecord{
		MemberID:    uint64(target.ID),
		WorkspaceID: e.cfg.WorkspaceID,
		ModeratorID: uint64(c.ModeratorID),
		CaseID:      c.ID,
		ReasonText:  draft.Reason,
		IssuedAt:    now,
		ExpiresAt:   now.AddDate(0, 0, e.cfg.WarnExpiryDays),
	}
	if err := e.ledger.Add(ctx, record); err != nil {
		errs = append(errs, fmt.Errorf("warning ledger write failed, action may have partially executed: %w", err))
	}

	// Step 4: trailing-window count, used to size consequences.
	count, err := e.ledger.CountSince(
		ctx, uint64(target.ID), e.cfg.WorkspaceID,
		now.AddDate(0, 0, -e.cfg.DefaultWindowDays),
	)
	if err != nil {
		errs = append(errs, fmt.Errorf("warning count failed: %w", err))
	}

	// Step 5: permanent audit entry with a fresh identifier.
	entry := AuditEntry{
		AuditID:      NewCaseID(now),
		CaseID:       c.ID,
		Resolution:   c.Resolution,
		Reason:       draft.Reason,
		Duration:     draft.Duration,
		ModeratorID:  c.ModeratorID,
		TargetID:     target.ID,
		WarningCount: count,
	}
	if c.Resolution == ResolutionWarned {
		entry.ExpiresAt = now.AddDate(0, 0, e.cfg.WarnExpiryDays)
	}

	if _, err := e.feed.SendMessage(ctx, e.cfg.AuditChannelID, e.renderer.AuditMessage(entry)); err != nil {
		errs = append(errs, fmt.Errorf("audit post failed: %w", err))
	}

	// Step 6: sync the alert and archive. An unlocatable alert orphans the
	// case; the punishment stands and only UI sync is lost.
	e.syncAlert(ctx, c)
	e.archive(ctx, c)

	if err := e.drafts.Delete(ctx, c.ID); err != nil {
		e.logger.Warn("Failed to delete submitted wizard draft",
			zap.String("caseID", c.ID), zap.Error(err))
	}

	return errors.Join(errs...)
}

// applyDirectoryAction performs the punishment-specific directory call. A
// warning revokes the location access role if the target holds it; kick and
// ban remove the member.
func (e *Engine) applyDirectoryAction(ctx context.Context, draft *Draft, target platform.Member) error {
	reason := fmt.Sprintf("case %s: %s", draft.CaseID, draft.Reason)

	switch draft.Kind {
	case PunishWarn:
		if e.cfg.AccessRoleID != 0 && target.HasRole(e.cfg.AccessRoleID) {
			return e.directory.RemoveRole(ctx, target.ID, e.cfg.AccessRoleID, reason)
		}

		return nil
	case PunishKick:
		return e.directory.Kick(ctx, target.ID, reason)
	case PunishBan:
		return e.directory.Ban(ctx, target.ID, reason)
	default:
		return fmt.Errorf("unknown punishment kind %q", draft.Kind)
	}
}

// reopen reverts a close that never executed its directory action. Only the
// permission-fault path uses this; the case returns to its prior visible
// state so another moderator can act.
func (e *Engine) reopen(ctx context.Context, caseID string) {
	e.mu.Lock()

	c, ok := e.cases[caseID]
	if !ok {
		e.mu.Unlock()
		return
	}

	c.Status = StatusOpen
	c.Resolution = ResolutionNone
	c.ModeratorID = 0
	c.ReasonText = ""
	c.ClosedAt = time.Time{}
	c.TargetMember = nil
	snapshot := *c
	e.mu.Unlock()

	e.syncAlert(ctx, &snapshot)
}

// syncAlert edits the posted alert to reflect the case state. Failure here
// orphans the case: side effects are not rolled back, the miss is logged as
// a warning and nothing escalates.
func (e *Engine) syncAlert(ctx context.Context, c *Case) {
	if err := e.feed.EditMessage(ctx, c.AlertRef, e.renderer.AlertUpdate(c)); err != nil {
		e.logger.Warn("Case alert could not be edited, case is orphaned",
			zap.String("caseID", c.ID),
			zap.Error(err))
	}
}

// archive persists the closed case's final state and drops it from the open
// set.
func (e *Engine) archive(ctx context.Context, c *Case) {
	record := &types.CaseRecord{
		CaseID:              c.ID,
		WorkspaceID:         e.cfg.WorkspaceID,
		TravelerName:        c.Event.TravelerName,
		OriginLocation:      c.Event.OriginLocation,
		DestinationLocation: c.Event.DestinationLocation,
		Resolution:          c.Resolution.String(),
		ModeratorID:         uint64(c.ModeratorID),
		Reason:              c.ReasonText,
		OpenedAt:            c.CreatedAt,
		ClosedAt:            c.ClosedAt,
	}
	if c.TargetMember != nil {
		record.MemberID = uint64(c.TargetMember.ID)
	}

	if err := e.archiver.Archive(ctx, record); err != nil {
		e.logger.Warn("Failed to archive closed case",
			zap.String("caseID", c.ID), zap.Error(err))
	}

	e.mu.Lock()
	delete(e.cases, c.ID)
	e.mu.Unlock()
}
