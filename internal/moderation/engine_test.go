package moderation_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/dodogate/dodogate/internal/arrival"
	"github.com/dodogate/dodogate/internal/database/types"
	"github.com/dodogate/dodogate/internal/moderation"
	"github.com/dodogate/dodogate/internal/platform"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testWorkspaceID    = uint64(100)
	testAlertChannel   = snowflake.ID(200)
	testAuditChannel   = snowflake.ID(201)
	testAccessRole     = snowflake.ID(300)
	testModeratorID    = snowflake.ID(400)
	testTargetID       = snowflake.ID(500)
	testWindowDays     = 3
	testWarnExpiryDays = 7
)

type fakeDirectory struct {
	mu      sync.Mutex
	members map[snowflake.ID]platform.Member

	kicked       []snowflake.ID
	banned       []snowflake.ID
	removedRoles []snowflake.ID
	dms          []snowflake.ID

	kickErr error
	banErr  error
}

func newFakeDirectory(members ...platform.Member) *fakeDirectory {
	d := &fakeDirectory{members: make(map[snowflake.ID]platform.Member)}
	for _, m := range members {
		d.members[m.ID] = m
	}

	return d
}

func (d *fakeDirectory) ListMembers(_ context.Context) ([]platform.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]platform.Member, 0, len(d.members))
	for _, m := range d.members {
		out = append(out, m)
	}

	return out, nil
}

func (d *fakeDirectory) GetMember(_ context.Context, id snowflake.ID) (platform.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.members[id]
	if !ok {
		return platform.Member{}, fmt.Errorf("member %d not found", id)
	}

	return m, nil
}

func (d *fakeDirectory) AddRole(_ context.Context, _, _ snowflake.ID, _ string) error {
	return nil
}

func (d *fakeDirectory) RemoveRole(_ context.Context, memberID, _ snowflake.ID, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.removedRoles = append(d.removedRoles, memberID)

	return nil
}

func (d *fakeDirectory) Kick(_ context.Context, memberID snowflake.ID, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.kickErr != nil {
		return d.kickErr
	}

	d.kicked = append(d.kicked, memberID)

	return nil
}

func (d *fakeDirectory) Ban(_ context.Context, memberID snowflake.ID, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.banErr != nil {
		return d.banErr
	}

	d.banned = append(d.banned, memberID)

	return nil
}

func (d *fakeDirectory) SendDirectMessage(_ context.Context, memberID snowflake.ID, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dms = append(d.dms, memberID)

	return nil
}

type sentMessage struct {
	channelID snowflake.ID
	message   discord.MessageCreate
}

type fakeFeed struct {
	mu     sync.Mutex
	nextID snowflake.ID
	sent   []sentMessage
	edits  []platform.MessageRef
}

func (f *fakeFeed) ListRecentMessages(_ context.Context, _ snowflake.ID, _ int) ([]platform.Message, error) {
	return nil, nil
}

func (f *fakeFeed) SendMessage(
	_ context.Context, channelID snowflake.ID, message discord.MessageCreate,
) (platform.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.sent = append(f.sent, sentMessage{channelID: channelID, message: message})

	return platform.MessageRef{ChannelID: channelID, MessageID: f.nextID}, nil
}

func (f *fakeFeed) EditMessage(_ context.Context, ref platform.MessageRef, _ discord.MessageUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.edits = append(f.edits, ref)

	return nil
}

func (f *fakeFeed) sentTo(channelID snowflake.ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0

	for _, m := range f.sent {
		if m.channelID == channelID {
			count++
		}
	}

	return count
}

type fakeLedger struct {
	mu      sync.Mutex
	records []*types.WarningRecord
	addErr  error
}

func (l *fakeLedger) Add(_ context.Context, record *types.WarningRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.addErr != nil {
		return l.addErr
	}

	l.records = append(l.records, record)

	return nil
}

func (l *fakeLedger) CountSince(_ context.Context, memberID, workspaceID uint64, since time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0

	for _, r := range l.records {
		if r.MemberID == memberID && r.WorkspaceID == workspaceID && !r.IssuedAt.Before(since) {
			count++
		}
	}

	return count, nil
}

func (l *fakeLedger) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.records)
}

type fakeArchiver struct {
	mu      sync.Mutex
	records []*types.CaseRecord
}

func (a *fakeArchiver) Archive(_ context.Context, record *types.CaseRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.records = append(a.records, record)

	return nil
}

type plainRenderer struct{}

func (plainRenderer) Alert(c *moderation.Case) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetContentf("case %s %s", c.ID, c.Status).
		Build()
}

func (plainRenderer) AlertUpdate(c *moderation.Case) discord.MessageUpdate {
	return discord.NewMessageUpdateBuilder().
		SetContentf("case %s %s %s", c.ID, c.Status, c.Resolution).
		Build()
}

func (plainRenderer) AuditMessage(entry moderation.AuditEntry) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetContentf("audit %s %s", entry.AuditID, entry.Resolution).
		Build()
}

func (plainRenderer) DirectMessage(c *moderation.Case, draft *moderation.Draft) string {
	return fmt.Sprintf("you were %s: %s", draft.Kind, draft.Reason)
}

type engineFixture struct {
	engine    *moderation.Engine
	directory *fakeDirectory
	feed      *fakeFeed
	ledger    *fakeLedger
	archiver  *fakeArchiver
}

func newEngineFixture(t *testing.T, members ...platform.Member) *engineFixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	directory := newFakeDirectory(members...)
	feed := &fakeFeed{}
	ledger := &fakeLedger{}
	archiver := &fakeArchiver{}
	drafts := moderation.NewDraftStore(client, time.Hour, zap.NewNop())

	engine := moderation.NewEngine(
		directory, feed, ledger, archiver, drafts, plainRenderer{},
		moderation.Config{
			WorkspaceID:       testWorkspaceID,
			AlertChannelID:    testAlertChannel,
			AuditChannelID:    testAuditChannel,
			AccessRoleID:      testAccessRole,
			DefaultWindowDays: testWindowDays,
			WarnExpiryDays:    testWarnExpiryDays,
		},
		zap.NewNop(),
	)

	return &engineFixture{
		engine:    engine,
		directory: directory,
		feed:      feed,
		ledger:    ledger,
		archiver:  archiver,
	}
}

func testEvent() arrival.Event {
	return arrival.Event{
		TravelerName:        "xXKyloXx",
		OriginLocation:      "Alapaap",
		DestinationLocation: "Hiraya",
		ObservedAt:          time.Now(),
	}
}

func targetMember(roles ...snowflake.ID) platform.Member {
	return platform.Member{
		ID:          testTargetID,
		Username:    "kylo",
		DisplayName: "xXKyloXx | Alapaap",
		RoleIDs:     roles,
	}
}

func TestOpenCasePostsAlert(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)

	c, err := f.engine.OpenCase(t.Context(), testEvent())
	require.NoError(t, err)

	assert.Equal(t, moderation.StatusOpen, c.Status)
	assert.Equal(t, moderation.ResolutionNone, c.Resolution)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, 1, f.feed.sentTo(testAlertChannel))

	got, err := f.engine.Case(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "xXKyloXx", got.Event.TravelerName)
}

func TestDuplicateArrivalsOpenIndependentCases(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)

	first, err := f.engine.OpenCase(t.Context(), testEvent())
	require.NoError(t, err)

	second, err := f.engine.OpenCase(t.Context(), testEvent())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, f.feed.sentTo(testAlertChannel))
}

func TestInvestigateDisablesItself(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)

	c, err := f.engine.OpenCase(t.Context(), testEvent())
	require.NoError(t, err)

	require.NoError(t, f.engine.Investigate(t.Context(), c.ID, testModeratorID))

	got, err := f.engine.Case(c.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusInvestigating, got.Status)
	assert.Equal(t, testModeratorID, got.InvestigatedBy)

	// A repeated click changes nothing, including who investigated.
	require.NoError(t, f.engine.Investigate(t.Context(), c.ID, snowflake.ID(999)))

	got, err = f.engine.Case(c.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusInvestigating, got.Status)
	assert.Equal(t, testModeratorID, got.InvestigatedBy)
}

func TestAdmitClosesAuthorized(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)

	c, err := f.engine.OpenCase(t.Context(), testEvent())
	require.NoError(t, err)

	require.NoError(t, f.engine.Admit(t.Context(), c.ID, testModeratorID))

	require.Len(t, f.archiver.records, 1)
	assert.Equal(t, "AUTHORIZED", f.archiver.records[0].Resolution)
	assert.NotEmpty(t, f.feed.edits)

	// Closed means closed: a second action against the case has no effect.
	err = f.engine.Admit(t.Context(), c.ID, testModeratorID)
	require.Error(t, err)
	assert.Len(t, f.archiver.records, 1)
}

func TestWarnSubmission(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, targetMember(testAccessRole))

	c, err := f.engine.OpenCase(t.Context(), testEvent())
	require.NoError(t, err)

	draft, err := f.engine.StartWizard(t.Context(), c.ID, moderation.PunishWarn, testModeratorID)
	require.NoError(t, err)
	assert.False(t, draft.Complete())

	_, err = f.engine.UpdateDraft(t.Context(), c.ID, func(d *moderation.Draft) {
		d.TargetID = testTargetID
		d.Duration = "1d"
		d.Reason = "rule_2"
	})
	require.NoError(t, err)

	require.NoError(t, f.engine.Submit(t.Context(), c.ID, testModeratorID))

	// DM, role removal, ledger append, audit post, alert edit.
	assert.Equal(t, []snowflake.ID{testTargetID}, f.directory.dms)
	assert.Equal(t, []snowflake.ID{testTargetID}, f.directory.removedRoles)
	require.Equal(t, 1, f.ledger.len())
	assert.Equal(t, "rule_2", f.ledger.records[0].ReasonText)
	assert.Equal(t, uint64(testTargetID), f.ledger.records[0].MemberID)
	assert.Equal(t, 1, f.feed.sentTo(testAuditChannel))
	assert.NotEmpty(t, f.feed.edits)

	require.Len(t, f.archiver.records, 1)
	assert.Equal(t, "WARNED", f.archiver.records[0].Resolution)

	// The spent draft is gone, so a replayed submission does nothing.
	err = f.engine.Submit(t.Context(), c.ID, testModeratorID)
	require.ErrorIs(t, err, moderation.ErrDraftNotFound)
	assert.Equal(t, 1, f.ledger.len())
}

func TestWarnWithoutAccessRoleSkipsRoleRemoval(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, targetMember())

	c, err := f.engine.OpenCase(t.Context(), testEvent())
	require.NoError(t, err)

	_, err = f.engine.StartWizard(t.Context(), c.ID, moderation.PunishWarn, testModeratorID)
	require.NoError(t, err)

	_, err = f.engine.UpdateDraft(t.Context(), c.ID, func(d *moderation.Draft) {
		d.TargetID = testTargetID
		d.Duration = "3d"
		d.Reason = "rule_1"
	})
	require.NoError(t, err)

	require.NoError(t, f.engine.Submit(t.Context(), c.ID, testModeratorID))
	assert.Empty(t, f.directory.removedRoles)
	assert.Equal(t, 1, f.ledger.len())
}

func TestKickLedgersUnconditionally(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, targetMember())

	c, err := f.engine.OpenCase(t.Context(), testEvent())
	require.NoError(t, err)

	_, err = f.engine.StartWizard(t.Context(), c.ID, moderation.PunishKick, testModeratorID)
	require.NoError(t, err)

	draft, err := f.engine.UpdateDraft(t.Context(), c.ID, func(d *moderation.Draft) {
		d.TargetID = testTargetID
		d.Reason = "rule_3"
	})
	require.NoError(t, err)
	assert.Equal(t, moderation.DurationNotApplicable, draft.Duration)

	require.NoError(t, f.engine.Submit(t.Context(), c.ID, testModeratorID))

	assert.Equal(t, []snowflake.ID{testTargetID}, f.directory.kicked)
	assert.Equal(t, 1, f.ledger.len())

	require.Len(t, f.archiver.records, 1)
	assert.Equal(t, "KICKED", f.archiver.records[0].Resolution)
}

func TestSubmitIncompleteDraftRejected(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, targetMember())

	c, err := f.engine.OpenCase(t.Context(), testEvent())
	require.NoError(t, err)

	_, err = f.engine.StartWizard(t.Context(), c.ID, moderation.PunishWarn, testModeratorID)
	require.NoError(t, err)

	err = f.engine.Submit(t.Context(), c.ID, testModeratorID)
	require.Error(t, err)

	got, err := f.engine.Case(c.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusOpen, got.Status)
	assert.Equal(t, 0, f.ledger.len())
}

func TestPermissionFaultLeavesCaseOpen(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, targetMember())
	f.directory.kickErr = fmt.Errorf("kick denied: %w", platform.ErrPermission)

	c, err := f.engine.OpenCase(t.Context(), testEvent())
	require.NoError(t, err)

	_, err = f.engine.StartWizard(t.Context(), c.ID, moderation.PunishKick, testModeratorID)
	require.NoError(t, err)

	_, err = f.engine.UpdateDraft(t.Context(), c.ID, func(d *moderation.Draft) {
		d.TargetID = testTargetID
		d.Reason = "rule_4"
	})
	require.NoError(t, err)

	err = f.engine.Submit(t.Context(), c.ID, testModeratorID)
	require.ErrorIs(t, err, platform.ErrPermission)

	// The case stays open for a better-privileged moderator, and neither the
	// ledger nor the audit channel saw anything.
	got, err := f.engine.Case(c.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusOpen, got.Status)
	assert.Equal(t, moderation.ResolutionNone, got.Resolution)
	assert.Equal(t, 0, f.ledger.len())
	assert.Equal(t, 0, f.feed.sentTo(testAuditChannel))
	assert.Empty(t, f.archiver.records)

	// A retry with sufficient privilege completes normally.
	f.directory.kickErr = nil

	require.NoError(t, f.engine.Submit(t.Context(), c.ID, snowflake.ID(401)))
	assert.Equal(t, 1, f.ledger.len())
}

func TestLedgerFaultStillPostsAudit(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, targetMember())
	f.ledger.addErr = fmt.Errorf("storage unavailable")

	c, err := f.engine.OpenCase(t.Context(), testEvent())
	require.NoError(t, err)

	_, err = f.engine.StartWizard(t.Context(), c.ID, moderation.PunishBan, testModeratorID)
	require.NoError(t, err)

	_, err = f.engine.UpdateDraft(t.Context(), c.ID, func(d *moderation.Draft) {
		d.TargetID = testTargetID
		d.Reason = "rule_2"
	})
	require.NoError(t, err)

	// The ban executed, so the moderator must see the storage fault rather
	// than a bare success, and the audit post still goes out.
	err = f.engine.Submit(t.Context(), c.ID, testModeratorID)
	require.Error(t, err)
	assert.Equal(t, []snowflake.ID{testTargetID}, f.directory.banned)
	assert.Equal(t, 1, f.feed.sentTo(testAuditChannel))
}

func TestCancelWizardLeavesNoTrace(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, targetMember())

	c, err := f.engine.OpenCase(t.Context(), testEvent())
	require.NoError(t, err)

	_, err = f.engine.StartWizard(t.Context(), c.ID, moderation.PunishWarn, testModeratorID)
	require.NoError(t, err)

	require.NoError(t, f.engine.CancelWizard(t.Context(), c.ID))

	err = f.engine.Submit(t.Context(), c.ID, testModeratorID)
	require.ErrorIs(t, err, moderation.ErrDraftNotFound)

	got, err := f.engine.Case(c.ID)
	require.NoError(t, err)
	assert.Equal(t, moderation.StatusOpen, got.Status)
	assert.Equal(t, 0, f.ledger.len())
}
