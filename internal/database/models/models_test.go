package models_test

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/dodogate/dodogate/internal/database/models"
	"github.com/dodogate/dodogate/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"
)

const (
	testWorkspaceID = uint64(100)
	testMemberID    = uint64(500)
	testModeratorID = uint64(400)
)

// newTestDB opens a per-test in-memory database with the ledger schema.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName,
		fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)

	// One in-memory database per test; a second pooled connection would see
	// an empty database.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	for _, model := range []any{
		(*types.WarningRecord)(nil),
		(*types.CaseRecord)(nil),
	} {
		_, err := db.NewCreateTable().Model(model).Exec(t.Context())
		require.NoError(t, err)
	}

	return db
}

func warningAt(issuedAt time.Time, reason string, moderatorID uint64) *types.WarningRecord {
	return &types.WarningRecord{
		MemberID:    testMemberID,
		WorkspaceID: testWorkspaceID,
		ModeratorID: moderatorID,
		CaseID:      "20260801-000000-abc123",
		ReasonText:  reason,
		IssuedAt:    issuedAt,
		ExpiresAt:   issuedAt.AddDate(0, 0, 7),
	}
}

func TestWarningCountWindow(t *testing.T) {
	t.Parallel()

	model := models.NewWarning(newTestDB(t), zap.NewNop())
	now := time.Now().UTC()

	// Counts grow as records are added.
	issued := []time.Time{
		now.AddDate(0, 0, -10),
		now.AddDate(0, 0, -2),
		now.Add(-time.Hour),
	}
	for i, at := range issued {
		require.NoError(t, model.Add(t.Context(), warningAt(at, "rule_1", testModeratorID)))

		count, err := model.CountSince(t.Context(), testMemberID, testWorkspaceID, now.AddDate(0, 0, -30))
		require.NoError(t, err)
		assert.Equal(t, i+1, count)
	}

	// Counts shrink as the window start moves forward with no new records.
	windows := []struct {
		since time.Time
		want  int
	}{
		{now.AddDate(0, 0, -30), 3},
		{now.AddDate(0, 0, -3), 2},
		{now.Add(-2 * time.Hour), 1},
		{now.Add(-30 * time.Minute), 0},
	}
	for _, w := range windows {
		count, err := model.CountSince(t.Context(), testMemberID, testWorkspaceID, w.since)
		require.NoError(t, err)
		assert.Equal(t, w.want, count)
	}
}

func TestRemoveLatestReturnsExactRecord(t *testing.T) {
	t.Parallel()

	model := models.NewWarning(newTestDB(t), zap.NewNop())
	now := time.Now().UTC()

	older := warningAt(now.AddDate(0, 0, -2), "rule_1", 400)
	newer := warningAt(now.Add(-time.Hour), "rule_3", 401)
	require.NoError(t, model.Add(t.Context(), older))
	require.NoError(t, model.Add(t.Context(), newer))

	since := now.AddDate(0, 0, -30)

	removed, err := model.RemoveLatest(t.Context(), testMemberID, testWorkspaceID)
	require.NoError(t, err)
	assert.Equal(t, "rule_3", removed.ReasonText)
	assert.Equal(t, uint64(401), removed.ModeratorID)
	assert.WithinDuration(t, newer.IssuedAt, removed.IssuedAt, time.Second)

	count, err := model.CountSince(t.Context(), testMemberID, testWorkspaceID, since)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	removed, err = model.RemoveLatest(t.Context(), testMemberID, testWorkspaceID)
	require.NoError(t, err)
	assert.Equal(t, "rule_1", removed.ReasonText)

	_, err = model.RemoveLatest(t.Context(), testMemberID, testWorkspaceID)
	require.ErrorIs(t, err, models.ErrNoWarnings)
}

func TestRemoveLatestScopedToMember(t *testing.T) {
	t.Parallel()

	model := models.NewWarning(newTestDB(t), zap.NewNop())

	other := warningAt(time.Now().UTC(), "rule_2", testModeratorID)
	other.MemberID = 501
	require.NoError(t, model.Add(t.Context(), other))

	_, err := model.RemoveLatest(t.Context(), testMemberID, testWorkspaceID)
	require.ErrorIs(t, err, models.ErrNoWarnings)

	count, err := model.CountSince(t.Context(), 501, testWorkspaceID, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestListSinceNewestFirst(t *testing.T) {
	t.Parallel()

	model := models.NewWarning(newTestDB(t), zap.NewNop())
	now := time.Now().UTC()

	require.NoError(t, model.Add(t.Context(), warningAt(now.AddDate(0, 0, -5), "rule_1", 400)))
	require.NoError(t, model.Add(t.Context(), warningAt(now.Add(-time.Hour), "rule_3", 401)))
	require.NoError(t, model.Add(t.Context(), warningAt(now.AddDate(0, 0, -1), "rule_2", 402)))

	records, err := model.ListSince(t.Context(), testMemberID, testWorkspaceID, now.AddDate(0, 0, -3), 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rule_3", records[0].ReasonText)
	assert.Equal(t, "rule_2", records[1].ReasonText)
}

func caseAt(caseID string, closedAt time.Time) *types.CaseRecord {
	return &types.CaseRecord{
		CaseID:              caseID,
		WorkspaceID:         testWorkspaceID,
		MemberID:            testMemberID,
		TravelerName:        "xXKyloXx",
		OriginLocation:      "Alapaap",
		DestinationLocation: "Hiraya",
		Resolution:          "WARNED",
		ModeratorID:         testModeratorID,
		Reason:              "rule_2",
		OpenedAt:            closedAt.Add(-10 * time.Minute),
		ClosedAt:            closedAt,
	}
}

func TestCaseArchiveAndGet(t *testing.T) {
	t.Parallel()

	model := models.NewCase(newTestDB(t), zap.NewNop())
	now := time.Now().UTC()

	require.NoError(t, model.Archive(t.Context(), caseAt("20260801-120000-aaaaaa", now)))

	record, err := model.Get(t.Context(), "20260801-120000-aaaaaa")
	require.NoError(t, err)
	assert.Equal(t, "xXKyloXx", record.TravelerName)
	assert.Equal(t, "WARNED", record.Resolution)
	assert.Equal(t, testModeratorID, record.ModeratorID)

	_, err = model.Get(t.Context(), "20260801-120000-zzzzzz")
	require.ErrorIs(t, err, models.ErrCaseNotFound)
}

func TestCaseListRecentNewestFirst(t *testing.T) {
	t.Parallel()

	model := models.NewCase(newTestDB(t), zap.NewNop())
	now := time.Now().UTC()

	require.NoError(t, model.Archive(t.Context(), caseAt("20260801-100000-aaaaaa", now.Add(-2*time.Hour))))
	require.NoError(t, model.Archive(t.Context(), caseAt("20260801-120000-bbbbbb", now)))

	foreign := caseAt("20260801-110000-cccccc", now.Add(-time.Hour))
	foreign.WorkspaceID = 999
	require.NoError(t, model.Archive(t.Context(), foreign))

	records, err := model.ListRecent(t.Context(), testWorkspaceID, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "20260801-120000-bbbbbb", records[0].CaseID)
	assert.Equal(t, "20260801-100000-aaaaaa", records[1].CaseID)
}
