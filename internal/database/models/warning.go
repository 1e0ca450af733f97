package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dodogate/dodogate/internal/database/dbretry"
	"github.com/dodogate/dodogate/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ErrNoWarnings is returned when a removal targets a member whose ledger
// holds no warnings.
var ErrNoWarnings = errors.New("member has no warnings on record")

// WarningModel handles database operations for the warning ledger.
type WarningModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewWarning creates a new WarningModel instance.
func NewWarning(db *bun.DB, logger *zap.Logger) *WarningModel {
	return &WarningModel{
		db:     db,
		logger: logger.Named("db_warning"),
	}
}

// Add appends a warning to the ledger. Existing entries are never modified.
func (m *WarningModel) Add(ctx context.Context, record *types.WarningRecord) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(record).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to add warning: %w", err)
		}

		m.logger.Debug("Added warning",
			zap.Uint64("memberID", record.MemberID),
			zap.String("caseID", record.CaseID))

		return nil
	})
}

// CountSince returns how many warnings the member has accumulated in the
// workspace since the given instant.
func (m *WarningModel) CountSince(
	ctx context.Context, memberID, workspaceID uint64, since time.Time,
) (int, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		count, err := m.db.NewSelect().
			Model((*types.WarningRecord)(nil)).
			Where("member_id = ?", memberID).
			Where("workspace_id = ?", workspaceID).
			Where("issued_at >= ?", since).
			Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count warnings: %w", err)
		}

		return count, nil
	})
}

// ListSince returns the member's warnings issued since the given instant,
// newest first, capped at limit.
func (m *WarningModel) ListSince(
	ctx context.Context, memberID, workspaceID uint64, since time.Time, limit int,
) ([]*types.WarningRecord, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.WarningRecord, error) {
		var records []*types.WarningRecord

		err := m.db.NewSelect().
			Model(&records).
			Where("member_id = ?", memberID).
			Where("workspace_id = ?", workspaceID).
			Where("issued_at >= ?", since).
			Order("issued_at DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list warnings: %w", err)
		}

		return records, nil
	})
}

// RemoveLatest deletes the member's most recent warning and returns its
// contents so the caller can show what was removed. Returns ErrNoWarnings
// when the ledger holds nothing for the member. The delete is keyed by a
// most-recent subquery in the same statement, so a concurrent add or remove
// can never make it return a record it did not delete.
func (m *WarningModel) RemoveLatest(
	ctx context.Context, memberID, workspaceID uint64,
) (*types.WarningRecord, error) {
	removed, err := dbretry.Operation(ctx, func(ctx context.Context) (*types.WarningRecord, error) {
		var record types.WarningRecord

		_, err := m.db.NewDelete().
			Model(&record).
			Where("id = (SELECT id FROM warning_records WHERE member_id = ? AND workspace_id = ? "+
				"ORDER BY issued_at DESC LIMIT 1)", memberID, workspaceID).
			Returning("*").
			Exec(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNoWarnings
			}

			return nil, fmt.Errorf("failed to remove latest warning: %w", err)
		}

		return &record, nil
	})
	if err != nil {
		if errors.Is(err, ErrNoWarnings) {
			return nil, ErrNoWarnings
		}

		return nil, err
	}

	m.logger.Debug("Removed latest warning",
		zap.Uint64("memberID", memberID),
		zap.Int64("warningID", removed.ID))

	return removed, nil
}
