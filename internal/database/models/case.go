package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dodogate/dodogate/internal/database/dbretry"
	"github.com/dodogate/dodogate/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ErrCaseNotFound is returned when no archived case matches the given ID.
var ErrCaseNotFound = errors.New("case not found")

// CaseModel handles database operations for archived moderation cases.
type CaseModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewCase creates a new CaseModel instance.
func NewCase(db *bun.DB, logger *zap.Logger) *CaseModel {
	return &CaseModel{
		db:     db,
		logger: logger.Named("db_case"),
	}
}

// Archive writes the closed case's final state. Closed cases are immutable,
// so a conflicting insert is a bug upstream and surfaces as an error.
func (m *CaseModel) Archive(ctx context.Context, record *types.CaseRecord) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(record).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to archive case %s: %w", record.CaseID, err)
		}

		m.logger.Debug("Archived case",
			zap.String("caseID", record.CaseID),
			zap.String("resolution", record.Resolution))

		return nil
	})
}

// Get returns one archived case by ID.
func (m *CaseModel) Get(ctx context.Context, caseID string) (*types.CaseRecord, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.CaseRecord, error) {
		var record types.CaseRecord

		err := m.db.NewSelect().
			Model(&record).
			Where("case_id = ?", caseID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrCaseNotFound
			}

			return nil, fmt.Errorf("failed to get case %s: %w", caseID, err)
		}

		return &record, nil
	})
}

// ListRecent returns the workspace's most recently closed cases, newest first.
func (m *CaseModel) ListRecent(ctx context.Context, workspaceID uint64, limit int) ([]*types.CaseRecord, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.CaseRecord, error) {
		var records []*types.CaseRecord

		err := m.db.NewSelect().
			Model(&records).
			Where("workspace_id = ?", workspaceID).
			Order("closed_at DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list cases: %w", err)
		}

		return records, nil
	})
}
