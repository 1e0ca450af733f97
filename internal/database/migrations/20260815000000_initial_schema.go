package migrations

import (
	"context"
	"fmt"

	"github.com/dodogate/dodogate/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.WarningRecord)(nil),
			(*types.CaseRecord)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
		}

		// Warning lookups are always per member within a workspace, newest
		// first, so one composite index covers counting, listing, and the
		// most-recent removal.
		_, err := db.NewCreateIndex().
			Model((*types.WarningRecord)(nil)).
			Index("idx_warning_records_member_issued").
			Column("member_id", "workspace_id").
			ColumnExpr("issued_at DESC").
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create warning index: %w", err)
		}

		_, err = db.NewCreateIndex().
			Model((*types.CaseRecord)(nil)).
			Index("idx_case_records_member").
			Column("workspace_id", "member_id").
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create case index: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for _, model := range []any{
			(*types.CaseRecord)(nil),
			(*types.WarningRecord)(nil),
		} {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop table: %w", err)
			}
		}

		return nil
	})
}
