package types

import (
	"time"

	"github.com/uptrace/bun"
)

// WarningRecord is one durable entry in the warning ledger. The ledger is
// append-only; entries are only ever removed through the most-recent-first
// removal operation.
type WarningRecord struct {
	bun.BaseModel `bun:"table:warning_records"`

	ID          int64     `bun:"id,pk,autoincrement"`
	MemberID    uint64    `bun:"member_id,notnull"`
	WorkspaceID uint64    `bun:"workspace_id,notnull"`
	ModeratorID uint64    `bun:"moderator_id,notnull"`
	CaseID      string    `bun:"case_id"`
	ReasonText  string    `bun:"reason_text,notnull"`
	IssuedAt    time.Time `bun:"issued_at,notnull"`
	ExpiresAt   time.Time `bun:"expires_at,notnull"`
}
