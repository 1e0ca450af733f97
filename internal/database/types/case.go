package types

import (
	"time"

	"github.com/uptrace/bun"
)

// CaseRecord is the archived form of a closed moderation case. Open cases
// live in memory; a record is written once when the case closes and never
// updated afterwards.
type CaseRecord struct {
	bun.BaseModel `bun:"table:case_records"`

	CaseID              string    `bun:"case_id,pk"`
	WorkspaceID         uint64    `bun:"workspace_id,notnull"`
	MemberID            uint64    `bun:"member_id"`
	TravelerName        string    `bun:"traveler_name,notnull"`
	OriginLocation      string    `bun:"origin_location"`
	DestinationLocation string    `bun:"destination_location"`
	Resolution          string    `bun:"resolution,notnull"`
	ModeratorID         uint64    `bun:"moderator_id"`
	Reason              string    `bun:"reason"`
	OpenedAt            time.Time `bun:"opened_at,notnull"`
	ClosedAt            time.Time `bun:"closed_at,notnull"`
}
