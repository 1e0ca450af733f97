package resolver_test

import (
	"context"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/dodogate/dodogate/internal/arrival"
	"github.com/dodogate/dodogate/internal/platform"
	"github.com/dodogate/dodogate/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDirectory struct {
	platform.Directory

	members []platform.Member
}

func (f *fakeDirectory) ListMembers(_ context.Context) ([]platform.Member, error) {
	return f.members, nil
}

func member(id uint64, displayName string) platform.Member {
	return platform.Member{
		ID:          snowflake.ID(id),
		Username:    displayName,
		DisplayName: displayName,
	}
}

func event(traveler, origin string) arrival.Event {
	return arrival.Event{
		TravelerName:        traveler,
		OriginLocation:      origin,
		DestinationLocation: "Hiraya",
		ObservedAt:          time.Now(),
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		members []platform.Member
		event   arrival.Event
		wantIDs []uint64
	}{
		{
			name: "exact identity and location match",
			members: []platform.Member{
				member(1, "xXKyloXx / Alapaap | Kylo"),
				member(2, "Marites | Bituin"),
			},
			event:   event("Marites", "Bituin"),
			wantIDs: []uint64{2},
		},
		{
			name: "identity alternative matches",
			members: []platform.Member{
				member(1, "Kylo / xXKyloXx | Alapaap"),
			},
			event:   event("xXKyloXx", "Alapaap"),
			wantIDs: []uint64{1},
		},
		{
			name: "no location constraint declared",
			members: []platform.Member{
				member(1, "Marites |"),
			},
			event:   event("Marites", "Anywhere"),
			wantIDs: []uint64{1},
		},
		{
			name: "location mismatch excludes",
			members: []platform.Member{
				member(1, "Marites | Bituin"),
			},
			event:   event("Marites", "Alapaap"),
			wantIDs: nil,
		},
		{
			name: "identity mismatch excludes",
			members: []platform.Member{
				member(1, "Marites | Bituin"),
			},
			event:   event("Juan", "Bituin"),
			wantIDs: nil,
		},
		{
			name: "members without a claim are skipped",
			members: []platform.Member{
				member(1, "Marites"),
				member(2, "Marites | Bituin"),
			},
			event:   event("Marites", "Bituin"),
			wantIDs: []uint64{2},
		},
		{
			name: "ambiguous match returns everyone",
			members: []platform.Member{
				member(1, "Marites | Bituin"),
				member(2, "marites | bituin / dakila"),
			},
			event:   event("Marites", "Bituin"),
			wantIDs: []uint64{1, 2},
		},
		{
			name: "diacritics and casing fold away",
			members: []platform.Member{
				member(1, "Márïtés | BITUIN"),
			},
			event:   event("marites", "bituin"),
			wantIDs: []uint64{1},
		},
		{
			name:    "empty directory",
			members: nil,
			event:   event("Marites", "Bituin"),
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := resolver.New(&fakeDirectory{members: tt.members}, zap.NewNop())

			matches, err := r.Resolve(t.Context(), tt.event)
			require.NoError(t, err)

			gotIDs := make([]uint64, 0, len(matches))
			for _, m := range matches {
				gotIDs = append(gotIDs, uint64(m.ID))
			}

			assert.ElementsMatch(t, tt.wantIDs, gotIDs)
		})
	}
}
