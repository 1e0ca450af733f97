package arrival_test

import (
	"testing"
	"time"

	"github.com/dodogate/dodogate/internal/arrival"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name            string
		line            string
		wantMatch       bool
		wantTraveler    string
		wantOrigin      string
		wantDestination string
	}{
		{
			name:            "standard arrival line",
			line:            "[log] xXKyloXx from Alapaap is joining Hiraya.",
			wantMatch:       true,
			wantTraveler:    "xXKyloXx",
			wantOrigin:      "Alapaap",
			wantDestination: "Hiraya",
		},
		{
			name:            "no trailing period",
			line:            "[feed] Marites from Bituin is joining Dakila",
			wantMatch:       true,
			wantTraveler:    "Marites",
			wantOrigin:      "Bituin",
			wantDestination: "Dakila",
		},
		{
			name:            "case insensitive keywords",
			line:            "[LOG] Juan FROM Galak IS JOINING Likha.",
			wantMatch:       true,
			wantTraveler:    "Juan",
			wantOrigin:      "Galak",
			wantDestination: "Likha",
		},
		{
			name:            "multi word names on a decorated line",
			line:            "[log] ✈✈✈ Big Bird from Sesame Street is joining Hiraya.",
			wantMatch:       true,
			wantTraveler:    "Big Bird",
			wantOrigin:      "Sesame Street",
			wantDestination: "Hiraya",
		},
		{
			name:      "unrelated line",
			line:      "[log] xXKyloXx has left the island.",
			wantMatch: false,
		},
		{
			name:      "empty line",
			line:      "",
			wantMatch: false,
		},
		{
			name:      "missing feed prefix",
			line:      "hello from me is joining nothing in particular",
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			event, ok := arrival.Parse(tt.line, now)
			if !tt.wantMatch {
				assert.False(t, ok)
				return
			}

			require.True(t, ok)
			assert.Equal(t, tt.wantTraveler, event.TravelerName)
			assert.Equal(t, tt.wantOrigin, event.OriginLocation)
			assert.Equal(t, tt.wantDestination, event.DestinationLocation)
			assert.Equal(t, now, event.ObservedAt)
		})
	}
}

// Relay lines carry a timestamp plus airplane decorations between the bracket
// prefix and the traveler name. The decoration token is skipped, not captured.
func TestParseSkipsDecoration(t *testing.T) {
	t.Parallel()

	line := "[12:34] ✈✈✈ Marites from Bituin is joining Dakila."
	event, ok := arrival.Parse(line, time.Now())

	require.True(t, ok)
	assert.Equal(t, "Marites", event.TravelerName)
	assert.Equal(t, "Bituin", event.OriginLocation)
	assert.Equal(t, "Dakila", event.DestinationLocation)
}
