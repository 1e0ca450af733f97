package claim_test

import (
	"testing"

	"github.com/dodogate/dodogate/internal/claim"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "whitespace only",
			input: "   ",
			want:  "",
		},
		{
			name:  "plain lowercase",
			input: "alapaap",
			want:  "alapaap",
		},
		{
			name:  "mixed case",
			input: "xXKyloXx",
			want:  "xxkyloxx",
		},
		{
			name:  "diacritics stripped",
			input: "Señorita Café",
			want:  "senoritacafe",
		},
		{
			name:  "symbols removed",
			input: "~*Star Girl*~",
			want:  "stargirl",
		},
		{
			name:  "digits kept",
			input: "Player 123",
			want:  "player123",
		},
		{
			name:  "only symbols",
			input: "~*~",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, claim.Normalize(tt.input))
		})
	}
}

// Normalizing an already-normalized token must be the identity function.
func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"xXKyloXx", "Señorita Café", "Player 123", "~*Star*~"} {
		once := claim.Normalize(input)
		assert.Equal(t, once, claim.Normalize(once), "input %q", input)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		displayName   string
		wantIDs       []string
		wantLocations []string
	}{
		{
			name:        "no separator means no claim",
			displayName: "Just A Name",
		},
		{
			name:        "empty string",
			displayName: "",
		},
		{
			name:          "single id and location",
			displayName:   "Kylo | Alapaap",
			wantIDs:       []string{"kylo"},
			wantLocations: []string{"alapaap"},
		},
		{
			name:          "id alternatives",
			displayName:   "Kylo/Ky | Alapaap",
			wantIDs:       []string{"kylo", "ky"},
			wantLocations: []string{"alapaap"},
		},
		{
			name:          "location alternatives",
			displayName:   "Kylo | Alapaap/Hiraya",
			wantIDs:       []string{"kylo"},
			wantLocations: []string{"alapaap", "hiraya"},
		},
		{
			name:          "extra separators stay in the location half",
			displayName:   "Kylo | Alapaap | Crafter",
			wantIDs:       []string{"kylo"},
			wantLocations: []string{"alapaapcrafter"},
		},
		{
			name:          "separator with empty id half",
			displayName:   " | Alapaap",
			wantLocations: []string{"alapaap"},
		},
		{
			name:        "separator with empty location half",
			displayName: "Kylo | ",
			wantIDs:     []string{"kylo"},
		},
		{
			name:        "separator with nothing useful",
			displayName: " | ",
		},
		{
			name:          "diacritics and casing normalized",
			displayName:   "Señor Kylö | Hîraya",
			wantIDs:       []string{"senorkylo"},
			wantLocations: []string{"hiraya"},
		},
		{
			name:          "empty alternatives dropped",
			displayName:   "Kylo// | /Alapaap/",
			wantIDs:       []string{"kylo"},
			wantLocations: []string{"alapaap"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := claim.Parse(tt.displayName)

			assert.Len(t, c.IDTags, len(tt.wantIDs))
			for _, id := range tt.wantIDs {
				assert.True(t, c.IDTags.Contains(id), "missing id tag %q", id)
			}

			assert.Len(t, c.LocationTags, len(tt.wantLocations))
			for _, loc := range tt.wantLocations {
				assert.True(t, c.LocationTags.Contains(loc), "missing location tag %q", loc)
			}

			if len(tt.wantIDs) == 0 && len(tt.wantLocations) == 0 {
				assert.True(t, c.Empty())
			}
		})
	}
}
