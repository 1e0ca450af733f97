// Package claim parses member display names into identity claims.
//
// Members advertise who they are in-game and which locations they own through
// their display name, e.g. "xXKyloXx / Kylo | Alapaap". The text left of the
// separator lists in-game name alternatives, the remainder lists location
// alternatives. Names without a separator carry no claim at all.
package claim

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// Separator marks the boundary between identity tags and location tags.
	Separator = "|"
	// AltDelimiter separates alternative spellings within either half.
	AltDelimiter = "/"
)

// TagSet is a set of normalized claim tags.
type TagSet map[string]struct{}

// Contains reports whether the set holds the given normalized tag.
func (s TagSet) Contains(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Claim holds the parsed identity and location tags of a display name.
// Both sets are empty when the display name carries no claim.
type Claim struct {
	IDTags       TagSet
	LocationTags TagSet
}

// Empty reports whether the claim carries no tags at all. Members with empty
// claims are not claim-bearers and are excluded from arrival matching.
func (c Claim) Empty() bool {
	return len(c.IDTags) == 0 && len(c.LocationTags) == 0
}

// newNormalizer builds the transform chain used for tag comparison.
// Transformers from the norm package carry internal buffers, so a fresh chain
// is built per call rather than shared across goroutines.
func newNormalizer() transform.Transformer {
	return transform.Chain(
		norm.NFKD,                          // Compatibility decomposition
		runes.Remove(runes.In(unicode.Mn)), // Strip diacritic marks
		runes.Map(unicode.ToLower),
		runes.Remove(runes.Predicate(func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})),
	)
}

// Normalize collapses a tag to its canonical comparison form: compatibility
// decomposed, diacritics stripped, lowercased, non-alphanumerics removed.
// Returns the empty string when nothing survives normalization.
func Normalize(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	result, _, err := transform.String(newNormalizer(), s)
	if err != nil {
		return ""
	}

	return result
}

// Parse extracts the identity claim from a display name. Display names
// without the separator produce an empty claim; malformed input degrades to
// empty sets rather than erroring.
func Parse(displayName string) Claim {
	c := Claim{
		IDTags:       make(TagSet),
		LocationTags: make(TagSet),
	}

	if !strings.Contains(displayName, Separator) {
		return c
	}

	// Split at the first separator only. Any further separators stay in the
	// location half and are dropped during normalization.
	halves := strings.SplitN(displayName, Separator, 2)
	addTags(c.IDTags, halves[0])
	addTags(c.LocationTags, halves[1])

	return c
}

// addTags splits raw claim text on the alternatives delimiter, normalizes each
// token, and inserts the survivors into the set.
func addTags(set TagSet, raw string) {
	for _, part := range strings.Split(raw, AltDelimiter) {
		if tag := Normalize(part); tag != "" {
			set[tag] = struct{}{}
		}
	}
}
