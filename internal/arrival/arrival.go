// Package arrival extracts traveler arrival events from raw chat-feed lines.
package arrival

import (
	"regexp"
	"strings"
	"time"
)

// pattern matches lines of the form
// "[prefix] <traveler> from <origin> is joining <destination>." as emitted by
// the flight-feed relay. This is a best-effort signal source, so lines that do
// not match are simply ignored.
var pattern = regexp.MustCompile(`(?i)\[.*?\]\s*.*?\s+(.*?)\s+from\s+(.*?)\s+is joining\s+(.*?)(?:\.|$)`)

// Event is a parsed arrival signal: some traveler is joining a destination
// location from an origin location. Events are produced once per matched line
// and never persisted.
type Event struct {
	TravelerName        string
	OriginLocation      string
	DestinationLocation string
	ObservedAt          time.Time
}

// Parse runs the arrival pattern against one chat-feed line. The second return
// value is false when the line carries no arrival signal. Only the first match
// in a line is considered.
func Parse(line string, observedAt time.Time) (Event, bool) {
	m := pattern.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}

	return Event{
		TravelerName:        strings.TrimSpace(m[1]),
		OriginLocation:      strings.TrimSpace(m[2]),
		DestinationLocation: strings.TrimSpace(m[3]),
		ObservedAt:          observedAt,
	}, true
}
