// Package resolver matches arrival events against the member directory's
// parsed nickname claims.
package resolver

import (
	"context"
	"fmt"

	"github.com/dodogate/dodogate/internal/arrival"
	"github.com/dodogate/dodogate/internal/claim"
	"github.com/dodogate/dodogate/internal/platform"
	"go.uber.org/zap"
)

// Resolver resolves arriving travelers to registered members.
type Resolver struct {
	directory platform.Directory
	logger    *zap.Logger
}

// New creates a Resolver over the given directory.
func New(directory platform.Directory, logger *zap.Logger) *Resolver {
	return &Resolver{
		directory: directory,
		logger:    logger.Named("resolver"),
	}
}

// Resolve returns every member whose claim matches the event. A member matches
// when the normalized traveler name is among its identity tags and either the
// member declares no location constraint or the normalized origin is among its
// location tags. Members without any claim are skipped entirely. All matches
// are returned; ambiguity is surfaced to the caller, not silently collapsed.
func (r *Resolver) Resolve(ctx context.Context, event arrival.Event) ([]platform.Member, error) {
	members, err := r.directory.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory members: %w", err)
	}

	travelerTag := claim.Normalize(event.TravelerName)
	originTag := claim.Normalize(event.OriginLocation)

	var matches []platform.Member

	checked := 0

	for _, member := range members {
		c := claim.Parse(member.DisplayName)
		if c.Empty() {
			continue
		}

		checked++

		if !c.IDTags.Contains(travelerTag) {
			continue
		}

		// An empty location set means no constraint was declared. An origin
		// that normalizes to nothing cannot constrain either.
		if len(c.LocationTags) > 0 && originTag != "" && !c.LocationTags.Contains(originTag) {
			continue
		}

		matches = append(matches, member)
	}

	r.logger.Debug("Resolved arrival event",
		zap.String("traveler", travelerTag),
		zap.String("origin", originTag),
		zap.Int("claimBearers", checked),
		zap.Int("matches", len(matches)))

	// Multiple members claiming the same identity and location is worth
	// knowing about, but the event still counts as resolved.
	if len(matches) > 1 {
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.DisplayName)
		}

		r.logger.Info("Ambiguous arrival match",
			zap.String("traveler", event.TravelerName),
			zap.String("origin", event.OriginLocation),
			zap.Strings("members", names))
	}

	return matches, nil
}
