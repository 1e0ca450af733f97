// Package monitor samples each tracked location's online/offline liveness on
// a fixed schedule and notifies only on genuine transitions.
package monitor

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/dodogate/dodogate/internal/platform"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// AccessCodePattern matches an active visit access code: five characters
// drawn from the unambiguous uppercase alphabet (no I or O) and digits.
var AccessCodePattern = regexp.MustCompile(`\b[A-HJ-NP-Z0-9]{5}\b`)

// Location is one tracked location and its chat channel.
type Location struct {
	Name      string
	ChannelID snowflake.ID
}

// Notifier delivers edge-triggered transition notifications. Implemented by
// the bot layer, which formats and posts to the location's channel.
type Notifier interface {
	NotifyTransition(ctx context.Context, loc Location, online bool) error
}

// Config carries the monitor's sampling parameters.
type Config struct {
	// Interval between sweeps.
	Interval time.Duration
	// CheckTimeout bounds each individual location check so one slow
	// location cannot delay the rest of the sweep.
	CheckTimeout time.Duration
	// HistoryLimit is how many recent messages the fallback inspection
	// reads per location channel.
	HistoryLimit int
	// HostMarker is the marker string that indicates the session host is
	// present in the channel history.
	HostMarker string
	// CompanionRoleID identifies companion presence-indicator accounts.
	CompanionRoleID snowflake.ID
	// CompanionPrefix is the username prefix of companion accounts, with
	// the location name appended per location.
	CompanionPrefix string
	// Locations to monitor.
	Locations []Location
}

// Monitor owns the liveness state of every tracked location. It is the
// single writer per location; no two sweeps run concurrently.
type Monitor struct {
	directory platform.Directory
	feed      platform.ChatFeed
	states    *StateStore
	notifier  Notifier
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a liveness monitor.
func New(
	directory platform.Directory, feed platform.ChatFeed, states *StateStore,
	notifier Notifier, cfg Config, logger *zap.Logger,
) *Monitor {
	return &Monitor{
		directory: directory,
		feed:      feed,
		states:    states,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.Named("monitor"),
		now:       time.Now,
	}
}

// SetNow overrides the monitor clock, for tests.
func (m *Monitor) SetNow(now func() time.Time) {
	m.now = now
}

// Run sweeps all locations on the configured interval until the context is
// cancelled. The first sweep runs immediately.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Liveness monitor stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep checks every tracked location concurrently, each under its own
// timeout. Individual failures are logged and skipped; a location whose
// check fails keeps its previous state and emits nothing.
func (m *Monitor) Sweep(ctx context.Context) {
	p := pool.New().WithContext(ctx)

	for _, loc := range m.cfg.Locations {
		p.Go(func(ctx context.Context) error {
			checkCtx, cancel := context.WithTimeout(ctx, m.cfg.CheckTimeout)
			defer cancel()

			online, err := m.checkLocation(checkCtx, loc)
			if err != nil {
				m.logger.Warn("Location check failed",
					zap.String("location", loc.Name),
					zap.Error(err))

				return nil
			}

			m.observe(ctx, loc, online)

			return nil
		})
	}

	_ = p.Wait()
}

// checkLocation determines current liveness: the companion presence
// indicator first, then a bounded inspection of recent channel history.
func (m *Monitor) checkLocation(ctx context.Context, loc Location) (bool, error) {
	if online, ok, err := m.companionSignal(ctx, loc); err == nil && ok {
		return online, nil
	}

	return m.historySignal(ctx, loc)
}

// companionSignal reports liveness from the location's companion automated
// account, when one is configured and present in the roster. The second
// return value is false when no companion was found and the caller must fall
// back to history inspection.
func (m *Monitor) companionSignal(ctx context.Context, loc Location) (bool, bool, error) {
	if m.cfg.CompanionRoleID == 0 || m.cfg.CompanionPrefix == "" {
		return false, false, nil
	}

	members, err := m.directory.ListMembers(ctx)
	if err != nil {
		return false, false, err
	}

	wantName := strings.ToLower(m.cfg.CompanionPrefix + loc.Name)

	for _, member := range members {
		if !member.HasRole(m.cfg.CompanionRoleID) {
			continue
		}

		if strings.ToLower(member.Username) == wantName ||
			strings.ToLower(member.DisplayName) == wantName {
			return member.Online, true, nil
		}
	}

	return false, false, nil
}

// historySignal inspects a bounded window of recent channel messages for
// liveness markers: an active access code or the host-present marker. Only
// bot-authored messages carry the signal; the code pattern matches ordinary
// human shouting ("GREAT", "THANK") far too easily.
func (m *Monitor) historySignal(ctx context.Context, loc Location) (bool, error) {
	messages, err := m.feed.ListRecentMessages(ctx, loc.ChannelID, m.cfg.HistoryLimit)
	if err != nil {
		return false, err
	}

	marker := strings.ToLower(m.cfg.HostMarker)

	for _, msg := range messages {
		if !msg.AuthorBot {
			continue
		}

		if AccessCodePattern.MatchString(msg.Content) {
			return true, nil
		}

		if marker != "" && strings.Contains(strings.ToLower(msg.Content), marker) {
			return true, nil
		}
	}

	return false, nil
}

// observe compares a definite observation against the stored state. The
// first observation for a location is stored silently; later observations
// notify exactly once per flip. Equal observations are no-ops aside from
// refreshing the observation timestamp.
func (m *Monitor) observe(ctx context.Context, loc Location, online bool) {
	prev, known, err := m.states.Get(ctx, loc.Name)
	if err != nil {
		m.logger.Warn("Failed to load liveness state",
			zap.String("location", loc.Name), zap.Error(err))

		return
	}

	next := LivenessState{Online: online, LastObservedAt: m.now()}

	if err := m.states.Put(ctx, loc.Name, next); err != nil {
		m.logger.Warn("Failed to store liveness state",
			zap.String("location", loc.Name), zap.Error(err))

		return
	}

	if !known {
		// Cold start is always silently absorbed.
		m.logger.Debug("Recorded initial liveness",
			zap.String("location", loc.Name),
			zap.Bool("online", online))

		return
	}

	if prev.Online == online {
		return
	}

	m.logger.Info("Liveness transition",
		zap.String("location", loc.Name),
		zap.Bool("online", online))

	if err := m.notifier.NotifyTransition(ctx, loc, online); err != nil {
		m.logger.Warn("Failed to deliver transition notification",
			zap.String("location", loc.Name), zap.Error(err))
	}
}
