// Package liveness runs the location monitor as a standalone worker, for
// deployments that keep the interactive bot and the sweeper separate.
package liveness

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	botpkg "github.com/dodogate/dodogate/internal/bot"
	"github.com/dodogate/dodogate/internal/monitor"
	"github.com/dodogate/dodogate/internal/platform"
	"github.com/dodogate/dodogate/internal/redis"
	"github.com/dodogate/dodogate/internal/setup"
	"go.uber.org/zap"
)

// Worker owns a presence-only Discord client and the liveness monitor.
type Worker struct {
	app    *setup.App
	client bot.Client
	logger *zap.Logger
}

// New creates a liveness worker. The client carries presence and member
// intents only; the worker never reads the flight feed or handles
// interactions.
func New(app *setup.App, logger *zap.Logger) (*Worker, error) {
	client, err := disgo.New(app.Config.Bot.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
				gateway.IntentGuildPresences,
			),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagGuilds, cache.FlagMembers, cache.FlagPresences),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord client: %w", err)
	}

	return &Worker{
		app:    app,
		client: client,
		logger: logger,
	}, nil
}

// Start opens the gateway and sweeps until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	cfg := &w.app.Config.Bot

	if err := w.client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}
	defer w.client.Close(context.Background())

	guildID := snowflake.ID(cfg.Discord.GuildID)

	locations, err := monitor.ResolveLocations(
		ctx, w.client.Rest(), guildID,
		snowflake.ID(cfg.Discord.LocationCategoryID),
		cfg.Monitor.Locations, w.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve location channels: %w", err)
	}

	stateClient, err := w.app.RedisManager.GetClient(redis.MonitorDBIndex)
	if err != nil {
		return fmt.Errorf("failed to get liveness state client: %w", err)
	}

	directory := platform.NewDiscordDirectory(w.client, guildID, w.logger)
	feed := platform.NewDiscordChatFeed(w.client, w.logger)

	m := monitor.New(
		directory, feed,
		monitor.NewStateStore(stateClient),
		botpkg.NewLivenessNotifier(feed, botpkg.NewAlerts()),
		monitor.Config{
			Interval:        time.Duration(cfg.Monitor.IntervalMinutes) * time.Minute,
			CheckTimeout:    time.Duration(cfg.Monitor.CheckTimeoutSeconds) * time.Second,
			HistoryLimit:    cfg.Monitor.HistoryLimit,
			HostMarker:      cfg.Monitor.HostMarker,
			CompanionRoleID: snowflake.ID(cfg.Monitor.CompanionRoleID),
			CompanionPrefix: cfg.Monitor.CompanionPrefix,
			Locations:       locations,
		},
		w.logger,
	)

	m.Run(ctx)

	return nil
}
