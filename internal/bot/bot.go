// Package bot wires the Discord surface: the flight-feed listener that turns
// chat lines into cases, the interaction router for case controls and the
// punishment wizard, and the operator slash commands.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/dodogate/dodogate/internal/arrival"
	"github.com/dodogate/dodogate/internal/bot/constants"
	"github.com/dodogate/dodogate/internal/database"
	"github.com/dodogate/dodogate/internal/moderation"
	"github.com/dodogate/dodogate/internal/monitor"
	"github.com/dodogate/dodogate/internal/platform"
	"github.com/dodogate/dodogate/internal/redis"
	"github.com/dodogate/dodogate/internal/resolver"
	"github.com/dodogate/dodogate/internal/setup/config"
	"go.uber.org/zap"
)

// handlerTimeout bounds every event-driven pipeline so a stalled network
// call cannot hang the listener goroutine indefinitely.
const handlerTimeout = 30 * time.Second

// Bot owns the Discord client and routes gateway events to the safety core.
type Bot struct {
	client    bot.Client
	cfg       *config.BotConfig
	db        database.Client
	directory platform.Directory
	feed      platform.ChatFeed
	resolver  *resolver.Resolver
	engine    *moderation.Engine
	states    *monitor.StateStore
	monitor   *monitor.Monitor
	alerts    *Alerts
	locations []monitor.Location
	logger    *zap.Logger
}

// New builds the bot, its Discord client, and the safety core it drives. The
// gateway intents cover message content for the flight feed and presences for
// the companion liveness signal.
func New(
	cfg *config.BotConfig, db database.Client, redisManager *redis.Manager, logger *zap.Logger,
) (*Bot, error) {
	b := &Bot{
		cfg:    cfg,
		db:     db,
		logger: logger.Named("bot"),
	}

	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
				gateway.IntentGuildMessages,
				gateway.IntentGuildPresences,
				gateway.IntentMessageContent,
			),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagGuilds, cache.FlagMembers, cache.FlagPresences),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnGuildMessageCreate:            b.handleGuildMessageCreate,
			OnComponentInteraction:          b.handleComponentInteraction,
			OnModalSubmit:                   b.handleModalSubmit,
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord client: %w", err)
	}

	b.client = client
	b.directory = platform.NewDiscordDirectory(client, snowflake.ID(cfg.Discord.GuildID), logger)
	b.feed = platform.NewDiscordChatFeed(client, logger)
	b.alerts = NewAlerts()
	b.resolver = resolver.New(b.directory, logger)

	draftClient, err := redisManager.GetClient(redis.SessionDBIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to get wizard draft client: %w", err)
	}

	drafts := moderation.NewDraftStore(
		draftClient,
		time.Duration(cfg.Moderation.WizardTimeoutMinutes)*time.Minute,
		logger,
	)

	b.engine = moderation.NewEngine(
		b.directory, b.feed,
		db.Model().Warning(), db.Model().Case(),
		drafts, b.alerts,
		moderation.Config{
			WorkspaceID:       cfg.Discord.GuildID,
			AlertChannelID:    snowflake.ID(cfg.Discord.AlertChannelID),
			AuditChannelID:    snowflake.ID(cfg.Discord.AuditChannelID),
			AccessRoleID:      snowflake.ID(cfg.Discord.AccessRoleID),
			DefaultWindowDays: cfg.Moderation.DefaultWindowDays,
			WarnExpiryDays:    cfg.Moderation.WarnExpiryDays,
		},
		logger,
	)

	stateClient, err := redisManager.GetClient(redis.MonitorDBIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to get liveness state client: %w", err)
	}

	b.states = monitor.NewStateStore(stateClient)

	return b, nil
}

// Client exposes the underlying Discord client.
func (b *Bot) Client() bot.Client {
	return b.client
}

// Start resolves the monitored location channels, registers the guild
// commands, opens the gateway, and launches the liveness monitor. The monitor
// stops when ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	locations, err := monitor.ResolveLocations(
		ctx, b.client.Rest(),
		snowflake.ID(b.cfg.Discord.GuildID),
		snowflake.ID(b.cfg.Discord.LocationCategoryID),
		b.cfg.Monitor.Locations,
		b.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve location channels: %w", err)
	}

	b.locations = locations

	b.logger.Info("Registering commands")

	guildID := snowflake.ID(b.cfg.Discord.GuildID)

	_, err = b.client.Rest().SetGuildCommands(
		b.client.ApplicationID(), guildID, b.commands())
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.Info("Starting bot")

	if err := b.client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	b.monitor = monitor.New(
		b.directory, b.feed, b.states,
		NewLivenessNotifier(b.feed, b.alerts),
		monitor.Config{
			Interval:        time.Duration(b.cfg.Monitor.IntervalMinutes) * time.Minute,
			CheckTimeout:    time.Duration(b.cfg.Monitor.CheckTimeoutSeconds) * time.Second,
			HistoryLimit:    b.cfg.Monitor.HistoryLimit,
			HostMarker:      b.cfg.Monitor.HostMarker,
			CompanionRoleID: snowflake.ID(b.cfg.Monitor.CompanionRoleID),
			CompanionPrefix: b.cfg.Monitor.CompanionPrefix,
			Locations:       locations,
		},
		b.logger,
	)

	go b.monitor.Run(ctx)

	return nil
}

// Close gracefully shuts down the Discord gateway connection.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.client.Close(ctx)
}

// handleGuildMessageCreate feeds flight-channel lines through the arrival
// pipeline: parse, resolve, and open a case when nobody matches. Parse
// misses are expected and silent.
func (b *Bot) handleGuildMessageCreate(event *events.GuildMessageCreate) {
	if uint64(event.ChannelID) != b.cfg.Discord.FlightChannelID {
		return
	}

	// The flight feed is relayed by another bot, so bot authors are fine;
	// only our own posts are skipped.
	if event.Message.Author.ID == b.client.ApplicationID() {
		return
	}

	e, ok := arrival.Parse(event.Message.Content, event.Message.CreatedAt)
	if !ok {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		matches, err := b.resolver.Resolve(ctx, e)
		if err != nil {
			b.logger.Error("Failed to resolve arrival", zap.Error(err))
			return
		}

		if len(matches) > 0 {
			b.logger.Info("Arrival resolved",
				zap.String("traveler", e.TravelerName),
				zap.Int("matches", len(matches)))

			return
		}

		if _, err := b.engine.OpenCase(ctx, e); err != nil {
			b.logger.Error("Failed to open case", zap.Error(err))
		}
	}()
}

// handleComponentInteraction routes case and wizard controls. Every control
// dispatches by (case ID, action) decoded from its custom ID.
func (b *Bot) handleComponentInteraction(event *events.ComponentInteractionCreate) {
	caseID, action, err := moderation.ParseCustomID(event.Data.CustomID())
	if err != nil {
		// Not one of ours.
		return
	}

	if !b.isModerator(event.Member().RoleIDs) {
		b.respondEphemeral(event, "You do not have permission to act on cases.")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		moderatorID := event.User().ID

		switch action {
		case moderation.ActionAdmit:
			b.showAdmitConfirm(event, caseID)
		case moderation.ActionAdmitConfirm:
			b.runAdmit(ctx, event, caseID, moderatorID)
		case moderation.ActionAdmitCancel:
			b.showAlert(event, caseID)
		case moderation.ActionInvestigate:
			b.runInvestigate(ctx, event, caseID, moderatorID)
		case moderation.ActionWarn, moderation.ActionKick, moderation.ActionBan:
			b.startWizard(ctx, event, caseID, moderation.PunishmentKind(action), moderatorID)
		case moderation.ActionTarget:
			b.selectTarget(ctx, event, caseID)
		case moderation.ActionDuration:
			b.selectDuration(ctx, event, caseID)
		case moderation.ActionReason:
			b.selectReason(ctx, event, caseID)
		case moderation.ActionSubmit:
			b.runSubmit(ctx, event, caseID, moderatorID)
		case moderation.ActionCancel:
			b.cancelWizard(ctx, event, caseID)
		case moderation.ActionCustomReason:
			// Arrives via modal submit, not a component.
		}
	}()
}

// handleModalSubmit collects the free-text custom reason for a wizard.
func (b *Bot) handleModalSubmit(event *events.ModalSubmitInteractionCreate) {
	caseID, action, err := moderation.ParseCustomID(event.Data.CustomID)
	if err != nil || action != moderation.ActionCustomReason {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		reason := event.Data.Text(constants.CustomReasonInputCustomID)

		draft, err := b.engine.UpdateDraft(ctx, caseID, func(d *moderation.Draft) {
			d.Reason = reason
		})
		if err != nil {
			b.logger.Warn("Failed to set custom reason", zap.Error(err))
			return
		}

		if err := event.UpdateMessage(b.alerts.WizardUpdate(draft)); err != nil {
			b.logger.Error("Failed to update wizard", zap.Error(err))
		}
	}()
}

func (b *Bot) showAdmitConfirm(event *events.ComponentInteractionCreate, caseID string) {
	c, err := b.engine.Case(caseID)
	if err != nil {
		b.respondEphemeral(event, "This case is no longer open.")
		return
	}

	if err := event.UpdateMessage(b.alerts.AdmitConfirm(&c)); err != nil {
		b.logger.Error("Failed to show admit confirm", zap.Error(err))
	}
}

func (b *Bot) showAlert(event *events.ComponentInteractionCreate, caseID string) {
	c, err := b.engine.Case(caseID)
	if err != nil {
		b.respondEphemeral(event, "This case is no longer open.")
		return
	}

	if err := event.UpdateMessage(b.alerts.AlertUpdate(&c)); err != nil {
		b.logger.Error("Failed to restore alert", zap.Error(err))
	}
}

// runAdmit disables the alert controls first, then closes the case. The
// engine re-renders the alert afterwards.
func (b *Bot) runAdmit(
	ctx context.Context, event *events.ComponentInteractionCreate, caseID string, moderatorID snowflake.ID,
) {
	if err := event.UpdateMessage(b.alerts.Processing()); err != nil {
		b.logger.Error("Failed to disable alert controls", zap.Error(err))
		return
	}

	if err := b.engine.Admit(ctx, caseID, moderatorID); err != nil {
		b.followupEphemeral(event, fmt.Sprintf("Admit failed: %s", err))
	}
}

func (b *Bot) runInvestigate(
	ctx context.Context, event *events.ComponentInteractionCreate, caseID string, moderatorID snowflake.ID,
) {
	if err := event.DeferUpdateMessage(); err != nil {
		b.logger.Error("Failed to defer interaction", zap.Error(err))
		return
	}

	if err := b.engine.Investigate(ctx, caseID, moderatorID); err != nil {
		b.followupEphemeral(event, fmt.Sprintf("Investigate failed: %s", err))
	}
}

func (b *Bot) startWizard(
	ctx context.Context, event *events.ComponentInteractionCreate,
	caseID string, kind moderation.PunishmentKind, moderatorID snowflake.ID,
) {
	draft, err := b.engine.StartWizard(ctx, caseID, kind, moderatorID)
	if err != nil {
		b.respondEphemeral(event, fmt.Sprintf("Could not start wizard: %s", err))
		return
	}

	if err := event.CreateMessage(b.alerts.WizardMessage(draft)); err != nil {
		b.logger.Error("Failed to open wizard", zap.Error(err))
	}
}

func (b *Bot) selectTarget(ctx context.Context, event *events.ComponentInteractionCreate, caseID string) {
	data := event.UserSelectMenuInteractionData()
	if len(data.Values) == 0 {
		return
	}

	targetID := data.Values[0]

	draft, err := b.engine.UpdateDraft(ctx, caseID, func(d *moderation.Draft) {
		d.TargetID = targetID
	})
	if err != nil {
		b.respondEphemeral(event, "The wizard has expired. Start again from the case alert.")
		return
	}

	if err := event.UpdateMessage(b.alerts.WizardUpdate(draft)); err != nil {
		b.logger.Error("Failed to update wizard", zap.Error(err))
	}
}

func (b *Bot) selectDuration(ctx context.Context, event *events.ComponentInteractionCreate, caseID string) {
	data := event.StringSelectMenuInteractionData()
	if len(data.Values) == 0 {
		return
	}

	duration := data.Values[0]

	draft, err := b.engine.UpdateDraft(ctx, caseID, func(d *moderation.Draft) {
		d.Duration = duration
	})
	if err != nil {
		b.respondEphemeral(event, "The wizard has expired. Start again from the case alert.")
		return
	}

	if err := event.UpdateMessage(b.alerts.WizardUpdate(draft)); err != nil {
		b.logger.Error("Failed to update wizard", zap.Error(err))
	}
}

func (b *Bot) selectReason(ctx context.Context, event *events.ComponentInteractionCreate, caseID string) {
	data := event.StringSelectMenuInteractionData()
	if len(data.Values) == 0 {
		return
	}

	value := data.Values[0]

	if value == moderation.CustomReasonKey {
		if err := event.Modal(b.alerts.CustomReasonModal(caseID)); err != nil {
			b.logger.Error("Failed to open custom reason modal", zap.Error(err))
		}

		return
	}

	draft, err := b.engine.UpdateDraft(ctx, caseID, func(d *moderation.Draft) {
		d.Reason = value
	})
	if err != nil {
		b.respondEphemeral(event, "The wizard has expired. Start again from the case alert.")
		return
	}

	if err := event.UpdateMessage(b.alerts.WizardUpdate(draft)); err != nil {
		b.logger.Error("Failed to update wizard", zap.Error(err))
	}
}

// runSubmit disables the wizard controls before any side effect executes,
// then reports the outcome, success or failure, as an ephemeral followup.
func (b *Bot) runSubmit(
	ctx context.Context, event *events.ComponentInteractionCreate, caseID string, moderatorID snowflake.ID,
) {
	if err := event.UpdateMessage(b.alerts.Processing()); err != nil {
		b.logger.Error("Failed to disable wizard controls", zap.Error(err))
		return
	}

	if err := b.engine.Submit(ctx, caseID, moderatorID); err != nil {
		b.followupEphemeral(event, fmt.Sprintf("Submission problem: %s", err))
		return
	}

	b.followupEphemeral(event, fmt.Sprintf("Case %s closed.", caseID))
}

func (b *Bot) cancelWizard(ctx context.Context, event *events.ComponentInteractionCreate, caseID string) {
	if err := b.engine.CancelWizard(ctx, caseID); err != nil {
		b.logger.Warn("Failed to cancel wizard", zap.Error(err))
	}

	if err := event.UpdateMessage(b.alerts.WizardClosed("Wizard cancelled, no action taken.")); err != nil {
		b.logger.Error("Failed to close wizard", zap.Error(err))
	}
}

// isModerator reports whether any of the member's roles is configured as a
// moderator role.
func (b *Bot) isModerator(roleIDs []snowflake.ID) bool {
	for _, roleID := range roleIDs {
		for _, allowed := range b.cfg.Discord.ModeratorRoleIDs {
			if uint64(roleID) == allowed {
				return true
			}
		}
	}

	return false
}

func (b *Bot) respondEphemeral(event *events.ComponentInteractionCreate, content string) {
	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(content).
		SetEphemeral(true).
		Build())
	if err != nil {
		b.logger.Error("Failed to respond to interaction", zap.Error(err))
	}
}

func (b *Bot) followupEphemeral(event *events.ComponentInteractionCreate, content string) {
	_, err := event.Client().Rest().CreateFollowupMessage(
		event.ApplicationID(), event.Token(),
		discord.NewMessageCreateBuilder().
			SetContent(content).
			SetEphemeral(true).
			Build())
	if err != nil {
		b.logger.Error("Failed to send followup", zap.Error(err))
	}
}

// LivenessNotifier posts transition messages to location channels on behalf
// of the monitor.
type LivenessNotifier struct {
	feed   platform.ChatFeed
	alerts *Alerts
}

// NewLivenessNotifier creates the monitor's notifier.
func NewLivenessNotifier(feed platform.ChatFeed, alerts *Alerts) *LivenessNotifier {
	return &LivenessNotifier{feed: feed, alerts: alerts}
}

// NotifyTransition posts the transition message to the location's channel.
func (n *LivenessNotifier) NotifyTransition(ctx context.Context, loc monitor.Location, online bool) error {
	_, err := n.feed.SendMessage(ctx, loc.ChannelID, n.alerts.TransitionMessage(loc, online))
	return err
}
