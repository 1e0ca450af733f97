package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/dodogate/dodogate/internal/arrival"
	"github.com/dodogate/dodogate/internal/bot/constants"
	"github.com/dodogate/dodogate/internal/database/models"
	"github.com/dodogate/dodogate/internal/monitor"
	"go.uber.org/zap"
)

// accessCodeScanLimit bounds the channel history read for /accesscode.
const accessCodeScanLimit = 50

// commands builds the guild command set registered at startup.
func (b *Bot) commands() []discord.ApplicationCommandCreate {
	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        constants.WarningsCommandName,
			Description: "Inspect and correct a member's warning ledger",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{
					Name:        constants.WarningsListSubcommand,
					Description: "List a member's warnings in a trailing window",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionUser{
							Name:        constants.MemberOptionName,
							Description: "Member to inspect",
							Required:    true,
						},
						discord.ApplicationCommandOptionInt{
							Name:        constants.DaysOptionName,
							Description: "Window size in days",
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        constants.WarningsRemoveSubcommand,
					Description: "Remove a member's most recent warning",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionUser{
							Name:        constants.MemberOptionName,
							Description: "Member to correct",
							Required:    true,
						},
						discord.ApplicationCommandOptionString{
							Name:        constants.ReasonOptionName,
							Description: "Why the warning is being removed",
						},
					},
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.CasesCommandName,
			Description: "Look up archived moderation cases",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        constants.CaseOptionName,
					Description: "Case ID; omit to list the most recent cases",
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.ParseCommandName,
			Description: "Run the arrival parser against a chat line",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        constants.LineOptionName,
					Description: "Flight-feed line to parse",
					Required:    true,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.DiagnosticsCommandName,
			Description: "Check parser health and channel reachability",
		},
		discord.SlashCommandCreate{
			Name:        constants.AccessCodeCommandName,
			Description: "Find the latest access code posted for a location",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        constants.LocationOptionName,
					Description: "Location name",
					Required:    true,
					Choices:     b.locationChoices(),
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.LocationsCommandName,
			Description: "Show the last observed liveness of every location",
		},
	}
}

func (b *Bot) locationChoices() []discord.ApplicationCommandOptionChoiceString {
	choices := make([]discord.ApplicationCommandOptionChoiceString, 0, len(b.locations))
	for _, loc := range b.locations {
		choices = append(choices, discord.ApplicationCommandOptionChoiceString{
			Name:  loc.Name,
			Value: loc.Name,
		})
	}

	return choices
}

// handleApplicationCommandInteraction routes the operator slash commands.
// Every command is moderator-only and replies ephemerally.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	if !b.isModerator(event.Member().RoleIDs) {
		b.replyEphemeral(event, "You do not have permission to use this command.")
		return
	}

	if err := event.DeferCreateMessage(true); err != nil {
		b.logger.Error("Failed to defer command", zap.Error(err))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		data := event.SlashCommandInteractionData()

		switch data.CommandName() {
		case constants.WarningsCommandName:
			b.handleWarnings(ctx, event, data)
		case constants.CasesCommandName:
			b.handleCases(ctx, event, data)
		case constants.ParseCommandName:
			b.handleParse(event, data)
		case constants.DiagnosticsCommandName:
			b.handleDiagnostics(ctx, event)
		case constants.AccessCodeCommandName:
			b.handleAccessCode(ctx, event, data)
		case constants.LocationsCommandName:
			b.handleLocations(ctx, event)
		}
	}()
}

func (b *Bot) handleWarnings(
	ctx context.Context, event *events.ApplicationCommandInteractionCreate,
	data discord.SlashCommandInteractionData,
) {
	if data.SubCommandName == nil {
		return
	}

	switch *data.SubCommandName {
	case constants.WarningsListSubcommand:
		b.handleWarningsList(ctx, event, data)
	case constants.WarningsRemoveSubcommand:
		b.handleWarningsRemove(ctx, event, data)
	}
}

func (b *Bot) handleWarningsList(
	ctx context.Context, event *events.ApplicationCommandInteractionCreate,
	data discord.SlashCommandInteractionData,
) {
	memberID := data.Snowflake(constants.MemberOptionName)

	days := b.cfg.Moderation.DefaultWindowDays
	if v, ok := data.OptInt(constants.DaysOptionName); ok {
		days = v
	}

	if days < 1 || days > b.cfg.Moderation.MaxWindowDays {
		b.updateResponse(event, fmt.Sprintf(
			"Window must be between 1 and %d days.", b.cfg.Moderation.MaxWindowDays))

		return
	}

	since := time.Now().AddDate(0, 0, -days)

	records, err := b.db.Model().Warning().ListSince(
		ctx, uint64(memberID), b.cfg.Discord.GuildID, since, constants.WarningsListLimit)
	if err != nil {
		b.logger.Error("Failed to list warnings", zap.Error(err))
		b.updateResponse(event, "Failed to read the warning ledger.")

		return
	}

	if len(records) == 0 {
		b.updateResponse(event, fmt.Sprintf(
			"<@%d> has no warnings in the last %d days.", memberID, days))

		return
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Warnings for <@%d> in the last %d days:\n", memberID, days)

	for _, r := range records {
		fmt.Fprintf(&sb, "- <t:%d:d> by <@%d>: %s (case %s)\n",
			r.IssuedAt.Unix(), r.ModeratorID, r.ReasonText, r.CaseID)
	}

	b.updateResponse(event, sb.String())
}

// handleWarningsRemove deletes the member's most recent warning, restores the
// access role the warning revoked, and tells the member. Role restore and DM
// are best effort; the ledger deletion is the authoritative step.
func (b *Bot) handleWarningsRemove(
	ctx context.Context, event *events.ApplicationCommandInteractionCreate,
	data discord.SlashCommandInteractionData,
) {
	memberID := data.Snowflake(constants.MemberOptionName)

	reason, ok := data.OptString(constants.ReasonOptionName)
	if !ok {
		reason = "warning removed by moderator"
	}

	removed, err := b.db.Model().Warning().RemoveLatest(ctx, uint64(memberID), b.cfg.Discord.GuildID)
	if err != nil {
		if errors.Is(err, models.ErrNoWarnings) {
			b.updateResponse(event, fmt.Sprintf("<@%d> has no warnings on record.", memberID))
			return
		}

		b.logger.Error("Failed to remove warning", zap.Error(err))
		b.updateResponse(event, "Failed to update the warning ledger.")

		return
	}

	if roleID := snowflake.ID(b.cfg.Discord.AccessRoleID); roleID != 0 {
		if err := b.directory.AddRole(ctx, memberID, roleID, reason); err != nil {
			b.logger.Warn("Failed to restore access role",
				zap.Uint64("memberID", uint64(memberID)), zap.Error(err))
		}
	}

	dm := fmt.Sprintf("Your warning from <t:%d:d> has been removed: %s", removed.IssuedAt.Unix(), reason)
	if err := b.directory.SendDirectMessage(ctx, memberID, dm); err != nil {
		b.logger.Debug("Failed to notify member of removed warning", zap.Error(err))
	}

	b.updateResponse(event, fmt.Sprintf(
		"Removed <@%d>'s latest warning from <t:%d:d> (case %s): %s",
		memberID, removed.IssuedAt.Unix(), removed.CaseID, removed.ReasonText))
}

// handleCases shows one archived case by ID, or the workspace's most recent
// closures when no ID is given.
func (b *Bot) handleCases(
	ctx context.Context, event *events.ApplicationCommandInteractionCreate,
	data discord.SlashCommandInteractionData,
) {
	if caseID, ok := data.OptString(constants.CaseOptionName); ok {
		record, err := b.db.Model().Case().Get(ctx, caseID)
		if err != nil {
			if errors.Is(err, models.ErrCaseNotFound) {
				b.updateResponse(event, fmt.Sprintf("No archived case %q.", caseID))
				return
			}

			b.logger.Error("Failed to look up case", zap.Error(err))
			b.updateResponse(event, "Failed to read the case archive.")

			return
		}

		b.updateResponse(event, fmt.Sprintf(
			"Case %s: `%s` from `%s` joining `%s`\nResolution: %s by <@%d> at <t:%d:f>\nReason: %s",
			record.CaseID, record.TravelerName, record.OriginLocation, record.DestinationLocation,
			record.Resolution, record.ModeratorID, record.ClosedAt.Unix(), record.Reason))

		return
	}

	records, err := b.db.Model().Case().ListRecent(ctx, b.cfg.Discord.GuildID, constants.CasesListLimit)
	if err != nil {
		b.logger.Error("Failed to list cases", zap.Error(err))
		b.updateResponse(event, "Failed to read the case archive.")

		return
	}

	if len(records) == 0 {
		b.updateResponse(event, "No cases have been archived yet.")
		return
	}

	var sb strings.Builder

	sb.WriteString("Most recently closed cases:\n")

	for _, r := range records {
		fmt.Fprintf(&sb, "- %s: `%s` %s at <t:%d:d>\n",
			r.CaseID, r.TravelerName, r.Resolution, r.ClosedAt.Unix())
	}

	b.updateResponse(event, sb.String())
}

func (b *Bot) handleParse(
	event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData,
) {
	line := data.String(constants.LineOptionName)

	e, ok := arrival.Parse(line, time.Now())
	if !ok {
		b.updateResponse(event, "No arrival recognized in that line.")
		return
	}

	b.updateResponse(event, fmt.Sprintf(
		"Traveler: `%s`\nFrom: `%s`\nJoining: `%s`",
		e.TravelerName, e.OriginLocation, e.DestinationLocation))
}

// handleDiagnostics runs a canned line through the parser and probes each
// configured channel for reachability.
func (b *Bot) handleDiagnostics(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	var sb strings.Builder

	_, ok := arrival.Parse("[00:00] Dodo from Nowhere is joining Somewhere.", time.Now())
	if ok {
		sb.WriteString("Parser: OK\n")
	} else {
		sb.WriteString("Parser: FAIL\n")
	}

	channels := []struct {
		name string
		id   uint64
	}{
		{"Flight channel", b.cfg.Discord.FlightChannelID},
		{"Alert channel", b.cfg.Discord.AlertChannelID},
		{"Audit channel", b.cfg.Discord.AuditChannelID},
	}

	for _, ch := range channels {
		if _, err := b.feed.ListRecentMessages(ctx, snowflake.ID(ch.id), 1); err != nil {
			fmt.Fprintf(&sb, "%s: FAIL (%s)\n", ch.name, err)
		} else {
			fmt.Fprintf(&sb, "%s: OK\n", ch.name)
		}
	}

	b.updateResponse(event, sb.String())
}

func (b *Bot) handleAccessCode(
	ctx context.Context, event *events.ApplicationCommandInteractionCreate,
	data discord.SlashCommandInteractionData,
) {
	name := data.String(constants.LocationOptionName)

	var loc *monitor.Location

	for i := range b.locations {
		if strings.EqualFold(b.locations[i].Name, name) {
			loc = &b.locations[i]
			break
		}
	}

	if loc == nil {
		b.updateResponse(event, fmt.Sprintf("Unknown location %q.", name))
		return
	}

	messages, err := b.feed.ListRecentMessages(ctx, loc.ChannelID, accessCodeScanLimit)
	if err != nil {
		b.logger.Error("Failed to scan location channel", zap.Error(err))
		b.updateResponse(event, "Could not read the location channel.")

		return
	}

	// Newest first, so the first hit is the latest code. Only the relay bot
	// posts codes; human messages match the pattern too easily.
	for _, msg := range messages {
		if !msg.AuthorBot {
			continue
		}

		if code := monitor.AccessCodePattern.FindString(msg.Content); code != "" {
			b.updateResponse(event, fmt.Sprintf("Latest access code for %s: `%s`", loc.Name, code))
			return
		}
	}

	b.updateResponse(event, fmt.Sprintf(
		"No access code found in the last %d messages for %s.", accessCodeScanLimit, loc.Name))
}

func (b *Bot) handleLocations(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	var sb strings.Builder

	for _, loc := range b.locations {
		state, known, err := b.states.Get(ctx, loc.Name)

		switch {
		case err != nil:
			fmt.Fprintf(&sb, "%s: state unavailable\n", loc.Name)
		case !known:
			fmt.Fprintf(&sb, "%s: not yet observed\n", loc.Name)
		case state.Online:
			fmt.Fprintf(&sb, "%s: online (seen <t:%d:R>)\n", loc.Name, state.LastObservedAt.Unix())
		default:
			fmt.Fprintf(&sb, "%s: offline (seen <t:%d:R>)\n", loc.Name, state.LastObservedAt.Unix())
		}
	}

	if sb.Len() == 0 {
		sb.WriteString("No locations configured.")
	}

	b.updateResponse(event, sb.String())
}

func (b *Bot) replyEphemeral(event *events.ApplicationCommandInteractionCreate, content string) {
	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(content).
		SetEphemeral(true).
		Build())
	if err != nil {
		b.logger.Error("Failed to respond to command", zap.Error(err))
	}
}

func (b *Bot) updateResponse(event *events.ApplicationCommandInteractionCreate, content string) {
	_, err := event.Client().Rest().UpdateInteractionResponse(
		event.ApplicationID(), event.Token(),
		discord.NewMessageUpdateBuilder().
			SetContent(content).
			Build())
	if err != nil {
		b.logger.Error("Failed to update command response", zap.Error(err))
	}
}
