package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/dodogate/dodogate/internal/bot/constants"
	"github.com/dodogate/dodogate/internal/moderation"
	"github.com/dodogate/dodogate/internal/monitor"
)

// Alerts builds every moderator-facing message: case alerts with their
// action controls, the punishment wizard, audit entries, and liveness
// transition posts. It implements the case engine's renderer.
type Alerts struct{}

// NewAlerts creates the message builder.
func NewAlerts() *Alerts {
	return &Alerts{}
}

// Alert renders a freshly opened case alert with its action controls.
func (a *Alerts) Alert(c *moderation.Case) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetEmbeds(a.caseEmbed(c)).
		AddActionRow(a.caseButtons(c)...).
		Build()
}

// AlertUpdate re-renders the alert after a state change. Closed cases keep
// their embed but lose every control.
func (a *Alerts) AlertUpdate(c *moderation.Case) discord.MessageUpdate {
	builder := discord.NewMessageUpdateBuilder().
		SetEmbeds(a.caseEmbed(c))

	if c.Status == moderation.StatusClosed {
		builder.ClearContainerComponents()
	} else {
		builder.SetContainerComponents(discord.NewActionRow(a.caseButtons(c)...))
	}

	return builder.Build()
}

// AdmitConfirm renders the explicit confirm step in front of Admit.
func (a *Alerts) AdmitConfirm(c *moderation.Case) discord.MessageUpdate {
	return discord.NewMessageUpdateBuilder().
		SetEmbeds(a.caseEmbed(c)).
		SetContainerComponents(discord.NewActionRow(
			discord.NewSuccessButton("Confirm admit", moderation.CustomID(c.ID, moderation.ActionAdmitConfirm)),
			discord.NewSecondaryButton("Back", moderation.CustomID(c.ID, moderation.ActionAdmitCancel)),
		)).
		Build()
}

// Processing disables every control on the message before a terminal action
// executes, which is the system's only mutual exclusion.
func (a *Alerts) Processing() discord.MessageUpdate {
	return discord.NewMessageUpdateBuilder().
		SetContent("Processing...").
		ClearContainerComponents().
		Build()
}

// WizardMessage renders the punishment wizard as a new ephemeral message.
func (a *Alerts) WizardMessage(draft *moderation.Draft) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetEmbeds(a.wizardEmbed(draft)).
		AddContainerComponents(a.wizardComponents(draft)...).
		SetEphemeral(true).
		Build()
}

// WizardUpdate re-renders the wizard after a field selection.
func (a *Alerts) WizardUpdate(draft *moderation.Draft) discord.MessageUpdate {
	return discord.NewMessageUpdateBuilder().
		SetEmbeds(a.wizardEmbed(draft)).
		SetContainerComponents(a.wizardComponents(draft)...).
		Build()
}

// WizardClosed replaces the wizard content after submission or cancel.
func (a *Alerts) WizardClosed(text string) discord.MessageUpdate {
	return discord.NewMessageUpdateBuilder().
		SetContent(text).
		SetEmbeds().
		ClearContainerComponents().
		Build()
}

// CustomReasonModal renders the free-text reason prompt.
func (a *Alerts) CustomReasonModal(caseID string) discord.ModalCreate {
	return discord.NewModalCreateBuilder().
		SetCustomID(moderation.CustomID(caseID, moderation.ActionCustomReason)).
		SetTitle("Custom reason").
		AddActionRow(discord.NewTextInput(constants.CustomReasonInputCustomID, discord.TextInputStyleParagraph, "Reason").
			WithRequired(true).
			WithPlaceholder("Describe what happened")).
		Build()
}

// AuditMessage renders a permanent audit log entry.
func (a *Alerts) AuditMessage(entry moderation.AuditEntry) discord.MessageCreate {
	embed := discord.NewEmbedBuilder().
		SetTitlef("Case %s", entry.AuditID).
		SetColor(constants.AuditEmbedColor).
		AddField("Resolution", entry.Resolution.String(), true).
		AddField("Duration", entry.Duration, true).
		AddField("Moderator", fmt.Sprintf("<@%d>", entry.ModeratorID), true).
		AddField("Target", fmt.Sprintf("<@%d>", entry.TargetID), true).
		AddField("Reason", entry.Reason, false).
		SetFooterTextf("origin case %s", entry.CaseID)

	if entry.Resolution == moderation.ResolutionWarned {
		embed.AddField("Warnings in window", fmt.Sprintf("%d", entry.WarningCount), true)
		embed.AddField("Expires", fmt.Sprintf("<t:%d:R>", entry.ExpiresAt.Unix()), true)
	}

	return discord.NewMessageCreateBuilder().
		SetEmbeds(embed.Build()).
		Build()
}

// DirectMessage renders the private notification delivered to a target.
func (a *Alerts) DirectMessage(c *moderation.Case, draft *moderation.Draft) string {
	var action string

	switch draft.Kind {
	case moderation.PunishWarn:
		action = fmt.Sprintf("You have received a warning (duration: %s).", draft.Duration)
	case moderation.PunishKick:
		action = "You have been removed from the community."
	case moderation.PunishBan:
		action = "You have been permanently banned from the community."
	}

	return fmt.Sprintf("%s Reason: %s", action, draft.Reason)
}

// TransitionMessage renders a liveness transition post for a location
// channel.
func (a *Alerts) TransitionMessage(loc monitor.Location, online bool) discord.MessageCreate {
	title := fmt.Sprintf("%s is now offline", loc.Name)
	color := constants.OfflineEmbedColor

	if online {
		title = fmt.Sprintf("%s is back online", loc.Name)
		color = constants.OnlineEmbedColor
	}

	return discord.NewMessageCreateBuilder().
		SetEmbeds(discord.NewEmbedBuilder().
			SetTitle(title).
			SetColor(color).
			SetTimestamp(time.Now()).
			Build()).
		Build()
}

// caseEmbed renders the case's current state.
func (a *Alerts) caseEmbed(c *moderation.Case) discord.Embed {
	color := constants.AlertEmbedColor
	if c.Status == moderation.StatusClosed {
		color = constants.ClosedEmbedColor
	}

	embed := discord.NewEmbedBuilder().
		SetTitlef("Unknown traveler: %s", c.Event.TravelerName).
		SetColor(color).
		AddField("From", c.Event.OriginLocation, true).
		AddField("Joining", c.Event.DestinationLocation, true).
		AddField("Status", c.Status.String(), true).
		SetFooterTextf("case %s", c.ID).
		SetTimestamp(c.Event.ObservedAt)

	if c.Status == moderation.StatusInvestigating && c.InvestigatedBy != 0 {
		embed.AddField("Investigating", fmt.Sprintf("<@%d>", c.InvestigatedBy), true)
	}

	if c.Status == moderation.StatusClosed {
		embed.AddField("Resolution", c.Resolution.String(), true)
		embed.AddField("Moderator", fmt.Sprintf("<@%d>", c.ModeratorID), true)

		if c.ReasonText != "" {
			embed.AddField("Reason", c.ReasonText, false)
		}
	}

	return embed.Build()
}

// caseButtons builds the action row for an open or investigating case.
func (a *Alerts) caseButtons(c *moderation.Case) []discord.InteractiveComponent {
	investigate := discord.NewSecondaryButton("Investigate", moderation.CustomID(c.ID, moderation.ActionInvestigate))
	if c.Status != moderation.StatusOpen {
		investigate = investigate.AsDisabled()
	}

	return []discord.InteractiveComponent{
		discord.NewSuccessButton("Admit", moderation.CustomID(c.ID, moderation.ActionAdmit)),
		investigate,
		discord.NewPrimaryButton("Warn", moderation.CustomID(c.ID, moderation.ActionWarn)),
		discord.NewDangerButton("Kick", moderation.CustomID(c.ID, moderation.ActionKick)),
		discord.NewDangerButton("Ban", moderation.CustomID(c.ID, moderation.ActionBan)),
	}
}

// wizardEmbed summarizes the draft's filled and missing fields.
func (a *Alerts) wizardEmbed(draft *moderation.Draft) discord.Embed {
	target := "not selected"
	if draft.TargetID != 0 {
		target = fmt.Sprintf("<@%d>", draft.TargetID)
	}

	duration := draft.Duration
	if duration == "" {
		duration = "not selected"
	}

	reason := draft.Reason
	if reason == "" {
		reason = "not selected"
	}

	return discord.NewEmbedBuilder().
		SetTitlef("%s wizard", strings.ToUpper(string(draft.Kind))).
		SetColor(constants.AlertEmbedColor).
		AddField("Target", target, true).
		AddField("Duration", duration, true).
		AddField("Reason", reason, false).
		SetFooterTextf("case %s", draft.CaseID).
		Build()
}

// wizardComponents builds the wizard's selectors and controls. The submit
// button stays disabled until every required field is present.
func (a *Alerts) wizardComponents(draft *moderation.Draft) []discord.ContainerComponent {
	components := []discord.ContainerComponent{
		discord.NewActionRow(
			discord.NewUserSelectMenu(moderation.CustomID(draft.CaseID, moderation.ActionTarget), "Select target member"),
		),
	}

	if draft.Kind == moderation.PunishWarn {
		options := make([]discord.StringSelectMenuOption, 0, len(moderation.WarnDurations))
		for _, d := range moderation.WarnDurations {
			options = append(options, discord.NewStringSelectMenuOption(d, d).WithDefault(d == draft.Duration))
		}

		components = append(components, discord.NewActionRow(
			discord.NewStringSelectMenu(
				moderation.CustomID(draft.CaseID, moderation.ActionDuration), "Select duration", options...),
		))
	}

	reasonOptions := make([]discord.StringSelectMenuOption, 0, len(moderation.ReasonTemplates)+1)
	for _, r := range moderation.ReasonTemplates {
		reasonOptions = append(reasonOptions, discord.NewStringSelectMenuOption(r, r).WithDefault(r == draft.Reason))
	}

	reasonOptions = append(reasonOptions,
		discord.NewStringSelectMenuOption("Custom reason...", moderation.CustomReasonKey))

	components = append(components, discord.NewActionRow(
		discord.NewStringSelectMenu(
			moderation.CustomID(draft.CaseID, moderation.ActionReason), "Select reason", reasonOptions...),
	))

	submit := discord.NewDangerButton("Submit", moderation.CustomID(draft.CaseID, moderation.ActionSubmit))
	if !draft.Complete() {
		submit = submit.AsDisabled()
	}

	components = append(components, discord.NewActionRow(
		submit,
		discord.NewSecondaryButton("Cancel", moderation.CustomID(draft.CaseID, moderation.ActionCancel)),
	))

	return components
}
