package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// memberPageSize is the roster page size for member listing requests.
const memberPageSize = 1000

// Discord JSON error codes that map to ErrPermission.
const (
	jsonCodeMissingAccess      = 50001
	jsonCodeMissingPermissions = 50013
)

// DiscordDirectory implements Directory against a single guild through disgo.
type DiscordDirectory struct {
	client  bot.Client
	guildID snowflake.ID
	logger  *zap.Logger
}

// NewDiscordDirectory creates a directory adapter bound to one guild.
func NewDiscordDirectory(client bot.Client, guildID snowflake.ID, logger *zap.Logger) *DiscordDirectory {
	return &DiscordDirectory{
		client:  client,
		guildID: guildID,
		logger:  logger.Named("directory"),
	}
}

// ListMembers pages through the guild roster and resolves presence from the
// gateway cache. Members without a cached presence are reported offline.
func (d *DiscordDirectory) ListMembers(ctx context.Context) ([]Member, error) {
	var members []Member

	var after snowflake.ID
	for {
		chunk, err := d.client.Rest().GetMembers(d.guildID, memberPageSize, after, rest.WithCtx(ctx))
		if err != nil {
			return nil, wrapRestErr("failed to list members", err)
		}

		for _, m := range chunk {
			members = append(members, d.resolveMember(m))
		}

		if len(chunk) < memberPageSize {
			break
		}

		after = chunk[len(chunk)-1].User.ID
	}

	return members, nil
}

// GetMember resolves a single member by ID.
func (d *DiscordDirectory) GetMember(ctx context.Context, id snowflake.ID) (Member, error) {
	m, err := d.client.Rest().GetMember(d.guildID, id, rest.WithCtx(ctx))
	if err != nil {
		return Member{}, wrapRestErr(fmt.Sprintf("failed to get member %d", id), err)
	}

	return d.resolveMember(*m), nil
}

// AddRole grants a role with an audit log reason.
func (d *DiscordDirectory) AddRole(ctx context.Context, memberID, roleID snowflake.ID, reason string) error {
	err := d.client.Rest().AddMemberRole(d.guildID, memberID, roleID, rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return wrapRestErr("failed to add role", err)
	}

	return nil
}

// RemoveRole revokes a role with an audit log reason.
func (d *DiscordDirectory) RemoveRole(ctx context.Context, memberID, roleID snowflake.ID, reason string) error {
	err := d.client.Rest().RemoveMemberRole(d.guildID, memberID, roleID, rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return wrapRestErr("failed to remove role", err)
	}

	return nil
}

// Kick removes the member from the guild.
func (d *DiscordDirectory) Kick(ctx context.Context, memberID snowflake.ID, reason string) error {
	err := d.client.Rest().RemoveMember(d.guildID, memberID, rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return wrapRestErr("failed to kick member", err)
	}

	return nil
}

// Ban permanently removes the member. No message history is deleted.
func (d *DiscordDirectory) Ban(ctx context.Context, memberID snowflake.ID, reason string) error {
	err := d.client.Rest().AddBan(d.guildID, memberID, 0, rest.WithCtx(ctx), rest.WithReason(reason))
	if err != nil {
		return wrapRestErr("failed to ban member", err)
	}

	return nil
}

// SendDirectMessage opens a DM channel and delivers the content.
func (d *DiscordDirectory) SendDirectMessage(ctx context.Context, memberID snowflake.ID, content string) error {
	channel, err := d.client.Rest().CreateDMChannel(memberID, rest.WithCtx(ctx))
	if err != nil {
		return wrapRestErr("failed to open DM channel", err)
	}

	_, err = d.client.Rest().CreateMessage(channel.ID(), discord.NewMessageCreateBuilder().
		SetContent(content).
		Build(), rest.WithCtx(ctx))
	if err != nil {
		return wrapRestErr("failed to send DM", err)
	}

	return nil
}

// resolveMember converts a disgo member into the adapter's resolved type.
func (d *DiscordDirectory) resolveMember(m discord.Member) Member {
	online := false
	if presence, ok := d.client.Caches().Presence(d.guildID, m.User.ID); ok {
		online = presence.Status == discord.OnlineStatusOnline || presence.Status == discord.OnlineStatusIdle
	}

	return Member{
		ID:          m.User.ID,
		Username:    m.User.Username,
		DisplayName: m.EffectiveName(),
		IsBot:       m.User.Bot,
		Online:      online,
		RoleIDs:     m.RoleIDs,
	}
}

// DiscordChatFeed implements ChatFeed through disgo's REST client.
type DiscordChatFeed struct {
	client bot.Client
	logger *zap.Logger
}

// NewDiscordChatFeed creates a chat-feed transport.
func NewDiscordChatFeed(client bot.Client, logger *zap.Logger) *DiscordChatFeed {
	return &DiscordChatFeed{
		client: client,
		logger: logger.Named("chatfeed"),
	}
}

// ListRecentMessages fetches up to limit messages from a channel, newest first.
func (f *DiscordChatFeed) ListRecentMessages(ctx context.Context, channelID snowflake.ID, limit int) ([]Message, error) {
	msgs, err := f.client.Rest().GetMessages(channelID, 0, 0, 0, limit, rest.WithCtx(ctx))
	if err != nil {
		return nil, wrapRestErr("failed to list messages", err)
	}

	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Message{
			ID:        m.ID,
			ChannelID: m.ChannelID,
			AuthorID:  m.Author.ID,
			AuthorBot: m.Author.Bot,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}

	return out, nil
}

// SendMessage posts a message and returns its reference.
func (f *DiscordChatFeed) SendMessage(ctx context.Context, channelID snowflake.ID, message discord.MessageCreate) (MessageRef, error) {
	m, err := f.client.Rest().CreateMessage(channelID, message, rest.WithCtx(ctx))
	if err != nil {
		return MessageRef{}, wrapRestErr("failed to send message", err)
	}

	return MessageRef{ChannelID: m.ChannelID, MessageID: m.ID}, nil
}

// EditMessage rewrites a previously posted message.
func (f *DiscordChatFeed) EditMessage(ctx context.Context, ref MessageRef, message discord.MessageUpdate) error {
	_, err := f.client.Rest().UpdateMessage(ref.ChannelID, ref.MessageID, message, rest.WithCtx(ctx))
	if err != nil {
		return wrapRestErr("failed to edit message", err)
	}

	return nil
}

// wrapRestErr wraps a disgo REST error, folding Discord permission error codes
// into ErrPermission so callers can branch without inspecting the API error.
func wrapRestErr(msg string, err error) error {
	var restErr rest.Error
	if errors.As(err, &restErr) {
		switch restErr.Code {
		case jsonCodeMissingAccess, jsonCodeMissingPermissions:
			return fmt.Errorf("%s: %w: %s", msg, ErrPermission, restErr.Message)
		}
	}

	return fmt.Errorf("%s: %w", msg, err)
}
