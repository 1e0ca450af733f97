// Package platform defines the external collaborator surfaces of the safety
// core: the member directory of the community workspace and the chat-feed
// transport. Both are backed by Discord in production but kept behind
// interfaces so the moderation engine, resolver, and monitor can be exercised
// without a gateway connection.
package platform

import (
	"context"
	"errors"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

// ErrPermission indicates the bot lacks the privilege for a directory action.
// Callers report these to the acting moderator and leave state untouched so a
// better-privileged moderator can retry.
var ErrPermission = errors.New("insufficient permission")

// Member is the single resolved reference type returned by the directory.
// Callers never branch on raw-ID-versus-member unions.
type Member struct {
	ID          snowflake.ID
	Username    string
	DisplayName string
	IsBot       bool
	Online      bool
	RoleIDs     []snowflake.ID
}

// HasRole reports whether the member currently holds the given role.
func (m Member) HasRole(roleID snowflake.ID) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}

	return false
}

// Message is one inbound chat-feed message.
type Message struct {
	ID        snowflake.ID
	ChannelID snowflake.ID
	AuthorID  snowflake.ID
	AuthorBot bool
	Content   string
	CreatedAt time.Time
}

// MessageRef locates a previously sent message for later edits.
type MessageRef struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
}

// Directory is a read-mostly view over the workspace's member roster plus the
// privileged removal actions the moderation engine executes.
type Directory interface {
	// ListMembers returns the full roster with presence and role state.
	ListMembers(ctx context.Context) ([]Member, error)
	// GetMember resolves a single member by ID.
	GetMember(ctx context.Context, id snowflake.ID) (Member, error)
	// AddRole grants a role, recording the reason in the workspace audit log.
	AddRole(ctx context.Context, memberID, roleID snowflake.ID, reason string) error
	// RemoveRole revokes a role, recording the reason in the workspace audit log.
	RemoveRole(ctx context.Context, memberID, roleID snowflake.ID, reason string) error
	// Kick removes the member from the workspace.
	Kick(ctx context.Context, memberID snowflake.ID, reason string) error
	// Ban removes the member permanently.
	Ban(ctx context.Context, memberID snowflake.ID, reason string) error
	// SendDirectMessage delivers a private notification. Delivery is
	// best-effort; members may have DMs disabled.
	SendDirectMessage(ctx context.Context, memberID snowflake.ID, content string) error
}

// ChatFeed is the message transport for alert posting, alert editing, and
// bounded channel-history inspection.
type ChatFeed interface {
	// ListRecentMessages returns up to limit messages, newest first.
	ListRecentMessages(ctx context.Context, channelID snowflake.ID, limit int) ([]Message, error)
	// SendMessage posts a message and returns a reference for later edits.
	SendMessage(ctx context.Context, channelID snowflake.ID, message discord.MessageCreate) (MessageRef, error)
	// EditMessage rewrites a previously posted message in place.
	EditMessage(ctx context.Context, ref MessageRef, message discord.MessageUpdate) error
}
