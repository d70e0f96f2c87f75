// Package platform models the chat platform the bot operates against. The
// moderation core never talks to the network itself; it consumes this
// interface and leaves the wire client to the command shell.
package platform

import (
	"context"
	"time"
)

// Guild is a community the bot is present in.
type Guild struct {
	ID      string
	Name    string
	OwnerID string
}

// Role is a guild role. Position orders the role hierarchy; higher means more
// privileged.
type Role struct {
	ID       string
	Name     string
	Position int
}

// User identifies a platform account.
type User struct {
	ID  string
	Tag string
}

// Member is a user joined to a guild together with their role set.
type Member struct {
	User    User
	RoleIDs []string
}

// HasRole reports whether the member currently holds the given role.
func (m Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Ban is an active guild ban.
type Ban struct {
	UserID string
	Reason string
}

// Field is a named value attached to a posted message.
type Field struct {
	Name  string
	Value string
}

// Button is an interactive affordance attached to a posted message.
type Button struct {
	ID       string
	Label    string
	Disabled bool
}

// Message is a record posted to a channel. ThreadID is non-empty once a
// sub-thread has been attached.
type Message struct {
	ID        string
	ChannelID string
	Title     string
	Body      string
	Fields    []Field
	Buttons   []Button
	ThreadID  string
	CreatedAt time.Time
}

// Fieldv returns the value of the named field, or "" when absent.
func (m Message) Fieldv(name string) string {
	for _, f := range m.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Client is the full surface the moderation core needs from the platform.
// Implementations must resolve deleted or unreachable entities to ErrNotFound
// rather than hanging, and must honor context cancellation.
type Client interface {
	// Guilds enumerates every guild the bot is present in.
	Guilds(ctx context.Context) ([]Guild, error)
	Guild(ctx context.Context, guildID string) (Guild, error)

	Member(ctx context.Context, guildID, userID string) (Member, error)
	Role(ctx context.Context, guildID, roleID string) (Role, error)
	AddRole(ctx context.Context, guildID, userID, roleID, reason string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) error

	Ban(ctx context.Context, guildID, userID string) (Ban, error)
	CreateBan(ctx context.Context, guildID, userID, reason string) error
	RemoveBan(ctx context.Context, guildID, userID, reason string) error
	Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error

	SendDM(ctx context.Context, userID, content string) error

	PostMessage(ctx context.Context, channelID string, msg Message) (Message, error)
	EditMessageButtons(ctx context.Context, channelID, messageID string, buttons []Button) error
	// RecentMessages returns up to limit messages from the channel, newest
	// first.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error)

	StartThread(ctx context.Context, channelID, messageID, name string) (string, error)
	PostThreadMessage(ctx context.Context, threadID, content string) error
}
