// Package chat holds the platform-neutral message types shared by the
// transports and the dispatch core, and the segmenter/relay that delivers
// replies within the platform's message length limit.
package chat

import (
	"context"
	"slices"
)

// DefaultMaxLength is the outbound message limit used when none is configured.
const DefaultMaxLength = 2000

// Message is an inbound chat message as seen by the bot.
type Message struct {
	// ID is the platform event ID.
	ID string
	// Author is the opaque, per-account identity of the sender.
	Author string
	// Channel is where replies go (a Matrix room ID, "console", ...).
	Channel string
	// Content is the raw message text including any addressing syntax.
	Content string
	// Mentions lists the identities addressed by the message.
	Mentions []string
}

// MentionsUser reports whether the message addresses userID.
func (m Message) MentionsUser(userID string) bool {
	return slices.Contains(m.Mentions, userID)
}

// Sender delivers one plain-text message to a channel.
type Sender interface {
	SendText(ctx context.Context, channel, text string) error
}

// Typer is optionally implemented by senders that can show a typing
// indicator while a reply is being produced.
type Typer interface {
	SetTyping(ctx context.Context, channel string, typing bool) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, channel, text string) error

// SendText calls f.
func (f SenderFunc) SendText(ctx context.Context, channel, text string) error {
	return f(ctx, channel, text)
}

// Handler receives inbound messages from a transport.
type Handler func(ctx context.Context, msg Message)

// Identity is how the bot appears on a platform.
type Identity struct {
	// UserID is the bot's own platform identity.
	UserID string
	// Names are the other tokens users type to address the bot: mention
	// links, display name.
	Names []string
}
