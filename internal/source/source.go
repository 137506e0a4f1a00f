package source

import (
	"context"
	"time"
)

// SourceType identifies the chat transport a message arrived from
type SourceType string

const (
	SourceTypeTelegram SourceType = "telegram"
	SourceTypeWhatsApp SourceType = "whatsapp"
)

// Message represents a normalized inbound chat message from any transport
type Message struct {
	SourceType SourceType
	Channel    string // chat/conversation identifier on the transport
	SenderID   string
	SenderName string
	Text       string
	IsDirect   bool // private conversation with the bot
	Mentioned  bool // bot explicitly mentioned in a shared channel
	FromSelf   bool // sent by the bot itself
	Timestamp  time.Time
}

// ConversationKey returns the identity a negotiation is tracked under:
// the private channel for direct chats, the sender otherwise.
func (m *Message) ConversationKey() string {
	if m.IsDirect {
		return m.Channel
	}
	return m.SenderID
}

// AddressedToBot reports whether the bot should handle this message at all.
func (m *Message) AddressedToBot() bool {
	if m.FromSelf || m.Text == "" {
		return false
	}
	return m.IsDirect || m.Mentioned
}

// Replier sends a reply back to a single user, never to the wider channel.
type Replier interface {
	SendDirectMessage(ctx context.Context, userID, text string) error
}
