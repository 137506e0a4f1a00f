package whatsapp

import (
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow/types/events"

	"plannerbot/internal/source"
)

// Handler turns WhatsApp events into normalized messages. Direct chats are
// always forwarded; group messages only when the bot is mentioned by name.
type Handler struct {
	botName          string
	debugAllMessages bool
	messageChan      chan source.Message
}

func NewHandler(botName string, debugAllMessages bool) *Handler {
	return &Handler{
		botName:          botName,
		debugAllMessages: debugAllMessages,
		messageChan:      make(chan source.Message, 100),
	}
}

func (h *Handler) MessageChan() <-chan source.Message {
	return h.messageChan
}

func (h *Handler) HandleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		h.handleMessage(v)
	}
}

func (h *Handler) handleMessage(msg *events.Message) {
	text := extractText(msg)
	if text == "" {
		return
	}

	sender := msg.Info.Sender

	out := source.Message{
		SourceType: source.SourceTypeWhatsApp,
		Channel:    msg.Info.Chat.String(),
		SenderID:   sender.String(),
		SenderName: senderDisplayName(msg),
		Text:       text,
		IsDirect:   !msg.Info.IsGroup,
		FromSelf:   msg.Info.IsFromMe,
		Timestamp:  msg.Info.Timestamp,
	}
	if msg.Info.IsGroup {
		out.Mentioned = h.mentionsBot(text)
	}

	if !h.debugAllMessages && !out.AddressedToBot() {
		return
	}

	fmt.Printf("[WhatsApp %s: %s] %s\n", out.Channel, out.SenderName, text)

	select {
	case h.messageChan <- out:
	default:
		fmt.Println("Warning: message channel full, dropping message")
	}
}

func (h *Handler) mentionsBot(text string) bool {
	if h.botName == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(h.botName))
}

func senderDisplayName(msg *events.Message) string {
	if msg.Info.PushName != "" {
		return msg.Info.PushName
	}
	return msg.Info.Sender.User
}

func extractText(msg *events.Message) string {
	m := msg.Message
	if m == nil {
		return ""
	}

	if m.GetConversation() != "" {
		return m.GetConversation()
	}

	if ext := m.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}

	if img := m.GetImageMessage(); img != nil && img.GetCaption() != "" {
		return "[Image] " + img.GetCaption()
	}

	if vid := m.GetVideoMessage(); vid != nil && vid.GetCaption() != "" {
		return "[Video] " + vid.GetCaption()
	}

	return ""
}
