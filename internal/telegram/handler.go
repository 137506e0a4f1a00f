package telegram

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/tg"

	"plannerbot/internal/source"
)

// Handler turns Telegram updates into normalized messages. Direct chats are
// always forwarded; group messages only when the bot is mentioned by name.
type Handler struct {
	botName          string
	debugAllMessages bool
	messageChan      chan source.Message

	mu    sync.RWMutex
	users map[int64]*tg.User // Cache of user info
}

// NewHandler creates a new Telegram message handler
func NewHandler(botName string, debugAllMessages bool) *Handler {
	return &Handler{
		botName:          botName,
		debugAllMessages: debugAllMessages,
		messageChan:      make(chan source.Message, 100),
		users:            make(map[int64]*tg.User),
	}
}

// MessageChan returns the channel for receiving normalized messages
func (h *Handler) MessageChan() <-chan source.Message {
	return h.messageChan
}

// HandleUpdate processes a Telegram update
func (h *Handler) HandleUpdate(update tg.UpdatesClass) {
	switch u := update.(type) {
	case *tg.Updates:
		h.cacheUsers(u.Users)
		for _, upd := range u.Updates {
			h.handleSingleUpdate(upd)
		}
	case *tg.UpdatesCombined:
		h.cacheUsers(u.Users)
		for _, upd := range u.Updates {
			h.handleSingleUpdate(upd)
		}
	case *tg.UpdateShort:
		h.handleSingleUpdate(u.Update)
	case *tg.UpdateShortMessage:
		h.handleShortMessage(u)
	case *tg.UpdateShortChatMessage:
		h.handleShortChatMessage(u)
	}
}

func (h *Handler) cacheUsers(users []tg.UserClass) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			h.users[user.ID] = user
		}
	}
}

// lookupUser returns a cached user, used for reply routing.
func (h *Handler) lookupUser(id int64) (*tg.User, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	user, ok := h.users[id]
	return user, ok
}

func (h *Handler) handleSingleUpdate(update tg.UpdateClass) {
	switch msg := update.(type) {
	case *tg.UpdateNewMessage:
		h.handleNewMessage(msg.Message)
	case *tg.UpdateNewChannelMessage:
		h.handleNewMessage(msg.Message)
	}
}

func (h *Handler) handleNewMessage(msg tg.MessageClass) {
	message, ok := msg.(*tg.Message)
	if !ok || message.Message == "" {
		return
	}

	out := source.Message{
		SourceType: source.SourceTypeTelegram,
		Text:       message.Message,
		FromSelf:   message.Out,
		Timestamp:  time.Unix(int64(message.Date), 0),
	}

	switch peer := message.PeerID.(type) {
	case *tg.PeerUser:
		out.Channel = fmt.Sprintf("%d", peer.UserID)
		out.SenderID = fmt.Sprintf("%d", peer.UserID)
		out.SenderName = h.displayName(peer.UserID)
		out.IsDirect = true
	case *tg.PeerChat:
		out.Channel = fmt.Sprintf("%d", peer.ChatID)
		h.fillGroupSender(&out, message.FromID)
		out.Mentioned = h.mentionsBot(message.Message)
	case *tg.PeerChannel:
		out.Channel = fmt.Sprintf("%d", peer.ChannelID)
		h.fillGroupSender(&out, message.FromID)
		out.Mentioned = h.mentionsBot(message.Message)
	default:
		return
	}

	h.deliver(out)
}

func (h *Handler) handleShortMessage(msg *tg.UpdateShortMessage) {
	if msg.Message == "" {
		return
	}

	h.deliver(source.Message{
		SourceType: source.SourceTypeTelegram,
		Channel:    fmt.Sprintf("%d", msg.UserID),
		SenderID:   fmt.Sprintf("%d", msg.UserID),
		SenderName: h.displayName(msg.UserID),
		Text:       msg.Message,
		IsDirect:   true,
		FromSelf:   msg.Out,
		Timestamp:  time.Unix(int64(msg.Date), 0),
	})
}

func (h *Handler) handleShortChatMessage(msg *tg.UpdateShortChatMessage) {
	if msg.Message == "" {
		return
	}

	h.deliver(source.Message{
		SourceType: source.SourceTypeTelegram,
		Channel:    fmt.Sprintf("%d", msg.ChatID),
		SenderID:   fmt.Sprintf("%d", msg.FromID),
		SenderName: h.displayName(msg.FromID),
		Text:       msg.Message,
		Mentioned:  h.mentionsBot(msg.Message),
		FromSelf:   msg.Out,
		Timestamp:  time.Unix(int64(msg.Date), 0),
	})
}

func (h *Handler) fillGroupSender(out *source.Message, from tg.PeerClass) {
	peer, ok := from.(*tg.PeerUser)
	if !ok {
		return
	}
	out.SenderID = fmt.Sprintf("%d", peer.UserID)
	out.SenderName = h.displayName(peer.UserID)
}

func (h *Handler) deliver(msg source.Message) {
	if !h.debugAllMessages && !msg.AddressedToBot() {
		return
	}

	fmt.Printf("[Telegram %s: %s] %s\n", msg.Channel, msg.SenderName, truncateText(msg.Text, 100))

	select {
	case h.messageChan <- msg:
	default:
		fmt.Println("Telegram: message channel full, dropping message")
	}
}

// mentionsBot checks for the bot's name or @handle in group text.
func (h *Handler) mentionsBot(text string) bool {
	if h.botName == "" {
		return false
	}
	lower := strings.ToLower(text)
	name := strings.ToLower(h.botName)
	return strings.Contains(lower, "@"+name) || strings.Contains(lower, name)
}

func (h *Handler) displayName(userID int64) string {
	if user, ok := h.lookupUser(userID); ok {
		return getUserName(user)
	}
	return fmt.Sprintf("User %d", userID)
}

// getUserName returns a display name for a user
func getUserName(user *tg.User) string {
	if user.FirstName != "" {
		if user.LastName != "" {
			return user.FirstName + " " + user.LastName
		}
		return user.FirstName
	}
	if user.Username != "" {
		return "@" + user.Username
	}
	return fmt.Sprintf("User %d", user.ID)
}

// truncateText shortens text for logging
func truncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
