// Package conversation drives the multi-turn slot-filling dialogue that
// turns free-text chat messages into calendar events: it tracks the partial
// event per conversation, decides which slot is still missing, asks for it,
// and only schedules after an explicit confirmation.
package conversation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"plannerbot/internal/event"
	"plannerbot/internal/source"
	"plannerbot/internal/store"
	"plannerbot/internal/textanalysis"
)

// CalendarWriter persists a confirmed event to the calendar backend.
type CalendarWriter interface {
	AddEvent(ctx context.Context, rec *event.Record) error
}

// Controller is the per-key state machine processing one inbound message at
// a time: stop/help handling, slot extraction, confirmation, scheduling.
type Controller struct {
	store    *store.Store
	engine   *Engine
	analyzer textanalysis.Analyzer
	calendar CalendarWriter
	replier  source.Replier

	botName       string
	stopKeywords  []string
	helpKeywords  []string
	remoteTimeout time.Duration
	now           func() time.Time
}

// Config wires the controller's collaborators and dialogue keywords.
type Config struct {
	Store    *store.Store
	Engine   *Engine
	Analyzer textanalysis.Analyzer
	Calendar CalendarWriter
	Replier  source.Replier

	BotName       string
	StopKeywords  []string // substring match, case-insensitive
	HelpKeywords  []string // exact match, case-insensitive
	RemoteTimeout time.Duration
	Now           func() time.Time
}

// NewController builds a conversation controller with defaulted keywords.
func NewController(cfg Config) *Controller {
	if len(cfg.StopKeywords) == 0 {
		cfg.StopKeywords = []string{"cancel", "stop", "forget", "don't worry", "restart", "start again"}
	}
	for i, kw := range cfg.StopKeywords {
		cfg.StopKeywords[i] = normalizeApostrophes(strings.ToLower(kw))
	}
	if len(cfg.HelpKeywords) == 0 {
		cfg.HelpKeywords = []string{"help", "help me", "support"}
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{
		store:         cfg.Store,
		engine:        cfg.Engine,
		analyzer:      cfg.Analyzer,
		calendar:      cfg.Calendar,
		replier:       cfg.Replier,
		botName:       cfg.BotName,
		stopKeywords:  cfg.StopKeywords,
		helpKeywords:  cfg.HelpKeywords,
		remoteTimeout: cfg.RemoteTimeout,
		now:           cfg.Now,
	}
}

// HandleMessage processes exactly one inbound message against exactly one
// conversation key. Turns for the same key are serialized; failures are
// isolated to this key and reported to the sender, never propagated.
func (c *Controller) HandleMessage(ctx context.Context, msg source.Message) {
	if !msg.AddressedToBot() {
		return
	}

	key := msg.ConversationKey()
	unlock := c.store.LockKey(key)
	defer unlock()

	switch {
	case c.isStop(msg.Text):
		c.store.Remove(key)
		c.reply(ctx, msg.SenderID, "Ok, got it.")
		return
	case c.isHelp(msg.Text):
		c.reply(ctx, msg.SenderID, c.helpMessage(msg.SenderName))
		return
	}

	rec := c.store.Get(key)
	if rec == nil {
		c.startConversation(ctx, key, msg)
		return
	}

	switch event.Classify(rec) {
	case event.Complete:
		c.handleConfirmation(ctx, key, rec, msg)
	case event.MissingStartDate:
		c.runExtraction(ctx, key, rec, msg)
	case event.MissingStartTime:
		c.handleMissingTime(ctx, key, rec, msg)
	default:
		// A stored record with no key is an invariant violation;
		// drop it rather than keep asking questions about it.
		log.Printf("conversation: dropping invalid record for key %q", key)
		c.store.Remove(key)
		c.reply(ctx, msg.SenderID, "Sorry but I have no idea of what is happening")
	}
}

// startConversation opens a new negotiation seeded with the message text.
func (c *Controller) startConversation(ctx context.Context, key string, msg source.Message) {
	msg.Text = c.stripMention(msg.Text)
	rec := event.New(key, msg)
	c.runExtraction(ctx, key, rec, msg)
}

// runExtraction routes the message through the extraction engine and
// persists the updated record. On a remote failure the pre-turn record is
// left in place so the next message can retry.
func (c *Controller) runExtraction(ctx context.Context, key string, rec *event.Record, msg source.Message) {
	rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()

	updated, reply, err := c.engine.Analyze(rctx, rec, msg)
	if err != nil {
		log.Printf("conversation: extraction failed for key %q: %v", key, err)
		c.reply(ctx, msg.SenderID, "Sorry, there was a problem on my side. Please try again.")
		return
	}

	c.store.Put(key, updated)
	c.reply(ctx, msg.SenderID, reply)
}

// handleConfirmation resolves a pending "do you want me to schedule" answer
// by sentiment: positive schedules, neutral re-asks, anything else discards.
func (c *Controller) handleConfirmation(ctx context.Context, key string, rec *event.Record, msg source.Message) {
	rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()

	sentiment, err := c.analyzer.Sentiment(rctx, msg.Text)
	if err != nil {
		log.Printf("conversation: sentiment failed for key %q: %v", key, err)
		c.reply(ctx, msg.SenderID, "Sorry, there was a problem on my side. Please try again.")
		return
	}

	switch sentiment {
	case textanalysis.SentimentPositive:
		c.schedule(ctx, key, rec, msg)
	case textanalysis.SentimentNeutral:
		c.reply(ctx, msg.SenderID, "That wasn't clear to me. Can you please confirm if you wish to schedule the event or not.")
	default:
		c.store.Remove(key)
		c.reply(ctx, msg.SenderID, "Ok, then I won't schedule it.")
	}
}

// schedule removes the record and writes the event to the calendar under a
// timestamp-suffixed key so the conversation key can be reused immediately.
// A write failure after this point is terminal for the event: the record is
// already gone and the user is told scheduling failed.
func (c *Controller) schedule(ctx context.Context, key string, rec *event.Record, msg source.Message) {
	c.store.Remove(key)
	rec.Key = fmt.Sprintf("%s_%d", key, c.now().UnixMilli())

	wctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()

	if err := c.calendar.AddEvent(wctx, rec); err != nil {
		log.Printf("conversation: calendar write failed for key %q: %v", rec.Key, err)
		c.reply(ctx, msg.SenderID, "There was a problem with the connection to the calendar.")
		return
	}
	c.reply(ctx, msg.SenderID, "Ok, I have scheduled the event.")
}

// handleMissingTime resolves the "do you have a time?" question. An explicit
// "all day", or a negative answer, makes the event all-day; anything else is
// treated as a possible time mention and goes through ordinary extraction.
func (c *Controller) handleMissingTime(ctx context.Context, key string, rec *event.Record, msg source.Message) {
	if strings.Contains(strings.ToLower(msg.Text), "all day") {
		c.markAllDay(ctx, key, rec, msg)
		return
	}

	rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()

	sentiment, err := c.analyzer.Sentiment(rctx, msg.Text)
	if err != nil {
		log.Printf("conversation: sentiment failed for key %q: %v", key, err)
		c.reply(ctx, msg.SenderID, "Sorry, there was a problem on my side. Please try again.")
		return
	}

	if sentiment == textanalysis.SentimentNegative {
		c.markAllDay(ctx, key, rec, msg)
		return
	}
	c.runExtraction(ctx, key, rec, msg)
}

func (c *Controller) markAllDay(ctx context.Context, key string, rec *event.Record, msg source.Message) {
	rec = rec.Clone()
	rec.AllDay = true
	if rec.StartDate != nil {
		end := *rec.StartDate
		rec.EndDate = &end
	}
	c.runExtraction(ctx, key, rec, msg)
}

// ExpireNotice is the callback the store's sweep uses to tell the original
// sender an abandoned conversation was dropped.
func (c *Controller) ExpireNotice(rec *event.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), c.remoteTimeout)
	defer cancel()
	c.reply(ctx, rec.Origin.SenderID, "I'll forget about this.")
}

func (c *Controller) reply(ctx context.Context, userID, text string) {
	if err := c.replier.SendDirectMessage(ctx, userID, text); err != nil {
		log.Printf("conversation: failed to reply to %s: %v", userID, err)
	}
}

// isStop reports whether the text contains any stop keyword.
func (c *Controller) isStop(text string) bool {
	lower := normalizeApostrophes(strings.ToLower(text))
	for _, kw := range c.stopKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// normalizeApostrophes maps the typographic apostrophe onto the ASCII one so
// "don't worry" matches however the client renders it.
func normalizeApostrophes(s string) string {
	return strings.ReplaceAll(s, "’", "'")
}

// isHelp reports whether the text is exactly a help keyword.
func (c *Controller) isHelp(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range c.helpKeywords {
		if lower == kw {
			return true
		}
	}
	return false
}

func (c *Controller) helpMessage(senderName string) string {
	name := firstName(senderName)
	if name == "" {
		name = "Hi"
	}
	return name + ", I'm " + c.botName + " and I can add events to the calendar. " +
		"Send me the event name, date and time and I'll do my best to understand it. " +
		"You can stop me at any time with `cancel`, `stop` and the like, " +
		"and you can reach me directly or by mentioning me in any channel."
}

// stripMention removes a leading bot mention so it never leaks into the
// event summary.
func (c *Controller) stripMention(text string) string {
	if c.botName == "" {
		return text
	}
	trimmed := strings.TrimSpace(text)
	for _, prefix := range []string{"@" + c.botName + ":", "@" + c.botName, c.botName + ":"} {
		if len(trimmed) >= len(prefix) && strings.EqualFold(trimmed[:len(prefix)], prefix) {
			return strings.TrimSpace(trimmed[len(prefix):])
		}
	}
	return trimmed
}
