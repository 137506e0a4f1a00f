package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"plannerbot/internal/event"
	"plannerbot/internal/mocks"
	"plannerbot/internal/nlp"
	"plannerbot/internal/store"
	"plannerbot/internal/textanalysis"
)

// recordingReplier collects outbound direct messages per user.
type recordingReplier struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingReplier) SendDirectMessage(_ context.Context, _ string, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return nil
}

func (r *recordingReplier) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return ""
	}
	return r.sent[len(r.sent)-1]
}

func (r *recordingReplier) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

type fixture struct {
	controller *Controller
	store      *store.Store
	extractor  *mocks.MockExtractor
	analyzer   *mocks.MockAnalyzer
	calendar   *mocks.MockCalendar
	replier    *recordingReplier
}

func newFixture() *fixture {
	extractor := &mocks.MockExtractor{}
	analyzer := &mocks.MockAnalyzer{}
	calendar := &mocks.MockCalendar{}
	replier := &recordingReplier{}
	st := store.New(store.Config{}, nil)

	controller := NewController(Config{
		Store:    st,
		Engine:   NewEngine(extractor, analyzer, fixedNow),
		Analyzer: analyzer,
		Calendar: calendar,
		Replier:  replier,
		BotName:  "plannerbot",
		Now:      fixedNow,
	})

	return &fixture{
		controller: controller,
		store:      st,
		extractor:  extractor,
		analyzer:   analyzer,
		calendar:   calendar,
		replier:    replier,
	}
}

// Scenario: a single message carrying both date and time completes in one
// turn and asks for confirmation, never for the time.
func TestSingleTurnCompletion(t *testing.T) {
	f := newFixture()
	msg := newTestMessage("Lunch with Bob tomorrow at noon")

	noon := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f.extractor.On("Parse", msg.Text, testNow).Return([]nlp.Mention{
		{Text: "tomorrow at noon", Start: point(noon, true)},
	})
	f.analyzer.On("Relations", mock.Anything, msg.Text).Return([]textanalysis.Relation{}, nil)

	f.controller.HandleMessage(context.Background(), msg)

	rec := f.store.Get("D1")
	require.NotNil(t, rec)
	assert.Equal(t, event.Complete, event.Classify(rec))

	assert.Contains(t, f.replier.last(), "Do you want me to schedule")
	for _, sent := range f.replier.all() {
		assert.NotContains(t, sent, "Do you have a time")
	}
}

// Scenario: a date-only message asks for the time; answering "no" turns the
// event all-day with end == start.
func TestAllDayAfterNegativeTimeAnswer(t *testing.T) {
	f := newFixture()

	first := newTestMessage("Team meeting next Friday")
	friday := time.Date(2026, 3, 13, 10, 30, 0, 0, time.UTC)
	f.extractor.On("Parse", first.Text, testNow).Return([]nlp.Mention{
		{Text: "next Friday", Start: point(friday, false)},
	})
	f.analyzer.On("Relations", mock.Anything, first.Text).Return([]textanalysis.Relation{}, nil)

	f.controller.HandleMessage(context.Background(), first)
	assert.Equal(t, "Do you have a time for this event, if yes, what time?", f.replier.last())

	second := newTestMessage("no")
	f.analyzer.On("Sentiment", mock.Anything, "no").Return(textanalysis.SentimentNegative, nil)
	f.extractor.On("Parse", "no", testNow).Return(nil)
	f.analyzer.On("Relations", mock.Anything, "no").Return([]textanalysis.Relation{}, nil)

	f.controller.HandleMessage(context.Background(), second)

	rec := f.store.Get("D1")
	require.NotNil(t, rec)
	assert.True(t, rec.AllDay)
	assert.Equal(t, event.Complete, event.Classify(rec))
	require.NotNil(t, rec.EndDate)
	assert.Equal(t, *rec.StartDate, *rec.EndDate)
	assert.Contains(t, f.replier.last(), "Do you want me to schedule")
}

// Scenario: an explicit "all day" answer also collapses to the all-day branch
// without a sentiment call.
func TestExplicitAllDayAnswer(t *testing.T) {
	f := newFixture()

	rec := event.New("D1", newTestMessage("Team meeting next Friday"))
	friday := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	rec.StartDate = &friday
	f.store.Put("D1", rec)

	msg := newTestMessage("it's all day")
	f.extractor.On("Parse", msg.Text, testNow).Return(nil)
	f.analyzer.On("Relations", mock.Anything, msg.Text).Return([]textanalysis.Relation{}, nil)

	f.controller.HandleMessage(context.Background(), msg)

	got := f.store.Get("D1")
	require.NotNil(t, got)
	assert.True(t, got.AllDay)
	f.analyzer.AssertNotCalled(t, "Sentiment", mock.Anything, mock.Anything)
}

// Scenario: positive confirmation removes the record and writes the calendar
// event exactly once under a suffixed key.
func TestPositiveConfirmationSchedules(t *testing.T) {
	f := newFixture()

	rec := completeRecord()
	f.store.Put("D1", rec)

	f.analyzer.On("Sentiment", mock.Anything, "yes").Return(textanalysis.SentimentPositive, nil)
	f.calendar.On("AddEvent", mock.Anything, mock.MatchedBy(func(r *event.Record) bool {
		return r.Key != "D1" && len(r.Key) > len("D1_")
	})).Return(nil).Once()

	f.controller.HandleMessage(context.Background(), newTestMessage("yes"))

	assert.Nil(t, f.store.Get("D1"))
	f.calendar.AssertNumberOfCalls(t, "AddEvent", 1)
	assert.Equal(t, "Ok, I have scheduled the event.", f.replier.last())
}

func TestNeutralConfirmationAsksAgain(t *testing.T) {
	f := newFixture()
	f.store.Put("D1", completeRecord())

	f.analyzer.On("Sentiment", mock.Anything, "maybe").Return(textanalysis.SentimentNeutral, nil)

	f.controller.HandleMessage(context.Background(), newTestMessage("maybe"))

	assert.NotNil(t, f.store.Get("D1"))
	assert.Contains(t, f.replier.last(), "That wasn't clear to me")
	f.calendar.AssertNotCalled(t, "AddEvent", mock.Anything, mock.Anything)
}

func TestNegativeConfirmationDiscards(t *testing.T) {
	f := newFixture()
	f.store.Put("D1", completeRecord())

	f.analyzer.On("Sentiment", mock.Anything, "no thanks").Return(textanalysis.SentimentNegative, nil)

	f.controller.HandleMessage(context.Background(), newTestMessage("no thanks"))

	assert.Nil(t, f.store.Get("D1"))
	assert.Equal(t, "Ok, then I won't schedule it.", f.replier.last())
	f.calendar.AssertNotCalled(t, "AddEvent", mock.Anything, mock.Anything)
}

// Scenario: a stop keyword removes the record immediately, whatever the
// state, without touching the calendar.
func TestStopKeywordCancelsNegotiation(t *testing.T) {
	f := newFixture()
	f.store.Put("D1", completeRecord())

	f.controller.HandleMessage(context.Background(), newTestMessage("please forget it"))

	assert.Nil(t, f.store.Get("D1"))
	assert.Equal(t, "Ok, got it.", f.replier.last())
	f.calendar.AssertNotCalled(t, "AddEvent", mock.Anything, mock.Anything)
	f.analyzer.AssertNotCalled(t, "Sentiment", mock.Anything, mock.Anything)
}

// Both apostrophe renderings of "don't worry" cancel, whichever spelling the
// keyword list or the chat client uses.
func TestStopKeywordApostropheVariants(t *testing.T) {
	for _, text := range []string{"don't worry about it", "don’t worry about it"} {
		t.Run(text, func(t *testing.T) {
			f := newFixture()
			f.store.Put("D1", completeRecord())

			f.controller.HandleMessage(context.Background(), newTestMessage(text))

			assert.Nil(t, f.store.Get("D1"))
			assert.Equal(t, "Ok, got it.", f.replier.last())
		})
	}
}

func TestHelpKeywordLeavesRecordAlone(t *testing.T) {
	f := newFixture()
	rec := completeRecord()
	f.store.Put("D1", rec)

	f.controller.HandleMessage(context.Background(), newTestMessage("help"))

	assert.Same(t, rec, f.store.Get("D1"))
	assert.Contains(t, f.replier.last(), "I can add events to the calendar")
}

func TestUnaddressedMessageIgnored(t *testing.T) {
	f := newFixture()

	msg := newTestMessage("lunch tomorrow")
	msg.IsDirect = false
	msg.Mentioned = false
	f.controller.HandleMessage(context.Background(), msg)

	fromSelf := newTestMessage("lunch tomorrow")
	fromSelf.FromSelf = true
	f.controller.HandleMessage(context.Background(), fromSelf)

	assert.Empty(t, f.replier.all())
	assert.Equal(t, 0, f.store.Len())
}

// A calendar-write failure after positive confirmation is terminal: the
// record is gone and the user hears about the failure.
func TestCalendarWriteFailureIsTerminal(t *testing.T) {
	f := newFixture()
	f.store.Put("D1", completeRecord())

	f.analyzer.On("Sentiment", mock.Anything, "yes").Return(textanalysis.SentimentPositive, nil)
	f.calendar.On("AddEvent", mock.Anything, mock.Anything).Return(errors.New("backend down"))

	f.controller.HandleMessage(context.Background(), newTestMessage("yes"))

	assert.Nil(t, f.store.Get("D1"))
	assert.Contains(t, f.replier.last(), "problem with the connection to the calendar")
}

// A sentiment failure during confirmation leaves the record untouched so the
// user can answer again.
func TestSentimentFailureKeepsRecord(t *testing.T) {
	f := newFixture()
	rec := completeRecord()
	f.store.Put("D1", rec)

	f.analyzer.On("Sentiment", mock.Anything, "yes").Return(textanalysis.Sentiment(""), errors.New("unavailable"))

	f.controller.HandleMessage(context.Background(), newTestMessage("yes"))

	assert.Same(t, rec, f.store.Get("D1"))
	assert.Contains(t, f.replier.last(), "there was a problem")
	f.calendar.AssertNotCalled(t, "AddEvent", mock.Anything, mock.Anything)
}

// An extraction failure on the opening message leaves no record behind.
func TestExtractionFailureCommitsNothing(t *testing.T) {
	f := newFixture()
	msg := newTestMessage("Lunch tomorrow at noon")

	f.extractor.On("Parse", msg.Text, testNow).Return([]nlp.Mention{
		{Text: "tomorrow at noon", Start: point(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), true)},
	})
	f.analyzer.On("Relations", mock.Anything, msg.Text).Return(nil, errors.New("unavailable"))

	f.controller.HandleMessage(context.Background(), msg)

	assert.Equal(t, 0, f.store.Len())
	assert.Contains(t, f.replier.last(), "there was a problem")
}

// Scenario: the sweep notifies the original sender when a conversation is
// dropped for inactivity.
func TestExpiryNotice(t *testing.T) {
	f := newFixture()

	rec := completeRecord()
	f.controller.ExpireNotice(rec)

	assert.Equal(t, "I'll forget about this.", f.replier.last())
}

func TestMentionStrippedFromSummary(t *testing.T) {
	f := newFixture()

	msg := newTestMessage("@plannerbot Lunch tomorrow at noon")
	msg.IsDirect = false
	msg.Mentioned = true

	f.extractor.On("Parse", "Lunch tomorrow at noon", testNow).Return([]nlp.Mention{
		{Text: "tomorrow at noon", Start: point(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), true)},
	})
	f.analyzer.On("Relations", mock.Anything, "Lunch tomorrow at noon").Return([]textanalysis.Relation{}, nil)

	f.controller.HandleMessage(context.Background(), msg)

	// shared channel, so the key is the sender
	rec := f.store.Get("U1")
	require.NotNil(t, rec)
	assert.NotContains(t, rec.Summary, "@plannerbot")
}

func completeRecord() *event.Record {
	rec := event.New("D1", newTestMessage("Lunch with Bob tomorrow at noon"))
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	rec.StartDate = &start
	rec.EndDate = &end
	return rec
}
