package gcal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"plannerbot/internal/event"
	"plannerbot/internal/source"
)

func TestBuildEventTimed(t *testing.T) {
	start := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	rec := event.New("lunch with Dana", source.Message{SenderName: "dana"})
	rec.StartDate = &start
	rec.EndDate = &end
	rec.Location = "the office"
	rec.Note = "bring the slides"

	gEvent := buildEvent(rec)

	assert.Equal(t, "lunch with Dana", gEvent.Summary)
	assert.Equal(t, "the office", gEvent.Location)
	assert.Equal(t, "bring the slides", gEvent.Description)
	assert.Equal(t, start.Format(time.RFC3339), gEvent.Start.DateTime)
	assert.Equal(t, end.Format(time.RFC3339), gEvent.End.DateTime)
	assert.Empty(t, gEvent.Start.Date)
}

func TestBuildEventAllDay(t *testing.T) {
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	rec := event.New("offsite", source.Message{})
	rec.StartDate = &start
	rec.EndDate = &end
	rec.AllDay = true

	gEvent := buildEvent(rec)

	assert.Equal(t, "2026-03-10", gEvent.Start.Date)
	// End date is exclusive, so a March 10-12 event ends on the 13th.
	assert.Equal(t, "2026-03-13", gEvent.End.Date)
	assert.Empty(t, gEvent.Start.DateTime)
}

func TestParseGoogleEventTimes(t *testing.T) {
	t.Run("timed event", func(t *testing.T) {
		item := &calendar.Event{
			Summary: "standup",
			Start:   &calendar.EventDateTime{DateTime: "2026-03-10T09:30:00Z"},
			End:     &calendar.EventDateTime{DateTime: "2026-03-10T09:45:00Z"},
		}
		te, ok := parseGoogleEventTimes(item)
		require.True(t, ok)
		assert.False(t, te.AllDay)
		assert.Equal(t, 9, te.Start.Hour())
		assert.Equal(t, 30, te.Start.Minute())
	})

	t.Run("all-day event", func(t *testing.T) {
		item := &calendar.Event{
			Summary: "holiday",
			Start:   &calendar.EventDateTime{Date: "2026-03-10"},
			End:     &calendar.EventDateTime{Date: "2026-03-11"},
		}
		te, ok := parseGoogleEventTimes(item)
		require.True(t, ok)
		assert.True(t, te.AllDay)
		assert.Equal(t, time.March, te.Start.Month())
	})

	t.Run("missing times are skipped", func(t *testing.T) {
		_, ok := parseGoogleEventTimes(&calendar.Event{Summary: "broken"})
		assert.False(t, ok)
	})

	t.Run("malformed datetime is skipped", func(t *testing.T) {
		item := &calendar.Event{
			Start: &calendar.EventDateTime{DateTime: "not-a-time"},
			End:   &calendar.EventDateTime{DateTime: "2026-03-10T09:45:00Z"},
		}
		_, ok := parseGoogleEventTimes(item)
		assert.False(t, ok)
	})
}
