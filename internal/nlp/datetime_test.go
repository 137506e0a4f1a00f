package nlp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday 9 March 2026, 10:30 local.
var reference = time.Date(2026, 3, 9, 10, 30, 0, 0, time.UTC)

func TestParseTomorrowWithTime(t *testing.T) {
	e := NewExtractor()

	mentions := e.Parse("Lunch with Bob tomorrow at 3pm", reference)
	require.Len(t, mentions, 1)
	require.NotNil(t, mentions[0].Start)

	start := mentions[0].Start
	assert.True(t, start.HourCertain)
	assert.Equal(t, 10, start.Time.Day())
	assert.Equal(t, 15, start.Time.Hour())
}

func TestParseDateWithoutTime(t *testing.T) {
	e := NewExtractor()

	mentions := e.Parse("Team meeting next Friday", reference)
	require.Len(t, mentions, 1)
	require.NotNil(t, mentions[0].Start)

	assert.False(t, mentions[0].Start.HourCertain)
	assert.Equal(t, time.Friday, mentions[0].Start.Time.Weekday())
	assert.True(t, mentions[0].Start.Time.After(reference))
}

func TestParseRangeFoldsIntoOneMention(t *testing.T) {
	e := NewExtractor()

	mentions := e.Parse("I'm at an event from tomorrow at 10am to tomorrow at 2pm", reference)
	require.Len(t, mentions, 1)
	require.NotNil(t, mentions[0].End)

	assert.Equal(t, 10, mentions[0].Start.Time.Hour())
	assert.Equal(t, 14, mentions[0].End.Time.Hour())
	assert.True(t, mentions[0].Start.HourCertain)
	assert.True(t, mentions[0].End.HourCertain)
}

// A range of bare clock times must land on the mentioned day, not today.
func TestParseRangeWithBareTimes(t *testing.T) {
	e := NewExtractor()

	mentions := e.Parse("event tomorrow from 10am to 2pm", reference)
	require.Len(t, mentions, 2)

	// "tomorrow" carries the date; the clock times inherit it.
	assert.False(t, mentions[0].Start.HourCertain)
	assert.Equal(t, 10, mentions[0].Start.Time.Day())

	rng := mentions[1]
	require.NotNil(t, rng.Start)
	require.NotNil(t, rng.End)
	assert.True(t, rng.Start.HourCertain)
	assert.Equal(t, 10, rng.Start.Time.Day())
	assert.Equal(t, 10, rng.Start.Time.Hour())
	assert.Equal(t, 10, rng.End.Time.Day())
	assert.Equal(t, 14, rng.End.Time.Hour())
}

func TestIsTimeOnly(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"10am", true},
		{"from 10am", true},
		{"at 15:30", true},
		{"tomorrow at 2pm", false},
		{"next friday", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, isTimeOnly(tt.text))
		})
	}
}

func TestParseTwoSeparateMentions(t *testing.T) {
	e := NewExtractor()

	mentions := e.Parse("I'm away tomorrow at 9am and back on friday at 5pm", reference)
	require.Len(t, mentions, 2)
	assert.Nil(t, mentions[0].End)
	assert.Nil(t, mentions[1].End)
	assert.True(t, mentions[0].Start.Time.Before(mentions[1].Start.Time))
}

func TestParseNoMention(t *testing.T) {
	e := NewExtractor()
	assert.Empty(t, e.Parse("hello there", reference))
}

// The same text and reference time must always produce the same result.
func TestParseDeterministic(t *testing.T) {
	e := NewExtractor()

	a := e.Parse("dinner tomorrow at 7pm", reference)
	b := e.Parse("dinner tomorrow at 7pm", reference)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Start.Time, b[0].Start.Time)
}

func TestTimeOfDayDetection(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"tomorrow at 3pm", true},
		{"tomorrow at 15:30", true},
		{"tomorrow at noon", true},
		{"tomorrow at midnight", true},
		{"tomorrow at 7", true},
		{"next friday", false},
		{"tomorrow", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, timeOfDay.MatchString(tt.text))
		})
	}
}
