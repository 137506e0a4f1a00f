package event

import (
	"time"

	"plannerbot/internal/source"
)

// Relation holds the grammatical roles extracted from the originating text.
// They only drive summary rewriting and are never persisted downstream.
type Relation struct {
	Subject string
	Action  string // surface form of the verb phrase, e.g. "ll be"
	Verb    string // normalized verb, e.g. "be"
	Tense   string // "present", "future", "past" or empty
	Object  string
}

// Record is the mutable draft of an event being negotiated with a user.
// One Record exists per conversation key at a time.
type Record struct {
	Key     string
	Summary string

	StartDate *time.Time
	EndDate   *time.Time
	AllDay    bool

	Location string
	Note     string

	Relation Relation

	// Origin is the message that opened the negotiation.
	Origin source.Message

	LastActivity time.Time
}

// New creates an empty record for the given conversation key, seeded with
// the originating message.
func New(key string, origin source.Message) *Record {
	return &Record{
		Key:          key,
		Summary:      collapseWhitespace(origin.Text),
		Origin:       origin,
		LastActivity: time.Now(),
	}
}

// Clone returns a deep copy so a turn can be worked out and discarded
// without touching the stored record.
func (r *Record) Clone() *Record {
	c := *r
	if r.StartDate != nil {
		t := *r.StartDate
		c.StartDate = &t
	}
	if r.EndDate != nil {
		t := *r.EndDate
		c.EndDate = &t
	}
	return &c
}

// Touch refreshes the record's activity timestamp.
func (r *Record) Touch() {
	r.LastActivity = time.Now()
}

// ApplyEndDateDefaults fills the end boundary when the user never gave one:
// one hour after the start for timed events, the start itself for all-day
// events. An end that precedes the start is replaced the same way.
func (r *Record) ApplyEndDateDefaults() {
	if r.StartDate == nil {
		return
	}
	if !r.AllDay {
		if r.EndDate == nil || r.EndDate.Before(*r.StartDate) {
			end := r.StartDate.Add(time.Hour)
			r.EndDate = &end
		}
		return
	}
	if r.EndDate == nil {
		end := *r.StartDate
		r.EndDate = &end
	}
}

func collapseWhitespace(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, c := range s {
		switch c {
		case ' ', '\t', '\n', '\r':
			space = true
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, c)
		}
	}
	return string(out)
}
