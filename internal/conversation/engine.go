package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"plannerbot/internal/event"
	"plannerbot/internal/nlp"
	"plannerbot/internal/source"
	"plannerbot/internal/textanalysis"
)

// Engine turns one new message, in the context of a partial event record,
// into slot updates and the next reply to send.
type Engine struct {
	extractor nlp.Extractor
	analyzer  textanalysis.Analyzer
	now       func() time.Time
}

// NewEngine creates an extraction engine. now may be nil for the wall clock.
func NewEngine(extractor nlp.Extractor, analyzer textanalysis.Analyzer, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{extractor: extractor, analyzer: analyzer, now: now}
}

// Analyze applies the message's date/time mentions and extracted relations
// to a copy of the record and returns the updated copy together with the
// reply for this turn: a confirmation prompt when the record is complete,
// otherwise the question for the one missing slot.
//
// On a relations-service failure nothing is committed; the caller keeps the
// pre-turn record so the user can simply try again.
func (e *Engine) Analyze(ctx context.Context, rec *event.Record, msg source.Message) (*event.Record, string, error) {
	rec = rec.Clone()

	e.applyMentions(rec, msg.Text)

	if rec.StartDate != nil && rec.EndDate != nil && calendarDaysBetween(*rec.StartDate, *rec.EndDate) > 0 {
		rec.AllDay = true
	}
	rec.ApplyEndDateDefaults()

	relations, err := e.analyzer.Relations(ctx, msg.Text)
	if err != nil {
		return nil, "", fmt.Errorf("relation extraction failed: %w", err)
	}
	mergeRelations(rec, relations)

	rec.Touch()

	var reply string
	switch event.Classify(rec) {
	case event.Complete:
		rec.Summary = RewriteSummary(rec.Summary, firstName(rec.Origin.SenderName), rec.Relation)
		reply = confirmationPrompt(rec)
	case event.MissingStartDate:
		reply = "When is this happening?"
	case event.MissingStartTime:
		reply = "Do you have a time for this event, if yes, what time?"
	default:
		reply = "Sorry but I have no idea of what is happening"
	}
	return rec, reply, nil
}

// applyMentions walks the extracted date/time mentions and fills whichever
// slot the record is currently missing. The classification is recomputed per
// mention so a single message can supply both the date and the time.
func (e *Engine) applyMentions(rec *event.Record, text string) {
	for i, m := range e.extractor.Parse(text, e.now()) {
		switch event.Classify(rec) {
		case event.MissingStartDate:
			if m.Start != nil {
				t := boundaryTime(m.Start)
				rec.StartDate = &t
			}
		case event.MissingStartTime:
			// The date is known; only merge an explicitly stated
			// clock time, leaving the date part untouched.
			if m.Start != nil && m.Start.HourCertain && rec.StartDate != nil {
				d := *rec.StartDate
				t := time.Date(d.Year(), d.Month(), d.Day(),
					m.Start.Time.Hour(), m.Start.Time.Minute(), 0, 0, d.Location())
				rec.StartDate = &t
			}
		}

		if m.End != nil {
			t := boundaryTime(m.End)
			rec.EndDate = &t
		} else if i > 0 && m.Start != nil && rec.StartDate != nil {
			// Two start mentions and no paired end: the second one
			// is the implicit end of a range.
			t := boundaryTime(m.Start)
			rec.EndDate = &t
		}
	}
}

// boundaryTime reads a mention boundary, zeroing the clock when no explicit
// time-of-day was found. Hour zero is what the slot validator reads back as
// "missing start time".
func boundaryTime(p *nlp.Point) time.Time {
	if p.HourCertain {
		return p.Time
	}
	t := p.Time
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func calendarDaysBetween(start, end time.Time) int {
	return int(end.Sub(start).Hours() / 24)
}

// mergeRelations keeps the last non-empty subject, action and object across
// all extracted relations.
func mergeRelations(rec *event.Record, relations []textanalysis.Relation) {
	for _, rel := range relations {
		if rel.Subject != nil && rel.Subject.Text != "" {
			rec.Relation.Subject = rel.Subject.Text
		}
		if rel.Action != nil && rel.Action.Text != "" {
			rec.Relation.Action = rel.Action.Text
			if rel.Action.Verb != nil {
				rec.Relation.Verb = rel.Action.Verb.Text
				rec.Relation.Tense = rel.Action.Verb.Tense
			}
		}
		if rel.Object != nil && rel.Object.Text != "" {
			rec.Relation.Object = rel.Object.Text
		}
	}
}

const (
	dateOnlyFormat = "Monday, 2 January 2006"
	dateTimeFormat = "15:04 on Monday, 2 January 2006"
)

// confirmationPrompt formats the question sent once every slot is filled:
// a single date when start and end coincide, otherwise a from/to range,
// using the time-of-day form only when both boundaries carry a known time.
func confirmationPrompt(rec *event.Record) string {
	if rec.EndDate != nil && !rec.StartDate.Equal(*rec.EndDate) {
		format := dateOnlyFormat
		if rec.StartDate.Hour() > 0 && rec.EndDate.Hour() > 0 {
			format = dateTimeFormat
		}
		return fmt.Sprintf("Do you want me to schedule %q from %s to %s?",
			rec.Summary, rec.StartDate.Format(format), rec.EndDate.Format(format))
	}
	return fmt.Sprintf("Do you want me to schedule %q on %s?",
		rec.Summary, rec.StartDate.Format(dateOnlyFormat))
}

// firstName reduces a display name to its first word.
func firstName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}
