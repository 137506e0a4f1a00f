// Package nlp adapts a natural-language date parser to the mention list the
// conversation engine consumes: zero or more date/time phrases per message,
// each with a start and optionally an end, and a per-point flag for whether
// an explicit time-of-day was given.
package nlp

import (
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Point is one resolved boundary of a date/time mention.
type Point struct {
	Time time.Time
	// HourCertain reports whether the phrase stated a time-of-day. When
	// false the clock fields of Time are meaningless and callers treat
	// the point as date-only.
	HourCertain bool
}

// Mention is a single date/time phrase found in a message.
type Mention struct {
	Text  string
	Start *Point
	End   *Point
}

// Extractor turns free text into date/time mentions. Parsing is local,
// deterministic for a fixed reference time, and has no side effects.
type Extractor interface {
	Parse(text string, now time.Time) []Mention
}

// timeOfDay recognizes an explicit clock time inside a matched phrase:
// "3pm", "15:30", "at 7", "noon", "midnight".
var timeOfDay = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\b|\b\d{1,2}\s*(a\.?m\.?|p\.?m\.?)\b|\bat\s+\d{1,2}\b|\bnoon\b|\bmidnight\b`)

// rangeConnective splits "from X to Y" phrasing so the two boundaries parse
// independently; the underlying parser would otherwise merge them into a
// single point and the range would be lost.
var rangeConnective = regexp.MustCompile(`(?i)\s+(?:to|until|till)\s+`)

// timeFiller matches the connective words that can surround a bare clock time.
var timeFiller = regexp.MustCompile(`(?i)\b(?:at|from|on)\b`)

// isTimeOnly reports whether the phrase states a clock time and nothing else,
// like "10am" or "from 2pm". Such a phrase carries no date of its own and
// takes its date from the boundary resolved before it.
func isTimeOnly(text string) bool {
	rest := timeOfDay.ReplaceAllString(text, "")
	rest = timeFiller.ReplaceAllString(rest, "")
	return strings.TrimSpace(rest) == ""
}

// WhenExtractor implements Extractor on top of github.com/olebedev/when.
type WhenExtractor struct {
	parser *when.Parser
}

// NewExtractor builds an extractor with the English and common rule sets.
func NewExtractor() *WhenExtractor {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &WhenExtractor{parser: w}
}

// Parse scans the text for date/time phrases. Text on either side of a range
// connective ("10am to 2pm") parses separately and folds into one mention
// with a start and an end; any further phrases become mentions of their own.
// A later start-only mention reads as an implicit range boundary downstream.
//
// Bare clock times resolve on the date of the boundary found before them, so
// in "tomorrow from 10am to 2pm" all three phrases land on tomorrow.
func (e *WhenExtractor) Parse(text string, now time.Time) []Mention {
	var mentions []Mention
	var ref *time.Time
	prevSegment := -1

	for i, segment := range rangeConnective.Split(text, -1) {
		points, segRef := e.scan(segment, now, ref)
		ref = segRef

		for _, point := range points {
			n := len(mentions)
			// A boundary in the segment right after a connective ends
			// the preceding mention instead of opening a new one.
			if n > 0 && i == prevSegment+1 && mentions[n-1].End == nil && point.first {
				mentions[n-1].End = point.Point
				mentions[n-1].Text += " to " + point.text
			} else {
				mentions = append(mentions, Mention{Text: point.text, Start: point.Point})
			}
			prevSegment = i
		}
	}

	return mentions
}

type scanned struct {
	*Point
	text  string
	first bool
}

// scan finds every date/time phrase in one connective-free segment. ref is
// the last boundary resolved so far; time-only phrases take their date from
// it. The updated reference is returned for the next segment.
func (e *WhenExtractor) scan(segment string, now time.Time, ref *time.Time) ([]scanned, *time.Time) {
	var points []scanned
	offset := 0

	for offset < len(segment) {
		r, err := e.parser.Parse(segment[offset:], now)
		if err != nil || r == nil {
			break
		}

		t := r.Time
		if ref != nil && isTimeOnly(r.Text) {
			t = time.Date(ref.Year(), ref.Month(), ref.Day(),
				t.Hour(), t.Minute(), t.Second(), 0, t.Location())
		}
		resolved := t
		ref = &resolved

		points = append(points, scanned{
			Point: &Point{
				Time:        t,
				HourCertain: timeOfDay.MatchString(r.Text),
			},
			text: r.Text,
			// Adjacent to the preceding connective, so it can close
			// a range opened by the previous segment.
			first: offset == 0 && r.Index <= 1,
		})

		offset += r.Index + len(r.Text)
	}

	return points, ref
}
