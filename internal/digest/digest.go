// Package digest builds and posts the daily summary of today's calendar
// events to a chat channel.
package digest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"plannerbot/internal/gcal"
	"plannerbot/internal/source"
)

// Calendar is what the digest reads events from.
type Calendar interface {
	ListTodayEvents(ctx context.Context) ([]gcal.TodayEvent, error)
}

// Digest posts today's events to a fixed channel.
type Digest struct {
	calendar Calendar
	replier  source.Replier
	channel  string
}

func New(calendar Calendar, replier source.Replier, channel string) *Digest {
	return &Digest{
		calendar: calendar,
		replier:  replier,
		channel:  channel,
	}
}

// Post fetches today's events and sends the formatted digest.
func (d *Digest) Post(ctx context.Context) error {
	events, err := d.calendar.ListTodayEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch today's events: %w", err)
	}

	text := Format(events)
	if err := d.replier.SendDirectMessage(ctx, d.channel, text); err != nil {
		return fmt.Errorf("failed to post digest: %w", err)
	}

	log.Printf("Posted daily digest with %d events", len(events))
	return nil
}

// Format renders the digest text. Events are sorted by start time; timed
// events show their time range and all-day events a fixed label.
func Format(events []gcal.TodayEvent) string {
	if len(events) == 0 {
		return "Good morning from PlannerBot! There are no events in the calendar today."
	}

	sorted := make([]gcal.TodayEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var b strings.Builder
	b.WriteString("Good morning! Here are the events for today:")

	for _, ev := range sorted {
		b.WriteString("\n\n*")
		b.WriteString(ev.Summary)
		b.WriteString("*\n")
		if ev.AllDay {
			b.WriteString("All day")
		} else {
			b.WriteString(ev.Start.Format("3:04 pm"))
			b.WriteString(" - ")
			b.WriteString(ev.End.Format("3:04 pm"))
		}
		if ev.Location != "" {
			b.WriteString("\n📌 ")
			b.WriteString(ev.Location)
		}
		// Drop descriptions that just repeat the summary.
		if ev.Description != "" && !strings.Contains(ev.Description, ev.Summary) {
			b.WriteString("\n✏️ ")
			b.WriteString(ev.Description)
		}
	}

	return b.String()
}
