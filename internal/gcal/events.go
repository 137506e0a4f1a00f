package gcal

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"plannerbot/internal/event"
)

// AddEvent inserts a completed record into the calendar. All-day records map
// to date-only fields, timed records to RFC3339 datetimes in local time.
func (c *Client) AddEvent(ctx context.Context, rec *event.Record) error {
	if c.service == nil {
		return fmt.Errorf("calendar service not initialized - complete OAuth flow first")
	}
	if rec.StartDate == nil || rec.EndDate == nil {
		return fmt.Errorf("record %q has no dates to schedule", rec.Key)
	}

	created, err := c.service.Events.Insert(c.calendarID, buildEvent(rec)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	fmt.Printf("Created calendar event %s: %s\n", created.Id, created.Summary)
	return nil
}

// buildEvent maps a record onto the Calendar API event shape.
func buildEvent(rec *event.Record) *calendar.Event {
	gEvent := &calendar.Event{
		Summary:     rec.Summary,
		Location:    rec.Location,
		Description: rec.Note,
	}

	if rec.AllDay {
		gEvent.Start = &calendar.EventDateTime{Date: rec.StartDate.Format("2006-01-02")}
		// The Calendar API treats the end date of all-day events as exclusive.
		gEvent.End = &calendar.EventDateTime{Date: rec.EndDate.AddDate(0, 0, 1).Format("2006-01-02")}
	} else {
		gEvent.Start = &calendar.EventDateTime{DateTime: rec.StartDate.Format(time.RFC3339)}
		gEvent.End = &calendar.EventDateTime{DateTime: rec.EndDate.Format(time.RFC3339)}
	}

	return gEvent
}

// TodayEvent is one entry of the daily digest.
type TodayEvent struct {
	Summary     string
	Location    string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
}

// ListTodayEvents returns today's events ordered by start time.
func (c *Client) ListTodayEvents(ctx context.Context) ([]TodayEvent, error) {
	if c.service == nil {
		return nil, fmt.Errorf("calendar service not initialized - complete OAuth flow first")
	}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	var events []TodayEvent
	pageToken := ""
	for {
		call := c.service.Events.List(c.calendarID).
			TimeMin(startOfDay.Format(time.RFC3339)).
			TimeMax(endOfDay.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list today's events: %w", err)
		}

		for _, item := range resp.Items {
			te, ok := parseGoogleEventTimes(item)
			if !ok {
				continue
			}
			events = append(events, te)
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return events, nil
}

// parseGoogleEventTimes converts a Google event into a TodayEvent, skipping
// items whose start or end cannot be parsed.
func parseGoogleEventTimes(item *calendar.Event) (TodayEvent, bool) {
	te := TodayEvent{
		Summary:     item.Summary,
		Location:    item.Location,
		Description: item.Description,
	}

	if item.Start == nil || item.End == nil {
		return te, false
	}

	if item.Start.Date != "" {
		start, err := time.ParseInLocation("2006-01-02", item.Start.Date, time.Local)
		if err != nil {
			return te, false
		}
		end, err := time.ParseInLocation("2006-01-02", item.End.Date, time.Local)
		if err != nil {
			return te, false
		}
		te.Start = start
		te.End = end
		te.AllDay = true
		return te, true
	}

	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return te, false
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return te, false
	}
	te.Start = start
	te.End = end
	return te, true
}
