package calendar

import (
	calendar "google.golang.org/api/calendar/v3"
)

// EventState flattens an event into the map shape used for audit
// before/after snapshots and response payloads. Only fields a caller could
// have set or would want to inspect are included.
func EventState(event *calendar.Event) map[string]any {
	if event == nil {
		return nil
	}
	state := map[string]any{
		"id":     event.Id,
		"status": event.Status,
	}
	setIfNotEmpty := func(key, value string) {
		if value != "" {
			state[key] = value
		}
	}
	setIfNotEmpty("summary", event.Summary)
	setIfNotEmpty("description", event.Description)
	setIfNotEmpty("location", event.Location)
	setIfNotEmpty("visibility", event.Visibility)
	setIfNotEmpty("html_link", event.HtmlLink)
	setIfNotEmpty("created", event.Created)
	setIfNotEmpty("updated", event.Updated)

	if event.Start != nil {
		state["start"] = boundaryState(event.Start)
	}
	if event.End != nil {
		state["end"] = boundaryState(event.End)
	}
	if len(event.Recurrence) > 0 {
		state["recurrence"] = append([]string(nil), event.Recurrence...)
	}
	if len(event.Attendees) > 0 {
		attendees := make([]any, 0, len(event.Attendees))
		for _, att := range event.Attendees {
			entry := map[string]any{"email": att.Email}
			if att.DisplayName != "" {
				entry["displayName"] = att.DisplayName
			}
			if att.ResponseStatus != "" {
				entry["responseStatus"] = att.ResponseStatus
			}
			if att.Optional {
				entry["optional"] = true
			}
			attendees = append(attendees, entry)
		}
		state["attendees"] = attendees
	}
	return state
}

func boundaryState(dt *calendar.EventDateTime) map[string]any {
	out := map[string]any{}
	if dt.DateTime != "" {
		out["dateTime"] = dt.DateTime
	}
	if dt.Date != "" {
		out["date"] = dt.Date
	}
	if dt.TimeZone != "" {
		out["timeZone"] = dt.TimeZone
	}
	return out
}

// BusyWindows flattens a free/busy response into per-calendar busy interval
// lists, carrying through any per-calendar lookup errors.
func BusyWindows(resp *calendar.FreeBusyResponse) map[string]any {
	if resp == nil {
		return nil
	}
	calendars := make(map[string]any, len(resp.Calendars))
	for id, cal := range resp.Calendars {
		entry := map[string]any{}
		busy := make([]any, 0, len(cal.Busy))
		for _, window := range cal.Busy {
			busy = append(busy, map[string]any{
				"start": window.Start,
				"end":   window.End,
			})
		}
		entry["busy"] = busy
		if len(cal.Errors) > 0 {
			var reasons []any
			for _, calErr := range cal.Errors {
				reasons = append(reasons, calErr.Reason)
			}
			entry["errors"] = reasons
		}
		calendars[id] = entry
	}
	return calendars
}
