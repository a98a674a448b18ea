package adapter

import (
	"encoding/json"
	"fmt"

	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/teemow/calendar-mcp/internal/schema"
)

// buildEvent converts a validated create request into the service's event
// body.
func buildEvent(req schema.CreateEvent) (*calendarapi.Event, error) {
	event := &calendarapi.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Location:    req.Location,
		Visibility:  req.Visibility,
		Status:      req.Status,
		Start:       toEventDateTime(req.Start),
		End:         toEventDateTime(req.End),
	}
	if len(req.Attendees) > 0 {
		event.Attendees = toAttendees(req.Attendees)
	}
	if req.Recurrence != nil {
		event.Recurrence = recurrenceLines(*req.Recurrence)
	}
	if req.Reminders != nil {
		reminders := &calendarapi.EventReminders{}
		if err := remap(req.Reminders, reminders); err != nil {
			return nil, fmt.Errorf("invalid reminders: %w", err)
		}
		reminders.ForceSendFields = []string{"UseDefault"}
		event.Reminders = reminders
	}
	if req.ConferenceData != nil {
		conference := &calendarapi.ConferenceData{}
		if err := remap(req.ConferenceData, conference); err != nil {
			return nil, fmt.Errorf("invalid conferenceData: %w", err)
		}
		event.ConferenceData = conference
	}
	return event, nil
}

// buildPatch converts a validated update request into a sparse patch body.
// Fields the caller never mentioned stay out entirely; fields set to null
// are listed in NullFields so the service clears them.
func buildPatch(req schema.UpdateEvent) (*calendarapi.Event, error) {
	patch := &calendarapi.Event{}

	setString := func(opt schema.Optional[string], apiField string, dst *string) {
		if !opt.Present {
			return
		}
		if opt.Null {
			patch.NullFields = append(patch.NullFields, apiField)
			return
		}
		*dst = opt.Value
		if opt.Value == "" {
			patch.ForceSendFields = append(patch.ForceSendFields, apiField)
		}
	}
	setString(req.Summary, "Summary", &patch.Summary)
	setString(req.Description, "Description", &patch.Description)
	setString(req.Location, "Location", &patch.Location)
	setString(req.Visibility, "Visibility", &patch.Visibility)
	setString(req.Status, "Status", &patch.Status)

	if req.Start.Present {
		if req.Start.Null {
			patch.NullFields = append(patch.NullFields, "Start")
		} else {
			patch.Start = toEventDateTime(req.Start.Value)
		}
	}
	if req.End.Present {
		if req.End.Null {
			patch.NullFields = append(patch.NullFields, "End")
		} else {
			patch.End = toEventDateTime(req.End.Value)
		}
	}
	if req.Attendees.Present {
		if req.Attendees.Null {
			patch.NullFields = append(patch.NullFields, "Attendees")
		} else {
			patch.Attendees = toAttendees(req.Attendees.Value)
			if len(patch.Attendees) == 0 {
				patch.ForceSendFields = append(patch.ForceSendFields, "Attendees")
			}
		}
	}
	if req.Recurrence.Present {
		if req.Recurrence.Null {
			patch.NullFields = append(patch.NullFields, "Recurrence")
		} else {
			patch.Recurrence = recurrenceLines(req.Recurrence.Value)
		}
	}
	if req.Reminders.Present {
		if req.Reminders.Null {
			patch.NullFields = append(patch.NullFields, "Reminders")
		} else {
			reminders := &calendarapi.EventReminders{}
			if err := remap(req.Reminders.Value, reminders); err != nil {
				return nil, fmt.Errorf("invalid reminders: %w", err)
			}
			patch.Reminders = reminders
		}
	}
	if req.ConferenceData.Present {
		if req.ConferenceData.Null {
			patch.NullFields = append(patch.NullFields, "ConferenceData")
		} else {
			conference := &calendarapi.ConferenceData{}
			if err := remap(req.ConferenceData.Value, conference); err != nil {
				return nil, fmt.Errorf("invalid conferenceData: %w", err)
			}
			patch.ConferenceData = conference
		}
	}
	return patch, nil
}

func toEventDateTime(dt schema.EventDateTime) *calendarapi.EventDateTime {
	out := &calendarapi.EventDateTime{}
	if dt.IsAllDay() {
		out.Date = dt.Date
		return out
	}
	out.DateTime = dt.DateTime
	out.TimeZone = dt.TimeZone
	return out
}

func toAttendees(attendees []schema.Attendee) []*calendarapi.EventAttendee {
	out := make([]*calendarapi.EventAttendee, 0, len(attendees))
	for _, att := range attendees {
		out = append(out, &calendarapi.EventAttendee{
			Email:          att.Email,
			DisplayName:    att.DisplayName,
			Optional:       att.Optional,
			ResponseStatus: att.ResponseStatus,
			Comment:        att.Comment,
		})
	}
	return out
}

// recurrenceLines flattens the structured recurrence into the service's
// line format: RRULE lines first, then EXDATE and RDATE entries.
func recurrenceLines(rec schema.Recurrence) []string {
	lines := append([]string(nil), rec.RRule...)
	for _, date := range rec.ExDate {
		lines = append(lines, "EXDATE:"+date)
	}
	for _, date := range rec.RDate {
		lines = append(lines, "RDATE:"+date)
	}
	return lines
}

// remap copies a free-form JSON object into a typed service struct.
func remap(src map[string]any, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
