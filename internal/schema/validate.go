package schema

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Validate checks raw tool-call arguments against the schema for the named
// tool and returns the typed request. The returned error is either an
// *UnknownOperationError or a *ValidationError listing every violation.
func Validate(tool string, args map[string]any) (Request, error) {
	if args == nil {
		args = map[string]any{}
	}
	switch tool {
	case ToolCreateEvent:
		return validateCreateEvent(args)
	case ToolUpdateEvent:
		return validateUpdateEvent(args)
	case ToolDeleteEvent:
		return validateDeleteEvent(args)
	case ToolFreeBusyQuery:
		return validateFreeBusyQuery(args)
	default:
		return nil, &UnknownOperationError{Tool: tool}
	}
}

// violations accumulates field errors so a single pass reports everything.
type violations struct {
	tool string
	list []FieldViolation
}

func (v *violations) add(field, expected, reason string) {
	v.list = append(v.list, FieldViolation{Field: field, Expected: expected, Reason: reason})
}

func (v *violations) err() error {
	if len(v.list) == 0 {
		return nil
	}
	return &ValidationError{Tool: v.tool, Violations: v.list}
}

func validateCreateEvent(args map[string]any) (Request, error) {
	v := &violations{tool: ToolCreateEvent}
	req := CreateEvent{
		CalendarID: requireString(v, args, "calendarId"),
		Summary:    requireString(v, args, "summary"),
	}

	if raw, ok := args["start"]; ok {
		req.Start = parseEventDateTime(v, "start", raw)
	} else {
		v.add("start", "object with dateTime or date", "field is required")
	}
	if raw, ok := args["end"]; ok {
		req.End = parseEventDateTime(v, "end", raw)
	} else {
		v.add("end", "object with dateTime or date", "field is required")
	}

	req.Description = optionalString(v, args, "description")
	req.Location = optionalString(v, args, "location")
	req.Visibility = optionalEnum(v, args, "visibility", "default", "public", "private")
	req.Status = optionalEnum(v, args, "status", "tentative", "confirmed", "cancelled")

	if raw, ok := args["attendees"]; ok && raw != nil {
		req.Attendees = parseAttendees(v, "attendees", raw)
	}
	if raw, ok := args["recurrence"]; ok && raw != nil {
		if rec, ok := parseRecurrence(v, "recurrence", raw); ok {
			req.Recurrence = &rec
		}
	}
	if raw, ok := args["reminders"]; ok && raw != nil {
		req.Reminders = parseObject(v, "reminders", raw)
	}
	if raw, ok := args["conferenceData"]; ok && raw != nil {
		req.ConferenceData = parseObject(v, "conferenceData", raw)
	}

	if err := v.err(); err != nil {
		return nil, err
	}
	return req, nil
}

func validateUpdateEvent(args map[string]any) (Request, error) {
	v := &violations{tool: ToolUpdateEvent}
	req := UpdateEvent{
		CalendarID: requireString(v, args, "calendarId"),
		EventID:    requireString(v, args, "eventId"),
	}

	req.Summary = optionalPatchString(v, args, "summary")
	req.Description = optionalPatchString(v, args, "description")
	req.Location = optionalPatchString(v, args, "location")
	req.Visibility = optionalPatchEnum(v, args, "visibility", "default", "public", "private")
	req.Status = optionalPatchEnum(v, args, "status", "tentative", "confirmed", "cancelled")

	if raw, present := args["start"]; present {
		if raw == nil {
			req.Start = Nulled[EventDateTime]()
		} else {
			req.Start = Some(parseEventDateTime(v, "start", raw))
		}
	}
	if raw, present := args["end"]; present {
		if raw == nil {
			req.End = Nulled[EventDateTime]()
		} else {
			req.End = Some(parseEventDateTime(v, "end", raw))
		}
	}
	if raw, present := args["attendees"]; present {
		if raw == nil {
			req.Attendees = Nulled[[]Attendee]()
		} else {
			req.Attendees = Some(parseAttendees(v, "attendees", raw))
		}
	}
	if raw, present := args["recurrence"]; present {
		if raw == nil {
			req.Recurrence = Nulled[Recurrence]()
		} else if rec, ok := parseRecurrence(v, "recurrence", raw); ok {
			req.Recurrence = Some(rec)
		}
	}
	if raw, present := args["reminders"]; present {
		if raw == nil {
			req.Reminders = Nulled[map[string]any]()
		} else {
			req.Reminders = Some(parseObject(v, "reminders", raw))
		}
	}
	if raw, present := args["conferenceData"]; present {
		if raw == nil {
			req.ConferenceData = Nulled[map[string]any]()
		} else {
			req.ConferenceData = Some(parseObject(v, "conferenceData", raw))
		}
	}

	if err := v.err(); err != nil {
		return nil, err
	}
	return req, nil
}

func validateDeleteEvent(args map[string]any) (Request, error) {
	v := &violations{tool: ToolDeleteEvent}
	req := DeleteEvent{
		CalendarID:  requireString(v, args, "calendarId"),
		EventID:     requireString(v, args, "eventId"),
		SendUpdates: SendUpdatesAll,
	}
	if mode := optionalEnum(v, args, "sendUpdates", SendUpdatesAll, SendUpdatesExternalOnly, SendUpdatesNone); mode != "" {
		req.SendUpdates = mode
	}
	if err := v.err(); err != nil {
		return nil, err
	}
	return req, nil
}

func validateFreeBusyQuery(args map[string]any) (Request, error) {
	v := &violations{tool: ToolFreeBusyQuery}
	req := FreeBusyQuery{
		TimeMin:  requireTime(v, args, "timeMin"),
		TimeMax:  requireTime(v, args, "timeMax"),
		TimeZone: optionalString(v, args, "timeZone"),
	}
	if !req.TimeMin.IsZero() && !req.TimeMax.IsZero() && !req.TimeMin.Before(req.TimeMax) {
		v.add("timeMin", "timeMin < timeMax", "time range is empty or inverted")
	}

	raw, ok := args["items"]
	if !ok || raw == nil {
		v.add("items", "non-empty array of {id} objects", "field is required")
	} else if items, isList := raw.([]any); !isList {
		v.add("items", "non-empty array of {id} objects", fmt.Sprintf("got %T", raw))
	} else if len(items) == 0 {
		v.add("items", "non-empty array of {id} objects", "at least one calendar must be specified")
	} else {
		for i, item := range items {
			entry, isMap := item.(map[string]any)
			if !isMap {
				v.add(fmt.Sprintf("items[%d]", i), "object with an id field", fmt.Sprintf("got %T", item))
				continue
			}
			id, _ := entry["id"].(string)
			if id == "" {
				v.add(fmt.Sprintf("items[%d].id", i), "non-empty string", "calendar reference lacks an identifier")
				continue
			}
			req.Items = append(req.Items, CalendarRef{ID: id})
		}
	}

	if err := v.err(); err != nil {
		return nil, err
	}
	return req, nil
}

func requireString(v *violations, args map[string]any, key string) string {
	raw, ok := args[key]
	if !ok || raw == nil {
		v.add(key, "non-empty string", "field is required")
		return ""
	}
	s, isString := raw.(string)
	if !isString {
		v.add(key, "non-empty string", fmt.Sprintf("got %T", raw))
		return ""
	}
	if s == "" {
		v.add(key, "non-empty string", "must not be empty")
	}
	return s
}

func optionalString(v *violations, args map[string]any, key string) string {
	raw, ok := args[key]
	if !ok || raw == nil {
		return ""
	}
	s, isString := raw.(string)
	if !isString {
		v.add(key, "string", fmt.Sprintf("got %T", raw))
		return ""
	}
	return s
}

func optionalEnum(v *violations, args map[string]any, key string, allowed ...string) string {
	s := optionalString(v, args, key)
	if s == "" {
		return ""
	}
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	v.add(key, fmt.Sprintf("one of %v", allowed), fmt.Sprintf("got %q", s))
	return ""
}

func optionalPatchString(v *violations, args map[string]any, key string) Optional[string] {
	raw, present := args[key]
	if !present {
		return Optional[string]{}
	}
	if raw == nil {
		return Nulled[string]()
	}
	s, isString := raw.(string)
	if !isString {
		v.add(key, "string or null", fmt.Sprintf("got %T", raw))
		return Optional[string]{}
	}
	return Some(s)
}

func optionalPatchEnum(v *violations, args map[string]any, key string, allowed ...string) Optional[string] {
	opt := optionalPatchString(v, args, key)
	if !opt.Present || opt.Null {
		return opt
	}
	for _, a := range allowed {
		if opt.Value == a {
			return opt
		}
	}
	v.add(key, fmt.Sprintf("one of %v", allowed), fmt.Sprintf("got %q", opt.Value))
	return Optional[string]{}
}

func requireTime(v *violations, args map[string]any, key string) time.Time {
	s := requireString(v, args, key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		v.add(key, "RFC3339 timestamp", err.Error())
		return time.Time{}
	}
	return t
}

// parseEventDateTime enforces the one-of-{dateTime,date} invariant.
func parseEventDateTime(v *violations, field string, raw any) EventDateTime {
	obj, isMap := raw.(map[string]any)
	if !isMap {
		v.add(field, "object with dateTime or date", fmt.Sprintf("got %T", raw))
		return EventDateTime{}
	}

	dt := EventDateTime{}
	if s, ok := obj["dateTime"].(string); ok && s != "" {
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			v.add(field+".dateTime", "RFC3339 timestamp", err.Error())
		}
		dt.DateTime = s
	}
	if s, ok := obj["date"].(string); ok && s != "" {
		if _, err := time.Parse(dateLayout, s); err != nil {
			v.add(field+".date", "YYYY-MM-DD date", err.Error())
		}
		dt.Date = s
	}
	if s, ok := obj["timeZone"].(string); ok {
		dt.TimeZone = s
	}

	switch {
	case dt.DateTime == "" && dt.Date == "":
		v.add(field, "exactly one of dateTime or date", "neither dateTime nor date provided")
	case dt.DateTime != "" && dt.Date != "":
		v.add(field, "exactly one of dateTime or date", "both dateTime and date provided")
	}
	return dt
}

func parseAttendees(v *violations, field string, raw any) []Attendee {
	list, isList := raw.([]any)
	if !isList {
		v.add(field, "array of attendee objects", fmt.Sprintf("got %T", raw))
		return nil
	}
	attendees := make([]Attendee, 0, len(list))
	for i, item := range list {
		obj, isMap := item.(map[string]any)
		if !isMap {
			v.add(fmt.Sprintf("%s[%d]", field, i), "attendee object", fmt.Sprintf("got %T", item))
			continue
		}
		att := Attendee{ResponseStatus: "needsAction"}
		if email, ok := obj["email"].(string); ok && email != "" {
			att.Email = email
		} else {
			v.add(fmt.Sprintf("%s[%d].email", field, i), "non-empty string", "attendee email is required")
		}
		if name, ok := obj["displayName"].(string); ok {
			att.DisplayName = name
		}
		if opt, ok := obj["optional"].(bool); ok {
			att.Optional = opt
		}
		if status, ok := obj["responseStatus"].(string); ok && status != "" {
			switch status {
			case "needsAction", "declined", "tentative", "accepted":
				att.ResponseStatus = status
			default:
				v.add(fmt.Sprintf("%s[%d].responseStatus", field, i),
					"one of [needsAction declined tentative accepted]", fmt.Sprintf("got %q", status))
			}
		}
		if comment, ok := obj["comment"].(string); ok {
			att.Comment = comment
		}
		attendees = append(attendees, att)
	}
	return attendees
}

func parseRecurrence(v *violations, field string, raw any) (Recurrence, bool) {
	obj, isMap := raw.(map[string]any)
	if !isMap {
		v.add(field, "object with rrule array", fmt.Sprintf("got %T", raw))
		return Recurrence{}, false
	}
	rec := Recurrence{}
	rrule, ok := toStringSlice(obj["rrule"])
	if !ok || len(rrule) == 0 {
		v.add(field+".rrule", "non-empty array of RRULE strings", "field is required")
		return Recurrence{}, false
	}
	rec.RRule = rrule
	if exdate, ok := toStringSlice(obj["exdate"]); ok {
		rec.ExDate = exdate
	}
	if rdate, ok := toStringSlice(obj["rdate"]); ok {
		rec.RDate = rdate
	}
	return rec, true
}

func parseObject(v *violations, field string, raw any) map[string]any {
	obj, isMap := raw.(map[string]any)
	if !isMap {
		v.add(field, "object", fmt.Sprintf("got %T", raw))
		return nil
	}
	return obj
}

func toStringSlice(raw any) ([]string, bool) {
	if raw == nil {
		return nil, false
	}
	list, isList := raw.([]any)
	if !isList {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, isString := item.(string)
		if !isString {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
