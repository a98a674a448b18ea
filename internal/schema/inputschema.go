package schema

import "encoding/json"

// InputSchema returns the JSON schema advertised through tools/list for the
// named tool, or nil for an unknown tool. The schemas mirror what Validate
// enforces; clients that honor them never hit a ValidationError.
func InputSchema(tool string) json.RawMessage {
	switch tool {
	case ToolCreateEvent:
		return createEventSchema
	case ToolUpdateEvent:
		return updateEventSchema
	case ToolDeleteEvent:
		return deleteEventSchema
	case ToolFreeBusyQuery:
		return freeBusyQuerySchema
	default:
		return nil
	}
}

var eventDateTimeSchema = `{
  "type": "object",
  "description": "Event boundary. Exactly one of dateTime (timed) or date (all-day) must be set.",
  "properties": {
    "dateTime": {"type": "string", "format": "date-time", "description": "RFC3339 timestamp for timed events"},
    "date": {"type": "string", "format": "date", "description": "YYYY-MM-DD for all-day events"},
    "timeZone": {"type": "string", "description": "IANA time zone name, e.g. Europe/Berlin"}
  }
}`

var attendeesSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "email": {"type": "string", "description": "Attendee email address"},
      "displayName": {"type": "string"},
      "optional": {"type": "boolean"},
      "responseStatus": {"type": "string", "enum": ["needsAction", "declined", "tentative", "accepted"]},
      "comment": {"type": "string"}
    },
    "required": ["email"]
  }
}`

var recurrenceSchema = `{
  "type": "object",
  "properties": {
    "rrule": {"type": "array", "items": {"type": "string"}, "description": "RRULE lines, e.g. RRULE:FREQ=WEEKLY;BYDAY=MO"},
    "exdate": {"type": "array", "items": {"type": "string"}, "description": "Dates excluded from the recurrence"},
    "rdate": {"type": "array", "items": {"type": "string"}, "description": "Extra dates added to the recurrence"}
  },
  "required": ["rrule"]
}`

var createEventSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "calendarId": {"type": "string", "description": "Calendar to create the event on, e.g. primary"},
    "summary": {"type": "string", "description": "Event title"},
    "description": {"type": "string"},
    "location": {"type": "string"},
    "start": ` + eventDateTimeSchema + `,
    "end": ` + eventDateTimeSchema + `,
    "attendees": ` + attendeesSchema + `,
    "visibility": {"type": "string", "enum": ["default", "public", "private"]},
    "status": {"type": "string", "enum": ["tentative", "confirmed", "cancelled"]},
    "recurrence": ` + recurrenceSchema + `,
    "reminders": {"type": "object", "description": "Reminder overrides, passed through to the calendar service"},
    "conferenceData": {"type": "object", "description": "Conference solution request, passed through to the calendar service"}
  },
  "required": ["calendarId", "summary", "start", "end"]
}`)

var updateEventSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "calendarId": {"type": "string", "description": "Calendar holding the event"},
    "eventId": {"type": "string", "description": "Identifier of the event to update"},
    "summary": {"type": ["string", "null"]},
    "description": {"type": ["string", "null"]},
    "location": {"type": ["string", "null"]},
    "start": ` + eventDateTimeSchema + `,
    "end": ` + eventDateTimeSchema + `,
    "attendees": ` + attendeesSchema + `,
    "visibility": {"type": ["string", "null"], "enum": ["default", "public", "private", null]},
    "status": {"type": ["string", "null"], "enum": ["tentative", "confirmed", "cancelled", null]},
    "recurrence": ` + recurrenceSchema + `,
    "reminders": {"type": ["object", "null"]},
    "conferenceData": {"type": ["object", "null"]}
  },
  "required": ["calendarId", "eventId"],
  "description": "Only fields present in the request are changed. Passing null clears a field."
}`)

var deleteEventSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "calendarId": {"type": "string", "description": "Calendar holding the event"},
    "eventId": {"type": "string", "description": "Identifier of the event to delete"},
    "sendUpdates": {"type": "string", "enum": ["all", "externalOnly", "none"], "default": "all", "description": "Which attendees to notify about the cancellation"}
  },
  "required": ["calendarId", "eventId"]
}`)

var freeBusyQuerySchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "timeMin": {"type": "string", "format": "date-time", "description": "Start of the queried window, RFC3339"},
    "timeMax": {"type": "string", "format": "date-time", "description": "End of the queried window, RFC3339"},
    "timeZone": {"type": "string", "description": "Time zone for the returned intervals"},
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "properties": {"id": {"type": "string", "description": "Calendar identifier"}},
        "required": ["id"]
      }
    }
  },
  "required": ["timeMin", "timeMax", "items"]
}`)
