package schema

import "time"

// Tool names as exposed through tools/list. Stable, referenced by clients.
const (
	ToolCreateEvent   = "create_event"
	ToolUpdateEvent   = "update_event"
	ToolDeleteEvent   = "delete_event"
	ToolFreeBusyQuery = "freebusy_query"
)

// ToolNames returns the catalog in registration order.
func ToolNames() []string {
	return []string{ToolCreateEvent, ToolUpdateEvent, ToolDeleteEvent, ToolFreeBusyQuery}
}

// Request is the closed union of validated operation payloads.
// The router dispatches with a type switch over the concrete types,
// so adding an operation without handling it everywhere fails to compile.
type Request interface {
	Operation() string
	isRequest()
}

// EventDateTime is the start/end boundary of an event. Exactly one of
// DateTime (timed event, RFC3339) or Date (whole-day, YYYY-MM-DD) is set.
type EventDateTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// IsAllDay reports whether the boundary is a whole-day date.
func (dt EventDateTime) IsAllDay() bool { return dt.Date != "" }

// Attendee is an event attendee reference.
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	Optional       bool   `json:"optional,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
	Comment        string `json:"comment,omitempty"`
}

// Recurrence carries RRULE lines plus exception/addition dates.
type Recurrence struct {
	RRule  []string `json:"rrule"`
	ExDate []string `json:"exdate,omitempty"`
	RDate  []string `json:"rdate,omitempty"`
}

// Optional wraps a patch field so that "absent", "explicitly null" and
// "set to a value" stay distinguishable after validation. Only fields with
// Present=true may be sent to the remote service.
type Optional[T any] struct {
	Present bool
	Null    bool
	Value   T
}

// Some returns a present, non-null Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Present: true, Value: v}
}

// Nulled returns a present Optional carrying an explicit null.
func Nulled[T any]() Optional[T] {
	return Optional[T]{Present: true, Null: true}
}

// CreateEvent creates a new event on a calendar.
type CreateEvent struct {
	CalendarID     string
	Summary        string
	Description    string
	Location       string
	Start          EventDateTime
	End            EventDateTime
	Attendees      []Attendee
	Visibility     string
	Status         string
	Recurrence     *Recurrence
	Reminders      map[string]any
	ConferenceData map[string]any
}

func (CreateEvent) Operation() string { return ToolCreateEvent }
func (CreateEvent) isRequest()        {}

// UpdateEvent patches an existing event. Every field beyond the two ids is
// optional; presence, not value, signals intent to update.
type UpdateEvent struct {
	CalendarID string
	EventID    string

	Summary        Optional[string]
	Description    Optional[string]
	Location       Optional[string]
	Start          Optional[EventDateTime]
	End            Optional[EventDateTime]
	Attendees      Optional[[]Attendee]
	Visibility     Optional[string]
	Status         Optional[string]
	Recurrence     Optional[Recurrence]
	Reminders      Optional[map[string]any]
	ConferenceData Optional[map[string]any]
}

func (UpdateEvent) Operation() string { return ToolUpdateEvent }
func (UpdateEvent) isRequest()        {}

// Attendee-notification modes for delete_event.
const (
	SendUpdatesAll          = "all"
	SendUpdatesExternalOnly = "externalOnly"
	SendUpdatesNone         = "none"
)

// DeleteEvent removes an event from a calendar.
type DeleteEvent struct {
	CalendarID  string
	EventID     string
	SendUpdates string // all, externalOnly or none; defaults to all
}

func (DeleteEvent) Operation() string { return ToolDeleteEvent }
func (DeleteEvent) isRequest()        {}

// CalendarRef identifies one calendar in a free/busy query.
type CalendarRef struct {
	ID string `json:"id"`
}

// FreeBusyQuery asks for busy intervals across one or more calendars.
type FreeBusyQuery struct {
	TimeMin  time.Time
	TimeMax  time.Time
	TimeZone string
	Items    []CalendarRef
}

func (FreeBusyQuery) Operation() string { return ToolFreeBusyQuery }
func (FreeBusyQuery) isRequest()        {}

// Envelope is the uniform result wrapper returned to tool callers.
// Operation failures travel as envelopes with Success=false, never as
// transport-level errors.
type Envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// SuccessEnvelope wraps a successful operation result.
func SuccessEnvelope(message string, data map[string]any) Envelope {
	return Envelope{Success: true, Message: message, Data: data}
}

// ErrorEnvelope wraps an operation failure.
func ErrorEnvelope(message string, err error) Envelope {
	env := Envelope{Success: false, Message: message}
	if err != nil {
		env.Error = err.Error()
	}
	return env
}
