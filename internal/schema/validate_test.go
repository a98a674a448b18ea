package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUnknownTool(t *testing.T) {
	_, err := Validate("move_event", map[string]any{})
	require.Error(t, err)

	var unknown *UnknownOperationError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "move_event", unknown.Tool)
}

func TestValidateCreateEvent(t *testing.T) {
	args := map[string]any{
		"calendarId": "primary",
		"summary":    "Sprint planning",
		"start":      map[string]any{"dateTime": "2026-03-02T10:00:00Z"},
		"end":        map[string]any{"dateTime": "2026-03-02T11:00:00Z", "timeZone": "Europe/Berlin"},
		"attendees": []any{
			map[string]any{"email": "dev@example.com", "optional": true},
		},
		"recurrence": map[string]any{
			"rrule":  []any{"RRULE:FREQ=WEEKLY;BYDAY=MO"},
			"exdate": []any{"2026-04-06"},
		},
	}

	req, err := Validate(ToolCreateEvent, args)
	require.NoError(t, err)

	create, ok := req.(CreateEvent)
	require.True(t, ok)
	assert.Equal(t, "primary", create.CalendarID)
	assert.Equal(t, "Sprint planning", create.Summary)
	assert.Equal(t, "2026-03-02T10:00:00Z", create.Start.DateTime)
	assert.False(t, create.Start.IsAllDay())
	assert.Equal(t, "Europe/Berlin", create.End.TimeZone)
	require.Len(t, create.Attendees, 1)
	assert.True(t, create.Attendees[0].Optional)
	assert.Equal(t, "needsAction", create.Attendees[0].ResponseStatus)
	require.NotNil(t, create.Recurrence)
	assert.Equal(t, []string{"2026-04-06"}, create.Recurrence.ExDate)
}

func TestValidateCreateEventAllDay(t *testing.T) {
	req, err := Validate(ToolCreateEvent, map[string]any{
		"calendarId": "primary",
		"summary":    "Conference",
		"start":      map[string]any{"date": "2026-03-02"},
		"end":        map[string]any{"date": "2026-03-04"},
	})
	require.NoError(t, err)

	create := req.(CreateEvent)
	assert.True(t, create.Start.IsAllDay())
	assert.Equal(t, "2026-03-04", create.End.Date)
}

func TestValidateCreateEventCollectsAllViolations(t *testing.T) {
	_, err := Validate(ToolCreateEvent, map[string]any{
		"summary": "",
		"start":   map[string]any{"dateTime": "2026-03-02T10:00:00Z", "date": "2026-03-02"},
		"status":  "maybe",
	})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ToolCreateEvent, verr.Tool)

	fields := make([]string, 0, len(verr.Violations))
	for _, violation := range verr.Violations {
		fields = append(fields, violation.Field)
	}
	// Missing calendarId, empty summary, both boundary variants on start,
	// missing end, bad status enum. All reported in one pass.
	assert.Contains(t, fields, "calendarId")
	assert.Contains(t, fields, "summary")
	assert.Contains(t, fields, "start")
	assert.Contains(t, fields, "end")
	assert.Contains(t, fields, "status")
	assert.GreaterOrEqual(t, len(verr.Violations), 5)
}

func TestValidateCreateEventBoundaryVariants(t *testing.T) {
	tests := []struct {
		name  string
		start map[string]any
		valid bool
	}{
		{"timed", map[string]any{"dateTime": "2026-03-02T10:00:00+01:00"}, true},
		{"all day", map[string]any{"date": "2026-03-02"}, true},
		{"neither", map[string]any{"timeZone": "UTC"}, false},
		{"both", map[string]any{"dateTime": "2026-03-02T10:00:00Z", "date": "2026-03-02"}, false},
		{"bad timestamp", map[string]any{"dateTime": "tomorrow at ten"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(ToolCreateEvent, map[string]any{
				"calendarId": "primary",
				"summary":    "x",
				"start":      tt.start,
				"end":        map[string]any{"dateTime": "2026-03-02T11:00:00Z"},
			})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateUpdateEventPresenceTracking(t *testing.T) {
	req, err := Validate(ToolUpdateEvent, map[string]any{
		"calendarId":  "primary",
		"eventId":     "abc123",
		"summary":     "Renamed",
		"description": nil,
	})
	require.NoError(t, err)

	update := req.(UpdateEvent)
	assert.True(t, update.Summary.Present)
	assert.Equal(t, "Renamed", update.Summary.Value)
	assert.True(t, update.Description.Present)
	assert.True(t, update.Description.Null)
	assert.False(t, update.Location.Present)
	assert.False(t, update.Start.Present)
}

func TestValidateUpdateEventRequiresIdentifiers(t *testing.T) {
	_, err := Validate(ToolUpdateEvent, map[string]any{"summary": "x"})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 2)
}

func TestValidateDeleteEventDefaultsSendUpdates(t *testing.T) {
	req, err := Validate(ToolDeleteEvent, map[string]any{
		"calendarId": "primary",
		"eventId":    "abc123",
	})
	require.NoError(t, err)
	assert.Equal(t, SendUpdatesAll, req.(DeleteEvent).SendUpdates)

	req, err = Validate(ToolDeleteEvent, map[string]any{
		"calendarId":  "primary",
		"eventId":     "abc123",
		"sendUpdates": "none",
	})
	require.NoError(t, err)
	assert.Equal(t, SendUpdatesNone, req.(DeleteEvent).SendUpdates)

	_, err = Validate(ToolDeleteEvent, map[string]any{
		"calendarId":  "primary",
		"eventId":     "abc123",
		"sendUpdates": "everyone",
	})
	assert.Error(t, err)
}

func TestValidateFreeBusyQuery(t *testing.T) {
	req, err := Validate(ToolFreeBusyQuery, map[string]any{
		"timeMin":  "2026-03-02T00:00:00Z",
		"timeMax":  "2026-03-03T00:00:00Z",
		"timeZone": "Europe/Berlin",
		"items": []any{
			map[string]any{"id": "primary"},
			map[string]any{"id": "team@example.com"},
		},
	})
	require.NoError(t, err)

	query := req.(FreeBusyQuery)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), query.TimeMin)
	require.Len(t, query.Items, 2)
	assert.Equal(t, "team@example.com", query.Items[1].ID)
}

func TestValidateFreeBusyQueryRejectsBadRanges(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{
			"inverted range",
			map[string]any{
				"timeMin": "2026-03-03T00:00:00Z",
				"timeMax": "2026-03-02T00:00:00Z",
				"items":   []any{map[string]any{"id": "primary"}},
			},
		},
		{
			"empty items",
			map[string]any{
				"timeMin": "2026-03-02T00:00:00Z",
				"timeMax": "2026-03-03T00:00:00Z",
				"items":   []any{},
			},
		},
		{
			"item without id",
			map[string]any{
				"timeMin": "2026-03-02T00:00:00Z",
				"timeMax": "2026-03-03T00:00:00Z",
				"items":   []any{map[string]any{"email": "primary"}},
			},
		},
		{
			"non-RFC3339 bounds",
			map[string]any{
				"timeMin": "yesterday",
				"timeMax": "2026-03-03T00:00:00Z",
				"items":   []any{map[string]any{"id": "primary"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(ToolFreeBusyQuery, tt.args)
			assert.Error(t, err)
		})
	}
}

func TestInputSchemasAreValidJSON(t *testing.T) {
	for _, tool := range ToolNames() {
		raw := InputSchema(tool)
		require.NotNil(t, raw, tool)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded), tool)
		assert.Equal(t, "object", decoded["type"], tool)
	}
	assert.Nil(t, InputSchema("unknown"))
}
