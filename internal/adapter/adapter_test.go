package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/teemow/calendar-mcp/internal/audit"
	"github.com/teemow/calendar-mcp/internal/retry"
	"github.com/teemow/calendar-mcp/internal/schema"
	"github.com/teemow/calendar-mcp/internal/workers"
)

// fakeAPI records calls and plays back configured responses.
type fakeAPI struct {
	mu sync.Mutex

	insertCalendarID string
	insertBody       *calendarapi.Event
	insertSendMode   string
	insertConference int64
	insertErr        error

	patchCalendarID string
	patchEventID    string
	patchBody       *calendarapi.Event
	patchErr        error

	getEvent *calendarapi.Event
	getErr   error

	deleteCalls    int
	deleteSendMode string
	deleteErr      error

	freeBusyReq  *calendarapi.FreeBusyRequest
	freeBusyResp *calendarapi.FreeBusyResponse
	freeBusyErr  error
}

func (f *fakeAPI) InsertEvent(_ context.Context, calendarID string, event *calendarapi.Event, sendUpdates string, conferenceVersion int64) (*calendarapi.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalendarID = calendarID
	f.insertBody = event
	f.insertSendMode = sendUpdates
	f.insertConference = conferenceVersion
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	created := *event
	created.Id = "created-1"
	created.HtmlLink = "https://calendar.example/created-1"
	return &created, nil
}

func (f *fakeAPI) GetEvent(context.Context, string, string) (*calendarapi.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getEvent, f.getErr
}

func (f *fakeAPI) PatchEvent(_ context.Context, calendarID, eventID string, patch *calendarapi.Event, _ string) (*calendarapi.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patchCalendarID = calendarID
	f.patchEventID = eventID
	f.patchBody = patch
	if f.patchErr != nil {
		return nil, f.patchErr
	}
	updated := *patch
	updated.Id = eventID
	if updated.Summary == "" {
		updated.Summary = "Existing title"
	}
	return &updated, nil
}

func (f *fakeAPI) DeleteEvent(_ context.Context, _, _, sendUpdates string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	f.deleteSendMode = sendUpdates
	return f.deleteErr
}

func (f *fakeAPI) QueryFreeBusy(_ context.Context, req *calendarapi.FreeBusyRequest) (*calendarapi.FreeBusyResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freeBusyReq = req
	return f.freeBusyResp, f.freeBusyErr
}

func newTestAdapter(t *testing.T, api *fakeAPI) (*Adapter, *bytes.Buffer) {
	t.Helper()
	pool := workers.NewPool(workers.Config{
		Workers: 2, QueueSize: 10, RequestsPerSecond: 1000,
		WaitTimeout: 5 * time.Second, QuotaPause: time.Millisecond,
	}, nil)
	t.Cleanup(pool.Shutdown)

	var trail bytes.Buffer
	retryCfg := retry.Config{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	return New(api, pool, retryCfg, audit.NewLogger(&trail, nil), nil), &trail
}

func auditRecords(t *testing.T, trail *bytes.Buffer) []audit.Record {
	t.Helper()
	var records []audit.Record
	for _, line := range strings.Split(strings.TrimSpace(trail.String()), "\n") {
		if line == "" {
			continue
		}
		var rec audit.Record
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}
	return records
}

func TestCreateEventSuccess(t *testing.T) {
	api := &fakeAPI{}
	a, trail := newTestAdapter(t, api)

	req := schema.CreateEvent{
		CalendarID: "primary",
		Summary:    "Sprint planning",
		Start:      schema.EventDateTime{DateTime: "2026-03-02T10:00:00Z", TimeZone: "UTC"},
		End:        schema.EventDateTime{DateTime: "2026-03-02T11:00:00Z", TimeZone: "UTC"},
		Attendees:  []schema.Attendee{{Email: "dev@example.com", ResponseStatus: "needsAction"}},
		Recurrence: &schema.Recurrence{
			RRule:  []string{"RRULE:FREQ=WEEKLY;BYDAY=MO"},
			ExDate: []string{"20260406"},
		},
	}
	env := a.CreateEvent(context.Background(), req, map[string]any{"summary": "Sprint planning"}, "alice")

	require.True(t, env.Success)
	assert.Equal(t, "Event 'Sprint planning' created successfully", env.Message)
	assert.Equal(t, "created-1", env.Data["event_id"])
	assert.Equal(t, "primary", env.Data["calendar_id"])
	assert.Equal(t, "https://calendar.example/created-1", env.Data["html_link"])

	assert.Equal(t, "primary", api.insertCalendarID)
	assert.Equal(t, schema.SendUpdatesAll, api.insertSendMode)
	assert.Equal(t, int64(0), api.insertConference)
	assert.Equal(t, []string{"RRULE:FREQ=WEEKLY;BYDAY=MO", "EXDATE:20260406"}, api.insertBody.Recurrence)
	require.Len(t, api.insertBody.Attendees, 1)
	assert.Equal(t, "dev@example.com", api.insertBody.Attendees[0].Email)

	records := auditRecords(t, trail)
	require.Len(t, records, 2)
	assert.Equal(t, audit.ActionCreate, records[0].Action)
	assert.Nil(t, records[0].AfterState)
	assert.NotEmpty(t, records[0].MutationID)
	assert.Equal(t, records[0].MutationID, records[1].MutationID)
	assert.Equal(t, "alice", records[1].UserID)
	assert.Equal(t, "created-1", records[1].EventID)
	assert.Equal(t, "Sprint planning", records[1].AfterState["summary"])
	assert.True(t, records[1].Success)
}

func TestCreateEventRequestsConferenceVersion(t *testing.T) {
	api := &fakeAPI{}
	a, _ := newTestAdapter(t, api)

	env := a.CreateEvent(context.Background(), schema.CreateEvent{
		CalendarID:     "primary",
		Summary:        "Call",
		Start:          schema.EventDateTime{DateTime: "2026-03-02T10:00:00Z"},
		End:            schema.EventDateTime{DateTime: "2026-03-02T11:00:00Z"},
		ConferenceData: map[string]any{"createRequest": map[string]any{"requestId": "r1"}},
	}, nil, "alice")

	require.True(t, env.Success)
	assert.Equal(t, int64(1), api.insertConference)
	require.NotNil(t, api.insertBody.ConferenceData)
	require.NotNil(t, api.insertBody.ConferenceData.CreateRequest)
	assert.Equal(t, "r1", api.insertBody.ConferenceData.CreateRequest.RequestId)
}

func TestCreateEventFailureProducesErrorEnvelope(t *testing.T) {
	api := &fakeAPI{insertErr: &googleapi.Error{Code: http.StatusForbidden, Message: "forbidden"}}
	a, trail := newTestAdapter(t, api)

	env := a.CreateEvent(context.Background(), schema.CreateEvent{
		CalendarID: "primary",
		Summary:    "Nope",
		Start:      schema.EventDateTime{DateTime: "2026-03-02T10:00:00Z"},
		End:        schema.EventDateTime{DateTime: "2026-03-02T11:00:00Z"},
	}, nil, "alice")

	assert.False(t, env.Success)
	assert.Equal(t, "Failed to create calendar event", env.Message)
	assert.Contains(t, env.Error, "forbidden")

	records := auditRecords(t, trail)
	require.Len(t, records, 2)
	assert.False(t, records[1].Success)
	assert.NotEmpty(t, records[1].Error)
}

func TestUpdateEventSendsOnlyRequestedFields(t *testing.T) {
	api := &fakeAPI{getEvent: &calendarapi.Event{Id: "e1", Summary: "Old title"}}
	a, trail := newTestAdapter(t, api)

	req := schema.UpdateEvent{
		CalendarID:  "primary",
		EventID:     "e1",
		Summary:     schema.Some("New title"),
		Description: schema.Nulled[string](),
	}
	env := a.UpdateEvent(context.Background(), req, map[string]any{"summary": "New title"}, "alice")

	require.True(t, env.Success)
	assert.Equal(t, "Event 'New title' updated successfully", env.Message)

	patch := api.patchBody
	require.NotNil(t, patch)
	assert.Equal(t, "New title", patch.Summary)
	assert.Contains(t, patch.NullFields, "Description")
	assert.Nil(t, patch.Start)
	assert.Nil(t, patch.Attendees)
	assert.Empty(t, patch.Location)
	assert.Empty(t, patch.Recurrence)

	records := auditRecords(t, trail)
	require.Len(t, records, 2)
	assert.Equal(t, "Old title", records[0].BeforeState["summary"])
	assert.Equal(t, "Old title", records[1].BeforeState["summary"])
	assert.Equal(t, "New title", records[1].AfterState["summary"])
}

func TestUpdateEventProceedsWithoutSnapshot(t *testing.T) {
	api := &fakeAPI{getErr: &googleapi.Error{Code: http.StatusNotFound, Message: "missing"}}
	a, trail := newTestAdapter(t, api)

	env := a.UpdateEvent(context.Background(), schema.UpdateEvent{
		CalendarID: "primary",
		EventID:    "e1",
		Summary:    schema.Some("New title"),
	}, nil, "alice")

	require.True(t, env.Success)
	records := auditRecords(t, trail)
	require.Len(t, records, 2)
	assert.Nil(t, records[0].BeforeState)
}

func TestDeleteEventSuccess(t *testing.T) {
	api := &fakeAPI{getEvent: &calendarapi.Event{Id: "e1", Summary: "Doomed"}}
	a, trail := newTestAdapter(t, api)

	env := a.DeleteEvent(context.Background(), schema.DeleteEvent{
		CalendarID:  "primary",
		EventID:     "e1",
		SendUpdates: schema.SendUpdatesNone,
	}, map[string]any{"eventId": "e1"}, "alice")

	require.True(t, env.Success)
	assert.Equal(t, "Event deleted successfully", env.Message)
	assert.Equal(t, true, env.Data["deleted"])
	assert.Equal(t, schema.SendUpdatesNone, env.Data["send_updates"])

	assert.Equal(t, 1, api.deleteCalls)
	assert.Equal(t, schema.SendUpdatesNone, api.deleteSendMode)

	records := auditRecords(t, trail)
	require.Len(t, records, 2)
	assert.Equal(t, audit.ActionDelete, records[0].Action)
	assert.Equal(t, "Doomed", records[0].BeforeState["summary"])
	assert.Equal(t, true, records[1].AfterState["deleted"])
}

func TestDeleteEventNotFound(t *testing.T) {
	api := &fakeAPI{
		getErr:    &googleapi.Error{Code: http.StatusNotFound, Message: "missing"},
		deleteErr: &googleapi.Error{Code: http.StatusNotFound, Message: "missing"},
	}
	a, _ := newTestAdapter(t, api)

	env := a.DeleteEvent(context.Background(), schema.DeleteEvent{
		CalendarID:  "primary",
		EventID:     "gone",
		SendUpdates: schema.SendUpdatesAll,
	}, nil, "alice")

	assert.False(t, env.Success)
	assert.Equal(t, "Failed to delete calendar event", env.Message)
	// 404 is not retryable, one call only.
	assert.Equal(t, 1, api.deleteCalls)
}

func TestFreeBusyQuerySuccess(t *testing.T) {
	api := &fakeAPI{
		freeBusyResp: &calendarapi.FreeBusyResponse{
			Calendars: map[string]calendarapi.FreeBusyCalendar{
				"primary": {Busy: []*calendarapi.TimePeriod{
					{Start: "2026-03-02T10:00:00Z", End: "2026-03-02T11:00:00Z"},
				}},
			},
		},
	}
	a, trail := newTestAdapter(t, api)

	env := a.FreeBusyQuery(context.Background(), schema.FreeBusyQuery{
		TimeMin:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		TimeMax:  time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		TimeZone: "Europe/Berlin",
		Items:    []schema.CalendarRef{{ID: "primary"}},
	})

	require.True(t, env.Success)
	assert.Equal(t, "Free/busy query completed successfully", env.Message)
	assert.Equal(t, "2026-03-02T00:00:00Z", env.Data["time_min"])
	assert.NotEmpty(t, env.Data["query_time"])

	calendars := env.Data["calendars"].(map[string]any)
	primary := calendars["primary"].(map[string]any)
	assert.Len(t, primary["busy"], 1)

	assert.Equal(t, "Europe/Berlin", api.freeBusyReq.TimeZone)
	require.Len(t, api.freeBusyReq.Items, 1)
	assert.Equal(t, "primary", api.freeBusyReq.Items[0].Id)

	// Read-only queries leave no audit trail.
	assert.Empty(t, trail.String())
}

func TestFreeBusyQueryFailure(t *testing.T) {
	api := &fakeAPI{freeBusyErr: &googleapi.Error{Code: http.StatusBadRequest, Message: "bad range"}}
	a, _ := newTestAdapter(t, api)

	env := a.FreeBusyQuery(context.Background(), schema.FreeBusyQuery{
		TimeMin: time.Now(),
		TimeMax: time.Now().Add(time.Hour),
		Items:   []schema.CalendarRef{{ID: "primary"}},
	})
	assert.False(t, env.Success)
	assert.Equal(t, "Failed to query free/busy information", env.Message)
}
