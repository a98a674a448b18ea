package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAppendsOneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, nil)

	logger.Write(Record{
		Operation:  "create_event",
		Action:     "created",
		CalendarID: "primary",
		EventID:    "e1",
		UserID:     "alice",
		AfterState: map[string]any{"summary": "Standup"},
		Success:    true,
	})
	logger.Write(Record{
		Operation: "delete_event",
		Action:    "delete_failed",
		Success:   false,
		Error:     "event not found",
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "create_event", first.Operation)
	assert.Equal(t, "created", first.Action)
	assert.Equal(t, "Standup", first.AfterState["summary"])
	assert.True(t, first.Success)
	assert.False(t, first.Timestamp.IsZero())
	assert.WithinDuration(t, time.Now().UTC(), first.Timestamp, time.Minute)

	var second Record
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.False(t, second.Success)
	assert.Equal(t, "event not found", second.Error)
}

func TestActionFor(t *testing.T) {
	assert.Equal(t, ActionCreate, ActionFor("create_event"))
	assert.Equal(t, ActionUpdate, ActionFor("update_event"))
	assert.Equal(t, ActionDelete, ActionFor("delete_event"))
	assert.Equal(t, ActionRead, ActionFor("freebusy_query"))
}

func TestWriteDerivesActionFromOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, nil)

	logger.Write(Record{Operation: "update_event", Success: true})

	var rec Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, ActionUpdate, rec.Action)
}

func TestWriteRedactsStates(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, nil)

	logger.Write(Record{
		Operation:   "update_event",
		BeforeState: map[string]any{"privateToken": "before-secret"},
		AfterState:  map[string]any{"privateToken": "after-secret"},
		Success:     true,
	})

	out := buf.String()
	assert.NotContains(t, out, "before-secret")
	assert.NotContains(t, out, "after-secret")
}

func TestWriteRedactsArguments(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, nil)

	logger.Write(Record{
		Operation: "create_event",
		Arguments: map[string]any{
			"summary":     "1:1",
			"accessToken": "ya29.secret-value",
			"nested": map[string]any{
				"apiKey": "abcd",
				"note":   "keep me",
			},
		},
		Success: true,
	})

	out := buf.String()
	assert.NotContains(t, out, "ya29.secret-value")
	assert.NotContains(t, out, "abcd")
	assert.Contains(t, out, redactedValue)
	assert.Contains(t, out, "keep me")
}

func TestRedactMatchesKeySubstrings(t *testing.T) {
	in := map[string]any{
		"Password":      "hunter2",
		"refresh_token": "tok",
		"clientSecret":  "s",
		"calendarKey":   "k",
		"credentials":   map[string]any{"user": "u"},
		"summary":       "visible",
		"attendees": []any{
			map[string]any{"email": "a@example.com", "token": "t"},
		},
	}

	out := Redact(in)
	assert.Equal(t, redactedValue, out["Password"])
	assert.Equal(t, redactedValue, out["refresh_token"])
	assert.Equal(t, redactedValue, out["clientSecret"])
	assert.Equal(t, redactedValue, out["calendarKey"])
	assert.Equal(t, redactedValue, out["credentials"])
	assert.Equal(t, "visible", out["summary"])

	attendee := out["attendees"].([]any)[0].(map[string]any)
	assert.Equal(t, "a@example.com", attendee["email"])
	assert.Equal(t, redactedValue, attendee["token"])

	// Input stays untouched.
	assert.Equal(t, "hunter2", in["Password"])
}

func TestRedactNil(t *testing.T) {
	assert.Nil(t, Redact(nil))
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteSwallowsFailures(t *testing.T) {
	logger := NewLogger(failWriter{}, nil)
	// Must not panic or return anything.
	logger.Write(Record{Operation: "create_event", Success: true})
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Write(Record{Operation: "create_event"})
	assert.NoError(t, logger.Close())
}
