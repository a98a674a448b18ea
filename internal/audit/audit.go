// Package audit writes an append-only JSONL trail of every calendar
// mutation: what was asked, what the event looked like before and after,
// and whether the operation succeeded. Sensitive argument values are
// redacted before they reach disk. Audit failures never fail the operation
// that triggered them.
package audit

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Record is one audit trail entry. MutationID ties together the
// before and after records written around a single mutation.
type Record struct {
	Timestamp   time.Time      `json:"timestamp"`
	MutationID  string         `json:"mutation_id,omitempty"`
	Operation   string         `json:"operation"`
	Action      string         `json:"action"`
	CalendarID  string         `json:"calendar_id,omitempty"`
	EventID     string         `json:"event_id,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	BeforeState map[string]any `json:"before_state,omitempty"`
	AfterState  map[string]any `json:"after_state,omitempty"`
	Arguments   map[string]any `json:"arguments,omitempty"`
	Success     bool           `json:"success"`
	Error       string         `json:"error,omitempty"`
}

// Logger serializes records to a single append-only stream.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	closer io.Closer
	logger *slog.Logger
}

// NewFileLogger appends to path, creating the file if needed.
func NewFileLogger(path string, logger *slog.Logger) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	l := NewLogger(f, logger)
	l.closer = f
	return l, nil
}

// NewLogger writes records to out. The caller keeps ownership of out.
func NewLogger(out io.Writer, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{out: out, logger: logger}
}

// NewNopLogger discards all records. Used when no audit file is configured.
func NewNopLogger() *Logger {
	return &Logger{out: io.Discard, logger: slog.Default()}
}

// Write appends rec as one JSON line. A zero timestamp is filled in and
// arguments are redacted. Failures are logged and swallowed.
func (l *Logger) Write(rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.Action == "" {
		rec.Action = ActionFor(rec.Operation)
	}
	rec.Arguments = Redact(rec.Arguments)
	rec.BeforeState = Redact(rec.BeforeState)
	rec.AfterState = Redact(rec.AfterState)

	line, err := json.Marshal(rec)
	if err != nil {
		l.logger.Warn("audit record not serializable, dropped",
			"operation", rec.Operation, "error", err)
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.out.Write(line); err != nil {
		l.logger.Warn("audit write failed, record dropped",
			"operation", rec.Operation, "error", err)
	}
}

// Close closes the underlying file, if the logger owns one.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Audit action types.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionRead   = "read"
)

// ActionFor derives the action type from an operation name.
func ActionFor(operation string) string {
	lower := strings.ToLower(operation)
	switch {
	case strings.Contains(lower, "create"):
		return ActionCreate
	case strings.Contains(lower, "update"), strings.Contains(lower, "patch"):
		return ActionUpdate
	case strings.Contains(lower, "delete"):
		return ActionDelete
	default:
		return ActionRead
	}
}

// sensitiveMarkers flags argument keys whose values must not reach the
// trail.
var sensitiveMarkers = []string{"password", "token", "secret", "key", "credential"}

const redactedValue = "***REDACTED***"

// Redact returns a copy of args with sensitive values replaced. Nested maps
// and slices of maps are walked; the input is never modified.
func Redact(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if isSensitiveKey(k) {
			out[k] = redactedValue
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Redact(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	default:
		return v
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
