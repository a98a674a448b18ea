package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/teemow/calendar-mcp/internal/audit"
	"github.com/teemow/calendar-mcp/internal/calendar"
	"github.com/teemow/calendar-mcp/internal/instrumentation"
	"github.com/teemow/calendar-mcp/internal/retry"
	"github.com/teemow/calendar-mcp/internal/schema"
	"github.com/teemow/calendar-mcp/internal/workers"
)

// Adapter runs calendar operations through the worker pool with retries and
// audit logging.
type Adapter struct {
	api      calendar.API
	pool     *workers.Pool
	retryCfg retry.Config
	audit    *audit.Logger
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
}

// SetMetrics attaches a metrics recorder. A nil recorder is a no-op.
func (a *Adapter) SetMetrics(m *instrumentation.Metrics) { a.metrics = m }

// retryConfig clones the retry settings with a hook counting repeated
// attempts for the given operation.
func (a *Adapter) retryConfig(operation string) retry.Config {
	cfg := a.retryCfg
	cfg.OnRetry = func(ctx context.Context, _ int, _ error) {
		a.metrics.RecordRetryAttempt(ctx, operation)
	}
	return cfg
}

// timeOperation records duration and outcome of one calendar API operation.
func (a *Adapter) timeOperation(ctx context.Context, operation string, start time.Time, success bool) {
	status := instrumentation.StatusSuccess
	if !success {
		status = instrumentation.StatusError
	}
	a.metrics.RecordCalendarOperation(ctx, operation, status, time.Since(start))
}

// New wires an adapter. All collaborators are required except logger, which
// falls back to the default.
func New(api calendar.API, pool *workers.Pool, retryCfg retry.Config, auditLog *audit.Logger, logger *slog.Logger) *Adapter {
	if auditLog == nil {
		auditLog = audit.NewNopLogger()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		api:      api,
		pool:     pool,
		retryCfg: retryCfg,
		audit:    auditLog,
		logger:   logger,
	}
}

// CreateEvent creates an event and reports the outcome as an envelope.
func (a *Adapter) CreateEvent(ctx context.Context, req schema.CreateEvent, rawArgs map[string]any, user string) schema.Envelope {
	a.logger.Info("creating calendar event", "calendar_id", req.CalendarID, "summary", req.Summary)

	body, err := buildEvent(req)
	if err != nil {
		return schema.ErrorEnvelope("Failed to create calendar event", err)
	}

	mutationID := uuid.NewString()
	a.audit.Write(audit.Record{
		MutationID: mutationID,
		Operation:  schema.ToolCreateEvent,
		CalendarID: req.CalendarID,
		UserID:     user,
		Arguments:  rawArgs,
		Success:    true,
	})

	conferenceVersion := int64(0)
	if req.ConferenceData != nil {
		conferenceVersion = 1
	}

	start := time.Now()
	env, err := a.pool.ExecuteAndWait(ctx, func(taskCtx context.Context) (schema.Envelope, error) {
		created, callErr := retry.Do(taskCtx, a.retryConfig("insert"), func(rctx context.Context) (*calendarapi.Event, error) {
			return a.api.InsertEvent(rctx, req.CalendarID, body, schema.SendUpdatesAll, conferenceVersion)
		})
		if callErr != nil {
			if retry.IsQuotaExhausted(callErr) {
				return schema.Envelope{}, callErr
			}
			return schema.ErrorEnvelope("Failed to create calendar event", callErr), nil
		}

		state := calendar.EventState(created)
		return schema.SuccessEnvelope(
			fmt.Sprintf("Event '%s' created successfully", created.Summary),
			map[string]any{
				"event":       state,
				"calendar_id": req.CalendarID,
				"event_id":    created.Id,
				"html_link":   created.HtmlLink,
			},
		), nil
	})
	if err != nil {
		a.logger.Error("failed to create event", "calendar_id", req.CalendarID, "error", err)
		env = schema.ErrorEnvelope("Failed to create calendar event", err)
	}
	a.timeOperation(ctx, "insert", start, env.Success)

	a.audit.Write(audit.Record{
		MutationID: mutationID,
		Operation:  schema.ToolCreateEvent,
		CalendarID: req.CalendarID,
		EventID:    envelopeEventID(env),
		UserID:     user,
		AfterState: envelopeEventState(env),
		Arguments:  rawArgs,
		Success:    env.Success,
		Error:      env.Error,
	})
	return env
}

// UpdateEvent patches an event. Only fields present in the request reach
// the service.
func (a *Adapter) UpdateEvent(ctx context.Context, req schema.UpdateEvent, rawArgs map[string]any, user string) schema.Envelope {
	a.logger.Info("updating calendar event", "calendar_id", req.CalendarID, "event_id", req.EventID)

	patch, err := buildPatch(req)
	if err != nil {
		return schema.ErrorEnvelope("Failed to update calendar event", err)
	}

	mutationID := uuid.NewString()
	before := a.snapshotEvent(ctx, req.CalendarID, req.EventID)
	a.audit.Write(audit.Record{
		MutationID:  mutationID,
		Operation:   schema.ToolUpdateEvent,
		CalendarID:  req.CalendarID,
		EventID:     req.EventID,
		UserID:      user,
		BeforeState: before,
		Arguments:   rawArgs,
		Success:     true,
	})

	start := time.Now()
	env, err := a.pool.ExecuteAndWait(ctx, func(taskCtx context.Context) (schema.Envelope, error) {
		updated, callErr := retry.Do(taskCtx, a.retryConfig("patch"), func(rctx context.Context) (*calendarapi.Event, error) {
			return a.api.PatchEvent(rctx, req.CalendarID, req.EventID, patch, schema.SendUpdatesAll)
		})
		if callErr != nil {
			if retry.IsQuotaExhausted(callErr) {
				return schema.Envelope{}, callErr
			}
			return schema.ErrorEnvelope("Failed to update calendar event", callErr), nil
		}

		state := calendar.EventState(updated)
		return schema.SuccessEnvelope(
			fmt.Sprintf("Event '%s' updated successfully", updated.Summary),
			map[string]any{
				"event":       state,
				"calendar_id": req.CalendarID,
				"event_id":    updated.Id,
				"html_link":   updated.HtmlLink,
			},
		), nil
	})
	if err != nil {
		a.logger.Error("failed to update event",
			"calendar_id", req.CalendarID, "event_id", req.EventID, "error", err)
		env = schema.ErrorEnvelope("Failed to update calendar event", err)
	}
	a.timeOperation(ctx, "patch", start, env.Success)

	a.audit.Write(audit.Record{
		MutationID:  mutationID,
		Operation:   schema.ToolUpdateEvent,
		CalendarID:  req.CalendarID,
		EventID:     req.EventID,
		UserID:      user,
		BeforeState: before,
		AfterState:  envelopeEventState(env),
		Arguments:   rawArgs,
		Success:     env.Success,
		Error:       env.Error,
	})
	return env
}

// DeleteEvent removes an event, honoring the requested notification mode.
func (a *Adapter) DeleteEvent(ctx context.Context, req schema.DeleteEvent, rawArgs map[string]any, user string) schema.Envelope {
	a.logger.Info("deleting calendar event",
		"calendar_id", req.CalendarID, "event_id", req.EventID, "send_updates", req.SendUpdates)

	mutationID := uuid.NewString()
	before := a.snapshotEvent(ctx, req.CalendarID, req.EventID)
	a.audit.Write(audit.Record{
		MutationID:  mutationID,
		Operation:   schema.ToolDeleteEvent,
		CalendarID:  req.CalendarID,
		EventID:     req.EventID,
		UserID:      user,
		BeforeState: before,
		Arguments:   rawArgs,
		Success:     true,
	})

	start := time.Now()
	env, err := a.pool.ExecuteAndWait(ctx, func(taskCtx context.Context) (schema.Envelope, error) {
		_, callErr := retry.Do(taskCtx, a.retryConfig("delete"), func(rctx context.Context) (struct{}, error) {
			return struct{}{}, a.api.DeleteEvent(rctx, req.CalendarID, req.EventID, req.SendUpdates)
		})
		if callErr != nil {
			if retry.IsQuotaExhausted(callErr) {
				return schema.Envelope{}, callErr
			}
			return schema.ErrorEnvelope("Failed to delete calendar event", callErr), nil
		}

		return schema.SuccessEnvelope(
			"Event deleted successfully",
			map[string]any{
				"deleted":      true,
				"calendar_id":  req.CalendarID,
				"event_id":     req.EventID,
				"send_updates": req.SendUpdates,
			},
		), nil
	})
	if err != nil {
		a.logger.Error("failed to delete event",
			"calendar_id", req.CalendarID, "event_id", req.EventID, "error", err)
		env = schema.ErrorEnvelope("Failed to delete calendar event", err)
	}
	a.timeOperation(ctx, "delete", start, env.Success)

	var after map[string]any
	if env.Success {
		after = map[string]any{"deleted": true}
	}
	a.audit.Write(audit.Record{
		MutationID:  mutationID,
		Operation:   schema.ToolDeleteEvent,
		CalendarID:  req.CalendarID,
		EventID:     req.EventID,
		UserID:      user,
		BeforeState: before,
		AfterState:  after,
		Arguments:   rawArgs,
		Success:     env.Success,
		Error:       env.Error,
	})
	return env
}

// FreeBusyQuery returns busy intervals for the requested calendars. Being
// read-only, it leaves no audit trail.
func (a *Adapter) FreeBusyQuery(ctx context.Context, req schema.FreeBusyQuery) schema.Envelope {
	a.logger.Info("querying free/busy", "calendars", len(req.Items))

	query := &calendarapi.FreeBusyRequest{
		TimeMin:  req.TimeMin.Format(time.RFC3339),
		TimeMax:  req.TimeMax.Format(time.RFC3339),
		TimeZone: req.TimeZone,
	}
	for _, item := range req.Items {
		query.Items = append(query.Items, &calendarapi.FreeBusyRequestItem{Id: item.ID})
	}

	start := time.Now()
	env, err := a.pool.ExecuteAndWait(ctx, func(taskCtx context.Context) (schema.Envelope, error) {
		resp, callErr := retry.Do(taskCtx, a.retryConfig("freebusy"), func(rctx context.Context) (*calendarapi.FreeBusyResponse, error) {
			return a.api.QueryFreeBusy(rctx, query)
		})
		if callErr != nil {
			if retry.IsQuotaExhausted(callErr) {
				return schema.Envelope{}, callErr
			}
			return schema.ErrorEnvelope("Failed to query free/busy information", callErr), nil
		}

		return schema.SuccessEnvelope(
			"Free/busy query completed successfully",
			map[string]any{
				"calendars":  calendar.BusyWindows(resp),
				"time_min":   req.TimeMin.Format(time.RFC3339),
				"time_max":   req.TimeMax.Format(time.RFC3339),
				"query_time": time.Now().UTC().Format(time.RFC3339),
			},
		), nil
	})
	if err != nil {
		a.logger.Error("failed to query free/busy", "error", err)
		env = schema.ErrorEnvelope("Failed to query free/busy information", err)
	}
	a.timeOperation(ctx, "freebusy", start, env.Success)
	return env
}

// snapshotEvent fetches an event's current state for audit purposes. Best
// effort: failures are logged and reported as a missing snapshot.
func (a *Adapter) snapshotEvent(ctx context.Context, calendarID, eventID string) map[string]any {
	env, err := a.pool.ExecuteAndWait(ctx, func(taskCtx context.Context) (schema.Envelope, error) {
		event, callErr := a.api.GetEvent(taskCtx, calendarID, eventID)
		if callErr != nil {
			if retry.IsQuotaExhausted(callErr) {
				return schema.Envelope{}, callErr
			}
			return schema.ErrorEnvelope("", callErr), nil
		}
		return schema.SuccessEnvelope("", calendar.EventState(event)), nil
	})
	if err != nil || !env.Success {
		a.logger.Warn("could not fetch event for audit log",
			"calendar_id", calendarID, "event_id", eventID,
			"error", firstError(err, env.Error))
		return nil
	}
	return env.Data
}

func firstError(err error, fallback string) any {
	if err != nil {
		return err
	}
	return fallback
}

func envelopeEventID(env schema.Envelope) string {
	if !env.Success {
		return ""
	}
	id, _ := env.Data["event_id"].(string)
	return id
}

func envelopeEventState(env schema.Envelope) map[string]any {
	if !env.Success {
		return nil
	}
	state, _ := env.Data["event"].(map[string]any)
	return state
}
