package calendar

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/calendar-mcp/internal/google"
)

// API is the calendar surface the mutation pipeline depends on.
type API interface {
	// InsertEvent creates event on the calendar. conferenceVersion must be 1
	// when the event carries a conference create request.
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event, sendUpdates string, conferenceVersion int64) (*calendar.Event, error)

	// GetEvent fetches the current state of an event.
	GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error)

	// PatchEvent applies a sparse patch. Fields listed in patch.NullFields
	// are cleared on the server.
	PatchEvent(ctx context.Context, calendarID, eventID string, patch *calendar.Event, sendUpdates string) (*calendar.Event, error)

	// DeleteEvent removes an event.
	DeleteEvent(ctx context.Context, calendarID, eventID, sendUpdates string) error

	// QueryFreeBusy returns busy intervals for the requested calendars.
	QueryFreeBusy(ctx context.Context, req *calendar.FreeBusyRequest) (*calendar.FreeBusyResponse, error)
}

// Client is the production API implementation over the Google Calendar
// service.
type Client struct {
	svc     *calendar.Service
	account string
}

var _ API = (*Client)(nil)

// NewClientForAccountWithProvider builds a client authenticated for the
// given account through the provided token provider.
func NewClientForAccountWithProvider(ctx context.Context, account string, tokenProvider google.TokenProvider) (*Client, error) {
	if tokenProvider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	token, err := tokenProvider.GetTokenForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google OAuth token for account %s: %w", account, err)
	}

	conf := google.GetOAuthConfig()
	tokenSource := conf.TokenSource(ctx, token)
	client := oauth2.NewClient(ctx, tokenSource)

	// Force HTTP/1.1; the calendar endpoints occasionally stall on HTTP/2.
	transport := client.Transport.(*oauth2.Transport)
	transport.Base = &http.Transport{ForceAttemptHTTP2: false}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc, account: account}, nil
}

// NewClientWithProvider builds a client for the default account.
func NewClientWithProvider(ctx context.Context, provider google.TokenProvider) (*Client, error) {
	return NewClientForAccountWithProvider(ctx, "default", provider)
}

// NewClient builds a client for the default account using the file-based
// token provider.
func NewClient(ctx context.Context) (*Client, error) {
	return NewClientForAccountWithProvider(ctx, "default", google.NewFileTokenProvider())
}

// Account returns the account this client authenticates as.
func (c *Client) Account() string { return c.account }

func (c *Client) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event, sendUpdates string, conferenceVersion int64) (*calendar.Event, error) {
	call := c.svc.Events.Insert(calendarID, event).Context(ctx)
	if sendUpdates != "" {
		call = call.SendUpdates(sendUpdates)
	}
	if conferenceVersion > 0 {
		call = call.ConferenceDataVersion(conferenceVersion)
	}
	created, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return created, nil
}

func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error) {
	event, err := c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

func (c *Client) PatchEvent(ctx context.Context, calendarID, eventID string, patch *calendar.Event, sendUpdates string) (*calendar.Event, error) {
	call := c.svc.Events.Patch(calendarID, eventID, patch).Context(ctx)
	if sendUpdates != "" {
		call = call.SendUpdates(sendUpdates)
	}
	updated, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	return updated, nil
}

func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID, sendUpdates string) error {
	call := c.svc.Events.Delete(calendarID, eventID).Context(ctx)
	if sendUpdates != "" {
		call = call.SendUpdates(sendUpdates)
	}
	if err := call.Do(); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

func (c *Client) QueryFreeBusy(ctx context.Context, req *calendar.FreeBusyRequest) (*calendar.FreeBusyResponse, error) {
	resp, err := c.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to query freebusy: %w", err)
	}
	return resp, nil
}
