package calendar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"

	"github.com/tartampluch/go-hebsync/internal/config"
)

// HTTPClient implements Client against the external service's REST API.
type HTTPClient struct {
	Base        string
	Client      *http.Client
	Credentials CredentialProvider
}

// NewHTTPClient validates the base URL and returns a client with configured
// timeouts.
func NewHTTPClient(base string, creds CredentialProvider) (*HTTPClient, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, fmt.Errorf("%s: %s", config.ErrProtocol, u.Scheme)
	}
	return &HTTPClient{
		Base:        base,
		Client:      &http.Client{Timeout: config.HTTPTimeout},
		Credentials: creds,
	}, nil
}

// wire shapes for the external API.

type wireDate struct {
	Date string `json:"date"`
}

type wireReminderOverride struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

type wireReminders struct {
	UseDefault bool                   `json:"useDefault"`
	Overrides  []wireReminderOverride `json:"overrides,omitempty"`
}

type wireExtended struct {
	Private map[string]string `json:"private,omitempty"`
}

type wireEvent struct {
	ID                 string         `json:"id,omitempty"`
	Summary            string         `json:"summary"`
	Description        string         `json:"description,omitempty"`
	Start              *wireDate      `json:"start,omitempty"`
	End                *wireDate      `json:"end,omitempty"`
	Reminders          *wireReminders `json:"reminders,omitempty"`
	ExtendedProperties *wireExtended  `json:"extendedProperties,omitempty"`
}

func toWire(ev Event) wireEvent {
	w := wireEvent{
		Summary:     ev.Summary,
		Description: ev.Description,
	}
	if ev.StartDate != "" {
		w.Start = &wireDate{Date: ev.StartDate}
		w.End = &wireDate{Date: ev.EndDate}
	}
	if len(ev.ReminderMinutes) > 0 {
		r := &wireReminders{UseDefault: false}
		for _, m := range ev.ReminderMinutes {
			r.Overrides = append(r.Overrides, wireReminderOverride{Method: "popup", Minutes: m})
		}
		w.Reminders = r
	}
	if len(ev.Private) > 0 {
		w.ExtendedProperties = &wireExtended{Private: ev.Private}
	}
	return w
}

func fromWire(w wireEvent) Event {
	ev := Event{
		ID:          w.ID,
		Summary:     w.Summary,
		Description: w.Description,
	}
	if w.Start != nil {
		ev.StartDate = w.Start.Date
	}
	if w.End != nil {
		ev.EndDate = w.End.Date
	}
	if w.Reminders != nil {
		for _, o := range w.Reminders.Overrides {
			ev.ReminderMinutes = append(ev.ReminderMinutes, o.Minutes)
		}
	}
	if w.ExtendedProperties != nil {
		ev.Private = w.ExtendedProperties.Private
	}
	return ev
}

// do executes one authenticated API call and decodes the response into out
// (when out is non-nil). Status codes map onto the error taxonomy: 401/403
// wrap ErrAuth, 404/410 wrap ErrNotFound, anything else non-2xx propagates
// as a plain error for caller-level retry.
func (c *HTTPClient) do(ctx context.Context, ownerID, method, path string, query url.Values, body any, out any) error {
	token, err := c.Credentials.ValidAccessToken(ctx, ownerID)
	if err != nil {
		return err
	}

	full := c.Base + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return err
	}
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	req.Header.Set(config.HeaderAuthorization, config.BearerPrefix+token)
	if body != nil {
		req.Header.Set(config.HeaderContentType, config.MimeJSON)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("network error during calendar call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		slog.Warn("Calendar service returned error status",
			config.LogKeyComponent, config.CompCalendar,
			config.LogKeyStatus, resp.StatusCode,
			config.LogKeyURL, path,
		)
		return fmt.Errorf("calendar service returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	limited := io.LimitReader(resp.Body, config.MaxHTTPResponseSize)
	if err := json.NewDecoder(limited).Decode(out); err != nil {
		return fmt.Errorf("failed to decode calendar response: %w", err)
	}
	return nil
}

// GetCalendar implements Client.
func (c *HTTPClient) GetCalendar(ctx context.Context, ownerID, calendarID string) (*Calendar, error) {
	var cal Calendar
	path := "/users/" + url.PathEscape(ownerID) + "/calendars/" + url.PathEscape(calendarID)
	if err := c.do(ctx, ownerID, http.MethodGet, path, nil, nil, &cal); err != nil {
		return nil, err
	}
	return &cal, nil
}

// CreateCalendar implements Client.
func (c *HTTPClient) CreateCalendar(ctx context.Context, ownerID, name string) (string, error) {
	var cal Calendar
	path := "/users/" + url.PathEscape(ownerID) + "/calendars"
	body := map[string]string{"summary": name}
	if err := c.do(ctx, ownerID, http.MethodPost, path, nil, body, &cal); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCalendarCreate, err)
	}
	return cal.ID, nil
}

// UpdateCalendar implements Client.
func (c *HTTPClient) UpdateCalendar(ctx context.Context, ownerID, calendarID, name string) error {
	path := "/users/" + url.PathEscape(ownerID) + "/calendars/" + url.PathEscape(calendarID)
	return c.do(ctx, ownerID, http.MethodPatch, path, nil, map[string]string{"summary": name}, nil)
}

// DeleteCalendar implements Client.
func (c *HTTPClient) DeleteCalendar(ctx context.Context, ownerID, calendarID string) error {
	path := "/users/" + url.PathEscape(ownerID) + "/calendars/" + url.PathEscape(calendarID)
	return c.do(ctx, ownerID, http.MethodDelete, path, nil, nil, nil)
}

// ListCalendars implements Client.
func (c *HTTPClient) ListCalendars(ctx context.Context, ownerID string) ([]Calendar, error) {
	var out struct {
		Items []Calendar `json:"items"`
	}
	path := "/users/" + url.PathEscape(ownerID) + "/calendars"
	if err := c.do(ctx, ownerID, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// InsertEvent implements Client.
func (c *HTTPClient) InsertEvent(ctx context.Context, ownerID, calendarID string, ev Event) (string, error) {
	var created wireEvent
	path := "/users/" + url.PathEscape(ownerID) + "/calendars/" + url.PathEscape(calendarID) + "/events"
	if err := c.do(ctx, ownerID, http.MethodPost, path, nil, toWire(ev), &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// UpdateEvent implements Client.
func (c *HTTPClient) UpdateEvent(ctx context.Context, ownerID, calendarID, eventID string, ev Event) error {
	path := "/users/" + url.PathEscape(ownerID) + "/calendars/" + url.PathEscape(calendarID) + "/events/" + url.PathEscape(eventID)
	return c.do(ctx, ownerID, http.MethodPut, path, nil, toWire(ev), nil)
}

// DeleteEvent implements Client.
func (c *HTTPClient) DeleteEvent(ctx context.Context, ownerID, calendarID, eventID string) error {
	path := "/users/" + url.PathEscape(ownerID) + "/calendars/" + url.PathEscape(calendarID) + "/events/" + url.PathEscape(eventID)
	return c.do(ctx, ownerID, http.MethodDelete, path, nil, nil, nil)
}

// ListEvents implements Client.
func (c *HTTPClient) ListEvents(ctx context.Context, ownerID, calendarID string, private map[string]string) ([]Event, error) {
	query := url.Values{}
	for k, v := range private {
		query.Add("privateExtendedProperty", k+"="+v)
	}
	var out struct {
		Items []wireEvent `json:"items"`
	}
	path := "/users/" + url.PathEscape(ownerID) + "/calendars/" + url.PathEscape(calendarID) + "/events"
	if err := c.do(ctx, ownerID, http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(out.Items))
	for _, w := range out.Items {
		events = append(events, fromWire(w))
	}
	return events, nil
}
