// Package calendar abstracts the external calendar service. The engine only
// ever talks to the Client and CredentialProvider interfaces; the HTTP
// implementation lives alongside for production wiring.
package calendar

import (
	"context"
	"errors"

	"github.com/tartampluch/go-hebsync/internal/config"
)

// ErrNotFound marks a calendar or event that does not exist on the external
// service. Deletes treat it as already satisfied.
var ErrNotFound = errors.New("calendar resource not found")

// ErrAuth marks a 401/403 from the external service. Callers prompt for
// reconnection instead of retrying.
var ErrAuth = errors.New(config.ErrAuthRequired)

// ErrCredentialRevoked marks a permanently dead credential (revoked refresh
// token or no stored credential at all). Never retried.
var ErrCredentialRevoked = errors.New("credential revoked")

// ErrCredentialTemporary marks a transient failure while refreshing a
// credential; the operation may be retried later.
var ErrCredentialTemporary = errors.New("temporary credential error")

// Calendar is the external service's calendar resource.
type Calendar struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

// Event is the external service's event resource, reduced to the fields the
// engine reads and writes.
type Event struct {
	ID          string `json:"id,omitempty"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`

	// All-day bounds, end exclusive.
	StartDate string `json:"-"`
	EndDate   string `json:"-"`

	// ReminderMinutes are popup offsets before the event.
	ReminderMinutes []int `json:"-"`

	// Private is the correlation metadata block.
	Private map[string]string `json:"-"`
}

// Client is the external-calendar contract.
type Client interface {
	GetCalendar(ctx context.Context, ownerID, calendarID string) (*Calendar, error)
	CreateCalendar(ctx context.Context, ownerID, name string) (string, error)
	UpdateCalendar(ctx context.Context, ownerID, calendarID, name string) error
	DeleteCalendar(ctx context.Context, ownerID, calendarID string) error
	ListCalendars(ctx context.Context, ownerID string) ([]Calendar, error)

	InsertEvent(ctx context.Context, ownerID, calendarID string, ev Event) (string, error)
	UpdateEvent(ctx context.Context, ownerID, calendarID, eventID string, ev Event) error
	DeleteEvent(ctx context.Context, ownerID, calendarID, eventID string) error

	// ListEvents returns events whose private correlation properties match
	// every given key/value pair.
	ListEvents(ctx context.Context, ownerID, calendarID string, private map[string]string) ([]Event, error)
}

// CredentialProvider yields a valid access token for an owner, refreshing
// behind the scenes when needed.
type CredentialProvider interface {
	// ValidAccessToken returns a usable token or a typed failure:
	// ErrCredentialRevoked when reconnection is required,
	// ErrCredentialTemporary when a later retry may succeed.
	ValidAccessToken(ctx context.Context, ownerID string) (string, error)
}
