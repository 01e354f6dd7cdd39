// Package model defines the persisted record shapes shared by the engine
// components. Field tags follow the persisted document layout, so renaming a
// tag is a data migration.
package model

import (
	"time"

	"github.com/tartampluch/go-hebsync/internal/config"
)

// Occurrence is one projected future instance of a Hebrew anniversary,
// expressed as a Gregorian date string (YYYY-MM-DD) plus the Hebrew year it
// falls in.
type Occurrence struct {
	Gregorian  string `json:"gregorian"`
	HebrewYear int    `json:"hebrewYear"`
}

// SyncedEvent records the external id and content hash of one event the
// reconciler created, keyed by descriptor key on the person record.
type SyncedEvent struct {
	ID   string `json:"id"`
	Hash string `json:"hash"`
}

// Person is the source-of-truth anniversary record. BirthDateGregorian and
// AfterSunset are user input; everything under "derived" is written only by
// the recalculator, together with the SystemUpdate marker.
type Person struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Gender    string `json:"gender,omitempty"`
	Notes     string `json:"notes,omitempty"`
	Archived  bool   `json:"archived"`

	GroupIDs []string `json:"group_ids,omitempty"`

	// BirthDateGregorian is the immutable source date, YYYY-MM-DD.
	BirthDateGregorian string `json:"birth_date_gregorian"`

	// AfterSunset disambiguates the Hebrew day boundary: a birth after local
	// sunset belongs to the next Hebrew calendar day.
	AfterSunset bool `json:"after_sunset"`

	// CalendarPreferenceOverride, when set, wins over group and tenant
	// preferences (gregorian, hebrew or both).
	CalendarPreferenceOverride string `json:"calendar_preference_override,omitempty"`

	// Derived fields.
	HebrewString            string       `json:"hebrew_string,omitempty"`
	HebrewYear              int          `json:"hebrew_year,omitempty"`
	HebrewMonth             string       `json:"hebrew_month,omitempty"`
	HebrewDay               int          `json:"hebrew_day,omitempty"`
	GregorianYear           int          `json:"gregorian_year,omitempty"`
	GregorianMonth          int          `json:"gregorian_month,omitempty"`
	GregorianDay            int          `json:"gregorian_day,omitempty"`
	NextUpcomingHebrew      string       `json:"next_upcoming_hebrew,omitempty"`
	NextUpcomingHebrewYear  int          `json:"next_upcoming_hebrew_year,omitempty"`
	FutureHebrewOccurrences []Occurrence `json:"future_hebrew_occurrences,omitempty"`

	// CalendarEvents maps descriptor keys to the external events created for
	// this person. The hash enables the skip-if-identical upsert branch.
	CalendarEvents map[string]SyncedEvent `json:"calendar_events,omitempty"`

	// SystemUpdate distinguishes recalculator writes from user writes and
	// breaks the recalculation feedback loop.
	SystemUpdate bool `json:"_systemUpdate"`

	UpdatedAt time.Time `json:"updated_at"`
}

// HasDerivedData reports whether the Hebrew derived fields are populated.
func (p *Person) HasDerivedData() bool {
	return p.HebrewString != "" && len(p.FutureHebrewOccurrences) > 0
}

// Tenant owns person records and carries the external calendar binding.
// Invariant: at most one active binding at a time.
type Tenant struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Timezone string `json:"timezone,omitempty"`
	Language string `json:"default_language,omitempty"`

	DefaultCalendarPreference string `json:"default_calendar_preference,omitempty"`

	// LastRecalcProcessDate is the tenant-local date (YYYY-MM-DD) of the last
	// midnight-scheduler pass, guarding against double processing in one day.
	LastRecalcProcessDate string `json:"last_recalc_process_date,omitempty"`

	CalendarID            string `json:"calendar_id,omitempty"`
	CalendarName          string `json:"calendar_name,omitempty"`
	HasCustomCalendarName bool   `json:"has_custom_calendar_name"`

	DeletionStatus string `json:"deletion_status,omitempty"`
}

// EffectiveTimezone returns the tenant timezone or the service default.
func (t *Tenant) EffectiveTimezone() string {
	if t == nil || t.Timezone == "" {
		return config.DefaultTimezone
	}
	return t.Timezone
}

// EffectiveLanguage returns the tenant language or the service default.
func (t *Tenant) EffectiveLanguage() string {
	if t == nil || t.Language == "" {
		return config.DefaultLanguage
	}
	return t.Language
}

// Group is a named membership a person can belong to; its preference sits
// between the person override and the tenant default.
type Group struct {
	ID                 string `json:"id"`
	TenantID           string `json:"tenant_id"`
	Name               string `json:"name"`
	ParentName         string `json:"parent_name,omitempty"`
	CalendarPreference string `json:"calendar_preference,omitempty"`
}

// DisplayName renders "Parent: Name" when a parent group exists.
func (g Group) DisplayName() string {
	if g.ParentName != "" {
		return g.ParentName + ": " + g.Name
	}
	return g.Name
}

// WishlistItem is a gift idea attached to a person.
type WishlistItem struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	PersonID string `json:"person_id"`
	Name     string `json:"item_name"`
	Priority string `json:"priority,omitempty"`
}

// Job is the durable progress record of one bulk operation. The queue message
// carries only the job identity; everything needed to avoid reprocessing
// lives here.
type Job struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	OwnerID  string `json:"owner_id"`
	TenantID string `json:"tenant_id,omitempty"`

	// Pending is the remaining work set (person ids for sync jobs).
	Pending []string `json:"pending,omitempty"`

	// Done counts items completed across all invocations.
	Done int `json:"done"`

	Failures []string `json:"failures,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Credential is the stored external-service token material for one owner.
type Credential struct {
	OwnerID      string `json:"owner_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is a Unix timestamp in milliseconds, matching the external
	// service's token payloads.
	ExpiresAt int64 `json:"expires_at"`
}

// ResolvePreference applies the precedence chain: person override, then the
// first group carrying a preference, then the tenant default, then "both".
func ResolvePreference(p *Person, groups []Group, t *Tenant) string {
	if p != nil && p.CalendarPreferenceOverride != "" {
		return p.CalendarPreferenceOverride
	}
	for _, g := range groups {
		if g.CalendarPreference != "" {
			return g.CalendarPreference
		}
	}
	if t != nil && t.DefaultCalendarPreference != "" {
		return t.DefaultCalendarPreference
	}
	return config.PreferenceBoth
}
