// Package recalc orchestrates Hebrew-data recalculation for person records:
// conversion of the source date, forward projection of occurrences, and the
// single atomic write of all derived fields.
package recalc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tartampluch/go-hebsync/internal/config"
	"github.com/tartampluch/go-hebsync/internal/hebdate"
	"github.com/tartampluch/go-hebsync/internal/model"
	"github.com/tartampluch/go-hebsync/internal/store"
)

// Recalculator computes and persists the derived Hebrew fields of a person.
type Recalculator struct {
	Store store.Store
	Clock hebdate.Clock

	// ProjectionYears caps both the projection horizon and the number of
	// stored future occurrences.
	ProjectionYears int

	// SunsetHour is the local hour at which the Hebrew day rolls over. Past
	// it the projection anchors at the already-advanced Hebrew year, which
	// matters on the eve of Rosh Hashanah.
	SunsetHour int
}

func (r *Recalculator) sunsetHour() int {
	if r.SunsetHour <= 0 {
		return config.DefaultSunsetHour
	}
	return r.SunsetHour
}

// Execute converts the source date, projects future occurrences anchored at
// the converted (month, day), selects the next upcoming one relative to the
// tenant's local today, and persists everything in one update carrying the
// system marker. Any failure is logged and returned; nothing is written
// partially.
func (r *Recalculator) Execute(ctx context.Context, personID, birthDateGregorian string, afterSunset bool, tenantID string) (map[string]any, error) {
	log := slog.With(
		config.LogKeyComponent, config.CompRecalc,
		config.LogKeyPerson, personID,
		config.LogKeyTenant, tenantID,
	)
	log.Info(config.MsgRecalcStart, config.LogKeyDOB, birthDateGregorian)

	fields, err := r.compute(ctx, birthDateGregorian, afterSunset, tenantID)
	if err != nil {
		log.Error(config.ErrRecalcFailed, config.LogKeyError, err)
		return nil, err
	}

	if err := r.Store.Update(ctx, config.CollectionPersons, personID, fields); err != nil {
		log.Error(config.ErrRecalcFailed, config.LogKeyError, err)
		return nil, fmt.Errorf("%s: %w", config.ErrRecalcFailed, err)
	}

	log.Info(config.MsgRecalcDone, config.LogKeyNext, fields["next_upcoming_hebrew"])
	return fields, nil
}

// compute produces the full derived-field set without touching the store
// (except for the tenant timezone lookup).
func (r *Recalculator) compute(ctx context.Context, birthDateGregorian string, afterSunset bool, tenantID string) (map[string]any, error) {
	timezone := r.tenantTimezone(ctx, tenantID)

	birth, err := time.Parse(config.DateFormatISO, birthDateGregorian)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInvalidDate, err)
	}

	heb, err := hebdate.Convert(birth, afterSunset)
	if err != nil {
		return nil, err
	}

	localNow, err := hebdate.NowIn(r.Clock, timezone)
	if err != nil {
		return nil, err
	}
	hebrewNow, err := hebdate.HebrewNow(r.Clock, timezone, r.sunsetHour())
	if err != nil {
		return nil, err
	}
	currentHebrewYear := hebdate.CurrentHebrewYear(hebrewNow)

	projection, err := hebdate.Project(heb.Month, heb.Day, currentHebrewYear, r.ProjectionYears)
	if err != nil {
		return nil, err
	}
	if len(projection.SkippedYears) > 0 {
		slog.Warn(config.MsgProjectionGap,
			config.LogKeyComponent, config.CompRecalc,
			config.LogKeySkipped, projection.SkippedYears,
		)
	}

	fields := map[string]any{
		"hebrew_string":   heb.Rendered,
		"hebrew_year":     heb.Year,
		"hebrew_month":    heb.Month,
		"hebrew_day":      heb.Day,
		"gregorian_year":  birth.Year(),
		"gregorian_month": int(birth.Month()),
		"gregorian_day":   birth.Day(),
		"updated_at":      r.Clock.Now().UTC(),
		"_systemUpdate":   true,
	}

	occurrences := projection.Occurrences
	if len(occurrences) > r.ProjectionYears {
		occurrences = occurrences[:r.ProjectionYears]
	}

	if len(occurrences) == 0 {
		fields["future_hebrew_occurrences"] = []model.Occurrence{}
		fields["next_upcoming_hebrew"] = nil
		fields["next_upcoming_hebrew_year"] = nil
		return fields, nil
	}

	// "Next" is the first projected date not yet past in the tenant's local
	// day; if every projection is somehow behind, fall back to the first.
	todayStart := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, time.UTC)
	next := occurrences[0]
	for _, occ := range occurrences {
		if !occ.Gregorian.Before(todayStart) {
			next = occ
			break
		}
	}

	futures := make([]model.Occurrence, 0, len(occurrences))
	for _, occ := range occurrences {
		futures = append(futures, model.Occurrence{
			Gregorian:  occ.Gregorian.Format(config.DateFormatISO),
			HebrewYear: occ.HebrewYear,
		})
	}

	fields["future_hebrew_occurrences"] = futures
	fields["next_upcoming_hebrew"] = next.Gregorian.Format(config.DateFormatISO)
	fields["next_upcoming_hebrew_year"] = next.HebrewYear
	return fields, nil
}

// tenantTimezone resolves the owning tenant's timezone, defaulting when the
// tenant is missing or unset.
func (r *Recalculator) tenantTimezone(ctx context.Context, tenantID string) string {
	var tenant model.Tenant
	err := r.Store.FindByID(ctx, config.CollectionTenants, tenantID, &tenant)
	if errors.Is(err, store.ErrNotFound) {
		return config.DefaultTimezone
	}
	if err != nil {
		slog.Warn(config.ErrTenantNotFound,
			config.LogKeyComponent, config.CompRecalc,
			config.LogKeyTenant, tenantID,
			config.LogKeyError, err,
		)
		return config.DefaultTimezone
	}
	return tenant.EffectiveTimezone()
}
