package recalc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tartampluch/go-hebsync/internal/config"
	"github.com/tartampluch/go-hebsync/internal/hebdate"
	"github.com/tartampluch/go-hebsync/internal/model"
	"github.com/tartampluch/go-hebsync/internal/store"
)

func testStore(t *testing.T) *store.BadgerStore {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestExecutePersistsDerivedFields(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	clk := hebdate.FixedClock{Instant: time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)}

	require.NoError(t, s.Put(ctx, config.CollectionTenants, "t1", model.Tenant{ID: "t1", Timezone: "UTC"}))
	require.NoError(t, s.Put(ctx, config.CollectionPersons, "p1", model.Person{
		ID:                 "p1",
		TenantID:           "t1",
		BirthDateGregorian: "1990-03-15",
	}))

	r := &Recalculator{Store: s, Clock: clk, ProjectionYears: config.ProjectionYears}
	fields, err := r.Execute(ctx, "p1", "1990-03-15", false, "t1")
	require.NoError(t, err)

	assert.Equal(t, "י״ח באדר תש״נ", fields["hebrew_string"])
	assert.Equal(t, 5750, fields["hebrew_year"])
	assert.Equal(t, "Adar", fields["hebrew_month"])
	assert.Equal(t, 18, fields["hebrew_day"])

	var person model.Person
	require.NoError(t, s.FindByID(ctx, config.CollectionPersons, "p1", &person))

	assert.True(t, person.SystemUpdate, "the write must carry the system marker")
	assert.Equal(t, "Adar", person.HebrewMonth)
	require.NotEmpty(t, person.FutureHebrewOccurrences)
	assert.LessOrEqual(t, len(person.FutureHebrewOccurrences), config.ProjectionYears)

	// The cached next occurrence is never in the past relative to "now".
	next, err := time.Parse(config.DateFormatISO, person.NextUpcomingHebrew)
	require.NoError(t, err)
	assert.False(t, next.Before(time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, person.NextUpcomingHebrewYear, firstMatchingYear(person))
}

func firstMatchingYear(p model.Person) int {
	for _, occ := range p.FutureHebrewOccurrences {
		if occ.Gregorian == p.NextUpcomingHebrew {
			return occ.HebrewYear
		}
	}
	return -1
}

func TestExecuteAfterSunsetShiftsHebrewDate(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	clk := hebdate.FixedClock{Instant: time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)}

	require.NoError(t, s.Put(ctx, config.CollectionPersons, "p1", model.Person{ID: "p1", BirthDateGregorian: "1990-03-15"}))
	require.NoError(t, s.Put(ctx, config.CollectionPersons, "p2", model.Person{ID: "p2", BirthDateGregorian: "1990-03-15"}))

	r := &Recalculator{Store: s, Clock: clk, ProjectionYears: 5}

	day, err := r.Execute(ctx, "p1", "1990-03-15", false, "missing-tenant")
	require.NoError(t, err)
	night, err := r.Execute(ctx, "p2", "1990-03-15", true, "missing-tenant")
	require.NoError(t, err)

	assert.Equal(t, 18, day["hebrew_day"])
	assert.Equal(t, 19, night["hebrew_day"])
}

func TestExecuteSunsetHourAdvancesProjectionAnchor(t *testing.T) {
	// 1 Tishrei 5786 falls on 2025-09-23. At 20:00 the evening before, the
	// Hebrew day has already rolled over, so the projection must anchor at
	// 5786; with a later configured sunset hour it stays in 5785.
	ctx := context.Background()
	s := testStore(t)
	clk := hebdate.FixedClock{Instant: time.Date(2025, time.September, 22, 20, 0, 0, 0, time.UTC)}

	require.NoError(t, s.Put(ctx, config.CollectionTenants, "t1", model.Tenant{ID: "t1", Timezone: "UTC"}))
	require.NoError(t, s.Put(ctx, config.CollectionPersons, "p1", model.Person{ID: "p1", BirthDateGregorian: "1990-03-15"}))
	require.NoError(t, s.Put(ctx, config.CollectionPersons, "p2", model.Person{ID: "p2", BirthDateGregorian: "1990-03-15"}))

	dusk := &Recalculator{Store: s, Clock: clk, ProjectionYears: 5}
	fields, err := dusk.Execute(ctx, "p1", "1990-03-15", false, "t1")
	require.NoError(t, err)

	futures, ok := fields["future_hebrew_occurrences"].([]model.Occurrence)
	require.True(t, ok)
	require.NotEmpty(t, futures)
	assert.Equal(t, 5786, futures[0].HebrewYear)

	lateDusk := &Recalculator{Store: s, Clock: clk, ProjectionYears: 5, SunsetHour: 22}
	fields, err = lateDusk.Execute(ctx, "p2", "1990-03-15", false, "t1")
	require.NoError(t, err)

	futures, ok = fields["future_hebrew_occurrences"].([]model.Occurrence)
	require.True(t, ok)
	require.NotEmpty(t, futures)
	assert.Equal(t, 5785, futures[0].HebrewYear)
}

func TestExecuteRejectsInvalidDate(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	clk := hebdate.FixedClock{Instant: time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)}

	r := &Recalculator{Store: s, Clock: clk, ProjectionYears: 5}
	_, err := r.Execute(ctx, "p1", "15/03/1990", false, "t1")
	assert.Error(t, err)

	// Nothing written for the failed person.
	var person model.Person
	err = s.FindByID(ctx, config.CollectionPersons, "p1", &person)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExecuteMissingTenantFallsBackToDefaultTimezone(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	clk := hebdate.FixedClock{Instant: time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)}

	require.NoError(t, s.Put(ctx, config.CollectionPersons, "p1", model.Person{ID: "p1", BirthDateGregorian: "1990-03-15"}))

	r := &Recalculator{Store: s, Clock: clk, ProjectionYears: 5}
	_, err := r.Execute(ctx, "p1", "1990-03-15", false, "nope")
	assert.NoError(t, err)
}
