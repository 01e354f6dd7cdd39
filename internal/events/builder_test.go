package events

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tartampluch/go-hebsync/internal/config"
	"github.com/tartampluch/go-hebsync/internal/hebdate"
	"github.com/tartampluch/go-hebsync/internal/i18n"
	"github.com/tartampluch/go-hebsync/internal/model"
)

func testBuilder(t *testing.T) *Builder {
	t.Helper()
	translator, err := i18n.New()
	require.NoError(t, err)
	return &Builder{
		Translator: translator,
		Clock:      hebdate.FixedClock{Instant: time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)},
	}
}

func testPerson() model.Person {
	return model.Person{
		ID:                 "p1",
		TenantID:           "t1",
		FirstName:          "Dana",
		LastName:           "Levi",
		BirthDateGregorian: "1990-03-15",
		HebrewString:       "י״ח באדר תש״נ",
		HebrewYear:         5750,
		HebrewMonth:        "Adar",
		HebrewDay:          18,
		FutureHebrewOccurrences: []model.Occurrence{
			{Gregorian: "2027-02-25", HebrewYear: 5787},
			{Gregorian: "2028-03-16", HebrewYear: 5788},
		},
	}
}

func TestBuildBothSystems(t *testing.T) {
	b := testBuilder(t)
	tenant := model.Tenant{ID: "t1", Language: "en"}

	out := b.Build(testPerson(), tenant, nil, nil)

	var greg, heb int
	for _, d := range out {
		switch d.System {
		case config.SystemGregorian:
			greg++
		case config.SystemHebrew:
			heb++
		}
	}
	assert.Equal(t, config.ProjectionYears+1, greg)
	assert.Equal(t, 2, heb)
}

func TestBuildDescriptorShape(t *testing.T) {
	b := testBuilder(t)
	tenant := model.Tenant{ID: "t1", Language: "en"}

	out := b.Build(testPerson(), tenant, nil, nil)
	require.NotEmpty(t, out)

	for _, d := range out {
		assert.Equal(t, fmt.Sprintf(config.FormatDescriptorKey, "p1", d.System, d.Year), d.Key)

		start, err := time.Parse(config.DateFormatISO, d.StartDate)
		require.NoError(t, err)
		end, err := time.Parse(config.DateFormatISO, d.EndDate)
		require.NoError(t, err)
		assert.Equal(t, start.AddDate(0, 0, 1), end, "all-day bounds, end exclusive")

		assert.Equal(t, []int{config.ReminderMinutesDayBefore, config.ReminderMinutesHourBefore}, d.ReminderMinutes)
		assert.Equal(t, config.AppMarker, d.Correlation[config.CorrAppKey])
		assert.Equal(t, "t1", d.Correlation[config.CorrTenantKey])
		assert.Equal(t, "p1", d.Correlation[config.CorrPersonKey])
		assert.Contains(t, d.Title, "Dana Levi")
	}
}

func TestBuildHebrewAgeFromHebrewYears(t *testing.T) {
	b := testBuilder(t)
	tenant := model.Tenant{ID: "t1", Language: "en", DefaultCalendarPreference: config.PreferenceHebrew}

	out := b.Build(testPerson(), tenant, nil, nil)
	require.Len(t, out, 2)

	assert.Contains(t, out[0].Title, "| 37 |", "5787 - 5750")
	assert.Contains(t, out[1].Title, "| 38 |")
}

func TestBuildPreferenceFiltersSystems(t *testing.T) {
	b := testBuilder(t)

	hebOnly := model.Tenant{ID: "t1", DefaultCalendarPreference: config.PreferenceHebrew}
	for _, d := range b.Build(testPerson(), hebOnly, nil, nil) {
		assert.Equal(t, config.SystemHebrew, d.System)
	}

	gregOnly := model.Tenant{ID: "t1", DefaultCalendarPreference: config.PreferenceGregorian}
	for _, d := range b.Build(testPerson(), gregOnly, nil, nil) {
		assert.Equal(t, config.SystemGregorian, d.System)
	}

	// Person override wins over the tenant default.
	p := testPerson()
	p.CalendarPreferenceOverride = config.PreferenceGregorian
	for _, d := range b.Build(p, hebOnly, nil, nil) {
		assert.Equal(t, config.SystemGregorian, d.System)
	}
}

func TestBuildDescriptionSections(t *testing.T) {
	b := testBuilder(t)
	tenant := model.Tenant{ID: "t1", Language: "en"}

	p := testPerson()
	p.AfterSunset = true
	p.Notes = "loves chess"

	groups := []model.Group{
		{ID: "g1", Name: "Family", ParentName: "Friends"},
	}
	wishlist := []model.WishlistItem{
		{ID: "w1", PersonID: "p1", Name: "socks", Priority: config.PriorityLow},
		{ID: "w2", PersonID: "p1", Name: "chess set", Priority: config.PriorityHigh},
	}

	out := b.Build(p, tenant, groups, wishlist)
	require.NotEmpty(t, out)
	desc := out[0].Description

	assert.Contains(t, desc, "1. chess set", "highest-priority wishlist item leads")
	assert.NotContains(t, desc, "socks")
	assert.Contains(t, desc, "1990-03-15")
	assert.Contains(t, desc, "י״ח באדר תש״נ")
	assert.Contains(t, desc, "After Sunset")
	assert.Contains(t, desc, "Friends: Family")
	assert.Contains(t, desc, "loves chess")

	// Section order is fixed.
	assert.Less(t, strings.Index(desc, "chess set"), strings.Index(desc, "1990-03-15"))
	assert.Less(t, strings.Index(desc, "1990-03-15"), strings.Index(desc, "Friends: Family"))
}

func TestBuildIsDeterministic(t *testing.T) {
	b := testBuilder(t)
	tenant := model.Tenant{ID: "t1", Language: "he"}

	first := b.Build(testPerson(), tenant, nil, nil)
	second := b.Build(testPerson(), tenant, nil, nil)
	require.Equal(t, first, second)

	for i := range first {
		assert.Equal(t, first[i].ContentHash(), second[i].ContentHash())
	}
}

func TestContentHashChangesWithContent(t *testing.T) {
	d := Descriptor{Title: "a", Description: "b", StartDate: "2026-01-01", EndDate: "2026-01-02"}
	changed := d
	changed.Description = "c"
	assert.NotEqual(t, d.ContentHash(), changed.ContentHash())
}

// -----------------------------------------------------------------------------
// Zodiac
// -----------------------------------------------------------------------------

func TestGregorianSignBoundaries(t *testing.T) {
	tests := []struct {
		month time.Month
		day   int
		want  string
	}{
		{time.March, 21, "aries"},
		{time.April, 19, "aries"},
		{time.April, 20, "taurus"},
		{time.December, 22, "capricorn"},
		{time.January, 19, "capricorn"},
		{time.January, 20, "aquarius"},
		{time.February, 29, "pisces"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, GregorianSign(tc.month, tc.day), "%v %d", tc.month, tc.day)
	}
}

func TestHebrewSignCoversAllMonths(t *testing.T) {
	assert.Equal(t, "aries", HebrewSign("Nisan"))
	assert.Equal(t, "pisces", HebrewSign("Adar"))
	assert.Equal(t, "pisces", HebrewSign("Adar I"))
	assert.Equal(t, "pisces", HebrewSign("Adar II"))
	assert.Empty(t, HebrewSign("Octember"))
}

func TestBuildTitleKeepsPercentSigns(t *testing.T) {
	b := testBuilder(t)
	tenant := model.Tenant{ID: "t1", Language: "en"}

	p := testPerson()
	p.FirstName = "100%"
	p.LastName = "Levi %s"

	out := b.Build(p, tenant, nil, nil)
	require.NotEmpty(t, out)

	for _, d := range out {
		assert.Contains(t, d.Title, "100% Levi %s |")
		assert.NotContains(t, d.Title, "%!", "names must never be treated as format verbs")
	}
}
