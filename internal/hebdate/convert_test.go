package hebdate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Conversion
// -----------------------------------------------------------------------------

func TestConvertKnownDate(t *testing.T) {
	// 15 March 1990 is 18 Adar 5750, a non-leap year, so the month renders as
	// plain Adar rather than Adar I.
	heb, err := Convert(time.Date(1990, time.March, 15, 0, 0, 0, 0, time.UTC), false)
	require.NoError(t, err)

	assert.Equal(t, 5750, heb.Year)
	assert.Equal(t, "Adar", heb.Month)
	assert.Equal(t, 18, heb.Day)
	assert.Equal(t, "י״ח באדר תש״נ", heb.Rendered)
}

func TestConvertAfterSunsetAdvancesOneDay(t *testing.T) {
	date := time.Date(1990, time.March, 15, 0, 0, 0, 0, time.UTC)

	evening, err := Convert(date, true)
	require.NoError(t, err)

	nextDay, err := Convert(date.AddDate(0, 0, 1), false)
	require.NoError(t, err)

	assert.Equal(t, nextDay, evening,
		"after-sunset conversion must equal the plain conversion of the next day")
}

func TestConvertRejectsOutOfRangeYears(t *testing.T) {
	_, err := Convert(time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC), false)
	assert.Error(t, err)

	_, err = Convert(time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC), false)
	assert.Error(t, err)
}

func TestConvertMonthNameRoundTrips(t *testing.T) {
	// Whatever name Convert produces must be parseable by the projector,
	// otherwise stored records could never be projected forward.
	dates := []time.Time{
		time.Date(1990, time.March, 15, 0, 0, 0, 0, time.UTC),
		time.Date(1984, time.March, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2000, time.September, 30, 0, 0, 0, 0, time.UTC),
		time.Date(1975, time.November, 4, 0, 0, 0, 0, time.UTC),
	}
	for _, d := range dates {
		heb, err := Convert(d, false)
		require.NoError(t, err)

		_, err = monthFromName(heb.Month)
		assert.NoError(t, err, "month %q from %s must parse", heb.Month, d.Format("2006-01-02"))
	}
}

func TestMonthFromNameVariants(t *testing.T) {
	tests := []struct {
		name      string
		plainAdar bool
		wantErr   bool
	}{
		{name: "Nisan"},
		{name: "Tishri"},
		{name: "Heshvan"},
		{name: "Shevat"},
		{name: "Adar", plainAdar: true},
		{name: "Adar I"},
		{name: "Adar II"},
		{name: "Octember", wantErr: true},
		{name: "", wantErr: true},
	}

	for _, tc := range tests {
		a, err := monthFromName(tc.name)
		if tc.wantErr {
			assert.Error(t, err, tc.name)
			continue
		}
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.plainAdar, a.plainAdar, tc.name)
	}
}

// -----------------------------------------------------------------------------
// Clock helpers
// -----------------------------------------------------------------------------

func TestHebrewNowAdvancesPastSunset(t *testing.T) {
	evening := FixedClock{Instant: time.Date(2026, time.June, 1, 20, 0, 0, 0, time.UTC)}
	afternoon := FixedClock{Instant: time.Date(2026, time.June, 1, 15, 0, 0, 0, time.UTC)}

	got, err := HebrewNow(evening, "UTC", 19)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Day(), "20:00 is past the 19:00 boundary, Hebrew day advanced")

	got, err = HebrewNow(afternoon, "UTC", 19)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Day())
}

func TestIsLocalMidnight(t *testing.T) {
	clk := FixedClock{Instant: time.Date(2026, time.June, 1, 0, 30, 0, 0, time.UTC)}

	midnight, err := IsLocalMidnight(clk, "UTC")
	require.NoError(t, err)
	assert.True(t, midnight)

	_, err = IsLocalMidnight(clk, "Not/AZone")
	assert.Error(t, err)
}
