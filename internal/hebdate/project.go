package hebdate

import (
	"fmt"
	"time"

	"github.com/hebcal/hebcal-go/hdate"

	"github.com/tartampluch/go-hebsync/internal/config"
)

// ProjectedOccurrence is one future instance of a recurring Hebrew date.
type ProjectedOccurrence struct {
	// Gregorian is the occurrence date at UTC midnight.
	Gregorian time.Time

	// HebrewYear is the Hebrew year the occurrence falls in.
	HebrewYear int
}

// Projection is the partial result of projecting an anchor forward. Years
// with no valid construction are recorded in SkippedYears instead of being
// lost silently, so callers can observe the gap.
type Projection struct {
	Occurrences  []ProjectedOccurrence
	SkippedYears []int
}

// Project computes up to count+1 future occurrences of the (monthName, day)
// anchor, one per candidate Hebrew year from startYear through
// startYear+count. Ambiguities resolve in order:
//
//  1. day 30 in a 29-day target month falls back to day 29;
//  2. an "Adar I" anchor in a non-leap year falls back to plain Adar;
//  3. an "Adar II" anchor in a non-leap year falls back to plain Adar;
//  4. a plain "Adar" anchor in a leap year retargets to Adar II.
//
// A year that still cannot be constructed is skipped, not an error.
func Project(monthName string, day int, startYear int, count int) (Projection, error) {
	a, err := monthFromName(monthName)
	if err != nil {
		return Projection{}, err
	}
	if day < 1 || day > 30 {
		return Projection{}, fmt.Errorf("%s: day %d", config.ErrInvalidDate, day)
	}

	var p Projection
	for i := 0; i <= count; i++ {
		year := startYear + i
		month, resolvedDay, ok := resolveForYear(a, day, year)
		if !ok {
			p.SkippedYears = append(p.SkippedYears, year)
			continue
		}

		hd := hdate.New(year, month, resolvedDay)
		gy, gm, gd := hd.Greg()
		p.Occurrences = append(p.Occurrences, ProjectedOccurrence{
			Gregorian:  time.Date(gy, gm, gd, 0, 0, 0, 0, time.UTC),
			HebrewYear: year,
		})
	}
	return p, nil
}

// resolveForYear maps the anchor onto a concrete (month, day) that exists in
// the target year, applying the Adar and day-30 fallbacks.
func resolveForYear(a anchor, day int, year int) (hdate.HMonth, int, bool) {
	leap := hdate.IsLeapYear(year)

	month := a.month
	switch {
	case a.plainAdar && leap:
		// A plain-Adar birth celebrates in Adar II of a leap year.
		month = hdate.Adar2
	case a.month == hdate.Adar2 && !leap:
		// No second Adar this year; the single Adar sits in the Adar1 slot.
		month = hdate.Adar1
	case a.month == hdate.Adar1 && !leap:
		// "Adar I" collapses to the single Adar outside leap years.
		month = hdate.Adar1
	}

	days := hdate.DaysInMonth(month, year)
	if day > days {
		if day == 30 && days == 29 {
			return month, 29, true
		}
		return 0, 0, false
	}
	return month, day, true
}
