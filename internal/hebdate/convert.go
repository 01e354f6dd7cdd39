// Package hebdate implements the Hebrew calendar arithmetic of the engine:
// Gregorian-to-Hebrew conversion with the after-sunset day-boundary rule,
// gematriya rendering, and forward occurrence projection across leap-month
// years. All functions are pure; "now" always arrives through a Clock.
package hebdate

import (
	"errors"
	"fmt"
	"time"

	"github.com/hebcal/gematriya"
	"github.com/hebcal/hebcal-go/hdate"

	"github.com/tartampluch/go-hebsync/internal/config"
)

// Supported Gregorian range. Conversion outside it is a fatal input error,
// never silently defaulted.
const (
	minGregorianYear = 1
	maxGregorianYear = 9999
)

// HebrewDate is the converted counterpart of a Gregorian date.
type HebrewDate struct {
	Year  int
	Month string // canonical month name, e.g. "Nisan", "Adar", "Adar II"
	Day   int

	// Rendered is the traditional long form in Hebrew numerals,
	// e.g. "י״ח באדר תש״נ".
	Rendered string
}

// monthNames maps hdate months to their canonical transliterated names.
// Adar1 renders as "Adar I" only in leap years; in a plain year the single
// Adar occupies the Adar1 slot.
var monthNames = map[hdate.HMonth]string{
	hdate.Nisan:    "Nisan",
	hdate.Iyyar:    "Iyyar",
	hdate.Sivan:    "Sivan",
	hdate.Tamuz:    "Tamuz",
	hdate.Av:       "Av",
	hdate.Elul:     "Elul",
	hdate.Tishrei:  "Tishrei",
	hdate.Cheshvan: "Cheshvan",
	hdate.Kislev:   "Kislev",
	hdate.Tevet:    "Tevet",
	hdate.Shvat:    "Sh'vat",
	hdate.Adar1:    "Adar I",
	hdate.Adar2:    "Adar II",
}

// hebrewMonthNames holds the Hebrew rendering of each month, with the
// plain-Adar variant used in non-leap years.
var hebrewMonthNames = map[hdate.HMonth]string{
	hdate.Nisan:    "ניסן",
	hdate.Iyyar:    "אייר",
	hdate.Sivan:    "סיון",
	hdate.Tamuz:    "תמוז",
	hdate.Av:       "אב",
	hdate.Elul:     "אלול",
	hdate.Tishrei:  "תשרי",
	hdate.Cheshvan: "חשון",
	hdate.Kislev:   "כסלו",
	hdate.Tevet:    "טבת",
	hdate.Shvat:    "שבט",
	hdate.Adar1:    "אדר א׳",
	hdate.Adar2:    "אדר ב׳",
}

const hebrewAdarPlain = "אדר"

// Convert maps a Gregorian date to its Hebrew equivalent. When afterSunset is
// true the event belongs to the next Hebrew day, because the Hebrew day
// begins at a fixed local evening hour rather than at Gregorian midnight.
func Convert(t time.Time, afterSunset bool) (HebrewDate, error) {
	y, m, d := t.Date()
	if y < minGregorianYear || y > maxGregorianYear {
		return HebrewDate{}, fmt.Errorf("%s: year %d", config.ErrDateOutOfRange, y)
	}

	hd := hdate.FromGregorian(y, m, d)
	if afterSunset {
		hd = hd.Next()
	}

	leap := hdate.IsLeapYear(hd.Year())
	return HebrewDate{
		Year:     hd.Year(),
		Month:    MonthName(hd.Month(), leap),
		Day:      hd.Day(),
		Rendered: renderGematriya(hd.Day(), hd.Month(), hd.Year(), leap),
	}, nil
}

// CurrentHebrewYear returns the Hebrew year the given instant falls in.
// Callers pass a tenant-local "now" so the year flips at the tenant's own
// Rosh Hashana, not UTC's.
func CurrentHebrewYear(now time.Time) int {
	y, m, d := now.Date()
	return hdate.FromGregorian(y, m, d).Year()
}

// MonthName returns the canonical name of a Hebrew month for a year of the
// given leapness. In a non-leap year the single Adar is named plain "Adar".
func MonthName(m hdate.HMonth, leap bool) string {
	if m == hdate.Adar1 && !leap {
		return "Adar"
	}
	return monthNames[m]
}

// renderGematriya produces the traditional "day month year" string in Hebrew
// numerals, matching the long-form rendering stored on person records.
func renderGematriya(day int, month hdate.HMonth, year int, leap bool) string {
	name := hebrewMonthNames[month]
	if month == hdate.Adar1 && !leap {
		name = hebrewAdarPlain
	}
	return gematriya.Gematriya(day) + " ב" + name + " " + gematriya.Gematriya(year)
}

// anchor is the parsed (month, day) identity of a recurring Hebrew date. The
// plainAdar flag preserves the distinction between a birth in plain Adar of a
// non-leap year and a birth in Adar I of a leap year, which project
// differently into future leap years.
type anchor struct {
	month     hdate.HMonth
	plainAdar bool
}

// monthFromName parses a canonical (or common variant) month name.
func monthFromName(name string) (anchor, error) {
	switch name {
	case "Nisan":
		return anchor{month: hdate.Nisan}, nil
	case "Iyyar", "Iyar":
		return anchor{month: hdate.Iyyar}, nil
	case "Sivan":
		return anchor{month: hdate.Sivan}, nil
	case "Tamuz", "Tammuz":
		return anchor{month: hdate.Tamuz}, nil
	case "Av":
		return anchor{month: hdate.Av}, nil
	case "Elul":
		return anchor{month: hdate.Elul}, nil
	case "Tishrei", "Tishri":
		return anchor{month: hdate.Tishrei}, nil
	case "Cheshvan", "Heshvan":
		return anchor{month: hdate.Cheshvan}, nil
	case "Kislev":
		return anchor{month: hdate.Kislev}, nil
	case "Tevet", "Teves":
		return anchor{month: hdate.Tevet}, nil
	case "Sh'vat", "Shvat", "Shevat":
		return anchor{month: hdate.Shvat}, nil
	case "Adar":
		return anchor{month: hdate.Adar1, plainAdar: true}, nil
	case "Adar I", "Adar1":
		return anchor{month: hdate.Adar1}, nil
	case "Adar II", "Adar2":
		return anchor{month: hdate.Adar2}, nil
	}
	return anchor{}, errors.New(config.ErrUnknownMonth + ": " + name)
}
