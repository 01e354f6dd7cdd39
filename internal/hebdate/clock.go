package hebdate

import (
	"fmt"
	"time"

	"github.com/tartampluch/go-hebsync/internal/config"
)

// Clock abstracts time.Now() to allow deterministic testing. Every component
// that needs "now" takes a Clock instead of reading the wall clock.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// FixedClock returns a constant instant; test helper.
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time {
	return c.Instant
}

// NowIn returns the current instant in the given IANA timezone.
func NowIn(clk Clock, timezone string) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", config.ErrTimezoneLoad, err)
	}
	return clk.Now().In(loc), nil
}

// LocalDateString returns today's date (YYYY-MM-DD) in the given timezone.
func LocalDateString(clk Clock, timezone string) (string, error) {
	now, err := NowIn(clk, timezone)
	if err != nil {
		return "", err
	}
	return now.Format(config.DateFormatISO), nil
}

// LocalHour returns the current hour (0-23) in the given timezone.
func LocalHour(clk Clock, timezone string) (int, error) {
	now, err := NowIn(clk, timezone)
	if err != nil {
		return 0, err
	}
	return now.Hour(), nil
}

// IsLocalMidnight reports whether the local hour in the timezone is exactly 0.
// The hourly scheduler uses this to find tenants whose day just rolled over.
func IsLocalMidnight(clk Clock, timezone string) (bool, error) {
	hour, err := LocalHour(clk, timezone)
	if err != nil {
		return false, err
	}
	return hour == 0, nil
}

// LocalStartOfDay returns midnight of the current local day in the timezone.
func LocalStartOfDay(clk Clock, timezone string) (time.Time, error) {
	now, err := NowIn(clk, timezone)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
}

// HebrewNow returns the instant that determines "today" on the Hebrew
// calendar: past the sunset hour the Hebrew day has already advanced, so the
// next Gregorian day is returned.
func HebrewNow(clk Clock, timezone string, sunsetHour int) (time.Time, error) {
	now, err := NowIn(clk, timezone)
	if err != nil {
		return time.Time{}, err
	}
	if now.Hour() >= sunsetHour {
		return now.AddDate(0, 0, 1), nil
	}
	return now, nil
}
