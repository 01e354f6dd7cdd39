package recalc

import (
	"time"

	"github.com/tartampluch/go-hebsync/internal/config"
	"github.com/tartampluch/go-hebsync/internal/model"
)

// Decision is the named outcome of evaluating whether a person record needs
// Hebrew-data recalculation. The states were previously implicit in field
// comparisons; naming them keeps the branches testable one by one.
type Decision int

const (
	// DecisionUpToDate: derived data present and consistent, nothing to do.
	DecisionUpToDate Decision = iota

	// DecisionSystemEcho: the write carries the system marker that the
	// previous version lacked, i.e. it is our own recalculation echoing
	// back. Recalculating would loop forever.
	DecisionSystemEcho

	// DecisionNewRecord: no previous version and no derived data yet.
	DecisionNewRecord

	// DecisionInputChanged: the source date or the sunset flag changed.
	DecisionInputChanged

	// DecisionCacheStale: the cached next occurrence already elapsed.
	DecisionCacheStale

	// DecisionCacheEmpty: an update left the derived fields absent.
	DecisionCacheEmpty
)

// String implements fmt.Stringer for log output.
func (d Decision) String() string {
	switch d {
	case DecisionSystemEcho:
		return "system-echo"
	case DecisionNewRecord:
		return "new-record"
	case DecisionInputChanged:
		return "input-changed"
	case DecisionCacheStale:
		return "cache-stale"
	case DecisionCacheEmpty:
		return "cache-empty"
	default:
		return "up-to-date"
	}
}

// Recalculate reports whether the decision requires running the engine.
func (d Decision) Recalculate() bool {
	switch d {
	case DecisionNewRecord, DecisionInputChanged, DecisionCacheStale, DecisionCacheEmpty:
		return true
	default:
		return false
	}
}

// Evaluate classifies a record write. now is the current UTC instant.
//
// The stale check deliberately compares the cached tenant-local date string
// against a UTC "today": resolving it properly would require the tenant's
// timezone, i.e. a store read inside a pre-write guard. The hourly midnight
// scheduler corrects whatever this looseness misses.
func Evaluate(before, after *model.Person, now time.Time) Decision {
	if after == nil {
		return DecisionUpToDate
	}

	if after.SystemUpdate && (before == nil || !before.SystemUpdate) {
		return DecisionSystemEcho
	}

	if before == nil {
		if !after.HasDerivedData() {
			return DecisionNewRecord
		}
		return DecisionUpToDate
	}

	if before.BirthDateGregorian != after.BirthDateGregorian || before.AfterSunset != after.AfterSunset {
		return DecisionInputChanged
	}

	if after.NextUpcomingHebrew != "" {
		next, err := time.Parse(config.DateFormatISO, after.NextUpcomingHebrew)
		if err == nil {
			today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			if next.Before(today) {
				return DecisionCacheStale
			}
		}
	}

	if !after.HasDerivedData() {
		return DecisionCacheEmpty
	}
	return DecisionUpToDate
}
