package recalc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tartampluch/go-hebsync/internal/model"
)

func derivedPerson() *model.Person {
	return &model.Person{
		ID:                 "p1",
		BirthDateGregorian: "1990-03-15",
		HebrewString:       "י״ח באדר תש״נ",
		NextUpcomingHebrew: "2030-03-20",
		FutureHebrewOccurrences: []model.Occurrence{
			{Gregorian: "2030-03-20", HebrewYear: 5790},
		},
	}
}

func TestEvaluateDecisionTable(t *testing.T) {
	now := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)

	bare := &model.Person{ID: "p1", BirthDateGregorian: "1990-03-15"}
	derived := derivedPerson()

	echo := derivedPerson()
	echo.SystemUpdate = true

	changedDate := derivedPerson()
	changedDate.BirthDateGregorian = "1990-03-16"

	changedSunset := derivedPerson()
	changedSunset.AfterSunset = true

	stale := derivedPerson()
	stale.NextUpcomingHebrew = "2020-01-01"

	emptied := derivedPerson()
	emptied.HebrewString = ""
	emptied.FutureHebrewOccurrences = nil
	emptied.NextUpcomingHebrew = ""

	tests := []struct {
		name   string
		before *model.Person
		after  *model.Person
		want   Decision
	}{
		{"nil write", derived, nil, DecisionUpToDate},
		{"new record without derived data", nil, bare, DecisionNewRecord},
		{"new record already derived", nil, derived, DecisionUpToDate},
		{"system echo", derived, echo, DecisionSystemEcho},
		{"birth date changed", derived, changedDate, DecisionInputChanged},
		{"sunset flag changed", derived, changedSunset, DecisionInputChanged},
		{"cached next elapsed", derived, stale, DecisionCacheStale},
		{"derived fields wiped", derived, emptied, DecisionCacheEmpty},
		{"no-op update", derived, derivedPerson(), DecisionUpToDate},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.before, tc.after, now)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateEchoRequiresFreshMarker(t *testing.T) {
	// A record whose previous version already carried the marker is not an
	// echo: a user edit on top of a system write must still be considered.
	now := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)

	before := derivedPerson()
	before.SystemUpdate = true

	after := derivedPerson()
	after.SystemUpdate = true
	after.BirthDateGregorian = "1990-03-16"

	assert.Equal(t, DecisionInputChanged, Evaluate(before, after, now))
}

func TestDecisionRecalculate(t *testing.T) {
	assert.False(t, DecisionUpToDate.Recalculate())
	assert.False(t, DecisionSystemEcho.Recalculate())
	assert.True(t, DecisionNewRecord.Recalculate())
	assert.True(t, DecisionInputChanged.Recalculate())
	assert.True(t, DecisionCacheStale.Recalculate())
	assert.True(t, DecisionCacheEmpty.Recalculate())
}
