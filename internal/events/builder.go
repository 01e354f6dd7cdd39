// Package events turns person records and their related entities into
// calendar-event descriptors. The builder is a pure transformation: identical
// inputs always yield byte-identical descriptors, which is what makes the
// reconciler's skip-if-identical upsert possible.
package events

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tartampluch/go-hebsync/internal/config"
	"github.com/tartampluch/go-hebsync/internal/hebdate"
	"github.com/tartampluch/go-hebsync/internal/i18n"
	"github.com/tartampluch/go-hebsync/internal/model"
)

// Descriptor is one calendar event to exist on the external service. It is
// ephemeral: rebuilt from records on every reconciliation, never persisted.
type Descriptor struct {
	// Key is the stable identity personID:system:year of this event across
	// rebuilds; the reconciler records external event ids under it.
	Key string

	// System is "gregorian" or "hebrew".
	System string

	// Year is the Gregorian target year for Gregorian events and the Hebrew
	// year for Hebrew events.
	Year int

	Title       string
	Description string

	// StartDate/EndDate are all-day bounds, end exclusive, one day apart.
	StartDate string
	EndDate   string

	// ReminderMinutes are popup reminder offsets before the event.
	ReminderMinutes []int

	// Correlation identifies the event as ours during cleanup.
	Correlation map[string]string
}

// ContentHash digests every user-visible field of the descriptor. Two
// descriptors with equal hashes need no update on the external service.
func (d Descriptor) ContentHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%v", d.Title, d.Description, d.StartDate, d.EndDate, d.ReminderMinutes)
	return hex.EncodeToString(h.Sum(nil))
}

// Builder assembles descriptors for both calendar systems. The clock only
// determines the first Gregorian target year.
type Builder struct {
	Translator *i18n.Translator
	Clock      hebdate.Clock
}

// priorityRank orders wishlist priorities high to low.
var priorityRank = map[string]int{
	config.PriorityHigh:   3,
	config.PriorityMedium: 2,
	config.PriorityLow:    1,
}

// Build produces the full descriptor set for one person, honoring the
// resolved calendar preference. Description sections assemble in fixed
// order: wishlist, Gregorian date, Hebrew date, sunset warning, groups,
// notes; the zodiac line closes each system's variant.
func (b *Builder) Build(p model.Person, t model.Tenant, groups []model.Group, wishlist []model.WishlistItem) []Descriptor {
	lang := t.EffectiveLanguage()
	pref := model.ResolvePreference(&p, groups, &t)

	doGreg := pref == config.PreferenceGregorian || pref == config.PreferenceBoth
	doHeb := pref == config.PreferenceHebrew || pref == config.PreferenceBoth

	base := b.baseDescription(lang, p, groups, wishlist)
	correlation := map[string]string{
		config.CorrAppKey:    config.AppMarker,
		config.CorrTenantKey: p.TenantID,
		config.CorrPersonKey: p.ID,
	}
	reminders := []int{config.ReminderMinutesDayBefore, config.ReminderMinutesHourBefore}

	var out []Descriptor

	if doGreg {
		birth, err := time.Parse(config.DateFormatISO, p.BirthDateGregorian)
		if err == nil {
			desc := base
			if sign := GregorianSign(birth.Month(), birth.Day()); sign != "" {
				desc += "\n\n" + b.zodiacLine(lang, sign)
			}
			gregTitle := b.Translator.T(lang, config.TKeyTitleGreg)
			currentYear := b.Clock.Now().Year()

			for i := 0; i <= config.ProjectionYears; i++ {
				y := currentYear + i
				start := time.Date(y, birth.Month(), birth.Day(), 0, 0, 0, 0, time.UTC)
				age := y - birth.Year()
				out = append(out, Descriptor{
					Key:             fmt.Sprintf(config.FormatDescriptorKey, p.ID, config.SystemGregorian, y),
					System:          config.SystemGregorian,
					Year:            y,
					Title:           fmt.Sprintf("%s %s | %d | %s", p.FirstName, p.LastName, age, gregTitle),
					Description:     desc,
					StartDate:       start.Format(config.DateFormatISO),
					EndDate:         start.AddDate(0, 0, 1).Format(config.DateFormatISO),
					ReminderMinutes: reminders,
					Correlation:     correlation,
				})
			}
		}
	}

	if doHeb && len(p.FutureHebrewOccurrences) > 0 {
		desc := base
		if sign := HebrewSign(p.HebrewMonth); sign != "" {
			desc += "\n\n" + b.zodiacLine(lang, sign)
		}
		hebTitle := b.Translator.T(lang, config.TKeyTitleHebrew)

		for _, occ := range p.FutureHebrewOccurrences {
			start, err := time.Parse(config.DateFormatISO, occ.Gregorian)
			if err != nil {
				continue
			}
			age := 0
			if occ.HebrewYear != 0 && p.HebrewYear != 0 {
				age = occ.HebrewYear - p.HebrewYear
			}
			out = append(out, Descriptor{
				Key:             fmt.Sprintf(config.FormatDescriptorKey, p.ID, config.SystemHebrew, occ.HebrewYear),
				System:          config.SystemHebrew,
				Year:            occ.HebrewYear,
				Title:           fmt.Sprintf("%s %s | %d | %s", p.FirstName, p.LastName, age, hebTitle),
				Description:     desc,
				StartDate:       start.Format(config.DateFormatISO),
				EndDate:         start.AddDate(0, 0, 1).Format(config.DateFormatISO),
				ReminderMinutes: reminders,
				Correlation:     correlation,
			})
		}
	}

	return out
}

// baseDescription assembles the description shared by both systems.
func (b *Builder) baseDescription(lang string, p model.Person, groups []model.Group, wishlist []model.WishlistItem) string {
	var sb strings.Builder

	if top := topWishlistItem(wishlist); top != nil {
		sb.WriteString(b.Translator.T(lang, config.TKeyDescWishlist))
		sb.WriteString("\n1. " + top.Name + "\n\n")
	}

	sb.WriteString(b.Translator.T(lang, config.TKeyDescGregDate) + ": " + p.BirthDateGregorian + "\n")
	sb.WriteString(b.Translator.T(lang, config.TKeyDescHebDate) + ": " + p.HebrewString + "\n")

	if p.AfterSunset {
		sb.WriteString(b.Translator.T(lang, config.TKeyDescSunset) + "\n")
	}

	if len(groups) > 0 {
		names := make([]string, 0, len(groups))
		for _, g := range groups {
			names = append(names, g.DisplayName())
		}
		sb.WriteString("\n" + b.Translator.T(lang, config.TKeyDescGroups) + ": " + strings.Join(names, ", "))
	}

	if p.Notes != "" {
		sb.WriteString("\n\n" + b.Translator.T(lang, config.TKeyDescNotes) + ": " + p.Notes)
	}

	return sb.String()
}

func (b *Builder) zodiacLine(lang, sign string) string {
	return b.Translator.T(lang, config.TKeyDescZodiac) + ": " + b.Translator.T(lang, config.TKeyZodiacPrefix+sign)
}

// topWishlistItem picks the highest-priority item. The sort is stable so
// equal priorities keep their input order and the builder stays
// deterministic.
func topWishlistItem(items []model.WishlistItem) *model.WishlistItem {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]model.WishlistItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return priorityRank[sorted[i].Priority] > priorityRank[sorted[j].Priority]
	})
	return &sorted[0]
}
