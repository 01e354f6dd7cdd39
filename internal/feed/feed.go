// Package feed renders a tenant's upcoming anniversaries as an iCalendar
// object for read-only subscription. The feed is built entirely from stored
// records; it never touches the external calendar service.
package feed

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tartampluch/go-hebsync/internal/config"
	"github.com/tartampluch/go-hebsync/internal/hebdate"
	"github.com/tartampluch/go-hebsync/internal/i18n"
	"github.com/tartampluch/go-hebsync/internal/model"
	"github.com/tartampluch/go-hebsync/internal/store"
)

// Generator builds the per-tenant ICS feed.
type Generator struct {
	Store      store.Store
	Translator *i18n.Translator
	Clock      hebdate.Clock
}

// Generate renders the feed for one tenant. Tenants without upcoming
// occurrences receive a minimal valid VCALENDAR so clients never flag the
// subscription as broken.
func (g *Generator) Generate(ctx context.Context, tenantID string) ([]byte, error) {
	var tenant model.Tenant
	if err := g.Store.FindByID(ctx, config.CollectionTenants, tenantID, &tenant); err != nil {
		return nil, err
	}
	lang := tenant.EffectiveLanguage()

	persons, err := g.tenantPersons(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	groupPrefs, err := g.tenantGroups(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, g.Translator.T(lang, config.TKeyCalendarName))
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	refreshProp := ical.NewProp(config.PropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	now := g.Clock.Now()
	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(now.UTC())

	count := 0
	for _, p := range persons {
		pref := model.ResolvePreference(&p, personGroups(p, groupPrefs), &tenant)
		events := g.personEvents(lang, p, pref, now)
		for _, e := range events {
			e.Props.Set(dtStampProp)
			cal.Children = append(cal.Children, e.Component)
			count++
		}
	}

	if count == 0 {
		return []byte(config.StubVCalendar), nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}

	slog.Debug(config.MsgFeedGenSuccess,
		config.LogKeyComponent, config.CompFeed,
		config.LogKeyTenant, tenantID,
		config.LogKeyCount, count,
	)
	return buf.Bytes(), nil
}

// personEvents renders both calendar systems for one person according to the
// resolved preference. Hebrew events come from the stored projection;
// Gregorian events span the same horizon anchored at the birth month/day.
func (g *Generator) personEvents(lang string, p model.Person, pref string, now time.Time) []*ical.Event {
	name := p.FirstName
	if p.LastName != "" {
		name += " " + p.LastName
	}
	uidBase := feedUID(p.ID, p.BirthDateGregorian)

	var events []*ical.Event

	if pref == config.PreferenceHebrew || pref == config.PreferenceBoth {
		title := g.Translator.T(lang, config.TKeyFeedEventHeb)
		for _, occ := range p.FutureHebrewOccurrences {
			date, err := time.Parse(config.DateFormatISO, occ.Gregorian)
			if err != nil {
				continue
			}
			summary := fmt.Sprintf("%s | %s", name, title)
			events = append(events, g.newEvent(uidBase, config.SystemHebrew, occ.HebrewYear, summary, date))
		}
	}

	if pref == config.PreferenceGregorian || pref == config.PreferenceBoth {
		birth, err := time.Parse(config.DateFormatISO, p.BirthDateGregorian)
		if err != nil {
			return events
		}
		title := g.Translator.T(lang, config.TKeyFeedEventGreg)
		for i := 0; i <= config.ProjectionYears; i++ {
			y := now.Year() + i
			date := time.Date(y, birth.Month(), birth.Day(), 0, 0, 0, 0, time.UTC)
			summary := fmt.Sprintf("%s | %d | %s", name, y-birth.Year(), title)
			events = append(events, g.newEvent(uidBase, config.SystemGregorian, y, summary, date))
		}
	}

	return events
}

// newEvent builds one all-day VEVENT with the standard day-before alarm.
func (g *Generator) newEvent(uidBase, system string, year int, summary string, date time.Time) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(config.PropUID, fmt.Sprintf(config.FormatUID, uidBase+"-"+system, year, config.ICalDomain))
	event.Props.SetText(config.PropSummary, summary)

	dtStartProp := ical.NewProp(config.PropDTStart)
	dtStartProp.SetDate(date)
	event.Props.Set(dtStartProp)

	addAlarm(event, config.FeedReminderTrigger, summary)
	return event
}

// addAlarm appends a DISPLAY alarm (notification) to the event.
func addAlarm(event *ical.Event, trigger, description string) {
	alarm := ical.NewComponent(config.ICalComponent)
	alarm.Props.SetText(config.PropAction, config.ICalAction)
	alarm.Props.SetText(config.PropDescription, description)

	// Set trigger manually to avoid "VALUE=TEXT" param
	triggerProp := ical.NewProp(config.PropTrigger)
	triggerProp.Value = trigger
	alarm.Props.Set(triggerProp)

	event.Children = append(event.Children, alarm)
}

// feedUID derives a deterministic UID base so events stay stable across
// refreshes; calendar clients dedupe on it.
func feedUID(personID, birthDate string) string {
	input := fmt.Sprintf(config.FormatHashInput, personID, birthDate, config.UIDSalt)
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash[:config.UIDHashLength])
}

func (g *Generator) tenantPersons(ctx context.Context, tenantID string) ([]model.Person, error) {
	docs, err := g.Store.Query(ctx, config.CollectionPersons, store.Filter{
		config.FieldTenantID: tenantID,
		config.FieldArchived: false,
	})
	if err != nil {
		return nil, err
	}
	persons := make([]model.Person, 0, len(docs))
	for _, doc := range docs {
		var p model.Person
		if err := store.DecodeInto(doc, &p); err != nil {
			return nil, err
		}
		persons = append(persons, p)
	}
	return persons, nil
}

func (g *Generator) tenantGroups(ctx context.Context, tenantID string) (map[string]model.Group, error) {
	docs, err := g.Store.Query(ctx, config.CollectionGroups, store.Filter{
		config.FieldTenantID: tenantID,
	})
	if err != nil {
		return nil, err
	}
	groups := make(map[string]model.Group, len(docs))
	for _, doc := range docs {
		var grp model.Group
		if err := store.DecodeInto(doc, &grp); err != nil {
			return nil, err
		}
		groups[grp.ID] = grp
	}
	return groups, nil
}

// personGroups resolves a person's memberships in declaration order.
func personGroups(p model.Person, all map[string]model.Group) []model.Group {
	var groups []model.Group
	for _, id := range p.GroupIDs {
		if g, ok := all[id]; ok {
			groups = append(groups, g)
		}
	}
	return groups
}
