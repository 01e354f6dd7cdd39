// Package reconcile keeps the external calendar's event set consistent with
// the person records: calendar binding resolution, idempotent event upsert,
// orphan cleanup and full teardown. Every mutation is safe to repeat.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tartampluch/go-hebsync/internal/calendar"
	"github.com/tartampluch/go-hebsync/internal/config"
	"github.com/tartampluch/go-hebsync/internal/events"
	"github.com/tartampluch/go-hebsync/internal/i18n"
	"github.com/tartampluch/go-hebsync/internal/model"
	"github.com/tartampluch/go-hebsync/internal/store"
)

// Reconciler pushes built descriptors to the external calendar and removes
// what no longer belongs there.
type Reconciler struct {
	Store       store.Store
	Client      calendar.Client
	Credentials calendar.CredentialProvider
	Builder     *events.Builder
	Translator  *i18n.Translator

	// ChunkSize bounds how many persons are synced in parallel; external
	// rate limits make unbounded fan-out counterproductive.
	ChunkSize int
}

// SyncResult reports the outcome of a bulk sync pass.
type SyncResult struct {
	Successes []string
	Failures  []string
}

// EnsureCalendar resolves the tenant's calendar binding: verify an existing
// binding (clearing it when the calendar was deleted externally), rename it
// when the display name drifted from the expected localized name, or create
// and persist a fresh calendar.
func (r *Reconciler) EnsureCalendar(ctx context.Context, ownerID, tenantID string) (string, error) {
	var tenant model.Tenant
	if err := r.Store.FindByID(ctx, config.CollectionTenants, tenantID, &tenant); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrTenantNotFound, err)
	}

	log := slog.With(
		config.LogKeyComponent, config.CompReconcile,
		config.LogKeyTenant, tenantID,
	)
	expectedName := r.Translator.T(tenant.EffectiveLanguage(), config.TKeyCalendarName)

	if tenant.CalendarID != "" {
		cal, err := r.Client.GetCalendar(ctx, ownerID, tenant.CalendarID)
		switch {
		case err == nil:
			if !tenant.HasCustomCalendarName && cal.Summary != expectedName {
				if err := r.Client.UpdateCalendar(ctx, ownerID, tenant.CalendarID, expectedName); err != nil {
					return "", err
				}
				_ = r.Store.Update(ctx, config.CollectionTenants, tenantID, map[string]any{
					"calendar_name": expectedName,
				})
				log.Info(config.MsgCalendarRenamed, config.LogKeyCalendar, tenant.CalendarID)
			}
			return tenant.CalendarID, nil

		case errors.Is(err, calendar.ErrNotFound):
			// Ghost binding: the calendar was deleted on the remote side.
			log.Info(config.MsgCalendarGhost, config.LogKeyCalendar, tenant.CalendarID)
			err := r.Store.Update(ctx, config.CollectionTenants, tenantID, map[string]any{
				"calendar_id":   nil,
				"calendar_name": nil,
			})
			if err != nil {
				return "", err
			}

		default:
			return "", fmt.Errorf("%s: %w", config.ErrCalendarVerify, err)
		}
	}

	calendarID, err := r.Client.CreateCalendar(ctx, ownerID, expectedName)
	if err != nil {
		return "", err
	}
	err = r.Store.Update(ctx, config.CollectionTenants, tenantID, map[string]any{
		"calendar_id":              calendarID,
		"calendar_name":            expectedName,
		"has_custom_calendar_name": false,
	})
	if err != nil {
		return "", err
	}
	log.Info(config.MsgCalendarCreated, config.LogKeyCalendar, calendarID)
	return calendarID, nil
}

// SyncPerson upserts every descriptor of one person: create when no external
// event is recorded for the descriptor key, update when the content hash
// differs, skip when identical. Events recorded for keys the build no longer
// produces are removed. The updated event map is persisted in one write.
func (r *Reconciler) SyncPerson(ctx context.Context, ownerID, calendarID, personID string) error {
	person, tenant, groups, wishlist, err := r.loadRelated(ctx, personID)
	if err != nil {
		return err
	}

	log := slog.With(
		config.LogKeyComponent, config.CompReconcile,
		config.LogKeyPerson, personID,
	)

	descriptors := r.Builder.Build(person, tenant, groups, wishlist)
	synced := make(map[string]model.SyncedEvent, len(descriptors))
	for k, v := range person.CalendarEvents {
		synced[k] = v
	}

	wanted := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		wanted[d.Key] = true
		hash := d.ContentHash()
		existing, ok := synced[d.Key]

		switch {
		case !ok || existing.ID == "":
			id, err := r.Client.InsertEvent(ctx, ownerID, calendarID, toEvent(d))
			if err != nil {
				return fmt.Errorf("%s: %w", config.ErrEventUpsert, err)
			}
			synced[d.Key] = model.SyncedEvent{ID: id, Hash: hash}
			log.Debug(config.MsgEventCreated, config.LogKeyEvent, id)

		case existing.Hash != hash:
			err := r.Client.UpdateEvent(ctx, ownerID, calendarID, existing.ID, toEvent(d))
			if errors.Is(err, calendar.ErrNotFound) {
				// Ghost event: recreate instead of updating thin air.
				id, ierr := r.Client.InsertEvent(ctx, ownerID, calendarID, toEvent(d))
				if ierr != nil {
					return fmt.Errorf("%s: %w", config.ErrEventUpsert, ierr)
				}
				synced[d.Key] = model.SyncedEvent{ID: id, Hash: hash}
				log.Debug(config.MsgEventCreated, config.LogKeyEvent, id)
				continue
			}
			if err != nil {
				return fmt.Errorf("%s: %w", config.ErrEventUpsert, err)
			}
			synced[d.Key] = model.SyncedEvent{ID: existing.ID, Hash: hash}
			log.Debug(config.MsgEventUpdated, config.LogKeyEvent, existing.ID)

		default:
			log.Debug(config.MsgEventUnchanged, config.LogKeyEvent, existing.ID)
		}
	}

	// Keys that fell out of the build (preference narrowed, horizon moved)
	// leave events behind; remove them.
	for key, ev := range synced {
		if wanted[key] {
			continue
		}
		err := r.Client.DeleteEvent(ctx, ownerID, calendarID, ev.ID)
		if err != nil && !errors.Is(err, calendar.ErrNotFound) {
			return fmt.Errorf("%s: %w", config.ErrEventDelete, err)
		}
		delete(synced, key)
	}

	return r.Store.Update(ctx, config.CollectionPersons, personID, map[string]any{
		"calendar_events": synced,
		"_systemUpdate":   true,
	})
}

// SyncMany reconciles independent persons in chunks of ChunkSize. A failing
// person is recorded and does not abort its siblings.
func (r *Reconciler) SyncMany(ctx context.Context, ownerID, calendarID string, personIDs []string) SyncResult {
	chunkSize := r.ChunkSize
	if chunkSize <= 0 {
		chunkSize = config.SyncChunkSize
	}

	var (
		mu     sync.Mutex
		result SyncResult
	)

	for start := 0; start < len(personIDs); start += chunkSize {
		end := start + chunkSize
		if end > len(personIDs) {
			end = len(personIDs)
		}

		var wg sync.WaitGroup
		for _, personID := range personIDs[start:end] {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				err := r.SyncPerson(ctx, ownerID, calendarID, id)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					slog.Warn(config.ErrEventUpsert,
						config.LogKeyComponent, config.CompReconcile,
						config.LogKeyPerson, id,
						config.LogKeyError, err,
					)
					result.Failures = append(result.Failures, id)
					return
				}
				result.Successes = append(result.Successes, id)
			}(personID)
		}
		wg.Wait()

		slog.Debug(config.MsgSyncChunkDone,
			config.LogKeyComponent, config.CompReconcile,
			config.LogKeyCount, end-start,
		)
	}
	return result
}

// CleanupOrphans removes external events whose correlation metadata points at
// a person no longer present in the store. Events are recognized purely by
// the application marker, never by calendar ownership.
func (r *Reconciler) CleanupOrphans(ctx context.Context, ownerID, tenantID string) (int, error) {
	var tenant model.Tenant
	if err := r.Store.FindByID(ctx, config.CollectionTenants, tenantID, &tenant); err != nil {
		return 0, fmt.Errorf("%s: %w", config.ErrTenantNotFound, err)
	}
	if tenant.CalendarID == "" {
		return 0, nil
	}

	listed, err := r.Client.ListEvents(ctx, ownerID, tenant.CalendarID, map[string]string{
		config.CorrAppKey:    config.AppMarker,
		config.CorrTenantKey: tenantID,
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, ev := range listed {
		personID := ev.Private[config.CorrPersonKey]
		if personID == "" {
			continue
		}
		var person model.Person
		err := r.Store.FindByID(ctx, config.CollectionPersons, personID, &person)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return removed, err
		}

		err = r.Client.DeleteEvent(ctx, ownerID, tenant.CalendarID, ev.ID)
		if err != nil && !errors.Is(err, calendar.ErrNotFound) {
			return removed, fmt.Errorf("%s: %w", config.ErrEventDelete, err)
		}
		removed++
		slog.Info(config.MsgOrphanRemoved,
			config.LogKeyComponent, config.CompReconcile,
			config.LogKeyEvent, ev.ID,
			config.LogKeyPerson, personID,
		)
	}
	return removed, nil
}

// loadRelated fetches the person plus the entities the descriptor builder
// needs. Group order follows the person's membership list so builds stay
// deterministic.
func (r *Reconciler) loadRelated(ctx context.Context, personID string) (model.Person, model.Tenant, []model.Group, []model.WishlistItem, error) {
	var person model.Person
	if err := r.Store.FindByID(ctx, config.CollectionPersons, personID, &person); err != nil {
		return model.Person{}, model.Tenant{}, nil, nil, fmt.Errorf("%s: %w", config.ErrPersonNotFound, err)
	}

	var tenant model.Tenant
	if err := r.Store.FindByID(ctx, config.CollectionTenants, person.TenantID, &tenant); err != nil && !errors.Is(err, store.ErrNotFound) {
		return model.Person{}, model.Tenant{}, nil, nil, err
	}

	var groups []model.Group
	for _, groupID := range person.GroupIDs {
		var g model.Group
		err := r.Store.FindByID(ctx, config.CollectionGroups, groupID, &g)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return model.Person{}, model.Tenant{}, nil, nil, err
		}
		groups = append(groups, g)
	}

	docs, err := r.Store.Query(ctx, config.CollectionWishlist, store.Filter{config.FieldPersonID: personID})
	if err != nil {
		return model.Person{}, model.Tenant{}, nil, nil, err
	}
	var wishlist []model.WishlistItem
	for _, doc := range docs {
		var item model.WishlistItem
		if err := store.DecodeInto(doc, &item); err != nil {
			return model.Person{}, model.Tenant{}, nil, nil, err
		}
		wishlist = append(wishlist, item)
	}

	return person, tenant, groups, wishlist, nil
}

// toEvent maps a descriptor onto the external event shape.
func toEvent(d events.Descriptor) calendar.Event {
	return calendar.Event{
		Summary:         d.Title,
		Description:     d.Description,
		StartDate:       d.StartDate,
		EndDate:         d.EndDate,
		ReminderMinutes: d.ReminderMinutes,
		Private:         d.Correlation,
	}
}
