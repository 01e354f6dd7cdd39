package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tartampluch/go-hebsync/internal/calendar"
	"github.com/tartampluch/go-hebsync/internal/config"
	"github.com/tartampluch/go-hebsync/internal/model"
	"github.com/tartampluch/go-hebsync/internal/store"
)

// DeleteBatch advances a pending account deletion by one batch: it removes
// the external events of up to batchSize synced persons, deletes those person
// records, and reports whether more remain. When no synced persons are left,
// or the acting credential turns out revoked mid-flight, it erases all owned
// data and finishes the deletion. Remote deletions tolerate already-gone
// events, so a crashed batch can simply run again.
func (r *Reconciler) DeleteBatch(ctx context.Context, ownerID, tenantID string, batchSize int) (int, bool, error) {
	if batchSize <= 0 {
		batchSize = config.DeletionBatchSize
	}

	log := slog.With(
		config.LogKeyComponent, config.CompDeletion,
		config.LogKeyTenant, tenantID,
	)

	var tenant model.Tenant
	err := r.Store.FindByID(ctx, config.CollectionTenants, tenantID, &tenant)
	if errors.Is(err, store.ErrNotFound) {
		// Already erased by an earlier batch.
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if tenant.DeletionStatus != config.DeletionStatusPending {
		log.Warn(config.MsgDeletionSkipped, config.LogKeyStatus, tenant.DeletionStatus)
		return 0, false, nil
	}

	// A revoked credential makes remote cleanup impossible; the owner already
	// severed access, so skip straight to erasing owned data. Temporary
	// credential trouble propagates for retry instead.
	_, err = r.Credentials.ValidAccessToken(ctx, ownerID)
	if errors.Is(err, calendar.ErrCredentialRevoked) || errors.Is(err, calendar.ErrAuth) {
		log.Warn(config.MsgJobAuthFailOpen, config.LogKeyError, err)
		return 0, false, r.eraseOwnedData(ctx, ownerID, tenantID)
	}
	if err != nil {
		return 0, false, err
	}

	if tenant.CalendarID == "" {
		return 0, false, r.eraseOwnedData(ctx, ownerID, tenantID)
	}

	batch, err := r.syncedPersons(ctx, tenantID, batchSize)
	if err != nil {
		return 0, false, err
	}
	if len(batch) == 0 {
		if err := r.Client.DeleteCalendar(ctx, ownerID, tenant.CalendarID); err != nil &&
			!errors.Is(err, calendar.ErrNotFound) && !authFailure(err) {
			return 0, false, err
		}
		return 0, false, r.eraseOwnedData(ctx, ownerID, tenantID)
	}

	deleted := 0
	for _, person := range batch {
		for _, ev := range person.CalendarEvents {
			err := r.Client.DeleteEvent(ctx, ownerID, tenant.CalendarID, ev.ID)
			if errors.Is(err, calendar.ErrNotFound) {
				continue
			}
			if authFailure(err) {
				log.Warn(config.MsgJobAuthFailOpen, config.LogKeyError, err)
				return deleted, false, r.eraseOwnedData(ctx, ownerID, tenantID)
			}
			if err != nil {
				return deleted, true, err
			}
		}
		if err := r.Store.Delete(ctx, config.CollectionPersons, person.ID); err != nil {
			return deleted, true, err
		}
		deleted++
	}

	log.Info(config.MsgDeletionBatch, config.LogKeyCount, deleted)
	return deleted, true, nil
}

// syncedPersons collects up to limit persons of the tenant that still carry
// external events. Persons without synced events are swept by the final
// erase, not batch by batch.
func (r *Reconciler) syncedPersons(ctx context.Context, tenantID string, limit int) ([]model.Person, error) {
	docs, err := r.Store.Query(ctx, config.CollectionPersons, store.Filter{config.FieldTenantID: tenantID})
	if err != nil {
		return nil, err
	}

	var batch []model.Person
	for _, doc := range docs {
		var p model.Person
		if err := store.DecodeInto(doc, &p); err != nil {
			return nil, err
		}
		if len(p.CalendarEvents) == 0 {
			continue
		}
		batch = append(batch, p)
		if len(batch) == limit {
			break
		}
	}
	return batch, nil
}

// eraseOwnedData drops every record the tenant owns, the tenant itself, and
// the stored credential. This is the terminal step of a deletion; after it
// the account is gone regardless of what remote cleanup achieved.
func (r *Reconciler) eraseOwnedData(ctx context.Context, ownerID, tenantID string) error {
	filter := store.Filter{config.FieldTenantID: tenantID}
	for _, collection := range []string{
		config.CollectionPersons,
		config.CollectionGroups,
		config.CollectionWishlist,
	} {
		if _, err := r.Store.DeleteByQuery(ctx, collection, filter); err != nil {
			return err
		}
	}
	if err := r.Store.Delete(ctx, config.CollectionTenants, tenantID); err != nil {
		return err
	}
	if err := r.Store.Delete(ctx, config.CollectionCredentials, ownerID); err != nil {
		return err
	}
	slog.Info(config.MsgDeletionErased,
		config.LogKeyComponent, config.CompDeletion,
		config.LogKeyTenant, tenantID,
	)
	return nil
}

func authFailure(err error) bool {
	return errors.Is(err, calendar.ErrAuth) || errors.Is(err, calendar.ErrCredentialRevoked)
}
