// Package scheduler runs the hourly midnight sweep: every tenant whose local
// clock just rolled past midnight gets its stale person records refreshed.
// The timezone-neutral hourly cadence is what makes per-tenant midnight work
// without per-timezone schedules.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/tartampluch/go-hebsync/internal/config"
	"github.com/tartampluch/go-hebsync/internal/hebdate"
	"github.com/tartampluch/go-hebsync/internal/model"
	"github.com/tartampluch/go-hebsync/internal/recalc"
	"github.com/tartampluch/go-hebsync/internal/store"
)

// Scheduler sweeps tenants on the hour and refreshes records whose cached
// next occurrence already elapsed in tenant-local time.
type Scheduler struct {
	Store  store.Store
	Recalc *recalc.Recalculator
	Clock  hebdate.Clock

	cron *cron.Cron
}

// New wires the scheduler; Start registers the cron entry and begins ticking.
func New(s store.Store, r *recalc.Recalculator, clk hebdate.Clock) *Scheduler {
	return &Scheduler{Store: s, Recalc: r, Clock: clk}
}

// Start registers the hourly schedule. The context bounds each tick's work;
// Stop must still be called for shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(config.CronSpecHourly, func() {
		s.Tick(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	slog.Info(config.MsgWorkerStart,
		config.LogKeyComponent, config.CompScheduler,
	)
	return nil
}

// Stop halts the cron loop, waiting for a running tick to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	slog.Info(config.MsgWorkerStop,
		config.LogKeyComponent, config.CompScheduler,
	)
}

// Tick sweeps every tenant once. A tenant failing never blocks the others;
// the next hour retries whatever this pass missed.
func (s *Scheduler) Tick(ctx context.Context) {
	slog.Debug(config.MsgSchedulerTick, config.LogKeyComponent, config.CompScheduler)

	docs, err := s.Store.Query(ctx, config.CollectionTenants, nil)
	if err != nil {
		slog.Error(config.ErrCronSchedule,
			config.LogKeyComponent, config.CompScheduler,
			config.LogKeyError, err,
		)
		return
	}

	for _, doc := range docs {
		var tenant model.Tenant
		if err := store.DecodeInto(doc, &tenant); err != nil {
			slog.Warn(config.ErrRecordDecode,
				config.LogKeyComponent, config.CompScheduler,
				config.LogKeyTenant, doc.ID,
				config.LogKeyError, err,
			)
			continue
		}
		if err := s.processTenant(ctx, tenant); err != nil {
			slog.Warn(config.MsgTenantSkipped,
				config.LogKeyComponent, config.CompScheduler,
				config.LogKeyTenant, tenant.ID,
				config.LogKeyError, err,
			)
		}
	}
}

// processTenant refreshes one tenant if its local day just started and was
// not processed yet. The tenant is stamped with the processed local date even
// when nothing was stale, so the remaining 23 hourly passes skip it cheaply.
func (s *Scheduler) processTenant(ctx context.Context, tenant model.Tenant) error {
	timezone := tenant.EffectiveTimezone()

	midnight, err := hebdate.IsLocalMidnight(s.Clock, timezone)
	if err != nil {
		return err
	}
	if !midnight {
		return nil
	}

	localDate, err := hebdate.LocalDateString(s.Clock, timezone)
	if err != nil {
		return err
	}
	if tenant.LastRecalcProcessDate == localDate {
		return nil
	}

	log := slog.With(
		config.LogKeyComponent, config.CompScheduler,
		config.LogKeyTenant, tenant.ID,
		config.LogKeyTimezone, timezone,
		config.LogKeyLocalDate, localDate,
	)
	log.Info(config.MsgTenantMidnight)

	stale, err := s.staleRecords(ctx, tenant.ID, localDate)
	if err != nil {
		return err
	}

	refreshed := 0
	for _, person := range stale {
		_, err := s.Recalc.Execute(ctx, person.ID, person.BirthDateGregorian, person.AfterSunset, tenant.ID)
		if err != nil {
			log.Warn(config.ErrRecalcFailed,
				config.LogKeyPerson, person.ID,
				config.LogKeyError, err,
			)
			continue
		}
		refreshed++
	}
	if refreshed > 0 {
		log.Info(config.MsgStaleTouched, config.LogKeyCount, refreshed)
	}

	err = s.Store.Update(ctx, config.CollectionTenants, tenant.ID, map[string]any{
		"last_recalc_process_date": localDate,
	})
	if err != nil {
		return err
	}
	log.Info(config.MsgTenantStamped)
	return nil
}

// staleRecords returns the tenant's non-archived persons whose cached next
// occurrence fell behind the local date. The date comparison rides on the
// lexicographic order of YYYY-MM-DD strings. Records with derived data but no
// upcoming occurrence are refreshed too, in case a later year projects one.
func (s *Scheduler) staleRecords(ctx context.Context, tenantID, localDate string) ([]model.Person, error) {
	docs, err := s.Store.Query(ctx, config.CollectionPersons, store.Filter{
		config.FieldTenantID: tenantID,
		config.FieldArchived: false,
	})
	if err != nil {
		return nil, err
	}

	var stale []model.Person
	for _, doc := range docs {
		var p model.Person
		if err := store.DecodeInto(doc, &p); err != nil {
			return nil, err
		}
		if !p.HasDerivedData() {
			continue
		}
		if p.NextUpcomingHebrew == "" || p.NextUpcomingHebrew < localDate {
			stale = append(stale, p)
		}
	}
	return stale, nil
}
