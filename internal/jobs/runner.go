package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	json "github.com/goccy/go-json"

	"github.com/tartampluch/go-hebsync/internal/config"
	"github.com/tartampluch/go-hebsync/internal/hebdate"
	"github.com/tartampluch/go-hebsync/internal/model"
	"github.com/tartampluch/go-hebsync/internal/reconcile"
	"github.com/tartampluch/go-hebsync/internal/store"
)

// Runner advances durable job records one invocation at a time. Each
// invocation stays within TimeBudget; unfinished work is persisted and a
// continuation message re-enqueues the same job id.
type Runner struct {
	Store      store.Store
	Reconciler *reconcile.Reconciler
	Queue      *Queue
	Clock      hebdate.Clock

	TimeBudget time.Duration
}

func (r *Runner) budget() time.Duration {
	if r.TimeBudget <= 0 {
		return config.JobTimeBudget
	}
	return r.TimeBudget
}

// EnqueueSync creates a sync job covering the given persons and publishes its
// first invocation. An empty person list resolves to every non-archived
// person of the tenant.
func (r *Runner) EnqueueSync(ctx context.Context, ownerID, tenantID string, personIDs []string) (string, error) {
	if len(personIDs) == 0 {
		docs, err := r.Store.Query(ctx, config.CollectionPersons, store.Filter{
			config.FieldTenantID: tenantID,
			config.FieldArchived: false,
		})
		if err != nil {
			return "", err
		}
		for _, doc := range docs {
			personIDs = append(personIDs, doc.ID)
		}
	}

	job := model.Job{
		ID:        uuid.NewString(),
		Kind:      config.JobKindSync,
		OwnerID:   ownerID,
		TenantID:  tenantID,
		Pending:   personIDs,
		CreatedAt: r.Clock.Now().UTC(),
		UpdatedAt: r.Clock.Now().UTC(),
	}
	if err := r.Store.Put(ctx, config.CollectionJobs, job.ID, job); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrJobPersist, err)
	}
	if err := r.Queue.publish(config.TopicSyncJobs, job.ID); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrQueuePublish, err)
	}
	return job.ID, nil
}

// EnqueueDeletion creates a deletion job for the tenant and publishes its
// first invocation.
func (r *Runner) EnqueueDeletion(ctx context.Context, ownerID, tenantID string) (string, error) {
	job := model.Job{
		ID:        uuid.NewString(),
		Kind:      config.JobKindDeletion,
		OwnerID:   ownerID,
		TenantID:  tenantID,
		CreatedAt: r.Clock.Now().UTC(),
		UpdatedAt: r.Clock.Now().UTC(),
	}
	if err := r.Store.Put(ctx, config.CollectionJobs, job.ID, job); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrJobPersist, err)
	}
	if err := r.Queue.publish(config.TopicDeletionJobs, job.ID); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrQueuePublish, err)
	}
	return job.ID, nil
}

// HandleSync processes one invocation of a sync job: resolve the calendar
// binding once, then reconcile pending persons chunk by chunk until the list
// empties or the budget runs out. Progress is persisted after every chunk, so
// a crash between chunks reprocesses at most one chunk; the upsert itself is
// idempotent either way.
func (r *Runner) HandleSync(msg *message.Message) error {
	ctx := msg.Context()

	job, err := r.loadJob(msg)
	if err != nil || job == nil {
		return err
	}

	log := slog.With(
		config.LogKeyComponent, config.CompJobs,
		config.LogKeyJob, job.ID,
		config.LogKeyKind, job.Kind,
	)
	log.Info(config.MsgJobStarted, config.LogKeyCount, len(job.Pending))

	calendarID, err := r.Reconciler.EnsureCalendar(ctx, job.OwnerID, job.TenantID)
	if err != nil {
		return err
	}

	deadline := r.Clock.Now().Add(r.budget())
	chunkSize := r.Reconciler.ChunkSize
	if chunkSize <= 0 {
		chunkSize = config.SyncChunkSize
	}

	for len(job.Pending) > 0 {
		if r.Clock.Now().After(deadline) {
			if err := r.persistJob(ctx, job); err != nil {
				return err
			}
			log.Info(config.MsgJobContinued, config.LogKeyCount, len(job.Pending))
			return r.Queue.publish(config.TopicSyncJobs, job.ID)
		}

		n := chunkSize
		if n > len(job.Pending) {
			n = len(job.Pending)
		}
		chunk := job.Pending[:n]

		result := r.Reconciler.SyncMany(ctx, job.OwnerID, calendarID, chunk)
		job.Pending = job.Pending[n:]
		job.Done += len(result.Successes)
		job.Failures = append(job.Failures, result.Failures...)

		if err := r.persistJob(ctx, job); err != nil {
			return err
		}
	}

	// With the pending list drained, sweep events whose person record is
	// gone; the per-person upsert never sees those. A failed sweep leaves
	// the orphans for the next sync instead of failing the finished job.
	removed, err := r.Reconciler.CleanupOrphans(ctx, job.OwnerID, job.TenantID)
	if err != nil {
		log.Warn(config.MsgOrphanSweepFail, config.LogKeyError, err)
	} else if removed > 0 {
		log.Info(config.MsgOrphanSweepDone, config.LogKeyCount, removed)
	}

	log.Info(config.MsgJobFinished,
		config.LogKeyCount, job.Done,
		config.LogKeyFailures, len(job.Failures),
	)
	return nil
}

// HandleDeletion processes one invocation of a deletion job, running batches
// until either the deletion completes or the budget runs out.
func (r *Runner) HandleDeletion(msg *message.Message) error {
	ctx := msg.Context()

	job, err := r.loadJob(msg)
	if err != nil || job == nil {
		return err
	}

	log := slog.With(
		config.LogKeyComponent, config.CompJobs,
		config.LogKeyJob, job.ID,
		config.LogKeyKind, job.Kind,
	)
	log.Info(config.MsgJobStarted, config.LogKeyTenant, job.TenantID)

	deadline := r.Clock.Now().Add(r.budget())
	for {
		deleted, remaining, err := r.Reconciler.DeleteBatch(ctx, job.OwnerID, job.TenantID, config.DeletionBatchSize)
		if err != nil {
			return err
		}

		job.Done += deleted
		if err := r.persistJob(ctx, job); err != nil {
			return err
		}

		if !remaining {
			log.Info(config.MsgJobFinished, config.LogKeyDeleted, job.Done)
			return nil
		}
		if r.Clock.Now().After(deadline) {
			log.Info(config.MsgJobContinued, config.LogKeyDeleted, job.Done)
			return r.Queue.publish(config.TopicDeletionJobs, job.ID)
		}
	}
}

// loadJob resolves the message payload to its durable record. A missing
// record means the job finished and its message was redelivered; that is not
// an error, just nothing left to do.
func (r *Runner) loadJob(msg *message.Message) (*model.Job, error) {
	var req jobRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		// Malformed payloads can never succeed; drop instead of redelivering.
		slog.Error(config.ErrJobDecode,
			config.LogKeyComponent, config.CompJobs,
			config.LogKeyError, err,
		)
		return nil, nil
	}

	var job model.Job
	err := r.Store.FindByID(msg.Context(), config.CollectionJobs, req.JobID, &job)
	if errors.Is(err, store.ErrNotFound) {
		slog.Warn(config.MsgJobFinished,
			config.LogKeyComponent, config.CompJobs,
			config.LogKeyJob, req.JobID,
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// persistJob writes the job's current progress.
func (r *Runner) persistJob(ctx context.Context, job *model.Job) error {
	job.UpdatedAt = r.Clock.Now().UTC()
	if err := r.Store.Put(ctx, config.CollectionJobs, job.ID, job); err != nil {
		return fmt.Errorf("%s: %w", config.ErrJobPersist, err)
	}
	return nil
}
