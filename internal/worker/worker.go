package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/chartwise/internal/metrics"
	"github.com/DukeRupert/chartwise/internal/repository"
	"github.com/google/uuid"
)

// ErrNoJob is returned by Store.Claim when nothing is due.
var ErrNoJob = errors.New("no job ready")

// Store is the job table as the worker sees it.
type Store interface {
	// Claim locks the next due job, marks it running and returns it.
	Claim(ctx context.Context) (repository.Job, error)
	Complete(ctx context.Context, id uuid.UUID) error
	// Fail records the error. The job is retried with backoff unless
	// permanent is set or its attempts are used up.
	Fail(ctx context.Context, id uuid.UUID, message string, permanent bool) error
	RecoverStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// =============================================================================
// Postgres store
// =============================================================================

type pgStore struct {
	db      *sql.DB
	queries *repository.Queries
}

// NewStore returns a Store over the jobs table. Claims use
// FOR UPDATE SKIP LOCKED so several processes can share the queue.
func NewStore(db *sql.DB, queries *repository.Queries) Store {
	return &pgStore{db: db, queries: queries}
}

func (s *pgStore) Claim(ctx context.Context) (repository.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return repository.Job{}, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)
	job, err := qtx.DequeueJob(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.Job{}, ErrNoJob
		}
		return repository.Job{}, fmt.Errorf("dequeue: %w", err)
	}
	if err := qtx.UpdateJobStarted(ctx, job.ID); err != nil {
		return repository.Job{}, fmt.Errorf("mark started: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return repository.Job{}, fmt.Errorf("commit claim: %w", err)
	}
	return job, nil
}

func (s *pgStore) Complete(ctx context.Context, id uuid.UUID) error {
	return s.queries.UpdateJobCompleted(ctx, id)
}

func (s *pgStore) Fail(ctx context.Context, id uuid.UUID, message string, permanent bool) error {
	return s.queries.UpdateJobFailed(ctx, repository.UpdateJobFailedParams{
		ID:           id,
		ErrorMessage: sql.NullString{String: message, Valid: true},
		Permanent:    permanent,
	})
}

func (s *pgStore) RecoverStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.queries.RecoverStaleJobs(ctx, olderThan.Seconds())
}

// =============================================================================
// Worker
// =============================================================================

// Worker delivers queued email. Each goroutine drains due jobs back to back
// and only sleeps for PollInterval once the queue is empty.
type Worker struct {
	store    Store
	handlers map[string]JobHandler
	config   Config
	logger   *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a Worker over the jobs table. Register handlers, then Start.
func New(db *sql.DB, queries *repository.Queries, config Config, logger *slog.Logger) (*Worker, error) {
	return NewWithStore(NewStore(db, queries), config, logger)
}

// NewWithStore creates a Worker over any Store.
func NewWithStore(store Store, config Config, logger *slog.Logger) (*Worker, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid worker config: %w", err)
	}

	return &Worker{
		store:    store,
		handlers: make(map[string]JobHandler),
		config:   config,
		logger:   logger.With("component", "worker"),
	}, nil
}

// Register adds a handler. It must be called before Start.
func (w *Worker) Register(handler JobHandler) {
	if _, exists := w.handlers[handler.Type()]; exists {
		w.logger.Warn("Replacing job handler", "job_type", handler.Type())
	}
	w.handlers[handler.Type()] = handler
}

// Start requeues jobs orphaned by a crash and launches the goroutines.
// They stop when ctx is canceled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	if n, err := w.store.RecoverStale(ctx, w.config.StaleJobThreshold); err != nil {
		w.logger.Error("Failed to recover stale jobs", "error", err)
	} else if n > 0 {
		w.logger.Warn("Requeued stale jobs", "count", n)
	}

	for i := range w.config.Concurrency {
		w.wg.Add(1)
		go w.run(ctx, w.logger.With("worker_id", i+1))
	}

	w.logger.Info("Worker started", "concurrency", w.config.Concurrency, "handlers", len(w.handlers))
}

// Stop cancels the goroutines and waits up to ShutdownTimeout for
// in-flight sends.
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timed out with jobs in flight")
	}
}

func (w *Worker) run(ctx context.Context, logger *slog.Logger) {
	defer w.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		for ctx.Err() == nil {
			err := w.processNext(ctx, logger)
			if errors.Is(err, ErrNoJob) {
				break
			}
			if err != nil {
				logger.Error("Job queue error", "error", err)
				break
			}
		}
		timer.Reset(w.config.PollInterval)
	}
}

// processNext claims and runs one job. It returns ErrNoJob when the queue
// is empty and an error only for queue failures; handler failures are
// recorded on the job.
func (w *Worker) processNext(ctx context.Context, logger *slog.Logger) error {
	job, err := w.store.Claim(ctx)
	if err != nil {
		return err
	}

	logger = logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts+1)
	if job.Attempts > 0 {
		metrics.JobRetried(job.JobType)
	}

	metrics.JobStarted(job.JobType, job.ScheduledAt)
	start := time.Now()
	jobErr := w.execute(ctx, job)

	// Bookkeeping must land even when shutdown canceled ctx mid-send.
	bookCtx := context.WithoutCancel(ctx)

	if jobErr != nil {
		permanent := IsPermanent(jobErr)
		outcome := metrics.JobOutcomeRetry
		if permanent || job.Attempts+1 >= job.MaxAttempts {
			outcome = metrics.JobOutcomeDead
		}
		metrics.JobFinished(job.JobType, outcome, time.Since(start))
		logger.Error("Job failed", "error", jobErr, "permanent", permanent)
		if err := w.store.Fail(bookCtx, job.ID, jobErr.Error(), permanent); err != nil {
			return fmt.Errorf("record failure of job %s: %w", job.ID, err)
		}
		return nil
	}

	metrics.JobFinished(job.JobType, metrics.JobOutcomeCompleted, time.Since(start))
	logger.Info("Job completed", "duration", time.Since(start))
	if err := w.store.Complete(bookCtx, job.ID); err != nil {
		return fmt.Errorf("record completion of job %s: %w", job.ID, err)
	}
	return nil
}

func (w *Worker) execute(ctx context.Context, job repository.Job) (err error) {
	handler, ok := w.handlers[job.JobType]
	if !ok {
		return NewPermanentError(fmt.Errorf("no handler registered for job type %q", job.JobType))
	}

	defer func() {
		if r := recover(); r != nil {
			err = NewPermanentError(fmt.Errorf("handler panicked: %v", r))
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	return handler.Handle(jobCtx, job.Payload)
}
