// Package worker runs jobs stored in the jobs table. Producers enqueue with
// the Enqueue helpers; a pool of goroutines claims due jobs with SKIP
// LOCKED and retries failures with backoff.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/tenantly/internal/metrics"
	"github.com/DukeRupert/tenantly/internal/repository"
)

// errQueueEmpty ends a drain pass.
var errQueueEmpty = errors.New("no due jobs")

// Worker owns the goroutine pool. Register handlers, then Start; Stop
// waits for in-flight jobs up to Config.ShutdownTimeout.
type Worker struct {
	store    repository.Store
	handlers map[string]JobHandler
	cfg      Config
	logger   *slog.Logger

	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once
}

func New(store repository.Store, cfg Config, logger *slog.Logger) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Worker{
		store:    store,
		handlers: make(map[string]JobHandler),
		cfg:      cfg,
		logger:   logger.With("component", "worker"),
		quit:     make(chan struct{}),
	}, nil
}

// Register binds h to its job type. A later registration for the same
// type replaces the earlier one.
func (w *Worker) Register(h JobHandler) {
	if _, dup := w.handlers[h.Type()]; dup {
		w.logger.Warn("replacing job handler", "job_type", h.Type())
	}
	w.handlers[h.Type()] = h
}

// Start resets jobs orphaned by a previous process and launches the pool.
func (w *Worker) Start(ctx context.Context) {
	n, err := w.store.RecoverStaleJobs(ctx, w.cfg.StaleJobThreshold.Seconds())
	switch {
	case err != nil:
		w.logger.Error("recover stale jobs", "error", err)
	case n > 0:
		w.logger.Warn("recovered stale jobs", "count", n, "threshold", w.cfg.StaleJobThreshold)
	}

	for id := 1; id <= w.cfg.Concurrency; id++ {
		w.wg.Add(1)
		go w.loop(ctx, w.logger.With("worker_id", id))
	}
	w.logger.Info("worker started", "concurrency", w.cfg.Concurrency, "handlers", len(w.handlers))
}

// Stop is safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker stopped")
	case <-time.After(w.cfg.ShutdownTimeout):
		w.logger.Warn("worker shutdown timed out with jobs still running")
	}
}

func (w *Worker) stopping(ctx context.Context) bool {
	select {
	case <-w.quit:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (w *Worker) loop(ctx context.Context, logger *slog.Logger) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx, logger)
		}
	}
}

// drain runs due jobs back to back until the queue is empty, a claim
// fails, or the worker is stopping.
func (w *Worker) drain(ctx context.Context, logger *slog.Logger) int {
	ran := 0
	for !w.stopping(ctx) {
		err := w.runOne(ctx, logger)
		if errors.Is(err, errQueueEmpty) {
			break
		}
		var claimErr *claimError
		if errors.As(err, &claimErr) {
			logger.Error("claim job", "error", claimErr.err)
			break
		}
		ran++
	}
	return ran
}

type claimError struct{ err error }

func (e *claimError) Error() string { return "claim job: " + e.err.Error() }

// runOne claims the next due job and records its outcome. It returns
// errQueueEmpty when nothing is due, a *claimError when the claim itself
// failed, and the handler's error otherwise.
func (w *Worker) runOne(ctx context.Context, logger *slog.Logger) error {
	var job repository.Job
	err := w.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		if job, err = q.DequeueJob(ctx); err != nil {
			return err
		}
		return q.UpdateJobStarted(ctx, job.ID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return errQueueEmpty
	}
	if err != nil {
		return &claimError{err: err}
	}

	logger = logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts+1)
	if job.Attempts > 0 {
		metrics.JobRetried(job.JobType)
	}
	metrics.JobStarted(job.JobType)
	start := time.Now()

	jobErr := w.execute(ctx, job)
	if jobErr == nil {
		metrics.JobCompleted(job.JobType, time.Since(start))
		logger.Info("job completed", "duration", time.Since(start))
		if err := w.store.UpdateJobCompleted(ctx, job.ID); err != nil {
			logger.Error("mark job completed", "error", err)
		}
		return nil
	}

	permanent := IsPermanent(jobErr)
	metrics.JobFailed(job.JobType, permanent)
	logger.Error("job failed", "error", jobErr, "permanent", permanent)

	// Exhausted and permanent jobs stay failed; the query reschedules the rest.
	err = w.store.UpdateJobFailed(ctx, repository.UpdateJobFailedParams{
		ID:           job.ID,
		Permanent:    permanent,
		ErrorMessage: sql.NullString{String: jobErr.Error(), Valid: true},
	})
	if err != nil {
		logger.Error("mark job failed", "error", err)
	}
	return jobErr
}

func (w *Worker) execute(ctx context.Context, job repository.Job) error {
	h, ok := w.handlers[job.JobType]
	if !ok {
		return Permanentf("no handler registered for job type %q", job.JobType)
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()
	return h.Handle(ctx, job.Payload)
}
