package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"scribber/internal/model"
	"scribber/internal/repository"
)

// ErrDrop marks a job that must be abandoned silently: no retry, no
// project mutation, no notification. Returned (wrapped) by the processor
// when the project disappeared mid-job.
var ErrDrop = errors.New("drop job")

// errHardTimeout marks a job that blew through the hard wall-clock limit
// and was forcibly terminated.
var errHardTimeout = errors.New("job exceeded hard timeout")

// Processor executes one job end-to-end. FailProject persists the
// terminal failed state; the worker calls it when the retry budget is
// spent or the hard timeout fires, the two cases the processor itself
// cannot see.
type Processor interface {
	Process(ctx context.Context, msg model.JobMessage) error
	FailProject(ctx context.Context, msg model.JobMessage, cause error) error
}

// WorkerConfig tunes the worker pool.
type WorkerConfig struct {
	// Counts is the number of worker slots per operation queue.
	Counts map[model.OperationType]int
	// MaxRetries bounds redeliveries of a transiently failing job; the
	// job runs at most MaxRetries+1 times.
	MaxRetries int
	// RetryDelay is the pause before a retry attempt is requeued.
	RetryDelay time.Duration
	// HardTimeout forcibly terminates a job; SoftTimeout cancels the
	// in-flight provider call first so the processor can clean up.
	HardTimeout time.Duration
	SoftTimeout time.Duration
	// DequeueTimeout is the blocking-pop window per poll.
	DequeueTimeout time.Duration
}

func (c *WorkerConfig) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.HardTimeout <= 0 {
		c.HardTimeout = time.Hour
	}
	if c.SoftTimeout <= 0 || c.SoftTimeout >= c.HardTimeout {
		c.SoftTimeout = c.HardTimeout * 9 / 10
	}
	if c.DequeueTimeout <= 0 {
		c.DequeueTimeout = 5 * time.Second
	}
}

// Worker runs the consumer pool. Each slot handles one job at a time for
// the job's full duration; there is no fan-out within a job.
type Worker struct {
	broker *Broker
	proc   Processor
	jobs   repository.JobRepository
	log    zerolog.Logger
	cfg    WorkerConfig
}

// NewWorker creates a worker pool.
func NewWorker(broker *Broker, proc Processor, jobs repository.JobRepository, cfg WorkerConfig, log zerolog.Logger) *Worker {
	cfg.applyDefaults()
	return &Worker{broker: broker, proc: proc, jobs: jobs, cfg: cfg, log: log}
}

// Run starts all worker slots and blocks until ctx is canceled and every
// slot drained its current job.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for op, n := range w.cfg.Counts {
		for i := 0; i < n; i++ {
			wg.Add(1)
			consumer := fmt.Sprintf("slot-%d", i)
			go func(op model.OperationType, consumer string) {
				defer wg.Done()
				w.consume(ctx, op, consumer)
			}(op, consumer)
		}
	}
	wg.Wait()
}

func (w *Worker) consume(ctx context.Context, op model.OperationType, consumer string) {
	log := w.log.With().Str("queue", string(op)).Str("consumer", consumer).Logger()

	if moved, err := w.broker.Recover(ctx, op, consumer); err != nil {
		log.Error().Err(err).Msg("failed to recover in-flight jobs")
	} else if moved > 0 {
		log.Warn().Int("requeued", moved).Msg("recovered in-flight jobs from previous run")
	}

	for {
		if ctx.Err() != nil {
			return
		}

		d, err := w.broker.Dequeue(ctx, op, consumer, w.cfg.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("dequeue failed")
			w.sleep(ctx, time.Second)
			continue
		}
		if d == nil {
			continue
		}

		w.handle(ctx, d, log)
	}
}

// handle runs one delivered job and settles it: ack on success or
// terminal failure, requeue on transient failure with retries left.
func (w *Worker) handle(ctx context.Context, d *Delivery, log zerolog.Logger) {
	msg := d.Msg
	attempt := msg.Attempt + 1
	log = log.With().
		Int64("job_id", msg.JobID).
		Int64("project_id", msg.ProjectID).
		Int("attempt", attempt).
		Logger()

	if err := w.jobs.SetStatus(ctx, msg.JobID, model.JobRunning, attempt, nil); err != nil {
		log.Error().Err(err).Msg("failed to mark job running")
	}

	hardCtx, cancelHard := context.WithTimeout(ctx, w.cfg.HardTimeout)
	defer cancelHard()
	softCtx, cancelSoft := context.WithTimeout(hardCtx, w.cfg.SoftTimeout)
	defer cancelSoft()

	done := make(chan error, 1)
	go func() {
		done <- w.proc.Process(softCtx, msg)
	}()

	var err error
	select {
	case err = <-done:
	case <-hardCtx.Done():
		err = fmt.Errorf("%w after %s", errHardTimeout, w.cfg.HardTimeout)
	}

	switch {
	case err == nil:
		w.setJobStatus(ctx, msg.JobID, model.JobSucceeded, attempt, nil, log)
		w.ack(ctx, d, log)
		log.Info().Msg("job succeeded")

	case errors.Is(err, ErrDrop):
		// Project vanished mid-job: no retry, nothing to notify.
		w.setJobStatus(ctx, msg.JobID, model.JobAbandoned, attempt, errMsg(err), log)
		w.ack(ctx, d, log)
		log.Warn().Err(err).Msg("job dropped")

	case errors.Is(err, errHardTimeout):
		if ferr := w.proc.FailProject(ctx, msg, err); ferr != nil {
			log.Error().Err(ferr).Msg("failed to persist timeout failure")
		}
		w.setJobStatus(ctx, msg.JobID, model.JobFailed, attempt, errMsg(err), log)
		w.ack(ctx, d, log)
		log.Error().Err(err).Msg("job killed by hard timeout")

	case isTransient(err) && msg.Attempt < w.cfg.MaxRetries:
		w.setJobStatus(ctx, msg.JobID, model.JobQueued, attempt, errMsg(err), log)
		w.sleep(ctx, w.cfg.RetryDelay)
		next := msg
		next.Attempt++
		if rqErr := w.broker.Requeue(ctx, d, next); rqErr != nil {
			// Leave the message in the processing list; Recover picks
			// it up on restart.
			log.Error().Err(rqErr).Msg("requeue failed")
			return
		}
		log.Warn().Err(err).Msg("transient failure, job requeued")

	case isTransient(err):
		// Retries exhausted; only now does the failure reach the
		// project record.
		if ferr := w.proc.FailProject(ctx, msg, err); ferr != nil {
			log.Error().Err(ferr).Msg("failed to persist terminal failure")
		}
		w.setJobStatus(ctx, msg.JobID, model.JobAbandoned, attempt, errMsg(err), log)
		w.ack(ctx, d, log)
		log.Error().Err(err).Int("attempts", attempt).Msg("job abandoned after retries")

	default:
		// Terminal failure; the processor already persisted the failed
		// state where one was warranted.
		w.setJobStatus(ctx, msg.JobID, model.JobFailed, attempt, errMsg(err), log)
		w.ack(ctx, d, log)
		log.Error().Err(err).Msg("job failed")
	}
}

func (w *Worker) ack(ctx context.Context, d *Delivery, log zerolog.Logger) {
	if err := w.broker.Ack(ctx, d); err != nil {
		log.Error().Err(err).Msg("ack failed")
	}
}

func (w *Worker) setJobStatus(ctx context.Context, jobID int64, status model.JobStatus, attempts int, lastError *string, log zerolog.Logger) {
	if err := w.jobs.SetStatus(ctx, jobID, status, attempts, lastError); err != nil {
		log.Error().Err(err).Str("status", string(status)).Msg("failed to update job ledger")
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// isTransient reports whether the processor's failure is retryable.
func isTransient(err error) bool {
	var te interface{ Temporary() bool }
	if errors.As(err, &te) {
		return te.Temporary()
	}
	return false
}

func errMsg(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}
