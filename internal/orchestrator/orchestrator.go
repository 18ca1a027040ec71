package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/pipeline"
)

// Processor is what workers run per job; satisfied by pipeline.Pipeline.
type Processor interface {
	Process(ctx context.Context, img entity.ReceiptImage, opts pipeline.Options) (entity.ValidatedReceipt, error)
}

// Orchestrator owns the bounded job queue, the worker pool, and the job
// table. One worker handles one job at a time; retries happen inside the
// worker, never through re-enqueueing.
type Orchestrator struct {
	proc   Processor
	logger *slog.Logger

	workers     int
	maxRetries  int
	blockOnFull bool
	jobTimeout  time.Duration
	onTerminal  func(Job)

	ch   chan *jobRecord
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
	jobs   map[uuid.UUID]*jobRecord
}

type Option func(*Orchestrator)

func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithQueueCapacity(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.ch = make(chan *jobRecord, n)
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithBlockOnFull makes Submit wait for queue room instead of failing fast.
func WithBlockOnFull(block bool) Option {
	return func(o *Orchestrator) { o.blockOnFull = block }
}

// WithResultHook registers a callback invoked with the terminal snapshot of
// every job a worker finishes. It runs on the worker goroutine; keep it
// cheap.
func WithResultHook(fn func(Job)) Option {
	return func(o *Orchestrator) { o.onTerminal = fn }
}

func WithJobTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.jobTimeout = d
		}
	}
}

func New(proc Processor, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		proc:       proc,
		logger:     logger,
		workers:    4,
		maxRetries: 2,
		jobTimeout: 3 * time.Minute,
		ch:         make(chan *jobRecord, 64),
		jobs:       make(map[uuid.UUID]*jobRecord),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.start()
	return o
}

func (o *Orchestrator) start() {
	o.once.Do(func() {
		for i := 0; i < o.workers; i++ {
			o.wg.Add(1)
			go func(workerID int) {
				defer o.wg.Done()
				o.logger.Info("orchestrator.worker.started", "worker_id", workerID)
				for rec := range o.ch {
					o.runJob(workerID, rec)
				}
				o.logger.Info("orchestrator.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Submit registers the image as a new job under the given caller type and
// validation level and enqueues it. With a full queue it either blocks until
// there is room (BlockOnFull) or fails fast with ErrQueueFull; the fail-fast
// path leaves no trace of the job.
func (o *Orchestrator) Submit(ctx context.Context, img entity.ReceiptImage, caller constants.CallerType, level constants.ValidationLevel) (uuid.UUID, error) {
	if len(img.Data) == 0 {
		return uuid.Nil, common.NewAppError("INVALID_INPUT", "empty image", common.ErrInvalidInput)
	}

	rec := newJobRecord(img, caller, level)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return uuid.Nil, common.NewAppError("QUEUE_FULL", "orchestrator is shutting down", common.ErrQueueFull)
	}
	o.jobs[rec.job.ID] = rec
	o.mu.Unlock()

	if o.blockOnFull {
		select {
		case o.ch <- rec:
		case <-ctx.Done():
			o.forget(rec.job.ID)
			return uuid.Nil, ctx.Err()
		}
	} else {
		select {
		case o.ch <- rec:
		default:
			o.forget(rec.job.ID)
			o.logger.Warn("orchestrator.submit.queue_full", "hash", img.Hash)
			return uuid.Nil, common.NewAppError("QUEUE_FULL", "job queue is at capacity", common.ErrQueueFull)
		}
	}

	o.logger.Info("orchestrator.submit.ok",
		"job_id", rec.job.ID,
		"hash", img.Hash,
		"size", img.Size,
		"caller", caller,
		"level", level,
	)
	return rec.job.ID, nil
}

// Status returns a snapshot of the job.
func (o *Orchestrator) Status(id uuid.UUID) (Job, error) {
	o.mu.Lock()
	rec, ok := o.jobs[id]
	o.mu.Unlock()
	if !ok {
		return Job{}, common.NewAppError("NOT_FOUND", "unknown job id", common.ErrNotFound)
	}
	return rec.snapshot(), nil
}

// Jobs returns snapshots of every tracked job.
func (o *Orchestrator) Jobs() []Job {
	o.mu.Lock()
	recs := make([]*jobRecord, 0, len(o.jobs))
	for _, rec := range o.jobs {
		recs = append(recs, rec)
	}
	o.mu.Unlock()

	out := make([]Job, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.snapshot())
	}
	return out
}

// Cancel stops a job. Queued jobs flip to CANCELLED immediately; running jobs
// get their context cancelled and reach CANCELLED at the next stage boundary.
// Cancelling a terminal job is a no-op.
func (o *Orchestrator) Cancel(id uuid.UUID) error {
	o.mu.Lock()
	rec, ok := o.jobs[id]
	o.mu.Unlock()
	if !ok {
		return common.NewAppError("NOT_FOUND", "unknown job id", common.ErrNotFound)
	}

	rec.cancel()
	if rec.status() == constants.JobStatusQueued {
		rec.fail(constants.JobStatusCancelled, "CANCELLED", "cancelled before start")
	}
	o.logger.Info("orchestrator.cancel", "job_id", id)
	return nil
}

// Shutdown stops accepting work, drains the queue, and waits for in-flight
// jobs up to the context deadline.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.ch)
	o.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); o.wg.Wait() }()

	select {
	case <-ctx.Done():
		o.logger.Warn("orchestrator.shutdown.interrupted")
	case <-done:
		o.logger.Info("orchestrator.shutdown.complete")
	}
}

func (o *Orchestrator) forget(id uuid.UUID) {
	o.mu.Lock()
	delete(o.jobs, id)
	o.mu.Unlock()
}

// runJob drives one job to a terminal state: transient faults retry up to
// maxRetries, an extraction fault that survives its retries gets one last
// pass with the fallback parser, everything else fails immediately.
func (o *Orchestrator) runJob(workerID int, rec *jobRecord) {
	if !rec.transition(constants.JobStatusRunning) {
		// Cancelled while queued.
		return
	}
	defer func() {
		if o.onTerminal != nil {
			o.onTerminal(rec.snapshot())
		}
	}()

	jobCtx, cancel := context.WithTimeout(rec.ctx, o.jobTimeout)
	defer cancel()

	opts := pipeline.Options{
		OnProgress:      rec.setProgress,
		Caller:          rec.job.Caller,
		ValidationLevel: rec.job.Level,
	}
	attempt := 0
	for {
		result, err := o.proc.Process(jobCtx, rec.img, opts)
		if err == nil {
			rec.succeed(result)
			o.logger.Info("orchestrator.job.succeeded", "worker_id", workerID, "job_id", rec.job.ID, "attempts", attempt+1)
			return
		}

		if errors.Is(err, common.ErrJobCancelled) || rec.ctx.Err() != nil {
			rec.fail(constants.JobStatusCancelled, "CANCELLED", err.Error())
			o.logger.Info("orchestrator.job.cancelled", "worker_id", workerID, "job_id", rec.job.ID)
			return
		}

		if common.IsTransient(err) && attempt < o.maxRetries {
			attempt++
			o.logger.Warn("orchestrator.job.retrying",
				"worker_id", workerID,
				"job_id", rec.job.ID,
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		if errors.Is(err, common.ErrExtractionTimeout) && !opts.ForceFallback {
			opts.ForceFallback = true
			o.logger.Warn("orchestrator.job.fallback", "worker_id", workerID, "job_id", rec.job.ID, "error", err)
			continue
		}

		rec.fail(constants.JobStatusFailed, common.ErrorCode(err), err.Error())
		o.logger.Error("orchestrator.job.failed",
			"worker_id", workerID,
			"job_id", rec.job.ID,
			"kind", common.ErrorCode(err),
			"error", err,
		)
		return
	}
}
