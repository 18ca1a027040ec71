package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// ErrorInfo is the stable failure shape surfaced on a terminal job.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Job is the caller-visible snapshot of one submitted receipt.
type Job struct {
	ID        uuid.UUID                 `json:"id"`
	Hash      string                    `json:"hash"` // content hash of the source image
	Caller    constants.CallerType      `json:"caller"`
	Level     constants.ValidationLevel `json:"level"`
	Status    constants.JobStatus       `json:"status"`
	Progress  int                       `json:"progress"` // 0..100
	Result    *entity.ValidatedReceipt  `json:"result,omitempty"`
	Error     *ErrorInfo                `json:"error,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// jobRecord is the mutable tracked state behind a Job. All field access goes
// through the mutex; workers and Status/Cancel callers race otherwise.
type jobRecord struct {
	mu  sync.Mutex
	job Job
	img entity.ReceiptImage

	ctx    context.Context
	cancel context.CancelFunc
}

func newJobRecord(img entity.ReceiptImage, caller constants.CallerType, level constants.ValidationLevel) *jobRecord {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	return &jobRecord{
		job: Job{
			ID:        uuid.New(),
			Hash:      img.Hash,
			Caller:    caller,
			Level:     level,
			Status:    constants.JobStatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
		img:    img,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (r *jobRecord) snapshot() Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job
}

func (r *jobRecord) status() constants.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job.Status
}

func (r *jobRecord) setProgress(pct int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.job.Status.IsTerminal() || pct <= r.job.Progress {
		return
	}
	r.job.Progress = pct
	r.job.UpdatedAt = time.Now()
}

// transition moves the job to a new status. Terminal states are sticky.
func (r *jobRecord) transition(status constants.JobStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.job.Status.IsTerminal() {
		return false
	}
	r.job.Status = status
	r.job.UpdatedAt = time.Now()
	return true
}

func (r *jobRecord) succeed(result entity.ValidatedReceipt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.job.Status.IsTerminal() {
		return
	}
	r.job.Status = constants.JobStatusSucceeded
	r.job.Progress = 100
	r.job.Result = &result
	r.job.UpdatedAt = time.Now()
}

func (r *jobRecord) fail(status constants.JobStatus, kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.job.Status.IsTerminal() {
		return
	}
	r.job.Status = status
	r.job.Error = &ErrorInfo{Kind: kind, Message: message}
	r.job.UpdatedAt = time.Now()
}
