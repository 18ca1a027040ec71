package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// Submitter accepts a receipt image for asynchronous processing; satisfied by
// the orchestrator.
type Submitter interface {
	Submit(ctx context.Context, img entity.ReceiptImage, caller constants.CallerType, level constants.ValidationLevel) (uuid.UUID, error)
}

// FileResult is the per-file outcome of an ingest pass.
type FileResult struct {
	Path         string    `json:"path"`
	JobID        uuid.UUID `json:"job_id,omitempty"`
	Hash         string    `json:"hash,omitempty"`
	Deduplicated bool      `json:"deduplicated,omitempty"`
	Err          string    `json:"error,omitempty"`
}

// Ingestor reads receipt files off disk and submits them as jobs, skipping
// content it has already submitted in this process lifetime. Every submission
// carries the ingestor's caller type and validation level.
type Ingestor struct {
	submitter Submitter
	caller    constants.CallerType
	level     constants.ValidationLevel
	logger    *slog.Logger

	mu   sync.Mutex
	seen map[string]uuid.UUID // content hash -> job that owns it
}

func NewIngestor(submitter Submitter, caller constants.CallerType, level constants.ValidationLevel, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	if caller == "" {
		caller = constants.CallerReceiptAnalysis
	}
	if level == "" {
		level = constants.LevelModerate
	}
	return &Ingestor{
		submitter: submitter,
		caller:    caller,
		level:     level,
		logger:    logger,
		seen:      make(map[string]uuid.UUID),
	}
}

// IngestPath reads one file and submits it. A file whose content hash was
// already submitted is reported as deduplicated with the original job ID.
func (u *Ingestor) IngestPath(ctx context.Context, path string) FileResult {
	ext := constants.NormalizeExt(filepath.Ext(path))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return FileResult{Path: path, Err: "unsupported extension: " + ext}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		u.logger.Warn("ingest.read.failed", "path", path, "error", err)
		return FileResult{Path: path, Err: err.Error()}
	}

	img := entity.NewReceiptImage(data, constants.MimeTypeForExt(ext))

	u.mu.Lock()
	if jobID, dup := u.seen[img.Hash]; dup {
		u.mu.Unlock()
		u.logger.Info("ingest.deduplicated", "path", path, "hash", img.Hash, "job_id", jobID)
		return FileResult{Path: path, JobID: jobID, Hash: img.Hash, Deduplicated: true}
	}
	u.mu.Unlock()

	jobID, err := u.submitter.Submit(ctx, img, u.caller, u.level)
	if err != nil {
		u.logger.Warn("ingest.submit.failed", "path", path, "error", err)
		return FileResult{Path: path, Hash: img.Hash, Err: err.Error()}
	}

	u.mu.Lock()
	u.seen[img.Hash] = jobID
	u.mu.Unlock()

	u.logger.Info("ingest.submitted", "path", path, "hash", img.Hash, "job_id", jobID, "size", img.Size)
	return FileResult{Path: path, JobID: jobID, Hash: img.Hash}
}
