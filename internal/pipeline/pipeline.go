package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/cache"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/fallback"
	"github.com/joseph-ayodele/receipt-pipeline/internal/guard"
	"github.com/joseph-ayodele/receipt-pipeline/internal/validate"
)

// Normalizer prepares an image for recognition.
type Normalizer interface {
	Normalize(data []byte) (NormalizedImage, error)
}

// NormalizedImage is what a Normalizer hands to recognition.
type NormalizedImage struct {
	Data         []byte
	QualityScore float64
}

// Recognizer turns a normalized image into text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (entity.OCRResult, error)
}

// Extractor turns OCR text into a structured candidate.
type Extractor interface {
	Extract(ctx context.Context, ocrText string) (entity.ExtractedReceipt, error)
}

type Config struct {
	ValidationLevel     constants.ValidationLevel
	Caller              constants.CallerType
	ArithmeticTolerance float64 // default 0.01
	MemoryBudgetBytes   int64   // default 256 MiB
}

// Options tune a single Process call.
type Options struct {
	// ForceFallback skips the structured extractor entirely. Set by the
	// orchestrator after retries on a transient extraction fault ran out.
	ForceFallback bool

	// ValidationLevel and Caller override the pipeline defaults for this call.
	// Both travel with the job from submission.
	ValidationLevel constants.ValidationLevel
	Caller          constants.CallerType

	// OnProgress, when set, receives coarse completion percentages as stages
	// finish.
	OnProgress func(pct int)
}

// Pipeline runs one receipt image through normalize, recognize, extract,
// validate, and guard. It is stateless across calls and safe for concurrent
// use; all cross-call reuse goes through the cache.
type Pipeline struct {
	normalizer Normalizer
	recognizer Recognizer
	extractor  Extractor
	fb         *fallback.Parser
	guard      *guard.Guard
	cache      *cache.Service
	cfg        Config
	logger     *slog.Logger
}

func New(normalizer Normalizer, recognizer Recognizer, extractor Extractor, fb *fallback.Parser, g *guard.Guard, cacheSvc *cache.Service, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ArithmeticTolerance <= 0 {
		cfg.ArithmeticTolerance = 0.01
	}
	if cfg.MemoryBudgetBytes <= 0 {
		cfg.MemoryBudgetBytes = 256 << 20
	}
	if cfg.Caller == "" {
		cfg.Caller = constants.CallerReceiptAnalysis
	}
	if cfg.ValidationLevel == "" {
		cfg.ValidationLevel = constants.LevelModerate
	}
	return &Pipeline{
		normalizer: normalizer,
		recognizer: recognizer,
		extractor:  extractor,
		fb:         fb,
		guard:      g,
		cache:      cacheSvc,
		cfg:        cfg,
		logger:     logger,
	}
}

// Process runs the full stage chain for one image. Cancellation is honored at
// every stage boundary; a cancelled job never reports a partial success.
func (p *Pipeline) Process(ctx context.Context, img entity.ReceiptImage, opts Options) (entity.ValidatedReceipt, error) {
	start := time.Now()
	progress := opts.OnProgress
	if progress == nil {
		progress = func(int) {}
	}
	level := opts.ValidationLevel
	if level == "" {
		level = p.cfg.ValidationLevel
	}
	caller := opts.Caller
	if caller == "" {
		caller = p.cfg.Caller
	}

	ocrRes, err := p.recognizeStage(ctx, img, progress)
	if err != nil {
		return entity.ValidatedReceipt{}, err
	}
	progress(50)

	if err := checkpoint(ctx); err != nil {
		return entity.ValidatedReceipt{}, err
	}

	candidate, err := p.extractStage(ctx, ocrRes.Text, opts.ForceFallback)
	if err != nil {
		return entity.ValidatedReceipt{}, err
	}
	progress(75)

	if err := checkpoint(ctx); err != nil {
		return entity.ValidatedReceipt{}, err
	}

	// A failed validation is not a job failure: the report travels with the
	// result and the caller decides what to do with a low-confidence receipt.
	report := validate.Validate(candidate, time.Now(), level, p.cfg.ArithmeticTolerance)
	if !report.IsValid {
		p.logger.Warn("pipeline.validate.rejected",
			"hash", img.Hash,
			"errors", len(report.Errors),
			"confidence", report.Confidence,
		)
	}
	progress(85)

	if err := checkpoint(ctx); err != nil {
		return entity.ValidatedReceipt{}, err
	}

	// The guard judges the extractor's claims as made, before any arithmetic
	// correction is applied. Only strict jobs promote a rejection to failure;
	// otherwise the verdict stays on the result as an annotation.
	verdict := p.guard.Evaluate(renderForGuard(candidate), ocrRes.Text, caller, level)
	if verdict.Recommendation == guard.RecommendationReject {
		if level == constants.LevelStrict {
			p.logger.Warn("pipeline.guard.rejected",
				"hash", img.Hash,
				"score", verdict.Score,
				"types", verdict.DetectedTypes,
			)
			return entity.ValidatedReceipt{}, common.NewAppError("HALLUCINATION_DETECTED",
				fmt.Sprintf("guard score %.2f", verdict.Score), common.ErrHallucination)
		}
		p.logger.Warn("pipeline.guard.flagged",
			"hash", img.Hash,
			"score", verdict.Score,
			"types", verdict.DetectedTypes,
		)
	}
	if report.CorrectedTotal != nil {
		candidate.Total = report.CorrectedTotal
	}
	progress(100)

	p.logger.Info("pipeline.done",
		"hash", img.Hash,
		"source", candidate.Source,
		"items", len(candidate.Items),
		"valid", report.IsValid,
		"ocr_confidence", ocrRes.Confidence,
		"guard_score", verdict.Score,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return entity.ValidatedReceipt{Receipt: candidate, Report: report, Verdict: verdict}, nil
}

// recognizeStage returns the OCR text for the image, from cache when the same
// content was recognized before. Normalization only happens on a miss; the
// original buffer is released as soon as the normalized copy exists.
func (p *Pipeline) recognizeStage(ctx context.Context, img entity.ReceiptImage, progress func(int)) (entity.OCRResult, error) {
	key := cache.Key(cache.KindOCR, img.Hash)
	if v, ok := p.cache.Get(key); ok {
		if res, ok := v.(entity.OCRResult); ok {
			p.logger.Debug("pipeline.ocr.cache_hit", "hash", img.Hash)
			return res, nil
		}
	}

	if err := checkpoint(ctx); err != nil {
		return entity.OCRResult{}, err
	}

	budget := newMemoryBudget(p.cfg.MemoryBudgetBytes)
	if err := budget.reserve(int64(len(img.Data))); err != nil {
		return entity.OCRResult{}, err
	}

	norm, err := p.normalizer.Normalize(img.Data)
	if err != nil {
		return entity.OCRResult{}, common.WrapError(err, "normalize image")
	}
	if err := budget.reserve(int64(len(norm.Data))); err != nil {
		return entity.OCRResult{}, err
	}
	budget.release(int64(len(img.Data)))
	img.Data = nil
	progress(25)

	if err := checkpoint(ctx); err != nil {
		return entity.OCRResult{}, err
	}

	res, err := p.recognizer.Recognize(ctx, norm.Data)
	if err != nil {
		return entity.OCRResult{}, err
	}

	p.cache.Put(cache.KindOCR, key, res)
	return res, nil
}

// extractStage returns the structured candidate for the OCR text. Parse
// failures are deterministic and swap in the fallback parser immediately;
// transient faults propagate so the orchestrator can retry.
func (p *Pipeline) extractStage(ctx context.Context, ocrText string, forceFallback bool) (entity.ExtractedReceipt, error) {
	key := cache.Key(cache.KindExtraction, ocrText)
	if v, ok := p.cache.Get(key); ok {
		if r, ok := v.(entity.ExtractedReceipt); ok {
			p.logger.Debug("pipeline.extract.cache_hit")
			return r, nil
		}
	}

	var (
		candidate entity.ExtractedReceipt
		err       error
	)
	switch {
	case forceFallback:
		candidate = p.fb.Parse(ocrText)
	default:
		candidate, err = p.extractor.Extract(ctx, ocrText)
		switch {
		case err == nil:
		case common.IsTransient(err) || errors.Is(err, common.ErrJobCancelled):
			return entity.ExtractedReceipt{}, err
		default:
			p.logger.Warn("pipeline.extract.falling_back", "error", err)
			candidate = p.fb.Parse(ocrText)
		}
	}

	p.cache.Put(cache.KindExtraction, key, candidate)
	return candidate, nil
}

func checkpoint(ctx context.Context) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return common.WrapError(common.ErrJobTimeout, "stage boundary")
	default:
		return common.WrapError(common.ErrJobCancelled, "stage boundary")
	}
}

// renderForGuard flattens the candidate back into receipt-shaped text so the
// guard can compare its claims against the OCR source.
func renderForGuard(r entity.ExtractedReceipt) string {
	var b strings.Builder
	if r.Store != "" {
		b.WriteString(r.Store)
		b.WriteByte('\n')
	}
	if r.Date != "" {
		b.WriteString(r.Date)
		b.WriteByte('\n')
	}
	for _, it := range r.Items {
		fmt.Fprintf(&b, "%s %.2f\n", it.Name, it.TotalPrice)
	}
	if r.Total != nil {
		fmt.Fprintf(&b, "SUMA %.2f\n", *r.Total)
	}
	return b.String()
}
