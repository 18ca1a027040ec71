package ocr

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

type Config struct {
	QuickTimeout    time.Duration // default 15s
	StandardTimeout time.Duration // default 45s

	// Escalation thresholds: a quick pass below either triggers one retry
	// with the standard strategy.
	MinConfidence float32 // default 0.6
	MinTextLen    int     // default 20

	Language string // language hint passed to the engine, default "pol+eng"
}

// Adapter wraps an OCR engine with the quick-first escalation policy and
// per-strategy timeouts. At most two engine calls per job.
type Adapter struct {
	engine Engine
	cfg    Config
	logger *slog.Logger
}

func NewAdapter(engine Engine, cfg Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QuickTimeout <= 0 {
		cfg.QuickTimeout = 15 * time.Second
	}
	if cfg.StandardTimeout <= 0 {
		cfg.StandardTimeout = 45 * time.Second
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.6
	}
	if cfg.MinTextLen <= 0 {
		cfg.MinTextLen = 20
	}
	if cfg.Language == "" {
		cfg.Language = "pol+eng"
	}
	return &Adapter{engine: engine, cfg: cfg, logger: logger}
}

// Recognize runs the quick strategy and escalates once to standard when the
// quick result is too weak. The returned confidence blends the engine's
// per-token mean with a receipt-artifact heuristic.
func (a *Adapter) Recognize(ctx context.Context, image []byte) (entity.OCRResult, error) {
	quick, err := a.recognizeOnce(ctx, image, entity.OCRQuick, a.cfg.QuickTimeout)
	if err == nil && quick.Confidence >= a.cfg.MinConfidence && len(quick.Text) >= a.cfg.MinTextLen {
		return quick, nil
	}

	if err != nil {
		a.logger.Warn("ocr.quick.failed", "error", err)
	} else {
		a.logger.Info("ocr.quick.weak",
			"confidence", quick.Confidence,
			"text_len", len(quick.Text),
		)
	}

	std, stdErr := a.recognizeOnce(ctx, image, entity.OCRStandard, a.cfg.StandardTimeout)
	if stdErr != nil {
		if err == nil {
			// The weak quick result is still better than nothing.
			a.logger.Warn("ocr.standard.failed_keeping_quick", "error", stdErr)
			return quick, nil
		}
		return entity.OCRResult{}, stdErr
	}
	return std, nil
}

func (a *Adapter) recognizeOnce(ctx context.Context, image []byte, strategy entity.OCRStrategy, timeout time.Duration) (entity.OCRResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := a.engine.Recognize(callCtx, image, a.cfg.Language, strategy)
	elapsed := time.Since(start)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
			return entity.OCRResult{}, common.WrapError(common.ErrJobCancelled, "ocr cancelled")
		case errors.Is(err, context.DeadlineExceeded):
			a.logger.Warn("ocr.recognize.timeout", "strategy", string(strategy), "elapsed_ms", elapsed.Milliseconds())
			return entity.OCRResult{}, common.NewAppError("OCR_TIMEOUT", string(strategy)+" recognition deadline exceeded", common.ErrOCRTimeout)
		default:
			return entity.OCRResult{}, common.NewAppError("OCR_ENGINE_ERROR", err.Error(), common.ErrOCREngineFailure)
		}
	}

	engineConf := MeanConfidence(res.Tokens)
	heurConf := heuristicConfidence(res.Text)
	var conf float32
	if engineConf > 0 {
		conf = 0.7*engineConf + 0.3*heurConf
	} else {
		conf = heurConf
	}
	if conf > 1.0 {
		conf = 1.0
	}

	a.logger.Debug("ocr.recognize.ok",
		"strategy", string(strategy),
		"text_len", len(res.Text),
		"tokens", len(res.Tokens),
		"engine_conf", engineConf,
		"confidence", conf,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return entity.OCRResult{Text: res.Text, Confidence: conf, Engine: strategy}, nil
}
