// Package app wires configuration into a ready pipeline. Both binaries share
// this assembly.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/cache"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/fallback"
	"github.com/joseph-ayodele/receipt-pipeline/internal/guard"
	"github.com/joseph-ayodele/receipt-pipeline/internal/imageproc"
	"github.com/joseph-ayodele/receipt-pipeline/internal/llm"
	"github.com/joseph-ayodele/receipt-pipeline/internal/ocr"
	"github.com/joseph-ayodele/receipt-pipeline/internal/pipeline"
)

// Components is the assembled processing stack.
type Components struct {
	Pipeline *pipeline.Pipeline
	Cache    *cache.Service
	Close    func() error
}

// Build assembles the pipeline from configuration. The returned Close
// releases the language-model client when one was created.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cacheSvc := cache.NewService(cache.Config{
		Capacity:      cfg.Cache.Capacity,
		OCRTTL:        cfg.Cache.OCRTTL,
		ExtractionTTL: cfg.Cache.ExtractionTTL,
		VerdictTTL:    cfg.Cache.VerdictTTL,
	}, logger)

	completer, closeFn, err := buildCompleter(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}

	extractor := llm.NewExtractor(completer, llm.Config{
		Timeout:   cfg.LLM.Timeout,
		MaxTokens: cfg.LLM.MaxTokens,
	}, logger)

	engine := ocr.NewTesseractEngine(ocr.TesseractConfig{
		Binary:      cfg.OCR.Tesseract,
		TessdataDir: cfg.OCR.TessdataDir,
	}, logger)
	adapter := ocr.NewAdapter(engine, ocr.Config{
		QuickTimeout:    cfg.OCR.QuickTimeout,
		StandardTimeout: cfg.OCR.StdTimeout,
		Language:        cfg.OCR.TesseractLang,
	}, logger)

	normalizer := imageproc.NewNormalizer(imageproc.Config{}, logger)

	pipe := pipeline.New(
		pipeline.ImageNormalizer{N: normalizer},
		pipeline.OCRRecognizer{A: adapter},
		extractor,
		fallback.NewParser(logger),
		guard.NewGuard(cacheSvc, logger),
		cacheSvc,
		pipeline.Config{
			ValidationLevel:     constants.LevelModerate,
			Caller:              constants.CallerReceiptAnalysis,
			ArithmeticTolerance: cfg.Pipeline.Tolerance,
			MemoryBudgetBytes:   int64(cfg.Pipeline.MemoryBudgetMB) << 20,
		},
		logger,
	)

	return &Components{Pipeline: pipe, Cache: cacheSvc, Close: closeFn}, nil
}

func buildCompleter(ctx context.Context, cfg common.LLMConfig) (llm.Completer, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Provider {
	case "gemini":
		c, err := llm.NewGeminiCompleter(ctx, cfg.APIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case "openai":
		c := llm.NewOpenAICompleter(llm.OpenAIConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		}, nil)
		return c, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown LLM provider %q (want gemini or openai)", cfg.Provider)
	}
}
