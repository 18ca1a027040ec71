package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/app"
	"github.com/joseph-ayodele/receipt-pipeline/internal/cache"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/ocr"
	"github.com/joseph-ayodele/receipt-pipeline/internal/pipeline"
)

// scan-receipt pushes one image through the full pipeline synchronously and
// prints the validated receipt as JSON.
func main() {
	fs := ff.NewFlagSet("scan-receipt")
	var (
		fallbackOnly = fs.BoolLong("fallback-only", "skip the language model and use the deterministic parser")
		caller       = fs.StringLong("caller", string(constants.CallerReceiptAnalysis), "caller type for the scan")
		level        = fs.StringLong("level", string(constants.LevelModerate), "validation level: strict, moderate, lenient")
		ocrDebugDir  = fs.StringLong("ocr-debug-dir", "", "also dump the raw OCR text into this directory")
		logLevel     = fs.StringLong("log-level", "warn", "log level: debug, info, warn, error")
	)

	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("RECEIPTD")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	args := fs.GetArgs()
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "usage: scan-receipt [flags] <image>\n\n%s\n", ffhelp.Flags(fs))
		os.Exit(2)
	}
	path := args[0]

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	ext := constants.NormalizeExt(filepath.Ext(path))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		fmt.Fprintf(os.Stderr, "unsupported file type: %s\n", path)
		os.Exit(1)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		os.Exit(1)
	}
	img := entity.NewReceiptImage(data, constants.MimeTypeForExt(ext))

	ctx := context.Background()
	cfg := common.LoadConfig()
	if *fallbackOnly && cfg.LLM.APIKey == "" {
		// The model is never called on this path; pick the provider that
		// constructs without credentials.
		cfg.LLM.Provider = "openai"
	}
	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = components.Close() }()

	result, err := components.Pipeline.Process(ctx, img, pipeline.Options{
		ForceFallback:   *fallbackOnly,
		Caller:          constants.ParseCallerType(*caller),
		ValidationLevel: constants.ParseValidationLevel(*level),
	})
	if *ocrDebugDir != "" {
		if v, ok := components.Cache.Get(cache.Key(cache.KindOCR, img.Hash)); ok {
			if res, ok := v.(entity.OCRResult); ok {
				if werr := ocr.WriteDebugArtifact(*ocrDebugDir, img.Hash, res.Text); werr != nil {
					logger.Warn("ocr.debug_artifact.failed", "error", werr)
				}
			}
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", common.ErrorCode(err), err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
