package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/app"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/export"
	"github.com/joseph-ayodele/receipt-pipeline/internal/ingest"
	"github.com/joseph-ayodele/receipt-pipeline/internal/orchestrator"
	"github.com/joseph-ayodele/receipt-pipeline/internal/store"
)

func main() {
	fs := ff.NewFlagSet("receiptd")
	var (
		watchDirs  = fs.StringLong("watch", "./inbox", "comma-separated directories to watch for receipt images")
		skipScan   = fs.BoolLong("no-initial-scan", "do not submit files already present in the watch directories")
		debounce   = fs.DurationLong("debounce", 500*time.Millisecond, "coalesce rapid file events")
		caller     = fs.StringLong("caller", string(constants.CallerReceiptAnalysis), "caller type for submitted jobs")
		level      = fs.StringLong("level", string(constants.LevelModerate), "validation level: strict, moderate, lenient")
		exportPath = fs.StringLong("export", "", "write an XLSX of all stored receipts to this path on shutdown")
		logLevel   = fs.StringLong("log-level", "info", "log level: debug, info, warn, error")
	)

	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("RECEIPTD")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	cfg := common.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup.build_failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = components.Close() }()

	receiptStore, err := store.NewBoltStore(cfg.Store.DBPath)
	if err != nil {
		logger.Error("startup.store_failed", "path", cfg.Store.DBPath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = receiptStore.Close() }()

	persist := func(job orchestrator.Job) {
		if job.Status != constants.JobStatusSucceeded || job.Result == nil {
			return
		}
		if err := receiptStore.Save(store.Record{Hash: job.Hash, Receipt: *job.Result}); err != nil {
			logger.Error("persist.failed", "job_id", job.ID, "hash", job.Hash, "error", err)
		}
	}

	orch := orchestrator.New(components.Pipeline, logger,
		orchestrator.WithWorkers(cfg.Pipeline.WorkerCount),
		orchestrator.WithQueueCapacity(cfg.Pipeline.QueueCapacity),
		orchestrator.WithBlockOnFull(cfg.Pipeline.BlockOnFull),
		orchestrator.WithMaxRetries(cfg.Pipeline.MaxRetries),
		orchestrator.WithResultHook(persist),
	)

	ingestor := ingest.NewIngestor(orch,
		constants.ParseCallerType(*caller),
		constants.ParseValidationLevel(*level),
		logger,
	)
	roots := splitDirs(*watchDirs)
	go func() {
		err := ingestor.WatchAndIngest(ctx, ingest.WatchConfig{
			Roots:       roots,
			InitialScan: !*skipScan,
			Debounce:    *debounce,
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("watcher.stopped", "error", err)
			stop()
		}
	}()
	logger.Info("receiptd.started",
		"watch", roots,
		"workers", cfg.Pipeline.WorkerCount,
		"queue", cfg.Pipeline.QueueCapacity,
		"db", cfg.Store.DBPath,
	)

	<-ctx.Done()
	logger.Info("receiptd.stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	orch.Shutdown(shutdownCtx)

	if *exportPath != "" {
		data, err := export.NewService(receiptStore, logger).ExportXLSX(nil, nil)
		if err != nil {
			logger.Error("export.failed", "error", err)
		} else if err := os.WriteFile(*exportPath, data, 0o644); err != nil {
			logger.Error("export.write_failed", "path", *exportPath, "error", err)
		} else {
			logger.Info("export.written", "path", *exportPath)
		}
	}
	logger.Info("receiptd.stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func splitDirs(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
