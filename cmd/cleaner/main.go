package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bondtape/internal/config"
	"bondtape/internal/exporter"
	"bondtape/internal/feed"
	"bondtape/internal/infrastructure"
	"bondtape/internal/operations"
)

func main() {
	configFile := flag.String("config", "", "optional YAML config file overlaying the environment")
	feedDir := flag.String("feed-dir", "data/feed", "directory holding the per-segment feed dumps")
	referenceFile := flag.String("reference", "data/reference.json", "instrument reference table")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	metrics, err := infrastructure.InitializeMetrics(logger)
	if err != nil {
		logger.Error("Failed to initialize metrics", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer metrics.Shutdown(context.Background())

	rows, err := feed.LoadInstruments(*referenceFile)
	if err != nil {
		logger.Error("Failed to load reference table", "error", err)
		os.Exit(1)
	}
	table := feed.NewReferenceTable(rows)

	fetcher := feed.NewFetcher(logger, feed.NewFileSource(*feedDir), cfg.Feed)

	runner, err := operations.NewRunner(logger, cfg, fetcher, metrics)
	if err != nil {
		logger.Error("Failed to build runner", "error", err)
		os.Exit(1)
	}

	result, err := runner.Run(ctx, table)
	if err != nil {
		logger.Error("Run failed", "error", err)
		os.Exit(1)
	}

	exp := exporter.NewExporter(logger, cfg.Export)
	if err := exp.Export(ctx, result); err != nil {
		logger.Error("Export failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Cleaning run complete",
		slog.String("job_id", result.JobID),
		slog.Int("ledger_size", len(result.Ledger)),
		slog.Int("summaries", len(result.Summaries)),
		slog.Int("failed_batches", len(result.Failures)),
		slog.Any("files", exp.Paths(result.FeedType)))
}
