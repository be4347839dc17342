package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bondtape/internal/config"
	"bondtape/internal/feed"
	"bondtape/internal/infrastructure"
	"bondtape/internal/operations"
	transporthttp "bondtape/internal/transport/http"
)

// The server runs one cleaning pass at startup and then serves the results
// until stopped.
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
	defer metrics.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	store := transporthttp.NewResultStore()
	result, err := runner.Run(ctx, table)
	if err != nil {
		logger.Error("Run failed", "error", err)
		os.Exit(1)
	}
	store.Set(result)

	srv := transporthttp.NewServer(logger, cfg.Server, store, metrics.Handler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error("Shutdown failed", "error", err)
			os.Exit(1)
		}
		<-errCh
	}
}
