// Package operations drives a cleaning run end to end: it chunks the
// instrument universe, fetches each chunk from the feed, pipes it through
// reconciliation and aggregation on a worker pool, and collects the results.
package operations

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bondtape/internal/aggregate"
	"bondtape/internal/config"
	"bondtape/internal/errors"
	"bondtape/internal/feed"
	"bondtape/internal/infrastructure"
	"bondtape/internal/reconcile"
	"bondtape/pkg/contracts/domain"
)

// BatchFailure records one batch that could not be processed. Failures are
// not fatal to the run; the remaining batches still complete.
type BatchFailure struct {
	BatchID string   `json:"batch_id"`
	CUSIPs  []string `json:"cusips"`
	Error   string   `json:"error"`
}

// RunResult is everything a completed run produced.
type RunResult struct {
	JobID     string                  `json:"job_id"`
	FeedType  domain.FeedType         `json:"feed_type"`
	StartedAt time.Time               `json:"started_at"`
	Duration  time.Duration           `json:"duration"`
	Ledger    []domain.ReconciledTrade `json:"-"`
	Summaries []domain.SummaryRecord  `json:"-"`
	Stats     []domain.CleaningStats  `json:"stats"`
	Failures  []BatchFailure          `json:"failures,omitempty"`
	Batches   int                     `json:"batches"`
}

// batchOutput is one worker's finished batch, kept in chunk order so the
// combined ledger is deterministic regardless of worker scheduling.
type batchOutput struct {
	ledger    []domain.ReconciledTrade
	summaries []domain.SummaryRecord
	stats     domain.CleaningStats
}

// Runner owns the batch loop. One Runner handles one run at a time.
type Runner struct {
	logger     *slog.Logger
	cfg        *config.Config
	source     feed.Source
	cleaner    *reconcile.Cleaner
	aggregator *aggregate.Aggregator
	metrics    *infrastructure.Metrics
}

// NewRunner wires a runner from its collaborators. The source is typically a
// *feed.Fetcher so retries and pacing apply to every batch.
func NewRunner(
	logger *slog.Logger,
	cfg *config.Config,
	source feed.Source,
	metrics *infrastructure.Metrics,
) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	aggregator, err := aggregate.NewAggregator(logger, cfg.Granularity())
	if err != nil {
		return nil, err
	}
	return &Runner{
		logger:     logger,
		cfg:        cfg,
		source:     source,
		cleaner:    reconcile.NewCleaner(logger, cfg.Cleaning),
		aggregator: aggregator,
		metrics:    metrics,
	}, nil
}

// Run processes the whole reference universe for the configured feed type.
// Batches run concurrently across the worker pool; each batch is fully
// pipelined before its memory is released. Feed failures are recorded per
// batch and skipped; integrity violations abort the run.
func (r *Runner) Run(ctx context.Context, table *feed.ReferenceTable) (*RunResult, error) {
	feedType := r.cfg.FeedType()
	boundary, err := r.cfg.SegmentBoundary()
	if err != nil {
		return nil, err
	}

	cusips := table.CUSIPs(feedType)
	chunks := feed.Chunk(cusips, r.cfg.Feed.ChunkSize)

	result := &RunResult{
		JobID:     uuid.NewString(),
		FeedType:  feedType,
		StartedAt: time.Now(),
		Batches:   len(chunks),
	}
	ctx = infrastructure.WithTraceID(ctx, result.JobID)

	r.logger.InfoContext(ctx, "run started",
		slog.String("job_id", result.JobID),
		slog.String("feed_type", string(feedType)),
		slog.Int("instruments", len(cusips)),
		slog.Int("batches", len(chunks)),
		slog.Int("workers", r.cfg.Runner.Workers))

	outputs := make([]*batchOutput, len(chunks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Runner.Workers)

	for i, chunk := range chunks {
		g.Go(func() error {
			out, err := r.processBatch(gctx, feedType, boundary, chunk)
			if err != nil {
				if errors.IsFatal(err) {
					return err
				}
				r.metrics.RecordBatchFailure(gctx)
				mu.Lock()
				result.Failures = append(result.Failures, BatchFailure{
					BatchID: out.stats.BatchID,
					CUSIPs:  chunk,
					Error:   err.Error(),
				})
				mu.Unlock()
				return nil
			}
			outputs[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, out := range outputs {
		if out == nil {
			continue
		}
		result.Ledger = append(result.Ledger, out.ledger...)
		result.Summaries = append(result.Summaries, out.summaries...)
		result.Stats = append(result.Stats, out.stats)
	}
	sort.Slice(result.Summaries, func(i, j int) bool {
		a, b := result.Summaries[i], result.Summaries[j]
		if a.CUSIP != b.CUSIP {
			return a.CUSIP < b.CUSIP
		}
		return a.BucketStart.Before(b.BucketStart)
	})
	result.Duration = time.Since(result.StartedAt)

	r.logger.InfoContext(ctx, "run finished",
		slog.String("job_id", result.JobID),
		slog.Int("ledger_size", len(result.Ledger)),
		slog.Int("summaries", len(result.Summaries)),
		slog.Int("failed_batches", len(result.Failures)),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// processBatch runs one chunk through fetch, reconciliation and aggregation.
// The returned batchOutput always carries the batch id so failures can be
// attributed.
func (r *Runner) processBatch(
	ctx context.Context,
	feedType domain.FeedType,
	boundary time.Time,
	cusips []string,
) (*batchOutput, error) {
	batchID := uuid.NewString()
	out := &batchOutput{stats: domain.CleaningStats{BatchID: batchID}}
	ctx = infrastructure.WithTraceID(ctx, batchID)

	raw, err := r.fetchBatch(ctx, feedType, boundary, cusips)
	if err != nil {
		return out, err
	}

	ledger, stats := r.cleaner.Clean(ctx, batchID, raw)
	out.stats = stats
	out.ledger = ledger
	out.summaries = r.aggregator.Aggregate(ctx, ledger)

	r.metrics.RecordBatch(ctx, stats)
	r.logger.InfoContext(ctx, "batch processed",
		slog.String("batch_id", batchID),
		slog.Int("cusips", len(cusips)),
		slog.Int("raw", stats.Raw),
		slog.Int("post_volume_filter", stats.PostVolumeFilter),
		slog.Int("post_reconcile", stats.PostReconcile),
		slog.Bool("passthrough", stats.Passthrough))

	return out, nil
}

// fetchBatch retrieves a chunk's raw events. A 144A run reads both feed
// segments, verifies that each owns only its side of the boundary, and
// splices them; the standard run reads the standard segment alone.
func (r *Runner) fetchBatch(
	ctx context.Context,
	feedType domain.FeedType,
	boundary time.Time,
	cusips []string,
) ([]domain.RawTradeEvent, error) {
	if feedType != domain.FeedTypeRule144A {
		return r.source.Fetch(ctx, domain.FeedTypeStandard, cusips)
	}

	standard, err := r.source.Fetch(ctx, domain.FeedTypeStandard, cusips)
	if err != nil {
		return nil, err
	}
	rule144a, err := r.source.Fetch(ctx, domain.FeedTypeRule144A, cusips)
	if err != nil {
		return nil, err
	}
	if err := feed.VerifySegments(standard, rule144a, boundary); err != nil {
		return nil, err
	}
	return feed.SpliceSegments(standard, rule144a), nil
}
