package reconcile

import (
	"context"
	"log/slog"

	"bondtape/internal/config"
	"bondtape/pkg/contracts/domain"
)

// Cleaner runs the reconciliation stages over one batch of raw feed rows and
// reports the batch counters.
type Cleaner struct {
	logger         *slog.Logger
	minVolume      float64
	passthroughMax int

	normalizer  *Normalizer
	cancels     *CancellationResolver
	corrections *CorrectionChainResolver
	reversals   *ReversalResolver
}

// NewCleaner creates a cleaner with the given cleaning parameters.
func NewCleaner(logger *slog.Logger, cfg config.CleaningConfig) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		logger:         logger,
		minVolume:      cfg.MinVolume,
		passthroughMax: cfg.PassthroughMax,
		normalizer:     NewNormalizer(logger),
		cancels:        NewCancellationResolver(logger),
		corrections:    NewCorrectionChainResolver(logger),
		reversals:      NewReversalResolver(logger),
	}
}

// Clean reconciles one batch. Near-empty batches, at or below the
// passthrough threshold, skip the volume screen and every matching stage and
// pass through as already clean; all three counters then report the fetched
// row count, which is how operators recognize the shortcut in the stats. The
// returned ledger can still be shorter than the counters when a passthrough
// row is undecodable, since only normalized events exist downstream.
func (c *Cleaner) Clean(ctx context.Context, batchID string, raw []domain.RawTradeEvent) ([]domain.ReconciledTrade, domain.CleaningStats) {
	stats := domain.CleaningStats{BatchID: batchID, Raw: len(raw)}

	if len(raw) <= c.passthroughMax {
		ledger := c.normalizer.Normalize(ctx, raw).All()
		stats.PostVolumeFilter = len(raw)
		stats.PostReconcile = len(raw)
		stats.Passthrough = true
		c.logger.InfoContext(ctx, "near-empty batch passed through",
			slog.String("batch", batchID),
			slog.Int("records", len(raw)))
		return ledger, stats
	}

	filtered := c.filterByVolume(raw)
	stats.PostVolumeFilter = len(filtered)

	parts := c.normalizer.Normalize(ctx, filtered)
	ledger := c.cancels.Resolve(ctx, parts.Trades, parts.Cancels)
	ledger = c.corrections.Resolve(ctx, ledger, parts.Corrections)
	ledger = c.reversals.Resolve(ctx, ledger)
	stats.PostReconcile = len(ledger)

	c.logger.InfoContext(ctx, "batch reconciled",
		slog.String("batch", batchID),
		slog.Int("raw", stats.Raw),
		slog.Int("post_volume_filter", stats.PostVolumeFilter),
		slog.Int("post_reconcile", stats.PostReconcile))

	return ledger, stats
}

// filterByVolume screens out reports below the minimum par volume before
// reconciliation. The screen reads the decoded volume, so capped sentinels
// pass and unparseable volumes fail it.
func (c *Cleaner) filterByVolume(raw []domain.RawTradeEvent) []domain.RawTradeEvent {
	out := make([]domain.RawTradeEvent, 0, len(raw))
	for _, r := range raw {
		v, ok := DecodeVolume(r.VolumeText)
		if !ok || v < c.minVolume {
			continue
		}
		out = append(out, r)
	}
	return out
}
