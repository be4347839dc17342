package reconcile

import (
	"context"
	"log/slog"

	"bondtape/pkg/contracts/domain"
)

// cancelKey is the exact-match key for a same-day trade/cancellation pair:
// instrument, date, execution time, price, volume and the sequence linkage
// (the cancel's back-reference must equal the trade's own sequence number).
// Unknown volumes compare equal to unknown volumes.
type cancelKey struct {
	cusip       string
	date        int64
	time        string
	price       float64
	volume      float64
	volumeKnown bool
	seq         string
}

// CancellationResolver removes trade/cancellation pairs from the ledger.
type CancellationResolver struct {
	logger *slog.Logger
}

// NewCancellationResolver creates a cancellation resolver.
func NewCancellationResolver(logger *slog.Logger) *CancellationResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CancellationResolver{logger: logger}
}

// Resolve removes every trade with a matching same-day cancel. A trade is
// removed once no matter how many duplicate cancels hit it. Cancels are
// consumed here and never appear downstream; a cancel with no matching trade
// is dropped silently, since its target may live in another data chunk.
func (r *CancellationResolver) Resolve(ctx context.Context, trades, cancels []domain.TradeEvent) []domain.TradeEvent {
	if len(cancels) == 0 {
		return trades
	}

	cancelled := make(map[cancelKey]struct{}, len(cancels))
	for _, c := range cancels {
		cancelled[cancelKey{
			cusip:       c.CUSIP,
			date:        c.Date.Unix(),
			time:        c.Time,
			price:       c.Price,
			volume:      c.Volume,
			volumeKnown: c.VolumeKnown,
			seq:         c.OrigSeq,
		}] = struct{}{}
	}

	out := make([]domain.TradeEvent, 0, len(trades))
	removed := 0
	for _, t := range trades {
		key := cancelKey{
			cusip:       t.CUSIP,
			date:        t.Date.Unix(),
			time:        t.Time,
			price:       t.Price,
			volume:      t.Volume,
			volumeKnown: t.VolumeKnown,
			seq:         t.Seq,
		}
		if _, ok := cancelled[key]; ok {
			removed++
			continue
		}
		out = append(out, t)
	}

	r.logger.DebugContext(ctx, "cancellations resolved",
		slog.Int("cancels", len(cancels)),
		slog.Int("trades_removed", removed))

	return out
}
