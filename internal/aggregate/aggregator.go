// Package aggregate buckets the reconciled trade ledger by instrument and
// time window and computes the per-bucket price, volume and liquidity-proxy
// statistics.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"bondtape/internal/errors"
	"bondtape/pkg/contracts/domain"
)

// Aggregator computes periodic summaries from a reconciled ledger.
type Aggregator struct {
	logger      *slog.Logger
	granularity domain.Granularity
}

// NewAggregator creates an aggregator for the given granularity. An
// unsupported granularity is a configuration error and rejects the run.
func NewAggregator(logger *slog.Logger, granularity domain.Granularity) (*Aggregator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !granularity.Valid() {
		return nil, errors.NewValidationError(
			fmt.Sprintf("granularity must be %q or %q, got %q",
				domain.GranularityDaily, domain.GranularityHourly, granularity))
	}
	return &Aggregator{logger: logger, granularity: granularity}, nil
}

type bucketKey struct {
	cusip string
	start int64
}

// Aggregate computes one SummaryRecord per (instrument, bucket). Records
// with unknown volume still count toward the equal-weighted price and the
// trade count but carry zero weight everywhere volume matters. Output is
// sorted by instrument, then bucket start.
func (a *Aggregator) Aggregate(ctx context.Context, ledger []domain.ReconciledTrade) []domain.SummaryRecord {
	buckets := make(map[bucketKey][]domain.ReconciledTrade)
	starts := make(map[bucketKey]time.Time)

	for _, e := range ledger {
		if e.CUSIP == "" {
			continue
		}
		start := a.granularity.Floor(e.ExecutionDateTime())
		k := bucketKey{cusip: e.CUSIP, start: start.Unix()}
		buckets[k] = append(buckets[k], e)
		starts[k] = start
	}

	out := make([]domain.SummaryRecord, 0, len(buckets))
	for k, records := range buckets {
		out = append(out, a.summarize(k.cusip, starts[k], records))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CUSIP != out[j].CUSIP {
			return out[i].CUSIP < out[j].CUSIP
		}
		return out[i].BucketStart.Before(out[j].BucketStart)
	})

	a.logger.DebugContext(ctx, "ledger aggregated",
		slog.String("granularity", string(a.granularity)),
		slog.Int("trades", len(ledger)),
		slog.Int("buckets", len(out)))

	return out
}

func (a *Aggregator) summarize(cusip string, start time.Time, records []domain.ReconciledTrade) domain.SummaryRecord {
	rec := domain.SummaryRecord{
		CUSIP:       cusip,
		BucketStart: start,
		Granularity: a.granularity,
		NumTrades:   len(records),
	}

	var priceSum float64
	for _, e := range records {
		priceSum += e.Price
		if !e.VolumeKnown {
			continue
		}
		rec.Quantity += e.Volume
		// Per-record notional: par volume times clean price per 100,
		// rounded to the nearest whole unit before summing.
		rec.DollarVolume += math.Round(e.Volume * e.Price / 100)
	}
	rec.PriceEW = round4(priceSum / float64(len(records)))

	rec.PriceVW, rec.PriceVWReliable = volumeWeightedPrice(records)

	var sells, buys []domain.ReconciledTrade
	for _, e := range records {
		switch e.ReportSide {
		case "S":
			sells = append(sells, e)
		case "B":
			buys = append(buys, e)
		}
	}
	rec.SellCount = len(sells)
	rec.BuyCount = len(buys)
	if len(sells) > 0 {
		rec.PriceBid, _ = volumeWeightedPrice(sells)
	}
	if len(buys) > 0 {
		rec.PriceAsk, _ = volumeWeightedPrice(buys)
	}

	return rec
}

// volumeWeightedPrice computes sum(price * volume/total) over the records
// with known volume, rounded to 4dp. When the total known volume is zero no
// weight is defined: the price is zero and the second return is false so the
// bucket can be flagged unreliable.
func volumeWeightedPrice(records []domain.ReconciledTrade) (float64, bool) {
	var total float64
	for _, e := range records {
		if e.VolumeKnown {
			total += e.Volume
		}
	}
	if total <= 0 {
		return 0, false
	}

	var price float64
	for _, e := range records {
		if !e.VolumeKnown {
			continue
		}
		price += e.Price * (e.Volume / total)
	}
	return round4(price), true
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
