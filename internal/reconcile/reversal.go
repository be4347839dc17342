package reconcile

import (
	"context"
	"log/slog"
	"sort"

	"bondtape/pkg/contracts/domain"
)

// reversalGroup is the attribute-equality key used to pair reversals with
// the reports they remove. Reversals carry no back-reference, so matching is
// on instrument, date, volume, price, report side and counterparty type.
// Execution time is deliberately excluded: a reversal need not share the
// originating report's timestamp.
type reversalGroup struct {
	cusip       string
	date        int64
	volume      float64
	volumeKnown bool
	price       float64
	reportSide  string
	contraParty string
}

func reversalGroupOf(e domain.TradeEvent) reversalGroup {
	return reversalGroup{
		cusip:       e.CUSIP,
		date:        e.Date.Unix(),
		volume:      e.Volume,
		volumeKnown: e.VolumeKnown,
		price:       e.Price,
		reportSide:  e.ReportSide,
		contraParty: e.ContraParty,
	}
}

// ReversalResolver removes reversal/duplicate pairs by positional matching.
type ReversalResolver struct {
	logger *slog.Logger
}

// NewReversalResolver creates a reversal resolver.
func NewReversalResolver(logger *slog.Logger) *ReversalResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReversalResolver{logger: logger}
}

// Resolve drops delayed-dissemination and delayed-reversal rows outright,
// then pairs each reversal with one normal record by rank within its match
// group: members are ordered by execution time with the original arrival
// order breaking ties, and the reversal at position k removes the normal
// record at position k. Several identical-looking trades at one price and
// volume are thus cancelled one-for-one, never over- or under-matched.
// Unmatched reversals are discarded. Surviving records get their report side
// coalesced: own value first, else the legacy explicit side field.
func (r *ReversalResolver) Resolve(ctx context.Context, ledger []domain.TradeEvent) []domain.TradeEvent {
	// Rank reversals per group by (time, arrival order).
	type ranked struct {
		idx  int
		time string
	}
	reversals := make(map[reversalGroup][]ranked)
	var normals []int
	droppedDelayed := 0

	for i, e := range ledger {
		switch e.AsOf {
		case domain.AsOfDelayed, domain.AsOfDelayedReversal:
			droppedDelayed++
		case domain.AsOfReversal:
			g := reversalGroupOf(e)
			reversals[g] = append(reversals[g], ranked{idx: i, time: e.Time})
		default:
			normals = append(normals, i)
		}
	}

	for g := range reversals {
		rs := reversals[g]
		sort.SliceStable(rs, func(a, b int) bool { return rs[a].time < rs[b].time })
		reversals[g] = rs
	}

	// Rank normal records per group by (time, seq); the per-day sequence
	// number is the arrival-order proxy for reports sharing a timestamp.
	normalGroups := make(map[reversalGroup][]int)
	for _, i := range normals {
		g := reversalGroupOf(ledger[i])
		normalGroups[g] = append(normalGroups[g], i)
	}

	removed := make(map[int]bool)
	matchedReversals := 0
	for g, idxs := range normalGroups {
		rs, ok := reversals[g]
		if !ok {
			continue
		}
		sort.SliceStable(idxs, func(a, b int) bool {
			ea, eb := ledger[idxs[a]], ledger[idxs[b]]
			if ea.Time != eb.Time {
				return ea.Time < eb.Time
			}
			return ea.Seq < eb.Seq
		})
		// The reversal at position k removes the normal record at position
		// k in the same group.
		n := len(rs)
		if n > len(idxs) {
			n = len(idxs)
		}
		for k := 0; k < n; k++ {
			removed[idxs[k]] = true
		}
		matchedReversals += n
	}

	out := make([]domain.TradeEvent, 0, len(normals))
	for _, i := range normals {
		if removed[i] {
			continue
		}
		e := ledger[i]
		if e.ReportSide == "" {
			e.ReportSide = e.Side
		}
		out = append(out, e)
	}

	r.logger.DebugContext(ctx, "reversals resolved",
		slog.Int("delayed_dropped", droppedDelayed),
		slog.Int("reversals_matched", matchedReversals),
		slog.Int("normals_removed", len(removed)))

	return out
}
