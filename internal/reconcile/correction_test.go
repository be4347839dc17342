package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bondtape/pkg/contracts/domain"
)

// correction builds a correction event superseding origSeq.
func correction(cusip, tm, seq, origSeq string, price, volume float64) domain.TradeEvent {
	ev := trade(cusip, tm, seq, price, volume)
	ev.Status = domain.StatusCorrection
	ev.OrigSeq = origSeq
	return ev
}

func TestCorrectionChainResolver_SingleHopSubstitution(t *testing.T) {
	ctx := context.Background()
	r := NewCorrectionChainResolver(nil)

	trades := []domain.TradeEvent{trade("362320AX1", "10:15:00", "0005", 100.00, 20000)}
	corrections := []domain.TradeEvent{correction("362320AX1", "10:40:00", "0009", "0005", 101.00, 20000)}

	out := r.Resolve(ctx, trades, corrections)

	require.Len(t, out, 1)
	assert.Equal(t, "0009", out[0].Seq)
	assert.Equal(t, 101.00, out[0].Price)
	assert.Equal(t, domain.StatusCorrection, out[0].Status,
		"the correction's own fields are the data of record")
}

func TestCorrectionChainResolver_MatchIgnoresExecutionTime(t *testing.T) {
	ctx := context.Background()
	r := NewCorrectionChainResolver(nil)

	// The correcting event is time-stamped hours after its target; the
	// substitution match runs on instrument + date + sequence only.
	trades := []domain.TradeEvent{trade("362320AX1", "09:01:00", "0005", 100.00, 20000)}
	corrections := []domain.TradeEvent{correction("362320AX1", "15:55:12", "0051", "0005", 99.50, 20000)}

	out := r.Resolve(ctx, trades, corrections)

	require.Len(t, out, 1)
	assert.Equal(t, "0051", out[0].Seq)
}

func TestCorrectionChainResolver_AmbiguousSameTimestampGroup(t *testing.T) {
	ctx := context.Background()
	r := NewCorrectionChainResolver(nil)

	// Two independent corrections share one timestamp, each superseding a
	// different prior trade: napp>1 for nothing, but the group holds two
	// pairs, so each NEW re-attaches its own back-reference.
	trades := []domain.TradeEvent{
		trade("362320AX1", "10:15:00", "0005", 100.00, 20000),
		trade("362320AX1", "10:16:00", "0006", 102.00, 30000),
	}
	corrections := []domain.TradeEvent{
		correction("362320AX1", "11:00:00", "0011", "0005", 100.50, 20000),
		correction("362320AX1", "11:00:00", "0012", "0006", 102.50, 30000),
	}

	out := r.Resolve(ctx, trades, corrections)

	require.Len(t, out, 2, "two separate substitutions, not one merged one")
	prices := map[string]float64{}
	for _, e := range out {
		prices[e.Seq] = e.Price
	}
	assert.Equal(t, 100.50, prices["0011"])
	assert.Equal(t, 102.50, prices["0012"])
}

func TestCorrectionChainResolver_SharedOrigSeqSameTimestamp(t *testing.T) {
	ctx := context.Background()
	r := NewCorrectionChainResolver(nil)

	// Two corrections at one timestamp both reference seq 0005 (napp=2,
	// ntype=1): each reuse is an independent one-hop pair, not a chain link.
	trades := []domain.TradeEvent{trade("362320AX1", "10:15:00", "0005", 100.00, 20000)}
	corrections := []domain.TradeEvent{
		correction("362320AX1", "11:00:00", "0011", "0005", 100.50, 20000),
		correction("362320AX1", "11:00:00", "0012", "0005", 100.75, 20000),
	}

	out := r.Resolve(ctx, trades, corrections)

	// The trade goes; both cleaned corrections target it and substitute.
	require.Len(t, out, 2)
	for _, e := range out {
		assert.Equal(t, domain.StatusCorrection, e.Status)
		assert.Equal(t, "0005", e.OrigSeq)
	}
}

func TestCorrectionChainResolver_TwoHopChainResolvesThroughPivot(t *testing.T) {
	ctx := context.Background()
	r := NewCorrectionChainResolver(nil)

	// Correction 0011 supersedes the trade and correction 0012 supersedes
	// 0011, all at one timestamp. Seq 0011 appears in both roles
	// (napp=2, ntype=2) and drops out of simple pairing; the lone surviving
	// NEW (0012) and OLD (0005) then pivot into the group's unique pair, so
	// the chain end lands on the original trade.
	trades := []domain.TradeEvent{trade("362320AX1", "10:15:00", "0005", 100.00, 20000)}
	corrections := []domain.TradeEvent{
		correction("362320AX1", "11:00:00", "0011", "0005", 100.50, 20000),
		correction("362320AX1", "11:00:00", "0012", "0011", 100.75, 20000),
	}

	out := r.Resolve(ctx, trades, corrections)

	require.Len(t, out, 1)
	assert.Equal(t, "0012", out[0].Seq)
	assert.Equal(t, "0005", out[0].OrigSeq)
	assert.Equal(t, 100.75, out[0].Price)
}

func TestCorrectionChainResolver_UnmatchedCorrectionDiscarded(t *testing.T) {
	ctx := context.Background()
	r := NewCorrectionChainResolver(nil)

	trades := []domain.TradeEvent{trade("362320AX1", "10:15:00", "0005", 100.00, 20000)}
	// Target 0042 was cancelled earlier or never arrived.
	corrections := []domain.TradeEvent{correction("362320AX1", "11:00:00", "0011", "0042", 100.50, 20000)}

	out := r.Resolve(ctx, trades, corrections)

	require.Len(t, out, 1)
	assert.Equal(t, "0005", out[0].Seq)
}

func TestCorrectionChainResolver_DuplicateCorrectionDeduplicated(t *testing.T) {
	ctx := context.Background()
	r := NewCorrectionChainResolver(nil)

	trades := []domain.TradeEvent{trade("362320AX1", "10:15:00", "0005", 100.00, 20000)}
	// The same logical correction disseminated twice at different times.
	corrections := []domain.TradeEvent{
		correction("362320AX1", "11:00:00", "0011", "0005", 100.50, 20000),
		correction("362320AX1", "11:30:00", "0011", "0005", 100.50, 20000),
	}

	out := r.Resolve(ctx, trades, corrections)

	require.Len(t, out, 1)
	assert.Equal(t, "0011", out[0].Seq)
}

func TestCorrectionChainResolver_NoCorrectionsIsNoOp(t *testing.T) {
	ctx := context.Background()
	r := NewCorrectionChainResolver(nil)

	trades := []domain.TradeEvent{
		trade("362320AX1", "10:15:00", "0005", 100.00, 20000),
		trade("88033GBZ9", "10:16:00", "0006", 98.00, 50000),
	}

	out := r.Resolve(ctx, trades, nil)
	assert.Equal(t, trades, out)
}
