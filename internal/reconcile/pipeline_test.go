package reconcile

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bondtape/internal/config"
	"bondtape/pkg/contracts/domain"
)

func testCleaningConfig() config.CleaningConfig {
	return config.CleaningConfig{MinVolume: 10000, PassthroughMax: 3}
}

func TestCleaner_FullPipeline(t *testing.T) {
	ctx := context.Background()
	c := NewCleaner(nil, testCleaningConfig())

	raw := []domain.RawTradeEvent{
		// Survives untouched.
		rawEvent("362320AX1", "2012-03-05", "09:00:00", "0001", "T", "20000", "100.00"),
		// Cancelled pair.
		rawEvent("362320AX1", "2012-03-05", "09:30:00", "0002", "T", "30000", "100.50"),
		{CUSIP: "362320AX1", ExecutionDate: "2012-03-05", ExecutionTime: "09:30:00",
			Seq: "0003", OrigSeq: "0002", Status: "C", VolumeText: "30000", Price: "100.50"},
		// Corrected pair.
		rawEvent("362320AX1", "2012-03-05", "10:00:00", "0004", "T", "40000", "101.00"),
		{CUSIP: "362320AX1", ExecutionDate: "2012-03-05", ExecutionTime: "10:45:00",
			Seq: "0008", OrigSeq: "0004", Status: "W", VolumeText: "40000", Price: "101.25",
			DisseminationSide: "S", ContraParty: "C"},
		// Below the volume screen.
		rawEvent("362320AX1", "2012-03-05", "11:00:00", "0010", "T", "5000", "99.00"),
	}

	ledger, stats := c.Clean(ctx, "batch-1", raw)

	assert.Equal(t, 6, stats.Raw)
	assert.Equal(t, 5, stats.PostVolumeFilter, "the 5,000-par report fails the screen")
	assert.Equal(t, 2, stats.PostReconcile)
	assert.False(t, stats.Passthrough)

	require.Len(t, ledger, 2)
	bySeq := map[string]domain.ReconciledTrade{}
	for _, e := range ledger {
		bySeq[e.Seq] = e
	}
	assert.Contains(t, bySeq, "0001")
	assert.Contains(t, bySeq, "0008")
	assert.NotContains(t, bySeq, "0002")
	assert.NotContains(t, bySeq, "0004")
	assert.Equal(t, 101.25, bySeq["0008"].Price)
}

func TestCleaner_PassthroughForNearEmptyBatch(t *testing.T) {
	ctx := context.Background()
	c := NewCleaner(nil, testCleaningConfig())

	// Three records sit at the threshold; the batch bypasses both the
	// volume screen and reconciliation even though a cancel pair and an
	// under-volume report are present.
	raw := []domain.RawTradeEvent{
		rawEvent("362320AX1", "2012-03-05", "09:00:00", "0001", "T", "5000", "100.00"),
		rawEvent("362320AX1", "2012-03-05", "09:30:00", "0002", "T", "30000", "100.50"),
		{CUSIP: "362320AX1", ExecutionDate: "2012-03-05", ExecutionTime: "09:30:00",
			Seq: "0003", OrigSeq: "0002", Status: "C", VolumeText: "30000", Price: "100.50"},
	}

	ledger, stats := c.Clean(ctx, "batch-2", raw)

	assert.True(t, stats.Passthrough)
	assert.Equal(t, 3, stats.Raw)
	assert.Equal(t, stats.PostVolumeFilter, stats.PostReconcile,
		"pre/post reconciliation counts are identical on passthrough")
	assert.Equal(t, 3, stats.PostReconcile)
	assert.Len(t, ledger, 3)
}

func TestCleaner_PassthroughCountersReportFetchedRows(t *testing.T) {
	ctx := context.Background()
	c := NewCleaner(nil, testCleaningConfig())

	// One row has no instrument key and cannot be normalized. The counters
	// still agree on the fetched row count; only the ledger shrinks.
	raw := []domain.RawTradeEvent{
		rawEvent("362320AX1", "2012-03-05", "09:00:00", "0001", "T", "20000", "100.00"),
		{ExecutionDate: "2012-03-05", ExecutionTime: "09:30:00",
			Seq: "0002", Status: "T", VolumeText: "30000", Price: "100.50"},
	}

	ledger, stats := c.Clean(ctx, "batch-5", raw)

	assert.True(t, stats.Passthrough)
	assert.Equal(t, 2, stats.Raw)
	assert.Equal(t, 2, stats.PostVolumeFilter)
	assert.Equal(t, 2, stats.PostReconcile)
	require.Len(t, ledger, 1)
	assert.Equal(t, "362320AX1", ledger[0].CUSIP)
}

func TestCleaner_ReconciliationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := NewCleaner(nil, testCleaningConfig())

	raw := make([]domain.RawTradeEvent, 0, 8)
	for i := 0; i < 4; i++ {
		raw = append(raw,
			rawEvent("362320AX1", "2012-03-05", fmt.Sprintf("09:0%d:00", i),
				fmt.Sprintf("000%d", i+1), "T", "20000", "100.00"))
	}
	raw = append(raw,
		domain.RawTradeEvent{CUSIP: "362320AX1", ExecutionDate: "2012-03-05",
			ExecutionTime: "10:00:00", Seq: "0009", OrigSeq: "0002", Status: "W",
			VolumeText: "20000", Price: "100.75", DisseminationSide: "S", ContraParty: "C"},
		domain.RawTradeEvent{CUSIP: "362320AX1", ExecutionDate: "2012-03-05",
			ExecutionTime: "16:00:00", Seq: "0010", Status: "T", VolumeText: "20000",
			Price: "100.00", AsOf: "R", DisseminationSide: "S", ContraParty: "C"},
	)

	ledger, _ := c.Clean(ctx, "batch-3", raw)

	// Running the correction and reversal stages again over an already
	// reconciled ledger must remove nothing further.
	again := c.corrections.Resolve(ctx, ledger, nil)
	again = c.reversals.Resolve(ctx, again)

	assert.Equal(t, ledger, again)
}

func TestCleaner_VolumeScreenDropsUnknownVolumes(t *testing.T) {
	ctx := context.Background()
	c := NewCleaner(nil, config.CleaningConfig{MinVolume: 10000, PassthroughMax: 0})

	raw := []domain.RawTradeEvent{
		rawEvent("362320AX1", "2012-03-05", "09:00:00", "0001", "T", "N/A", "100.00"),
		rawEvent("362320AX1", "2012-03-05", "09:01:00", "0002", "T", "1MM+", "100.00"),
	}

	_, stats := c.Clean(ctx, "batch-4", raw)

	assert.Equal(t, 1, stats.PostVolumeFilter,
		"an unknown volume cannot clear the screen; the capped sentinel can")
}
