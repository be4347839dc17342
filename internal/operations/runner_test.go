package operations

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bondtape/internal/config"
	apperrors "bondtape/internal/errors"
	"bondtape/internal/feed"
	"bondtape/pkg/contracts/domain"
)

// runnerSource serves canned rows per (segment, cusip) and can be told to
// fail specific cusips.
type runnerSource struct {
	mu       sync.Mutex
	rows     map[string][]domain.RawTradeEvent
	failures map[string]bool
	fetches  int
}

func sourceKey(segment domain.FeedType, cusip string) string {
	return string(segment) + "/" + cusip
}

func (s *runnerSource) add(segment domain.FeedType, cusip string, rows ...domain.RawTradeEvent) {
	if s.rows == nil {
		s.rows = make(map[string][]domain.RawTradeEvent)
	}
	s.rows[sourceKey(segment, cusip)] = append(s.rows[sourceKey(segment, cusip)], rows...)
}

func (s *runnerSource) failCUSIP(cusip string) {
	if s.failures == nil {
		s.failures = make(map[string]bool)
	}
	s.failures[cusip] = true
}

func (s *runnerSource) Fetch(_ context.Context, segment domain.FeedType, cusips []string) ([]domain.RawTradeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++

	var out []domain.RawTradeEvent
	for _, cusip := range cusips {
		if s.failures[cusip] {
			return nil, fmt.Errorf("feed unavailable for %s", cusip)
		}
		out = append(out, s.rows[sourceKey(segment, cusip)]...)
	}
	return out, nil
}

func rawTrade(cusip, date, clock, seq string) domain.RawTradeEvent {
	return domain.RawTradeEvent{
		CUSIP:             cusip,
		ExecutionDate:     date,
		ExecutionTime:     clock,
		Seq:               seq,
		Status:            "T",
		Price:             "100.25",
		VolumeText:        "20000",
		DisseminationSide: "S",
		ContraParty:       "C",
	}
}

func testRunnerConfig(feedType string) *config.Config {
	return &config.Config{
		Feed: config.FeedConfig{
			Type:            feedType,
			ChunkSize:       1,
			SegmentBoundary: "2014-06-30",
			Retry:           config.RetryConfig{MaxAttempts: 1, BackoffFactor: 1},
		},
		Cleaning:    config.CleaningConfig{MinVolume: 10000, PassthroughMax: 100},
		Aggregation: config.AggregationConfig{Granularity: "daily"},
		Runner:      config.RunnerConfig{Workers: 2},
	}
}

func testTable() *feed.ReferenceTable {
	return feed.NewReferenceTable([]feed.Instrument{
		{CUSIP: "00206RDQ0"},
		{CUSIP: "90131HBM4", Rule144A: true},
	})
}

func TestRunner_StandardRunCombinesBatches(t *testing.T) {
	src := &runnerSource{}
	src.add(domain.FeedTypeStandard, "00206RDQ0",
		rawTrade("00206RDQ0", "2019-03-04", "09:15:00", "0000001"),
		rawTrade("00206RDQ0", "2019-03-04", "10:30:00", "0000002"))
	src.add(domain.FeedTypeStandard, "90131HBM4",
		rawTrade("90131HBM4", "2019-03-04", "11:00:00", "0000001"))

	r, err := NewRunner(slog.Default(), testRunnerConfig("standard"), src, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), testTable())
	require.NoError(t, err)

	assert.NotEmpty(t, result.JobID)
	assert.Equal(t, domain.FeedTypeStandard, result.FeedType)
	assert.Equal(t, 2, result.Batches)
	assert.Empty(t, result.Failures)

	assert.Len(t, result.Ledger, 3)
	assert.Len(t, result.Stats, 2)

	// Combined summaries come back sorted by instrument.
	require.Len(t, result.Summaries, 2)
	assert.Equal(t, "00206RDQ0", result.Summaries[0].CUSIP)
	assert.Equal(t, 2, result.Summaries[0].NumTrades)
	assert.Equal(t, "90131HBM4", result.Summaries[1].CUSIP)
	assert.Equal(t, 1, result.Summaries[1].NumTrades)
}

func TestRunner_FeedFailureIsRecordedNotFatal(t *testing.T) {
	src := &runnerSource{}
	src.add(domain.FeedTypeStandard, "00206RDQ0",
		rawTrade("00206RDQ0", "2019-03-04", "09:15:00", "0000001"))
	src.failCUSIP("90131HBM4")

	r, err := NewRunner(slog.Default(), testRunnerConfig("standard"), src, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), testTable())
	require.NoError(t, err)

	assert.Len(t, result.Ledger, 1)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, []string{"90131HBM4"}, result.Failures[0].CUSIPs)
	assert.Contains(t, result.Failures[0].Error, "feed unavailable")
}

func TestRunner_Rule144ARunSplicesSegments(t *testing.T) {
	src := &runnerSource{}
	// Pre-boundary history comes from the standard segment, the rest from
	// the 144A segment. Only the flagged instrument is in scope.
	src.add(domain.FeedTypeStandard, "90131HBM4",
		rawTrade("90131HBM4", "2014-06-27", "09:15:00", "0000001"))
	src.add(domain.FeedTypeRule144A, "90131HBM4",
		rawTrade("90131HBM4", "2014-07-01", "09:15:00", "0000001"))
	// Rows for the unflagged instrument must never be requested.
	src.add(domain.FeedTypeStandard, "00206RDQ0",
		rawTrade("00206RDQ0", "2014-06-27", "09:15:00", "0000001"))

	r, err := NewRunner(slog.Default(), testRunnerConfig("rule144a"), src, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), testTable())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Batches)
	require.Len(t, result.Ledger, 2)
	assert.Equal(t, "90131HBM4", result.Ledger[0].CUSIP)
	assert.Equal(t, "90131HBM4", result.Ledger[1].CUSIP)
}

func TestRunner_SegmentViolationAbortsRun(t *testing.T) {
	src := &runnerSource{}
	// A standard segment row dated past the boundary is a fatal integrity
	// violation, not a recordable batch failure.
	src.add(domain.FeedTypeStandard, "90131HBM4",
		rawTrade("90131HBM4", "2014-07-01", "09:15:00", "0000001"))

	r, err := NewRunner(slog.Default(), testRunnerConfig("rule144a"), src, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), testTable())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeIntegrity))
}

func TestNewRunner_RejectsBadGranularity(t *testing.T) {
	cfg := testRunnerConfig("standard")
	cfg.Aggregation.Granularity = "weekly"

	_, err := NewRunner(slog.Default(), cfg, &runnerSource{}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}
