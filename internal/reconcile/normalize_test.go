package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bondtape/pkg/contracts/domain"
)

func TestDecodeVolume(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		want      float64
		wantKnown bool
	}{
		{"plain number", "250000", 250000, true},
		{"five million cap", "5MM+", 5000000, true},
		{"one million cap", "1MM+", 1000000, true},
		{"cap with whitespace", " 5MM+ ", 5000000, true},
		{"decimal", "10000.5", 10000.5, true},
		{"unparseable is unknown not zero", "N/A", 0, false},
		{"empty is unknown", "", 0, false},
		{"unrecognized cap is unknown", "10MM+", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, known := DecodeVolume(tt.text)
			assert.Equal(t, tt.wantKnown, known)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalStatus(t *testing.T) {
	tests := []struct {
		code   string
		want   domain.Status
		wantOK bool
	}{
		{"T", domain.StatusTrade, true},
		{"G", domain.StatusTrade, true},
		{"M", domain.StatusTrade, true},
		{"C", domain.StatusCancel, true},
		{"H", domain.StatusCancel, true},
		{"N", domain.StatusCancel, true},
		{"W", domain.StatusCorrection, true},
		{"I", domain.StatusCorrection, true},
		{"O", domain.StatusCorrection, true},
		{"Z", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run("code "+tt.code, func(t *testing.T) {
			got, ok := domain.CanonicalStatus(tt.code)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func rawEvent(cusip, date, tm, seq, status, vol, price string) domain.RawTradeEvent {
	return domain.RawTradeEvent{
		CUSIP:             cusip,
		ExecutionDate:     date,
		ExecutionTime:     tm,
		Seq:               seq,
		Status:            status,
		VolumeText:        vol,
		Price:             price,
		DisseminationSide: "S",
		ContraParty:       "C",
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	ctx := context.Background()
	n := NewNormalizer(nil)

	raw := []domain.RawTradeEvent{
		rawEvent("362320AX1", "2012-03-05", "10:15:00", "0001", "T", "20000", "100.25"),
		rawEvent("362320AX1", "2012-03-05", "10:15:30", "0002", "G", "5MM+", "100.50"),
		rawEvent("362320AX1", "2012-03-05", "10:16:00", "0003", "H", "20000", "100.25"),
		rawEvent("362320AX1", "2012-03-05", "10:17:00", "0004", "I", "20000", "100.30"),
		rawEvent("", "2012-03-05", "10:18:00", "0005", "T", "20000", "100.25"),
		rawEvent("362320AX1", "2012-03-05", "10:19:00", "0006", "Z", "20000", "100.25"),
	}

	p := n.Normalize(ctx, raw)

	require.Len(t, p.Trades, 2)
	require.Len(t, p.Cancels, 1)
	require.Len(t, p.Corrections, 1)
	assert.Equal(t, 4, p.Len())

	first := p.Trades[0]
	assert.Equal(t, "362320AX1", first.CUSIP)
	assert.Equal(t, time.Date(2012, 3, 5, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, "10:15:00", first.Time)
	assert.Equal(t, domain.StatusTrade, first.Status)
	assert.Equal(t, 100.25, first.Price)
	assert.Equal(t, float64(20000), first.Volume)
	assert.True(t, first.VolumeKnown)
	// Dissemination-time side code lands in the canonical report side.
	assert.Equal(t, "S", first.ReportSide)

	capped := p.Trades[1]
	assert.Equal(t, float64(5000000), capped.Volume)
	assert.True(t, capped.VolumeKnown)
	assert.Equal(t, domain.StatusTrade, capped.Status, "G collapses into T")

	assert.Equal(t, domain.StatusCancel, p.Cancels[0].Status, "H collapses into C")
	assert.Equal(t, domain.StatusCorrection, p.Corrections[0].Status, "I collapses into W")
}

func TestNormalizer_UnknownVolumeKept(t *testing.T) {
	ctx := context.Background()
	n := NewNormalizer(nil)

	p := n.Normalize(ctx, []domain.RawTradeEvent{
		rawEvent("362320AX1", "2012-03-05", "10:15:00", "0001", "T", "garbage", "100.25"),
	})

	require.Len(t, p.Trades, 1)
	assert.False(t, p.Trades[0].VolumeKnown, "unparseable volume is unknown, not dropped")
	assert.Zero(t, p.Trades[0].Volume)
}

func TestTradeEvent_ExecutionDateTime(t *testing.T) {
	ev := domain.TradeEvent{
		Date: time.Date(2012, 3, 5, 0, 0, 0, 0, time.UTC),
		Time: "14:30:45",
	}
	assert.Equal(t, time.Date(2012, 3, 5, 14, 30, 45, 0, time.UTC), ev.ExecutionDateTime())

	ev.Time = "bogus"
	assert.Equal(t, ev.Date, ev.ExecutionDateTime(), "malformed time collapses onto midnight")
}
