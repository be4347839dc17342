package reconcile

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"bondtape/pkg/contracts/domain"
)

const dateLayout = "2006-01-02"

// volumeSentinels maps the capped volume encodings the feed uses for large
// trades onto their numeric ceilings.
var volumeSentinels = map[string]string{
	"5MM+": "5000000",
	"1MM+": "1000000",
}

// Partitions is the normalizer output: the same schema split three ways by
// canonical status.
type Partitions struct {
	Trades      []domain.TradeEvent
	Cancels     []domain.TradeEvent
	Corrections []domain.TradeEvent
}

// Len returns the total number of events across the partitions.
func (p Partitions) Len() int {
	return len(p.Trades) + len(p.Cancels) + len(p.Corrections)
}

// All concatenates the partitions back into one slice, trades first.
func (p Partitions) All() []domain.TradeEvent {
	out := make([]domain.TradeEvent, 0, p.Len())
	out = append(out, p.Trades...)
	out = append(out, p.Cancels...)
	out = append(out, p.Corrections...)
	return out
}

// Normalizer parses raw feed rows and canonicalizes status codes and volume
// encodings.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// DecodeVolume turns the reported volume text into a numeric par volume.
// Capped sentinels decode to their fixed ceilings. The second return is
// false for unparseable values: those are unknown, not zero, and stay in the
// ledger while being excluded from numeric aggregation.
func DecodeVolume(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if mapped, ok := volumeSentinels[text]; ok {
		text = mapped
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Normalize parses one batch of raw events and partitions them by canonical
// status. Records without an instrument identifier cannot participate in any
// matching and are discarded; records with a status code outside the
// three-way model are likewise dropped. Both are routine feed conditions,
// not errors.
func (n *Normalizer) Normalize(ctx context.Context, raw []domain.RawTradeEvent) Partitions {
	var p Partitions
	var droppedNoID, droppedStatus, droppedDate int

	for _, r := range raw {
		if strings.TrimSpace(r.CUSIP) == "" {
			droppedNoID++
			continue
		}

		status, ok := domain.CanonicalStatus(strings.TrimSpace(r.Status))
		if !ok {
			droppedStatus++
			continue
		}

		date, err := time.Parse(dateLayout, strings.TrimSpace(r.ExecutionDate))
		if err != nil {
			droppedDate++
			continue
		}

		volume, volumeKnown := DecodeVolume(r.VolumeText)
		price, _ := strconv.ParseFloat(strings.TrimSpace(r.Price), 64)
		yield, yieldKnown := 0.0, false
		if y, err := strconv.ParseFloat(strings.TrimSpace(r.Yield), 64); err == nil {
			yield, yieldKnown = y, true
		}

		ev := domain.TradeEvent{
			CUSIP:             strings.TrimSpace(r.CUSIP),
			Symbol:            strings.TrimSpace(r.Symbol),
			Date:              date,
			Time:              strings.TrimSpace(r.ExecutionTime),
			Seq:               strings.TrimSpace(r.Seq),
			OrigSeq:           strings.TrimSpace(r.OrigSeq),
			Status:            status,
			Price:             price,
			Volume:            volume,
			VolumeKnown:       volumeKnown,
			Yield:             yield,
			YieldKnown:        yieldKnown,
			AsOf:              domain.AsOf(strings.TrimSpace(r.AsOf)),
			ReportSide:        strings.TrimSpace(r.DisseminationSide),
			Side:              strings.TrimSpace(r.Side),
			ContraParty:       strings.TrimSpace(r.ContraParty),
			ReportingParty:    strings.TrimSpace(r.ReportingParty),
			WhenIssued:        strings.TrimSpace(r.WhenIssued),
			Commission:        strings.TrimSpace(r.Commission),
			OrigDissemination: strings.TrimSpace(r.OrigDissemination),
		}

		switch status {
		case domain.StatusCancel:
			p.Cancels = append(p.Cancels, ev)
		case domain.StatusCorrection:
			p.Corrections = append(p.Corrections, ev)
		default:
			p.Trades = append(p.Trades, ev)
		}
	}

	if droppedNoID+droppedStatus+droppedDate > 0 {
		n.logger.DebugContext(ctx, "normalizer dropped unusable rows",
			slog.Int("no_instrument", droppedNoID),
			slog.Int("unknown_status", droppedStatus),
			slog.Int("bad_date", droppedDate))
	}

	n.logger.DebugContext(ctx, "normalized batch",
		slog.Int("raw", len(raw)),
		slog.Int("trades", len(p.Trades)),
		slog.Int("cancels", len(p.Cancels)),
		slog.Int("corrections", len(p.Corrections)))

	return p
}
