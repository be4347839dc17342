package domain

import (
	"time"
)

// FeedType selects which dissemination feed a run consumes.
type FeedType string

const (
	// FeedTypeStandard is the corporate bond feed for publicly offered issues.
	FeedTypeStandard FeedType = "standard"
	// FeedTypeRule144A is the feed for private-placement (Rule 144A) issues.
	FeedTypeRule144A FeedType = "rule144a"
)

// Status is the canonical three-way report status after sub-code collapsing.
type Status string

const (
	StatusTrade      Status = "T"
	StatusCancel     Status = "C"
	StatusCorrection Status = "W"
)

// CanonicalStatus collapses provider status sub-codes into the three-way
// model: G and M are trade variants, H and N cancel variants, I and O
// correction variants. The second return is false for unknown codes.
func CanonicalStatus(code string) (Status, bool) {
	switch code {
	case "T", "G", "M":
		return StatusTrade, true
	case "C", "H", "N":
		return StatusCancel, true
	case "W", "I", "O":
		return StatusCorrection, true
	}
	return "", false
}

// AsOf is the as-of qualifier attached to a disseminated report.
type AsOf string

const (
	// AsOfNone marks a regularly disseminated report.
	AsOfNone AsOf = ""
	// AsOfTrade marks an as-of report for a prior-day trade.
	AsOfTrade AsOf = "A"
	// AsOfReversal marks a report that removes an earlier dissemination.
	AsOfReversal AsOf = "R"
	// AsOfDelayed marks a delayed dissemination.
	AsOfDelayed AsOf = "D"
	// AsOfDelayedReversal marks a delayed reversal.
	AsOfDelayedReversal AsOf = "X"
)

// RawTradeEvent is one row of the feed exactly as delivered: every field is
// text. The normalizer owns all parsing.
type RawTradeEvent struct {
	CUSIP             string `json:"cusip_id"`
	Symbol            string `json:"bond_sym_id"`
	ExecutionDate     string `json:"trd_exctn_dt"`
	ExecutionTime     string `json:"trd_exctn_tm"`
	Seq               string `json:"msg_seq_nb"`
	Status            string `json:"trc_st"`
	WhenIssued        string `json:"wis_fl"`
	Commission        string `json:"cmsn_trd"`
	VolumeText        string `json:"ascii_rptd_vol_tx"`
	Price             string `json:"rptd_pr"`
	Yield             string `json:"yld_pt"`
	AsOf              string `json:"asof_cd"`
	Side              string `json:"side"`
	DisseminationSide string `json:"diss_rptg_side_cd"`
	OrigSeq           string `json:"orig_msg_seq_nb"`
	OrigDissemination string `json:"orig_dis_dt"`
	ReportingParty    string `json:"rptg_party_type"`
	ContraParty       string `json:"contra_party_type"`
}

// TradeEvent is a normalized feed event. Events are immutable once parsed;
// reconciliation filters and relabels but never rewrites price or volume
// (side coalescing and volume unit normalization are the only exceptions).
type TradeEvent struct {
	CUSIP  string    `json:"cusip" csv:"CUSIP"`
	Symbol string    `json:"symbol,omitempty" csv:"Symbol"`
	Date   time.Time `json:"date" csv:"Date"`
	// Time is the execution time of day in HH:MM:SS form. It sorts
	// lexicographically in chronological order, which the reversal
	// resolver's positional matching relies on.
	Time string `json:"time" csv:"Time"`
	// Seq is the per-instrument, per-day message sequence number, the only
	// linkage key between related events.
	Seq string `json:"seq" csv:"Seq"`
	// OrigSeq back-references the Seq superseded by a cancel or correction.
	// Empty on plain trade reports.
	OrigSeq string `json:"orig_seq,omitempty" csv:"OrigSeq"`
	Status  Status `json:"status" csv:"Status"`

	Price float64 `json:"price" csv:"Price"`
	// Volume is the reported par volume. VolumeKnown is false when the feed
	// value was unparseable; such rows stay in the ledger but are excluded
	// from numeric aggregation.
	Volume      float64 `json:"volume" csv:"Volume"`
	VolumeKnown bool    `json:"volume_known" csv:"VolumeKnown"`
	Yield       float64 `json:"yield,omitempty" csv:"Yield"`
	YieldKnown  bool    `json:"yield_known" csv:"YieldKnown"`

	AsOf AsOf `json:"asof,omitempty" csv:"AsOf"`
	// ReportSide is the canonical report side ("B" or "S"), renamed from the
	// dissemination-time side code.
	ReportSide string `json:"report_side,omitempty" csv:"ReportSide"`
	// Side is the explicit side field only populated in later feed years;
	// the reversal resolver coalesces it into ReportSide after matching.
	Side string `json:"side,omitempty" csv:"Side"`

	ContraParty       string `json:"contra_party,omitempty" csv:"ContraParty"`
	ReportingParty    string `json:"reporting_party,omitempty" csv:"ReportingParty"`
	WhenIssued        string `json:"when_issued,omitempty" csv:"WhenIssued"`
	Commission        string `json:"commission,omitempty" csv:"Commission"`
	OrigDissemination string `json:"orig_dissemination,omitempty" csv:"OrigDissemination"`
}

// ExecutionDateTime combines the calendar date with the time of day. Rows
// with a malformed time collapse onto midnight of their date.
func (e TradeEvent) ExecutionDateTime() time.Time {
	t, err := time.Parse("15:04:05", e.Time)
	if err != nil {
		return e.Date
	}
	return e.Date.Add(
		time.Duration(t.Hour())*time.Hour +
			time.Duration(t.Minute())*time.Minute +
			time.Duration(t.Second())*time.Second)
}

// ReconciledTrade is a TradeEvent that survived reconciliation. Its Status is
// StatusTrade for an untouched report or StatusCorrection for a substituted
// correction; both are economically live.
type ReconciledTrade = TradeEvent

// CleaningStats carries the per-batch observability counters so operators can
// spot abnormal drop rates between stages.
type CleaningStats struct {
	BatchID string `json:"batch_id"`
	// Raw is the record count as fetched from the feed.
	Raw int `json:"raw"`
	// PostVolumeFilter counts records surviving the minimum-volume screen.
	PostVolumeFilter int `json:"post_volume_filter"`
	// PostReconcile counts records in the reconciled ledger.
	PostReconcile int `json:"post_reconcile"`
	// Passthrough is true when the batch was at or below the near-empty
	// threshold and bypassed reconciliation entirely. On passthrough all
	// three counters equal the fetched row count, even if some rows could
	// not be normalized into ledger entries.
	Passthrough bool `json:"passthrough"`
}
