package domain

import (
	"time"
)

// Granularity is the aggregation bucket width.
type Granularity string

const (
	GranularityDaily  Granularity = "daily"
	GranularityHourly Granularity = "hourly"
)

// Valid reports whether the granularity is one the aggregator supports.
func (g Granularity) Valid() bool {
	return g == GranularityDaily || g == GranularityHourly
}

// Floor truncates an execution timestamp to the start of its bucket:
// midnight for daily, top of the hour for hourly.
func (g Granularity) Floor(t time.Time) time.Time {
	switch g {
	case GranularityHourly:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

// SummaryRecord is the terminal per-bucket output: price, volume and
// liquidity-proxy statistics for one instrument and time window.
type SummaryRecord struct {
	CUSIP       string      `json:"cusip" csv:"CUSIP"`
	BucketStart time.Time   `json:"bucket_start" csv:"BucketStart"`
	Granularity Granularity `json:"granularity" csv:"Granularity"`

	// PriceEW is the equal-weighted mean reported price, 4dp.
	PriceEW float64 `json:"price_ew" csv:"PriceEW"`
	// PriceVW is the volume-weighted mean reported price, 4dp. When the
	// bucket's total known volume is zero there are no defined weights;
	// PriceVW is then zero and PriceVWReliable is false.
	PriceVW         float64 `json:"price_vw" csv:"PriceVW"`
	PriceVWReliable bool    `json:"price_vw_reliable" csv:"PriceVWReliable"`

	// Quantity is the total par volume of known-volume records.
	Quantity float64 `json:"quantity" csv:"Quantity"`
	// DollarVolume is the summed per-record notional (volume x price / 100,
	// each rounded to the nearest whole unit).
	DollarVolume float64 `json:"dollar_volume" csv:"DollarVolume"`

	// PriceBid and PriceAsk are the volume-weighted mean prices of the
	// sell-report-side and buy-report-side subsets. Naming follows the
	// report side, not a true quoted bid or ask; the pair serves as a
	// spread proxy. Zero when the corresponding side count is zero.
	PriceBid  float64 `json:"price_bid" csv:"PriceBid"`
	PriceAsk  float64 `json:"price_ask" csv:"PriceAsk"`
	SellCount int     `json:"sell_count" csv:"SellCount"`
	BuyCount  int     `json:"buy_count" csv:"BuyCount"`

	// NumTrades is the number of reconciled trades in the bucket.
	NumTrades int `json:"num_trades" csv:"NumTrades"`
}
