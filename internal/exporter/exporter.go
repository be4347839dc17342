package exporter

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"

	"bondtape/internal/config"
	"bondtape/internal/errors"
	"bondtape/internal/operations"
	"bondtape/pkg/contracts/domain"
)

const dateLayout = "2006-01-02"

var (
	ledgerHeaders = []string{
		"CUSIP", "Date", "Time", "Seq", "OrigSeq", "Status", "Price",
		"Volume", "Yield", "AsOf", "ReportSide", "ContraParty",
	}
	summaryHeaders = []string{
		"CUSIP", "BucketStart", "Granularity", "PriceEW", "PriceVW",
		"PriceVWReliable", "Quantity", "DollarVolume", "PriceBid",
		"PriceAsk", "SellCount", "BuyCount", "NumTrades",
	}
	statsHeaders = []string{
		"BatchID", "Raw", "PostVolumeFilter", "PostReconcile", "Passthrough",
	}
)

// Exporter writes run outputs under a configured directory. File names are
// prefixed with the run's feed type so standard and 144A outputs coexist.
type Exporter struct {
	logger *slog.Logger
	cfg    config.ExportConfig
}

// NewExporter creates an exporter.
func NewExporter(logger *slog.Logger, cfg config.ExportConfig) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger, cfg: cfg}
}

// Export writes the ledger, summary and stats CSVs and, when enabled, the
// summary workbook. Any write failure is a storage error.
func (e *Exporter) Export(ctx context.Context, result *operations.RunResult) error {
	prefix := string(result.FeedType)

	ledgerPath := e.path(prefix + "_ledger.csv")
	if err := writeCSV(ledgerPath, ledgerHeaders, ledgerRecords(result.Ledger)); err != nil {
		return errors.NewStorageError("write ledger csv", err)
	}

	summaryPath := e.path(prefix + "_summaries.csv")
	if err := writeCSV(summaryPath, summaryHeaders, summaryRecords(result.Summaries)); err != nil {
		return errors.NewStorageError("write summaries csv", err)
	}

	statsPath := e.path(prefix + "_cleaning_stats.csv")
	if err := writeCSV(statsPath, statsHeaders, statsRecords(result.Stats)); err != nil {
		return errors.NewStorageError("write cleaning stats csv", err)
	}

	if e.cfg.WriteXLSX {
		workbookPath := e.path(prefix + "_summaries.xlsx")
		if err := writeSummaryWorkbook(workbookPath, result.Summaries); err != nil {
			return errors.NewStorageError("write summary workbook", err)
		}
	}

	e.logger.InfoContext(ctx, "run exported",
		slog.String("job_id", result.JobID),
		slog.String("out_dir", e.cfg.OutDir),
		slog.Int("ledger_rows", len(result.Ledger)),
		slog.Int("summary_rows", len(result.Summaries)),
		slog.Bool("xlsx", e.cfg.WriteXLSX))

	return nil
}

func (e *Exporter) path(name string) string {
	return filepath.Join(e.cfg.OutDir, name)
}

func ledgerRecords(ledger []domain.ReconciledTrade) [][]string {
	records := make([][]string, 0, len(ledger))
	for _, t := range ledger {
		records = append(records, []string{
			t.CUSIP,
			t.Date.Format(dateLayout),
			t.Time,
			t.Seq,
			t.OrigSeq,
			string(t.Status),
			formatFloat(t.Price),
			formatOptional(t.Volume, t.VolumeKnown),
			formatOptional(t.Yield, t.YieldKnown),
			string(t.AsOf),
			t.ReportSide,
			t.ContraParty,
		})
	}
	return records
}

func summaryRecords(summaries []domain.SummaryRecord) [][]string {
	records := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		records = append(records, []string{
			s.CUSIP,
			s.BucketStart.Format("2006-01-02 15:04:05"),
			string(s.Granularity),
			formatFloat(s.PriceEW),
			formatFloat(s.PriceVW),
			strconv.FormatBool(s.PriceVWReliable),
			formatFloat(s.Quantity),
			formatFloat(s.DollarVolume),
			formatFloat(s.PriceBid),
			formatFloat(s.PriceAsk),
			strconv.Itoa(s.SellCount),
			strconv.Itoa(s.BuyCount),
			strconv.Itoa(s.NumTrades),
		})
	}
	return records
}

func statsRecords(stats []domain.CleaningStats) [][]string {
	records := make([][]string, 0, len(stats))
	for _, s := range stats {
		records = append(records, []string{
			s.BatchID,
			strconv.Itoa(s.Raw),
			strconv.Itoa(s.PostVolumeFilter),
			strconv.Itoa(s.PostReconcile),
			strconv.FormatBool(s.Passthrough),
		})
	}
	return records
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatOptional renders an unknown value as an empty cell instead of a
// misleading zero.
func formatOptional(v float64, known bool) string {
	if !known {
		return ""
	}
	return formatFloat(v)
}

// Paths returns the files a run with the given feed type writes, for
// logging and for the results server.
func (e *Exporter) Paths(feedType domain.FeedType) []string {
	prefix := string(feedType)
	paths := []string{
		e.path(prefix + "_ledger.csv"),
		e.path(prefix + "_summaries.csv"),
		e.path(prefix + "_cleaning_stats.csv"),
	}
	if e.cfg.WriteXLSX {
		paths = append(paths, e.path(prefix+"_summaries.xlsx"))
	}
	return paths
}
