package exporter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"bondtape/pkg/contracts/domain"
)

const summarySheet = "Summaries"

// writeSummaryWorkbook writes the summary records to an xlsx workbook with a
// frozen header row, one summary per row.
func writeSummaryWorkbook(fullPath string, summaries []domain.SummaryRecord) error {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(summaryHeaders))
	for i, h := range summaryHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	for i, s := range summaries {
		row := []interface{}{
			s.CUSIP,
			s.BucketStart.Format("2006-01-02 15:04:05"),
			string(s.Granularity),
			s.PriceEW,
			s.PriceVW,
			s.PriceVWReliable,
			s.Quantity,
			s.DollarVolume,
			s.PriceBid,
			s.PriceAsk,
			s.SellCount,
			s.BuyCount,
			s.NumTrades,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(summarySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header row: %w", err)
	}

	return f.SaveAs(fullPath)
}
