package finance

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVHeader is the fixed column set of the daily series export.
var CSVHeader = []string{"date", "currency", "captured", "pending", "refunded", "failed", "payouts", "disputes"}

// WriteCSV flattens the report's daily series. Rows are already sorted by
// date ascending; monetary fields render with exactly two decimals.
func WriteCSV(w io.Writer, report *Report) error {
	if report == nil {
		return fmt.Errorf("report required")
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return err
	}
	for _, row := range report.Daily {
		record := []string{
			row.Date,
			row.Currency,
			row.Captured.StringFixed(2),
			row.Pending.StringFixed(2),
			row.Refunded.StringFixed(2),
			row.Failed.StringFixed(2),
			row.Payouts.StringFixed(2),
			row.Disputes.StringFixed(2),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
