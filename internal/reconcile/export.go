package reconcile

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

var exportHeader = []string{
	"job_number", "job_label", "job_client", "job_status",
	"comparison_date", "comparison_type", "estimation_version",
	"estimated_amount", "actual_amount",
	"estimated_duration", "actual_duration",
	"estimated_labor", "actual_labor",
	"estimated_margin", "actual_margin",
	"deviation_amount", "deviation_duration", "deviation_labor",
	"deviation_purchasing", "deviation_overhead", "deviation_margin",
	"computed_by", "comment",
}

// WriteCSV renders export rows as CSV, header first.
func WriteCSV(w io.Writer, rows []ExportRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.JobNumber, row.JobLabel, row.JobClient, row.JobStatus,
			row.ComparisonDate.Format(time.RFC3339), string(row.ComparisonType), fmt.Sprintf("%d", row.EstimationVersion),
			formatAmount(row.EstimatedAmount), formatAmount(row.ActualAmount),
			formatAmount(row.EstimatedDuration), formatAmount(row.ActualDuration),
			formatAmount(row.EstimatedLabor), formatAmount(row.ActualLabor),
			formatAmount(row.EstimatedMargin), formatAmount(row.ActualMargin),
			formatAmount(row.Deviations.Amount), formatAmount(row.Deviations.Duration), formatAmount(row.Deviations.Labor),
			formatAmount(row.Deviations.Purchasing), formatAmount(row.Deviations.Overhead), formatAmount(row.Deviations.Margin),
			row.ComputedByName, row.Comment,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
