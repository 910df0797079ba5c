package exports

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"fieldmonitor/internal/summary"
	"fieldmonitor/pkg/domain"
)

// Dataset names an exportable view of the store.
type Dataset string

// Supported datasets.
const (
	DatasetBudget    Dataset = "budget"
	DatasetDashboard Dataset = "dashboard"
	DatasetSnapshot  Dataset = "snapshot"
)

// Format is an artifact encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Formats lists the encodings supported by d.
func (d Dataset) Formats() []Format {
	switch d {
	case DatasetBudget:
		return []Format{FormatCSV, FormatJSON}
	case DatasetDashboard, DatasetSnapshot:
		return []Format{FormatJSON}
	default:
		return nil
	}
}

// Supports reports whether d can be rendered as f.
func (d Dataset) Supports(f Format) bool {
	for _, candidate := range d.Formats() {
		if candidate == f {
			return true
		}
	}
	return false
}

// BudgetHeader is the column layout of the budget CSV.
var BudgetHeader = []string{"id", "category", "planned_amount", "actual_amount", "currency_rate", "cad_equivalent", "variance_pct", "high_variance"}

// BudgetRow is one line of the budget export.
type BudgetRow struct {
	domain.BudgetLine
	Variance     float64 `json:"variancePct"`
	HighVariance bool    `json:"highVariance"`
}

// BudgetRows pairs every line with its variance.
func BudgetRows(lines []domain.BudgetLine) []BudgetRow {
	variances := summary.Variances(lines)
	rows := make([]BudgetRow, len(lines))
	for i, l := range lines {
		rows[i] = BudgetRow{BudgetLine: l, Variance: variances[i].Variance, HighVariance: variances[i].High}
	}
	return rows
}

// WriteBudgetCSV writes lines with a header row.
func WriteBudgetCSV(w io.Writer, lines []domain.BudgetLine) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(BudgetHeader); err != nil {
		return err
	}
	for _, row := range BudgetRows(lines) {
		record := []string{
			row.ID,
			row.Category,
			formatFloat(row.PlannedAmount),
			formatFloat(row.ActualAmount),
			formatFloat(row.CurrencyRate),
			formatFloat(row.CADEquivalent),
			strconv.FormatFloat(row.Variance, 'f', 1, 64),
			strconv.FormatBool(row.HighVariance),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Render encodes dataset d of snap as f.
func Render(w io.Writer, d Dataset, f Format, snap domain.Snapshot) error {
	if !d.Supports(f) {
		return fmt.Errorf("format %s not supported by dataset %s", f, d)
	}
	if f == FormatCSV {
		return WriteBudgetCSV(w, snap.Budget)
	}
	var payload any
	switch d {
	case DatasetBudget:
		payload = map[string]any{"rows": BudgetRows(snap.Budget), "totals": summary.Totals(snap.Budget)}
	case DatasetDashboard:
		payload = summary.Overview(snap)
	case DatasetSnapshot:
		payload = snap
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
