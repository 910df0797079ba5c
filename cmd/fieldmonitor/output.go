package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"fieldmonitor/internal/summary"
	"fieldmonitor/pkg/domain"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printKV(w io.Writer, rows [][2]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1])
	}
	return tw.Flush()
}

func printTable(w io.Writer, headers []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func printSummary(w io.Writer, snap domain.Snapshot, asJSON bool) error {
	dash := summary.Overview(snap)
	if asJSON {
		return printJSON(w, dash)
	}
	rows := [][2]string{
		{"Activities", humanize.Comma(int64(dash.TotalActivities))},
		{"Completion rate", fmt.Sprintf("%d%%", dash.CompletionRate)},
		{"Beneficiaries", humanize.Comma(int64(dash.TotalBeneficiaries))},
		{"Female share", fmt.Sprintf("%d%%", dash.FemaleShare)},
		{"Budget planned (CAD)", humanize.CommafWithDigits(dash.Budget.PlannedBase, 2)},
		{"Budget spent (CAD)", humanize.CommafWithDigits(dash.Budget.Spent, 2)},
		{"Budget remaining (CAD)", humanize.CommafWithDigits(dash.Budget.Remaining, 2)},
		{"Budget utilization", fmt.Sprintf("%d%%", dash.Budget.Utilization)},
		{"Compliance", fmt.Sprintf("%d complete, %d pending, %d delayed", dash.Compliance.Complete, dash.Compliance.Pending, dash.Compliance.Delayed)},
		{"GIS active users", humanize.Comma(int64(dash.GIS.ActiveUsers))},
		{"GIS sessions", humanize.Comma(int64(dash.GIS.Sessions))},
	}
	if err := printKV(w, rows); err != nil {
		return err
	}
	progress := make([][]string, 0, len(dash.Progress))
	for _, p := range dash.Progress {
		progress = append(progress, []string{p.Name, string(p.Status), fmt.Sprintf("%d%%", p.CompletionPercentage)})
	}
	if len(progress) > 0 {
		_, _ = fmt.Fprintln(w)
	}
	return printTable(w, []string{"ACTIVITY", "STATUS", "PROGRESS"}, progress)
}
