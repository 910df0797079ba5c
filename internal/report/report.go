// Package report turns a snapshot into a donor-facing executive report via an
// external text generator. Generation never fails from the caller's point of
// view: any fault is replaced by FailureText.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"fieldmonitor/internal/log"
	"fieldmonitor/internal/summary"
	"fieldmonitor/pkg/domain"
)

const (
	// FailureText is returned whenever generation fails for any reason.
	FailureText = "## Error\nUnable to generate report at this time. Please check your API key configuration."
	// EmptyText is returned when the generator succeeds but produces nothing.
	EmptyText = "No report generated."
)

// Section headers every report is asked to contain.
var Headers = []string{
	"## Executive Summary",
	"## Key Achievements",
	"## Financial Highlights",
	"## Challenges & Mitigations",
}

// ErrNoCredentials is returned by generators built without an API key.
var ErrNoCredentials = errors.New("report: API key not configured")

// Input is the reduced view of the four collections a report is built from.
type Input struct {
	CompletedActivities int      `json:"completedActivities"`
	TotalActivities     int      `json:"totalActivities"`
	TotalSpent          float64  `json:"totalSpent"`
	TotalBeneficiaries  int      `json:"totalBeneficiaries"`
	DelayedItems        []string `json:"delayedItems"`
}

// Summarize reduces activities, budget, beneficiaries and compliance to Input.
func Summarize(snap domain.Snapshot) Input {
	completed := 0
	for _, a := range snap.Activities {
		if a.Status == domain.ActivityCompleted {
			completed++
		}
	}
	return Input{
		CompletedActivities: completed,
		TotalActivities:     len(snap.Activities),
		TotalSpent:          summary.Totals(snap.Budget).Spent,
		TotalBeneficiaries:  len(snap.Beneficiaries),
		DelayedItems:        summary.DelayedItems(snap.Compliance),
	}
}

// Prompt renders the generation prompt for in.
func Prompt(in Input) string {
	alerts := "All compliance items are on track."
	if len(in.DelayedItems) > 0 {
		alerts = "The following items are delayed: " + strings.Join(in.DelayedItems, ", ")
	}
	var b strings.Builder
	b.WriteString("Act as a Monitoring and Evaluation Specialist for a field program on inclusive security and local peacebuilding.\n\n")
	b.WriteString("Generate a professional, concise Executive Summary for a donor report.\n\n")
	b.WriteString("Data Overview:\n")
	fmt.Fprintf(&b, "- Activities Completed: %d/%d\n", in.CompletedActivities, in.TotalActivities)
	fmt.Fprintf(&b, "- Total CAD Spent so far (Approx): $%s\n", humanize.Commaf(in.TotalSpent))
	fmt.Fprintf(&b, "- Total Beneficiaries Registered: %d\n", in.TotalBeneficiaries)
	fmt.Fprintf(&b, "- Compliance Alerts: %s\n\n", alerts)
	b.WriteString("Structure the response with these Markdown headers:\n")
	for _, h := range Headers {
		b.WriteString(h)
		b.WriteByte('\n')
	}
	b.WriteString("\nTone: Institutional, objective, and authoritative. Avoid flowery language.\n")
	return b.String()
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Reporter builds reports from snapshots.
type Reporter struct {
	gen     Generator
	logger  *log.Logger
	timeout time.Duration
}

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 60 * time.Second

// NewReporter returns a reporter over gen. A nil gen always yields FailureText.
func NewReporter(gen Generator, logger *log.Logger) *Reporter {
	if logger == nil {
		logger = log.Discard()
	}
	return &Reporter{gen: gen, logger: logger.WithComponent(log.ComponentReport), timeout: DefaultTimeout}
}

// Generate returns the Markdown report for snap, FailureText on any failure,
// or EmptyText when the generator returns only whitespace.
func (r *Reporter) Generate(ctx context.Context, snap domain.Snapshot) string {
	if r.gen == nil {
		r.logger.WarnContext(ctx, "report generation failed", log.FieldOperation, log.OpGenerate, log.FieldError, ErrNoCredentials)
		return FailureText
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	text, err := r.gen.Generate(ctx, Prompt(Summarize(snap)))
	if err != nil {
		r.logger.WarnContext(ctx, "report generation failed", log.FieldOperation, log.OpGenerate, log.FieldError, err)
		return FailureText
	}
	if strings.TrimSpace(text) == "" {
		return EmptyText
	}
	return text
}
