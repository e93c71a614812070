package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Batch Run Report\n\n")
	sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Run Summary
	sb.WriteString("## Run Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Received | %d |\n", r.RunSummary.Received))
	sb.WriteString(fmt.Sprintf("| Accepted | %d |\n", r.RunSummary.Accepted))
	sb.WriteString(fmt.Sprintf("| Rejected | %d |\n", r.RunSummary.Rejected))
	sb.WriteString(fmt.Sprintf("| Parse Rate | %.4f |\n", r.RunSummary.ParseRate))
	sb.WriteString(fmt.Sprintf("| Sources | %d |\n", r.RunSummary.Sources))
	sb.WriteString(fmt.Sprintf("| Started (ms) | %d |\n", r.RunSummary.StartedAtMs))
	sb.WriteString(fmt.Sprintf("| Finished (ms) | %d |\n", r.RunSummary.FinishedAtMs))
	sb.WriteString(fmt.Sprintf("| Duration (ms) | %d |\n", r.RunSummary.DurationMs))
	sb.WriteString("\n")

	// Rejection Taxonomy
	sb.WriteString("## Rejections\n\n")
	if r.RunSummary.Rejected > 0 {
		sb.WriteString("| Reason | Count | Share |\n")
		sb.WriteString("|--------|-------|-------|\n")
		for _, row := range r.Rejections {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.4f |\n", row.Reason, row.Count, row.Share))
		}
	} else {
		sb.WriteString("No records rejected.\n")
	}
	sb.WriteString("\n")

	// Confidence Distribution
	sb.WriteString("## Confidence Distribution\n\n")
	if r.Confidence.Count > 0 {
		sb.WriteString("| Count | Mean | Min | P10 | P25 | Median | P75 | P90 | Max |\n")
		sb.WriteString("|-------|------|-----|-----|-----|--------|-----|-----|-----|\n")
		sb.WriteString(fmt.Sprintf("| %d | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
			r.Confidence.Count, r.Confidence.Mean, r.Confidence.Min,
			r.Confidence.P10, r.Confidence.P25, r.Confidence.Median,
			r.Confidence.P75, r.Confidence.P90, r.Confidence.Max))
	} else {
		sb.WriteString("No accepted records.\n")
	}
	sb.WriteString("\n")

	// Cohorts
	sb.WriteString("## Cohorts\n\n")
	if len(r.Cohorts) > 0 {
		sb.WriteString("| Series | Issue | Class | Grade | Qualifier | Records | Median | Min | Max | Qualified |\n")
		sb.WriteString("|--------|-------|-------|-------|-----------|---------|--------|-----|-----|-----------|\n")
		for _, c := range r.Cohorts {
			qualifier := string(c.Qualifier)
			if qualifier == "" {
				qualifier = "-"
			}
			qualified := "no"
			if c.Qualified {
				qualified = "yes"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.1f | %s | %d | %d | %d | %d | %s |\n",
				c.Series, c.Issue, c.Class, c.Grade, qualifier,
				c.Records, c.MedianPriceMinor, c.MinPriceMinor, c.MaxPriceMinor, qualified))
		}
	} else {
		sb.WriteString("No cohorts available.\n")
	}
	sb.WriteString("\n")

	// Quality Gate
	sb.WriteString("## Quality Gate\n\n")
	sb.WriteString("| Check | Threshold | Actual | Status |\n")
	sb.WriteString("|-------|-----------|--------|--------|\n")
	for _, check := range r.QualityGate.Criteria {
		status := "FAIL"
		if check.Pass {
			status = "PASS"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			check.Name, check.Threshold, check.Actual, status))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("**Verdict: %s**\n\n", r.QualityGate.Verdict))

	return sb.String()
}
