// Package observability provides formatted output for verbose CLI mode and
// tracing helpers for runs.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/found/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// stepMarker is the glyph shown next to a step outcome.
func stepMarker(status types.StepStatus) string {
	switch status {
	case types.StepSuccess:
		return "✓"
	case types.StepError:
		return "✗"
	case types.StepBlocked:
		return "⊘"
	case types.StepPendingApproval:
		return "…"
	default:
		return "-"
	}
}

func writeSteps(sb *strings.Builder, steps []types.Step) {
	for _, step := range steps {
		fmt.Fprintf(sb, "%s %s [%s]\n", stepMarker(step.Status), step.Label, step.Status)
		if step.Detail != "" {
			fmt.Fprintf(sb, "    %s\n", step.Detail)
		}
	}
}

// PrintRun outputs an agent run with its summary and step trail.
func (p *Printer) PrintRun(run *types.Run) {
	if run == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Run:      %s\n", run.ID)
	fmt.Fprintf(&sb, "Mode:     %s\n", run.Mode)
	fmt.Fprintf(&sb, "Target:   %s at %s\n", run.Role, run.Company)
	fmt.Fprintf(&sb, "Status:   %s\n", run.Status)
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Matches: %d  Applied: %d  Recruiters: %d  Referrals: %d\n",
		run.Summary.JobMatchesFound,
		run.Summary.ApplicationsSubmitted,
		run.Summary.RecruiterMessagesPrepared,
		run.Summary.ReferralRequestsPrepared,
	)
	sb.WriteString("\n")
	writeSteps(&sb, run.Steps)

	p.printBox("AGENT RUN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintBrowserRun outputs a browser run with the jobs it found.
func (p *Printer) PrintBrowserRun(run *types.BrowserRun) {
	if run == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Run:      %s\n", run.ID)
	fmt.Fprintf(&sb, "Query:    %s\n", run.Query)
	fmt.Fprintf(&sb, "Location: %s\n", run.Location)
	fmt.Fprintf(&sb, "Status:   %s\n", run.Status)
	sb.WriteString("\n")

	if len(run.DiscoveredJobs) > 0 {
		sb.WriteString("Discovered:\n")
		count := min(len(run.DiscoveredJobs), maxItemsToShow)
		for i := 0; i < count; i++ {
			job := run.DiscoveredJobs[i]
			fmt.Fprintf(&sb, "  • %s (%s)\n", job.Title, job.Company)
		}
		if len(run.DiscoveredJobs) > maxItemsToShow {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(run.DiscoveredJobs)-maxItemsToShow)
		}
		sb.WriteString("\n")
	}
	writeSteps(&sb, run.Steps)

	p.printBox("BROWSER RUN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintOpportunities outputs ranked opportunities with their network counts.
func (p *Printer) PrintOpportunities(opportunities []types.Opportunity) {
	if len(opportunities) == 0 {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total opportunities: %d\n\n", len(opportunities))

	count := min(len(opportunities), maxItemsToShow)
	for i := 0; i < count; i++ {
		opp := opportunities[i]
		fmt.Fprintf(&sb, "#%d  %s\n", i+1, opp.Job.Title)
		fmt.Fprintf(&sb, "    %s  Score: %d\n", opp.Job.Company, opp.Job.MatchScore)
		fmt.Fprintf(&sb, "    Recruiters: %d  Referrals: %d\n", opp.RecruiterMatches, opp.ReferralMatches)
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(opportunities) > maxItemsToShow {
		fmt.Fprintf(&sb, "\n... and %d more opportunities", len(opportunities)-maxItemsToShow)
	}

	p.printBox("TOP OPPORTUNITIES", sb.String())
}

// PrintExternalJobs outputs postings read from the public feeds.
func (p *Printer) PrintExternalJobs(jobs []types.ExternalJob) {
	if len(jobs) == 0 {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d postings:\n\n", len(jobs))

	count := min(len(jobs), maxItemsToShow)
	for i := 0; i < count; i++ {
		job := jobs[i]
		fmt.Fprintf(&sb, "• %s\n", job.Title)
		fmt.Fprintf(&sb, "  %s, %s [%s]\n", job.Company, job.Location, job.Source)
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(jobs) > maxItemsToShow {
		fmt.Fprintf(&sb, "\n... and %d more postings", len(jobs)-maxItemsToShow)
	}

	p.printBox("EXTERNAL JOBS", sb.String())
}

// PrintImport outputs the outcome of a feed import.
func (p *Printer) PrintImport(imported, skipped int, jobs []types.Job) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Imported: %d\n", imported)
	fmt.Fprintf(&sb, "Skipped:  %d\n", skipped)

	if len(jobs) > 0 {
		sb.WriteString("\n")
		count := min(len(jobs), maxItemsToShow)
		for i := 0; i < count; i++ {
			fmt.Fprintf(&sb, "  • %s (%s, %s)\n", jobs[i].Title, jobs[i].Company, jobs[i].Level)
		}
		if len(jobs) > maxItemsToShow {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(jobs)-maxItemsToShow)
		}
	}

	p.printBox("JOB IMPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintConfig outputs the agent policy configuration.
func (p *Printer) PrintConfig(cfg types.AgentConfig) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Daily application limit: %d\n", cfg.DailyApplicationLimit)
	fmt.Fprintf(&sb, "Daily outreach limit:    %d\n", cfg.DailyOutreachLimit)
	fmt.Fprintf(&sb, "Require human approval:  %t\n", cfg.RequireHumanApproval)
	fmt.Fprintf(&sb, "Message tone:            %s", cfg.PreferredMessageTone)

	p.printBox("AGENT CONFIG", sb.String())
}
