package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/escrow/pkg/domain"
	"github.com/aretw0/escrow/pkg/stages"
	"github.com/aretw0/escrow/pkg/tracker"
)

const dateLayout = "Jan 2, 2006"

// RenderTimeline formats a transaction timeline as markdown.
func RenderTimeline(tl *tracker.Timeline) string {
	var sb strings.Builder
	tx := tl.Transaction

	fmt.Fprintf(&sb, "# Transaction `%s`\n\n", tx.ID)
	fmt.Fprintf(&sb, "**Stage:** %s", tl.Current.Label)
	if tl.Current.Description != "" {
		fmt.Fprintf(&sb, ": %s", tl.Current.Description)
	}
	sb.WriteString("\n\n")
	if tx.ClosingDate != nil {
		fmt.Fprintf(&sb, "**Target closing:** %s\n\n", tx.ClosingDate.Format(dateLayout))
	}

	sb.WriteString("## Pipeline\n\n")
	progress := make(map[domain.StageID]stages.Progress, len(tl.Progress))
	for _, p := range tl.Progress {
		progress[p.Stage] = p
	}
	for _, def := range tl.Completed {
		fmt.Fprintf(&sb, "- [x] %s\n", def.Label)
	}
	fmt.Fprintf(&sb, "- [ ] **%s** (current%s)\n", tl.Current.Label, counts(progress, tl.Current.ID))
	for _, def := range tl.Upcoming {
		fmt.Fprintf(&sb, "- [ ] %s%s\n", def.Label, parenCounts(progress, def.ID))
	}

	if len(tx.Tasks) > 0 {
		sb.WriteString("\n## Tasks\n\n")
		sb.WriteString("| # | Task | Due | Done |\n")
		sb.WriteString("|---|------|-----|------|\n")
		for _, task := range tx.Tasks {
			due := "-"
			if task.DueDate != nil {
				due = task.DueDate.Format(dateLayout)
			}
			done := " "
			if task.Completed {
				done = "x"
			}
			fmt.Fprintf(&sb, "| %d | %s | %s | %s |\n", task.Order, task.Title, due, done)
		}
	}

	return sb.String()
}

// RenderDecision formats the outcome of an offline advancement check.
func RenderDecision(current domain.StageID, next domain.StageID, advanced bool, p stages.Progress) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Current stage:** %s\n\n", stages.Label(current))
	if advanced {
		fmt.Fprintf(&sb, "Advances to **%s**.\n", stages.Label(next))
		return sb.String()
	}
	sb.WriteString("Does not advance.\n")
	if len(p.Missing) > 0 {
		sb.WriteString("\nStill missing:\n\n")
		for _, title := range p.Missing {
			fmt.Fprintf(&sb, "- %s\n", title)
		}
	}
	return sb.String()
}

func counts(progress map[domain.StageID]stages.Progress, id domain.StageID) string {
	p, ok := progress[id]
	if !ok || p.Required == 0 {
		return ""
	}
	return fmt.Sprintf(", %d/%d tasks", p.Done, p.Required)
}

func parenCounts(progress map[domain.StageID]stages.Progress, id domain.StageID) string {
	p, ok := progress[id]
	if !ok || p.Required == 0 {
		return ""
	}
	return fmt.Sprintf(" (%d/%d tasks)", p.Done, p.Required)
}
