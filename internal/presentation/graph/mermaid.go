package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/escrow/pkg/domain"
)

// GraphOverlay contains transaction state to visualize on the pipeline.
type GraphOverlay struct {
	CompletedStages []domain.StageID
	CurrentStage    domain.StageID
}

// GenerateMermaid produces a Mermaid flowchart of the stage pipeline.
// It applies semantic styling:
// - First stage: ((Circle))
// - Terminal stage (no auto-advance): ([Stadium])
// - Default: [Rectangle]
// Each edge is labelled with the number of tasks that gate it.
// It also applies overlay styles (Completed/Current) if provided.
func GenerateMermaid(defs []domain.StageDefinition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for i, def := range defs {
		safeID := sanitizeMermaidID(string(def.ID))

		opener, closer := "[", "]"
		switch {
		case i == 0:
			opener, closer = "((", "))"
		case !def.AutoAdvanceOnComplete:
			opener, closer = "([", "])"
		}

		label := strings.ReplaceAll(def.Label, "\"", "'")
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))
	}

	for i := 0; i+1 < len(defs); i++ {
		from, to := defs[i], defs[i+1]
		arrow := fmt.Sprintf("-- \"%s\" -->", tasksLabel(len(from.RequiredTaskTitles)))
		if !from.AutoAdvanceOnComplete {
			// Reachable only through a manual override.
			arrow = "-.->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(string(from.ID)), arrow, sanitizeMermaidID(string(to.ID))))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef completed fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.CompletedStages {
			safeID := sanitizeMermaidID(string(id))
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s completed;\n", safeID))
			}
		}

		if overlay.CurrentStage != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(string(overlay.CurrentStage))))
		}
	}

	return sb.String()
}

func tasksLabel(n int) string {
	if n == 1 {
		return "1 task"
	}
	return fmt.Sprintf("%d tasks", n)
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
