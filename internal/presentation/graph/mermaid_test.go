package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/escrow/internal/presentation/graph"
	"github.com/aretw0/escrow/pkg/domain"
	"github.com/aretw0/escrow/pkg/stages"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name        string
		defs        []domain.StageDefinition
		overlay     *graph.GraphOverlay
		contains    []string
		notContains []string
	}{
		{
			name: "Default Pipeline Shapes",
			defs: stages.All(),
			contains: []string{
				"graph LR",
				"under_contract((\"Under Contract\"))",
				"financing[\"Financing\"]",
				"closed([\"Closed\"])",
			},
			notContains: []string{"classDef"},
		},
		{
			name: "Edges Count Gating Tasks",
			defs: stages.All(),
			contains: []string{
				"under_contract -- \"1 task\" --> inspection_period",
				"inspection_period -- \"2 tasks\" --> financing",
				"clear_to_close -- \"4 tasks\" --> closed",
			},
		},
		{
			name: "Manual Edge After Non-Advancing Stage",
			defs: []domain.StageDefinition{
				{ID: "a", Label: "A", AutoAdvanceOnComplete: false},
				{ID: "b", Label: "B"},
			},
			contains: []string{"a -.-> b"},
		},
		{
			name: "ID And Label Sanitization",
			defs: []domain.StageDefinition{
				{ID: "pre-close.check", Label: "Say \"hi\"", AutoAdvanceOnComplete: true},
			},
			contains: []string{"pre_close_check((\"Say 'hi'\"))"},
		},
		{
			name: "Overlay",
			defs: stages.All(),
			overlay: &graph.GraphOverlay{
				CompletedStages: []domain.StageID{domain.StageUnderContract, domain.StageUnderContract, domain.StageInspectionPeriod},
				CurrentStage:    domain.StageFinancing,
			},
			contains: []string{
				"classDef completed",
				"class under_contract completed;",
				"class inspection_period completed;",
				"class financing current;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.defs, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Expected output to contain %q, got:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(got, unwanted) {
					t.Errorf("Expected output NOT to contain %q, got:\n%s", unwanted, got)
				}
			}
			if tt.overlay != nil && strings.Count(got, "class under_contract completed;") != 1 {
				t.Errorf("Expected completed stages to be deduplicated, got:\n%s", got)
			}
		})
	}
}
