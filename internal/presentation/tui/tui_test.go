package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/escrow/pkg/domain"
	"github.com/aretw0/escrow/pkg/stages"
	"github.com/aretw0/escrow/pkg/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTimeline(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	closing := now.Add(30 * 24 * time.Hour)
	tasks := stages.DefaultChecklist(stages.ChecklistOptions{Now: now, ClosingDate: &closing})
	tasks[0].Completed = true
	tasks[1].Completed = true

	tx := &domain.Transaction{
		ID:          "tx-1",
		Status:      domain.StageInspectionPeriod,
		ClosingDate: &closing,
		Tasks:       tasks,
	}
	md := RenderTimeline(tracker.BuildTimeline(stages.Default(), tx))

	assert.Contains(t, md, "# Transaction `tx-1`")
	assert.Contains(t, md, "**Stage:** Inspection Period")
	assert.Contains(t, md, "**Target closing:** Apr 1, 2026")
	assert.Contains(t, md, "- [x] Under Contract")
	assert.Contains(t, md, "- [ ] **Inspection Period** (current, 1/2 tasks)")
	assert.Contains(t, md, "- [ ] Clear to Close (0/4 tasks)")
	assert.Contains(t, md, "| 1 | "+stages.TitleEarnestMoney+" | Mar 5, 2026 | x |")
	assert.Equal(t, 10, strings.Count(md, "\n| ")-1, "one row per task plus the header")
}

func TestRenderDecision(t *testing.T) {
	md := RenderDecision(domain.StageUnderContract, domain.StageInspectionPeriod, true, stages.Progress{})
	assert.Contains(t, md, "Advances to **Inspection Period**")

	ctc, ok := stages.Definition(domain.StageClearToClose)
	require.True(t, ok)
	p := stages.StageProgress(ctc, []domain.TaskState{{Title: stages.TitleInsurance, Completed: true}})
	md = RenderDecision(domain.StageClearToClose, "", false, p)
	assert.Contains(t, md, "Does not advance.")
	assert.Contains(t, md, "- "+stages.TitleWireFunds)
	assert.NotContains(t, md, "- "+stages.TitleInsurance)
}

func TestNewRenderer_NonTerminalPassesThrough(t *testing.T) {
	render := NewRenderer(nil)
	out, err := render("# Title")
	require.NoError(t, err)
	assert.Equal(t, "# Title", out)
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "___")
}
