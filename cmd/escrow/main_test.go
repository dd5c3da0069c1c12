package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/escrow/pkg/domain"
	"github.com/aretw0/escrow/pkg/stages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAdvanceCommand(t *testing.T) {
	out, err := run(t, "advance", "--stage", "under_contract", "--done", stages.TitleEarnestMoney)
	require.NoError(t, err)
	assert.Contains(t, out, "Advances to **Inspection Period**")

	out, err = run(t, "advance", "--stage", "inspection_period", "--done", stages.TitleHomeInspection)
	require.NoError(t, err)
	assert.Contains(t, out, "Does not advance.")
	assert.Contains(t, out, stages.TitleTitleReport)

	out, err = run(t, "advance", "--stage", "closed", "--done", stages.TitleAttendClosing)
	require.NoError(t, err)
	assert.Contains(t, out, "Does not advance.")

	_, err = run(t, "advance", "--stage", "escrow")
	assert.ErrorIs(t, err, domain.ErrInvalidStage)
}

func TestAdvanceCommand_ExampleAdvances(t *testing.T) {
	example := newAdvanceCmd().Example
	_, quoted, found := strings.Cut(example, `--done "`)
	require.True(t, found, example)
	title, _, found := strings.Cut(quoted, `"`)
	require.True(t, found, example)

	_, ok := stages.KindForTitle(title)
	assert.True(t, ok, "example title %q is not a checklist title", title)

	out, err := run(t, "advance", "--stage", "under_contract", "--done", title)
	require.NoError(t, err)
	assert.Contains(t, out, "Advances to **Inspection Period**")
}

func TestStagesCommand(t *testing.T) {
	out, err := run(t, "stages")
	require.NoError(t, err)
	assert.Contains(t, out, "Under Contract")
	assert.Contains(t, out, stages.TitleWireFunds)

	out, err = run(t, "stages", "--check")
	require.NoError(t, err)
	assert.Contains(t, out, "valid (5 stages)")
}

func TestGraphCommand(t *testing.T) {
	out, err := run(t, "graph", "--current", "financing")
	require.NoError(t, err)
	assert.Contains(t, out, "graph LR")
	assert.Contains(t, out, "class financing current;")
	assert.Contains(t, out, "class under_contract completed;")

	_, err = run(t, "graph", "--current", "nowhere")
	assert.ErrorIs(t, err, domain.ErrInvalidStage)
}

func TestTimelineCommand_NotFound(t *testing.T) {
	_, err := run(t, "timeline", "missing")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "escrow version 0.1.0")
}
