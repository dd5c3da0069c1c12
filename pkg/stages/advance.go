package stages

import "github.com/aretw0/escrow/pkg/domain"

// ShouldAutoAdvance decides whether a transaction at current should move forward,
// given every task of the transaction. It returns the next stage and true only when
// current auto-advances, all of its required tasks are completed, and a next stage
// exists. Unknown stages never advance.
//
// The decision depends only on its arguments, so callers may recompute it freely
// after a failed or conflicting write.
func (c Catalog) ShouldAutoAdvance(current domain.StageID, tasks []domain.TaskState) (domain.StageID, bool) {
	i := c.indexOf(current)
	if i < 0 {
		return "", false
	}
	stage := c.stages[i]
	if !stage.AutoAdvanceOnComplete {
		return "", false
	}

	if !TasksComplete(stage, CompletedTitles(tasks)) {
		return "", false
	}

	next, ok := c.Next(current)
	if !ok {
		return "", false
	}
	return next.ID, true
}

// ShouldAutoAdvance applies the default catalog.
func ShouldAutoAdvance(current domain.StageID, tasks []domain.TaskState) (domain.StageID, bool) {
	return defaultCatalog.ShouldAutoAdvance(current, tasks)
}
