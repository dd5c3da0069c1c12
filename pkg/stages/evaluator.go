package stages

import "github.com/aretw0/escrow/pkg/domain"

// TasksComplete reports whether every required title of stage appears in
// completedTitles. Matching is exact string equality. A stage with no required
// titles is complete.
func TasksComplete(stage domain.StageDefinition, completedTitles []string) bool {
	done := make(map[string]struct{}, len(completedTitles))
	for _, title := range completedTitles {
		done[title] = struct{}{}
	}
	for _, required := range stage.RequiredTaskTitles {
		if _, ok := done[required]; !ok {
			return false
		}
	}
	return true
}

// CompletedTitles returns the titles of the completed tasks, in input order.
func CompletedTitles(tasks []domain.TaskState) []string {
	titles := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.Completed {
			titles = append(titles, t.Title)
		}
	}
	return titles
}

// Progress counts how many of a stage's required titles are done.
type Progress struct {
	Stage    domain.StageID `json:"stage"`
	Done     int            `json:"done"`
	Required int            `json:"required"`
	Missing  []string       `json:"missing,omitempty"`
}

// Complete reports whether no required title is missing.
func (p Progress) Complete() bool {
	return len(p.Missing) == 0
}

// StageProgress measures a stage against the given tasks.
func StageProgress(stage domain.StageDefinition, tasks []domain.TaskState) Progress {
	done := make(map[string]struct{})
	for _, title := range CompletedTitles(tasks) {
		done[title] = struct{}{}
	}
	p := Progress{Stage: stage.ID, Required: len(stage.RequiredTaskTitles)}
	for _, required := range stage.RequiredTaskTitles {
		if _, ok := done[required]; ok {
			p.Done++
			continue
		}
		p.Missing = append(p.Missing, required)
	}
	return p
}
