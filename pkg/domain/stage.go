package domain

// StageID identifies one of the fixed phases of a closing transaction.
type StageID string

const (
	StageUnderContract    StageID = "under_contract"
	StageInspectionPeriod StageID = "inspection_period"
	StageFinancing        StageID = "financing"
	StageClearToClose     StageID = "clear_to_close"
	StageClosed           StageID = "closed"
)

// String implements fmt.Stringer.
func (s StageID) String() string {
	return string(s)
}

// StageDefinition describes a stage and the tasks gating its completion.
type StageDefinition struct {
	ID          StageID `json:"id" yaml:"id"`
	Label       string  `json:"label" yaml:"label"`
	Description string  `json:"description" yaml:"description"`

	// RequiredTaskTitles must all be completed for the stage to be done.
	// Titles are the join key between tasks and stages.
	RequiredTaskTitles []string `json:"requiredTaskTitles" yaml:"required_task_titles"`

	// AutoAdvanceOnComplete is false only for the terminal stage.
	AutoAdvanceOnComplete bool `json:"autoAdvanceOnComplete" yaml:"auto_advance_on_complete"`

	// Icon is a presentation hint for timeline views.
	Icon string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// Clone returns a copy that shares no slices with d.
func (d StageDefinition) Clone() StageDefinition {
	c := d
	c.RequiredTaskTitles = append([]string(nil), d.RequiredTaskTitles...)
	return c
}

// TaskState is the minimal view of a task consumed by the stage evaluator.
type TaskState struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}
