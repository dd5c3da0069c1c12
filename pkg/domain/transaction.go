package domain

import "time"

// Task is a checklist item belonging to a transaction.
type Task struct {
	ID            string     `json:"id"`
	TransactionID string     `json:"transactionId"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Kind          TaskKind   `json:"kind,omitempty"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	Order         int        `json:"order"`
}

// State projects the task onto the fields the stage evaluator reads.
func (t Task) State() TaskState {
	return TaskState{Title: t.Title, Completed: t.Completed}
}

// TaskKind tags a default checklist item independently of its display title.
type TaskKind string

// Transaction tracks an accepted offer through closing.
type Transaction struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	OfferID     string     `json:"offerId"`
	ListingID   string     `json:"listingId"`
	Status      StageID    `json:"status"`
	ClosingDate *time.Time `json:"closingDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Tasks       []Task     `json:"tasks,omitempty"`
}

// TaskStates returns the evaluator view of every task on the transaction.
func (t *Transaction) TaskStates() []TaskState {
	return TaskStates(t.Tasks)
}

// TaskStates projects a task list for the stage evaluator.
func TaskStates(tasks []Task) []TaskState {
	states := make([]TaskState, len(tasks))
	for i, task := range tasks {
		states[i] = task.State()
	}
	return states
}

// Clone returns a deep copy of the transaction, including its tasks.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	c.ClosingDate = cloneTime(t.ClosingDate)
	if t.Tasks != nil {
		c.Tasks = make([]Task, len(t.Tasks))
		for i, task := range t.Tasks {
			c.Tasks[i] = task.Clone()
		}
	}
	return &c
}

// Clone returns a copy of the task that shares no pointers with t.
func (t Task) Clone() Task {
	c := t
	c.DueDate = cloneTime(t.DueDate)
	c.CompletedAt = cloneTime(t.CompletedAt)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
