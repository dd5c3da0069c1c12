package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTransactionOpened EventType = "transaction_opened"
	EventTaskUpdated       EventType = "task_updated"
	EventStageAdvanced     EventType = "stage_advanced"
	EventStageOverridden   EventType = "stage_overridden"
	EventAdvanceConflict   EventType = "advance_conflict"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp     time.Time `json:"timestamp"`
	Type          EventType `json:"type"`
	TransactionID string    `json:"transactionId"`
}

// TaskEvent reports a task completion toggle.
type TaskEvent struct {
	EventBase
	TaskID    string `json:"taskId"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// StageEvent reports a stage change, or a lost race to change it.
type StageEvent struct {
	EventBase
	From StageID `json:"from"`
	To   StageID `json:"to"`
}

// LifecycleHooks defines callbacks for tracker observability.
// Any hook may be nil.
type LifecycleHooks struct {
	OnTransactionOpened func(context.Context, *StageEvent)
	OnTaskUpdated       func(context.Context, *TaskEvent)
	OnStageAdvanced     func(context.Context, *StageEvent)
	OnStageOverridden   func(context.Context, *StageEvent)
	OnAdvanceConflict   func(context.Context, *StageEvent)
}

// Merge returns hooks that invoke h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTransactionOpened: chain(h.OnTransactionOpened, other.OnTransactionOpened),
		OnTaskUpdated:       chain(h.OnTaskUpdated, other.OnTaskUpdated),
		OnStageAdvanced:     chain(h.OnStageAdvanced, other.OnStageAdvanced),
		OnStageOverridden:   chain(h.OnStageOverridden, other.OnStageOverridden),
		OnAdvanceConflict:   chain(h.OnAdvanceConflict, other.OnAdvanceConflict),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
