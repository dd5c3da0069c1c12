package ports

import (
	"context"
	"time"

	"github.com/aretw0/escrow/pkg/domain"
)

// TransactionStore defines the interface for persisting transactions and their tasks.
type TransactionStore interface {
	// CreateTransaction persists a new transaction together with tx.Tasks.
	// Returns domain.ErrDuplicateTransaction if the offer already has one.
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error

	// GetTransaction loads a transaction with its tasks ordered by Order.
	// Returns domain.ErrTransactionNotFound if it does not exist.
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)

	// ListTransactions returns the user's transactions, newest first, each with its tasks.
	ListTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error)

	// DeleteTransaction removes a transaction and its tasks.
	DeleteTransaction(ctx context.Context, id string) error

	// GetTask loads a single task.
	// Returns domain.ErrTaskNotFound if it does not exist.
	GetTask(ctx context.Context, id string) (*domain.Task, error)

	// ListTasks returns every task of a transaction ordered by Order.
	ListTasks(ctx context.Context, transactionID string) ([]domain.Task, error)

	// SetTaskCompleted toggles a task. CompletedAt is set to at when completed
	// and cleared otherwise.
	SetTaskCompleted(ctx context.Context, id string, completed bool, at time.Time) (*domain.Task, error)

	// CompareAndSetStatus moves a transaction from expected to next in a single
	// atomic step. Returns domain.ErrStatusConflict if the stored status is not expected.
	CompareAndSetStatus(ctx context.Context, id string, expected, next domain.StageID) error

	// SetStatus overwrites the status unconditionally (manual override).
	SetStatus(ctx context.Context, id string, status domain.StageID) error
}
