package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/escrow/pkg/domain"
)

// Store implements ports.TransactionStore in memory.
// Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	data    map[string]*domain.Transaction // transaction ID -> transaction (with tasks)
	taskIdx map[string]string              // task ID -> transaction ID
	offers  map[string]string              // offer ID -> transaction ID
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data:    make(map[string]*domain.Transaction),
		taskIdx: make(map[string]string),
		offers:  make(map[string]string),
	}
}

// CreateTransaction stores a deep copy of tx and its tasks.
func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offers[tx.OfferID]; ok && tx.OfferID != "" {
		return fmt.Errorf("offer %s: %w", tx.OfferID, domain.ErrDuplicateTransaction)
	}

	copied := tx.Clone()
	sortTasks(copied.Tasks)
	for i := range copied.Tasks {
		copied.Tasks[i].TransactionID = copied.ID
		s.taskIdx[copied.Tasks[i].ID] = copied.ID
	}
	s.data[copied.ID] = copied
	if copied.OfferID != "" {
		s.offers[copied.OfferID] = copied.ID
	}
	return nil
}

// GetTransaction returns a copy so the caller can't mutate store state directly by pointer.
func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.data[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return tx.Clone(), nil
}

// ListTransactions returns the user's transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Transaction, 0)
	for _, tx := range s.data {
		if tx.UserID == userID {
			out = append(out, tx.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteTransaction removes the transaction and its task index entries.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.data[id]
	if !ok {
		return nil
	}
	for _, task := range tx.Tasks {
		delete(s.taskIdx, task.ID)
	}
	if s.offers[tx.OfferID] == id {
		delete(s.offers, tx.OfferID)
	}
	delete(s.data, id)
	return nil
}

// GetTask returns a copy of a single task.
func (s *Store) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, _ := s.findTask(id)
	if task == nil {
		return nil, domain.ErrTaskNotFound
	}
	c := task.Clone()
	return &c, nil
}

// ListTasks returns copies of the transaction's tasks ordered by Order.
func (s *Store) ListTasks(ctx context.Context, transactionID string) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.data[transactionID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return tx.Clone().Tasks, nil
}

// SetTaskCompleted toggles a task in place.
func (s *Store) SetTaskCompleted(ctx context.Context, id string, completed bool, at time.Time) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, tx := s.findTask(id)
	if task == nil {
		return nil, domain.ErrTaskNotFound
	}
	task.Completed = completed
	task.CompletedAt = nil
	if completed {
		stamp := at
		task.CompletedAt = &stamp
	}
	tx.UpdatedAt = at

	c := task.Clone()
	return &c, nil
}

// CompareAndSetStatus applies next only if the stored status equals expected.
func (s *Store) CompareAndSetStatus(ctx context.Context, id string, expected, next domain.StageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.data[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if tx.Status != expected {
		return fmt.Errorf("expected %s, found %s: %w", expected, tx.Status, domain.ErrStatusConflict)
	}
	tx.Status = next
	tx.UpdatedAt = time.Now()
	return nil
}

// SetStatus overwrites the status.
func (s *Store) SetStatus(ctx context.Context, id string, status domain.StageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.data[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	tx.Status = status
	tx.UpdatedAt = time.Now()
	return nil
}

// findTask must be called with s.mu held.
func (s *Store) findTask(id string) (*domain.Task, *domain.Transaction) {
	txID, ok := s.taskIdx[id]
	if !ok {
		return nil, nil
	}
	tx := s.data[txID]
	for i := range tx.Tasks {
		if tx.Tasks[i].ID == id {
			return &tx.Tasks[i], tx
		}
	}
	return nil, nil
}

func sortTasks(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Order < tasks[j].Order
	})
}
