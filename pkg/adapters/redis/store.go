package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/escrow/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// maxWatchRetries bounds optimistic-lock retries for a single read-modify-write.
const maxWatchRetries = 16

// Store implements ports.TransactionStore using Redis.
//
// Layout (all keys under prefix):
//
//	tx:<id>          JSON transaction including its tasks
//	task:<id>        owning transaction ID
//	offer:<id>       transaction ID opened for the offer
//	user:<id>        ZSET of transaction IDs scored by creation time
type Store struct {
	client *backend.Client
	prefix string
}

type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "escrow:",
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) txKey(id string) string { return s.prefix + "tx:" + id }
func (s *Store) taskKey(id string) string { return s.prefix + "task:" + id }
func (s *Store) offerKey(id string) string { return s.prefix + "offer:" + id }
func (s *Store) userKey(id string) string { return s.prefix + "user:" + id }

// CreateTransaction reserves the offer and persists the transaction.
func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	copied := tx.Clone()
	for i := range copied.Tasks {
		copied.Tasks[i].TransactionID = copied.ID
	}
	sortTasks(copied.Tasks)

	data, err := json.Marshal(copied)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	if copied.OfferID != "" {
		reserved, err := s.client.SetNX(ctx, s.offerKey(copied.OfferID), copied.ID, 0).Result()
		if err != nil {
			return fmt.Errorf("failed to reserve offer: %w", err)
		}
		if !reserved {
			return fmt.Errorf("offer %s: %w", copied.OfferID, domain.ErrDuplicateTransaction)
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Set(ctx, s.txKey(copied.ID), data, 0)
		for _, task := range copied.Tasks {
			pipe.Set(ctx, s.taskKey(task.ID), copied.ID, 0)
		}
		pipe.ZAdd(ctx, s.userKey(copied.UserID), backend.Z{
			Score:  float64(copied.CreatedAt.UnixMilli()),
			Member: copied.ID,
		})
		return nil
	})
	if err != nil {
		if copied.OfferID != "" {
			// Drop the reservation unless another transaction has claimed it since.
			release := s.client.Eval(context.WithoutCancel(ctx), releaseScript, []string{s.offerKey(copied.OfferID)}, copied.ID)
			if rerr := release.Err(); rerr != nil {
				err = errors.Join(err, fmt.Errorf("failed to release offer %s: %w", copied.OfferID, rerr))
			}
		}
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// GetTransaction loads a transaction with its tasks.
func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	val, err := s.client.Get(ctx, s.txKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return decode(val)
}

// ListTransactions reads the user's index newest first.
func (s *Store) ListTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	ids, err := s.client.ZRevRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	out := make([]*domain.Transaction, 0, len(ids))
	for _, id := range ids {
		tx, err := s.GetTransaction(ctx, id)
		if errors.Is(err, domain.ErrTransactionNotFound) {
			continue // index entry outlived its transaction
		}
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// DeleteTransaction removes the transaction, its task pointers and index entries.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	tx, err := s.GetTransaction(ctx, id)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.txKey(id))
	for _, task := range tx.Tasks {
		pipe.Del(ctx, s.taskKey(task.ID))
	}
	if tx.OfferID != "" {
		pipe.Del(ctx, s.offerKey(tx.OfferID))
	}
	pipe.ZRem(ctx, s.userKey(tx.UserID), id)

	_, err = pipe.Exec(ctx)
	return err
}

// GetTask resolves the owning transaction and returns the task.
func (s *Store) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	txID, err := s.taskOwner(ctx, id)
	if err != nil {
		return nil, err
	}
	tx, err := s.GetTransaction(ctx, txID)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	task := findTask(tx, id)
	if task == nil {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

// ListTasks returns the tasks of a transaction.
func (s *Store) ListTasks(ctx context.Context, transactionID string) ([]domain.Task, error) {
	tx, err := s.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return tx.Tasks, nil
}

// SetTaskCompleted toggles a task under an optimistic WATCH on its transaction.
func (s *Store) SetTaskCompleted(ctx context.Context, id string, completed bool, at time.Time) (*domain.Task, error) {
	txID, err := s.taskOwner(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *domain.Task
	_, err = s.update(ctx, txID, domain.ErrTaskNotFound, func(tx *domain.Transaction) error {
		task := taskRef(tx, id)
		if task == nil {
			return domain.ErrTaskNotFound
		}
		task.Completed = completed
		task.CompletedAt = nil
		if completed {
			stamp := at
			task.CompletedAt = &stamp
		}
		tx.UpdatedAt = at
		c := task.Clone()
		updated = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CompareAndSetStatus moves the status only if it still equals expected.
func (s *Store) CompareAndSetStatus(ctx context.Context, id string, expected, next domain.StageID) error {
	_, err := s.update(ctx, id, domain.ErrTransactionNotFound, func(tx *domain.Transaction) error {
		if tx.Status != expected {
			return fmt.Errorf("expected %s, found %s: %w", expected, tx.Status, domain.ErrStatusConflict)
		}
		tx.Status = next
		tx.UpdatedAt = time.Now()
		return nil
	})
	return err
}

// SetStatus overwrites the status.
func (s *Store) SetStatus(ctx context.Context, id string, status domain.StageID) error {
	_, err := s.update(ctx, id, domain.ErrTransactionNotFound, func(tx *domain.Transaction) error {
		tx.Status = status
		tx.UpdatedAt = time.Now()
		return nil
	})
	return err
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) taskOwner(ctx context.Context, taskID string) (string, error) {
	txID, err := s.client.Get(ctx, s.taskKey(taskID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return "", domain.ErrTaskNotFound
		}
		return "", fmt.Errorf("failed to resolve task: %w", err)
	}
	return txID, nil
}

// update runs a read-modify-write of one transaction, retrying when another
// client writes the key between WATCH and EXEC.
func (s *Store) update(ctx context.Context, id string, notFound error, fn func(*domain.Transaction) error) (*domain.Transaction, error) {
	key := s.txKey(id)
	var result *domain.Transaction

	txf := func(rtx *backend.Tx) error {
		raw, err := rtx.Get(ctx, key).Bytes()
		if errors.Is(err, backend.Nil) {
			return notFound
		}
		if err != nil {
			return fmt.Errorf("failed to get from redis: %w", err)
		}
		tx, err := decode(raw)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
		data, err := json.Marshal(tx)
		if err != nil {
			return fmt.Errorf("failed to marshal transaction: %w", err)
		}
		_, err = rtx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = tx
		return nil
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, backend.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("transaction %s: too many concurrent writers", id)
}

func decode(raw []byte) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	return &tx, nil
}

func taskRef(tx *domain.Transaction, id string) *domain.Task {
	for i := range tx.Tasks {
		if tx.Tasks[i].ID == id {
			return &tx.Tasks[i]
		}
	}
	return nil
}

func findTask(tx *domain.Transaction, id string) *domain.Task {
	if t := taskRef(tx, id); t != nil {
		c := t.Clone()
		return &c
	}
	return nil
}

func sortTasks(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Order < tasks[j].Order
	})
}
