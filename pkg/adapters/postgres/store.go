package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/escrow/pkg/domain"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// uniqueViolation is the SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

const transactionColumns = `id, user_id, COALESCE(offer_id, ''), listing_id, status, closing_date, created_at, updated_at`

const taskColumns = `id, transaction_id, title, description, kind, due_date, completed, completed_at, position`

// Store implements ports.TransactionStore on PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// Option configures the Store.
type Option func(*Store)

// WithTracer records a span per query.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) {
		s.tracer = tracer
	}
}

// New wraps an existing pool. Run Migrate before first use.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:   pool,
		tracer: noop.NewTracerProvider().Tracer("escrow/postgres"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens a pool for dsn with query tracing and verifies connectivity.
func Connect(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing db config: %w", err)
	}
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return New(pool, opts...), nil
}

// Pool exposes the underlying pool (for migrations).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// traced wraps a database operation in a client span, recording any error on it.
func (s *Store) traced(ctx context.Context, name string, attrs []attribute.KeyValue, op func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	if err := op(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// CreateTransaction inserts the transaction and its tasks in one database transaction.
func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	attrs := []attribute.KeyValue{attribute.String("transaction_id", tx.ID), attribute.Int("task_count", len(tx.Tasks))}
	return s.traced(ctx, "postgres.create_transaction", attrs, func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, s.pool, func(dbtx pgx.Tx) error {
			_, err := dbtx.Exec(ctx, `
				INSERT INTO transactions (id, user_id, offer_id, listing_id, status, closing_date, created_at, updated_at)
				VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)`,
				tx.ID, tx.UserID, tx.OfferID, tx.ListingID, string(tx.Status), tx.ClosingDate, tx.CreatedAt, tx.UpdatedAt,
			)
			if err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
					return fmt.Errorf("offer %s: %w", tx.OfferID, domain.ErrDuplicateTransaction)
				}
				return fmt.Errorf("failed to insert transaction: %w", err)
			}

			batch := &pgx.Batch{}
			for _, task := range tx.Tasks {
				batch.Queue(`
					INSERT INTO tasks (id, transaction_id, title, description, kind, due_date, completed, completed_at, position)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
					task.ID, tx.ID, task.Title, task.Description, string(task.Kind), task.DueDate, task.Completed, task.CompletedAt, task.Order,
				)
			}
			if err := dbtx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("failed to insert tasks: %w", err)
			}
			return nil
		})
	})
}

// GetTransaction loads a transaction and its ordered tasks.
func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var tx *domain.Transaction
	err := s.traced(ctx, "postgres.get_transaction", []attribute.KeyValue{attribute.String("transaction_id", id)}, func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
		var err error
		tx, err = scanTransaction(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTransactionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load transaction: %w", err)
		}
		tx.Tasks, err = s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE transaction_id = $1 ORDER BY position`, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// ListTransactions returns the user's transactions newest first.
func (s *Store) ListTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	out := make([]*domain.Transaction, 0)
	err := s.traced(ctx, "postgres.list_transactions", []attribute.KeyValue{attribute.String("user_id", userID)}, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
		if err != nil {
			return fmt.Errorf("failed to list transactions: %w", err)
		}
		defer rows.Close()

		byID := make(map[string]*domain.Transaction)
		ids := make([]string, 0)
		for rows.Next() {
			tx, err := scanTransaction(rows)
			if err != nil {
				return fmt.Errorf("failed to scan transaction: %w", err)
			}
			out = append(out, tx)
			byID[tx.ID] = tx
			ids = append(ids, tx.ID)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		tasks, err := s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE transaction_id = ANY($1) ORDER BY transaction_id, position`, ids)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			tx := byID[task.TransactionID]
			tx.Tasks = append(tx.Tasks, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteTransaction removes a transaction; tasks cascade.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	return s.traced(ctx, "postgres.delete_transaction", []attribute.KeyValue{attribute.String("transaction_id", id)}, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
		return err
	})
}

// GetTask loads a single task.
func (s *Store) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	err := s.traced(ctx, "postgres.get_task", []attribute.KeyValue{attribute.String("task_id", id)}, func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
		err := scanTask(row, &task)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTaskNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks returns a transaction's tasks ordered by position.
func (s *Store) ListTasks(ctx context.Context, transactionID string) ([]domain.Task, error) {
	var tasks []domain.Task
	err := s.traced(ctx, "postgres.list_tasks", []attribute.KeyValue{attribute.String("transaction_id", transactionID)}, func(ctx context.Context) error {
		var err error
		tasks, err = s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE transaction_id = $1 ORDER BY position`, transactionID)
		return err
	})
	return tasks, err
}

// SetTaskCompleted toggles a task and touches its transaction.
func (s *Store) SetTaskCompleted(ctx context.Context, id string, completed bool, at time.Time) (*domain.Task, error) {
	var task domain.Task
	attrs := []attribute.KeyValue{attribute.String("task_id", id), attribute.Bool("completed", completed)}
	err := s.traced(ctx, "postgres.set_task_completed", attrs, func(ctx context.Context) error {
		var completedAt *time.Time
		if completed {
			completedAt = &at
		}
		return pgx.BeginFunc(ctx, s.pool, func(dbtx pgx.Tx) error {
			row := dbtx.QueryRow(ctx, `
				UPDATE tasks SET completed = $2, completed_at = $3 WHERE id = $1
				RETURNING `+taskColumns, id, completed, completedAt)
			err := scanTask(row, &task)
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrTaskNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to update task: %w", err)
			}
			if _, err := dbtx.Exec(ctx, `UPDATE transactions SET updated_at = $2 WHERE id = $1`, task.TransactionID, at); err != nil {
				return fmt.Errorf("failed to touch transaction: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// CompareAndSetStatus updates the status guarded by the expected value.
func (s *Store) CompareAndSetStatus(ctx context.Context, id string, expected, next domain.StageID) error {
	attrs := []attribute.KeyValue{
		attribute.String("transaction_id", id),
		attribute.String("from", string(expected)),
		attribute.String("to", string(next)),
	}
	return s.traced(ctx, "postgres.compare_and_set_status", attrs, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, `
			UPDATE transactions SET status = $3, updated_at = now()
			WHERE id = $1 AND status = $2`, id, string(expected), string(next))
		if err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}

		var current string
		err = s.pool.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTransactionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read status: %w", err)
		}
		return fmt.Errorf("expected %s, found %s: %w", expected, current, domain.ErrStatusConflict)
	})
}

// SetStatus overwrites the status.
func (s *Store) SetStatus(ctx context.Context, id string, status domain.StageID) error {
	return s.traced(ctx, "postgres.set_status", []attribute.KeyValue{attribute.String("transaction_id", id)}, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, `UPDATE transactions SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
		if err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrTransactionNotFound
		}
		return nil
	})
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		var task domain.Task
		if err := scanTask(rows, &task); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx     domain.Transaction
		status string
	)
	err := row.Scan(&tx.ID, &tx.UserID, &tx.OfferID, &tx.ListingID, &status, &tx.ClosingDate, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	tx.Status = domain.StageID(status)
	return &tx, nil
}

func scanTask(row pgx.Row, task *domain.Task) error {
	var kind string
	err := row.Scan(&task.ID, &task.TransactionID, &task.Title, &task.Description, &kind,
		&task.DueDate, &task.Completed, &task.CompletedAt, &task.Order)
	if err != nil {
		return err
	}
	task.Kind = domain.TaskKind(kind)
	return nil
}
