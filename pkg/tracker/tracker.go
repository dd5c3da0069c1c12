package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/escrow/internal/logging"
	"github.com/aretw0/escrow/pkg/domain"
	"github.com/aretw0/escrow/pkg/ports"
	"github.com/aretw0/escrow/pkg/stages"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// DefaultUserID is the account every request acts as until authentication exists.
const DefaultUserID = "user-1"

// Tracker orchestrates transaction access and stage advancement.
type Tracker struct {
	store   ports.TransactionStore
	catalog stages.Catalog

	locks   *keyedMutex
	locker  ports.DistributedLocker
	lockTTL time.Duration

	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
	userID string

	retryInitial time.Duration
	maxRetries   uint64
}

// Option configures the Tracker.
type Option func(*Tracker)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(t *Tracker) {
		t.locker = locker
	}
}

// WithLockTTL bounds how long a crashed replica can hold a transaction's distributed lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(t *Tracker) {
		if ttl > 0 {
			t.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Tracker.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithHooks registers lifecycle callbacks. Multiple calls are merged in order.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(t *Tracker) {
		t.hooks = t.hooks.Merge(hooks)
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithUserID sets the account the tracker acts for.
func WithUserID(userID string) Option {
	return func(t *Tracker) {
		t.userID = userID
	}
}

// WithCatalog replaces the default stage catalog.
func WithCatalog(catalog stages.Catalog) Option {
	return func(t *Tracker) {
		t.catalog = catalog
	}
}

// WithRetry tunes the backoff used when an advancement loses a status race.
func WithRetry(initial time.Duration, maxRetries uint64) Option {
	return func(t *Tracker) {
		t.retryInitial = initial
		t.maxRetries = maxRetries
	}
}

// New creates a Tracker over the given store.
func New(store ports.TransactionStore, opts ...Option) (*Tracker, error) {
	t := &Tracker{
		store:        store,
		catalog:      stages.Default(),
		locks:        newKeyedMutex(),
		lockTTL:      30 * time.Second,
		logger:       logging.NewNop(),
		now:          time.Now,
		userID:       DefaultUserID,
		retryInitial: 10 * time.Millisecond,
		maxRetries:   5,
	}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.catalog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stage catalog: %w", err)
	}
	return t, nil
}

// Catalog returns the stage catalog in use.
func (t *Tracker) Catalog() stages.Catalog {
	return t.catalog
}

// UserID returns the account the tracker acts for.
func (t *Tracker) UserID() string {
	return t.userID
}

// OpenRequest describes the accepted offer a transaction is opened from.
type OpenRequest struct {
	OfferID        string     `json:"offerId"`
	ListingID      string     `json:"listingId"`
	ClosingDate    *time.Time `json:"closingDate,omitempty"`
	InspectionDays int        `json:"inspectionDays,omitempty"`
	EarnestMoney   int64      `json:"earnestMoney,omitempty"`
}

// Open starts a transaction at the first stage with the default checklist.
func (t *Tracker) Open(ctx context.Context, req OpenRequest) (*domain.Transaction, error) {
	if req.OfferID == "" {
		return nil, fmt.Errorf("offer id is required: %w", domain.ErrInvalidRequest)
	}
	if req.InspectionDays < 0 {
		return nil, fmt.Errorf("inspection days must not be negative: %w", domain.ErrInvalidRequest)
	}

	now := t.now().UTC()
	first := t.catalog.All()[0].ID
	tx := &domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      t.userID,
		OfferID:     req.OfferID,
		ListingID:   req.ListingID,
		Status:      first,
		ClosingDate: req.ClosingDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx.Tasks = t.catalog.Checklist(stages.ChecklistOptions{
		Now:            now,
		ClosingDate:    req.ClosingDate,
		InspectionDays: req.InspectionDays,
		EarnestMoney:   req.EarnestMoney,
	})
	for i := range tx.Tasks {
		tx.Tasks[i].ID = uuid.NewString()
		tx.Tasks[i].TransactionID = tx.ID
	}

	if err := t.store.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to open transaction: %w", err)
	}

	t.logger.Info("Transaction opened", "transaction_id", tx.ID, "offer_id", tx.OfferID, "tasks", len(tx.Tasks))
	if t.hooks.OnTransactionOpened != nil {
		t.hooks.OnTransactionOpened(ctx, &domain.StageEvent{
			EventBase: t.event(domain.EventTransactionOpened, tx.ID),
			To:        first,
		})
	}
	return tx, nil
}

// Get loads a transaction owned by the tracker's user.
func (t *Tracker) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	tx, err := t.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.UserID != t.userID {
		return nil, domain.ErrTransactionNotFound
	}
	return tx, nil
}

// List returns the user's transactions, newest first.
func (t *Tracker) List(ctx context.Context) ([]*domain.Transaction, error) {
	return t.store.ListTransactions(ctx, t.userID)
}

// TaskUpdate is the outcome of UpdateTask.
type TaskUpdate struct {
	Task *domain.Task

	// AdvancedTo is the stage the transaction moved into, or nil.
	AdvancedTo *domain.StageDefinition
}

// UpdateTask toggles a task and, when it was completed, advances the
// transaction by at most one stage if the current stage is now satisfied.
func (t *Tracker) UpdateTask(ctx context.Context, taskID string, completed bool) (TaskUpdate, error) {
	task, err := t.store.GetTask(ctx, taskID)
	if err != nil {
		return TaskUpdate{}, err
	}
	tx, err := t.store.GetTransaction(ctx, task.TransactionID)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return TaskUpdate{}, domain.ErrTaskNotFound
	}
	if err != nil {
		return TaskUpdate{}, err
	}
	if tx.UserID != t.userID {
		return TaskUpdate{}, domain.ErrTaskNotFound
	}

	var result TaskUpdate
	err = t.withLock(ctx, tx.ID, func(ctx context.Context) error {
		updated, err := t.store.SetTaskCompleted(ctx, taskID, completed, t.now().UTC())
		if err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		result.Task = updated

		t.logger.Debug("Task updated", "transaction_id", tx.ID, "task_id", taskID, "completed", completed)
		if t.hooks.OnTaskUpdated != nil {
			t.hooks.OnTaskUpdated(ctx, &domain.TaskEvent{
				EventBase: t.event(domain.EventTaskUpdated, tx.ID),
				TaskID:    taskID,
				Title:     updated.Title,
				Completed: completed,
			})
		}

		// Unchecking never moves a transaction backwards.
		if !completed {
			return nil
		}

		result.AdvancedTo, err = t.advance(ctx, tx.ID)
		return err
	})
	if err != nil {
		return TaskUpdate{}, err
	}
	return result, nil
}

// advance re-reads the transaction, decides, and commits with compare-and-set.
// A lost race re-reads and decides again, so the committed move always matches
// the status it was computed from.
func (t *Tracker) advance(ctx context.Context, transactionID string) (*domain.StageDefinition, error) {
	var advanced *domain.StageDefinition

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.retryInitial
	bo.MaxElapsedTime = 0

	operation := func() error {
		advanced = nil

		tx, err := t.store.GetTransaction(ctx, transactionID)
		if err != nil {
			return backoff.Permanent(err)
		}

		next, ok := t.catalog.ShouldAutoAdvance(tx.Status, tx.TaskStates())
		if !ok {
			return nil
		}

		err = t.store.CompareAndSetStatus(ctx, tx.ID, tx.Status, next)
		if errors.Is(err, domain.ErrStatusConflict) {
			t.logger.Debug("Stage advance lost a race, re-evaluating",
				"transaction_id", tx.ID, "from", tx.Status, "to", next)
			if t.hooks.OnAdvanceConflict != nil {
				t.hooks.OnAdvanceConflict(ctx, &domain.StageEvent{
					EventBase: t.event(domain.EventAdvanceConflict, tx.ID),
					From:      tx.Status,
					To:        next,
				})
			}
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}

		def, _ := t.catalog.Definition(next)
		advanced = &def

		t.logger.Info("Stage advanced", "transaction_id", tx.ID, "from", tx.Status, "to", next)
		if t.hooks.OnStageAdvanced != nil {
			t.hooks.OnStageAdvanced(ctx, &domain.StageEvent{
				EventBase: t.event(domain.EventStageAdvanced, tx.ID),
				From:      tx.Status,
				To:        next,
			})
		}
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, t.maxRetries), ctx))
	if errors.Is(err, domain.ErrStatusConflict) {
		// The status kept moving under us; whoever moved it decided with fresher data.
		t.logger.Warn("Stage advance abandoned after repeated conflicts", "transaction_id", transactionID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to advance stage: %w", err)
	}
	return advanced, nil
}

// SetStatus overrides a transaction's stage without consulting its tasks.
func (t *Tracker) SetStatus(ctx context.Context, id string, status domain.StageID) (*domain.Transaction, error) {
	if !t.catalog.IsValid(status) {
		return nil, fmt.Errorf("%q: %w", status, domain.ErrInvalidStage)
	}
	tx, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = t.withLock(ctx, tx.ID, func(ctx context.Context) error {
		current, err := t.store.GetTransaction(ctx, tx.ID)
		if err != nil {
			return err
		}
		if err := t.store.SetStatus(ctx, tx.ID, status); err != nil {
			return fmt.Errorf("failed to set status: %w", err)
		}

		t.logger.Info("Stage overridden", "transaction_id", tx.ID, "from", current.Status, "to", status)
		if t.hooks.OnStageOverridden != nil {
			t.hooks.OnStageOverridden(ctx, &domain.StageEvent{
				EventBase: t.event(domain.EventStageOverridden, tx.ID),
				From:      current.Status,
				To:        status,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t.Get(ctx, id)
}

// Timeline is the display view of a transaction's position in the pipeline.
type Timeline struct {
	Transaction *domain.Transaction
	Current     domain.StageDefinition
	Completed   []domain.StageDefinition
	Upcoming    []domain.StageDefinition
	Progress    []stages.Progress
}

// Timeline loads a transaction and projects it onto the catalog.
func (t *Tracker) Timeline(ctx context.Context, id string) (*Timeline, error) {
	tx, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildTimeline(t.catalog, tx), nil
}

// BuildTimeline projects tx onto catalog. A status outside the catalog is kept
// as the current stage with its raw ID as the label.
func BuildTimeline(catalog stages.Catalog, tx *domain.Transaction) *Timeline {
	current, ok := catalog.Definition(tx.Status)
	if !ok {
		current = domain.StageDefinition{ID: tx.Status, Label: string(tx.Status)}
	}

	states := tx.TaskStates()
	all := catalog.All()
	progress := make([]stages.Progress, 0, len(all))
	for _, def := range all {
		progress = append(progress, stages.StageProgress(def, states))
	}

	return &Timeline{
		Transaction: tx,
		Current:     current,
		Completed:   catalog.Completed(tx.Status),
		Upcoming:    catalog.Upcoming(tx.Status),
		Progress:    progress,
	}
}

func (t *Tracker) event(kind domain.EventType, transactionID string) domain.EventBase {
	return domain.EventBase{
		Timestamp:     t.now().UTC(),
		Type:          kind,
		TransactionID: transactionID,
	}
}
