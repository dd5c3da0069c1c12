package tracker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/escrow/pkg/adapters/memory"
	"github.com/aretw0/escrow/pkg/domain"
	"github.com/aretw0/escrow/pkg/stages"
	"github.com/aretw0/escrow/pkg/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTracker(t *testing.T, opts ...tracker.Option) (*tracker.Tracker, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	opts = append([]tracker.Option{
		tracker.WithClock(func() time.Time { return fixedNow }),
		tracker.WithRetry(time.Millisecond, 5),
	}, opts...)
	tr, err := tracker.New(store, opts...)
	require.NoError(t, err)
	return tr, store
}

func taskByTitle(t *testing.T, tx *domain.Transaction, title string) domain.Task {
	t.Helper()
	for _, task := range tx.Tasks {
		if task.Title == title {
			return task
		}
	}
	t.Fatalf("task %q not found", title)
	return domain.Task{}
}

func TestTracker_Open(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	closing := fixedNow.Add(30 * 24 * time.Hour)

	tx, err := tr.Open(ctx, tracker.OpenRequest{
		OfferID:      "offer-1",
		ListingID:    "listing-1",
		ClosingDate:  &closing,
		EarnestMoney: 15000,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, domain.StageUnderContract, tx.Status)
	assert.Equal(t, tracker.DefaultUserID, tx.UserID)
	assert.Equal(t, fixedNow, tx.CreatedAt)
	require.Len(t, tx.Tasks, 10)
	for i, task := range tx.Tasks {
		assert.NotEmpty(t, task.ID)
		assert.Equal(t, tx.ID, task.TransactionID)
		assert.Equal(t, i+1, task.Order)
	}

	loaded, err := tr.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Tasks, 10)

	_, err = tr.Open(ctx, tracker.OpenRequest{OfferID: "offer-1"})
	assert.ErrorIs(t, err, domain.ErrDuplicateTransaction)

	_, err = tr.Open(ctx, tracker.OpenRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestTracker_UpdateTask_Advances(t *testing.T) {
	var advanced []domain.StageEvent
	tr, _ := newTracker(t, tracker.WithHooks(domain.LifecycleHooks{
		OnStageAdvanced: func(_ context.Context, e *domain.StageEvent) {
			advanced = append(advanced, *e)
		},
	}))
	ctx := context.Background()

	tx, err := tr.Open(ctx, tracker.OpenRequest{OfferID: "offer-1"})
	require.NoError(t, err)

	res, err := tr.UpdateTask(ctx, taskByTitle(t, tx, stages.TitleEarnestMoney).ID, true)
	require.NoError(t, err)
	assert.True(t, res.Task.Completed)
	require.NotNil(t, res.Task.CompletedAt)
	require.NotNil(t, res.AdvancedTo)
	assert.Equal(t, domain.StageInspectionPeriod, res.AdvancedTo.ID)
	assert.Equal(t, "Inspection Period", res.AdvancedTo.Label)

	// Half of the inspection stage is not enough.
	res, err = tr.UpdateTask(ctx, taskByTitle(t, tx, stages.TitleHomeInspection).ID, true)
	require.NoError(t, err)
	assert.Nil(t, res.AdvancedTo)

	res, err = tr.UpdateTask(ctx, taskByTitle(t, tx, stages.TitleTitleReport).ID, true)
	require.NoError(t, err)
	require.NotNil(t, res.AdvancedTo)
	assert.Equal(t, domain.StageFinancing, res.AdvancedTo.ID)

	require.Len(t, advanced, 2)
	assert.Equal(t, domain.StageUnderContract, advanced[0].From)
	assert.Equal(t, domain.StageInspectionPeriod, advanced[0].To)
	assert.Equal(t, tx.ID, advanced[1].TransactionID)

	loaded, err := tr.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageFinancing, loaded.Status)
}

func TestTracker_UpdateTask_OneStagePerCall(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	tx, err := tr.Open(ctx, tracker.OpenRequest{OfferID: "offer-1"})
	require.NoError(t, err)

	// Satisfy inspection and financing before the earnest money deposit.
	for _, title := range []string{stages.TitleHomeInspection, stages.TitleTitleReport, stages.TitleLoanApplication, stages.TitleAppraisal} {
		res, err := tr.UpdateTask(ctx, taskByTitle(t, tx, title).ID, true)
		require.NoError(t, err)
		assert.Nil(t, res.AdvancedTo, "%s must not advance while under contract", title)
	}

	res, err := tr.UpdateTask(ctx, taskByTitle(t, tx, stages.TitleEarnestMoney).ID, true)
	require.NoError(t, err)
	require.NotNil(t, res.AdvancedTo)
	assert.Equal(t, domain.StageInspectionPeriod, res.AdvancedTo.ID, "completing a task advances at most one stage")
}

func TestTracker_UpdateTask_UncheckNeverRegresses(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	tx, err := tr.Open(ctx, tracker.OpenRequest{OfferID: "offer-1"})
	require.NoError(t, err)
	earnest := taskByTitle(t, tx, stages.TitleEarnestMoney)

	_, err = tr.UpdateTask(ctx, earnest.ID, true)
	require.NoError(t, err)

	res, err := tr.UpdateTask(ctx, earnest.ID, false)
	require.NoError(t, err)
	assert.False(t, res.Task.Completed)
	assert.Nil(t, res.Task.CompletedAt)
	assert.Nil(t, res.AdvancedTo)

	loaded, err := tr.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageInspectionPeriod, loaded.Status)
}

func TestTracker_ClosedIsTerminal(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	tx, err := tr.Open(ctx, tracker.OpenRequest{OfferID: "offer-1"})
	require.NoError(t, err)

	var last domain.StageID
	for _, task := range tx.Tasks {
		res, err := tr.UpdateTask(ctx, task.ID, true)
		require.NoError(t, err)
		if res.AdvancedTo != nil {
			last = res.AdvancedTo.ID
		}
	}
	assert.Equal(t, domain.StageClosed, last)

	res, err := tr.UpdateTask(ctx, taskByTitle(t, tx, stages.TitleAttendClosing).ID, true)
	require.NoError(t, err)
	assert.Nil(t, res.AdvancedTo)
}

func TestTracker_Ownership(t *testing.T) {
	store := memory.NewStore()
	owner, err := tracker.New(store, tracker.WithUserID("alice"))
	require.NoError(t, err)
	intruder, err := tracker.New(store, tracker.WithUserID("mallory"))
	require.NoError(t, err)
	ctx := context.Background()

	tx, err := owner.Open(ctx, tracker.OpenRequest{OfferID: "offer-1"})
	require.NoError(t, err)

	_, err = intruder.Get(ctx, tx.ID)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	_, err = intruder.UpdateTask(ctx, tx.Tasks[0].ID, true)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	_, err = intruder.SetStatus(ctx, tx.ID, domain.StageClosed)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	list, err := intruder.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	loaded, err := owner.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.False(t, loaded.Tasks[0].Completed, "foreign update must not be applied")
}

func TestTracker_SetStatus(t *testing.T) {
	var overridden *domain.StageEvent
	tr, _ := newTracker(t, tracker.WithHooks(domain.LifecycleHooks{
		OnStageOverridden: func(_ context.Context, e *domain.StageEvent) { overridden = e },
	}))
	ctx := context.Background()

	tx, err := tr.Open(ctx, tracker.OpenRequest{OfferID: "offer-1"})
	require.NoError(t, err)

	updated, err := tr.SetStatus(ctx, tx.ID, domain.StageClearToClose)
	require.NoError(t, err)
	assert.Equal(t, domain.StageClearToClose, updated.Status)
	require.NotNil(t, overridden)
	assert.Equal(t, domain.StageUnderContract, overridden.From)
	assert.Equal(t, domain.StageClearToClose, overridden.To)

	_, err = tr.SetStatus(ctx, tx.ID, "escrow")
	assert.ErrorIs(t, err, domain.ErrInvalidStage)

	_, err = tr.SetStatus(ctx, "missing", domain.StageClosed)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestTracker_Timeline(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	tx, err := tr.Open(ctx, tracker.OpenRequest{OfferID: "offer-1"})
	require.NoError(t, err)
	_, err = tr.UpdateTask(ctx, taskByTitle(t, tx, stages.TitleEarnestMoney).ID, true)
	require.NoError(t, err)
	_, err = tr.UpdateTask(ctx, taskByTitle(t, tx, stages.TitleHomeInspection).ID, true)
	require.NoError(t, err)

	tl, err := tr.Timeline(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageInspectionPeriod, tl.Current.ID)
	require.Len(t, tl.Completed, 1)
	assert.Equal(t, domain.StageUnderContract, tl.Completed[0].ID)
	assert.Len(t, tl.Upcoming, 3)
	require.Len(t, tl.Progress, 5)
	assert.True(t, tl.Progress[0].Complete())
	assert.Equal(t, 1, tl.Progress[1].Done)
	assert.Equal(t, []string{stages.TitleTitleReport}, tl.Progress[1].Missing)
}

func TestBuildTimeline_UnknownStatus(t *testing.T) {
	tl := tracker.BuildTimeline(stages.Default(), &domain.Transaction{ID: "tx", Status: "escrow"})
	assert.Equal(t, domain.StageID("escrow"), tl.Current.ID)
	assert.Equal(t, "escrow", tl.Current.Label)
	assert.Empty(t, tl.Completed)
	assert.Empty(t, tl.Upcoming)
}

func TestTracker_InvalidCatalog(t *testing.T) {
	_, err := tracker.New(memory.NewStore(), tracker.WithCatalog(stages.NewCatalog()))
	assert.Error(t, err)
}

// conflictStore moves the status behind the tracker's back before the first
// compare-and-set lands.
type conflictStore struct {
	*memory.Store
	conflicts atomic.Int32
	interfere func(ctx context.Context, id string)
}

func (s *conflictStore) CompareAndSetStatus(ctx context.Context, id string, expected, next domain.StageID) error {
	if s.conflicts.Add(-1) >= 0 {
		if s.interfere != nil {
			s.interfere(ctx, id)
		}
		return domain.ErrStatusConflict
	}
	return s.Store.CompareAndSetStatus(ctx, id, expected, next)
}

func TestTracker_RetriesOnConflict(t *testing.T) {
	store := &conflictStore{Store: memory.NewStore()}
	var conflicts atomic.Int32
	tr, err := tracker.New(store,
		tracker.WithRetry(time.Millisecond, 5),
		tracker.WithHooks(domain.LifecycleHooks{
			OnAdvanceConflict: func(context.Context, *domain.StageEvent) { conflicts.Add(1) },
		}),
	)
	require.NoError(t, err)
	ctx := context.Background()

	tx, err := tr.Open(ctx, tracker.OpenRequest{OfferID: "offer-1"})
	require.NoError(t, err)

	store.conflicts.Store(2)
	res, err := tr.UpdateTask(ctx, taskByTitle(t, tx, stages.TitleEarnestMoney).ID, true)
	require.NoError(t, err)
	require.NotNil(t, res.AdvancedTo)
	assert.Equal(t, domain.StageInspectionPeriod, res.AdvancedTo.ID)
	assert.Equal(t, int32(2), conflicts.Load())
}

func TestTracker_ConflictRecomputesDecision(t *testing.T) {
	store := &conflictStore{Store: memory.NewStore()}
	store.interfere = func(ctx context.Context, id string) {
		_ = store.Store.SetStatus(ctx, id, domain.StageFinancing)
	}
	tr, err := tracker.New(store, tracker.WithRetry(time.Millisecond, 5))
	require.NoError(t, err)
	ctx := context.Background()

	tx, err := tr.Open(ctx, tracker.OpenRequest{OfferID: "offer-1"})
	require.NoError(t, err)

	store.conflicts.Store(1)
	res, err := tr.UpdateTask(ctx, taskByTitle(t, tx, stages.TitleEarnestMoney).ID, true)
	require.NoError(t, err)
	assert.Nil(t, res.AdvancedTo, "financing is not satisfied, so the re-evaluated decision is no advance")

	loaded, err := tr.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageFinancing, loaded.Status)
}

func TestTracker_ConflictRetriesExhausted(t *testing.T) {
	store := &conflictStore{Store: memory.NewStore()}
	tr, err := tracker.New(store, tracker.WithRetry(time.Millisecond, 2))
	require.NoError(t, err)
	ctx := context.Background()

	tx, err := tr.Open(ctx, tracker.OpenRequest{OfferID: "offer-1"})
	require.NoError(t, err)

	store.conflicts.Store(100)
	res, err := tr.UpdateTask(ctx, taskByTitle(t, tx, stages.TitleEarnestMoney).ID, true)
	require.NoError(t, err)
	assert.True(t, res.Task.Completed, "the completion itself is kept")
	assert.Nil(t, res.AdvancedTo)
}

func TestTracker_ConcurrentCompletions(t *testing.T) {
	var (
		mu     sync.Mutex
		events []domain.StageEvent
	)
	tr, _ := newTracker(t, tracker.WithHooks(domain.LifecycleHooks{
		OnStageAdvanced: func(_ context.Context, e *domain.StageEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, *e)
		},
	}))
	ctx := context.Background()

	tx, err := tr.Open(ctx, tracker.OpenRequest{OfferID: "offer-1"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, task := range tx.Tasks {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := tr.UpdateTask(ctx, id, true)
			assert.NoError(t, err)
		}(task.ID)
	}
	wg.Wait()

	loaded, err := tr.Get(ctx, tx.ID)
	require.NoError(t, err)

	// Every recorded advance must pick up exactly where the previous one left off.
	from := domain.StageUnderContract
	for _, e := range events {
		assert.Equal(t, from, e.From)
		next, ok := stages.Next(from)
		require.True(t, ok)
		assert.Equal(t, next.ID, e.To)
		from = e.To
	}
	assert.Equal(t, from, loaded.Status)
}
