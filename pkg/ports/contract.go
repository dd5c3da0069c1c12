package ports

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/escrow/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTransactionStoreContract runs a suite of tests to verify that a TransactionStore
// implementation adheres to the defined interface contract.
func RunTransactionStoreContract(t *testing.T, store TransactionStore) {
	ctx := context.Background()
	userID := "contract-user-" + uuid.NewString()

	newTx := func(createdAt time.Time) *domain.Transaction {
		id := uuid.NewString()
		closing := createdAt.Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)
		due := createdAt.Add(72 * time.Hour).UTC().Truncate(time.Second)
		return &domain.Transaction{
			ID:          id,
			UserID:      userID,
			OfferID:     "offer-" + id,
			ListingID:   "listing-1",
			Status:      domain.StageUnderContract,
			ClosingDate: &closing,
			CreatedAt:   createdAt.UTC().Truncate(time.Second),
			UpdatedAt:   createdAt.UTC().Truncate(time.Second),
			Tasks: []domain.Task{
				{ID: uuid.NewString(), TransactionID: id, Title: "Second", Order: 2},
				{ID: uuid.NewString(), TransactionID: id, Title: "First", Description: "d", Kind: "k", DueDate: &due, Order: 1},
			},
		}
	}

	t.Run("Create and Get", func(t *testing.T) {
		tx := newTx(time.Now())
		require.NoError(t, store.CreateTransaction(ctx, tx))
		defer store.DeleteTransaction(ctx, tx.ID)

		loaded, err := store.GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, tx.ID, loaded.ID)
		assert.Equal(t, userID, loaded.UserID)
		assert.Equal(t, tx.OfferID, loaded.OfferID)
		assert.Equal(t, domain.StageUnderContract, loaded.Status)
		require.NotNil(t, loaded.ClosingDate)
		assert.True(t, tx.ClosingDate.Equal(*loaded.ClosingDate))

		require.Len(t, loaded.Tasks, 2)
		assert.Equal(t, "First", loaded.Tasks[0].Title, "tasks must be ordered by Order")
		assert.Equal(t, "Second", loaded.Tasks[1].Title)
		assert.Equal(t, domain.TaskKind("k"), loaded.Tasks[0].Kind)
		require.NotNil(t, loaded.Tasks[0].DueDate)
		assert.True(t, tx.Tasks[1].DueDate.Equal(*loaded.Tasks[0].DueDate))
	})

	t.Run("Duplicate Offer", func(t *testing.T) {
		tx := newTx(time.Now())
		require.NoError(t, store.CreateTransaction(ctx, tx))
		defer store.DeleteTransaction(ctx, tx.ID)

		dup := newTx(time.Now())
		dup.OfferID = tx.OfferID
		err := store.CreateTransaction(ctx, dup)
		assert.ErrorIs(t, err, domain.ErrDuplicateTransaction)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.GetTransaction(ctx, "non-existent-"+uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

		_, err = store.GetTask(ctx, "non-existent-"+uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("List Newest First", func(t *testing.T) {
		older := newTx(time.Now().Add(-time.Hour))
		newer := newTx(time.Now())
		require.NoError(t, store.CreateTransaction(ctx, older))
		require.NoError(t, store.CreateTransaction(ctx, newer))
		defer store.DeleteTransaction(ctx, older.ID)
		defer store.DeleteTransaction(ctx, newer.ID)

		list, err := store.ListTransactions(ctx, userID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)
		assert.Equal(t, older.ID, list[1].ID)
		assert.Len(t, list[0].Tasks, 2)

		none, err := store.ListTransactions(ctx, "nobody-"+uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Task Completion", func(t *testing.T) {
		tx := newTx(time.Now())
		require.NoError(t, store.CreateTransaction(ctx, tx))
		defer store.DeleteTransaction(ctx, tx.ID)

		taskID := tx.Tasks[0].ID
		at := time.Now().UTC().Truncate(time.Second)

		task, err := store.SetTaskCompleted(ctx, taskID, true, at)
		require.NoError(t, err)
		assert.True(t, task.Completed)
		require.NotNil(t, task.CompletedAt)
		assert.True(t, at.Equal(*task.CompletedAt))
		assert.Equal(t, tx.ID, task.TransactionID)

		tasks, err := store.ListTasks(ctx, tx.ID)
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.True(t, tasks[1].Completed)
		assert.False(t, tasks[0].Completed)

		task, err = store.SetTaskCompleted(ctx, taskID, false, at)
		require.NoError(t, err)
		assert.False(t, task.Completed)
		assert.Nil(t, task.CompletedAt)

		_, err = store.SetTaskCompleted(ctx, "missing-"+uuid.NewString(), true, at)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("Compare And Set Status", func(t *testing.T) {
		tx := newTx(time.Now())
		require.NoError(t, store.CreateTransaction(ctx, tx))
		defer store.DeleteTransaction(ctx, tx.ID)

		err := store.CompareAndSetStatus(ctx, tx.ID, domain.StageUnderContract, domain.StageInspectionPeriod)
		require.NoError(t, err)

		err = store.CompareAndSetStatus(ctx, tx.ID, domain.StageUnderContract, domain.StageInspectionPeriod)
		assert.ErrorIs(t, err, domain.ErrStatusConflict, "stale expectation must conflict")

		loaded, err := store.GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StageInspectionPeriod, loaded.Status)

		err = store.CompareAndSetStatus(ctx, "missing-"+uuid.NewString(), domain.StageUnderContract, domain.StageFinancing)
		assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	})

	t.Run("Compare And Set Is Exclusive", func(t *testing.T) {
		tx := newTx(time.Now())
		require.NoError(t, store.CreateTransaction(ctx, tx))
		defer store.DeleteTransaction(ctx, tx.ID)

		const racers = 8
		var wg sync.WaitGroup
		results := make(chan error, racers)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- store.CompareAndSetStatus(ctx, tx.ID, domain.StageUnderContract, domain.StageInspectionPeriod)
			}()
		}
		wg.Wait()
		close(results)

		wins := 0
		for err := range results {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrStatusConflict)
		}
		assert.Equal(t, 1, wins, "exactly one racer may advance")
	})

	t.Run("Set Status", func(t *testing.T) {
		tx := newTx(time.Now())
		require.NoError(t, store.CreateTransaction(ctx, tx))
		defer store.DeleteTransaction(ctx, tx.ID)

		require.NoError(t, store.SetStatus(ctx, tx.ID, domain.StageClosed))
		loaded, err := store.GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StageClosed, loaded.Status)

		err = store.SetStatus(ctx, "missing-"+uuid.NewString(), domain.StageClosed)
		assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		tx := newTx(time.Now())
		require.NoError(t, store.CreateTransaction(ctx, tx))

		require.NoError(t, store.DeleteTransaction(ctx, tx.ID))

		_, err := store.GetTransaction(ctx, tx.ID)
		assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
		_, err = store.GetTask(ctx, tx.Tasks[0].ID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})
}
