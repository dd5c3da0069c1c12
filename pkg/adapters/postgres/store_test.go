package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/escrow/pkg/adapters/postgres"
	"github.com/aretw0/escrow/pkg/domain"
	"github.com/aretw0/escrow/pkg/ports"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests are skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
			return fmt.Sprintf("postgresql://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())
		}),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	return pool
}

func TestPostgresStore_Contract(t *testing.T) {
	pool := setupTestContainer(t)

	store := postgres.New(pool)
	ports.RunTransactionStoreContract(t, store)
}

func TestPostgresStore_MigrateIsIdempotent(t *testing.T) {
	pool := setupTestContainer(t)

	require.NoError(t, postgres.Migrate(context.Background(), pool))
}

func TestPostgresStore_SetTaskCompletedIsAtomic(t *testing.T) {
	pool := setupTestContainer(t)
	store := postgres.New(pool)
	ctx := context.Background()

	require.NoError(t, store.CreateTransaction(ctx, &domain.Transaction{
		ID:        "tx-1",
		UserID:    "user-1",
		OfferID:   "offer-1",
		Status:    domain.StageUnderContract,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Tasks:     []domain.Task{{ID: "task-1", Title: "Send Earnest Money Deposit", Order: 1}},
	}))

	_, err := pool.Exec(ctx, `CREATE FUNCTION reject_touch() RETURNS trigger AS $$
		BEGIN RAISE EXCEPTION 'touch rejected'; END $$ LANGUAGE plpgsql`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `CREATE TRIGGER reject_touch BEFORE UPDATE ON transactions
		FOR EACH ROW EXECUTE FUNCTION reject_touch()`)
	require.NoError(t, err)

	_, err = store.SetTaskCompleted(ctx, "task-1", true, time.Now())
	require.Error(t, err)

	task, err := store.GetTask(ctx, "task-1")
	require.NoError(t, err)
	assert.False(t, task.Completed, "task toggle must roll back with the failed touch")
	assert.Nil(t, task.CompletedAt)
}
