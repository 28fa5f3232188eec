package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/study-notes/internal/migrations"
	"github.com/magabrotheeeer/study-notes/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "Failed to create storage after retries")

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))
	require.NoError(t, CheckDatabaseReady(storage))

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}

// testDataFactory создаёт тестовые данные напрямую через репозиторий.
type testDataFactory struct {
	storage *Storage
}

func (f *testDataFactory) createEvent(t *testing.T, principalID string, tool models.ToolKind, tokens int64, at time.Time) {
	_, err := f.storage.AppendEvent(context.Background(), models.UsageEvent{
		PrincipalID: principalID,
		Category:    tool,
		Tokens:      tokens,
		CreatedAt:   at,
	})
	require.NoError(t, err)
}

func (f *testDataFactory) createArtifact(t *testing.T, principalID string, expiresAt time.Time) int64 {
	id, err := f.storage.CreateArtifact(context.Background(), models.ExpiringArtifact{
		PrincipalID: principalID,
		Content:     "artifact",
		CreatedAt:   expiresAt.Add(-models.DefaultArtifactTTL),
		ExpiresAt:   expiresAt,
	})
	require.NoError(t, err)
	return id
}

func (f *testDataFactory) countRows(t *testing.T, table string) int {
	var count int
	err := f.storage.DB.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
	require.NoError(t, err)
	return count
}
