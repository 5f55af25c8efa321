//go:build integration

package container

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	domain "dropshare-api/internal/domain/container"
	"dropshare-api/internal/infrastructure/db/postgres"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgc, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("dropshare"),
		tcpostgres.WithUsername("dropshare"),
		tcpostgres.WithPassword("dropshare"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(pgc) })

	dsn, err := pgc.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, postgres.Migrate(zap.NewNop(), dsn))

	pool, err := postgres.New(ctx, zap.NewNop(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func TestRepository_Postgres(t *testing.T) {
	pool := startPostgres(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	mk := func(expiresIn time.Duration, keys ...string) *domain.Container {
		c := &domain.Container{
			PublicID:    uuid.New(),
			DisplayName: "it",
			CreatedAt:   now.Add(-2 * time.Hour),
			ExpiresAt:   now.Add(-2 * time.Hour).Add(expiresIn),
		}
		for i, k := range keys {
			c.Files = append(c.Files, domain.FileRecord{
				ID: uuid.New(), Position: i, OriginalName: k, StorageKey: k, SizeBytes: 1, Category: domain.CategoryRaw,
			})
		}
		out, err := repo.CreateContainer(ctx, c)
		require.NoError(t, err)
		return out
	}

	expired := mk(time.Hour, "a", "b")
	live := mk(4*time.Hour, "c")

	got, err := repo.FetchByPublicID(ctx, expired.PublicID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Files, 2)
	assert.Equal(t, "a", got.Files[0].StorageKey)

	byFile, err := repo.FetchByFileID(ctx, live.Files[0].ID)
	require.NoError(t, err)
	require.NotNil(t, byFile)
	assert.Equal(t, live.PublicID, byFile.PublicID)

	list, err := repo.FetchExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, expired.PublicID, list[0].PublicID)

	deleted, err := repo.DeleteContainer(ctx, expired.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteContainer(ctx, expired.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	gone, err := repo.FetchByFileID(ctx, expired.Files[0].ID)
	require.NoError(t, err)
	assert.Nil(t, gone, "files cascade with their container")
}
