package userrepo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/mindcheck/internal/domain/auth"
	"github.com/yanqian/mindcheck/internal/infra/sqlitedb"
)

func TestSQLiteRepository(t *testing.T) {
	ctx := context.Background()
	db, err := sqlitedb.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewSQLiteRepository(db)

	user, err := repo.Create(ctx, "budi", "budi@example.com", "hash")
	require.NoError(t, err)
	require.NotZero(t, user.ID)

	_, err = repo.Create(ctx, "budi2", "budi@example.com", "hash")
	require.ErrorIs(t, err, auth.ErrEmailExists)

	got, found, err := repo.GetByEmail(ctx, "budi@example.com")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, user.ID, got.ID)
	require.Equal(t, "budi", got.Username)

	_, found, err = repo.GetByID(ctx, user.ID+1)
	require.NoError(t, err)
	require.False(t, found)

	exists, err := repo.UserExists(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestMemoryRepositoryDuplicateEmail(t *testing.T) {
	repo := NewMemoryRepository()
	_, err := repo.Create(context.Background(), "a", "a@example.com", "h")
	require.NoError(t, err)
	_, err = repo.Create(context.Background(), "b", "a@example.com", "h")
	require.ErrorIs(t, err, auth.ErrEmailExists)
}
