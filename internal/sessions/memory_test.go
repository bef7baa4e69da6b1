package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	expires := time.Now().UTC().Add(time.Minute)

	s := &Session{Token: "tok-1", UserID: "u1", ExpiresAt: expires}
	require.NoError(t, repo.Create(ctx, s))
	require.NotEmpty(t, s.ID)

	// token uniqueness holds under the lock
	err := repo.Create(ctx, &Session{Token: "tok-1", UserID: "u2", ExpiresAt: expires})
	require.Error(t, err)

	got, err := repo.GetByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)

	// returned copies don't alias the stored record
	got.UserID = "mutated"
	again, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, "u1", again.UserID)

	require.NoError(t, repo.DeleteByToken(ctx, "tok-1"))
	gone, err := repo.GetByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestMemoryRepositoryDeleteExpired(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, &Session{Token: "tok-live", UserID: "u1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, &Session{Token: "tok-dead", UserID: "u1", ExpiresAt: now.Add(-time.Second)}))

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}
