package refreshtokens

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/stretchr/testify/require"
)

func TestMemory_Lifecycle(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	require.NoError(t, r.Create(ctx, "u1", "tok", time.Minute))

	got, err := r.Find(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)
	require.True(t, got.Expires.After(time.Now()))

	require.NoError(t, r.Delete(ctx, "tok"))
	require.ErrorIs(t, r.Delete(ctx, "tok"), common.ErrorNotFound)

	_, err = r.Find(ctx, "tok")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemory_CreatePrunesExpired(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	require.NoError(t, r.Create(ctx, "u1", "old", -time.Second))
	require.NoError(t, r.Create(ctx, "u1", "new", time.Minute))

	_, err := r.Find(ctx, "old")
	require.ErrorIs(t, err, common.ErrorNotFound)
}
