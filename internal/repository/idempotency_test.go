package repository_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/retail-bank/internal/repository"
	"github.com/josh-kwaku/retail-bank/internal/testutil"
)

func TestIdempotencyRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	clock := testutil.NewManualClock(testutil.Epoch)
	repo := repository.NewIdempotencyRepository(db, clock.Now)

	t.Run("second add reports present", func(t *testing.T) {
		present, err := repo.Add(ctx, "k1", time.Hour)
		require.NoError(t, err)
		assert.False(t, present)

		present, err = repo.Add(ctx, "k1", time.Hour)
		require.NoError(t, err)
		assert.True(t, present)
	})

	t.Run("expired key can be reused", func(t *testing.T) {
		_, err := repo.Add(ctx, "k2", time.Minute)
		require.NoError(t, err)

		clock.Advance(2 * time.Minute)
		present, err := repo.Add(ctx, "k2", time.Minute)
		require.NoError(t, err)
		assert.False(t, present)
	})

	t.Run("remove frees the key", func(t *testing.T) {
		_, err := repo.Add(ctx, "k3", time.Hour)
		require.NoError(t, err)
		require.NoError(t, repo.Remove(ctx, "k3"))

		present, err := repo.Add(ctx, "k3", time.Hour)
		require.NoError(t, err)
		assert.False(t, present)
	})

	t.Run("concurrent adds have one winner", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			winners atomic.Int32
		)
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				present, err := repo.Add(ctx, "k4", time.Hour)
				assert.NoError(t, err)
				if !present {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), winners.Load())
	})

	t.Run("clean expired", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		n, err := repo.CleanExpired(ctx)
		require.NoError(t, err)
		assert.Positive(t, n)
	})
}
