package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/testutil"
)

func TestMemoryStateStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()

	first := &domain.ExternalTransfer{
		ID:         domain.NewTransferID(),
		PendingIDs: []uint128.Uint128{uint128.From64(1)},
		State:      domain.ExternalTransferAmbiguousPending,
		UpdatedAt:  testutil.Epoch.Add(time.Minute),
	}
	second := &domain.ExternalTransfer{
		ID:        domain.NewTransferID(),
		State:     domain.ExternalTransferAmbiguousPending,
		UpdatedAt: testutil.Epoch,
	}
	done := &domain.ExternalTransfer{
		ID:        domain.NewTransferID(),
		State:     domain.ExternalTransferCompleted,
		UpdatedAt: testutil.Epoch,
	}
	for _, x := range []*domain.ExternalTransfer{first, second, done} {
		require.NoError(t, store.Save(ctx, x))
	}

	first.PendingIDs[0] = uint128.From64(99)
	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, uint128.From64(1), got.PendingIDs[0], "saved copy is isolated from the caller")

	list, err := store.ListByState(ctx, domain.ExternalTransferAmbiguousPending, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	list, err = store.ListByState(ctx, domain.ExternalTransferAmbiguousPending, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = store.Get(ctx, domain.NewTransferID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
