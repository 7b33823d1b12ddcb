package transfer

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
)

// MemoryStateStore keeps external transfer records in process. It backs the
// memory ledger driver, where nothing outlives the process anyway.
type MemoryStateStore struct {
	mu      sync.RWMutex
	records map[uint128.Uint128]domain.ExternalTransfer
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{records: make(map[uint128.Uint128]domain.ExternalTransfer)}
}

func (m *MemoryStateStore) Save(_ context.Context, xfer *domain.ExternalTransfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *xfer
	cp.PendingIDs = slices.Clone(xfer.PendingIDs)
	m.records[xfer.ID] = cp
	return nil
}

func (m *MemoryStateStore) Get(_ context.Context, id uint128.Uint128) (*domain.ExternalTransfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	xfer, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("external transfer %s: %w", domain.FormatTransferID(id), domain.ErrNotFound)
	}
	xfer.PendingIDs = slices.Clone(xfer.PendingIDs)
	return &xfer, nil
}

// ListByState returns up to limit records in state, least recently updated
// first.
func (m *MemoryStateStore) ListByState(_ context.Context, state domain.ExternalTransferState, limit int) ([]domain.ExternalTransfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.ExternalTransfer
	for _, xfer := range m.records {
		if xfer.State == state {
			xfer.PendingIDs = slices.Clone(xfer.PendingIDs)
			out = append(out, xfer)
		}
	}
	slices.SortFunc(out, func(a, b domain.ExternalTransfer) int {
		if c := a.UpdatedAt.Compare(b.UpdatedAt); c != 0 {
			return c
		}
		return a.ID.Cmp(b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
