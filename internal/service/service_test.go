package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/ledger"
	"github.com/josh-kwaku/retail-bank/internal/pricing"
	"github.com/josh-kwaku/retail-bank/internal/testutil"
)

// recordingLedger counts the write calls the loan rules depend on.
type recordingLedger struct {
	*ledger.MemoryStore

	mu                sync.Mutex
	linkedCalls       int
	balanceCloseCalls int
	transferCalls     int
}

func (r *recordingLedger) Transfer(ctx context.Context, t domain.Transfer) (uint128.Uint128, error) {
	r.mu.Lock()
	r.transferCalls++
	r.mu.Unlock()
	return r.MemoryStore.Transfer(ctx, t)
}

func (r *recordingLedger) TransferLinked(ctx context.Context, ts []domain.Transfer) ([]uint128.Uint128, error) {
	r.mu.Lock()
	r.linkedCalls++
	r.mu.Unlock()
	return r.MemoryStore.TransferLinked(ctx, ts)
}

func (r *recordingLedger) BalanceAndCloseCredit(ctx context.Context, debit, credit uint128.Uint128) (uint128.Uint128, uint128.Uint128, error) {
	r.mu.Lock()
	r.balanceCloseCalls++
	r.mu.Unlock()
	return r.MemoryStore.BalanceAndCloseCredit(ctx, debit, credit)
}

func (r *recordingLedger) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.linkedCalls, r.balanceCloseCalls, r.transferCalls = 0, 0, 0
}

func newRecordingLedger(t *testing.T) *recordingLedger {
	t.Helper()
	clock := testutil.NewManualClock(testutil.Epoch)
	store := ledger.NewMemoryStore(clock.Now)
	testutil.SeedInternalAccounts(t, store)
	return &recordingLedger{MemoryStore: store}
}

func defaultSchedule() *pricing.Schedule {
	return pricing.NewSchedule(
		decimal.NewFromInt(2),
		decimal.RequireFromString("0.25"),
		decimal.NewFromInt(10),
		60,
	)
}
