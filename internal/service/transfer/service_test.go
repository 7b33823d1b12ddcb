package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/idempotency"
	"github.com/josh-kwaku/retail-bank/internal/interbank"
	"github.com/josh-kwaku/retail-bank/internal/ledger"
	"github.com/josh-kwaku/retail-bank/internal/pricing"
	"github.com/josh-kwaku/retail-bank/internal/simclock"
	"github.com/josh-kwaku/retail-bank/internal/testutil"
)

var (
	alice   = uint128.From64(1000_0000_0001)
	bob     = uint128.From64(1000_0000_0002)
	faraway = uint128.From64(2000_1234_5678)
)

type fakeNotifier struct {
	mu     sync.Mutex
	result interbank.NotificationResult
	calls  int
	txns   []uint128.Uint128
	// during runs while the reservation is held.
	during func()
}

func (f *fakeNotifier) TryExternalTransfer(_ context.Context, _ domain.Bank, transactionID, _, _, _ uint128.Uint128, _ uint64) interbank.NotificationResult {
	f.mu.Lock()
	f.calls++
	f.txns = append(f.txns, transactionID)
	during := f.during
	f.mu.Unlock()
	if during != nil {
		during()
	}
	return f.result
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// flakyLedger refuses to resolve pending transfers while failResolve is set,
// and fails reads of unreadable.
type flakyLedger struct {
	*ledger.MemoryStore
	failResolve bool
	unreadable  uint128.Uint128
}

var errLedgerDown = errors.New("ledger unavailable")

func (f *flakyLedger) GetAccount(ctx context.Context, id uint128.Uint128) (*domain.Account, error) {
	if !f.unreadable.IsZero() && id == f.unreadable {
		return nil, errLedgerDown
	}
	return f.MemoryStore.GetAccount(ctx, id)
}

func (f *flakyLedger) TransferLinked(ctx context.Context, ts []domain.Transfer) ([]uint128.Uint128, error) {
	if f.failResolve && len(ts) > 0 && ts[0].Type.Resolves() {
		return nil, errors.New("ledger unavailable")
	}
	return f.MemoryStore.TransferLinked(ctx, ts)
}

type fixture struct {
	clock    *testutil.ManualClock
	sim      *simclock.Clock
	store    *flakyLedger
	states   *MemoryStateStore
	notifier *fakeNotifier
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := testutil.NewManualClock(testutil.Epoch)
	store := &flakyLedger{MemoryStore: ledger.NewMemoryStore(clock.Now)}
	testutil.SeedInternalAccounts(t, store)

	sim := simclock.New(clock, 720, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	states := NewMemoryStateStore()
	notifier := &fakeNotifier{result: interbank.Succeeded}
	guard := idempotency.NewGuard(idempotency.NewMemoryCache(clock.Now), time.Hour)

	svc := NewService(store, states, guard, notifier, sim, defaultSchedule(), nil)
	return &fixture{
		clock:    clock,
		sim:      sim,
		store:    store,
		states:   states,
		notifier: notifier,
		svc:      svc,
	}
}

func defaultSchedule() *pricing.Schedule {
	return pricing.NewSchedule(
		decimal.NewFromInt(2),
		decimal.RequireFromString("0.25"),
		decimal.NewFromInt(10),
		60,
	)
}

func (f *fixture) account(t *testing.T, id uint128.Uint128) *domain.Account {
	t.Helper()
	return testutil.MustGetAccount(t, f.store, id)
}

func TestGetBankCode(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		id     uint128.Uint128
		want   domain.Bank
		wantOK bool
	}{
		{alice, domain.BankRetail, true},
		{faraway, domain.BankCommercial, true},
		{uint128.From64(1_0000_0000_0001), domain.BankRetail, true},
		{uint128.From64(3000_0000_0001), 0, false},
		{uint128.From64(1005), 0, false},
		{uint128.From64(7), 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.id.String(), func(t *testing.T) {
			got, ok := f.svc.GetBankCode(tc.id)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetTransfers_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetTransfers(ctx, 0, 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.svc.GetTransfers(ctx, ledger.MaxBatchSize+1, 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	got, err := f.svc.GetTransfer(ctx, domain.NewTransferID())
	require.NoError(t, err)
	assert.Nil(t, got)
}
