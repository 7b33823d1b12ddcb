package simulation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/ledger"
	"github.com/josh-kwaku/retail-bank/internal/logging"
	"github.com/josh-kwaku/retail-bank/internal/testutil"
)

type fakeBank struct {
	mu        sync.Mutex
	calls     []string
	paid      []uint128.Uint128
	collected []uint128.Uint128
	failOn    uint128.Uint128
	// accrues makes ProcessInterest report a posted transfer.
	accrues bool
}

func (f *fakeBank) record(op string, id uint128.Uint128) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if id == f.failOn {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeBank) PaySalary(_ context.Context, id uint128.Uint128) error {
	if err := f.record(opSalary, id); err != nil {
		return err
	}
	f.mu.Lock()
	f.paid = append(f.paid, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeBank) ProcessInterest(_ context.Context, id uint128.Uint128) (bool, error) {
	if err := f.record(opInterest, id); err != nil {
		return false, err
	}
	return f.accrues, nil
}

func (f *fakeBank) PayInstallment(_ context.Context, id uint128.Uint128) error {
	if err := f.record(opInstallment, id); err != nil {
		return err
	}
	f.mu.Lock()
	f.collected = append(f.collected, id)
	f.mu.Unlock()
	return nil
}

type stubClock struct {
	running bool
}

func (c stubClock) Running() bool                              { return c.running }
func (c stubClock) SimNow() time.Time                          { return testutil.Epoch }
func (c stubClock) RealDuration(d time.Duration) time.Duration { return d / 720 }

type cycleRecorder struct {
	cycles   int
	failures map[string]int
}

func (r *cycleRecorder) ObserveSimulationCycle(time.Time, error) { r.cycles++ }
func (r *cycleRecorder) ObserveSimulationFailure(op string)      { r.failures[op]++ }

func seededStore(t *testing.T) *ledger.MemoryStore {
	t.Helper()
	clock := testutil.NewManualClock(testutil.Epoch)
	store := ledger.NewMemoryStore(clock.Now)
	testutil.SeedInternalAccounts(t, store)
	return store
}

func TestRunCycle(t *testing.T) {
	store := seededStore(t)
	a := testutil.CreateAccount(t, store, 1000_0000_0001, domain.AccountTypeTransactional, nil)
	b := testutil.CreateAccount(t, store, 1000_0000_0002, domain.AccountTypeTransactional, nil)
	c := testutil.CreateAccount(t, store, 1000_0000_0003, domain.AccountTypeTransactional, nil)
	loan := testutil.CreateAccount(t, store, 1_0000_0000_0001, domain.AccountTypeLoan, nil)

	bank := &fakeBank{accrues: true}
	metrics := &cycleRecorder{failures: map[string]int{}}
	r := NewRunner(store, bank, bank, stubClock{running: true}, metrics, logging.Discard(), 30*24*time.Hour)
	r.pageSize = 2

	res, err := r.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, CycleResult{SalariesPaid: 3, InterestAccrued: 1, InstallmentsCollected: 1}, res)
	assert.ElementsMatch(t, []uint128.Uint128{a, b, c}, bank.paid)
	assert.Equal(t, []uint128.Uint128{loan}, bank.collected)
	assert.Equal(t, []string{opSalary, opSalary, opSalary, opInterest, opInstallment}, bank.calls,
		"salaries land before installments are collected")
	assert.Equal(t, 1, metrics.cycles)
}

func TestRunCycle_FailuresDoNotStopTheCycle(t *testing.T) {
	store := seededStore(t)
	bad := testutil.CreateAccount(t, store, 1000_0000_0001, domain.AccountTypeTransactional, nil)
	good := testutil.CreateAccount(t, store, 1000_0000_0002, domain.AccountTypeTransactional, nil)
	testutil.CreateAccount(t, store, 1_0000_0000_0001, domain.AccountTypeLoan, nil)

	bank := &fakeBank{failOn: bad}
	metrics := &cycleRecorder{failures: map[string]int{}}
	r := NewRunner(store, bank, bank, stubClock{running: true}, metrics, logging.Discard(), time.Hour)

	res, err := r.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failures)
	assert.Equal(t, 1, res.SalariesPaid)
	assert.Equal(t, 1, res.InstallmentsCollected)
	assert.Equal(t, []uint128.Uint128{good}, bank.paid)
	assert.Equal(t, 1, metrics.failures[opSalary])
}

func TestRunCycle_SkipsClosedLoans(t *testing.T) {
	store := seededStore(t)
	debtor := testutil.CreateAccount(t, store, 1000_0000_0001, domain.AccountTypeTransactional, nil)
	loan := testutil.CreateAccount(t, store, 1_0000_0000_0001, domain.AccountTypeLoan, nil)
	ctx := context.Background()

	_, err := store.Transfer(ctx, domain.Transfer{DebitAccountID: loan, CreditAccountID: debtor, Amount: uint128.From64(100)})
	require.NoError(t, err)
	_, _, err = store.BalanceAndCloseCredit(ctx, domain.BadDebtsAccountID, loan)
	require.NoError(t, err)

	bank := &fakeBank{}
	r := NewRunner(store, bank, bank, stubClock{running: true}, nil, logging.Discard(), time.Hour)

	res, err := r.RunCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.InterestAccrued)
	assert.Empty(t, bank.collected)
}

func TestRunCycle_CountsOnlyPostedInterest(t *testing.T) {
	store := seededStore(t)
	loan := testutil.CreateAccount(t, store, 1_0000_0000_0001, domain.AccountTypeLoan, nil)

	bank := &fakeBank{}
	r := NewRunner(store, bank, bank, stubClock{running: true}, nil, logging.Discard(), time.Hour)

	res, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{opInterest, opInstallment}, bank.calls)
	assert.Zero(t, res.InterestAccrued, "a loan left untouched is not an accrual")
	assert.Equal(t, []uint128.Uint128{loan}, bank.collected)
}

type brokenLister struct{}

func (brokenLister) GetAccounts(context.Context, ledger.AccountFilter) ([]domain.Account, error) {
	return nil, errors.New("ledger unavailable")
}

func TestRunCycle_ListingFailure(t *testing.T) {
	metrics := &cycleRecorder{failures: map[string]int{}}
	r := NewRunner(brokenLister{}, &fakeBank{}, &fakeBank{}, stubClock{}, metrics, logging.Discard(), time.Hour)

	_, err := r.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, metrics.cycles)
}

func TestStart_OnlyRunsWhileClockRuns(t *testing.T) {
	store := seededStore(t)
	testutil.CreateAccount(t, store, 1000_0000_0001, domain.AccountTypeTransactional, nil)

	idle := &fakeBank{}
	r := NewRunner(store, idle, idle, stubClock{running: false}, nil, logging.Discard(), 720*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r.Start(ctx)

	idle.mu.Lock()
	assert.Empty(t, idle.calls)
	idle.mu.Unlock()

	busy := &fakeBank{}
	r = NewRunner(store, busy, busy, stubClock{running: true}, nil, logging.Discard(), 720*time.Millisecond)

	ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r.Start(ctx)

	busy.mu.Lock()
	assert.NotEmpty(t, busy.paid)
	busy.mu.Unlock()
}
