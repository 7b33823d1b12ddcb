package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/ledger"
)

// Epoch is a fixed instant tests anchor their clocks to.
var Epoch = time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func SeedInternalAccounts(t *testing.T, store ledger.Store) {
	t.Helper()
	if err := store.InitialiseInternalAccounts(context.Background()); err != nil {
		t.Fatalf("seed internal accounts: %v", err)
	}
}

func CreateAccount(t *testing.T, store ledger.Store, id uint64, accountType domain.AccountType, order *domain.DebitOrder) uint128.Uint128 {
	t.Helper()
	account := &domain.Account{
		ID:         uint128.From64(id),
		Type:       accountType,
		DebitOrder: order,
	}
	if err := store.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("create account %d: %v", id, err)
	}
	return account.ID
}

// Fund deposits amount into a transactional account from the retail
// clearing account.
func Fund(t *testing.T, store ledger.Store, id uint128.Uint128, amount uint64) {
	t.Helper()
	_, err := store.Transfer(context.Background(), domain.Transfer{
		DebitAccountID:  domain.BankRetail.AccountID(),
		CreditAccountID: id,
		Amount:          uint128.From64(amount),
	})
	if err != nil {
		t.Fatalf("fund account %s: %v", id, err)
	}
}

func MustGetAccount(t *testing.T, store ledger.Store, id uint128.Uint128) *domain.Account {
	t.Helper()
	a, err := store.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("get account %s: %v", id, err)
	}
	if a == nil {
		t.Fatalf("account %s not found", id)
	}
	return a
}
