package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
)

// MemoryStore keeps the ledger in process. Writes are serialised by a
// single mutex, which is all the isolation the rules need.
type MemoryStore struct {
	mu        sync.RWMutex
	now       func() time.Time
	clock     clockState
	accounts  map[uint128.Uint128]*accountRecord
	transfers map[uint128.Uint128]*transferRecord
	// feed holds transfers in timestamp order.
	feed []*transferRecord
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:       now,
		accounts:  make(map[uint128.Uint128]*accountRecord),
		transfers: make(map[uint128.Uint128]*transferRecord),
	}
}

func (s *MemoryStore) loadAccount(id uint128.Uint128) (*accountRecord, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) loadTransfer(id uint128.Uint128) (*transferRecord, error) {
	t, ok := s.transfers[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; ok {
		return fmt.Errorf("CreateAccount: %w", &domain.LedgerConstraintError{Kind: domain.ResultExists})
	}
	r := toAccountRecord(account)
	r.Timestamp = s.clock.next(uint64(s.now().UnixNano()))
	s.accounts[r.ID] = &r
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id uint128.Uint128) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	a := r.toDomain()
	return &a, nil
}

func (s *MemoryStore) GetAccounts(_ context.Context, filter AccountFilter) ([]domain.Account, error) {
	if err := validateLimit(filter.Limit); err != nil {
		return nil, fmt.Errorf("GetAccounts: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*accountRecord
	for _, r := range s.accounts {
		if filter.matches(r) {
			matched = append(matched, r)
		}
	}
	slices.SortFunc(matched, func(a, b *accountRecord) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		}
		return 0
	})
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	accounts := make([]domain.Account, len(matched))
	for i, r := range matched {
		accounts[i] = r.toDomain()
	}
	return accounts, nil
}

func (s *MemoryStore) Transfer(ctx context.Context, transfer domain.Transfer) (uint128.Uint128, error) {
	ids, err := s.TransferLinked(ctx, []domain.Transfer{transfer})
	if err != nil {
		return uint128.Zero, err
	}
	return ids[0], nil
}

func (s *MemoryStore) TransferLinked(_ context.Context, transfers []domain.Transfer) ([]uint128.Uint128, error) {
	if len(transfers) == 0 || len(transfers) > MaxBatchSize {
		return nil, fmt.Errorf("TransferLinked: batch of %d: %w", len(transfers), domain.ErrInvalidRequest)
	}

	records := toTransferRecords(transfers)
	ids := assignIDs(records)

	s.mu.Lock()
	defer s.mu.Unlock()

	clock := s.clock
	ws := newWorkingSet(s)
	now := uint64(s.now().UnixNano())
	for i, r := range records {
		r.Timestamp = clock.next(now)
		result, err := ws.apply(r)
		if err != nil {
			return nil, fmt.Errorf("TransferLinked: %w", err)
		}
		if result != domain.ResultOK {
			return nil, fmt.Errorf("TransferLinked: %w", &domain.LedgerConstraintError{Kind: result, Index: i})
		}
	}

	s.clock = clock
	for _, a := range ws.dirty {
		s.accounts[a.ID] = a
	}
	for _, p := range ws.resolved {
		if stored, ok := s.transfers[p.ID]; ok {
			stored.status = p.status
		}
	}
	for _, t := range ws.created {
		s.transfers[t.ID] = t
		s.feed = append(s.feed, t)
	}
	return ids, nil
}

func (s *MemoryStore) GetTransfer(_ context.Context, id uint128.Uint128) (*domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.transfers[id]
	if !ok {
		return nil, nil
	}
	t := r.toDomain()
	return &t, nil
}

func (s *MemoryStore) GetAccountTransfers(ctx context.Context, filter TransferFilter) ([]domain.Transfer, error) {
	if filter.AccountID.IsZero() {
		return nil, fmt.Errorf("GetAccountTransfers: account id required: %w", domain.ErrInvalidRequest)
	}
	transfers, err := s.queryTransfers(filter)
	if err != nil {
		return nil, fmt.Errorf("GetAccountTransfers: %w", err)
	}
	return transfers, nil
}

func (s *MemoryStore) GetTransfers(ctx context.Context, filter TransferFilter) ([]domain.Transfer, error) {
	filter.AccountID = uint128.Zero
	transfers, err := s.queryTransfers(filter)
	if err != nil {
		return nil, fmt.Errorf("GetTransfers: %w", err)
	}
	return transfers, nil
}

func (s *MemoryStore) queryTransfers(filter TransferFilter) ([]domain.Transfer, error) {
	if err := validateLimit(filter.Limit); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var transfers []domain.Transfer
	for i := len(s.feed) - 1; i >= 0 && len(transfers) < filter.Limit; i-- {
		if filter.matches(s.feed[i]) {
			transfers = append(transfers, s.feed[i].toDomain())
		}
	}
	return transfers, nil
}

func (s *MemoryStore) BalanceAndCloseCredit(ctx context.Context, debitAccountID, creditAccountID uint128.Uint128) (uint128.Uint128, uint128.Uint128, error) {
	ids, err := s.TransferLinked(ctx, balanceAndCloseCreditLegs(debitAccountID, creditAccountID))
	if err != nil {
		return uint128.Zero, uint128.Zero, fmt.Errorf("BalanceAndCloseCredit: %w", err)
	}
	return ids[0], ids[1], nil
}

func (s *MemoryStore) InitialiseInternalAccounts(ctx context.Context) error {
	return initialiseInternalAccounts(ctx, s)
}
