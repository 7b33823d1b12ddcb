package ledger

import (
	"context"
	"errors"
	"fmt"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
)

// MaxBatchSize is the largest number of events or query results the ledger
// handles in one request.
const MaxBatchSize = 8189

type Store interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, id uint128.Uint128) (*domain.Account, error)
	GetAccounts(ctx context.Context, filter AccountFilter) ([]domain.Account, error)
	Transfer(ctx context.Context, transfer domain.Transfer) (uint128.Uint128, error)
	TransferLinked(ctx context.Context, transfers []domain.Transfer) ([]uint128.Uint128, error)
	GetTransfer(ctx context.Context, id uint128.Uint128) (*domain.Transfer, error)
	GetAccountTransfers(ctx context.Context, filter TransferFilter) ([]domain.Transfer, error)
	GetTransfers(ctx context.Context, filter TransferFilter) ([]domain.Transfer, error)
	BalanceAndCloseCredit(ctx context.Context, debitAccountID, creditAccountID uint128.Uint128) (uint128.Uint128, uint128.Uint128, error)
	InitialiseInternalAccounts(ctx context.Context) error
}

// AccountFilter selects accounts newest first. Zero values match anything;
// CursorMax of zero means no upper bound.
type AccountFilter struct {
	Type                domain.AccountType
	DebitOrderAccountID uint128.Uint128
	Limit               int
	CursorMax           uint64
}

type TransferFilter struct {
	AccountID uint128.Uint128
	Limit     int
	CursorMax uint64
	Reference uint64
	Side      domain.TransferSide
}

func validateLimit(limit int) error {
	if limit <= 0 || limit > MaxBatchSize {
		return fmt.Errorf("limit must be between 1 and %d: %w", MaxBatchSize, domain.ErrInvalidRequest)
	}
	return nil
}

func (f AccountFilter) matches(r *accountRecord) bool {
	if f.CursorMax != 0 && r.Timestamp > f.CursorMax {
		return false
	}
	if f.Type != 0 && r.Code != uint16(f.Type) {
		return false
	}
	if !f.DebitOrderAccountID.IsZero() && r.UserData128 != f.DebitOrderAccountID {
		return false
	}
	return true
}

func (f TransferFilter) matches(r *transferRecord) bool {
	if f.CursorMax != 0 && r.Timestamp > f.CursorMax {
		return false
	}
	if f.Reference != 0 && r.UserData64 != f.Reference {
		return false
	}
	if f.AccountID.IsZero() {
		return true
	}
	switch f.Side {
	case domain.TransferSideDebit:
		return r.DebitAccountID == f.AccountID
	case domain.TransferSideCredit:
		return r.CreditAccountID == f.AccountID
	default:
		return r.DebitAccountID == f.AccountID || r.CreditAccountID == f.AccountID
	}
}

// assignIDs fills in ids the caller left empty.
func assignIDs(records []*transferRecord) []uint128.Uint128 {
	ids := make([]uint128.Uint128, len(records))
	for i, r := range records {
		if r.ID.IsZero() {
			r.ID = domain.NewTransferID()
		}
		ids[i] = r.ID
	}
	return ids
}

// balanceAndCloseCreditLegs drains whatever the credit account is still
// owed into the debit account, then closes the credit account.
func balanceAndCloseCreditLegs(debitAccountID, creditAccountID uint128.Uint128) []domain.Transfer {
	return []domain.Transfer{
		{
			ID:              domain.NewTransferID(),
			DebitAccountID:  debitAccountID,
			CreditAccountID: creditAccountID,
			Amount:          uint128.Max,
			Type:            domain.TransferTypeBalanceCredit,
		},
		{
			ID:              domain.NewTransferID(),
			DebitAccountID:  debitAccountID,
			CreditAccountID: creditAccountID,
			Amount:          uint128.Zero,
			Type:            domain.TransferTypeCloseCredit,
		},
	}
}

func initialiseInternalAccounts(ctx context.Context, s Store) error {
	for _, id := range domain.InternalAccountIDs() {
		err := s.CreateAccount(ctx, &domain.Account{ID: id, Type: domain.AccountTypeInternal})
		if err != nil && !errors.Is(err, domain.ErrAccountExists) {
			return fmt.Errorf("InitialiseInternalAccounts: %s: %w", id, err)
		}
	}
	return nil
}

type clockState struct {
	last uint64
}

// next returns max(now, last+1) so every event gets a distinct,
// increasing timestamp.
func (c *clockState) next(nowNanos uint64) uint64 {
	if nowNanos <= c.last {
		nowNanos = c.last + 1
	}
	c.last = nowNanos
	return nowNanos
}
