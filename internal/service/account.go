package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/ledger"
	"github.com/josh-kwaku/retail-bank/internal/logging"
)

// Account numbers are the bank prefix followed by a random suffix.
// Collisions surface as domain.ErrAccountExists and are not retried here.
const (
	transactionalNumberBase = 1000_0000_0000
	transactionalNumberSpan = 1_0000_0000
	loanNumberBase          = 1_0000_0000_0000
	loanNumberSpan          = 10_0000_0000
)

type AccountService struct {
	ledger accountLedger
}

func NewAccountService(l accountLedger) *AccountService {
	return &AccountService{ledger: l}
}

func (s *AccountService) CreateTransactionalAccount(ctx context.Context, salaryCents uint64) (uint128.Uint128, error) {
	id, err := generateAccountNumber(transactionalNumberBase, transactionalNumberSpan)
	if err != nil {
		return uint128.Zero, fmt.Errorf("CreateTransactionalAccount: %w", err)
	}

	account := &domain.Account{
		ID:   id,
		Type: domain.AccountTypeTransactional,
		DebitOrder: &domain.DebitOrder{
			DebitAccountID: domain.BankRetail.AccountID(),
			Amount:         salaryCents,
		},
	}
	if err := s.ledger.CreateAccount(ctx, account); err != nil {
		return uint128.Zero, fmt.Errorf("CreateTransactionalAccount: %w", err)
	}

	logging.FromContext(ctx).Info("transactional account created",
		"account_id", id.String(),
		"salary_cents", salaryCents,
	)
	return id, nil
}

func (s *AccountService) GetAccounts(ctx context.Context, accountType domain.AccountType, limit int, cursorMax uint64) ([]domain.Account, error) {
	if accountType != 0 && !accountType.IsValid() {
		return nil, fmt.Errorf("GetAccounts: account type %d: %w", accountType, domain.ErrInvalidRequest)
	}
	accounts, err := s.ledger.GetAccounts(ctx, ledger.AccountFilter{
		Type:      accountType,
		Limit:     limit,
		CursorMax: cursorMax,
	})
	if err != nil {
		return nil, fmt.Errorf("GetAccounts: %w", err)
	}
	return accounts, nil
}

// GetAccount returns nil when the account does not exist.
func (s *AccountService) GetAccount(ctx context.Context, id uint128.Uint128) (*domain.Account, error) {
	account, err := s.ledger.GetAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return account, nil
}

func (s *AccountService) GetAccountTransfers(ctx context.Context, filter ledger.TransferFilter) ([]domain.Transfer, error) {
	if filter.AccountID.IsZero() {
		return nil, fmt.Errorf("GetAccountTransfers: account id required: %w", domain.ErrInvalidRequest)
	}
	if filter.Side > domain.TransferSideCredit {
		return nil, fmt.Errorf("GetAccountTransfers: side %d: %w", filter.Side, domain.ErrInvalidRequest)
	}
	if filter.Limit <= 0 || filter.Limit > ledger.MaxBatchSize {
		return nil, fmt.Errorf("GetAccountTransfers: limit must be between 1 and %d: %w", ledger.MaxBatchSize, domain.ErrInvalidRequest)
	}

	transfers, err := s.ledger.GetAccountTransfers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("GetAccountTransfers: %w", err)
	}
	return transfers, nil
}

// GetAccountLoans lists the loans debited from debtorID. The lookup is a
// single page of ledger.MaxBatchSize; a full page is reported as
// domain.ErrTooManyLoans instead of being truncated.
func (s *AccountService) GetAccountLoans(ctx context.Context, debtorID uint128.Uint128) ([]domain.Account, error) {
	loans, err := s.ledger.GetAccounts(ctx, ledger.AccountFilter{
		Type:                domain.AccountTypeLoan,
		DebitOrderAccountID: debtorID,
		Limit:               ledger.MaxBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("GetAccountLoans: %w", err)
	}
	if len(loans) >= ledger.MaxBatchSize {
		return nil, fmt.Errorf("GetAccountLoans: debtor %s: %w", debtorID, domain.ErrTooManyLoans)
	}
	return loans, nil
}

func generateAccountNumber(base, span uint64) (uint128.Uint128, error) {
	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(span))
	if err != nil {
		return uint128.Zero, fmt.Errorf("generateAccountNumber: %w", err)
	}
	return uint128.From64(base + n.Uint64()), nil
}
