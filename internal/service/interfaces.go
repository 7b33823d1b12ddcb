package service

import (
	"context"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/ledger"
	"github.com/josh-kwaku/retail-bank/internal/pricing"
)

type accountReader interface {
	GetAccount(ctx context.Context, id uint128.Uint128) (*domain.Account, error)
	GetAccounts(ctx context.Context, filter ledger.AccountFilter) ([]domain.Account, error)
}

type accountLedger interface {
	accountReader
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccountTransfers(ctx context.Context, filter ledger.TransferFilter) ([]domain.Transfer, error)
}

type loanLedger interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, id uint128.Uint128) (*domain.Account, error)
	Transfer(ctx context.Context, transfer domain.Transfer) (uint128.Uint128, error)
	TransferLinked(ctx context.Context, transfers []domain.Transfer) ([]uint128.Uint128, error)
	BalanceAndCloseCredit(ctx context.Context, debitAccountID, creditAccountID uint128.Uint128) (uint128.Uint128, uint128.Uint128, error)
}

type loanPricing interface {
	Installment(principal uint64) uint64
	MonthlyInterest(outstanding uint128.Uint128) uint128.Uint128
	SplitInstallment(outstanding uint128.Uint128, installment uint64) pricing.Split
}
