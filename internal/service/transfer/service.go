// Package transfer moves money between accounts, including the two-phase
// protocol for transfers to other banks.
package transfer

import (
	"context"
	"fmt"
	"time"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/interbank"
	"github.com/josh-kwaku/retail-bank/internal/ledger"
)

type ledgerStore interface {
	GetAccount(ctx context.Context, id uint128.Uint128) (*domain.Account, error)
	GetAccounts(ctx context.Context, filter ledger.AccountFilter) ([]domain.Account, error)
	TransferLinked(ctx context.Context, transfers []domain.Transfer) ([]uint128.Uint128, error)
	GetTransfer(ctx context.Context, id uint128.Uint128) (*domain.Transfer, error)
	GetTransfers(ctx context.Context, filter ledger.TransferFilter) ([]domain.Transfer, error)
}

// StateStore persists external transfers so ambiguous ones can be
// reconciled after the request that started them is gone.
type StateStore interface {
	Save(ctx context.Context, xfer *domain.ExternalTransfer) error
	Get(ctx context.Context, id uint128.Uint128) (*domain.ExternalTransfer, error)
	ListByState(ctx context.Context, state domain.ExternalTransferState, limit int) ([]domain.ExternalTransfer, error)
}

type requestGuard interface {
	InsertAndThrow(ctx context.Context, request any) error
	Clear(ctx context.Context, request any) error
}

type notifier interface {
	TryExternalTransfer(ctx context.Context, bank domain.Bank, transactionID, from, to, amount uint128.Uint128, reference uint64) interbank.NotificationResult
}

type simClock interface {
	Now() time.Time
	TimestampToSim(ts uint64) uint64
	SimNow() time.Time
	Running() bool
}

type feeSchedule interface {
	TransferFee(amount uint128.Uint128) uint128.Uint128
	DepositFee(amount uint128.Uint128) uint128.Uint128
}

type recorder interface {
	ObserveTransfer(kind string, err error)
	ObserveExternalTransferState(state string)
	ObserveDuplicateRequest()
}

type Service struct {
	ledger   ledgerStore
	states   StateStore
	guard    requestGuard
	notifier notifier
	clock    simClock
	fees     feeSchedule
	metrics  recorder
}

func NewService(
	store ledgerStore,
	states StateStore,
	guard requestGuard,
	notifier notifier,
	clock simClock,
	fees feeSchedule,
	metrics recorder,
) *Service {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Service{
		ledger:   store,
		states:   states,
		guard:    guard,
		notifier: notifier,
		clock:    clock,
		fees:     fees,
		metrics:  metrics,
	}
}

// GetBankCode reports which bank owns id, judged by its four digit prefix.
func (s *Service) GetBankCode(id uint128.Uint128) (domain.Bank, bool) {
	return domain.BankFromAccountID(id)
}

// GetTransfer returns nil when no transfer has the id.
func (s *Service) GetTransfer(ctx context.Context, id uint128.Uint128) (*domain.Transfer, error) {
	t, err := s.ledger.GetTransfer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransfer: %w", err)
	}
	return t, nil
}

func (s *Service) GetTransfers(ctx context.Context, limit int, cursorMax, reference uint64) ([]domain.Transfer, error) {
	if limit <= 0 || limit > ledger.MaxBatchSize {
		return nil, fmt.Errorf("GetTransfers: limit must be between 1 and %d: %w", ledger.MaxBatchSize, domain.ErrInvalidRequest)
	}
	transfers, err := s.ledger.GetTransfers(ctx, ledger.TransferFilter{
		Limit:     limit,
		CursorMax: cursorMax,
		Reference: reference,
	})
	if err != nil {
		return nil, fmt.Errorf("GetTransfers: %w", err)
	}
	return transfers, nil
}

func (s *Service) requireTransactional(ctx context.Context, id uint128.Uint128) (*domain.Account, error) {
	account, err := s.ledger.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, &domain.AccountNotFoundError{AccountID: id}
	}
	if account.Type != domain.AccountTypeTransactional {
		return nil, &domain.InvalidAccountError{Got: account.Type, Expected: domain.AccountTypeTransactional}
	}
	return account, nil
}

type noopRecorder struct{}

func (noopRecorder) ObserveTransfer(string, error)      {}
func (noopRecorder) ObserveExternalTransferState(string) {}
func (noopRecorder) ObserveDuplicateRequest()           {}
