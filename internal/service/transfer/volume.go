package transfer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/ledger"
)

const volumeWindow = 24 * time.Hour

// GetRecentVolume sums the amounts of transfers made in the last simulated
// day. Posts and voids of pending transfers are skipped so a reservation is
// counted once.
func (s *Service) GetRecentVolume(ctx context.Context) (uint128.Uint128, error) {
	simNow := s.clock.SimNow().UnixNano()
	windowStart := uint64(0)
	if since := simNow - int64(volumeWindow); since > 0 {
		windowStart = uint64(since)
	}

	total := uint128.Zero
	cursor := uint64(0)
	for {
		batch, err := s.ledger.GetTransfers(ctx, ledger.TransferFilter{
			Limit:     ledger.MaxBatchSize,
			CursorMax: cursor,
		})
		if err != nil {
			return uint128.Zero, fmt.Errorf("GetRecentVolume: %w", err)
		}

		for _, t := range batch {
			if s.clock.TimestampToSim(t.Cursor) < windowStart {
				return total, nil
			}
			if t.Type.Resolves() {
				continue
			}
			total = total.Add(t.Amount)
		}

		if len(batch) < ledger.MaxBatchSize {
			return total, nil
		}
		last := batch[len(batch)-1].Cursor
		if last <= 1 {
			return total, nil
		}
		cursor = last - 1
	}
}

// Report is a point-in-time summary of the bank.
type Report struct {
	TransactionalAccounts int
	LoanAccounts          int
	RetailClearingBalance *big.Int
	RecentVolume          uint128.Uint128
	SimulatedNow          time.Time
	SimulationRunning     bool
}

func (s *Service) Report(ctx context.Context) (*Report, error) {
	transactional, err := s.countAccounts(ctx, domain.AccountTypeTransactional)
	if err != nil {
		return nil, fmt.Errorf("Report: %w", err)
	}
	loans, err := s.countAccounts(ctx, domain.AccountTypeLoan)
	if err != nil {
		return nil, fmt.Errorf("Report: %w", err)
	}

	clearing, err := s.ledger.GetAccount(ctx, domain.BankRetail.AccountID())
	if err != nil {
		return nil, fmt.Errorf("Report: %w", err)
	}
	balance := new(big.Int)
	if clearing != nil {
		balance = clearing.BalancePosted()
	}

	volume, err := s.GetRecentVolume(ctx)
	if err != nil {
		return nil, fmt.Errorf("Report: %w", err)
	}

	return &Report{
		TransactionalAccounts: transactional,
		LoanAccounts:          loans,
		RetailClearingBalance: balance,
		RecentVolume:          volume,
		SimulatedNow:          s.clock.SimNow(),
		SimulationRunning:     s.clock.Running(),
	}, nil
}

func (s *Service) countAccounts(ctx context.Context, accountType domain.AccountType) (int, error) {
	count := 0
	cursor := uint64(0)
	for {
		page, err := s.ledger.GetAccounts(ctx, ledger.AccountFilter{
			Type:      accountType,
			Limit:     ledger.MaxBatchSize,
			CursorMax: cursor,
		})
		if err != nil {
			return 0, err
		}
		count += len(page)
		if len(page) < ledger.MaxBatchSize {
			return count, nil
		}
		cursor = page[len(page)-1].Cursor - 1
	}
}
