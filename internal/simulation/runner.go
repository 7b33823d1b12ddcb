// Package simulation drives the monthly banking cycle: salaries in, loan
// interest and installments out.
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/ledger"
)

type accountLister interface {
	GetAccounts(ctx context.Context, filter ledger.AccountFilter) ([]domain.Account, error)
}

type salaryPayer interface {
	PaySalary(ctx context.Context, accountID uint128.Uint128) error
}

type loanCollector interface {
	ProcessInterest(ctx context.Context, loanID uint128.Uint128) (bool, error)
	PayInstallment(ctx context.Context, loanID uint128.Uint128) error
}

type simClock interface {
	Running() bool
	SimNow() time.Time
	RealDuration(sim time.Duration) time.Duration
}

type recorder interface {
	ObserveSimulationCycle(at time.Time, err error)
	ObserveSimulationFailure(operation string)
}

const (
	opSalary      = "salary"
	opInterest    = "interest"
	opInstallment = "installment"
)

// CycleResult counts what one cycle did. Failures are per account; a
// failing account never stops the rest of the cycle.
type CycleResult struct {
	SalariesPaid          int
	InterestAccrued       int
	InstallmentsCollected int
	Failures              int
}

type Runner struct {
	accounts accountLister
	salaries salaryPayer
	loans    loanCollector
	clock    simClock
	metrics  recorder
	logger   *slog.Logger
	cycle    time.Duration
	pageSize int
}

func NewRunner(
	accounts accountLister,
	salaries salaryPayer,
	loans loanCollector,
	clock simClock,
	metrics recorder,
	logger *slog.Logger,
	cycle time.Duration,
) *Runner {
	return &Runner{
		accounts: accounts,
		salaries: salaries,
		loans:    loans,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
		cycle:    cycle,
		pageSize: ledger.MaxBatchSize,
	}
}

// Start runs a cycle every simulated cycle length while the simulation
// clock is running.
func (r *Runner) Start(ctx context.Context) {
	interval := r.clock.RealDuration(r.cycle)
	if interval <= 0 {
		interval = r.cycle
	}
	r.logger.Info("simulation runner started", "interval", interval, "cycle", r.cycle)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("simulation runner stopped")
			return
		case <-ticker.C:
			if !r.clock.Running() {
				continue
			}
			if _, err := r.RunCycle(ctx); err != nil {
				r.logger.Error("simulation cycle failed", "error", err)
			}
		}
	}
}

// RunCycle pays every salary, then accrues interest on and collects the
// installment of every loan.
func (r *Runner) RunCycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult
	at := r.clock.SimNow()
	log := r.logger.With("sim_time", at)

	err := r.forEach(ctx, domain.AccountTypeTransactional, func(a domain.Account) {
		if err := r.salaries.PaySalary(ctx, a.ID); err != nil {
			r.fail(log, opSalary, a.ID, err, &res)
			return
		}
		res.SalariesPaid++
	})
	if err == nil {
		err = r.forEach(ctx, domain.AccountTypeLoan, func(a domain.Account) {
			if a.Closed {
				return
			}
			posted, err := r.loans.ProcessInterest(ctx, a.ID)
			if err != nil {
				r.fail(log, opInterest, a.ID, err, &res)
				return
			}
			if posted {
				res.InterestAccrued++
			}
			if err := r.loans.PayInstallment(ctx, a.ID); err != nil {
				r.fail(log, opInstallment, a.ID, err, &res)
				return
			}
			res.InstallmentsCollected++
		})
	}

	if r.metrics != nil {
		r.metrics.ObserveSimulationCycle(at, err)
	}
	if err != nil {
		return res, fmt.Errorf("RunCycle: %w", err)
	}

	log.Info("simulation cycle completed",
		"salaries", res.SalariesPaid,
		"interest_accrued", res.InterestAccrued,
		"installments", res.InstallmentsCollected,
		"failures", res.Failures,
	)
	return res, nil
}

func (r *Runner) forEach(ctx context.Context, accountType domain.AccountType, fn func(domain.Account)) error {
	cursor := uint64(0)
	for {
		page, err := r.accounts.GetAccounts(ctx, ledger.AccountFilter{
			Type:      accountType,
			Limit:     r.pageSize,
			CursorMax: cursor,
		})
		if err != nil {
			return fmt.Errorf("list %s accounts: %w", accountType, err)
		}
		for _, a := range page {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fn(a)
		}
		if len(page) < r.pageSize {
			return nil
		}
		last := page[len(page)-1].Cursor
		if last <= 1 {
			return nil
		}
		cursor = last - 1
	}
}

func (r *Runner) fail(log *slog.Logger, op string, id uint128.Uint128, err error, res *CycleResult) {
	res.Failures++
	if r.metrics != nil {
		r.metrics.ObserveSimulationFailure(op)
	}
	log.Warn("simulation step failed", "operation", op, "account_id", id.String(), "error", err)
}
