// Package pricing holds the bank's fee and interest arithmetic. All results
// are whole cents, rounded towards the customer.
package pricing

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
	"lukechampine.com/uint128"
)

const precision = 30

var (
	monthsPerYear = decimal.NewFromInt(12)
	maxUint64     = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)
)

type Schedule struct {
	transferFeePct decimal.Decimal
	depositFeePct  decimal.Decimal
	annualRatePct  decimal.Decimal
	loanMonths     uint32
}

func NewSchedule(transferFeePct, depositFeePct, annualRatePct decimal.Decimal, loanMonths uint32) *Schedule {
	return &Schedule{
		transferFeePct: transferFeePct,
		depositFeePct:  depositFeePct,
		annualRatePct:  annualRatePct,
		loanMonths:     loanMonths,
	}
}

// Split is one installment broken into its ledger legs.
type Split struct {
	Due       uint128.Uint128
	Principal uint128.Uint128
	Interest  uint128.Uint128
}

func (s *Schedule) TransferFee(amount uint128.Uint128) uint128.Uint128 {
	return PercentOf(amount, s.transferFeePct)
}

func (s *Schedule) DepositFee(amount uint128.Uint128) uint128.Uint128 {
	return PercentOf(amount, s.depositFeePct)
}

func (s *Schedule) AnnualRate() decimal.Decimal { return s.annualRatePct }

func (s *Schedule) LoanMonths() uint32 { return s.loanMonths }

// Installment is the fixed monthly payment that amortises principal over
// the configured loan period. A zero loan period panics.
func (s *Schedule) Installment(principal uint64) uint64 {
	return Installment(principal, s.annualRatePct, s.loanMonths)
}

// MonthlyInterest is floor(outstanding * rate / 100 / 12).
func (s *Schedule) MonthlyInterest(outstanding uint128.Uint128) uint128.Uint128 {
	yearly := toDecimal(outstanding).Mul(s.annualRatePct).Shift(-2)
	monthly, _ := yearly.QuoRem(monthsPerYear, 0)
	return fromDecimal(monthly)
}

// SplitInstallment caps the installment at what is still owed and takes
// the month's interest out of it first.
func (s *Schedule) SplitInstallment(outstanding uint128.Uint128, installment uint64) Split {
	due := uint128.From64(installment)
	if outstanding.Cmp(due) < 0 {
		due = outstanding
	}

	interest := s.MonthlyInterest(outstanding)
	if interest.Cmp(due) > 0 {
		interest = due
	}

	return Split{Due: due, Principal: due.Sub(interest), Interest: interest}
}

// PercentOf is floor(amount * pct / 100).
func PercentOf(amount uint128.Uint128, pct decimal.Decimal) uint128.Uint128 {
	if pct.Sign() <= 0 {
		return uint128.Zero
	}
	return fromDecimal(toDecimal(amount).Mul(pct).Shift(-2).Floor())
}

// Installment computes ceil(P*r / (1 - (1+r)^-n)) with r the monthly rate.
// With a zero rate it is ceil(P/n).
func Installment(principal uint64, annualRatePct decimal.Decimal, months uint32) uint64 {
	p := decimal.NewFromBigInt(new(big.Int).SetUint64(principal), 0)
	n := decimal.NewFromInt(int64(months))

	if annualRatePct.IsZero() {
		return clampUint64(p.Div(n).Ceil())
	}

	r := annualRatePct.Shift(-2).DivRound(monthsPerYear, precision)
	growth := decimal.NewFromInt(1).Add(r).Pow(n)
	payment := p.Mul(r).Mul(growth).DivRound(growth.Sub(decimal.NewFromInt(1)), precision)
	return clampUint64(payment.Ceil())
}

func toDecimal(v uint128.Uint128) decimal.Decimal {
	return decimal.NewFromBigInt(v.Big(), 0)
}

func fromDecimal(d decimal.Decimal) uint128.Uint128 {
	if d.Sign() <= 0 {
		return uint128.Zero
	}
	return uint128.FromBig(d.BigInt())
}

func clampUint64(d decimal.Decimal) uint64 {
	if d.GreaterThan(maxUint64) {
		return math.MaxUint64
	}
	return d.BigInt().Uint64()
}
