package domain

import (
	"fmt"

	"lukechampine.com/uint128"
)

// Bank identifies a bank by the four digit prefix of its account numbers.
// The same value is the id of the bank's clearing account in this ledger.
type Bank uint64

const (
	BankRetail     Bank = 1000
	BankCommercial Bank = 2000
)

const bankPrefixDigits = 4

func (b Bank) String() string {
	switch b {
	case BankRetail:
		return "retail"
	case BankCommercial:
		return "commercial"
	default:
		return fmt.Sprintf("Bank(%d)", uint64(b))
	}
}

func (b Bank) IsValid() bool {
	return b == BankRetail || b == BankCommercial
}

func (b Bank) AccountID() uint128.Uint128 {
	return uint128.From64(uint64(b))
}

var (
	InterestIncomeAccountID = uint128.From64(1002)
	LoanControlAccountID    = uint128.From64(1003)
	BadDebtsAccountID       = uint128.From64(1004)
	FeeIncomeAccountID      = uint128.From64(1005)
)

// InternalAccountIDs lists the well-known accounts created at bootstrap.
func InternalAccountIDs() []uint128.Uint128 {
	return []uint128.Uint128{
		BankRetail.AccountID(),
		BankCommercial.AccountID(),
		InterestIncomeAccountID,
		LoanControlAccountID,
		BadDebtsAccountID,
		FeeIncomeAccountID,
	}
}

// BankFromAccountID divides out everything but the leading four digits of
// id and maps the prefix to a known bank.
func BankFromAccountID(id uint128.Uint128) (Bank, bool) {
	digits := len(id.String())
	if digits < bankPrefixDigits {
		return 0, false
	}

	divisor := uint128.From64(1)
	for range digits - bankPrefixDigits {
		divisor = divisor.Mul64(10)
	}

	b := Bank(id.Div(divisor).Lo)
	if !b.IsValid() {
		return 0, false
	}
	return b, true
}
