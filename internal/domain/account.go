package domain

import (
	"fmt"
	"math/big"
	"strings"

	"lukechampine.com/uint128"
)

type AccountType uint16

const (
	AccountTypeInternal      AccountType = 1000
	AccountTypeTransactional AccountType = 2000
	AccountTypeLoan          AccountType = 3000
)

func (t AccountType) String() string {
	switch t {
	case AccountTypeInternal:
		return "Internal"
	case AccountTypeTransactional:
		return "Transactional"
	case AccountTypeLoan:
		return "Loan"
	default:
		return fmt.Sprintf("AccountType(%d)", uint16(t))
	}
}

func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeInternal, AccountTypeTransactional, AccountTypeLoan:
		return true
	}
	return false
}

func ParseAccountType(s string) (AccountType, error) {
	switch strings.ToLower(s) {
	case "internal":
		return AccountTypeInternal, nil
	case "transactional":
		return AccountTypeTransactional, nil
	case "loan":
		return AccountTypeLoan, nil
	}
	return 0, fmt.Errorf("ParseAccountType: %q: %w", s, ErrInvalidRequest)
}

// DebitOrder is a recurring charge instruction. For transactional accounts it
// names the salary source, for loans it carries the monthly installment.
type DebitOrder struct {
	DebitAccountID uint128.Uint128
	Amount         uint64
}

type Account struct {
	ID             uint128.Uint128
	Type           AccountType
	DebitOrder     *DebitOrder
	Closed         bool
	DebitsPending  uint128.Uint128
	DebitsPosted   uint128.Uint128
	CreditsPending uint128.Uint128
	CreditsPosted  uint128.Uint128
	Cursor         uint64
}

// BalancePosted is DebitsPosted - CreditsPosted. Customer deposits are
// liabilities, so a funded transactional account reports a negative balance.
func (a *Account) BalancePosted() *big.Int {
	return new(big.Int).Sub(a.DebitsPosted.Big(), a.CreditsPosted.Big())
}

// Available is what a liability account can still be debited by before the
// ledger rejects the transfer with exceeds-credits.
func (a *Account) Available() uint128.Uint128 {
	spent := a.DebitsPosted.Add(a.DebitsPending)
	if a.CreditsPosted.Cmp(spent) <= 0 {
		return uint128.Zero
	}
	return a.CreditsPosted.Sub(spent)
}

// Outstanding is the amount still owed on an asset account such as a loan.
func (a *Account) Outstanding() uint128.Uint128 {
	if a.DebitsPosted.Cmp(a.CreditsPosted) <= 0 {
		return uint128.Zero
	}
	return a.DebitsPosted.Sub(a.CreditsPosted)
}

// ParseAccountID parses a decimal account number.
func ParseAccountID(s string) (uint128.Uint128, error) {
	id, err := uint128.FromString(s)
	if err != nil {
		return uint128.Zero, fmt.Errorf("ParseAccountID: %w", ErrInvalidRequest)
	}
	return id, nil
}
