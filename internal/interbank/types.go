package interbank

import (
	"math/big"

	"github.com/shopspring/decimal"
	"lukechampine.com/uint128"
)

type NotificationResult uint8

const (
	UnknownFailure  NotificationResult = 0
	Succeeded       NotificationResult = 1
	Rejected        NotificationResult = 2
	AccountNotFound NotificationResult = 4 | Rejected
)

func (r NotificationResult) String() string {
	switch r {
	case UnknownFailure:
		return "unknown_failure"
	case Succeeded:
		return "succeeded"
	case Rejected:
		return "rejected"
	case AccountNotFound:
		return "account_not_found"
	default:
		return "invalid"
	}
}

const defaultDescription = "Retail Bank Transfer"

// Wire types of the commercial bank API. Amounts are currency units with
// two decimal places.

type CreateAccountRequest struct {
	NotificationURL string `json:"notification_url"`
}

type AccountResponse struct {
	AccountNumber string          `json:"account_number"`
	NetBalance    decimal.Decimal `json:"net_balance"`
}

type IssueLoanRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type IssueLoanResponse struct {
	Success    bool   `json:"success"`
	LoanNumber string `json:"loan_number"`
}

type TransferRequest struct {
	TransactionNumber string          `json:"transaction_number"`
	FromAccountNumber string          `json:"from_account_number"`
	ToAccountNumber   string          `json:"to_account_number"`
	ToBankName        string          `json:"to_bank_name"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description"`
}

func CentsToAmount(cents uint128.Uint128) decimal.Decimal {
	return decimal.NewFromBigInt(cents.Big(), -2)
}

func AmountToCents(amount decimal.Decimal) *big.Int {
	return amount.Shift(2).Floor().BigInt()
}
