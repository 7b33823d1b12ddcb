package domain

import (
	"errors"
	"fmt"

	"lukechampine.com/uint128"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrAccountNotFound        = errors.New("account not found")
	ErrAccountExists          = errors.New("account already exists")
	ErrInvalidAccount         = errors.New("invalid account type")
	ErrInvalidLoanAmount      = errors.New("loan amount must be greater than zero")
	ErrInvalidData            = errors.New("invalid data")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrLedgerConstraint       = errors.New("ledger constraint violated")
	ErrExternalTransferFailed = errors.New("external transfer failed")
	ErrDuplicateRequest       = errors.New("duplicate request")
	ErrTooManyLoans           = errors.New("debtor holds more loans than a single query returns")
	ErrInvalidTransition      = errors.New("invalid external transfer state transition")
)

type AccountNotFoundError struct {
	AccountID uint128.Uint128
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account %s not found", e.AccountID)
}

func (e *AccountNotFoundError) Is(target error) bool { return target == ErrAccountNotFound }

type InvalidAccountError struct {
	Got      AccountType
	Expected AccountType
}

func (e *InvalidAccountError) Error() string {
	return fmt.Sprintf("Expected %s account, but got %s account.", e.Expected, e.Got)
}

func (e *InvalidAccountError) Is(target error) bool { return target == ErrInvalidAccount }

type InvalidLoanAmountError struct {
	Amount uint64
}

func (e *InvalidLoanAmountError) Error() string {
	return fmt.Sprintf("invalid loan amount %d", e.Amount)
}

func (e *InvalidLoanAmountError) Is(target error) bool { return target == ErrInvalidLoanAmount }

type InvalidDataError struct {
	Message string
}

func (e *InvalidDataError) Error() string { return e.Message }

func (e *InvalidDataError) Is(target error) bool { return target == ErrInvalidData }

type ExternalTransferFailedError struct {
	TransferID uint128.Uint128
	Reason     string
}

func (e *ExternalTransferFailedError) Error() string {
	return fmt.Sprintf("external transfer %s failed: %s", FormatTransferID(e.TransferID), e.Reason)
}

func (e *ExternalTransferFailedError) Is(target error) bool {
	return target == ErrExternalTransferFailed
}

// LedgerConstraintError is a rejection reported by the ledger store. Index
// is the position of the failing leg within its batch.
type LedgerConstraintError struct {
	Kind  LedgerResult
	Index int
}

func (e *LedgerConstraintError) Error() string {
	return fmt.Sprintf("ledger rejected transfer %d: %s", e.Index, e.Kind)
}

func (e *LedgerConstraintError) Is(target error) bool {
	switch target {
	case ErrLedgerConstraint:
		return true
	case ErrInsufficientFunds:
		return e.Kind == ResultExceedsCredits
	case ErrAccountExists:
		return e.Kind == ResultExists
	}
	return false
}
