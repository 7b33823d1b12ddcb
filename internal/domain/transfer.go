package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"lukechampine.com/uint128"
)

type TransferType uint8

const (
	TransferTypeTransfer TransferType = iota
	TransferTypeStart
	TransferTypeComplete
	TransferTypeCancel
	TransferTypeBalanceDebit
	TransferTypeBalanceCredit
	TransferTypeCloseDebit
	TransferTypeCloseCredit
)

func (t TransferType) String() string {
	switch t {
	case TransferTypeTransfer:
		return "Transfer"
	case TransferTypeStart:
		return "StartTransfer"
	case TransferTypeComplete:
		return "CompleteTransfer"
	case TransferTypeCancel:
		return "CancelTransfer"
	case TransferTypeBalanceDebit:
		return "BalanceDebit"
	case TransferTypeBalanceCredit:
		return "BalanceCredit"
	case TransferTypeCloseDebit:
		return "CloseDebit"
	case TransferTypeCloseCredit:
		return "CloseCredit"
	default:
		return fmt.Sprintf("TransferType(%d)", uint8(t))
	}
}

// Resolves reports whether the transfer posts or voids a pending parent.
func (t TransferType) Resolves() bool {
	return t == TransferTypeComplete || t == TransferTypeCancel
}

type TransferSide uint8

const (
	TransferSideBoth TransferSide = iota
	TransferSideDebit
	TransferSideCredit
)

func ParseTransferSide(s string) (TransferSide, error) {
	switch strings.ToLower(s) {
	case "", "both", "any":
		return TransferSideBoth, nil
	case "debit":
		return TransferSideDebit, nil
	case "credit":
		return TransferSideCredit, nil
	}
	return 0, fmt.Errorf("ParseTransferSide: %q: %w", s, ErrInvalidRequest)
}

type Transfer struct {
	ID              uint128.Uint128
	DebitAccountID  uint128.Uint128
	CreditAccountID uint128.Uint128
	Amount          uint128.Uint128
	Reference       uint64
	Type            TransferType
	// ParentID names the pending transfer a Complete or Cancel resolves.
	ParentID uint128.Uint128
	// ExternalAccountID is the destination account at another bank for
	// legs that credit that bank's clearing account.
	ExternalAccountID uint128.Uint128
	Cursor            uint64
}

// NewTransferID returns a time-ordered 128-bit id.
func NewTransferID() uint128.Uint128 {
	u := uuid.Must(uuid.NewV7())
	return uint128.FromBytesBE(u[:])
}

// FormatTransferID renders ids the way the API exposes them.
func FormatTransferID(id uint128.Uint128) string {
	var b [16]byte
	id.PutBytesBE(b[:])
	return fmt.Sprintf("%x", b[:])
}

func ParseTransferID(s string) (uint128.Uint128, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uint128.Zero, fmt.Errorf("ParseTransferID: %w", ErrInvalidRequest)
	}
	return uint128.FromBytesBE(u[:]), nil
}
