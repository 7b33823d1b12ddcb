package domain

import (
	"time"

	"lukechampine.com/uint128"
)

type ExternalTransferState string

const (
	ExternalTransferInitiated        ExternalTransferState = "initiated"
	ExternalTransferPending          ExternalTransferState = "pending"
	ExternalTransferCompleted        ExternalTransferState = "completed"
	ExternalTransferCancelled        ExternalTransferState = "cancelled"
	ExternalTransferAmbiguousPending ExternalTransferState = "ambiguous_pending"
)

var externalTransferTransitions = map[ExternalTransferState][]ExternalTransferState{
	// A reservation the ledger refuses never reaches pending.
	ExternalTransferInitiated: {ExternalTransferPending, ExternalTransferCancelled},
	ExternalTransferPending: {
		ExternalTransferCompleted,
		ExternalTransferCancelled,
		ExternalTransferAmbiguousPending,
	},
	ExternalTransferAmbiguousPending: {
		ExternalTransferCompleted,
		ExternalTransferCancelled,
	},
}

func (s ExternalTransferState) CanTransition(to ExternalTransferState) bool {
	for _, next := range externalTransferTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s ExternalTransferState) IsTerminal() bool {
	return s == ExternalTransferCompleted || s == ExternalTransferCancelled
}

// ExternalTransfer tracks one cross-bank transfer through the pending
// protocol. PendingIDs holds the reservation legs in submission order.
type ExternalTransfer struct {
	ID                uint128.Uint128
	Bank              Bank
	PayerAccountID    uint128.Uint128
	ExternalAccountID uint128.Uint128
	Amount            uint128.Uint128
	Fee               uint128.Uint128
	Reference         uint64
	PendingIDs        []uint128.Uint128
	State             ExternalTransferState
	UpdatedAt         time.Time
}
