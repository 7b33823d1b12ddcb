package domain

import "fmt"

// LedgerResult is the outcome code the ledger store reports per event.
type LedgerResult uint8

const (
	ResultOK LedgerResult = iota
	ResultLinkedEventFailed
	ResultExists
	ResultExistsWithDifferentFields
	ResultAccountsMustBeDifferent
	ResultDebitAccountNotFound
	ResultCreditAccountNotFound
	ResultDebitAccountAlreadyClosed
	ResultCreditAccountAlreadyClosed
	ResultExceedsCredits
	ResultExceedsDebits
	ResultPendingTransferNotFound
	ResultPendingTransferNotPending
	ResultPendingTransferAlreadyPosted
	ResultPendingTransferAlreadyVoided
	ResultPendingTransferHasDifferentAmount
	ResultOverflow
	ResultAmountMustNotBeZero
)

var ledgerResultNames = map[LedgerResult]string{
	ResultOK:                                "ok",
	ResultLinkedEventFailed:                 "linked_event_failed",
	ResultExists:                            "exists",
	ResultExistsWithDifferentFields:         "exists_with_different_fields",
	ResultAccountsMustBeDifferent:           "accounts_must_be_different",
	ResultDebitAccountNotFound:              "debit_account_not_found",
	ResultCreditAccountNotFound:             "credit_account_not_found",
	ResultDebitAccountAlreadyClosed:         "debit_account_already_closed",
	ResultCreditAccountAlreadyClosed:        "credit_account_already_closed",
	ResultExceedsCredits:                    "exceeds_credits",
	ResultExceedsDebits:                     "exceeds_debits",
	ResultPendingTransferNotFound:           "pending_transfer_not_found",
	ResultPendingTransferNotPending:         "pending_transfer_not_pending",
	ResultPendingTransferAlreadyPosted:      "pending_transfer_already_posted",
	ResultPendingTransferAlreadyVoided:      "pending_transfer_already_voided",
	ResultPendingTransferHasDifferentAmount: "pending_transfer_has_different_amount",
	ResultOverflow:                          "overflow",
	ResultAmountMustNotBeZero:               "amount_must_not_be_zero",
}

func (r LedgerResult) String() string {
	if name, ok := ledgerResultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("LedgerResult(%d)", uint8(r))
}
