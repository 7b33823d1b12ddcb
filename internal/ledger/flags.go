package ledger

import (
	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
)

const (
	ledgerID     uint32 = 1
	transferCode uint16 = 1
)

type TransferFlags uint16

const (
	FlagLinked TransferFlags = 1 << iota
	FlagPending
	FlagPostPending
	FlagVoidPending
	FlagBalancingDebit
	FlagBalancingCredit
	FlagClosingDebit
	FlagClosingCredit
)

type AccountFlags uint16

const (
	AccountFlagLinked AccountFlags = 1 << iota
	AccountFlagDebitsMustNotExceedCredits
	AccountFlagCreditsMustNotExceedDebits
	AccountFlagHistory
	AccountFlagImported
	AccountFlagClosed
)

type pendingStatus uint8

const (
	pendingNone pendingStatus = iota
	pendingOpen
	pendingPosted
	pendingVoided
)

// accountRecord is the row the ledger stores for an account.
type accountRecord struct {
	ID             uint128.Uint128
	UserData128    uint128.Uint128
	UserData64     uint64
	Ledger         uint32
	Code           uint16
	Flags          AccountFlags
	DebitsPending  uint128.Uint128
	DebitsPosted   uint128.Uint128
	CreditsPending uint128.Uint128
	CreditsPosted  uint128.Uint128
	Timestamp      uint64
}

type transferRecord struct {
	ID              uint128.Uint128
	DebitAccountID  uint128.Uint128
	CreditAccountID uint128.Uint128
	Amount          uint128.Uint128
	PendingID       uint128.Uint128
	UserData128     uint128.Uint128
	UserData64      uint64
	Ledger          uint32
	Code            uint16
	Flags           TransferFlags
	Timestamp       uint64
	status          pendingStatus
}

func transferTypeFlags(t domain.TransferType) TransferFlags {
	switch t {
	case domain.TransferTypeStart:
		return FlagPending
	case domain.TransferTypeComplete:
		return FlagPostPending
	case domain.TransferTypeCancel:
		return FlagVoidPending
	case domain.TransferTypeBalanceDebit:
		return FlagBalancingDebit
	case domain.TransferTypeBalanceCredit:
		return FlagBalancingCredit
	case domain.TransferTypeCloseDebit:
		return FlagClosingDebit | FlagPending
	case domain.TransferTypeCloseCredit:
		return FlagClosingCredit | FlagPending
	default:
		return 0
	}
}

func transferTypeFromFlags(f TransferFlags) domain.TransferType {
	switch {
	case f&FlagClosingCredit != 0:
		return domain.TransferTypeCloseCredit
	case f&FlagClosingDebit != 0:
		return domain.TransferTypeCloseDebit
	case f&FlagBalancingCredit != 0:
		return domain.TransferTypeBalanceCredit
	case f&FlagBalancingDebit != 0:
		return domain.TransferTypeBalanceDebit
	case f&FlagPostPending != 0:
		return domain.TransferTypeComplete
	case f&FlagVoidPending != 0:
		return domain.TransferTypeCancel
	case f&FlagPending != 0:
		return domain.TransferTypeStart
	default:
		return domain.TransferTypeTransfer
	}
}

func accountTypeFlags(t domain.AccountType) AccountFlags {
	switch t {
	case domain.AccountTypeTransactional:
		return AccountFlagDebitsMustNotExceedCredits | AccountFlagHistory
	case domain.AccountTypeLoan:
		return AccountFlagCreditsMustNotExceedDebits | AccountFlagHistory
	default:
		return 0
	}
}

func toAccountRecord(a *domain.Account) accountRecord {
	r := accountRecord{
		ID:     a.ID,
		Ledger: ledgerID,
		Code:   uint16(a.Type),
		Flags:  accountTypeFlags(a.Type),
	}
	if a.DebitOrder != nil {
		r.UserData128 = a.DebitOrder.DebitAccountID
		r.UserData64 = a.DebitOrder.Amount
	}
	return r
}

func (r *accountRecord) toDomain() domain.Account {
	a := domain.Account{
		ID:             r.ID,
		Type:           domain.AccountType(r.Code),
		Closed:         r.Flags&AccountFlagClosed != 0,
		DebitsPending:  r.DebitsPending,
		DebitsPosted:   r.DebitsPosted,
		CreditsPending: r.CreditsPending,
		CreditsPosted:  r.CreditsPosted,
		Cursor:         r.Timestamp,
	}
	if !r.UserData128.IsZero() {
		a.DebitOrder = &domain.DebitOrder{
			DebitAccountID: r.UserData128,
			Amount:         r.UserData64,
		}
	}
	return a
}

// toTransferRecords encodes a batch, chaining every leg but the last.
func toTransferRecords(transfers []domain.Transfer) []*transferRecord {
	records := make([]*transferRecord, len(transfers))
	for i, t := range transfers {
		flags := transferTypeFlags(t.Type)
		if i < len(transfers)-1 {
			flags |= FlagLinked
		}
		records[i] = &transferRecord{
			ID:              t.ID,
			DebitAccountID:  t.DebitAccountID,
			CreditAccountID: t.CreditAccountID,
			Amount:          t.Amount,
			PendingID:       t.ParentID,
			UserData128:     t.ExternalAccountID,
			UserData64:      t.Reference,
			Ledger:          ledgerID,
			Code:            transferCode,
			Flags:           flags,
		}
	}
	return records
}

func (r *transferRecord) toDomain() domain.Transfer {
	return domain.Transfer{
		ID:                r.ID,
		DebitAccountID:    r.DebitAccountID,
		CreditAccountID:   r.CreditAccountID,
		Amount:            r.Amount,
		Reference:         r.UserData64,
		Type:              transferTypeFromFlags(r.Flags),
		ParentID:          r.PendingID,
		ExternalAccountID: r.UserData128,
		Cursor:            r.Timestamp,
	}
}
