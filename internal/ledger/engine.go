package ledger

import (
	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
)

// loader reads committed state. Implementations return copies the working
// set is free to mutate, and nil when the row does not exist.
type loader interface {
	loadAccount(id uint128.Uint128) (*accountRecord, error)
	loadTransfer(id uint128.Uint128) (*transferRecord, error)
}

// workingSet applies a batch against a private copy of the rows it touches.
// Nothing reaches the store unless every event in the batch succeeds.
type workingSet struct {
	src       loader
	accounts  map[uint128.Uint128]*accountRecord
	transfers map[uint128.Uint128]*transferRecord

	dirty    []*accountRecord
	dirtySet map[uint128.Uint128]bool
	created  []*transferRecord
	resolved []*transferRecord
}

func newWorkingSet(src loader) *workingSet {
	return &workingSet{
		src:       src,
		accounts:  make(map[uint128.Uint128]*accountRecord),
		transfers: make(map[uint128.Uint128]*transferRecord),
		dirtySet:  make(map[uint128.Uint128]bool),
	}
}

func (ws *workingSet) account(id uint128.Uint128) (*accountRecord, error) {
	if a, ok := ws.accounts[id]; ok {
		return a, nil
	}
	a, err := ws.src.loadAccount(id)
	if err != nil {
		return nil, err
	}
	ws.accounts[id] = a
	return a, nil
}

func (ws *workingSet) transfer(id uint128.Uint128) (*transferRecord, error) {
	if t, ok := ws.transfers[id]; ok {
		return t, nil
	}
	t, err := ws.src.loadTransfer(id)
	if err != nil {
		return nil, err
	}
	ws.transfers[id] = t
	return t, nil
}

func (ws *workingSet) touch(a *accountRecord) {
	if !ws.dirtySet[a.ID] {
		ws.dirtySet[a.ID] = true
		ws.dirty = append(ws.dirty, a)
	}
}

// apply runs one transfer through the ledger rules. On anything but
// ResultOK the working set must be discarded.
func (ws *workingSet) apply(t *transferRecord) (domain.LedgerResult, error) {
	existing, err := ws.transfer(t.ID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return domain.ResultExists, nil
	}

	var result domain.LedgerResult
	if t.Flags&(FlagPostPending|FlagVoidPending) != 0 {
		result, err = ws.resolvePending(t)
	} else {
		result, err = ws.post(t)
	}
	if err != nil || result != domain.ResultOK {
		return result, err
	}

	ws.transfers[t.ID] = t
	ws.created = append(ws.created, t)
	return domain.ResultOK, nil
}

func (ws *workingSet) post(t *transferRecord) (domain.LedgerResult, error) {
	if t.DebitAccountID == t.CreditAccountID {
		return domain.ResultAccountsMustBeDifferent, nil
	}

	dr, err := ws.account(t.DebitAccountID)
	if err != nil {
		return 0, err
	}
	if dr == nil {
		return domain.ResultDebitAccountNotFound, nil
	}
	cr, err := ws.account(t.CreditAccountID)
	if err != nil {
		return 0, err
	}
	if cr == nil {
		return domain.ResultCreditAccountNotFound, nil
	}
	if dr.Flags&AccountFlagClosed != 0 {
		return domain.ResultDebitAccountAlreadyClosed, nil
	}
	if cr.Flags&AccountFlagClosed != 0 {
		return domain.ResultCreditAccountAlreadyClosed, nil
	}

	amount := t.Amount
	if t.Flags&FlagBalancingDebit != 0 {
		amount = minU128(amount, headroom(dr.CreditsPosted, dr.DebitsPosted, dr.DebitsPending))
	}
	if t.Flags&FlagBalancingCredit != 0 {
		amount = minU128(amount, headroom(cr.DebitsPosted, cr.CreditsPosted, cr.CreditsPending))
	}

	pending := t.Flags&FlagPending != 0

	drPending, drPosted := dr.DebitsPending, dr.DebitsPosted
	crPending, crPosted := cr.CreditsPending, cr.CreditsPosted
	var ok bool
	if pending {
		drPending, ok = addU128(drPending, amount)
		if !ok {
			return domain.ResultOverflow, nil
		}
		crPending, ok = addU128(crPending, amount)
	} else {
		drPosted, ok = addU128(drPosted, amount)
		if !ok {
			return domain.ResultOverflow, nil
		}
		crPosted, ok = addU128(crPosted, amount)
	}
	if !ok {
		return domain.ResultOverflow, nil
	}

	if dr.Flags&AccountFlagDebitsMustNotExceedCredits != 0 {
		total, ok := addU128(drPending, drPosted)
		if !ok || total.Cmp(dr.CreditsPosted) > 0 {
			return domain.ResultExceedsCredits, nil
		}
	}
	if cr.Flags&AccountFlagCreditsMustNotExceedDebits != 0 {
		total, ok := addU128(crPending, crPosted)
		if !ok || total.Cmp(cr.DebitsPosted) > 0 {
			return domain.ResultExceedsDebits, nil
		}
	}

	dr.DebitsPending, dr.DebitsPosted = drPending, drPosted
	cr.CreditsPending, cr.CreditsPosted = crPending, crPosted

	if t.Flags&FlagClosingDebit != 0 {
		dr.Flags |= AccountFlagClosed
	}
	if t.Flags&FlagClosingCredit != 0 {
		cr.Flags |= AccountFlagClosed
	}

	t.Amount = amount
	if pending {
		t.status = pendingOpen
	}
	ws.touch(dr)
	ws.touch(cr)
	return domain.ResultOK, nil
}

func (ws *workingSet) resolvePending(t *transferRecord) (domain.LedgerResult, error) {
	if t.PendingID.IsZero() {
		return domain.ResultPendingTransferNotFound, nil
	}
	p, err := ws.transfer(t.PendingID)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return domain.ResultPendingTransferNotFound, nil
	}
	if p.Flags&FlagPending == 0 {
		return domain.ResultPendingTransferNotPending, nil
	}
	switch p.status {
	case pendingPosted:
		return domain.ResultPendingTransferAlreadyPosted, nil
	case pendingVoided:
		return domain.ResultPendingTransferAlreadyVoided, nil
	}

	post := t.Flags&FlagPostPending != 0
	amount := t.Amount
	switch {
	case amount.IsZero():
		amount = p.Amount
	case amount.Cmp(p.Amount) > 0:
		return domain.ResultPendingTransferHasDifferentAmount, nil
	case !post && amount != p.Amount:
		return domain.ResultPendingTransferHasDifferentAmount, nil
	}

	dr, err := ws.account(p.DebitAccountID)
	if err != nil {
		return 0, err
	}
	cr, err := ws.account(p.CreditAccountID)
	if err != nil {
		return 0, err
	}
	if dr == nil {
		return domain.ResultDebitAccountNotFound, nil
	}
	if cr == nil {
		return domain.ResultCreditAccountNotFound, nil
	}

	dr.DebitsPending = dr.DebitsPending.Sub(p.Amount)
	cr.CreditsPending = cr.CreditsPending.Sub(p.Amount)
	if post {
		var ok bool
		if dr.DebitsPosted, ok = addU128(dr.DebitsPosted, amount); !ok {
			return domain.ResultOverflow, nil
		}
		if cr.CreditsPosted, ok = addU128(cr.CreditsPosted, amount); !ok {
			return domain.ResultOverflow, nil
		}
		p.status = pendingPosted
	} else {
		if p.Flags&FlagClosingDebit != 0 {
			dr.Flags &^= AccountFlagClosed
		}
		if p.Flags&FlagClosingCredit != 0 {
			cr.Flags &^= AccountFlagClosed
		}
		p.status = pendingVoided
	}

	t.DebitAccountID = p.DebitAccountID
	t.CreditAccountID = p.CreditAccountID
	t.Amount = amount
	if t.UserData128.IsZero() {
		t.UserData128 = p.UserData128
	}

	ws.resolved = append(ws.resolved, p)
	ws.touch(dr)
	ws.touch(cr)
	return domain.ResultOK, nil
}

// headroom returns limit - used - reserved, floored at zero.
func headroom(limit, used, reserved uint128.Uint128) uint128.Uint128 {
	spent, ok := addU128(used, reserved)
	if !ok || spent.Cmp(limit) >= 0 {
		return uint128.Zero
	}
	return limit.Sub(spent)
}

func addU128(a, b uint128.Uint128) (uint128.Uint128, bool) {
	sum := a.AddWrap(b)
	return sum, sum.Cmp(a) >= 0
}

func minU128(a, b uint128.Uint128) uint128.Uint128 {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
