package transfer

import (
	"context"
	"errors"
	"fmt"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/logging"
)

// Request is a customer transfer. Its JSON encoding is the idempotency
// fingerprint, so every field that distinguishes two transfers belongs here.
type Request struct {
	From      uint128.Uint128 `json:"from"`
	To        uint128.Uint128 `json:"to"`
	Amount    uint128.Uint128 `json:"amount"`
	Reference uint64          `json:"reference"`
}

const (
	kindDomestic = "domestic"
	kindExternal = "external"
	kindSalary   = "salary"
)

// Transfer moves req.Amount from req.From to req.To plus a fee paid by the
// sender, and returns the id of the principal leg. Destinations at another
// bank go through the two-phase external protocol.
func (s *Service) Transfer(ctx context.Context, req Request) (uint128.Uint128, error) {
	if err := s.guard.InsertAndThrow(ctx, req); err != nil {
		if errors.Is(err, domain.ErrDuplicateRequest) {
			s.metrics.ObserveDuplicateRequest()
		}
		return uint128.Zero, fmt.Errorf("Transfer: %w", err)
	}

	id, keepKey, err := s.transfer(ctx, req)
	if err != nil {
		if !keepKey {
			if clearErr := s.guard.Clear(ctx, req); clearErr != nil {
				logging.FromContext(ctx).Error("failed to clear idempotency key", "error", clearErr)
			}
		}
		return uint128.Zero, fmt.Errorf("Transfer: %w", err)
	}
	return id, nil
}

// transfer reports keepKey when the outcome is unresolved and a retry of
// the same request must stay blocked.
func (s *Service) transfer(ctx context.Context, req Request) (uint128.Uint128, bool, error) {
	payer, err := s.requireTransactional(ctx, req.From)
	if err != nil {
		return uint128.Zero, false, err
	}

	bank, ok := s.GetBankCode(req.To)
	if !ok {
		// Internal ledger accounts carry no bank prefix but still exist.
		payee, err := s.ledger.GetAccount(ctx, req.To)
		if err != nil {
			return uint128.Zero, false, fmt.Errorf("transfer: look up payee: %w", err)
		}
		if payee != nil {
			return uint128.Zero, false, &domain.InvalidAccountError{Got: payee.Type, Expected: domain.AccountTypeTransactional}
		}
		return uint128.Zero, false, &domain.InvalidDataError{
			Message: fmt.Sprintf("account %s does not belong to a known bank", req.To),
		}
	}

	if bank == domain.BankRetail {
		id, err := s.domestic(ctx, payer, req)
		s.metrics.ObserveTransfer(kindDomestic, err)
		return id, false, err
	}

	xfer, err := s.external(ctx, bank, payer, req)
	s.metrics.ObserveTransfer(kindExternal, err)
	if err != nil {
		keep := xfer != nil && xfer.State == domain.ExternalTransferAmbiguousPending
		return uint128.Zero, keep, err
	}
	return xfer.ID, false, nil
}

func (s *Service) domestic(ctx context.Context, payer *domain.Account, req Request) (uint128.Uint128, error) {
	if req.From == req.To {
		return uint128.Zero, &domain.InvalidDataError{Message: "payer and payee must be different accounts"}
	}
	payee, err := s.requireTransactional(ctx, req.To)
	if err != nil {
		return uint128.Zero, err
	}

	fee := s.fees.TransferFee(req.Amount)
	ids, err := s.ledger.TransferLinked(ctx, []domain.Transfer{
		{
			DebitAccountID:  payer.ID,
			CreditAccountID: payee.ID,
			Amount:          req.Amount,
			Reference:       req.Reference,
			Type:            domain.TransferTypeTransfer,
		},
		{
			DebitAccountID:  payer.ID,
			CreditAccountID: domain.FeeIncomeAccountID,
			Amount:          fee,
			Type:            domain.TransferTypeTransfer,
		},
	})
	if err != nil {
		return uint128.Zero, err
	}

	logging.FromContext(ctx).Info("domestic transfer completed",
		"transfer_id", domain.FormatTransferID(ids[0]),
		"from", payer.ID.String(),
		"to", payee.ID.String(),
		"amount", req.Amount.String(),
		"fee", fee.String(),
		"reference", req.Reference,
	)
	return ids[0], nil
}

// PaySalary credits the account's salary from its debit order source and
// takes the deposit fee from the recipient. Accounts without a salary are
// left alone.
func (s *Service) PaySalary(ctx context.Context, accountID uint128.Uint128) error {
	account, err := s.requireTransactional(ctx, accountID)
	if err != nil {
		return fmt.Errorf("PaySalary: %w", err)
	}
	if account.DebitOrder == nil || account.DebitOrder.Amount == 0 {
		return nil
	}

	amount := uint128.From64(account.DebitOrder.Amount)
	fee := s.fees.DepositFee(amount)

	_, err = s.ledger.TransferLinked(ctx, []domain.Transfer{
		{
			DebitAccountID:  account.DebitOrder.DebitAccountID,
			CreditAccountID: account.ID,
			Amount:          amount,
			Type:            domain.TransferTypeTransfer,
		},
		{
			DebitAccountID:  account.ID,
			CreditAccountID: domain.FeeIncomeAccountID,
			Amount:          fee,
			Type:            domain.TransferTypeTransfer,
		},
	})
	s.metrics.ObserveTransfer(kindSalary, err)
	if err != nil {
		return fmt.Errorf("PaySalary: %w", err)
	}

	logging.FromContext(ctx).Debug("salary paid",
		"account_id", account.ID.String(),
		"amount", amount.String(),
		"fee", fee.String(),
	)
	return nil
}
