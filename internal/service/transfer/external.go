package transfer

import (
	"context"
	"fmt"
	"log/slog"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/interbank"
	"github.com/josh-kwaku/retail-bank/internal/logging"
)

const ambiguousPageSize = 100

// external reserves the funds, asks the counterparty to pay out, then posts
// or voids the reservation. A counterparty outcome that cannot be
// determined leaves the reservation pending in AmbiguousPending for
// reconciliation. The returned record is nil only when nothing was
// persisted.
func (s *Service) external(ctx context.Context, bank domain.Bank, payer *domain.Account, req Request) (*domain.ExternalTransfer, error) {
	legs := []domain.Transfer{
		{
			ID:                domain.NewTransferID(),
			DebitAccountID:    payer.ID,
			CreditAccountID:   bank.AccountID(),
			Amount:            req.Amount,
			Reference:         req.Reference,
			Type:              domain.TransferTypeStart,
			ExternalAccountID: req.To,
		},
		{
			ID:              domain.NewTransferID(),
			DebitAccountID:  payer.ID,
			CreditAccountID: domain.FeeIncomeAccountID,
			Amount:          s.fees.TransferFee(req.Amount),
			Type:            domain.TransferTypeStart,
		},
	}

	xfer := &domain.ExternalTransfer{
		ID:                legs[0].ID,
		Bank:              bank,
		PayerAccountID:    payer.ID,
		ExternalAccountID: req.To,
		Amount:            req.Amount,
		Fee:               legs[1].Amount,
		Reference:         req.Reference,
		PendingIDs:        []uint128.Uint128{legs[0].ID, legs[1].ID},
		State:             domain.ExternalTransferInitiated,
		UpdatedAt:         s.clock.Now().UTC(),
	}

	ctx, log := logging.With(ctx,
		"transfer_id", domain.FormatTransferID(xfer.ID),
		"bank", bank.String(),
		"from", payer.ID.String(),
		"to", req.To.String(),
	)

	if err := s.states.Save(ctx, xfer); err != nil {
		return nil, fmt.Errorf("external: record transfer: %w", err)
	}

	if _, err := s.ledger.TransferLinked(ctx, legs); err != nil {
		s.advance(ctx, log, xfer, domain.ExternalTransferCancelled)
		return xfer, fmt.Errorf("external: reserve funds: %w", err)
	}
	s.advance(ctx, log, xfer, domain.ExternalTransferPending)

	result := s.notifier.TryExternalTransfer(ctx, bank, xfer.ID, payer.ID, req.To, req.Amount, req.Reference)
	log.Info("counterparty responded", "result", result.String())

	switch result {
	case interbank.Succeeded:
		if err := s.settle(ctx, xfer, domain.TransferTypeComplete); err != nil {
			log.Error("failed to post reservation after counterparty success", "error", err)
			s.advance(ctx, log, xfer, domain.ExternalTransferAmbiguousPending)
			return xfer, &domain.ExternalTransferFailedError{TransferID: xfer.ID, Reason: "counterparty paid out but the reservation could not be posted"}
		}
		s.advance(ctx, log, xfer, domain.ExternalTransferCompleted)
		return xfer, nil

	case interbank.Rejected, interbank.AccountNotFound:
		if err := s.settle(ctx, xfer, domain.TransferTypeCancel); err != nil {
			log.Error("failed to void reservation after counterparty rejection", "error", err)
			s.advance(ctx, log, xfer, domain.ExternalTransferAmbiguousPending)
			return xfer, &domain.ExternalTransferFailedError{TransferID: xfer.ID, Reason: "counterparty rejected the transfer and the reservation could not be released"}
		}
		s.advance(ctx, log, xfer, domain.ExternalTransferCancelled)
		if result == interbank.AccountNotFound {
			return xfer, &domain.AccountNotFoundError{AccountID: req.To}
		}
		return xfer, &domain.ExternalTransferFailedError{TransferID: xfer.ID, Reason: "rejected by counterparty bank"}

	default:
		s.advance(ctx, log, xfer, domain.ExternalTransferAmbiguousPending)
		log.Warn("external transfer outcome unknown, reservation left pending")
		return xfer, &domain.ExternalTransferFailedError{TransferID: xfer.ID, Reason: "counterparty outcome unknown"}
	}
}

// settle posts or voids every reservation leg of xfer in one linked batch.
func (s *Service) settle(ctx context.Context, xfer *domain.ExternalTransfer, kind domain.TransferType) error {
	legs := make([]domain.Transfer, len(xfer.PendingIDs))
	for i, parent := range xfer.PendingIDs {
		legs[i] = domain.Transfer{
			ID:       domain.NewTransferID(),
			ParentID: parent,
			Type:     kind,
		}
	}
	legs[0].Reference = xfer.Reference
	legs[0].ExternalAccountID = xfer.ExternalAccountID

	if _, err := s.ledger.TransferLinked(ctx, legs); err != nil {
		return fmt.Errorf("settle %s: %w", kind, err)
	}
	return nil
}

// advance moves xfer to next and persists it. The ledger is authoritative,
// so a failed write is logged rather than unwinding ledger work.
func (s *Service) advance(ctx context.Context, log *slog.Logger, xfer *domain.ExternalTransfer, next domain.ExternalTransferState) {
	if !xfer.State.CanTransition(next) {
		log.Error("refusing invalid external transfer transition", "from", string(xfer.State), "to", string(next))
		return
	}
	xfer.State = next
	xfer.UpdatedAt = s.clock.Now().UTC()
	s.metrics.ObserveExternalTransferState(string(next))

	if err := s.states.Save(ctx, xfer); err != nil {
		log.Error("failed to persist external transfer state", "state", string(next), "error", err)
	}
}

// ResolveExternalTransfer settles an ambiguous transfer once its real
// outcome at the counterparty is known.
func (s *Service) ResolveExternalTransfer(ctx context.Context, id uint128.Uint128, succeeded bool) (*domain.ExternalTransfer, error) {
	xfer, err := s.states.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ResolveExternalTransfer: %w", err)
	}
	if xfer.State.IsTerminal() {
		return nil, fmt.Errorf("ResolveExternalTransfer: already %s: %w", xfer.State, domain.ErrInvalidTransition)
	}
	if xfer.State != domain.ExternalTransferAmbiguousPending {
		return nil, fmt.Errorf("ResolveExternalTransfer: transfer is %s: %w", xfer.State, domain.ErrInvalidTransition)
	}

	kind, next := domain.TransferTypeCancel, domain.ExternalTransferCancelled
	if succeeded {
		kind, next = domain.TransferTypeComplete, domain.ExternalTransferCompleted
	}

	ctx, log := logging.With(ctx, "transfer_id", domain.FormatTransferID(xfer.ID))
	if err := s.settle(ctx, xfer, kind); err != nil {
		return nil, fmt.Errorf("ResolveExternalTransfer: %w", err)
	}
	s.advance(ctx, log, xfer, next)

	log.Info("ambiguous external transfer resolved", "state", string(xfer.State))
	return xfer, nil
}

// ListAmbiguous returns transfers awaiting reconciliation, oldest first.
func (s *Service) ListAmbiguous(ctx context.Context) ([]domain.ExternalTransfer, error) {
	xfers, err := s.states.ListByState(ctx, domain.ExternalTransferAmbiguousPending, ambiguousPageSize)
	if err != nil {
		return nil, fmt.Errorf("ListAmbiguous: %w", err)
	}
	return xfers, nil
}

// GetExternalTransfer returns the reconciliation record for id.
func (s *Service) GetExternalTransfer(ctx context.Context, id uint128.Uint128) (*domain.ExternalTransfer, error) {
	xfer, err := s.states.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetExternalTransfer: %w", err)
	}
	return xfer, nil
}
