package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/auth"
	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/logging"
)

type reconciliationService interface {
	ListAmbiguous(ctx context.Context) ([]domain.ExternalTransfer, error)
	GetExternalTransfer(ctx context.Context, id uint128.Uint128) (*domain.ExternalTransfer, error)
	ResolveExternalTransfer(ctx context.Context, id uint128.Uint128, succeeded bool) (*domain.ExternalTransfer, error)
}

// ReconciliationHandler lets an operator settle external transfers whose
// outcome at the other bank was never confirmed.
type ReconciliationHandler struct {
	transfers reconciliationService
}

func NewReconciliationHandler(transfers reconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{transfers: transfers}
}

type resolveRequest struct {
	Succeeded *bool `json:"succeeded"`
}

func (r resolveRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Succeeded == nil {
		errs = append(errs, FieldError{Field: "succeeded", Message: "required"})
	}
	return errs
}

type externalTransferDTO struct {
	ID                string    `json:"id"`
	Bank              string    `json:"bank"`
	PayerAccountID    string    `json:"payer_account_id"`
	ExternalAccountID string    `json:"external_account_id"`
	Amount            string    `json:"amount"`
	Fee               string    `json:"fee"`
	Reference         uint64    `json:"reference"`
	PendingIDs        []string  `json:"pending_ids"`
	State             string    `json:"state"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toExternalTransferDTO(x *domain.ExternalTransfer) externalTransferDTO {
	pending := make([]string, len(x.PendingIDs))
	for i, id := range x.PendingIDs {
		pending[i] = domain.FormatTransferID(id)
	}
	return externalTransferDTO{
		ID:                domain.FormatTransferID(x.ID),
		Bank:              x.Bank.String(),
		PayerAccountID:    x.PayerAccountID.String(),
		ExternalAccountID: x.ExternalAccountID.String(),
		Amount:            x.Amount.String(),
		Fee:               x.Fee.String(),
		Reference:         x.Reference,
		PendingIDs:        pending,
		State:             string(x.State),
		UpdatedAt:         x.UpdatedAt,
	}
}

func (h *ReconciliationHandler) ListAmbiguous(w http.ResponseWriter, r *http.Request) {
	xfers, err := h.transfers.ListAmbiguous(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list ambiguous transfers", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]externalTransferDTO, len(xfers))
	for i := range xfers {
		dtos[i] = toExternalTransferDTO(&xfers[i])
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *ReconciliationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, appErr := transferIDParam(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	xfer, err := h.transfers.GetExternalTransfer(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("external transfer lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toExternalTransferDTO(xfer))
}

func (h *ReconciliationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, appErr := transferIDParam(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	operator, _ := auth.SubjectFromContext(r.Context())
	ctx, log := logging.With(r.Context(),
		"transfer_id", domain.FormatTransferID(id),
		"operator", operator,
	)

	xfer, err := h.transfers.ResolveExternalTransfer(ctx, id, *req.Succeeded)
	if err != nil {
		log.Warn("reconciliation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	log.Info("external transfer reconciled", "state", string(xfer.State))
	RespondSuccess(w, http.StatusOK, toExternalTransferDTO(xfer))
}
