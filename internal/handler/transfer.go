package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/logging"
	"github.com/josh-kwaku/retail-bank/internal/service/transfer"
)

type transferService interface {
	Transfer(ctx context.Context, req transfer.Request) (uint128.Uint128, error)
	PaySalary(ctx context.Context, accountID uint128.Uint128) error
	GetTransfer(ctx context.Context, id uint128.Uint128) (*domain.Transfer, error)
	GetTransfers(ctx context.Context, limit int, cursorMax, reference uint64) ([]domain.Transfer, error)
}

type TransferHandler struct {
	transfers transferService
}

func NewTransferHandler(transfers transferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

type createTransferRequest struct {
	From        string  `json:"from"`
	To          string  `json:"to"`
	AmountCents string  `json:"amount_cents"`
	Reference   *uint64 `json:"reference"`
}

func (r createTransferRequest) parse() (transfer.Request, []FieldError) {
	var (
		req  transfer.Request
		errs []FieldError
		err  error
	)

	if r.From == "" {
		errs = append(errs, FieldError{Field: "from", Message: "required"})
	} else if req.From, err = domain.ParseAccountID(r.From); err != nil {
		errs = append(errs, FieldError{Field: "from", Message: "must be a decimal account number"})
	}

	if r.To == "" {
		errs = append(errs, FieldError{Field: "to", Message: "required"})
	} else if req.To, err = domain.ParseAccountID(r.To); err != nil {
		errs = append(errs, FieldError{Field: "to", Message: "must be a decimal account number"})
	}

	amount, amountErrs := parseAmount("amount_cents", r.AmountCents)
	errs = append(errs, amountErrs...)
	req.Amount = amount

	if r.Reference != nil {
		req.Reference = *r.Reference
	}
	return req, errs
}

type createTransferResponse struct {
	TransferID string `json:"transfer_id"`
}

type transferDTO struct {
	ID                string  `json:"id"`
	DebitAccountID    string  `json:"debit_account_id"`
	CreditAccountID   string  `json:"credit_account_id"`
	Amount            string  `json:"amount"`
	PendingID         *string `json:"pending_id"`
	ExternalAccountID *string `json:"external_account_id,omitempty"`
	EventType         string  `json:"event_type"`
	Reference         *uint64 `json:"reference"`
	Cursor            uint64  `json:"cursor"`
}

func toTransferDTO(t *domain.Transfer) transferDTO {
	dto := transferDTO{
		ID:              domain.FormatTransferID(t.ID),
		DebitAccountID:  t.DebitAccountID.String(),
		CreditAccountID: t.CreditAccountID.String(),
		Amount:          t.Amount.String(),
		EventType:       t.Type.String(),
		Cursor:          t.Cursor,
	}
	if !t.ParentID.IsZero() {
		pending := domain.FormatTransferID(t.ParentID)
		dto.PendingID = &pending
	}
	if !t.ExternalAccountID.IsZero() {
		external := t.ExternalAccountID.String()
		dto.ExternalAccountID = &external
	}
	if t.Reference > 0 {
		ref := t.Reference
		dto.Reference = &ref
	}
	return dto
}

func toTransferDTOs(transfers []domain.Transfer) []transferDTO {
	dtos := make([]transferDTO, len(transfers))
	for i := range transfers {
		dtos[i] = toTransferDTO(&transfers[i])
	}
	return dtos
}

func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var body createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	req, fields := body.parse()
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	id, err := h.transfers.Transfer(r.Context(), req)
	if err != nil {
		log.Warn("transfer failed",
			"from", req.From.String(),
			"to", req.To.String(),
			"error", err,
		)
		RespondDomainError(w, err)
		return
	}

	transferID := domain.FormatTransferID(id)
	w.Header().Set("Location", "/transfers/"+transferID)
	RespondSuccess(w, http.StatusCreated, createTransferResponse{TransferID: transferID})
}

func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, cursorMax, fields := pageQuery(r)

	var reference uint64
	if raw := r.URL.Query().Get("reference"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			fields = append(fields, FieldError{Field: "reference", Message: "must be an unsigned integer"})
		}
		reference = n
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	transfers, err := h.transfers.GetTransfers(r.Context(), limit, cursorMax, reference)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list transfers", "error", err)
		RespondDomainError(w, err)
		return
	}

	var last uint64
	if len(transfers) > 0 {
		last = transfers[len(transfers)-1].Cursor
	}
	RespondSuccess(w, http.StatusOK, newPage(r, toTransferDTOs(transfers), limit, last))
}

func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, appErr := transferIDParam(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	t, err := h.transfers.GetTransfer(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Error("transfer lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	if t == nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransferDTO(t))
}

// PaySalary deposits one salary into the account, as the simulation
// would at the start of a cycle.
func (h *TransferHandler) PaySalary(w http.ResponseWriter, r *http.Request) {
	id, appErr := accountIDParam(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	if err := h.transfers.PaySalary(r.Context(), id); err != nil {
		logging.FromContext(r.Context()).Warn("salary payment failed",
			"account_id", id.String(),
			"error", err,
		)
		RespondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
