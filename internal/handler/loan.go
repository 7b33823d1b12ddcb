package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/logging"
)

type loanService interface {
	CreateLoanAccount(ctx context.Context, debtorID uint128.Uint128, amountCents uint64) (uint128.Uint128, error)
	PayInstallment(ctx context.Context, loanID uint128.Uint128) error
}

type LoanHandler struct {
	loans loanService
}

func NewLoanHandler(loans loanService) *LoanHandler {
	return &LoanHandler{loans: loans}
}

type createLoanRequest struct {
	DebtorAccountID string `json:"debtor_account_id"`
	LoanAmountCents uint64 `json:"loan_amount_cents"`
}

// Zero amounts are left to the service so they surface as
// INVALID_LOAN_AMOUNT rather than a generic validation failure.
func (r createLoanRequest) parse() (uint128.Uint128, []FieldError) {
	var errs []FieldError
	if r.DebtorAccountID == "" {
		errs = append(errs, FieldError{Field: "debtor_account_id", Message: "required"})
		return uint128.Zero, errs
	}
	id, err := domain.ParseAccountID(r.DebtorAccountID)
	if err != nil {
		errs = append(errs, FieldError{Field: "debtor_account_id", Message: "must be a decimal account number"})
	}
	return id, errs
}

func (h *LoanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	debtorID, fields := req.parse()
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	id, err := h.loans.CreateLoanAccount(r.Context(), debtorID, req.LoanAmountCents)
	if err != nil {
		logging.FromContext(r.Context()).Warn("loan creation failed",
			"debtor_id", debtorID.String(),
			"error", err,
		)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/accounts/"+id.String())
	RespondSuccess(w, http.StatusCreated, createAccountResponse{AccountID: id.String()})
}

func (h *LoanHandler) PayInstallment(w http.ResponseWriter, r *http.Request) {
	id, appErr := accountIDParam(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	if err := h.loans.PayInstallment(r.Context(), id); err != nil {
		logging.FromContext(r.Context()).Warn("installment collection failed",
			"loan_id", id.String(),
			"error", err,
		)
		RespondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
