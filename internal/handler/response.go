package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/retail-bank/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// RespondDomainError maps service errors onto the API error table.
// Insufficient funds must be checked before the generic ledger constraint
// case since both match a LedgerConstraintError.
func RespondDomainError(w http.ResponseWriter, err error) {
	RespondAppError(w, mapDomainError(err), nil)
}

func mapDomainError(err error) *AppError {
	var (
		invalidAccount *domain.InvalidAccountError
		invalidData    *domain.InvalidDataError
		external       *domain.ExternalTransferFailedError
		notFound       *domain.AccountNotFoundError
	)

	switch {
	case errors.As(err, &notFound):
		return ErrAccountNotFound.withMessage(notFound.Error())
	case errors.Is(err, domain.ErrAccountNotFound):
		return ErrAccountNotFound
	case errors.As(err, &invalidAccount):
		return ErrInvalidAccount.withMessage(invalidAccount.Error())
	case errors.Is(err, domain.ErrInvalidAccount):
		return ErrInvalidAccount
	case errors.Is(err, domain.ErrInvalidLoanAmount):
		return ErrInvalidLoanAmount
	case errors.As(err, &invalidData):
		return ErrInvalidData.withMessage(invalidData.Message)
	case errors.Is(err, domain.ErrDuplicateRequest):
		return ErrDuplicateRequest
	case errors.Is(err, domain.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, domain.ErrAccountExists):
		return ErrAccountExists
	case errors.As(err, &external):
		return ErrExternalTransferFailed.withMessage(external.Error())
	case errors.Is(err, domain.ErrExternalTransferFailed):
		return ErrExternalTransferFailed
	case errors.Is(err, domain.ErrInvalidTransition):
		return ErrInvalidTransition
	case errors.Is(err, domain.ErrNotFound):
		return ErrResourceNotFound
	case errors.Is(err, domain.ErrInvalidRequest):
		return ErrInvalidRequest
	default:
		slog.Error("unhandled domain error", "error", err)
		return ErrInternalError
	}
}
