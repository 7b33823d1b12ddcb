package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

// withMessage returns a copy of e carrying msg, for errors whose text is
// part of the response.
func (e *AppError) withMessage(msg string) *AppError {
	return &AppError{Status: e.Status, Code: e.Code, Message: msg}
}

var (
	ErrUnauthorized     = &AppError{http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "UNAUTHORIZED", "Token is invalid or expired"}
	ErrForbidden        = &AppError{http.StatusForbidden, "FORBIDDEN", "Operator role required"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrAccountNotFound        = &AppError{http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found"}
	ErrAccountExists          = &AppError{http.StatusConflict, "ACCOUNT_ALREADY_EXISTS", "Account number already in use, please retry"}
	ErrInvalidAccount         = &AppError{http.StatusBadRequest, "INVALID_ACCOUNT", "Invalid account type"}
	ErrInvalidLoanAmount      = &AppError{http.StatusBadRequest, "INVALID_LOAN_AMOUNT", "Loan amount must be greater than zero"}
	ErrInvalidData            = &AppError{http.StatusBadRequest, "INVALID_DATA", "Invalid data"}
	ErrDuplicateRequest       = &AppError{http.StatusUnprocessableEntity, "DUPLICATE_REQUEST", "An identical request is already in progress or was completed recently"}
	ErrInsufficientFunds      = &AppError{http.StatusConflict, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrExternalTransferFailed = &AppError{http.StatusServiceUnavailable, "EXTERNAL_TRANSFER_FAILED", "External transfer failed"}
	ErrInvalidTransition      = &AppError{http.StatusConflict, "INVALID_STATE_TRANSITION", "Transfer is not awaiting reconciliation"}
)
