package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/ledger"
	"github.com/josh-kwaku/retail-bank/internal/logging"
)

type accountService interface {
	CreateTransactionalAccount(ctx context.Context, salaryCents uint64) (uint128.Uint128, error)
	GetAccounts(ctx context.Context, accountType domain.AccountType, limit int, cursorMax uint64) ([]domain.Account, error)
	GetAccount(ctx context.Context, id uint128.Uint128) (*domain.Account, error)
	GetAccountTransfers(ctx context.Context, filter ledger.TransferFilter) ([]domain.Transfer, error)
	GetAccountLoans(ctx context.Context, debtorID uint128.Uint128) ([]domain.Account, error)
}

type AccountHandler struct {
	accounts accountService
}

func NewAccountHandler(accounts accountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type createAccountRequest struct {
	SalaryCents *uint64 `json:"salary_cents"`
}

func (r createAccountRequest) Validate() []FieldError {
	var errs []FieldError
	if r.SalaryCents == nil {
		errs = append(errs, FieldError{Field: "salary_cents", Message: "required"})
	}
	return errs
}

type createAccountResponse struct {
	AccountID string `json:"account_id"`
}

type debitOrderDTO struct {
	DebitAccountID string `json:"debit_account_id"`
	AmountCents    uint64 `json:"amount_cents"`
}

// Amounts are rendered as decimal strings; they do not fit a JSON number.
type accountDTO struct {
	ID             string         `json:"id"`
	AccountType    string         `json:"account_type"`
	DebitsPending  string         `json:"debits_pending"`
	DebitsPosted   string         `json:"debits_posted"`
	CreditsPending string         `json:"credits_pending"`
	CreditsPosted  string         `json:"credits_posted"`
	BalancePosted  string         `json:"balance_posted"`
	DebitOrder     *debitOrderDTO `json:"debit_order,omitempty"`
	Closed         bool           `json:"closed"`
	Cursor         uint64         `json:"cursor"`
}

func toAccountDTO(a *domain.Account) accountDTO {
	dto := accountDTO{
		ID:             a.ID.String(),
		AccountType:    a.Type.String(),
		DebitsPending:  a.DebitsPending.String(),
		DebitsPosted:   a.DebitsPosted.String(),
		CreditsPending: a.CreditsPending.String(),
		CreditsPosted:  a.CreditsPosted.String(),
		BalancePosted:  a.BalancePosted().String(),
		Closed:         a.Closed,
		Cursor:         a.Cursor,
	}
	if a.DebitOrder != nil {
		dto.DebitOrder = &debitOrderDTO{
			DebitAccountID: a.DebitOrder.DebitAccountID.String(),
			AmountCents:    a.DebitOrder.Amount,
		}
	}
	return dto
}

func toAccountDTOs(accounts []domain.Account) []accountDTO {
	dtos := make([]accountDTO, len(accounts))
	for i := range accounts {
		dtos[i] = toAccountDTO(&accounts[i])
	}
	return dtos
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	id, err := h.accounts.CreateTransactionalAccount(r.Context(), *req.SalaryCents)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to create account", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/accounts/"+id.String())
	RespondSuccess(w, http.StatusCreated, createAccountResponse{AccountID: id.String()})
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, cursorMax, fields := pageQuery(r)

	var accountType domain.AccountType
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, err := domain.ParseAccountType(raw)
		if err != nil {
			fields = append(fields, FieldError{Field: "type", Message: "must be internal, transactional, or loan"})
		}
		accountType = t
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	accounts, err := h.accounts.GetAccounts(r.Context(), accountType, limit, cursorMax)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list accounts", "error", err)
		RespondDomainError(w, err)
		return
	}

	var last uint64
	if len(accounts) > 0 {
		last = accounts[len(accounts)-1].Cursor
	}
	RespondSuccess(w, http.StatusOK, newPage(r, toAccountDTOs(accounts), limit, last))
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, appErr := accountIDParam(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Error("account lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}
	if account == nil {
		RespondDomainError(w, &domain.AccountNotFoundError{AccountID: id})
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

// Transfers returns an empty page for accounts that do not exist.
func (h *AccountHandler) Transfers(w http.ResponseWriter, r *http.Request) {
	id, appErr := accountIDParam(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	limit, cursorMax, fields := pageQuery(r)
	side, err := domain.ParseTransferSide(r.URL.Query().Get("side"))
	if err != nil {
		fields = append(fields, FieldError{Field: "side", Message: "must be debit, credit, or both"})
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	transfers, err := h.accounts.GetAccountTransfers(r.Context(), ledger.TransferFilter{
		AccountID: id,
		Limit:     limit,
		CursorMax: cursorMax,
		Side:      side,
	})
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list account transfers",
			"account_id", id.String(),
			"error", err,
		)
		RespondDomainError(w, err)
		return
	}

	var last uint64
	if len(transfers) > 0 {
		last = transfers[len(transfers)-1].Cursor
	}
	RespondSuccess(w, http.StatusOK, newPage(r, toTransferDTOs(transfers), limit, last))
}

func (h *AccountHandler) Loans(w http.ResponseWriter, r *http.Request) {
	id, appErr := accountIDParam(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	loans, err := h.accounts.GetAccountLoans(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list loans",
			"debtor_id", id.String(),
			"error", err,
		)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(len(loans)))
	RespondSuccess(w, http.StatusOK, toAccountDTOs(loans))
}
