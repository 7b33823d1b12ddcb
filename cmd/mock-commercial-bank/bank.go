package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"math/rand/v2"
	"net/http"
	"regexp"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/retail-bank/internal/handler"
	"github.com/josh-kwaku/retail-bank/internal/interbank"
	"github.com/josh-kwaku/retail-bank/internal/logging"
)

// Commercial bank customers have 12 digit account numbers.
var accountNumber = regexp.MustCompile(`^[0-9]{12}$`)

type bank struct {
	mu              sync.Mutex
	registered      bool
	notificationURL string
	balanceCents    *big.Int
	loans           int
	seen            map[string]bool
	failureRate     float64
	loanSucceeds    bool
}

func newBank(openingCents int64, failureRate float64, loanSucceeds bool) *bank {
	return &bank{
		balanceCents: big.NewInt(openingCents),
		seen:         make(map[string]bool),
		failureRate:  failureRate,
		loanSucceeds: loanSucceeds,
	}
}

func (b *bank) routes(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/account", b.createAccount)
	r.Get("/account", b.getAccount)
	r.Post("/loan", b.issueLoan)
	r.Post("/transfers", b.transfer)
}

// flaky reports whether this call should fail as if the bank were down.
func (b *bank) flaky(w http.ResponseWriter) bool {
	if b.failureRate > 0 && rand.Float64() < b.failureRate {
		handler.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "temporarily unavailable"})
		return true
	}
	return false
}

func (b *bank) createAccount(w http.ResponseWriter, r *http.Request) {
	var req interbank.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.registered {
		handler.RespondJSON(w, http.StatusConflict, map[string]string{"error": "account already exists"})
		return
	}
	b.registered = true
	b.notificationURL = req.NotificationURL
	logging.FromContext(r.Context()).Info("retail bank account opened", "notification_url", req.NotificationURL)

	handler.RespondJSON(w, http.StatusCreated, interbank.AccountResponse{
		AccountNumber: "retail-bank",
		NetBalance:    netBalance(b.balanceCents),
	})
}

func (b *bank) getAccount(w http.ResponseWriter, r *http.Request) {
	if b.flaky(w) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.registered {
		handler.RespondJSON(w, http.StatusNotFound, map[string]string{"error": "account not found"})
		return
	}
	handler.RespondJSON(w, http.StatusOK, interbank.AccountResponse{
		AccountNumber: "retail-bank",
		NetBalance:    netBalance(b.balanceCents),
	})
}

func (b *bank) issueLoan(w http.ResponseWriter, r *http.Request) {
	var req interbank.IssueLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loanSucceeds {
		handler.RespondJSON(w, http.StatusOK, interbank.IssueLoanResponse{Success: false})
		return
	}
	b.loans++
	b.balanceCents.Add(b.balanceCents, interbank.AmountToCents(req.Amount))
	logging.FromContext(r.Context()).Info("liquidity loan issued", "amount", req.Amount.String(), "loans", b.loans)

	handler.RespondJSON(w, http.StatusOK, interbank.IssueLoanResponse{
		Success:    true,
		LoanNumber: fmt.Sprintf("L%06d", b.loans),
	})
}

func (b *bank) transfer(w http.ResponseWriter, r *http.Request) {
	if b.flaky(w) {
		return
	}

	var req interbank.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if !req.Amount.IsPositive() {
		handler.RespondJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}
	if !accountNumber.MatchString(req.ToAccountNumber) {
		handler.RespondJSON(w, http.StatusNotFound, map[string]string{"error": "destination account not found"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Retries of a transfer that already landed are acknowledged again.
	if !b.seen[req.TransactionNumber] {
		b.seen[req.TransactionNumber] = true
		b.balanceCents.Sub(b.balanceCents, interbank.AmountToCents(req.Amount))
	}

	logging.FromContext(r.Context()).Info("transfer accepted",
		"transaction_number", req.TransactionNumber,
		"to_account", req.ToAccountNumber,
		"amount", req.Amount.String(),
	)
	handler.RespondJSON(w, http.StatusOK, map[string]string{"transfer_id": uuid.NewString()})
}

func netBalance(cents *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(cents, -2)
}
