package interbank_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/interbank"
)

type fakeBank struct {
	mu             sync.Mutex
	netBalance     decimal.Decimal
	createStatus   int
	transferStatus []int
	transfers      []interbank.TransferRequest
	loans          []interbank.IssueLoanRequest
	transferCalls  atomic.Int32
}

func (b *fakeBank) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /accounts", func(w http.ResponseWriter, r *http.Request) {
		var req interbank.CreateAccountRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		status := b.createStatus
		if status == 0 {
			status = http.StatusCreated
		}
		w.WriteHeader(status)
	})
	mux.HandleFunc("GET /accounts/retail", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(interbank.AccountResponse{AccountNumber: "retail", NetBalance: b.netBalance})
	})
	mux.HandleFunc("POST /loans", func(w http.ResponseWriter, r *http.Request) {
		var req interbank.IssueLoanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		b.mu.Lock()
		b.loans = append(b.loans, req)
		b.netBalance = b.netBalance.Add(req.Amount)
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(interbank.IssueLoanResponse{Success: true, LoanNumber: "L1"})
	})
	mux.HandleFunc("POST /transfers", func(w http.ResponseWriter, r *http.Request) {
		n := int(b.transferCalls.Add(1)) - 1
		var req interbank.TransferRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		b.mu.Lock()
		b.transfers = append(b.transfers, req)
		b.mu.Unlock()

		status := http.StatusOK
		if n < len(b.transferStatus) {
			status = b.transferStatus[n]
		} else if len(b.transferStatus) > 0 {
			status = b.transferStatus[len(b.transferStatus)-1]
		}
		w.WriteHeader(status)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newNotifier(srvURL string, retries int) *interbank.Notifier {
	return interbank.NewNotifier(interbank.Options{
		RetryCount:         retries,
		Delay:              time.Millisecond,
		LoanAmountCents:    1_000_000_00,
		LoanThresholdCents: 500_00,
		Banks: map[domain.Bank]interbank.Endpoints{
			domain.BankCommercial: {
				CreateAccountURL: srvURL + "/accounts",
				GetAccountURL:    srvURL + "/accounts/retail",
				IssueLoanURL:     srvURL + "/loans",
				TransferURL:      srvURL + "/transfers",
				NotifyURL:        "http://retail.local/notifications",
			},
		},
	}, nil, nil)
}

var (
	txID   = uint128.New(0x01, 0x2a)
	from   = uint128.From64(1000_0000_0001)
	to     = uint128.From64(2000_0000_0009)
	amount = uint128.From64(150)
)

func TestNotifier_UnknownBankIsRejected(t *testing.T) {
	n := newNotifier("http://127.0.0.1:1", 3)
	got := n.TryExternalTransfer(context.Background(), domain.BankRetail, txID, from, to, amount, 1)
	assert.Equal(t, interbank.Rejected, got)
}

func TestNotifier_Outcomes(t *testing.T) {
	tests := []struct {
		name          string
		createStatus  int
		statuses      []int
		retries       int
		want          interbank.NotificationResult
		wantTransfers int32
	}{
		{"success", 0, []int{http.StatusOK}, 3, interbank.Succeeded, 1},
		{"existing remote account tolerated", http.StatusConflict, []int{http.StatusCreated}, 3, interbank.Succeeded, 1},
		{"client error is not retried", 0, []int{http.StatusUnprocessableEntity}, 3, interbank.Rejected, 1},
		{"missing account", 0, []int{http.StatusNotFound}, 3, interbank.AccountNotFound, 1},
		{"transient then success", 0, []int{http.StatusBadGateway, http.StatusInternalServerError, http.StatusOK}, 3, interbank.Succeeded, 3},
		{"retries exhausted", 0, []int{http.StatusServiceUnavailable}, 3, interbank.UnknownFailure, 3},
		{"create account rejected", http.StatusForbidden, nil, 3, interbank.Rejected, 0},
		{"no attempts configured", 0, []int{http.StatusOK}, 0, interbank.Rejected, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank := &fakeBank{
				netBalance:     decimal.NewFromInt(10_000),
				createStatus:   tt.createStatus,
				transferStatus: tt.statuses,
			}
			srv := bank.server(t)

			got := newNotifier(srv.URL, tt.retries).TryExternalTransfer(context.Background(), domain.BankCommercial, txID, from, to, amount, 77)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantTransfers, bank.transferCalls.Load())
			for _, req := range bank.transfers {
				assert.Equal(t, domain.FormatTransferID(txID), req.TransactionNumber, "retries reuse the transaction number")
			}
		})
	}
}

func TestNotifier_TransferPayload(t *testing.T) {
	bank := &fakeBank{netBalance: decimal.NewFromInt(10_000)}
	srv := bank.server(t)

	got := newNotifier(srv.URL, 1).TryExternalTransfer(context.Background(), domain.BankCommercial, txID, from, to, amount, 77)
	require.Equal(t, interbank.Succeeded, got)

	require.Len(t, bank.transfers, 1)
	req := bank.transfers[0]
	assert.Equal(t, "000000000000002a0000000000000001", req.TransactionNumber)
	assert.Equal(t, "100000000001", req.FromAccountNumber)
	assert.Equal(t, "200000000009", req.ToAccountNumber)
	assert.True(t, req.Amount.Equal(decimal.RequireFromString("1.50")), "amount %s", req.Amount)
	assert.Equal(t, "77", req.Description)
	assert.Empty(t, bank.loans)
}

func TestNotifier_TransactionNumberIgnoresReference(t *testing.T) {
	bank := &fakeBank{netBalance: decimal.NewFromInt(10_000)}
	srv := bank.server(t)
	n := newNotifier(srv.URL, 1)

	first, second := uint128.From64(1), uint128.From64(2)
	require.Equal(t, interbank.Succeeded, n.TryExternalTransfer(context.Background(), domain.BankCommercial, first, from, to, amount, 0))
	require.Equal(t, interbank.Succeeded, n.TryExternalTransfer(context.Background(), domain.BankCommercial, second, from, to, amount, 0))

	require.Len(t, bank.transfers, 2)
	assert.NotEqual(t, bank.transfers[0].TransactionNumber, bank.transfers[1].TransactionNumber)
	assert.Equal(t, domain.FormatTransferID(second), bank.transfers[1].TransactionNumber)
	assert.Equal(t, "Retail Bank Transfer", bank.transfers[0].Description, "no reference falls back to the default description")
}

func TestNotifier_DrawsLoanWhenBalanceLow(t *testing.T) {
	bank := &fakeBank{netBalance: decimal.RequireFromString("12.34")}
	srv := bank.server(t)

	got := newNotifier(srv.URL, 1).TryExternalTransfer(context.Background(), domain.BankCommercial, txID, from, to, amount, 1)
	require.Equal(t, interbank.Succeeded, got)

	require.Len(t, bank.loans, 1)
	assert.True(t, bank.loans[0].Amount.Equal(decimal.NewFromInt(1_000_000)))
}

func TestNotifier_IgnoresCallerCancellation(t *testing.T) {
	bank := &fakeBank{netBalance: decimal.NewFromInt(10_000)}
	srv := bank.server(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := newNotifier(srv.URL, 1).TryExternalTransfer(ctx, domain.BankCommercial, txID, from, to, amount, 1)
	assert.Equal(t, interbank.Succeeded, got)
}

func TestNotifier_TransportFailureIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	got := newNotifier(url, 2).TryExternalTransfer(context.Background(), domain.BankCommercial, txID, from, to, amount, 1)
	assert.Equal(t, interbank.UnknownFailure, got)
}

func TestCentsConversion(t *testing.T) {
	assert.Equal(t, "1234.5", interbank.CentsToAmount(uint128.From64(123450)).String())
	assert.Equal(t, int64(123456), interbank.AmountToCents(decimal.RequireFromString("1234.567")).Int64())
}
