package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/ledger"
	"github.com/josh-kwaku/retail-bank/internal/service/transfer"
)

var (
	aliceID = uint128.From64(1000_0000_0001)
	loanID  = uint128.From64(1_0000_0000_0001)
)

type fakeAccounts struct {
	salary   uint64
	accounts map[uint128.Uint128]*domain.Account
	filter   ledger.TransferFilter
	err      error
}

func (f *fakeAccounts) CreateTransactionalAccount(_ context.Context, salaryCents uint64) (uint128.Uint128, error) {
	f.salary = salaryCents
	return aliceID, f.err
}

func (f *fakeAccounts) GetAccounts(_ context.Context, accountType domain.AccountType, limit int, _ uint64) ([]domain.Account, error) {
	var out []domain.Account
	for _, a := range f.accounts {
		if accountType == 0 || a.Type == accountType {
			out = append(out, *a)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, f.err
}

func (f *fakeAccounts) GetAccount(_ context.Context, id uint128.Uint128) (*domain.Account, error) {
	return f.accounts[id], f.err
}

func (f *fakeAccounts) GetAccountTransfers(_ context.Context, filter ledger.TransferFilter) ([]domain.Transfer, error) {
	f.filter = filter
	return []domain.Transfer{{
		ID:              uint128.From64(7),
		DebitAccountID:  domain.BankRetail.AccountID(),
		CreditAccountID: filter.AccountID,
		Amount:          uint128.From64(500),
		Cursor:          42,
	}}, f.err
}

func (f *fakeAccounts) GetAccountLoans(context.Context, uint128.Uint128) ([]domain.Account, error) {
	return []domain.Account{*f.accounts[loanID]}, f.err
}

type fakeTransfers struct {
	req      transfer.Request
	salaryTo uint128.Uint128
	err      error
}

func (f *fakeTransfers) Transfer(_ context.Context, req transfer.Request) (uint128.Uint128, error) {
	f.req = req
	return uint128.New(2, 1), f.err
}

func (f *fakeTransfers) PaySalary(_ context.Context, id uint128.Uint128) error {
	f.salaryTo = id
	return f.err
}

func (f *fakeTransfers) GetTransfer(context.Context, uint128.Uint128) (*domain.Transfer, error) {
	return nil, f.err
}

func (f *fakeTransfers) GetTransfers(context.Context, int, uint64, uint64) ([]domain.Transfer, error) {
	return nil, f.err
}

type fakeLoans struct {
	debtor uint128.Uint128
	amount uint64
	err    error
}

func (f *fakeLoans) CreateLoanAccount(_ context.Context, debtorID uint128.Uint128, amountCents uint64) (uint128.Uint128, error) {
	f.debtor, f.amount = debtorID, amountCents
	return loanID, f.err
}

func (f *fakeLoans) PayInstallment(context.Context, uint128.Uint128) error { return f.err }

func newTestRouter(accounts *fakeAccounts, transfers *fakeTransfers, loans *fakeLoans) http.Handler {
	ah := NewAccountHandler(accounts)
	th := NewTransferHandler(transfers)
	lh := NewLoanHandler(loans)

	r := chi.NewRouter()
	r.Post("/accounts", ah.Create)
	r.Get("/accounts", ah.List)
	r.Get("/accounts/{id}", ah.Get)
	r.Get("/accounts/{id}/transfers", ah.Transfers)
	r.Get("/accounts/{id}/loans", ah.Loans)
	r.Post("/transfers", th.Create)
	r.Get("/transfers/{id}", th.Get)
	r.Post("/salaries/{id}", th.PaySalary)
	r.Post("/loans", lh.Create)
	r.Post("/loans/{id}/installments", lh.PayInstallment)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func seededAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: map[uint128.Uint128]*domain.Account{
		aliceID: {
			ID:            aliceID,
			Type:          domain.AccountTypeTransactional,
			CreditsPosted: uint128.From64(1500),
			DebitsPosted:  uint128.From64(200),
			DebitOrder:    &domain.DebitOrder{DebitAccountID: domain.BankRetail.AccountID(), Amount: 1500},
			Cursor:        10,
		},
		loanID: {
			ID:           loanID,
			Type:         domain.AccountTypeLoan,
			DebitsPosted: uint128.From64(100000),
			Cursor:       11,
		},
	}}
}

func TestAccountHandler_Create(t *testing.T) {
	accounts := seededAccounts()
	h := newTestRouter(accounts, &fakeTransfers{}, &fakeLoans{})

	rec := do(t, h, http.MethodPost, "/accounts", `{"salary_cents": 250000}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var got createAccountResponse
	decodeData(t, rec, &got)
	assert.Equal(t, "100000000001", got.AccountID)
	assert.Equal(t, uint64(250000), accounts.salary)
	assert.Equal(t, "/accounts/100000000001", rec.Header().Get("Location"))

	rec = do(t, h, http.MethodPost, "/accounts", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)

	rec = do(t, h, http.MethodPost, "/accounts", `not json`)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, rec).Code)
}

func TestAccountHandler_Get(t *testing.T) {
	h := newTestRouter(seededAccounts(), &fakeTransfers{}, &fakeLoans{})

	rec := do(t, h, http.MethodGet, "/accounts/100000000001", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got accountDTO
	decodeData(t, rec, &got)
	assert.Equal(t, "Transactional", got.AccountType)
	assert.Equal(t, "1500", got.CreditsPosted)
	assert.Equal(t, "-1300", got.BalancePosted)
	require.NotNil(t, got.DebitOrder)
	assert.Equal(t, "1000", got.DebitOrder.DebitAccountID)

	rec = do(t, h, http.MethodGet, "/accounts/100000000099", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ACCOUNT_NOT_FOUND", decodeError(t, rec).Code)

	rec = do(t, h, http.MethodGet, "/accounts/abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccountHandler_List(t *testing.T) {
	h := newTestRouter(seededAccounts(), &fakeTransfers{}, &fakeLoans{})

	rec := do(t, h, http.MethodGet, "/accounts?type=loan&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got page[accountDTO]
	decodeData(t, rec, &got)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Loan", got.Items[0].AccountType)
	require.NotNil(t, got.Next)
	assert.Contains(t, *got.Next, "cursor_max=10")
	assert.Contains(t, *got.Next, "type=loan")

	rec = do(t, h, http.MethodGet, "/accounts?type=savings&limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Error struct {
			Details []FieldError `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Error.Details, 2)
}

func TestAccountHandler_Transfers(t *testing.T) {
	accounts := seededAccounts()
	h := newTestRouter(accounts, &fakeTransfers{}, &fakeLoans{})

	rec := do(t, h, http.MethodGet, "/accounts/100000000001/transfers?side=credit&cursor_max=99", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, aliceID, accounts.filter.AccountID)
	assert.Equal(t, domain.TransferSideCredit, accounts.filter.Side)
	assert.Equal(t, uint64(99), accounts.filter.CursorMax)
	assert.Equal(t, defaultPageLimit, accounts.filter.Limit)

	var got page[transferDTO]
	decodeData(t, rec, &got)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "00000000000000000000000000000007", got.Items[0].ID)
	assert.Nil(t, got.Items[0].PendingID)
	assert.Nil(t, got.Items[0].Reference)

	rec = do(t, h, http.MethodGet, "/accounts/100000000001/transfers?side=sideways", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccountHandler_Loans(t *testing.T) {
	h := newTestRouter(seededAccounts(), &fakeTransfers{}, &fakeLoans{})

	rec := do(t, h, http.MethodGet, "/accounts/100000000001/loans", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []accountDTO
	decodeData(t, rec, &got)
	require.Len(t, got, 1)
	assert.Equal(t, "1000000000001", got[0].ID)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
}

func TestTransferHandler_Create(t *testing.T) {
	transfers := &fakeTransfers{}
	h := newTestRouter(seededAccounts(), transfers, &fakeLoans{})

	rec := do(t, h, http.MethodPost, "/transfers",
		`{"from":"100000000001","to":"200012345678","amount_cents":"340282366920938463463374607431768211455","reference":9}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var got createTransferResponse
	decodeData(t, rec, &got)
	assert.Equal(t, "00000000000000010000000000000002", got.TransferID)
	assert.Equal(t, aliceID, transfers.req.From)
	assert.Equal(t, uint128.From64(2000_1234_5678), transfers.req.To)
	assert.Equal(t, uint128.Max, transfers.req.Amount)
	assert.Equal(t, uint64(9), transfers.req.Reference)
}

func TestTransferHandler_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{"empty", `{}`, []string{"from", "to", "amount_cents"}},
		{"bad numbers", `{"from":"x","to":"-1","amount_cents":"1"}`, []string{"from", "to"}},
		{"zero amount", `{"from":"1","to":"2","amount_cents":"0"}`, []string{"amount_cents"}},
		{"overflowing amount", `{"from":"1","to":"2","amount_cents":"340282366920938463463374607431768211456"}`, []string{"amount_cents"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(seededAccounts(), &fakeTransfers{}, &fakeLoans{})
			rec := do(t, h, http.MethodPost, "/transfers", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp struct {
				Error struct {
					Details []FieldError `json:"details"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			var fields []string
			for _, f := range resp.Error.Details {
				fields = append(fields, f.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestTransferHandler_CreateMapsServiceErrors(t *testing.T) {
	transfers := &fakeTransfers{err: &domain.LedgerConstraintError{Kind: domain.ResultExceedsCredits}}
	h := newTestRouter(seededAccounts(), transfers, &fakeLoans{})

	rec := do(t, h, http.MethodPost, "/transfers", `{"from":"100000000001","to":"100000000002","amount_cents":"10"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INSUFFICIENT_FUNDS", decodeError(t, rec).Code)
}

func TestTransferHandler_GetMissing(t *testing.T) {
	h := newTestRouter(seededAccounts(), &fakeTransfers{}, &fakeLoans{})

	rec := do(t, h, http.MethodGet, "/transfers/0190d3a6b2c47000800000000000abcd", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/transfers/not-an-id", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransferHandler_PaySalary(t *testing.T) {
	transfers := &fakeTransfers{}
	h := newTestRouter(seededAccounts(), transfers, &fakeLoans{})

	rec := do(t, h, http.MethodPost, "/salaries/100000000001", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, aliceID, transfers.salaryTo)
}

func TestLoanHandler(t *testing.T) {
	loans := &fakeLoans{}
	h := newTestRouter(seededAccounts(), &fakeTransfers{}, loans)

	rec := do(t, h, http.MethodPost, "/loans", `{"debtor_account_id":"100000000001","loan_amount_cents":100000}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var got createAccountResponse
	decodeData(t, rec, &got)
	assert.Equal(t, "1000000000001", got.AccountID)
	assert.Equal(t, aliceID, loans.debtor)
	assert.Equal(t, uint64(100000), loans.amount)

	loans.err = &domain.InvalidLoanAmountError{}
	rec = do(t, h, http.MethodPost, "/loans", `{"debtor_account_id":"100000000001","loan_amount_cents":0}`)
	assert.Equal(t, "INVALID_LOAN_AMOUNT", decodeError(t, rec).Code)

	loans.err = nil
	rec = do(t, h, http.MethodPost, "/loans/1000000000001/installments", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type fakeReports struct{}

func (fakeReports) Report(context.Context) (*transfer.Report, error) {
	return &transfer.Report{
		TransactionalAccounts: 2,
		LoanAccounts:          1,
		RetailClearingBalance: big.NewInt(-7000),
		RecentVolume:          uint128.From64(7000),
		SimulatedNow:          time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		SimulationRunning:     true,
	}, nil
}

func TestReportHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewReportHandler(fakeReports{}).Get(rec, httptest.NewRequest(http.MethodGet, "/report", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got reportDTO
	decodeData(t, rec, &got)
	assert.Equal(t, 2, got.TransactionalAccounts)
	assert.Equal(t, "-7000", got.BankBalance)
	assert.Equal(t, "7000", got.RecentVolume)
	assert.True(t, got.SimulationRunning)
}

type fakeClock struct {
	running bool
	start   int64
}

func (c *fakeClock) Start(unixStartSeconds int64) { c.running, c.start = true, unixStartSeconds }
func (c *fakeClock) Stop()                        { c.running = false }
func (c *fakeClock) Running() bool                { return c.running }
func (c *fakeClock) Now() time.Time               { return time.Unix(1_800_000_000, 0) }
func (c *fakeClock) SimNow() time.Time            { return time.Unix(1_900_000_000, 0) }
func (c *fakeClock) TimeScale() uint64            { return 720 }

func TestSimulationHandler(t *testing.T) {
	clock := &fakeClock{}
	h := NewSimulationHandler(clock)

	rec := httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest(http.MethodPost, "/simulation/start", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, clock.running)
	assert.Equal(t, int64(1_800_000_000), clock.start, "empty body starts now")

	rec = httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest(http.MethodPost, "/simulation/start", strings.NewReader(`{"epoch_start_time":1700000000}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1_700_000_000), clock.start)

	rec = httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest(http.MethodPost, "/simulation/start", strings.NewReader(`{"epoch_start_time":-1}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Stop(rec, httptest.NewRequest(http.MethodPost, "/simulation/stop", nil))
	var got simulationStatusDTO
	decodeData(t, rec, &got)
	assert.False(t, got.Running)
	assert.Equal(t, uint64(720), got.TimeScale)
}

type fakeReconciliation struct {
	xfer      domain.ExternalTransfer
	succeeded *bool
	err       error
}

func (f *fakeReconciliation) ListAmbiguous(context.Context) ([]domain.ExternalTransfer, error) {
	return []domain.ExternalTransfer{f.xfer}, f.err
}

func (f *fakeReconciliation) GetExternalTransfer(context.Context, uint128.Uint128) (*domain.ExternalTransfer, error) {
	return &f.xfer, f.err
}

func (f *fakeReconciliation) ResolveExternalTransfer(_ context.Context, _ uint128.Uint128, succeeded bool) (*domain.ExternalTransfer, error) {
	f.succeeded = &succeeded
	if f.err != nil {
		return nil, f.err
	}
	x := f.xfer
	x.State = domain.ExternalTransferCompleted
	return &x, nil
}

func TestReconciliationHandler(t *testing.T) {
	svc := &fakeReconciliation{xfer: domain.ExternalTransfer{
		ID:         uint128.From64(1),
		Bank:       domain.BankCommercial,
		PendingIDs: []uint128.Uint128{uint128.From64(1), uint128.From64(2)},
		State:      domain.ExternalTransferAmbiguousPending,
	}}
	h := NewReconciliationHandler(svc)
	r := chi.NewRouter()
	r.Get("/transfers/ambiguous", h.ListAmbiguous)
	r.Post("/transfers/{id}/resolve", h.Resolve)

	rec := do(t, r, http.MethodGet, "/transfers/ambiguous", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []externalTransferDTO
	decodeData(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "ambiguous_pending", list[0].State)
	assert.Len(t, list[0].PendingIDs, 2)

	target := "/transfers/00000000000000000000000000000001/resolve"
	rec = do(t, r, http.MethodPost, target, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, target, `{"succeeded":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.succeeded)
	assert.True(t, *svc.succeeded)

	svc.err = fmt.Errorf("ResolveExternalTransfer: %w", domain.ErrInvalidTransition)
	rec = do(t, r, http.MethodPost, target, `{"succeeded":false}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name     string
		db       pinger
		status   int
		database string
	}{
		{"memory driver", nil, http.StatusOK, "skipped"},
		{"database up", stubPinger{}, http.StatusOK, "ok"},
		{"database down", stubPinger{err: errors.New("refused")}, http.StatusServiceUnavailable, "down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.db).Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.status, rec.Code)

			var body healthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.database, body.Checks["database"])
			assert.Equal(t, Version, body.Version)
		})
	}
}
