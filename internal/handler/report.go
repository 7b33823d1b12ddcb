package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/josh-kwaku/retail-bank/internal/logging"
	"github.com/josh-kwaku/retail-bank/internal/service/transfer"
)

type reportService interface {
	Report(ctx context.Context) (*transfer.Report, error)
}

type ReportHandler struct {
	reports reportService
}

func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

type reportDTO struct {
	TransactionalAccounts int       `json:"transactional_accounts"`
	LoanAccounts          int       `json:"loan_accounts"`
	BankBalance           string    `json:"bank_balance"`
	RecentVolume          string    `json:"recent_volume"`
	SimulatedNow          time.Time `json:"simulated_now"`
	SimulationRunning     bool      `json:"simulation_running"`
}

func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Report(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to build report", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, reportDTO{
		TransactionalAccounts: report.TransactionalAccounts,
		LoanAccounts:          report.LoanAccounts,
		BankBalance:           report.RetailClearingBalance.String(),
		RecentVolume:          report.RecentVolume.String(),
		SimulatedNow:          report.SimulatedNow,
		SimulationRunning:     report.SimulationRunning,
	})
}
