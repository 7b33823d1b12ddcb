// Package server assembles the HTTP surface of the bank.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josh-kwaku/retail-bank/internal/handler"
	"github.com/josh-kwaku/retail-bank/internal/middleware"
)

type Handlers struct {
	Health         *handler.HealthHandler
	Accounts       *handler.AccountHandler
	Loans          *handler.LoanHandler
	Transfers      *handler.TransferHandler
	Reports        *handler.ReportHandler
	Simulation     *handler.SimulationHandler
	Reconciliation *handler.ReconciliationHandler
}

// NewRouter mounts the customer API openly and the simulation and
// reconciliation endpoints behind operator tokens signed with adminSecret.
func NewRouter(h Handlers, adminSecret string, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		handler.RespondAppError(w, handler.ErrResourceNotFound, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		handler.RespondAppError(w, &handler.AppError{
			Status:  http.StatusMethodNotAllowed,
			Code:    "METHOD_NOT_ALLOWED",
			Message: "Method not allowed",
		}, nil)
	})

	r.Get("/health", h.Health.Liveness)
	r.Get("/ready", h.Health.Readiness)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.Accounts.Create)
		r.Get("/", h.Accounts.List)
		r.Get("/{id}", h.Accounts.Get)
		r.Get("/{id}/transfers", h.Accounts.Transfers)
		r.Get("/{id}/loans", h.Accounts.Loans)
	})

	r.Route("/loans", func(r chi.Router) {
		r.Post("/", h.Loans.Create)
		r.Post("/{id}/installments", h.Loans.PayInstallment)
	})

	r.Route("/transfers", func(r chi.Router) {
		r.Post("/", h.Transfers.Create)
		r.Get("/", h.Transfers.List)
		r.Get("/{id}", h.Transfers.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Operator(adminSecret))
			r.Get("/ambiguous", h.Reconciliation.ListAmbiguous)
			r.Get("/{id}/external", h.Reconciliation.Get)
			r.Post("/{id}/resolve", h.Reconciliation.Resolve)
		})
	})

	r.Post("/salaries/{id}", h.Transfers.PaySalary)
	r.Get("/report", h.Reports.Get)

	r.Route("/simulation", func(r chi.Router) {
		r.Get("/", h.Simulation.Status)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Operator(adminSecret))
			r.Post("/start", h.Simulation.Start)
			r.Post("/stop", h.Simulation.Stop)
		})
	})

	return r
}
