// Package metrics holds the Prometheus instruments the service exports.
// All methods are safe on a nil *Metrics so callers can run without them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "retail_bank"

type Metrics struct {
	transfersTotal           *prometheus.CounterVec
	externalTransfersTotal   *prometheus.CounterVec
	interbankResultsTotal    *prometheus.CounterVec
	interbankCallDuration    *prometheus.HistogramVec
	duplicateRequestsTotal   prometheus.Counter
	idempotencyCleanupsTotal *prometheus.CounterVec
	idempotencyDeletedTotal  prometheus.Counter
	simulationCyclesTotal    *prometheus.CounterVec
	simulationFailuresTotal  *prometheus.CounterVec
	simulationLastCycleUnix  prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		transfersTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "transfers_total",
				Help:      "Ledger operations partitioned by kind and result.",
			},
			[]string{"kind", "result"},
		),
		externalTransfersTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "external_transfer_states_total",
				Help:      "External transfer state transitions partitioned by target state.",
			},
			[]string{"state"},
		),
		interbankResultsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "interbank",
				Name:      "notifications_total",
				Help:      "Interbank transfer notifications partitioned by bank and result.",
			},
			[]string{"bank", "result"},
		),
		interbankCallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "interbank",
				Name:      "call_duration_seconds",
				Help:      "Latency of calls to counterparty bank APIs.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"bank", "call"},
		),
		duplicateRequestsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "idempotency",
				Name:      "duplicate_requests_total",
				Help:      "Requests rejected as duplicates.",
			},
		),
		idempotencyCleanupsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "idempotency",
				Name:      "cleanup_runs_total",
				Help:      "Expired key cleanup runs partitioned by result.",
			},
			[]string{"result"},
		),
		idempotencyDeletedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "idempotency",
				Name:      "cleanup_deleted_total",
				Help:      "Expired idempotency keys deleted.",
			},
		),
		simulationCyclesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulation",
				Name:      "cycles_total",
				Help:      "Simulation cycles partitioned by result.",
			},
			[]string{"result"},
		),
		simulationFailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulation",
				Name:      "account_failures_total",
				Help:      "Per-account failures inside simulation cycles partitioned by operation.",
			},
			[]string{"operation"},
		),
		simulationLastCycleUnix: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "simulation",
				Name:      "last_cycle_unix",
				Help:      "Unix time of the most recent completed simulation cycle.",
			},
		),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveTransfer(kind string, err error) {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(kind, result(err)).Inc()
}

func (m *Metrics) ObserveExternalTransferState(state string) {
	if m == nil {
		return
	}
	m.externalTransfersTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveNotification(bank, outcome string) {
	if m == nil {
		return
	}
	m.interbankResultsTotal.WithLabelValues(bank, outcome).Inc()
}

func (m *Metrics) ObserveInterbankCall(bank, call string, d time.Duration) {
	if m == nil {
		return
	}
	m.interbankCallDuration.WithLabelValues(bank, call).Observe(d.Seconds())
}

func (m *Metrics) ObserveDuplicateRequest() {
	if m == nil {
		return
	}
	m.duplicateRequestsTotal.Inc()
}

func (m *Metrics) ObserveIdempotencyCleanup(deleted int64, err error) {
	if m == nil {
		return
	}
	m.idempotencyCleanupsTotal.WithLabelValues(result(err)).Inc()
	if deleted > 0 {
		m.idempotencyDeletedTotal.Add(float64(deleted))
	}
}

func (m *Metrics) ObserveSimulationCycle(at time.Time, err error) {
	if m == nil {
		return
	}
	m.simulationCyclesTotal.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.simulationLastCycleUnix.Set(float64(at.Unix()))
	}
}

func (m *Metrics) ObserveSimulationFailure(operation string) {
	if m == nil {
		return
	}
	m.simulationFailuresTotal.WithLabelValues(operation).Inc()
}
