package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/josh-kwaku/retail-bank/internal/logging"
)

const readinessTimeout = 2 * time.Second

// Version is stamped at build time with -ldflags.
var Version = "dev"

type pinger interface {
	PingContext(ctx context.Context) error
}

type healthStatus struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler reports liveness and readiness. A nil db means the
// service runs on the in-memory ledger and has nothing to check.
type HealthHandler struct {
	db pinger
}

func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, newHealthStatus("ok", nil))
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	database := h.checkDatabase(r.Context())

	if database == "down" {
		RespondJSON(w, http.StatusServiceUnavailable, newHealthStatus("down", map[string]string{"database": database}))
		return
	}
	RespondJSON(w, http.StatusOK, newHealthStatus("ok", map[string]string{"database": database}))
}

func (h *HealthHandler) checkDatabase(ctx context.Context) string {
	if h.db == nil {
		return "skipped"
	}

	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		logging.FromContext(ctx).Warn("readiness check failed: database unreachable", "error", err)
		return "down"
	}
	return "ok"
}

func newHealthStatus(status string, checks map[string]string) healthStatus {
	return healthStatus{
		Status:    status,
		Version:   Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
}
