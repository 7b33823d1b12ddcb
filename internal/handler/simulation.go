package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/josh-kwaku/retail-bank/internal/logging"
)

type simulationClock interface {
	Start(unixStartSeconds int64)
	Stop()
	Running() bool
	Now() time.Time
	SimNow() time.Time
	TimeScale() uint64
}

type SimulationHandler struct {
	clock simulationClock
}

func NewSimulationHandler(clock simulationClock) *SimulationHandler {
	return &SimulationHandler{clock: clock}
}

// startSimulationRequest anchors simulated time. An omitted start means
// the simulation begins now.
type startSimulationRequest struct {
	EpochStartTime *int64 `json:"epoch_start_time"`
}

func (r startSimulationRequest) Validate() []FieldError {
	var errs []FieldError
	if r.EpochStartTime != nil && *r.EpochStartTime < 0 {
		errs = append(errs, FieldError{Field: "epoch_start_time", Message: "must not be negative"})
	}
	return errs
}

type simulationStatusDTO struct {
	Running      bool      `json:"running"`
	TimeScale    uint64    `json:"time_scale"`
	SimulatedNow time.Time `json:"simulated_now"`
}

func (h *SimulationHandler) status() simulationStatusDTO {
	return simulationStatusDTO{
		Running:      h.clock.Running(),
		TimeScale:    h.clock.TimeScale(),
		SimulatedNow: h.clock.SimNow(),
	}
}

func (h *SimulationHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	start := h.clock.Now().Unix()
	if req.EpochStartTime != nil {
		start = *req.EpochStartTime
	}
	h.clock.Start(start)
	logging.FromContext(r.Context()).Info("simulation started", "epoch_start_time", start)

	RespondSuccess(w, http.StatusOK, h.status())
}

func (h *SimulationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.clock.Stop()
	logging.FromContext(r.Context()).Info("simulation stopped")
	RespondSuccess(w, http.StatusOK, h.status())
}

func (h *SimulationHandler) Status(w http.ResponseWriter, r *http.Request) {
	RespondSuccess(w, http.StatusOK, h.status())
}
