package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ac360/backend/services/hourly-cache-service/internal/models"
	"ac360/backend/services/hourly-cache-service/internal/service"
)

// Recalculator runs a synchronous hourly cache rebuild.
type Recalculator interface {
	Recalculate(ctx context.Context, machine models.Machine) (service.RecalculationResult, error)
}

// Scheduler queues a debounced rebuild.
type Scheduler interface {
	Schedule(machine models.Machine) bool
}

type recalculateRequest struct {
	MachineName string `json:"machine_name"`
}

type recalculateResponse struct {
	Success        bool   `json:"success"`
	RecordsUpdated int    `json:"recordsUpdated"`
	Skipped        int    `json:"skipped"`
	Error          string `json:"error,omitempty"`
}

type sessionWrittenRequest struct {
	MachineSerial int64  `json:"machine_serial"`
	MachineName   string `json:"machine_name"`
}

// NewRecalculateHandler returns POST /internal/machines/{serial}/hourly-totals/recalculate handler.
func NewRecalculateHandler(recalc Recalculator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serial, err := strconv.ParseInt(chi.URLParam(r, "serial"), 10, 64)
		if err != nil || serial <= 0 {
			writeError(w, http.StatusBadRequest, "invalid machine serial")
			return
		}

		var req recalculateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		result, err := recalc.Recalculate(r.Context(), models.Machine{Serial: serial, Name: req.MachineName})
		resp := recalculateResponse{
			Success:        result.Success,
			RecordsUpdated: result.RecordsUpdated,
			Skipped:        result.Skipped,
			Error:          result.Error,
		}
		if err != nil {
			logger.Error("recalculation request failed", zap.Int64("machine_serial", serial), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// NewSessionWrittenHandler returns POST /internal/sessions/written handler.
func NewSessionWrittenHandler(scheduler Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionWrittenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.MachineSerial <= 0 {
			writeError(w, http.StatusBadRequest, "machine_serial is required")
			return
		}
		if !scheduler.Schedule(models.Machine{Serial: req.MachineSerial, Name: req.MachineName}) {
			writeError(w, http.StatusServiceUnavailable, "shutting down")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
	}
}
