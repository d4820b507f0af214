package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/quartz"

	"ac360/backend/services/hourly-cache-service/internal/models"
)

// TotalsLister reads cached buckets for dashboards.
type TotalsLister interface {
	ListByMachineDate(ctx context.Context, machineSerial int64, date, entityType string) ([]models.HourlyTotal, error)
}

// NewHourlyTotalsHandler returns GET /hourly-totals handler. date defaults to today in loc.
func NewHourlyTotalsHandler(lister TotalsLister, loc *time.Location, clock quartz.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		serial, err := strconv.ParseInt(q.Get("machine_serial"), 10, 64)
		if err != nil || serial <= 0 {
			writeError(w, http.StatusBadRequest, "machine_serial is required")
			return
		}

		date := q.Get("date")
		if date == "" {
			date = clock.Now().In(loc).Format(models.DateLayout)
		} else if _, err := time.ParseInLocation(models.DateLayout, date, loc); err != nil {
			writeError(w, http.StatusBadRequest, "date must be yyyy-mm-dd")
			return
		}

		entityType := q.Get("entity_type")
		switch entityType {
		case "", models.EntityMachine, models.EntityOperatorMachine:
		default:
			writeError(w, http.StatusBadRequest, "unknown entity_type")
			return
		}

		totals, err := lister.ListByMachineDate(r.Context(), serial, date, entityType)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to fetch hourly totals")
			return
		}
		if totals == nil {
			totals = []models.HourlyTotal{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"date":   date,
			"totals": totals,
		})
	}
}
