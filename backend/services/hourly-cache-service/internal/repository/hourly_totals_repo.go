package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ac360/backend/services/hourly-cache-service/internal/metrics"
	"ac360/backend/services/hourly-cache-service/internal/models"
	"ac360/backend/services/hourly-cache-service/internal/service"
)

const defaultWriteConcurrency = 8

// HourlyTotalsRepository stores pre-aggregated hourly buckets.
type HourlyTotalsRepository struct {
	db          *sql.DB
	concurrency int
}

// NewHourlyTotalsRepository returns repository. concurrency bounds parallel upserts per batch.
func NewHourlyTotalsRepository(db *sql.DB, concurrency int) *HourlyTotalsRepository {
	if concurrency <= 0 {
		concurrency = defaultWriteConcurrency
	}
	return &HourlyTotalsRepository{db: db, concurrency: concurrency}
}

// The WHERE clause turns a rewrite with identical content into a no-op, so RETURNING
// yields no row and the record counts as unchanged.
const upsertHourlyTotalQuery = `
	INSERT INTO hourly_totals (
		id, entity_type, machine_serial, machine_name, operator_id, operator_name,
		date, hour, date_hour, hour_start,
		runtime_ms, worked_time_ms, paused_time_ms, fault_time_ms,
		total_counts, total_misfeeds, total_time_credit_ms,
		range_start, range_end, last_updated, version
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	ON CONFLICT (id) DO UPDATE SET
		entity_type = EXCLUDED.entity_type,
		machine_serial = EXCLUDED.machine_serial,
		machine_name = EXCLUDED.machine_name,
		operator_id = EXCLUDED.operator_id,
		operator_name = EXCLUDED.operator_name,
		date = EXCLUDED.date,
		hour = EXCLUDED.hour,
		date_hour = EXCLUDED.date_hour,
		hour_start = EXCLUDED.hour_start,
		runtime_ms = EXCLUDED.runtime_ms,
		worked_time_ms = EXCLUDED.worked_time_ms,
		paused_time_ms = EXCLUDED.paused_time_ms,
		fault_time_ms = EXCLUDED.fault_time_ms,
		total_counts = EXCLUDED.total_counts,
		total_misfeeds = EXCLUDED.total_misfeeds,
		total_time_credit_ms = EXCLUDED.total_time_credit_ms,
		range_start = EXCLUDED.range_start,
		range_end = EXCLUDED.range_end,
		last_updated = EXCLUDED.last_updated,
		version = EXCLUDED.version
	WHERE (
		hourly_totals.entity_type, hourly_totals.machine_serial, hourly_totals.machine_name,
		hourly_totals.operator_id, hourly_totals.operator_name,
		hourly_totals.date, hourly_totals.hour, hourly_totals.date_hour, hourly_totals.hour_start,
		hourly_totals.runtime_ms, hourly_totals.worked_time_ms, hourly_totals.paused_time_ms, hourly_totals.fault_time_ms,
		hourly_totals.total_counts, hourly_totals.total_misfeeds, hourly_totals.total_time_credit_ms,
		hourly_totals.range_start, hourly_totals.range_end, hourly_totals.version
	) IS DISTINCT FROM (
		EXCLUDED.entity_type, EXCLUDED.machine_serial, EXCLUDED.machine_name,
		EXCLUDED.operator_id, EXCLUDED.operator_name,
		EXCLUDED.date, EXCLUDED.hour, EXCLUDED.date_hour, EXCLUDED.hour_start,
		EXCLUDED.runtime_ms, EXCLUDED.worked_time_ms, EXCLUDED.paused_time_ms, EXCLUDED.fault_time_ms,
		EXCLUDED.total_counts, EXCLUDED.total_misfeeds, EXCLUDED.total_time_credit_ms,
		EXCLUDED.range_start, EXCLUDED.range_end, EXCLUDED.version
	)
	RETURNING (xmax = 0) AS inserted
`

type upsertOutcome int

const (
	outcomeUnchanged upsertOutcome = iota
	outcomeInserted
	outcomeModified
)

// BulkUpsert writes every record as insert-or-replace. Records are applied independently
// and in no particular order; one failure does not stop the others.
func (r *HourlyTotalsRepository) BulkUpsert(ctx context.Context, records []models.HourlyTotal) (service.UpsertResult, error) {
	var result service.UpsertResult
	if len(records) == 0 {
		return result, nil
	}
	started := time.Now()
	defer func() { metrics.ObserveStore("pg_bulk_upsert", time.Since(started)) }()

	var (
		mu        sync.Mutex
		errs      []error
		unchanged int
		g         errgroup.Group
	)
	g.SetLimit(r.concurrency)
	for i := range records {
		rec := records[i]
		g.Go(func() error {
			outcome, err := r.upsert(ctx, rec)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("upsert %s: %w", rec.ID, err))
			case outcome == outcomeInserted:
				result.Upserted++
			case outcome == outcomeModified:
				result.Modified++
			default:
				unchanged++
			}
			return nil
		})
	}
	_ = g.Wait()

	metrics.AddWritten("postgres", "inserted", result.Upserted)
	metrics.AddWritten("postgres", "modified", result.Modified)
	metrics.AddWritten("postgres", "unchanged", unchanged)
	metrics.AddWritten("postgres", "failed", len(errs))
	return result, errors.Join(errs...)
}

func (r *HourlyTotalsRepository) upsert(ctx context.Context, rec models.HourlyTotal) (upsertOutcome, error) {
	var operatorID sql.NullInt64
	if rec.OperatorID != nil {
		operatorID = sql.NullInt64{Int64: *rec.OperatorID, Valid: true}
	}
	var inserted bool
	err := r.db.QueryRowContext(ctx, upsertHourlyTotalQuery,
		rec.ID,
		rec.EntityType,
		rec.MachineSerial,
		rec.MachineName,
		operatorID,
		rec.OperatorName,
		rec.Date,
		rec.Hour,
		rec.DateHour,
		rec.HourStart,
		rec.RuntimeMs,
		rec.WorkedTimeMs,
		rec.PausedTimeMs,
		rec.FaultTimeMs,
		rec.TotalCounts,
		rec.TotalMisfeeds,
		rec.TotalTimeCreditMs,
		rec.TimeRange.Start,
		rec.TimeRange.End,
		rec.LastUpdated,
		rec.Version,
	).Scan(&inserted)
	if errors.Is(err, sql.ErrNoRows) {
		return outcomeUnchanged, nil
	}
	if err != nil {
		return outcomeUnchanged, err
	}
	if inserted {
		return outcomeInserted, nil
	}
	return outcomeModified, nil
}

// ListByMachineDate returns cached buckets of one machine for a local date, ordered by hour.
// An empty entityType returns both machine and operator buckets.
func (r *HourlyTotalsRepository) ListByMachineDate(ctx context.Context, machineSerial int64, date, entityType string) ([]models.HourlyTotal, error) {
	const query = `
		SELECT id, entity_type, machine_serial, machine_name, operator_id, operator_name,
		       date, hour, date_hour, hour_start,
		       runtime_ms, worked_time_ms, paused_time_ms, fault_time_ms,
		       total_counts, total_misfeeds, total_time_credit_ms,
		       range_start, range_end, last_updated, version
		FROM hourly_totals
		WHERE machine_serial = $1 AND date = $2 AND ($3 = '' OR entity_type = $3)
		ORDER BY hour_start ASC, entity_type ASC, operator_id ASC NULLS FIRST
	`
	rows, err := r.db.QueryContext(ctx, query, machineSerial, date, entityType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []models.HourlyTotal
	for rows.Next() {
		var (
			h          models.HourlyTotal
			operatorID sql.NullInt64
		)
		if err := rows.Scan(
			&h.ID,
			&h.EntityType,
			&h.MachineSerial,
			&h.MachineName,
			&operatorID,
			&h.OperatorName,
			&h.Date,
			&h.Hour,
			&h.DateHour,
			&h.HourStart,
			&h.RuntimeMs,
			&h.WorkedTimeMs,
			&h.PausedTimeMs,
			&h.FaultTimeMs,
			&h.TotalCounts,
			&h.TotalMisfeeds,
			&h.TotalTimeCreditMs,
			&h.TimeRange.Start,
			&h.TimeRange.End,
			&h.LastUpdated,
			&h.Version,
		); err != nil {
			return nil, err
		}
		if operatorID.Valid {
			id := operatorID.Int64
			h.OperatorID = &id
		}
		totals = append(totals, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return totals, nil
}
