package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"ac360/backend/services/hourly-cache-service/internal/metrics"
	"ac360/backend/services/hourly-cache-service/internal/models"
)

// SessionReader loads raw sessions for a machine that started at or after since,
// ordered by start time.
type SessionReader interface {
	MachineSessionsSince(ctx context.Context, machineSerial int64, since time.Time) ([]models.MachineSession, error)
	OperatorSessionsSince(ctx context.Context, machineSerial int64, since time.Time) ([]models.OperatorSession, error)
}

// UpsertResult counts records that were newly inserted or changed in place.
// Records rewritten with identical content count as neither.
type UpsertResult struct {
	Upserted int `json:"upserted"`
	Modified int `json:"modified"`
}

// CacheWriter idempotently stores a batch of hourly totals keyed by their ID.
// A failing record must not prevent the others from being written.
type CacheWriter interface {
	BulkUpsert(ctx context.Context, records []models.HourlyTotal) (UpsertResult, error)
}

// Notifier receives the outcome of every recalculation.
type Notifier interface {
	Publish(result RecalculationResult)
}

// RecalculationResult is reported to callers and dashboards after a run.
type RecalculationResult struct {
	MachineSerial  int64     `json:"machine_serial"`
	MachineName    string    `json:"machine_name"`
	Success        bool      `json:"success"`
	RecordsUpdated int       `json:"recordsUpdated"`
	Skipped        int       `json:"skipped"`
	Error          string    `json:"error,omitempty"`
	FinishedAt     time.Time `json:"finished_at"`
}

// HourlyCacheService rebuilds today's hourly totals for a machine.
type HourlyCacheService struct {
	reader   SessionReader
	writer   CacheWriter
	notifier Notifier
	location *time.Location
	clock    quartz.Clock
	logger   *zap.Logger
}

// NewHourlyCacheService builds service. notifier may be nil.
func NewHourlyCacheService(
	reader SessionReader,
	writer CacheWriter,
	notifier Notifier,
	location *time.Location,
	clock quartz.Clock,
	logger *zap.Logger,
) *HourlyCacheService {
	if location == nil {
		location = time.UTC
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HourlyCacheService{
		reader:   reader,
		writer:   writer,
		notifier: notifier,
		location: location,
		clock:    clock,
		logger:   logger,
	}
}

type operatorGroup struct {
	operator models.OperatorRef
	sessions []models.OperatorSession
}

// Recalculate recomputes every hour bucket of the current local day for machine and
// writes the batch through the cache writer. Buckets whose builder fails are skipped
// and counted. A read or write failure fails the whole run; there is no retry.
func (s *HourlyCacheService) Recalculate(ctx context.Context, machine models.Machine) (RecalculationResult, error) {
	started := s.clock.Now()
	result, err := s.recalculate(ctx, machine)
	result.MachineSerial = machine.Serial
	result.MachineName = machine.Name
	result.FinishedAt = s.clock.Now().UTC()
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		s.logger.Error("hourly cache recalculation failed",
			zap.Int64("machine_serial", machine.Serial),
			zap.Error(err),
		)
	} else {
		result.Success = true
		s.logger.Info("hourly cache recalculated",
			zap.Int64("machine_serial", machine.Serial),
			zap.Int("records_updated", result.RecordsUpdated),
			zap.Int("skipped", result.Skipped),
		)
	}
	metrics.ObserveRecalculation(result.Success, s.clock.Now().Sub(started))

	if s.notifier != nil {
		s.notifier.Publish(result)
	}
	return result, err
}

func (s *HourlyCacheService) recalculate(ctx context.Context, machine models.Machine) (RecalculationResult, error) {
	var result RecalculationResult

	now := s.clock.Now()
	local := now.In(s.location)
	todayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)

	machineSessions, err := s.reader.MachineSessionsSince(ctx, machine.Serial, todayStart)
	if err != nil {
		return result, fmt.Errorf("read machine sessions: %w", err)
	}
	operatorSessions, err := s.reader.OperatorSessionsSince(ctx, machine.Serial, todayStart)
	if err != nil {
		return result, fmt.Errorf("read operator sessions: %w", err)
	}
	groups := groupByOperator(operatorSessions)

	maxHours := int(math.Ceil(now.Sub(todayStart).Hours())) + 1
	batch := make([]models.HourlyTotal, 0, maxHours*(1+len(groups)))
	cursor := todayStart
	for i := 0; !cursor.After(now) && i < maxHours; i++ {
		queryEnd := cursor.Add(time.Hour)
		if queryEnd.After(now) {
			queryEnd = now
		}
		bucket := NewHourBucket(cursor, queryEnd, s.location)

		total, err := BuildMachineHour(machine, machineSessions, bucket, now)
		if err != nil {
			s.skip(&result, models.EntityMachine, machine, models.Unassigned, bucket, err)
		} else {
			batch = append(batch, *total)
		}

		for _, g := range groups {
			total, err := BuildOperatorMachineHour(machine, g.operator, g.sessions, bucket, now)
			if err != nil {
				s.skip(&result, models.EntityOperatorMachine, machine, g.operator, bucket, err)
				continue
			}
			batch = append(batch, *total)
		}

		cursor = cursor.Add(time.Hour)
	}

	batch = mergeRepeatedHours(batch)
	if len(batch) == 0 {
		return result, nil
	}

	written, err := s.writer.BulkUpsert(ctx, batch)
	if err != nil {
		return result, fmt.Errorf("write hourly totals: %w", err)
	}
	result.RecordsUpdated = written.Upserted + written.Modified
	return result, nil
}

func (s *HourlyCacheService) skip(result *RecalculationResult, entityType string, machine models.Machine, operator models.OperatorRef, bucket HourBucket, err error) {
	result.Skipped++
	metrics.IncSkipped(entityType)
	fields := []zap.Field{
		zap.String("entity_type", entityType),
		zap.Int64("machine_serial", machine.Serial),
		zap.String("date_hour", bucket.DateHour),
		zap.Error(err),
	}
	if id, ok := operator.ID(); ok {
		fields = append(fields, zap.Int64("operator_id", id))
	}
	s.logger.Warn("skipping hour bucket", fields...)
}

// groupByOperator keeps first-seen order so output is stable across runs.
func groupByOperator(sessions []models.OperatorSession) []*operatorGroup {
	index := make(map[int64]*operatorGroup)
	var groups []*operatorGroup
	for _, sess := range sessions {
		id, ok := sess.Operator.ID()
		if !ok {
			continue
		}
		g, exists := index[id]
		if !exists {
			g = &operatorGroup{operator: sess.Operator}
			index[id] = g
			groups = append(groups, g)
		} else if g.operator.Name() == "" && sess.Operator.Name() != "" {
			g.operator = sess.Operator
		}
		g.sessions = append(g.sessions, sess)
	}
	return groups
}

// mergeRepeatedHours folds buckets sharing an ID into one record. This only happens on
// the day clocks fall back, when one local hour spans two absolute hours.
func mergeRepeatedHours(batch []models.HourlyTotal) []models.HourlyTotal {
	seen := make(map[string]int, len(batch))
	out := batch[:0]
	for _, rec := range batch {
		i, dup := seen[rec.ID]
		if !dup {
			seen[rec.ID] = len(out)
			out = append(out, rec)
			continue
		}
		prev := &out[i]
		prev.RuntimeMs += rec.RuntimeMs
		prev.WorkedTimeMs += rec.WorkedTimeMs
		prev.PausedTimeMs += rec.PausedTimeMs
		prev.FaultTimeMs += rec.FaultTimeMs
		prev.TotalCounts += rec.TotalCounts
		prev.TotalMisfeeds += rec.TotalMisfeeds
		prev.TotalTimeCreditMs += rec.TotalTimeCreditMs
		prev.TimeRange.End = rec.TimeRange.End
	}
	return out
}
