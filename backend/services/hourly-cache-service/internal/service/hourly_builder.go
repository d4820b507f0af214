package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"ac360/backend/services/hourly-cache-service/internal/models"
)

var (
	errInvalidWindow = errors.New("hourly builder: window end before start")
	errNoOperator    = errors.New("hourly builder: operator not assigned")
	errBuildPanic    = errors.New("hourly builder: panic")
)

// HourBucket is one local hour of one day, possibly cut short at "now".
type HourBucket struct {
	Start    time.Time
	End      time.Time
	Date     string
	Hour     int
	DateHour string
}

// NewHourBucket labels [start, end) with the local date and hour of start in loc.
func NewHourBucket(start, end time.Time, loc *time.Location) HourBucket {
	local := start.In(loc)
	return HourBucket{
		Start:    start,
		End:      end,
		Date:     local.Format(models.DateLayout),
		Hour:     local.Hour(),
		DateHour: local.Format(models.DateHourLayout),
	}
}

// Window returns the length of the queried range.
func (b HourBucket) Window() time.Duration {
	return b.End.Sub(b.Start)
}

// BuildMachineHour aggregates a machine's sessions into a single bucket record.
// Worked time is summed across concurrently staffed stations, so it can exceed runtime.
func BuildMachineHour(machine models.Machine, sessions []models.MachineSession, bucket HourBucket, updatedAt time.Time) (total *models.HourlyTotal, err error) {
	defer recoverBuild(&total, &err)

	if bucket.End.Before(bucket.Start) {
		return nil, errInvalidWindow
	}

	var acc accumulator
	for _, s := range sessions {
		ov := CalculateOverlap(s.Start, s.End, bucket.Start, bucket.End)
		if ov.Overlap <= 0 {
			continue
		}
		stations := s.ActiveStations()
		if stations < 1 {
			stations = 1
		}
		acc.runtime += ov.Overlap
		acc.worked += ov.Overlap * time.Duration(stations)
		acc.add(ov.Factor, s.TotalCount, s.MisfeedCount, s.TotalTimeCreditSec)
	}

	windowMs := toMillis(bucket.Window())
	runtimeMs := toMillis(acc.runtime)
	if runtimeMs > windowMs {
		runtimeMs = windowMs
	}

	total = acc.record(bucket, updatedAt)
	total.ID = models.MachineHourID(machine.Serial, bucket.DateHour)
	total.EntityType = models.EntityMachine
	total.MachineSerial = machine.Serial
	total.MachineName = machine.Name
	total.RuntimeMs = runtimeMs
	total.WorkedTimeMs = toMillis(acc.worked)
	total.PausedTimeMs = windowMs - runtimeMs
	return total, nil
}

// BuildOperatorMachineHour aggregates one operator's sessions on one machine.
// Pause state is not tracked per operator, so paused time is always zero.
func BuildOperatorMachineHour(machine models.Machine, operator models.OperatorRef, sessions []models.OperatorSession, bucket HourBucket, updatedAt time.Time) (total *models.HourlyTotal, err error) {
	defer recoverBuild(&total, &err)

	operatorID, ok := operator.ID()
	if !ok {
		return nil, errNoOperator
	}
	if bucket.End.Before(bucket.Start) {
		return nil, errInvalidWindow
	}

	var acc accumulator
	for _, s := range sessions {
		ov := CalculateOverlap(s.Start, s.End, bucket.Start, bucket.End)
		if ov.Overlap <= 0 {
			continue
		}
		acc.runtime += ov.Overlap
		acc.add(ov.Factor, s.TotalCount, s.MisfeedCount, s.TotalTimeCreditSec)
	}

	runtimeMs := toMillis(acc.runtime)
	total = acc.record(bucket, updatedAt)
	total.ID = models.OperatorMachineHourID(operatorID, machine.Serial, bucket.DateHour)
	total.EntityType = models.EntityOperatorMachine
	total.MachineSerial = machine.Serial
	total.MachineName = machine.Name
	total.OperatorID = &operatorID
	total.OperatorName = operator.DisplayName()
	total.RuntimeMs = runtimeMs
	total.WorkedTimeMs = runtimeMs
	return total, nil
}

type accumulator struct {
	runtime    time.Duration
	worked     time.Duration
	counts     float64
	misfeeds   float64
	creditSecs float64
}

func (a *accumulator) add(factor, count, misfeeds, creditSecs float64) {
	a.counts += finite(count) * factor
	a.misfeeds += finite(misfeeds) * factor
	a.creditSecs += finite(creditSecs) * factor
}

// finite maps NaN and ±Inf, which DOUBLE PRECISION columns accept, to zero.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func (a *accumulator) record(bucket HourBucket, updatedAt time.Time) *models.HourlyTotal {
	return &models.HourlyTotal{
		Date:              bucket.Date,
		Hour:              bucket.Hour,
		DateHour:          bucket.DateHour,
		HourStart:         bucket.Start.UTC(),
		TotalCounts:       int64(math.Round(a.counts)),
		TotalMisfeeds:     int64(math.Round(a.misfeeds)),
		TotalTimeCreditMs: int64(math.Round(a.creditSecs * 1000)),
		TimeRange:         models.TimeRange{Start: bucket.Start.UTC(), End: bucket.End.UTC()},
		LastUpdated:       updatedAt.UTC(),
		Version:           models.HourlyTotalsVersion,
	}
}

func toMillis(d time.Duration) int64 {
	return d.Round(time.Millisecond).Milliseconds()
}

func recoverBuild(total **models.HourlyTotal, err *error) {
	if r := recover(); r != nil {
		*total = nil
		*err = fmt.Errorf("%w: %v", errBuildPanic, r)
	}
}
