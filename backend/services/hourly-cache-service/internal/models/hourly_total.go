package models

import (
	"fmt"
	"time"
)

// Entity types stored in the hourly cache.
const (
	EntityMachine         = "machine"
	EntityOperatorMachine = "operator-machine"
)

// HourlyTotalsVersion tags the layout of cached records.
const HourlyTotalsVersion = "1.0"

// DateHourLayout formats the combined date-hour key, e.g. 2024-03-05-09.
const DateHourLayout = "2006-01-02-15"

// DateLayout formats the calendar date of a bucket.
const DateLayout = "2006-01-02"

// TimeRange is the window a bucket was computed over.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// HourlyTotal is the pre-aggregated snapshot for one entity and one local hour.
type HourlyTotal struct {
	ID                string    `db:"id" json:"id"`
	EntityType        string    `db:"entity_type" json:"entity_type"`
	MachineSerial     int64     `db:"machine_serial" json:"machine_serial"`
	MachineName       string    `db:"machine_name" json:"machine_name"`
	OperatorID        *int64    `db:"operator_id" json:"operator_id,omitempty"`
	OperatorName      string    `db:"operator_name" json:"operator_name,omitempty"`
	Date              string    `db:"date" json:"date"`
	Hour              int       `db:"hour" json:"hour"`
	DateHour          string    `db:"date_hour" json:"date_hour"`
	HourStart         time.Time `db:"hour_start" json:"hour_start"`
	RuntimeMs         int64     `db:"runtime_ms" json:"runtime_ms"`
	WorkedTimeMs      int64     `db:"worked_time_ms" json:"worked_time_ms"`
	PausedTimeMs      int64     `db:"paused_time_ms" json:"paused_time_ms"`
	FaultTimeMs       int64     `db:"fault_time_ms" json:"fault_time_ms"`
	TotalCounts       int64     `db:"total_counts" json:"total_counts"`
	TotalMisfeeds     int64     `db:"total_misfeeds" json:"total_misfeeds"`
	TotalTimeCreditMs int64     `db:"total_time_credit_ms" json:"total_time_credit_ms"`
	TimeRange         TimeRange `json:"time_range"`
	LastUpdated       time.Time `db:"last_updated" json:"last_updated"`
	Version           string    `db:"version" json:"version"`
}

// MachineHourID is the cache identity of a machine bucket.
func MachineHourID(serial int64, dateHour string) string {
	return fmt.Sprintf("%s-%d-%s", EntityMachine, serial, dateHour)
}

// OperatorMachineHourID is the cache identity of an operator-on-machine bucket.
func OperatorMachineHourID(operatorID, serial int64, dateHour string) string {
	return fmt.Sprintf("%s-%d-%d-%s", EntityOperatorMachine, operatorID, serial, dateHour)
}

// Equivalent reports whether two records carry the same content, ignoring LastUpdated.
func (h HourlyTotal) Equivalent(other HourlyTotal) bool {
	if (h.OperatorID == nil) != (other.OperatorID == nil) {
		return false
	}
	if h.OperatorID != nil && *h.OperatorID != *other.OperatorID {
		return false
	}
	return h.ID == other.ID &&
		h.EntityType == other.EntityType &&
		h.MachineSerial == other.MachineSerial &&
		h.MachineName == other.MachineName &&
		h.OperatorName == other.OperatorName &&
		h.Date == other.Date &&
		h.Hour == other.Hour &&
		h.DateHour == other.DateHour &&
		h.HourStart.Equal(other.HourStart) &&
		h.RuntimeMs == other.RuntimeMs &&
		h.WorkedTimeMs == other.WorkedTimeMs &&
		h.PausedTimeMs == other.PausedTimeMs &&
		h.FaultTimeMs == other.FaultTimeMs &&
		h.TotalCounts == other.TotalCounts &&
		h.TotalMisfeeds == other.TotalMisfeeds &&
		h.TotalTimeCreditMs == other.TotalTimeCreditMs &&
		h.TimeRange.Start.Equal(other.TimeRange.Start) &&
		h.TimeRange.End.Equal(other.TimeRange.End) &&
		h.Version == other.Version
}
