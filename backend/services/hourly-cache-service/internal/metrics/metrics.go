package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	recalculations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ac360", Subsystem: "hourly_cache", Name: "recalculations_total", Help: "Hourly cache recalculation runs by outcome"},
		[]string{"outcome"},
	)
	recalcDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "ac360", Subsystem: "hourly_cache", Name: "recalculation_duration_seconds", Help: "Hourly cache recalculation latency", Buckets: prometheus.DefBuckets},
	)
	bucketsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ac360", Subsystem: "hourly_cache", Name: "buckets_skipped_total", Help: "Hour buckets dropped because their builder failed"},
		[]string{"entity_type"},
	)
	recordsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ac360", Subsystem: "hourly_cache", Name: "records_written_total", Help: "Hourly totals written by result"},
		[]string{"store", "result"},
	)
	storeLatency = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{Namespace: "ac360", Subsystem: "hourly_cache", Name: "store_latency_seconds", Help: "Store operation latency"},
		[]string{"op"},
	)
	triggersCoalesced = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "ac360", Subsystem: "hourly_cache", Name: "triggers_coalesced_total", Help: "Recalculation triggers merged into an already pending run"},
	)
)

func init() {
	prometheus.MustRegister(recalculations, recalcDuration, bucketsSkipped, recordsWritten, storeLatency, triggersCoalesced)
}

func ObserveRecalculation(success bool, d time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	recalculations.WithLabelValues(outcome).Inc()
	recalcDuration.Observe(d.Seconds())
}

func IncSkipped(entityType string) { bucketsSkipped.WithLabelValues(entityType).Inc() }

// AddWritten records per-store upsert outcomes: inserted, modified, unchanged or failed.
func AddWritten(store, result string, n int) {
	if n <= 0 {
		return
	}
	recordsWritten.WithLabelValues(store, result).Add(float64(n))
}

func ObserveStore(op string, d time.Duration) { storeLatency.WithLabelValues(op).Observe(d.Seconds()) }

func IncCoalesced() { triggersCoalesced.Inc() }
