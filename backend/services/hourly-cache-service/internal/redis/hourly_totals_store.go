package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ac360/backend/services/hourly-cache-service/internal/metrics"
	"ac360/backend/services/hourly-cache-service/internal/models"
	"ac360/backend/services/hourly-cache-service/internal/service"
)

// HourlyTotalsStore mirrors hourly totals into redis for fast dashboard reads.
type HourlyTotalsStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewHourlyTotalsStore returns redis-backed store. A zero ttl keeps keys forever.
func NewHourlyTotalsStore(client *redis.Client, ttl time.Duration) *HourlyTotalsStore {
	return &HourlyTotalsStore{client: client, ttl: ttl}
}

func (s *HourlyTotalsStore) key(id string) string {
	return fmt.Sprintf("hourly-totals:%s", id)
}

// BulkUpsert replaces each record with SET ... GET and compares against the previous value,
// so no separate read is needed. Each key is written independently.
func (s *HourlyTotalsStore) BulkUpsert(ctx context.Context, records []models.HourlyTotal) (service.UpsertResult, error) {
	var result service.UpsertResult
	if len(records) == 0 {
		return result, nil
	}
	started := time.Now()
	defer func() { metrics.ObserveStore("redis_bulk_upsert", time.Since(started)) }()

	args := redis.SetArgs{Get: true}
	if s.ttl > 0 {
		args.TTL = s.ttl
	}

	var (
		errs      []error
		unchanged int
	)
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode %s: %w", rec.ID, err))
			continue
		}
		prev, err := s.client.SetArgs(ctx, s.key(rec.ID), data, args).Result()
		switch {
		case errors.Is(err, redis.Nil):
			result.Upserted++
		case err != nil:
			errs = append(errs, fmt.Errorf("set %s: %w", rec.ID, err))
		case sameRecord(prev, rec):
			unchanged++
		default:
			result.Modified++
		}
	}

	metrics.AddWritten("redis", "inserted", result.Upserted)
	metrics.AddWritten("redis", "modified", result.Modified)
	metrics.AddWritten("redis", "unchanged", unchanged)
	metrics.AddWritten("redis", "failed", len(errs))
	return result, errors.Join(errs...)
}

// get returns a cached record.
func (s *HourlyTotalsStore) get(ctx context.Context, id string) (*models.HourlyTotal, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		return nil, err
	}
	var total models.HourlyTotal
	if err := json.Unmarshal([]byte(raw), &total); err != nil {
		return nil, err
	}
	return &total, nil
}

func sameRecord(raw string, rec models.HourlyTotal) bool {
	var prev models.HourlyTotal
	if err := json.Unmarshal([]byte(raw), &prev); err != nil {
		return false
	}
	return prev.Equivalent(rec)
}
