package service

import (
	"context"

	"go.uber.org/zap"

	"ac360/backend/services/hourly-cache-service/internal/models"
)

// MirroredWriter writes to a primary store and then copies successful batches to
// secondary stores. Only the primary result is reported; mirror failures are logged.
type MirroredWriter struct {
	primary CacheWriter
	mirrors []CacheWriter
	logger  *zap.Logger
}

// NewMirroredWriter returns writer. Nil mirrors are ignored.
func NewMirroredWriter(primary CacheWriter, logger *zap.Logger, mirrors ...CacheWriter) *MirroredWriter {
	w := &MirroredWriter{primary: primary, logger: logger}
	for _, m := range mirrors {
		if m != nil {
			w.mirrors = append(w.mirrors, m)
		}
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// BulkUpsert implements CacheWriter.
func (w *MirroredWriter) BulkUpsert(ctx context.Context, records []models.HourlyTotal) (UpsertResult, error) {
	result, err := w.primary.BulkUpsert(ctx, records)
	if err != nil {
		return result, err
	}
	for _, m := range w.mirrors {
		if _, mirrorErr := m.BulkUpsert(ctx, records); mirrorErr != nil {
			w.logger.Warn("failed to mirror hourly totals", zap.Int("records", len(records)), zap.Error(mirrorErr))
		}
	}
	return result, nil
}
