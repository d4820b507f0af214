package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"ac360/backend/services/hourly-cache-service/internal/models"
)

type countingRecalculator struct {
	mu       sync.Mutex
	machines []models.Machine
}

func (c *countingRecalculator) Recalculate(_ context.Context, machine models.Machine) (RecalculationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.machines = append(c.machines, machine)
	return RecalculationResult{Success: true}, nil
}

func (c *countingRecalculator) calls() []models.Machine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Machine(nil), c.machines...)
}

func TestRecalcDebouncerCoalescesBursts(t *testing.T) {
	defer goleak.VerifyNone(t)

	recalc := &countingRecalculator{}
	d := NewRecalcDebouncer(recalc, quartz.NewReal(), 30*time.Millisecond, time.Second, zap.NewNop())

	require.True(t, d.Schedule(models.Machine{Serial: 1}))
	require.True(t, d.Schedule(models.Machine{Serial: 1, Name: "SPF1"}))
	require.True(t, d.Schedule(models.Machine{Serial: 1}))
	require.True(t, d.Schedule(models.Machine{Serial: 2, Name: "SPF2"}))
	assert.Equal(t, 2, d.Pending())

	require.Eventually(t, func() bool { return len(recalc.calls()) == 2 }, 2*time.Second, 10*time.Millisecond)
	d.Close()

	bySerial := map[int64]string{}
	for _, m := range recalc.calls() {
		bySerial[m.Serial] = m.Name
	}
	assert.Equal(t, map[int64]string{1: "SPF1", 2: "SPF2"}, bySerial)
	assert.Zero(t, d.Pending())
}

func TestRecalcDebouncerCloseDropsPending(t *testing.T) {
	defer goleak.VerifyNone(t)

	recalc := &countingRecalculator{}
	d := NewRecalcDebouncer(recalc, quartz.NewReal(), time.Hour, 0, nil)

	require.True(t, d.Schedule(models.Machine{Serial: 7}))
	d.Close()

	assert.False(t, d.Schedule(models.Machine{Serial: 7}))
	assert.Zero(t, d.Pending())
	assert.Empty(t, recalc.calls())
}
