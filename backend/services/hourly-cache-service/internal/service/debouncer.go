package service

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"ac360/backend/services/hourly-cache-service/internal/metrics"
	"ac360/backend/services/hourly-cache-service/internal/models"
)

type recalculator interface {
	Recalculate(ctx context.Context, machine models.Machine) (RecalculationResult, error)
}

// RecalcDebouncer delays recalculations so a burst of session writes for one machine
// produces a single run.
type RecalcDebouncer struct {
	recalc  recalculator
	clock   quartz.Clock
	delay   time.Duration
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	closed  bool
	pending map[int64]*pendingRun
	running sync.WaitGroup
}

type pendingRun struct {
	generation int
	machine    models.Machine
	timer      *quartz.Timer
}

// NewRecalcDebouncer creates a debouncer with the specified delay. Each run is bounded by timeout.
func NewRecalcDebouncer(recalc recalculator, clock quartz.Clock, delay, timeout time.Duration, logger *zap.Logger) *RecalcDebouncer {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecalcDebouncer{
		recalc:  recalc,
		clock:   clock,
		delay:   delay,
		timeout: timeout,
		logger:  logger,
		pending: make(map[int64]*pendingRun),
	}
}

// Schedule queues a recalculation for machine, resetting the timer if one is already pending.
// It reports false once the debouncer is closed.
func (d *RecalcDebouncer) Schedule(machine models.Machine) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}

	p, exists := d.pending[machine.Serial]
	if exists {
		p.timer.Stop()
		p.generation++
		if machine.Name != "" {
			p.machine.Name = machine.Name
		}
		metrics.IncCoalesced()
	} else {
		p = &pendingRun{machine: machine}
		d.pending[machine.Serial] = p
	}

	serial, gen := machine.Serial, p.generation
	p.timer = d.clock.AfterFunc(d.delay, func() {
		d.flush(serial, gen)
	})
	return true
}

// Pending returns the number of machines waiting for a run.
func (d *RecalcDebouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close drops pending runs and waits for in-flight ones to finish.
func (d *RecalcDebouncer) Close() {
	d.mu.Lock()
	d.closed = true
	for serial, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, serial)
	}
	d.mu.Unlock()

	d.running.Wait()
}

func (d *RecalcDebouncer) flush(serial int64, generation int) {
	d.mu.Lock()
	p, exists := d.pending[serial]
	if d.closed || !exists || p.generation != generation {
		// Stale timer or already flushed
		d.mu.Unlock()
		return
	}
	delete(d.pending, serial)
	d.running.Add(1)
	d.mu.Unlock()
	defer d.running.Done()

	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if _, err := d.recalc.Recalculate(ctx, p.machine); err != nil {
		d.logger.Warn("debounced recalculation failed", zap.Int64("machine_serial", serial), zap.Error(err))
	}
}
