package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 5, hour, minute, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestCalculateOverlapSessionInsideWindow(t *testing.T) {
	ov := CalculateOverlap(at(9, 10), ptr(at(9, 40)), at(9, 0), at(10, 0))

	assert.Equal(t, 1800.0, ov.OverlapSeconds())
	assert.Equal(t, 1800.0, ov.FullSeconds())
	assert.Equal(t, 1.0, ov.Factor)
	assert.InDelta(t, 50.0, 50*ov.Factor, 1e-9)
}

func TestCalculateOverlapStraddlesWindowStart(t *testing.T) {
	ov := CalculateOverlap(at(8, 50), ptr(at(9, 20)), at(9, 0), at(10, 0))

	assert.Equal(t, 1200.0, ov.OverlapSeconds())
	assert.Equal(t, 1800.0, ov.FullSeconds())
	assert.InDelta(t, 2.0/3.0, ov.Factor, 1e-9)
	assert.InDelta(t, 66.67, 100*ov.Factor, 0.01)
}

func TestCalculateOverlapOpenSessionEndsAtWindowEnd(t *testing.T) {
	ov := CalculateOverlap(at(9, 0), nil, at(9, 0), at(9, 45))

	assert.Equal(t, 2700.0, ov.OverlapSeconds())
	assert.Equal(t, 2700.0, ov.FullSeconds())
	assert.Equal(t, 1.0, ov.Factor)
}

func TestCalculateOverlapDisjoint(t *testing.T) {
	before := CalculateOverlap(at(7, 0), ptr(at(8, 0)), at(9, 0), at(10, 0))
	assert.Zero(t, before.Overlap)
	assert.Zero(t, before.Factor)
	assert.Equal(t, time.Hour, before.Full)

	after := CalculateOverlap(at(10, 30), ptr(at(11, 0)), at(9, 0), at(10, 0))
	assert.Zero(t, after.Overlap)
	assert.Zero(t, after.Factor)
}

func TestCalculateOverlapDegenerateInput(t *testing.T) {
	assert.Equal(t, Overlap{}, CalculateOverlap(time.Time{}, ptr(at(9, 30)), at(9, 0), at(10, 0)))

	inverted := CalculateOverlap(at(9, 30), ptr(at(9, 10)), at(9, 0), at(10, 0))
	assert.Zero(t, inverted.Overlap)
	assert.Zero(t, inverted.Full)
	assert.Zero(t, inverted.Factor)

	zeroEnd := CalculateOverlap(at(9, 30), ptr(time.Time{}), at(9, 0), at(10, 0))
	assert.Equal(t, 30*time.Minute, zeroEnd.Overlap)
	assert.Equal(t, 1.0, zeroEnd.Factor)
}

func TestCalculateOverlapFactorBounded(t *testing.T) {
	windowStart, windowEnd := at(9, 0), at(10, 0)
	for startMin := 0; startMin <= 240; startMin += 7 {
		for length := 0; length <= 180; length += 11 {
			start := at(7, 0).Add(time.Duration(startMin) * time.Minute)
			end := start.Add(time.Duration(length) * time.Minute)
			for _, e := range []*time.Time{&end, nil} {
				ov := CalculateOverlap(start, e, windowStart, windowEnd)
				assert.GreaterOrEqual(t, ov.Factor, 0.0)
				assert.LessOrEqual(t, ov.Factor, 1.0)
				assert.LessOrEqual(t, ov.Overlap, ov.Full)
				assert.GreaterOrEqual(t, ov.Overlap, time.Duration(0))
			}
		}
	}
}
