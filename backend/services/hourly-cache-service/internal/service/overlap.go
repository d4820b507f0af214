package service

import "time"

// Overlap describes how much of a session falls inside a query window.
type Overlap struct {
	// Overlap is the part of the session inside the window.
	Overlap time.Duration
	// Full is the session length, with an open session ending at the window end.
	Full time.Duration
	// Factor is Overlap/Full, always within [0, 1].
	Factor float64
}

// OverlapSeconds returns the overlap in seconds.
func (o Overlap) OverlapSeconds() float64 { return o.Overlap.Seconds() }

// FullSeconds returns the full session length in seconds.
func (o Overlap) FullSeconds() float64 { return o.Full.Seconds() }

// CalculateOverlap intersects a session with [windowStart, windowEnd).
// A nil end means the session is still open and is treated as running until windowEnd.
// Missing or inverted timestamps yield a zero overlap instead of an error.
func CalculateOverlap(sessionStart time.Time, sessionEnd *time.Time, windowStart, windowEnd time.Time) Overlap {
	if sessionStart.IsZero() || windowStart.IsZero() || windowEnd.IsZero() {
		return Overlap{}
	}

	end := windowEnd
	if sessionEnd != nil && !sessionEnd.IsZero() {
		end = *sessionEnd
	}

	overlap := minTime(end, windowEnd).Sub(maxTime(sessionStart, windowStart))
	if overlap < 0 {
		overlap = 0
	}
	full := end.Sub(sessionStart)
	if full < 0 {
		full = 0
	}

	var factor float64
	if full > 0 {
		factor = float64(overlap) / float64(full)
	}
	return Overlap{Overlap: overlap, Full: full, Factor: factor}
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
