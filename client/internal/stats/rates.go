package stats

import "time"

// Rates are per-minute activity rates between two snapshots of the same
// server, prev taken first.
type Rates struct {
	// Window is the elapsed time between the two snapshots.
	Window time.Duration

	OpsPM      map[string]float64 // keyed by op kind
	TotalOpsPM float64
	EventsPM   float64
	RejectedPM float64
}

// Derive computes per-minute rates from two snapshots. A counter reset
// between samples (server restart) clamps the delta to zero rather than
// going negative.
func Derive(prev, cur *Snapshot) *Rates {
	elapsed := cur.ScrapedAt.Sub(prev.ScrapedAt)
	minutes := elapsed.Minutes()
	if minutes <= 0 {
		minutes = 1 // clock went backwards or snapshots coincide
	}

	r := &Rates{Window: elapsed, OpsPM: make(map[string]float64, len(cur.OpsApplied))}
	for kind, v := range cur.OpsApplied {
		pm := deltaOf(v, prev.OpsApplied[kind]) / minutes
		r.OpsPM[kind] = pm
		r.TotalOpsPM += pm
	}
	r.EventsPM = deltaOf(cur.EventsSent, prev.EventsSent) / minutes
	r.RejectedPM = deltaOf(cur.OpsRejected, prev.OpsRejected) / minutes
	return r
}

// deltaOf returns cur-prev, treating a shrinking counter (server
// restarted, counters reset) as a delta of 0.
func deltaOf(cur, prev float64) float64 {
	if cur < prev {
		return 0
	}
	return cur - prev
}
