package window

import (
	"time"

	"gatekeep/pkg/policy"
)

// slidingRecord keeps the exact timestamps of calls inside the trailing
// window, oldest first.
type slidingRecord struct {
	calls    []time.Time
	lastSeen time.Time
}

func (r *slidingRecord) observe(b policy.Budget, at time.Time) Verdict {
	r.lastSeen = at
	r.purge(b.Window, at)

	if len(r.calls) < b.MaxCalls {
		r.calls = append(r.calls, at)
		return Verdict{Allowed: true}
	}

	// The slot opens when the oldest remaining call leaves the window.
	retry := r.calls[0].Add(b.Window).Sub(at)
	return Verdict{Allowed: false, RetryAfter: clampRetry(retry)}
}

// purge drops calls that have left the trailing window. A call made exactly
// one window ago no longer counts, so a caller that waits out its RetryAfter
// is admitted.
func (r *slidingRecord) purge(window time.Duration, at time.Time) {
	cutoff := at.Add(-window)

	i := 0
	for i < len(r.calls) && !r.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		copy(r.calls, r.calls[i:])
		r.calls = r.calls[:len(r.calls)-i]
	}
}

func (r *slidingRecord) idleSince() time.Time {
	return r.lastSeen
}
