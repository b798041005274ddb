package window

import (
	"time"

	"gatekeep/pkg/policy"
)

// fixedRecord counts calls inside a discrete bucket starting at bucketStart.
type fixedRecord struct {
	bucketStart time.Time
	count       int
	lastSeen    time.Time
}

func (r *fixedRecord) observe(b policy.Budget, at time.Time) Verdict {
	r.lastSeen = at

	// First call ever, or the bucket has fully elapsed: start a new one.
	if r.count == 0 && r.bucketStart.IsZero() {
		r.bucketStart = at
	} else if !at.Before(r.bucketStart.Add(b.Window)) {
		r.bucketStart = at
		r.count = 0
	}

	if r.count < b.MaxCalls {
		r.count++
		return Verdict{Allowed: true}
	}

	retry := r.bucketStart.Add(b.Window).Sub(at)
	return Verdict{Allowed: false, RetryAfter: clampRetry(retry)}
}

func (r *fixedRecord) idleSince() time.Time {
	return r.lastSeen
}
