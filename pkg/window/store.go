package window

import (
	"hash/fnv"
	"sync"
	"time"

	"gatekeep/pkg/identity"
	"gatekeep/pkg/policy"
)

// Verdict is the engine's answer for a single call. It is computed fresh per
// request and never stored.
type Verdict struct {
	// Allowed reports whether the call fits the budget.
	Allowed bool
	// RetryAfter is how long the caller must wait before a retry can
	// succeed. Zero when Allowed; never negative.
	RetryAfter time.Duration
}

// Store tracks recent calls per identity. Implementations are safe for
// concurrent use; Record is atomic per identity.
type Store interface {
	// Record counts one call for id at the given time and decides whether
	// it is admitted under b. The purge of expired state, the decision and
	// the mutation happen as one indivisible step for that identity.
	Record(id identity.Identity, b policy.Budget, at time.Time) Verdict

	// Reset drops all state for id.
	Reset(id identity.Identity)

	// Sweep evicts records with no activity since before now minus the
	// retention horizon and returns how many were removed.
	Sweep(now time.Time) int

	// Len returns the number of identities currently tracked.
	Len() int
}

const (
	// DefaultShards is the shard count used when Options.Shards is zero.
	DefaultShards = 32
	// DefaultRetention is the eviction horizon used when Options.Retention
	// is zero. Callers typically set several multiples of their largest
	// configured window instead.
	DefaultRetention = 15 * time.Minute
)

// Options configure a Store.
type Options struct {
	// Shards is the number of independently locked identity maps.
	Shards int
	// Retention is how long an idle identity's record survives before
	// Sweep may evict it.
	Retention time.Duration
}

func (o Options) withDefaults() Options {
	if o.Shards <= 0 {
		o.Shards = DefaultShards
	}
	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}
	return o
}

// record is one identity's mutable window state. Implementations are guarded
// by their shard's lock and must not synchronize internally.
type record interface {
	// observe counts a call at the given time and returns the verdict.
	observe(b policy.Budget, at time.Time) Verdict
	// idleSince returns the time of the record's last activity.
	idleSince() time.Time
}

type shard struct {
	mu      sync.Mutex
	records map[identity.Identity]record
}

// store is the sharded map shared by both algorithm variants; newRecord picks
// the variant.
type store struct {
	shards    []*shard
	newRecord func() record
	retention time.Duration
}

// NewSlidingLog returns a Store with exact sliding-log semantics.
func NewSlidingLog(opts Options) Store {
	return newStore(opts, func() record { return &slidingRecord{} })
}

// NewFixedWindow returns a Store with fixed-bucket semantics.
func NewFixedWindow(opts Options) Store {
	return newStore(opts, func() record { return &fixedRecord{} })
}

func newStore(opts Options, newRecord func() record) *store {
	opts = opts.withDefaults()
	shards := make([]*shard, opts.Shards)
	for i := range shards {
		shards[i] = &shard{records: make(map[identity.Identity]record)}
	}
	return &store{
		shards:    shards,
		newRecord: newRecord,
		retention: opts.Retention,
	}
}

func (s *store) shardFor(id identity.Identity) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *store) Record(id identity.Identity, b policy.Budget, at time.Time) Verdict {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[id]
	if !ok {
		rec = s.newRecord()
		sh.records[id] = rec
	}
	return rec.observe(b, at)
}

func (s *store) Reset(id identity.Identity) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.records, id)
}

func (s *store) Sweep(now time.Time) int {
	cutoff := now.Add(-s.retention)
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, rec := range sh.records {
			if rec.idleSince().Before(cutoff) {
				delete(sh.records, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

func (s *store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.records)
		sh.mu.Unlock()
	}
	return n
}

// clampRetry never reports a negative wait to the caller.
func clampRetry(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
