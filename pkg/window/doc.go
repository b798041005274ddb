// Package window implements the per-identity request counting at the heart of
// the admission engine.
//
// A Store maps identities to their recent-call records and answers one
// question: given this identity's budget and the current time, is one more
// call admitted, and if not, how long until it would be.
//
// Available Implementations:
//
// Sliding Log:
//   - Keeps the exact timestamps of recent calls and purges those outside the
//     trailing window on every access
//   - The stricter semantics; the default
//
// Fixed Window:
//   - Counts calls inside a discrete bucket that resets once the window has
//     fully elapsed
//   - Cheaper per identity, coarser at bucket boundaries
//
// Both implementations shard their identity maps so unrelated identities
// never contend on the same lock, and both serialize concurrent calls for the
// same identity so a budget can never be oversubscribed.
//
// Memory is bounded by eviction: records idle past a retention horizon are
// removed by Sweep, driven either by the caller or by a background Janitor.
//
// Usage:
//
//	store := window.NewSlidingLog(window.Options{Retention: 10 * time.Minute})
//	v := store.Record(id, policy.Budget{MaxCalls: 5, Window: time.Minute}, time.Now())
//	if !v.Allowed {
//	    // reject, telling the caller to retry after v.RetryAfter
//	}
package window
