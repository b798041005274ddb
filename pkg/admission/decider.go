// Package admission composes identity resolution, budget lookup and window
// counting into the engine's single decision entry point.
package admission

import (
	"fmt"
	"strings"
	"time"

	"gatekeep/pkg/clock"
	"gatekeep/pkg/identity"
	"gatekeep/pkg/logger"
	"gatekeep/pkg/policy"
	"gatekeep/pkg/window"
)

// Decider answers, per request, whether the caller is admitted. It owns no
// mutable state of its own; all counting lives in the window store.
type Decider struct {
	resolver identity.Resolver
	table    *policy.Table
	store    window.Store
	clock    clock.Clock
	logger   logger.Logger
}

// New creates a Decider. resolver, table and store are required; a nil clk
// falls back to the system clock and a nil log to the global logger.
func New(resolver identity.Resolver, table *policy.Table, store window.Store, clk clock.Clock, log logger.Logger) (*Decider, error) {
	if resolver == nil {
		return nil, fmt.Errorf("identity resolver is required")
	}
	if table == nil {
		return nil, fmt.Errorf("policy table is required")
	}
	if store == nil {
		return nil, fmt.Errorf("window store is required")
	}
	if clk == nil {
		clk = clock.System()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Decider{
		resolver: resolver,
		table:    table,
		store:    store,
		clock:    clk,
		logger:   log,
	}, nil
}

// Decide resolves the request's identity, looks up its budget and counts the
// call at the current time. Resolution failures are returned as-is so the
// transport can distinguish malformed requests from rate-limited ones.
func (d *Decider) Decide(attrs identity.Attributes) (window.Verdict, error) {
	return d.DecideAt(attrs, d.clock.Now())
}

// DecideAt is Decide with an explicit timestamp, for replay and tests.
func (d *Decider) DecideAt(attrs identity.Attributes, at time.Time) (window.Verdict, error) {
	id, err := d.resolver.Resolve(attrs)
	if err != nil {
		d.logger.WithError(err).Debug("Identity resolution failed")
		return window.Verdict{}, err
	}

	budget := d.table.BudgetFor(budgetKey(attrs, id))

	verdict := d.store.Record(id, budget, at)
	if !verdict.Allowed {
		d.logger.WarnWithFields("Request denied, over budget", map[string]interface{}{
			"identity":    string(id),
			"max_calls":   budget.MaxCalls,
			"window":      budget.Window,
			"retry_after": verdict.RetryAfter,
		})
	}
	return verdict, nil
}

// budgetKey picks the policy lookup key: overrides are keyed by credential,
// so identities without one always use the default budget.
func budgetKey(attrs identity.Attributes, id identity.Identity) string {
	if credential := strings.TrimSpace(attrs.Credential); credential != "" {
		return credential
	}
	return string(id)
}
