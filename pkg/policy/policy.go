// Package policy maps identities to their rate budgets.
package policy

import (
	"fmt"
	"time"
)

// Budget is the (max calls, window) pair governing one identity. It is never
// mutated after configuration load.
type Budget struct {
	// MaxCalls is the number of requests admitted per window.
	MaxCalls int
	// Window is the trailing period over which calls are counted.
	Window time.Duration
}

// Validate checks that the budget admits at least one call over a positive
// window.
func (b Budget) Validate() error {
	if b.MaxCalls <= 0 {
		return fmt.Errorf("budget max calls must be positive, got %d", b.MaxCalls)
	}
	if b.Window <= 0 {
		return fmt.Errorf("budget window must be positive, got %s", b.Window)
	}
	return nil
}

// Table resolves budgets with per-key overrides falling back to a default.
// A Table is read-only after construction and safe for concurrent use.
type Table struct {
	fallback  Budget
	overrides map[string]Budget
}

// NewTable builds a Table from a default budget and per-credential overrides.
// Every budget, including the default, must validate.
func NewTable(fallback Budget, overrides map[string]Budget) (*Table, error) {
	if err := fallback.Validate(); err != nil {
		return nil, fmt.Errorf("default budget: %w", err)
	}

	copied := make(map[string]Budget, len(overrides))
	for key, b := range overrides {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("budget override for %q: %w", key, err)
		}
		copied[key] = b
	}

	return &Table{fallback: fallback, overrides: copied}, nil
}

// BudgetFor returns the budget for key. Absence of an override is not an
// error; the default budget applies.
func (t *Table) BudgetFor(key string) Budget {
	if b, ok := t.overrides[key]; ok {
		return b
	}
	return t.fallback
}

// Default returns the fallback budget.
func (t *Table) Default() Budget {
	return t.fallback
}

// MaxWindow returns the longest window configured in the table, used to size
// the eviction retention horizon.
func (t *Table) MaxWindow() time.Duration {
	max := t.fallback.Window
	for _, b := range t.overrides {
		if b.Window > max {
			max = b.Window
		}
	}
	return max
}
