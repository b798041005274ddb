package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeep/pkg/clock"
	"gatekeep/pkg/identity"
	"gatekeep/pkg/logger"
	"gatekeep/pkg/policy"
	"gatekeep/pkg/window"
)

var base = time.Unix(1_700_000_000, 0)

func newDecider(t *testing.T, resolver identity.Resolver, table *policy.Table) (*Decider, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(base)
	d, err := New(resolver, table, window.NewSlidingLog(window.Options{}), fc, logger.NewTestLogger())
	require.NoError(t, err)
	return d, fc
}

func TestNewRequiresCollaborators(t *testing.T) {
	table, err := policy.NewTable(policy.Budget{MaxCalls: 5, Window: time.Minute}, nil)
	require.NoError(t, err)
	store := window.NewSlidingLog(window.Options{})

	_, err = New(nil, table, store, nil, nil)
	assert.Error(t, err)
	_, err = New(identity.NewAddressResolver(), nil, store, nil, nil)
	assert.Error(t, err)
	_, err = New(identity.NewAddressResolver(), table, nil, nil, nil)
	assert.Error(t, err)

	d, err := New(identity.NewAddressResolver(), table, store, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, d)
}

func TestDecideAppliesDefaultBudget(t *testing.T) {
	table, err := policy.NewTable(policy.Budget{MaxCalls: 2, Window: time.Minute}, nil)
	require.NoError(t, err)
	d, fc := newDecider(t, identity.NewAddressResolver(), table)

	attrs := identity.Attributes{RemoteAddr: "10.0.0.1:1234"}

	for i := 0; i < 2; i++ {
		v, err := d.Decide(attrs)
		require.NoError(t, err)
		assert.True(t, v.Allowed, "call %d", i+1)
		fc.Advance(time.Second)
	}

	v, err := d.Decide(attrs)
	require.NoError(t, err)
	assert.False(t, v.Allowed)
	assert.Equal(t, 58*time.Second, v.RetryAfter)
}

func TestDecideUsesCredentialOverrides(t *testing.T) {
	table, err := policy.NewTable(policy.Budget{MaxCalls: 100, Window: time.Minute}, map[string]policy.Budget{
		"api_key_1": {MaxCalls: 1, Window: time.Minute},
	})
	require.NoError(t, err)

	resolver := identity.NewCredentialResolver([]string{"api_key_1", "api_key_2"})
	d, _ := newDecider(t, resolver, table)

	limited := identity.Attributes{RemoteAddr: "10.0.0.1:1", Credential: "api_key_1"}
	v, err := d.Decide(limited)
	require.NoError(t, err)
	assert.True(t, v.Allowed)

	v, err = d.Decide(limited)
	require.NoError(t, err)
	assert.False(t, v.Allowed, "override budget of 1 call must apply")

	// A credential without an override gets the default budget
	v, err = d.Decide(identity.Attributes{RemoteAddr: "10.0.0.1:1", Credential: "api_key_2"})
	require.NoError(t, err)
	assert.True(t, v.Allowed)
}

func TestDecideTracksCredentialPerAddress(t *testing.T) {
	table, err := policy.NewTable(policy.Budget{MaxCalls: 5, Window: time.Minute}, nil)
	require.NoError(t, err)
	resolver := identity.NewCredentialResolver([]string{"api_key_1"})
	d, _ := newDecider(t, resolver, table)

	// The same key from two addresses gets two full windows
	for _, addr := range []string{"10.0.0.1:9", "10.0.0.2:9"} {
		for i := 0; i < 5; i++ {
			v, err := d.Decide(identity.Attributes{RemoteAddr: addr, Credential: "api_key_1"})
			require.NoError(t, err)
			assert.True(t, v.Allowed, "%s call %d", addr, i+1)
		}
		v, err := d.Decide(identity.Attributes{RemoteAddr: addr, Credential: "api_key_1"})
		require.NoError(t, err)
		assert.False(t, v.Allowed, "%s over budget", addr)
	}
}

func TestDecideSurfacesResolutionErrors(t *testing.T) {
	table, err := policy.NewTable(policy.Budget{MaxCalls: 5, Window: time.Minute}, nil)
	require.NoError(t, err)
	resolver := identity.NewCredentialResolver([]string{"api_key_1"})
	d, _ := newDecider(t, resolver, table)

	_, err = d.Decide(identity.Attributes{RemoteAddr: "10.0.0.1:1"})
	assert.True(t, identity.IsCredentialMissing(err))

	_, err = d.Decide(identity.Attributes{RemoteAddr: "10.0.0.1:1", Credential: "bogus_key"})
	assert.True(t, identity.IsCredentialInvalid(err))

	_, err = d.Decide(identity.Attributes{Credential: "api_key_1"})
	assert.True(t, identity.IsMissingAddress(err))
}

func TestDecideDenialWaitThenRetry(t *testing.T) {
	table, err := policy.NewTable(policy.Budget{MaxCalls: 1, Window: 30 * time.Second}, nil)
	require.NoError(t, err)
	d, fc := newDecider(t, identity.NewAddressResolver(), table)

	attrs := identity.Attributes{RemoteAddr: "10.0.0.7"}

	v, err := d.Decide(attrs)
	require.NoError(t, err)
	require.True(t, v.Allowed)

	v, err = d.Decide(attrs)
	require.NoError(t, err)
	require.False(t, v.Allowed)
	require.GreaterOrEqual(t, v.RetryAfter, time.Duration(0))

	// Waiting exactly RetryAfter must be enough
	fc.Advance(v.RetryAfter)
	v, err = d.Decide(attrs)
	require.NoError(t, err)
	assert.True(t, v.Allowed)
}
