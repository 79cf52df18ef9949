package breaker

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/graphctl/infrastructure/resilience"
)

func TestIsProviderRateLimit(t *testing.T) {
	assert.True(t, IsProviderRateLimit(errors.New("HTTP 429 Too Many Requests")))
	assert.True(t, IsProviderRateLimit(errors.New("rate limit exceeded for model")))
	assert.True(t, IsProviderRateLimit(errors.New("google.api_core: 429 RESOURCE_EXHAUSTED")))
	assert.True(t, IsProviderRateLimit(errors.New("Quota exceeded for project")))
	assert.False(t, IsProviderRateLimit(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.False(t, IsProviderRateLimit(errors.New("invalid input")))
}

func TestIsGlobalFailure(t *testing.T) {
	assert.True(t, IsGlobalFailure(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.True(t, IsGlobalFailure(errors.New("connection refused")))
	assert.False(t, IsGlobalFailure(errors.New("invalid input")))
	assert.False(t, IsGlobalFailure(errors.New("HTTP 429 Too Many Requests")))
	assert.False(t, IsGlobalFailure(nil))
}

func newTestRegistry(t *testing.T, failureThreshold int) *TenantRegistry {
	t.Helper()
	reg, err := NewTenantRegistry(16, resilience.Config{MaxFailures: failureThreshold, Timeout: time.Minute, HalfOpenMax: 1}, nil)
	require.NoError(t, err)
	return reg
}

func TestGlobalProviderBreaker_PassesThroughWhenClosed(t *testing.T) {
	reg := newTestRegistry(t, 3)
	gb := NewGlobalProviderBreaker(reg, resilience.Config{MaxFailures: 2, Timeout: time.Minute, HalfOpenMax: 1}, nil)

	err := gb.Call(context.Background(), "tenant-1", func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, resilience.StateClosed, gb.GlobalState())
}

func TestGlobalProviderBreaker_TripsGloballyOnNetworkFailure(t *testing.T) {
	reg := newTestRegistry(t, 10)
	gb := NewGlobalProviderBreaker(reg, resilience.Config{MaxFailures: 2, Timeout: time.Minute, HalfOpenMax: 1}, nil)

	netErr := errors.New("connection refused")
	for i := 0; i < 2; i++ {
		err := gb.Call(context.Background(), "tenant-1", func() error { return netErr })
		assert.Error(t, err)
	}
	assert.Equal(t, resilience.StateOpen, gb.GlobalState())
}

func TestGlobalProviderBreaker_GlobalOpenRejectsAllTenants(t *testing.T) {
	reg := newTestRegistry(t, 10)
	gb := NewGlobalProviderBreaker(reg, resilience.Config{MaxFailures: 1, Timeout: time.Minute, HalfOpenMax: 1}, nil)

	netErr := errors.New("connection refused")
	err := gb.Call(context.Background(), "tenant-1", func() error { return netErr })
	require.Error(t, err)
	require.Equal(t, resilience.StateOpen, gb.GlobalState())

	err = gb.Call(context.Background(), "tenant-2", func() error { return nil })
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)

	err = gb.Call(context.Background(), "tenant-3", func() error { return nil })
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestGlobalProviderBreaker_NonNetworkErrorsDoNotTripGlobal(t *testing.T) {
	reg := newTestRegistry(t, 10)
	gb := NewGlobalProviderBreaker(reg, resilience.Config{MaxFailures: 1, Timeout: time.Minute, HalfOpenMax: 1}, nil)

	valueErr := errors.New("invalid input")
	for i := 0; i < 5; i++ {
		_ = gb.Call(context.Background(), "tenant-1", func() error { return valueErr })
	}
	assert.Equal(t, resilience.StateClosed, gb.GlobalState())
}

func TestGlobalProviderBreaker_TenantCircuitOpenDoesNotTripGlobal(t *testing.T) {
	reg := newTestRegistry(t, 1)
	gb := NewGlobalProviderBreaker(reg, resilience.Config{MaxFailures: 1, Timeout: time.Minute, HalfOpenMax: 1}, nil)

	valueErr := errors.New("invalid input")
	err := gb.Call(context.Background(), "tenant-1", func() error { return valueErr })
	require.Error(t, err)

	err = gb.Call(context.Background(), "tenant-1", func() error { return nil })
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, resilience.StateClosed, gb.GlobalState())
}

func TestGlobalProviderBreaker_HalfOpenRecoveryOnSuccess(t *testing.T) {
	reg := newTestRegistry(t, 10)
	gb := NewGlobalProviderBreaker(reg, resilience.Config{MaxFailures: 1, Timeout: 50 * time.Millisecond, HalfOpenMax: 1}, nil)

	netErr := errors.New("connection refused")
	err := gb.Call(context.Background(), "tenant-1", func() error { return netErr })
	require.Error(t, err)
	require.Equal(t, resilience.StateOpen, gb.GlobalState())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, resilience.StateHalfOpen, gb.GlobalState())

	err = gb.Call(context.Background(), "tenant-1", func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, resilience.StateClosed, gb.GlobalState())
}
