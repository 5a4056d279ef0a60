package clients

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 2,
		Timeout:          time.Minute,
		HalfOpenRequests: 2,
	}, nil)
	cb.now = func() time.Time { return now }

	fail := func() error { return errors.New("upstream down") }
	ok := func() error { return nil }

	require.Error(t, cb.Execute(fail))
	assert.Equal(t, StateClosed, cb.State())
	require.Error(t, cb.Execute(fail))
	assert.Equal(t, StateOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(ok), ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.State())

	state := cb.GetState()
	assert.Equal(t, "closed", state.State)
	assert.Equal(t, int64(4), state.TotalRequests)
	assert.Equal(t, int64(2), state.FailedRequests)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Second}, nil)
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Second)
	require.True(t, cb.Allow())
	// one trial request at a time
	assert.False(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.GetState().NextRetryTime.IsZero())
}

func TestNewRateLimiter(t *testing.T) {
	unlimited := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.Allow())
	}

	limited := NewRateLimiter(1, 0)
	assert.Equal(t, 2, limited.Burst())
	assert.True(t, limited.Allow())
	assert.True(t, limited.Allow())
	assert.False(t, limited.Allow())
}
