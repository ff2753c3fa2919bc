package llm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(threshold int, resetAfter time.Duration) (*CircuitBreaker, *time.Time) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{Threshold: threshold, ResetAfter: resetAfter})
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_InitialState(t *testing.T) {
	cb, _ := newTestBreaker(5, 30*time.Second)

	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, 0, cb.ConsecutiveFailures())

	allowed, err := cb.Allow()
	assert.True(t, allowed)
	assert.NoError(t, err)
}

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, 30*time.Second)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}

	assert.Equal(t, CircuitOpen, cb.State())
	allowed, err := cb.Allow()
	assert.False(t, allowed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open for test")
}

func TestCircuitBreaker_DoesNotTripBeforeThreshold(t *testing.T) {
	cb, _ := newTestBreaker(5, 30*time.Second)

	for i := 0; i < 4; i++ {
		cb.RecordFailure()
	}

	assert.Equal(t, CircuitClosed, cb.State())
	allowed, _ := cb.Allow()
	assert.True(t, allowed)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, 30*time.Second)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()

	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, 1, cb.ConsecutiveFailures())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, now := newTestBreaker(1, 30*time.Second)
	cb.RecordFailure()
	require.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(31 * time.Second)
	allowed, err := cb.Allow()
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// Only one probe at a time.
	allowed, err = cb.Allow()
	assert.False(t, allowed)
	assert.Error(t, err)

	t.Run("probe failure reopens", func(t *testing.T) {
		cb.RecordFailure()
		assert.Equal(t, CircuitOpen, cb.State())
	})

	t.Run("probe success closes", func(t *testing.T) {
		*now = now.Add(31 * time.Second)
		_, _ = cb.Allow()
		cb.RecordSuccess()
		assert.Equal(t, CircuitClosed, cb.State())
		assert.Equal(t, 0, cb.ConsecutiveFailures())
	})
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{Threshold: 1000, ResetAfter: time.Second})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = cb.Allow()
			if i%2 == 0 {
				cb.RecordFailure()
			} else {
				cb.RecordSuccess()
			}
			_ = cb.State()
		}(i)
	}
	wg.Wait()

	assert.Less(t, cb.ConsecutiveFailures(), 1000)
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(42).String())
}
