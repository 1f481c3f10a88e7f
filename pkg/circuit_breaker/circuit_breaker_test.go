package circuit_breaker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/libtrack/borrowing-service/pkg/circuit_breaker"
)

func Test_circuitBreaker_Call(t *testing.T) {
	successfulService := func() error {
		return nil
	}
	failingService := func() error {
		return errors.New("service error")
	}

	cb := circuit_breaker.New(10, 200*time.Millisecond, 0.5, 3)

	// healthy window keeps the breaker closed
	for i := 0; i < 20; i++ {
		require.NoError(t, cb.Call(successfulService))
	}

	// enough failures open the breaker, further calls fail fast
	for i := 0; i < 10; i++ {
		_ = cb.Call(failingService)
	}
	require.ErrorIs(t, cb.Call(successfulService), circuit_breaker.ErrOpenCB)

	// after the timeout the breaker probes in half-open and a failure
	// snaps it back open
	time.Sleep(250 * time.Millisecond)
	require.Error(t, cb.Call(failingService))
	require.ErrorIs(t, cb.Call(successfulService), circuit_breaker.ErrOpenCB)

	// consecutive successes in half-open close the breaker again
	time.Sleep(250 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, cb.Call(successfulService))
	}
	require.NoError(t, cb.Call(successfulService))
}

func Test_circuitBreaker_Reset(t *testing.T) {
	failingService := func() error {
		return errors.New("service error")
	}

	cb := circuit_breaker.New(4, time.Minute, 0.5, 1)
	for i := 0; i < 4; i++ {
		_ = cb.Call(failingService)
	}
	require.ErrorIs(t, cb.Call(failingService), circuit_breaker.ErrOpenCB)

	cb.Reset()
	require.Error(t, cb.Call(failingService)) // passes through again
}
