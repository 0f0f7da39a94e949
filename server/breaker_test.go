package server

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/SepineTam/city-parse/config"
	"github.com/SepineTam/city-parse/errors"
)

func TestBreakerDisabledPassesThrough(t *testing.T) {
	br := newBreaker(config.CircuitBreakerConfig{Enabled: false}, zaptest.NewLogger(t))
	require.Nil(t, br)

	result, err := br.do(func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestBreakerPassesSuccessAndFailure(t *testing.T) {
	br := newBreaker(config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 5,
	}, zaptest.NewLogger(t))

	result, err := br.do(func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	cause := fmt.Errorf("connection refused")
	_, err = br.do(func() (interface{}, error) {
		return nil, cause
	})
	assert.Same(t, cause, err)
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	br := newBreaker(config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}, zaptest.NewLogger(t))

	failing := func() (interface{}, error) {
		return nil, errors.NewBackendError("backend down", nil)
	}

	for i := 0; i < 2; i++ {
		_, err := br.do(failing)
		require.Error(t, err)
	}

	// the breaker is now open; calls fail fast without running fn
	ran := false
	_, err := br.do(func() (interface{}, error) {
		ran = true
		return "ok", nil
	})
	require.Error(t, err)
	assert.False(t, ran)
	assert.True(t, errors.IsType(err, errors.BackendError))

	var ce *errors.CityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, http.StatusServiceUnavailable, ce.Code)
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	br := newBreaker(config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}, zaptest.NewLogger(t))

	clientErrs := []error{
		errors.NewValidationError("input text cannot be empty", nil),
		errors.NewValidationError("input text cannot be empty", nil),
		errors.NewMismatchError("无关回复", []string{"正面", "负面"}),
		errors.NewMismatchError("无关回复", []string{"正面", "负面"}),
		errors.NewConfigError("classification task is not configured", nil),
	}

	// caller mistakes propagate but never count against backend health
	for _, clientErr := range clientErrs {
		_, err := br.do(func() (interface{}, error) {
			return nil, clientErr
		})
		assert.Same(t, clientErr, err)
	}

	// a healthy backend stays reachable
	result, err := br.do(func() (interface{}, error) {
		return "正面", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "正面", result)
}
