package server

import (
	"net/http"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/SepineTam/city-parse/config"
	"github.com/SepineTam/city-parse/errors"
)

// breaker guards chat backend calls made from the HTTP surface. The
// library core keeps its propagate-and-never-retry contract; the
// breaker only short-circuits the service path when the backend is
// persistently failing.
type breaker struct {
	cb *gobreaker.CircuitBreaker
}

// newBreaker builds a breaker from configuration. A disabled
// configuration yields a nil breaker, which passes calls through.
func newBreaker(cfg config.CircuitBreakerConfig, logger *zap.Logger) *breaker {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        "chat-backend",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// Only backend failures indicate backend health. Validation,
		// mismatch and config errors are caller problems and must not
		// open the breaker; they still propagate to the caller.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.IsType(err, errors.BackendError)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// do executes fn through the breaker. An open breaker surfaces as a
// backend error with a service-unavailable status.
func (b *breaker) do(fn func() (interface{}, error)) (interface{}, error) {
	if b == nil {
		return fn()
	}

	result, err := b.cb.Execute(fn)
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errors.NewError(
				errors.BackendError,
				"chat backend temporarily unavailable",
				http.StatusServiceUnavailable,
				"", nil, err,
			)
		}
		return nil, err
	}
	return result, nil
}
