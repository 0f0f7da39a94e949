package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/SepineTam/city-parse/errors"
)

// Timeout middleware bounds the request context. Handlers observe the
// deadline through ctx; when the deadline fires before the handler
// writes anything, a gateway-timeout error response is produced here
// and every later write from the still-running handler is discarded.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			done := make(chan struct{})
			tw := &timeoutWriter{w: w}

			go func() {
				defer close(done)
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()

			select {
			case <-done:
				return
			case <-ctx.Done():
				if tw.timeout() {
					errors.WriteError(w, errors.NewError(
						errors.InternalError,
						"request timeout",
						http.StatusGatewayTimeout,
						GetRequestID(r.Context()),
						map[string]interface{}{"timeout": timeout.String()},
						ctx.Err(),
					))
				}
				return
			}
		})
	}
}

// timeoutWriter serializes access to the underlying ResponseWriter.
// Once the deadline takes over the response, handler writes are
// swallowed instead of racing the timeout error body.
type timeoutWriter struct {
	mu       sync.Mutex
	w        http.ResponseWriter
	wrote    bool
	timedOut bool
}

func (tw *timeoutWriter) Header() http.Header {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return make(http.Header)
	}
	return tw.w.Header()
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return len(b), nil
	}
	tw.wrote = true
	return tw.w.Write(b)
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return
	}
	tw.wrote = true
	tw.w.WriteHeader(code)
}

// timeout claims the response for the deadline path. It reports false
// when the handler already wrote, in which case the partial response
// stands and no error body is emitted.
func (tw *timeoutWriter) timeout() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.wrote {
		return false
	}
	tw.timedOut = true
	return true
}
