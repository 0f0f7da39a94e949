package middleware

import (
	"net/http"
	"time"

	"github.com/SepineTam/city-parse/server/metrics"
)

// Metrics middleware observes request latency per endpoint. Request and
// error counters are maintained by the handlers, which know the error
// taxonomy; only wall-clock duration is recorded here.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			m.RequestDuration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
		})
	}
}
