package api

import (
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/okian/league/pkg/metrics"
)

// instrument records request count, latency and error class for one named
// endpoint. Routes are labelled by name, never by raw path, so usernames do
// not leak into label values.
func instrument(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			code := strconv.Itoa(status)
			metrics.RecordHTTPRequest(endpoint, r.Method, code)
			metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, float64(time.Since(start).Milliseconds()))
			if status >= http.StatusBadRequest {
				metrics.RecordErrorByComponent("http_"+endpoint, errorClass(status))
			}
		})
	}
}

// rateLimited answers requests rejected by the per-IP limiter.
func rateLimited(w http.ResponseWriter, _ *http.Request) {
	metrics.RecordErrorByComponent("http", errorClass(http.StatusTooManyRequests))
	writeError(w, http.StatusTooManyRequests, "rate_limited", nil)
}

func errorClass(status int) string {
	switch {
	case status == http.StatusServiceUnavailable:
		return "storage_unavailable"
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status == http.StatusTooManyRequests:
		return "rate_limit"
	case status == http.StatusNotFound:
		return "not_found"
	default:
		return "client_error"
	}
}
