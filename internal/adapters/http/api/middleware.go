package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/versus/pkg/logger"
	"github.com/okian/versus/pkg/metrics"
)

// MetricsMiddleware records request count, latency and error class for
// the route named endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsedMs := float64(time.Since(start).Microseconds()) / 1000
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, elapsedMs)

		if rec.status < http.StatusBadRequest {
			return
		}
		class, severity := errorClass(rec.status)
		metrics.RecordErrorByEndpoint(endpoint, r.Method, class)
		metrics.RecordErrorByType(class, severity)
		if severity == "high" {
			logger.Get().Warn(r.Context(), "request failed",
				logger.String("endpoint", endpoint),
				logger.String("method", r.Method),
				logger.Int("status", rec.status),
				logger.Float64("elapsed_ms", elapsedMs),
			)
		}
	}
}

// errorClass groups failed responses for the error metrics.
func errorClass(status int) (class, severity string) {
	switch status {
	case http.StatusNotFound:
		return "not_found", "low"
	case http.StatusConflict:
		return "conflict", "low"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed", "low"
	case http.StatusServiceUnavailable:
		return "unavailable", "high"
	}
	if status >= http.StatusInternalServerError {
		return "server_error", "high"
	}
	return "client_error", "medium"
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status, r.wroteHeader = code, true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}
