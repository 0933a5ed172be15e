package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/coachlens/pkg/metrics"
)

// MetricsMiddleware records request count, latency and failures per endpoint.
// Failures are labelled with the same codes the error body carries.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		ms := float64(time.Since(start).Microseconds()) / 1000
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, ms)

		if kind, failed := failureKind(rec.status); failed {
			metrics.RecordError("http_"+endpoint, kind)
		}
	}
}

// failureKind maps a response status onto the API error codes.
func failureKind(status int) (string, bool) {
	switch {
	case status < http.StatusBadRequest:
		return "", false
	case status == http.StatusNotFound:
		return "not_found", true
	case status == http.StatusMethodNotAllowed:
		return "method_not_allowed", true
	case status == http.StatusConflict:
		return "conflict", true
	case status == http.StatusTooManyRequests:
		return "backpressure", true
	case status == http.StatusServiceUnavailable:
		return "unavailable", true
	case status >= http.StatusInternalServerError:
		return "internal_error", true
	default:
		return "bad_request", true
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}
