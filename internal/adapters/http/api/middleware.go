package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/zonetrack/pkg/metrics"
)

// MetricsMiddleware records request count and latency per endpoint. Failed
// requests are also counted under the error code the handler answered with,
// so a 413 for an oversized body and one for too many samples stay apart.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		ms := float64(time.Since(start).Microseconds()) / 1000
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, ms)

		if rec.status < http.StatusBadRequest {
			return
		}
		code := rec.code
		if code == "" {
			code = fallbackCode(rec.status)
		}
		metrics.RecordErrorByComponent(endpoint, code)
		metrics.RecordErrorByType(code, severity(rec.status))
	}
}

// fallbackCode names failures written without writeError, such as a 405
// from the mux.
func fallbackCode(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "internal"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "bad_request"
	}
}

func severity(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "high"
	case status == http.StatusTooManyRequests, status == http.StatusServiceUnavailable:
		return "medium"
	default:
		return "low"
	}
}

// statusRecorder captures the status and, when set by writeError, the API
// error code of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	code   string
}

func (rw *statusRecorder) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
