package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/zonetrack/internal/adapters/mq/queue"
	"github.com/okian/zonetrack/internal/adapters/repository"
	service "github.com/okian/zonetrack/internal/app"
	"github.com/okian/zonetrack/internal/domain/analysis"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrTooLarge   = errors.New("request body too large")
)

// classifyError returns the HTTP status and error code for err.
func classifyError(err error) (int, string) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig), errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, analysis.ErrTooManySamples):
		return http.StatusRequestEntityTooLarge, "too_many_samples"
	case errors.Is(err, ErrBadRequest), errors.Is(err, analysis.ErrInvalidTrial):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, queue.ErrClosed), errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
