package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrUnavailable means the provider is not usable at all (missing API key or
// model). It is fatal and never retried.
var ErrUnavailable = errors.New("ai provider unavailable")

// StatusError is a non-2xx reply from an embedding endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider request failed: status %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether an embed failure is worth another attempt:
// rate limits, server-side errors and transport errors qualify, everything
// else (bad request, missing config, cancellation) does not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
