package transport

import (
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

const (
	maxAttempts = 3

	// Backoff jitter is uniform within ±20%.
	jitterFraction = 0.2
)

// baseBackoff is a var so tests can shrink it.
var baseBackoff = time.Second

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// isRetryableStatus reports whether the HTTP status warrants another attempt.
func isRetryableStatus(status int) bool {
	return retryableStatus[status]
}

// backoff returns the delay before the given attempt (1-based): base doubled
// per attempt, with jitter.
func backoff(attempt int) time.Duration {
	d := baseBackoff << (attempt - 1)
	jitter := 1 + jitterFraction*(2*rand.Float64()-1)
	return time.Duration(float64(d) * jitter)
}

// retryAfter parses a Retry-After header, accepting both delta-seconds and
// HTTP-date forms.
func retryAfter(h http.Header) (time.Duration, bool) {
	v := h.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}
