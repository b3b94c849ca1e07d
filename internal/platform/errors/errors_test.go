package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, GetHTTPStatus(RateLimited(30)))
	assert.Equal(t, http.StatusPaymentRequired, GetHTTPStatus(QuotaExceeded(1000)))
	assert.Equal(t, http.StatusServiceUnavailable, GetHTTPStatus(Backpressure()))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(fmt.Errorf("boom")))
}

func TestWithDetailsChaining(t *testing.T) {
	err := InvalidInput("timestamp", "too far in the future")
	assert.Equal(t, "too far in the future", err.Details["reason"])
	assert.Equal(t, "timestamp", err.Details["field"])
}

func TestBackpressureRetryAfter(t *testing.T) {
	err := Backpressure()
	assert.Equal(t, 60, err.RetryAfter)
}

func TestIsServiceErrorUnwraps(t *testing.T) {
	wrapped := Wrap(CodeInternal, "db write failed", http.StatusInternalServerError, fmt.Errorf("connection reset"))
	assert.True(t, IsServiceError(wrapped))
	assert.False(t, IsServiceError(fmt.Errorf("plain error")))
}
