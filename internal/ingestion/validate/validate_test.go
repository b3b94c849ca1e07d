package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loganalytics/platform/internal/domain"
)

func newValidator() *Validator {
	return New(Options{MaxMessageLength: 100, FutureTimestampSkew: 5 * time.Minute})
}

func TestValidateRejectsFutureTimestamp(t *testing.T) {
	v := newValidator()
	event := domain.LogEvent{
		Timestamp: time.Now().UTC().Add(time.Hour),
		Level:     domain.LevelInfo,
		LogType:   domain.LogTypeMessage,
		Message:   "ok",
	}
	err := v.Validate(&event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "future")
}

func TestValidateRejectsOversizedMessage(t *testing.T) {
	v := newValidator()
	event := domain.LogEvent{
		Timestamp: time.Now().UTC(),
		Level:     domain.LevelInfo,
		LogType:   domain.LogTypeMessage,
		Message:   strings.Repeat("x", 101),
	}
	err := v.Validate(&event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message exceeds")
}

func TestValidateExceptionRequiresErrorFields(t *testing.T) {
	v := newValidator()
	event := domain.LogEvent{
		Timestamp: time.Now().UTC(),
		Level:     domain.LevelError,
		LogType:   domain.LogTypeException,
		Message:   "boom",
	}
	err := v.Validate(&event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error_type")

	event.ErrorType = "ValueError"
	err = v.Validate(&event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error_message")

	event.ErrorMessage = "invalid value"
	require.NoError(t, v.Validate(&event))
	v.Enrich(&event)
	assert.Len(t, event.Fingerprint, 64)
}

func TestValidateEndpointRequiresNestedFields(t *testing.T) {
	v := newValidator()
	event := domain.LogEvent{
		Timestamp: time.Now().UTC(),
		Level:     domain.LevelInfo,
		LogType:   domain.LogTypeEndpoint,
		Message:   "request handled",
	}
	err := v.Validate(&event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attributes.endpoint")

	event.Attributes = map[string]any{
		"endpoint": map[string]any{"method": "GET", "path": "/v1/widgets"},
	}
	err = v.Validate(&event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required fields")

	event.Attributes["endpoint"] = map[string]any{
		"method": "GET", "path": "/v1/widgets", "status_code": 200, "duration_ms": 12.5,
	}
	assert.NoError(t, v.Validate(&event))
}

func TestValidateBatchDropsFailuresIndividually(t *testing.T) {
	v := newValidator()
	events := []domain.LogEvent{
		{Timestamp: time.Now().UTC(), Level: domain.LevelInfo, LogType: domain.LogTypeMessage, Message: "good"},
		{Timestamp: time.Now().UTC(), Level: "invalid_level", LogType: domain.LogTypeMessage, Message: "bad level"},
		{Timestamp: time.Now().UTC(), Level: domain.LevelInfo, LogType: domain.LogTypeMessage, Message: "also good"},
	}
	result := v.ValidateBatch(events)
	assert.Equal(t, 2, len(result.Accepted))
	assert.Equal(t, 1, result.Rejected)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Log 1:")
	assert.Contains(t, result.Errors[0], "level")
	for _, e := range result.Accepted {
		assert.False(t, e.IngestedAt.IsZero())
	}
}
