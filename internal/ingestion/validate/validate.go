// Package validate implements the ingestion-time validation and
// enrichment pipeline of spec.md §4.7, grounded on
// original_source/services/ingestion/ingestion_service/schemas.py's
// LogEntry model: the same field-length ceilings and the same
// log-type-conditional required-field rules, re-expressed as Go
// validation over domain.LogEvent instead of pydantic validators.
package validate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/loganalytics/platform/internal/domain"
	"github.com/loganalytics/platform/internal/ingestion/fingerprint"
)

// Field length ceilings from schemas.py's MAX_* settings. Message length
// is the one limit callers can tune at runtime (config.MaxMessageLength);
// the rest are fixed, matching the original service's hardcoded pydantic
// Field(max_length=...) declarations.
const (
	MaxErrorMessageLength = 5000
	MaxStackTraceLength   = 50000
	MaxAttributesBytes    = 100000
	MaxErrorTypeLength    = 255
)

// Options configures a Validator from the subset of config.Config the
// ingestion service cares about.
type Options struct {
	MaxMessageLength    int
	FutureTimestampSkew time.Duration
}

// Validator checks and enriches LogEvents before they are queued.
type Validator struct {
	opts Options
}

func New(opts Options) *Validator {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 10000
	}
	if opts.FutureTimestampSkew <= 0 {
		opts.FutureTimestampSkew = 5 * time.Minute
	}
	return &Validator{opts: opts}
}

// Validate checks a single event, returning a descriptive error if it
// fails any rule in §4.7 steps 1-3. It does not mutate event; callers
// enrich separately via Enrich once validation succeeds.
func (v *Validator) Validate(event *domain.LogEvent) error {
	if !event.Level.IsValid() {
		return fmt.Errorf("level %q is not a recognized log level", event.Level)
	}
	if !event.LogType.IsValid() {
		return fmt.Errorf("log_type %q is not recognized", event.LogType)
	}

	now := time.Now().UTC()
	if event.Timestamp.After(now.Add(v.opts.FutureTimestampSkew)) {
		return fmt.Errorf("timestamp cannot be more than %s in the future", v.opts.FutureTimestampSkew)
	}

	if len(event.Message) > v.opts.MaxMessageLength {
		return fmt.Errorf("message exceeds maximum length of %d", v.opts.MaxMessageLength)
	}
	if len(event.ErrorMessage) > MaxErrorMessageLength {
		return fmt.Errorf("error_message exceeds maximum length of %d", MaxErrorMessageLength)
	}
	if len(event.Stack) > MaxStackTraceLength {
		return fmt.Errorf("stack_trace exceeds maximum length of %d", MaxStackTraceLength)
	}
	if len(event.ErrorType) > MaxErrorTypeLength {
		return fmt.Errorf("error_type exceeds maximum length of %d", MaxErrorTypeLength)
	}
	if event.Attributes != nil {
		encoded, err := json.Marshal(event.Attributes)
		if err != nil {
			return fmt.Errorf("attributes not serializable: %w", err)
		}
		if len(encoded) > MaxAttributesBytes {
			return fmt.Errorf("attributes exceeds maximum serialized size of %d bytes", MaxAttributesBytes)
		}
	}

	if event.LogType == domain.LogTypeException {
		if event.ErrorType == "" {
			return fmt.Errorf("error_type is required when log_type is 'exception'")
		}
		if event.ErrorMessage == "" {
			return fmt.Errorf("error_message is required when log_type is 'exception'")
		}
	}

	if event.LogType == domain.LogTypeEndpoint {
		endpoint, ok := event.EndpointAttrs()
		if !ok {
			return fmt.Errorf("attributes.endpoint is required when log_type is 'endpoint'; must include method, path, status_code, duration_ms")
		}
		required := []string{"method", "path", "status_code", "duration_ms"}
		var missing []string
		for _, f := range required {
			if _, ok := endpoint[f]; !ok {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("attributes.endpoint missing required fields: %v", missing)
		}
	}

	return nil
}

// Enrich stamps ingestion-timestamp and, for exceptions, the
// error-fingerprint (§4.7 steps 4-5) on an event that has already passed
// Validate.
func (v *Validator) Enrich(event *domain.LogEvent) {
	event.IngestedAt = time.Now().UTC()
	if event.LogType == domain.LogTypeException {
		event.Fingerprint = fingerprint.Compute(event.ErrorType, event.Stack, event.Platform)
	}
}

// BatchResult is the outcome of validating a batch: the events that
// passed, plus one error string per rejected index (§4.7's "batch
// response reports per-entry errors in a single error string keyed by
// index").
type BatchResult struct {
	Accepted []domain.LogEvent
	Rejected int
	Errors   []string // e.g. "Log 3: error_type is required when log_type is 'exception'"
}

// ValidateBatch validates and enriches every event in events, dropping
// failures individually rather than failing the whole batch (§4.7).
func (v *Validator) ValidateBatch(events []domain.LogEvent) BatchResult {
	result := BatchResult{Accepted: make([]domain.LogEvent, 0, len(events))}
	for i := range events {
		e := events[i]
		if err := v.Validate(&e); err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, fmt.Sprintf("Log %d: %v", i, err))
			continue
		}
		v.Enrich(&e)
		result.Accepted = append(result.Accepted, e)
	}
	return result
}
