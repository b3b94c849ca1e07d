// Package domain holds the shared entity types described in spec.md §3:
// Account, Project, ApiKey, DailyUsage, UserDashboard, LogEvent,
// ErrorGroup, AggregatedMetric, and BottleneckMetric.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StringSlice is a string slice persisted as a JSON array column, used for
// Project.AvailableRoutes (§4.11's per-project bottleneck metrics require
// knowing which routes a project wants tracked).
type StringSlice []string

func (s *StringSlice) Scan(src any) error {
	if src == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for StringSlice: %T", src)
	}
	if len(data) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(data, s)
}

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Plan is an account's subscription tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// AccountStatus is an account's lifecycle state.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountClosed    AccountStatus = "closed"
)

// Account is the billing and identity root that owns one or more Projects.
type Account struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	Email        string        `json:"email" db:"email"`
	PasswordHash string        `json:"-" db:"password_hash"`
	Plan         Plan          `json:"plan" db:"plan"`
	Status       AccountStatus `json:"status" db:"status"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// Environment distinguishes a project's deployment stage.
type Environment string

const (
	EnvProduction  Environment = "production"
	EnvStaging     Environment = "staging"
	EnvDevelopment Environment = "development"
)

// Project is a log-ingesting unit owned by an Account.
type Project struct {
	ID               uuid.UUID   `json:"id" db:"id"`
	AccountID        uuid.UUID   `json:"account_id" db:"account_id"`
	Name             string      `json:"name" db:"name"`
	Environment      Environment `json:"environment" db:"environment"`
	RateLimitPerMin  int         `json:"rate_limit_per_minute" db:"rate_limit_per_minute"`
	RateLimitPerHour int         `json:"rate_limit_per_hour" db:"rate_limit_per_hour"`
	DailyQuota       int64       `json:"daily_quota" db:"daily_quota"`
	RetentionDays    int         `json:"retention_days" db:"retention_days"`
	AvailableRoutes  StringSlice `json:"available_routes" db:"available_routes"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}

// ApiKey is a project-scoped credential. Only its SHA-256 hash is ever
// persisted (§6.2).
type ApiKey struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	ProjectID  uuid.UUID  `json:"project_id" db:"project_id"`
	Name       string     `json:"name" db:"name"`
	SecretHash string     `json:"-" db:"secret_hash"`
	Prefix     string     `json:"prefix" db:"prefix"`
	Revoked    bool       `json:"revoked" db:"revoked"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// DailyUsage is the durable, end-of-day copy of a project's event count,
// separate from the live KV counter (§4.2, §6.7).
type DailyUsage struct {
	ProjectID  uuid.UUID `json:"project_id" db:"project_id"`
	Date       time.Time `json:"date" db:"date"`
	EventCount int64     `json:"event_count" db:"event_count"`
}

// Panel is one widget on a UserDashboard.
type Panel struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	MetricKind string         `json:"metric_kind"`
	Config     map[string]any `json:"config,omitempty"`
}

// UserDashboard is an account's saved, customizable view over a project's
// metrics.
type UserDashboard struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AccountID uuid.UUID `json:"account_id" db:"account_id"`
	ProjectID uuid.UUID `json:"project_id" db:"project_id"`
	Name      string    `json:"name" db:"name"`
	Panels    []Panel   `json:"panels" db:"panels"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Level is a log event's severity.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

func (l Level) IsValid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarning, LevelError, LevelCritical:
		return true
	}
	return false
}

// LogType categorizes a log event's shape.
type LogType string

const (
	LogTypeMessage   LogType = "message"
	LogTypeException LogType = "exception"
	LogTypeEndpoint  LogType = "endpoint"
)

func (t LogType) IsValid() bool {
	switch t {
	case LogTypeMessage, LogTypeException, LogTypeEndpoint:
		return true
	}
	return false
}

// LogEvent is a single ingested log record (§3, §4.7).
type LogEvent struct {
	ID           uuid.UUID         `json:"id" db:"id"`
	ProjectID    uuid.UUID         `json:"project_id" db:"project_id"`
	Timestamp    time.Time         `json:"timestamp" db:"timestamp"`
	IngestedAt   time.Time         `json:"ingested_at" db:"ingested_at"`
	Level        Level             `json:"level" db:"level"`
	LogType      LogType           `json:"log_type" db:"log_type"`
	Message      string            `json:"message" db:"message"`
	Attributes   map[string]any    `json:"attributes,omitempty" db:"attributes"`
	ErrorType    string            `json:"error_type,omitempty" db:"error_type"`
	ErrorMessage string            `json:"error_message,omitempty" db:"error_message"`
	Stack        string            `json:"stack,omitempty" db:"stack"`
	Platform     string            `json:"platform,omitempty" db:"platform"`
	Fingerprint  string            `json:"fingerprint,omitempty" db:"fingerprint"`
	Labels       map[string]string `json:"labels,omitempty" db:"labels"`
}

// EndpointAttrs reads the nested "endpoint" attribute object §4.7 requires
// for log_type=endpoint entries (method, path, status_code, duration_ms).
func (e *LogEvent) EndpointAttrs() (map[string]any, bool) {
	raw, ok := e.Attributes["endpoint"]
	if !ok {
		return nil, false
	}
	m, ok := raw.(map[string]any)
	return m, ok
}

// ErrorGroup deduplicates LogEvents sharing a fingerprint (§4.9).
type ErrorGroup struct {
	ID               uuid.UUID `json:"id" db:"id"`
	ProjectID        uuid.UUID `json:"project_id" db:"project_id"`
	Fingerprint      string    `json:"fingerprint" db:"fingerprint"`
	ErrorType        string    `json:"error_type" db:"error_type"`
	SampleMessage    string    `json:"sample_message" db:"sample_message"`
	SampleStackTrace string    `json:"sample_stack_trace,omitempty" db:"sample_stack_trace"`
	OccurrenceCount  int64     `json:"occurrence_count" db:"occurrence_count"`
	FirstSeen        time.Time `json:"first_seen" db:"first_seen"`
	LastSeen         time.Time `json:"last_seen" db:"last_seen"`
	Resolved         bool      `json:"resolved" db:"resolved"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// MetricKind names the aggregation that produced an AggregatedMetric row.
type MetricKind string

const (
	MetricEndpoint  MetricKind = "endpoint"
	MetricException MetricKind = "exception"
	MetricLogVolume MetricKind = "log_volume"
)

// AggregatedMetric is one hourly rollup row (§4.11).
type AggregatedMetric struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ProjectID      uuid.UUID  `json:"project_id" db:"project_id"`
	Kind           MetricKind `json:"kind" db:"kind"`
	BucketTime     time.Time  `json:"bucket_time" db:"bucket_time"`
	Dimension      string     `json:"dimension" db:"dimension"` // "METHOD path" for endpoint, "level:log_type" for log volume, "" for exception
	Count          int64      `json:"count" db:"count"`
	SumValue       float64    `json:"sum_value" db:"sum_value"` // e.g. summed duration_ms for endpoint metrics
	ErrorCount     int64      `json:"error_count" db:"error_count"`
	AvgDurationMs  float64    `json:"avg_duration_ms" db:"avg_duration_ms"`
	MinDurationMs  float64    `json:"min_duration_ms" db:"min_duration_ms"`
	MaxDurationMs  float64    `json:"max_duration_ms" db:"max_duration_ms"`
	P95DurationMs  float64    `json:"p95_duration_ms" db:"p95_duration_ms"`
	P99DurationMs  float64    `json:"p99_duration_ms" db:"p99_duration_ms"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// BottleneckMetric is a per-route latency percentile rollup (§4.11).
type BottleneckMetric struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ProjectID  uuid.UUID `json:"project_id" db:"project_id"`
	Route      string    `json:"route" db:"route"`
	BucketTime time.Time `json:"bucket_time" db:"bucket_time"`
	P50Ms      float64   `json:"p50_ms" db:"p50_ms"`
	P95Ms      float64   `json:"p95_ms" db:"p95_ms"`
	P99Ms      float64   `json:"p99_ms" db:"p99_ms"`
	CallCount  int64     `json:"call_count" db:"call_count"`
	ErrorCount int64     `json:"error_count" db:"error_count"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
