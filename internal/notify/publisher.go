package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/loganalytics/platform/internal/domain"
	"github.com/loganalytics/platform/internal/platform/logging"
)

// ErrorNotification is published on topic notifications:errors:<project-id>
// when a storage worker persists a qualifying log event (§4.13).
type ErrorNotification struct {
	ProjectID   string         `json:"project_id"`
	Level       domain.Level   `json:"level"`
	LogType     domain.LogType `json:"log_type"`
	Message     string         `json:"message"`
	ErrorType   string         `json:"error_type,omitempty"`
	Timestamp   string         `json:"timestamp"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	SDKVersion  string         `json:"sdk_version,omitempty"`
	Platform    string         `json:"platform,omitempty"`
}

const maxNotificationMessageLen = 1000

// Publisher emits error notifications over a Bus. Construction is cheap;
// a single Publisher is shared by every storage worker in the process.
type Publisher struct {
	bus    *Bus
	logger *logging.Logger
}

func NewPublisher(bus *Bus, logger *logging.Logger) *Publisher {
	return &Publisher{bus: bus, logger: logger}
}

// Channel returns the pub/sub channel name for projectID, also used by
// the SSE handler to subscribe.
func Channel(projectID uuid.UUID) string {
	return fmt.Sprintf("notifications:errors:%s", projectID)
}

// Qualifies reports whether event should produce a notification: level
// is error or critical, or the event is an exception regardless of
// level.
func Qualifies(event domain.LogEvent) bool {
	return event.Level == domain.LevelError || event.Level == domain.LevelCritical || event.LogType == domain.LogTypeException
}

// PublishIfQualifying builds and publishes a notification for event if
// it qualifies. Publish failures are logged, never returned, per §4.13's
// "publish errors must be swallowed" — a notification outage must not
// block ingestion.
func (p *Publisher) PublishIfQualifying(ctx context.Context, event domain.LogEvent) {
	if !Qualifies(event) {
		return
	}

	message := event.Message
	if len(message) > maxNotificationMessageLen {
		message = message[:maxNotificationMessageLen]
	}

	notification := ErrorNotification{
		ProjectID:   event.ProjectID.String(),
		Level:       event.Level,
		LogType:     event.LogType,
		Message:     message,
		ErrorType:   event.ErrorType,
		Timestamp:   event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Fingerprint: event.Fingerprint,
		Attributes:  event.Attributes,
		Platform:    event.Platform,
	}
	if sdk, ok := event.Attributes["sdk_version"].(string); ok {
		notification.SDKVersion = sdk
	}

	if err := p.bus.Publish(ctx, Channel(event.ProjectID), notification); err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("publish error notification failed")
	}
}
