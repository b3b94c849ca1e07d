package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loganalytics/platform/internal/domain"
)

// LogFilter narrows QueryLogs to a time range and optional dimensions
// (§4.12's "filters include time range, level, log-type, error-fingerprint").
type LogFilter struct {
	ProjectID   uuid.UUID
	From        time.Time
	To          time.Time
	Level       domain.Level
	LogType     domain.LogType
	Fingerprint string
}

// QueryLogs returns a project's log events matching filter, newest-first,
// plus the total matching row count for pagination (§4.12 QueryLogs).
func (s *Store) QueryLogs(ctx context.Context, filter LogFilter, limit, offset int) ([]domain.LogEvent, int64, error) {
	where := []string{"project_id = $1", "timestamp >= $2", "timestamp < $3"}
	args := []interface{}{filter.ProjectID, filter.From, filter.To}

	if filter.Level != "" {
		args = append(args, filter.Level)
		where = append(where, fmt.Sprintf("level = $%d", len(args)))
	}
	if filter.LogType != "" {
		args = append(args, filter.LogType)
		where = append(where, fmt.Sprintf("log_type = $%d", len(args)))
	}
	if filter.Fingerprint != "" {
		args = append(args, filter.Fingerprint)
		where = append(where, fmt.Sprintf("fingerprint = $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int64
	countQ := fmt.Sprintf(`SELECT COUNT(*) FROM log_events WHERE %s`, whereClause)
	if err := s.db.GetContext(ctx, &total, countQ, args...); err != nil {
		return nil, 0, fmt.Errorf("count log events: %w", err)
	}

	args = append(args, limit, offset)
	rowsQ := fmt.Sprintf(`
		SELECT id, project_id, timestamp, ingested_at, level, log_type, message, attributes,
		       error_type, error_message, stack, platform, fingerprint, labels
		FROM log_events WHERE %s
		ORDER BY timestamp DESC
		LIMIT $%d OFFSET $%d`, whereClause, len(args)-1, len(args))

	var events []domain.LogEvent
	if err := s.db.SelectContext(ctx, &events, rowsQ, args...); err != nil {
		return nil, 0, fmt.Errorf("query log events: %w", err)
	}
	return events, total, nil
}

// SearchLogs performs a case-insensitive substring search over message,
// error_message, and error_type (§4.12 SearchLogs).
func (s *Store) SearchLogs(ctx context.Context, projectID uuid.UUID, queryString string, from, to time.Time, limit, offset int) ([]domain.LogEvent, int64, error) {
	pattern := "%" + queryString + "%"
	const whereClause = `project_id = $1 AND timestamp >= $2 AND timestamp < $3 AND
		(message ILIKE $4 OR error_message ILIKE $4 OR error_type ILIKE $4)`

	var total int64
	countQ := `SELECT COUNT(*) FROM log_events WHERE ` + whereClause
	if err := s.db.GetContext(ctx, &total, countQ, projectID, from, to, pattern); err != nil {
		return nil, 0, fmt.Errorf("count search matches: %w", err)
	}

	rowsQ := `
		SELECT id, project_id, timestamp, ingested_at, level, log_type, message, attributes,
		       error_type, error_message, stack, platform, fingerprint, labels
		FROM log_events WHERE ` + whereClause + `
		ORDER BY timestamp DESC
		LIMIT $5 OFFSET $6`
	var events []domain.LogEvent
	if err := s.db.SelectContext(ctx, &events, rowsQ, projectID, from, to, pattern, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("search log events: %w", err)
	}
	return events, total, nil
}

// GetLog returns the log event with id, iff it belongs to projectID
// (§4.12 GetLog: "returns the row iff it belongs to project").
func (s *Store) GetLog(ctx context.Context, id, projectID uuid.UUID) (*domain.LogEvent, error) {
	var event domain.LogEvent
	const q = `
		SELECT id, project_id, timestamp, ingested_at, level, log_type, message, attributes,
		       error_type, error_message, stack, platform, fingerprint, labels
		FROM log_events WHERE id = $1 AND project_id = $2`
	if err := s.db.GetContext(ctx, &event, q, id, projectID); err != nil {
		return nil, err
	}
	return &event, nil
}

// GetErrorList returns error/critical log events within [from, to),
// newest-first (§4.12 GetErrorList).
func (s *Store) GetErrorList(ctx context.Context, projectID uuid.UUID, from, to time.Time, limit, offset int) ([]domain.LogEvent, int64, error) {
	const whereClause = `project_id = $1 AND timestamp >= $2 AND timestamp < $3 AND level IN ('error', 'critical')`

	var total int64
	countQ := `SELECT COUNT(*) FROM log_events WHERE ` + whereClause
	if err := s.db.GetContext(ctx, &total, countQ, projectID, from, to); err != nil {
		return nil, 0, fmt.Errorf("count error list: %w", err)
	}

	rowsQ := `
		SELECT id, project_id, timestamp, ingested_at, level, log_type, message, attributes,
		       error_type, error_message, stack, platform, fingerprint, labels
		FROM log_events WHERE ` + whereClause + `
		ORDER BY timestamp DESC
		LIMIT $4 OFFSET $5`
	var events []domain.LogEvent
	if err := s.db.SelectContext(ctx, &events, rowsQ, projectID, from, to, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("query error list: %w", err)
	}
	return events, total, nil
}
