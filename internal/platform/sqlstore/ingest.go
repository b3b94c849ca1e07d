package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/loganalytics/platform/internal/domain"
)

// InsertLogEventsBatch inserts a storage worker's batch of events in one
// transaction, preparing a single INSERT statement and executing it once
// per event.
func (s *Store) InsertLogEventsBatch(ctx context.Context, events []domain.LogEvent) error {
	if len(events) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO log_events (id, project_id, timestamp, ingested_at, level, log_type, message,
				attributes, error_type, error_message, stack, platform, fingerprint, labels)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`)
		if err != nil {
			return fmt.Errorf("prepare log event insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range events {
			attrs, err := json.Marshal(e.Attributes)
			if err != nil {
				return fmt.Errorf("marshal attributes: %w", err)
			}
			labels, err := json.Marshal(e.Labels)
			if err != nil {
				return fmt.Errorf("marshal labels: %w", err)
			}
			ingestedAt := e.IngestedAt
			if ingestedAt.IsZero() {
				ingestedAt = time.Now().UTC()
			}
			if _, err := stmt.ExecContext(ctx, e.ID, e.ProjectID, e.Timestamp, ingestedAt, e.Level, e.LogType,
				e.Message, attrs, e.ErrorType, e.ErrorMessage, e.Stack, e.Platform, e.Fingerprint, labels); err != nil {
				return fmt.Errorf("insert log event %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// UpsertErrorGroup inserts a new error group or, on a fingerprint
// conflict, increments its occurrence count and advances last_seen
// (§4.9).
func (s *Store) UpsertErrorGroup(ctx context.Context, projectID uuid.UUID, fingerprint, errorType, sampleMessage, sampleStackTrace string, seenAt time.Time) error {
	const q = `
		INSERT INTO error_groups (id, project_id, fingerprint, error_type, sample_message,
			sample_stack_trace, occurrence_count, first_seen, last_seen, resolved, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7, false, now())
		ON CONFLICT (project_id, fingerprint) DO UPDATE SET
			occurrence_count = error_groups.occurrence_count + 1,
			last_seen = GREATEST(error_groups.last_seen, EXCLUDED.last_seen),
			resolved = false,
			updated_at = now()`
	_, err := s.db.ExecContext(ctx, q, uuid.New(), projectID, fingerprint, errorType, sampleMessage, sampleStackTrace, seenAt)
	if err != nil {
		return fmt.Errorf("upsert error group: %w", err)
	}
	return nil
}

// ListErrorGroups returns a project's error groups ordered by most recent
// occurrence, optionally filtered to unresolved-only.
func (s *Store) ListErrorGroups(ctx context.Context, projectID uuid.UUID, onlyUnresolved bool, limit, offset int) ([]domain.ErrorGroup, error) {
	var groups []domain.ErrorGroup
	q := `SELECT id, project_id, fingerprint, error_type, sample_message, sample_stack_trace,
	      occurrence_count, first_seen, last_seen, resolved, updated_at
	      FROM error_groups WHERE project_id = $1`
	args := []interface{}{projectID}
	if onlyUnresolved {
		q += ` AND resolved = false`
	}
	q += ` ORDER BY last_seen DESC LIMIT $2 OFFSET $3`
	args = append(args, limit, offset)

	if err := s.db.SelectContext(ctx, &groups, q, args...); err != nil {
		return nil, fmt.Errorf("list error groups: %w", err)
	}
	return groups, nil
}

// ResolveErrorGroup marks a single error group resolved.
func (s *Store) ResolveErrorGroup(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE error_groups SET resolved = true, updated_at = now() WHERE id = $1`
	_, err := s.db.ExecContext(ctx, q, id)
	return err
}

// IncrementDailyUsage adds count to a project's running daily event
// total, creating the row if it doesn't exist yet (§4.2, §6.7).
func (s *Store) IncrementDailyUsage(ctx context.Context, projectID uuid.UUID, date time.Time, count int64) error {
	const q = `
		INSERT INTO daily_usage (project_id, date, event_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, date) DO UPDATE SET event_count = daily_usage.event_count + EXCLUDED.event_count`
	_, err := s.db.ExecContext(ctx, q, projectID, date, count)
	return err
}

// GetDailyUsage returns a project's durable event count for date, or 0 if
// no row exists yet.
func (s *Store) GetDailyUsage(ctx context.Context, projectID uuid.UUID, date time.Time) (int64, error) {
	var count int64
	const q = `SELECT event_count FROM daily_usage WHERE project_id = $1 AND date = $2`
	err := s.db.GetContext(ctx, &count, q, projectID, date)
	if err == ErrNoRows {
		return 0, nil
	}
	return count, err
}
