// Package partition implements the log_events partition manager of
// spec.md §4.10: monthly range partitions created ahead of need, with an
// idempotent ensure-for-date operation storage workers call as a safety
// net before every bulk insert and a daily scheduler keeps topped up.
package partition

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/loganalytics/platform/internal/platform/logging"
)

// Manager creates and tracks monthly range partitions of log_events.
type Manager struct {
	db     *sql.DB
	logger *logging.Logger

	cron *cron.Cron
}

func New(db *sql.DB, logger *logging.Logger) *Manager {
	return &Manager{db: db, logger: logger}
}

// monthBounds returns the [start, end) timestamp range for the calendar
// month containing t, in UTC.
func monthBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return start, end
}

// partitionName derives the child table name for the month containing t.
func partitionName(t time.Time) string {
	start, _ := monthBounds(t)
	return fmt.Sprintf("log_events_%04d_%02d", start.Year(), start.Month())
}

// EnsurePartitionForDate creates the monthly partition covering date if
// it does not already exist. Safe to call concurrently from multiple
// storage workers: CREATE TABLE IF NOT EXISTS combined with Postgres
// treating "relation already exists" as a benign race, not a fatal
// error, makes the operation idempotent under §4.10's "safe under
// concurrent workers" requirement.
func (m *Manager) EnsurePartitionForDate(ctx context.Context, date time.Time) error {
	name := partitionName(date)
	start, end := monthBounds(date)

	const stmt = `CREATE TABLE IF NOT EXISTS %s PARTITION OF log_events
		FOR VALUES FROM ($1) TO ($2)`
	_, err := m.db.ExecContext(ctx, fmt.Sprintf(stmt, name), start, end)
	if err != nil {
		if isDuplicateRelation(err) {
			return nil
		}
		return fmt.Errorf("ensure partition %s: %w", name, err)
	}
	return nil
}

// EnsurePartitionsForDates ensures every distinct month among dates has a
// partition, deduplicating so a batch spanning one month only issues one
// statement.
func (m *Manager) EnsurePartitionsForDates(ctx context.Context, dates []time.Time) error {
	seen := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		name := partitionName(d)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if err := m.EnsurePartitionForDate(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// EnsureAhead creates partitions for the current calendar month and the
// monthsAhead months after it, for the daily scheduler (§4.10).
func (m *Manager) EnsureAhead(ctx context.Context, monthsAhead int) error {
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i <= monthsAhead; i++ {
		target := monthStart.AddDate(0, i, 0)
		if err := m.EnsurePartitionForDate(ctx, target); err != nil {
			return err
		}
	}
	return nil
}

// StartScheduler runs EnsureAhead once immediately and then daily via
// robfig/cron, gated by the caller on config.EnablePartitionScheduler.
// The teacher pack has no cron-based scheduler of its own; this mirrors
// original_source's daily partition-maintenance job using the pack's
// robfig/cron/v3 dependency instead of reimplementing a ticker loop.
func (m *Manager) StartScheduler(ctx context.Context, monthsAhead int) error {
	if err := m.EnsureAhead(ctx, monthsAhead); err != nil {
		m.logger.WithContext(ctx).WithError(err).Error("initial partition ensure failed")
	}

	m.cron = cron.New()
	_, err := m.cron.AddFunc("@daily", func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := m.EnsureAhead(runCtx, monthsAhead); err != nil {
			m.logger.WithContext(runCtx).WithError(err).Error("scheduled partition ensure failed")
			return
		}
		m.logger.WithContext(runCtx).Info("partition scheduler run completed")
	})
	if err != nil {
		return fmt.Errorf("register partition scheduler job: %w", err)
	}
	m.cron.Start()
	return nil
}

// Stop halts the scheduler, if running.
func (m *Manager) Stop() {
	if m.cron != nil {
		m.cron.Stop()
	}
}

// isDuplicateRelation reports whether err is Postgres's "relation
// already exists" error (SQLSTATE 42P07), which CREATE TABLE IF NOT
// EXISTS should already suppress but a concurrent CREATE can still race
// past on some Postgres versions.
func isDuplicateRelation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P07"
	}
	return false
}
