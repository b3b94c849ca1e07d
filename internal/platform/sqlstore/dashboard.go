package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loganalytics/platform/internal/domain"
)

// CreateDashboard inserts a new user dashboard.
func (s *Store) CreateDashboard(ctx context.Context, d *domain.UserDashboard) error {
	panels, err := json.Marshal(d.Panels)
	if err != nil {
		return fmt.Errorf("marshal panels: %w", err)
	}
	const q = `
		INSERT INTO user_dashboards (id, account_id, project_id, name, panels, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = s.db.ExecContext(ctx, q, d.ID, d.AccountID, d.ProjectID, d.Name, panels, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert dashboard: %w", err)
	}
	return nil
}

// UpdateDashboardPanels replaces a dashboard's panel list.
func (s *Store) UpdateDashboardPanels(ctx context.Context, id uuid.UUID, panels []domain.Panel) error {
	payload, err := json.Marshal(panels)
	if err != nil {
		return fmt.Errorf("marshal panels: %w", err)
	}
	const q = `UPDATE user_dashboards SET panels = $2, updated_at = now() WHERE id = $1`
	_, err = s.db.ExecContext(ctx, q, id, payload)
	return err
}

// ListDashboardsByAccount returns every dashboard an account owns.
func (s *Store) ListDashboardsByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.UserDashboard, error) {
	type row struct {
		ID        uuid.UUID `db:"id"`
		AccountID uuid.UUID `db:"account_id"`
		ProjectID uuid.UUID `db:"project_id"`
		Name      string    `db:"name"`
		Panels    []byte    `db:"panels"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	var rows []row
	const q = `SELECT id, account_id, project_id, name, panels, created_at, updated_at
	           FROM user_dashboards WHERE account_id = $1 ORDER BY created_at`
	if err := s.db.SelectContext(ctx, &rows, q, accountID); err != nil {
		return nil, fmt.Errorf("list dashboards: %w", err)
	}

	dashboards := make([]domain.UserDashboard, 0, len(rows))
	for _, r := range rows {
		var panels []domain.Panel
		if err := json.Unmarshal(r.Panels, &panels); err != nil {
			return nil, fmt.Errorf("unmarshal panels for dashboard %s: %w", r.ID, err)
		}
		dashboards = append(dashboards, domain.UserDashboard{
			ID:        r.ID,
			AccountID: r.AccountID,
			ProjectID: r.ProjectID,
			Name:      r.Name,
			Panels:    panels,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return dashboards, nil
}

// DeleteDashboard removes a dashboard owned by accountID.
func (s *Store) DeleteDashboard(ctx context.Context, id, accountID uuid.UUID) error {
	const q = `DELETE FROM user_dashboards WHERE id = $1 AND account_id = $2`
	res, err := s.db.ExecContext(ctx, q, id, accountID)
	if err != nil {
		return fmt.Errorf("delete dashboard: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}
