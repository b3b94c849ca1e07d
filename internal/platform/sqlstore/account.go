package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/loganalytics/platform/internal/domain"
)

// CreateAccount inserts a new account row.
func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	const q = `
		INSERT INTO accounts (id, email, password_hash, plan, status, created_at, updated_at)
		VALUES (:id, :email, :password_hash, :plan, :status, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, a)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("account with this email already exists: %w", err)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetAccountByEmail returns the account with the given email, or
// ErrNoRows.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var a domain.Account
	const q = `SELECT id, email, password_hash, plan, status, created_at, updated_at
	           FROM accounts WHERE email = $1`
	if err := s.db.GetContext(ctx, &a, q, email); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccount returns the account with the given ID, or ErrNoRows.
func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var a domain.Account
	const q = `SELECT id, email, password_hash, plan, status, created_at, updated_at
	           FROM accounts WHERE id = $1`
	if err := s.db.GetContext(ctx, &a, q, id); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateProject inserts a new project row.
func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	const q = `
		INSERT INTO projects (id, account_id, name, environment, rate_limit_per_minute,
			rate_limit_per_hour, daily_quota, retention_days, available_routes, created_at, updated_at)
		VALUES (:id, :account_id, :name, :environment, :rate_limit_per_minute,
			:rate_limit_per_hour, :daily_quota, :retention_days, :available_routes, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, p)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("project with this name already exists for account: %w", err)
		}
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProject returns the project with the given ID, or ErrNoRows.
func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	var p domain.Project
	const q = `SELECT id, account_id, name, environment, rate_limit_per_minute,
	           rate_limit_per_hour, daily_quota, retention_days, available_routes, created_at, updated_at
	           FROM projects WHERE id = $1`
	if err := s.db.GetContext(ctx, &p, q, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjectsByAccount returns every project owned by accountID.
func (s *Store) ListProjectsByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Project, error) {
	var projects []domain.Project
	const q = `SELECT id, account_id, name, environment, rate_limit_per_minute,
	           rate_limit_per_hour, daily_quota, retention_days, available_routes, created_at, updated_at
	           FROM projects WHERE account_id = $1 ORDER BY created_at`
	if err := s.db.SelectContext(ctx, &projects, q, accountID); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// ListProjectsWithRoutes returns every project that has at least one
// available route configured, for the aggregation service's bottleneck
// job (§4.11 skips projects with no available_routes).
func (s *Store) ListProjectsWithRoutes(ctx context.Context) ([]domain.Project, error) {
	var projects []domain.Project
	const q = `SELECT id, account_id, name, environment, rate_limit_per_minute,
	           rate_limit_per_hour, daily_quota, retention_days, available_routes, created_at, updated_at
	           FROM projects WHERE jsonb_array_length(available_routes) > 0 ORDER BY created_at`
	if err := s.db.SelectContext(ctx, &projects, q); err != nil {
		return nil, fmt.Errorf("list projects with routes: %w", err)
	}
	return projects, nil
}

// ListAllProjectIDs returns every project ID, used by the aggregation
// scheduler to drive endpoint/exception/log-volume rollups across tenants.
func (s *Store) ListAllProjectIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	const q = `SELECT id FROM projects ORDER BY created_at`
	if err := s.db.SelectContext(ctx, &ids, q); err != nil {
		return nil, fmt.Errorf("list all project ids: %w", err)
	}
	return ids, nil
}

// ListProjectIDsByAccount returns the project IDs owned by accountID,
// satisfying sse.ProjectLister for the notification stream's
// authorization check (§6.3).
func (s *Store) ListProjectIDsByAccount(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	const q = `SELECT id FROM projects WHERE account_id = $1 ORDER BY created_at`
	if err := s.db.SelectContext(ctx, &ids, q, accountID); err != nil {
		return nil, fmt.Errorf("list project ids: %w", err)
	}
	return ids, nil
}

// CreateAPIKey inserts a new API key row.
func (s *Store) CreateAPIKey(ctx context.Context, k *domain.ApiKey) error {
	const q = `
		INSERT INTO api_keys (id, project_id, name, secret_hash, prefix, revoked, last_used_at, created_at)
		VALUES (:id, :project_id, :name, :secret_hash, :prefix, :revoked, :last_used_at, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, k)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetAPIKeyByHash looks up an API key by its SHA-256 secret hash, joined
// with its owning project for the rate-limit/quota fields the gateway
// needs on every authenticated request.
type APIKeyWithProject struct {
	domain.ApiKey
	ProjectAccountID        uuid.UUID `db:"project_account_id"`
	ProjectRateLimitPerMin  int       `db:"project_rate_limit_per_minute"`
	ProjectRateLimitPerHour int       `db:"project_rate_limit_per_hour"`
	ProjectDailyQuota       int64     `db:"project_daily_quota"`
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, secretHash string) (*APIKeyWithProject, error) {
	var rec APIKeyWithProject
	const q = `
		SELECT k.id, k.project_id, k.name, k.secret_hash, k.prefix, k.revoked, k.last_used_at, k.created_at,
		       p.account_id AS project_account_id,
		       p.rate_limit_per_minute AS project_rate_limit_per_minute,
		       p.rate_limit_per_hour AS project_rate_limit_per_hour,
		       p.daily_quota AS project_daily_quota
		FROM api_keys k
		JOIN projects p ON p.id = k.project_id
		WHERE k.secret_hash = $1`
	if err := s.db.GetContext(ctx, &rec, q, secretHash); err != nil {
		return nil, err
	}
	return &rec, nil
}

// RevokeAPIKey marks exactly the one key as revoked.
func (s *Store) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE api_keys SET revoked = true WHERE id = $1`
	_, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	return nil
}

// TouchAPIKeyLastUsed updates last_used_at to now for id.
func (s *Store) TouchAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE api_keys SET last_used_at = now() WHERE id = $1`
	_, err := s.db.ExecContext(ctx, q, id)
	return err
}

// ListAPIKeysByProject returns every key (including revoked) for a project.
func (s *Store) ListAPIKeysByProject(ctx context.Context, projectID uuid.UUID) ([]domain.ApiKey, error) {
	var keys []domain.ApiKey
	const q = `SELECT id, project_id, name, secret_hash, prefix, revoked, last_used_at, created_at
	           FROM api_keys WHERE project_id = $1 ORDER BY created_at`
	if err := s.db.SelectContext(ctx, &keys, q, projectID); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}
