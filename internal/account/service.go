// Package account implements §6.2 and §4.3: account registration and
// login, project management, and API key issuance/revocation. Grounded on
// original_source/services/account/account_service's bcrypt password
// hashing and JWT session issuance.
package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/loganalytics/platform/internal/domain"
	platformerrors "github.com/loganalytics/platform/internal/platform/errors"
	"github.com/loganalytics/platform/internal/platform/logging"
	"github.com/loganalytics/platform/internal/platform/sqlstore"
)

// KeyPrefix is prepended to every issued API key secret, matching the
// `ledger_` prefix the gateway's credential sniffer looks for (§4.4).
const KeyPrefix = "ledger_"

const bcryptCost = bcrypt.DefaultCost

// Service implements account, project, and API key management.
type Service struct {
	store     *sqlstore.Store
	logger    *logging.Logger
	jwtSecret []byte
	jwtExpiry time.Duration
}

func NewService(store *sqlstore.Store, logger *logging.Logger, jwtSecret string, jwtExpiry time.Duration) *Service {
	return &Service{store: store, logger: logger, jwtSecret: []byte(jwtSecret), jwtExpiry: jwtExpiry}
}

// Register creates a new account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, password string) (*domain.Account, error) {
	if !isValidEmail(email) {
		return nil, platformerrors.InvalidInput("email", "must be a valid email address")
	}
	if len(password) < 8 {
		return nil, platformerrors.InvalidInput("password", "must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, platformerrors.Internal("hash password", err)
	}

	account := &domain.Account{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		Plan:         domain.PlanFree,
		Status:       domain.AccountActive,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		if sqlstore.IsUniqueViolation(err) {
			return nil, platformerrors.Conflict("an account with this email already exists")
		}
		return nil, platformerrors.Internal("create account", err)
	}
	return account, nil
}

// Login verifies credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (token string, account *domain.Account, err error) {
	account, err = s.store.GetAccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == sqlstore.ErrNoRows {
		return "", nil, platformerrors.Unauthenticated("invalid email or password")
	}
	if err != nil {
		return "", nil, platformerrors.Internal("look up account", err)
	}

	if account.Status != domain.AccountActive {
		return "", nil, platformerrors.Forbidden("account is not active")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", nil, platformerrors.Unauthenticated("invalid email or password")
	}

	token, err = issueSessionToken(s.jwtSecret, account.ID.String(), s.jwtExpiry)
	if err != nil {
		return "", nil, platformerrors.Internal("issue session token", err)
	}
	return token, account, nil
}

// CreateProject creates a project owned by accountID, applying plan-based
// defaults for rate limits, quota, and retention (§3).
func (s *Service) CreateProject(ctx context.Context, accountID uuid.UUID, name string, env domain.Environment) (*domain.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, platformerrors.InvalidInput("name", "is required")
	}
	if env == "" {
		env = domain.EnvProduction
	}

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, platformerrors.Internal("look up account", err)
	}

	limits := planLimits(account.Plan)

	project := &domain.Project{
		ID:               uuid.New(),
		AccountID:        accountID,
		Name:             strings.TrimSpace(name),
		Environment:      env,
		RateLimitPerMin:  limits.perMinute,
		RateLimitPerHour: limits.perHour,
		DailyQuota:       limits.dailyQuota,
		RetentionDays:    limits.retentionDays,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}

	if err := s.store.CreateProject(ctx, project); err != nil {
		if sqlstore.IsUniqueViolation(err) {
			return nil, platformerrors.Conflict("a project with this name already exists")
		}
		return nil, platformerrors.Internal("create project", err)
	}
	return project, nil
}

type planLimit struct {
	perMinute     int
	perHour       int
	dailyQuota    int64
	retentionDays int
}

// planLimits returns §3's per-plan defaults.
func planLimits(plan domain.Plan) planLimit {
	switch plan {
	case domain.PlanPro:
		return planLimit{perMinute: 6000, perHour: 200000, dailyQuota: 10_000_000, retentionDays: 90}
	case domain.PlanEnterprise:
		return planLimit{perMinute: 60000, perHour: 2_000_000, dailyQuota: 500_000_000, retentionDays: 365}
	default:
		return planLimit{perMinute: 600, perHour: 20000, dailyQuota: 1_000_000, retentionDays: 30}
	}
}

// IssuedAPIKey is returned exactly once, at creation time — only its hash
// is ever persisted (§6.2).
type IssuedAPIKey struct {
	Key    domain.ApiKey
	Secret string
}

// CreateAPIKey issues a new API key for projectID. The raw secret is
// returned to the caller and never stored.
func (s *Service) CreateAPIKey(ctx context.Context, projectID uuid.UUID, name string) (*IssuedAPIKey, error) {
	if strings.TrimSpace(name) == "" {
		return nil, platformerrors.InvalidInput("name", "is required")
	}

	secret, err := generateAPIKeySecret()
	if err != nil {
		return nil, platformerrors.Internal("generate api key secret", err)
	}

	key := domain.ApiKey{
		ID:         uuid.New(),
		ProjectID:  projectID,
		Name:       strings.TrimSpace(name),
		SecretHash: hashSecret(secret),
		Prefix:     secret[:len(KeyPrefix)+6],
		Revoked:    false,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.store.CreateAPIKey(ctx, &key); err != nil {
		return nil, platformerrors.Internal("create api key", err)
	}
	return &IssuedAPIKey{Key: key, Secret: secret}, nil
}

// RevokeAPIKey marks exactly the one key revoked in the store. It does not
// touch the gateway-side API key cache: a cached entry for the revoked key
// stays until its TTL expires.
func (s *Service) RevokeAPIKey(ctx context.Context, keyID uuid.UUID) error {
	if err := s.store.RevokeAPIKey(ctx, keyID); err != nil {
		return platformerrors.Internal("revoke api key", err)
	}
	return nil
}

func generateAPIKeySecret() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	encoded := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf))
	return KeyPrefix + encoded, nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
