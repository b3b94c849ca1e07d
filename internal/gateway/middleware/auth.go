package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/loganalytics/platform/internal/platform/apikeycache"
	platformerrors "github.com/loganalytics/platform/internal/platform/errors"
	"github.com/loganalytics/platform/internal/platform/httputil"
	"github.com/loganalytics/platform/internal/platform/logging"
)

// AuthResult carries the identity and limits a credential resolves to,
// grounded on original_source's auth.py AuthMiddleware.dispatch, which
// stashes the same fields on request.state.
type AuthResult struct {
	AccountID        string
	ProjectID        string // empty when authenticated via a session token
	RateLimitPerMin  int
	RateLimitPerHour int
	DailyQuota       int64
}

// APIKeyValidator resolves an API key against the account service (over
// RPC, wrapped in a circuit breaker by the caller supplying this
// implementation).
type APIKeyValidator interface {
	ValidateAPIKey(ctx context.Context, key string) (*AuthResult, error)
}

// ErrInvalidCredential is returned by an APIKeyValidator when the key does
// not correspond to any active project.
var ErrInvalidCredential = errors.New("invalid or revoked api key")

// sessionClaims is the JWT payload minted by the account service at login
// (§6.2).
type sessionClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"account_id"`
	TokenType string `json:"type"`
}

// AuthMiddleware authenticates every non-public request via X-API-Key,
// "Authorization: Bearer <token>", or a bare Authorization token, in that
// order, matching original_source's _extract_auth_token (§4.4).
type AuthMiddleware struct {
	logger     *logging.Logger
	cache      *apikeycache.Cache
	validator  APIKeyValidator
	jwtSecret  []byte
	publicPath map[string]struct{}
}

func NewAuthMiddleware(logger *logging.Logger, cache *apikeycache.Cache, validator APIKeyValidator, jwtSecret string, publicPaths ...string) *AuthMiddleware {
	paths := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		paths[p] = struct{}{}
	}
	return &AuthMiddleware{
		logger:     logger,
		cache:      cache,
		validator:  validator,
		jwtSecret:  []byte(jwtSecret),
		publicPath: paths,
	}
}

func (m *AuthMiddleware) isPublic(path string) bool {
	_, ok := m.publicPath[path]
	return ok
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, isAPIKey := extractCredential(r)
		if token == "" {
			m.writeAuthError(w, r, platformerrors.Unauthenticated("missing authentication header (X-API-Key or Authorization)"))
			return
		}

		var result *AuthResult
		var err error
		if isAPIKey {
			result, err = m.validateAPIKey(r.Context(), token)
		} else {
			result, err = m.validateSessionToken(token)
		}
		if err != nil {
			m.logger.LogSecurityEvent(r.Context(), "auth_failure", map[string]interface{}{"path": r.URL.Path})
			m.writeAuthError(w, r, err)
			return
		}

		ctx := logging.WithAccountID(r.Context(), result.AccountID)
		if result.ProjectID != "" {
			ctx = logging.WithProjectID(ctx, result.ProjectID)
		}
		r = r.WithContext(withAuthResult(ctx, result))

		next.ServeHTTP(w, r)
	})
}

// extractCredential implements the header precedence of §4.4: X-API-Key,
// then "Authorization: Bearer <token>" (sniffing the ledger_ prefix to
// decide whether the bearer token is itself an API key), then a bare
// Authorization token. Returns ("", false) when nothing is present.
func extractCredential(r *http.Request) (token string, isAPIKey bool) {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key, true
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}

	parts := strings.Fields(auth)
	switch {
	case len(parts) == 2 && strings.EqualFold(parts[0], "bearer"):
		return parts[1], strings.HasPrefix(parts[1], "ledger_")
	case len(parts) == 1:
		return parts[0], true
	default:
		return "", false
	}
}

const apiKeyCacheDefaultTTL = apikeycache.DefaultTTL

func (m *AuthMiddleware) validateAPIKey(ctx context.Context, key string) (*AuthResult, error) {
	rec, err := m.cache.Get(ctx, key)
	if err != nil {
		return nil, platformerrors.Internal("api key cache lookup failed", err)
	}
	if rec != nil {
		if rec.Revoked {
			return nil, platformerrors.Unauthenticated("invalid or expired api key")
		}
		go m.cache.MaybeRefresh(context.Background(), key, func() { m.refreshAsync(key) })
		return recordToResult(rec), nil
	}

	result, err := m.validator.ValidateAPIKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrInvalidCredential) {
			return nil, platformerrors.Unauthenticated("invalid or expired api key")
		}
		// Downstream unavailable (circuit open or RPC failure): fall back to
		// a stale cache entry rather than fail the request outright.
		stale, staleErr := m.cache.GetStale(ctx, key)
		if staleErr == nil && stale != nil {
			m.logger.WithContext(ctx).Warn("using stale api key cache entry after downstream failure")
			return recordToResult(stale), nil
		}
		return nil, platformerrors.DownstreamUnavailable("account", err)
	}

	_ = m.cache.Set(ctx, key, resultToRecord(result), 0)
	return result, nil
}

func (m *AuthMiddleware) refreshAsync(key string) {
	ctx := context.Background()
	result, err := m.validator.ValidateAPIKey(ctx, key)
	if err != nil {
		return
	}
	_ = m.cache.Set(ctx, key, resultToRecord(result), 0)
}

func (m *AuthMiddleware) validateSessionToken(token string) (*AuthResult, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, platformerrors.Unauthenticated("invalid or malformed token")
	}
	if claims.TokenType != "access" {
		return nil, platformerrors.Unauthenticated("invalid token type")
	}

	return &AuthResult{AccountID: claims.AccountID}, nil
}

func (m *AuthMiddleware) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	svcErr := platformerrors.GetServiceError(err)
	if svcErr == nil {
		svcErr = platformerrors.Internal("authentication service error", err)
	}
	if svcErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(svcErr.RetryAfter))
	}
	httputil.WriteErrorResponse(w, r, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, svcErr.Details)
}

func recordToResult(rec *apikeycache.Record) *AuthResult {
	return &AuthResult{
		AccountID:        rec.AccountID,
		ProjectID:        rec.ProjectID,
		RateLimitPerMin:  rec.RateLimitMinute,
		RateLimitPerHour: rec.RateLimitHour,
		DailyQuota:       rec.DailyQuota,
	}
}

func resultToRecord(r *AuthResult) apikeycache.Record {
	return apikeycache.Record{
		AccountID:       r.AccountID,
		ProjectID:       r.ProjectID,
		RateLimitMinute: r.RateLimitPerMin,
		RateLimitHour:   r.RateLimitPerHour,
		DailyQuota:      r.DailyQuota,
	}
}

type authResultKey struct{}

func withAuthResult(ctx context.Context, r *AuthResult) context.Context {
	return context.WithValue(ctx, authResultKey{}, r)
}

// AuthResultFromContext retrieves the AuthResult that AuthMiddleware placed
// on the request context, for handlers that need rate-limit/quota fields
// beyond the account/project IDs already exposed by the logging package.
func AuthResultFromContext(ctx context.Context) *AuthResult {
	r, _ := ctx.Value(authResultKey{}).(*AuthResult)
	return r
}
