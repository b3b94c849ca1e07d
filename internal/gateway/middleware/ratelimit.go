package middleware

import (
	"net/http"
	"strconv"

	platformerrors "github.com/loganalytics/platform/internal/platform/errors"
	"github.com/loganalytics/platform/internal/platform/httputil"
	"github.com/loganalytics/platform/internal/platform/logging"
	"github.com/loganalytics/platform/internal/platform/ratelimit"
)

// RateLimitMiddleware enforces each project's dual fixed-window request
// rate limit (§4.2), reading the limits AuthMiddleware attached to the
// request context. Daily event quota is not enforced by this middleware,
// and ratelimit.Quota is not called on any request path in this module.
type RateLimitMiddleware struct {
	logger  *logging.Logger
	limiter *ratelimit.Limiter
}

func NewRateLimitMiddleware(logger *logging.Logger, limiter *ratelimit.Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{logger: logger, limiter: limiter}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := AuthResultFromContext(r.Context())
		if auth == nil || auth.ProjectID == "" {
			// Session-authenticated (dashboard) requests are not subject to the
			// per-project ingestion rate limit.
			next.ServeHTTP(w, r)
			return
		}

		result, err := m.limiter.Check(r.Context(), auth.ProjectID, auth.RateLimitPerMin, auth.RateLimitPerHour)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("rate limit check failed, failing open")
			next.ServeHTTP(w, r)
			return
		}
		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			svcErr := platformerrors.RateLimited(retryAfter)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteErrorResponse(w, r, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, svcErr.Details)
			return
		}

		next.ServeHTTP(w, r)
	})
}
