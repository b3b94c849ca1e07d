// Package middleware provides the gateway's HTTP middleware chain: recovery,
// logging, CORS, body limiting, rate limiting, and authentication (§4.4,
// §4.5).
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	platformerrors "github.com/loganalytics/platform/internal/platform/errors"
	"github.com/loganalytics/platform/internal/platform/httputil"
	"github.com/loganalytics/platform/internal/platform/logging"
)

// RecoveryMiddleware recovers from panics in downstream handlers and
// responds with a 500 instead of letting the connection die.
type RecoveryMiddleware struct {
	logger *logging.Logger
}

func NewRecoveryMiddleware(logger *logging.Logger) *RecoveryMiddleware {
	return &RecoveryMiddleware{logger: logger}
}

func (m *RecoveryMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				stack := debug.Stack()
				m.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
					"panic":       fmt.Sprintf("%v", err),
					"stack":       string(stack),
					"path":        r.URL.Path,
					"method":      r.Method,
					"remote_addr": r.RemoteAddr,
				}).Error("panic recovered")

				svcErr := platformerrors.Internal("internal server error", fmt.Errorf("%v", err))
				httputil.WriteErrorResponse(w, r, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, svcErr.Details)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
