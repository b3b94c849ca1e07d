package middleware

import (
	"net/http"

	"github.com/loganalytics/platform/internal/platform/logging"
)

// Identity propagation headers. AuthMiddleware resolves these onto the
// gateway's request context, but a reverse-proxied request to the
// ingestion or query service arrives over a fresh TCP connection with no
// context to carry — so the gateway must re-express them as headers, and
// the downstream service must trust and re-parse them back into its own
// context the same way AuthMiddleware does.
const (
	HeaderAccountID = "X-Internal-Account-ID"
	HeaderProjectID = "X-Internal-Project-ID"
)

// ForwardIdentityHeaders copies the account/project IDs AuthMiddleware
// placed on r's context onto internal headers, for a Director to call
// before a reverse-proxied request leaves the gateway process. Downstream
// services must only trust these headers when the request arrives from
// the gateway (§4.4); TrustIdentityHeaders is meant to run behind that
// network boundary, never on a publicly reachable listener.
func ForwardIdentityHeaders(r *http.Request) {
	if accountID := logging.GetAccountID(r.Context()); accountID != "" {
		r.Header.Set(HeaderAccountID, accountID)
	} else {
		r.Header.Del(HeaderAccountID)
	}
	if projectID := logging.GetProjectID(r.Context()); projectID != "" {
		r.Header.Set(HeaderProjectID, projectID)
	} else {
		r.Header.Del(HeaderProjectID)
	}
}

// TrustIdentityHeaders reads the identity headers the gateway forwarded
// and restores them onto the request context exactly as AuthMiddleware
// would have, so downstream httputil.RequireAccountID/RequireProjectID
// calls work unchanged whether a handler runs behind the gateway proxy or
// (in tests) is hit directly with a context already populated.
func TrustIdentityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if accountID := r.Header.Get(HeaderAccountID); accountID != "" {
			ctx = logging.WithAccountID(ctx, accountID)
		}
		if projectID := r.Header.Get(HeaderProjectID); projectID != "" {
			ctx = logging.WithProjectID(ctx, projectID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
