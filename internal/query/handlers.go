package query

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/loganalytics/platform/internal/domain"
	platformerrors "github.com/loganalytics/platform/internal/platform/errors"
	"github.com/loganalytics/platform/internal/platform/httputil"
	"github.com/loganalytics/platform/internal/platform/logging"
	"github.com/loganalytics/platform/internal/platform/sqlstore"
)

// Handlers exposes the query service's REST surface (§6.1): log lookup,
// search, aggregated metrics, and the cache-backed error/usage reads.
type Handlers struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandlers(svc *Service, logger *logging.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

// Register wires the query routes onto r. §6.1 lists GET /logs/{log_id},
// GET /metrics/aggregated, and GET /errors/list explicitly; GET /logs and
// GET /logs/search expose §4.12's QueryLogs/SearchLogs RPCs over REST too,
// since §6.1's preamble says the gateway "translates REST" for every
// query operation, not just the three spelled out there.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/logs", h.queryLogs()).Methods("GET")
	r.HandleFunc("/logs/search", h.searchLogs()).Methods("GET")
	r.HandleFunc("/logs/{log_id}", h.getLog()).Methods("GET")
	r.HandleFunc("/metrics/aggregated", h.getAggregatedMetrics()).Methods("GET")
	r.HandleFunc("/errors/list", h.getErrorList()).Methods("GET")
	r.HandleFunc("/errors/top", h.getTopErrors()).Methods("GET")
	r.HandleFunc("/metrics/error-rate", h.getErrorRate()).Methods("GET")
	r.HandleFunc("/metrics/log-volume", h.getLogVolume()).Methods("GET")
	r.HandleFunc("/metrics/usage", h.getUsageStats()).Methods("GET")
}

// authorizeRequestProject resolves the project_id query parameter and
// confirms the caller may see it: an API-key-authenticated caller must
// match it exactly, a session-authenticated caller must own it (§4.4,
// §4.12).
func (h *Handlers) authorizeRequestProject(ctx context.Context, r *http.Request) (uuid.UUID, error) {
	raw := r.URL.Query().Get("project_id")
	if raw == "" {
		return uuid.Nil, platformerrors.InvalidInput("project_id", "required")
	}
	projectID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, platformerrors.InvalidInput("project_id", "must be a UUID")
	}

	if callerProjectID := logging.GetProjectID(ctx); callerProjectID != "" {
		if callerProjectID != projectID.String() {
			return uuid.Nil, platformerrors.Forbidden("api key does not grant access to this project")
		}
		return projectID, nil
	}

	accountID, err := uuid.Parse(logging.GetAccountID(ctx))
	if err != nil {
		return uuid.Nil, platformerrors.Unauthenticated("missing account identity")
	}
	if err := h.svc.AuthorizeProject(ctx, accountID, projectID); err != nil {
		return uuid.Nil, err
	}
	return projectID, nil
}

// resolveRange reads either period=… or periodFrom=…&periodTo=… off r,
// matching the alternative the query strings in §6.1 offer.
func resolveRange(r *http.Request) (period string, from, to time.Time, err error) {
	if p := r.URL.Query().Get("period"); p != "" {
		return p, time.Time{}, time.Time{}, nil
	}
	fromStr := r.URL.Query().Get("periodFrom")
	toStr := r.URL.Query().Get("periodTo")
	if fromStr == "" || toStr == "" {
		return "", time.Time{}, time.Time{}, platformerrors.InvalidInput("period", "period or periodFrom/periodTo is required")
	}
	from, err = time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return "", time.Time{}, time.Time{}, platformerrors.InvalidInput("periodFrom", "must be RFC3339")
	}
	to, err = time.Parse(time.RFC3339, toStr)
	if err != nil {
		return "", time.Time{}, time.Time{}, platformerrors.InvalidInput("periodTo", "must be RFC3339")
	}
	return "", from, to, nil
}

type logsResponse struct {
	Logs       []domain.LogEvent `json:"logs"`
	TotalCount int64             `json:"total_count"`
	HasMore    bool              `json:"has_more"`
}

func (h *Handlers) queryLogs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		projectID, err := h.authorizeRequestProject(ctx, r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		period, from, to, err := resolveRange(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if period != "" {
			from, to, _, err = resolvePeriod(period, time.Now())
			if err != nil {
				h.writeError(w, r, err)
				return
			}
		}
		offset, limit := httputil.PaginationParams(r, 50, 500)

		filter := sqlstoreLogFilter(projectID, from, to, r)
		logs, total, err := h.svc.QueryLogs(ctx, filter, limit, offset)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, logsResponse{Logs: logs, TotalCount: total, HasMore: int64(offset+len(logs)) < total})
	}
}

func (h *Handlers) searchLogs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		projectID, err := h.authorizeRequestProject(ctx, r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		period, from, to, err := resolveRange(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if period != "" {
			from, to, _, err = resolvePeriod(period, time.Now())
			if err != nil {
				h.writeError(w, r, err)
				return
			}
		}
		queryString := r.URL.Query().Get("q")
		if queryString == "" {
			h.writeError(w, r, platformerrors.InvalidInput("q", "required"))
			return
		}
		offset, limit := httputil.PaginationParams(r, 50, 500)

		logs, total, err := h.svc.SearchLogs(ctx, projectID, queryString, from, to, limit, offset)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, logsResponse{Logs: logs, TotalCount: total, HasMore: int64(offset+len(logs)) < total})
	}
}

func (h *Handlers) getLog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		projectID, err := h.authorizeRequestProject(ctx, r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		logID, err := uuid.Parse(mux.Vars(r)["log_id"])
		if err != nil {
			h.writeError(w, r, platformerrors.InvalidInput("log_id", "must be a UUID"))
			return
		}
		event, err := h.svc.GetLog(ctx, logID, projectID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, event)
	}
}

func (h *Handlers) getErrorList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		projectID, err := h.authorizeRequestProject(ctx, r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		period, from, to, err := resolveRange(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if period != "" {
			from, to, _, err = resolvePeriod(period, time.Now())
			if err != nil {
				h.writeError(w, r, err)
				return
			}
		}
		offset, limit := httputil.PaginationParams(r, 50, 500)

		logs, total, err := h.svc.GetErrorList(ctx, projectID, from, to, limit, offset)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, logsResponse{Logs: logs, TotalCount: total, HasMore: int64(offset+len(logs)) < total})
	}
}

func (h *Handlers) getAggregatedMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		projectID, err := h.authorizeRequestProject(ctx, r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		kindStr := r.URL.Query().Get("type")
		if kindStr == "" {
			h.writeError(w, r, platformerrors.InvalidInput("type", "required"))
			return
		}
		kind := domain.MetricKind(kindStr)

		period, from, to, err := resolveRange(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		endpointPath := r.URL.Query().Get("endpointPath")

		result, err := h.svc.GetAggregatedMetrics(ctx, projectID, kind, period, from, to, endpointPath)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, result)
	}
}

func (h *Handlers) getTopErrors() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		projectID, err := h.authorizeRequestProject(ctx, r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		snap, err := h.svc.GetTopErrors(ctx, projectID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, snap)
	}
}

func (h *Handlers) getErrorRate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		projectID, err := h.authorizeRequestProject(ctx, r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		snap, err := h.svc.GetErrorRate(ctx, projectID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, snap)
	}
}

func (h *Handlers) getLogVolume() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		projectID, err := h.authorizeRequestProject(ctx, r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		snap, err := h.svc.GetLogVolume(ctx, projectID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, snap)
	}
}

func (h *Handlers) getUsageStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		projectID, err := h.authorizeRequestProject(ctx, r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		snap, err := h.svc.GetUsageStats(ctx, projectID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, snap)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WithContext(r.Context()).WithError(err).Error("query handler failed")
	if svcErr := platformerrors.GetServiceError(err); svcErr != nil {
		httputil.WriteErrorResponse(w, r, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, svcErr.Details)
		return
	}
	httputil.InternalError(w, "internal server error")
}

func sqlstoreLogFilter(projectID uuid.UUID, from, to time.Time, r *http.Request) sqlstore.LogFilter {
	return sqlstore.LogFilter{
		ProjectID:   projectID,
		From:        from,
		To:          to,
		Level:       domain.Level(r.URL.Query().Get("level")),
		LogType:     domain.LogType(r.URL.Query().Get("logType")),
		Fingerprint: r.URL.Query().Get("fingerprint"),
	}
}
