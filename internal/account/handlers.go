package account

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
)

// Handlers exposes the account service's REST surface (§6.1).
type Handlers struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandlers(svc *Service, logger *logging.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

// Register wires the account service's routes onto r.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/accounts/register", h.register()).Methods("POST")
	r.HandleFunc("/accounts/login", h.login()).Methods("POST")
	r.HandleFunc("/projects", h.createProject()).Methods("POST")
	r.HandleFunc("/projects", h.listProjects()).Methods("GET")
	r.HandleFunc("/projects/{projectId}/api-keys", h.createAPIKey()).Methods("POST")
	r.HandleFunc("/projects/{projectId}/api-keys", h.listAPIKeys()).Methods("GET")
	r.HandleFunc("/api-keys/{keyId}", h.revokeAPIKey()).Methods("DELETE")
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountResponse struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Plan   string `json:"plan"`
	Status string `json:"status"`
}

// respondServiceError writes err as the structured response its
// ServiceError carries, falling back to 500 for anything else.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	svcErr := platformerrors.GetServiceError(err)
	if svcErr == nil {
		svcErr = platformerrors.Internal("internal server error", err)
	}
	httputil.WriteErrorResponse(w, r, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, svcErr.Details)
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{ID: a.ID.String(), Email: a.Email, Plan: string(a.Plan), Status: string(a.Status)}
}

func (h *Handlers) register() http.HandlerFunc {
	return httputil.HandleJSON(h.logger, func(ctx context.Context, req *registerRequest) (accountResponse, error) {
		account, err := h.svc.Register(ctx, req.Email, req.Password)
		if err != nil {
			return accountResponse{}, err
		}
		return toAccountResponse(account), nil
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string           `json:"token"`
	Account accountResponse  `json:"account"`
}

func (h *Handlers) login() http.HandlerFunc {
	return httputil.HandleJSON(h.logger, func(ctx context.Context, req *loginRequest) (loginResponse, error) {
		token, account, err := h.svc.Login(ctx, req.Email, req.Password)
		if err != nil {
			return loginResponse{}, err
		}
		return loginResponse{Token: token, Account: toAccountResponse(account)}, nil
	})
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Environment string `json:"environment"`
}

type projectResponse struct {
	ID               string `json:"id"`
	AccountID        string `json:"account_id"`
	Name             string `json:"name"`
	Environment      string `json:"environment"`
	RateLimitPerMin  int    `json:"rate_limit_per_minute"`
	RateLimitPerHour int    `json:"rate_limit_per_hour"`
	DailyQuota       int64  `json:"daily_quota"`
	RetentionDays    int    `json:"retention_days"`
}

func toProjectResponse(p *domain.Project) projectResponse {
	return projectResponse{
		ID:               p.ID.String(),
		AccountID:        p.AccountID.String(),
		Name:             p.Name,
		Environment:      string(p.Environment),
		RateLimitPerMin:  p.RateLimitPerMin,
		RateLimitPerHour: p.RateLimitPerHour,
		DailyQuota:       p.DailyQuota,
		RetentionDays:    p.RetentionDays,
	}
}

func (h *Handlers) createProject() http.HandlerFunc {
	return httputil.HandleJSONWithAccountAuth(h.logger, func(ctx context.Context, accountID string, req *createProjectRequest) (projectResponse, error) {
		acctUUID, err := uuid.Parse(accountID)
		if err != nil {
			return projectResponse{}, platformerrors.Unauthenticated("invalid account context")
		}
		project, err := h.svc.CreateProject(ctx, acctUUID, req.Name, domain.Environment(req.Environment))
		if err != nil {
			return projectResponse{}, err
		}
		return toProjectResponse(project), nil
	})
}

func (h *Handlers) listProjects() http.HandlerFunc {
	return httputil.HandleNoBodyWithAccountAuth(h.logger, func(ctx context.Context, accountID string) ([]projectResponse, error) {
		acctUUID, err := uuid.Parse(accountID)
		if err != nil {
			return nil, platformerrors.Unauthenticated("invalid account context")
		}
		projects, err := h.svc.store.ListProjectsByAccount(ctx, acctUUID)
		if err != nil {
			return nil, platformerrors.Internal("list projects", err)
		}
		resp := make([]projectResponse, 0, len(projects))
		for i := range projects {
			resp = append(resp, toProjectResponse(&projects[i]))
		}
		return resp, nil
	})
}

type createAPIKeyRequest struct {
	Name string `json:"name"`
}

type apiKeyResponse struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	Name      string     `json:"name"`
	Prefix    string     `json:"prefix"`
	Revoked   bool       `json:"revoked"`
	CreatedAt time.Time  `json:"created_at"`
	Secret    string     `json:"secret,omitempty"`
}

func (h *Handlers) createAPIKey() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httputil.RequireAccountID(w, r); !ok {
			return
		}
		projectID, err := uuid.Parse(mux.Vars(r)["projectId"])
		if err != nil {
			httputil.BadRequest(w, "invalid project id")
			return
		}
		var req createAPIKeyRequest
		if !httputil.DecodeJSON(w, r, &req) {
			return
		}
		issued, err := h.svc.CreateAPIKey(r.Context(), projectID, req.Name)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		httputil.RespondCreated(w, apiKeyResponse{
			ID:        issued.Key.ID.String(),
			ProjectID: issued.Key.ProjectID.String(),
			Name:      issued.Key.Name,
			Prefix:    issued.Key.Prefix,
			Revoked:   issued.Key.Revoked,
			CreatedAt: issued.Key.CreatedAt,
			Secret:    issued.Secret,
		})
	}
}

func (h *Handlers) listAPIKeys() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httputil.RequireAccountID(w, r); !ok {
			return
		}
		projectID, err := uuid.Parse(mux.Vars(r)["projectId"])
		if err != nil {
			httputil.BadRequest(w, "invalid project id")
			return
		}
		keys, err := h.svc.store.ListAPIKeysByProject(r.Context(), projectID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		resp := make([]apiKeyResponse, 0, len(keys))
		for _, k := range keys {
			resp = append(resp, apiKeyResponse{
				ID: k.ID.String(), ProjectID: k.ProjectID.String(), Name: k.Name,
				Prefix: k.Prefix, Revoked: k.Revoked, CreatedAt: k.CreatedAt,
			})
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

func (h *Handlers) revokeAPIKey() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := httputil.RequireAccountID(w, r); !ok {
			return
		}
		keyID, err := uuid.Parse(mux.Vars(r)["keyId"])
		if err != nil {
			httputil.BadRequest(w, "invalid key id")
			return
		}
		if err := h.svc.RevokeAPIKey(r.Context(), keyID); err != nil {
			respondServiceError(w, r, err)
			return
		}
		httputil.RespondNoContent(w)
	}
}
