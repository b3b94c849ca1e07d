package main

import (
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	gatewaymiddleware "github.com/loganalytics/platform/internal/gateway/middleware"
	"github.com/loganalytics/platform/internal/platform/config"
	"github.com/loganalytics/platform/internal/platform/logging"
)

// apiPrefix is the public prefix every route in spec.md §6.1 is served
// under. Downstream services register their routes unprefixed (they are
// only ever reached through the gateway), so the prefix is stripped
// before a request is forwarded.
const apiPrefix = "/api/v1"

// registerProxyRoutes wires the gateway's public REST surface (spec.md
// §6.1) onto reverse proxies fronting the account, ingestion, and query
// services. Each downstream service owns its own route parsing and
// business logic; the gateway only authenticates, rate-limits, strips
// the API prefix, and forwards.
func registerProxyRoutes(router *mux.Router, cfg *config.Config, logger *logging.Logger) {
	api := router.PathPrefix(apiPrefix).Subrouter()

	accountProxy := newReverseProxy(cfg.AccountHTTPAddr, logger)
	ingestionProxy := newReverseProxy(cfg.IngestionHTTPAddr, logger)
	queryProxy := newReverseProxy(cfg.QueryHTTPAddr, logger)

	api.PathPrefix("/accounts").Handler(accountProxy)
	api.PathPrefix("/projects").Handler(accountProxy)
	api.PathPrefix("/api-keys").Handler(accountProxy)
	api.PathPrefix("/dashboard").Handler(accountProxy)

	api.PathPrefix("/ingest").Handler(ingestionProxy)
	api.PathPrefix("/queue").Handler(ingestionProxy)

	api.PathPrefix("/logs").Handler(queryProxy)
	api.PathPrefix("/metrics").Handler(queryProxy)
	api.PathPrefix("/errors").Handler(queryProxy)
	api.PathPrefix("/notifications").Handler(queryProxy)
}

func newReverseProxy(addr string, logger *logging.Logger) *httputil.ReverseProxy {
	target := &url.URL{Scheme: "http", Host: addr}
	proxy := httputil.NewSingleHostReverseProxy(target)

	baseDirector := proxy.Director
	proxy.Director = func(r *http.Request) {
		baseDirector(r)
		r.URL.Path = strings.TrimPrefix(r.URL.Path, apiPrefix)
		if r.URL.Path == "" {
			r.URL.Path = "/"
		}
		gatewaymiddleware.ForwardIdentityHeaders(r)
	}

	proxy.ErrorLog = log.New(logger.Writer(), "", 0)
	return proxy
}
