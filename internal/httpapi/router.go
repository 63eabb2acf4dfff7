// Package httpapi assembles the HTTP router for the job service.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"renderq/internal/httpapi/handlers"
	"renderq/internal/httpkit"
	"renderq/internal/pkg/logger"
	"renderq/internal/pkg/middleware"
)

// RouterConfig carries the cross-cutting settings of the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
}

// NewRouter builds the full middleware chain and mounts every route.
func NewRouter(cfg RouterConfig, deps handlers.Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = logger.NewDefault()
		deps.Log = log
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	handlers.New(deps).Register(r)

	r.Handle("/metrics", promhttp.Handler())

	return r
}
