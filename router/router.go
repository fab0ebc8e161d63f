// router/router.go
package router

import (
	"github.com/dalemusser/contactrelay/config"
	"github.com/dalemusser/contactrelay/logging"
	"github.com/dalemusser/contactrelay/metrics"
	"github.com/dalemusser/contactrelay/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// New creates a chi.Router with the standard middleware stack:
//   - RequestID
//   - RealIP
//   - Recoverer (panic → 500)
//   - CORS for the configured endpoint domains
//   - body size limit (server.max_payload)
//   - metrics HTTP middleware
//   - request logging
//   - NotFound / MethodNotAllowed JSON handlers
//
// Routes are mounted by the caller.
func New(cfg *config.Config, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.Recoverer(logger))
	r.Use(middleware.CORSForEndpoints(cfg))
	r.Use(middleware.LimitBodySize(cfg.Server.MaxPayload))
	r.Use(metrics.HTTPMetrics)
	r.Use(logging.RequestLogger(logger))

	r.NotFound(middleware.NotFoundHandler(logger))
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler(logger))

	return r
}
