// middleware/cors.go
package middleware

import (
	"net/http"

	"github.com/dalemusser/contactrelay/config"
	"github.com/go-chi/cors"
)

// CORSForEndpoints allows cross-origin requests from every configured
// endpoint domain and nothing else.
func CORSForEndpoints(cfg *config.Config) func(next http.Handler) http.Handler {
	var origins []string
	if cfg != nil {
		origins = cfg.Origins()
	}
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Accept", "Content-Type"},
		MaxAge:         3600,
	})
}
