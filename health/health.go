// health/health.go
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dalemusser/contactrelay/httputil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Check reports whether one dependency is usable. ctx derives from the
// incoming request.
type Check func(ctx context.Context) error

// Response is the /health body.
type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DefaultTimeout bounds each check when Handler is given a zero timeout.
const DefaultTimeout = 5 * time.Second

// Handler runs every check concurrently, each bounded by timeout, and
// answers 200 {"status":"ok"} or 503 {"status":"error"} with per-check
// results. With no checks it is a plain liveness probe.
func Handler(checks map[string]Check, timeout time.Duration, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(checks) == 0 {
			httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok"})
			return
		}

		var (
			mu      sync.Mutex
			wg      sync.WaitGroup
			results = make(map[string]string, len(checks))
			failed  bool
		)
		for name, check := range checks {
			wg.Add(1)
			go func(name string, check Check) {
				defer wg.Done()
				res := "ok"
				if err := run(r.Context(), check, timeout); err != nil {
					res = "error: " + err.Error()
					logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
				}
				mu.Lock()
				defer mu.Unlock()
				results[name] = res
				if res != "ok" {
					failed = true
				}
			}(name, check)
		}
		wg.Wait()

		if failed {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, Response{Status: "error", Checks: results})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok", Checks: results})
	})
}

func run(ctx context.Context, check Check, timeout time.Duration) error {
	if check == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return check(ctx)
}

// Mount attaches GET /health to r.
func Mount(r chi.Router, checks map[string]Check, timeout time.Duration, logger *zap.Logger) {
	r.Method(http.MethodGet, "/health", Handler(checks, timeout, logger))
}
