package middleware

import (
	"net/http"

	"github.com/dalemusser/contactrelay/httputil"
	"go.uber.org/zap"
)

// NotFoundHandler logs a 404 and writes a JSON status body. Pass it to
// chi.Router.NotFound.
func NotFoundHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRejected(logger, "not_found", r)
		httputil.WriteStatus(w, http.StatusNotFound, "The requested resource was not found")
	}
}

// MethodNotAllowedHandler logs a 405 and writes a JSON status body. Pass
// it to chi.Router.MethodNotAllowed.
func MethodNotAllowedHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logRejected(logger, "method_not_allowed", r)
		httputil.WriteStatus(w, http.StatusMethodNotAllowed, "The requested HTTP method is not allowed for this resource")
	}
}

func logRejected(logger *zap.Logger, msg string, r *http.Request) {
	if logger == nil {
		return
	}
	logger.Info(msg,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_ip", r.RemoteAddr),
	)
}
