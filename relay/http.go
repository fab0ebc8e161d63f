package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/contactrelay/contact"
	"github.com/dalemusser/contactrelay/httputil"
	"github.com/dalemusser/contactrelay/metrics"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Handler serves POST / for a Relay.
type Handler struct {
	relay   *Relay
	timeout time.Duration
	logger  *zap.Logger
}

// NewHandler wraps relay. Each request's pipeline is bounded by timeout
// (0 leaves only the client's context).
func NewHandler(relay *Relay, timeout time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{relay: relay, timeout: timeout, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	var sub contact.Submission
	if err := httputil.BindJSON(r, &sub); err != nil {
		status, outcome := http.StatusBadRequest, "bad_request"
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			status, outcome = http.StatusRequestEntityTooLarge, "body_too_large"
		}
		metrics.CountSubmission("unparsed", outcome)
		h.logger.Info("rejected request body",
			zap.String("request_id", reqID),
			zap.Int("status", status),
			zap.Error(err))
		httputil.WriteStatus(w, status, "Error while parsing form data: "+err.Error())
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	out := h.relay.Process(ctx, sub)
	h.record(reqID, sub, out)
	httputil.WriteStatus(w, out.HTTPStatus(), out.Text())
}

func (h *Handler) record(reqID string, sub contact.Submission, out Outcome) {
	endpoint := "unregistered"
	if out.Resolved() {
		endpoint = out.Endpoint.Identifier
	}

	fields := []zap.Field{
		zap.String("request_id", reqID),
		zap.String("identifier", sub.Identifier),
		zap.String("stage", string(out.Stage)),
	}

	if out.Err == nil {
		metrics.CountSubmission(endpoint, "sent")
		h.logger.Info("submission relayed", append(fields, zap.String("message_id", out.Receipt.MessageID))...)
		return
	}

	metrics.CountSubmission(endpoint, out.Err.Code)
	fields = append(fields, zap.String("code", out.Err.Code), zap.Error(out.Err.Err))
	if out.Err.HTTPStatus() >= http.StatusInternalServerError {
		h.logger.Error("submission failed", fields...)
		return
	}
	h.logger.Info("submission rejected", fields...)
}
