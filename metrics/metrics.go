// Package metrics exposes Prometheus collectors for HTTP traffic and for
// the relay pipeline.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// reqDuration is labelled by route pattern, method and status.
var reqDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests.",
		Buckets: []float64{0.01, 0.1, 0.3, 1.2, 5},
	},
	[]string{"path", "method", "status"},
)

// submissions counts relay outcomes per endpoint identifier. Callers label
// unknown identifiers "unregistered".
var submissions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "contactrelay_submissions_total",
		Help: "Contact form submissions by endpoint and outcome.",
	},
	[]string{"endpoint", "outcome"},
)

var probeDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "contactrelay_probe_duration_seconds",
		Help:    "Duration of email deliverability probes.",
		Buckets: []float64{0.05, 0.25, 1, 3, 10, 30},
	},
	[]string{"outcome"},
)

var mailSendDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "contactrelay_mail_send_duration_seconds",
		Help:    "Duration of outbound SMTP deliveries.",
		Buckets: []float64{0.05, 0.25, 1, 3, 10, 30},
	},
	[]string{"outcome"},
)

// CountSubmission records one processed submission.
func CountSubmission(endpoint, outcome string) {
	submissions.WithLabelValues(endpoint, outcome).Inc()
}

// ObserveProbe records one deliverability probe. outcome is one of
// "conclusive", "partial" or "error".
func ObserveProbe(outcome string, d time.Duration) {
	probeDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveMailSend records one outbound delivery attempt.
func ObserveMailSend(ok bool, d time.Duration) {
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	mailSendDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RegisterDefault registers the Go runtime and process collectors, the HTTP
// request histogram and the relay collectors. Call it once at startup.
func RegisterDefault(logger *zap.Logger) {
	// Go runtime metrics
	mustRegister(logger, "Go collector", collectors.NewGoCollector())

	// Process metrics
	mustRegister(logger, "process collector", collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// HTTP request histogram
	mustRegister(logger, "HTTP request histogram", reqDuration)

	mustRegister(logger, "submission counter", submissions)
	mustRegister(logger, "probe histogram", probeDuration)
	mustRegister(logger, "mail send histogram", mailSendDuration)
}

// mustRegister registers c, tolerating a collector that is already
// registered. Any other failure is fatal.
func mustRegister(logger *zap.Logger, name string, c prometheus.Collector) {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return
		}
		if logger != nil {
			logger.Fatal("failed to register "+name, zap.Error(err))
		}
		panic("metrics: failed to register " + name + ": " + err.Error())
	}
}

// maxPathLabelLength caps the path label.
const maxPathLabelLength = 256

// HTTPMetrics records request duration into http_request_duration_seconds,
// labelled by chi route pattern rather than raw path. Place it after the
// recoverer so panics are recorded as 500.
func HTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		protoMajor := r.ProtoMajor
		if protoMajor < 1 {
			protoMajor = 1
		}
		ww := middleware.NewWrapResponseWriter(w, protoMajor)

		next.ServeHTTP(ww, r)

		statusCode := ww.Status()
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		if statusCode < 100 || statusCode > 599 {
			statusCode = http.StatusInternalServerError
		}

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		if len(path) > maxPathLabelLength {
			path = truncateUTF8(path, maxPathLabelLength-3) + "..."
		}

		reqDuration.WithLabelValues(path, r.Method, strconv.Itoa(statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// truncateUTF8 cuts s to at most maxBytes without splitting a rune.
func truncateUTF8(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
