package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angeloszaimis/notify-router/internal/circuitbreaker"
	"github.com/angeloszaimis/notify-router/internal/healthcheck"
	"github.com/angeloszaimis/notify-router/internal/metrics"
	"github.com/angeloszaimis/notify-router/internal/notification"
	"github.com/angeloszaimis/notify-router/internal/router"
)

const maxBodyBytes = 1 << 20

type NotificationHandler struct {
	logger           *slog.Logger
	router           *router.Router
	metricsCollector *metrics.Collector
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewNotificationHandler(logger *slog.Logger, rt *router.Router, collector *metrics.Collector) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{
		logger:           logger.With(slog.String("component", "handler")),
		router:           rt,
		metricsCollector: collector,
	}
}

// Routes wires the operational endpoints onto a new mux.
func (h *NotificationHandler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /dispatch", h.Dispatch)
	mux.HandleFunc("GET /breakers", h.Breakers)
	mux.HandleFunc("POST /breakers/{name}/reset", h.ResetBreaker)
	mux.HandleFunc("GET /healthz", healthcheck.Handler(h.router.Breakers()))
	if h.metricsCollector != nil {
		mux.HandleFunc("GET /metrics", h.metricsCollector.Handler())
	}

	return h.logRequests(mux)
}

// Dispatch decodes a notification request and routes it. The body of the
// response is always the dispatch result; the status code mirrors its error.
func (h *NotificationHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req notification.Request

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result := h.router.Dispatch(r.Context(), req)
	writeJSON(w, statusFor(result), result)
}

func (h *NotificationHandler) Breakers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.router.Breakers().Stats())
}

func (h *NotificationHandler) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := h.router.ResetBreaker(name); err != nil {
		if errors.Is(err, router.ErrUnknownChannel) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	cb, _ := h.router.Breaker(name)
	writeJSON(w, http.StatusOK, circuitbreaker.Stat{State: cb.State(), Failures: cb.Failures()})
}

func (h *NotificationHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		h.logger.Info("Handled request",
			slog.String("from", extractClientIP(r)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", wrapped.statusCode),
			slog.Duration("duration", time.Since(start)))
	})
}

func statusFor(result notification.Result) int {
	switch {
	case result.Success:
		return http.StatusOK
	case errors.Is(result.Err, notification.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(result.Err, notification.ErrNoChannel):
		return http.StatusUnprocessableEntity
	case errors.Is(result.Err, notification.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
