package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/turdhunter-api/internal/domain"
	"github.com/turdhunter-api/internal/metrics"
	"github.com/turdhunter-api/internal/service"
)

// maxBodyBytes bounds score submission bodies
const maxBodyBytes = 64 << 10

// ReadinessChecker reports whether the storage backend is reachable
type ReadinessChecker interface {
	Ready() bool
}

// Handler provides HTTP handlers for the score API
type Handler struct {
	scores        *service.ScoreService
	subscriptions *service.SubscriptionService
	readiness     ReadinessChecker
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// NewHandler creates a new HTTP handler. readiness and m may be nil.
func NewHandler(
	scores *service.ScoreService,
	subscriptions *service.SubscriptionService,
	readiness ReadinessChecker,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		scores:        scores,
		subscriptions: subscriptions,
		readiness:     readiness,
		metrics:       m,
		logger:        logger,
	}
}

// ErrorResponse is the body written for failed requests
type ErrorResponse struct {
	Error string `json:"error"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)
	r.Use(h.metricsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.Root)

		r.Route("/scores", func(r chi.Router) {
			r.Post("/", h.CreateScore)
			r.Get("/", h.ListTopScores)
			r.Get("/{playerName}", h.ListPlayerScores)
		})

		r.Route("/subscription/{playerID}", func(r chi.Router) {
			r.Get("/", h.GetSubscription)
			r.Post("/", h.SetSubscription)
		})
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware counts requests by route pattern
func (h *Handler) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.ObserveRequest(r.Method, route, status)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

// writeError maps domain errors to status codes
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsValidationError(err):
		h.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	case domain.IsStorageError(err):
		h.logger.Error("storage operation failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		h.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: domain.ErrStorageUnavailable.Error()})
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyCheck reports whether the storage backend answered its last ping
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil && !h.readiness.Ready() {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Root returns the welcome message
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to Turd Hunter API!"})
}

// CreateScore handles score submission
func (h *Handler) CreateScore(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, domain.NewValidationError("body", err.Error()))
		return
	}

	score, err := domain.DecodeScoreSubmission(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	record, err := h.scores.CreateScore(r.Context(), score)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

// ListTopScores returns the fastest runs
func (h *Handler) ListTopScores(w http.ResponseWriter, r *http.Request) {
	query := domain.TopScoresQuery{
		Difficulty: r.URL.Query().Get("difficulty"),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			h.writeError(w, r, domain.NewValidationError("limit", "must be a positive integer"))
			return
		}
		query.Limit = l
	}

	scores, err := h.scores.ListTop(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, scores)
}

// ListPlayerScores returns a player's most recent runs
func (h *Handler) ListPlayerScores(w http.ResponseWriter, r *http.Request) {
	scores, err := h.scores.ListByPlayer(r.Context(), pathParam(r, "playerName"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, scores)
}

// GetSubscription returns the player's record, or {"is_subscribed": false}
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	rec, err := h.subscriptions.GetStatus(r.Context(), pathParam(r, "playerID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if rec == nil {
		h.writeJSON(w, http.StatusOK, domain.SubscriptionStatus{IsSubscribed: false})
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// SetSubscription sets the player's flag from the is_subscribed query parameter
func (h *Handler) SetSubscription(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("is_subscribed")
	if raw == "" {
		h.writeError(w, r, domain.NewValidationError("is_subscribed", "field required"))
		return
	}
	isSubscribed, err := strconv.ParseBool(raw)
	if err != nil {
		h.writeError(w, r, domain.NewValidationError("is_subscribed", "must be a boolean"))
		return
	}

	update, err := h.subscriptions.SetStatus(r.Context(), pathParam(r, "playerID"), isSubscribed)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, update)
}

// pathParam returns a decoded URL parameter. chi routes on RawPath when it is
// set and on the already decoded Path otherwise, so only the former needs unescaping.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return raw
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
