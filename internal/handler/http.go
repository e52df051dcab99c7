package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/game-companion/scoreboard/internal/domain"
	"github.com/game-companion/scoreboard/internal/ledger"
	"github.com/game-companion/scoreboard/internal/metrics"
	"github.com/game-companion/scoreboard/internal/websocket"
)

// Handler provides the HTTP score gateway consumed by the game client.
type Handler struct {
	ledger *ledger.Ledger
	hub    *websocket.Hub
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(ledger *ledger.Ledger, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		hub:    hub,
		logger: logger,
	}
}

// scoreResponse is the POST /api/score success shape.
type scoreResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// errorResponse is the shape of every gateway error.
type errorResponse struct {
	Error string `json:"error"`
}

// Error message texts are part of the wire contract the game client matches
// on; casing included.
const (
	msgNoData        = "No data provided"
	msgMissingFields = "Missing user_id or score"
	msgUserNotFound  = "User not found"
	msgInternalError = "Internal server error"
)

// Router creates and configures the HTTP router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)
	r.Use(countRequests)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	r.Handle("/metrics", promhttp.Handler())

	if h.hub != nil {
		r.Get("/ws", h.HandleWebSocket)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/score", h.SaveScore)
		r.Options("/score", h.ScorePreflight)
		r.Get("/leaderboard", h.GetLeaderboard)
		r.Get("/user_stats/{userID}", h.GetUserStats)
	})

	return r
}

// corsMiddleware adds the permissive CORS headers the web game relies on.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		next.ServeHTTP(w, r)
	})
}

// countRequests tracks request counts per route pattern and status class.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
	})
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes the gateway error shape.
func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

// HealthCheck returns service health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleWebSocket upgrades connections onto the leaderboard update feed.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// ScorePreflight answers the CORS preflight for score submission.
func (h *Handler) ScorePreflight(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SaveScore handles a game-over score submission.
func (h *Handler) SaveScore(w http.ResponseWriter, r *http.Request) {
	var sub domain.ScoreSubmission
	if r.Body == nil {
		h.writeError(w, http.StatusBadRequest, msgNoData)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.writeError(w, http.StatusBadRequest, msgNoData)
		return
	}

	result, err := h.ledger.SubmitScore(r.Context(), sub)
	if err != nil {
		if domain.IsValidationError(err) {
			h.writeError(w, http.StatusBadRequest, msgMissingFields)
			return
		}
		h.logger.Error("failed to save score", "user_id", sub.UserID, "error", err)
		h.writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	h.writeJSON(w, http.StatusOK, scoreResponse{
		Status:  "success",
		Message: result.Outcome.Message(),
	})
}

// GetLeaderboard returns the ranked top-N view.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	entries, err := h.ledger.GetLeaderboard(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to get leaderboard", "error", err)
		h.writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}

	h.writeJSON(w, http.StatusOK, entries)
}

// GetUserStats returns a player's score, play count, rank and player total.
func (h *Handler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	stats, err := h.ledger.GetUserStats(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		h.logger.Error("failed to get user stats", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}
