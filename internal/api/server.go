// Package api exposes the optimization engine over HTTP. It is a thin
// facade: handlers decode, call the engine or the store, and map typed
// errors onto the structured error envelope.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/glowcart/optimizer-cli/internal/engine"
	"github.com/glowcart/optimizer-cli/internal/model"
	"github.com/glowcart/optimizer-cli/internal/store"
)

// Server handles HTTP requests against one engine and its store.
type Server struct {
	engine *engine.Engine
	store  store.Store
}

// NewServer creates the API server.
func NewServer(eng *engine.Engine, st store.Store) *Server {
	return &Server{engine: eng, store: st}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/preview", s.handlePreview)
		r.Post("/apply", s.handleApply)
		r.Post("/bulk", s.handleBulk)
		r.Get("/audit", s.handleAudit)
		r.Get("/records", s.handleRecords)

		r.Route("/credits", func(r chi.Router) {
			r.Get("/balance", s.handleBalance)
			r.Post("/topup", s.handleTopUp)
			r.Get("/transactions", s.handleTransactions)
		})
	})

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: write response", zap.Error(err))
	}
}

// writeError renders err as the structured error envelope. Typed errors
// contribute their extra fields so clients can branch without parsing
// messages.
func writeError(w http.ResponseWriter, err error) {
	code := engine.ErrorCode(err)

	body := map[string]any{
		"code":    code,
		"message": err.Error(),
	}

	var credits *model.InsufficientCreditsError
	if errors.As(err, &credits) {
		body["required"] = credits.Required
		body["available"] = credits.Available
	}
	var permDenied *model.PermissionError
	if errors.As(err, &permDenied) {
		body["needs_reconnection"] = permDenied.NeedsReconnection
	}

	writeJSON(w, statusFor(code), map[string]any{"error": body})
}

func statusFor(code string) int {
	switch code {
	case model.CodeInsufficientCredits:
		return http.StatusPaymentRequired
	case model.CodeInsufficientPermissions:
		return http.StatusForbidden
	case model.CodeAuthExpired:
		return http.StatusUnauthorized
	case model.CodeNotFound:
		return http.StatusNotFound
	case model.CodeValidation:
		return http.StatusBadRequest
	case model.CodeCatalogUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
