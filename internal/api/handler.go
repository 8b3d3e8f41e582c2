// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github-org-mirror/internal/status"
	"github-org-mirror/internal/store"
)

// SyncController starts background syncs and keeps them away from a user while the
// user is being changed.
type SyncController interface {
	Trigger(ctx context.Context, userID int64) error
	Exclusive(userID int64, fn func() error) error
}

// StatusReporter lists the sync status of every user.
type StatusReporter interface {
	GetStatus(ctx context.Context) ([]status.UserStatus, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	store    store.Store
	syncer   SyncController
	reporter StatusReporter
	logger   *slog.Logger
	denylist []string
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(st store.Store, syncer SyncController, reporter StatusReporter, logger *slog.Logger) http.Handler {
	h := &Handler{
		store:    st,
		syncer:   syncer,
		reporter: reporter,
		logger:   logger,
		denylist: FieldDenylist,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.listUsers)
			r.Post("/", h.createUser)
			r.Get("/sync-status", h.getSyncStatus)
			r.Delete("/{userID}", h.deleteUser)
			r.Post("/{userID}/sync", h.triggerSync)
		})
		r.Get("/collections", h.listCollections)
		r.Get("/collections/{name}", h.listDocuments)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
