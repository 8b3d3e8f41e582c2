// internal/api/users.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	custom_errors "github-org-mirror/internal/errors"
	"github-org-mirror/internal/model"
	"github-org-mirror/internal/store"
)

type createUserRequest struct {
	Login       string `json:"login"`
	AccessToken string `json:"accessToken"`
}

// listUsers returns every registered user. Tokens never leave the service.
// GET /v1/users
func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("Failed to list users", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, users)
}

// createUser registers a user with an already obtained GitHub token.
// POST /v1/users
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.AccessToken == "" {
		respondWithError(w, http.StatusBadRequest, "Both 'login' and 'accessToken' are required")
		return
	}

	user := model.User{Login: req.Login, AccessToken: req.AccessToken}
	if err := h.store.CreateUser(r.Context(), &user); err != nil {
		h.logger.Error("Failed to create user", "login", req.Login, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.logger.Info("User registered", "user_id", user.ID, "login", user.Login)
	respondWithJSON(w, http.StatusCreated, user)
}

// deleteUser removes a user together with every mirrored document.
// DELETE /v1/users/{userID}
func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, chi.URLParam(r, "userID"))
	if !ok {
		return
	}

	// The scheduler's slot is held across the check and the delete so no sync of this
	// process starts in between; the stored flag covers syncs of other processes.
	err := h.syncer.Exclusive(userID, func() error {
		user, err := h.store.GetUser(r.Context(), userID)
		if err != nil {
			return err
		}
		if user.SyncInProgress {
			return custom_errors.ErrSyncInProgress
		}
		return h.store.DeleteUser(r.Context(), userID)
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	case errors.Is(err, custom_errors.ErrSyncInProgress):
		respondWithError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("Failed to delete user", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.logger.Info("User deleted", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

// triggerSync starts a sync for the user in the background.
// POST /v1/users/{userID}/sync
func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, chi.URLParam(r, "userID"))
	if !ok {
		return
	}

	err := h.syncer.Trigger(r.Context(), userID)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "sync started"})
	case errors.Is(err, custom_errors.ErrUserNotFound):
		respondWithError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, custom_errors.ErrSyncInProgress):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, custom_errors.ErrSchedulerNotRunning):
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("Failed to trigger sync", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// getSyncStatus lists which users are syncing and when each last synced.
// GET /v1/users/sync-status
func (h *Handler) getSyncStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.reporter.GetStatus(r.Context())
	if err != nil {
		h.logger.Error("Failed to get sync status", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, statuses)
}

func parseUserID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return 0, false
	}
	return id, true
}
