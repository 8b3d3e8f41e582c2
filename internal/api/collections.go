// internal/api/collections.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github-org-mirror/internal/store"
)

const (
	defaultPageLimit = 25
	maxPageLimit     = 100
)

type documentResponse struct {
	ID         int64           `json:"id"`
	ExternalID string          `json:"externalId"`
	ParentID   int64           `json:"parentId"`
	Doc        json.RawMessage `json:"doc"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type documentsResponse struct {
	Data         []documentResponse `json:"data"`
	Fields       map[string]string  `json:"fields"`
	Page         int                `json:"page"`
	Limit        int                `json:"limit"`
	TotalRecords int                `json:"totalRecords"`
	TotalPages   int                `json:"totalPages"`
}

// listCollections returns the names of the mirrored collections.
// GET /v1/collections
func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{"collections": store.Collections()})
}

// listDocuments returns one page of a user's documents in a collection, together with
// the fields found in that page.
// GET /v1/collections/{name}?userId=N&page=N&limit=N
func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	c, err := store.ParseCollection(chi.URLParam(r, "name"))
	if err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}

	q := r.URL.Query()
	if q.Get("userId") == "" {
		respondWithError(w, http.StatusBadRequest, "'userId' is required")
		return
	}
	userID, ok := parseUserID(w, q.Get("userId"))
	if !ok {
		return
	}
	page, err := intParam(q.Get("page"), 1)
	if err != nil || page < 1 {
		respondWithError(w, http.StatusBadRequest, "Invalid 'page' parameter. Must be a positive integer.")
		return
	}
	limit, err := intParam(q.Get("limit"), defaultPageLimit)
	if err != nil || limit < 1 || limit > maxPageLimit {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 100.")
		return
	}

	if _, err := h.store.GetUser(r.Context(), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("Failed to get user", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	filter := store.Filter{UserID: userID}
	total, err := h.store.Count(r.Context(), c, filter)
	if err != nil {
		h.logger.Error("Failed to count documents", "collection", c, "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	records, err := h.store.Find(r.Context(), c, filter, store.Window{Offset: (page - 1) * limit, Limit: limit})
	if err != nil {
		h.logger.Error("Failed to list documents", "collection", c, "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	data := make([]documentResponse, 0, len(records))
	docs := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		data = append(data, documentResponse{
			ID:         rec.ID,
			ExternalID: rec.Key.ExternalID,
			ParentID:   rec.Key.ParentID,
			Doc:        rec.Doc,
			CreatedAt:  rec.CreatedAt,
			UpdatedAt:  rec.UpdatedAt,
		})
		docs = append(docs, rec.Doc)
	}

	respondWithJSON(w, http.StatusOK, documentsResponse{
		Data:         data,
		Fields:       InferFields(docs, h.denylist),
		Page:         page,
		Limit:        limit,
		TotalRecords: total,
		TotalPages:   (total + limit - 1) / limit,
	})
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
