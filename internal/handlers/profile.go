package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"matchbook/internal/contextutil"
	"matchbook/internal/profile"
	"matchbook/internal/recordstore"
	"matchbook/internal/storage"
)

// ProfileHandler handles HTTP requests for profile CRUD and search.
type ProfileHandler struct {
	store recordstore.Store
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(store recordstore.Store) *ProfileHandler {
	return &ProfileHandler{store: store}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SaveResponse represents the response to a save request.
type SaveResponse struct {
	ID string `json:"id"`
	// Degraded lists backends the save could not reach; the profile is
	// durable but may be temporarily unsearchable or unarchived.
	Degraded []string `json:"degraded,omitempty"`
}

// SearchRequest represents the search request payload.
type SearchRequest struct {
	Query  string            `json:"query"`
	Facets map[string]string `json:"facets,omitempty"`
	Limit  int               `json:"limit,omitempty"`
}

// ListResponse wraps a page of profiles.
type ListResponse struct {
	Profiles []*profile.Profile `json:"profiles"`
}

// Save handles POST /api/profiles and PUT /api/profiles/{id}.
func (h *ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var p profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		p.ID = id
	}

	if err := p.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created := p.ID == ""

	result, err := h.store.Save(ctx, &p)
	if err != nil {
		logger.ErrorContext(ctx, "failed to save profile", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to save profile")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, SaveResponse{ID: result.ID, Degraded: result.Degraded})
}

// Get handles GET /api/profiles/{id}.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	id := chi.URLParam(r, "id")
	p, err := h.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		logger.ErrorContext(ctx, "failed to load profile", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// List handles GET /api/profiles with query-parameter filters.
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	q := r.URL.Query()
	filter := storage.Filter{
		OwnerID:       q.Get("owner_id"),
		Name:          q.Get("name"),
		Contact:       q.Get("contact"),
		Gender:        q.Get("gender"),
		MaritalStatus: q.Get("marital_status"),
	}
	limit := parseIntParam(q.Get("limit"), 10)
	offset := parseIntParam(q.Get("offset"), 0)

	profiles, err := h.store.List(ctx, filter, limit, offset)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list profiles", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to list profiles")
		return
	}
	if profiles == nil {
		profiles = []*profile.Profile{}
	}
	h.writeJSON(w, http.StatusOK, ListResponse{Profiles: profiles})
}

// Search handles POST /api/profiles/search.
func (h *ProfileHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profiles, err := h.store.Search(ctx, req.Query, req.Facets, req.Limit)
	if err != nil {
		logger.ErrorContext(ctx, "search failed", "error", err)
		h.writeError(w, http.StatusBadGateway, "Search is unavailable")
		return
	}
	if profiles == nil {
		profiles = []*profile.Profile{}
	}
	h.writeJSON(w, http.StatusOK, ListResponse{Profiles: profiles})
}

// Delete handles DELETE /api/profiles/{id}. Always succeeds for absent ids.
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	id := chi.URLParam(r, "id")
	if err := h.store.Delete(ctx, id); err != nil {
		logger.ErrorContext(ctx, "failed to delete profile", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to delete profile")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProfileHandler) writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes an error response.
func (h *ProfileHandler) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}

func parseIntParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
