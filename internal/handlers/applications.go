package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mpesa-console/internal/models"
)

type setActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

// ListApplications handles GET /applications
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.deps.Applications.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if apps == nil {
		apps = []models.Application{}
	}
	respondJSON(w, http.StatusOK, apps)
}

// GetApplication handles GET /applications/{id}
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.deps.Applications.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, app)
}

// CreateApplication handles POST /applications
func (h *Handler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var in models.ApplicationInput
	if err := decodeJSON(r, &in); err != nil {
		respondServiceError(w, r, err)
		return
	}

	app, err := h.deps.Applications.Create(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	h.invalidateDashboard(r.Context())
	respondJSON(w, http.StatusCreated, app)
}

// UpdateApplication handles PUT /applications/{id}
func (h *Handler) UpdateApplication(w http.ResponseWriter, r *http.Request) {
	var in models.ApplicationInput
	if err := decodeJSON(r, &in); err != nil {
		respondServiceError(w, r, err)
		return
	}

	app, err := h.deps.Applications.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	h.invalidateDashboard(r.Context())
	respondJSON(w, http.StatusOK, app)
}

// SetApplicationActive handles PATCH /applications/{id}/active
func (h *Handler) SetApplicationActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if req.IsActive == nil {
		respondServiceError(w, r, fmt.Errorf("%w: is_active is required", models.ErrInvalidInput))
		return
	}

	app, err := h.deps.Applications.SetActive(r.Context(), chi.URLParam(r, "id"), *req.IsActive)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, app)
}

// DeleteApplication handles DELETE /applications/{id}
func (h *Handler) DeleteApplication(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Applications.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}

	h.invalidateDashboard(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
