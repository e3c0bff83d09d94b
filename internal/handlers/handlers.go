// Package handlers implements the console's HTTP API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/mpesa-console/internal/export"
	"github.com/mpesa-console/internal/filter"
	"github.com/mpesa-console/internal/models"
	"github.com/mpesa-console/internal/transactions"
)

// TransactionService serves the transaction read views.
type TransactionService interface {
	Location() *time.Location
	List(ctx context.Context, f filter.Filter, page, pageSize int) (transactions.ListResult, error)
	Export(ctx context.Context, f filter.Filter, format export.Format) ([]byte, int, error)
	Dashboard(ctx context.Context, req transactions.DashboardRequest) (transactions.DashboardResult, error)
}

// ApplicationService manages applications.
type ApplicationService interface {
	List(ctx context.Context) ([]models.Application, error)
	Get(ctx context.Context, id string) (models.Application, error)
	Create(ctx context.Context, in models.ApplicationInput) (models.Application, error)
	Update(ctx context.Context, id string, in models.ApplicationInput) (models.Application, error)
	SetActive(ctx context.Context, id string, active bool) (models.Application, error)
	Delete(ctx context.Context, id string) error
}

// ExportStore records export jobs.
type ExportStore interface {
	CreateExport(ctx context.Context, e models.Export) error
	GetExport(ctx context.Context, id string) (models.Export, error)
	FailExport(ctx context.Context, id, reason string) error
}

// Enqueuer submits background tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// CacheInvalidator drops cached dashboard snapshots.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Deps are the handler dependencies. Cache and Checks are optional.
type Deps struct {
	Transactions TransactionService
	Applications ApplicationService
	Exports      ExportStore
	Queue        Enqueuer
	Cache        CacheInvalidator
	// Checks are named health probes reported by /health.
	Checks map[string]func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	deps      Deps
	validator *validator.Validate
	newID     func() string
}

// NewHandler creates a new handler instance
func NewHandler(deps Deps) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
	})

	return &Handler{
		deps:      deps,
		validator: v,
		newID:     uuid.NewString,
	}
}

// Routes registers the admin API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/transactions", h.ListTransactions)
	r.Get("/transactions/export", h.ExportTransactions)
	r.Get("/dashboard", h.Dashboard)

	r.Route("/applications", func(r chi.Router) {
		r.Get("/", h.ListApplications)
		r.Post("/", h.CreateApplication)
		r.Get("/{id}", h.GetApplication)
		r.Put("/{id}", h.UpdateApplication)
		r.Delete("/{id}", h.DeleteApplication)
		r.Patch("/{id}/active", h.SetApplicationActive)
	})

	r.Post("/exports", h.CreateExport)
	r.Get("/exports/{id}", h.GetExport)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := map[string]string{
		"status": "ok",
	}

	for name, check := range h.deps.Checks {
		if err := check(ctx); err != nil {
			logrus.Warnf("Health check %s failed: %v", name, err)
			health[name] = "down"
			health["status"] = "degraded"
		} else {
			health[name] = "up"
		}
	}

	status := http.StatusOK
	if health["status"] != "ok" {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, health)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.Warnf("Failed to write response: %v", err)
	}
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a domain error to its HTTP status.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "Validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, models.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		respondError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, models.ErrDuplicateName):
		respondError(w, http.StatusConflict, "An application with this name already exists. Choose a different name.")
	case errors.Is(err, models.ErrCredentialMint):
		logrus.WithField("path", r.URL.Path).Errorf("Credential minting failed: %v", err)
		respondError(w, http.StatusBadGateway, "Failed to generate application credentials. Try again later.")
	case errors.Is(err, models.ErrBackendUnavailable):
		logrus.WithField("path", r.URL.Path).Errorf("Backend unavailable: %v", err)
		respondError(w, http.StatusServiceUnavailable, "Data is temporarily unavailable. Try again later.")
	default:
		logrus.WithField("path", r.URL.Path).Errorf("Request failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", models.ErrInvalidInput, err)
	}
	return nil
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", models.ErrInvalidInput, name)
	}
	return n, nil
}

func (h *Handler) invalidateDashboard(ctx context.Context) {
	if h.deps.Cache == nil {
		return
	}
	if err := h.deps.Cache.Invalidate(ctx); err != nil {
		logrus.Warnf("Dashboard cache invalidation failed: %v", err)
	}
}
