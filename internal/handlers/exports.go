package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/mpesa-console/internal/export"
	"github.com/mpesa-console/internal/filter"
	"github.com/mpesa-console/internal/models"
	"github.com/mpesa-console/internal/worker"
)

// CreateExport handles POST /exports. The request is checked up front so a
// malformed filter is rejected here rather than failing in the worker.
func (h *Handler) CreateExport(w http.ResponseWriter, r *http.Request) {
	var req models.ExportRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	if _, err := filter.New(req.Query, req.Status, req.ApplicationID, req.StartDate, req.EndDate, h.deps.Transactions.Location()); err != nil {
		respondServiceError(w, r, err)
		return
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	req.Format = string(format)

	job := models.Export{
		ID:        h.newID(),
		Request:   req,
		Status:    models.ExportPending,
		CreatedAt: time.Now(),
	}
	if err := h.deps.Exports.CreateExport(r.Context(), job); err != nil {
		respondServiceError(w, r, err)
		return
	}

	task, err := worker.NewExportTask(job.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	info, err := h.deps.Queue.EnqueueContext(r.Context(), task)
	if err != nil {
		logrus.WithField("export_id", job.ID).Errorf("Failed to enqueue export: %v", err)
		// the job never runs, so it must not stay pending
		if ferr := h.deps.Exports.FailExport(r.Context(), job.ID, "failed to queue export: "+err.Error()); ferr != nil {
			logrus.WithField("export_id", job.ID).Errorf("Failed to mark unqueued export failed: %v", ferr)
		}
		respondError(w, http.StatusInternalServerError, "Failed to queue export")
		return
	}

	logrus.WithFields(logrus.Fields{"export_id": job.ID, "task_id": info.ID}).Info("Export queued")
	respondJSON(w, http.StatusAccepted, job)
}

// GetExport handles GET /exports/{id}. A completed export returns the file;
// otherwise the job record is returned.
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	job, err := h.deps.Exports.GetExport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	switch job.Status {
	case models.ExportCompleted:
		format, err := export.ParseFormat(job.Request.Format)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		writeFile(w, fmt.Sprintf("export-%s.%s", job.ID, format.Extension()), format, job.Content)
	case models.ExportFailed:
		respondJSON(w, http.StatusOK, job)
	default:
		respondJSON(w, http.StatusAccepted, job)
	}
}
