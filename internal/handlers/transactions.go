package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mpesa-console/internal/export"
	"github.com/mpesa-console/internal/filter"
	"github.com/mpesa-console/internal/models"
	"github.com/mpesa-console/internal/transactions"
)

// dashboardQuery bounds the dashboard query parameters. Zero selects the
// configured default.
type dashboardQuery struct {
	Days int `query:"days" validate:"omitempty,min=1,max=366"`
	Top  int `query:"top" validate:"omitempty,min=1,max=50"`
}

// filterFromQuery builds a transaction filter from the list query string.
func (h *Handler) filterFromQuery(r *http.Request) (filter.Filter, error) {
	q := r.URL.Query()
	return filter.New(
		q.Get("q"),
		q.Get("status"),
		q.Get("application_id"),
		q.Get("start_date"),
		q.Get("end_date"),
		h.deps.Transactions.Location(),
	)
}

// ListTransactions handles GET /transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := h.filterFromQuery(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	page, err := queryInt(r, "page")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "page_size")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	res, err := h.deps.Transactions.List(r.Context(), f, page, pageSize)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

// ExportTransactions handles GET /transactions/export. The file is rendered
// synchronously; POST /exports runs the same export in the background.
func (h *Handler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := h.filterFromQuery(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	data, rows, err := h.deps.Transactions.Export(r.Context(), f, format)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	logrus.WithFields(logrus.Fields{"format": format, "rows": rows}).Info("Transactions exported")

	name := fmt.Sprintf("transactions-%s.%s", time.Now().In(h.deps.Transactions.Location()).Format(filter.DateLayout), format.Extension())
	writeFile(w, name, format, data)
}

// Dashboard handles GET /dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	var q dashboardQuery
	var err error
	if q.Days, err = queryInt(r, "days"); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if q.Top, err = queryInt(r, "top"); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if err := h.validator.Struct(q); err != nil {
		respondServiceError(w, r, models.NewValidationError(err))
		return
	}

	appID := r.URL.Query().Get("application_id")
	if appID == models.StatusAll {
		appID = ""
	}

	res, err := h.deps.Transactions.Dashboard(r.Context(), transactions.DashboardRequest{
		Days:          q.Days,
		Top:           q.Top,
		ApplicationID: appID,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

func writeFile(w http.ResponseWriter, name string, format export.Format, data []byte) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logrus.Warnf("Failed to write export: %v", err)
	}
}
