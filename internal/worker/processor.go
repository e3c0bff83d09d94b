package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/mpesa-console/internal/export"
	"github.com/mpesa-console/internal/filter"
	"github.com/mpesa-console/internal/models"
	"github.com/mpesa-console/internal/queue"
)

const (
	TypeExportTransactions = "export:transactions"

	exportMaxRetry = 3
	exportTimeout  = 5 * time.Minute
)

// ExportPayload is the task payload of an export job.
type ExportPayload struct {
	ExportID string `json:"export_id"`
}

// ExportStore records export jobs.
type ExportStore interface {
	GetExport(ctx context.Context, id string) (models.Export, error)
	CompleteExport(ctx context.Context, id string, content []byte, rowCount int) error
	FailExport(ctx context.Context, id, reason string) error
}

// Exporter renders filtered transactions.
type Exporter interface {
	Export(ctx context.Context, f filter.Filter, format export.Format) ([]byte, int, error)
	Location() *time.Location
}

// Processor handles background job processing
type Processor struct {
	store    ExportStore
	exporter Exporter
}

// NewProcessor creates a new worker processor
func NewProcessor(store ExportStore, exporter Exporter) *Processor {
	return &Processor{store: store, exporter: exporter}
}

// Register adds the processor's handlers to mux.
func (p *Processor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeExportTransactions, p.ProcessExport)
}

// NewExportTask creates a new export task
func NewExportTask(exportID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ExportPayload{ExportID: exportID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export payload: %w", err)
	}
	return asynq.NewTask(TypeExportTransactions, payload,
		asynq.Queue(queue.QueueLow),
		asynq.MaxRetry(exportMaxRetry),
		asynq.Timeout(exportTimeout),
	), nil
}

// ProcessExport renders an export job and stores the result. Running it
// twice for the same export id is harmless.
func (p *Processor) ProcessExport(ctx context.Context, t *asynq.Task) error {
	var payload ExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal export payload: %v: %w", err, asynq.SkipRetry)
	}

	job, err := p.store.GetExport(ctx, payload.ExportID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("export %s: %v: %w", payload.ExportID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to load export %s: %w", payload.ExportID, err)
	}

	if job.Status == models.ExportCompleted {
		logrus.Infof("Export %s already completed, skipping", job.ID)
		return nil
	}

	req := job.Request
	f, err := filter.New(req.Query, req.Status, req.ApplicationID, req.StartDate, req.EndDate, p.exporter.Location())
	if err != nil {
		return p.fail(ctx, job.ID, err)
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return p.fail(ctx, job.ID, err)
	}

	data, rows, err := p.exporter.Export(ctx, f, format)
	if err != nil {
		if isLastAttempt(ctx) {
			return p.fail(ctx, job.ID, err)
		}
		return fmt.Errorf("failed to export %s: %w", job.ID, err)
	}

	if err := p.store.CompleteExport(ctx, job.ID, data, rows); err != nil {
		return fmt.Errorf("failed to store export %s: %w", job.ID, err)
	}

	logrus.WithFields(logrus.Fields{
		"export_id": job.ID,
		"format":    format,
		"rows":      rows,
	}).Info("Export completed")
	return nil
}

func (p *Processor) fail(ctx context.Context, id string, cause error) error {
	logrus.WithField("export_id", id).Warnf("Export failed: %v", cause)
	if err := p.store.FailExport(ctx, id, cause.Error()); err != nil {
		return fmt.Errorf("failed to record export %s failure: %w", id, err)
	}
	return fmt.Errorf("export %s: %v: %w", id, cause, asynq.SkipRetry)
}

func isLastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	max, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= max
}
