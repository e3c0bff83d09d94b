package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mpesa-console/internal/models"
)

// CreateExport records a pending export job.
func (s *Store) CreateExport(ctx context.Context, e models.Export) error {
	request, err := json.Marshal(e.Request)
	if err != nil {
		return fmt.Errorf("failed to marshal export request: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO exports (id, request, status) VALUES ($1, $2, $3)`,
		e.ID, request, string(models.ExportPending),
	)
	if err != nil {
		return fmt.Errorf("failed to insert export: %w", err)
	}
	return nil
}

// GetExport returns an export job, including its content once completed.
func (s *Store) GetExport(ctx context.Context, id string) (models.Export, error) {
	var (
		e       models.Export
		request []byte
		status  string
		errMsg  *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, request, status, row_count, error, content, created_at, completed_at
		FROM exports WHERE id::text = $1`, id,
	).Scan(&e.ID, &request, &status, &e.RowCount, &errMsg, &e.Content, &e.CreatedAt, &e.CompletedAt)
	if err != nil {
		return models.Export{}, fmt.Errorf("failed to get export %s: %w", id, notFound(err))
	}

	if err := json.Unmarshal(request, &e.Request); err != nil {
		return models.Export{}, fmt.Errorf("failed to decode export %s request: %w", id, err)
	}
	e.Status = models.ExportStatus(status)
	if errMsg != nil {
		e.Error = *errMsg
	}
	return e, nil
}

// CompleteExport stores the rendered export. Re-running it for the same id
// overwrites the previous result.
func (s *Store) CompleteExport(ctx context.Context, id string, content []byte, rowCount int) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE exports
		SET status = $1, content = $2, row_count = $3, error = NULL, completed_at = NOW()
		WHERE id::text = $4`,
		string(models.ExportCompleted), content, rowCount, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete export %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("failed to complete export %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// FailExport records a terminal export failure.
func (s *Store) FailExport(ctx context.Context, id, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE exports
		SET status = $1, error = $2, completed_at = NOW()
		WHERE id::text = $3 AND status <> $4`,
		string(models.ExportFailed), reason, id, string(models.ExportCompleted),
	)
	if err != nil {
		return fmt.Errorf("failed to mark export %s failed: %w", id, err)
	}
	return nil
}
