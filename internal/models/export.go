package models

import "time"

// ExportStatus is the lifecycle state of an export job.
type ExportStatus string

const (
	ExportPending   ExportStatus = "pending"
	ExportCompleted ExportStatus = "completed"
	ExportFailed    ExportStatus = "failed"
)

// ExportRequest is the filter and format of an export job, kept as the raw
// request values so the worker parses them exactly like the list endpoint.
type ExportRequest struct {
	Format        string `json:"format"`
	Query         string `json:"q"`
	Status        string `json:"status"`
	ApplicationID string `json:"application_id"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
}

// Export is a recorded export job.
type Export struct {
	ID          string        `json:"id"`
	Request     ExportRequest `json:"request"`
	Status      ExportStatus  `json:"status"`
	RowCount    int           `json:"row_count"`
	Error       string        `json:"error,omitempty"`
	Content     []byte        `json:"-"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}
