// Package export serializes transaction lists for download.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/mpesa-console/internal/models"
)

// Format is an export output format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// Columns is the fixed column order of every format.
var Columns = []string{
	"id",
	"receipt_number",
	"phone_number",
	"amount",
	"status",
	"application_id",
	"application_name",
	"transaction_date",
	"account_reference",
	"description",
	"result_code",
	"result_description",
	"checkout_request_id",
	"merchant_request_id",
	"completed_at",
}

// ParseFormat accepts csv, json and table, case-insensitively. Empty means csv.
func ParseFormat(v string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(v))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON, FormatTable:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unsupported export format %q", models.ErrInvalidInput, v)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatTable:
		return "text/plain; charset=utf-8"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Extension returns the file extension of f, without the dot.
func (f Format) Extension() string {
	if f == FormatTable {
		return "txt"
	}
	return string(f)
}

// Record is one flattened export row. Missing values are empty strings.
type Record struct {
	ID                string `json:"id"`
	ReceiptNumber     string `json:"receipt_number"`
	PhoneNumber       string `json:"phone_number"`
	Amount            string `json:"amount"`
	Status            string `json:"status"`
	ApplicationID     string `json:"application_id"`
	ApplicationName   string `json:"application_name"`
	TransactionDate   string `json:"transaction_date"`
	AccountReference  string `json:"account_reference"`
	Description       string `json:"description"`
	ResultCode        string `json:"result_code"`
	ResultDescription string `json:"result_description"`
	CheckoutRequestID string `json:"checkout_request_id"`
	MerchantRequestID string `json:"merchant_request_id"`
	CompletedAt       string `json:"completed_at"`
}

func (r Record) values() []string {
	return []string{
		r.ID,
		r.ReceiptNumber,
		r.PhoneNumber,
		r.Amount,
		r.Status,
		r.ApplicationID,
		r.ApplicationName,
		r.TransactionDate,
		r.AccountReference,
		r.Description,
		r.ResultCode,
		r.ResultDescription,
		r.CheckoutRequestID,
		r.MerchantRequestID,
		r.CompletedAt,
	}
}

// NewRecords flattens transactions. label may be nil; times are rendered as
// RFC 3339 in loc.
func NewRecords(txs []models.Transaction, label func(string) string, loc *time.Location) []Record {
	if loc == nil {
		loc = time.Local
	}
	if label == nil {
		label = func(id string) string { return models.ApplicationLabel(nil, id) }
	}

	records := make([]Record, 0, len(txs))
	for _, tx := range txs {
		records = append(records, Record{
			ID:                tx.ID,
			ReceiptNumber:     str(tx.ReceiptNumber),
			PhoneNumber:       tx.PhoneNumber,
			Amount:            tx.Amount.String(),
			Status:            string(tx.Status),
			ApplicationID:     tx.ApplicationID,
			ApplicationName:   label(tx.ApplicationID),
			TransactionDate:   timestamp(tx.Instant, loc),
			AccountReference:  tx.AccountReference,
			Description:       tx.Description,
			ResultCode:        str(tx.ResultCode),
			ResultDescription: str(tx.ResultDesc),
			CheckoutRequestID: str(tx.CheckoutRequestID),
			MerchantRequestID: str(tx.MerchantRequestID),
			CompletedAt:       timestamp(tx.CompletedAt, loc),
		})
	}
	return records
}

// Serialize renders records in format. An empty input yields a header-only
// CSV, an empty JSON array or an empty table.
func Serialize(records []Record, format Format) ([]byte, error) {
	switch format {
	case FormatCSV, "":
		return toCSV(records)
	case FormatJSON:
		return toJSON(records)
	case FormatTable:
		return toTable(records), nil
	default:
		return nil, fmt.Errorf("%w: unsupported export format %q", models.ErrInvalidInput, format)
	}
}

// Transactions is NewRecords followed by Serialize.
func Transactions(txs []models.Transaction, format Format, label func(string) string, loc *time.Location) ([]byte, error) {
	return Serialize(NewRecords(txs, label, loc), format)
}

func toCSV(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(r.values()); err != nil {
			return nil, fmt.Errorf("failed to write csv row %s: %w", r.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func toJSON(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json export: %w", err)
	}
	return data, nil
}

func toTable(records []Record) []byte {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader(Columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	for _, r := range records {
		table.Append(r.values())
	}
	table.Render()
	return buf.Bytes()
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timestamp(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(time.RFC3339)
}
