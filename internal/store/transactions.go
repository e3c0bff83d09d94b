package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/mpesa-console/internal/filter"
	"github.com/mpesa-console/internal/models"
)

const selectTransactions = `
	SELECT id::text, receipt_number, phone_number, amount, status,
	       transaction_date::text, application_id::text, account_reference,
	       description, result_code::text, result_desc, checkout_request_id,
	       merchant_request_id, mpesa_metadata, created_at, completed_at,
	       COUNT(*) OVER() AS total
	FROM transactions`

// ListTransactions returns raw rows matching the pushed constraints, newest
// first, together with the total number of matching rows. The total can
// exceed len(rows) when c.Limit truncates the result.
func (s *Store) ListTransactions(ctx context.Context, c filter.Constraints) ([]models.RawTransaction, int, error) {
	where, args := transactionWhere(c)

	query := selectTransactions + where + " ORDER BY created_at DESC NULLS LAST"
	if c.Limit > 0 {
		args = append(args, c.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var (
		out   []models.RawTransaction
		total int
	)
	for rows.Next() {
		var tx models.RawTransaction
		if err := rows.Scan(
			&tx.ID,
			&tx.ReceiptNumber,
			&tx.PhoneNumber,
			&tx.Amount,
			&tx.Status,
			&tx.TransactionDate,
			&tx.ApplicationID,
			&tx.AccountReference,
			&tx.Description,
			&tx.ResultCode,
			&tx.ResultDesc,
			&tx.CheckoutRequestID,
			&tx.MerchantRequestID,
			&tx.MpesaMetadata,
			&tx.CreatedAt,
			&tx.CompletedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read transactions: %w", err)
	}

	return out, total, nil
}

// datedByGateway matches rows whose instant comes from transaction_date or
// the callback metadata rather than created_at. The date range cannot be
// checked in SQL for them, so they always pass it.
const datedByGateway = `NULLIF(transaction_date, '') IS NOT NULL
	OR mpesa_metadata ? 'TransactionDate'
	OR jsonb_typeof(mpesa_metadata) = 'array'`

// transactionWhere translates constraints into a WHERE clause. The date range
// only narrows rows dated by created_at; everything else is kept for the
// in-memory predicate, so the clause never drops a row Matches accepts.
func transactionWhere(c filter.Constraints) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if c.Status != "" {
		if pattern := models.StatusPattern(c.Status); pattern != "%" {
			clauses = append(clauses, "status ILIKE "+arg(pattern))
		}
	}
	if c.ApplicationID != "" {
		clauses = append(clauses, "application_id::text = "+arg(c.ApplicationID))
	}

	var dates []string
	if c.From != nil {
		dates = append(dates, "created_at >= "+arg(*c.From))
	}
	if c.To != nil {
		dates = append(dates, "created_at <= "+arg(*c.To))
	}
	if len(dates) > 0 {
		clauses = append(clauses, "(created_at IS NULL OR "+datedByGateway+" OR ("+strings.Join(dates, " AND ")+"))")
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
