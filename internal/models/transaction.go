package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mpesa-console/internal/mpesa"
)

// RawTransaction is a transactions row as stored by the backend. Every column
// the gateway fills asynchronously is nullable.
type RawTransaction struct {
	ID                string              `db:"id"`
	ReceiptNumber     *string             `db:"receipt_number"`
	PhoneNumber       *string             `db:"phone_number"`
	Amount            decimal.NullDecimal `db:"amount"`
	Status            *string             `db:"status"`
	TransactionDate   *string             `db:"transaction_date"` // ISO, Unix seconds or YYYYMMDDHHMMSS
	ApplicationID     *string             `db:"application_id"`
	AccountReference  *string             `db:"account_reference"`
	Description       *string             `db:"description"`
	ResultCode        *string             `db:"result_code"`
	ResultDesc        *string             `db:"result_desc"`
	CheckoutRequestID *string             `db:"checkout_request_id"`
	MerchantRequestID *string             `db:"merchant_request_id"`
	MpesaMetadata     []byte              `db:"mpesa_metadata"` // JSONB
	CreatedAt         *time.Time          `db:"created_at"`
	CompletedAt       *time.Time          `db:"completed_at"`
}

// Transaction is the canonical, read-only view of one payment event.
type Transaction struct {
	ID                string            `json:"id"`
	ReceiptNumber     *string           `json:"receipt_number"`
	PhoneNumber       string            `json:"phone_number"`
	Amount            decimal.Decimal   `json:"amount"`
	Status            TransactionStatus `json:"status"`
	RawStatus         string            `json:"raw_status,omitempty"`
	Instant           *time.Time        `json:"transaction_date"`
	ApplicationID     string            `json:"application_id"`
	AccountReference  string            `json:"account_reference"`
	Description       string            `json:"description"`
	ResultCode        *string           `json:"result_code,omitempty"`
	ResultDesc        *string           `json:"result_description,omitempty"`
	CheckoutRequestID *string           `json:"checkout_request_id,omitempty"`
	MerchantRequestID *string           `json:"merchant_request_id,omitempty"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	CreatedAt         *time.Time        `json:"created_at,omitempty"`
}

// NewTransaction applies the defaulting rules to a raw row: status is
// normalised, missing or negative amounts become zero, the instant is
// resolved from transaction_date, then callback metadata, then created_at,
// whichever is present first.
func NewTransaction(raw RawTransaction, loc *time.Location) Transaction {
	meta, err := mpesa.DecodeMetadata(raw.MpesaMetadata)
	if err != nil {
		logrus.WithField("transaction_id", raw.ID).Warnf("Ignoring unreadable mpesa metadata: %v", err)
		meta = map[string]interface{}{}
	}

	tx := Transaction{
		ID:                raw.ID,
		ReceiptNumber:     nonEmpty(raw.ReceiptNumber),
		PhoneNumber:       deref(raw.PhoneNumber),
		RawStatus:         deref(raw.Status),
		ApplicationID:     deref(raw.ApplicationID),
		AccountReference:  deref(raw.AccountReference),
		Description:       deref(raw.Description),
		ResultCode:        nonEmpty(raw.ResultCode),
		ResultDesc:        nonEmpty(raw.ResultDesc),
		CheckoutRequestID: nonEmpty(raw.CheckoutRequestID),
		MerchantRequestID: nonEmpty(raw.MerchantRequestID),
		CompletedAt:       raw.CompletedAt,
		CreatedAt:         raw.CreatedAt,
	}
	tx.Status = NormalizeStatus(tx.RawStatus)

	if tx.ReceiptNumber == nil {
		if receipt, ok := mpesa.MetadataString(meta, mpesa.MetaReceiptNumber); ok {
			tx.ReceiptNumber = &receipt
		}
	}
	if tx.PhoneNumber == "" {
		tx.PhoneNumber, _ = mpesa.MetadataString(meta, mpesa.MetaPhoneNumber)
	}

	tx.Amount = resolveAmount(raw, meta)
	tx.Instant = resolveTransactionInstant(raw, meta, loc)

	return tx
}

// NewTransactions converts a batch of raw rows.
func NewTransactions(raws []RawTransaction, loc *time.Location) []Transaction {
	out := make([]Transaction, len(raws))
	for i, raw := range raws {
		out[i] = NewTransaction(raw, loc)
	}
	return out
}

func resolveAmount(raw RawTransaction, meta map[string]interface{}) decimal.Decimal {
	amount := decimal.Zero
	if raw.Amount.Valid {
		amount = raw.Amount.Decimal
	} else if s, ok := mpesa.MetadataString(meta, mpesa.MetaAmount); ok {
		if d, err := decimal.NewFromString(s); err == nil {
			amount = d
		}
	}

	if amount.IsNegative() {
		logrus.WithFields(logrus.Fields{
			"transaction_id": raw.ID,
			"amount":         amount.String(),
		}).Warn("Negative transaction amount, treating as zero")
		return decimal.Zero
	}
	return amount
}

// resolveTransactionInstant resolves the first date source that is present.
// A present but malformed value leaves the instant unknown.
func resolveTransactionInstant(raw RawTransaction, meta map[string]interface{}, loc *time.Location) *time.Time {
	var source interface{}
	switch {
	case raw.TransactionDate != nil && *raw.TransactionDate != "":
		source = *raw.TransactionDate
	case meta[mpesa.MetaTransactionDate] != nil:
		source = meta[mpesa.MetaTransactionDate]
	case raw.CreatedAt != nil:
		source = *raw.CreatedAt
	default:
		return nil
	}

	t, ok := mpesa.ResolveInstant(source, loc)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"transaction_id":   raw.ID,
			"transaction_date": source,
		}).Warn("Unresolvable transaction date")
		return nil
	}
	return &t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
