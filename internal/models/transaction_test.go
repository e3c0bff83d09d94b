package models

import (
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNewTransaction_Defaults(t *testing.T) {
	tx := NewTransaction(RawTransaction{ID: "tx-1"}, time.UTC)

	assert.Equal(t, "tx-1", tx.ID)
	assert.Equal(t, StatusPending, tx.Status)
	assert.True(t, tx.Amount.IsZero())
	assert.Nil(t, tx.Instant)
	assert.Nil(t, tx.ReceiptNumber)
	assert.Equal(t, "", tx.PhoneNumber)
}

func TestNewTransaction_NormalisesFields(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	raw := RawTransaction{
		ID:               "tx-2",
		ReceiptNumber:    strPtr(""),
		PhoneNumber:      strPtr("254700000001"),
		Amount:           decimal.NewNullDecimal(decimal.RequireFromString("150.50")),
		Status:           strPtr("COMPLETED"),
		TransactionDate:  strPtr("20240115143000"),
		ApplicationID:    strPtr("app-1"),
		AccountReference: strPtr("INV-42"),
		ResultCode:       strPtr("0"),
		CreatedAt:        &created,
	}

	tx := NewTransaction(raw, time.UTC)

	assert.Equal(t, StatusCompleted, tx.Status)
	assert.Equal(t, "COMPLETED", tx.RawStatus)
	assert.Nil(t, tx.ReceiptNumber, "empty receipt is treated as absent")
	assert.True(t, decimal.RequireFromString("150.50").Equal(tx.Amount))
	require.NotNil(t, tx.Instant)
	assert.True(t, time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC).Equal(*tx.Instant))
	assert.Equal(t, "app-1", tx.ApplicationID)
	assert.Equal(t, "INV-42", tx.AccountReference)
	require.NotNil(t, tx.ResultCode)
	assert.Equal(t, "0", *tx.ResultCode)
}

func TestNewTransaction_NegativeAmountClamped(t *testing.T) {
	tx := NewTransaction(RawTransaction{
		ID:     "tx-3",
		Amount: decimal.NewNullDecimal(decimal.NewFromInt(-10)),
	}, time.UTC)

	assert.True(t, tx.Amount.IsZero())
}

func TestNewTransaction_MetadataFallbacks(t *testing.T) {
	raw := RawTransaction{
		ID:            "tx-4",
		Status:        strPtr("COMPLETED"),
		MpesaMetadata: []byte(`{"Amount":1.5,"MpesaReceiptNumber":"NLJ7RT61SV","TransactionDate":20240115143000,"PhoneNumber":254708374149}`),
	}

	tx := NewTransaction(raw, time.UTC)

	require.NotNil(t, tx.ReceiptNumber)
	assert.Equal(t, "NLJ7RT61SV", *tx.ReceiptNumber)
	assert.Equal(t, "254708374149", tx.PhoneNumber)
	assert.True(t, decimal.RequireFromString("1.5").Equal(tx.Amount))
	require.NotNil(t, tx.Instant)
	assert.True(t, time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC).Equal(*tx.Instant))
}

func TestNewTransaction_DateSourcePriority(t *testing.T) {
	created := time.Date(2024, 2, 2, 8, 0, 0, 0, time.UTC)

	t.Run("created_at used when nothing else is present", func(t *testing.T) {
		tx := NewTransaction(RawTransaction{ID: "a", CreatedAt: &created}, time.UTC)
		require.NotNil(t, tx.Instant)
		assert.True(t, created.Equal(*tx.Instant))
	})

	t.Run("malformed transaction_date stays unresolved", func(t *testing.T) {
		tx := NewTransaction(RawTransaction{
			ID:              "b",
			TransactionDate: strPtr("yesterday-ish"),
			CreatedAt:       &created,
		}, time.UTC)
		assert.Nil(t, tx.Instant)
	})

	t.Run("unreadable metadata is ignored", func(t *testing.T) {
		tx := NewTransaction(RawTransaction{
			ID:            "c",
			MpesaMetadata: []byte(`{broken`),
			CreatedAt:     &created,
		}, time.UTC)
		require.NotNil(t, tx.Instant)
		assert.True(t, created.Equal(*tx.Instant))
	})
}

func TestApplicationLabel(t *testing.T) {
	names := map[string]string{"app-1": "Shop"}

	assert.Equal(t, "Shop", ApplicationLabel(names, "app-1"))
	assert.Equal(t, "App ID: app-2", ApplicationLabel(names, "app-2"))
	assert.Equal(t, "App ID: app-1", ApplicationLabel(nil, "app-1"))
	assert.Equal(t, "Unknown", ApplicationLabel(names, ""))
}

func TestApplicationInputActiveDefault(t *testing.T) {
	assert.True(t, ApplicationInput{}.Active())

	off := false
	assert.False(t, ApplicationInput{IsActive: &off}.Active())

	app := NewApplication("id-1", ApplicationInput{Name: "Shop", IsActive: &off}, "APP123", "SECRET")
	assert.Equal(t, "APP123", app.AppID)
	assert.Equal(t, "SECRET", app.AppSecret)
	assert.False(t, app.IsActive)
}

func TestNewValidationError(t *testing.T) {
	v := validator.New()
	err := v.Struct(ApplicationInput{CallbackURL: "not a url", BusinessShortCode: "abc"})
	require.Error(t, err)

	verr := NewValidationError(err)
	var ve *ValidationError
	require.True(t, errors.As(verr, &ve))
	assert.True(t, errors.Is(verr, ErrInvalidInput))
	assert.Equal(t, "is required", ve.Fields["Name"])
	assert.Equal(t, "must be a valid URL", ve.Fields["CallbackURL"])
	assert.Equal(t, "must be numeric", ve.Fields["BusinessShortCode"])

	plain := errors.New("boom")
	assert.Equal(t, plain, NewValidationError(plain))
}
