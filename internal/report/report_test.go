package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpesa-console/internal/dashboard"
	"github.com/mpesa-console/internal/models"
	"github.com/mpesa-console/internal/transactions"
)

func sample() transactions.DashboardResult {
	at := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)
	return transactions.DashboardResult{
		Aggregate: dashboard.Aggregate{
			TotalTransactions: 3,
			TotalAmount:       decimal.NewFromInt(1500),
			StatusCounts:      dashboard.StatusCounts{Completed: 2, Failed: 1},
			SuccessRate:       66.7,
			Daily: []dashboard.DailyStat{
				{Date: "2024-03-01", Count: 1, Amount: decimal.NewFromInt(500)},
				{Date: "2024-03-02", Count: 2, Amount: decimal.NewFromInt(1000)},
			},
			TopApplications: []dashboard.ApplicationStat{{ApplicationID: "A1", Name: "Shop", Count: 3, Amount: decimal.NewFromInt(1500)}},
			Recent:          []models.Transaction{{ID: "t1", Instant: &at, PhoneNumber: "254700000001", Amount: decimal.NewFromInt(500), Status: models.StatusCompleted}},
			Trends: dashboard.Trends{
				Transactions: dashboard.Trend{Value: 50, Positive: true},
				Amount:       dashboard.Trend{Value: 12.5, Positive: false},
			},
		},
		Stale: true,
	}
}

func TestWriteTables(t *testing.T) {
	var buf bytes.Buffer
	WriteTables(&buf, sample())
	out := buf.String()

	assert.Contains(t, out, "last good snapshot")
	assert.Contains(t, out, "1500.00")
	assert.Contains(t, out, "+50.0%")
	assert.Contains(t, out, "-12.5%")
	assert.Contains(t, out, "66.7%")
	assert.Contains(t, out, "Shop")
	assert.Contains(t, out, "2024-03-02 09:30")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sample()))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.EqualValues(t, 3, out["total_transactions"])
	assert.Equal(t, true, out["stale"])
}

func TestFormatTrend(t *testing.T) {
	assert.Equal(t, "+100.0%", formatTrend(dashboard.Trend{Value: 100, Positive: true}))
	assert.Equal(t, "-3.2%", formatTrend(dashboard.Trend{Value: 3.2}))
	assert.Equal(t, "0.0%", formatTrend(dashboard.Trend{}))
}

func TestWriteChart(t *testing.T) {
	var buf bytes.Buffer
	ok, err := WriteChart(&buf, sample().Daily)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestWriteChart_AllZeroSkipped(t *testing.T) {
	var buf bytes.Buffer
	ok, err := WriteChart(&buf, []dashboard.DailyStat{{Date: "2024-03-01", Amount: decimal.Zero}})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, buf.Len())
}
