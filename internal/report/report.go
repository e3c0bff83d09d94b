// Package report renders a dashboard snapshot for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/wcharczuk/go-chart/v2"

	"github.com/mpesa-console/internal/dashboard"
	"github.com/mpesa-console/internal/transactions"
)

const timeLayout = "2006-01-02 15:04"

// WriteJSON writes res as indented JSON.
func WriteJSON(w io.Writer, res transactions.DashboardResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteTables writes the summary, daily, top applications and recent
// transaction tables.
func WriteTables(w io.Writer, res transactions.DashboardResult) {
	fmt.Fprintf(w, "Window %s to %s (previous %s to %s)\n",
		res.Window.From.Format(timeLayout), res.Window.To.Format(timeLayout),
		res.Previous.From.Format(timeLayout), res.Previous.To.Format(timeLayout))
	if res.Stale {
		fmt.Fprintln(w, "WARNING: data source unavailable, showing last good snapshot")
	}

	t := res.Trends
	summary := newTable(w, "Metric", "Value", "Trend")
	summary.Append([]string{"Transactions", strconv.Itoa(res.TotalTransactions), formatTrend(t.Transactions)})
	summary.Append([]string{"Amount", res.TotalAmount.StringFixed(2), formatTrend(t.Amount)})
	summary.Append([]string{"Success rate", formatPercent(res.SuccessRate), formatTrend(t.SuccessRate)})
	summary.Append([]string{"Completed", strconv.Itoa(res.StatusCounts.Completed), formatTrend(t.Completed)})
	summary.Append([]string{"Failed", strconv.Itoa(res.StatusCounts.Failed), formatTrend(t.Failed)})
	summary.Append([]string{"Pending", strconv.Itoa(res.StatusCounts.Pending), formatTrend(t.Pending)})
	summary.Append([]string{"Processing", strconv.Itoa(res.StatusCounts.Processing), formatTrend(t.Processing)})
	summary.Render()

	daily := newTable(w, "Date", "Transactions", "Amount")
	for _, d := range res.Daily {
		daily.Append([]string{d.Date, strconv.Itoa(d.Count), d.Amount.StringFixed(2)})
	}
	daily.Render()

	if len(res.TopApplications) > 0 {
		top := newTable(w, "Application", "Transactions", "Amount")
		for _, a := range res.TopApplications {
			top.Append([]string{a.Name, strconv.Itoa(a.Count), a.Amount.StringFixed(2)})
		}
		top.Render()
	}

	if len(res.Recent) > 0 {
		recent := newTable(w, "ID", "Date", "Phone", "Amount", "Status")
		for _, tx := range res.Recent {
			date := ""
			if tx.Instant != nil {
				date = tx.Instant.Format(timeLayout)
			}
			recent.Append([]string{tx.ID, date, tx.PhoneNumber, tx.Amount.StringFixed(2), string(tx.Status)})
		}
		recent.Render()
	}
}

// WriteChart renders the daily amounts as a PNG bar chart. It reports false
// without writing anything when every day is zero, which has no value range
// to plot.
func WriteChart(w io.Writer, daily []dashboard.DailyStat) (bool, error) {
	bars := make([]chart.Value, 0, len(daily))
	nonZero := false
	for _, d := range daily {
		v := d.Amount.InexactFloat64()
		if v != 0 {
			nonZero = true
		}
		bars = append(bars, chart.Value{Label: d.Date, Value: v})
	}
	if !nonZero {
		return false, nil
	}

	barChart := chart.BarChart{
		Title: "Daily transaction amount",
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Width:  800,
		Height: 400,
		Bars:   bars,
	}
	barChart.YAxis.ValueFormatter = func(v interface{}) string {
		if vf, isFloat := v.(float64); isFloat {
			return fmt.Sprintf("%.0f", vf)
		}
		return ""
	}

	if err := barChart.Render(chart.PNG, w); err != nil {
		return false, fmt.Errorf("failed to render chart: %w", err)
	}
	return true, nil
}

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	return table
}

func formatTrend(t dashboard.Trend) string {
	sign := "+"
	if !t.Positive {
		sign = "-"
	}
	if t.Value == 0 {
		sign = ""
	}
	return sign + formatPercent(t.Value)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}
