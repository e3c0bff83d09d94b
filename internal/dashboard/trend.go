// Package dashboard computes dashboard statistics from transaction windows.
// Everything here is pure: callers fetch the windows, this package only
// reads them.
package dashboard

import (
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Trend compares a metric between the current and the previous window.
type Trend struct {
	Value    float64 `json:"value"`
	Positive bool    `json:"positive"`
}

// ComputeTrend returns the absolute percentage change from previous to
// current, rounded to one decimal. A zero previous value never divides: it
// reports 100% positive when current is above zero and 0% otherwise.
func ComputeTrend(current, previous decimal.Decimal) Trend {
	if previous.IsZero() {
		if current.IsPositive() {
			return Trend{Value: 100, Positive: true}
		}
		return Trend{Value: 0, Positive: false}
	}

	diff := current.Sub(previous)
	change := diff.Div(previous).Mul(hundred).Round(1).Abs()
	return Trend{
		Value:    change.InexactFloat64(),
		Positive: !diff.IsNegative(),
	}
}

// CountTrend is ComputeTrend for integer counts.
func CountTrend(current, previous int) Trend {
	return ComputeTrend(decimal.NewFromInt(int64(current)), decimal.NewFromInt(int64(previous)))
}

// RateTrend is ComputeTrend for percentages.
func RateTrend(current, previous float64) Trend {
	return ComputeTrend(decimal.NewFromFloat(current), decimal.NewFromFloat(previous))
}

// percent returns part/total*100 rounded to one decimal, 0 when total is 0.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}
