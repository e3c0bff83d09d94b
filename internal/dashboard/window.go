package dashboard

import (
	"time"

	"github.com/mpesa-console/internal/filter"
	"github.com/mpesa-console/internal/models"
)

// Window is an inclusive calendar-day range.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Windows returns the trailing window of days ending on now's calendar day
// and the equal-length window immediately before it.
func Windows(now time.Time, days int, loc *time.Location) (current, previous Window) {
	if days < 1 {
		days = 1
	}
	if loc == nil {
		loc = time.Local
	}

	today := filter.StartOfDay(now, loc)
	currentStart := today.AddDate(0, 0, -(days - 1))
	previousStart := currentStart.AddDate(0, 0, -days)

	current = Window{From: currentStart, To: filter.EndOfDay(today, loc)}
	previous = Window{From: previousStart, To: filter.EndOfDay(currentStart.AddDate(0, 0, -1), loc)}
	return current, previous
}

// Filter returns a date-range filter covering the window.
func (w Window) Filter() filter.Filter {
	from, to := w.From, w.To
	return filter.Filter{StartDate: &from, EndDate: &to}
}

// Contains reports whether tx belongs to the window. Transactions whose
// instant could not be resolved are placed by their creation time, so they
// still count towards totals.
func (w Window) Contains(tx models.Transaction) bool {
	t := tx.Instant
	if t == nil {
		t = tx.CreatedAt
	}
	if t == nil {
		return false
	}
	return !t.Before(w.From) && !t.After(w.To)
}

// Select returns the transactions the window contains, preserving order.
func (w Window) Select(txs []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if w.Contains(tx) {
			out = append(out, tx)
		}
	}
	return out
}
