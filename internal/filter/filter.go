// Package filter builds the transaction filter predicate. The same Filter is
// evaluated in memory by Matches and partially pushed to the store through
// Constraints; free-text search is always evaluated in memory.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/mpesa-console/internal/models"
)

// DateLayout is the calendar-day format accepted for start/end dates.
const DateLayout = "2006-01-02"

// pushMargin widens the date range pushed to the store. The store filters on
// created_at while the predicate uses the resolved transaction instant.
const pushMargin = 24 * time.Hour

// Filter is the set of optional constraints on a transaction list.
// Zero values disable the corresponding clause.
type Filter struct {
	Query         string
	Status        models.TransactionStatus
	ApplicationID string
	StartDate     *time.Time
	EndDate       *time.Time
}

// Labeler resolves an owning application id to its display name.
type Labeler func(applicationID string) string

// Constraints is the part of a Filter a store can evaluate.
type Constraints struct {
	Status        models.TransactionStatus
	ApplicationID string
	From          *time.Time
	To            *time.Time
	Limit         int
}

// New builds a Filter from request values. "all" and empty disable the
// status and application clauses; dates use DateLayout and are read in loc.
func New(query, status, applicationID, startDate, endDate string, loc *time.Location) (Filter, error) {
	s, err := models.ParseStatusFilter(status)
	if err != nil {
		return Filter{}, err
	}

	f := Filter{
		Query:         strings.TrimSpace(query),
		Status:        s,
		ApplicationID: strings.TrimSpace(applicationID),
	}
	if strings.EqualFold(f.ApplicationID, models.StatusAll) {
		f.ApplicationID = ""
	}

	if f.StartDate, err = ParseDate(startDate, loc); err != nil {
		return Filter{}, err
	}
	if f.EndDate, err = ParseDate(endDate, loc); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// ParseDate parses a YYYY-MM-DD day in loc. Empty input yields nil.
func ParseDate(v string, loc *time.Location) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, v, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", models.ErrInvalidInput, v)
	}
	return &t, nil
}

// StartOfDay returns 00:00:00.000 of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns 23:59:59.999 of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
}

// Bounds returns the inclusive instant range of the date clause.
func (f Filter) Bounds(loc *time.Location) (from, to *time.Time) {
	if loc == nil {
		loc = time.Local
	}
	if f.StartDate != nil {
		s := StartOfDay(*f.StartDate, loc)
		from = &s
	}
	if f.EndDate != nil {
		e := EndOfDay(*f.EndDate, loc)
		to = &e
	}
	return from, to
}

// HasDateRange reports whether a date clause is active.
func (f Filter) HasDateRange() bool {
	return f.StartDate != nil || f.EndDate != nil
}

// Matches evaluates every active clause against tx. label may be nil.
func (f Filter) Matches(tx models.Transaction, label Labeler, loc *time.Location) bool {
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if f.ApplicationID != "" && tx.ApplicationID != f.ApplicationID {
		return false
	}

	if f.HasDateRange() {
		if tx.Instant == nil {
			return false
		}
		from, to := f.Bounds(loc)
		if from != nil && tx.Instant.Before(*from) {
			return false
		}
		if to != nil && tx.Instant.After(*to) {
			return false
		}
	}

	return f.matchesQuery(tx, label)
}

func (f Filter) matchesQuery(tx models.Transaction, label Labeler) bool {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}

	fields := []string{tx.PhoneNumber, tx.AccountReference}
	if tx.ReceiptNumber != nil {
		fields = append(fields, *tx.ReceiptNumber)
	}
	if label != nil {
		fields = append(fields, label(tx.ApplicationID))
	}

	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Apply returns the matching subset, preserving order. The input is not
// modified.
func (f Filter) Apply(txs []models.Transaction, label Labeler, loc *time.Location) []models.Transaction {
	out := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Matches(tx, label, loc) {
			out = append(out, tx)
		}
	}
	return out
}

// Constraints returns the clauses a store can push down. The date range is
// widened by a day on each side; Matches narrows it back exactly.
func (f Filter) Constraints(loc *time.Location) Constraints {
	c := Constraints{
		Status:        f.Status,
		ApplicationID: f.ApplicationID,
	}

	from, to := f.Bounds(loc)
	if from != nil {
		w := from.Add(-pushMargin)
		c.From = &w
	}
	if to != nil {
		w := to.Add(pushMargin)
		c.To = &w
	}
	return c
}
