package models

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// TransactionStatus is the canonical status the console reasons about.
// Processing is kept distinct from pending.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
	StatusProcessing TransactionStatus = "processing"
)

// StatusAll is the filter sentinel that disables status filtering.
const StatusAll = "all"

// Statuses lists every canonical status in display order.
var Statuses = []TransactionStatus{StatusPending, StatusCompleted, StatusFailed, StatusProcessing}

// statusMatchers are checked in priority order
var statusMatchers = []struct {
	fragment string
	status   TransactionStatus
}{
	{"pend", StatusPending},
	{"complet", StatusCompleted},
	{"fail", StatusFailed},
	{"process", StatusProcessing},
}

// NormalizeStatus maps a free-text backend status onto a canonical status.
// Empty input is pending; unknown values are pending and logged as a data
// quality warning.
func NormalizeStatus(raw string) TransactionStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return StatusPending
	}

	for _, m := range statusMatchers {
		if strings.Contains(s, m.fragment) {
			return m.status
		}
	}

	logrus.WithField("raw_status", raw).Warn("Unknown transaction status, treating as pending")
	return StatusPending
}

// StatusPattern returns an ILIKE pattern that matches every raw status which
// could normalise to s. It is a superset: the normaliser priority still has to
// be applied to the fetched rows. Pending also absorbs empty and unknown
// values, so its pattern is "%" and callers should not push it at all.
func StatusPattern(s TransactionStatus) string {
	if s == StatusPending {
		return "%"
	}
	for _, m := range statusMatchers {
		if m.status == s {
			return "%" + m.fragment + "%"
		}
	}
	return "%"
}

// ParseStatusFilter parses a status filter value. Empty and "all" mean no
// filter and yield "".
func ParseStatusFilter(v string) (TransactionStatus, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" || v == StatusAll {
		return "", nil
	}
	for _, s := range Statuses {
		if string(s) == v {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, v)
}
