// Package transactions serves the read views over transactions: the
// filtered list, the dashboard and exports.
package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mpesa-console/internal/dashboard"
	"github.com/mpesa-console/internal/export"
	"github.com/mpesa-console/internal/filter"
	"github.com/mpesa-console/internal/models"
	"github.com/mpesa-console/internal/pagination"
)

// Repository reads raw transaction rows.
type Repository interface {
	ListTransactions(ctx context.Context, c filter.Constraints) ([]models.RawTransaction, int, error)
}

// LabelSource returns the application id to name lookup table.
type LabelSource interface {
	Labels(ctx context.Context) (map[string]string, error)
}

// Cache stores dashboard snapshots for a short time.
type Cache interface {
	Get(ctx context.Context, key string) (dashboard.Aggregate, bool, error)
	Set(ctx context.Context, key string, agg dashboard.Aggregate) error
}

// Config holds the view settings.
type Config struct {
	Location        *time.Location
	PageSize        int
	MaxFetchRows    int
	DashboardDays   int
	DashboardTop    int
	DashboardRecent int
}

// Row is a transaction with its owning application's display name.
type Row struct {
	models.Transaction
	ApplicationName string `json:"application_name"`
}

// ListResult is one page of the filtered transaction list.
type ListResult struct {
	pagination.Page[Row]
	// Truncated is set when the store held more candidate rows than were
	// fetched, so the list may be incomplete.
	Truncated bool `json:"truncated"`
}

// DashboardRequest selects a dashboard view. Zero values use the defaults.
type DashboardRequest struct {
	Days          int
	Top           int
	ApplicationID string
}

func (r DashboardRequest) key() string {
	return fmt.Sprintf("days=%d:top=%d:app=%s", r.Days, r.Top, r.ApplicationID)
}

// DashboardResult is a dashboard snapshot plus how it was obtained.
type DashboardResult struct {
	dashboard.Aggregate
	Window   dashboard.Window `json:"window"`
	Previous dashboard.Window `json:"previous_window"`
	Cached   bool             `json:"cached"`
	Stale    bool             `json:"stale"`
}

// Service handles transaction views
type Service struct {
	repo   Repository
	labels LabelSource
	cache  Cache
	cfg    Config
	guard  *Guard[DashboardResult]
	now    func() time.Time
}

// NewService creates a new transactions service. cache may be nil.
func NewService(repo Repository, labels LabelSource, cache Cache, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = pagination.DefaultPageSize
	}
	if cfg.DashboardDays < 1 {
		cfg.DashboardDays = dashboard.DefaultDays
	}
	if cfg.DashboardTop < 1 {
		cfg.DashboardTop = dashboard.DefaultTopK
	}
	if cfg.DashboardRecent < 1 {
		cfg.DashboardRecent = dashboard.DefaultRecentK
	}

	return &Service{
		repo:   repo,
		labels: labels,
		cache:  cache,
		cfg:    cfg,
		guard:  NewGuard[DashboardResult](),
		now:    time.Now,
	}
}

// Location is the time zone calendar days are evaluated in.
func (s *Service) Location() *time.Location {
	return s.cfg.Location
}

// List returns one page of transactions matching f, newest first.
func (s *Service) List(ctx context.Context, f filter.Filter, page, pageSize int) (ListResult, error) {
	if pageSize < 1 {
		pageSize = s.cfg.PageSize
	}

	txs, label, truncated, err := s.collect(ctx, f)
	if err != nil {
		return ListResult{}, err
	}

	rows := make([]Row, len(txs))
	for i, tx := range txs {
		rows[i] = Row{Transaction: tx, ApplicationName: label(tx.ApplicationID)}
	}

	return ListResult{
		Page:      pagination.Paginate(rows, page, pageSize),
		Truncated: truncated,
	}, nil
}

// Collect returns every transaction matching f, newest first, and the label
// function used to resolve application names.
func (s *Service) Collect(ctx context.Context, f filter.Filter) ([]models.Transaction, filter.Labeler, error) {
	txs, label, _, err := s.collect(ctx, f)
	return txs, label, err
}

// Export renders every transaction matching f in format.
func (s *Service) Export(ctx context.Context, f filter.Filter, format export.Format) ([]byte, int, error) {
	txs, label, err := s.Collect(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	data, err := export.Transactions(txs, format, label, s.cfg.Location)
	if err != nil {
		return nil, 0, err
	}
	return data, len(txs), nil
}

// Dashboard computes the dashboard for the trailing window. A read failure
// falls back to the last good snapshot of the same view, flagged stale.
func (s *Service) Dashboard(ctx context.Context, req DashboardRequest) (DashboardResult, error) {
	if req.Days < 1 {
		req.Days = s.cfg.DashboardDays
	}
	if req.Top < 1 {
		req.Top = s.cfg.DashboardTop
	}

	key := req.key()
	token := s.guard.Begin(key)
	now := s.now()
	current, previous := dashboard.Windows(now, req.Days, s.cfg.Location)

	if s.cache != nil {
		agg, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			logrus.Warnf("Dashboard cache read failed: %v", err)
		} else if ok {
			res := DashboardResult{Aggregate: agg, Window: current, Previous: previous, Cached: true}
			s.guard.Commit(key, token, res)
			return res, nil
		}
	}

	agg, err := s.computeDashboard(ctx, req, current, previous, now)
	if err != nil {
		if last, ok := s.guard.LastGood(key); ok {
			logrus.Warnf("Dashboard refresh failed, serving last good snapshot: %v", err)
			last.Stale = true
			last.Cached = false
			return last, nil
		}
		return DashboardResult{}, err
	}

	res := DashboardResult{Aggregate: agg, Window: current, Previous: previous}
	if !s.guard.Commit(key, token, res) {
		logrus.Debugf("Dashboard result for %s superseded, not committed", key)
		return res, nil
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, agg); err != nil {
			logrus.Warnf("Dashboard cache write failed: %v", err)
		}
	}
	return res, nil
}

func (s *Service) computeDashboard(ctx context.Context, req DashboardRequest, current, previous dashboard.Window, now time.Time) (dashboard.Aggregate, error) {
	var (
		names   map[string]string
		curTxs  []models.Transaction
		prevTxs []models.Transaction
	)

	curFilter := windowFilter(current, req.ApplicationID)
	prevFilter := windowFilter(previous, req.ApplicationID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		names = s.loadLabels(gctx)
		return nil
	})
	g.Go(func() error {
		txs, _, err := s.fetch(gctx, curFilter)
		curTxs = current.Select(txs)
		return err
	})
	g.Go(func() error {
		txs, _, err := s.fetch(gctx, prevFilter)
		prevTxs = previous.Select(txs)
		return err
	})
	if err := g.Wait(); err != nil {
		return dashboard.Aggregate{}, err
	}

	label := labeler(names)
	warnUnknownApplications(curTxs, names)

	return dashboard.Compute(curTxs, prevTxs, dashboard.Options{
		Days:     req.Days,
		TopK:     req.Top,
		RecentK:  s.cfg.DashboardRecent,
		Now:      now,
		Location: s.cfg.Location,
		Label:    label,
	}), nil
}

// collect fetches applications and candidate rows concurrently, then applies
// the full predicate in memory. An applications failure only degrades labels.
func (s *Service) collect(ctx context.Context, f filter.Filter) ([]models.Transaction, filter.Labeler, bool, error) {
	var (
		names     map[string]string
		txs       []models.Transaction
		truncated bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		names = s.loadLabels(gctx)
		return nil
	})
	g.Go(func() error {
		var err error
		txs, truncated, err = s.fetch(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, false, err
	}

	label := labeler(names)
	txs = f.Apply(txs, label, s.cfg.Location)
	dashboard.SortNewestFirst(txs)
	warnUnknownApplications(txs, names)

	return txs, label, truncated, nil
}

// fetch reads the pushed-down candidates and normalizes them. Only the
// status, application and date clauses reach the store; callers narrow the
// result with the full predicate.
func (s *Service) fetch(ctx context.Context, f filter.Filter) ([]models.Transaction, bool, error) {
	c := f.Constraints(s.cfg.Location)
	c.Limit = s.cfg.MaxFetchRows

	raws, total, err := s.repo.ListTransactions(ctx, c)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", models.ErrBackendUnavailable, err)
	}

	truncated := total > len(raws)
	if truncated {
		logrus.WithFields(logrus.Fields{
			"fetched": len(raws),
			"total":   total,
		}).Warn("Transaction fetch truncated")
	}

	return models.NewTransactions(raws, s.cfg.Location), truncated, nil
}

func (s *Service) loadLabels(ctx context.Context) map[string]string {
	names, err := s.labels.Labels(ctx)
	if err != nil {
		logrus.Warnf("Failed to load application names, using fallback labels: %v", err)
		return nil
	}
	return names
}

func windowFilter(w dashboard.Window, applicationID string) filter.Filter {
	f := w.Filter()
	f.ApplicationID = applicationID
	return f
}

func labeler(names map[string]string) filter.Labeler {
	return func(id string) string {
		return models.ApplicationLabel(names, id)
	}
}

func warnUnknownApplications(txs []models.Transaction, names map[string]string) {
	if names == nil {
		return
	}
	seen := make(map[string]bool)
	for _, tx := range txs {
		if tx.ApplicationID == "" || seen[tx.ApplicationID] {
			continue
		}
		seen[tx.ApplicationID] = true
		if _, ok := names[tx.ApplicationID]; !ok {
			logrus.WithField("application_id", tx.ApplicationID).Warn("Transaction references unknown application")
		}
	}
}
