package dashboard

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mpesa-console/internal/models"
)

// Defaults used when Options leaves a field at zero.
const (
	DefaultDays    = 7
	DefaultTopK    = 5
	DefaultRecentK = 5
)

const dayLayout = "2006-01-02"

// Options parameterise Aggregate.
type Options struct {
	Days     int
	TopK     int
	RecentK  int
	Now      time.Time
	Location *time.Location
	Label    func(applicationID string) string
}

func (o Options) withDefaults() Options {
	if o.Days < 1 {
		o.Days = DefaultDays
	}
	if o.TopK < 1 {
		o.TopK = DefaultTopK
	}
	if o.RecentK < 1 {
		o.RecentK = DefaultRecentK
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Label == nil {
		o.Label = func(id string) string { return models.ApplicationLabel(nil, id) }
	}
	return o
}

// StatusCounts holds one counter per canonical status.
type StatusCounts struct {
	Pending    int `json:"pending"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Processing int `json:"processing"`
}

func (c *StatusCounts) add(s models.TransactionStatus) {
	switch s {
	case models.StatusCompleted:
		c.Completed++
	case models.StatusFailed:
		c.Failed++
	case models.StatusProcessing:
		c.Processing++
	default:
		c.Pending++
	}
}

// StatusRates holds per-status percentages of the total.
type StatusRates struct {
	Pending    float64 `json:"pending"`
	Completed  float64 `json:"completed"`
	Failed     float64 `json:"failed"`
	Processing float64 `json:"processing"`
}

// DailyStat is one calendar-day bucket.
type DailyStat struct {
	Date   string          `json:"date"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// ApplicationStat is one row of the top applications ranking.
type ApplicationStat struct {
	ApplicationID string          `json:"application_id"`
	Name          string          `json:"name"`
	Count         int             `json:"count"`
	Amount        decimal.Decimal `json:"amount"`
}

// Trends compares the scalar metrics of both windows.
type Trends struct {
	Transactions Trend `json:"transactions"`
	Amount       Trend `json:"amount"`
	SuccessRate  Trend `json:"success_rate"`
	Completed    Trend `json:"completed"`
	Failed       Trend `json:"failed"`
	Pending      Trend `json:"pending"`
	Processing   Trend `json:"processing"`
}

// Aggregate is a dashboard snapshot.
type Aggregate struct {
	TotalTransactions int                  `json:"total_transactions"`
	TotalAmount       decimal.Decimal      `json:"total_amount"`
	StatusCounts      StatusCounts         `json:"status_counts"`
	StatusRates       StatusRates          `json:"status_rates"`
	SuccessRate       float64              `json:"success_rate"`
	Daily             []DailyStat          `json:"daily"`
	TopApplications   []ApplicationStat    `json:"top_applications"`
	Recent            []models.Transaction `json:"recent"`
	Trends            Trends               `json:"trends"`
	GeneratedAt       time.Time            `json:"generated_at"`
}

type summary struct {
	count       int
	amount      decimal.Decimal
	statuses    StatusCounts
	successRate float64
}

func summarize(txs []models.Transaction) summary {
	s := summary{amount: decimal.Zero}
	for _, tx := range txs {
		s.count++
		s.amount = s.amount.Add(tx.Amount)
		s.statuses.add(tx.Status)
	}
	s.successRate = percent(s.statuses.Completed, s.count)
	return s
}

// Compute builds the dashboard snapshot for the current window, using the
// previous window only for trends. Neither slice is modified.
func Compute(current, previous []models.Transaction, opts Options) Aggregate {
	opts = opts.withDefaults()

	cur := summarize(current)
	prev := summarize(previous)

	return Aggregate{
		TotalTransactions: cur.count,
		TotalAmount:       cur.amount,
		StatusCounts:      cur.statuses,
		StatusRates: StatusRates{
			Pending:    percent(cur.statuses.Pending, cur.count),
			Completed:  percent(cur.statuses.Completed, cur.count),
			Failed:     percent(cur.statuses.Failed, cur.count),
			Processing: percent(cur.statuses.Processing, cur.count),
		},
		SuccessRate:     cur.successRate,
		Daily:           DailyBuckets(current, opts.Days, opts.Now, opts.Location),
		TopApplications: TopApplications(current, opts.TopK, opts.Label),
		Recent:          Recent(current, opts.RecentK),
		Trends: Trends{
			Transactions: CountTrend(cur.count, prev.count),
			Amount:       ComputeTrend(cur.amount, prev.amount),
			SuccessRate:  RateTrend(cur.successRate, prev.successRate),
			Completed:    CountTrend(cur.statuses.Completed, prev.statuses.Completed),
			Failed:       CountTrend(cur.statuses.Failed, prev.statuses.Failed),
			Pending:      CountTrend(cur.statuses.Pending, prev.statuses.Pending),
			Processing:   CountTrend(cur.statuses.Processing, prev.statuses.Processing),
		},
		GeneratedAt: opts.Now,
	}
}

// DailyBuckets groups transactions by local calendar day over the trailing
// days ending on now's day. Every day gets a bucket, oldest first.
// Transactions without a resolvable instant are skipped.
func DailyBuckets(txs []models.Transaction, days int, now time.Time, loc *time.Location) []DailyStat {
	if days < 1 {
		days = DefaultDays
	}
	if loc == nil {
		loc = time.Local
	}

	n := now.In(loc)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)

	buckets := make([]DailyStat, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		key := today.AddDate(0, 0, i-(days-1)).Format(dayLayout)
		buckets[i] = DailyStat{Date: key, Amount: decimal.Zero}
		index[key] = i
	}

	for _, tx := range txs {
		if tx.Instant == nil {
			continue
		}
		i, ok := index[tx.Instant.In(loc).Format(dayLayout)]
		if !ok {
			continue
		}
		buckets[i].Count++
		buckets[i].Amount = buckets[i].Amount.Add(tx.Amount)
	}

	return buckets
}

// TopApplications ranks owning applications by transaction count. Ties keep
// first-seen order.
func TopApplications(txs []models.Transaction, k int, label func(string) string) []ApplicationStat {
	if k < 1 {
		k = DefaultTopK
	}

	stats := make([]ApplicationStat, 0)
	index := make(map[string]int)
	for _, tx := range txs {
		i, ok := index[tx.ApplicationID]
		if !ok {
			i = len(stats)
			index[tx.ApplicationID] = i
			stats = append(stats, ApplicationStat{ApplicationID: tx.ApplicationID, Amount: decimal.Zero})
		}
		stats[i].Count++
		stats[i].Amount = stats[i].Amount.Add(tx.Amount)
	}

	sort.SliceStable(stats, func(a, b int) bool {
		return stats[a].Count > stats[b].Count
	})

	if len(stats) > k {
		stats = stats[:k]
	}
	for i := range stats {
		if label != nil {
			stats[i].Name = label(stats[i].ApplicationID)
		} else {
			stats[i].Name = models.ApplicationLabel(nil, stats[i].ApplicationID)
		}
	}
	return stats
}

// Recent returns the k newest transactions. Unknown instants sort last.
func Recent(txs []models.Transaction, k int) []models.Transaction {
	if k < 1 {
		k = DefaultRecentK
	}

	out := make([]models.Transaction, len(txs))
	copy(out, txs)
	SortNewestFirst(out)

	if len(out) > k {
		out = out[:k]
	}
	return out
}

// SortNewestFirst orders transactions by instant descending in place, stable,
// with unresolved instants at the end.
func SortNewestFirst(txs []models.Transaction) {
	sort.SliceStable(txs, func(a, b int) bool {
		ia, ib := txs[a].Instant, txs[b].Instant
		switch {
		case ia == nil:
			return false
		case ib == nil:
			return true
		default:
			return ia.After(*ib)
		}
	})
}
