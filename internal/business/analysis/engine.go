// Package analysis computes the read-only statistics behind the dashboard
// and the by-year view. Every figure is a point-in-time snapshot of the
// record store; nothing here mutates state or reads the sequence counters.
package analysis

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"bizreg/internal/business/models"
	"bizreg/internal/business/query"
	"bizreg/pkg/requestcontext"
)

const (
	// RecentLimit is how many records the dashboard lists as recent.
	RecentLimit = 5
	// TrendWindow is the number of trailing years in the yearly trend.
	TrendWindow = 6
)

var tracer = otel.Tracer("bizreg/analysis")

// RecordReader is the read side of the record store.
type RecordReader interface {
	Find(ctx context.Context, f query.Filter, sort query.Sort, offset, limit int) ([]*models.BusinessRecord, error)
	CountBy(ctx context.Context, f query.Filter, key query.GroupKey) (map[string]int, error)
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// Dashboard is the aggregate shown on the admin landing page.
type Dashboard struct {
	TotalBusinesses       int              `json:"totalBusinesses"`
	CurrentYearBusinesses int              `json:"currentYearBusinesses"`
	StatusDistribution    []StatusCount    `json:"statusDistribution"`
	YearlyDistribution    []YearCount      `json:"yearlyDistribution"`
	YearlyTrend           []YearCount      `json:"yearlyTrend"`
	RecentBusinesses      []models.Summary `json:"recentBusinesses"`
}

// YearStatistics summarizes the records of one control-number year.
// MonthlyData is keyed 1..12 by the month of CreatedAt, which can differ
// from the control-number year for records created around New Year.
type YearStatistics struct {
	Total        int            `json:"total"`
	StatusCounts map[string]int `json:"statusCounts"`
	MonthlyData  map[int]int    `json:"monthlyData"`
}

// YearReport is the by-year view.
type YearReport struct {
	Year       int                      `json:"year"`
	Records    []*models.BusinessRecord `json:"data"`
	Statistics YearStatistics           `json:"statistics"`
}

// SnapshotRunner runs fn against one consistent read view of the store.
type SnapshotRunner interface {
	RunReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// Engine computes aggregates over a RecordReader.
type Engine struct {
	reader   RecordReader
	snapshot SnapshotRunner
	loc      *time.Location
}

type Option func(*Engine)

// WithLocation sets the zone used to derive the current year and months.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithSnapshot makes Dashboard read through one read-only transaction.
func WithSnapshot(r SnapshotRunner) Option {
	return func(e *Engine) {
		e.snapshot = r
	}
}

func New(reader RecordReader, opts ...Option) *Engine {
	e := &Engine{reader: reader, loc: time.UTC}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dashboard gathers the dashboard figures. Totals are derived from the
// grouped counts, so the status histogram always sums to the total. With a
// snapshot runner every read shares one read-only transaction; without one
// the reads run concurrently and the first failure cancels the rest.
func (e *Engine) Dashboard(ctx context.Context) (*Dashboard, error) {
	ctx, span := tracer.Start(ctx, "analysis.Dashboard")
	defer span.End()

	currentYear := requestcontext.Now(ctx).In(e.loc).Year()
	span.SetAttributes(attribute.Int("current_year", currentYear))

	var (
		out      Dashboard
		byStatus map[string]int
		byYear   map[string]int
		recent   []*models.BusinessRecord
	)
	reads := []func(ctx context.Context) error{
		func(ctx context.Context) (err error) {
			byStatus, err = e.reader.CountBy(ctx, query.Filter{}, query.GroupStatus)
			return err
		},
		func(ctx context.Context) (err error) {
			byYear, err = e.reader.CountBy(ctx, query.Filter{}, query.GroupYear)
			return err
		},
		func(ctx context.Context) (err error) {
			recent, err = e.reader.Find(ctx, query.Filter{}, query.DefaultSort, 0, RecentLimit)
			return err
		},
	}
	if err := e.runReads(ctx, reads); err != nil {
		span.RecordError(err)
		return nil, err
	}

	for _, n := range byStatus {
		out.TotalBusinesses += n
	}
	out.CurrentYearBusinesses = byYear[fmt.Sprintf("%04d", currentYear)]
	out.StatusDistribution = StatusDistribution(byStatus)
	out.YearlyDistribution = YearlyDistribution(byYear)
	out.YearlyTrend = BackfillYears(out.YearlyDistribution, currentYear, TrendWindow)
	out.RecentBusinesses = make([]models.Summary, len(recent))
	for i, r := range recent {
		out.RecentBusinesses[i] = r.Summarize()
	}
	return &out, nil
}

func (e *Engine) runReads(ctx context.Context, reads []func(ctx context.Context) error) error {
	if e.snapshot != nil {
		// One transaction holds one connection, so reads run in sequence.
		return e.snapshot.RunReadOnly(ctx, func(ctx context.Context) error {
			for _, read := range reads {
				if err := read(ctx); err != nil {
					return err
				}
			}
			return nil
		})
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, read := range reads {
		g.Go(func() error { return read(gctx) })
	}
	return g.Wait()
}

// ByYear returns the records of year ordered by control number, optionally
// narrowed to one status, with their statistics. Statistics are computed from
// the same result set so they always agree with it.
func (e *Engine) ByYear(ctx context.Context, year int, status models.Status) (*YearReport, error) {
	ctx, span := tracer.Start(ctx, "analysis.ByYear")
	defer span.End()
	span.SetAttributes(attribute.Int("year", year), attribute.String("status", string(status)))

	f := query.Filter{Year: year, Status: status}
	records, err := e.reader.Find(ctx, f, query.Sort{Field: query.SortControlNumber}, 0, 0)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	stats := YearStatistics{
		Total:        len(records),
		StatusCounts: make(map[string]int),
		MonthlyData:  make(map[int]int, 12),
	}
	for m := 1; m <= 12; m++ {
		stats.MonthlyData[m] = 0
	}
	for _, r := range records {
		stats.StatusCounts[string(r.Status)]++
		stats.MonthlyData[int(r.CreatedAt.In(e.loc).Month())]++
	}
	return &YearReport{Year: year, Records: records, Statistics: stats}, nil
}

// StatusDistribution orders grouped status counts by count descending, then
// by status name.
func StatusDistribution(counts map[string]int) []StatusCount {
	out := make([]StatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, StatusCount{Status: status, Count: n})
	}
	slices.SortFunc(out, func(a, b StatusCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Status, b.Status)
	})
	return out
}

// YearlyDistribution converts grouped year-prefix counts into a list ordered
// by year descending. Keys that are not years are dropped.
func YearlyDistribution(counts map[string]int) []YearCount {
	out := make([]YearCount, 0, len(counts))
	for key, n := range counts {
		year, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		out = append(out, YearCount{Year: year, Count: n})
	}
	slices.SortFunc(out, func(a, b YearCount) int {
		return cmp.Compare(b.Year, a.Year)
	})
	return out
}

// BackfillYears returns window consecutive years ending at endYear in
// ascending order, taking counts from dist and zero-filling the rest.
func BackfillYears(dist []YearCount, endYear, window int) []YearCount {
	if window <= 0 {
		return []YearCount{}
	}
	counts := make(map[int]int, len(dist))
	for _, yc := range dist {
		counts[yc.Year] += yc.Count
	}
	start := max(endYear-window+1, 1)
	out := make([]YearCount, 0, window)
	for y := start; y <= endYear; y++ {
		out = append(out, YearCount{Year: y, Count: counts[y]})
	}
	return out
}
