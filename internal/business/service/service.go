package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"bizreg/internal/business/analysis"
	"bizreg/internal/business/cache"
	"bizreg/internal/business/events"
	"bizreg/internal/business/metrics"
	"bizreg/internal/business/models"
	"bizreg/internal/business/query"
	dErrors "bizreg/pkg/domain-errors"
	"bizreg/pkg/platform/sentinel"
)

// Store persists business records. Implementations return sentinel errors.
type Store interface {
	Insert(ctx context.Context, rec *models.BusinessRecord) error
	FindByID(ctx context.Context, id models.BusinessID) (*models.BusinessRecord, error)
	FindByControlNumber(ctx context.Context, controlNumber string) (*models.BusinessRecord, error)
	Update(ctx context.Context, rec *models.BusinessRecord) error
	Delete(ctx context.Context, id models.BusinessID) error
	Find(ctx context.Context, f query.Filter, sort query.Sort, offset, limit int) ([]*models.BusinessRecord, error)
	Count(ctx context.Context, f query.Filter) (int, error)
	CountBy(ctx context.Context, f query.Filter, key query.GroupKey) (map[string]int, error)
}

// Allocator hands out per-year sequence values. Two calls for the same year
// never return the same value.
type Allocator interface {
	Allocate(ctx context.Context, year int) (int64, error)
}

// TxRunner scopes allocation and insert to one transaction when the backing
// stores share a database.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	PublishRegistered(ctx context.Context, event events.Registered) error
}

type DashboardCache interface {
	Dashboard(ctx context.Context, year int, load cache.Loader) (*analysis.Dashboard, error)
	Invalidate(ctx context.Context) error
}

// Service owns the registration workflow and the read-side queries.
type Service struct {
	store     Store
	allocator Allocator
	engine    *analysis.Engine
	tx        TxRunner
	publisher Publisher
	cache     DashboardCache
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	loc       *time.Location
	backend   string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithDashboardCache(c DashboardCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithTxRunner(r TxRunner) Option {
	return func(s *Service) {
		s.tx = r
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithLocation sets the zone that decides the registration year, the
// current year on the dashboard and day boundaries of date filters.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithBackendName labels allocation metrics.
func WithBackendName(name string) Option {
	return func(s *Service) {
		s.backend = name
	}
}

func New(store Store, allocator Allocator, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("business store is required")
	}
	if allocator == nil {
		return nil, errors.New("sequence allocator is required")
	}
	svc := &Service{
		store:     store,
		allocator: allocator,
		tx:        inlineTx{},
		publisher: events.Nop{},
		cache:     cache.Nop{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("bizreg/business"),
		loc:       time.UTC,
		backend:   "unknown",
	}
	for _, opt := range opts {
		opt(svc)
	}
	engineOpts := []analysis.Option{analysis.WithLocation(svc.loc)}
	if r, ok := svc.tx.(analysis.SnapshotRunner); ok {
		engineOpts = append(engineOpts, analysis.WithSnapshot(r))
	}
	svc.engine = analysis.New(store, engineOpts...)
	return svc, nil
}

// Location is the zone the service resolves years and days in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// inlineTx runs fn without a transaction, for stores with no shared database.
type inlineTx struct{}

func (inlineTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// translate maps store and allocator failures onto domain errors. Errors that
// already carry a domain code pass through.
func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
