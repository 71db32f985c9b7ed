package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"bizreg/internal/business/analysis"
	"bizreg/internal/business/controlnumber"
	"bizreg/internal/business/models"
	"bizreg/internal/business/query"
	"bizreg/pkg/requestcontext"
)

// SearchResult is one page of matching records.
type SearchResult struct {
	Records  []*models.BusinessRecord
	PageInfo query.PageInfo
}

// Search runs a filtered, sorted, paginated query. Total counts every match
// regardless of the page window.
func (s *Service) Search(ctx context.Context, params query.ListParams) (*SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "business.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("sort_by", string(params.Sort.Field)),
		attribute.Int("page", params.Page.Number),
		attribute.Int("limit", params.Page.Limit),
	)

	total, err := s.store.Count(ctx, params.Filter)
	if err != nil {
		span.RecordError(err)
		return nil, translate(err, "failed to count businesses")
	}
	recs, err := s.store.Find(ctx, params.Filter, params.Sort, params.Page.Offset(), params.Page.Limit)
	if err != nil {
		span.RecordError(err)
		return nil, translate(err, "failed to search businesses")
	}
	return &SearchResult{
		Records:  recs,
		PageInfo: query.NewPageInfo(params.Page, total),
	}, nil
}

// SearchByName matches firstname, middlename, lastname or business name.
func (s *Service) SearchByName(ctx context.Context, name string, exact bool) ([]*models.BusinessRecord, error) {
	f, err := query.NameSearch(name, exact)
	if err != nil {
		return nil, err
	}
	return s.findAll(ctx, f)
}

// SearchByAddress matches the address field.
func (s *Service) SearchByAddress(ctx context.Context, address string, exact bool) ([]*models.BusinessRecord, error) {
	f, err := query.AddressSearch(address, exact)
	if err != nil {
		return nil, err
	}
	return s.findAll(ctx, f)
}

func (s *Service) findAll(ctx context.Context, f query.Filter) ([]*models.BusinessRecord, error) {
	recs, err := s.store.Find(ctx, f, query.DefaultSort, 0, 0)
	if err != nil {
		return nil, translate(err, "failed to search businesses")
	}
	return recs, nil
}

// ByYear returns the records and statistics of one control-number year.
// status is optional.
func (s *Service) ByYear(ctx context.Context, year, status string) (*analysis.YearReport, error) {
	y, err := controlnumber.ParseYear(year)
	if err != nil {
		return nil, err
	}
	var st models.Status
	if status != "" {
		if st, err = models.ParseStatus(status); err != nil {
			return nil, err
		}
	}
	report, err := s.engine.ByYear(ctx, y, st)
	if err != nil {
		return nil, translate(err, "failed to load year statistics")
	}
	return report, nil
}

// Dashboard returns the dashboard aggregates, served from the cache when a
// fresh entry for the current year exists.
func (s *Service) Dashboard(ctx context.Context) (*analysis.Dashboard, error) {
	year := requestcontext.Now(ctx).In(s.loc).Year()
	d, err := s.cache.Dashboard(ctx, year, s.engine.Dashboard)
	if err != nil {
		return nil, translate(err, "failed to load dashboard")
	}
	return d, nil
}
