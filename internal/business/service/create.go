package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"bizreg/internal/business/controlnumber"
	"bizreg/internal/business/events"
	"bizreg/internal/business/models"
	dErrors "bizreg/pkg/domain-errors"
	"bizreg/pkg/platform/sentinel"
	"bizreg/pkg/requestcontext"
)

// Create registers a business. Allocation and insert form one unit: no
// record is stored without a successfully allocated sequence, and a failure
// after allocation leaves a gap rather than re-allocating.
func (s *Service) Create(ctx context.Context, reg models.Registration) (*models.BusinessRecord, error) {
	ctx, span := s.tracer.Start(ctx, "business.Create")
	defer span.End()

	reg.Normalize()
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	year := now.In(s.loc).Year()
	span.SetAttributes(attribute.Int("year", year))

	var rec *models.BusinessRecord
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		seq, err := s.allocate(ctx, year)
		if err != nil {
			return err
		}
		rec, err = models.NewBusinessRecord(models.NewBusinessID(), reg, controlnumber.Format(year, seq), now)
		if err != nil {
			return err
		}
		if err := s.store.Insert(ctx, rec); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				s.metrics.IncrementConflict()
				s.logger.ErrorContext(ctx, "control number already taken; sequence allocator returned a duplicate",
					"request_id", requestcontext.RequestID(ctx),
					"control_number", rec.ControlNumber,
					"backend", s.backend,
					"error", err,
				)
				return dErrors.Wrap(err, dErrors.CodeInternal, "control number allocation conflict")
			}
			s.logger.ErrorContext(ctx, "failed to insert business",
				"request_id", requestcontext.RequestID(ctx),
				"control_number", rec.ControlNumber,
				"error", err,
			)
			return translate(err, "failed to save business")
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, translate(err, "failed to save business")
	}

	span.SetAttributes(attribute.String("control_number", rec.ControlNumber))
	s.metrics.IncrementRegistration(string(rec.Status))
	s.logger.InfoContext(ctx, "business registered",
		"request_id", requestcontext.RequestID(ctx),
		"business_id", rec.ID.String(),
		"control_number", rec.ControlNumber,
	)
	s.afterWrite(ctx, rec)
	return rec, nil
}

func (s *Service) allocate(ctx context.Context, year int) (int64, error) {
	start := time.Now()
	seq, err := s.allocator.Allocate(ctx, year)
	s.metrics.ObserveAllocate(s.backend, time.Since(start), err)
	if err != nil {
		s.logger.ErrorContext(ctx, "sequence allocation failed",
			"request_id", requestcontext.RequestID(ctx),
			"year", year,
			"backend", s.backend,
			"error", err,
		)
		return 0, translate(err, "control number could not be allocated")
	}
	return seq, nil
}

// afterWrite publishes the registration event and drops the cached
// dashboard. Both are best-effort.
func (s *Service) afterWrite(ctx context.Context, rec *models.BusinessRecord) {
	if err := s.publisher.PublishRegistered(ctx, events.NewRegistered(ctx, rec)); err != nil {
		s.metrics.IncrementPublishFailure()
		s.logger.WarnContext(ctx, "failed to publish registration event",
			"request_id", requestcontext.RequestID(ctx),
			"control_number", rec.ControlNumber,
			"error", err,
		)
	}
	s.invalidate(ctx)
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate dashboard cache",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}
