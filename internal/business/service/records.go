package service

import (
	"context"

	"bizreg/internal/business/controlnumber"
	"bizreg/internal/business/models"
	"bizreg/internal/business/query"
	dErrors "bizreg/pkg/domain-errors"
	"bizreg/pkg/requestcontext"
)

func (s *Service) Get(ctx context.Context, id string) (*models.BusinessRecord, error) {
	bid, err := models.ParseBusinessID(id)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.FindByID(ctx, bid)
	if err != nil {
		return nil, translate(err, "business not found")
	}
	return rec, nil
}

// GetByControlNumber looks a record up by its control number. Malformed
// input is rejected before the store is queried.
func (s *Service) GetByControlNumber(ctx context.Context, controlNumber string) (*models.BusinessRecord, error) {
	if _, _, err := controlnumber.Parse(controlNumber); err != nil {
		return nil, err
	}
	rec, err := s.store.FindByControlNumber(ctx, controlNumber)
	if err != nil {
		return nil, translate(err, "business not found")
	}
	return rec, nil
}

// Update replaces the editable fields of a record. The control number is
// immutable: a request naming a different one is rejected.
func (s *Service) Update(ctx context.Context, id string, reg models.Registration, controlNumber string) (*models.BusinessRecord, error) {
	bid, err := models.ParseBusinessID(id)
	if err != nil {
		return nil, err
	}
	var updated *models.BusinessRecord
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		rec, err := s.store.FindByID(ctx, bid)
		if err != nil {
			return translate(err, "business not found")
		}
		if controlNumber != "" && controlNumber != rec.ControlNumber {
			return dErrors.Validation("controlNumber", "control number cannot be changed")
		}
		if err := rec.ApplyUpdate(reg, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.store.Update(ctx, rec); err != nil {
			return translate(err, "failed to update business")
		}
		updated = rec
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to update business")
	}
	s.logger.InfoContext(ctx, "business updated",
		"request_id", requestcontext.RequestID(ctx),
		"business_id", updated.ID.String(),
	)
	s.invalidate(ctx)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	bid, err := models.ParseBusinessID(id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, bid); err != nil {
		return translate(err, "business not found")
	}
	s.logger.InfoContext(ctx, "business deleted",
		"request_id", requestcontext.RequestID(ctx),
		"business_id", bid.String(),
	)
	s.invalidate(ctx)
	return nil
}

// ListAll returns every record, newest first.
func (s *Service) ListAll(ctx context.Context) ([]*models.BusinessRecord, error) {
	recs, err := s.store.Find(ctx, query.Filter{}, query.DefaultSort, 0, 0)
	if err != nil {
		return nil, translate(err, "failed to list businesses")
	}
	return recs, nil
}
