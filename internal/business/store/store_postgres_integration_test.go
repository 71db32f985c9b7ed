//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bizreg/internal/business/models"
	"bizreg/internal/business/query"
	"bizreg/internal/business/store"
	"bizreg/pkg/platform/sentinel"
	"bizreg/pkg/platform/tx"
	"bizreg/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	ctx      context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "businesses", "year_counters"))
}

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func (s *PostgresStoreSuite) insert(first, business, address, cn string, status models.Status, created time.Time) *models.BusinessRecord {
	rec := &models.BusinessRecord{
		ID:            models.NewBusinessID(),
		Firstname:     first,
		Lastname:      "Dela Cruz",
		BusinessName:  business,
		Address:       address,
		Status:        status,
		ControlNumber: cn,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	s.Require().NoError(s.store.Insert(s.ctx, rec))
	return rec
}

func cns(recs []*models.BusinessRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ControlNumber
	}
	return out
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	rec := s.insert("Juan", "Sari-Sari", "Makati", "2025-0001", models.StatusStep2, t0)

	found, err := s.store.FindByID(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(rec.ID, found.ID)
	s.Equal("Sari-Sari", found.BusinessName)
	s.Equal(models.StatusStep2, found.Status)
	s.True(rec.CreatedAt.Equal(found.CreatedAt))

	byCN, err := s.store.FindByControlNumber(s.ctx, "2025-0001")
	s.Require().NoError(err)
	s.Equal(rec.ID, byCN.ID)

	_, err = s.store.FindByID(s.ctx, models.NewBusinessID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDuplicateControlNumberIsConflict() {
	s.insert("Juan", "Sari-Sari", "Makati", "2025-0001", models.StatusComplete, t0)

	err := s.store.Insert(s.ctx, &models.BusinessRecord{
		Firstname: "Pedro", Lastname: "Santos", BusinessName: "Bakery", Address: "Pasig",
		Status: models.StatusStep1, ControlNumber: "2025-0001", CreatedAt: t0,
	})
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestUpdateAndDelete() {
	rec := s.insert("Juan", "Sari-Sari", "Makati", "2025-0001", models.StatusStep1, t0)

	rec.BusinessName = "Juan's Store"
	rec.Status = models.StatusComplete
	rec.UpdatedAt = t0.Add(time.Hour)
	s.Require().NoError(s.store.Update(s.ctx, rec))

	found, err := s.store.FindByID(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal("Juan's Store", found.BusinessName)
	s.Equal("2025-0001", found.ControlNumber)
	s.True(t0.Equal(found.CreatedAt))

	s.Require().NoError(s.store.Delete(s.ctx, rec.ID))
	s.ErrorIs(s.store.Delete(s.ctx, rec.ID), sentinel.ErrNotFound)
	s.ErrorIs(s.store.Update(s.ctx, rec), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestFindMatchesInMemorySemantics() {
	s.insert("Juan", "Sari-Sari Store", "Makati", "2024-0001", models.StatusComplete, t0.AddDate(-1, 0, 0))
	s.insert("Juana", "Bakery", "Pasig", "2025-0001", models.StatusStep1, t0)
	s.insert("Pedro", "Juanito Hardware", "Quezon City", "2025-0002", models.StatusComplete, t0)
	s.insert("Maria", "100% Carinderia_", "Makati", "2025-10000", models.StatusStep2, t0.Add(time.Hour))
	s.insert("Lito", "Vulcanizing", "Pasay", "2025-9999", models.StatusStep2, t0.Add(2*time.Hour))

	s.Run("newest first with ties in insertion order", func() {
		recs, err := s.store.Find(s.ctx, query.Filter{}, query.DefaultSort, 0, 0)
		s.Require().NoError(err)
		s.Equal([]string{"2025-9999", "2025-10000", "2025-0001", "2025-0002", "2024-0001"}, cns(recs))
	})

	s.Run("control numbers sort numerically within a year", func() {
		recs, err := s.store.Find(s.ctx, query.Filter{Year: 2025}, query.Sort{Field: query.SortControlNumber}, 0, 0)
		s.Require().NoError(err)
		s.Equal([]string{"2025-0001", "2025-0002", "2025-9999", "2025-10000"}, cns(recs))
	})

	s.Run("substring search treats pattern characters literally", func() {
		recs, err := s.store.Find(s.ctx, query.Filter{Search: "100%"}, query.DefaultSort, 0, 0)
		s.Require().NoError(err)
		s.Equal([]string{"2025-10000"}, cns(recs))

		recs, err = s.store.Find(s.ctx, query.Filter{Search: "_"}, query.DefaultSort, 0, 0)
		s.Require().NoError(err)
		s.Equal([]string{"2025-10000"}, cns(recs))
	})

	s.Run("name search is case-insensitive", func() {
		f := query.Filter{Search: "JUAN", SearchFields: query.NameSearchFields}
		recs, err := s.store.Find(s.ctx, f, query.Sort{Field: query.SortControlNumber}, 0, 0)
		s.Require().NoError(err)
		s.Equal([]string{"2024-0001", "2025-0001", "2025-0002"}, cns(recs))
	})

	s.Run("date range and status", func() {
		from := t0.Add(-time.Minute)
		to := t0.Add(90 * time.Minute)
		f := query.Filter{CreatedFrom: &from, CreatedTo: &to, Status: models.StatusStep2}
		recs, err := s.store.Find(s.ctx, f, query.DefaultSort, 0, 0)
		s.Require().NoError(err)
		s.Equal([]string{"2025-10000"}, cns(recs))
	})

	s.Run("window and counts", func() {
		recs, err := s.store.Find(s.ctx, query.Filter{}, query.Sort{Field: query.SortControlNumber}, 1, 2)
		s.Require().NoError(err)
		s.Equal([]string{"2025-0001", "2025-0002"}, cns(recs))

		n, err := s.store.Count(s.ctx, query.Filter{Year: 2025})
		s.Require().NoError(err)
		s.Equal(4, n)

		byYear, err := s.store.CountBy(s.ctx, query.Filter{}, query.GroupYear)
		s.Require().NoError(err)
		s.Equal(map[string]int{"2024": 1, "2025": 4}, byYear)

		byStatus, err := s.store.CountBy(s.ctx, query.Filter{Year: 2025}, query.GroupStatus)
		s.Require().NoError(err)
		s.Equal(map[string]int{"step1": 1, "complete": 1, "step2": 2}, byStatus)
	})
}

func (s *PostgresStoreSuite) TestInsertRollsBackWithTransaction() {
	runner := tx.NewRunner(s.postgres.DB)
	err := runner.RunInTx(s.ctx, func(ctx context.Context) error {
		rec := &models.BusinessRecord{
			Firstname: "Juan", Lastname: "Dela Cruz", BusinessName: "Sari-Sari", Address: "Makati",
			Status: models.StatusComplete, ControlNumber: "2025-0001", CreatedAt: t0,
		}
		if err := s.store.Insert(ctx, rec); err != nil {
			return err
		}
		return sentinel.ErrUnavailable
	})
	s.ErrorIs(err, sentinel.ErrUnavailable)

	n, err := s.store.Count(s.ctx, query.Filter{})
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *PostgresStoreSuite) TestReadOnlySnapshotIgnoresConcurrentCommits() {
	s.insert("Juan", "Sari-Sari", "Makati", "2025-0001", models.StatusComplete, t0)
	runner := tx.NewRunner(s.postgres.DB)

	err := runner.RunReadOnly(s.ctx, func(ctx context.Context) error {
		before, err := s.store.CountBy(ctx, query.Filter{}, query.GroupStatus)
		s.Require().NoError(err)
		s.Equal(map[string]int{"complete": 1}, before)

		// Committed on another connection while the snapshot is open.
		s.insert("Maria", "Bakery", "Pasig", "2025-0002", models.StatusStep1, t0)

		after, err := s.store.CountBy(ctx, query.Filter{}, query.GroupStatus)
		s.Require().NoError(err)
		s.Equal(before, after)

		recs, err := s.store.Find(ctx, query.Filter{}, query.DefaultSort, 0, 0)
		s.Require().NoError(err)
		s.Len(recs, 1)

		return nil
	})
	s.Require().NoError(err)

	count, err := s.store.Count(s.ctx, query.Filter{})
	s.Require().NoError(err)
	s.Equal(2, count)
}
