package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bizreg/internal/business/models"
	"bizreg/internal/business/query"
	"bizreg/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func (s *InMemoryStoreSuite) insert(first, business, address, cn string, status models.Status, created time.Time) *models.BusinessRecord {
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

func controlNumbers(recs []*models.BusinessRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ControlNumber
	}
	return out
}

func (s *InMemoryStoreSuite) TestLookup() {
	rec := s.insert("Juan", "Sari-Sari", "Makati", "2025-0001", models.StatusComplete, base)

	s.Run("by id", func() {
		found, err := s.store.FindByID(s.ctx, rec.ID)
		s.Require().NoError(err)
		s.Equal(rec, found)
	})

	s.Run("by control number", func() {
		found, err := s.store.FindByControlNumber(s.ctx, "2025-0001")
		s.Require().NoError(err)
		s.Equal(rec.ID, found.ID)
	})

	s.Run("missing id", func() {
		_, err := s.store.FindByID(s.ctx, models.NewBusinessID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("missing control number", func() {
		_, err := s.store.FindByControlNumber(s.ctx, "2025-9999")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned copies do not alias stored state", func() {
		found, err := s.store.FindByID(s.ctx, rec.ID)
		s.Require().NoError(err)
		found.BusinessName = "mutated"

		again, err := s.store.FindByID(s.ctx, rec.ID)
		s.Require().NoError(err)
		s.Equal("Sari-Sari", again.BusinessName)
	})
}

func (s *InMemoryStoreSuite) TestInsertRejectsDuplicateControlNumber() {
	s.insert("Juan", "Sari-Sari", "Makati", "2025-0001", models.StatusComplete, base)

	dup := &models.BusinessRecord{
		Firstname: "Pedro", Lastname: "Santos", BusinessName: "Bakery", Address: "Pasig",
		Status: models.StatusStep1, ControlNumber: "2025-0001",
	}
	err := s.store.Insert(s.ctx, dup)
	s.ErrorIs(err, sentinel.ErrConflict)

	n, err := s.store.Count(s.ctx, query.Filter{})
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *InMemoryStoreSuite) TestInsertAssignsIDAndTimestamps() {
	rec := &models.BusinessRecord{
		Firstname: "Ana", Lastname: "Reyes", BusinessName: "Laundry", Address: "Taguig",
		Status: models.StatusStep2, ControlNumber: "2025-0002",
	}
	s.Require().NoError(s.store.Insert(s.ctx, rec))
	s.False(rec.ID.IsNil())
	s.False(rec.CreatedAt.IsZero())
	s.Equal(rec.CreatedAt, rec.UpdatedAt)
}

func (s *InMemoryStoreSuite) TestUpdateKeepsImmutableFields() {
	rec := s.insert("Juan", "Sari-Sari", "Makati", "2025-0001", models.StatusStep1, base)

	changed := rec.Clone()
	changed.BusinessName = "Juan's Store"
	changed.Status = models.StatusComplete
	changed.ControlNumber = "2025-0042"
	changed.CreatedAt = base.Add(time.Hour)
	changed.UpdatedAt = base.Add(2 * time.Hour)
	s.Require().NoError(s.store.Update(s.ctx, changed))

	found, err := s.store.FindByID(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal("Juan's Store", found.BusinessName)
	s.Equal(models.StatusComplete, found.Status)
	s.Equal("2025-0001", found.ControlNumber)
	s.Equal(base, found.CreatedAt)
	s.Equal(base.Add(2*time.Hour), found.UpdatedAt)

	s.Run("unknown id", func() {
		err := s.store.Update(s.ctx, &models.BusinessRecord{ID: models.NewBusinessID()})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestDeleteReleasesControlNumberIndex() {
	rec := s.insert("Juan", "Sari-Sari", "Makati", "2025-0001", models.StatusComplete, base)
	s.Require().NoError(s.store.Delete(s.ctx, rec.ID))

	_, err := s.store.FindByControlNumber(s.ctx, "2025-0001")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, rec.ID), sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestFind() {
	s.insert("Juan", "Sari-Sari Store", "Makati", "2024-0001", models.StatusComplete, base.AddDate(-1, 0, 0))
	s.insert("Juana", "Bakery", "Pasig", "2025-0001", models.StatusStep1, base)
	s.insert("Pedro", "Juanito Hardware", "Quezon City", "2025-0002", models.StatusComplete, base)
	s.insert("Maria", "Carinderia", "Makati", "2025-0003", models.StatusStep2, base.Add(time.Hour))

	s.Run("default sort is newest first with ties in insertion order", func() {
		recs, err := s.store.Find(s.ctx, query.Filter{}, query.DefaultSort, 0, 0)
		s.Require().NoError(err)
		s.Equal([]string{"2025-0003", "2025-0001", "2025-0002", "2024-0001"}, controlNumbers(recs))
	})

	s.Run("case-insensitive substring across name fields", func() {
		f := query.Filter{Search: "JUAN", SearchFields: query.NameSearchFields}
		recs, err := s.store.Find(s.ctx, f, query.Sort{Field: query.SortControlNumber}, 0, 0)
		s.Require().NoError(err)
		s.Equal([]string{"2024-0001", "2025-0001", "2025-0002"}, controlNumbers(recs))
	})

	s.Run("exact match is whole-field and case-sensitive", func() {
		f := query.Filter{Search: "Juan", SearchFields: query.NameSearchFields, ExactMatch: true}
		recs, err := s.store.Find(s.ctx, f, query.DefaultSort, 0, 0)
		s.Require().NoError(err)
		s.Equal([]string{"2024-0001"}, controlNumbers(recs))

		f.Search = "juan"
		recs, err = s.store.Find(s.ctx, f, query.DefaultSort, 0, 0)
		s.Require().NoError(err)
		s.Empty(recs)
	})

	s.Run("year and status combine", func() {
		f := query.Filter{Year: 2025, Status: models.StatusComplete}
		recs, err := s.store.Find(s.ctx, f, query.DefaultSort, 0, 0)
		s.Require().NoError(err)
		s.Equal([]string{"2025-0002"}, controlNumbers(recs))
	})

	s.Run("offset and limit window", func() {
		sort := query.Sort{Field: query.SortControlNumber}
		recs, err := s.store.Find(s.ctx, query.Filter{}, sort, 1, 2)
		s.Require().NoError(err)
		s.Equal([]string{"2025-0001", "2025-0002"}, controlNumbers(recs))

		recs, err = s.store.Find(s.ctx, query.Filter{}, sort, 10, 2)
		s.Require().NoError(err)
		s.NotNil(recs)
		s.Empty(recs)
	})
}

func (s *InMemoryStoreSuite) TestCountBy() {
	s.insert("Juan", "A", "Makati", "2024-0001", models.StatusComplete, base)
	s.insert("Juana", "B", "Pasig", "2025-0001", models.StatusStep1, base)
	s.insert("Pedro", "C", "Makati", "2025-0002", models.StatusComplete, base)

	byStatus, err := s.store.CountBy(s.ctx, query.Filter{}, query.GroupStatus)
	s.Require().NoError(err)
	s.Equal(map[string]int{"complete": 2, "step1": 1}, byStatus)

	byYear, err := s.store.CountBy(s.ctx, query.Filter{Search: "makati", SearchFields: query.AddressSearchFields}, query.GroupYear)
	s.Require().NoError(err)
	s.Equal(map[string]int{"2024": 1, "2025": 1}, byYear)

	total, err := s.store.Count(s.ctx, query.Filter{})
	s.Require().NoError(err)
	sum := 0
	for _, n := range byStatus {
		sum += n
	}
	s.Equal(total, sum)
}
