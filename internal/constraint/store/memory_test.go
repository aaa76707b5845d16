package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"storegate/internal/constraint/models"
	"storegate/pkg/domain"
	"storegate/pkg/platform/sentinel"
	"storegate/pkg/requestcontext"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Memory
	ctx   context.Context
	now   time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *MemoryStoreSuite) newConstraint(name string, tt models.TargetType) *models.Constraint {
	return &models.Constraint{
		ID:              domain.ConstraintID(uuid.New()),
		Name:            name,
		IsActive:        true,
		TargetType:      tt,
		TargetMethodIDs: []string{"aramex"},
		Conditions: []models.Condition{
			{Type: models.ConditionCartTotal, Value: models.RangeValue{Min: 10}},
		},
	}
}

func (s *MemoryStoreSuite) TestCreateAndFind() {
	c := s.newConstraint("first", models.TargetShipping)
	s.Require().NoError(s.store.Create(s.ctx, c))
	s.Equal(int64(1), c.Version)
	s.Equal(s.now, c.CreatedAt)

	got, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.Name, got.Name)
	s.Equal(int64(1), got.Version)
}

func (s *MemoryStoreSuite) TestCreateDuplicateID() {
	c := s.newConstraint("first", models.TargetShipping)
	s.Require().NoError(s.store.Create(s.ctx, c))
	s.ErrorIs(s.store.Create(s.ctx, c), sentinel.ErrAlreadyExists)
}

func (s *MemoryStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(s.ctx, domain.ConstraintID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestUpdateBumpsVersion() {
	c := s.newConstraint("first", models.TargetShipping)
	s.Require().NoError(s.store.Create(s.ctx, c))

	updated := c.Clone()
	updated.Name = "renamed"
	s.Require().NoError(s.store.Update(s.ctx, updated, 1))
	s.Equal(int64(2), updated.Version)

	got, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal("renamed", got.Name)
	s.Equal(int64(2), got.Version)
	s.Equal(s.now, got.CreatedAt)
}

func (s *MemoryStoreSuite) TestUpdateStaleVersion() {
	c := s.newConstraint("first", models.TargetShipping)
	s.Require().NoError(s.store.Create(s.ctx, c))
	s.Require().NoError(s.store.Update(s.ctx, c.Clone(), 1))

	stale := c.Clone()
	stale.Name = "lost race"
	s.ErrorIs(s.store.Update(s.ctx, stale, 1), sentinel.ErrConflict)
}

func (s *MemoryStoreSuite) TestUpdateMissing() {
	c := s.newConstraint("ghost", models.TargetShipping)
	s.ErrorIs(s.store.Update(s.ctx, c, 1), sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestDelete() {
	c := s.newConstraint("doomed", models.TargetShipping)
	s.Require().NoError(s.store.Create(s.ctx, c))
	s.Require().NoError(s.store.Delete(s.ctx, c.ID))

	s.ErrorIs(s.store.Delete(s.ctx, c.ID), sentinel.ErrNotFound)
	_, err := s.store.FindByID(s.ctx, c.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestListPreservesCreationOrder() {
	names := []string{"alpha", "beta", "gamma"}
	for _, name := range names {
		s.Require().NoError(s.store.Create(s.ctx, s.newConstraint(name, models.TargetShipping)))
	}

	listed, err := s.store.List(s.ctx, models.TargetShipping)
	s.Require().NoError(err)
	s.Require().Len(listed, 3)
	for i, name := range names {
		s.Equal(name, listed[i].Name)
	}
}

func (s *MemoryStoreSuite) TestListScopedByTargetType() {
	s.Require().NoError(s.store.Create(s.ctx, s.newConstraint("ship", models.TargetShipping)))
	pay := s.newConstraint("pay", models.TargetPayment)
	s.Require().NoError(s.store.Create(s.ctx, pay))

	listed, err := s.store.List(s.ctx, models.TargetPayment)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal("pay", listed[0].Name)
}

func (s *MemoryStoreSuite) TestListActiveSkipsInactive() {
	active := s.newConstraint("active", models.TargetShipping)
	inactive := s.newConstraint("inactive", models.TargetShipping)
	inactive.IsActive = false
	s.Require().NoError(s.store.Create(s.ctx, active))
	s.Require().NoError(s.store.Create(s.ctx, inactive))

	listed, err := s.store.ListActive(s.ctx, models.TargetShipping)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal("active", listed[0].Name)

	all, err := s.store.List(s.ctx, models.TargetShipping)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *MemoryStoreSuite) TestSnapshotsAreIsolated() {
	c := s.newConstraint("isolated", models.TargetShipping)
	s.Require().NoError(s.store.Create(s.ctx, c))

	got, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	got.TargetMethodIDs[0] = "mutated"

	again, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal("aramex", again.TargetMethodIDs[0])
}
