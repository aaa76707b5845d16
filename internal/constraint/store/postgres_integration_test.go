//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"storegate/internal/constraint/models"
	"storegate/pkg/domain"
	"storegate/pkg/platform/sentinel"
	"storegate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	store *Postgres
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	pool := containers.StartPostgres(t)
	s := &PostgresStoreSuite{store: NewPostgres(pool), ctx: context.Background()}
	if err := s.store.EnsureSchema(s.ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	suite.Run(t, s)
}

func (s *PostgresStoreSuite) newConstraint(name string) *models.Constraint {
	two := float64(200)
	return &models.Constraint{
		ID:              domain.ConstraintID(uuid.New()),
		Name:            name,
		IsActive:        true,
		TargetType:      models.TargetShipping,
		TargetMethodIDs: []string{"aramex", "smsa"},
		Conditions: []models.Condition{
			{Type: models.ConditionCartTotal, Value: models.RangeValue{Min: 50, Max: &two}},
			{Type: models.ConditionCoupons, Value: models.CouponsValue{Mode: models.ModeExclude, Coupons: []string{"FREE"}}},
		},
	}
}

func (s *PostgresStoreSuite) TestCreateFindRoundTrip() {
	c := s.newConstraint("round trip")
	s.Require().NoError(s.store.Create(s.ctx, c))

	got, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.Name, got.Name)
	s.Equal(c.TargetMethodIDs, got.TargetMethodIDs)
	s.Require().Len(got.Conditions, 2)
	s.Equal(models.ConditionCartTotal, got.Conditions[0].Type)
	s.Equal(c.Conditions[0].Value, got.Conditions[0].Value)
	s.Equal(int64(1), got.Version)
}

func (s *PostgresStoreSuite) TestOptimisticConcurrency() {
	c := s.newConstraint("versioned")
	s.Require().NoError(s.store.Create(s.ctx, c))

	updated := c.Clone()
	updated.Name = "winner"
	s.Require().NoError(s.store.Update(s.ctx, updated, 1))

	stale := c.Clone()
	stale.Name = "loser"
	s.ErrorIs(s.store.Update(s.ctx, stale, 1), sentinel.ErrConflict)

	ghost := s.newConstraint("ghost")
	s.ErrorIs(s.store.Update(s.ctx, ghost, 1), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDeleteIsIdempotentAtSentinelLevel() {
	c := s.newConstraint("delete me")
	s.Require().NoError(s.store.Create(s.ctx, c))
	s.Require().NoError(s.store.Delete(s.ctx, c.ID))
	s.ErrorIs(s.store.Delete(s.ctx, c.ID), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListOrderingAndActiveFilter() {
	a := s.newConstraint("list-a")
	b := s.newConstraint("list-b")
	b.IsActive = false
	s.Require().NoError(s.store.Create(s.ctx, a))
	s.Require().NoError(s.store.Create(s.ctx, b))

	all, err := s.store.List(s.ctx, models.TargetShipping)
	s.Require().NoError(err)
	names := make([]string, 0, len(all))
	for _, c := range all {
		names = append(names, c.Name)
	}
	s.Contains(names, "list-a")
	s.Contains(names, "list-b")

	active, err := s.store.ListActive(s.ctx, models.TargetShipping)
	s.Require().NoError(err)
	for _, c := range active {
		s.True(c.IsActive)
	}
}
