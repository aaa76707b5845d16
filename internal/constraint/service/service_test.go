package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"storegate/internal/constraint/models"
	"storegate/internal/constraint/service/mocks"
	"storegate/pkg/domain"
	dErrors "storegate/pkg/domain-errors"
	"storegate/pkg/platform/audit"
	"storegate/pkg/platform/sentinel"
)

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *mocks.MockStore
	refdata *mocks.MockReferenceData
	audit   *mocks.MockAuditPublisher
	svc     *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.refdata = mocks.NewMockReferenceData(s.ctrl)
	s.audit = mocks.NewMockAuditPublisher(s.ctrl)
	s.ctx = context.Background()

	var err error
	s.svc, err = New(s.store,
		WithReferenceData(s.refdata),
		WithAuditPublisher(s.audit),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) validConstraint() *models.Constraint {
	return &models.Constraint{
		Name:            "minimum order",
		IsActive:        true,
		TargetType:      models.TargetShipping,
		TargetMethodIDs: []string{"aramex"},
		Conditions: []models.Condition{
			{Type: models.ConditionCartTotal, Value: models.RangeValue{Min: 100}},
		},
	}
}

func (s *ServiceSuite) TestNewRequiresStore() {
	_, err := New(nil)
	s.Error(err)
}

func (s *ServiceSuite) TestCreateAssignsIDAndAudits() {
	c := s.validConstraint()
	s.store.EXPECT().Create(gomock.Any(), c).Return(nil)
	s.audit.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event audit.Event) error {
			s.Equal(audit.ActionConstraintCreated, event.Action)
			s.NotEmpty(event.ConstraintID)
			return nil
		})

	created, err := s.svc.Create(s.ctx, models.TargetShipping, c)
	s.Require().NoError(err)
	s.False(created.ID.IsNil())
}

func (s *ServiceSuite) TestCreateRejectsInvalid() {
	c := s.validConstraint()
	c.Conditions = nil

	_, err := s.svc.Create(s.ctx, models.TargetShipping, c)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestCreateRejectsTargetTypeMismatch() {
	c := s.validConstraint()

	_, err := s.svc.Create(s.ctx, models.TargetPayment, c)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestCreateRejectsUnknownProduct() {
	c := s.validConstraint()
	c.Conditions = append(c.Conditions, models.Condition{
		Type:  models.ConditionProducts,
		Value: models.ProductsValue{ProductIDs: []int64{404}},
	})
	s.refdata.EXPECT().HasProduct(gomock.Any(), int64(404)).Return(false, nil)

	_, err := s.svc.Create(s.ctx, models.TargetShipping, c)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestCreateToleratesRefDataOutage() {
	c := s.validConstraint()
	c.Conditions = append(c.Conditions, models.Condition{
		Type:  models.ConditionCoupons,
		Value: models.CouponsValue{Mode: models.ModeInclude, Coupons: []string{"SAVE10"}},
	})
	s.refdata.EXPECT().HasCoupon(gomock.Any(), "SAVE10").
		Return(false, context.DeadlineExceeded)
	s.store.EXPECT().Create(gomock.Any(), c).Return(nil)
	s.audit.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.svc.Create(s.ctx, models.TargetShipping, c)
	s.NoError(err)
}

func (s *ServiceSuite) TestUpdateUsesCallerVersion() {
	id := domain.ConstraintID(uuid.New())
	c := s.validConstraint()
	c.Version = 3
	s.store.EXPECT().Update(gomock.Any(), gomock.Any(), int64(3)).Return(nil)
	s.audit.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	updated, err := s.svc.Update(s.ctx, models.TargetShipping, id, c)
	s.Require().NoError(err)
	s.Equal(id, updated.ID)
}

func (s *ServiceSuite) TestUpdateWithoutVersionReadsCurrent() {
	id := domain.ConstraintID(uuid.New())
	current := s.validConstraint()
	current.ID = id
	current.Version = 7
	s.store.EXPECT().FindByID(gomock.Any(), id).Return(current, nil)
	s.store.EXPECT().Update(gomock.Any(), gomock.Any(), int64(7)).Return(nil)
	s.audit.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.svc.Update(s.ctx, models.TargetShipping, id, s.validConstraint())
	s.NoError(err)
}

func (s *ServiceSuite) TestUpdateConflictTranslated() {
	id := domain.ConstraintID(uuid.New())
	c := s.validConstraint()
	c.Version = 1
	s.store.EXPECT().Update(gomock.Any(), gomock.Any(), int64(1)).Return(sentinel.ErrConflict)

	_, err := s.svc.Update(s.ctx, models.TargetShipping, id, c)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestDeleteMissingTranslated() {
	id := domain.ConstraintID(uuid.New())
	s.store.EXPECT().FindByID(gomock.Any(), id).Return(nil, sentinel.ErrNotFound)

	err := s.svc.Delete(s.ctx, models.TargetShipping, id)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestDeleteWrongTargetTypeIsNotFound() {
	id := domain.ConstraintID(uuid.New())
	c := s.validConstraint()
	c.ID = id
	s.store.EXPECT().FindByID(gomock.Any(), id).Return(c, nil)

	err := s.svc.Delete(s.ctx, models.TargetPayment, id)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestDeleteAudits() {
	id := domain.ConstraintID(uuid.New())
	c := s.validConstraint()
	c.ID = id
	s.store.EXPECT().FindByID(gomock.Any(), id).Return(c, nil)
	s.store.EXPECT().Delete(gomock.Any(), id).Return(nil)
	s.audit.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event audit.Event) error {
			s.Equal(audit.ActionConstraintDeleted, event.Action)
			return nil
		})

	s.NoError(s.svc.Delete(s.ctx, models.TargetShipping, id))
}

func (s *ServiceSuite) TestBlockedMethodsAuditsEachBlock() {
	c := s.validConstraint()
	c.ID = domain.ConstraintID(uuid.New())
	s.store.EXPECT().ListActive(gomock.Any(), models.TargetShipping).
		Return([]*models.Constraint{c}, nil)
	s.audit.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event audit.Event) error {
			s.Equal(audit.ActionMethodBlocked, event.Action)
			s.Equal("aramex", event.MethodID)
			return nil
		})

	blocked, err := s.svc.BlockedMethods(s.ctx, models.TargetShipping,
		models.OrderContext{CartTotal: 10})
	s.Require().NoError(err)
	s.Len(blocked["aramex"], 1)
}

func (s *ServiceSuite) TestCheckMethodAllowed() {
	c := s.validConstraint()
	s.store.EXPECT().ListActive(gomock.Any(), models.TargetShipping).
		Return([]*models.Constraint{c}, nil)

	decision, err := s.svc.CheckMethod(s.ctx, models.TargetShipping,
		models.OrderContext{CartTotal: 500}, "aramex")
	s.Require().NoError(err)
	s.True(decision.Allowed)
}

func (s *ServiceSuite) TestNormalizeInjectsTimezone() {
	riyadh, err := time.LoadLocation("Asia/Riyadh")
	s.Require().NoError(err)
	svc, err := New(s.store, WithStoreTimezone(riyadh))
	s.Require().NoError(err)

	// Friday 21:30 UTC is Saturday 00:30 in Riyadh; a Saturday-only window
	// must match when the storefront timezone is injected.
	c := s.validConstraint()
	c.Conditions = []models.Condition{{
		Type:  models.ConditionOrderTime,
		Value: models.OrderTimeValue{Days: []int{6}},
	}}
	s.store.EXPECT().ListActive(gomock.Any(), models.TargetShipping).
		Return([]*models.Constraint{c}, nil)

	decision, err := svc.CheckMethod(s.ctx, models.TargetShipping,
		models.OrderContext{Timestamp: time.Date(2026, 8, 28, 21, 30, 0, 0, time.UTC)},
		"aramex")
	s.Require().NoError(err)
	s.True(decision.Allowed)
}
