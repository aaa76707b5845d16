// Package service implements the constraint management and checkout
// evaluation operations on top of a Store.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storegate/internal/constraint/engine"
	"storegate/internal/constraint/metrics"
	"storegate/internal/constraint/models"
	"storegate/internal/constraint/store"
	"storegate/pkg/domain"
	dErrors "storegate/pkg/domain-errors"
	"storegate/pkg/platform/audit"
	"storegate/pkg/platform/sentinel"
	"storegate/pkg/requestcontext"
)

// ReferenceData verifies that ids referenced by conditions exist on the
// commerce platform.
type ReferenceData interface {
	HasProduct(ctx context.Context, id int64) (bool, error)
	HasCategory(ctx context.Context, id int64) (bool, error)
	HasCustomerGroup(ctx context.Context, id int64) (bool, error)
	HasCoupon(ctx context.Context, code string) (bool, error)
}

// AuditPublisher records what happened, see pkg/platform/audit.
type AuditPublisher interface {
	Publish(ctx context.Context, event audit.Event) error
}

type Service struct {
	store    store.Store
	engine   *engine.Engine
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    AuditPublisher
	refdata  ReferenceData
	timezone *time.Location
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.audit = p }
}

func WithReferenceData(r ReferenceData) Option {
	return func(s *Service) { s.refdata = r }
}

// WithStoreTimezone sets the storefront timezone injected into order
// contexts that do not carry one.
func WithStoreTimezone(loc *time.Location) Option {
	return func(s *Service) { s.timezone = loc }
}

func New(st store.Store, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("constraint service: store is required")
	}
	s := &Service{
		store:    st,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		timezone: time.UTC,
		tracer:   otel.Tracer("storegate/constraint/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = engine.New(engine.WithLogger(s.logger), engine.WithMetrics(s.metrics))
	return s, nil
}

func (s *Service) Create(ctx context.Context, tt models.TargetType, c *models.Constraint) (*models.Constraint, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateConstraint",
		trace.WithAttributes(attribute.String("target_type", string(tt))))
	defer span.End()

	if c.ID.IsNil() {
		c.ID = domain.ConstraintID(uuid.New())
	}
	if err := s.validate(ctx, tt, c); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, translate(err)
	}
	s.metrics.ConstraintCreated()
	s.emit(ctx, audit.ActionConstraintCreated, c, "")
	s.logger.InfoContext(ctx, "constraint created",
		"constraint_id", c.ID.String(), "target_type", string(tt), "name", c.Name)
	return c, nil
}

// Update replaces the stored constraint wholesale. The caller's version must
// match the stored one or the update is rejected with a conflict.
func (s *Service) Update(ctx context.Context, tt models.TargetType, id domain.ConstraintID, c *models.Constraint) (*models.Constraint, error) {
	ctx, span := s.tracer.Start(ctx, "service.UpdateConstraint",
		trace.WithAttributes(attribute.String("constraint_id", id.String())))
	defer span.End()

	c.ID = id
	if err := s.validate(ctx, tt, c); err != nil {
		return nil, err
	}
	expected := c.Version
	if expected == 0 {
		// Callers that do not track versions get last-writer-wins.
		current, err := s.store.FindByID(ctx, id)
		if err != nil {
			return nil, translate(err)
		}
		expected = current.Version
	}
	if err := s.store.Update(ctx, c, expected); err != nil {
		return nil, translate(err)
	}
	s.metrics.ConstraintUpdated()
	s.emit(ctx, audit.ActionConstraintUpdated, c, "")
	s.logger.InfoContext(ctx, "constraint updated",
		"constraint_id", id.String(), "version", c.Version)
	return c, nil
}

func (s *Service) Delete(ctx context.Context, tt models.TargetType, id domain.ConstraintID) error {
	ctx, span := s.tracer.Start(ctx, "service.DeleteConstraint",
		trace.WithAttributes(attribute.String("constraint_id", id.String())))
	defer span.End()

	c, err := s.store.FindByID(ctx, id)
	if err != nil {
		return translate(err)
	}
	if c.TargetType != tt {
		return dErrors.New(dErrors.CodeNotFound, "constraint not found")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return translate(err)
	}
	s.metrics.ConstraintDeleted()
	s.emit(ctx, audit.ActionConstraintDeleted, c, "")
	s.logger.InfoContext(ctx, "constraint deleted", "constraint_id", id.String())
	return nil
}

func (s *Service) Get(ctx context.Context, tt models.TargetType, id domain.ConstraintID) (*models.Constraint, error) {
	c, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if c.TargetType != tt {
		return nil, dErrors.New(dErrors.CodeNotFound, "constraint not found")
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, tt models.TargetType) ([]*models.Constraint, error) {
	listed, err := s.store.List(ctx, tt)
	if err != nil {
		return nil, translate(err)
	}
	return listed, nil
}

// BlockedMethods evaluates all active constraints of a target type against
// the order and returns the blocked methods with their reasons.
func (s *Service) BlockedMethods(ctx context.Context, tt models.TargetType, octx models.OrderContext) (map[string][]engine.Block, error) {
	ctx, span := s.tracer.Start(ctx, "service.BlockedMethods",
		trace.WithAttributes(attribute.String("target_type", string(tt))))
	defer span.End()

	active, err := s.store.ListActive(ctx, tt)
	if err != nil {
		return nil, translate(err)
	}
	octx = s.normalize(ctx, octx)
	blocked := s.engine.ComputeBlockedMethods(ctx, active, octx)
	for methodID, blocks := range blocked {
		for _, b := range blocks {
			s.publishAudit(ctx, audit.Event{
				Action:       audit.ActionMethodBlocked,
				ConstraintID: b.ConstraintID.String(),
				TargetType:   string(tt),
				MethodID:     methodID,
				Reason:       b.Reason,
			})
		}
	}
	return blocked, nil
}

// CheckMethod answers a single availability question for checkout.
func (s *Service) CheckMethod(ctx context.Context, tt models.TargetType, octx models.OrderContext, methodID string) (engine.Decision, error) {
	active, err := s.store.ListActive(ctx, tt)
	if err != nil {
		return engine.Decision{}, translate(err)
	}
	octx = s.normalize(ctx, octx)
	decision := s.engine.CheckMethod(ctx, active, octx, methodID)
	if !decision.Allowed {
		s.publishAudit(ctx, audit.Event{
			Action:     audit.ActionMethodBlocked,
			TargetType: string(tt),
			MethodID:   methodID,
			Reason:     derefString(decision.ErrorMessage),
		})
	}
	return decision, nil
}

// normalize fills order context defaults: request time when the caller sent
// no timestamp, and the storefront timezone.
func (s *Service) normalize(ctx context.Context, octx models.OrderContext) models.OrderContext {
	if octx.Timestamp.IsZero() {
		octx.Timestamp = requestcontext.Now(ctx)
	}
	if octx.Location == nil {
		octx.Location = s.timezone
	}
	return octx
}

func (s *Service) validate(ctx context.Context, tt models.TargetType, c *models.Constraint) error {
	if c.TargetType == "" {
		c.TargetType = tt
	}
	if c.TargetType != tt {
		return dErrors.New(dErrors.CodeBadRequest,
			fmt.Sprintf("constraint targets %s but the request path targets %s", c.TargetType, tt))
	}
	if err := c.Validate(); err != nil {
		return err
	}
	return s.checkReferences(ctx, c)
}

// checkReferences rejects ids that do not exist on the platform. When the
// reference source itself is down the write proceeds with a warning, since
// admins should not be locked out by a catalog outage.
func (s *Service) checkReferences(ctx context.Context, c *models.Constraint) error {
	if s.refdata == nil {
		return nil
	}
	e := dErrors.New(dErrors.CodeValidation, "constraint references unknown ids")
	for i, cond := range c.Conditions {
		field := fmt.Sprintf("conditions[%d]", i)
		switch v := cond.Value.(type) {
		case models.ProductsValue:
			for _, id := range v.ProductIDs {
				s.checkRef(ctx, e, field, fmt.Sprintf("product %d", id), func(ctx context.Context) (bool, error) {
					return s.refdata.HasProduct(ctx, id)
				})
			}
		case models.CategoryValue:
			for _, id := range v.CategoryIDs {
				s.checkRef(ctx, e, field, fmt.Sprintf("category %d", id), func(ctx context.Context) (bool, error) {
					return s.refdata.HasCategory(ctx, id)
				})
			}
		case models.CustomerGroupsValue:
			for _, id := range v.GroupIDs {
				s.checkRef(ctx, e, field, fmt.Sprintf("customer group %d", id), func(ctx context.Context) (bool, error) {
					return s.refdata.HasCustomerGroup(ctx, id)
				})
			}
		case models.CouponsValue:
			for _, code := range v.Coupons {
				s.checkRef(ctx, e, field, fmt.Sprintf("coupon %q", code), func(ctx context.Context) (bool, error) {
					return s.refdata.HasCoupon(ctx, code)
				})
			}
		}
	}
	if len(e.Fields) > 0 {
		return e
	}
	return nil
}

func (s *Service) checkRef(ctx context.Context, e *dErrors.Error, field, what string, check func(context.Context) (bool, error)) {
	ok, err := check(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "reference data check skipped", "ref", what, "error", err)
		return
	}
	if !ok {
		dErrors.Add(e, field, what+" does not exist")
	}
}

func (s *Service) emit(ctx context.Context, action audit.Action, c *models.Constraint, reason string) {
	s.publishAudit(ctx, audit.Event{
		Action:       action,
		ConstraintID: c.ID.String(),
		TargetType:   string(c.TargetType),
		Reason:       reason,
	})
}

func (s *Service) publishAudit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit publish failed",
			"action", string(event.Action), "error", err)
	}
}

func translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "constraint not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "constraint was modified concurrently")
	case errors.Is(err, sentinel.ErrAlreadyExists):
		return dErrors.Wrap(err, dErrors.CodeConflict, "constraint already exists")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "store failure")
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
