// Package engine computes which checkout methods are blocked for an order by
// evaluating the active constraints against the order context.
package engine

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storegate/internal/constraint/metrics"
	"storegate/internal/constraint/models"
	"storegate/pkg/domain"
)

const (
	defaultShippingMessage = "This shipping company is not available for your order."
	defaultPaymentMessage  = "This payment method is not available for your order."
)

// Block records why one constraint removed one method from checkout.
type Block struct {
	ConstraintID   domain.ConstraintID
	ConstraintName string
	Reason         string
	// FailingCondition is the type of the first unmet condition in
	// declaration order.
	FailingCondition models.ConditionType
}

// Decision is the answer for a single method.
type Decision struct {
	Allowed bool
	// ErrorMessage carries the shopper-facing message of the first blocking
	// constraint. Nil when the method is allowed.
	ErrorMessage *string
}

type Engine struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: otel.Tracer("storegate/constraint/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultMessage returns the fallback shopper-facing message for a target
// type.
func DefaultMessage(tt models.TargetType) string {
	if tt == models.TargetPayment {
		return defaultPaymentMessage
	}
	return defaultShippingMessage
}

// ComputeBlockedMethods evaluates every active constraint and returns the
// blocked methods keyed by method id. A method is blocked when any active
// constraint that names it does not pass; blocks are listed in constraint
// declaration order.
func (e *Engine) ComputeBlockedMethods(ctx context.Context, constraints []*models.Constraint, octx models.OrderContext) map[string][]Block {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.ComputeBlockedMethods",
		trace.WithAttributes(attribute.Int("constraints.count", len(constraints))))
	defer span.End()

	blocked := make(map[string][]Block)
	for _, c := range constraints {
		if !c.IsActive {
			continue
		}
		result := c.Evaluate(octx)
		if result.Passed {
			continue
		}
		block := Block{
			ConstraintID:   c.ID,
			ConstraintName: c.Name,
			Reason:         c.ErrorMessage(DefaultMessage(c.TargetType)),
		}
		if first, ok := c.FirstFailing(result); ok {
			block.FailingCondition = first.Type
			if first.Value == nil {
				e.logger.WarnContext(ctx, "condition has no payload, failing closed",
					"constraint_id", c.ID.String(),
					"condition_type", string(first.Type),
				)
			}
		}
		for _, methodID := range c.TargetMethodIDs {
			blocked[methodID] = append(blocked[methodID], block)
		}
		e.logger.DebugContext(ctx, "constraint blocked methods",
			"constraint_id", c.ID.String(),
			"constraint_name", c.Name,
			"methods", c.TargetMethodIDs,
			"failing_condition", string(block.FailingCondition),
		)
	}

	e.metrics.Evaluation(targetLabel(constraints))
	e.metrics.MethodsBlocked(targetLabel(constraints), len(blocked))
	e.metrics.ObserveEvaluation(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("methods.blocked", len(blocked)))
	return blocked
}

// CheckMethod answers whether a single method is available for the order.
func (e *Engine) CheckMethod(ctx context.Context, constraints []*models.Constraint, octx models.OrderContext, methodID string) Decision {
	ctx, span := e.tracer.Start(ctx, "engine.CheckMethod",
		trace.WithAttributes(attribute.String("method.id", methodID)))
	defer span.End()

	for _, c := range constraints {
		if !c.IsActive || !c.Targets(methodID) {
			continue
		}
		result := c.Evaluate(octx)
		if !c.IsEligible(methodID, result) {
			msg := c.ErrorMessage(DefaultMessage(c.TargetType))
			e.logger.InfoContext(ctx, "method blocked",
				"method_id", methodID,
				"constraint_id", c.ID.String(),
			)
			return Decision{Allowed: false, ErrorMessage: &msg}
		}
	}
	return Decision{Allowed: true}
}

func targetLabel(constraints []*models.Constraint) string {
	if len(constraints) > 0 {
		return string(constraints[0].TargetType)
	}
	return "unknown"
}
