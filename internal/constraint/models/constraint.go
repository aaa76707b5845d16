package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"storegate/pkg/domain"
	dErrors "storegate/pkg/domain-errors"
)

// TargetType selects which checkout surface a constraint governs.
type TargetType string

const (
	TargetShipping TargetType = "shipping"
	TargetPayment  TargetType = "payment"
)

func ParseTargetType(s string) (TargetType, error) {
	switch TargetType(s) {
	case TargetShipping:
		return TargetShipping, nil
	case TargetPayment:
		return TargetPayment, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown target type %q", s))
	}
}

// Constraint blocks a set of shipping companies or payment methods unless
// every one of its conditions matches the order.
type Constraint struct {
	ID                   domain.ConstraintID
	Name                 string
	IsActive             bool
	TargetType           TargetType
	TargetMethodIDs      []string
	Conditions           []Condition
	IsCustomErrorEnabled bool
	CustomErrorMessage   string

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Constraint) Validate() error {
	e := dErrors.New(dErrors.CodeValidation, "invalid constraint")
	if c.Name == "" {
		e = dErrors.Add(e, "name", "name is required")
	}
	if c.TargetType != TargetShipping && c.TargetType != TargetPayment {
		e = dErrors.Add(e, "target_type", "target type must be shipping or payment")
	}
	if len(c.TargetMethodIDs) == 0 {
		e = dErrors.Add(e, c.methodsKey(), "at least one target method is required")
	}
	for i, id := range c.TargetMethodIDs {
		if id == "" {
			e = dErrors.Add(e, fmt.Sprintf("%s[%d]", c.methodsKey(), i), "method id must not be empty")
		}
	}
	if len(c.Conditions) == 0 {
		e = dErrors.Add(e, "conditions", "at least one condition is required")
	}
	for i, cond := range c.Conditions {
		if err := cond.Validate(); err != nil {
			e = dErrors.Add(e, fmt.Sprintf("conditions[%d]", i), err.Error())
		}
	}
	if c.IsCustomErrorEnabled && c.CustomErrorMessage == "" {
		e = dErrors.Add(e, "custom_error_message", "custom error message is required when enabled")
	}
	if len(e.Fields) > 0 {
		return e
	}
	return nil
}

// EvaluationResult is the outcome of checking one constraint against an
// order.
type EvaluationResult struct {
	Passed bool
	// FailingConditions holds the indexes of unmet conditions in
	// declaration order.
	FailingConditions []int
}

// Evaluate checks every condition against the order. Conditions are combined
// with AND; the result records each unmet condition in declaration order.
func (c *Constraint) Evaluate(octx OrderContext) EvaluationResult {
	result := EvaluationResult{Passed: true}
	for i, cond := range c.Conditions {
		if !cond.Matches(octx) {
			result.Passed = false
			result.FailingConditions = append(result.FailingConditions, i)
		}
	}
	return result
}

// FirstFailing returns the first unmet condition, if any.
func (c *Constraint) FirstFailing(result EvaluationResult) (Condition, bool) {
	if result.Passed || len(result.FailingConditions) == 0 {
		return Condition{}, false
	}
	idx := result.FailingConditions[0]
	if idx < 0 || idx >= len(c.Conditions) {
		return Condition{}, false
	}
	return c.Conditions[idx], true
}

// Targets reports whether the constraint names the given method.
func (c *Constraint) Targets(methodID string) bool {
	return slices.Contains(c.TargetMethodIDs, methodID)
}

// IsEligible reports whether the method stays available given this
// constraint's evaluation: methods the constraint does not name are
// unaffected, named methods require the constraint to pass.
func (c *Constraint) IsEligible(methodID string, result EvaluationResult) bool {
	if !c.Targets(methodID) {
		return true
	}
	return result.Passed
}

// ErrorMessage returns the message shown to the shopper when this constraint
// blocks a method.
func (c *Constraint) ErrorMessage(fallback string) string {
	if c.IsCustomErrorEnabled && c.CustomErrorMessage != "" {
		return c.CustomErrorMessage
	}
	return fallback
}

// Clone returns a deep copy so store snapshots cannot be mutated by callers.
func (c *Constraint) Clone() *Constraint {
	cp := *c
	cp.TargetMethodIDs = slices.Clone(c.TargetMethodIDs)
	cp.Conditions = slices.Clone(c.Conditions)
	for i, cond := range cp.Conditions {
		cp.Conditions[i].Value = clonePayload(cond.Value)
	}
	return &cp
}

// clonePayload copies the pointer and slice fields inside a payload so a
// clone shares no mutable state with the original.
func clonePayload(p Payload) Payload {
	switch v := p.(type) {
	case RangeValue:
		if v.Max != nil {
			max := *v.Max
			v.Max = &max
		}
		return v
	case LocationValue:
		if v.City != nil {
			city := *v.City
			v.City = &city
		}
		return v
	case ProductsValue:
		v.ProductIDs = slices.Clone(v.ProductIDs)
		return v
	case CategoryValue:
		v.CategoryIDs = slices.Clone(v.CategoryIDs)
		return v
	case OrderTimeValue:
		v.Days = slices.Clone(v.Days)
		return v
	case SalesChannelValue:
		v.Channels = slices.Clone(v.Channels)
		return v
	case CustomerGroupsValue:
		v.GroupIDs = slices.Clone(v.GroupIDs)
		return v
	case CouponsValue:
		v.Coupons = slices.Clone(v.Coupons)
		return v
	default:
		return p
	}
}

func (c *Constraint) methodsKey() string {
	if c.TargetType == TargetPayment {
		return "payment_method_ids"
	}
	return "shipping_company_ids"
}

type constraintWire struct {
	ID                   string      `json:"id,omitempty"`
	Name                 string      `json:"name"`
	IsActive             bool        `json:"is_active"`
	ShippingCompanyIDs   []string    `json:"shipping_company_ids,omitempty"`
	PaymentMethodIDs     []string    `json:"payment_method_ids,omitempty"`
	Conditions           []Condition `json:"conditions"`
	IsCustomErrorEnabled bool        `json:"is_custom_error_enabled"`
	CustomErrorMessage   string      `json:"custom_error_message,omitempty"`
	Version              int64       `json:"version,omitempty"`
	CreatedAt            *time.Time  `json:"created_at,omitempty"`
	UpdatedAt            *time.Time  `json:"updated_at,omitempty"`
}

// MarshalJSON writes the method list under the key matching the target type.
func (c Constraint) MarshalJSON() ([]byte, error) {
	wire := constraintWire{
		Name:                 c.Name,
		IsActive:             c.IsActive,
		Conditions:           c.Conditions,
		IsCustomErrorEnabled: c.IsCustomErrorEnabled,
		CustomErrorMessage:   c.CustomErrorMessage,
		Version:              c.Version,
	}
	if !c.ID.IsNil() {
		wire.ID = c.ID.String()
	}
	if c.TargetType == TargetPayment {
		wire.PaymentMethodIDs = c.TargetMethodIDs
	} else {
		wire.ShippingCompanyIDs = c.TargetMethodIDs
	}
	if !c.CreatedAt.IsZero() {
		wire.CreatedAt = &c.CreatedAt
	}
	if !c.UpdatedAt.IsZero() {
		wire.UpdatedAt = &c.UpdatedAt
	}
	return json.Marshal(wire)
}

// UnmarshalJSON infers the target type from which method-id key is present.
// Bodies carrying both keys are rejected.
func (c *Constraint) UnmarshalJSON(data []byte) error {
	var wire constraintWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed constraint")
	}
	if len(wire.ShippingCompanyIDs) > 0 && len(wire.PaymentMethodIDs) > 0 {
		return dErrors.New(dErrors.CodeInvalidInput,
			"constraint must carry either shipping_company_ids or payment_method_ids, not both")
	}
	*c = Constraint{
		Name:                 wire.Name,
		IsActive:             wire.IsActive,
		Conditions:           wire.Conditions,
		IsCustomErrorEnabled: wire.IsCustomErrorEnabled,
		CustomErrorMessage:   wire.CustomErrorMessage,
		Version:              wire.Version,
	}
	if wire.ID != "" {
		id, err := domain.ParseConstraintID(wire.ID)
		if err != nil {
			return err
		}
		c.ID = id
	}
	if len(wire.PaymentMethodIDs) > 0 {
		c.TargetType = TargetPayment
		c.TargetMethodIDs = wire.PaymentMethodIDs
	} else {
		c.TargetType = TargetShipping
		c.TargetMethodIDs = wire.ShippingCompanyIDs
	}
	if wire.CreatedAt != nil {
		c.CreatedAt = *wire.CreatedAt
	}
	if wire.UpdatedAt != nil {
		c.UpdatedAt = *wire.UpdatedAt
	}
	return nil
}
