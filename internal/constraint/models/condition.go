package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	dErrors "storegate/pkg/domain-errors"
)

// ConditionType identifies what a condition inspects on the order.
type ConditionType string

const (
	ConditionCartTotal                 ConditionType = "CART_TOTAL"
	ConditionCartQuantity              ConditionType = "CART_QUANTITY"
	ConditionCartWeight                ConditionType = "CART_WEIGHT"
	ConditionProducts                  ConditionType = "PRODUCTS"
	ConditionProductCategory           ConditionType = "PRODUCT_CATEGORY"
	ConditionProductType               ConditionType = "PRODUCT_TYPE"
	ConditionOrderTime                 ConditionType = "ORDER_TIME"
	ConditionSalesChannel              ConditionType = "SALES_CHANNEL"
	ConditionCustomerGroups            ConditionType = "CUSTOMER_GROUPS"
	ConditionCustomerLocation          ConditionType = "CUSTOMER_LOCATION"
	ConditionCustomerOrderCount        ConditionType = "CUSTOMER_ORDER_COUNT"
	ConditionCustomerCancelledOrderCnt ConditionType = "CUSTOMER_CANCELLED_ORDER_COUNT"
	ConditionCoupons                   ConditionType = "COUPONS"
)

// ConditionTypes lists every supported condition type.
var ConditionTypes = []ConditionType{
	ConditionCartTotal,
	ConditionCartQuantity,
	ConditionCartWeight,
	ConditionProducts,
	ConditionProductCategory,
	ConditionProductType,
	ConditionOrderTime,
	ConditionSalesChannel,
	ConditionCustomerGroups,
	ConditionCustomerLocation,
	ConditionCustomerOrderCount,
	ConditionCustomerCancelledOrderCnt,
	ConditionCoupons,
}

func (t ConditionType) Valid() bool {
	return slices.Contains(ConditionTypes, t)
}

// Mode selects whether a membership condition requires overlap with a set
// (include) or the absence of overlap (exclude).
type Mode string

const (
	ModeInclude Mode = "include"
	ModeExclude Mode = "exclude"
)

func (m Mode) Valid() bool { return m == ModeInclude || m == ModeExclude }

// Payload is the typed value of a condition. Each condition type has its own
// payload shape.
type Payload interface {
	Validate() error
}

// RangeValue is the payload for CART_TOTAL, CART_QUANTITY and CART_WEIGHT.
// Both bounds are inclusive; a nil Max means unbounded above.
type RangeValue struct {
	Min float64  `json:"min"`
	Max *float64 `json:"max"`
}

func (v RangeValue) Validate() error {
	if v.Min < 0 {
		return dErrors.New(dErrors.CodeValidation, "min must not be negative")
	}
	if v.Max != nil && *v.Max < v.Min {
		return dErrors.New(dErrors.CodeValidation, "max must be greater than or equal to min")
	}
	return nil
}

func (v RangeValue) contains(n float64) bool {
	if n < v.Min {
		return false
	}
	return v.Max == nil || n <= *v.Max
}

// ProductsValue is the payload for PRODUCTS.
type ProductsValue struct {
	ProductIDs []int64 `json:"product_ids"`
}

func (v ProductsValue) Validate() error {
	if len(v.ProductIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "product_ids must not be empty")
	}
	return nil
}

// CategoryValue is the payload for PRODUCT_CATEGORY.
type CategoryValue struct {
	Mode        Mode    `json:"mode"`
	CategoryIDs []int64 `json:"category_ids"`
}

func (v CategoryValue) Validate() error {
	if !v.Mode.Valid() {
		return dErrors.New(dErrors.CodeValidation, "mode must be include or exclude")
	}
	if len(v.CategoryIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "category_ids must not be empty")
	}
	return nil
}

// ProductTypeValue is the payload for PRODUCT_TYPE.
type ProductTypeValue struct {
	Mode        Mode   `json:"mode"`
	ProductType string `json:"product_type"`
}

func (v ProductTypeValue) Validate() error {
	if !v.Mode.Valid() {
		return dErrors.New(dErrors.CodeValidation, "mode must be include or exclude")
	}
	if v.ProductType == "" {
		return dErrors.New(dErrors.CodeValidation, "product_type must not be empty")
	}
	return nil
}

// OrderTimeValue is the payload for ORDER_TIME. Days use 0 for Sunday through
// 6 for Saturday. Times are "HH:MM" in the storefront timezone; an empty
// Days list means every day, and empty times mean no bound on that side.
type OrderTimeValue struct {
	Days      []int  `json:"days"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (v OrderTimeValue) Validate() error {
	for _, d := range v.Days {
		if d < 0 || d > 6 {
			return dErrors.New(dErrors.CodeValidation, "days must be between 0 (Sunday) and 6 (Saturday)")
		}
	}
	for _, t := range []string{v.StartTime, v.EndTime} {
		if t == "" {
			continue
		}
		if _, ok := parseClock(t); !ok {
			return dErrors.New(dErrors.CodeValidation, "times must use the HH:MM format")
		}
	}
	if v.StartTime != "" && v.EndTime != "" {
		start, _ := parseClock(v.StartTime)
		end, _ := parseClock(v.EndTime)
		if end < start {
			return dErrors.New(dErrors.CodeValidation, "end_time must not be before start_time")
		}
	}
	return nil
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, bool) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, false
	}
	h, m := 0, 0
	if _, err := fmt.Sscanf(s, "%02d:%02d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// SalesChannelValue is the payload for SALES_CHANNEL.
type SalesChannelValue struct {
	Channels []string `json:"channels"`
}

func (v SalesChannelValue) Validate() error {
	if len(v.Channels) == 0 {
		return dErrors.New(dErrors.CodeValidation, "channels must not be empty")
	}
	return nil
}

// CustomerGroupsValue is the payload for CUSTOMER_GROUPS.
type CustomerGroupsValue struct {
	Mode     Mode    `json:"mode"`
	GroupIDs []int64 `json:"group_ids"`
}

func (v CustomerGroupsValue) Validate() error {
	if !v.Mode.Valid() {
		return dErrors.New(dErrors.CodeValidation, "mode must be include or exclude")
	}
	if len(v.GroupIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "group_ids must not be empty")
	}
	return nil
}

// LocationValue is the payload for CUSTOMER_LOCATION. City is optional; when
// set the match requires both country and city.
type LocationValue struct {
	Mode    Mode    `json:"mode"`
	Country string  `json:"country"`
	City    *string `json:"city"`
}

func (v LocationValue) Validate() error {
	if !v.Mode.Valid() {
		return dErrors.New(dErrors.CodeValidation, "mode must be include or exclude")
	}
	if v.Country == "" {
		return dErrors.New(dErrors.CodeValidation, "country must not be empty")
	}
	if v.City != nil && *v.City == "" {
		return dErrors.New(dErrors.CodeValidation, "city must not be empty when provided")
	}
	return nil
}

// OrderCountValue is the payload for CUSTOMER_ORDER_COUNT. The customer
// qualifies while their completed order count is at most Max.
type OrderCountValue struct {
	Max int `json:"max"`
}

func (v OrderCountValue) Validate() error {
	if v.Max < 0 {
		return dErrors.New(dErrors.CodeValidation, "max must not be negative")
	}
	return nil
}

// CancelledOrderCountValue is the payload for CUSTOMER_CANCELLED_ORDER_COUNT.
// The customer qualifies once their cancelled order count reaches Min.
type CancelledOrderCountValue struct {
	Min int `json:"min"`
}

func (v CancelledOrderCountValue) Validate() error {
	if v.Min < 0 {
		return dErrors.New(dErrors.CodeValidation, "min must not be negative")
	}
	return nil
}

// CouponsValue is the payload for COUPONS.
type CouponsValue struct {
	Mode    Mode     `json:"mode"`
	Coupons []string `json:"coupons"`
}

func (v CouponsValue) Validate() error {
	if !v.Mode.Valid() {
		return dErrors.New(dErrors.CodeValidation, "mode must be include or exclude")
	}
	if len(v.Coupons) == 0 {
		return dErrors.New(dErrors.CodeValidation, "coupons must not be empty")
	}
	return nil
}

// Condition pairs a type with its typed payload.
type Condition struct {
	Type  ConditionType
	Value Payload
}

func (c Condition) Validate() error {
	if !c.Type.Valid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown condition type %q", c.Type))
	}
	if c.Value == nil {
		return dErrors.New(dErrors.CodeValidation, "condition value is required")
	}
	if err := c.Value.Validate(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("condition %s", c.Type))
	}
	return nil
}

// conditionWire is the transport shape. The operator field is always "EQ";
// it is accepted and ignored on read for backward compatibility.
type conditionWire struct {
	Type     ConditionType   `json:"type"`
	Operator string          `json:"operator"`
	Value    json.RawMessage `json:"value"`
}

func (c Condition) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(c.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(conditionWire{Type: c.Type, Operator: "EQ", Value: raw})
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var wire conditionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed condition")
	}
	payload, err := newPayload(wire.Type)
	if err != nil {
		return err
	}
	if len(wire.Value) > 0 {
		if err := json.Unmarshal(wire.Value, payload); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput,
				fmt.Sprintf("malformed value for condition %s", wire.Type))
		}
	}
	c.Type = wire.Type
	c.Value = deref(payload)
	return nil
}

func newPayload(t ConditionType) (Payload, error) {
	switch t {
	case ConditionCartTotal, ConditionCartQuantity, ConditionCartWeight:
		return &RangeValue{}, nil
	case ConditionProducts:
		return &ProductsValue{}, nil
	case ConditionProductCategory:
		return &CategoryValue{}, nil
	case ConditionProductType:
		return &ProductTypeValue{}, nil
	case ConditionOrderTime:
		return &OrderTimeValue{}, nil
	case ConditionSalesChannel:
		return &SalesChannelValue{}, nil
	case ConditionCustomerGroups:
		return &CustomerGroupsValue{}, nil
	case ConditionCustomerLocation:
		return &LocationValue{}, nil
	case ConditionCustomerOrderCount:
		return &OrderCountValue{}, nil
	case ConditionCustomerCancelledOrderCnt:
		return &CancelledOrderCountValue{}, nil
	case ConditionCoupons:
		return &CouponsValue{}, nil
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown condition type %q", t))
	}
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *RangeValue:
		return *v
	case *ProductsValue:
		return *v
	case *CategoryValue:
		return *v
	case *ProductTypeValue:
		return *v
	case *OrderTimeValue:
		return *v
	case *SalesChannelValue:
		return *v
	case *CustomerGroupsValue:
		return *v
	case *LocationValue:
		return *v
	case *OrderCountValue:
		return *v
	case *CancelledOrderCountValue:
		return *v
	case *CouponsValue:
		return *v
	default:
		return p
	}
}
