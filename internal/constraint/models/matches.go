package models

import (
	"slices"
	"strings"
)

// Matches reports whether the order satisfies this condition. Unknown
// condition types, nil payloads and missing order facts all evaluate to
// false: an unmet condition blocks the method, so evaluation fails closed.
func (c Condition) Matches(octx OrderContext) bool {
	if c.Value == nil {
		return false
	}
	switch v := c.Value.(type) {
	case RangeValue:
		switch c.Type {
		case ConditionCartTotal:
			return v.contains(octx.CartTotal)
		case ConditionCartQuantity:
			return v.contains(float64(octx.CartQuantity))
		case ConditionCartWeight:
			return v.contains(octx.CartWeight)
		}
		return false
	case ProductsValue:
		return intersects(octx.ProductIDs, v.ProductIDs)
	case CategoryValue:
		hit := intersects(octx.ProductCategoryIDs, v.CategoryIDs)
		if v.Mode == ModeExclude {
			return !hit
		}
		return hit
	case ProductTypeValue:
		hit := false
		for _, pt := range octx.ProductTypes {
			if strings.EqualFold(pt, v.ProductType) {
				hit = true
				break
			}
		}
		if v.Mode == ModeExclude {
			return !hit
		}
		return hit
	case OrderTimeValue:
		return matchesOrderTime(v, octx)
	case SalesChannelValue:
		if octx.Channel == "" {
			return false
		}
		for _, ch := range v.Channels {
			if strings.EqualFold(ch, octx.Channel) {
				return true
			}
		}
		return false
	case CustomerGroupsValue:
		hit := intersects(octx.CustomerGroupIDs, v.GroupIDs)
		if v.Mode == ModeExclude {
			return !hit
		}
		return hit
	case LocationValue:
		return matchesLocation(v, octx)
	case OrderCountValue:
		if octx.CustomerOrderCount == nil {
			return false
		}
		return *octx.CustomerOrderCount <= v.Max
	case CancelledOrderCountValue:
		if octx.CustomerCancelledOrderCount == nil {
			return false
		}
		return *octx.CustomerCancelledOrderCount >= v.Min
	case CouponsValue:
		return matchesCoupons(v, octx.CouponCode)
	}
	return false
}

func intersects(have, want []int64) bool {
	for _, h := range have {
		if slices.Contains(want, h) {
			return true
		}
	}
	return false
}

func matchesOrderTime(v OrderTimeValue, octx OrderContext) bool {
	local, ok := octx.localTime()
	if !ok {
		return false
	}
	if len(v.Days) > 0 {
		// Weekday numbering matches time.Weekday: Sunday is 0.
		if !slices.Contains(v.Days, int(local.Weekday())) {
			return false
		}
	}
	minute := local.Hour()*60 + local.Minute()
	if v.StartTime != "" {
		start, ok := parseClock(v.StartTime)
		if !ok || minute < start {
			return false
		}
	}
	if v.EndTime != "" {
		end, ok := parseClock(v.EndTime)
		if !ok || minute > end {
			return false
		}
	}
	return true
}

// matchesLocation fails closed on a missing country even in exclude mode: an
// absent country means the customer's location is unknown, unlike an absent
// coupon or group list, which is definite (see matchesCoupons).
func matchesLocation(v LocationValue, octx OrderContext) bool {
	if octx.CustomerCountry == "" {
		return false
	}
	hit := strings.EqualFold(octx.CustomerCountry, v.Country)
	if hit && v.City != nil {
		hit = octx.CustomerCity != "" && strings.EqualFold(octx.CustomerCity, *v.City)
	}
	if v.Mode == ModeExclude {
		return !hit
	}
	return hit
}

// matchesCoupons treats an order with no coupon as definite data: it is
// outside every coupon list, so include fails and exclude passes. Customer
// groups work the same way, a customer in no groups is definite. Only
// location treats an empty value as unknown and fails closed.
func matchesCoupons(v CouponsValue, code string) bool {
	hit := false
	if code != "" {
		for _, c := range v.Coupons {
			if strings.EqualFold(c, code) {
				hit = true
				break
			}
		}
	}
	if v.Mode == ModeExclude {
		return !hit
	}
	return hit
}
