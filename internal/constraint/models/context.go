package models

import "time"

// OrderContext carries the order snapshot a checkout evaluation runs against.
// Zero or nil fields mean the fact is unknown; conditions that depend on an
// unknown fact fail, which blocks the method rather than letting it through.
type OrderContext struct {
	// Timestamp is when the order is placed. Zero means unknown.
	Timestamp time.Time `json:"timestamp"`
	// Location is the storefront timezone time-window conditions evaluate in.
	Location *time.Location `json:"-"`

	CartTotal    float64 `json:"cart_total"`
	CartQuantity int     `json:"cart_quantity"`
	CartWeight   float64 `json:"cart_weight"`

	ProductIDs         []int64  `json:"product_ids"`
	ProductCategoryIDs []int64  `json:"product_category_ids"`
	ProductTypes       []string `json:"product_types"`

	Channel string `json:"channel"`

	CustomerGroupIDs []int64 `json:"customer_group_ids"`
	CustomerCountry  string  `json:"customer_country"`
	CustomerCity     string  `json:"customer_city"`

	// Order history counts are pointers so an unknown history can be told
	// apart from a genuinely zero count.
	CustomerOrderCount          *int `json:"customer_order_count"`
	CustomerCancelledOrderCount *int `json:"customer_cancelled_order_count"`

	CouponCode string `json:"coupon_code"`
}

// localTime returns the order timestamp in the storefront timezone.
func (o OrderContext) localTime() (time.Time, bool) {
	if o.Timestamp.IsZero() {
		return time.Time{}, false
	}
	loc := o.Location
	if loc == nil {
		loc = time.UTC
	}
	return o.Timestamp.In(loc), true
}
