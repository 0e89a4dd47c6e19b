package enums

import "fmt"

// CouponDiscountType distinguishes percentage from fixed-amount coupons.
type CouponDiscountType string

const (
	CouponDiscountTypePercentage CouponDiscountType = "percentage"
	CouponDiscountTypeFixed      CouponDiscountType = "fixed"
)

var validCouponDiscountTypes = []CouponDiscountType{
	CouponDiscountTypePercentage,
	CouponDiscountTypeFixed,
}

// String implements fmt.Stringer.
func (t CouponDiscountType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known CouponDiscountType.
func (t CouponDiscountType) IsValid() bool {
	for _, candidate := range validCouponDiscountTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseCouponDiscountType converts raw input into a CouponDiscountType.
func ParseCouponDiscountType(value string) (CouponDiscountType, error) {
	for _, candidate := range validCouponDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon discount type %q", value)
}
