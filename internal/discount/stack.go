package discount

import (
	"github.com/shopspring/decimal"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/config"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/enums"
)

// Stage names, in application order. The order is load-bearing: each stage
// reads the base left behind by the ones before it. Reordering requires
// changing this list, which is what the tests pin down.
const (
	StageQuantity      = "quantity"
	StageCoupon        = "coupon"
	StageReward        = "reward"
	StageOnlinePayment = "online_payment"
)

// CouponTerms are the discount terms of an already-validated coupon.
type CouponTerms struct {
	Code  string
	Type  enums.CouponDiscountType
	Value int64
}

// Input feeds one pricing computation. All amounts are paise.
type Input struct {
	SubtotalPaise  int64
	ItemCount      int
	Tiers          []config.QuantityTier
	Coupon         *CouponTerms
	PointsRedeemed int
	Channel        enums.PaymentChannel

	PointValuePaise          int64
	OnlinePaymentDiscountPct int
	ShippingFlatPaise        int64
	FreeShippingMinPaise     int64
}

// Breakdown is the full pricing result, itemized per stage.
type Breakdown struct {
	SubtotalPaise              int64
	ShippingPaise              int64
	QuantityDiscountPaise      int64
	QuantityTierLabel          string
	CouponCode                 string
	CouponDiscountPaise        int64
	RewardDiscountPaise        int64
	OnlinePaymentDiscountPaise int64
	TotalPaise                 int64
}

// TotalDiscountPaise sums every discount stage.
func (b Breakdown) TotalDiscountPaise() int64 {
	return b.QuantityDiscountPaise + b.CouponDiscountPaise + b.RewardDiscountPaise + b.OnlinePaymentDiscountPaise
}

type stage struct {
	name  string
	apply func(in Input, b *Breakdown)
}

// stages is the canonical pipeline. quantity runs on the raw subtotal,
// coupon on the post-quantity base, online payment on the post-coupon base.
// Reward value is flat per point and independent of the running base.
var stages = []stage{
	{name: StageQuantity, apply: applyQuantity},
	{name: StageCoupon, apply: applyCoupon},
	{name: StageReward, apply: applyReward},
	{name: StageOnlinePayment, apply: applyOnlinePayment},
}

// StageOrder returns the pipeline stage names in application order.
func StageOrder() []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.name
	}
	return names
}

// Compute runs the full discount pipeline over the input. Shipping is added
// before discounts are subtracted and is never itself discounted. The final
// total is floored at zero.
func Compute(in Input) Breakdown {
	b := Breakdown{SubtotalPaise: in.SubtotalPaise}

	for _, s := range stages {
		s.apply(in, &b)
	}

	if in.SubtotalPaise < in.FreeShippingMinPaise {
		b.ShippingPaise = in.ShippingFlatPaise
	}

	total := in.SubtotalPaise + b.ShippingPaise - b.TotalDiscountPaise()
	if total < 0 {
		total = 0
	}
	b.TotalPaise = total
	return b
}

// applyQuantity picks the highest tier whose threshold the item count meets
// and applies its percentage to the subtotal. Tiers must be sorted ascending
// by threshold, which config.ParseQuantityTiers guarantees.
func applyQuantity(in Input, b *Breakdown) {
	for _, tier := range in.Tiers {
		if in.ItemCount >= tier.MinItems {
			b.QuantityDiscountPaise = percentOf(in.SubtotalPaise, int64(tier.Percent))
			b.QuantityTierLabel = tier.Label
		}
	}
}

// applyCoupon applies percentage coupons to the post-quantity base and caps
// fixed coupons at that base so a coupon can never push a line negative.
func applyCoupon(in Input, b *Breakdown) {
	if in.Coupon == nil {
		return
	}
	base := in.SubtotalPaise - b.QuantityDiscountPaise
	b.CouponCode = in.Coupon.Code

	switch in.Coupon.Type {
	case enums.CouponDiscountTypePercentage:
		b.CouponDiscountPaise = percentOf(base, in.Coupon.Value)
	case enums.CouponDiscountTypeFixed:
		amount := in.Coupon.Value
		if amount > base {
			amount = base
		}
		b.CouponDiscountPaise = amount
	}
}

func applyReward(in Input, b *Breakdown) {
	if in.PointsRedeemed <= 0 {
		return
	}
	b.RewardDiscountPaise = int64(in.PointsRedeemed) * in.PointValuePaise
}

func applyOnlinePayment(in Input, b *Breakdown) {
	if !in.Channel.IsOnline() || in.OnlinePaymentDiscountPct <= 0 {
		return
	}
	base := in.SubtotalPaise - b.QuantityDiscountPaise - b.CouponDiscountPaise
	b.OnlinePaymentDiscountPaise = percentOf(base, int64(in.OnlinePaymentDiscountPct))
}

// percentOf computes pct% of amount in paise, rounding down.
func percentOf(amount, pct int64) int64 {
	if amount <= 0 || pct <= 0 {
		return 0
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(pct)).
		Div(decimal.NewFromInt(100)).
		Floor().
		IntPart()
}
