package models

import (
	"time"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/enums"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/types"
	"github.com/google/uuid"
)

// Order is the commit artifact produced by checkout finalization. Created
// once; afterwards mutated only by status transitions and shipment/invoice
// annotations. TransactionRef carries a unique index so duplicate
// submissions fail at the storage layer.
type Order struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	TransactionRef string               `gorm:"column:transaction_ref;not null;uniqueIndex:ux_orders_transaction_ref"`
	Status         enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'received'"`
	PaymentChannel enums.PaymentChannel `gorm:"column:payment_channel;type:text;not null"`
	CustomerEmail  string               `gorm:"column:customer_email;not null;default:''"`

	// Discount breakdown snapshot, stored for audit/display. The source of
	// truth is the pure computation over the order's inputs.
	SubtotalPaise              int64   `gorm:"column:subtotal_paise;not null"`
	ShippingPaise              int64   `gorm:"column:shipping_paise;not null;default:0"`
	QuantityDiscountPaise      int64   `gorm:"column:quantity_discount_paise;not null;default:0"`
	QuantityTierLabel          *string `gorm:"column:quantity_tier_label"`
	CouponCode                 *string `gorm:"column:coupon_code"`
	CouponDiscountPaise        int64   `gorm:"column:coupon_discount_paise;not null;default:0"`
	RewardPointsRedeemed       int     `gorm:"column:reward_points_redeemed;not null;default:0"`
	RewardDiscountPaise        int64   `gorm:"column:reward_discount_paise;not null;default:0"`
	OnlinePaymentDiscountPaise int64   `gorm:"column:online_payment_discount_paise;not null;default:0"`
	TotalPaise                 int64   `gorm:"column:total_paise;not null"`

	ShippingAddress *types.Address  `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	InvoiceNumber   *string         `gorm:"column:invoice_number"`
	ShipmentRef     *string         `gorm:"column:shipment_ref"`
	Items           []OrderLineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
