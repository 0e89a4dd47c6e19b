package models

import (
	"time"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/enums"
	"github.com/google/uuid"
)

// Coupon is an admin-defined discount code. Codes are stored upper-cased and
// matched case-insensitively. Coupons are never deleted; retirement flips
// IsActive.
type Coupon struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code          string                   `gorm:"column:code;not null;uniqueIndex:ux_coupons_code"`
	DiscountType  enums.CouponDiscountType `gorm:"column:discount_type;type:text;not null"`
	DiscountValue int64                    `gorm:"column:discount_value;not null"`

	MinimumPurchasePaise int64     `gorm:"column:minimum_purchase_paise;not null;default:0"`
	ValidFrom            time.Time `gorm:"column:valid_from;not null"`
	ValidUntil           time.Time `gorm:"column:valid_until;not null"`
	UsageLimit           *int      `gorm:"column:usage_limit"`
	UserLimit            *int      `gorm:"column:user_limit"`
	FirstTimeOnly        bool      `gorm:"column:first_time_only;not null;default:false"`
	IsActive             bool      `gorm:"column:is_active;not null;default:true"`

	// UsageCount is an advisory counter: heavy simultaneous redemption of a
	// scarce coupon may overshoot UsageLimit slightly. Accepted bounded race.
	UsageCount int         `gorm:"column:usage_count;not null;default:0"`
	UsedBy     []uuid.UUID `gorm:"column:used_by;type:jsonb;serializer:json"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
