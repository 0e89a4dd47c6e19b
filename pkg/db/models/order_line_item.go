package models

import (
	"time"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/enums"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/types"
	"github.com/google/uuid"
)

// OrderLineItem is an immutable, server-priced line of an order. ProductID is
// nil for custom garments; Customization captures the print snapshot.
type OrderLineItem struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      *uuid.UUID           `gorm:"column:product_id;type:uuid"`
	Name           string               `gorm:"column:name;not null"`
	Size           enums.GarmentSize    `gorm:"column:size;type:text;not null"`
	Quantity       int                  `gorm:"column:quantity;not null"`
	UnitPricePaise int64                `gorm:"column:unit_price_paise;not null"`
	LineTotalPaise int64                `gorm:"column:line_total_paise;not null"`
	IsCustom       bool                 `gorm:"column:is_custom;not null;default:false"`
	Customization  *types.Customization `gorm:"column:customization;type:jsonb;serializer:json"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
}
