package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a catalog garment with a server-authoritative price.
type Product struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU        string         `gorm:"column:sku;not null"`
	Name       string         `gorm:"column:name;not null"`
	PricePaise int64          `gorm:"column:price_paise;not null"`
	IsActive   bool           `gorm:"column:is_active;not null;default:true"`
	DeletedAt  gorm.DeletedAt `gorm:"column:deleted_at;index"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
