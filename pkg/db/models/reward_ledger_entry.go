package models

import (
	"time"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/enums"
	"github.com/google/uuid"
)

// RewardLedgerEntry is an append-only loyalty movement. Points is signed:
// positive for earned/adjustment credits, negative for redemptions. Summing a
// user's entries reproduces their balance; RewardBalance is a cached
// projection. The (order_id, type) unique index makes order-driven writes
// duplicate-tolerant.
type RewardLedgerEntry struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Type         enums.RewardEntryType `gorm:"column:type;type:text;not null;uniqueIndex:ux_reward_ledger_order_type,where:order_id IS NOT NULL"`
	Points       int                   `gorm:"column:points;not null"`
	BalanceAfter int                   `gorm:"column:balance_after;not null"`
	OrderID      *uuid.UUID            `gorm:"column:order_id;type:uuid;uniqueIndex:ux_reward_ledger_order_type,where:order_id IS NOT NULL"`
	Note         string                `gorm:"column:note"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
}

// RewardBalance caches the sum of a user's ledger entries.
type RewardBalance struct {
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	PointsBalance int       `gorm:"column:points_balance;not null;default:0"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
