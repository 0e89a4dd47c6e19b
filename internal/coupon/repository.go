package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
)

// Repository exposes coupon persistence.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	RecordRedemption(ctx context.Context, couponID, userID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// FindByCode matches case-insensitively; codes are stored upper-cased.
// Returns (nil, nil) when no coupon carries the code.
func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		First(&coupon, "code = ?", strings.ToUpper(strings.TrimSpace(code))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

// RecordRedemption bumps the advisory usage counter and appends the redeemer
// to used_by in one statement. Under heavy simultaneous redemption the
// counter may overshoot the usage limit slightly; that race is accepted.
func (r *repository) RecordRedemption(ctx context.Context, couponID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", couponID).
		Updates(map[string]any{
			"usage_count": gorm.Expr("usage_count + 1"),
			"used_by": gorm.Expr(
				"coalesce(used_by, '[]'::jsonb) || ?::jsonb",
				fmt.Sprintf("[%q]", userID.String()),
			),
		}).Error
}
