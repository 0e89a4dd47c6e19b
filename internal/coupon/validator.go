package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
)

// Reason explains why a coupon was rejected. Sent to the client inside the
// COUPON_INVALID error details.
type Reason string

const (
	ReasonNotFound         Reason = "not_found"
	ReasonInactive         Reason = "inactive"
	ReasonNotStarted       Reason = "not_started"
	ReasonExpired          Reason = "expired"
	ReasonUsageExhausted   Reason = "usage_exhausted"
	ReasonBelowMinimum     Reason = "below_minimum"
	ReasonFirstTimeOnly    Reason = "first_time_only"
	ReasonUserLimitReached Reason = "user_limit_reached"
)

// OrderCounts supplies the prior-order counts eligibility checks need. Both
// counts exclude cancelled orders; any other status counts as a prior order.
type OrderCounts interface {
	CountActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	CountActiveByUserAndCoupon(ctx context.Context, userID uuid.UUID, code string) (int64, error)
}

// Validator is the single coupon eligibility check. The cart-preview path
// and the order-commit path call this same method, so the discount a shopper
// is quoted is the discount applied at commit.
type Validator interface {
	Validate(ctx context.Context, code string, userID uuid.UUID, subtotalPaise int64, now time.Time) (*models.Coupon, error)
}

type validator struct {
	repo   Repository
	orders OrderCounts
}

// NewValidator builds the shared coupon validator.
func NewValidator(repo Repository, orders OrderCounts) (Validator, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order counts required")
	}
	return &validator{repo: repo, orders: orders}, nil
}

func (v *validator) Validate(ctx context.Context, code string, userID uuid.UUID, subtotalPaise int64, now time.Time) (*models.Coupon, error) {
	coupon, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, invalid(ReasonNotFound, "coupon does not exist")
	}
	if !coupon.IsActive {
		return nil, invalid(ReasonInactive, "coupon is no longer active")
	}
	if now.Before(coupon.ValidFrom) {
		return nil, invalid(ReasonNotStarted, "coupon is not yet valid")
	}
	if now.After(coupon.ValidUntil) {
		return nil, invalid(ReasonExpired, "coupon has expired")
	}
	if coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit {
		return nil, invalid(ReasonUsageExhausted, "coupon usage limit reached")
	}
	if subtotalPaise < coupon.MinimumPurchasePaise {
		return nil, invalid(ReasonBelowMinimum, "cart is below the coupon minimum purchase")
	}

	if coupon.FirstTimeOnly {
		prior, err := v.orders.CountActiveByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if prior > 0 {
			return nil, invalid(ReasonFirstTimeOnly, "coupon is for first orders only")
		}
	}

	if coupon.UserLimit != nil {
		used, err := v.orders.CountActiveByUserAndCoupon(ctx, userID, coupon.Code)
		if err != nil {
			return nil, err
		}
		if used >= int64(*coupon.UserLimit) {
			return nil, invalid(ReasonUserLimitReached, "coupon already used the maximum number of times")
		}
	}

	return coupon, nil
}

func invalid(reason Reason, message string) error {
	return pkgerrors.New(pkgerrors.CodeCouponInvalid, message).
		WithDetails(map[string]string{"reason": string(reason)})
}

// RejectionReason extracts the reason code from a COUPON_INVALID error.
func RejectionReason(err error) (Reason, bool) {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeCouponInvalid {
		return "", false
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		return "", false
	}
	return Reason(details["reason"]), true
}
