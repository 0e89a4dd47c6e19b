package rewards

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/RahulXTmCoding/desi-otaku-backend/pkg/db"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/enums"
	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the loyalty ledger. The ledger is the source of truth; the
// balance table is a cached projection kept in step inside each transaction.
type Service interface {
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	ValidateRedemption(ctx context.Context, userID uuid.UUID, points, maxPerOrder int) error
	Redeem(ctx context.Context, userID, orderID uuid.UUID, points int) error
	Credit(ctx context.Context, userID, orderID uuid.UUID, points int) error
}

type service struct {
	tx   txRunner
	repo Repository
	logg *logger.Logger
}

// NewService builds the rewards service.
func NewService(tx txRunner, repo Repository, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("rewards repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, repo: repo, logg: logg}, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.Balance(ctx, userID)
}

// ValidateRedemption is the read-only check used at quote and commit time.
// Violations are rejected, never silently clamped.
func (s *service) ValidateRedemption(ctx context.Context, userID uuid.UUID, points, maxPerOrder int) error {
	if points <= 0 {
		return nil
	}
	if points > maxPerOrder {
		return pkgerrors.New(pkgerrors.CodeRedemptionCapExceeded,
			fmt.Sprintf("at most %d points may be redeemed per order", maxPerOrder))
	}
	balance, err := s.repo.Balance(ctx, userID)
	if err != nil {
		return err
	}
	if points > balance {
		return pkgerrors.New(pkgerrors.CodeInsufficientPoints, "reward balance does not cover requested points")
	}
	return nil
}

// Redeem burns points against a committed order. The conditional decrement
// and the ledger append share one transaction; a duplicate invocation for
// the same order hits the (order_id, type) unique index and is a no-op.
func (s *service) Redeem(ctx context.Context, userID, orderID uuid.UUID, points int) error {
	if points <= 0 {
		return nil
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		balance, ok, err := s.repo.DecrementIfEnough(ctx, tx, userID, points)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInsufficientPoints, "reward balance does not cover requested points")
		}
		return s.repo.InsertLedgerEntry(ctx, tx, &models.RewardLedgerEntry{
			UserID:       userID,
			Type:         enums.RewardEntryTypeRedeemed,
			Points:       -points,
			BalanceAfter: balance,
			OrderID:      &orderID,
		})
	})
	if dbpkg.IsUniqueViolation(err, "ux_reward_ledger_order_type") {
		logCtx := s.logg.WithOrderID(ctx, orderID.String())
		s.logg.Warn(logCtx, "duplicate reward redemption for order, skipping")
		return nil
	}
	return err
}

// Credit awards earned points for a paid order, once per order.
func (s *service) Credit(ctx context.Context, userID, orderID uuid.UUID, points int) error {
	if points <= 0 {
		return nil
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		balance, err := s.repo.Balance(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.repo.InsertLedgerEntry(ctx, tx, &models.RewardLedgerEntry{
			UserID:       userID,
			Type:         enums.RewardEntryTypeEarned,
			Points:       points,
			BalanceAfter: balance + points,
			OrderID:      &orderID,
		}); err != nil {
			return err
		}
		return s.repo.IncrementBalance(ctx, tx, userID, points)
	})
	if dbpkg.IsUniqueViolation(err, "ux_reward_ledger_order_type") {
		logCtx := s.logg.WithOrderID(ctx, orderID.String())
		s.logg.Warn(logCtx, "duplicate loyalty credit for order, skipping")
		return nil
	}
	return err
}
