package rewards

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
)

// Repository exposes reward ledger persistence.
type Repository interface {
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	DecrementIfEnough(ctx context.Context, tx *gorm.DB, userID uuid.UUID, points int) (newBalance int, ok bool, err error)
	IncrementBalance(ctx context.Context, tx *gorm.DB, userID uuid.UUID, points int) error
	InsertLedgerEntry(ctx context.Context, tx *gorm.DB, entry *models.RewardLedgerEntry) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Balance reads the cached projection; a user with no row has zero points.
func (r *repository) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	var balance models.RewardBalance
	err := r.db.WithContext(ctx).First(&balance, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return balance.PointsBalance, nil
}

// DecrementIfEnough subtracts points only when the balance covers them. The
// conditional UPDATE is the concurrency guard: two racing redemptions cannot
// both succeed past the available balance.
func (r *repository) DecrementIfEnough(ctx context.Context, tx *gorm.DB, userID uuid.UUID, points int) (int, bool, error) {
	db := r.conn(tx)
	var balances []int
	res := db.WithContext(ctx).Raw(
		`UPDATE reward_balances
		 SET points_balance = points_balance - ?, updated_at = now()
		 WHERE user_id = ? AND points_balance >= ?
		 RETURNING points_balance`,
		points, userID, points,
	).Scan(&balances)
	if res.Error != nil {
		return 0, false, res.Error
	}
	if len(balances) == 0 {
		return 0, false, nil
	}
	return balances[0], true, nil
}

// IncrementBalance adds points, creating the balance row on first credit.
func (r *repository) IncrementBalance(ctx context.Context, tx *gorm.DB, userID uuid.UUID, points int) error {
	db := r.conn(tx)
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"points_balance": gorm.Expr("reward_balances.points_balance + ?", points),
			}),
		}).
		Create(&models.RewardBalance{UserID: userID, PointsBalance: points}).Error
}

func (r *repository) InsertLedgerEntry(ctx context.Context, tx *gorm.DB, entry *models.RewardLedgerEntry) error {
	db := r.conn(tx)
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
