package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/RahulXTmCoding/desi-otaku-backend/pkg/db"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/enums"
	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
)

// Repository persists orders and line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByTransactionRef(ctx context.Context, ref string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	SetInvoiceNumber(ctx context.Context, id uuid.UUID, invoiceNumber string) error
	SetShipmentRef(ctx context.Context, id uuid.UUID, shipmentRef string) error
	CountActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	CountActiveByUserAndCoupon(ctx context.Context, userID uuid.UUID, code string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

// Insert creates the order with its line items. A transaction ref that was
// already committed fails the unique index and maps to DUPLICATE_TRANSACTION,
// which is what makes retried submissions idempotent.
func (r *repository) Insert(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_orders_transaction_ref") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDuplicateTransaction, err,
				"an order already exists for this transaction")
		}
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByTransactionRef(ctx context.Context, ref string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "transaction_ref = ?", ref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	updates := map[string]any{"status": status}
	switch status {
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = time.Now()
	case enums.OrderStatusDelivered:
		updates["delivered_at"] = time.Now()
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) SetInvoiceNumber(ctx context.Context, id uuid.UUID, invoiceNumber string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("invoice_number", invoiceNumber).Error
}

func (r *repository) SetShipmentRef(ctx context.Context, id uuid.UUID, shipmentRef string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("shipment_ref", shipmentRef).Error
}

// CountActiveByUser counts a user's non-cancelled orders. The exclusion set
// must stay aligned with CountActiveByUserAndCoupon: both treat every status
// except cancelled as a prior order.
func (r *repository) CountActiveByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ? AND status <> ?", userID, enums.OrderStatusCancelled).
		Count(&count).Error
	return count, err
}

func (r *repository) CountActiveByUserAndCoupon(ctx context.Context, userID uuid.UUID, code string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ? AND coupon_code = ? AND status <> ?", userID, code, enums.OrderStatusCancelled).
		Count(&count).Error
	return count, err
}
