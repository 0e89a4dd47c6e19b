package reconcile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/RahulXTmCoding/desi-otaku-backend/pkg/db"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
)

// Repository persists payment audit records.
type Repository interface {
	CreateOrLoad(ctx context.Context, record *models.PaymentAuditRecord) (*models.PaymentAuditRecord, error)
	Update(ctx context.Context, record *models.PaymentAuditRecord) error
	FindByTransactionRef(ctx context.Context, ref string) (*models.PaymentAuditRecord, error)
	SetOrderID(ctx context.Context, id, orderID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// CreateOrLoad inserts the record; a retried checkout that already created
// one for the same transaction ref loads the existing row instead.
func (r *repository) CreateOrLoad(ctx context.Context, record *models.PaymentAuditRecord) (*models.PaymentAuditRecord, error) {
	err := r.db.WithContext(ctx).Create(record).Error
	if err == nil {
		return record, nil
	}
	if dbpkg.IsUniqueViolation(err, "ux_payment_audits_transaction_ref") {
		return r.FindByTransactionRef(ctx, record.TransactionRef)
	}
	return nil, err
}

func (r *repository) Update(ctx context.Context, record *models.PaymentAuditRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *repository) FindByTransactionRef(ctx context.Context, ref string) (*models.PaymentAuditRecord, error) {
	var record models.PaymentAuditRecord
	err := r.db.WithContext(ctx).First(&record, "transaction_ref = ?", ref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) SetOrderID(ctx context.Context, id, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentAuditRecord{}).
		Where("id = ?", id).
		Update("order_id", orderID).Error
}
