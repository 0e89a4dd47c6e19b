package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
)

// ProductRepository exposes the catalog reads the checkout path needs.
type ProductRepository interface {
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// DesignRepository resolves printable designs for custom garments.
type DesignRepository interface {
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Design, error)
}

// Repository wires together catalog persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Products exposes the product half of the repository.
func (r *Repository) Products() ProductRepository {
	return productRepo{db: r.db}
}

// Designs exposes the design half of the repository.
func (r *Repository) Designs() DesignRepository {
	return designRepo{db: r.db}
}

type productRepo struct {
	db *gorm.DB
}

// FindActiveByID loads a product that is active and not soft-deleted.
// Anything else resolves to PRODUCT_UNAVAILABLE so callers reject the line.
func (r productRepo) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeProductUnavailable, "product unavailable")
		}
		return nil, err
	}
	return &product, nil
}

type designRepo struct {
	db *gorm.DB
}

func (r designRepo) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Design, error) {
	var design models.Design
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		First(&design, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeProductUnavailable, "design unavailable")
		}
		return nil, err
	}
	return &design, nil
}
