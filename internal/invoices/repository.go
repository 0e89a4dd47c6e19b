package invoices

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Repository issues per-year invoice sequence numbers.
type Repository interface {
	NextSequence(ctx context.Context, tx *gorm.DB, year int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// NextSequence upserts the per-year counter row and increments it in one
// statement, so concurrent checkouts never observe the same sequence value.
func (r *repository) NextSequence(ctx context.Context, tx *gorm.DB, year int) (int64, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	var seq []int64
	err := conn.WithContext(ctx).Raw(`
		INSERT INTO invoice_counters (year, last_seq)
		VALUES (?, 1)
		ON CONFLICT (year)
		DO UPDATE SET last_seq = invoice_counters.last_seq + 1
		RETURNING last_seq`, year).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	if len(seq) == 0 {
		return 0, fmt.Errorf("invoice counter returned no sequence for year %d", year)
	}
	return seq[0], nil
}
