package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderAnnotator interface {
	SetInvoiceNumber(ctx context.Context, id uuid.UUID, invoiceNumber string) error
}

// Service assigns sequential invoice numbers to committed orders.
// Numbers take the form INV-<year>-<seq>, with the sequence restarting
// each calendar year.
type Service interface {
	AssignInvoiceNumber(ctx context.Context, order *models.Order) (string, error)
}

type service struct {
	tx     txRunner
	repo   Repository
	orders orderAnnotator
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the invoice number issuer.
func NewService(tx txRunner, repo Repository, orders orderAnnotator, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order annotator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, repo: repo, orders: orders, logg: logg, now: time.Now}, nil
}

// AssignInvoiceNumber issues the next number for the current year and writes
// it onto the order. An order that already carries a number keeps it, which
// makes retried dispatch runs idempotent.
func (s *service) AssignInvoiceNumber(ctx context.Context, order *models.Order) (string, error) {
	if order == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if order.InvoiceNumber != nil && *order.InvoiceNumber != "" {
		return *order.InvoiceNumber, nil
	}

	year := s.now().Year()
	var invoiceNumber string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		seq, err := s.repo.NextSequence(ctx, tx, year)
		if err != nil {
			return err
		}
		invoiceNumber = fmt.Sprintf("INV-%d-%05d", year, seq)
		return s.orders.SetInvoiceNumber(ctx, order.ID, invoiceNumber)
	})
	if err != nil {
		return "", err
	}

	order.InvoiceNumber = &invoiceNumber
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, fmt.Sprintf("invoice %s assigned", invoiceNumber))
	return invoiceNumber, nil
}
