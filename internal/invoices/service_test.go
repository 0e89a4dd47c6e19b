package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
)

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeCounterRepo struct {
	seqByYear map[int]int64
}

func (f *fakeCounterRepo) NextSequence(_ context.Context, _ *gorm.DB, year int) (int64, error) {
	if f.seqByYear == nil {
		f.seqByYear = map[int]int64{}
	}
	f.seqByYear[year]++
	return f.seqByYear[year], nil
}

type fakeAnnotator struct {
	assigned map[uuid.UUID]string
}

func (f *fakeAnnotator) SetInvoiceNumber(_ context.Context, id uuid.UUID, invoiceNumber string) error {
	if f.assigned == nil {
		f.assigned = map[uuid.UUID]string{}
	}
	f.assigned[id] = invoiceNumber
	return nil
}

func newInvoiceService(t *testing.T, repo Repository, orders orderAnnotator) *service {
	t.Helper()
	svc, err := NewService(fakeTx{}, repo, orders, logger.New(logger.Options{Level: zerolog.ErrorLevel}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	s := svc.(*service)
	s.now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestAssignInvoiceNumberFormat(t *testing.T) {
	annotator := &fakeAnnotator{}
	svc := newInvoiceService(t, &fakeCounterRepo{}, annotator)
	order := &models.Order{ID: uuid.New()}

	number, err := svc.AssignInvoiceNumber(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if number != "INV-2026-00001" {
		t.Fatalf("invoice number = %q", number)
	}
	if annotator.assigned[order.ID] != number {
		t.Fatalf("number not written to order")
	}
	if order.InvoiceNumber == nil || *order.InvoiceNumber != number {
		t.Fatalf("in-memory order not annotated")
	}
}

func TestAssignInvoiceNumberSequenceAdvances(t *testing.T) {
	repo := &fakeCounterRepo{}
	svc := newInvoiceService(t, repo, &fakeAnnotator{})

	first, _ := svc.AssignInvoiceNumber(context.Background(), &models.Order{ID: uuid.New()})
	second, _ := svc.AssignInvoiceNumber(context.Background(), &models.Order{ID: uuid.New()})
	if first == second {
		t.Fatalf("sequence must advance, got %q twice", first)
	}
	if second != "INV-2026-00002" {
		t.Fatalf("second invoice = %q", second)
	}
}

func TestAssignInvoiceNumberIsIdempotent(t *testing.T) {
	repo := &fakeCounterRepo{}
	svc := newInvoiceService(t, repo, &fakeAnnotator{})

	existing := "INV-2026-00042"
	order := &models.Order{ID: uuid.New(), InvoiceNumber: &existing}
	number, err := svc.AssignInvoiceNumber(context.Background(), order)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if number != existing {
		t.Fatalf("retry must keep the existing number, got %q", number)
	}
	if len(repo.seqByYear) != 0 {
		t.Fatalf("counter must not advance for an already invoiced order")
	}
}
