package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/enums"
	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/outbox"
)

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeRepo struct {
	orders        map[uuid.UUID]*models.Order
	statusUpdates []enums.OrderStatus
}

func newFakeRepo(orders ...*models.Order) *fakeRepo {
	f := &fakeRepo{orders: map[uuid.UUID]*models.Order{}}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeRepo) WithTx(*gorm.DB) Repository { return f }

func (f *fakeRepo) Insert(_ context.Context, order *models.Order) (*models.Order, error) {
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	copied := *order
	return &copied, nil
}

func (f *fakeRepo) FindByTransactionRef(_ context.Context, ref string) (*models.Order, error) {
	for _, o := range f.orders {
		if o.TransactionRef == ref {
			return o, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (f *fakeRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, status enums.OrderStatus) error {
	f.orders[id].Status = status
	f.statusUpdates = append(f.statusUpdates, status)
	return nil
}

func (f *fakeRepo) SetInvoiceNumber(_ context.Context, id uuid.UUID, inv string) error {
	f.orders[id].InvoiceNumber = &inv
	return nil
}

func (f *fakeRepo) SetShipmentRef(_ context.Context, id uuid.UUID, ref string) error {
	f.orders[id].ShipmentRef = &ref
	return nil
}

func (f *fakeRepo) CountActiveByUser(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) CountActiveByUserAndCoupon(context.Context, uuid.UUID, string) (int64, error) {
	return 0, nil
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func newOrderService(t *testing.T, repo Repository, ob *fakeOutbox) Service {
	t.Helper()
	if ob == nil {
		ob = &fakeOutbox{}
	}
	svc, err := NewService(fakeTx{}, repo, ob, logger.New(logger.Options{Level: zerolog.ErrorLevel}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestGetForUserHidesOtherUsersOrders(t *testing.T) {
	owner := uuid.New()
	order := &models.Order{ID: uuid.New(), UserID: owner, Status: enums.OrderStatusReceived}
	svc := newOrderService(t, newFakeRepo(order), nil)

	if _, err := svc.GetForUser(context.Background(), order.ID, owner); err != nil {
		t.Fatalf("owner should see the order: %v", err)
	}
	_, err := svc.GetForUser(context.Background(), order.ID, uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("stranger should get NOT_FOUND, got %v", err)
	}
}

func TestTransitionForwardChain(t *testing.T) {
	order := &models.Order{ID: uuid.New(), UserID: uuid.New(), Status: enums.OrderStatusReceived}
	repo := newFakeRepo(order)
	ob := &fakeOutbox{}
	svc := newOrderService(t, repo, ob)

	for _, target := range []enums.OrderStatus{
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
	} {
		updated, err := svc.Transition(context.Background(), order.ID, target)
		if err != nil {
			t.Fatalf("transition to %s failed: %v", target, err)
		}
		if updated.Status != target {
			t.Fatalf("status = %s, want %s", updated.Status, target)
		}
	}
	if len(ob.events) != 3 {
		t.Fatalf("expected 3 status events, got %d", len(ob.events))
	}
	if ob.events[0].EventType != enums.EventOrderStatusChanged {
		t.Fatalf("unexpected event type %s", ob.events[0].EventType)
	}
}

func TestTransitionRejectsSkippingStates(t *testing.T) {
	order := &models.Order{ID: uuid.New(), UserID: uuid.New(), Status: enums.OrderStatusReceived}
	svc := newOrderService(t, newFakeRepo(order), nil)

	_, err := svc.Transition(context.Background(), order.ID, enums.OrderStatusDelivered)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestTransitionCancelFromNonTerminal(t *testing.T) {
	for _, from := range []enums.OrderStatus{
		enums.OrderStatusReceived,
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
	} {
		order := &models.Order{ID: uuid.New(), UserID: uuid.New(), Status: from}
		svc := newOrderService(t, newFakeRepo(order), nil)
		if _, err := svc.Transition(context.Background(), order.ID, enums.OrderStatusCancelled); err != nil {
			t.Fatalf("cancel from %s should be allowed: %v", from, err)
		}
	}

	order := &models.Order{ID: uuid.New(), UserID: uuid.New(), Status: enums.OrderStatusDelivered}
	svc := newOrderService(t, newFakeRepo(order), nil)
	_, err := svc.Transition(context.Background(), order.ID, enums.OrderStatusCancelled)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("cancel from delivered must fail, got %v", err)
	}
}

func TestCancelForUser(t *testing.T) {
	owner := uuid.New()
	order := &models.Order{ID: uuid.New(), UserID: owner, Status: enums.OrderStatusReceived}
	ob := &fakeOutbox{}
	svc := newOrderService(t, newFakeRepo(order), ob)

	updated, err := svc.CancelForUser(context.Background(), order.ID, owner)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if updated.Status != enums.OrderStatusCancelled {
		t.Fatalf("status = %s", updated.Status)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventOrderStatusChanged {
		t.Fatalf("expected one status event, got %+v", ob.events)
	}
}

func TestCancelForUserHidesOtherUsersOrders(t *testing.T) {
	order := &models.Order{ID: uuid.New(), UserID: uuid.New(), Status: enums.OrderStatusReceived}
	svc := newOrderService(t, newFakeRepo(order), nil)

	_, err := svc.CancelForUser(context.Background(), order.ID, uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("stranger should get NOT_FOUND, got %v", err)
	}
}

func TestCancelForUserRejectsDeliveredOrder(t *testing.T) {
	owner := uuid.New()
	order := &models.Order{ID: uuid.New(), UserID: owner, Status: enums.OrderStatusDelivered}
	svc := newOrderService(t, newFakeRepo(order), nil)

	_, err := svc.CancelForUser(context.Background(), order.ID, owner)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	order := &models.Order{ID: uuid.New(), UserID: uuid.New(), Status: enums.OrderStatusReceived}
	svc := newOrderService(t, newFakeRepo(order), nil)
	_, err := svc.Transition(context.Background(), order.ID, enums.OrderStatus("returned"))
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}
