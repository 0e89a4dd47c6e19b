package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/RahulXTmCoding/desi-otaku-backend/internal/dispatch"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/notifications"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/orders"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/pricing"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/reconcile"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/shipping"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/config"
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

type fakePricing struct {
	resolution *pricing.Resolution
	err        error
}

func (f *fakePricing) Resolve(context.Context, []pricing.CartItemInput) (*pricing.Resolution, error) {
	return f.resolution, f.err
}

type fakeCoupons struct {
	coupon *models.Coupon
	err    error
}

func (f *fakeCoupons) Validate(context.Context, string, uuid.UUID, int64, time.Time) (*models.Coupon, error) {
	return f.coupon, f.err
}

type fakeRewards struct {
	validateErr error
	redeemErr   error
	redeemed    []int
	credited    []int
}

func (f *fakeRewards) ValidateRedemption(context.Context, uuid.UUID, int, int) error {
	return f.validateErr
}

func (f *fakeRewards) Redeem(_ context.Context, _, _ uuid.UUID, points int) error {
	if f.redeemErr != nil {
		return f.redeemErr
	}
	f.redeemed = append(f.redeemed, points)
	return nil
}

func (f *fakeRewards) Credit(_ context.Context, _, _ uuid.UUID, points int) error {
	f.credited = append(f.credited, points)
	return nil
}

type fakeReconciler struct {
	reconcileErr   error
	flagged        bool
	risk           int
	serverComputed []int64
	captures       []reconcile.CaptureInput
	attached       []uuid.UUID
}

func (f *fakeReconciler) EnsureAuditRecord(_ context.Context, ref string, userID uuid.UUID, claimed int64) (*models.PaymentAuditRecord, error) {
	return &models.PaymentAuditRecord{ID: uuid.New(), TransactionRef: ref, UserID: userID, ClientClaimedPaise: claimed}, nil
}

func (f *fakeReconciler) Reconcile(_ context.Context, record *models.PaymentAuditRecord, in reconcile.CaptureInput, serverComputedPaise int64) (*reconcile.Result, error) {
	f.serverComputed = append(f.serverComputed, serverComputedPaise)
	f.captures = append(f.captures, in)
	if f.reconcileErr != nil {
		return nil, f.reconcileErr
	}
	return &reconcile.Result{
		Record:         record,
		CapturedPaise:  serverComputedPaise,
		PaymentChannel: "upi",
		RiskScore:      f.risk,
		Flagged:        f.flagged,
	}, nil
}

func (f *fakeReconciler) AttachOrder(_ context.Context, _ *models.PaymentAuditRecord, orderID uuid.UUID) error {
	f.attached = append(f.attached, orderID)
	return nil
}

type fakeOrderRepo struct {
	byRef map[string]*models.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{byRef: map[string]*models.Order{}}
}

func (f *fakeOrderRepo) WithTx(*gorm.DB) orders.Repository { return f }

func (f *fakeOrderRepo) Insert(_ context.Context, order *models.Order) (*models.Order, error) {
	if _, exists := f.byRef[order.TransactionRef]; exists {
		return nil, pkgerrors.New(pkgerrors.CodeDuplicateTransaction, "an order already exists for this transaction")
	}
	order.ID = uuid.New()
	f.byRef[order.TransactionRef] = order
	return order, nil
}

func (f *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	for _, o := range f.byRef {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (f *fakeOrderRepo) FindByTransactionRef(_ context.Context, ref string) (*models.Order, error) {
	if o, ok := f.byRef[ref]; ok {
		return o, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (f *fakeOrderRepo) ListByUser(context.Context, uuid.UUID) ([]models.Order, error) { return nil, nil }
func (f *fakeOrderRepo) UpdateStatus(context.Context, uuid.UUID, enums.OrderStatus) error {
	return nil
}
func (f *fakeOrderRepo) SetInvoiceNumber(context.Context, uuid.UUID, string) error { return nil }
func (f *fakeOrderRepo) SetShipmentRef(context.Context, uuid.UUID, string) error   { return nil }
func (f *fakeOrderRepo) CountActiveByUser(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}
func (f *fakeOrderRepo) CountActiveByUserAndCoupon(context.Context, uuid.UUID, string) (int64, error) {
	return 0, nil
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type capturingDispatcher struct {
	tasks []dispatch.Task
}

func (c *capturingDispatcher) Dispatch(_ context.Context, tasks ...dispatch.Task) {
	c.tasks = append(c.tasks, tasks...)
}

type fakeNotifier struct {
	confirmations []uuid.UUID
	alerts        []notifications.OperatorAlert
	confirmErr    error
}

func (f *fakeNotifier) SendOrderConfirmation(_ context.Context, order *models.Order) error {
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmations = append(f.confirmations, order.ID)
	return nil
}

func (f *fakeNotifier) SendOperatorAlert(_ context.Context, alert notifications.OperatorAlert) error {
	f.alerts = append(f.alerts, alert)
	return nil
}

type fakeInvoicer struct{ assigned int }

func (f *fakeInvoicer) AssignInvoiceNumber(context.Context, *models.Order) (string, error) {
	f.assigned++
	return "INV-2026-00001", nil
}

type fakeShipper struct{ booked int }

func (f *fakeShipper) CreateFromOrder(context.Context, *models.Order) (shipping.Shipment, error) {
	f.booked++
	return shipping.Shipment{Ref: "ship-1"}, nil
}

type fakeRedemptions struct {
	recorded []uuid.UUID
}

func (f *fakeRedemptions) RecordRedemption(_ context.Context, couponID, _ uuid.UUID) error {
	f.recorded = append(f.recorded, couponID)
	return nil
}

type harness struct {
	svc        Service
	pricing    *fakePricing
	coupons    *fakeCoupons
	rewards    *fakeRewards
	reconciler *fakeReconciler
	orders     *fakeOrderRepo
	outbox     *fakeOutbox
	dispatcher *capturingDispatcher
	notifier   *fakeNotifier
	invoicer   *fakeInvoicer
	shipper    *fakeShipper
	coupUsage  *fakeRedemptions
}

func testCheckoutCfg() config.CheckoutConfig {
	return config.CheckoutConfig{
		AmountTolerancePaise:     100,
		ShippingFlatPaise:        9900,
		FreeShippingMinPaise:     99900,
		PointValuePaise:          50,
		MaxPointsPerOrder:        50,
		OnlinePaymentDiscountPct: 5,
		RewardEarnRatePct:        1,
		QuantityTiers:            "3:10,5:15,10:20",
		RiskScoreThreshold:       70,
		VelocityWindow:           time.Hour,
	}
}

// threeTeeCart is the worked example: three shirts, subtotal 100000 paise.
func threeTeeCart() *pricing.Resolution {
	productID := uuid.New()
	return &pricing.Resolution{
		Items: []pricing.ResolvedLineItem{
			{ProductID: &productID, Name: "Naruto Tee", Quantity: 2, Size: enums.GarmentSizeM, UnitPricePaise: 30000, LineTotalPaise: 60000},
			{Name: "Custom Tee", Quantity: 1, Size: enums.GarmentSizeL, IsCustom: true, UnitPricePaise: 40000, LineTotalPaise: 40000},
		},
		SubtotalPaise: 100000,
		ItemCount:     3,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		pricing:    &fakePricing{resolution: threeTeeCart()},
		coupons:    &fakeCoupons{},
		rewards:    &fakeRewards{},
		reconciler: &fakeReconciler{},
		orders:     newFakeOrderRepo(),
		outbox:     &fakeOutbox{},
		dispatcher: &capturingDispatcher{},
		notifier:   &fakeNotifier{},
		invoicer:   &fakeInvoicer{},
		shipper:    &fakeShipper{},
		coupUsage:  &fakeRedemptions{},
	}
	cfg := testCheckoutCfg()
	tasks, err := NewTaskSet(h.notifier, h.rewards, h.coupUsage, h.invoicer, h.shipper, cfg)
	if err != nil {
		t.Fatalf("new task set: %v", err)
	}
	h.svc, err = NewService(Deps{
		Tx:         fakeTx{},
		Pricing:    h.pricing,
		Coupons:    h.coupons,
		Rewards:    h.rewards,
		Reconciler: h.reconciler,
		Orders:     h.orders,
		Outbox:     h.outbox,
		Dispatcher: h.dispatcher,
		Tasks:      tasks,
		Config:     cfg,
		Logger:     logger.New(logger.Options{Level: zerolog.ErrorLevel}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return h
}

func quoteInput(userID uuid.UUID) QuoteInput {
	return QuoteInput{
		UserID:  userID,
		Items:   []pricing.CartItemInput{{Name: "ignored", Quantity: 3, Size: enums.GarmentSizeM}},
		Channel: enums.PaymentChannelUPI,
	}
}

func commitInput(userID uuid.UUID, ref string) CommitInput {
	return CommitInput{
		QuoteInput:         quoteInput(userID),
		TransactionRef:     ref,
		CustomerEmail:      "otaku@example.in",
		ClientClaimedPaise: 86000,
		Payment:            reconcile.CaptureInput{GatewayOrderID: "order_1", GatewayPaymentID: "pay_1", Signature: "sig"},
	}
}

func fixedCoupon(value int64) *models.Coupon {
	return &models.Coupon{
		ID:            uuid.New(),
		Code:          "FLAT100",
		DiscountType:  enums.CouponDiscountTypeFixed,
		DiscountValue: value,
		IsActive:      true,
	}
}

func runTasks(t *testing.T, tasks []dispatch.Task) {
	t.Helper()
	for _, task := range tasks {
		if task.Run == nil {
			continue
		}
		_ = task.Run(context.Background())
	}
}

func TestQuoteWorkedExample(t *testing.T) {
	h := newHarness(t)
	h.coupons.coupon = fixedCoupon(10000)

	in := quoteInput(uuid.New())
	in.CouponCode = "FLAT100"
	quote, err := h.svc.QuoteCart(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := quote.Breakdown
	if b.QuantityDiscountPaise != 10000 {
		t.Fatalf("quantity discount = %d", b.QuantityDiscountPaise)
	}
	if b.CouponDiscountPaise != 10000 {
		t.Fatalf("coupon discount = %d", b.CouponDiscountPaise)
	}
	// online discount: 5% of base1 (90000) minus coupon (10000) = 4000
	if b.OnlinePaymentDiscountPaise != 4000 {
		t.Fatalf("online discount = %d", b.OnlinePaymentDiscountPaise)
	}
	if b.ShippingPaise != 0 {
		t.Fatalf("subtotal above threshold must ship free, got %d", b.ShippingPaise)
	}
	if b.TotalPaise != 76000 {
		t.Fatalf("total = %d", b.TotalPaise)
	}
}

func TestQuoteAndCommitProduceIdenticalBreakdown(t *testing.T) {
	h := newHarness(t)
	h.coupons.coupon = fixedCoupon(10000)
	userID := uuid.New()

	in := quoteInput(userID)
	in.CouponCode = "FLAT100"
	in.RewardPoints = 20
	quote, err := h.svc.QuoteCart(context.Background(), in)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}

	ci := commitInput(userID, "txn-1")
	ci.CouponCode = "FLAT100"
	ci.RewardPoints = 20
	order, err := h.svc.CommitOrder(context.Background(), ci)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	b := quote.Breakdown
	if order.TotalPaise != b.TotalPaise ||
		order.QuantityDiscountPaise != b.QuantityDiscountPaise ||
		order.CouponDiscountPaise != b.CouponDiscountPaise ||
		order.RewardDiscountPaise != b.RewardDiscountPaise ||
		order.OnlinePaymentDiscountPaise != b.OnlinePaymentDiscountPaise {
		t.Fatalf("committed order diverges from quote: order %+v, quote %+v", order, b)
	}
	if len(h.reconciler.serverComputed) != 1 || h.reconciler.serverComputed[0] != b.TotalPaise {
		t.Fatalf("reconciler compared against %v, want %d", h.reconciler.serverComputed, b.TotalPaise)
	}
}

func TestCommitThreadsIdentityIntoReconcile(t *testing.T) {
	h := newHarness(t)
	in := commitInput(uuid.New(), "txn-1")
	in.ClientIP = "198.51.100.7"

	if _, err := h.svc.CommitOrder(context.Background(), in); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if len(h.reconciler.captures) != 1 {
		t.Fatalf("reconciler called %d times", len(h.reconciler.captures))
	}
	got := h.reconciler.captures[0]
	if got.CustomerEmail != "otaku@example.in" || got.ClientIP != "198.51.100.7" {
		t.Fatalf("capture identity = %+v", got)
	}
}

func TestCommitDuplicateTransactionRef(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()

	if _, err := h.svc.CommitOrder(context.Background(), commitInput(userID, "txn-1")); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}
	_, err := h.svc.CommitOrder(context.Background(), commitInput(userID, "txn-1"))
	if !pkgerrors.HasCode(err, pkgerrors.CodeDuplicateTransaction) {
		t.Fatalf("expected DUPLICATE_TRANSACTION, got %v", err)
	}
	if len(h.orders.byRef) != 1 {
		t.Fatalf("exactly one order must exist, got %d", len(h.orders.byRef))
	}
}

func TestCommitAmountMismatchCreatesNoOrder(t *testing.T) {
	h := newHarness(t)
	h.reconciler.reconcileErr = pkgerrors.New(pkgerrors.CodeAmountMismatch, "captured amount does not match order total")

	_, err := h.svc.CommitOrder(context.Background(), commitInput(uuid.New(), "txn-1"))
	if !pkgerrors.HasCode(err, pkgerrors.CodeAmountMismatch) {
		t.Fatalf("expected AMOUNT_MISMATCH, got %v", err)
	}
	if len(h.orders.byRef) != 0 {
		t.Fatalf("no order row may exist after a mismatch")
	}
	if len(h.dispatcher.tasks) != 0 {
		t.Fatalf("no side effects may fire for an aborted commit")
	}
}

func TestCommitPaymentNotCapturedCreatesNoOrder(t *testing.T) {
	h := newHarness(t)
	h.reconciler.reconcileErr = pkgerrors.New(pkgerrors.CodePaymentNotCaptured, "payment is authorized, not captured")

	_, err := h.svc.CommitOrder(context.Background(), commitInput(uuid.New(), "txn-1"))
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentNotCaptured) {
		t.Fatalf("expected PAYMENT_NOT_CAPTURED, got %v", err)
	}
	if len(h.orders.byRef) != 0 {
		t.Fatalf("no order row may exist when payment is not captured")
	}
}

func TestCommitRejectsOverCapRedemptionBeforeGateway(t *testing.T) {
	h := newHarness(t)
	h.rewards.validateErr = pkgerrors.New(pkgerrors.CodeRedemptionCapExceeded, "redemption exceeds per-order cap")

	in := commitInput(uuid.New(), "txn-1")
	in.RewardPoints = 60
	_, err := h.svc.CommitOrder(context.Background(), in)
	if !pkgerrors.HasCode(err, pkgerrors.CodeRedemptionCapExceeded) {
		t.Fatalf("expected REDEMPTION_CAP_EXCEEDED, got %v", err)
	}
	if len(h.orders.byRef) != 0 {
		t.Fatalf("no order row may exist")
	}
}

func TestCommitRejectsCashOnDelivery(t *testing.T) {
	h := newHarness(t)
	in := commitInput(uuid.New(), "txn-1")
	in.Channel = enums.PaymentChannelCOD
	_, err := h.svc.CommitOrder(context.Background(), in)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestCommitRewardLedgerFailureDoesNotRollBack(t *testing.T) {
	h := newHarness(t)
	h.rewards.redeemErr = errors.New("ledger write failed")

	in := commitInput(uuid.New(), "txn-1")
	in.RewardPoints = 20
	order, err := h.svc.CommitOrder(context.Background(), in)
	if err != nil {
		t.Fatalf("ledger failure must not fail the commit: %v", err)
	}
	if _, ok := h.orders.byRef[order.TransactionRef]; !ok {
		t.Fatalf("order must stand despite the ledger failure")
	}
}

func TestCommitEmitsOrderPlacedAndAttachesAudit(t *testing.T) {
	h := newHarness(t)
	order, err := h.svc.CommitOrder(context.Background(), commitInput(uuid.New(), "txn-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.outbox.events) != 1 || h.outbox.events[0].EventType != enums.EventOrderPlaced {
		t.Fatalf("expected one order.placed event, got %+v", h.outbox.events)
	}
	if len(h.reconciler.attached) != 1 || h.reconciler.attached[0] != order.ID {
		t.Fatalf("audit record not linked to the order")
	}
	if order.Status != enums.OrderStatusReceived {
		t.Fatalf("orders must start in received, got %s", order.Status)
	}
}

func TestCommitFlaggedPaymentStillCommits(t *testing.T) {
	h := newHarness(t)
	h.reconciler.flagged = true
	h.reconciler.risk = 85

	order, err := h.svc.CommitOrder(context.Background(), commitInput(uuid.New(), "txn-1"))
	if err != nil {
		t.Fatalf("flagging is advisory, commit must succeed: %v", err)
	}
	if len(h.outbox.events) != 2 || h.outbox.events[1].EventType != enums.EventPaymentFlagged {
		t.Fatalf("expected payment.flagged event, got %+v", h.outbox.events)
	}

	runTasks(t, h.dispatcher.tasks)
	if len(h.notifier.alerts) != 1 || h.notifier.alerts[0].OrderID != order.ID {
		t.Fatalf("expected an operator alert for the flagged order")
	}
}

func TestCommitDispatchesSideEffects(t *testing.T) {
	h := newHarness(t)
	h.coupons.coupon = fixedCoupon(10000)

	in := commitInput(uuid.New(), "txn-1")
	in.CouponCode = "FLAT100"
	order, err := h.svc.CommitOrder(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runTasks(t, h.dispatcher.tasks)
	if h.invoicer.assigned != 1 {
		t.Fatalf("invoice task did not run")
	}
	if h.shipper.booked != 1 {
		t.Fatalf("shipment task did not run")
	}
	if len(h.notifier.confirmations) != 1 {
		t.Fatalf("confirmation task did not run")
	}
	if len(h.coupUsage.recorded) != 1 {
		t.Fatalf("coupon usage task did not run")
	}
	// 1% of 76000 paise at 50 paise per point = 15 points
	if len(h.rewards.credited) != 1 || h.rewards.credited[0] != int(order.TotalPaise/100/50) {
		t.Fatalf("loyalty credit = %v", h.rewards.credited)
	}
}

func TestCommitNoCouponSkipsUsageTask(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.CommitOrder(context.Background(), commitInput(uuid.New(), "txn-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runTasks(t, h.dispatcher.tasks)
	if len(h.coupUsage.recorded) != 0 {
		t.Fatalf("coupon usage must not run without a coupon")
	}
}

// A failing dispatch task must not change the committed order or the
// response the shopper already received.
func TestSideEffectFailureDoesNotTouchOrderState(t *testing.T) {
	h := newHarness(t)
	h.notifier.confirmErr = errors.New("smtp relay down")

	order, err := h.svc.CommitOrder(context.Background(), commitInput(uuid.New(), "txn-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d, err := dispatch.New(time.Second, logger.New(logger.Options{Level: zerolog.ErrorLevel}), nil)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	d.Dispatch(context.Background(), h.dispatcher.tasks...)
	if waitErr := d.Wait(); waitErr == nil {
		t.Fatalf("expected the confirmation task to fail")
	}

	persisted := h.orders.byRef[order.TransactionRef]
	if persisted.Status != enums.OrderStatusReceived || persisted.TotalPaise != order.TotalPaise {
		t.Fatalf("order state changed by a side-effect failure: %+v", persisted)
	}
	if h.invoicer.assigned != 1 || h.shipper.booked != 1 {
		t.Fatalf("other tasks must still run")
	}
}
