package reconcile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/config"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/razorpay"
)

type fakeAuditRepo struct {
	records map[string]*models.PaymentAuditRecord
	updates int
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{records: map[string]*models.PaymentAuditRecord{}}
}

func (f *fakeAuditRepo) CreateOrLoad(_ context.Context, record *models.PaymentAuditRecord) (*models.PaymentAuditRecord, error) {
	if existing, ok := f.records[record.TransactionRef]; ok {
		return existing, nil
	}
	record.ID = uuid.New()
	f.records[record.TransactionRef] = record
	return record, nil
}

func (f *fakeAuditRepo) Update(_ context.Context, record *models.PaymentAuditRecord) error {
	f.updates++
	f.records[record.TransactionRef] = record
	return nil
}

func (f *fakeAuditRepo) FindByTransactionRef(_ context.Context, ref string) (*models.PaymentAuditRecord, error) {
	return f.records[ref], nil
}

func (f *fakeAuditRepo) SetOrderID(_ context.Context, _ uuid.UUID, _ uuid.UUID) error {
	return nil
}

type fakeGateway struct {
	payment      razorpay.Payment
	fetchErr     error
	signatureOK  bool
	fetchedIDs   []string
	verifiedArgs [][3]string
}

func (f *fakeGateway) FetchPayment(_ context.Context, paymentID string) (razorpay.Payment, error) {
	f.fetchedIDs = append(f.fetchedIDs, paymentID)
	return f.payment, f.fetchErr
}

func (f *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	f.verifiedArgs = append(f.verifiedArgs, [3]string{orderID, paymentID, signature})
	return f.signatureOK
}

type fakeVelocity struct {
	counts map[string]int64
	bumped []string
	err    error
}

func (f *fakeVelocity) BumpVelocity(_ context.Context, scope string, _ time.Duration) (int64, error) {
	f.bumped = append(f.bumped, scope)
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[scope]++
	return f.counts[scope], nil
}

func testCfg() config.CheckoutConfig {
	return config.CheckoutConfig{
		AmountTolerancePaise: 100,
		RiskScoreThreshold:   70,
		VelocityWindow:       time.Hour,
	}
}

func newReconciler(t *testing.T, repo Repository, gw razorpay.Gateway, vel velocityCounter) Service {
	t.Helper()
	if repo == nil {
		repo = newFakeAuditRepo()
	}
	if vel == nil {
		vel = &fakeVelocity{}
	}
	svc, err := NewService(repo, gw, vel, testCfg(), logger.New(logger.Options{Level: zerolog.ErrorLevel}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func capturedGateway(amount int64) *fakeGateway {
	return &fakeGateway{
		payment:     razorpay.Payment{ID: "pay_1", Status: razorpay.StatusCaptured, AmountPaise: amount, Method: "upi"},
		signatureOK: true,
	}
}

func input() CaptureInput {
	return CaptureInput{GatewayOrderID: "order_1", GatewayPaymentID: "pay_1", Signature: "sig"}
}

func TestEnsureAuditRecordIsIdempotent(t *testing.T) {
	repo := newFakeAuditRepo()
	svc := newReconciler(t, repo, capturedGateway(1000), nil)
	userID := uuid.New()

	first, err := svc.EnsureAuditRecord(context.Background(), "txn-1", userID, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.EnsureAuditRecord(context.Background(), "txn-1", userID, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same record on retry")
	}

	var events []models.PaymentAuditEvent
	if err := json.Unmarshal(first.Events, &events); err != nil {
		t.Fatalf("events not valid json: %v", err)
	}
	if len(events) == 0 || events[0].Kind != "created" {
		t.Fatalf("expected created event, got %+v", events)
	}
}

func TestReconcileHappyPath(t *testing.T) {
	gw := capturedGateway(80000)
	svc := newReconciler(t, nil, gw, &fakeVelocity{})
	record := &models.PaymentAuditRecord{TransactionRef: "txn-1", UserID: uuid.New(), ClientClaimedPaise: 80000}

	res, err := svc.Reconcile(context.Background(), record, input(), 80000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CapturedPaise != 80000 {
		t.Fatalf("captured = %d", res.CapturedPaise)
	}
	if res.Flagged {
		t.Fatalf("clean payment must not be flagged")
	}
	if record.GatewayCapturedPaise != 80000 || record.ServerComputedPaise != 80000 {
		t.Fatalf("record amounts not recorded: %+v", record)
	}
}

func TestReconcileWithinTolerance(t *testing.T) {
	gw := capturedGateway(80050)
	svc := newReconciler(t, nil, gw, nil)
	record := &models.PaymentAuditRecord{TransactionRef: "txn-1", UserID: uuid.New()}

	res, err := svc.Reconcile(context.Background(), record, input(), 80000)
	if err != nil {
		t.Fatalf("difference within tolerance must reconcile: %v", err)
	}
	if res.RiskScore == 0 {
		t.Fatalf("residual difference should contribute to the risk score")
	}
}

func TestReconcileAmountMismatch(t *testing.T) {
	gw := capturedGateway(70000)
	svc := newReconciler(t, nil, gw, nil)
	record := &models.PaymentAuditRecord{TransactionRef: "txn-1", UserID: uuid.New()}

	_, err := svc.Reconcile(context.Background(), record, input(), 80000)
	if !pkgerrors.HasCode(err, pkgerrors.CodeAmountMismatch) {
		t.Fatalf("expected AMOUNT_MISMATCH, got %v", err)
	}

	var events []models.PaymentAuditEvent
	if err := json.Unmarshal(record.Events, &events); err != nil {
		t.Fatalf("events not valid json: %v", err)
	}
	last := events[len(events)-1]
	if last.Kind != "amount_mismatch" {
		t.Fatalf("expected mismatch event on timeline, got %q", last.Kind)
	}
}

func TestReconcileAuthorizedPayment(t *testing.T) {
	gw := capturedGateway(80000)
	gw.payment.Status = razorpay.StatusAuthorized
	svc := newReconciler(t, nil, gw, nil)
	record := &models.PaymentAuditRecord{TransactionRef: "txn-1", UserID: uuid.New(), ClientClaimedPaise: 80000}

	res, err := svc.Reconcile(context.Background(), record, input(), 80000)
	if err != nil {
		t.Fatalf("authorized payment must reconcile: %v", err)
	}
	if res.CapturedPaise != 80000 {
		t.Fatalf("captured = %d", res.CapturedPaise)
	}
}

func TestReconcileNotCaptured(t *testing.T) {
	for _, status := range []string{razorpay.StatusFailed, razorpay.StatusRefunded} {
		gw := capturedGateway(80000)
		gw.payment.Status = status
		svc := newReconciler(t, nil, gw, nil)
		record := &models.PaymentAuditRecord{TransactionRef: "txn-1", UserID: uuid.New()}

		_, err := svc.Reconcile(context.Background(), record, input(), 80000)
		if !pkgerrors.HasCode(err, pkgerrors.CodePaymentNotCaptured) {
			t.Fatalf("status %q: expected PAYMENT_NOT_CAPTURED, got %v", status, err)
		}
	}
}

func TestReconcileBadSignature(t *testing.T) {
	gw := capturedGateway(80000)
	gw.signatureOK = false
	svc := newReconciler(t, nil, gw, nil)
	record := &models.PaymentAuditRecord{TransactionRef: "txn-1", UserID: uuid.New()}

	_, err := svc.Reconcile(context.Background(), record, input(), 80000)
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentNotCaptured) {
		t.Fatalf("expected PAYMENT_NOT_CAPTURED, got %v", err)
	}
	if len(gw.fetchedIDs) != 0 {
		t.Fatalf("gateway must not be queried when the signature fails")
	}
}

func TestReconcileHighVelocityFlags(t *testing.T) {
	gw := capturedGateway(80000)
	userID := uuid.New()
	vel := &fakeVelocity{counts: map[string]int64{"user:" + userID.String(): 4}}
	svc := newReconciler(t, nil, gw, vel)
	record := &models.PaymentAuditRecord{TransactionRef: "txn-1", UserID: userID}

	res, err := svc.Reconcile(context.Background(), record, input(), 80000)
	if err != nil {
		t.Fatalf("flagging must not fail the reconciliation: %v", err)
	}
	if !res.Flagged {
		t.Fatalf("expected flag at velocity 5, score %d", res.RiskScore)
	}
	if record.FlagReason == nil {
		t.Fatalf("flagged record needs a reason")
	}
}

func TestReconcileSharedIPVelocityFlags(t *testing.T) {
	gw := capturedGateway(80000)
	vel := &fakeVelocity{counts: map[string]int64{"ip:203.0.113.9": 3}}
	svc := newReconciler(t, nil, gw, vel)

	in := input()
	in.ClientIP = "203.0.113.9"
	in.CustomerEmail = "otaku@example.com"
	record := &models.PaymentAuditRecord{TransactionRef: "txn-9", UserID: uuid.New(), ClientClaimedPaise: 80000}

	res, err := svc.Reconcile(context.Background(), record, in, 80000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Flagged {
		t.Fatalf("hot address must flag even a fresh account, score %d", res.RiskScore)
	}
	for _, want := range []string{"user:" + record.UserID.String(), "ip:203.0.113.9", "email:otaku@example.com"} {
		if vel.counts[want] == 0 {
			t.Fatalf("scope %q was not counted, bumped %v", want, vel.bumped)
		}
	}
}

func TestReconcileVelocityOutageDegrades(t *testing.T) {
	gw := capturedGateway(80000)
	svc := newReconciler(t, nil, gw, &fakeVelocity{err: context.DeadlineExceeded})
	record := &models.PaymentAuditRecord{TransactionRef: "txn-1", UserID: uuid.New()}

	res, err := svc.Reconcile(context.Background(), record, input(), 80000)
	if err != nil {
		t.Fatalf("redis outage must not fail checkout: %v", err)
	}
	if res.Flagged {
		t.Fatalf("unscored payment must not be flagged")
	}
}
