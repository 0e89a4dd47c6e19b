package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/config"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/razorpay"
)

// Audit timeline event kinds.
const (
	eventCreated        = "created"
	eventGatewayFetched = "gateway_fetched"
	eventSignatureBad   = "signature_rejected"
	eventNotCaptured    = "not_captured"
	eventMismatch       = "amount_mismatch"
	eventReconciled     = "reconciled"
	eventRiskScored     = "risk_scored"
)

type velocityCounter interface {
	BumpVelocity(ctx context.Context, scope string, window time.Duration) (int64, error)
}

// CaptureInput carries the gateway callback parameters for one checkout,
// plus the client identity signals the risk score reads.
type CaptureInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	CustomerEmail    string
	ClientIP         string
}

// Result is the reconciliation outcome. Flagged payments still commit when
// the amount reconciles; the flag routes the audit record to manual review.
type Result struct {
	Record         *models.PaymentAuditRecord
	CapturedPaise  int64
	PaymentChannel string
	RiskScore      int
	Flagged        bool
}

// Service compares server-computed totals against what the gateway captured
// and maintains the per-attempt forensic audit trail.
type Service interface {
	EnsureAuditRecord(ctx context.Context, transactionRef string, userID uuid.UUID, clientClaimedPaise int64) (*models.PaymentAuditRecord, error)
	Reconcile(ctx context.Context, record *models.PaymentAuditRecord, in CaptureInput, serverComputedPaise int64) (*Result, error)
	AttachOrder(ctx context.Context, record *models.PaymentAuditRecord, orderID uuid.UUID) error
}

type service struct {
	repo     Repository
	gateway  razorpay.Gateway
	velocity velocityCounter
	cfg      config.CheckoutConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the payment reconciler.
func NewService(repo Repository, gateway razorpay.Gateway, velocity velocityCounter, cfg config.CheckoutConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if velocity == nil {
		return nil, fmt.Errorf("velocity counter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		gateway:  gateway,
		velocity: velocity,
		cfg:      cfg,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// EnsureAuditRecord creates the audit record before the gateway is queried,
// so even an attempt that dies mid-flight leaves a trail.
func (s *service) EnsureAuditRecord(ctx context.Context, transactionRef string, userID uuid.UUID, clientClaimedPaise int64) (*models.PaymentAuditRecord, error) {
	record := &models.PaymentAuditRecord{
		TransactionRef:     transactionRef,
		UserID:             userID,
		ClientClaimedPaise: clientClaimedPaise,
	}
	if err := record.AppendEvent(eventCreated, "", s.now()); err != nil {
		return nil, err
	}
	return s.repo.CreateOrLoad(ctx, record)
}

// Reconcile fetches the captured payment, verifies the callback signature,
// requires captured status, and compares amounts within the configured
// tolerance. Every branch appends to the audit timeline before returning.
func (s *service) Reconcile(ctx context.Context, record *models.PaymentAuditRecord, in CaptureInput, serverComputedPaise int64) (*Result, error) {
	record.ServerComputedPaise = serverComputedPaise

	if !s.gateway.VerifySignature(in.GatewayOrderID, in.GatewayPaymentID, in.Signature) {
		s.failAudit(ctx, record, eventSignatureBad, "callback signature did not verify")
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotCaptured, "payment signature invalid")
	}

	payment, err := s.gateway.FetchPayment(ctx, in.GatewayPaymentID)
	if err != nil {
		s.failAudit(ctx, record, eventNotCaptured, "gateway lookup failed")
		return nil, err
	}
	s.appendEvent(ctx, record, eventGatewayFetched, fmt.Sprintf("status=%s amount=%d", payment.Status, payment.AmountPaise))
	record.GatewayCapturedPaise = payment.AmountPaise

	if !payment.Captured() {
		s.failAudit(ctx, record, eventNotCaptured, fmt.Sprintf("payment status %q", payment.Status))
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotCaptured,
			fmt.Sprintf("payment is %q, not captured or authorized", payment.Status))
	}

	diff := payment.AmountPaise - serverComputedPaise
	if diff < 0 {
		diff = -diff
	}
	if diff > s.cfg.AmountTolerancePaise {
		s.failAudit(ctx, record, eventMismatch,
			fmt.Sprintf("captured=%d computed=%d tolerance=%d", payment.AmountPaise, serverComputedPaise, s.cfg.AmountTolerancePaise))
		return nil, pkgerrors.New(pkgerrors.CodeAmountMismatch, "captured amount does not match order total").
			WithDetails(map[string]int64{
				"captured_paise": payment.AmountPaise,
				"computed_paise": serverComputedPaise,
			})
	}

	score, flagged := s.scoreRisk(ctx, record, in, diff)
	record.RiskScore = score
	record.Flagged = flagged
	if flagged {
		reason := "velocity and amount signals crossed the review threshold"
		record.FlagReason = &reason
	}

	s.appendEvent(ctx, record, eventReconciled, "")
	if err := s.repo.Update(ctx, record); err != nil {
		return nil, err
	}

	return &Result{
		Record:         record,
		CapturedPaise:  payment.AmountPaise,
		PaymentChannel: payment.Method,
		RiskScore:      score,
		Flagged:        flagged,
	}, nil
}

// AttachOrder links the committed order to its audit record.
func (s *service) AttachOrder(ctx context.Context, record *models.PaymentAuditRecord, orderID uuid.UUID) error {
	record.OrderID = &orderID
	return s.repo.SetOrderID(ctx, record.ID, orderID)
}

// scoreRisk combines checkout velocity inside the configured window with the
// residual amount difference. Velocity is tracked per user, per client IP
// and per email; the hottest dimension drives the score, so one IP cycling
// through accounts reads the same as one account cycling through checkouts.
// A redis outage degrades to an unscored, not a failed, reconciliation.
func (s *service) scoreRisk(ctx context.Context, record *models.PaymentAuditRecord, in CaptureInput, diffPaise int64) (int, bool) {
	score := 0
	if hottest := s.peakVelocity(ctx, record, in); hottest > 1 {
		score += int(hottest-1) * 25
	}
	if diffPaise > 0 {
		score += 10
	}
	if record.ClientClaimedPaise > 0 && record.ClientClaimedPaise != record.ServerComputedPaise {
		score += 15
	}
	if score > 100 {
		score = 100
	}
	s.appendEvent(ctx, record, eventRiskScored, fmt.Sprintf("score=%d", score))
	return score, score >= s.cfg.RiskScoreThreshold
}

func (s *service) peakVelocity(ctx context.Context, record *models.PaymentAuditRecord, in CaptureInput) int64 {
	scopes := []string{"user:" + record.UserID.String()}
	if ip := in.ClientIP; ip != "" {
		scopes = append(scopes, "ip:"+ip)
	}
	if email := in.CustomerEmail; email != "" {
		scopes = append(scopes, "email:"+email)
	}

	var peak int64
	for _, scope := range scopes {
		count, err := s.velocity.BumpVelocity(ctx, scope, s.cfg.VelocityWindow)
		if err != nil {
			logCtx := s.logg.WithTransactionRef(ctx, record.TransactionRef)
			s.logg.Warn(logCtx, "velocity counter unavailable, scoring without it")
			continue
		}
		if count > peak {
			peak = count
		}
	}
	return peak
}

func (s *service) failAudit(ctx context.Context, record *models.PaymentAuditRecord, kind, message string) {
	s.appendEvent(ctx, record, kind, message)
	if err := s.repo.Update(ctx, record); err != nil {
		logCtx := s.logg.WithTransactionRef(ctx, record.TransactionRef)
		s.logg.Error(logCtx, "persisting audit record failed", err)
	}
}

func (s *service) appendEvent(ctx context.Context, record *models.PaymentAuditRecord, kind, message string) {
	if err := record.AppendEvent(kind, message, s.now()); err != nil {
		logCtx := s.logg.WithTransactionRef(ctx, record.TransactionRef)
		s.logg.Error(logCtx, "appending audit event failed", err)
	}
}
