package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/RahulXTmCoding/desi-otaku-backend/internal/discount"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/dispatch"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/orders"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/pricing"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/reconcile"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/config"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/enums"
	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/metrics"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/outbox"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type couponValidator interface {
	Validate(ctx context.Context, code string, userID uuid.UUID, subtotalPaise int64, now time.Time) (*models.Coupon, error)
}

type rewardsLedger interface {
	ValidateRedemption(ctx context.Context, userID uuid.UUID, points, maxPerOrder int) error
	Redeem(ctx context.Context, userID, orderID uuid.UUID, points int) error
	Credit(ctx context.Context, userID, orderID uuid.UUID, points int) error
}

type taskDispatcher interface {
	Dispatch(ctx context.Context, tasks ...dispatch.Task)
}

// QuoteInput is one cart to price. Everything except quantity and size is
// re-derived server-side before it is trusted.
type QuoteInput struct {
	UserID       uuid.UUID
	Items        []pricing.CartItemInput
	CouponCode   string
	RewardPoints int
	Channel      enums.PaymentChannel
}

// Quote is the priced cart returned by the preview path and reused verbatim
// by the commit path.
type Quote struct {
	Items     []pricing.ResolvedLineItem
	Breakdown discount.Breakdown
	Coupon    *models.Coupon
}

// CommitInput finalizes one checkout. ClientClaimedPaise is recorded for
// forensics only and never participates in pricing.
type CommitInput struct {
	QuoteInput
	TransactionRef     string
	CustomerEmail      string
	ClientIP           string
	ShippingAddress    *types.Address
	ClientClaimedPaise int64
	Payment            reconcile.CaptureInput
}

// OrderPlacedEvent is the outbox payload emitted on commit.
type OrderPlacedEvent struct {
	OrderID        uuid.UUID `json:"orderId"`
	UserID         uuid.UUID `json:"userId"`
	TransactionRef string    `json:"transactionRef"`
	TotalPaise     int64     `json:"totalPaise"`
	ItemCount      int       `json:"itemCount"`
}

// PaymentFlaggedEvent is emitted alongside order.placed for risky payments.
type PaymentFlaggedEvent struct {
	OrderID        uuid.UUID `json:"orderId"`
	TransactionRef string    `json:"transactionRef"`
	RiskScore      int       `json:"riskScore"`
}

// Service is the checkout core: QuoteCart previews a cart with no side
// effects, CommitOrder turns the same inputs plus a captured payment into
// an order. Both paths price through the same pipeline, so the discount a
// shopper sees on the cart is the discount the committed order carries.
type Service interface {
	QuoteCart(ctx context.Context, in QuoteInput) (*Quote, error)
	CommitOrder(ctx context.Context, in CommitInput) (*models.Order, error)
}

// Deps carries the collaborator set for NewService.
type Deps struct {
	Tx         txRunner
	Pricing    pricing.Service
	Coupons    couponValidator
	Rewards    rewardsLedger
	Reconciler reconcile.Service
	Orders     orders.Repository
	Outbox     outboxPublisher
	Dispatcher taskDispatcher
	Tasks      *TaskSet
	Config     config.CheckoutConfig
	Metrics    *metrics.CheckoutMetrics
	Logger     *logger.Logger
}

type service struct {
	tx         txRunner
	pricing    pricing.Service
	coupons    couponValidator
	rewards    rewardsLedger
	reconciler reconcile.Service
	orders     orders.Repository
	outbox     outboxPublisher
	dispatcher taskDispatcher
	tasks      *TaskSet
	tiers      []config.QuantityTier
	cfg        config.CheckoutConfig
	metrics    *metrics.CheckoutMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds the checkout coordinator.
func NewService(deps Deps) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.Pricing == nil {
		return nil, fmt.Errorf("pricing service required")
	}
	if deps.Coupons == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if deps.Rewards == nil {
		return nil, fmt.Errorf("rewards service required")
	}
	if deps.Reconciler == nil {
		return nil, fmt.Errorf("payment reconciler required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if deps.Tasks == nil {
		return nil, fmt.Errorf("task set required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	tiers, err := deps.Config.ParseQuantityTiers()
	if err != nil {
		return nil, err
	}
	return &service{
		tx:         deps.Tx,
		pricing:    deps.Pricing,
		coupons:    deps.Coupons,
		rewards:    deps.Rewards,
		reconciler: deps.Reconciler,
		orders:     deps.Orders,
		outbox:     deps.Outbox,
		dispatcher: deps.Dispatcher,
		tasks:      deps.Tasks,
		tiers:      tiers,
		cfg:        deps.Config,
		metrics:    deps.Metrics,
		logg:       deps.Logger,
		now:        time.Now,
	}, nil
}

// QuoteCart prices a cart without side effects.
func (s *service) QuoteCart(ctx context.Context, in QuoteInput) (*Quote, error) {
	s.metrics.IncQuote()
	return s.quote(ctx, in)
}

// quote is the single pricing pipeline shared by preview and commit.
// Resolution, coupon validation, reward validation and the discount stack
// run identically on both paths.
func (s *service) quote(ctx context.Context, in QuoteInput) (*Quote, error) {
	if !in.Channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment channel %q", in.Channel))
	}

	resolution, err := s.pricing.Resolve(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	var coupon *models.Coupon
	var terms *discount.CouponTerms
	if in.CouponCode != "" {
		coupon, err = s.coupons.Validate(ctx, in.CouponCode, in.UserID, resolution.SubtotalPaise, s.now())
		if err != nil {
			return nil, err
		}
		terms = &discount.CouponTerms{
			Code:  coupon.Code,
			Type:  coupon.DiscountType,
			Value: coupon.DiscountValue,
		}
	}

	if in.RewardPoints > 0 {
		if err := s.rewards.ValidateRedemption(ctx, in.UserID, in.RewardPoints, s.cfg.MaxPointsPerOrder); err != nil {
			return nil, err
		}
	}

	breakdown := discount.Compute(discount.Input{
		SubtotalPaise:            resolution.SubtotalPaise,
		ItemCount:                resolution.ItemCount,
		Tiers:                    s.tiers,
		Coupon:                   terms,
		PointsRedeemed:           in.RewardPoints,
		Channel:                  in.Channel,
		PointValuePaise:          s.cfg.PointValuePaise,
		OnlinePaymentDiscountPct: s.cfg.OnlinePaymentDiscountPct,
		ShippingFlatPaise:        s.cfg.ShippingFlatPaise,
		FreeShippingMinPaise:     s.cfg.FreeShippingMinPaise,
	})

	return &Quote{Items: resolution.Items, Breakdown: breakdown, Coupon: coupon}, nil
}

// CommitOrder runs the commit protocol: audit record, pricing, gateway
// reconciliation, idempotent persistence, then post-commit side effects.
// Reconciliation failures abort with no order row; side-effect failures
// never surface once the order is committed.
func (s *service) CommitOrder(ctx context.Context, in CommitInput) (*models.Order, error) {
	started := s.now()
	order, err := s.commit(ctx, in)
	if err != nil {
		s.metrics.IncCommitFailure(failureReason(err))
		return nil, err
	}
	s.metrics.IncCommitSuccess()
	s.metrics.ObserveCommitDuration(s.now().Sub(started))
	return order, nil
}

func (s *service) commit(ctx context.Context, in CommitInput) (*models.Order, error) {
	if in.TransactionRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction ref is required")
	}
	if in.Channel == enums.PaymentChannelCOD {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cash on delivery orders are not reconciled through this path")
	}
	logCtx := s.logg.WithTransactionRef(ctx, in.TransactionRef)
	logCtx = s.logg.WithUserID(logCtx, in.UserID.String())

	record, err := s.reconciler.EnsureAuditRecord(ctx, in.TransactionRef, in.UserID, in.ClientClaimedPaise)
	if err != nil {
		return nil, err
	}

	// Pricing runs before the gateway fetch: Reconcile needs the server
	// total for the tolerance check in the same call.
	quote, err := s.quote(ctx, in.QuoteInput)
	if err != nil {
		return nil, err
	}

	capture := in.Payment
	capture.CustomerEmail = in.CustomerEmail
	capture.ClientIP = in.ClientIP

	result, err := s.reconciler.Reconcile(ctx, record, capture, quote.Breakdown.TotalPaise)
	if err != nil {
		return nil, err
	}
	if result.Flagged {
		s.metrics.IncFlagged()
		s.logg.Warn(logCtx, fmt.Sprintf("payment flagged for review, risk score %d", result.RiskScore))
	}

	order := s.buildOrder(in, quote)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		inserted, err := s.orders.WithTx(tx).Insert(ctx, order)
		if err != nil {
			return err
		}
		order = inserted
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: OrderPlacedEvent{
				OrderID:        order.ID,
				UserID:         order.UserID,
				TransactionRef: order.TransactionRef,
				TotalPaise:     order.TotalPaise,
				ItemCount:      len(order.Items),
			},
			Version: 1,
		}); err != nil {
			return err
		}
		if result.Flagged {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentFlagged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: PaymentFlaggedEvent{
					OrderID:        order.ID,
					TransactionRef: order.TransactionRef,
					RiskScore:      result.RiskScore,
				},
				Version: 1,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logCtx = s.logg.WithOrderID(logCtx, order.ID.String())
	s.logg.Info(logCtx, "order committed")

	if err := s.reconciler.AttachOrder(ctx, record, order.ID); err != nil {
		s.logg.Error(logCtx, "linking audit record to order failed", err)
	}

	// The order stands even if the ledger write fails: the shopper paid and
	// the order is committed, so accounting repair happens out of band.
	if in.RewardPoints > 0 {
		if err := s.rewards.Redeem(ctx, in.UserID, order.ID, in.RewardPoints); err != nil {
			s.logg.Error(logCtx, "reward redemption failed after commit", err)
		}
	}

	s.dispatcher.Dispatch(ctx, s.tasks.ForOrder(order, quote, result)...)
	return order, nil
}

func (s *service) buildOrder(in CommitInput, quote *Quote) *models.Order {
	b := quote.Breakdown
	order := &models.Order{
		UserID:                     in.UserID,
		TransactionRef:             in.TransactionRef,
		Status:                     enums.OrderStatusReceived,
		PaymentChannel:             in.Channel,
		CustomerEmail:              in.CustomerEmail,
		SubtotalPaise:              b.SubtotalPaise,
		ShippingPaise:              b.ShippingPaise,
		QuantityDiscountPaise:      b.QuantityDiscountPaise,
		CouponDiscountPaise:        b.CouponDiscountPaise,
		RewardPointsRedeemed:       in.RewardPoints,
		RewardDiscountPaise:        b.RewardDiscountPaise,
		OnlinePaymentDiscountPaise: b.OnlinePaymentDiscountPaise,
		TotalPaise:                 b.TotalPaise,
		ShippingAddress:            in.ShippingAddress,
	}
	if b.QuantityTierLabel != "" {
		label := b.QuantityTierLabel
		order.QuantityTierLabel = &label
	}
	if b.CouponCode != "" {
		code := b.CouponCode
		order.CouponCode = &code
	}
	order.Items = make([]models.OrderLineItem, 0, len(quote.Items))
	for _, item := range quote.Items {
		order.Items = append(order.Items, models.OrderLineItem{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Size:           item.Size,
			Quantity:       item.Quantity,
			UnitPricePaise: item.UnitPricePaise,
			LineTotalPaise: item.LineTotalPaise,
			IsCustom:       item.IsCustom,
			Customization:  item.Customization,
		})
	}
	return order
}

func failureReason(err error) string {
	if coded := pkgerrors.As(err); coded != nil {
		return string(coded.Code())
	}
	return string(pkgerrors.CodeInternal)
}
