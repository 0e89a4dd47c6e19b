package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/RahulXTmCoding/desi-otaku-backend/internal/dispatch"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/notifications"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/reconcile"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/shipping"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/config"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
)

// Post-commit task names, used in logs and dispatch failure metrics.
const (
	TaskConfirmation  = "order_confirmation"
	TaskLoyaltyCredit = "loyalty_credit"
	TaskCouponUsage   = "coupon_usage"
	TaskInvoice       = "invoice"
	TaskShipment      = "shipment"
	TaskOperatorAlert = "operator_alert"
)

type notifier interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
	SendOperatorAlert(ctx context.Context, alert notifications.OperatorAlert) error
}

type invoicer interface {
	AssignInvoiceNumber(ctx context.Context, order *models.Order) (string, error)
}

type shipper interface {
	CreateFromOrder(ctx context.Context, order *models.Order) (shipping.Shipment, error)
}

type couponRedemptions interface {
	RecordRedemption(ctx context.Context, couponID, userID uuid.UUID) error
}

// TaskSet builds the post-commit side effects for an order. Each task is
// individually idempotent or duplicate-tolerant, since a retried dispatch
// run shares no transaction with the others.
type TaskSet struct {
	notify   notifier
	rewards  rewardsLedger
	coupons  couponRedemptions
	invoices invoicer
	shipping shipper
	cfg      config.CheckoutConfig
}

// NewTaskSet wires the side-effect collaborators.
func NewTaskSet(notify notifier, rewards rewardsLedger, coupons couponRedemptions, invoices invoicer, shipper shipper, cfg config.CheckoutConfig) (*TaskSet, error) {
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if rewards == nil {
		return nil, fmt.Errorf("rewards service required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon redemptions required")
	}
	if invoices == nil {
		return nil, fmt.Errorf("invoice service required")
	}
	if shipper == nil {
		return nil, fmt.Errorf("shipping service required")
	}
	return &TaskSet{
		notify:   notify,
		rewards:  rewards,
		coupons:  coupons,
		invoices: invoices,
		shipping: shipper,
		cfg:      cfg,
	}, nil
}

// ForOrder assembles the dispatch tasks for one committed order.
func (t *TaskSet) ForOrder(order *models.Order, quote *Quote, result *reconcile.Result) []dispatch.Task {
	tasks := []dispatch.Task{
		{Name: TaskInvoice, Run: func(ctx context.Context) error {
			_, err := t.invoices.AssignInvoiceNumber(ctx, order)
			return err
		}},
		{Name: TaskConfirmation, Run: func(ctx context.Context) error {
			return t.notify.SendOrderConfirmation(ctx, order)
		}},
		{Name: TaskShipment, Run: func(ctx context.Context) error {
			_, err := t.shipping.CreateFromOrder(ctx, order)
			return err
		}},
	}

	if earned := t.earnedPoints(order.TotalPaise); earned > 0 {
		tasks = append(tasks, dispatch.Task{Name: TaskLoyaltyCredit, Run: func(ctx context.Context) error {
			return t.rewards.Credit(ctx, order.UserID, order.ID, earned)
		}})
	}

	if quote.Coupon != nil {
		couponID := quote.Coupon.ID
		tasks = append(tasks, dispatch.Task{Name: TaskCouponUsage, Run: func(ctx context.Context) error {
			return t.coupons.RecordRedemption(ctx, couponID, order.UserID)
		}})
	}

	if result.Flagged {
		alert := notifications.OperatorAlert{
			OrderID:        order.ID,
			TransactionRef: order.TransactionRef,
			TotalPaise:     order.TotalPaise,
			RiskScore:      result.RiskScore,
			Reason:         "payment flagged by risk scoring",
		}
		tasks = append(tasks, dispatch.Task{Name: TaskOperatorAlert, Run: func(ctx context.Context) error {
			return t.notify.SendOperatorAlert(ctx, alert)
		}})
	}

	return tasks
}

// earnedPoints converts the paid amount into loyalty points at the
// configured earn rate. Fractions round down.
func (t *TaskSet) earnedPoints(totalPaise int64) int {
	if t.cfg.PointValuePaise <= 0 || t.cfg.RewardEarnRatePct <= 0 {
		return 0
	}
	earnedPaise := totalPaise * int64(t.cfg.RewardEarnRatePct) / 100
	return int(earnedPaise / t.cfg.PointValuePaise)
}
