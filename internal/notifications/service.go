package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/config"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
)

// OperatorAlert is the payload posted to the ops webhook for flagged or
// otherwise noteworthy orders.
type OperatorAlert struct {
	OrderID        uuid.UUID `json:"orderId"`
	TransactionRef string    `json:"transactionRef"`
	TotalPaise     int64     `json:"totalPaise"`
	RiskScore      int       `json:"riskScore,omitempty"`
	Reason         string    `json:"reason"`
}

// Service composes customer-facing messages for committed orders and routes
// operator alerts. Every method is safe to call from a dispatcher task: a
// missing recipient or unconfigured channel is a logged no-op.
type Service interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
	SendOperatorAlert(ctx context.Context, alert OperatorAlert) error
}

type service struct {
	email Sender
	sms   Sender
	http  doer
	cfg   config.NotificationsConfig
	logg  *logger.Logger
}

// NewService wires the notification channels.
func NewService(email, sms Sender, cfg config.NotificationsConfig, logg *logger.Logger) (Service, error) {
	if email == nil {
		return nil, fmt.Errorf("email sender required")
	}
	if sms == nil {
		return nil, fmt.Errorf("sms sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		email: email,
		sms:   sms,
		http:  &http.Client{Timeout: cfg.SendTimeout},
		cfg:   cfg,
		logg:  logg,
	}, nil
}

// SendOrderConfirmation emails the order summary and texts the shipping
// phone when one was provided. The SMS is best-effort: a failed text does
// not fail the confirmation as long as the email went out.
func (s *service) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())

	if strings.TrimSpace(order.CustomerEmail) == "" {
		s.logg.Warn(logCtx, "order has no customer email, skipping confirmation")
		return nil
	}

	msg := Message{
		Channel:   ChannelEmail,
		Recipient: order.CustomerEmail,
		From:      s.cfg.EmailFrom,
		Subject:   fmt.Sprintf("Order confirmed: %s", orderReference(order)),
		Body:      confirmationBody(order),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return err
	}

	if phone := shippingPhone(order); phone != "" {
		sms := Message{
			Channel:   ChannelSMS,
			Recipient: phone,
			Body: fmt.Sprintf("Your order %s is confirmed. Amount paid: Rs %s.",
				orderReference(order), rupees(order.TotalPaise)),
		}
		if err := s.sms.Send(ctx, sms); err != nil {
			s.logg.Warn(logCtx, "confirmation sms failed")
		}
	}

	s.logg.Info(logCtx, "order confirmation sent")
	return nil
}

// SendOperatorAlert posts the alert to the configured ops webhook.
func (s *service) SendOperatorAlert(ctx context.Context, alert OperatorAlert) error {
	webhook := strings.TrimSpace(s.cfg.AlertWebhook)
	if webhook == "" {
		s.logg.Warn(ctx, "alert webhook not configured, dropping operator alert")
		return nil
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encoding operator alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "alert webhook request failed")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("alert webhook returned status %d", resp.StatusCode))
	}
	return nil
}

func confirmationBody(order *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thanks for your order %s.\n\n", orderReference(order))
	for _, item := range order.Items {
		fmt.Fprintf(&b, "%dx %s (%s) - Rs %s\n", item.Quantity, item.Name, item.Size, rupees(item.LineTotalPaise))
	}
	fmt.Fprintf(&b, "\nSubtotal: Rs %s\n", rupees(order.SubtotalPaise))
	if order.ShippingPaise > 0 {
		fmt.Fprintf(&b, "Shipping: Rs %s\n", rupees(order.ShippingPaise))
	}
	discount := order.QuantityDiscountPaise + order.CouponDiscountPaise +
		order.RewardDiscountPaise + order.OnlinePaymentDiscountPaise
	if discount > 0 {
		fmt.Fprintf(&b, "Discounts: -Rs %s\n", rupees(discount))
	}
	fmt.Fprintf(&b, "Total paid: Rs %s\n", rupees(order.TotalPaise))
	return b.String()
}

func orderReference(order *models.Order) string {
	if order.InvoiceNumber != nil && *order.InvoiceNumber != "" {
		return *order.InvoiceNumber
	}
	return order.TransactionRef
}

func shippingPhone(order *models.Order) string {
	if order.ShippingAddress == nil {
		return ""
	}
	return strings.TrimSpace(order.ShippingAddress.Phone)
}

func rupees(paise int64) string {
	return fmt.Sprintf("%d.%02d", paise/100, paise%100)
}
