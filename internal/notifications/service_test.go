package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/config"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/types"
)

type fakeSender struct {
	sent []Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Level: zerolog.ErrorLevel})
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:             uuid.New(),
		TransactionRef: "txn-abc",
		CustomerEmail:  "otaku@example.in",
		SubtotalPaise:  100000,
		TotalPaise:     80000,
		ShippingAddress: &types.Address{
			Name:  "Priya",
			Phone: "+919900112233",
		},
		Items: []models.OrderLineItem{
			{Name: "Naruto Tee", Quantity: 2, LineTotalPaise: 100000},
		},
	}
}

func TestSendOrderConfirmationEmailsAndTexts(t *testing.T) {
	email := &fakeSender{}
	sms := &fakeSender{}
	svc, err := NewService(email, sms, config.NotificationsConfig{EmailFrom: "orders@desiotaku.in"}, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.SendOrderConfirmation(context.Background(), sampleOrder()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(email.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(email.sent))
	}
	if email.sent[0].Recipient != "otaku@example.in" {
		t.Fatalf("email recipient = %q", email.sent[0].Recipient)
	}
	if len(sms.sent) != 1 || sms.sent[0].Recipient != "+919900112233" {
		t.Fatalf("expected sms to shipping phone, got %+v", sms.sent)
	}
}

func TestSendOrderConfirmationSkipsWithoutEmail(t *testing.T) {
	email := &fakeSender{}
	svc, _ := NewService(email, &fakeSender{}, config.NotificationsConfig{}, testLogger())

	order := sampleOrder()
	order.CustomerEmail = ""
	if err := svc.SendOrderConfirmation(context.Background(), order); err != nil {
		t.Fatalf("missing email must be a no-op, got %v", err)
	}
	if len(email.sent) != 0 {
		t.Fatalf("no email expected, got %d", len(email.sent))
	}
}

func TestSendOrderConfirmationSMSFailureIsNotFatal(t *testing.T) {
	email := &fakeSender{}
	sms := &fakeSender{err: context.DeadlineExceeded}
	svc, _ := NewService(email, sms, config.NotificationsConfig{}, testLogger())

	if err := svc.SendOrderConfirmation(context.Background(), sampleOrder()); err != nil {
		t.Fatalf("sms failure must not fail the confirmation: %v", err)
	}
}

func TestSendOperatorAlertPostsWebhook(t *testing.T) {
	var got OperatorAlert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding alert: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc, _ := NewService(&fakeSender{}, &fakeSender{},
		config.NotificationsConfig{AlertWebhook: srv.URL, SendTimeout: 2 * time.Second}, testLogger())

	alert := OperatorAlert{OrderID: uuid.New(), TransactionRef: "txn-abc", TotalPaise: 80000, Reason: "flagged"}
	if err := svc.SendOperatorAlert(context.Background(), alert); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TransactionRef != "txn-abc" || got.Reason != "flagged" {
		t.Fatalf("webhook payload = %+v", got)
	}
}

func TestSendOperatorAlertNoWebhookConfigured(t *testing.T) {
	svc, _ := NewService(&fakeSender{}, &fakeSender{}, config.NotificationsConfig{}, testLogger())
	if err := svc.SendOperatorAlert(context.Background(), OperatorAlert{Reason: "flagged"}); err != nil {
		t.Fatalf("missing webhook must be a no-op, got %v", err)
	}
}

func TestHTTPSenderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender, err := NewHTTPSender(srv.URL, "key", 2*time.Second, 3, testLogger())
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	msg := Message{Channel: ChannelEmail, Recipient: "otaku@example.in", Body: "hi"}
	if err := sender.Send(context.Background(), msg); err != nil {
		t.Fatalf("expected retries to succeed: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestHTTPSenderDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	sender, _ := NewHTTPSender(srv.URL, "", 2*time.Second, 3, testLogger())
	msg := Message{Channel: ChannelSMS, Recipient: "+919900112233", Body: "hi"}
	if err := sender.Send(context.Background(), msg); err == nil {
		t.Fatalf("expected provider rejection to surface")
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx must not retry, got %d attempts", calls.Load())
	}
}

func TestHTTPSenderUnconfiguredEndpointIsNoop(t *testing.T) {
	sender, _ := NewHTTPSender("", "", time.Second, 1, testLogger())
	msg := Message{Channel: ChannelEmail, Recipient: "otaku@example.in", Body: "hi"}
	if err := sender.Send(context.Background(), msg); err != nil {
		t.Fatalf("unconfigured sender must be a no-op, got %v", err)
	}
}
