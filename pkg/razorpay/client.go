package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/config"
	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
)

const (
	StatusCaptured   = "captured"
	StatusAuthorized = "authorized"
	StatusFailed     = "failed"
	StatusRefunded   = "refunded"
)

var (
	errKeyIDRequired     = errors.New("razorpay key id is required")
	errKeySecretRequired = errors.New("razorpay key secret is required")
	errLoggerRequired    = errors.New("razorpay logger is required")
)

// Payment is the subset of the gateway payment resource the platform reads.
type Payment struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	AmountPaise int64  `json:"amount"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
	Email       string `json:"email"`
	Contact     string `json:"contact"`
}

// Captured reports whether the gateway holds the funds. Authorized counts:
// Razorpay settles authorized payments on capture, which may lag the
// checkout callback, and both statuses carry the final amount.
func (p Payment) Captured() bool {
	return p.Status == StatusCaptured || p.Status == StatusAuthorized
}

// Gateway is the surface the checkout flow depends on. The production
// implementation calls the Razorpay REST API; tests substitute fakes.
type Gateway interface {
	FetchPayment(ctx context.Context, paymentID string) (Payment, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client exposes Razorpay primitives with centralized auth and error mapping.
type Client struct {
	http      doer
	baseURL   string
	keyID     string
	keySecret string
	logger    *logger.Logger
}

// NewClient initializes the Razorpay wrapper and validates the credentials.
func NewClient(cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		logger:    logg,
	}, nil
}

// FetchPayment looks up a payment by its gateway id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return Payment{}, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	url := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Payment{}, fmt.Errorf("building payment request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Payment{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "razorpay request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Payment{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading razorpay response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return Payment{}, pkgerrors.New(pkgerrors.CodePaymentNotCaptured, "payment not found at gateway")
	case resp.StatusCode == http.StatusUnauthorized:
		return Payment{}, pkgerrors.New(pkgerrors.CodeDependency, "razorpay rejected credentials")
	default:
		return Payment{}, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("razorpay returned status %d", resp.StatusCode))
	}

	var payment Payment
	if err := json.Unmarshal(body, &payment); err != nil {
		return Payment{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding razorpay payment")
	}
	return payment, nil
}

// VerifySignature checks the checkout callback signature. The signed message
// is "<orderID>|<paymentID>" and the MAC is HMAC-SHA256 under the key secret.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
