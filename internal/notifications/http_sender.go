package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
)

const defaultSendTimeout = 10 * time.Second

type doer interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPSender posts messages to a provider webhook as JSON. Provider 5xx and
// transport errors are retried with exponential backoff; 4xx are terminal.
// An empty endpoint disables the sender, so environments without a provider
// configured degrade to a logged no-op instead of failing dispatch tasks.
type HTTPSender struct {
	http       doer
	endpoint   string
	apiKey     string
	maxRetries int
	logg       *logger.Logger
}

// NewHTTPSender builds a sender for one provider endpoint.
func NewHTTPSender(endpoint, apiKey string, timeout time.Duration, maxRetries int, logg *logger.Logger) (*HTTPSender, error) {
	if logg == nil {
		return nil, fmt.Errorf("notifications logger required")
	}
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &HTTPSender{
		http:       &http.Client{Timeout: timeout},
		endpoint:   strings.TrimSpace(endpoint),
		apiKey:     apiKey,
		maxRetries: maxRetries,
		logg:       logg,
	}, nil
}

// Send delivers one message, retrying transient provider failures.
func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	if s.endpoint == "" {
		s.logg.Warn(ctx, fmt.Sprintf("%s provider not configured, dropping notification", msg.Channel))
		return nil
	}
	if strings.TrimSpace(msg.Recipient) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification recipient required")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	backoff := retry.WithMaxRetries(uint64(s.maxRetries), retry.NewExponential(250*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		return s.post(ctx, payload)
	})
}

func (s *HTTPSender) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "notification request failed"))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return retry.RetryableError(pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("notification provider returned status %d", resp.StatusCode)))
	default:
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("notification provider rejected message with status %d", resp.StatusCode))
	}
}
