package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/config"
	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/types"
)

// ShipmentRequest is the payload sent to the carrier when booking a pickup.
type ShipmentRequest struct {
	OrderRef    string        `json:"order_ref"`
	Destination types.Address `json:"destination"`
	ItemCount   int           `json:"item_count"`
	ValuePaise  int64         `json:"value_paise"`
}

// Shipment is the carrier's booking confirmation.
type Shipment struct {
	Ref         string `json:"shipment_ref"`
	TrackingURL string `json:"tracking_url,omitempty"`
}

// Carrier books shipments with the logistics provider.
type Carrier interface {
	CreateShipment(ctx context.Context, req ShipmentRequest) (Shipment, error)
}

type doer interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPCarrier calls the carrier's REST API.
type HTTPCarrier struct {
	http     doer
	endpoint string
	apiKey   string
}

// NewHTTPCarrier builds the carrier client from config.
func NewHTTPCarrier(cfg config.ShippingConfig) (*HTTPCarrier, error) {
	endpoint := strings.TrimSpace(cfg.CarrierEndpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("carrier endpoint is required")
	}
	timeout := cfg.CreateTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPCarrier{
		http:     &http.Client{Timeout: timeout},
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   cfg.CarrierAPIKey,
	}, nil
}

// CreateShipment books a pickup for the order.
func (c *HTTPCarrier) CreateShipment(ctx context.Context, req ShipmentRequest) (Shipment, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Shipment{}, fmt.Errorf("encoding shipment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/shipments", bytes.NewReader(payload))
	if err != nil {
		return Shipment{}, fmt.Errorf("building shipment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Shipment{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "carrier request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Shipment{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading carrier response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Shipment{}, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("carrier returned status %d", resp.StatusCode))
	}

	var shipment Shipment
	if err := json.Unmarshal(body, &shipment); err != nil {
		return Shipment{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding carrier response")
	}
	if shipment.Ref == "" {
		return Shipment{}, pkgerrors.New(pkgerrors.CodeDependency, "carrier response missing shipment ref")
	}
	return shipment, nil
}
