package shipping

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
)

type orderAnnotator interface {
	SetShipmentRef(ctx context.Context, id uuid.UUID, shipmentRef string) error
}

// Service books shipments for committed orders and records the carrier ref.
type Service interface {
	CreateFromOrder(ctx context.Context, order *models.Order) (Shipment, error)
}

type service struct {
	carrier Carrier
	orders  orderAnnotator
	logg    *logger.Logger
}

// NewService wires the shipping collaborator.
func NewService(carrier Carrier, orders orderAnnotator, logg *logger.Logger) (Service, error) {
	if carrier == nil {
		return nil, fmt.Errorf("carrier required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order annotator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{carrier: carrier, orders: orders, logg: logg}, nil
}

// CreateFromOrder books a pickup and annotates the order with the carrier
// ref. Orders without a shipping address (digital or pickup orders) and
// orders already booked are skipped, which makes retried dispatch runs
// idempotent.
func (s *service) CreateFromOrder(ctx context.Context, order *models.Order) (Shipment, error) {
	if order == nil {
		return Shipment{}, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())

	if order.ShipmentRef != nil && *order.ShipmentRef != "" {
		return Shipment{Ref: *order.ShipmentRef}, nil
	}
	if order.ShippingAddress == nil || order.ShippingAddress.IsZero() {
		s.logg.Warn(logCtx, "order has no shipping address, skipping shipment")
		return Shipment{}, nil
	}

	itemCount := 0
	for _, item := range order.Items {
		itemCount += item.Quantity
	}

	shipment, err := s.carrier.CreateShipment(ctx, ShipmentRequest{
		OrderRef:    order.TransactionRef,
		Destination: *order.ShippingAddress,
		ItemCount:   itemCount,
		ValuePaise:  order.TotalPaise,
	})
	if err != nil {
		return Shipment{}, err
	}

	if err := s.orders.SetShipmentRef(ctx, order.ID, shipment.Ref); err != nil {
		return Shipment{}, err
	}
	order.ShipmentRef = &shipment.Ref

	s.logg.Info(logCtx, fmt.Sprintf("shipment %s booked", shipment.Ref))
	return shipment, nil
}
