package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/RahulXTmCoding/desi-otaku-backend/api/responses"
	"github.com/RahulXTmCoding/desi-otaku-backend/api/validators"
	ordersvc "github.com/RahulXTmCoding/desi-otaku-backend/internal/orders"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/db/models"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/enums"
	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/types"
)

// GetOrder returns one of the caller's orders.
func GetOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetForUser(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// ListOrders returns the caller's orders, newest first.
func ListOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderResponse, 0, len(orders))
		for i := range orders {
			out = append(out, newOrderResponse(&orders[i]))
		}
		responses.WriteSuccess(w, map[string]any{"orders": out})
	}
}

// CancelOrder cancels one of the caller's orders if its status allows it.
func CancelOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CancelForUser(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type statusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdminUpdateOrderStatus moves an order through the status state machine.
// Admin-only; the route must sit behind RequireAdmin.
func AdminUpdateOrderStatus(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload statusUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}

		order, err := svc.Transition(r.Context(), orderID, target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type orderItemResponse struct {
	ProductID      *uuid.UUID `json:"productId,omitempty"`
	Name           string     `json:"name"`
	Size           string     `json:"size"`
	Quantity       int        `json:"quantity"`
	UnitPricePaise int64      `json:"unitPricePaise"`
	LineTotalPaise int64      `json:"lineTotalPaise"`
	IsCustom       bool       `json:"isCustom,omitempty"`
}

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	TransactionRef  string              `json:"transactionRef"`
	Status          string              `json:"status"`
	PaymentChannel  string              `json:"paymentChannel"`
	Breakdown       breakdownResponse   `json:"breakdown"`
	Items           []orderItemResponse `json:"items"`
	ShippingAddress *types.Address      `json:"shippingAddress,omitempty"`
	InvoiceNumber   *string             `json:"invoiceNumber,omitempty"`
	ShipmentRef     *string             `json:"shipmentRef,omitempty"`
	CancelledAt     *time.Time          `json:"cancelledAt,omitempty"`
	DeliveredAt     *time.Time          `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Size:           string(item.Size),
			Quantity:       item.Quantity,
			UnitPricePaise: item.UnitPricePaise,
			LineTotalPaise: item.LineTotalPaise,
			IsCustom:       item.IsCustom,
		})
	}

	breakdown := breakdownResponse{
		SubtotalPaise:              order.SubtotalPaise,
		ShippingPaise:              order.ShippingPaise,
		QuantityDiscountPaise:      order.QuantityDiscountPaise,
		CouponDiscountPaise:        order.CouponDiscountPaise,
		RewardDiscountPaise:        order.RewardDiscountPaise,
		OnlinePaymentDiscountPaise: order.OnlinePaymentDiscountPaise,
		TotalPaise:                 order.TotalPaise,
	}
	breakdown.TotalDiscountPaise = breakdown.QuantityDiscountPaise +
		breakdown.CouponDiscountPaise +
		breakdown.RewardDiscountPaise +
		breakdown.OnlinePaymentDiscountPaise
	if order.QuantityTierLabel != nil {
		breakdown.QuantityTierLabel = *order.QuantityTierLabel
	}
	if order.CouponCode != nil {
		breakdown.CouponCode = *order.CouponCode
	}

	return orderResponse{
		ID:              order.ID,
		TransactionRef:  order.TransactionRef,
		Status:          string(order.Status),
		PaymentChannel:  string(order.PaymentChannel),
		Breakdown:       breakdown,
		Items:           items,
		ShippingAddress: order.ShippingAddress,
		InvoiceNumber:   order.InvoiceNumber,
		ShipmentRef:     order.ShipmentRef,
		CancelledAt:     order.CancelledAt,
		DeliveredAt:     order.DeliveredAt,
		CreatedAt:       order.CreatedAt,
	}
}
