package controllers

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/RahulXTmCoding/desi-otaku-backend/api/middleware"
	"github.com/RahulXTmCoding/desi-otaku-backend/api/responses"
	"github.com/RahulXTmCoding/desi-otaku-backend/api/validators"
	checkoutsvc "github.com/RahulXTmCoding/desi-otaku-backend/internal/checkout"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/discount"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/pricing"
	"github.com/RahulXTmCoding/desi-otaku-backend/internal/reconcile"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/enums"
	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/types"
)

// QuoteCart prices the submitted cart without side effects. The response
// breakdown is exactly what a subsequent commit with the same inputs will
// charge.
func QuoteCart(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toQuoteInput(userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.QuoteCart(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newQuoteResponse(quote))
	}
}

// CommitOrder finalizes a checkout against a captured gateway payment.
func CommitOrder(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload commitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quoteInput, err := payload.quoteRequest.toQuoteInput(userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		email := validators.SanitizeString(payload.CustomerEmail, 254)
		if email == "" {
			email = middleware.EmailFromContext(r.Context())
		}

		order, err := svc.CommitOrder(r.Context(), checkoutsvc.CommitInput{
			QuoteInput:         quoteInput,
			TransactionRef:     validators.SanitizeString(payload.TransactionRef, 128),
			CustomerEmail:      email,
			ClientIP:           clientIP(r),
			ShippingAddress:    payload.ShippingAddress,
			ClientClaimedPaise: payload.ClaimedTotalPaise,
			Payment: reconcile.CaptureInput{
				GatewayOrderID:   payload.Payment.RazorpayOrderID,
				GatewayPaymentID: payload.Payment.RazorpayPaymentID,
				Signature:        payload.Payment.RazorpaySignature,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

// clientIP resolves the originating address: first hop of X-Forwarded-For
// when a proxy set it, the socket peer otherwise.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// actorID reads the authenticated user from the request context.
func actorID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	return id, nil
}

type cartItemRequest struct {
	ProductID     *uuid.UUID           `json:"productId,omitempty"`
	Name          string               `json:"name,omitempty" validate:"omitempty,max=200"`
	Quantity      int                  `json:"quantity" validate:"required,gt=0"`
	Size          string               `json:"size" validate:"required"`
	IsCustom      bool                 `json:"isCustom,omitempty"`
	Customization *types.Customization `json:"customization,omitempty"`
}

type quoteRequest struct {
	Items          []cartItemRequest `json:"items" validate:"required,min=1,dive"`
	CouponCode     string            `json:"couponCode,omitempty" validate:"omitempty,max=64"`
	RewardPoints   int               `json:"rewardPoints,omitempty" validate:"omitempty,min=0"`
	PaymentChannel string            `json:"paymentChannel" validate:"required"`
}

type paymentCaptureRequest struct {
	RazorpayOrderID   string `json:"razorpayOrderId" validate:"required"`
	RazorpayPaymentID string `json:"razorpayPaymentId" validate:"required"`
	RazorpaySignature string `json:"razorpaySignature" validate:"required"`
}

type commitRequest struct {
	quoteRequest
	TransactionRef    string                `json:"transactionRef" validate:"required,max=128"`
	CustomerEmail     string                `json:"customerEmail,omitempty" validate:"omitempty,email"`
	ShippingAddress   *types.Address        `json:"shippingAddress,omitempty"`
	ClaimedTotalPaise int64                 `json:"claimedTotalPaise,omitempty" validate:"omitempty,min=0"`
	Payment           paymentCaptureRequest `json:"payment" validate:"required"`
}

func (q quoteRequest) toQuoteInput(userID uuid.UUID) (checkoutsvc.QuoteInput, error) {
	channel, err := enums.ParsePaymentChannel(q.PaymentChannel)
	if err != nil {
		return checkoutsvc.QuoteInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment channel")
	}

	items := make([]pricing.CartItemInput, 0, len(q.Items))
	for _, item := range q.Items {
		size, err := enums.ParseGarmentSize(item.Size)
		if err != nil {
			return checkoutsvc.QuoteInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid garment size")
		}
		items = append(items, pricing.CartItemInput{
			ProductID:     item.ProductID,
			Name:          validators.SanitizeString(item.Name, 200),
			Quantity:      item.Quantity,
			Size:          size,
			IsCustom:      item.IsCustom,
			Customization: item.Customization,
		})
	}

	return checkoutsvc.QuoteInput{
		UserID:       userID,
		Items:        items,
		CouponCode:   validators.SanitizeString(q.CouponCode, 64),
		RewardPoints: q.RewardPoints,
		Channel:      channel,
	}, nil
}

type quotedItemResponse struct {
	ProductID      *uuid.UUID `json:"productId,omitempty"`
	Name           string     `json:"name"`
	Quantity       int        `json:"quantity"`
	Size           string     `json:"size"`
	IsCustom       bool       `json:"isCustom,omitempty"`
	UnitPricePaise int64      `json:"unitPricePaise"`
	LineTotalPaise int64      `json:"lineTotalPaise"`
}

type breakdownResponse struct {
	SubtotalPaise              int64  `json:"subtotalPaise"`
	ShippingPaise              int64  `json:"shippingPaise"`
	QuantityDiscountPaise      int64  `json:"quantityDiscountPaise"`
	QuantityTierLabel          string `json:"quantityTierLabel,omitempty"`
	CouponCode                 string `json:"couponCode,omitempty"`
	CouponDiscountPaise        int64  `json:"couponDiscountPaise"`
	RewardDiscountPaise        int64  `json:"rewardDiscountPaise"`
	OnlinePaymentDiscountPaise int64  `json:"onlinePaymentDiscountPaise"`
	TotalDiscountPaise         int64  `json:"totalDiscountPaise"`
	TotalPaise                 int64  `json:"totalPaise"`
}

type quoteResponse struct {
	Items     []quotedItemResponse `json:"items"`
	Breakdown breakdownResponse    `json:"breakdown"`
}

func newBreakdownResponse(b discount.Breakdown) breakdownResponse {
	return breakdownResponse{
		SubtotalPaise:              b.SubtotalPaise,
		ShippingPaise:              b.ShippingPaise,
		QuantityDiscountPaise:      b.QuantityDiscountPaise,
		QuantityTierLabel:          b.QuantityTierLabel,
		CouponCode:                 b.CouponCode,
		CouponDiscountPaise:        b.CouponDiscountPaise,
		RewardDiscountPaise:        b.RewardDiscountPaise,
		OnlinePaymentDiscountPaise: b.OnlinePaymentDiscountPaise,
		TotalDiscountPaise:         b.TotalDiscountPaise(),
		TotalPaise:                 b.TotalPaise,
	}
}

func newQuoteResponse(quote *checkoutsvc.Quote) quoteResponse {
	if quote == nil {
		return quoteResponse{}
	}
	items := make([]quotedItemResponse, 0, len(quote.Items))
	for _, item := range quote.Items {
		items = append(items, quotedItemResponse{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			Size:           string(item.Size),
			IsCustom:       item.IsCustom,
			UnitPricePaise: item.UnitPricePaise,
			LineTotalPaise: item.LineTotalPaise,
		})
	}
	return quoteResponse{Items: items, Breakdown: newBreakdownResponse(quote.Breakdown)}
}
