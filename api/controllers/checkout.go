package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lukasortiz/taskpay-backend/api/responses"
	"github.com/lukasortiz/taskpay-backend/api/validators"
	checkoutsvc "github.com/lukasortiz/taskpay-backend/internal/checkout"
	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
	pkgerrors "github.com/lukasortiz/taskpay-backend/pkg/errors"
	"github.com/lukasortiz/taskpay-backend/pkg/logger"
)

// Checkout accepts one checkout intent. Replaying the same logical request
// returns the already-created payment instead of a duplicate.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := decimal.NewFromString(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a decimal number"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, payload.OrderID.String())
		}

		payment, err := svc.CreateCheckout(ctx, checkoutsvc.CheckoutInput{
			OrderID:   payload.OrderID,
			BuyerID:   payload.BuyerID,
			ServiceID: payload.ServiceID,
			Amount:    amount,
			Currency:  payload.Currency,
			Source:    payload.Source,
			Metadata:  payload.Metadata,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentResponse(payment))
	}
}

type checkoutRequest struct {
	OrderID   uuid.UUID       `json:"order_id" validate:"required"`
	BuyerID   uuid.UUID       `json:"buyer_id" validate:"required"`
	ServiceID uuid.UUID       `json:"service_id" validate:"required"`
	Amount    string          `json:"amount" validate:"required"`
	Currency  string          `json:"currency" validate:"required,len=3"`
	Source    string          `json:"source" validate:"required"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

type paymentResponse struct {
	PaymentID   uuid.UUID  `json:"payment_id"`
	OrderID     uuid.UUID  `json:"order_id"`
	BuyerID     uuid.UUID  `json:"buyer_id"`
	Source      string     `json:"source"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	Fingerprint string     `json:"fingerprint"`
	GatewayRef  *string    `json:"gateway_ref,omitempty"`
	CapturedAt  *time.Time `json:"captured_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newPaymentResponse(payment *models.Payment) paymentResponse {
	if payment == nil {
		return paymentResponse{}
	}
	return paymentResponse{
		PaymentID:   payment.ID,
		OrderID:     payment.OrderID,
		BuyerID:     payment.BuyerID,
		Source:      payment.Source,
		Amount:      payment.Amount.StringFixed(2),
		Currency:    payment.Currency,
		Status:      string(payment.Status),
		Fingerprint: payment.Fingerprint,
		GatewayRef:  payment.GatewayRef,
		CapturedAt:  payment.CapturedAt,
		RefundedAt:  payment.RefundedAt,
		CreatedAt:   payment.CreatedAt,
	}
}
