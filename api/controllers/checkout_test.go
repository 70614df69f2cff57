package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	checkoutsvc "github.com/lukasortiz/taskpay-backend/internal/checkout"
	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
	"github.com/lukasortiz/taskpay-backend/pkg/enums"
	pkgerrors "github.com/lukasortiz/taskpay-backend/pkg/errors"
)

type stubCheckoutService struct {
	payment *models.Payment
	err     error
	input   checkoutsvc.CheckoutInput
}

func (s *stubCheckoutService) CreateCheckout(ctx context.Context, input checkoutsvc.CheckoutInput) (*models.Payment, error) {
	s.input = input
	return s.payment, s.err
}

func checkoutBody(orderID, buyerID, serviceID uuid.UUID) string {
	return `{
		"order_id": "` + orderID.String() + `",
		"buyer_id": "` + buyerID.String() + `",
		"service_id": "` + serviceID.String() + `",
		"amount": "100.00",
		"currency": "EUR",
		"source": "web"
	}`
}

func TestCheckoutSuccess(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	buyerID := uuid.New()
	serviceID := uuid.New()
	svc := &stubCheckoutService{payment: &models.Payment{
		ID:       uuid.New(),
		OrderID:  orderID,
		BuyerID:  buyerID,
		Source:   "web",
		Amount:   decimal.RequireFromString("100.00"),
		Currency: "EUR",
		Status:   enums.PaymentStatusPending,
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody(orderID, buyerID, serviceID)))
	rec := httptest.NewRecorder()

	Checkout(svc, nil)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data paymentResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.PaymentID != svc.payment.ID {
		t.Fatalf("expected payment id %s, got %s", svc.payment.ID, envelope.Data.PaymentID)
	}
	if envelope.Data.Amount != "100.00" {
		t.Fatalf("expected amount 100.00, got %s", envelope.Data.Amount)
	}
	if !svc.input.Amount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected parsed amount to reach the service, got %s", svc.input.Amount)
	}
}

func TestCheckoutRejectsMalformedAmount(t *testing.T) {
	t.Parallel()

	body := strings.Replace(checkoutBody(uuid.New(), uuid.New(), uuid.New()), `"100.00"`, `"not-a-number"`, 1)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()

	Checkout(&stubCheckoutService{}, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCheckoutRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	body := `{"order_id": "` + uuid.NewString() + `", "surprise": true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()

	Checkout(&stubCheckoutService{}, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCheckoutMapsServiceErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", pkgerrors.New(pkgerrors.CodeNotFound, "order not found"), http.StatusNotFound},
		{"forbidden", pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer"), http.StatusForbidden},
		{"precondition", pkgerrors.New(pkgerrors.CodePrecondition, "service listing is inactive"), http.StatusUnprocessableEntity},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody(uuid.New(), uuid.New(), uuid.New())))
			rec := httptest.NewRecorder()

			Checkout(&stubCheckoutService{err: tc.err}, nil)(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCheckoutNilService(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader("{}"))
	rec := httptest.NewRecorder()

	Checkout(nil, nil)(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
