package webhooks

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lukasortiz/taskpay-backend/api/responses"
	"github.com/lukasortiz/taskpay-backend/api/validators"
	webhooksvc "github.com/lukasortiz/taskpay-backend/internal/webhooks"
	"github.com/lukasortiz/taskpay-backend/internal/webhooks/reconciler"
	"github.com/lukasortiz/taskpay-backend/pkg/config"
	pkgerrors "github.com/lukasortiz/taskpay-backend/pkg/errors"
	"github.com/lukasortiz/taskpay-backend/pkg/logger"
)

const secretHeader = "X-Webhook-Secret"

// Ingest accepts a provider notification and persists it for asynchronous
// reconciliation. The handler never processes the event inline; it responds
// 202 once the event is durably queued.
func Ingest(queue webhooksvc.Queue, cfg config.WebhooksConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if queue == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook queue unavailable"))
			return
		}

		provider := chi.URLParam(r, "provider")

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithProvider(ctx, provider)
		}

		if err := checkSecret(r, provider, cfg); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload ingestRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		event, err := queue.Enqueue(ctx, webhooksvc.EnqueueInput{
			Provider:  provider,
			EventType: payload.EventType,
			Payload:   payload.Payload,
			OrderID:   payload.OrderID,
			PaymentID: payload.PaymentID,
			EscrowID:  payload.EscrowID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, "webhook.queued")
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, ingestResponse{
			EventID: event.ID,
			Status:  string(event.Status),
		})
	}
}

type ingestRequest struct {
	EventType string          `json:"event_type" validate:"required"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
	OrderID   *uuid.UUID      `json:"order_id,omitempty"`
	PaymentID *uuid.UUID      `json:"payment_id,omitempty"`
	EscrowID  *uuid.UUID      `json:"escrow_id,omitempty"`
}

type ingestResponse struct {
	EventID uuid.UUID `json:"event_id"`
	Status  string    `json:"status"`
}

func checkSecret(r *http.Request, provider string, cfg config.WebhooksConfig) error {
	var expected string
	switch provider {
	case reconciler.ProviderGateway:
		expected = cfg.GatewaySecret
	case reconciler.ProviderEscrow:
		expected = cfg.EscrowSecret
	}
	if expected == "" {
		return nil
	}
	got := r.Header.Get(secretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook secret mismatch")
	}
	return nil
}
