package reconciler

import (
	"context"

	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
)

// Handler applies one provider's webhook events to the ledger. Handle runs
// inside the event's processing transaction; any returned error rolls the
// ledger mutations back.
type Handler interface {
	Handle(ctx context.Context, tx *gorm.DB, event *models.WebhookEvent) error
}

// Registry resolves handlers by provider name. Unknown providers get the
// terminal unsupported handler instead of a runtime error path.
type Registry struct {
	handlers map[string]Handler
	fallback Handler
}

// NewRegistry builds an empty registry with the unsupported fallback.
func NewRegistry() *Registry {
	return &Registry{
		handlers: map[string]Handler{},
		fallback: unsupportedHandler{},
	}
}

// Register binds a handler to a provider name. Later registrations replace
// earlier ones.
func (r *Registry) Register(provider string, handler Handler) {
	if provider == "" || handler == nil {
		return
	}
	r.handlers[provider] = handler
}

// For returns the handler for the provider, or the unsupported fallback.
func (r *Registry) For(provider string) Handler {
	if handler, ok := r.handlers[provider]; ok {
		return handler
	}
	return r.fallback
}

type unsupportedHandler struct{}

func (unsupportedHandler) Handle(ctx context.Context, tx *gorm.DB, event *models.WebhookEvent) error {
	return Discardf("unsupported webhook provider %q", event.Provider)
}
