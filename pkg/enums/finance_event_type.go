package enums

import "fmt"

// FinanceEventType labels immutable audit records of ledger transitions.
type FinanceEventType string

const (
	FinanceEventCheckoutCreated    FinanceEventType = "checkout.created"
	FinanceEventAssignmentsCreated FinanceEventType = "assignments.created"
	FinanceEventPaymentCaptured    FinanceEventType = "payment.captured"
	FinanceEventPaymentRefunded    FinanceEventType = "payment.refunded"
	FinanceEventEscrowFunded       FinanceEventType = "escrow.funded"
	FinanceEventEscrowReleased     FinanceEventType = "escrow.released"
	FinanceEventWebhookIgnored     FinanceEventType = "webhook.ignored"
)

var validFinanceEventTypes = []FinanceEventType{
	FinanceEventCheckoutCreated,
	FinanceEventAssignmentsCreated,
	FinanceEventPaymentCaptured,
	FinanceEventPaymentRefunded,
	FinanceEventEscrowFunded,
	FinanceEventEscrowReleased,
	FinanceEventWebhookIgnored,
}

// IsValid reports whether the value matches a known finance event type.
func (t FinanceEventType) IsValid() bool {
	for _, candidate := range validFinanceEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseFinanceEventType converts raw input into FinanceEventType.
func ParseFinanceEventType(value string) (FinanceEventType, error) {
	for _, candidate := range validFinanceEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid finance event type %q", value)
}
