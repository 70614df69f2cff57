package enums

// WebhookStatus tracks an inbound provider event through the inbox.
type WebhookStatus string

const (
	WebhookStatusQueued    WebhookStatus = "queued"
	WebhookStatusFailed    WebhookStatus = "failed"
	WebhookStatusSucceeded WebhookStatus = "succeeded"
	WebhookStatusDiscarded WebhookStatus = "discarded"
)

var validWebhookStatuses = []WebhookStatus{
	WebhookStatusQueued,
	WebhookStatusFailed,
	WebhookStatusSucceeded,
	WebhookStatusDiscarded,
}

// String implements fmt.Stringer.
func (w WebhookStatus) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WebhookStatus.
func (w WebhookStatus) IsValid() bool {
	for _, candidate := range validWebhookStatuses {
		if candidate == w {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status allows no further processing.
func (w WebhookStatus) IsTerminal() bool {
	return w == WebhookStatusSucceeded || w == WebhookStatusDiscarded
}
