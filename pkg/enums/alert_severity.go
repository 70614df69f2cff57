package enums

// AlertSeverity ranks finance alerts for the external notifier.
type AlertSeverity string

const (
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

// IsValid reports whether the value is a known AlertSeverity.
func (s AlertSeverity) IsValid() bool {
	return s == AlertSeverityMedium || s == AlertSeverityHigh || s == AlertSeverityCritical
}
