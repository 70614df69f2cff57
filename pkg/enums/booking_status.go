package enums

// BookingStatus tracks fulfilment progress for an order's booking.
type BookingStatus string

const (
	BookingStatusAwaitingAssignment BookingStatus = "awaiting_assignment"
	BookingStatusAssigned           BookingStatus = "assigned"
	BookingStatusInProgress         BookingStatus = "in_progress"
	BookingStatusCompleted          BookingStatus = "completed"
	BookingStatusCancelled          BookingStatus = "cancelled"
)

var validBookingStatuses = []BookingStatus{
	BookingStatusAwaitingAssignment,
	BookingStatusAssigned,
	BookingStatusInProgress,
	BookingStatusCompleted,
	BookingStatusCancelled,
}

// IsValid reports whether the value is a known BookingStatus.
func (b BookingStatus) IsValid() bool {
	for _, candidate := range validBookingStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}
