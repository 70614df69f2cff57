package reconciler

import "fmt"

// DiscardError marks a webhook event as permanently unprocessable. The
// reconciler records the reason and never retries; a missing reference will
// not resolve itself.
type DiscardError struct {
	Reason string
}

func (e *DiscardError) Error() string {
	return e.Reason
}

// Discardf builds a DiscardError from a format string.
func Discardf(format string, args ...any) error {
	return &DiscardError{Reason: fmt.Sprintf(format, args...)}
}
