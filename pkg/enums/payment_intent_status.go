package enums

import "fmt"

// PaymentIntentStatus is projected from the latest payment event.
type PaymentIntentStatus string

const (
	PaymentIntentStatusCreated   PaymentIntentStatus = "created"
	PaymentIntentStatusCaptured  PaymentIntentStatus = "captured"
	PaymentIntentStatusFailed    PaymentIntentStatus = "failed"
	PaymentIntentStatusCancelled PaymentIntentStatus = "cancelled"
)

var validPaymentIntentStatuses = []PaymentIntentStatus{
	PaymentIntentStatusCreated,
	PaymentIntentStatusCaptured,
	PaymentIntentStatusFailed,
	PaymentIntentStatusCancelled,
}

// String implements fmt.Stringer.
func (p PaymentIntentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentIntentStatus.
func (p PaymentIntentStatus) IsValid() bool {
	for _, candidate := range validPaymentIntentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentIntentStatus converts raw input into a PaymentIntentStatus.
func ParsePaymentIntentStatus(value string) (PaymentIntentStatus, error) {
	for _, candidate := range validPaymentIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment intent status %q", value)
}

// IsTerminal reports whether the intent can no longer be mutated.
func (p PaymentIntentStatus) IsTerminal() bool {
	return p == PaymentIntentStatusCaptured || p == PaymentIntentStatusCancelled
}
