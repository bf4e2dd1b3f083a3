package enums

import "fmt"

// CancellationReason records who or what cancelled a seller order or order.
type CancellationReason string

const (
	CancellationBuyerRequested CancellationReason = "buyer_requested"
	CancellationSellerRejected CancellationReason = "seller_rejected"
	CancellationOutOfStock     CancellationReason = "out_of_stock"
	CancellationPaymentFailed  CancellationReason = "payment_failed"
	CancellationPaymentExpired CancellationReason = "payment_expired"
	CancellationRefunded       CancellationReason = "refunded"
	CancellationSystem         CancellationReason = "system"
)

var validCancellationReasons = []CancellationReason{
	CancellationBuyerRequested,
	CancellationSellerRejected,
	CancellationOutOfStock,
	CancellationPaymentFailed,
	CancellationPaymentExpired,
	CancellationRefunded,
	CancellationSystem,
}

// String implements fmt.Stringer.
func (c CancellationReason) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CancellationReason.
func (c CancellationReason) IsValid() bool {
	for _, candidate := range validCancellationReasons {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCancellationReason converts raw input into a CancellationReason.
func ParseCancellationReason(value string) (CancellationReason, error) {
	for _, candidate := range validCancellationReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancellation reason %q", value)
}
