package enums

import "fmt"

type RefundScope string

const (
	RefundScopeOrder       RefundScope = "order"
	RefundScopeSellerOrder RefundScope = "seller_order"
)

var validRefundScopes = []RefundScope{
	RefundScopeOrder,
	RefundScopeSellerOrder,
}

// String implements fmt.Stringer.
func (r RefundScope) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RefundScope.
func (r RefundScope) IsValid() bool {
	for _, candidate := range validRefundScopes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRefundScope converts raw input into a RefundScope.
func ParseRefundScope(value string) (RefundScope, error) {
	for _, candidate := range validRefundScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund scope %q", value)
}
