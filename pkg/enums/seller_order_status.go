package enums

import "fmt"

// SellerOrderStatus tracks one seller's portion of an order.
type SellerOrderStatus string

const (
	SellerOrderStatusPlaced    SellerOrderStatus = "placed"
	SellerOrderStatusConfirmed SellerOrderStatus = "confirmed"
	SellerOrderStatusPacked    SellerOrderStatus = "packed"
	SellerOrderStatusShipped   SellerOrderStatus = "shipped"
	SellerOrderStatusDelivered SellerOrderStatus = "delivered"
	SellerOrderStatusCancelled SellerOrderStatus = "cancelled"
)

var validSellerOrderStatuses = []SellerOrderStatus{
	SellerOrderStatusPlaced,
	SellerOrderStatusConfirmed,
	SellerOrderStatusPacked,
	SellerOrderStatusShipped,
	SellerOrderStatusDelivered,
	SellerOrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s SellerOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SellerOrderStatus.
func (s SellerOrderStatus) IsValid() bool {
	for _, candidate := range validSellerOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSellerOrderStatus converts raw input into a SellerOrderStatus.
func ParseSellerOrderStatus(value string) (SellerOrderStatus, error) {
	for _, candidate := range validSellerOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid seller order status %q", value)
}

// Rank orders the forward progression; cancelled has no rank.
func (s SellerOrderStatus) Rank() int {
	switch s {
	case SellerOrderStatusPlaced:
		return 1
	case SellerOrderStatusConfirmed:
		return 2
	case SellerOrderStatusPacked:
		return 3
	case SellerOrderStatusShipped:
		return 4
	case SellerOrderStatusDelivered:
		return 5
	}
	return 0
}

// HasShipped reports whether the goods already left the seller.
func (s SellerOrderStatus) HasShipped() bool {
	return s == SellerOrderStatusShipped || s == SellerOrderStatusDelivered
}
