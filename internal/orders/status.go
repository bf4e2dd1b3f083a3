package orders

import "github.com/angelmondragon/bazaar-backend/pkg/enums"

// RollupInput is everything the order roll-up depends on.
type RollupInput struct {
	PaymentCaptured bool
	SellerOrders    []enums.SellerOrderStatus
}

// DeriveOrderStatus computes the buyer-facing status from the payment state
// and the seller order statuses. Cancelled seller orders do not hold the
// order back; an order whose seller orders are all cancelled is Cancelled.
// Completed is never derived, it needs an explicit confirmation step.
func DeriveOrderStatus(in RollupInput) enums.OrderStatus {
	minRank, active := 0, 0
	for _, status := range in.SellerOrders {
		if status == enums.SellerOrderStatusCancelled {
			continue
		}
		rank := status.Rank()
		if active == 0 || rank < minRank {
			minRank = rank
		}
		active++
	}
	if len(in.SellerOrders) > 0 && active == 0 {
		return enums.OrderStatusCancelled
	}
	if !in.PaymentCaptured {
		return enums.OrderStatusPending
	}
	switch {
	case active == 0:
		return enums.OrderStatusProcessing
	case minRank >= enums.SellerOrderStatusDelivered.Rank():
		return enums.OrderStatusDelivered
	case minRank >= enums.SellerOrderStatusShipped.Rank():
		return enums.OrderStatusShipped
	case minRank >= enums.SellerOrderStatusConfirmed.Rank():
		return enums.OrderStatusConfirmed
	default:
		return enums.OrderStatusProcessing
	}
}

// ResolveOrderStatus merges a freshly derived status into the stored one.
// Terminal statuses never move. PartialRefund is only left for Cancelled,
// since forward fulfilment progress is tracked on the seller orders.
func ResolveOrderStatus(current, derived enums.OrderStatus) enums.OrderStatus {
	if current.IsTerminal() {
		return current
	}
	if current == enums.OrderStatusPartialRefund && derived != enums.OrderStatusCancelled {
		return current
	}
	return derived
}

var sellerOrderTransitions = map[enums.SellerOrderStatus][]enums.SellerOrderStatus{
	enums.SellerOrderStatusPlaced:    {enums.SellerOrderStatusConfirmed, enums.SellerOrderStatusCancelled},
	enums.SellerOrderStatusConfirmed: {enums.SellerOrderStatusPacked, enums.SellerOrderStatusCancelled},
	enums.SellerOrderStatusPacked:    {enums.SellerOrderStatusShipped, enums.SellerOrderStatusCancelled},
	enums.SellerOrderStatusShipped:   {enums.SellerOrderStatusDelivered},
}

// CanTransitionSellerOrder reports whether from -> to is an edge of the
// seller order state machine.
func CanTransitionSellerOrder(from, to enums.SellerOrderStatus) bool {
	for _, next := range sellerOrderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// sellerOrderAction names the operation for error details.
func sellerOrderAction(to enums.SellerOrderStatus) string {
	switch to {
	case enums.SellerOrderStatusConfirmed:
		return "confirm"
	case enums.SellerOrderStatusPacked:
		return "pack"
	case enums.SellerOrderStatusShipped:
		return "ship"
	case enums.SellerOrderStatusDelivered:
		return "deliver"
	case enums.SellerOrderStatusCancelled:
		return "cancel"
	}
	return string(to)
}
