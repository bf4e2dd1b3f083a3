package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateSellerOrder   OutboxAggregateType = "seller_order"
	AggregatePaymentIntent OutboxAggregateType = "payment_intent"
	AggregateShipment      OutboxAggregateType = "shipment"
	AggregateRefund        OutboxAggregateType = "refund"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateSellerOrder,
	AggregatePaymentIntent,
	AggregateShipment,
	AggregateRefund,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a notification-worthy change.
type OutboxEventType string

const (
	EventOrderCreated               OutboxEventType = "order_created"
	EventOrderStatusChanged         OutboxEventType = "order_status_changed"
	EventSellerOrderStatusChanged   OutboxEventType = "seller_order_status_changed"
	EventPaymentIntentStatusChanged OutboxEventType = "payment_intent_status_changed"
	EventShipmentStatusChanged      OutboxEventType = "shipment_status_changed"
	EventRefundStatusChanged        OutboxEventType = "refund_status_changed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventSellerOrderStatusChanged,
	EventPaymentIntentStatusChanged,
	EventShipmentStatusChanged,
	EventRefundStatusChanged,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
