package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bazaar-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once checkout has split the cart.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID       `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	BuyerID        uuid.UUID       `json:"buyer_id"`
	SellerOrderIDs []uuid.UUID     `json:"seller_order_ids"`
	SellerIDs      []uuid.UUID     `json:"seller_ids"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       enums.Currency  `json:"currency"`
}

// OrderStatusChangedEvent reports a roll-up or buyer-driven order transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	BuyerID        uuid.UUID         `json:"buyer_id"`
	From           enums.OrderStatus `json:"from"`
	To             enums.OrderStatus `json:"to"`
	Reason         string            `json:"reason,omitempty"`
	RequiresRefund bool              `json:"requires_refund,omitempty"`
}

// SellerOrderStatusChangedEvent tells one seller (and the buyer) about their sub-order.
type SellerOrderStatusChangedEvent struct {
	SellerOrderID     uuid.UUID               `json:"seller_order_id"`
	SellerOrderNumber string                  `json:"seller_order_number"`
	OrderID           uuid.UUID               `json:"order_id"`
	BuyerID           uuid.UUID               `json:"buyer_id"`
	SellerID          uuid.UUID               `json:"seller_id"`
	From              enums.SellerOrderStatus `json:"from"`
	To                enums.SellerOrderStatus `json:"to"`
	Reason            string                  `json:"reason,omitempty"`
}

// PaymentIntentStatusChangedEvent mirrors one payment ledger entry.
type PaymentIntentStatusChangedEvent struct {
	PaymentIntentID uuid.UUID                  `json:"payment_intent_id"`
	OrderID         uuid.UUID                  `json:"order_id"`
	From            *enums.PaymentIntentStatus `json:"from,omitempty"`
	To              enums.PaymentIntentStatus  `json:"to"`
	Amount          decimal.Decimal            `json:"amount"`
	Currency        enums.Currency             `json:"currency"`
	FailureReason   string                     `json:"failure_reason,omitempty"`
}

// ShipmentStatusChangedEvent mirrors one carrier event.
type ShipmentStatusChangedEvent struct {
	ShipmentID     uuid.UUID             `json:"shipment_id"`
	SellerOrderID  uuid.UUID             `json:"seller_order_id"`
	OrderID        uuid.UUID             `json:"order_id"`
	From           *enums.ShipmentStatus `json:"from,omitempty"`
	To             enums.ShipmentStatus  `json:"to"`
	Carrier        string                `json:"carrier"`
	TrackingNumber string                `json:"tracking_number"`
}

// RefundStatusChangedEvent reports refund progress.
type RefundStatusChangedEvent struct {
	RefundID      uuid.UUID           `json:"refund_id"`
	OrderID       uuid.UUID           `json:"order_id"`
	SellerOrderID *uuid.UUID          `json:"seller_order_id,omitempty"`
	Scope         enums.RefundScope   `json:"scope"`
	From          *enums.RefundStatus `json:"from,omitempty"`
	To            enums.RefundStatus  `json:"to"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      enums.Currency      `json:"currency"`
}
