package models

import "github.com/google/uuid"

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model. Used by AutoMigrate in tests and sqlite mode.
func All() []any {
	return []any{
		&Listing{},
		&Address{},
		&Cart{},
		&CartItem{},
		&Order{},
		&SellerOrder{},
		&SellerOrderItem{},
		&PaymentIntent{},
		&PaymentEvent{},
		&Shipment{},
		&ShipmentEvent{},
		&Refund{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
