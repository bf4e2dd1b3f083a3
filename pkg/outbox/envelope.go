package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Actor roles recorded on envelopes.
const (
	ActorBuyer   = "buyer"
	ActorSeller  = "seller"
	ActorSystem  = "system"
	ActorGateway = "gateway"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	ActorID *uuid.UUID `json:"actorId,omitempty"`
	Role    string     `json:"role"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// BuyerActor builds an actor reference for a buyer-initiated change.
func BuyerActor(buyerID uuid.UUID) *ActorRef {
	return &ActorRef{ActorID: &buyerID, Role: ActorBuyer}
}

// SellerActor builds an actor reference for a seller-initiated change.
func SellerActor(sellerID uuid.UUID) *ActorRef {
	return &ActorRef{ActorID: &sellerID, Role: ActorSeller}
}

// SystemActor marks changes made by scheduled jobs and reconcilers.
func SystemActor() *ActorRef {
	return &ActorRef{Role: ActorSystem}
}

// GatewayActor marks changes driven by payment gateway callbacks.
func GatewayActor() *ActorRef {
	return &ActorRef{Role: ActorGateway}
}
