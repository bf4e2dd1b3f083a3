package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/types"
)

// PaymentIntent tracks the payment of an Order. At most one intent per order
// has SupersededAt unset; the partial unique index ux_payment_intents_active_order
// enforces it.
type PaymentIntent struct {
	ID                uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;index"`
	Amount            decimal.Decimal           `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency          enums.Currency            `gorm:"column:currency;type:text;not null"`
	Method            enums.PaymentMethod       `gorm:"column:method;type:text;not null"`
	Status            enums.PaymentIntentStatus `gorm:"column:status;type:text;not null;default:'created'"`
	Provider          string                    `gorm:"column:provider;type:text;not null"`
	ExternalReference *string                   `gorm:"column:external_reference"`
	FailureReason     *string                   `gorm:"column:failure_reason"`
	Version           int                       `gorm:"column:version;not null;default:1"`
	CapturedAt        *time.Time                `gorm:"column:captured_at"`
	FailedAt          *time.Time                `gorm:"column:failed_at"`
	CancelledAt       *time.Time                `gorm:"column:cancelled_at"`
	SupersededAt      *time.Time                `gorm:"column:superseded_at"`
	CreatedAt         time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PaymentIntent) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	if p.Version == 0 {
		p.Version = 1
	}
	return nil
}

// PaymentEvent is an append-only ledger row. Status is the intent status
// resulting from the recorded transition.
type PaymentEvent struct {
	ID              uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	PaymentIntentID uuid.UUID                  `gorm:"column:payment_intent_id;type:uuid;not null;uniqueIndex:ux_payment_events_sequence,priority:1"`
	Sequence        int                        `gorm:"column:sequence;not null;uniqueIndex:ux_payment_events_sequence,priority:2"`
	OrderID         uuid.UUID                  `gorm:"column:order_id;type:uuid;not null;index"`
	FromStatus      *enums.PaymentIntentStatus `gorm:"column:from_status;type:text"`
	Status          enums.PaymentIntentStatus  `gorm:"column:status;type:text;not null"`
	Payload         types.JSONMap              `gorm:"column:payload;type:jsonb;serializer:json"`
	CreatedAt       time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (e *PaymentEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
