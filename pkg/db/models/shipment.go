package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/types"
)

// Shipment is the single parcel of a SellerOrder.
type Shipment struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	SellerOrderID  uuid.UUID            `gorm:"column:seller_order_id;type:uuid;not null;uniqueIndex:ux_shipments_seller_order"`
	OrderID        uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	Carrier        string               `gorm:"column:carrier;not null"`
	TrackingNumber string               `gorm:"column:tracking_number;not null"`
	Status         enums.ShipmentStatus `gorm:"column:status;type:text;not null;default:'created'"`
	Version        int                  `gorm:"column:version;not null;default:1"`
	ShippedAt      *time.Time           `gorm:"column:shipped_at"`
	DeliveredAt    *time.Time           `gorm:"column:delivered_at"`
	ReturnedAt     *time.Time           `gorm:"column:returned_at"`
	CancelledAt    *time.Time           `gorm:"column:cancelled_at"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Shipment) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	if s.Version == 0 {
		s.Version = 1
	}
	return nil
}

// ShipmentEvent is an append-only carrier scan or status change.
type ShipmentEvent struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ShipmentID  uuid.UUID            `gorm:"column:shipment_id;type:uuid;not null;uniqueIndex:ux_shipment_events_sequence,priority:1"`
	Sequence    int                  `gorm:"column:sequence;not null;uniqueIndex:ux_shipment_events_sequence,priority:2"`
	Status      enums.ShipmentStatus `gorm:"column:status;type:text;not null"`
	Location    string               `gorm:"column:location"`
	Description string               `gorm:"column:description"`
	Payload     types.JSONMap        `gorm:"column:payload;type:jsonb;serializer:json"`
	OccurredAt  time.Time            `gorm:"column:occurred_at;not null"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (e *ShipmentEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
