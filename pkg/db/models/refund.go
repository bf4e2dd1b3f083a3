package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/enums"
)

// Refund targets an Order, or one SellerOrder when SellerOrderID is set.
type Refund struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	SellerOrderID     *uuid.UUID         `gorm:"column:seller_order_id;type:uuid;index"`
	PaymentIntentID   uuid.UUID          `gorm:"column:payment_intent_id;type:uuid;not null"`
	Scope             enums.RefundScope  `gorm:"column:scope;type:text;not null"`
	Amount            decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency          enums.Currency     `gorm:"column:currency;type:text;not null"`
	Reason            string             `gorm:"column:reason;not null"`
	Status            enums.RefundStatus `gorm:"column:status;type:text;not null;default:'requested'"`
	ReviewNote        *string            `gorm:"column:review_note"`
	ProviderReference *string            `gorm:"column:provider_reference"`
	Version           int                `gorm:"column:version;not null;default:1"`
	ProcessingAt      *time.Time         `gorm:"column:processing_at"`
	CompletedAt       *time.Time         `gorm:"column:completed_at"`
	RejectedAt        *time.Time         `gorm:"column:rejected_at"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Refund) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	if r.Version == 0 {
		r.Version = 1
	}
	return nil
}
