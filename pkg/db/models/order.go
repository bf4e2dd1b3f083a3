package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/types"
)

// Order is the buyer-level aggregate of one checkout. Monetary fields and the
// address snapshots are frozen at creation; only status and timestamps move.
type Order struct {
	ID                 uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber        string                    `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	BuyerID            uuid.UUID                 `gorm:"column:buyer_id;type:uuid;not null;index"`
	Status             enums.OrderStatus         `gorm:"column:status;type:text;not null;default:'pending'"`
	Currency           enums.Currency            `gorm:"column:currency;type:text;not null"`
	SubTotal           decimal.Decimal           `gorm:"column:sub_total;type:numeric(12,2);not null"`
	ShippingCost       decimal.Decimal           `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	TaxAmount          decimal.Decimal           `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	DiscountAmount     decimal.Decimal           `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TotalAmount        decimal.Decimal           `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CouponCode         *string                   `gorm:"column:coupon_code"`
	PaymentMethod      enums.PaymentMethod       `gorm:"column:payment_method;type:text;not null"`
	ShippingAddress    types.Address             `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	BillingAddress     types.Address             `gorm:"column:billing_address;type:jsonb;serializer:json;not null"`
	CancellationReason *enums.CancellationReason `gorm:"column:cancellation_reason;type:text"`
	Version            int                       `gorm:"column:version;not null;default:1"`
	PaidAt             *time.Time                `gorm:"column:paid_at"`
	DeliveredAt        *time.Time                `gorm:"column:delivered_at"`
	CompletedAt        *time.Time                `gorm:"column:completed_at"`
	CancelledAt        *time.Time                `gorm:"column:cancelled_at"`
	RefundedAt         *time.Time                `gorm:"column:refunded_at"`
	SellerOrders       []SellerOrder             `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	if o.Version == 0 {
		o.Version = 1
	}
	return nil
}

// SellerOrder is one seller's independently fulfilled share of an Order.
// Total is SubTotal plus the seller's ShippingCost and is what a seller-level
// refund can return at most.
type SellerOrder struct {
	ID                 uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderID            uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;index"`
	SellerOrderNumber  string                    `gorm:"column:seller_order_number;not null;uniqueIndex:ux_seller_orders_number"`
	SellerID           uuid.UUID                 `gorm:"column:seller_id;type:uuid;not null;index"`
	Position           int                       `gorm:"column:position;not null"`
	Status             enums.SellerOrderStatus   `gorm:"column:status;type:text;not null;default:'placed'"`
	SubTotal           decimal.Decimal           `gorm:"column:sub_total;type:numeric(12,2);not null"`
	ShippingCost       decimal.Decimal           `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	Total              decimal.Decimal           `gorm:"column:total;type:numeric(12,2);not null"`
	CancellationReason *enums.CancellationReason `gorm:"column:cancellation_reason;type:text"`
	Version            int                       `gorm:"column:version;not null;default:1"`
	ConfirmedAt        *time.Time                `gorm:"column:confirmed_at"`
	PackedAt           *time.Time                `gorm:"column:packed_at"`
	ShippedAt          *time.Time                `gorm:"column:shipped_at"`
	DeliveredAt        *time.Time                `gorm:"column:delivered_at"`
	CancelledAt        *time.Time                `gorm:"column:cancelled_at"`
	Items              []SellerOrderItem         `gorm:"foreignKey:SellerOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *SellerOrder) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	if s.Version == 0 {
		s.Version = 1
	}
	return nil
}

// SellerOrderItem is an immutable purchase snapshot.
type SellerOrderItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SellerOrderID uuid.UUID       `gorm:"column:seller_order_id;type:uuid;not null;index"`
	OrderID       uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ListingID     uuid.UUID       `gorm:"column:listing_id;type:uuid;not null"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName   string          `gorm:"column:product_name;not null"`
	UnitPrice     decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity      int             `gorm:"column:quantity;not null"`
	LineTotal     decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	Position      int             `gorm:"column:position;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *SellerOrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
