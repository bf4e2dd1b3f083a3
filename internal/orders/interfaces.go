package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
	"github.com/angelmondragon/bazaar-backend/pkg/pagination"
)

// Repository defines persistence operations for orders, seller orders and their items.
// Update methods apply only when the stored version matches and bump it.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	OrderNumberExists(ctx context.Context, orderNumber string) (bool, error)
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderDetail(ctx context.Context, id uuid.UUID) (*OrderDetail, error)
	FindSellerOrder(ctx context.Context, id uuid.UUID) (*models.SellerOrder, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, version int, updates map[string]any) error
	UpdateSellerOrder(ctx context.Context, id uuid.UUID, version int, updates map[string]any) error
	ActiveIntentStatus(ctx context.Context, orderID uuid.UUID) (enums.PaymentIntentStatus, bool, error)
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (pagination.Page[models.Order], error)
	ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters SellerOrderFilters) (pagination.Page[models.SellerOrder], error)
	FindDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ShipmentCanceller cancels the not yet shipped parcel of a seller order, if any.
type ShipmentCanceller interface {
	CancelForSellerOrder(ctx context.Context, tx *gorm.DB, sellerOrderID uuid.UUID, actor *outbox.ActorRef, journal *Journal) error
}

// IntentCanceller cancels an order's uncaptured payment intent without
// touching the order itself.
type IntentCanceller interface {
	CancelIntentTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string, actor *outbox.ActorRef, journal *Journal) error
}

// OrderDetail is the full read model of one order.
type OrderDetail struct {
	Order         models.Order
	PaymentIntent *models.PaymentIntent
	Shipments     []models.Shipment
	Refunds       []models.Refund
}

// SellerOrderFilters narrows ListSellerOrders.
type SellerOrderFilters struct {
	Status *enums.SellerOrderStatus
}
