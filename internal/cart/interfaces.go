package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart and checkout services.
// Every item mutation touches the owning cart in the same transaction.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByBuyer(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error)
	GetOrCreate(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error)
	UpsertItem(ctx context.Context, cartID, listingID uuid.UUID, quantity int, unitPrice decimal.Decimal) error
	SetItemQuantity(ctx context.Context, cartID, listingID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, cartID, listingID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
	ClaimRevision(ctx context.Context, cartID uuid.UUID, revision int64) error
}

type listingReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}
