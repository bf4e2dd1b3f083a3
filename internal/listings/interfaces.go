package listings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
)

// Repository is the catalog surface the order lifecycle depends on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Listing, error)
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error
	Restock(ctx context.Context, id uuid.UUID, quantity int) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}
