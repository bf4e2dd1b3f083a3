package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
)

// Repository exposes persistence operations for carts and their items.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx, now: r.now}
}

// FindByBuyer loads the buyer's cart with items in insertion order.
func (r *Repository) FindByBuyer(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC").Order("id ASC")
		}).
		Where("buyer_id = ?", buyerID).
		First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, err
	}
	return &cart, nil
}

// GetOrCreate returns the buyer's cart, creating it on first use. Concurrent
// creators converge on the row guarded by ux_carts_buyer.
func (r *Repository) GetOrCreate(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error) {
	cart := &models.Cart{BuyerID: buyerID, UpdatedAt: r.now()}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "buyer_id"}}, DoNothing: true}).
		Create(cart).Error
	if err != nil {
		return nil, err
	}
	return r.FindByBuyer(ctx, buyerID)
}

// UpsertItem adds quantity to the (cart, listing) row, inserting it when absent.
func (r *Repository) UpsertItem(ctx context.Context, cartID, listingID uuid.UUID, quantity int, unitPrice decimal.Decimal) error {
	return r.mutate(ctx, cartID, func(tx *gorm.DB) error {
		now := r.now()
		item := &models.CartItem{
			CartID:    cartID,
			ListingID: listingID,
			Quantity:  quantity,
			UnitPrice: unitPrice,
			Position:  now.UnixNano(),
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "listing_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("cart_items.quantity + excluded.quantity"),
				"unit_price": gorm.Expr("excluded.unit_price"),
				"updated_at": now,
			}),
		}).Create(item).Error
	})
}

// SetItemQuantity overwrites the quantity of an existing item.
func (r *Repository) SetItemQuantity(ctx context.Context, cartID, listingID uuid.UUID, quantity int) error {
	return r.mutate(ctx, cartID, func(tx *gorm.DB) error {
		res := tx.Model(&models.CartItem{}).
			Where("cart_id = ? AND listing_id = ?", cartID, listingID).
			Updates(map[string]any{"quantity": quantity, "updated_at": r.now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return itemNotFound(listingID)
		}
		return nil
	})
}

// RemoveItem deletes one item from the cart.
func (r *Repository) RemoveItem(ctx context.Context, cartID, listingID uuid.UUID) error {
	return r.mutate(ctx, cartID, func(tx *gorm.DB) error {
		res := tx.Where("cart_id = ? AND listing_id = ?", cartID, listingID).Delete(&models.CartItem{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return itemNotFound(listingID)
		}
		return nil
	})
}

// ClearItems empties the cart.
func (r *Repository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	return r.mutate(ctx, cartID, func(tx *gorm.DB) error {
		return tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
	})
}

// ClaimRevision advances the cart revision only when it still equals
// revision. Checkout claims the revision it read so a second checkout of the
// same cart loses instead of ordering it twice.
func (r *Repository) ClaimRevision(ctx context.Context, cartID uuid.UUID, revision int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND revision = ?", cartID, revision).
		Updates(map[string]any{
			"revision":   gorm.Expr("revision + 1"),
			"updated_at": r.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ConcurrentModification("cart", cartID, int(revision))
	}
	return nil
}

// mutate runs fn and the touch hook as one unit. Nested under an outer
// transaction this becomes a savepoint.
func (r *Repository) mutate(ctx context.Context, cartID uuid.UUID, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			return err
		}
		return r.touch(tx, cartID)
	})
}

// touch advances the cart's revision and updated_at after a child mutation.
func (r *Repository) touch(tx *gorm.DB, cartID uuid.UUID) error {
	res := tx.Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{
			"revision":   gorm.Expr("revision + 1"),
			"updated_at": r.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return nil
}

func itemNotFound(listingID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found").
		WithDetails(map[string]any{"listing_id": listingID.String()})
}
