package listings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
)

// stockStatusExpr recomputes stock_status from the post-update quantity.
// Both placeholders receive the signed quantity delta.
const stockStatusExpr = `CASE
	WHEN stock_quantity + ? <= 0 THEN '` + string(enums.StockStatusOutOfStock) + `'
	WHEN stock_quantity + ? < low_stock_threshold THEN '` + string(enums.StockStatusLowStock) + `'
	ELSE '` + string(enums.StockStatusInStock) + `'
END`

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a listing repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found").
				WithDetails(map[string]any{"listing_id": id.String()})
		}
		return nil, err
	}
	return &listing, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Listing, error) {
	out := make(map[uuid.UUID]models.Listing, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Listing
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// DecrementStock takes quantity units only while the listing is active and
// holds enough stock; the guard lives in the UPDATE so concurrent checkouts
// cannot both take the last unit.
func (r *repository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND is_active = ? AND stock_quantity >= ?", id, true, quantity).
		Updates(stockUpdates(-quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	available := current.StockQuantity
	if !current.IsActive {
		available = 0
	}
	return pkgerrors.StockUnavailable(id, quantity, available)
}

// Restock returns quantity units, e.g. when an unshipped seller order is cancelled.
func (r *repository) Restock(ctx context.Context, id uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", id).
		Updates(stockUpdates(quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found").
			WithDetails(map[string]any{"listing_id": id.String()})
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_active":  active,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return nil
}

func stockUpdates(delta int) map[string]any {
	return map[string]any{
		"stock_quantity": gorm.Expr("stock_quantity + ?", delta),
		"stock_status":   gorm.Expr(stockStatusExpr, delta, delta),
		"version":        gorm.Expr("version + 1"),
		"updated_at":     time.Now().UTC(),
	}
}
