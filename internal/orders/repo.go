package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateOrder inserts the order together with its seller orders and items.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) OrderNumberExists(ctx context.Context, orderNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_number = ?", orderNumber).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("SellerOrders", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("SellerOrders.Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("order", id)
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderDetail(ctx context.Context, id uuid.UUID) (*OrderDetail, error) {
	order, err := r.FindOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &OrderDetail{Order: *order}

	var intent models.PaymentIntent
	err = r.db.WithContext(ctx).
		Where("order_id = ? AND superseded_at IS NULL", id).
		First(&intent).Error
	switch {
	case err == nil:
		detail.PaymentIntent = &intent
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	if err := r.db.WithContext(ctx).
		Where("order_id = ?", id).
		Order("created_at ASC").
		Find(&detail.Shipments).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", id).
		Order("created_at ASC").
		Find(&detail.Refunds).Error; err != nil {
		return nil, err
	}
	return detail, nil
}

func (r *repository) FindSellerOrder(ctx context.Context, id uuid.UUID) (*models.SellerOrder, error) {
	var sellerOrder models.SellerOrder
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&sellerOrder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("seller_order", id)
		}
		return nil, err
	}
	return &sellerOrder, nil
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, version int, updates map[string]any) error {
	return r.guardedUpdate(ctx, &models.Order{}, "order", id, version, updates)
}

func (r *repository) UpdateSellerOrder(ctx context.Context, id uuid.UUID, version int, updates map[string]any) error {
	return r.guardedUpdate(ctx, &models.SellerOrder{}, "seller_order", id, version, updates)
}

func (r *repository) guardedUpdate(ctx context.Context, model any, entity string, id uuid.UUID, version int, updates map[string]any) error {
	values := make(map[string]any, len(updates)+2)
	for k, v := range updates {
		values[k] = v
	}
	values["version"] = gorm.Expr("version + 1")
	values["updated_at"] = time.Now().UTC()

	res := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", id, version).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ConcurrentModification(entity, id, version)
	}
	return nil
}

// ActiveIntentStatus reports the status of the order's non-superseded intent.
func (r *repository) ActiveIntentStatus(ctx context.Context, orderID uuid.UUID) (enums.PaymentIntentStatus, bool, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Select("id", "status").
		Where("order_id = ? AND superseded_at IS NULL", orderID).
		First(&intent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return intent.Status, true, nil
}

func (r *repository) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (pagination.Page[models.Order], error) {
	q, err := pagination.Apply(r.db.WithContext(ctx).Where("buyer_id = ?", buyerID), "", params)
	if err != nil {
		return pagination.Page[models.Order]{}, err
	}
	var rows []models.Order
	if err := q.Preload("SellerOrders", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Find(&rows).Error; err != nil {
		return pagination.Page[models.Order]{}, err
	}
	return pagination.Build(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	}), nil
}

func (r *repository) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters SellerOrderFilters) (pagination.Page[models.SellerOrder], error) {
	base := r.db.WithContext(ctx).Where("seller_id = ?", sellerID)
	if filters.Status != nil {
		base = base.Where("status = ?", *filters.Status)
	}
	q, err := pagination.Apply(base, "", params)
	if err != nil {
		return pagination.Page[models.SellerOrder]{}, err
	}
	var rows []models.SellerOrder
	if err := q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Find(&rows).Error; err != nil {
		return pagination.Page[models.SellerOrder]{}, err
	}
	return pagination.Build(rows, params.Limit, func(s models.SellerOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: s.CreatedAt, ID: s.ID}
	}), nil
}

// FindDeliveredBefore returns delivered or partially refunded orders whose
// delivery is older than cutoff, oldest first.
func (r *repository) FindDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ? AND delivered_at IS NOT NULL AND delivered_at < ?",
			[]enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusPartialRefund}, cutoff).
		Order("delivered_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func notFound(entity string, id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found").
		WithDetails(map[string]any{"entity": entity, "entity_id": id.String()})
}
