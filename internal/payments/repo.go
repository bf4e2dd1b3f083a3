package payments

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

const entityIntent = "payment_intent"

// Repository persists payment intents. Updates are version guarded.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.PaymentIntent) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error)
	FindByExternalReference(ctx context.Context, provider, reference string) (*models.PaymentIntent, error)
	Update(ctx context.Context, id uuid.UUID, version int, updates map[string]any) error
	ListExpirable(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment intent repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts under a savepoint so a lost race on the active intent index
// leaves the surrounding transaction usable.
func (r *repository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(intent).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already has an active payment intent")
	}
	return err
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&intent).Error; err != nil {
		return nil, intentLookup(err, "payment intent not found")
	}
	return &intent, nil
}

func (r *repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND superseded_at IS NULL", orderID).
		First(&intent).Error
	if err != nil {
		return nil, intentLookup(err, "order has no active payment intent")
	}
	return &intent, nil
}

func (r *repository) FindByExternalReference(ctx context.Context, provider, reference string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("provider = ? AND external_reference = ?", provider, reference).
		Order("created_at DESC").
		First(&intent).Error
	if err != nil {
		return nil, intentLookup(err, "payment intent not found for reference")
	}
	return &intent, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, version int, updates map[string]any) error {
	values := make(map[string]any, len(updates)+2)
	for k, v := range updates {
		values[k] = v
	}
	values["version"] = gorm.Expr("version + 1")
	values["updated_at"] = time.Now().UTC()

	res := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND version = ?", id, version).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ConcurrentModification(entityIntent, id, version)
	}
	return nil
}

// ListExpirable returns active intents still waiting for a capture that were
// created before cutoff, oldest first.
func (r *repository) ListExpirable(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	q := r.db.WithContext(ctx).
		Where("superseded_at IS NULL").
		Where("status IN ?", []enums.PaymentIntentStatus{enums.PaymentIntentStatusCreated, enums.PaymentIntentStatusFailed}).
		Where("created_at < ?", cutoff).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&intents).Error; err != nil {
		return nil, err
	}
	return intents, nil
}

func intentLookup(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	return err
}
