package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
)

// Repository appends and lists ledger rows. Rows are never updated or deleted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	AppendPaymentEvent(ctx context.Context, event *models.PaymentEvent) error
	ListPaymentEvents(ctx context.Context, paymentIntentID uuid.UUID) ([]models.PaymentEvent, error)
	ListPaymentEventsForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentEvent, error)
	AppendShipmentEvent(ctx context.Context, event *models.ShipmentEvent) error
	ListShipmentEvents(ctx context.Context, shipmentID uuid.UUID) ([]models.ShipmentEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// AppendPaymentEvent assigns the next sequence of the intent and inserts the row.
func (r *repository) AppendPaymentEvent(ctx context.Context, event *models.PaymentEvent) error {
	next, err := r.nextSequence(ctx, &models.PaymentEvent{}, "payment_intent_id", event.PaymentIntentID)
	if err != nil {
		return err
	}
	event.Sequence = next
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return sequenceConflict(err, "payment_intent", event.PaymentIntentID, next)
	}
	return nil
}

func (r *repository) ListPaymentEvents(ctx context.Context, paymentIntentID uuid.UUID) ([]models.PaymentEvent, error) {
	var events []models.PaymentEvent
	if err := r.db.WithContext(ctx).
		Where("payment_intent_id = ?", paymentIntentID).
		Order("sequence ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListPaymentEventsForOrder spans every intent of the order, oldest intent first.
func (r *repository) ListPaymentEventsForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentEvent, error) {
	var events []models.PaymentEvent
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("payment_intent_id ASC").
		Order("sequence ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) AppendShipmentEvent(ctx context.Context, event *models.ShipmentEvent) error {
	next, err := r.nextSequence(ctx, &models.ShipmentEvent{}, "shipment_id", event.ShipmentID)
	if err != nil {
		return err
	}
	event.Sequence = next
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return sequenceConflict(err, "shipment", event.ShipmentID, next)
	}
	return nil
}

func (r *repository) ListShipmentEvents(ctx context.Context, shipmentID uuid.UUID) ([]models.ShipmentEvent, error) {
	var events []models.ShipmentEvent
	if err := r.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID).
		Order("sequence ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) nextSequence(ctx context.Context, model any, column string, id uuid.UUID) (int, error) {
	var current int
	err := r.db.WithContext(ctx).
		Model(model).
		Select("COALESCE(MAX(sequence), 0)").
		Where(column+" = ?", id).
		Scan(&current).Error
	if err != nil {
		return 0, err
	}
	return current + 1, nil
}

// a duplicate sequence means another writer appended to the same stream first
func sequenceConflict(err error, entity string, id uuid.UUID, sequence int) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.ConcurrentModification(entity, id, sequence-1)
	}
	return err
}
