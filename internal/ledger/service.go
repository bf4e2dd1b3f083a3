package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/types"
)

// Service records payment and shipment history.
type Service interface {
	WithTx(tx *gorm.DB) Service
	RecordPaymentEvent(ctx context.Context, input RecordPaymentEventInput) (*models.PaymentEvent, error)
	RecordShipmentEvent(ctx context.Context, input RecordShipmentEventInput) (*models.ShipmentEvent, error)
	PaymentHistory(ctx context.Context, paymentIntentID uuid.UUID) ([]models.PaymentEvent, error)
	OrderPaymentHistory(ctx context.Context, orderID uuid.UUID) ([]models.PaymentEvent, error)
	ShipmentHistory(ctx context.Context, shipmentID uuid.UUID) ([]models.ShipmentEvent, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// RecordPaymentEventInput captures one payment intent transition. From is
// nil only for the creation event.
type RecordPaymentEventInput struct {
	PaymentIntentID uuid.UUID
	OrderID         uuid.UUID
	From            *enums.PaymentIntentStatus
	To              enums.PaymentIntentStatus
	Payload         map[string]any
}

// RecordShipmentEventInput captures one carrier scan.
type RecordShipmentEventInput struct {
	ShipmentID  uuid.UUID
	Status      enums.ShipmentStatus
	Location    string
	Description string
	Payload     map[string]any
	OccurredAt  time.Time
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx), now: s.now}
}

func (s *service) RecordPaymentEvent(ctx context.Context, input RecordPaymentEventInput) (*models.PaymentEvent, error) {
	if input.PaymentIntentID == uuid.Nil {
		return nil, fmt.Errorf("payment intent id is required")
	}
	if input.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if !input.To.IsValid() {
		return nil, fmt.Errorf("invalid payment intent status %q", input.To)
	}
	if input.From != nil && !input.From.IsValid() {
		return nil, fmt.Errorf("invalid payment intent status %q", *input.From)
	}

	event := &models.PaymentEvent{
		PaymentIntentID: input.PaymentIntentID,
		OrderID:         input.OrderID,
		FromStatus:      input.From,
		Status:          input.To,
		Payload:         types.JSONMap(input.Payload),
	}
	if err := s.repo.AppendPaymentEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) RecordShipmentEvent(ctx context.Context, input RecordShipmentEventInput) (*models.ShipmentEvent, error) {
	if input.ShipmentID == uuid.Nil {
		return nil, fmt.Errorf("shipment id is required")
	}
	if !input.Status.IsValid() {
		return nil, fmt.Errorf("invalid shipment status %q", input.Status)
	}
	if input.OccurredAt.IsZero() {
		input.OccurredAt = s.now()
	}

	event := &models.ShipmentEvent{
		ShipmentID:  input.ShipmentID,
		Status:      input.Status,
		Location:    input.Location,
		Description: input.Description,
		Payload:     types.JSONMap(input.Payload),
		OccurredAt:  input.OccurredAt.UTC(),
	}
	if err := s.repo.AppendShipmentEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) PaymentHistory(ctx context.Context, paymentIntentID uuid.UUID) ([]models.PaymentEvent, error) {
	if paymentIntentID == uuid.Nil {
		return nil, fmt.Errorf("payment intent id is required")
	}
	return s.repo.ListPaymentEvents(ctx, paymentIntentID)
}

func (s *service) OrderPaymentHistory(ctx context.Context, orderID uuid.UUID) ([]models.PaymentEvent, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	return s.repo.ListPaymentEventsForOrder(ctx, orderID)
}

func (s *service) ShipmentHistory(ctx context.Context, shipmentID uuid.UUID) ([]models.ShipmentEvent, error) {
	if shipmentID == uuid.Nil {
		return nil, fmt.Errorf("shipment id is required")
	}
	return s.repo.ListShipmentEvents(ctx, shipmentID)
}
