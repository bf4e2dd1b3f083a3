package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
)

type fakeRepository struct {
	appendPaymentFn  func(ctx context.Context, event *models.PaymentEvent) error
	appendShipmentFn func(ctx context.Context, event *models.ShipmentEvent) error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) AppendPaymentEvent(ctx context.Context, event *models.PaymentEvent) error {
	if f.appendPaymentFn != nil {
		return f.appendPaymentFn(ctx, event)
	}
	return nil
}

func (f *fakeRepository) ListPaymentEvents(ctx context.Context, paymentIntentID uuid.UUID) ([]models.PaymentEvent, error) {
	return nil, nil
}

func (f *fakeRepository) ListPaymentEventsForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentEvent, error) {
	return nil, nil
}

func (f *fakeRepository) AppendShipmentEvent(ctx context.Context, event *models.ShipmentEvent) error {
	if f.appendShipmentFn != nil {
		return f.appendShipmentFn(ctx, event)
	}
	return nil
}

func (f *fakeRepository) ListShipmentEvents(ctx context.Context, shipmentID uuid.UUID) ([]models.ShipmentEvent, error) {
	return nil, nil
}

func TestService_RecordPaymentEvent(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	from := enums.PaymentIntentStatusCreated
	input := RecordPaymentEventInput{
		PaymentIntentID: uuid.New(),
		OrderID:         uuid.New(),
		From:            &from,
		To:              enums.PaymentIntentStatusFailed,
		Payload:         map[string]any{"reason": "card_declined"},
	}

	var created *models.PaymentEvent
	repo.appendPaymentFn = func(ctx context.Context, event *models.PaymentEvent) error {
		created = event
		return nil
	}

	got, err := svc.RecordPaymentEvent(context.Background(), input)
	if err != nil {
		t.Fatalf("RecordPaymentEvent error: %v", err)
	}
	if created == nil {
		t.Fatal("expected payment event to be appended")
	}
	if created.PaymentIntentID != input.PaymentIntentID || created.OrderID != input.OrderID || created.Status != input.To {
		t.Fatalf("unexpected payment event data: %+v", created)
	}
	if created.FromStatus == nil || *created.FromStatus != from {
		t.Fatalf("missing from status: %+v", created)
	}
	if created.Payload["reason"] != "card_declined" {
		t.Fatalf("payload mismatch: %v", created.Payload)
	}
	if got != created {
		t.Fatalf("service should return appended event")
	}
}

func TestService_RecordPaymentEventValidation(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	bogus := enums.PaymentIntentStatus("settled")

	tests := []struct {
		name  string
		input RecordPaymentEventInput
	}{
		{
			name:  "missing intent id",
			input: RecordPaymentEventInput{OrderID: uuid.New(), To: enums.PaymentIntentStatusCreated},
		},
		{
			name:  "missing order id",
			input: RecordPaymentEventInput{PaymentIntentID: uuid.New(), To: enums.PaymentIntentStatusCreated},
		},
		{
			name:  "invalid status",
			input: RecordPaymentEventInput{PaymentIntentID: uuid.New(), OrderID: uuid.New(), To: bogus},
		},
		{
			name:  "invalid from status",
			input: RecordPaymentEventInput{PaymentIntentID: uuid.New(), OrderID: uuid.New(), From: &bogus, To: enums.PaymentIntentStatusFailed},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.RecordPaymentEvent(context.Background(), tc.input); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestService_RecordShipmentEventDefaultsOccurredAt(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	fixed := time.Date(2026, 4, 3, 8, 0, 0, 0, time.UTC)
	svc.(*service).now = func() time.Time { return fixed }

	var created *models.ShipmentEvent
	repo.appendShipmentFn = func(ctx context.Context, event *models.ShipmentEvent) error {
		created = event
		return nil
	}

	if _, err := svc.RecordShipmentEvent(context.Background(), RecordShipmentEventInput{
		ShipmentID: uuid.New(),
		Status:     enums.ShipmentStatusShipped,
		Location:   "Istanbul hub",
	}); err != nil {
		t.Fatalf("RecordShipmentEvent error: %v", err)
	}
	if !created.OccurredAt.Equal(fixed) {
		t.Fatalf("expected occurred_at %s got %s", fixed, created.OccurredAt)
	}

	if _, err := svc.RecordShipmentEvent(context.Background(), RecordShipmentEventInput{
		ShipmentID: uuid.New(),
		Status:     enums.ShipmentStatus("lost"),
	}); err == nil {
		t.Fatal("expected invalid status error")
	}
}

func TestService_RecordEventRepoError(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	expectedErr := errors.New("boom")
	repo.appendPaymentFn = func(ctx context.Context, event *models.PaymentEvent) error {
		return expectedErr
	}

	if _, err := svc.RecordPaymentEvent(context.Background(), RecordPaymentEventInput{
		PaymentIntentID: uuid.New(),
		OrderID:         uuid.New(),
		To:              enums.PaymentIntentStatusCreated,
	}); !errors.Is(err, expectedErr) {
		t.Fatalf("expected repo error to bubble up, got %v", err)
	}
}
