package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/retry"
)

type fakeDeliveredOrders struct {
	orders []models.Order
	cutoff time.Time
}

func (f *fakeDeliveredOrders) FindDeliveredBefore(_ context.Context, cutoff time.Time, _ int) ([]models.Order, error) {
	f.cutoff = cutoff
	return f.orders, nil
}

type fakeSettler struct {
	settled []uuid.UUID
	errs    map[uuid.UUID]error
}

func (f *fakeSettler) Settle(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	if err := f.errs[orderID]; err != nil {
		return nil, err
	}
	f.settled = append(f.settled, orderID)
	return &models.Order{ID: orderID, Status: enums.OrderStatusCompleted}, nil
}

func TestSettlementJobCompletesDeliveredOrders(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	waiting := models.Order{ID: uuid.New(), Status: enums.OrderStatusPartialRefund}
	done := models.Order{ID: uuid.New(), Status: enums.OrderStatusDelivered}
	failing := models.Order{ID: uuid.New(), Status: enums.OrderStatusDelivered}
	reader := &fakeDeliveredOrders{orders: []models.Order{waiting, done, failing}}
	settler := &fakeSettler{errs: map[uuid.UUID]error{
		waiting.ID: pkgerrors.Transition(pkgerrors.CodeStateConflict, "order", waiting.ID, waiting.Status, "complete"),
		failing.ID: errors.New("connection refused"),
	}}

	jobIface, err := NewSettlementJob(SettlementJobParams{
		Logger:  logger.Nop(),
		Orders:  reader,
		Settler: settler,
		Delay:   48 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewSettlementJob: %v", err)
	}
	job := jobIface.(*settlementJob)
	job.now = func() time.Time { return now }

	settled, err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected the infrastructure failure to surface")
	}
	if settled != 1 || len(settler.settled) != 1 || settler.settled[0] != done.ID {
		t.Fatalf("expected only %s settled, got %v", done.ID, settler.settled)
	}
	if !reader.cutoff.Equal(now.Add(-48 * time.Hour)) {
		t.Fatalf("unexpected cutoff %s", reader.cutoff)
	}
}

func TestNewSettlementJobRequiresSettler(t *testing.T) {
	if _, err := NewSettlementJob(SettlementJobParams{Logger: logger.Nop(), Orders: &fakeDeliveredOrders{}}); err == nil {
		t.Fatal("expected missing settler error")
	}
}

type flakySettler struct {
	calls int
}

func (f *flakySettler) Settle(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	f.calls++
	if f.calls == 1 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")
	}
	return &models.Order{ID: orderID, Status: enums.OrderStatusCompleted}, nil
}

func TestSettlementJobRetriesUnavailableStorage(t *testing.T) {
	order := models.Order{ID: uuid.New(), Status: enums.OrderStatusDelivered}
	settler := &flakySettler{}
	job, err := NewSettlementJob(SettlementJobParams{
		Logger:  logger.Nop(),
		Orders:  &fakeDeliveredOrders{orders: []models.Order{order}},
		Settler: settler,
		Retry:   retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("NewSettlementJob: %v", err)
	}

	settled, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("expected retry to absorb the dependency error, got %v", err)
	}
	if settled != 1 || settler.calls != 2 {
		t.Fatalf("expected one settlement after two calls, got settled=%d calls=%d", settled, settler.calls)
	}
}
