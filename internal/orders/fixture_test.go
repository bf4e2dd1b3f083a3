package orders

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/listings"
	"github.com/angelmondragon/bazaar-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
	"github.com/angelmondragon/bazaar-backend/pkg/types"
)

type recordingShipments struct {
	cancelled []uuid.UUID
}

func (r *recordingShipments) CancelForSellerOrder(_ context.Context, _ *gorm.DB, sellerOrderID uuid.UUID, _ *outbox.ActorRef, _ *Journal) error {
	r.cancelled = append(r.cancelled, sellerOrderID)
	return nil
}

type recordingIntents struct {
	cancelled []uuid.UUID
}

func (r *recordingIntents) CancelIntentTx(_ context.Context, tx *gorm.DB, orderID uuid.UUID, _ string, _ *outbox.ActorRef, _ *Journal) error {
	r.cancelled = append(r.cancelled, orderID)
	return tx.Model(&models.PaymentIntent{}).
		Where("order_id = ? AND superseded_at IS NULL", orderID).
		Update("status", enums.PaymentIntentStatusCancelled).Error
}

type orderFixture struct {
	conn      *gorm.DB
	repo      Repository
	listings  listings.Repository
	lifecycle *Lifecycle
	shipments *recordingShipments
	intents   *recordingIntents
	svc       Service
	now       time.Time
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	f := &orderFixture{
		conn:      conn,
		repo:      NewRepository(conn),
		listings:  listings.NewRepository(conn),
		shipments: &recordingShipments{},
		intents:   &recordingIntents{},
		now:       time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC),
	}
	emitter := outbox.NewService(outbox.NewRepository(conn), logger.Nop())
	lifecycle, err := NewLifecycle(f.repo, f.listings, emitter, f.shipments)
	require.NoError(t, err)
	lifecycle.now = func() time.Time { return f.now }
	f.lifecycle = lifecycle

	svc, err := NewService(f.repo, client, lifecycle, f.intents, logger.Nop(), nil)
	require.NoError(t, err)
	f.svc = svc
	return f
}

type seededOrder struct {
	order    *models.Order
	listings []*models.Listing
}

// seed stores an order with one seller order per listing price, each
// holding a single unit, plus an active intent in the given status.
func (f *orderFixture) seed(t *testing.T, intent enums.PaymentIntentStatus, prices ...string) seededOrder {
	t.Helper()
	ctx := context.Background()
	out := seededOrder{}

	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     "ORD-20260402-" + uuid.NewString()[:8],
		BuyerID:         uuid.New(),
		Status:          enums.OrderStatusPending,
		Currency:        "TRY",
		PaymentMethod:   enums.PaymentMethodCard,
		ShippingAddress: types.Address{Line1: "Moda Cd. 1", City: "Istanbul", PostalCode: "34710", Country: "TR"},
		ShippingCost:    decimal.Zero,
		TaxAmount:       decimal.Zero,
		DiscountAmount:  decimal.Zero,
	}
	order.BillingAddress = order.ShippingAddress
	sub := decimal.Zero
	for i, price := range prices {
		unit := decimal.RequireFromString(price)
		l := &models.Listing{
			SellerID:      uuid.New(),
			ProductID:     uuid.New(),
			ProductName:   "Item",
			Price:         unit,
			Currency:      "TRY",
			StockQuantity: 10,
			IsActive:      true,
		}
		require.NoError(t, f.listings.Create(ctx, l))
		out.listings = append(out.listings, l)

		order.SellerOrders = append(order.SellerOrders, models.SellerOrder{
			SellerOrderNumber: order.OrderNumber + "-" + strconv.Itoa(i+1),
			SellerID:          l.SellerID,
			Position:          i,
			Status:            enums.SellerOrderStatusPlaced,
			SubTotal:          unit,
			ShippingCost:      decimal.Zero,
			Total:             unit,
			Items: []models.SellerOrderItem{{
				OrderID:     order.ID,
				ListingID:   l.ID,
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				UnitPrice:   unit,
				Quantity:    1,
				LineTotal:   unit,
			}},
		})
		sub = sub.Add(unit)
	}
	order.SubTotal = sub
	order.TotalAmount = sub
	if intent == enums.PaymentIntentStatusCaptured {
		order.Status = enums.OrderStatusProcessing
		order.PaidAt = &f.now
	}
	require.NoError(t, f.repo.CreateOrder(ctx, order))

	require.NoError(t, f.conn.Create(&models.PaymentIntent{
		OrderID:  order.ID,
		Amount:   sub,
		Currency: "TRY",
		Method:   enums.PaymentMethodCard,
		Status:   intent,
		Provider: "sandbox",
	}).Error)

	out.order = order
	return out
}

func (f *orderFixture) reload(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	order, err := f.repo.FindOrder(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (f *orderFixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	l, err := f.listings.FindByID(context.Background(), id)
	require.NoError(t, err)
	return l.StockQuantity
}

func (f *orderFixture) events(t *testing.T, eventType enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ?", eventType).Order("created_at").Find(&rows).Error)
	return rows
}
