package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/ledger"
	"github.com/angelmondragon/bazaar-backend/internal/listings"
	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
	"github.com/angelmondragon/bazaar-backend/pkg/types"
)

type noShipments struct{}

func (noShipments) CancelForSellerOrder(context.Context, *gorm.DB, uuid.UUID, *outbox.ActorRef, *orders.Journal) error {
	return nil
}

type paymentFixture struct {
	conn     *gorm.DB
	svc      Service
	orders   orders.Repository
	listings listings.Repository
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	f := &paymentFixture{
		conn:     conn,
		orders:   orders.NewRepository(conn),
		listings: listings.NewRepository(conn),
	}
	emitter := outbox.NewService(outbox.NewRepository(conn), logger.Nop())
	lifecycle, err := orders.NewLifecycle(f.orders, f.listings, emitter, noShipments{})
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), ledgerSvc, client, lifecycle, emitter, logger.Nop(), nil, "")
	require.NoError(t, err)
	f.svc = svc
	return f
}

// order stores a pending single-seller order totalling total with two units
// taken from a listing that keeps stock units left.
func (f *paymentFixture) order(t *testing.T, total string, stock int) (*models.Order, *models.Listing) {
	t.Helper()
	ctx := context.Background()
	amount := decimal.RequireFromString(total)
	unit := amount.Div(decimal.NewFromInt(2))

	l := &models.Listing{
		SellerID:      uuid.New(),
		ProductID:     uuid.New(),
		ProductName:   "Copper pot",
		Price:         unit,
		Currency:      "TRY",
		StockQuantity: stock,
		IsActive:      true,
	}
	require.NoError(t, f.listings.Create(ctx, l))

	orderID := uuid.New()
	order := &models.Order{
		ID:              orderID,
		OrderNumber:     "ORD-20260402-" + uuid.NewString()[:8],
		BuyerID:         uuid.New(),
		Status:          enums.OrderStatusPending,
		Currency:        "TRY",
		SubTotal:        amount,
		ShippingCost:    decimal.Zero,
		TaxAmount:       decimal.Zero,
		DiscountAmount:  decimal.Zero,
		TotalAmount:     amount,
		PaymentMethod:   enums.PaymentMethodCard,
		ShippingAddress: types.Address{Line1: "Kordon 3", City: "Izmir", PostalCode: "35220", Country: "TR"},
		SellerOrders: []models.SellerOrder{{
			SellerOrderNumber: "SO-" + uuid.NewString()[:8],
			SellerID:          l.SellerID,
			Status:            enums.SellerOrderStatusPlaced,
			SubTotal:          amount,
			ShippingCost:      decimal.Zero,
			Total:             amount,
			Items: []models.SellerOrderItem{{
				OrderID:     orderID,
				ListingID:   l.ID,
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				UnitPrice:   unit,
				Quantity:    2,
				LineTotal:   amount,
			}},
		}},
	}
	order.BillingAddress = order.ShippingAddress
	require.NoError(t, f.orders.CreateOrder(ctx, order))
	return order, l
}

func (f *paymentFixture) reloadOrder(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	order, err := f.orders.FindOrder(context.Background(), id)
	require.NoError(t, err)
	return order
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil, nil, nil, "")
	assert.EqualError(t, err, "payment intent repository required")
}

func TestCreateIntentIsIdempotentAndUsesOrderTotal(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	order, _ := f.order(t, "210.00", 5)

	first, err := f.svc.CreateIntent(ctx, order.ID)
	require.NoError(t, err)
	second, err := f.svc.CreateIntent(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("210.00")))
	assert.True(t, second.Amount.Equal(first.Amount))
	assert.Equal(t, enums.CurrencyTRY, first.Currency)
	assert.Equal(t, enums.PaymentIntentStatusCreated, first.Status)
	assert.Equal(t, "simulated", first.Provider)

	events, err := f.svc.Events(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].FromStatus)

	_, err = f.svc.CreateIntent(ctx, uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestFailedIntentOnlyCapturesThroughRecreation(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	order, _ := f.order(t, "210.00", 5)
	intent, err := f.svc.CreateIntent(ctx, order.ID)
	require.NoError(t, err)

	failed, err := f.svc.SimulateFailure(ctx, intent.ID, "")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentIntentStatusFailed, failed.Status)
	require.NotNil(t, failed.FailureReason)
	assert.Equal(t, "simulated_decline", *failed.FailureReason)
	assert.Equal(t, enums.OrderStatusPending, f.reloadOrder(t, order.ID).Status)

	_, err = f.svc.SimulateSuccess(ctx, intent.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.False(t, pkgerrors.Is(err, pkgerrors.CodeIntentNotMutable))

	fresh, err := f.svc.Recreate(ctx, order.ID)
	require.NoError(t, err)
	assert.NotEqual(t, intent.ID, fresh.ID)
	assert.True(t, fresh.Amount.Equal(decimal.RequireFromString("210.00")))

	captured, err := f.svc.SimulateSuccess(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentIntentStatusCaptured, captured.Status)
	require.NotNil(t, captured.ExternalReference)

	reloaded := f.reloadOrder(t, order.ID)
	assert.Equal(t, enums.OrderStatusProcessing, reloaded.Status)
	assert.NotNil(t, reloaded.PaidAt)

	_, err = f.svc.SimulateSuccess(ctx, fresh.ID)
	assert.Equal(t, pkgerrors.CodeIntentNotMutable, pkgerrors.CodeOf(err))
	_, err = f.svc.SimulateFailure(ctx, fresh.ID, "late decline")
	assert.Equal(t, pkgerrors.CodeIntentNotMutable, pkgerrors.CodeOf(err))

	old, err := f.svc.ReplayStatus(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentIntentStatusFailed, old)
	current, err := f.svc.ReplayStatus(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentIntentStatusCaptured, current)

	history, err := f.svc.OrderEvents(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestRecreateRequiresFailedIntent(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	order, _ := f.order(t, "40.00", 5)
	intent, err := f.svc.CreateIntent(ctx, order.ID)
	require.NoError(t, err)

	_, err = f.svc.Recreate(ctx, order.ID)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))

	_, err = f.svc.Capture(ctx, CaptureInput{IntentID: intent.ID})
	require.NoError(t, err)
	_, err = f.svc.Recreate(ctx, order.ID)
	assert.Equal(t, pkgerrors.CodeIntentNotMutable, pkgerrors.CodeOf(err))
}

func TestCancelIntentFailsOrderAndRestocks(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	order, listing := f.order(t, "30.00", 3)
	intent, err := f.svc.CreateIntent(ctx, order.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, CancelInput{IntentID: intent.ID, Reason: enums.CancellationPaymentExpired})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentIntentStatusCancelled, cancelled.Status)

	reloaded := f.reloadOrder(t, order.ID)
	assert.Equal(t, enums.OrderStatusFailed, reloaded.Status)
	require.NotNil(t, reloaded.CancellationReason)
	assert.Equal(t, enums.CancellationPaymentExpired, *reloaded.CancellationReason)
	assert.Equal(t, enums.SellerOrderStatusCancelled, reloaded.SellerOrders[0].Status)

	stocked, err := f.listings.FindByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stocked.StockQuantity)

	_, err = f.svc.Cancel(ctx, CancelInput{IntentID: intent.ID})
	assert.Equal(t, pkgerrors.CodeIntentNotMutable, pkgerrors.CodeOf(err))
}

func TestCaptureGuardsVersion(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	order, _ := f.order(t, "30.00", 3)
	intent, err := f.svc.CreateIntent(ctx, order.ID)
	require.NoError(t, err)

	stale := intent.Version + 1
	_, err = f.svc.Capture(ctx, CaptureInput{IntentID: intent.ID, ExpectedVersion: &stale})
	assert.Equal(t, pkgerrors.CodeConcurrentModification, pkgerrors.CodeOf(err))

	_, err = f.svc.Fail(ctx, FailInput{IntentID: intent.ID})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	events, err := f.svc.Events(ctx, intent.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestGatewayCallbackIsIdempotentPerOutcome(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	order, _ := f.order(t, "30.00", 3)
	intent, err := f.svc.CreateIntent(ctx, order.ID)
	require.NoError(t, err)

	_, err = f.svc.HandleGatewayCallback(ctx, GatewayCallback{Provider: "iyzico", IntentID: intent.ID, Outcome: GatewayOutcomeSucceeded})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = f.svc.HandleGatewayCallback(ctx, GatewayCallback{Provider: "simulated", Outcome: GatewayOutcomeSucceeded})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	callback := GatewayCallback{Provider: "simulated", IntentID: intent.ID, ExternalReference: "gw-991", Outcome: GatewayOutcomeSucceeded}
	captured, err := f.svc.HandleGatewayCallback(ctx, callback)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentIntentStatusCaptured, captured.Status)

	again, err := f.svc.HandleGatewayCallback(ctx, GatewayCallback{Provider: "simulated", ExternalReference: "gw-991", Outcome: GatewayOutcomeSucceeded})
	require.NoError(t, err)
	assert.Equal(t, captured.Version, again.Version)

	events, err := f.svc.Events(ctx, intent.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestCancelIntentTxLeavesOrderToCaller(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	order, _ := f.order(t, "30.00", 3)
	intent, err := f.svc.CreateIntent(ctx, order.ID)
	require.NoError(t, err)

	var journal orders.Journal
	require.NoError(t, f.conn.Transaction(func(tx *gorm.DB) error {
		return f.svc.CancelIntentTx(ctx, tx, order.ID, "buyer_requested", outbox.BuyerActor(order.BuyerID), &journal)
	}))
	require.Len(t, journal.Changes(), 1)
	assert.Equal(t, intent.ID, journal.Changes()[0].EntityID)
	assert.Equal(t, enums.OrderStatusPending, f.reloadOrder(t, order.ID).Status)

	// already cancelled and missing intents are both no-ops
	require.NoError(t, f.conn.Transaction(func(tx *gorm.DB) error {
		if err := f.svc.CancelIntentTx(ctx, tx, order.ID, "buyer_requested", nil, nil); err != nil {
			return err
		}
		return f.svc.CancelIntentTx(ctx, tx, uuid.New(), "buyer_requested", nil, nil)
	}))
}

func TestListExpirableSkipsCapturedAndRecentIntents(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	stale, _ := f.order(t, "30.00", 3)
	paid, _ := f.order(t, "30.00", 3)

	staleIntent, err := f.svc.CreateIntent(ctx, stale.ID)
	require.NoError(t, err)
	paidIntent, err := f.svc.CreateIntent(ctx, paid.ID)
	require.NoError(t, err)
	_, err = f.svc.SimulateSuccess(ctx, paidIntent.ID)
	require.NoError(t, err)

	intents, err := f.svc.ListExpirable(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, staleIntent.ID, intents[0].ID)

	intents, err = f.svc.ListExpirable(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, intents)
}
