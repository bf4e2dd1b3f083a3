// Package bootstrap wires repositories and services from configuration.
package bootstrap

import (
	"fmt"

	"github.com/angelmondragon/bazaar-backend/internal/addresses"
	"github.com/angelmondragon/bazaar-backend/internal/cart"
	"github.com/angelmondragon/bazaar-backend/internal/checkout"
	"github.com/angelmondragon/bazaar-backend/internal/ledger"
	"github.com/angelmondragon/bazaar-backend/internal/listings"
	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/internal/payments"
	"github.com/angelmondragon/bazaar-backend/internal/pricing"
	"github.com/angelmondragon/bazaar-backend/internal/refunds"
	"github.com/angelmondragon/bazaar-backend/internal/shipments"
	"github.com/angelmondragon/bazaar-backend/pkg/config"
	"github.com/angelmondragon/bazaar-backend/pkg/db"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/metrics"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
)

// App holds every service of the order lifecycle engine plus the
// repositories the workers read directly.
type App struct {
	Listings  listings.Service
	Addresses addresses.Service
	Cart      cart.Service
	Checkout  checkout.Service
	Orders    orders.Service
	Payments  payments.Service
	Shipments shipments.Service
	Refunds   refunds.Service
	Ledger    ledger.Service

	Lifecycle  *orders.Lifecycle
	OrderRepo  orders.Repository
	OutboxRepo *outbox.Repository
	Outbox     *outbox.Service
}

// New builds the application graph. m may be nil.
func New(cfg *config.Config, client *db.Client, logg *logger.Logger, m *metrics.LifecycleMetrics) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	currency, err := enums.ParseCurrency(cfg.Pricing.Currency)
	if err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	conn := client.DB()
	app := &App{
		OrderRepo:  orders.NewRepository(conn),
		OutboxRepo: outbox.NewRepository(conn),
	}
	app.Outbox = outbox.NewService(app.OutboxRepo, logg)

	stock := listings.NewRepository(conn)
	if app.Listings, err = listings.NewService(stock, currency); err != nil {
		return nil, fmt.Errorf("listings: %w", err)
	}
	if app.Addresses, err = addresses.NewService(addresses.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("addresses: %w", err)
	}
	cartRepo := cart.NewRepository(conn)
	if app.Cart, err = cart.NewService(cartRepo, client, stock, logg); err != nil {
		return nil, fmt.Errorf("cart: %w", err)
	}
	if app.Ledger, err = ledger.NewService(ledger.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	tracker, err := shipments.NewTracker(shipments.NewRepository(conn), app.Ledger, app.Outbox)
	if err != nil {
		return nil, fmt.Errorf("shipment tracker: %w", err)
	}
	if app.Lifecycle, err = orders.NewLifecycle(app.OrderRepo, stock, app.Outbox, tracker); err != nil {
		return nil, fmt.Errorf("order lifecycle: %w", err)
	}

	intents := payments.NewRepository(conn)
	if app.Payments, err = payments.NewService(intents, app.Ledger, client, app.Lifecycle, app.Outbox, logg, m, cfg.Payments.Provider); err != nil {
		return nil, fmt.Errorf("payments: %w", err)
	}
	if app.Shipments, err = shipments.NewService(tracker, client, app.Lifecycle, logg, m); err != nil {
		return nil, fmt.Errorf("shipments: %w", err)
	}
	if app.Orders, err = orders.NewService(app.OrderRepo, client, app.Lifecycle, app.Payments, logg, m); err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}
	if app.Refunds, err = refunds.NewService(refunds.NewRepository(conn), intents, client, app.Lifecycle, app.Outbox, logg, m); err != nil {
		return nil, fmt.Errorf("refunds: %w", err)
	}

	policy, err := pricing.NewFlatPolicy(cfg.Pricing)
	if err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	app.Checkout, err = checkout.NewService(
		client,
		cartRepo,
		stock,
		app.Addresses,
		policy,
		app.OrderRepo,
		app.Payments,
		app.Outbox,
		logg,
		m,
		checkout.Config{
			Currency:            currency,
			OrderNumberAttempts: cfg.Checkout.OrderNumberAttempts,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	return app, nil
}
