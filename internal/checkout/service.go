package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/cart"
	"github.com/angelmondragon/bazaar-backend/internal/checkout/helpers"
	"github.com/angelmondragon/bazaar-backend/internal/listings"
	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/internal/pricing"
	"github.com/angelmondragon/bazaar-backend/pkg/db"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/metrics"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/bazaar-backend/pkg/types"
	"github.com/angelmondragon/bazaar-backend/pkg/validate"
)

const defaultOrderNumberAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type addressSnapshotter interface {
	Snapshot(ctx context.Context, buyerID, id uuid.UUID) (types.Address, error)
}

type intentOpener interface {
	CreateIntentTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor *outbox.ActorRef, journal *orders.Journal) (*models.PaymentIntent, error)
}

// Service converts a buyer's cart into an order.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
}

// PlaceOrderInput selects the addresses and payment method for checkout.
// BillingAddressID defaults to the shipping address.
type PlaceOrderInput struct {
	BuyerID           uuid.UUID           `validate:"required"`
	ShippingAddressID uuid.UUID           `validate:"required"`
	BillingAddressID  *uuid.UUID          `validate:"omitempty"`
	CouponCode        *string             `validate:"omitempty,max=64"`
	PaymentMethod     enums.PaymentMethod `validate:"required,enum"`
}

type Config struct {
	Currency            enums.Currency
	OrderNumberAttempts int
}

type service struct {
	tx        txRunner
	carts     cart.CartRepository
	stock     listings.Repository
	addresses addressSnapshotter
	policy    pricing.Policy
	orders    orders.Repository
	intents   intentOpener
	outbox    outboxPublisher
	logg      *logger.Logger
	metrics   *metrics.LifecycleMetrics
	cfg       Config
	now       func() time.Time
	numbers   numberGenerator
}

func NewService(
	tx txRunner,
	cartRepo cart.CartRepository,
	stock listings.Repository,
	addresses addressSnapshotter,
	policy pricing.Policy,
	ordersRepo orders.Repository,
	intents intentOpener,
	publisher outboxPublisher,
	logg *logger.Logger,
	m *metrics.LifecycleMetrics,
	cfg Config,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	if addresses == nil {
		return nil, fmt.Errorf("address service required")
	}
	if policy == nil {
		return nil, fmt.Errorf("pricing policy required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if intents == nil {
		return nil, fmt.Errorf("payment service required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !cfg.Currency.IsValid() {
		return nil, fmt.Errorf("invalid currency %q", cfg.Currency)
	}
	if cfg.OrderNumberAttempts <= 0 {
		cfg.OrderNumberAttempts = defaultOrderNumberAttempts
	}
	return &service{
		tx:        tx,
		carts:     cartRepo,
		stock:     stock,
		addresses: addresses,
		policy:    policy,
		orders:    ordersRepo,
		intents:   intents,
		outbox:    publisher,
		logg:      logg,
		metrics:   m,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		numbers:   randomOrderNumber,
	}, nil
}

// PlaceOrder splits the cart into seller orders, takes the stock, clears the
// cart and opens the payment intent in one transaction. Nothing persists when
// any step fails.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	input.CouponCode = normalizeCoupon(input.CouponCode)
	ctx = s.logg.WithBuyerID(ctx, input.BuyerID.String())

	shipping, err := s.addresses.Snapshot(ctx, input.BuyerID, input.ShippingAddressID)
	if err != nil {
		return nil, err
	}
	billing := shipping
	if input.BillingAddressID != nil && *input.BillingAddressID != input.ShippingAddressID {
		if billing, err = s.addresses.Snapshot(ctx, input.BuyerID, *input.BillingAddressID); err != nil {
			return nil, err
		}
	}

	var (
		order   *models.Order
		journal orders.Journal
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.carts.WithTx(tx)
		basket, err := cartRepo.FindByBuyer(ctx, input.BuyerID)
		if err != nil {
			if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
				return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart has no items")
			}
			return err
		}
		if err := cartRepo.ClaimRevision(ctx, basket.ID, basket.Revision); err != nil {
			return err
		}

		stock := s.stock.WithTx(tx)
		current, err := stock.FindByIDs(ctx, listingIDs(basket.Items))
		if err != nil {
			return err
		}
		plan, err := helpers.Split(helpers.Snapshot{Items: basket.Items, Listings: current, Currency: s.cfg.Currency})
		if err != nil {
			return err
		}
		quote, err := s.policy.Quote(ctx, pricing.QuoteInput{
			Currency:        s.cfg.Currency,
			Sellers:         sellerSubtotals(plan),
			CouponCode:      input.CouponCode,
			ShippingAddress: shipping,
		})
		if err != nil {
			return err
		}

		// the guarded decrement is what actually serialises concurrent
		// checkouts; the availability check in Split only fails fast
		for _, group := range plan.Sellers {
			for _, item := range group.Items {
				if err := stock.DecrementStock(ctx, item.ListingID, item.Quantity); err != nil {
					return err
				}
			}
		}

		order = buildOrder(input, plan, quote, s.cfg.Currency, shipping, billing)
		if err := s.insertOrder(ctx, tx, order); err != nil {
			return err
		}
		if err := cartRepo.ClearItems(ctx, basket.ID); err != nil {
			return err
		}

		actor := outbox.BuyerActor(input.BuyerID)
		journal.Record(string(enums.AggregateOrder), order.ID, "", order.Status.String())
		for _, so := range order.SellerOrders {
			journal.Record(string(enums.AggregateSellerOrder), so.ID, "", so.Status.String())
		}
		if _, err := s.intents.CreateIntentTx(ctx, tx, order, actor, &journal); err != nil {
			return err
		}
		return s.emitOrderCreated(ctx, tx, order, actor)
	})
	if err != nil {
		s.rejected(err)
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	journal.Flush(ctx, s.logg, s.metrics)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_number":  order.OrderNumber,
		"seller_orders": len(order.SellerOrders),
		"total_amount":  order.TotalAmount.StringFixed(2),
	}), "order placed")
	return order, nil
}

// insertOrder assigns a fresh order number and inserts under a savepoint so a
// lost race on ux_orders_order_number can be retried in the same transaction.
func (s *service) insertOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	repo := s.orders.WithTx(tx)
	for attempt := 1; attempt <= s.cfg.OrderNumberAttempts; attempt++ {
		number, err := s.numbers(s.now())
		if err != nil {
			return err
		}
		exists, err := repo.OrderNumberExists(ctx, number)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		assignNumbers(order, number)

		err = tx.Transaction(func(sp *gorm.DB) error {
			return s.orders.WithTx(sp).CreateOrder(ctx, order)
		})
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, "") {
			return err
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "order number collision")
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique order number")
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, order *models.Order, actor *outbox.ActorRef) error {
	data := payloads.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		BuyerID:     order.BuyerID,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
	}
	for _, so := range order.SellerOrders {
		data.SellerOrderIDs = append(data.SellerOrderIDs, so.ID)
		data.SellerIDs = append(data.SellerIDs, so.SellerID)
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data:          data,
	})
}

func (s *service) rejected(err error) {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeInternal {
		s.metrics.Rejected(string(enums.AggregateOrder), string(typed.Code()))
	}
}

func buildOrder(input PlaceOrderInput, plan helpers.Plan, quote pricing.Quote, currency enums.Currency, shipping, billing types.Address) *models.Order {
	orderID := uuid.New()
	order := &models.Order{
		ID:              orderID,
		BuyerID:         input.BuyerID,
		Status:          enums.OrderStatusPending,
		Currency:        currency,
		SubTotal:        plan.SubTotal,
		ShippingCost:    quote.ShippingCost,
		TaxAmount:       quote.TaxAmount,
		DiscountAmount:  quote.DiscountAmount,
		CouponCode:      input.CouponCode,
		PaymentMethod:   input.PaymentMethod,
		ShippingAddress: shipping,
		BillingAddress:  billing,
	}
	order.TotalAmount = plan.SubTotal.Add(quote.ShippingCost).Add(quote.TaxAmount).Sub(quote.DiscountAmount)

	for i, group := range plan.Sellers {
		shippingCost := quote.ShippingBySeller[group.SellerID]
		so := models.SellerOrder{
			ID:           uuid.New(),
			OrderID:      orderID,
			SellerID:     group.SellerID,
			Position:     i,
			Status:       enums.SellerOrderStatusPlaced,
			SubTotal:     group.SubTotal,
			ShippingCost: shippingCost,
			Total:        group.SubTotal.Add(shippingCost),
		}
		for _, item := range group.Items {
			so.Items = append(so.Items, models.SellerOrderItem{
				SellerOrderID: so.ID,
				OrderID:       orderID,
				ListingID:     item.ListingID,
				ProductID:     item.ProductID,
				ProductName:   item.ProductName,
				UnitPrice:     item.UnitPrice,
				Quantity:      item.Quantity,
				LineTotal:     item.LineTotal,
				Position:      item.Position,
			})
		}
		order.SellerOrders = append(order.SellerOrders, so)
	}
	return order
}

func assignNumbers(order *models.Order, number string) {
	order.OrderNumber = number
	for i := range order.SellerOrders {
		order.SellerOrders[i].SellerOrderNumber = sellerOrderNumber(number, i+1)
	}
}

func sellerSubtotals(plan helpers.Plan) []pricing.SellerSubtotal {
	out := make([]pricing.SellerSubtotal, 0, len(plan.Sellers))
	for _, group := range plan.Sellers {
		out = append(out, pricing.SellerSubtotal{SellerID: group.SellerID, SubTotal: group.SubTotal})
	}
	return out
}

func listingIDs(items []models.CartItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ListingID)
	}
	return ids
}

func normalizeCoupon(code *string) *string {
	if code == nil {
		return nil
	}
	trimmed := strings.ToUpper(strings.TrimSpace(*code))
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
