//go:build integration

package bootstrap

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/addresses"
	"github.com/angelmondragon/bazaar-backend/internal/cart"
	"github.com/angelmondragon/bazaar-backend/internal/checkout"
	"github.com/angelmondragon/bazaar-backend/internal/listings"
	"github.com/angelmondragon/bazaar-backend/internal/refunds"
	"github.com/angelmondragon/bazaar-backend/pkg/db"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/migrate"
)

// StockConservationSuite races writers against real Postgres row locks,
// which the single-connection sqlite tests cannot reproduce.
type StockConservationSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	conn      *gorm.DB
	app       *App
}

func TestStockConservationSuite(t *testing.T) {
	suite.Run(t, new(StockConservationSuite))
}

func (s *StockConservationSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("bazaar"),
		postgres.WithUsername("bazaar"),
		postgres.WithPassword("bazaar"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	conn, err := gorm.Open(gormpostgres.Open(dsn), db.GormConfig())
	s.Require().NoError(err)
	s.conn = conn

	sqlDB, err := conn.DB()
	s.Require().NoError(err)
	s.Require().NoError(migrate.Run(ctx, sqlDB, "up"))

	s.app, err = New(testConfig(), db.NewFromGorm(conn), logger.Nop(), nil)
	s.Require().NoError(err)
}

func (s *StockConservationSuite) TearDownSuite() {
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *StockConservationSuite) TestConcurrentCheckoutsNeverOversell() {
	ctx := context.Background()
	const (
		stock  = 5
		buyers = 12
	)

	listing, err := s.app.Listings.Create(ctx, listings.CreateListingInput{
		SellerID:      uuid.New(),
		ProductID:     uuid.New(),
		ProductName:   "Hand-thrown mug",
		Price:         decimal.RequireFromString("12.00"),
		StockQuantity: stock,
	})
	s.Require().NoError(err)

	inputs := make([]checkout.PlaceOrderInput, 0, buyers)
	for i := 0; i < buyers; i++ {
		inputs = append(inputs, s.buyerWithCart(listing.ID, 1))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		placed    int
		rejected  int
		unexpects []error
	)
	start := make(chan struct{})
	for _, input := range inputs {
		wg.Add(1)
		go func(input checkout.PlaceOrderInput) {
			defer wg.Done()
			<-start
			_, err := s.app.Checkout.PlaceOrder(ctx, input)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case pkgerrors.Is(err, pkgerrors.CodeStockUnavailable):
				rejected++
			default:
				unexpects = append(unexpects, err)
			}
		}(input)
	}
	close(start)
	wg.Wait()

	s.Empty(unexpects)
	s.Equal(stock, placed)
	s.Equal(buyers-stock, rejected)

	remaining, err := s.app.Listings.Get(ctx, listing.ID)
	s.Require().NoError(err)
	s.Equal(0, remaining.StockQuantity)
	s.Equal(enums.StockStatusOutOfStock, remaining.StockStatus)

	var sold int64
	s.Require().NoError(s.conn.Table("seller_order_items").
		Where("listing_id = ?", listing.ID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&sold).Error)
	s.Equal(int64(stock), sold)
}

func (s *StockConservationSuite) listing(price string, stock int) uuid.UUID {
	listing, err := s.app.Listings.Create(context.Background(), listings.CreateListingInput{
		SellerID:      uuid.New(),
		ProductID:     uuid.New(),
		ProductName:   "Copper coffee pot",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	})
	s.Require().NoError(err)
	return listing.ID
}

func (s *StockConservationSuite) buyerWithCart(listingID uuid.UUID, qty int) checkout.PlaceOrderInput {
	ctx := context.Background()
	buyerID := uuid.New()
	address, err := s.app.Addresses.Create(ctx, buyerID, addresses.AddressInput{
		FullName:   "Buyer",
		Line1:      "Istiklal Cd. 1",
		City:       "Istanbul",
		PostalCode: "34430",
		Country:    "TR",
	})
	s.Require().NoError(err)
	_, err = s.app.Cart.AddItem(ctx, buyerID, cart.AddItemInput{ListingID: listingID, Quantity: qty})
	s.Require().NoError(err)
	return checkout.PlaceOrderInput{
		BuyerID:           buyerID,
		ShippingAddressID: address.ID,
		PaymentMethod:     enums.PaymentMethodCard,
	}
}

// race runs fn n times at once and returns every outcome.
func race(n int, fn func() error) []error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := fn()
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()
	return errs
}

func (s *StockConservationSuite) TestDuplicateCheckoutOfOneCartPlacesOneOrder() {
	ctx := context.Background()
	listingID := s.listing("30.00", 10)
	input := s.buyerWithCart(listingID, 2)

	placed := 0
	for _, err := range race(4, func() error {
		_, err := s.app.Checkout.PlaceOrder(ctx, input)
		return err
	}) {
		if err == nil {
			placed++
			continue
		}
		// losers either hit the claimed revision or read the cleared cart
		code := pkgerrors.CodeOf(err)
		s.Contains([]pkgerrors.Code{pkgerrors.CodeConcurrentModification, pkgerrors.CodeEmptyCart}, code, err.Error())
	}
	s.Equal(1, placed)

	var count int64
	s.Require().NoError(s.conn.Table("orders").Where("buyer_id = ?", input.BuyerID).Count(&count).Error)
	s.Equal(int64(1), count)

	remaining, err := s.app.Listings.Get(ctx, listingID)
	s.Require().NoError(err)
	s.Equal(8, remaining.StockQuantity)
}

func (s *StockConservationSuite) TestConcurrentRefundsNeverExceedCapture() {
	ctx := context.Background()
	listingID := s.listing("105.00", 4)
	order, err := s.app.Checkout.PlaceOrder(ctx, s.buyerWithCart(listingID, 2))
	s.Require().NoError(err)
	detail, err := s.app.Orders.GetOrder(ctx, order.ID)
	s.Require().NoError(err)
	_, err = s.app.Payments.SimulateSuccess(ctx, detail.PaymentIntent.ID)
	s.Require().NoError(err)

	requested := decimal.RequireFromString("150.00")
	accepted := 0
	for _, err := range race(6, func() error {
		_, err := s.app.Refunds.RequestRefund(ctx, refunds.RequestRefundInput{
			OrderID: order.ID,
			Amount:  &requested,
			Reason:  "damaged in transit",
		})
		return err
	}) {
		if err == nil {
			accepted++
			continue
		}
		code := pkgerrors.CodeOf(err)
		s.Contains([]pkgerrors.Code{pkgerrors.CodeConcurrentModification, pkgerrors.CodeRefundNotEligible}, code, err.Error())
	}
	s.Equal(1, accepted)

	remaining, err := s.app.Refunds.Remaining(ctx, order.ID, nil)
	s.Require().NoError(err)
	s.True(remaining.Equal(decimal.RequireFromString("60.00")), remaining.String())
}
