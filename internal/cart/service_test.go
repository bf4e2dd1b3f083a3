package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/listings"
	"github.com/angelmondragon/bazaar-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
)

type cartFixture struct {
	svc      Service
	repo     *Repository
	conn     *gorm.DB
	listings listings.Repository
	clock    time.Time
}

func newFixture(t *testing.T) *cartFixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	f := &cartFixture{
		repo:     NewRepository(conn),
		conn:     conn,
		listings: listings.NewRepository(conn),
		clock:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	// a frozen clock proves the revision, not the timestamp, carries strict advancement
	f.repo.now = func() time.Time { return f.clock }
	svc, err := NewService(f.repo, client, f.listings, logger.Nop())
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *cartFixture) listing(t *testing.T, price string, stock int) *models.Listing {
	t.Helper()
	l := &models.Listing{
		SellerID:      uuid.New(),
		ProductID:     uuid.New(),
		ProductName:   "Olive oil",
		Price:         decimal.RequireFromString(price),
		Currency:      "TRY",
		StockQuantity: stock,
		IsActive:      true,
	}
	require.NoError(t, f.listings.Create(context.Background(), l))
	return l
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil)
	assert.EqualError(t, err, "cart repository required")
}

func TestGetCartReturnsEmptyCartForNewBuyer(t *testing.T) {
	f := newFixture(t)
	buyer := uuid.New()

	cart, err := f.svc.GetCart(context.Background(), buyer)
	require.NoError(t, err)
	assert.Equal(t, buyer, cart.BuyerID)
	assert.Empty(t, cart.Items)
	assert.Equal(t, uuid.Nil, cart.ID)
}

func TestAddItemMergesQuantityAndTouchesCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	l := f.listing(t, "30.00", 10)

	cart, err := f.svc.AddItem(ctx, buyer, AddItemInput{ListingID: l.ID, Quantity: 1})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(1), cart.Revision)

	cart, err = f.svc.AddItem(ctx, buyer, AddItemInput{ListingID: l.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, cart.Items[0].UnitPrice.Equal(decimal.RequireFromString("30.00")))
	assert.Equal(t, int64(2), cart.Revision)
}

func TestAddItemKeepsInsertionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	first := f.listing(t, "10.00", 5)
	second := f.listing(t, "20.00", 5)

	_, err := f.svc.AddItem(ctx, buyer, AddItemInput{ListingID: first.ID, Quantity: 1})
	require.NoError(t, err)
	f.clock = f.clock.Add(time.Millisecond)
	cart, err := f.svc.AddItem(ctx, buyer, AddItemInput{ListingID: second.ID, Quantity: 1})
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	assert.Equal(t, first.ID, cart.Items[0].ListingID)
	assert.Equal(t, second.ID, cart.Items[1].ListingID)

	// re-adding the first listing must not move it
	f.clock = f.clock.Add(time.Millisecond)
	cart, err = f.svc.AddItem(ctx, buyer, AddItemInput{ListingID: first.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, first.ID, cart.Items[0].ListingID)
}

func TestAddItemRejectsUnavailableListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()

	_, err := f.svc.AddItem(ctx, buyer, AddItemInput{ListingID: uuid.New(), Quantity: 1})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	inactive := f.listing(t, "10.00", 5)
	require.NoError(t, f.listings.SetActive(ctx, inactive.ID, false))
	_, err = f.svc.AddItem(ctx, buyer, AddItemInput{ListingID: inactive.ID, Quantity: 1})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	scarce := f.listing(t, "10.00", 1)
	_, err = f.svc.AddItem(ctx, buyer, AddItemInput{ListingID: scarce.ID, Quantity: 2})
	assert.Equal(t, pkgerrors.CodeStockUnavailable, pkgerrors.CodeOf(err))

	_, err = f.svc.AddItem(ctx, buyer, AddItemInput{ListingID: scarce.ID, Quantity: 0})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestSetQuantityIsLastWriteWinsAndZeroRemoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	l := f.listing(t, "10.00", 50)

	_, err := f.svc.AddItem(ctx, buyer, AddItemInput{ListingID: l.ID, Quantity: 4})
	require.NoError(t, err)

	f.clock = f.clock.Add(time.Second)
	cart, err := f.svc.SetQuantity(ctx, buyer, l.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, cart.Items[0].Quantity)
	assert.Equal(t, int64(2), cart.Revision)
	assert.True(t, cart.UpdatedAt.Equal(f.clock))

	cart, err = f.svc.SetQuantity(ctx, buyer, l.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, int64(3), cart.Revision)

	_, err = f.svc.SetQuantity(ctx, buyer, l.ID, 2)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	_, err = f.svc.SetQuantity(ctx, buyer, l.ID, -1)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestFailedMutationDoesNotTouchCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	l := f.listing(t, "10.00", 5)

	_, err := f.svc.AddItem(ctx, buyer, AddItemInput{ListingID: l.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.RemoveItem(ctx, buyer, uuid.New())
	require.Error(t, err)

	cart, err := f.svc.GetCart(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cart.Revision)
	assert.Len(t, cart.Items, 1)
}

func TestClearEmptiesCartAndAdvancesRevision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	a := f.listing(t, "10.00", 5)
	b := f.listing(t, "12.50", 5)

	_, err := f.svc.AddItem(ctx, buyer, AddItemInput{ListingID: a.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, buyer, AddItemInput{ListingID: b.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, f.svc.Clear(ctx, buyer))

	cart, err := f.svc.GetCart(ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, int64(3), cart.Revision)

	err = f.svc.Clear(ctx, uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()

	first, err := f.repo.GetOrCreate(ctx, buyer)
	require.NoError(t, err)
	second, err := f.repo.GetOrCreate(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, f.conn.Model(&models.Cart{}).Where("buyer_id = ?", buyer).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestClaimRevisionRejectsStaleRevision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	l := f.listing(t, "10.00", 5)

	cart, err := f.svc.AddItem(ctx, buyer, AddItemInput{ListingID: l.ID, Quantity: 1})
	require.NoError(t, err)
	read := cart.Revision

	require.NoError(t, f.repo.ClaimRevision(ctx, cart.ID, read))

	err = f.repo.ClaimRevision(ctx, cart.ID, read)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConcurrentModification, pkgerrors.CodeOf(err))

	cart, err = f.svc.GetCart(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, read+1, cart.Revision)
}
