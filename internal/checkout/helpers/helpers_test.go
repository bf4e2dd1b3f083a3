package helpers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
)

func listing(seller uuid.UUID, price string, stock int) models.Listing {
	return models.Listing{
		ID:            uuid.New(),
		SellerID:      seller,
		ProductID:     uuid.New(),
		ProductName:   "item",
		Price:         decimal.RequireFromString(price),
		Currency:      "TRY",
		StockQuantity: stock,
		StockStatus:   enums.DeriveStockStatus(stock, 0),
		IsActive:      true,
	}
}

func snapshotOf(items []models.CartItem, listings ...models.Listing) Snapshot {
	byID := make(map[uuid.UUID]models.Listing, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
	}
	return Snapshot{Items: items, Listings: byID, Currency: "TRY"}
}

func TestSplitGroupsBySellerInCartOrder(t *testing.T) {
	t.Parallel()
	sellerA := uuid.New()
	sellerB := uuid.New()
	a1 := listing(sellerA, "50.00", 5)
	b1 := listing(sellerB, "30.00", 5)
	a2 := listing(sellerA, "12.50", 5)

	items := []models.CartItem{
		{ListingID: b1.ID, Quantity: 2, UnitPrice: decimal.RequireFromString("1.00")},
		{ListingID: a1.ID, Quantity: 1},
		{ListingID: a2.ID, Quantity: 2},
	}

	plan, err := Split(snapshotOf(items, a1, b1, a2))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(plan.Sellers) != 2 {
		t.Fatalf("expected 2 seller groups, got %d", len(plan.Sellers))
	}
	if plan.Sellers[0].SellerID != sellerB || plan.Sellers[1].SellerID != sellerA {
		t.Fatalf("seller groups not in first-appearance order")
	}
	if !plan.Sellers[0].SubTotal.Equal(decimal.RequireFromString("60.00")) {
		t.Fatalf("expected cached price ignored, got %s", plan.Sellers[0].SubTotal)
	}
	if !plan.Sellers[1].SubTotal.Equal(decimal.RequireFromString("75.00")) {
		t.Fatalf("unexpected seller A subtotal %s", plan.Sellers[1].SubTotal)
	}
	if got := plan.Sellers[1].Items[1].Position; got != 2 {
		t.Fatalf("expected cart position 2, got %d", got)
	}
	if !plan.SubTotal.Equal(decimal.RequireFromString("135.00")) {
		t.Fatalf("unexpected plan subtotal %s", plan.SubTotal)
	}
	if q := plan.Quantities(); q[a2.ID] != 2 || q[b1.ID] != 2 || q[a1.ID] != 1 {
		t.Fatalf("unexpected quantities %+v", q)
	}
}

func TestSplitRejectsEmptyCart(t *testing.T) {
	t.Parallel()
	_, err := Split(Snapshot{})
	if !pkgerrors.Is(err, pkgerrors.CodeEmptyCart) {
		t.Fatalf("expected empty cart, got %v", err)
	}
}

func TestSplitRejectsUnavailableListings(t *testing.T) {
	t.Parallel()
	seller := uuid.New()

	low := listing(seller, "10.00", 1)
	inactive := listing(seller, "10.00", 9)
	inactive.IsActive = false
	empty := listing(seller, "10.00", 0)
	missing := uuid.New()

	cases := map[string]struct {
		item      models.CartItem
		available int
	}{
		"insufficient": {item: models.CartItem{ListingID: low.ID, Quantity: 3}, available: 1},
		"inactive":     {item: models.CartItem{ListingID: inactive.ID, Quantity: 1}, available: 0},
		"out of stock": {item: models.CartItem{ListingID: empty.ID, Quantity: 1}, available: 0},
		"missing":      {item: models.CartItem{ListingID: missing, Quantity: 1}, available: 0},
	}
	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Split(snapshotOf([]models.CartItem{tc.item}, low, inactive, empty))
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeStockUnavailable {
				t.Fatalf("expected stock unavailable, got %v", err)
			}
			details := typed.Details().(map[string]any)
			if details["listing_id"] != tc.item.ListingID.String() {
				t.Fatalf("error does not name the listing: %+v", details)
			}
			if details["available"] != tc.available {
				t.Fatalf("expected available %d, got %v", tc.available, details["available"])
			}
		})
	}
}

func TestSplitRejectsForeignCurrency(t *testing.T) {
	t.Parallel()
	l := listing(uuid.New(), "10.00", 3)
	l.Currency = "EUR"
	_, err := Split(snapshotOf([]models.CartItem{{ListingID: l.ID, Quantity: 1}}, l))
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
