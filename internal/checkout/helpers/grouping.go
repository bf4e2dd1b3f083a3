package helpers

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
)

// Snapshot is the cart as seen at checkout together with the current state
// of every listing it references.
type Snapshot struct {
	Items    []models.CartItem
	Listings map[uuid.UUID]models.Listing
	Currency enums.Currency
}

// PlannedItem is one future seller order item, priced from the listing.
type PlannedItem struct {
	ListingID   uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	LineTotal   decimal.Decimal
	Position    int
}

// SellerGroup is one future seller order.
type SellerGroup struct {
	SellerID uuid.UUID
	Items    []PlannedItem
	SubTotal decimal.Decimal
}

// Plan is the split of a cart into seller groups, ordered by the first
// appearance of each seller in the cart.
type Plan struct {
	Sellers  []SellerGroup
	SubTotal decimal.Decimal
}

// Quantities returns the units taken from each listing.
func (p Plan) Quantities() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int)
	for _, group := range p.Sellers {
		for _, item := range group.Items {
			out[item.ListingID] += item.Quantity
		}
	}
	return out
}

// Split groups the cart items by seller and prices every line at the current
// listing price. The cached cart price is ignored.
func Split(snapshot Snapshot) (Plan, error) {
	if len(snapshot.Items) == 0 {
		return Plan{}, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart has no items")
	}

	plan := Plan{SubTotal: decimal.Zero}
	index := make(map[uuid.UUID]int)
	for position, item := range snapshot.Items {
		var listing *models.Listing
		if l, ok := snapshot.Listings[item.ListingID]; ok {
			listing = &l
		}
		if err := ValidateAvailability(item.ListingID, listing, item.Quantity); err != nil {
			return Plan{}, err
		}
		if snapshot.Currency != "" {
			if err := ValidateCurrency(listing, snapshot.Currency); err != nil {
				return Plan{}, err
			}
		}

		line := listing.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		i, ok := index[listing.SellerID]
		if !ok {
			i = len(plan.Sellers)
			index[listing.SellerID] = i
			plan.Sellers = append(plan.Sellers, SellerGroup{SellerID: listing.SellerID, SubTotal: decimal.Zero})
		}
		group := &plan.Sellers[i]
		group.Items = append(group.Items, PlannedItem{
			ListingID:   listing.ID,
			ProductID:   listing.ProductID,
			ProductName: listing.ProductName,
			UnitPrice:   listing.Price,
			Quantity:    item.Quantity,
			LineTotal:   line,
			Position:    position,
		})
		group.SubTotal = group.SubTotal.Add(line)
		plan.SubTotal = plan.SubTotal.Add(line)
	}
	return plan, nil
}
