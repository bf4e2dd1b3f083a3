package helpers

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
)

// ValidateAvailability confirms the listing can currently supply quantity
// units. Listings that vanished from the catalog report zero availability.
func ValidateAvailability(listingID uuid.UUID, listing *models.Listing, quantity int) error {
	if listing == nil {
		return pkgerrors.StockUnavailable(listingID, quantity, 0)
	}
	if !listing.IsActive || listing.StockStatus == enums.StockStatusOutOfStock {
		return pkgerrors.StockUnavailable(listing.ID, quantity, 0)
	}
	if listing.StockQuantity < quantity {
		return pkgerrors.StockUnavailable(listing.ID, quantity, listing.StockQuantity)
	}
	return nil
}

// ValidateCurrency rejects a listing priced in a currency other than the order's.
func ValidateCurrency(listing *models.Listing, currency enums.Currency) error {
	if listing.Currency == currency {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("listing %s is priced in %s, not %s", listing.ID, listing.Currency, currency)).
		WithDetails(map[string]any{
			"listing_id": listing.ID.String(),
			"currency":   listing.Currency.String(),
		})
}
