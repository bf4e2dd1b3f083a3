package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/db"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/validate"
)

// Service exposes the buyer cart operations.
type Service interface {
	GetCart(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, buyerID uuid.UUID, input AddItemInput) (*models.Cart, error)
	SetQuantity(ctx context.Context, buyerID, listingID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, buyerID, listingID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, buyerID uuid.UUID) error
}

// AddItemInput selects a listing for the cart.
type AddItemInput struct {
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
}

type service struct {
	repo     CartRepository
	tx       db.TxRunner
	listings listingReader
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx db.TxRunner, listings listingReader, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if listings == nil {
		return nil, fmt.Errorf("listing reader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, listings: listings, logg: logg}, nil
}

// GetCart returns the buyer's cart, or an unsaved empty cart when none exists yet.
func (s *service) GetCart(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	cart, err := s.repo.FindByBuyer(ctx, buyerID)
	if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		return &models.Cart{BuyerID: buyerID, Items: []models.CartItem{}}, nil
	}
	return cart, err
}

// AddItem increments the listing's quantity in the cart, snapshotting the
// current listing price as the advisory unit price.
func (s *service) AddItem(ctx context.Context, buyerID uuid.UUID, input AddItemInput) (*models.Cart, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	listing, err := s.listings.FindByID(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if !listing.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing is not available").
			WithDetails(map[string]any{"listing_id": listing.ID.String()})
	}
	if listing.StockQuantity < input.Quantity {
		return nil, pkgerrors.StockUnavailable(listing.ID, input.Quantity, listing.StockQuantity)
	}

	var out *models.Cart
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.GetOrCreate(ctx, buyerID)
		if err != nil {
			return err
		}
		if err := repo.UpsertItem(ctx, cart.ID, listing.ID, input.Quantity, listing.Price); err != nil {
			return err
		}
		out, err = repo.FindByBuyer(ctx, buyerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithBuyerID(ctx, buyerID.String())
	ctx = s.logg.WithField(ctx, "listing_id", listing.ID.String())
	s.logg.Debug(ctx, "cart item added")
	return out, nil
}

// SetQuantity overwrites an item's quantity; zero removes the item.
func (s *service) SetQuantity(ctx context.Context, buyerID, listingID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, buyerID, listingID)
	}
	return s.mutate(ctx, buyerID, func(repo CartRepository, cartID uuid.UUID) error {
		return repo.SetItemQuantity(ctx, cartID, listingID, quantity)
	})
}

func (s *service) RemoveItem(ctx context.Context, buyerID, listingID uuid.UUID) (*models.Cart, error) {
	return s.mutate(ctx, buyerID, func(repo CartRepository, cartID uuid.UUID) error {
		return repo.RemoveItem(ctx, cartID, listingID)
	})
}

func (s *service) Clear(ctx context.Context, buyerID uuid.UUID) error {
	_, err := s.mutate(ctx, buyerID, func(repo CartRepository, cartID uuid.UUID) error {
		return repo.ClearItems(ctx, cartID)
	})
	return err
}

func (s *service) mutate(ctx context.Context, buyerID uuid.UUID, fn func(repo CartRepository, cartID uuid.UUID) error) (*models.Cart, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	var out *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindByBuyer(ctx, buyerID)
		if err != nil {
			return err
		}
		if err := fn(repo, cart.ID); err != nil {
			return err
		}
		out, err = repo.FindByBuyer(ctx, buyerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
