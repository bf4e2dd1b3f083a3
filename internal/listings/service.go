package listings

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/validate"
)

// Service exposes the catalog operations needed to seed and maintain listings.
type Service interface {
	Create(ctx context.Context, input CreateListingInput) (*models.Listing, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Restock(ctx context.Context, id uuid.UUID, quantity int) error
}

// CreateListingInput describes a new listing offered by a seller.
type CreateListingInput struct {
	SellerID          uuid.UUID       `json:"seller_id" validate:"required"`
	ProductID         uuid.UUID       `json:"product_id" validate:"required"`
	ProductName       string          `json:"product_name" validate:"required,max=200"`
	Price             decimal.Decimal `json:"price" validate:"dgt0,dmoney"`
	Currency          enums.Currency  `json:"currency" validate:"omitempty,enum"`
	StockQuantity     int             `json:"stock_quantity" validate:"min=0"`
	LowStockThreshold int             `json:"low_stock_threshold" validate:"min=0"`
	Inactive          bool            `json:"inactive"`
}

type service struct {
	repo            Repository
	defaultCurrency enums.Currency
}

// NewService builds a listing service.
func NewService(repo Repository, defaultCurrency enums.Currency) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	if !defaultCurrency.IsValid() {
		return nil, fmt.Errorf("invalid default currency %q", defaultCurrency)
	}
	return &service{repo: repo, defaultCurrency: defaultCurrency}, nil
}

func (s *service) Create(ctx context.Context, input CreateListingInput) (*models.Listing, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	currency := input.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}
	listing := &models.Listing{
		SellerID:          input.SellerID,
		ProductID:         input.ProductID,
		ProductName:       strings.TrimSpace(input.ProductName),
		Price:             input.Price,
		Currency:          currency,
		StockQuantity:     input.StockQuantity,
		LowStockThreshold: input.LowStockThreshold,
		IsActive:          true,
	}
	if err := s.repo.Create(ctx, listing); err != nil {
		return nil, err
	}
	if input.Inactive {
		// is_active has a database default, so false is applied after insert
		if err := s.repo.SetActive(ctx, listing.ID, false); err != nil {
			return nil, err
		}
		listing.IsActive = false
	}
	return listing, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}

func (s *service) Restock(ctx context.Context, id uuid.UUID, quantity int) error {
	if err := validate.Var("quantity", quantity, "gt=0"); err != nil {
		return err
	}
	return s.repo.Restock(ctx, id, quantity)
}
