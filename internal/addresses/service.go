package addresses

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/types"
	"github.com/angelmondragon/bazaar-backend/pkg/validate"
)

type Service interface {
	Create(ctx context.Context, buyerID uuid.UUID, input AddressInput) (*models.Address, error)
	Update(ctx context.Context, buyerID, id uuid.UUID, input AddressInput) (*models.Address, error)
	Snapshot(ctx context.Context, buyerID, id uuid.UUID) (types.Address, error)
}

type AddressInput struct {
	FullName   string `json:"full_name" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"omitempty,max=32"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2" validate:"omitempty,max=200"`
	City       string `json:"city" validate:"required,max=100"`
	Region     string `json:"region" validate:"omitempty,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,len=2"`
}

func (in AddressInput) normalized() AddressInput {
	return AddressInput{
		FullName:   strings.TrimSpace(in.FullName),
		Phone:      strings.TrimSpace(in.Phone),
		Line1:      strings.TrimSpace(in.Line1),
		Line2:      strings.TrimSpace(in.Line2),
		City:       strings.TrimSpace(in.City),
		Region:     strings.TrimSpace(in.Region),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(in.Country)),
	}
}

func (in AddressInput) apply(address *models.Address) {
	address.FullName = in.FullName
	address.Phone = in.Phone
	address.Line1 = in.Line1
	address.Line2 = in.Line2
	address.City = in.City
	address.Region = in.Region
	address.PostalCode = in.PostalCode
	address.Country = in.Country
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, buyerID uuid.UUID, input AddressInput) (*models.Address, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	input = input.normalized()
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	address := &models.Address{BuyerID: buyerID}
	input.apply(address)
	if err := s.repo.Create(ctx, address); err != nil {
		return nil, err
	}
	return address, nil
}

// Update edits the address book entry. Orders placed earlier keep their snapshot.
func (s *service) Update(ctx context.Context, buyerID, id uuid.UUID, input AddressInput) (*models.Address, error) {
	input = input.normalized()
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	address, err := s.repo.FindForBuyer(ctx, buyerID, id)
	if err != nil {
		return nil, err
	}
	input.apply(address)
	if err := s.repo.Save(ctx, address); err != nil {
		return nil, err
	}
	return address, nil
}

// Snapshot copies the buyer's address by value for embedding into an order.
func (s *service) Snapshot(ctx context.Context, buyerID, id uuid.UUID) (types.Address, error) {
	address, err := s.repo.FindForBuyer(ctx, buyerID, id)
	if err != nil {
		return types.Address{}, err
	}
	snapshot := address.Snapshot()
	if err := snapshot.Validate(); err != nil {
		return types.Address{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "address is incomplete")
	}
	return snapshot, nil
}
