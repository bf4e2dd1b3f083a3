// Package pricing computes the shipping, tax and discount components of an
// order from its per-seller subtotals.
package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bazaar-backend/pkg/config"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// Policy quotes the non-merchandise components of an order.
type Policy interface {
	Quote(ctx context.Context, input QuoteInput) (Quote, error)
}

// SellerSubtotal is one seller's merchandise total.
type SellerSubtotal struct {
	SellerID uuid.UUID
	SubTotal decimal.Decimal
}

type QuoteInput struct {
	Currency        enums.Currency
	Sellers         []SellerSubtotal
	CouponCode      *string
	ShippingAddress types.Address
}

// SubTotal sums the seller subtotals.
func (in QuoteInput) SubTotal() decimal.Decimal {
	total := decimal.Zero
	for _, s := range in.Sellers {
		total = total.Add(s.SubTotal)
	}
	return total
}

// Quote carries amounts rounded to two decimals. ShippingCost equals the sum
// of ShippingBySeller.
type Quote struct {
	ShippingBySeller map[uuid.UUID]decimal.Decimal
	ShippingCost     decimal.Decimal
	TaxAmount        decimal.Decimal
	DiscountAmount   decimal.Decimal
}

// FlatPolicy charges a flat shipping fee per seller, waived when the seller's
// subtotal reaches FreeShippingThreshold, a percentage tax on the discounted
// subtotal and percentage coupons.
type FlatPolicy struct {
	ShippingPerSeller     decimal.Decimal
	FreeShippingThreshold *decimal.Decimal
	TaxPercent            decimal.Decimal
	Coupons               map[string]decimal.Decimal
}

// NewFlatPolicy parses the pricing section of the config. Coupon codes are
// matched case-insensitively.
func NewFlatPolicy(cfg config.PricingConfig) (*FlatPolicy, error) {
	shipping, err := decimal.NewFromString(cfg.ShippingPerSeller)
	if err != nil {
		return nil, fmt.Errorf("shipping per seller: %w", err)
	}
	tax, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("tax rate: %w", err)
	}
	policy := &FlatPolicy{
		ShippingPerSeller: shipping,
		TaxPercent:        tax,
		Coupons:           make(map[string]decimal.Decimal, len(cfg.Coupons)),
	}
	if raw := strings.TrimSpace(cfg.FreeShippingThreshold); raw != "" {
		threshold, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("free shipping threshold: %w", err)
		}
		policy.FreeShippingThreshold = &threshold
	}
	for code, raw := range cfg.Coupons {
		pct, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("coupon %s: %w", code, err)
		}
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return nil, fmt.Errorf("coupon %s: percentage out of range", code)
		}
		policy.Coupons[strings.ToUpper(strings.TrimSpace(code))] = pct
	}
	return policy, nil
}

func (p *FlatPolicy) Quote(_ context.Context, input QuoteInput) (Quote, error) {
	quote := Quote{
		ShippingBySeller: make(map[uuid.UUID]decimal.Decimal, len(input.Sellers)),
		ShippingCost:     decimal.Zero,
	}
	for _, seller := range input.Sellers {
		fee := p.ShippingPerSeller
		if p.FreeShippingThreshold != nil && seller.SubTotal.GreaterThanOrEqual(*p.FreeShippingThreshold) {
			fee = decimal.Zero
		}
		fee = fee.Round(2)
		quote.ShippingBySeller[seller.SellerID] = fee
		quote.ShippingCost = quote.ShippingCost.Add(fee)
	}

	subTotal := input.SubTotal()
	discount := decimal.Zero
	if input.CouponCode != nil && strings.TrimSpace(*input.CouponCode) != "" {
		pct, ok := p.Coupons[strings.ToUpper(strings.TrimSpace(*input.CouponCode))]
		if !ok {
			return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown coupon code").
				WithDetails(map[string]string{"coupon_code": *input.CouponCode})
		}
		discount = subTotal.Mul(pct).Div(hundred).Round(2)
	}
	if discount.GreaterThan(subTotal) {
		discount = subTotal
	}
	quote.DiscountAmount = discount
	quote.TaxAmount = subTotal.Sub(discount).Mul(p.TaxPercent).Div(hundred).Round(2)
	return quote, nil
}
