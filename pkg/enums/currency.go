package enums

import (
	"fmt"
	"strings"
)

// Currency is the ISO 4217 code every amount of an order is denominated in.
// One deployment sells in a single currency.
type Currency string

const (
	CurrencyTRY Currency = "TRY"
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
)

var validCurrencies = []Currency{
	CurrencyTRY,
	CurrencyEUR,
	CurrencyUSD,
	CurrencyGBP,
}

func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is accepted for pricing.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency accepts codes in any case and surrounding whitespace.
func ParseCurrency(value string) (Currency, error) {
	code := Currency(strings.ToUpper(strings.TrimSpace(value)))
	if code.IsValid() {
		return code, nil
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
