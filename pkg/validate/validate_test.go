package validate

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
)

type sampleInput struct {
	BuyerID  uuid.UUID           `json:"buyer_id" validate:"required"`
	Quantity int                 `json:"quantity" validate:"gt=0,max=999"`
	Method   enums.PaymentMethod `json:"method" validate:"enum"`
	Amount   *decimal.Decimal    `json:"amount" validate:"omitempty,dgt0"`
	Price    decimal.Decimal     `json:"price" validate:"dmoney"`
}

func TestStructAcceptsValidInput(t *testing.T) {
	amount := decimal.RequireFromString("10.50")
	err := Struct(sampleInput{
		BuyerID:  uuid.New(),
		Quantity: 2,
		Method:   enums.PaymentMethodCard,
		Amount:   &amount,
		Price:    decimal.RequireFromString("30.00"),
	})
	require.NoError(t, err)
}

func TestStructReportsFieldDetails(t *testing.T) {
	amount := decimal.Zero
	err := Struct(sampleInput{
		Quantity: 0,
		Method:   enums.PaymentMethod("cheque"),
		Amount:   &amount,
		Price:    decimal.RequireFromString("1.005"),
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["buyer_id"])
	assert.Equal(t, "must be greater than 0", details["quantity"])
	assert.Equal(t, "is not a known value", details["method"])
	assert.Equal(t, "must be a positive amount", details["amount"])
	assert.Contains(t, details["price"], "two decimals")
}

func TestVar(t *testing.T) {
	require.NoError(t, Var("currency", "TRY", "len=3,uppercase"))
	err := Var("currency", "tr", "len=3,uppercase")
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
