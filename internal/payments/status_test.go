package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/bazaar-backend/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	all := []enums.PaymentIntentStatus{
		enums.PaymentIntentStatusCreated,
		enums.PaymentIntentStatusCaptured,
		enums.PaymentIntentStatusFailed,
		enums.PaymentIntentStatusCancelled,
	}
	allowed := map[[2]enums.PaymentIntentStatus]bool{
		{enums.PaymentIntentStatusCreated, enums.PaymentIntentStatusCaptured}:  true,
		{enums.PaymentIntentStatusCreated, enums.PaymentIntentStatusFailed}:    true,
		{enums.PaymentIntentStatusCreated, enums.PaymentIntentStatusCancelled}: true,
		{enums.PaymentIntentStatusFailed, enums.PaymentIntentStatusCancelled}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]enums.PaymentIntentStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}
