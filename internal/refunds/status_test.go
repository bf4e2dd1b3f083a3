package refunds

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/bazaar-backend/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	all := []enums.RefundStatus{
		enums.RefundStatusRequested,
		enums.RefundStatusProcessing,
		enums.RefundStatusCompleted,
		enums.RefundStatusRejected,
	}
	allowed := map[[2]enums.RefundStatus]bool{
		{enums.RefundStatusRequested, enums.RefundStatusProcessing}: true,
		{enums.RefundStatusRequested, enums.RefundStatusRejected}:   true,
		{enums.RefundStatusProcessing, enums.RefundStatusCompleted}: true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]enums.RefundStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestRefundAction(t *testing.T) {
	assert.Equal(t, "approve", refundAction(enums.RefundStatusProcessing))
	assert.Equal(t, "reject", refundAction(enums.RefundStatusRejected))
}
