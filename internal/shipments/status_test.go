package shipments

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/bazaar-backend/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	all := []enums.ShipmentStatus{
		enums.ShipmentStatusCreated,
		enums.ShipmentStatusPacked,
		enums.ShipmentStatusShipped,
		enums.ShipmentStatusDelivered,
		enums.ShipmentStatusReturned,
		enums.ShipmentStatusCancelled,
	}
	allowed := map[[2]enums.ShipmentStatus]bool{
		{enums.ShipmentStatusCreated, enums.ShipmentStatusPacked}:     true,
		{enums.ShipmentStatusCreated, enums.ShipmentStatusCancelled}:  true,
		{enums.ShipmentStatusPacked, enums.ShipmentStatusShipped}:     true,
		{enums.ShipmentStatusPacked, enums.ShipmentStatusCancelled}:   true,
		{enums.ShipmentStatusShipped, enums.ShipmentStatusDelivered}:  true,
		{enums.ShipmentStatusShipped, enums.ShipmentStatusReturned}:   true,
		{enums.ShipmentStatusDelivered, enums.ShipmentStatusReturned}: true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]enums.ShipmentStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestOpenShipments(t *testing.T) {
	assert.True(t, open(enums.ShipmentStatusCreated))
	assert.True(t, open(enums.ShipmentStatusPacked))
	assert.False(t, open(enums.ShipmentStatusShipped))
	assert.False(t, open(enums.ShipmentStatusDelivered))
}
