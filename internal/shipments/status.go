package shipments

import "github.com/angelmondragon/bazaar-backend/pkg/enums"

var shipmentTransitions = map[enums.ShipmentStatus][]enums.ShipmentStatus{
	enums.ShipmentStatusCreated:   {enums.ShipmentStatusPacked, enums.ShipmentStatusCancelled},
	enums.ShipmentStatusPacked:    {enums.ShipmentStatusShipped, enums.ShipmentStatusCancelled},
	enums.ShipmentStatusShipped:   {enums.ShipmentStatusDelivered, enums.ShipmentStatusReturned},
	enums.ShipmentStatusDelivered: {enums.ShipmentStatusReturned},
}

// CanTransition reports whether a shipment may move between the statuses.
func CanTransition(from, to enums.ShipmentStatus) bool {
	for _, next := range shipmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// open reports whether the parcel has not left the seller yet.
func open(status enums.ShipmentStatus) bool {
	return status == enums.ShipmentStatusCreated || status == enums.ShipmentStatusPacked
}
