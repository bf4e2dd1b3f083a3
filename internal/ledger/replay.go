package ledger

import (
	"fmt"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
)

// ReplayPaymentStatus folds the events of one intent into its current status.
// The stream must start at sequence 1 with a creation event and every event
// must continue from the status the previous one produced.
func ReplayPaymentStatus(events []models.PaymentEvent) (enums.PaymentIntentStatus, error) {
	if len(events) == 0 {
		return "", fmt.Errorf("payment ledger is empty")
	}
	var status enums.PaymentIntentStatus
	for i, event := range events {
		if event.Sequence != i+1 {
			return "", fmt.Errorf("payment ledger gap: expected sequence %d got %d", i+1, event.Sequence)
		}
		if i == 0 {
			if event.FromStatus != nil {
				return "", fmt.Errorf("payment ledger must open with a creation event")
			}
		} else if event.FromStatus == nil || *event.FromStatus != status {
			return "", fmt.Errorf("payment ledger broken at sequence %d: does not continue from %s", event.Sequence, status)
		}
		status = event.Status
	}
	return status, nil
}

// ReplayShipmentStatus returns the status recorded by the latest event.
func ReplayShipmentStatus(events []models.ShipmentEvent) (enums.ShipmentStatus, error) {
	if len(events) == 0 {
		return "", fmt.Errorf("shipment ledger is empty")
	}
	for i, event := range events {
		if event.Sequence != i+1 {
			return "", fmt.Errorf("shipment ledger gap: expected sequence %d got %d", i+1, event.Sequence)
		}
	}
	return events[len(events)-1].Status, nil
}
