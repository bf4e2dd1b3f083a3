package shipments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/ledger"
	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox/payloads"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Scan is one carrier observation.
type Scan struct {
	Status      enums.ShipmentStatus
	Location    string
	Description string
	Payload     map[string]any
	OccurredAt  time.Time
}

// Tracker applies shipment transitions inside a caller's transaction. The
// order lifecycle uses it to cancel parcels of cancelled seller orders.
type Tracker struct {
	repo   Repository
	ledger ledger.Service
	outbox outboxPublisher
	now    func() time.Time
}

var _ orders.ShipmentCanceller = (*Tracker)(nil)

func NewTracker(repo Repository, ledgerSvc ledger.Service, publisher outboxPublisher) (*Tracker, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipment repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &Tracker{
		repo:   repo,
		ledger: ledgerSvc,
		outbox: publisher,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Open creates the shipment with its first ledger entry.
func (t *Tracker) Open(ctx context.Context, tx *gorm.DB, shipment *models.Shipment, actor *outbox.ActorRef, j *orders.Journal) error {
	shipment.Status = enums.ShipmentStatusCreated
	if err := t.repo.WithTx(tx).Create(ctx, shipment); err != nil {
		return err
	}
	if _, err := t.ledger.WithTx(tx).RecordShipmentEvent(ctx, ledger.RecordShipmentEventInput{
		ShipmentID:  shipment.ID,
		Status:      shipment.Status,
		Description: "shipment created",
		OccurredAt:  t.now(),
	}); err != nil {
		return err
	}
	if err := t.emit(ctx, tx, shipment, nil, actor); err != nil {
		return err
	}
	j.Record(entityShipment, shipment.ID, "", shipment.Status.String())
	return nil
}

// Apply records scan against shipment. A scan repeating the in-transit
// status is appended to the trail without changing the shipment.
func (t *Tracker) Apply(ctx context.Context, tx *gorm.DB, shipment *models.Shipment, scan Scan, actor *outbox.ActorRef, j *orders.Journal) error {
	from := shipment.Status
	to := scan.Status
	if scan.OccurredAt.IsZero() {
		scan.OccurredAt = t.now()
	}
	progress := from != to
	if progress && !CanTransition(from, to) {
		return pkgerrors.Transition(pkgerrors.CodeStateConflict, entityShipment, shipment.ID, from, "record "+to.String())
	}
	if !progress && from != enums.ShipmentStatusShipped {
		return pkgerrors.Transition(pkgerrors.CodeStateConflict, entityShipment, shipment.ID, from, "record "+to.String())
	}

	if progress {
		at := scan.OccurredAt.UTC()
		updates := map[string]any{"status": to}
		switch to {
		case enums.ShipmentStatusShipped:
			updates["shipped_at"] = at
			shipment.ShippedAt = &at
		case enums.ShipmentStatusDelivered:
			updates["delivered_at"] = at
			shipment.DeliveredAt = &at
		case enums.ShipmentStatusReturned:
			updates["returned_at"] = at
			shipment.ReturnedAt = &at
		case enums.ShipmentStatusCancelled:
			updates["cancelled_at"] = at
			shipment.CancelledAt = &at
		}
		if err := t.repo.WithTx(tx).Update(ctx, shipment.ID, shipment.Version, updates); err != nil {
			return err
		}
		shipment.Status = to
		shipment.Version++
	}

	if _, err := t.ledger.WithTx(tx).RecordShipmentEvent(ctx, ledger.RecordShipmentEventInput{
		ShipmentID:  shipment.ID,
		Status:      to,
		Location:    scan.Location,
		Description: scan.Description,
		Payload:     scan.Payload,
		OccurredAt:  scan.OccurredAt,
	}); err != nil {
		return err
	}
	if !progress {
		return nil
	}
	if err := t.emit(ctx, tx, shipment, &from, actor); err != nil {
		return err
	}
	j.Record(entityShipment, shipment.ID, from.String(), to.String())
	return nil
}

// CancelForSellerOrder cancels the seller order's parcel while it is still
// with the seller. Missing or already closed parcels are left alone.
func (t *Tracker) CancelForSellerOrder(ctx context.Context, tx *gorm.DB, sellerOrderID uuid.UUID, actor *outbox.ActorRef, j *orders.Journal) error {
	shipment, err := t.repo.WithTx(tx).FindBySellerOrder(ctx, sellerOrderID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return nil
		}
		return err
	}
	if !open(shipment.Status) {
		return nil
	}
	return t.Apply(ctx, tx, shipment, Scan{
		Status:      enums.ShipmentStatusCancelled,
		Description: "seller order cancelled",
	}, actor, j)
}

func (t *Tracker) emit(ctx context.Context, tx *gorm.DB, shipment *models.Shipment, from *enums.ShipmentStatus, actor *outbox.ActorRef) error {
	return t.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventShipmentStatusChanged,
		AggregateType: enums.AggregateShipment,
		AggregateID:   shipment.ID,
		Actor:         actor,
		Data: payloads.ShipmentStatusChangedEvent{
			ShipmentID:     shipment.ID,
			SellerOrderID:  shipment.SellerOrderID,
			OrderID:        shipment.OrderID,
			From:           from,
			To:             shipment.Status,
			Carrier:        shipment.Carrier,
			TrackingNumber: shipment.TrackingNumber,
		},
	})
}
