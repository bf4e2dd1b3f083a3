package shipments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/ledger"
	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/metrics"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
	"github.com/angelmondragon/bazaar-backend/pkg/validate"
)

// Service tracks the parcel of each seller order.
type Service interface {
	CreateShipment(ctx context.Context, input CreateShipmentInput) (*models.Shipment, error)
	RecordEvent(ctx context.Context, input RecordEventInput) (*models.Shipment, error)
	GetShipment(ctx context.Context, id uuid.UUID) (*models.Shipment, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Shipment, error)
	Events(ctx context.Context, shipmentID uuid.UUID) ([]models.ShipmentEvent, error)
	ReplayStatus(ctx context.Context, shipmentID uuid.UUID) (enums.ShipmentStatus, error)
}

type CreateShipmentInput struct {
	SellerOrderID  uuid.UUID `validate:"required"`
	SellerID       uuid.UUID `validate:"required"`
	Carrier        string    `validate:"required,max=64"`
	TrackingNumber string    `validate:"required,max=128"`
}

// RecordEventInput is a carrier scan. A cancelled scan cancels the whole
// seller order, which returns its stock.
type RecordEventInput struct {
	ShipmentID      uuid.UUID            `validate:"required"`
	Status          enums.ShipmentStatus `validate:"required,enum"`
	Location        string               `validate:"max=128"`
	Description     string               `validate:"max=512"`
	Payload         map[string]any
	OccurredAt      time.Time
	ExpectedVersion *int
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	tracker   *Tracker
	tx        txRunner
	lifecycle *orders.Lifecycle
	logg      *logger.Logger
	metrics   *metrics.LifecycleMetrics
}

func NewService(tracker *Tracker, tx txRunner, lifecycle *orders.Lifecycle, logg *logger.Logger, m *metrics.LifecycleMetrics) (Service, error) {
	if tracker == nil {
		return nil, fmt.Errorf("shipment tracker required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if lifecycle == nil {
		return nil, fmt.Errorf("order lifecycle required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tracker: tracker, tx: tx, lifecycle: lifecycle, logg: logg, metrics: m}, nil
}

func (s *service) CreateShipment(ctx context.Context, input CreateShipmentInput) (*models.Shipment, error) {
	input.Carrier = strings.TrimSpace(input.Carrier)
	input.TrackingNumber = strings.TrimSpace(input.TrackingNumber)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	var (
		out     *models.Shipment
		journal orders.Journal
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		so, err := s.lifecycle.Repository().WithTx(tx).FindSellerOrder(ctx, input.SellerOrderID)
		if err != nil {
			return err
		}
		if so.SellerID != input.SellerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "seller order not found")
		}
		if so.Status != enums.SellerOrderStatusPacked {
			return pkgerrors.Transition(pkgerrors.CodeStateConflict, "seller_order", so.ID, so.Status, "create shipment")
		}
		shipment := &models.Shipment{
			SellerOrderID:  so.ID,
			OrderID:        so.OrderID,
			Carrier:        input.Carrier,
			TrackingNumber: input.TrackingNumber,
		}
		if err := s.tracker.Open(ctx, tx, shipment, outbox.SellerActor(so.SellerID), &journal); err != nil {
			return err
		}
		out = shipment
		return nil
	})
	if err != nil {
		s.rejected(err)
		return nil, err
	}
	journal.Flush(s.logg.WithOrderID(ctx, out.OrderID.String()), s.logg, s.metrics)
	return out, nil
}

func (s *service) RecordEvent(ctx context.Context, input RecordEventInput) (*models.Shipment, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	var (
		out     *models.Shipment
		journal orders.Journal
	)
	actor := outbox.SystemActor()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		shipment, err := s.tracker.repo.WithTx(tx).FindByID(ctx, input.ShipmentID)
		if err != nil {
			return err
		}
		if input.ExpectedVersion != nil && *input.ExpectedVersion != shipment.Version {
			return pkgerrors.ConcurrentModification(entityShipment, shipment.ID, *input.ExpectedVersion)
		}
		out = shipment

		repo := s.lifecycle.Repository().WithTx(tx)
		so, err := repo.FindSellerOrder(ctx, shipment.SellerOrderID)
		if err != nil {
			return err
		}

		if input.Status == enums.ShipmentStatusCancelled {
			if !CanTransition(shipment.Status, enums.ShipmentStatusCancelled) {
				return pkgerrors.Transition(pkgerrors.CodeStateConflict, entityShipment, shipment.ID, shipment.Status, "record cancelled")
			}
			reason := enums.CancellationSystem
			opts := orders.TransitionOptions{Actor: actor, Reason: &reason}
			if err := s.lifecycle.TransitionSellerOrder(ctx, tx, so, enums.SellerOrderStatusCancelled, opts, &journal); err != nil {
				return err
			}
			if _, err := s.lifecycle.Reconcile(ctx, tx, so.OrderID, actor, &journal); err != nil {
				return err
			}
			// the tracker cancelled the parcel on the seller order's behalf
			reloaded, err := s.tracker.repo.WithTx(tx).FindByID(ctx, shipment.ID)
			if err != nil {
				return err
			}
			out = reloaded
			return nil
		}

		scan := Scan{
			Status:      input.Status,
			Location:    input.Location,
			Description: input.Description,
			Payload:     input.Payload,
			OccurredAt:  input.OccurredAt,
		}
		from := shipment.Status
		if err := s.tracker.Apply(ctx, tx, shipment, scan, actor, &journal); err != nil {
			return err
		}
		if from == shipment.Status {
			return nil
		}

		var target enums.SellerOrderStatus
		switch shipment.Status {
		case enums.ShipmentStatusShipped:
			target = enums.SellerOrderStatusShipped
		case enums.ShipmentStatusDelivered:
			target = enums.SellerOrderStatusDelivered
		default:
			return nil
		}
		if err := s.lifecycle.TransitionSellerOrder(ctx, tx, so, target, orders.TransitionOptions{Actor: actor}, &journal); err != nil {
			return err
		}
		_, err = s.lifecycle.Reconcile(ctx, tx, so.OrderID, actor, &journal)
		return err
	})
	if err != nil {
		s.rejected(err)
		return nil, err
	}
	journal.Flush(s.logg.WithOrderID(ctx, out.OrderID.String()), s.logg, s.metrics)
	return out, nil
}

func (s *service) GetShipment(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id required")
	}
	return s.tracker.repo.FindByID(ctx, id)
}

func (s *service) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Shipment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.tracker.repo.ListByOrder(ctx, orderID)
}

func (s *service) Events(ctx context.Context, shipmentID uuid.UUID) ([]models.ShipmentEvent, error) {
	if _, err := s.GetShipment(ctx, shipmentID); err != nil {
		return nil, err
	}
	return s.tracker.ledger.ShipmentHistory(ctx, shipmentID)
}

func (s *service) ReplayStatus(ctx context.Context, shipmentID uuid.UUID) (enums.ShipmentStatus, error) {
	events, err := s.Events(ctx, shipmentID)
	if err != nil {
		return "", err
	}
	status, err := ledger.ReplayShipmentStatus(events)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "shipment ledger inconsistent")
	}
	return status, nil
}

func (s *service) rejected(err error) {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeInternal {
		s.metrics.Rejected(entityShipment, string(typed.Code()))
	}
}
