package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/listings"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox/payloads"
)

const (
	entityOrder       = "order"
	entitySellerOrder = "seller_order"
)

// TransitionOptions qualify a single transition.
type TransitionOptions struct {
	Actor *outbox.ActorRef
	// ExpectedVersion, when set, must match the loaded version.
	ExpectedVersion *int
	Reason          *enums.CancellationReason
	// RequiresRefund flags a cancellation of an already paid order.
	RequiresRefund bool
}

// Lifecycle applies order and seller order transitions inside a caller's
// transaction. It is shared by every service that moves an order.
type Lifecycle struct {
	repo      Repository
	listings  listings.Repository
	outbox    outboxPublisher
	shipments ShipmentCanceller
	now       func() time.Time
}

// NewLifecycle wires the transition engine.
func NewLifecycle(repo Repository, stock listings.Repository, outbox outboxPublisher, shipments ShipmentCanceller) (*Lifecycle, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if shipments == nil {
		return nil, fmt.Errorf("shipment canceller required")
	}
	return &Lifecycle{
		repo:      repo,
		listings:  stock,
		outbox:    outbox,
		shipments: shipments,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Repository exposes the repository the lifecycle writes through.
func (l *Lifecycle) Repository() Repository {
	return l.repo
}

// TransitionSellerOrder moves so to the target status. Forward moves need a
// captured payment; cancellation restocks the items and cancels an open
// shipment. so is updated in place.
func (l *Lifecycle) TransitionSellerOrder(ctx context.Context, tx *gorm.DB, so *models.SellerOrder, to enums.SellerOrderStatus, opts TransitionOptions, j *Journal) error {
	from := so.Status
	if opts.ExpectedVersion != nil && *opts.ExpectedVersion != so.Version {
		return pkgerrors.ConcurrentModification(entitySellerOrder, so.ID, *opts.ExpectedVersion)
	}
	if !CanTransitionSellerOrder(from, to) {
		return pkgerrors.Transition(pkgerrors.CodeStateConflict, entitySellerOrder, so.ID, from, sellerOrderAction(to))
	}

	repo := l.repo.WithTx(tx)
	if to != enums.SellerOrderStatusCancelled {
		status, ok, err := repo.ActiveIntentStatus(ctx, so.OrderID)
		if err != nil {
			return err
		}
		if !ok || status != enums.PaymentIntentStatusCaptured {
			return pkgerrors.Transition(pkgerrors.CodePaymentNotCaptured, entitySellerOrder, so.ID, from, sellerOrderAction(to))
		}
	}

	now := l.now()
	updates := map[string]any{"status": to}
	switch to {
	case enums.SellerOrderStatusConfirmed:
		updates["confirmed_at"] = now
		so.ConfirmedAt = &now
	case enums.SellerOrderStatusPacked:
		updates["packed_at"] = now
		so.PackedAt = &now
	case enums.SellerOrderStatusShipped:
		updates["shipped_at"] = now
		so.ShippedAt = &now
	case enums.SellerOrderStatusDelivered:
		updates["delivered_at"] = now
		so.DeliveredAt = &now
	case enums.SellerOrderStatusCancelled:
		reason := enums.CancellationSystem
		if opts.Reason != nil {
			reason = *opts.Reason
		}
		updates["cancelled_at"] = now
		updates["cancellation_reason"] = reason
		so.CancelledAt = &now
		so.CancellationReason = &reason
	}
	if err := repo.UpdateSellerOrder(ctx, so.ID, so.Version, updates); err != nil {
		return err
	}
	so.Status = to
	so.Version++

	if to == enums.SellerOrderStatusCancelled {
		if err := l.releaseStock(ctx, tx, so); err != nil {
			return err
		}
		if err := l.shipments.CancelForSellerOrder(ctx, tx, so.ID, opts.Actor, j); err != nil {
			return err
		}
	}

	order, err := repo.FindOrder(ctx, so.OrderID)
	if err != nil {
		return err
	}
	reason := ""
	if so.CancellationReason != nil {
		reason = so.CancellationReason.String()
	}
	if err := l.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSellerOrderStatusChanged,
		AggregateType: enums.AggregateSellerOrder,
		AggregateID:   so.ID,
		Actor:         opts.Actor,
		Data: payloads.SellerOrderStatusChangedEvent{
			SellerOrderID:     so.ID,
			SellerOrderNumber: so.SellerOrderNumber,
			OrderID:           so.OrderID,
			BuyerID:           order.BuyerID,
			SellerID:          so.SellerID,
			From:              from,
			To:                to,
			Reason:            reason,
		},
	}); err != nil {
		return err
	}
	j.Record(entitySellerOrder, so.ID, from.String(), to.String())
	return nil
}

func (l *Lifecycle) releaseStock(ctx context.Context, tx *gorm.DB, so *models.SellerOrder) error {
	stock := l.listings.WithTx(tx)
	for _, item := range so.Items {
		if err := stock.Restock(ctx, item.ListingID, item.Quantity); err != nil {
			return fmt.Errorf("restock listing %s: %w", item.ListingID, err)
		}
	}
	return nil
}

// CancelOpenSellerOrders cancels every seller order of the order that has
// not shipped yet and returns how many were cancelled.
func (l *Lifecycle) CancelOpenSellerOrders(ctx context.Context, tx *gorm.DB, order *models.Order, reason enums.CancellationReason, actor *outbox.ActorRef, j *Journal) (int, error) {
	cancelled := 0
	for i := range order.SellerOrders {
		so := &order.SellerOrders[i]
		if so.Status == enums.SellerOrderStatusCancelled || so.Status.HasShipped() {
			continue
		}
		if err := l.TransitionSellerOrder(ctx, tx, so, enums.SellerOrderStatusCancelled, TransitionOptions{Actor: actor, Reason: &reason}, j); err != nil {
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}

// SetOrderStatus applies an explicit order transition (cancel, fail, refund,
// complete). Terminal orders never move.
func (l *Lifecycle) SetOrderStatus(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, opts TransitionOptions, j *Journal) error {
	from := order.Status
	if opts.ExpectedVersion != nil && *opts.ExpectedVersion != order.Version {
		return pkgerrors.ConcurrentModification(entityOrder, order.ID, *opts.ExpectedVersion)
	}
	if from.IsTerminal() {
		return pkgerrors.Transition(pkgerrors.CodeStateConflict, entityOrder, order.ID, from, "set "+to.String())
	}
	if from == to {
		return nil
	}
	return l.applyOrderStatus(ctx, tx, order, to, opts, j)
}

// RecordRefund moves the order once a refund completed. A paid order that was
// cancelled settles into Refunded when fully refunded; other terminal orders
// keep their status.
func (l *Lifecycle) RecordRefund(ctx context.Context, tx *gorm.DB, order *models.Order, full bool, actor *outbox.ActorRef, j *Journal) error {
	to := enums.OrderStatusPartialRefund
	if full {
		to = enums.OrderStatusRefunded
	}
	switch {
	case order.Status == enums.OrderStatusCancelled && full:
		return l.applyOrderStatus(ctx, tx, order, to, TransitionOptions{Actor: actor}, j)
	case order.Status.IsTerminal(), order.Status == to:
		return nil
	}
	return l.SetOrderStatus(ctx, tx, order, to, TransitionOptions{Actor: actor}, j)
}

func (l *Lifecycle) applyOrderStatus(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, opts TransitionOptions, j *Journal) error {
	from := order.Status
	now := l.now()
	updates := map[string]any{"status": to}
	switch to {
	case enums.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			updates["delivered_at"] = now
			order.DeliveredAt = &now
		}
	case enums.OrderStatusCompleted:
		updates["completed_at"] = now
		order.CompletedAt = &now
	case enums.OrderStatusCancelled, enums.OrderStatusFailed:
		updates["cancelled_at"] = now
		order.CancelledAt = &now
		if opts.Reason != nil {
			updates["cancellation_reason"] = *opts.Reason
			order.CancellationReason = opts.Reason
		}
	case enums.OrderStatusRefunded:
		updates["refunded_at"] = now
		order.RefundedAt = &now
	}
	if err := l.repo.WithTx(tx).UpdateOrder(ctx, order.ID, order.Version, updates); err != nil {
		return err
	}
	order.Status = to
	order.Version++

	reason := ""
	if opts.Reason != nil {
		reason = opts.Reason.String()
	}
	if err := l.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         opts.Actor,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			BuyerID:        order.BuyerID,
			From:           from,
			To:             to,
			Reason:         reason,
			RequiresRefund: opts.RequiresRefund,
		},
	}); err != nil {
		return err
	}
	j.Record(entityOrder, order.ID, from.String(), to.String())
	return nil
}

// Reconcile recomputes the order roll-up from its seller orders and payment
// and applies it when it changed. The reloaded order is returned.
func (l *Lifecycle) Reconcile(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef, j *Journal) (*models.Order, error) {
	repo := l.repo.WithTx(tx)
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	status, ok, err := repo.ActiveIntentStatus(ctx, orderID)
	if err != nil {
		return nil, err
	}
	in := RollupInput{PaymentCaptured: ok && status == enums.PaymentIntentStatusCaptured}
	for _, so := range order.SellerOrders {
		in.SellerOrders = append(in.SellerOrders, so.Status)
	}
	derived := DeriveOrderStatus(in)
	next := ResolveOrderStatus(order.Status, derived)

	if next == order.Status {
		// a partially refunded order still records when the goods arrived
		if derived == enums.OrderStatusDelivered && order.DeliveredAt == nil && !order.Status.IsTerminal() {
			now := l.now()
			if err := repo.UpdateOrder(ctx, order.ID, order.Version, map[string]any{"delivered_at": now}); err != nil {
				return nil, err
			}
			order.DeliveredAt = &now
			order.Version++
		}
		return order, nil
	}

	opts := TransitionOptions{Actor: actor}
	if next == enums.OrderStatusCancelled {
		reason := enums.CancellationSystem
		for _, so := range order.SellerOrders {
			if so.CancellationReason != nil {
				reason = *so.CancellationReason
				break
			}
		}
		opts.Reason = &reason
		opts.RequiresRefund = in.PaymentCaptured
	}
	if err := l.SetOrderStatus(ctx, tx, order, next, opts, j); err != nil {
		return nil, err
	}
	return order, nil
}

// MarkPaid stamps paid_at after a capture and rolls the order forward.
func (l *Lifecycle) MarkPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, paidAt time.Time, actor *outbox.ActorRef, j *Journal) (*models.Order, error) {
	repo := l.repo.WithTx(tx)
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaidAt == nil {
		if err := repo.UpdateOrder(ctx, order.ID, order.Version, map[string]any{"paid_at": paidAt}); err != nil {
			return nil, err
		}
	}
	return l.Reconcile(ctx, tx, orderID, actor, j)
}

// FailOrder closes an order whose payment will never be captured: every
// seller order is cancelled with reason, stock is returned and the order
// ends Failed. Orders reached a terminal status already are left alone.
func (l *Lifecycle) FailOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason enums.CancellationReason, actor *outbox.ActorRef, j *Journal) (*models.Order, error) {
	order, err := l.repo.WithTx(tx).FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return order, nil
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.Transition(pkgerrors.CodeStateConflict, entityOrder, order.ID, order.Status, "fail")
	}
	if _, err := l.CancelOpenSellerOrders(ctx, tx, order, reason, actor, j); err != nil {
		return nil, err
	}
	// seller order updates leave the order version untouched
	if err := l.SetOrderStatus(ctx, tx, order, enums.OrderStatusFailed, TransitionOptions{Actor: actor, Reason: &reason}, j); err != nil {
		return nil, err
	}
	return order, nil
}
