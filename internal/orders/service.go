package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/metrics"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
	"github.com/angelmondragon/bazaar-backend/pkg/pagination"
)

// Service exposes buyer, seller and system operations on orders.
type Service interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error)
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (pagination.Page[models.Order], error)
	ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters SellerOrderFilters) (pagination.Page[models.SellerOrder], error)
	ConfirmSellerOrder(ctx context.Context, input SellerOrderActionInput) (*models.SellerOrder, error)
	PackSellerOrder(ctx context.Context, input SellerOrderActionInput) (*models.SellerOrder, error)
	CancelSellerOrder(ctx context.Context, input CancelSellerOrderInput) (*models.SellerOrder, error)
	CancelOrder(ctx context.Context, input CancelOrderInput) (*models.Order, error)
	ConfirmReceipt(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error)
	Settle(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// SellerOrderActionInput identifies a seller acting on their own seller order.
type SellerOrderActionInput struct {
	SellerOrderID   uuid.UUID
	SellerID        uuid.UUID
	ExpectedVersion *int
}

// CancelSellerOrderInput cancels one seller order. ActorRole is buyer or
// seller; the actor must own the order or the seller order respectively.
type CancelSellerOrderInput struct {
	SellerOrderID   uuid.UUID
	ActorID         uuid.UUID
	ActorRole       string
	Reason          enums.CancellationReason
	ExpectedVersion *int
}

// CancelOrderInput cancels a whole order on behalf of its buyer or the system.
type CancelOrderInput struct {
	OrderID         uuid.UUID
	BuyerID         uuid.UUID
	Reason          enums.CancellationReason
	ExpectedVersion *int
}

type service struct {
	repo      Repository
	tx        txRunner
	lifecycle *Lifecycle
	intents   IntentCanceller
	logg      *logger.Logger
	metrics   *metrics.LifecycleMetrics
	now       func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, lifecycle *Lifecycle, intents IntentCanceller, logg *logger.Logger, m *metrics.LifecycleMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if lifecycle == nil {
		return nil, fmt.Errorf("order lifecycle required")
	}
	if intents == nil {
		return nil, fmt.Errorf("intent canceller required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		lifecycle: lifecycle,
		intents:   intents,
		logg:      logg,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.repo.FindOrderDetail(ctx, orderID)
}

func (s *service) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (pagination.Page[models.Order], error) {
	if buyerID == uuid.Nil {
		return pagination.Page[models.Order]{}, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	return s.repo.ListBuyerOrders(ctx, buyerID, params)
}

func (s *service) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters SellerOrderFilters) (pagination.Page[models.SellerOrder], error) {
	if sellerID == uuid.Nil {
		return pagination.Page[models.SellerOrder]{}, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		return pagination.Page[models.SellerOrder]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid seller order status")
	}
	return s.repo.ListSellerOrders(ctx, sellerID, params, filters)
}

func (s *service) ConfirmSellerOrder(ctx context.Context, input SellerOrderActionInput) (*models.SellerOrder, error) {
	return s.advanceSellerOrder(ctx, input, enums.SellerOrderStatusConfirmed)
}

func (s *service) PackSellerOrder(ctx context.Context, input SellerOrderActionInput) (*models.SellerOrder, error) {
	return s.advanceSellerOrder(ctx, input, enums.SellerOrderStatusPacked)
}

func (s *service) advanceSellerOrder(ctx context.Context, input SellerOrderActionInput, to enums.SellerOrderStatus) (*models.SellerOrder, error) {
	if input.SellerOrderID == uuid.Nil || input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller order id and seller id required")
	}
	actor := outbox.SellerActor(input.SellerID)
	return s.runSellerOrder(ctx, input.SellerOrderID, func(tx *gorm.DB, so *models.SellerOrder, j *Journal) error {
		if so.SellerID != input.SellerID {
			return notFound(entitySellerOrder, so.ID)
		}
		opts := TransitionOptions{Actor: actor, ExpectedVersion: input.ExpectedVersion}
		if err := s.lifecycle.TransitionSellerOrder(ctx, tx, so, to, opts, j); err != nil {
			return err
		}
		_, err := s.lifecycle.Reconcile(ctx, tx, so.OrderID, actor, j)
		return err
	})
}

func (s *service) CancelSellerOrder(ctx context.Context, input CancelSellerOrderInput) (*models.SellerOrder, error) {
	if input.SellerOrderID == uuid.Nil || input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller order id and actor id required")
	}
	if input.Reason == "" {
		input.Reason = enums.CancellationSellerRejected
		if input.ActorRole == outbox.ActorBuyer {
			input.Reason = enums.CancellationBuyerRequested
		}
	}
	if !input.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cancellation reason")
	}

	var actor *outbox.ActorRef
	switch input.ActorRole {
	case outbox.ActorSeller:
		actor = outbox.SellerActor(input.ActorID)
	case outbox.ActorBuyer:
		actor = outbox.BuyerActor(input.ActorID)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor role must be buyer or seller")
	}

	return s.runSellerOrder(ctx, input.SellerOrderID, func(tx *gorm.DB, so *models.SellerOrder, j *Journal) error {
		if input.ActorRole == outbox.ActorSeller && so.SellerID != input.ActorID {
			return notFound(entitySellerOrder, so.ID)
		}
		if input.ActorRole == outbox.ActorBuyer {
			order, err := s.repo.WithTx(tx).FindOrder(ctx, so.OrderID)
			if err != nil {
				return err
			}
			if order.BuyerID != input.ActorID {
				return notFound(entitySellerOrder, so.ID)
			}
		}
		opts := TransitionOptions{Actor: actor, Reason: &input.Reason, ExpectedVersion: input.ExpectedVersion}
		if err := s.lifecycle.TransitionSellerOrder(ctx, tx, so, enums.SellerOrderStatusCancelled, opts, j); err != nil {
			return err
		}
		_, err := s.lifecycle.Reconcile(ctx, tx, so.OrderID, actor, j)
		return err
	})
}

func (s *service) runSellerOrder(ctx context.Context, sellerOrderID uuid.UUID, fn func(tx *gorm.DB, so *models.SellerOrder, j *Journal) error) (*models.SellerOrder, error) {
	var (
		out     *models.SellerOrder
		journal Journal
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		so, err := s.repo.WithTx(tx).FindSellerOrder(ctx, sellerOrderID)
		if err != nil {
			return err
		}
		if err := fn(tx, so, &journal); err != nil {
			return err
		}
		out = so
		return nil
	})
	if err != nil {
		s.rejected(entitySellerOrder, err)
		return nil, err
	}
	journal.Flush(s.logg.WithField(ctx, "seller_order_id", sellerOrderID.String()), s.logg, s.metrics)
	return out, nil
}

// CancelOrder cancels every seller order and the order itself. It is only
// possible while the order is Pending or Processing and nothing has shipped;
// a partially shipped order must be handled per seller or through refunds.
func (s *service) CancelOrder(ctx context.Context, input CancelOrderInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Reason == "" {
		input.Reason = enums.CancellationBuyerRequested
	}
	if !input.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cancellation reason")
	}
	actor := outbox.SystemActor()
	if input.BuyerID != uuid.Nil {
		actor = outbox.BuyerActor(input.BuyerID)
	}

	var (
		out     *models.Order
		journal Journal
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if input.BuyerID != uuid.Nil && order.BuyerID != input.BuyerID {
			return notFound(entityOrder, order.ID)
		}
		if input.ExpectedVersion != nil && *input.ExpectedVersion != order.Version {
			return pkgerrors.ConcurrentModification(entityOrder, order.ID, *input.ExpectedVersion)
		}
		if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusProcessing {
			return pkgerrors.Transition(pkgerrors.CodeStateConflict, entityOrder, order.ID, order.Status, "cancel")
		}
		for _, so := range order.SellerOrders {
			if so.Status.HasShipped() {
				return pkgerrors.Transition(pkgerrors.CodePartialFulfillmentConflict, entityOrder, order.ID, order.Status, "cancel")
			}
		}

		paid := order.Status == enums.OrderStatusProcessing
		if _, err := s.lifecycle.CancelOpenSellerOrders(ctx, tx, order, input.Reason, actor, &journal); err != nil {
			return err
		}
		if !paid {
			if err := s.intents.CancelIntentTx(ctx, tx, order.ID, input.Reason.String(), actor, &journal); err != nil {
				return err
			}
		}
		opts := TransitionOptions{Actor: actor, Reason: &input.Reason, RequiresRefund: paid}
		if err := s.lifecycle.SetOrderStatus(ctx, tx, order, enums.OrderStatusCancelled, opts, &journal); err != nil {
			return err
		}
		out = order
		return nil
	})
	if err != nil {
		s.rejected(entityOrder, err)
		return nil, err
	}
	journal.Flush(s.logg.WithOrderID(ctx, input.OrderID.String()), s.logg, s.metrics)
	return out, nil
}

// ConfirmReceipt is the buyer's explicit confirmation that completes a delivered order.
func (s *service) ConfirmReceipt(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	if buyerID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id and order id required")
	}
	return s.complete(ctx, orderID, buyerID, outbox.BuyerActor(buyerID), nil)
}

// Settle completes an order once its settlement window has elapsed.
func (s *service) Settle(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.complete(ctx, orderID, uuid.Nil, outbox.SystemActor(), nil)
}

func (s *service) complete(ctx context.Context, orderID, buyerID uuid.UUID, actor *outbox.ActorRef, expectedVersion *int) (*models.Order, error) {
	var (
		out     *models.Order
		journal Journal
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).FindOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if buyerID != uuid.Nil && order.BuyerID != buyerID {
			return notFound(entityOrder, order.ID)
		}
		if !deliveredInFull(order) {
			return pkgerrors.Transition(pkgerrors.CodeStateConflict, entityOrder, order.ID, order.Status, "complete")
		}
		opts := TransitionOptions{Actor: actor, ExpectedVersion: expectedVersion}
		if err := s.lifecycle.SetOrderStatus(ctx, tx, order, enums.OrderStatusCompleted, opts, &journal); err != nil {
			return err
		}
		out = order
		return nil
	})
	if err != nil {
		s.rejected(entityOrder, err)
		return nil, err
	}
	journal.Flush(s.logg.WithOrderID(ctx, orderID.String()), s.logg, s.metrics)
	return out, nil
}

// deliveredInFull reports whether the order may complete: it is Delivered,
// or partially refunded with every remaining seller order delivered.
func deliveredInFull(order *models.Order) bool {
	switch order.Status {
	case enums.OrderStatusDelivered:
		return true
	case enums.OrderStatusPartialRefund:
		active := 0
		for _, so := range order.SellerOrders {
			if so.Status == enums.SellerOrderStatusCancelled {
				continue
			}
			if so.Status != enums.SellerOrderStatusDelivered {
				return false
			}
			active++
		}
		return active > 0
	}
	return false
}

func (s *service) rejected(entity string, err error) {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeInternal {
		s.metrics.Rejected(entity, string(typed.Code()))
	}
}
