package refunds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/internal/orders"
	"github.com/angelmondragon/bazaar-backend/internal/payments"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/metrics"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/bazaar-backend/pkg/validate"
)

// Service processes refund requests against captured payments.
type Service interface {
	RequestRefund(ctx context.Context, input RequestRefundInput) (*models.Refund, error)
	Approve(ctx context.Context, input ReviewInput) (*models.Refund, error)
	Reject(ctx context.Context, input ReviewInput) (*models.Refund, error)
	GetRefund(ctx context.Context, id uuid.UUID) (*models.Refund, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Refund, error)
	Remaining(ctx context.Context, orderID uuid.UUID, sellerOrderID *uuid.UUID) (decimal.Decimal, error)
}

// RequestRefundInput targets the whole order, or one seller order when
// SellerOrderID is set. A nil Amount refunds everything still refundable.
type RequestRefundInput struct {
	OrderID       uuid.UUID        `validate:"required"`
	SellerOrderID *uuid.UUID       `validate:"omitempty"`
	Amount        *decimal.Decimal `validate:"omitempty,dgt0,dmoney"`
	Reason        string           `validate:"required,max=512"`
	Actor         *outbox.ActorRef
}

// ReviewInput approves or rejects a requested refund. Note is kept on rejection.
type ReviewInput struct {
	RefundID        uuid.UUID `validate:"required"`
	Note            string    `validate:"max=512"`
	ExpectedVersion *int
	Actor           *outbox.ActorRef
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo      Repository
	intents   payments.Repository
	tx        txRunner
	lifecycle *orders.Lifecycle
	outbox    outboxPublisher
	logg      *logger.Logger
	metrics   *metrics.LifecycleMetrics
	now       func() time.Time
	reference func() string
}

func NewService(
	repo Repository,
	intents payments.Repository,
	tx txRunner,
	lifecycle *orders.Lifecycle,
	publisher outboxPublisher,
	logg *logger.Logger,
	m *metrics.LifecycleMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("refund repository required")
	}
	if intents == nil {
		return nil, fmt.Errorf("payment intent repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if lifecycle == nil {
		return nil, fmt.Errorf("order lifecycle required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		intents:   intents,
		tx:        tx,
		lifecycle: lifecycle,
		outbox:    publisher,
		logg:      logg,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
		reference: func() string { return "sim_rf_" + uuid.NewString() },
	}, nil
}

func (s *service) RequestRefund(ctx context.Context, input RequestRefundInput) (*models.Refund, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	actor := input.Actor
	if actor == nil {
		actor = outbox.SystemActor()
	}

	var (
		out     *models.Refund
		journal orders.Journal
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		t, err := s.loadTarget(ctx, tx, input.OrderID, input.SellerOrderID)
		if err != nil {
			return err
		}
		// serialises requests on the same payment; a concurrent request
		// that read the same balance loses the version race
		if err := s.intents.WithTx(tx).Update(ctx, t.intent.ID, t.intent.Version, map[string]any{}); err != nil {
			return err
		}
		remaining := t.remaining()
		if !remaining.IsPositive() {
			return pkgerrors.Transition(pkgerrors.CodeRefundNotEligible, t.entity(), t.id(), t.status(), "refund")
		}
		amount := remaining
		if input.Amount != nil {
			amount = *input.Amount
		}
		if amount.GreaterThan(remaining) {
			return pkgerrors.ExceedsBalance(pkgerrors.CodeRefundNotEligible, t.entity(), t.id(), t.status(), "refund",
				amount.StringFixed(2), remaining.StringFixed(2))
		}

		refund := &models.Refund{
			OrderID:         t.order.ID,
			SellerOrderID:   input.SellerOrderID,
			PaymentIntentID: t.intent.ID,
			Scope:           enums.RefundScopeOrder,
			Amount:          amount,
			Currency:        t.intent.Currency,
			Reason:          strings.TrimSpace(input.Reason),
			Status:          enums.RefundStatusRequested,
		}
		if t.sellerOrder != nil {
			refund.Scope = enums.RefundScopeSellerOrder
		}
		if err := s.repo.WithTx(tx).Create(ctx, refund); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, refund, nil, actor); err != nil {
			return err
		}
		journal.Record(entityRefund, refund.ID, "", refund.Status.String())
		out = refund
		return nil
	})
	if err != nil {
		s.rejected(err)
		return nil, err
	}
	journal.Flush(s.logg.WithOrderID(ctx, input.OrderID.String()), s.logg, s.metrics)
	return out, nil
}

// Approve sends the refund to the provider and applies the outcome to the
// order: Refunded once the captured amount is fully returned, otherwise
// PartialRefund. Refunded goods that never shipped go back to stock.
func (s *service) Approve(ctx context.Context, input ReviewInput) (*models.Refund, error) {
	return s.review(ctx, input, func(ctx context.Context, tx *gorm.DB, refund *models.Refund, actor *outbox.ActorRef, j *orders.Journal) error {
		now := s.now()
		if err := s.transition(ctx, tx, refund, enums.RefundStatusProcessing, map[string]any{"processing_at": now}, actor, j); err != nil {
			return err
		}
		refund.ProcessingAt = &now

		ref := s.reference()
		if err := s.transition(ctx, tx, refund, enums.RefundStatusCompleted, map[string]any{
			"completed_at":       now,
			"provider_reference": ref,
		}, actor, j); err != nil {
			return err
		}
		refund.CompletedAt = &now
		refund.ProviderReference = &ref
		return s.applyCompletion(ctx, tx, refund, actor, j)
	})
}

// Reject closes a requested refund without moving any money.
func (s *service) Reject(ctx context.Context, input ReviewInput) (*models.Refund, error) {
	return s.review(ctx, input, func(ctx context.Context, tx *gorm.DB, refund *models.Refund, actor *outbox.ActorRef, j *orders.Journal) error {
		now := s.now()
		updates := map[string]any{"rejected_at": now}
		if note := strings.TrimSpace(input.Note); note != "" {
			updates["review_note"] = note
			refund.ReviewNote = &note
		}
		if err := s.transition(ctx, tx, refund, enums.RefundStatusRejected, updates, actor, j); err != nil {
			return err
		}
		refund.RejectedAt = &now
		return nil
	})
}

func (s *service) GetRefund(ctx context.Context, id uuid.UUID) (*models.Refund, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Refund, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.repo.ListForOrder(ctx, orderID)
}

// Remaining reports what can still be refunded for the target.
func (s *service) Remaining(ctx context.Context, orderID uuid.UUID, sellerOrderID *uuid.UUID) (decimal.Decimal, error) {
	var remaining decimal.Decimal
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		t, err := s.loadTarget(ctx, tx, orderID, sellerOrderID)
		if err != nil {
			return err
		}
		remaining = t.remaining()
		return nil
	})
	return remaining, err
}

type reviewFunc func(ctx context.Context, tx *gorm.DB, refund *models.Refund, actor *outbox.ActorRef, j *orders.Journal) error

func (s *service) review(ctx context.Context, input ReviewInput, fn reviewFunc) (*models.Refund, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	actor := input.Actor
	if actor == nil {
		actor = outbox.SystemActor()
	}

	var (
		out     *models.Refund
		journal orders.Journal
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		refund, err := s.repo.WithTx(tx).FindByID(ctx, input.RefundID)
		if err != nil {
			return err
		}
		if input.ExpectedVersion != nil && *input.ExpectedVersion != refund.Version {
			return pkgerrors.ConcurrentModification(entityRefund, refund.ID, *input.ExpectedVersion)
		}
		if refund.Status != enums.RefundStatusRequested {
			return pkgerrors.Transition(pkgerrors.CodeStateConflict, entityRefund, refund.ID, refund.Status, "review")
		}
		if err := fn(ctx, tx, refund, actor, &journal); err != nil {
			return err
		}
		out = refund
		return nil
	})
	if err != nil {
		s.rejected(err)
		return nil, err
	}
	journal.Flush(s.logg.WithOrderID(ctx, out.OrderID.String()), s.logg, s.metrics)
	return out, nil
}

func (s *service) transition(ctx context.Context, tx *gorm.DB, refund *models.Refund, to enums.RefundStatus, updates map[string]any, actor *outbox.ActorRef, j *orders.Journal) error {
	from := refund.Status
	if !CanTransition(from, to) {
		return pkgerrors.Transition(pkgerrors.CodeStateConflict, entityRefund, refund.ID, from, refundAction(to))
	}
	updates["status"] = to
	if err := s.repo.WithTx(tx).Update(ctx, refund.ID, refund.Version, updates); err != nil {
		return err
	}
	refund.Status = to
	refund.Version++
	if err := s.emit(ctx, tx, refund, &from, actor); err != nil {
		return err
	}
	j.Record(entityRefund, refund.ID, from.String(), to.String())
	return nil
}

// applyCompletion cancels the refunded goods that have not shipped and moves
// the order to Refunded or PartialRefund.
func (s *service) applyCompletion(ctx context.Context, tx *gorm.DB, refund *models.Refund, actor *outbox.ActorRef, j *orders.Journal) error {
	t, err := s.loadTarget(ctx, tx, refund.OrderID, refund.SellerOrderID)
	if err != nil {
		return err
	}
	full := !t.completed.LessThan(t.intent.Amount)
	reason := enums.CancellationRefunded

	switch {
	case t.sellerOrder != nil:
		so := t.sellerOrder
		if so.Status != enums.SellerOrderStatusCancelled && !so.Status.HasShipped() {
			if err := s.lifecycle.TransitionSellerOrder(ctx, tx, so, enums.SellerOrderStatusCancelled, orders.TransitionOptions{Actor: actor, Reason: &reason}, j); err != nil {
				return err
			}
		}
	case full:
		if _, err := s.lifecycle.CancelOpenSellerOrders(ctx, tx, t.order, reason, actor, j); err != nil {
			return err
		}
	}
	return s.lifecycle.RecordRefund(ctx, tx, t.order, full, actor, j)
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, refund *models.Refund, from *enums.RefundStatus, actor *outbox.ActorRef) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRefundStatusChanged,
		AggregateType: enums.AggregateRefund,
		AggregateID:   refund.ID,
		Actor:         actor,
		Data: payloads.RefundStatusChangedEvent{
			RefundID:      refund.ID,
			OrderID:       refund.OrderID,
			SellerOrderID: refund.SellerOrderID,
			Scope:         refund.Scope,
			From:          from,
			To:            refund.Status,
			Amount:        refund.Amount,
			Currency:      refund.Currency,
		},
	})
}

func (s *service) rejected(err error) {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeInternal {
		s.metrics.Rejected(entityRefund, string(typed.Code()))
	}
}
