package payments

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
	"github.com/angelmondragon/bazaar-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/bazaar-backend/pkg/validate"
)

// Ledger sources recorded on every payment event.
const (
	sourceAPI       = "api"
	sourceSimulated = "simulated"
	sourceGateway   = "gateway"
	sourceOrder     = "order_cancellation"
	sourceRecreate  = "recreate"
	sourceCheckout  = "checkout"
)

// Service drives the payment intent of an order.
type Service interface {
	CreateIntent(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error)
	CreateIntentTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor *outbox.ActorRef, journal *orders.Journal) (*models.PaymentIntent, error)
	Capture(ctx context.Context, input CaptureInput) (*models.PaymentIntent, error)
	Fail(ctx context.Context, input FailInput) (*models.PaymentIntent, error)
	Cancel(ctx context.Context, input CancelInput) (*models.PaymentIntent, error)
	SimulateSuccess(ctx context.Context, intentID uuid.UUID) (*models.PaymentIntent, error)
	SimulateFailure(ctx context.Context, intentID uuid.UUID, reason string) (*models.PaymentIntent, error)
	HandleGatewayCallback(ctx context.Context, callback GatewayCallback) (*models.PaymentIntent, error)
	Recreate(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error)
	Events(ctx context.Context, intentID uuid.UUID) ([]models.PaymentEvent, error)
	OrderEvents(ctx context.Context, orderID uuid.UUID) ([]models.PaymentEvent, error)
	ReplayStatus(ctx context.Context, intentID uuid.UUID) (enums.PaymentIntentStatus, error)
	ListExpirable(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error)
	CancelIntentTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string, actor *outbox.ActorRef, journal *orders.Journal) error
}

type CaptureInput struct {
	IntentID          uuid.UUID `validate:"required"`
	ExternalReference *string   `validate:"omitempty,max=128"`
	ExpectedVersion   *int
}

type FailInput struct {
	IntentID        uuid.UUID `validate:"required"`
	Reason          string    `validate:"required,max=256"`
	ExpectedVersion *int
}

// CancelInput abandons an intent that was never captured. The order fails
// with Reason, which defaults to payment_failed.
type CancelInput struct {
	IntentID        uuid.UUID `validate:"required"`
	Reason          enums.CancellationReason
	ExpectedVersion *int
}

// GatewayOutcome is the result a payment provider reports.
type GatewayOutcome string

const (
	GatewayOutcomeSucceeded GatewayOutcome = "succeeded"
	GatewayOutcomeFailed    GatewayOutcome = "failed"
)

// GatewayCallback is a provider notification translated by an adapter. The
// intent is located by IntentID or, when unset, by ExternalReference.
type GatewayCallback struct {
	Provider          string `validate:"required"`
	IntentID          uuid.UUID
	ExternalReference string         `validate:"max=128"`
	Outcome           GatewayOutcome `validate:"required,oneof=succeeded failed"`
	FailureReason     string         `validate:"max=256"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo      Repository
	ledger    ledger.Service
	tx        txRunner
	lifecycle *orders.Lifecycle
	outbox    outboxPublisher
	logg      *logger.Logger
	metrics   *metrics.LifecycleMetrics
	provider  string
	now       func() time.Time
}

// NewService wires the payment service. provider names the gateway recorded
// on new intents.
func NewService(
	repo Repository,
	ledgerSvc ledger.Service,
	tx txRunner,
	lifecycle *orders.Lifecycle,
	publisher outboxPublisher,
	logg *logger.Logger,
	m *metrics.LifecycleMetrics,
	provider string,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment intent repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
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
	if strings.TrimSpace(provider) == "" {
		provider = sourceSimulated
	}
	return &service{
		repo:      repo,
		ledger:    ledgerSvc,
		tx:        tx,
		lifecycle: lifecycle,
		outbox:    publisher,
		logg:      logg,
		metrics:   m,
		provider:  provider,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreateIntent(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	var (
		out     *models.PaymentIntent
		journal orders.Journal
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.lifecycle.Repository().WithTx(tx).FindOrder(ctx, orderID)
		if err != nil {
			return err
		}
		out, err = s.CreateIntentTx(ctx, tx, order, outbox.BuyerActor(order.BuyerID), &journal)
		return err
	})
	if err != nil {
		s.rejected(err)
		return nil, err
	}
	journal.Flush(s.logg.WithOrderID(ctx, orderID.String()), s.logg, s.metrics)
	return out, nil
}

// CreateIntentTx returns the order's active intent, creating it for the
// order's current total when there is none.
func (s *service) CreateIntentTx(ctx context.Context, tx *gorm.DB, order *models.Order, actor *outbox.ActorRef, journal *orders.Journal) (*models.PaymentIntent, error) {
	repo := s.repo.WithTx(tx)
	existing, err := repo.FindActiveByOrder(ctx, order.ID)
	if err == nil {
		return existing, nil
	}
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		return nil, err
	}
	return s.openIntent(ctx, tx, order, actor, journal, map[string]any{"source": sourceCheckout})
}

func (s *service) openIntent(ctx context.Context, tx *gorm.DB, order *models.Order, actor *outbox.ActorRef, journal *orders.Journal, payload map[string]any) (*models.PaymentIntent, error) {
	if order.Status.IsTerminal() {
		return nil, pkgerrors.Transition(pkgerrors.CodeStateConflict, "order", order.ID, order.Status, "create payment intent")
	}
	repo := s.repo.WithTx(tx)
	intent := &models.PaymentIntent{
		OrderID:  order.ID,
		Amount:   order.TotalAmount,
		Currency: order.Currency,
		Method:   order.PaymentMethod,
		Status:   enums.PaymentIntentStatusCreated,
		Provider: s.provider,
	}
	if err := repo.Create(ctx, intent); err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeConflict) {
			// a concurrent request opened it first
			return repo.FindActiveByOrder(ctx, order.ID)
		}
		return nil, err
	}

	if _, err := s.ledger.WithTx(tx).RecordPaymentEvent(ctx, ledger.RecordPaymentEventInput{
		PaymentIntentID: intent.ID,
		OrderID:         order.ID,
		To:              intent.Status,
		Payload:         payload,
	}); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, tx, intent, nil, actor); err != nil {
		return nil, err
	}
	journal.Record(entityIntent, intent.ID, "", intent.Status.String())
	return intent, nil
}

func (s *service) Capture(ctx context.Context, input CaptureInput) (*models.PaymentIntent, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	return s.run(ctx, byID(input.IntentID), transitionRequest{
		to:                enums.PaymentIntentStatusCaptured,
		expectedVersion:   input.ExpectedVersion,
		externalReference: input.ExternalReference,
		source:            sourceAPI,
		actor:             outbox.SystemActor(),
	})
}

func (s *service) Fail(ctx context.Context, input FailInput) (*models.PaymentIntent, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	return s.run(ctx, byID(input.IntentID), transitionRequest{
		to:              enums.PaymentIntentStatusFailed,
		expectedVersion: input.ExpectedVersion,
		reason:          input.Reason,
		source:          sourceAPI,
		actor:           outbox.SystemActor(),
	})
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.PaymentIntent, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.Reason == "" {
		input.Reason = enums.CancellationPaymentFailed
	}
	if !input.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cancellation reason")
	}
	return s.run(ctx, byID(input.IntentID), transitionRequest{
		to:              enums.PaymentIntentStatusCancelled,
		expectedVersion: input.ExpectedVersion,
		reason:          input.Reason.String(),
		failOrder:       &input.Reason,
		source:          sourceAPI,
		actor:           outbox.SystemActor(),
	})
}

// SimulateSuccess captures the intent as a sandbox gateway would.
func (s *service) SimulateSuccess(ctx context.Context, intentID uuid.UUID) (*models.PaymentIntent, error) {
	if intentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	ref := "sim_" + uuid.NewString()
	return s.run(ctx, byID(intentID), transitionRequest{
		to:                enums.PaymentIntentStatusCaptured,
		externalReference: &ref,
		source:            sourceSimulated,
		actor:             outbox.GatewayActor(),
	})
}

func (s *service) SimulateFailure(ctx context.Context, intentID uuid.UUID, reason string) (*models.PaymentIntent, error) {
	if intentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	if strings.TrimSpace(reason) == "" {
		reason = "simulated_decline"
	}
	return s.run(ctx, byID(intentID), transitionRequest{
		to:     enums.PaymentIntentStatusFailed,
		reason: reason,
		source: sourceSimulated,
		actor:  outbox.GatewayActor(),
	})
}

// HandleGatewayCallback applies a provider outcome. A repeated delivery of an
// outcome the intent already reflects is acknowledged without change.
func (s *service) HandleGatewayCallback(ctx context.Context, callback GatewayCallback) (*models.PaymentIntent, error) {
	if err := validate.Struct(callback); err != nil {
		return nil, err
	}
	if callback.IntentID == uuid.Nil && callback.ExternalReference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent id or external reference required")
	}
	req := transitionRequest{
		to:         enums.PaymentIntentStatusCaptured,
		source:     sourceGateway,
		actor:      outbox.GatewayActor(),
		idempotent: true,
	}
	if callback.ExternalReference != "" {
		ref := callback.ExternalReference
		req.externalReference = &ref
	}
	if callback.Outcome == GatewayOutcomeFailed {
		req.to = enums.PaymentIntentStatusFailed
		req.reason = callback.FailureReason
		if req.reason == "" {
			req.reason = "gateway_declined"
		}
	}

	load := func(ctx context.Context, repo Repository) (*models.PaymentIntent, error) {
		var (
			intent *models.PaymentIntent
			err    error
		)
		if callback.IntentID != uuid.Nil {
			intent, err = repo.FindByID(ctx, callback.IntentID)
		} else {
			intent, err = repo.FindByExternalReference(ctx, callback.Provider, callback.ExternalReference)
		}
		if err != nil {
			return nil, err
		}
		if intent.Provider != callback.Provider {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback provider does not match payment intent")
		}
		return intent, nil
	}
	return s.run(ctx, load, req)
}

// Recreate supersedes the order's failed intent with a fresh one. It is the
// only way a failed payment can still end captured.
func (s *service) Recreate(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	var (
		out     *models.PaymentIntent
		journal orders.Journal
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindActiveByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return pkgerrors.Transition(pkgerrors.CodeIntentNotMutable, entityIntent, current.ID, current.Status, "recreate")
		}
		if current.Status != enums.PaymentIntentStatusFailed {
			return pkgerrors.Transition(pkgerrors.CodeStateConflict, entityIntent, current.ID, current.Status, "recreate")
		}
		order, err := s.lifecycle.Repository().WithTx(tx).FindOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.Transition(pkgerrors.CodeStateConflict, "order", order.ID, order.Status, "recreate payment intent")
		}

		if err := repo.Update(ctx, current.ID, current.Version, map[string]any{"superseded_at": s.now()}); err != nil {
			return err
		}
		out, err = s.openIntent(ctx, tx, order, outbox.BuyerActor(order.BuyerID), &journal, map[string]any{
			"source":     sourceRecreate,
			"supersedes": current.ID.String(),
		})
		return err
	})
	if err != nil {
		s.rejected(err)
		return nil, err
	}
	journal.Flush(s.logg.WithOrderID(ctx, orderID.String()), s.logg, s.metrics)
	return out, nil
}

func (s *service) Events(ctx context.Context, intentID uuid.UUID) ([]models.PaymentEvent, error) {
	if intentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	if _, err := s.repo.FindByID(ctx, intentID); err != nil {
		return nil, err
	}
	return s.ledger.PaymentHistory(ctx, intentID)
}

func (s *service) OrderEvents(ctx context.Context, orderID uuid.UUID) ([]models.PaymentEvent, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.ledger.OrderPaymentHistory(ctx, orderID)
}

// ReplayStatus recomputes the intent status from its ledger alone.
func (s *service) ReplayStatus(ctx context.Context, intentID uuid.UUID) (enums.PaymentIntentStatus, error) {
	events, err := s.Events(ctx, intentID)
	if err != nil {
		return "", err
	}
	status, err := ledger.ReplayPaymentStatus(events)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "payment ledger inconsistent")
	}
	return status, nil
}

func (s *service) ListExpirable(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error) {
	return s.repo.ListExpirable(ctx, cutoff, limit)
}

// CancelIntentTx cancels the order's uncaptured intent inside the caller's
// transaction and leaves the order to the caller.
func (s *service) CancelIntentTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string, actor *outbox.ActorRef, journal *orders.Journal) error {
	intent, err := s.repo.WithTx(tx).FindActiveByOrder(ctx, orderID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return nil
		}
		return err
	}
	if intent.Status == enums.PaymentIntentStatusCancelled {
		return nil
	}
	_, err = s.transitionTx(ctx, tx, intent, transitionRequest{
		to:     enums.PaymentIntentStatusCancelled,
		reason: reason,
		source: sourceOrder,
		actor:  actor,
	}, journal)
	return err
}

type transitionRequest struct {
	to                enums.PaymentIntentStatus
	expectedVersion   *int
	externalReference *string
	reason            string
	source            string
	actor             *outbox.ActorRef
	// failOrder, when set, fails the order with this reason after cancelling.
	failOrder *enums.CancellationReason
	// idempotent acknowledges a request for the status the intent already has.
	idempotent bool
}

type intentLoader func(ctx context.Context, repo Repository) (*models.PaymentIntent, error)

func byID(id uuid.UUID) intentLoader {
	return func(ctx context.Context, repo Repository) (*models.PaymentIntent, error) {
		return repo.FindByID(ctx, id)
	}
}

func (s *service) run(ctx context.Context, load intentLoader, req transitionRequest) (*models.PaymentIntent, error) {
	var (
		out     *models.PaymentIntent
		journal orders.Journal
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		intent, err := load(ctx, s.repo.WithTx(tx))
		if err != nil {
			return err
		}
		applied, err := s.transitionTx(ctx, tx, intent, req, &journal)
		if err != nil {
			return err
		}
		out = intent
		if !applied {
			return nil
		}

		switch {
		case req.to == enums.PaymentIntentStatusCaptured:
			_, err = s.lifecycle.MarkPaid(ctx, tx, intent.OrderID, *intent.CapturedAt, req.actor, &journal)
		case req.failOrder != nil:
			_, err = s.lifecycle.FailOrder(ctx, tx, intent.OrderID, *req.failOrder, req.actor, &journal)
		}
		return err
	})
	if err != nil {
		s.rejected(err)
		return nil, err
	}
	journal.Flush(s.logg.WithOrderID(ctx, out.OrderID.String()), s.logg, s.metrics)
	return out, nil
}

// transitionTx moves intent to req.to, appends the ledger event and emits the
// change. It reports false when an idempotent request found nothing to do.
func (s *service) transitionTx(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent, req transitionRequest, journal *orders.Journal) (bool, error) {
	from := intent.Status
	if req.idempotent && from == req.to {
		return false, nil
	}
	if req.expectedVersion != nil && *req.expectedVersion != intent.Version {
		return false, pkgerrors.ConcurrentModification(entityIntent, intent.ID, *req.expectedVersion)
	}
	action := intentAction(req.to)
	if from.IsTerminal() {
		return false, pkgerrors.Transition(pkgerrors.CodeIntentNotMutable, entityIntent, intent.ID, from, action)
	}
	if intent.SupersededAt != nil || !CanTransition(from, req.to) {
		return false, pkgerrors.Transition(pkgerrors.CodeStateConflict, entityIntent, intent.ID, from, action)
	}
	if req.to == enums.PaymentIntentStatusCaptured {
		order, err := s.lifecycle.Repository().WithTx(tx).FindOrder(ctx, intent.OrderID)
		if err != nil {
			return false, err
		}
		if order.Status != enums.OrderStatusPending {
			return false, pkgerrors.Transition(pkgerrors.CodeStateConflict, "order", order.ID, order.Status, "capture payment")
		}
	}

	now := s.now()
	updates := map[string]any{"status": req.to}
	switch req.to {
	case enums.PaymentIntentStatusCaptured:
		updates["captured_at"] = now
		intent.CapturedAt = &now
		if req.externalReference != nil {
			updates["external_reference"] = *req.externalReference
			intent.ExternalReference = req.externalReference
		}
	case enums.PaymentIntentStatusFailed:
		reason := req.reason
		updates["failed_at"] = now
		updates["failure_reason"] = reason
		intent.FailedAt = &now
		intent.FailureReason = &reason
	case enums.PaymentIntentStatusCancelled:
		updates["cancelled_at"] = now
		intent.CancelledAt = &now
	}
	if err := s.repo.WithTx(tx).Update(ctx, intent.ID, intent.Version, updates); err != nil {
		return false, err
	}
	intent.Status = req.to
	intent.Version++

	payload := map[string]any{"source": req.source}
	if req.reason != "" {
		payload["reason"] = req.reason
	}
	if req.externalReference != nil {
		payload["external_reference"] = *req.externalReference
	}
	if _, err := s.ledger.WithTx(tx).RecordPaymentEvent(ctx, ledger.RecordPaymentEventInput{
		PaymentIntentID: intent.ID,
		OrderID:         intent.OrderID,
		From:            &from,
		To:              req.to,
		Payload:         payload,
	}); err != nil {
		return false, err
	}
	if err := s.emit(ctx, tx, intent, &from, req.actor); err != nil {
		return false, err
	}
	journal.Record(entityIntent, intent.ID, from.String(), req.to.String())
	return true, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, intent *models.PaymentIntent, from *enums.PaymentIntentStatus, actor *outbox.ActorRef) error {
	failure := ""
	if intent.FailureReason != nil {
		failure = *intent.FailureReason
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentIntentStatusChanged,
		AggregateType: enums.AggregatePaymentIntent,
		AggregateID:   intent.ID,
		Actor:         actor,
		Data: payloads.PaymentIntentStatusChangedEvent{
			PaymentIntentID: intent.ID,
			OrderID:         intent.OrderID,
			From:            from,
			To:              intent.Status,
			Amount:          intent.Amount,
			Currency:        intent.Currency,
			FailureReason:   failure,
		},
	})
}

func (s *service) rejected(err error) {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeInternal {
		s.metrics.Rejected(entityIntent, string(typed.Code()))
	}
}
