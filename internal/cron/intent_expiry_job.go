package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/bazaar-backend/internal/payments"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/retry"
)

const (
	defaultIntentTTL = 30 * time.Minute
	defaultBatchSize = 200
)

// IntentExpiryJobParams configure the payment intent expiry job.
type IntentExpiryJobParams struct {
	Logger    *logger.Logger
	Intents   intentExpirer
	TTL       time.Duration
	BatchSize int
	// Retry bounds re-attempts of a cancel that hit unavailable storage.
	Retry retry.Policy
}

type intentExpirer interface {
	ListExpirable(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error)
	Cancel(ctx context.Context, input payments.CancelInput) (*models.PaymentIntent, error)
}

// NewIntentExpiryJob builds the job that cancels unpaid intents once their
// TTL elapsed. Cancelling fails the order and restocks its items.
func NewIntentExpiryJob(params IntentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Intents == nil {
		return nil, fmt.Errorf("payment intent service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultIntentTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &intentExpiryJob{
		logg:    params.Logger,
		intents: params.Intents,
		ttl:     ttl,
		batch:   batch,
		retry:   params.Retry,
		now:     time.Now,
	}, nil
}

type intentExpiryJob struct {
	logg    *logger.Logger
	intents intentExpirer
	ttl     time.Duration
	batch   int
	retry   retry.Policy
	now     func() time.Time
}

func (j *intentExpiryJob) Name() string { return "payment-intent-expiry" }

func (j *intentExpiryJob) Run(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.ttl)
	intents, err := j.intents.ListExpirable(ctx, cutoff, j.batch)
	if err != nil {
		return 0, fmt.Errorf("query expirable intents: %w", err)
	}

	var errs error
	expired := 0
	for _, intent := range intents {
		version := intent.Version
		input := payments.CancelInput{
			IntentID:        intent.ID,
			Reason:          enums.CancellationPaymentExpired,
			ExpectedVersion: &version,
		}
		err := retry.Do(ctx, j.retry, func(ctx context.Context) error {
			_, err := j.intents.Cancel(ctx, input)
			return err
		})
		if err != nil {
			// a gateway callback won the race; the next run sees the new state
			if pkgerrors.IsStateTransition(err) || pkgerrors.Is(err, pkgerrors.CodeConcurrentModification) {
				logCtx := j.logg.WithOrderID(ctx, intent.OrderID.String())
				j.logg.Warn(j.logg.WithField(logCtx, "intent_id", intent.ID.String()), "intent moved before expiry")
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("expire intent %s: %w", intent.ID, err))
			continue
		}
		expired++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(intents),
		"expired":    expired,
	})
	j.logg.Info(logCtx, "payment intent expiry loop complete")
	return expired, errs
}
