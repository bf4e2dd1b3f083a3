package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
	"github.com/angelmondragon/bazaar-backend/pkg/logger"
	"github.com/angelmondragon/bazaar-backend/pkg/retry"
)

const defaultSettlementDelay = 72 * time.Hour

// SettlementJobParams configure the order settlement job.
type SettlementJobParams struct {
	Logger    *logger.Logger
	Orders    deliveredOrderReader
	Settler   orderSettler
	Delay     time.Duration
	BatchSize int
	Retry     retry.Policy
}

type deliveredOrderReader interface {
	FindDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type orderSettler interface {
	Settle(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// NewSettlementJob builds the job that completes orders delivered longer
// than the settlement delay ago.
func NewSettlementJob(params SettlementJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("order settler required")
	}
	delay := params.Delay
	if delay <= 0 {
		delay = defaultSettlementDelay
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &settlementJob{
		logg:    params.Logger,
		orders:  params.Orders,
		settler: params.Settler,
		delay:   delay,
		batch:   batch,
		retry:   params.Retry,
		now:     time.Now,
	}, nil
}

type settlementJob struct {
	logg    *logger.Logger
	orders  deliveredOrderReader
	settler orderSettler
	delay   time.Duration
	batch   int
	retry   retry.Policy
	now     func() time.Time
}

func (j *settlementJob) Name() string { return "order-settlement" }

func (j *settlementJob) Run(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.delay)
	orders, err := j.orders.FindDeliveredBefore(ctx, cutoff, j.batch)
	if err != nil {
		return 0, fmt.Errorf("query delivered orders: %w", err)
	}

	var errs error
	settled := 0
	for _, order := range orders {
		orderID := order.ID
		err := retry.Do(ctx, j.retry, func(ctx context.Context) error {
			_, err := j.settler.Settle(ctx, orderID)
			return err
		})
		if err != nil {
			// partially refunded orders wait until every seller order arrived
			if pkgerrors.IsStateTransition(err) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("settle order %s: %w", order.ID, err))
			continue
		}
		settled++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(orders),
		"settled":    settled,
	})
	j.logg.Info(logCtx, "order settlement loop complete")
	return settled, errs
}
