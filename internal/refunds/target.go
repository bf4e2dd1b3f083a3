package refunds

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bazaar-backend/pkg/errors"
)

// target is the refundable balance of an order or one of its seller orders,
// read inside the caller's transaction.
type target struct {
	order       *models.Order
	sellerOrder *models.SellerOrder
	intent      *models.PaymentIntent
	// reserved sums the non-rejected refunds of the order, and of the
	// seller order when one is targeted; completed only counts finished
	// refunds of the whole order
	reservedOrder  decimal.Decimal
	reservedSeller decimal.Decimal
	completed      decimal.Decimal
}

func (s *service) loadTarget(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, sellerOrderID *uuid.UUID) (*target, error) {
	order, err := s.lifecycle.Repository().WithTx(tx).FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	t := &target{
		order:          order,
		reservedOrder:  decimal.Zero,
		reservedSeller: decimal.Zero,
		completed:      decimal.Zero,
	}
	if sellerOrderID != nil {
		for i := range order.SellerOrders {
			if order.SellerOrders[i].ID == *sellerOrderID {
				t.sellerOrder = &order.SellerOrders[i]
				break
			}
		}
		if t.sellerOrder == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller order not found").
				WithDetails(map[string]any{"seller_order_id": sellerOrderID.String()})
		}
	}

	intent, err := s.intents.WithTx(tx).FindActiveByOrder(ctx, orderID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.Transition(pkgerrors.CodeRefundNotEligible, "order", order.ID, order.Status, "refund")
		}
		return nil, err
	}
	if intent.Status != enums.PaymentIntentStatusCaptured {
		return nil, pkgerrors.Transition(pkgerrors.CodeRefundNotEligible, "payment_intent", intent.ID, intent.Status, "refund")
	}
	t.intent = intent

	refunds, err := s.repo.WithTx(tx).ListForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, r := range refunds {
		if r.Status == enums.RefundStatusRejected {
			continue
		}
		t.reservedOrder = t.reservedOrder.Add(r.Amount)
		if t.sellerOrder != nil && r.SellerOrderID != nil && *r.SellerOrderID == t.sellerOrder.ID {
			t.reservedSeller = t.reservedSeller.Add(r.Amount)
		}
		if r.Status == enums.RefundStatusCompleted {
			t.completed = t.completed.Add(r.Amount)
		}
	}
	return t, nil
}

// remaining is the captured amount not yet claimed by a refund, capped by the
// seller order total when one is targeted.
func (t *target) remaining() decimal.Decimal {
	left := t.intent.Amount.Sub(t.reservedOrder)
	if t.sellerOrder != nil {
		left = decimal.Min(left, t.sellerOrder.Total.Sub(t.reservedSeller))
	}
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

func (t *target) entity() string {
	if t.sellerOrder != nil {
		return "seller_order"
	}
	return "order"
}

func (t *target) id() fmt.Stringer {
	if t.sellerOrder != nil {
		return t.sellerOrder.ID
	}
	return t.order.ID
}

func (t *target) status() fmt.Stringer {
	if t.sellerOrder != nil {
		return t.sellerOrder.Status
	}
	return t.order.Status
}
