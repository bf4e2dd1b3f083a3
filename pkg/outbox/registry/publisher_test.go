package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bazaar-backend/pkg/config"
	"github.com/angelmondragon/bazaar-backend/pkg/db/models"
	"github.com/angelmondragon/bazaar-backend/pkg/enums"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox"
	"github.com/angelmondragon/bazaar-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	sellerOrderID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.OrderCreatedEvent{
		OrderID:        uuid.New(),
		OrderNumber:    "ORD-20260301-ABCDEFGH",
		SellerOrderIDs: []uuid.UUID{sellerOrderID},
		TotalAmount:    decimal.RequireFromString("110.00"),
		Currency:       "TRY",
	})

	event := models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, 1, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "notification-topic", resolved.Descriptor.Topic)
	assert.Equal(t, enums.EventOrderCreated, resolved.Descriptor.EventType)

	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	require.Len(t, payload.SellerOrderIDs, 1)
	assert.Equal(t, sellerOrderID, payload.SellerOrderIDs[0])
	assert.True(t, payload.TotalAmount.Equal(decimal.RequireFromString("110")))
	assert.NotEmpty(t, resolved.Envelope.EventID)
	assert.False(t, resolved.Envelope.OccurredAt.IsZero())
}

func TestEventRegistryCoversEveryEventType(t *testing.T) {
	reg := newTestEventRegistry(t)
	for _, eventType := range []enums.OutboxEventType{
		enums.EventOrderCreated,
		enums.EventOrderStatusChanged,
		enums.EventSellerOrderStatusChanged,
		enums.EventPaymentIntentStatusChanged,
		enums.EventShipmentStatusChanged,
		enums.EventRefundStatusChanged,
	} {
		desc, ok := reg.Descriptor(eventType)
		assert.True(t, ok, "missing descriptor for %s", eventType)
		assert.Equal(t, "notification-topic", desc.Topic)
	}
}

func TestEventRegistryResolveNonRetryable(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("listing_renamed"),
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, 1, []byte(`{"reason":"none"}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateSellerOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, 1, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.Nil,
			Payload:       mustEnvelope(t, 1, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventRefundStatusChanged,
			AggregateType: enums.AggregateRefund,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, 1, []byte("null")),
		},
		"future version": {
			EventType:     enums.EventShipmentStatusChanged,
			AggregateType: enums.AggregateShipment,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, 2, []byte(`{}`)),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry), "expected non-retryable error, got %T", err)
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	require.Error(t, err)
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{NotificationTopic: "notification-topic"})
	require.NoError(t, err)
	return reg
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func mustEnvelope(t *testing.T, version int, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	return data
}
