package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderPayload struct {
	OrderID string `json:"order_id"`
	Total   int64  `json:"total"`
}

func TestNewEvent_Fields(t *testing.T) {
	event, err := NewEvent(Meta{
		Type:          "order.created",
		AggregateID:   "ord-123",
		AggregateType: "order",
		Source:        "order-service",
		CorrelationID: "corr-1",
	}, orderPayload{OrderID: "ord-123", Total: 3054})
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "order.created", event.EventType)
	assert.Equal(t, "ord-123", event.AggregateID)
	assert.Equal(t, "order", event.AggregateType)
	assert.Equal(t, "order-service", event.Source)
	assert.Equal(t, "corr-1", event.CorrelationID)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var got orderPayload
	require.NoError(t, event.DecodeData(&got))
	assert.Equal(t, int64(3054), got.Total)
}

func TestNewEvent_UnserializablePayload(t *testing.T) {
	_, err := NewEvent(Meta{Type: "bad"}, make(chan int))
	assert.Error(t, err)
}

func TestEvent_MarshalRoundTrip(t *testing.T) {
	original, err := NewEvent(Meta{Type: "order.canceled", AggregateID: "o-1"}, map[string]string{"reason": "late"})
	require.NoError(t, err)
	original.WithMetadata("actor_role", "admin")

	raw, err := original.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, original.EventID, restored.EventID)
	assert.Equal(t, "admin", restored.Metadata["actor_role"])
	assert.JSONEq(t, string(original.Data), string(restored.Data))
}

func TestEvent_DecodeData_Empty(t *testing.T) {
	e := &Event{EventID: "e-1"}
	var v orderPayload
	assert.Error(t, e.DecodeData(&v))
}

func TestUnmarshalEvent_Invalid(t *testing.T) {
	_, err := UnmarshalEvent([]byte("{not json"))
	assert.Error(t, err)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "ecommerce.order.created", Topic("order", "created"))
	assert.Equal(t, "ecommerce.dlq.ecommerce.payment.failed", DLQTopic(Topic("payment", "failed")))
}
