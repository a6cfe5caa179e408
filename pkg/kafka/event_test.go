package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changeData struct {
	Origin string `json:"origin"`
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "ecommerce.cart.changed", Topic("cart", "changed"))
}

func TestNewEvent_Fields(t *testing.T) {
	ev, err := NewEvent("cart.changed", "suivie_cart_v1", "storefront", changeData{Origin: "o-1"})
	require.NoError(t, err)

	assert.Len(t, ev.ID, 36)
	assert.Equal(t, "cart.changed", ev.Type)
	assert.Equal(t, "suivie_cart_v1", ev.Key)
	assert.Equal(t, "storefront", ev.Source)
	assert.Equal(t, 1, ev.Version)
	assert.WithinDuration(t, time.Now().UTC(), ev.OccurredAt, 2*time.Second)
	assert.JSONEq(t, `{"origin":"o-1"}`, string(ev.Data))
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("cart.changed", "k", "storefront", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal cart.changed payload")
}

func TestEvent_RoundTrip(t *testing.T) {
	original, err := NewEvent("cart.changed", "k", "storefront", changeData{Origin: "o-2"})
	require.NoError(t, err)
	original.WithCorrelationID("corr-abc").WithMetadata("profile", "p1")

	raw, err := original.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, original.Key, restored.Key)
	assert.Equal(t, "corr-abc", restored.CorrelationID)
	assert.Equal(t, map[string]string{"profile": "p1"}, restored.Metadata)

	var data changeData
	require.NoError(t, restored.UnmarshalData(&data))
	assert.Equal(t, "o-2", data.Origin)
}

func TestUnmarshalEvent_Invalid(t *testing.T) {
	_, err := UnmarshalEvent([]byte("{nope"))
	require.Error(t, err)
}

func TestHeaderCarrier(t *testing.T) {
	var headers []kafka.Header
	c := NewHeaderCarrier(&headers)
	c.Set("traceparent", "v1")
	c.Set("traceparent", "v2")
	c.Set("source", "storefront")

	assert.Equal(t, "v2", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.ElementsMatch(t, []string{"traceparent", "source"}, c.Keys())
	assert.Len(t, headers, 2)
}
