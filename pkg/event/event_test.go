package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostDeliversInOrder(t *testing.T) {
	b := NewBus()
	var got []string
	b.Subscribe(func(e Event) { got = append(got, "first:"+e.Layer) })
	b.Subscribe(func(e Event) { got = append(got, "second:"+e.Layer) })

	b.Post(Event{Kind: LayerAdded, Layer: "A"})
	assert.Equal(t, []string{"first:A", "second:A"}, got)
}

func TestCancelStopsDelivery(t *testing.T) {
	b := NewBus()
	n := 0
	cancel := b.Subscribe(func(Event) { n++ })
	b.Post(Event{Kind: TagAdded})
	cancel()
	b.Post(Event{Kind: TagAdded})
	assert.Equal(t, 1, n)
}

func TestPostStampsTime(t *testing.T) {
	b := NewBus()
	var e Event
	b.Subscribe(func(got Event) { e = got })
	b.Post(Event{Kind: FrameChanged})
	assert.False(t, e.Time.IsZero())
}

func TestChannelDropsWhenFull(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Channel(1)
	b.Post(Event{Kind: ComputeStarted})
	b.Post(Event{Kind: ComputeFinished})

	e := <-ch
	assert.Equal(t, ComputeStarted, e.Kind)
	assert.Equal(t, 1, b.Dropped())

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	b.Post(Event{Kind: ComputeStarted})
}

func TestNilBusDiscards(t *testing.T) {
	var b *Bus
	b.Post(Event{Kind: LayerAdded})
}

func TestKindJSON(t *testing.T) {
	data, err := json.Marshal(Event{Kind: LayerReordered, Order: []string{"A", "B"}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"layer_reordered"`)

	var e Event
	require.NoError(t, json.Unmarshal(data, &e))
	assert.Equal(t, LayerReordered, e.Kind)
	assert.Equal(t, []string{"A", "B"}, e.Order)
}
