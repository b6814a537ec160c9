package metrics

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/stratum/pkg/event"
	"github.com/matzehuels/stratum/pkg/observability"
)

func TestObserveEvents(t *testing.T) {
	m := New(nil)
	bus := event.NewBus()
	cancel := m.Watch(bus)

	bus.Post(event.Event{Kind: event.LayerAdded, Layer: "a"})
	bus.Post(event.Event{Kind: event.LayerAdded, Layer: "b"})
	bus.Post(event.Event{Kind: event.LayerRemoved, Layer: "a"})
	bus.Post(event.Event{Kind: event.TagAdded, Tag: "b/x"})
	bus.Post(event.Event{Kind: event.ComputeFinished, Layer: "b", Node: "x", Duration: time.Millisecond})
	bus.Post(event.Event{Kind: event.ComputeFinished, Layer: "b", Error: "boom"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Layers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Tags))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("layer_added")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ComputeSeconds))

	cancel()
	bus.Post(event.Event{Kind: event.LayerAdded, Layer: "c"})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Layers))
}

func TestHooks(t *testing.T) {
	m := New(nil)
	ctx := context.Background()

	m.OnCacheHit(ctx, "export")
	m.OnCacheMiss(ctx, "export")
	m.OnCacheMiss(ctx, "export")
	m.OnCacheSet(ctx, "topology", 128)
	m.OnExportStart(ctx, 2, [2]int{8, 8})
	m.OnExportComplete(ctx, time.Second, errors.New("failed"))
	m.OnSave(ctx, "file", 10, time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("export", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("export", "miss")))
	assert.Equal(t, 128.0, testutil.ToFloat64(m.CacheBytes.WithLabelValues("topology")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ExportSeconds))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StoreSeconds))
}

func TestInstall(t *testing.T) {
	t.Cleanup(observability.Reset)
	m := New(nil)
	m.Install()

	observability.Cache().OnCacheHit(context.Background(), "export")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("export", "hit")))
}

func TestHandler(t *testing.T) {
	m := New(nil)
	m.Layers.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "stratum_layers 3"))
}
