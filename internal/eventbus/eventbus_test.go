package eventbus

import (
	"bytes"
	"context"
	"testing"

	"github.com/annel0/map-editor/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	ev, err := NewEnvelope("map.otbm", TypeHistoryCommit, map[string]int{"changes": 3})
	require.NoError(t, err)
	assert.Len(t, ev.ID, 36, "ID: UUID")
	assert.Equal(t, TypeHistoryCommit, ev.EventType)

	var payload map[string]int
	require.NoError(t, ev.Decode(&payload))
	assert.Equal(t, 3, payload["changes"])

	_, err = NewEnvelope("x", "bad", func() {})
	assert.Error(t, err)
}

func TestMemoryBus_SynchronousDelivery(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	var order []string
	_, err := bus.Subscribe(ctx, Filter{}, func(_ context.Context, ev *Envelope) {
		order = append(order, "все:"+ev.EventType)
	})
	require.NoError(t, err)
	sub, err := bus.Subscribe(ctx, Filter{Types: []string{TypeHistoryUndo}}, func(_ context.Context, ev *Envelope) {
		order = append(order, "undo:"+ev.EventType)
	})
	require.NoError(t, err)

	commit, _ := NewEnvelope("doc", TypeHistoryCommit, nil)
	undo, _ := NewEnvelope("doc", TypeHistoryUndo, nil)
	require.NoError(t, bus.Publish(ctx, commit))
	require.NoError(t, bus.Publish(ctx, undo))

	// доставка завершается внутри Publish
	assert.Equal(t, []string{"все:history.commit", "все:history.undo", "undo:history.undo"}, order)

	sub.Unsubscribe()
	require.NoError(t, bus.Publish(ctx, undo))
	assert.Len(t, order, 4)

	stats := bus.Metrics()
	assert.Equal(t, uint64(3), stats.Published)
	assert.Equal(t, uint64(4), stats.Consumed)
}

func TestMemoryBus_CancelledContext(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ev, _ := NewEnvelope("doc", TypeMapSaved, nil)
	assert.ErrorIs(t, bus.Publish(ctx, ev), context.Canceled)
	assert.Equal(t, uint64(1), bus.Metrics().Dropped)
}

func TestGlobalBus(t *testing.T) {
	defer Init(nil)

	ev, _ := NewEnvelope("doc", TypeMapSaved, nil)
	assert.NoError(t, Publish(context.Background(), ev), "без шины публикация молча игнорируется")

	bus := NewMemoryBus()
	Init(bus)
	require.NoError(t, Publish(context.Background(), ev))
	assert.Equal(t, uint64(1), bus.Metrics().Published)
	assert.Equal(t, "events.map.saved", Subject(TypeMapSaved))
}

func TestLoggingListener(t *testing.T) {
	var buf bytes.Buffer
	bus := NewMemoryBus()
	sub, err := StartLoggingListener(bus, logging.NewWriterLogger("eventbus", &buf, logging.DEBUG))
	require.NoError(t, err)
	defer sub.Unsubscribe()

	ev, _ := NewEnvelope("doc", TypeMapReplaced, nil)
	require.NoError(t, bus.Publish(context.Background(), ev))
	assert.Contains(t, buf.String(), "map.replaced src=doc")
}

func TestMetricsExporter(t *testing.T) {
	bus := NewMemoryBus()
	reg := prometheus.NewRegistry()
	me, err := NewMetricsExporter(bus, reg)
	require.NoError(t, err)

	_, err = NewMetricsExporter(bus, reg)
	assert.Error(t, err, "повторная регистрация запрещена")

	ctx := context.Background()
	_, _ = bus.Subscribe(ctx, Filter{}, func(context.Context, *Envelope) {})
	for i := 0; i < 3; i++ {
		ev, _ := NewEnvelope("doc", TypeHistoryCommit, nil)
		require.NoError(t, bus.Publish(ctx, ev))
	}

	me.Update()
	me.Update()
	assert.Equal(t, 3.0, testutil.ToFloat64(me.published))
	assert.Equal(t, 3.0, testutil.ToFloat64(me.consumed))
	assert.Equal(t, 0.0, testutil.ToFloat64(me.dropped))
}
