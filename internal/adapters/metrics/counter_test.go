package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newReaderCounter() (*Counter, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return NewCounterWithMeter(provider.Meter("test")), reader
}

// collectSums возвращает значения счетчика name по значению атрибута attrKey.
func collectSums(t *testing.T, reader *sdkmetric.ManualReader, name string, attrKey attribute.Key) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s must be an int64 sum", name)
			assert.True(t, sum.IsMonotonic)
			for _, dp := range sum.DataPoints {
				v, ok := dp.Attributes.Value(attrKey)
				require.True(t, ok, "%s data point without %s", name, attrKey)
				out[v.AsString()] = dp.Value
			}
		}
	}
	return out
}

func TestCounterSnapshot(t *testing.T) {
	c, _ := newReaderCounter()
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return at }

	c.IncReceived("task.created")
	c.IncReceived("task.created")
	c.IncReceived("task.bogus")
	c.IncProcessed("task.created")
	c.IncFailed("task.bogus")

	snap := c.Snapshot()
	assert.Equal(t, map[string]int64{"task.created": 2, "task.bogus": 1}, snap.ReceivedByRoutingKey)
	assert.Equal(t, map[string]int64{"task.created": 1}, snap.ProcessedByType)
	assert.Equal(t, map[string]int64{"task.bogus": 1}, snap.FailedByType)
	assert.Equal(t, at, snap.Timestamp)
}

func TestCounterExportsOTelInstruments(t *testing.T) {
	c, reader := newReaderCounter()

	c.IncReceived("task.created")
	c.IncReceived("task.created")
	c.IncReceived("task.bogus")
	c.IncProcessed("task.created")
	c.IncFailed("task.bogus")
	c.IncFailed("task.bogus")

	assert.Equal(t, map[string]int64{"task.created": 2, "task.bogus": 1},
		collectSums(t, reader, "task_events.received", "routing_key"))
	assert.Equal(t, map[string]int64{"task.created": 1},
		collectSums(t, reader, "task_events.processed", "event_type"))
	assert.Equal(t, map[string]int64{"task.bogus": 2},
		collectSums(t, reader, "task_events.failed", "event_type"))
}

func TestSnapshotIsACopy(t *testing.T) {
	c, _ := newReaderCounter()
	c.IncProcessed("task.updated")

	snap := c.Snapshot()
	snap.ProcessedByType["task.updated"] = 100

	assert.Equal(t, int64(1), c.Snapshot().ProcessedByType["task.updated"])
}

func TestCounterIsSafeForConcurrentUse(t *testing.T) {
	c, reader := newReaderCounter()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncReceived("task.created")
			_ = c.Snapshot()
		}()
	}
	wg.Wait()
	require.Equal(t, int64(50), c.Snapshot().ReceivedByRoutingKey["task.created"])
	assert.Equal(t, int64(50), collectSums(t, reader, "task_events.received", "routing_key")["task.created"])
}
