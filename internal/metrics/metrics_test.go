package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCounter(t *testing.T) {
	var c Counter
	c.Inc()
	c.Add(4)
	assert.Equal(t, uint64(5), c.Load())
}

func TestRegistry_ConcurrentInc(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Inc(OrdersPlaced)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(50), r.Snapshot().Counters[OrdersPlaced])
}

func TestRegistry_Observe(t *testing.T) {
	r := NewRegistry()
	timer := &Timer{start: time.Now().Add(-10 * time.Millisecond)}

	r.Observe(PaymentLatency, timer)

	snap := r.Snapshot().Latencies[PaymentLatency]
	assert.Equal(t, uint64(1), snap.Count)
	assert.GreaterOrEqual(t, snap.AvgMs, 10.0)
}

func TestRegistry_NilSafe(t *testing.T) {
	var r *Registry

	assert.NotPanics(t, func() {
		r.Inc(OrdersPlaced)
		r.Observe(PlaceOrderLatency, StartTimer())
	})
	assert.Empty(t, r.Snapshot().Counters)
}
