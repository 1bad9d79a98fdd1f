package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	OrdersPlaced      = "orders_placed"
	OrdersCancelled   = "orders_cancelled"
	OrdersRejected    = "orders_rejected"
	PaymentsSucceeded = "payments_succeeded"
	PaymentsFailed    = "payments_failed"
	EventsDropped     = "events_dropped"

	PlaceOrderLatency = "place_order"
	PaymentLatency    = "simulate_payment"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// latency accumulates observations for a named operation.
type latency struct {
	count   Counter
	totalNs Counter
}

// Registry holds named counters and latencies. A nil *Registry is a no-op.
type Registry struct {
	mu        sync.RWMutex
	counters  map[string]*Counter
	latencies map[string]*latency
}

func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]*Counter),
		latencies: make(map[string]*latency),
	}
}

func (r *Registry) Counter(name string) *Counter {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counters[name]; !ok {
		c = &Counter{}
		r.counters[name] = c
	}
	return c
}

func (r *Registry) Inc(name string) {
	if r == nil {
		return
	}
	r.Counter(name).Inc()
}

// Observe records the elapsed time of t under name.
func (r *Registry) Observe(name string, t *Timer) {
	if r == nil || t == nil {
		return
	}

	r.mu.Lock()
	l, ok := r.latencies[name]
	if !ok {
		l = &latency{}
		r.latencies[name] = l
	}
	r.mu.Unlock()

	l.count.Inc()
	l.totalNs.Add(uint64(t.Duration().Nanoseconds()))
}

type LatencySnapshot struct {
	Count uint64  `json:"count"`
	AvgMs float64 `json:"avgMs"`
}

type Snapshot struct {
	Counters  map[string]uint64          `json:"counters"`
	Latencies map[string]LatencySnapshot `json:"latencies"`
}

func (r *Registry) Snapshot() Snapshot {
	s := Snapshot{
		Counters:  map[string]uint64{},
		Latencies: map[string]LatencySnapshot{},
	}
	if r == nil {
		return s
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, c := range r.counters {
		s.Counters[name] = c.Load()
	}
	for name, l := range r.latencies {
		n := l.count.Load()
		ls := LatencySnapshot{Count: n}
		if n > 0 {
			ls.AvgMs = float64(l.totalNs.Load()) / float64(n) / float64(time.Millisecond)
		}
		s.Latencies[name] = ls
	}
	return s
}
