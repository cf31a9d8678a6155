package observability

import (
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"propchain/core/events"
)

type eventMetrics struct {
	emitted      *prometheus.CounterVec
	escrowLocked prometheus.Gauge

	mu     sync.Mutex
	locked *big.Int
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking marketplace notifications. The
// registry doubles as an events.Emitter so it can sit in an emitter fanout.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "propchain",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of marketplace notifications segmented by event type.",
			}, []string{"type"}),
			escrowLocked: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "propchain",
				Subsystem: "escrow",
				Name:      "locked_value",
				Help:      "Value currently held in locked escrows observed by this process.",
			}),
			locked: new(big.Int),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.escrowLocked)
	})
	return eventRegistry
}

// Emit implements events.Emitter.
func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	eventType := strings.TrimSpace(evt.EventType())
	if eventType == "" {
		eventType = "unknown"
	}
	m.emitted.WithLabelValues(eventType).Inc()

	payload := events.PayloadOf(evt)
	if payload == nil {
		return
	}
	amount, ok := new(big.Int).SetString(payload.Attr("amount"), 10)
	if !ok {
		return
	}
	switch eventType {
	case "escrow.initiated":
		m.adjustLocked(amount)
	case "escrow.released":
		m.adjustLocked(amount.Neg(amount))
	}
}

func (m *eventMetrics) adjustLocked(delta *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked.Add(m.locked, delta)
	value, _ := new(big.Float).SetInt(m.locked).Float64()
	m.escrowLocked.Set(value)
}

// EmittedVec exposes the per-type event counter.
func (m *eventMetrics) EmittedVec() *prometheus.CounterVec { return m.emitted }

// EscrowLockedGauge exposes the locked escrow value gauge.
func (m *eventMetrics) EscrowLockedGauge() prometheus.Gauge { return m.escrowLocked }
