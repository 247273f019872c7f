// Package metrics exports runtime activity to Prometheus. Metrics is a
// core.Observer: attach it to the event bridge with Observe and every event
// updates the counters.
package metrics

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/agentrt/core"
)

const namespace = "agentrt"

// Metrics holds the runtime collectors.
type Metrics struct {
	events      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	runs        *prometheus.HistogramVec
	tokens      *prometheus.CounterVec
	busy        *prometheus.GaugeVec

	mu      sync.Mutex
	started map[string]time.Time // agent -> BUSY since
}

var _ core.Observer = (*Metrics)(nil)

// NewMetrics registers the runtime collectors with reg (the default
// registerer when nil). Collectors already registered by an earlier call are
// reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{started: map[string]time.Time{}}
	var err error

	if m.events, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Events published on the bridge by kind and agent.",
	}, []string{"kind", "agent"})); err != nil {
		return nil, err
	}
	if m.transitions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Agent state transitions.",
	}, []string{"agent", "from", "to"})); err != nil {
		return nil, err
	}
	if m.runs, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Time agents spent BUSY per run, by outcome state.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"agent", "outcome"})); err != nil {
		return nil, err
	}
	if m.tokens, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_total",
		Help:      "Model tokens reported on completed runs.",
	}, []string{"agent", "type"})); err != nil {
		return nil, err
	}
	if m.busy, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "agent_busy",
		Help:      "1 while the agent is running.",
	}, []string{"agent"})); err != nil {
		return nil, err
	}
	return m, nil
}

// MustNewMetrics is like NewMetrics but panics on registration errors.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	m, err := NewMetrics(reg)
	if err != nil {
		panic(err)
	}
	return m
}

// RegisterDropped exports the number of token chunks the bridge dropped.
func RegisterDropped(reg prometheus.Registerer, dropped func() uint64) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	_, err := register(reg, prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bridge_dropped_events_total",
		Help:      "Token chunks dropped because a subscriber queue was full.",
	}, func() float64 { return float64(dropped()) }))
	return err
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

// OnEvent implements core.Observer.
func (m *Metrics) OnEvent(e core.Event) {
	m.events.WithLabelValues(string(e.Kind), e.Agent).Inc()

	switch e.Kind {
	case core.EventStateChanged:
		m.transitions.WithLabelValues(e.Agent, e.From.String(), e.To.String()).Inc()
		m.trackBusy(e)
	case core.EventCompleted:
		if e.Usage != nil {
			m.tokens.WithLabelValues(e.Agent, "prompt").Add(float64(e.Usage.PromptTokens))
			m.tokens.WithLabelValues(e.Agent, "completion").Add(float64(e.Usage.CompletionTokens))
		}
	}
}

func (m *Metrics) trackBusy(e core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case e.To == core.StateBusy:
		m.started[e.Agent] = e.Timestamp
		m.busy.WithLabelValues(e.Agent).Set(1)
	case e.From == core.StateBusy:
		if start, ok := m.started[e.Agent]; ok {
			m.runs.WithLabelValues(e.Agent, e.To.String()).Observe(e.Timestamp.Sub(start).Seconds())
			delete(m.started, e.Agent)
		}
		m.busy.WithLabelValues(e.Agent).Set(0)
	}
}
