// Package metrics exports agent activity as Prometheus metrics. A Collector
// implements core.Observer, so it can be passed to any agent, transport or
// dispatcher, and serves its registry over HTTP.
package metrics

import (
	"net/http"

	"github.com/hupe1980/agentwire/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures a Collector.
type Options struct {
	Namespace string
	// Registry receives the collectors. Defaults to a fresh registry.
	Registry *prometheus.Registry
}

// Collector records observations as Prometheus series labelled by agent.
type Collector struct {
	registry *prometheus.Registry

	received   *prometheus.CounterVec
	malformed  *prometheus.CounterVec
	dispatched *prometheus.CounterVec
	failures   *prometheus.CounterVec
	reconnects *prometheus.CounterVec
	sent       *prometheus.CounterVec
	watermark  *prometheus.GaugeVec
	state      *prometheus.GaugeVec
}

var _ core.Observer = (*Collector)(nil)

// New creates a Collector and registers its series.
func New(optFns ...func(o *Options)) (*Collector, error) {
	opts := Options{Namespace: "agentwire"}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: opts.Namespace, Name: name, Help: help}, labels)
	}
	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: opts.Namespace, Name: name, Help: help}, labels)
	}

	c := &Collector{
		registry:   opts.Registry,
		received:   counter("messages_received_total", "Inbound messages accepted for dispatch.", "agent"),
		malformed:  counter("messages_malformed_total", "Inbound frames or records dropped as malformed.", "agent"),
		dispatched: counter("messages_dispatched_total", "Messages routed through the dispatcher.", "agent"),
		failures:   counter("handler_failures_total", "Handler invocations that returned an error or panicked.", "agent"),
		reconnects: counter("reconnects_total", "Successful recoveries after a transport loss.", "agent"),
		sent:       counter("messages_sent_total", "Outbound sends by result.", "agent", "result"),
		watermark:  gauge("poll_watermark_seconds", "Highest message timestamp handled by a polling agent.", "agent"),
		state:      gauge("connection_state", "1 for the current connection state of each agent.", "agent", "state"),
	}

	for _, col := range []prometheus.Collector{
		c.received, c.malformed, c.dispatched, c.failures, c.reconnects, c.sent, c.watermark, c.state,
	} {
		if err := opts.Registry.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Registry returns the registry holding the series.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// StateChanged implements core.Observer.
func (c *Collector) StateChanged(agent string, s core.ConnectionState) {
	for _, st := range core.AllStates() {
		v := 0.0
		if st == s {
			v = 1
		}
		c.state.WithLabelValues(agent, st.String()).Set(v)
	}
}

// MessageReceived implements core.Observer.
func (c *Collector) MessageReceived(agent string) { c.received.WithLabelValues(agent).Inc() }

// MessageMalformed implements core.Observer.
func (c *Collector) MessageMalformed(agent string) { c.malformed.WithLabelValues(agent).Inc() }

// MessageDispatched implements core.Observer.
func (c *Collector) MessageDispatched(agent string) { c.dispatched.WithLabelValues(agent).Inc() }

// HandlerFailed implements core.Observer.
func (c *Collector) HandlerFailed(agent string) { c.failures.WithLabelValues(agent).Inc() }

// Reconnected implements core.Observer.
func (c *Collector) Reconnected(agent string) { c.reconnects.WithLabelValues(agent).Inc() }

// MessageSent implements core.Observer.
func (c *Collector) MessageSent(agent string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.sent.WithLabelValues(agent, result).Inc()
}

// WatermarkAdvanced implements core.Observer.
func (c *Collector) WatermarkAdvanced(agent string, watermark float64) {
	c.watermark.WithLabelValues(agent).Set(watermark)
}
