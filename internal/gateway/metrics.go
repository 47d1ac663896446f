package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsNamespace prefixes every metric this process exports.
const metricsNamespace = "ccontrol"

// Metrics is the Prometheus registry plus the domain counters other
// modules record into. It is registered as the "gateway.metrics"
// service so producers do not import the prometheus client themselves.
type Metrics struct {
	registry *prometheus.Registry

	messages *prometheus.CounterVec
	commands *prometheus.CounterVec
	events   *prometheus.CounterVec
	webhooks *prometheus.CounterVec
}

// NewMetrics creates a registry with process and Go runtime collectors
// plus the domain counters.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_total",
			Help:      "Inbound channel messages by channel.",
		}, []string{"channel"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_total",
			Help:      "Executed commands by name.",
		}, []string{"command"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Bus events by type.",
		}, []string{"type"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "webhook_requests_total",
			Help:      "Webhook deliveries by source and outcome.",
		}, []string{"source", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messages,
		m.commands,
		m.events,
		m.webhooks,
	)

	return m
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordMessage counts an inbound message on a channel.
func (m *Metrics) RecordMessage(channel string) {
	m.messages.WithLabelValues(channel).Inc()
}

// RecordCommand counts an executed command.
func (m *Metrics) RecordCommand(command string) {
	m.commands.WithLabelValues(command).Inc()
}

// RecordEvent counts a bus event by type.
func (m *Metrics) RecordEvent(eventType string) {
	m.events.WithLabelValues(eventType).Inc()
}

// RecordWebhook counts a webhook delivery outcome.
func (m *Metrics) RecordWebhook(source, outcome string) {
	m.webhooks.WithLabelValues(source, outcome).Inc()
}
