// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "keen_dnsset"

// Transport labels.
const (
	TransportCapture = "nflog"
	TransportDnstap  = "dnstap"
	TransportCLI     = "cli"
)

// Packet results.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultEmpty    = "empty"
)

// Metrics holds all counters of one service instance. A nil *Metrics is
// valid and records nothing, so tests and one-shot commands can skip it.
type Metrics struct {
	registry *prometheus.Registry

	PacketsTotal      *prometheus.CounterVec
	DecodeErrors      *prometheus.CounterVec
	MatchesTotal      prometheus.Counter
	CommandsTotal     *prometheus.CounterVec
	ElementsTotal     prometheus.Counter
	ExecDuration      prometheus.Histogram
	StreamConnections prometheus.Gauge
	RulesLoaded       prometheus.Gauge
	TargetsLoaded     prometheus.Gauge
}

// New creates a Metrics instance with its own registry, including Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		PacketsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "DNS payloads received, by transport and result.",
		}, []string{"transport", "result"}),

		DecodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Payloads dropped before matching, by transport and reason.",
		}, []string{"transport", "kind"}),

		MatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Responses whose question matched at least one rule.",
		}),

		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "nftables commands executed, by result.",
		}, []string{"result"}),

		ElementsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elements_total",
			Help:      "Set elements submitted to nftables.",
		}),

		ExecDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exec_duration_seconds",
			Help:      "Time spent executing nftables commands.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),

		StreamConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dnstap_connections",
			Help:      "Currently open dnstap connections.",
		}),

		RulesLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rules_loaded",
			Help:      "Number of rules in the active rule set.",
		}),

		TargetsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "targets_loaded",
			Help:      "Number of distinct nftables sets referenced by the rule set.",
		}),
	}
}

// Registry returns the registry backing this instance.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Packet(transport, result string) {
	if m == nil {
		return
	}
	m.PacketsTotal.WithLabelValues(transport, result).Inc()
}

func (m *Metrics) DecodeError(transport, kind string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(transport, kind).Inc()
}

func (m *Metrics) Match() {
	if m == nil {
		return
	}
	m.MatchesTotal.Inc()
}

// Command records one executed command with its element count and duration.
func (m *Metrics) Command(elements int, took time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CommandsTotal.WithLabelValues(result).Inc()
	m.ElementsTotal.Add(float64(elements))
	m.ExecDuration.Observe(took.Seconds())
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.StreamConnections.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.StreamConnections.Dec()
}

// RuleSet records the size of the loaded rule set.
func (m *Metrics) RuleSet(rules, targets int) {
	if m == nil {
		return
	}
	m.RulesLoaded.Set(float64(rules))
	m.TargetsLoaded.Set(float64(targets))
}
