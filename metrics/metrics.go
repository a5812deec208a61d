package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

var Module = fx.Provide(
	NewRegistry,
	New,
)

// Metrics holds the bot's instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	messages      *prometheus.CounterVec
	completions   *prometheus.CounterVec
	grants        *prometheus.CounterVec
	entitledUsers prometheus.Gauge
}

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dcorpbot",
			Name:      "messages_total",
			Help:      "Inbound chat messages by command.",
		}, []string{"command"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dcorpbot",
			Name:      "ai_completions_total",
			Help:      "AI completion calls by backend and outcome.",
		}, []string{"backend", "outcome"}),
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dcorpbot",
			Name:      "subscription_grants_total",
			Help:      "Subscription grant writes by result.",
		}, []string{"result"}),
		entitledUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dcorpbot",
			Name:      "entitled_users",
			Help:      "Users holding a currently valid subscription.",
		}),
	}
	reg.MustRegister(m.messages, m.completions, m.grants, m.entitledUsers)
	return m
}

func (m *Metrics) MessageReceived(command string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(command).Inc()
}

func (m *Metrics) CompletionFinished(backend, outcome string) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(backend, outcome).Inc()
}

func (m *Metrics) GrantWritten(result string) {
	if m == nil {
		return
	}
	m.grants.WithLabelValues(result).Inc()
}

func (m *Metrics) SetEntitledUsers(n int64) {
	if m == nil {
		return
	}
	m.entitledUsers.Set(float64(n))
}
