package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.MessageReceived("start")
	m.MessageReceived("start")
	m.CompletionFinished("gemini", "ok")
	m.GrantWritten("extended")
	m.SetEntitledUsers(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues("start")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completions.WithLabelValues("gemini", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.grants.WithLabelValues("extended")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.entitledUsers))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MessageReceived("text")
		m.CompletionFinished("openai", "error")
		m.GrantWritten("created")
		m.SetEntitledUsers(1)
	})
}
