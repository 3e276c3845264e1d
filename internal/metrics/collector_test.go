package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycleCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("blockbench", reg)

	c.SessionCreated()
	c.SessionCreated()
	c.SessionClosed()
	c.SessionEvicted()

	assert.Equal(t, 0.0, testutil.ToFloat64(c.sessionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.sessionsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsClosed))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsEvicted))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.sessionsExpired))
}

func TestCommandCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("blockbench", reg)

	c.RecordCommand("click", true, 20*time.Millisecond)
	c.RecordCommand("click", true, 30*time.Millisecond)
	c.RecordCommand("click", false, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.commandsTotal.WithLabelValues("click", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.commandsTotal.WithLabelValues("click", "failure")))
}

func TestHTTPMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("blockbench", reg)

	c.RecordHTTPRequest("POST", "/sessions", "200", 12*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["blockbench_http_requests_total"])
	assert.True(t, names["blockbench_http_request_duration_seconds"])
}
