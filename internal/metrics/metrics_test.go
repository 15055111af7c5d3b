package metrics

import (
	"testing"
	"time"

	"github.com/Dhoini/comics-billing/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillingMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBillingMetrics(reg, logger.NewNop()).(*billingMetrics)

	m.ObserveWebhook("subscription_updated", "ok", 20*time.Millisecond)
	m.ObserveWebhook("subscription_updated", "ok", 30*time.Millisecond)
	m.IncReconcile("stale")
	m.IncSession("checkout", "ok")
	m.IncAccessCheck(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.webhooksTotal.WithLabelValues("subscription_updated", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconcileTotal.WithLabelValues("stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsTotal.WithLabelValues("checkout", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.accessChecks.WithLabelValues("true")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.webhookDuration))
}

func TestSystemMetrics_RecordAndStop(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSystemMetrics(reg, logger.NewNop())

	m.Record()
	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "billing_process_goroutines")
	assert.Contains(t, names, "billing_process_memory_alloc_bytes")

	m.StartRecording(time.Hour)
	m.Stop()
	m.Stop()
}
