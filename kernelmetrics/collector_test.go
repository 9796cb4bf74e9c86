package kernelmetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	require.NotPanics(t, func() {
		c.RecordInvocation("Echo", "send")
		c.RecordCompletion("Echo", "send", "ok")
		c.RecordSyncFire("HandleEcho")
		c.SetPendingQueueLength("local", 3)
		c.ObserveQuiescence("responded", time.Millisecond)
	})
}

func TestCollectorRecordsCounters(t *testing.T) {
	c := New()

	before := testutil.ToFloat64(invocationsTotal.WithLabelValues("Profile", "update"))
	c.RecordInvocation("Profile", "update")
	require.Equal(t, before+1, testutil.ToFloat64(invocationsTotal.WithLabelValues("Profile", "update")))

	beforeFires := testutil.ToFloat64(syncFiresTotal.WithLabelValues("SyncToServer"))
	c.RecordSyncFire("SyncToServer")
	require.Equal(t, beforeFires+1, testutil.ToFloat64(syncFiresTotal.WithLabelValues("SyncToServer")))

	c.SetPendingQueueLength("local", 5)
	require.Equal(t, float64(5), testutil.ToFloat64(pendingQueueLength.WithLabelValues("local")))
}
