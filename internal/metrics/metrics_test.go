package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestCountersObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	before := testutil.ToFloat64(requestsTotal.WithLabelValues("tools/call", "ok"))
	ObserveRequest("tools/call", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(requestsTotal.WithLabelValues("tools/call", "ok")))

	before = testutil.ToFloat64(toolCalls.WithLabelValues("spawn_instance", "error"))
	ObserveToolCall("spawn_instance", "error")
	assert.Equal(t, before+1, testutil.ToFloat64(toolCalls.WithLabelValues("spawn_instance", "error")))
}

func TestTrackedGauge(t *testing.T) {
	SetTracked(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(trackedInstances))
	SetTracked(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(trackedInstances))
}

func TestAdoptedAndRemovedCounters(t *testing.T) {
	beforeAdopted := testutil.ToFloat64(instancesAdopted)
	beforeRemoved := testutil.ToFloat64(instancesRemoved)

	AddAdopted(2)
	AddRemoved(1)

	assert.Equal(t, beforeAdopted+2, testutil.ToFloat64(instancesAdopted))
	assert.Equal(t, beforeRemoved+1, testutil.ToFloat64(instancesRemoved))
}
