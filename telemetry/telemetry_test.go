package telemetry

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func resetCounters() {
	for _, reset := range []struct {
		lock *sync.Mutex
		slot **prometheus.CounterVec
	}{
		{&hotReloadCounterLock, &hotReloadCounter},
		{&compileCounterLock, &compileCounter},
		{&actionCounterLock, &actionCounter},
	} {
		reset.lock.Lock()
		*reset.slot = nil
		reset.lock.Unlock()
	}
}

func TestNoopCollector(t *testing.T) {
	collector := Noop()
	require.NotNil(t, collector)
	collector.IncHotReload("device.yaml")
	collector.IncCompile("radio", OutcomeOK)
	collector.AddActions("radio", 3)
}

func TestPrometheusCollectorRegistersAndReusesCounter(t *testing.T) {
	resetCounters()
	t.Cleanup(resetCounters)

	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	require.NoError(t, err)
	require.NotNil(t, collector)

	collector.IncHotReload("a.yaml")

	metric := gatherFamily(t, reg, "threadgen_config_hot_reload_total")
	requireCounterValue(t, metric, 1)

	again, err := NewPrometheusCollector(reg)
	require.NoError(t, err)
	require.Same(t, collector.hotReloads, again.hotReloads)

	again.IncHotReload("a.yaml")
	requireCounterValue(t, gatherFamily(t, reg, "threadgen_config_hot_reload_total"), 2)
}

func TestPrometheusCollectorReusesRegisteredCounter(t *testing.T) {
	resetCounters()
	t.Cleanup(resetCounters)

	reg := prometheus.NewRegistry()
	first, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	resetCounters()
	second, err := NewPrometheusCollector(reg)
	require.NoError(t, err)
	require.Same(t, first.compiles, second.compiles)
}

func TestPrometheusCollectorCompileMetrics(t *testing.T) {
	resetCounters()
	t.Cleanup(resetCounters)

	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	collector.IncCompile("radio", OutcomeOK)
	collector.IncCompile("radio", OutcomeOK)
	collector.AddActions("radio", 12)
	collector.AddActions("radio", 0)

	requireCounterValue(t, gatherFamily(t, reg, "threadgen_compile_total"), 2)
	requireCounterValue(t, gatherFamily(t, reg, "threadgen_actions_emitted_total"), 12)
}

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return nil
}

func requireCounterValue(t *testing.T, mf *dto.MetricFamily, value float64) {
	t.Helper()
	require.Len(t, mf.Metric, 1)
	require.NotNil(t, mf.Metric[0].Counter)
	require.Equal(t, value, mf.Metric[0].Counter.GetValue())
}
