package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Compile outcomes used as label values.
const (
	OutcomeOK         = "ok"
	OutcomeValidation = "validation_error"
	OutcomePlatform   = "platform_error"
	OutcomeConfig     = "config_error"
	OutcomeCancelled  = "cancelled"
)

// Collector captures telemetry events emitted by the compiler.
//
// Implementations may forward metrics to Prometheus, loggers or other
// monitoring systems. Hooks run inline with every compile and reload.
type Collector interface {
	IncHotReload(file string)
	IncCompile(unit, outcome string)
	AddActions(unit string, count int)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncHotReload(string)       {}
func (noopCollector) IncCompile(string, string) {}
func (noopCollector) AddActions(string, int)    {}

// PrometheusCollector exposes telemetry counters via Prometheus.
type PrometheusCollector struct {
	hotReloads *prometheus.CounterVec
	compiles   *prometheus.CounterVec
	actions    *prometheus.CounterVec
}

var (
	hotReloadCounter     *prometheus.CounterVec
	hotReloadCounterLock sync.Mutex
	compileCounter       *prometheus.CounterVec
	compileCounterLock   sync.Mutex
	actionCounter        *prometheus.CounterVec
	actionCounterLock    sync.Mutex
)

// NewPrometheusCollector registers the required metrics with the provided registerer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	hotReloads, err := counterVec(reg, &hotReloadCounterLock, &hotReloadCounter, prometheus.CounterOpts{
		Name: "threadgen_config_hot_reload_total",
		Help: "Number of recompilations triggered per configuration source file.",
	}, "file")
	if err != nil {
		return nil, err
	}
	compiles, err := counterVec(reg, &compileCounterLock, &compileCounter, prometheus.CounterOpts{
		Name: "threadgen_compile_total",
		Help: "Number of compile unit runs by outcome.",
	}, "unit", "outcome")
	if err != nil {
		return nil, err
	}
	actions, err := counterVec(reg, &actionCounterLock, &actionCounter, prometheus.CounterOpts{
		Name: "threadgen_actions_emitted_total",
		Help: "Number of build actions emitted per compile unit.",
	}, "unit")
	if err != nil {
		return nil, err
	}
	return &PrometheusCollector{
		hotReloads: hotReloads,
		compiles:   compiles,
		actions:    actions,
	}, nil
}

// counterVec registers a counter once per process and reuses a counter that
// is already registered under the same name.
func counterVec(reg prometheus.Registerer, lock *sync.Mutex, slot **prometheus.CounterVec, opts prometheus.CounterOpts, labels ...string) (*prometheus.CounterVec, error) {
	lock.Lock()
	defer lock.Unlock()
	if *slot != nil {
		return *slot, nil
	}
	counter := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(counter); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		counter = existing
	}
	*slot = counter
	return counter, nil
}

// IncHotReload increments the counter for the provided file path.
func (p *PrometheusCollector) IncHotReload(file string) {
	if p == nil || p.hotReloads == nil {
		return
	}
	p.hotReloads.WithLabelValues(file).Inc()
}

// IncCompile records one compile unit run.
func (p *PrometheusCollector) IncCompile(unit, outcome string) {
	if p == nil || p.compiles == nil {
		return
	}
	p.compiles.WithLabelValues(unit, outcome).Inc()
}

// AddActions records the actions a unit contributed to a plan.
func (p *PrometheusCollector) AddActions(unit string, count int) {
	if p == nil || p.actions == nil || count <= 0 {
		return
	}
	p.actions.WithLabelValues(unit).Add(float64(count))
}
