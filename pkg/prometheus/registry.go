package prometheus

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MatteoMori/vaultmonitor/pkg/monitor"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrLabelKeysMismatch = errors.New("label keys differ from the ones frozen for this kind")
	ErrUnknownKind       = errors.New("unknown monitor kind")
)

// Compile-time check to verify implements interface.
var _ monitor.Sink = (*Registry)(nil)

// Registry is the metric sink of the monitors. It owns a Prometheus registry and creates
// the gauge pair of a kind the first time it is asked for it.
type Registry struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	pairs    map[monitor.Kind]*gaugePair

	configured    prometheus.Gauge
	sweepDuration prometheus.Gauge
	sweepErrors   prometheus.Counter
}

type gaugePair struct {
	labelKeys   []string
	lastRenewal gaugeVec
	expiration  gaugeVec
}

// gaugeVec adapts a GaugeVec to monitor.Gauge.
type gaugeVec struct {
	vec *prometheus.GaugeVec
}

func (g gaugeVec) Set(labels map[string]string, value float64) error {
	gauge, err := g.vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return fmt.Errorf("failed to select gauge: %w", err)
	}
	gauge.Set(value)
	return nil
}

func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		pairs:    make(map[monitor.Kind]*gaugePair),
	}
	r.configured, r.sweepDuration, r.sweepErrors = newSelfMetrics()
	r.registry.MustRegister(r.configured, r.sweepDuration, r.sweepErrors)
	return r
}

// Gatherer exposes the collected metrics for the webserver.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Gauges implements monitor.Sink. Later calls for a kind must use the label keys of the first call.
func (r *Registry) Gauges(kind monitor.Kind, labelKeys []string) (monitor.Gauge, monitor.Gauge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pair, ok := r.pairs[kind]; ok {
		if !slices.Equal(pair.labelKeys, labelKeys) {
			return nil, nil, fmt.Errorf("%w: %s gauges use %v, got %v", ErrLabelKeysMismatch, kind, pair.labelKeys, labelKeys)
		}
		return pair.lastRenewal, pair.expiration, nil
	}

	family, ok := gaugeFamilies[kind]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	keys := slices.Clone(labelKeys)
	pair := &gaugePair{
		labelKeys:   keys,
		lastRenewal: gaugeVec{vec: prometheus.NewGaugeVec(family.lastRenewal, keys)},
		expiration:  gaugeVec{vec: prometheus.NewGaugeVec(family.expiration, keys)},
	}
	if err := r.registry.Register(pair.lastRenewal.vec); err != nil {
		return nil, nil, fmt.Errorf("failed to register %s: %w", family.lastRenewal.Name, err)
	}
	if err := r.registry.Register(pair.expiration.vec); err != nil {
		r.registry.Unregister(pair.lastRenewal.vec)
		return nil, nil, fmt.Errorf("failed to register %s: %w", family.expiration.Name, err)
	}

	r.pairs[kind] = pair
	return pair.lastRenewal, pair.expiration, nil
}

// LabelKeys returns the frozen label keys of kind, or nil when no monitor of that kind exists yet.
func (r *Registry) LabelKeys(kind monitor.Kind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pair, ok := r.pairs[kind]; ok {
		return slices.Clone(pair.labelKeys)
	}
	return nil
}

func (r *Registry) SetConfiguredMonitors(n int) {
	r.configured.Set(float64(n))
}

// ObserveSweep records the outcome of one sweep.
func (r *Registry) ObserveSweep(duration time.Duration, err error) {
	r.sweepDuration.Set(duration.Seconds())
	if err != nil {
		r.sweepErrors.Inc()
	}
}
