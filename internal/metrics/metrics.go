package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"PowerSim/internal/powersim"
)

const namespace = "powersim"

// Collector mirrors engine samples and transitions into Prometheus metrics.
// It implements powersim.Observer.
type Collector struct {
	registry *prometheus.Registry

	wattage      prometheus.Gauge
	wakeProgress prometheus.Gauge
	state        *prometheus.GaugeVec
	transitions  *prometheus.CounterVec
	requests     *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		wattage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wattage_watts",
			Help:      "Simulated power draw of the server",
		}),
		wakeProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wake_progress_ratio",
			Help:      "Progress of the current wake sequence between 0 and 1",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "1 for the current power state, 0 otherwise",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Number of power state transitions",
		}, []string{"from", "to"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by status code and method",
		}, []string{"code", "method"}),
	}

	c.registry.MustRegister(c.wattage, c.wakeProgress, c.state, c.transitions, c.requests)
	c.setState(powersim.Off)
	c.wattage.Set(powersim.WattsOff)
	return c
}

func (c *Collector) ObserveSample(s powersim.Sample) error {
	c.wattage.Set(s.Wattage)
	c.wakeProgress.Set(s.WakeProgress)
	c.setState(s.State)
	return nil
}

func (c *Collector) ObserveTransition(t powersim.Transition) error {
	c.transitions.WithLabelValues(string(t.From), string(t.To)).Inc()
	c.setState(t.To)
	return nil
}

func (c *Collector) setState(current powersim.PowerState) {
	for _, s := range powersim.AllStates {
		v := 0.0
		if s == current {
			v = 1.0
		}
		c.state.WithLabelValues(string(s)).Set(v)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Instrument counts the requests served by next.
func (c *Collector) Instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(c.requests, next)
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
