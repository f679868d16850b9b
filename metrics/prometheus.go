package metrics

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusProvider bridges Provider onto a prometheus Registerer.
// Instruments are registered once per name and reused. Names are sanitized to
// the Prometheus charset ("fanout.worker.0.rows" becomes
// "fanout_worker_0_rows"); Description maps to Help and Attributes to const
// labels.
type PrometheusProvider struct {
	reg prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheusProvider constructs a provider registering instruments on reg.
// A nil reg selects the default registerer.
func NewPrometheusProvider(reg prometheus.Registerer) *PrometheusProvider {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusProvider{
		reg:        reg,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Counter returns the prometheus counter registered under name, creating and
// registering it on first use.
func (p *PrometheusProvider) Counter(name string, opts ...InstrumentOption) Counter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.counters[name]; ok {
		return promCounter{c}
	}
	cfg := applyOptions(opts)
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        sanitizeName(name),
		Help:        cfg.Description,
		ConstLabels: prometheus.Labels(cfg.Attributes),
	})
	if err := p.reg.Register(c); err != nil {
		// Two logical names may sanitize to the same Prometheus name;
		// reuse the collector already registered under it.
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			panic(err)
		}
		c = are.ExistingCollector.(prometheus.Counter)
	}
	p.counters[name] = c
	return promCounter{c}
}

// Histogram returns the prometheus histogram registered under name, creating
// and registering it on first use. Default buckets are used; callers needing
// custom buckets should register their own collector and pass this provider a
// distinct Registerer.
func (p *PrometheusProvider) Histogram(name string, opts ...InstrumentOption) Histogram {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.histograms[name]; ok {
		return promHistogram{h}
	}
	cfg := applyOptions(opts)
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        sanitizeName(name),
		Help:        cfg.Description,
		ConstLabels: prometheus.Labels(cfg.Attributes),
	})
	if err := p.reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			panic(err)
		}
		h = are.ExistingCollector.(prometheus.Histogram)
	}
	p.histograms[name] = h
	return promHistogram{h}
}

type promCounter struct {
	c prometheus.Counter
}

// Add increments the counter. Prometheus counters are strictly monotonic;
// non-positive deltas are dropped.
func (pc promCounter) Add(n int64) {
	if n > 0 {
		pc.c.Add(float64(n))
	}
}

type promHistogram struct {
	h prometheus.Histogram
}

func (ph promHistogram) Record(v float64) { ph.h.Observe(v) }

// sanitizeName maps an instrument name onto the Prometheus metric charset.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		default:
			return '_'
		}
	}, name)
}
