package clone

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts clone traffic. A nil *Metrics records nothing.
type Metrics struct {
	blocks   *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the clone collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radiomem_clone_blocks_total",
			Help: "Blocks transferred, by operation.",
		}, []string{"op"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radiomem_clone_bytes_total",
			Help: "Bytes transferred, by operation.",
		}, []string{"op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radiomem_clone_errors_total",
			Help: "Failed block transfers, by operation.",
		}, []string{"op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "radiomem_clone_duration_seconds",
			Help:    "Duration of complete transfers.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"op"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.blocks, m.bytes, m.errors, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) transferred(op string, n int) {
	if m == nil {
		return
	}
	m.blocks.WithLabelValues(op).Inc()
	m.bytes.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) failed(op string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(op).Inc()
}

func (m *Metrics) observe(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}
