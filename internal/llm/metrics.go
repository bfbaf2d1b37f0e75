package llm

import "github.com/prometheus/client_golang/prometheus"

var _ prometheus.Collector = (*Metrics)(nil)

// LatencyBuckets suit LLM inference, from 100ms to two minutes.
var LatencyBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveStreams   prometheus.Gauge
	StreamTokens    prometheus.Counter
	BackendRequests *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llm_gateway",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total number of chat requests by mode and outcome",
		}, []string{"mode", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llm_gateway",
			Subsystem: "chat",
			Name:      "request_duration_seconds",
			Help:      "Time from accepting a chat request to its last byte",
			Buckets:   LatencyBuckets,
		}, []string{"mode"}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "llm_gateway",
			Subsystem: "chat",
			Name:      "streams_active",
			Help:      "Number of currently open streaming completions",
		}),
		StreamTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "llm_gateway",
			Subsystem: "chat",
			Name:      "stream_tokens_total",
			Help:      "Total number of token events sent to streaming clients",
		}),
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llm_gateway",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Total number of generation calls made to the backend",
		}, []string{"backend", "status"}),
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(c chan<- prometheus.Metric) {
	m.Requests.Collect(c)
	m.RequestDuration.Collect(c)
	m.ActiveStreams.Collect(c)
	m.StreamTokens.Collect(c)
	m.BackendRequests.Collect(c)
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(d chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(m, d)
}
