package balancer

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "lndbalancer"

type Metrics struct {
	ticks          *prometheus.CounterVec
	tickFailures   *prometheus.CounterVec
	channelUpdates *prometheus.CounterVec
	tickDuration   prometheus.Gauge
	lastTick       prometheus.Gauge
}

// NewMetrics creates the balancer metrics and registers them with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ticks_total",
			Help:      "Number of reconciliation ticks, by whether they were skipped.",
		}, []string{"skipped"}),
		tickFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tick_failures_total",
			Help:      "Number of ticks aborted before reaching the channels, by stage.",
		}, []string{"stage"}),
		channelUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "channel_updates_total",
			Help:      "Number of channel policy updates, by result.",
		}, []string{"result"}),
		tickDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_tick_duration_seconds",
			Help:      "Duration of the most recent tick.",
		}),
		lastTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_tick_timestamp_seconds",
			Help:      "Unix time the most recent tick started.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.ticks, m.tickFailures, m.channelUpdates, m.tickDuration, m.lastTick)
	}

	return m
}

func (m *Metrics) observeTick(report *TickReport) {
	skipped := "false"
	if report.Skipped {
		skipped = "true"
	}
	m.ticks.WithLabelValues(skipped).Inc()
	m.tickDuration.Set(report.Duration.Seconds())
	m.lastTick.Set(float64(report.Started.Unix()))
}

func (m *Metrics) tickFailed(stage string) {
	m.tickFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) channelUpdated(result string) {
	m.channelUpdates.WithLabelValues(result).Inc()
}
