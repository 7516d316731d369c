package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SyncMonitor counts what the sync engine and transport do to the viewers.
type SyncMonitor struct {
	ticks            prometheus.Counter
	viewerCommands   *prometheus.CounterVec
	viewerFaults     *prometheus.CounterVec
	driftCorrections prometheus.Counter
	drift            prometheus.Histogram
	fakePlayback     prometheus.Gauge
	rate             prometheus.Gauge
	viewers          prometheus.Gauge
	transportActions *prometheus.CounterVec
	transportErrors  *prometheus.CounterVec
}

// NewSyncMonitor creates the session metrics and registers them with reg, if any.
func NewSyncMonitor(reg prometheus.Registerer, sessionID string) *SyncMonitor {
	m := &SyncMonitor{}

	constantLabels := prometheus.Labels{"session_id": sessionID}

	m.ticks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "livekit",
		Subsystem:   "playsync",
		Name:        "clock_ticks_total",
		Help:        "Number of clock ticks handled by the sync engine",
		ConstLabels: constantLabels,
	})

	m.viewerCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "livekit",
		Subsystem:   "playsync",
		Name:        "viewer_commands_total",
		Help:        "Number of commands sent to viewers",
		ConstLabels: constantLabels,
	}, []string{"command"}) // command: play, stop, seek, speed

	m.viewerFaults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "livekit",
		Subsystem:   "playsync",
		Name:        "viewer_faults_total",
		Help:        "Number of viewer calls that failed or panicked",
		ConstLabels: constantLabels,
	}, []string{"command"})

	m.driftCorrections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "livekit",
		Subsystem:   "playsync",
		Name:        "drift_corrections_total",
		Help:        "Number of corrective seeks issued to drifting viewers",
		ConstLabels: constantLabels,
	})

	m.drift = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   "livekit",
		Subsystem:   "playsync",
		Name:        "viewer_drift_ms",
		Help:        "Distance between a playing viewer and the clock, in milliseconds",
		Buckets:     []float64{10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
		ConstLabels: constantLabels,
	})

	m.fakePlayback = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "livekit",
		Subsystem:   "playsync",
		Name:        "fake_playback",
		Help:        "1 while viewers are driven by seeks instead of native playback",
		ConstLabels: constantLabels,
	})

	m.rate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "livekit",
		Subsystem:   "playsync",
		Name:        "clock_rate",
		Help:        "Current clock rate",
		ConstLabels: constantLabels,
	})

	m.viewers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "livekit",
		Subsystem:   "playsync",
		Name:        "viewers",
		Help:        "Number of registered viewers",
		ConstLabels: constantLabels,
	})

	m.transportActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "livekit",
		Subsystem:   "playsync",
		Name:        "transport_actions_total",
		Help:        "Number of transport actions by name",
		ConstLabels: constantLabels,
	}, []string{"action"})

	m.transportErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "livekit",
		Subsystem:   "playsync",
		Name:        "transport_errors_total",
		Help:        "Number of rejected transport actions by name",
		ConstLabels: constantLabels,
	}, []string{"action"})

	if reg != nil {
		reg.MustRegister(
			m.ticks, m.viewerCommands, m.viewerFaults, m.driftCorrections, m.drift,
			m.fakePlayback, m.rate, m.viewers, m.transportActions, m.transportErrors,
		)
	}

	return m
}

func (m *SyncMonitor) IncTick() {
	m.ticks.Inc()
}

func (m *SyncMonitor) IncViewerCommand(command string) {
	m.viewerCommands.With(prometheus.Labels{"command": command}).Inc()
}

func (m *SyncMonitor) IncViewerFault(command string) {
	m.viewerFaults.With(prometheus.Labels{"command": command}).Inc()
}

func (m *SyncMonitor) ObserveDrift(ms int64, corrected bool) {
	m.drift.Observe(float64(ms))
	if corrected {
		m.driftCorrections.Inc()
	}
}

func (m *SyncMonitor) SetFakePlayback(fake bool) {
	if fake {
		m.fakePlayback.Set(1)
	} else {
		m.fakePlayback.Set(0)
	}
}

func (m *SyncMonitor) SetRate(rate float64) {
	m.rate.Set(rate)
}

func (m *SyncMonitor) SetViewers(n int) {
	m.viewers.Set(float64(n))
}

func (m *SyncMonitor) IncTransportAction(action string, err error) {
	m.transportActions.With(prometheus.Labels{"action": action}).Inc()
	if err != nil {
		m.transportErrors.With(prometheus.Labels{"action": action}).Inc()
	}
}
