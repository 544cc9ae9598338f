package wmediumd

//
// Data-plane metrics and airtime summaries
//

import (
	"github.com/montanaflynn/stats"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts data-plane events for Prometheus and collects
// airtime samples for the periodic summary. A nil *Metrics is a
// valid, disabled sink.
type Metrics struct {
	framesIngested  prometheus.Counter
	framesDelivered prometheus.Counter
	clonesDelivered prometheus.Counter
	framesDropped   *prometheus.CounterVec
	txReports       prometheus.Counter
	framesPending   prometheus.Gauge

	// airtimeUsec holds per-frame medium occupancy since the
	// last summary.
	airtimeUsec []float64
}

// NewMetrics creates a [Metrics] and registers its collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		framesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wmediumd_frames_ingested_total",
			Help: "Transmit messages accepted from clients.",
		}),
		framesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wmediumd_frames_delivered_total",
			Help: "Frames whose delivery deadline fired.",
		}),
		clonesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wmediumd_clones_delivered_total",
			Help: "Cloned receptions emitted to receivers.",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wmediumd_frames_dropped_total",
			Help: "Frames or clones dropped, by reason.",
		}, []string{"reason"}),
		txReports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wmediumd_tx_reports_total",
			Help: "Transmit-status reports emitted to clients.",
		}),
		framesPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wmediumd_frames_pending",
			Help: "Frames queued awaiting their delivery deadline.",
		}),
	}
	reg.MustRegister(
		m.framesIngested,
		m.framesDelivered,
		m.clonesDelivered,
		m.framesDropped,
		m.txReports,
		m.framesPending,
	)
	return m
}

func (m *Metrics) frameIngested() {
	if m == nil {
		return
	}
	m.framesIngested.Inc()
}

func (m *Metrics) frameEnqueued(frame *Frame) {
	if m == nil {
		return
	}
	m.framesPending.Inc()
}

func (m *Metrics) frameDelivered(frame *Frame) {
	if m == nil {
		return
	}
	m.framesPending.Dec()
	m.framesDelivered.Inc()
	m.airtimeUsec = append(m.airtimeUsec, float64(frame.Duration))
}

func (m *Metrics) frameCanceled() {
	if m == nil {
		return
	}
	m.framesPending.Dec()
	m.framesDropped.WithLabelValues("client-disconnect").Inc()
}

func (m *Metrics) frameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) cloneDelivered() {
	if m == nil {
		return
	}
	m.clonesDelivered.Inc()
}

func (m *Metrics) txReport() {
	if m == nil {
		return
	}
	m.txReports.Inc()
}

// statsIntervalUsec is how often the airtime summary is logged.
const statsIntervalUsec = 1000 * 1000

// StartStats registers the periodic airtime summary job. It is a
// no-op without a metrics sink.
func (m *Medium) StartStats() {
	if m.metrics == nil {
		return
	}
	m.statsJob.Deadline = m.sched.Now() + statsIntervalUsec
	m.statsJob.Fn = m.onStatsInterval
	m.sched.Add(&m.statsJob)
}

// onStatsInterval logs a summary of the last interval's airtime.
func (m *Medium) onStatsInterval(sched *Scheduler, job *Job) {
	samples := m.metrics.airtimeUsec
	if len(samples) > 0 {
		mean, _ := stats.Mean(samples)
		median, _ := stats.Median(samples)
		m.log.Debugf("wmediumd: airtime last interval: frames=%d mean=%.1fus median=%.1fus",
			len(samples), mean, median)
		m.metrics.airtimeUsec = samples[:0]
	}
	job.Deadline = sched.Now() + statsIntervalUsec
	sched.Add(job)
}
