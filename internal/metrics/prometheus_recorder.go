package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "oxobuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration *prom.HistogramVec
	buildDuration prom.Histogram
	stageResults  *prom.CounterVec
	buildOutcome  *prom.CounterVec
	rejected      *prom.CounterVec
	archiveBytes  prom.Histogram
	artifactBytes prom.Histogram
	queueBusy     prom.Gauge
}

// sizeBuckets spans 1 KiB to 1 GiB.
var sizeBuckets = prom.ExponentialBuckets(1024, 4, 11)

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
// A nil registry gets a fresh private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration from enqueue to terminal state",
			Buckets:   prom.ExponentialBuckets(0.5, 2, 12),
		}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by terminal state",
		}, []string{"outcome"}),
		rejected: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_commands_total",
			Help:      "Commands rejected because the workspace was busy",
		}, []string{"command"}),
		archiveBytes: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "archive_bytes",
			Help:      "Size of uploaded workspace archives",
			Buckets:   sizeBuckets,
		}),
		artifactBytes: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "artifact_bytes",
			Help:      "Size of downloaded artifacts",
			Buckets:   sizeBuckets,
		}),
		queueBusy: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "build_in_flight",
			Help:      "1 while a build holds the workspace",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome,
		pr.rejected, pr.archiveBytes, pr.artifactBytes, pr.queueBusy)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome OutcomeLabel) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncRejected(command string) {
	if p == nil {
		return
	}
	p.rejected.WithLabelValues(command).Inc()
}

func (p *PrometheusRecorder) ObserveArchiveBytes(n int64) {
	if p == nil {
		return
	}
	p.archiveBytes.Observe(float64(n))
}

func (p *PrometheusRecorder) ObserveArtifactBytes(n int64) {
	if p == nil {
		return
	}
	p.artifactBytes.Observe(float64(n))
}

func (p *PrometheusRecorder) SetQueueBusy(busy bool) {
	if p == nil {
		return
	}
	if busy {
		p.queueBusy.Set(1)
		return
	}
	p.queueBusy.Set(0)
}
