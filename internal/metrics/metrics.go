// Package metrics records Prometheus metrics for disaggregation runs. The
// CLIs are short-lived, so metrics are written to a node-exporter textfile
// rather than served.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/power.report/internal/gsp"
	"github.com/banshee-data/power.report/internal/version"
)

const namespace = "power_report"

// Run outcomes used as the "outcome" label.
const (
	OutcomeAppliances = "appliances"
	OutcomeEmpty      = "empty"
	OutcomeError      = "error"
)

type Recorder struct {
	runsTotal          *prometheus.CounterVec
	eventsTotal        *prometheus.CounterVec
	samplesTotal       prometheus.Counter
	solveFailuresTotal prometheus.Counter
	appliances         prometheus.Gauge
	energyWh           *prometheus.GaugeVec
	runDuration        prometheus.Histogram
	stageDuration      *prometheus.HistogramVec
	buildInfo          *prometheus.GaugeVec
}

// NewRecorder creates the run metrics and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Disaggregation runs by outcome.",
		}, []string{"outcome"}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Detected power events by polarity.",
		}, []string{"polarity"}),
		samplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Aggregate samples processed.",
		}),
		solveFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solve_failures_total",
			Help:      "Laplacian solves that failed numerically.",
		}),
		appliances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "appliances",
			Help:      "Appliances found by the most recent run.",
		}),
		energyWh: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "appliance_energy_wh",
			Help:      "Energy attributed to each appliance by the most recent run.",
		}, []string{"appliance"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full disaggregation run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"stage"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build metadata, always 1.",
		}, []string{"version", "git_sha"}),
	}

	for _, c := range []prometheus.Collector{
		r.runsTotal,
		r.eventsTotal,
		r.samplesTotal,
		r.solveFailuresTotal,
		r.appliances,
		r.energyWh,
		r.runDuration,
		r.stageDuration,
		r.buildInfo,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	r.buildInfo.WithLabelValues(version.Version, version.GitSHA).Set(1)
	return r, nil
}

// Observe records a completed run.
func (r *Recorder) Observe(result *gsp.Result, d time.Duration) {
	if r == nil || result == nil {
		return
	}
	outcome := OutcomeAppliances
	if result.NumAppliances == 0 {
		outcome = OutcomeEmpty
	}
	r.runsTotal.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(d.Seconds())

	s := result.Stats
	r.samplesTotal.Add(float64(s.Samples))
	r.eventsTotal.WithLabelValues("positive").Add(float64(s.PositiveEvents))
	r.eventsTotal.WithLabelValues("negative").Add(float64(s.NegativeEvents))
	r.solveFailuresTotal.Add(float64(s.SolveFailures))

	r.stageDuration.WithLabelValues("detect").Observe(s.DetectDuration.Seconds())
	r.stageDuration.WithLabelValues("cluster").Observe(s.ClusterDuration.Seconds())
	r.stageDuration.WithLabelValues("balance").Observe(s.BalanceDuration.Seconds())
	r.stageDuration.WithLabelValues("match").Observe(s.MatchDuration.Seconds())

	r.appliances.Set(float64(result.NumAppliances))
	r.energyWh.Reset()
	for _, a := range result.Appliances {
		r.energyWh.WithLabelValues(fmt.Sprint(a.ID)).Set(a.EnergyWh)
	}
}

// ObserveError records a run that returned an error.
func (r *Recorder) ObserveError(d time.Duration) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(OutcomeError).Inc()
	r.runDuration.Observe(d.Seconds())
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format, atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
