package pipeline

import (
	"time"

	"github.com/Noofbiz/cellprep/expression"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gauges recorded by one Prepare run. Each run owns its
// registry so repeated runs in one process do not collide.
type Metrics struct {
	Registry *prometheus.Registry

	// Features counts feature rows after each stage.
	Features *prometheus.GaugeVec
	// Samples counts cells per set after subsampling.
	Samples *prometheus.GaugeVec
	// Classes is the number of label codes.
	Classes prometheus.Gauge
	// StageSeconds is the wall time of each stage.
	StageSeconds *prometheus.GaugeVec
}

func newMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Features: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "cellprep",
				Name:      "features",
				Help:      "Feature rows remaining after each preprocessing stage",
			},
			[]string{"stage"},
		),
		Samples: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "cellprep",
				Name:      "samples",
				Help:      "Cells per set after subsampling",
			},
			[]string{"set"},
		),
		Classes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "cellprep",
				Name:      "classes",
				Help:      "Number of distinct cell-type labels",
			},
		),
		StageSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "cellprep",
				Name:      "stage_seconds",
				Help:      "Wall time spent in each stage",
			},
			[]string{"stage"},
		),
	}
	m.Registry.MustRegister(m.Features, m.Samples, m.Classes, m.StageSeconds)
	return m
}

func (m *Metrics) observeStage(stage string, start time.Time) {
	m.StageSeconds.WithLabelValues(stage).Set(time.Since(start).Seconds())
}

func (m *Metrics) observeReport(rep *expression.Report) {
	m.Features.WithLabelValues("common").Set(float64(rep.CommonFeatures))
	m.Features.WithLabelValues("expression").Set(float64(rep.AfterExpression))
	m.Features.WithLabelValues("nonzero_mean").Set(float64(rep.AfterExpression - rep.ZeroMeanDropped))
	m.Features.WithLabelValues("cv").Set(float64(rep.AfterCV))
}

// WriteTextfile writes the gauges in the Prometheus text format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
