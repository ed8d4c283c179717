// Package metrics provides Prometheus collectors for the insights pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricStageDuration       = "surveyinsights_stage_duration_seconds"
	MetricStageErrorsTotal    = "surveyinsights_stage_errors_total"
	MetricCandidatesRetrieved = "surveyinsights_candidates_retrieved"
	MetricRankedTotal         = "surveyinsights_ranked_total"
)

// Pipeline stage labels.
const (
	StageRetrieve = "retrieve"
	StageRank     = "rank"
	StageTable    = "table"
	StageGenerate = "generate"
	StagePublish  = "publish"
	StagePersist  = "persist"
	StageNotify   = "notify"
	StageIngest   = "ingest"
)

// Ranking outcome labels.
const (
	OutcomeMatched = "matched"
	OutcomeUnknown = "unknown"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	candidates    prometheus.Histogram
	ranked        *prometheus.CounterVec
}

// NewMetrics creates the collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricStageDuration,
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		stageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricStageErrorsTotal,
				Help: "Total number of failed pipeline stages",
			},
			[]string{"stage"},
		),
		candidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricCandidatesRetrieved,
				Help:    "Number of candidates returned by semantic search per question",
				Buckets: []float64{0, 1, 5, 10, 20, 40, 80},
			},
		),
		ranked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRankedTotal,
				Help: "Total number of ranking runs by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveStage records how long stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncStageErrors counts a failed stage.
func (m *Metrics) IncStageErrors(stage string) {
	if m == nil {
		return
	}
	m.stageErrors.WithLabelValues(stage).Inc()
}

// ObserveCandidates records the size of a search result.
func (m *Metrics) ObserveCandidates(n int) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(n))
}

// IncRanked counts a ranking run by outcome.
func (m *Metrics) IncRanked(outcome string) {
	if m == nil {
		return
	}
	m.ranked.WithLabelValues(outcome).Inc()
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.stageDuration,
		m.stageErrors,
		m.candidates,
		m.ranked,
	}
}
