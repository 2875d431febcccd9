package services

import (
	"github.com/aimquant/aim/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes reported by the pipeline counter
const (
	OutcomeApproved = "approved"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics holds the Prometheus collectors updated by the pipeline
type Metrics struct {
	Runs           *prometheus.CounterVec
	RegimeScore    prometheus.Gauge
	RegimeRank     prometheus.Gauge
	AllocationGap  prometheus.Gauge
	PortfolioVol   prometheus.Gauge
	StageDurations *prometheus.HistogramVec
}

// NewMetrics creates the pipeline collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aim",
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		RegimeScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aim",
			Subsystem: "regime",
			Name:      "score",
			Help:      "Composite regime score of the last run",
		}),
		RegimeRank: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aim",
			Subsystem: "regime",
			Name:      "rank",
			Help:      "Regime of the last run, 0 (RISK_OFF_STRONG) to 4 (RISK_ON_STRONG)",
		}),
		AllocationGap: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aim",
			Subsystem: "allocation",
			Name:      "gap",
			Help:      "Target minus achieved allocation of the last run",
		}),
		PortfolioVol: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aim",
			Subsystem: "risk",
			Name:      "portfolio_volatility",
			Help:      "Annualized portfolio volatility of the last run",
		}),
		StageDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "aim",
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration of each pipeline stage",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Runs, m.RegimeScore, m.RegimeRank, m.AllocationGap, m.PortfolioVol, m.StageDurations)
	}
	return m
}

func (m *Metrics) observeRegime(state domain.RegimeState) {
	m.RegimeScore.Set(state.ScoreTotal)
	m.RegimeRank.Set(float64(state.Regime.Rank()))
}
