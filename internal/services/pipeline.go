// Package services wires the regime, scoring, allocation and risk engines into
// the daily portfolio pipeline.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aimquant/aim/internal/domain"
	"github.com/aimquant/aim/internal/market_regime"
	"github.com/aimquant/aim/internal/modules/allocation"
	"github.com/aimquant/aim/internal/modules/features"
	"github.com/aimquant/aim/internal/modules/risk"
	"github.com/aimquant/aim/internal/modules/scoring"
	"github.com/aimquant/aim/internal/modules/universe"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// History windows loaded from storage
const (
	PriceHistoryBars = 300 // 12-month momentum and the index baseline need ~273 bars
	MacroHistoryDays = 60
	DefaultPortfolio = "default"
)

// PipelineRequest configures one pipeline run
type PipelineRequest struct {
	Date            time.Time // Zero runs on the latest stored price date
	Strategy        domain.Strategy
	Positions       int
	Tolerance       domain.RiskTolerance
	Budget          *domain.RiskBudget // Nil uses the default budget of Tolerance
	RegimeOverride  domain.Regime      // Empty uses the classified regime
	PriorityFactors []domain.Factor
	PortfolioName   string
}

// PipelineResult holds every intermediate output of a run
type PipelineResult struct {
	Date       time.Time                   `json:"date"`
	Regime     domain.RegimeState          `json:"regime"`
	Features   []domain.FeatureSet         `json:"-"`
	Scores     []domain.ScoreRecord        `json:"-"`
	Allocation allocation.AllocationResult `json:"allocation"`
	Risk       domain.RiskAssessment       `json:"risk"`
	Approved   bool                        `json:"approved"`
	Reason     string                      `json:"reason"`
	SnapshotID string                      `json:"snapshot_id,omitempty"` // Empty when the allocation was rejected
}

// Pipeline runs classification, feature extraction, scoring, allocation and
// risk validation for one date and persists every stage.
type Pipeline struct {
	universe   *universe.Repository
	regimes    *market_regime.Repository
	features   *features.Repository
	scores     *scoring.Repository
	portfolios *allocation.Repository

	classifier *market_regime.Classifier
	extractor  *features.Extractor
	scorer     *scoring.Engine
	allocator  *allocation.Engine
	risk       *risk.Engine

	metrics *Metrics
	log     zerolog.Logger
}

// NewPipeline creates a pipeline over db. metrics may be nil.
func NewPipeline(db *sql.DB, workers int, metrics *Metrics, log zerolog.Logger) *Pipeline {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Pipeline{
		universe:   universe.NewRepository(db, log),
		regimes:    market_regime.NewRepository(db, log),
		features:   features.NewRepository(db, log),
		scores:     scoring.NewRepository(db, log),
		portfolios: allocation.NewRepository(db, log),
		classifier: market_regime.NewClassifier(log),
		extractor:  features.NewExtractor(workers, log),
		scorer:     scoring.NewEngine(log),
		allocator:  allocation.NewEngine(log),
		risk:       risk.NewEngine(log),
		metrics:    metrics,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes every stage for req.Date. The allocation is saved as a
// portfolio snapshot only when the risk engine approves it.
func (p *Pipeline) Run(ctx context.Context, req PipelineRequest) (*PipelineResult, error) {
	result, err := p.run(ctx, req)
	if err != nil {
		p.metrics.Runs.WithLabelValues(OutcomeFailed).Inc()
		p.log.Error().Err(err).Msg("Pipeline run failed")
		return nil, err
	}

	outcome := OutcomeRejected
	if result.Approved {
		outcome = OutcomeApproved
	}
	p.metrics.Runs.WithLabelValues(outcome).Inc()
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, req PipelineRequest) (*PipelineResult, error) {
	if req.Positions < 1 {
		return nil, fmt.Errorf("%w: %d", allocation.ErrInvalidPositionCount, req.Positions)
	}
	if req.RegimeOverride != "" && !req.RegimeOverride.Valid() {
		return nil, fmt.Errorf("%w: %s", allocation.ErrUnknownRegime, req.RegimeOverride)
	}

	date, err := p.ResolveDate(ctx, req.Date)
	if err != nil {
		return nil, err
	}
	result := &PipelineResult{Date: date}

	result.Regime, err = p.ClassifyRegime(ctx, date)
	if err != nil {
		return nil, err
	}
	regime := result.Regime.Regime
	if req.RegimeOverride != "" && req.RegimeOverride != regime {
		p.log.Warn().
			Str("classified", string(regime)).
			Str("override", string(req.RegimeOverride)).
			Msg("Using regime override")
		regime = req.RegimeOverride
	}

	result.Features, result.Scores, err = p.ScoreUniverse(ctx, date, regime)
	if err != nil {
		return nil, err
	}

	scoreDate := date
	if len(result.Scores) > 0 {
		scoreDate = result.Scores[0].Date
	}
	result.Allocation, err = p.Allocate(ctx, scoreDate, allocation.AllocationRequest{
		Strategy:        req.Strategy,
		Positions:       req.Positions,
		Regime:          regime,
		PriorityFactors: req.PriorityFactors,
	})
	if err != nil {
		return nil, err
	}

	budget := risk.DefaultBudget(req.Tolerance)
	if req.Budget != nil {
		budget = *req.Budget
	}
	result.Approved, result.Risk, result.Reason, err = p.AssessRisk(ctx, date, result.Allocation.Holdings, budget)
	if err != nil {
		return nil, err
	}

	if result.Approved {
		name := req.PortfolioName
		if name == "" {
			name = DefaultPortfolio
		}
		result.SnapshotID, err = p.portfolios.Save(ctx, name, date, regime, req.Strategy, result.Allocation)
		if err != nil {
			return nil, fmt.Errorf("save portfolio: %w", err)
		}
	}

	p.log.Info().
		Str("date", date.Format(domain.DateLayout)).
		Str("regime", string(regime)).
		Int("scored", len(result.Scores)).
		Int("holdings", len(result.Allocation.Holdings)).
		Float64("allocated", result.Allocation.TotalWeight()).
		Float64("volatility", result.Risk.PortfolioVolatility).
		Bool("approved", result.Approved).
		Str("reason", result.Reason).
		Msg("Pipeline run completed")

	return result, nil
}

// ResolveDate returns date truncated to the day, or the latest stored price date when date is zero
func (p *Pipeline) ResolveDate(ctx context.Context, date time.Time) (time.Time, error) {
	if !date.IsZero() {
		return domain.TruncateDate(date), nil
	}
	latest, err := p.universe.LatestPriceDate(ctx)
	if errors.Is(err, universe.ErrNoPrices) {
		return time.Time{}, fmt.Errorf("no run date given and %w", err)
	}
	if err != nil {
		return time.Time{}, err
	}
	return latest, nil
}

// ClassifyRegime classifies date from stored macro and index series and upserts the state
func (p *Pipeline) ClassifyRegime(ctx context.Context, date time.Time) (domain.RegimeState, error) {
	defer p.timeStage("regime")()

	var snapshot market_regime.MacroSnapshot
	var err error
	if snapshot.SELIC, err = p.universe.MacroSeries(ctx, domain.IndicatorSELIC, date, MacroHistoryDays); err != nil {
		return domain.RegimeState{}, fmt.Errorf("load macro snapshot: %w", err)
	}
	if snapshot.USDBRL, err = p.universe.MacroSeries(ctx, domain.IndicatorUSDBRL, date, MacroHistoryDays); err != nil {
		return domain.RegimeState{}, fmt.Errorf("load macro snapshot: %w", err)
	}
	if snapshot.Index, err = p.universe.PriceHistory(ctx, domain.IndexTicker, date, PriceHistoryBars); err != nil {
		return domain.RegimeState{}, fmt.Errorf("load index history: %w", err)
	}

	state := p.classifier.Classify(date, snapshot)
	if err := p.regimes.Upsert(ctx, state); err != nil {
		return domain.RegimeState{}, err
	}
	p.metrics.observeRegime(state)
	return state, nil
}

// ScoreUniverse extracts and stores features for every asset, then scores and
// ranks them under regime and stores the scores.
func (p *Pipeline) ScoreUniverse(ctx context.Context, date time.Time, regime domain.Regime) ([]domain.FeatureSet, []domain.ScoreRecord, error) {
	assets, err := p.universe.Assets(ctx)
	if err != nil {
		return nil, nil, err
	}
	tickers := make([]string, len(assets))
	for i, a := range assets {
		tickers[i] = a.Ticker
	}

	stopFeatures := p.timeStage("features")
	histories, err := p.universe.PriceHistories(ctx, tickers, date, PriceHistoryBars)
	if err != nil {
		stopFeatures()
		return nil, nil, fmt.Errorf("load price histories: %w", err)
	}
	sets, err := p.extractor.ExtractUniverse(ctx, histories)
	if err != nil {
		stopFeatures()
		return nil, nil, fmt.Errorf("extract features: %w", err)
	}
	if err := p.features.Upsert(ctx, sets); err != nil {
		stopFeatures()
		return nil, nil, err
	}
	stopFeatures()

	defer p.timeStage("scoring")()
	fundamentals, err := p.universe.LatestFundamentals(ctx, date)
	if err != nil {
		return nil, nil, fmt.Errorf("load fundamentals: %w", err)
	}
	records := p.scorer.ScoreUniverse(sets, fundamentals, regime)
	if err := p.scores.Upsert(ctx, records); err != nil {
		return nil, nil, err
	}
	return sets, records, nil
}

// Allocate builds the portfolio of req from the scores stored for date
func (p *Pipeline) Allocate(ctx context.Context, date time.Time, req allocation.AllocationRequest) (allocation.AllocationResult, error) {
	defer p.timeStage("allocation")()

	candidates, err := p.scores.TopRanked(ctx, date, 0)
	if err != nil {
		return allocation.AllocationResult{}, fmt.Errorf("load candidates: %w", err)
	}
	req.Candidates = candidates

	result, err := p.allocator.Allocate(req)
	if err != nil {
		return allocation.AllocationResult{}, err
	}
	p.metrics.AllocationGap.Set(result.Diagnostics.Gap)
	return result, nil
}

// AssessRisk validates holdings against budget using the price history up to date
func (p *Pipeline) AssessRisk(ctx context.Context, date time.Time, holdings []domain.Holding,
	budget domain.RiskBudget) (bool, domain.RiskAssessment, string, error) {
	defer p.timeStage("risk")()

	tickers := make([]string, len(holdings))
	for i, h := range holdings {
		tickers[i] = h.Ticker
	}
	history, err := p.universe.PriceHistories(ctx, tickers, date, risk.LookbackDays+1)
	if err != nil {
		return false, domain.RiskAssessment{}, "", fmt.Errorf("load risk history: %w", err)
	}

	approved, assessment, reason := p.risk.Validate(holdings, history, budget)
	p.metrics.PortfolioVol.Set(assessment.PortfolioVolatility)
	return approved, assessment, reason, nil
}

// LatestPortfolio returns the last approved snapshot saved under name
func (p *Pipeline) LatestPortfolio(ctx context.Context, name string) (allocation.Snapshot, error) {
	if name == "" {
		name = DefaultPortfolio
	}
	return p.portfolios.Latest(ctx, name)
}

func (p *Pipeline) timeStage(stage string) func() {
	timer := prometheus.NewTimer(p.metrics.StageDurations.WithLabelValues(stage))
	return func() { timer.ObserveDuration() }
}

// CurrentRegime returns the most recently stored regime state
func (p *Pipeline) CurrentRegime(ctx context.Context) (domain.RegimeState, error) {
	return p.regimes.Current(ctx)
}

// LatestScoreDate returns the most recent date with stored scores
func (p *Pipeline) LatestScoreDate(ctx context.Context) (time.Time, error) {
	return p.scores.LatestDate(ctx)
}
