// Package allocation turns ranked scores into capped position weights.
package allocation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aimquant/aim/internal/domain"
	"github.com/aimquant/aim/pkg/formulas"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidPositionCount is returned when fewer than one position is requested
	ErrInvalidPositionCount = errors.New("position count must be at least 1")
	// ErrUnknownStrategy is returned for strategies outside the supported set
	ErrUnknownStrategy = errors.New("unknown allocation strategy")
	// ErrUnknownRegime is returned when the request carries an unknown regime label
	ErrUnknownRegime = errors.New("unknown regime")
	// ErrUnknownFactor is returned when a priority factor is not a scoring factor
	ErrUnknownFactor = errors.New("unknown priority factor")
)

const (
	// MaxIterations bounds the redistribution loop
	MaxIterations = 20
	// GapTolerance is the target gap under which redistribution stops
	GapTolerance = 0.001
	// NormalizationTolerance is the gap above which weights are rescaled to the target
	NormalizationTolerance = 0.01

	scoreShiftEpsilon    = 1e-6
	weightDecimals       = 4
	roundingStep         = 0.0001
	capEpsilon           = 1e-9
	unknownSector        = "UNKNOWN"
	riskParityTargetVol  = 0.15
	riskParityDefaultVol = 0.15
	riskParityHorizon    = 10.0
)

// Priority re-weighting applied when the caller names factors to favour
const (
	priorityBaseWeight      = 0.15
	priorityLiquidityWeight = 0.10
	priorityBoostWeight     = 0.35
)

// Candidate is a ranked score enriched with the inputs sizing needs
type Candidate struct {
	domain.ScoreRecord
	Sector string
	Vol63D *float64 // annualized 63-day volatility, nil when unknown
}

// AllocationRequest describes one allocation run
type AllocationRequest struct {
	Candidates      []Candidate
	Strategy        domain.Strategy
	Positions       int
	Regime          domain.Regime
	PriorityFactors []domain.Factor
}

// AllocationResult holds the holdings of one run and how they were reached
type AllocationResult struct {
	Holdings       []domain.Holding             `json:"holdings"`
	SectorExposure map[string]float64           `json:"sector_exposure"`
	Diagnostics    domain.AllocationDiagnostics `json:"diagnostics"`
}

// TotalWeight returns the summed weight of all holdings
func (r AllocationResult) TotalWeight() float64 {
	total := 0.0
	for _, h := range r.Holdings {
		total += h.Weight
	}
	return total
}

// Engine sizes positions under the limits of the active regime.
// It holds no state between calls and is safe for concurrent use.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a new allocation engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "allocation_engine").Logger(),
	}
}

// CandidateMultiplier returns how many candidates per requested position are
// considered. Score-weighted runs look deeper to reduce under-allocation.
func CandidateMultiplier(strategy domain.Strategy) int {
	if strategy == domain.StrategyScoreWeighted {
		return 8
	}
	return 3
}

// PriorityWeights returns the factor weights used to re-score candidates when
// the caller favours the given factors.
func PriorityWeights(factors []domain.Factor) domain.FactorWeights {
	w := domain.FactorWeights{
		Momentum:   priorityBaseWeight,
		Quality:    priorityBaseWeight,
		Value:      priorityBaseWeight,
		Volatility: priorityBaseWeight,
		Liquidity:  priorityLiquidityWeight,
	}
	for _, f := range factors {
		w = w.With(f, priorityBoostWeight)
	}
	return w.Normalize()
}

// Allocate sizes the top candidates according to the request.
// Data gaps never fail the call; only malformed requests return an error.
func (e *Engine) Allocate(req AllocationRequest) (AllocationResult, error) {
	if req.Positions < 1 {
		return AllocationResult{}, fmt.Errorf("%w: got %d", ErrInvalidPositionCount, req.Positions)
	}
	switch req.Strategy {
	case domain.StrategyEqualWeight, domain.StrategyScoreWeighted, domain.StrategyRiskParity:
	default:
		return AllocationResult{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, req.Strategy)
	}
	if !req.Regime.Valid() {
		return AllocationResult{}, fmt.Errorf("%w: %q", ErrUnknownRegime, req.Regime)
	}
	for _, f := range req.PriorityFactors {
		if _, err := domain.ParseFactor(string(f)); err != nil {
			return AllocationResult{}, fmt.Errorf("%w: %q", ErrUnknownFactor, f)
		}
	}

	params := req.Regime.Params()
	result := AllocationResult{
		Holdings:       []domain.Holding{},
		SectorExposure: map[string]float64{},
		Diagnostics: domain.AllocationDiagnostics{
			TargetAllocation: params.TargetAllocation,
		},
	}

	selected := e.selectCandidates(req)
	if len(selected) == 0 {
		e.log.Warn().Str("regime", string(req.Regime)).Msg("No ranked candidates available")
		result.Diagnostics.Gap = formulas.Round(params.TargetAllocation, weightDecimals)
		result.Diagnostics.Note = "Sem dados de ranking disponíveis para alocação."
		return result, nil
	}

	run := &allocationRun{
		params:   params,
		holdings: make([]domain.Holding, len(selected)),
	}
	for i, c := range selected {
		sector := c.Sector
		if sector == "" {
			sector = unknownSector
		}
		run.holdings[i] = domain.Holding{
			Ticker: c.Ticker,
			Sector: sector,
			Score:  c.Final,
		}
	}

	switch req.Strategy {
	case domain.StrategyEqualWeight:
		run.equalWeight()
	case domain.StrategyScoreWeighted:
		run.scoreWeighted(selected, req.Positions)
	case domain.StrategyRiskParity:
		run.riskParity(selected)
	}

	if req.Regime.IsRiskOff() {
		for i, c := range selected {
			run.holdings[i].Score = 0.4*c.Value + 0.4*c.Quality + 0.2*c.Momentum
		}
	}

	run.applyAssetCaps()
	run.applySectorCaps()
	run.normalize()
	run.redistribute()
	run.cleanup()

	result.Holdings = run.holdings
	result.SectorExposure = run.sectorExposure()
	result.Diagnostics = run.diagnostics()

	if violations := ValidateConstraints(result.Holdings, req.Regime); len(violations) > 0 {
		for _, v := range violations {
			e.log.Warn().Str("violation", v).Msg("Allocation constraint violated")
		}
	}

	e.log.Info().
		Str("regime", string(req.Regime)).
		Str("strategy", string(req.Strategy)).
		Int("positions", len(result.Holdings)).
		Float64("target", result.Diagnostics.TargetAllocation).
		Float64("achieved", result.Diagnostics.AchievedAllocation).
		Int("iterations", result.Diagnostics.Iterations).
		Msg("Allocation built")

	return result, nil
}

// selectCandidates picks the top candidates by rank, optionally re-scored by
// the priority factors, and keeps the first req.Positions of them.
func (e *Engine) selectCandidates(req AllocationRequest) []Candidate {
	pool := make([]Candidate, len(req.Candidates))
	copy(pool, req.Candidates)
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Rank != pool[j].Rank {
			return pool[i].Rank < pool[j].Rank
		}
		return pool[i].Ticker < pool[j].Ticker
	})

	if limit := req.Positions * CandidateMultiplier(req.Strategy); len(pool) > limit {
		pool = pool[:limit]
	}

	if len(req.PriorityFactors) > 0 {
		weights := PriorityWeights(req.PriorityFactors)
		for i := range pool {
			pool[i].Final = pool[i].Weighted(weights)
		}
		sort.SliceStable(pool, func(i, j int) bool {
			if pool[i].Final != pool[j].Final {
				return pool[i].Final > pool[j].Final
			}
			return pool[i].Ticker < pool[j].Ticker
		})
		e.log.Debug().
			Interface("factors", req.PriorityFactors).
			Msg("Candidates re-scored by priority factors")
	}

	if len(pool) > req.Positions {
		pool = pool[:req.Positions]
	}
	return pool
}

type allocationRun struct {
	params     domain.RegimeParams
	holdings   []domain.Holding
	note       string
	positives  int
	iterations int
}

func (r *allocationRun) equalWeight() {
	w := math.Min(r.params.TargetAllocation/float64(len(r.holdings)), r.params.MaxPositionSize)
	for i := range r.holdings {
		r.holdings[i].Weight = w
	}
}

func (r *allocationRun) scoreWeighted(selected []Candidate, requested int) {
	raw := make([]float64, len(selected))
	minScore := math.Inf(1)
	for i, c := range selected {
		s := c.Final
		if !formulas.IsFinite(s) {
			s = 0
		}
		raw[i] = s
		if s > 0 {
			r.positives++
		}
		minScore = math.Min(minScore, s)
	}

	if r.positives == 0 {
		r.note = "Nenhum ativo com score positivo no recorte atual. Aplicado fallback equal_weight."
		r.equalWeight()
		return
	}

	effective := make([]float64, len(raw))
	if r.positives < requested {
		for i, s := range raw {
			effective[i] = s - minScore + scoreShiftEpsilon
		}
		r.note = fmt.Sprintf("Apenas %d/%d ativos tinham score positivo. Aplicada redistribuição por ranking.",
			r.positives, requested)
	} else {
		for i, s := range raw {
			effective[i] = math.Max(s, 0)
		}
	}

	total := 0.0
	for _, s := range effective {
		total += s
	}
	for i := range r.holdings {
		if total <= 0 {
			r.holdings[i].Weight = 0
			continue
		}
		r.holdings[i].Weight = math.Min(effective[i]/total*r.params.TargetAllocation, r.params.MaxPositionSize)
	}
}

func (r *allocationRun) riskParity(selected []Candidate) {
	for i, c := range selected {
		vol := riskParityDefaultVol
		if c.Vol63D != nil && formulas.IsFinite(*c.Vol63D) {
			vol = math.Abs(*c.Vol63D)
		}
		r.holdings[i].Weight = math.Min(RiskParityWeight(vol), r.params.MaxPositionSize)
	}
}

// RiskParityWeight sizes a position inversely to its annualized volatility,
// bounded to [MinPositionSize, MaxConcentration].
func RiskParityWeight(vol float64) float64 {
	if vol <= 0 {
		return domain.MinPositionSize
	}
	w := riskParityTargetVol / (vol * math.Sqrt(riskParityHorizon))
	return formulas.Clip(w, domain.MinPositionSize, domain.MaxConcentration)
}

func (r *allocationRun) applyAssetCaps() {
	for i := range r.holdings {
		if r.holdings[i].Weight > r.params.MaxAssetExposure {
			r.holdings[i].Weight = r.params.MaxAssetExposure
			r.holdings[i].AssetCapped = true
		}
	}
}

func (r *allocationRun) applySectorCaps() {
	for sector, exposure := range r.sectorExposure() {
		if exposure <= r.params.MaxSectorExposure+capEpsilon {
			continue
		}
		factor := r.params.MaxSectorExposure / exposure
		for i := range r.holdings {
			if r.holdings[i].Sector == sector {
				r.holdings[i].Weight *= factor
				r.holdings[i].SectorCapped = true
			}
		}
	}
}

func (r *allocationRun) total() float64 {
	total := 0.0
	for _, h := range r.holdings {
		total += h.Weight
	}
	return total
}

func (r *allocationRun) sectorExposure() map[string]float64 {
	exposure := make(map[string]float64)
	for _, h := range r.holdings {
		exposure[h.Sector] += h.Weight
	}
	return exposure
}

// normalize rescales weights towards the target, falling back to an equal split
// when the current total is unusable.
func (r *allocationRun) normalize() {
	target := r.params.TargetAllocation
	total := r.total()

	if total <= 0 || !formulas.IsFinite(total) {
		w := target / float64(len(r.holdings))
		for i := range r.holdings {
			r.holdings[i].Weight = w
		}
		r.applyAssetCaps()
		r.applySectorCaps()
		return
	}

	if math.Abs(total-target) <= NormalizationTolerance {
		return
	}
	factor := target / total
	for i := range r.holdings {
		r.holdings[i].Weight *= factor
	}
	r.applyAssetCaps()
	r.applySectorCaps()
}

// redistribute moves the remaining gap onto holdings that still have room
// under both their asset cap and their sector cap.
func (r *allocationRun) redistribute() {
	target := r.params.TargetAllocation

	for r.iterations < MaxIterations {
		gap := target - r.total()
		if math.Abs(gap) <= GapTolerance {
			return
		}

		exposure := r.sectorExposure()
		var movable []int
		base := 0.0
		for i, h := range r.holdings {
			if gap > 0 {
				if h.Weight >= r.params.MaxAssetExposure-capEpsilon {
					continue
				}
				if exposure[h.Sector] >= r.params.MaxSectorExposure-capEpsilon {
					continue
				}
			} else if h.Weight <= 0 {
				continue
			}
			movable = append(movable, i)
			base += h.Weight
		}
		if len(movable) == 0 {
			return
		}

		moved := 0.0
		for _, i := range movable {
			h := &r.holdings[i]
			share := gap / float64(len(movable))
			if base > 0 {
				share = h.Weight / base * gap
			}
			if gap > 0 {
				room := math.Min(r.params.MaxAssetExposure-h.Weight, r.params.MaxSectorExposure-exposure[h.Sector])
				share = math.Min(share, math.Max(room, 0))
				if h.Weight+share >= r.params.MaxAssetExposure-capEpsilon {
					h.AssetCapped = true
				}
			} else {
				share = math.Max(share, -h.Weight)
			}
			h.Weight += share
			exposure[h.Sector] += share
			moved += math.Abs(share)
		}
		r.iterations++

		if moved < capEpsilon {
			return
		}
	}
}

// cleanup zeroes invalid weights and rounds the rest without breaching caps
func (r *allocationRun) cleanup() {
	for i := range r.holdings {
		w := r.holdings[i].Weight
		if !formulas.IsFinite(w) || w < 0 {
			w = 0
		}
		w = formulas.Round(w, weightDecimals)
		if w > r.params.MaxAssetExposure+capEpsilon {
			w = formulas.Round(w-roundingStep, weightDecimals)
		}
		r.holdings[i].Weight = w
	}

	for sector, exposure := range r.sectorExposure() {
		excess := exposure - r.params.MaxSectorExposure
		for excess > capEpsilon {
			idx := r.largestInSector(sector)
			if idx < 0 {
				break
			}
			r.holdings[idx].Weight = formulas.Round(r.holdings[idx].Weight-roundingStep, weightDecimals)
			excess -= roundingStep
		}
	}
}

func (r *allocationRun) largestInSector(sector string) int {
	idx := -1
	for i, h := range r.holdings {
		if h.Sector != sector || h.Weight < roundingStep {
			continue
		}
		if idx < 0 || h.Weight > r.holdings[idx].Weight {
			idx = i
		}
	}
	return idx
}

func (r *allocationRun) diagnostics() domain.AllocationDiagnostics {
	achieved := r.total()
	gap := r.params.TargetAllocation - achieved

	assetCapped, sectorCapped := 0, 0
	for _, h := range r.holdings {
		if h.AssetCapped {
			assetCapped++
		}
		if h.SectorCapped {
			sectorCapped++
		}
	}

	note := r.note
	if math.Abs(gap) > GapTolerance {
		shortfall := fmt.Sprintf("Alocação abaixo do alvo por restrições ativas (ativos no teto: %d, ajustes setoriais: %d).",
			assetCapped, sectorCapped)
		note = strings.TrimSpace(note + " " + shortfall)
	}

	return domain.AllocationDiagnostics{
		TargetAllocation:    formulas.Round(r.params.TargetAllocation, weightDecimals),
		AchievedAllocation:  formulas.Round(achieved, weightDecimals),
		Gap:                 formulas.Round(gap, weightDecimals),
		Note:                note,
		PositiveScoreAssets: r.positives,
		AssetCapsApplied:    assetCapped,
		SectorCapsApplied:   sectorCapped,
		Iterations:          r.iterations,
	}
}
