package allocation

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/aimquant/aim/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sectors = []string{"Energia", "Financeiro", "Materiais", "Consumo", "Utilidades"}

// candidates builds n ranked candidates with scores 1.0, 0.9, ... spread over five sectors
func candidates(n int) []Candidate {
	out := make([]Candidate, n)
	for i := range out {
		out[i] = Candidate{
			ScoreRecord: domain.ScoreRecord{
				Ticker: fmt.Sprintf("T%02d", i+1),
				Final:  1.0 - 0.1*float64(i),
				Rank:   i + 1,
			},
			Sector: sectors[i%len(sectors)],
		}
	}
	return out
}

func withScores(cs []Candidate, scores ...float64) []Candidate {
	for i := range cs {
		cs[i].Final = scores[i]
	}
	return cs
}

func sum(holdings []domain.Holding) float64 {
	total := 0.0
	for _, h := range holdings {
		total += h.Weight
	}
	return total
}

func TestAllocate_EqualWeightTransition(t *testing.T) {
	e := NewEngine(zerolog.Nop())

	result, err := e.Allocate(AllocationRequest{
		Candidates: candidates(10),
		Strategy:   domain.StrategyEqualWeight,
		Positions:  10,
		Regime:     domain.RegimeTransition,
	})
	require.NoError(t, err)
	require.Len(t, result.Holdings, 10)

	for _, h := range result.Holdings {
		assert.InDelta(t, 0.05, h.Weight, 1e-9, h.Ticker)
		assert.False(t, h.AssetCapped)
		assert.False(t, h.SectorCapped)
	}
	assert.InDelta(t, 0.50, sum(result.Holdings), 1e-9)
	assert.InDelta(t, 0.50, result.Diagnostics.TargetAllocation, 1e-9)
	assert.InDelta(t, 0.50, result.Diagnostics.AchievedAllocation, 1e-9)
	assert.Empty(t, result.Diagnostics.Note)
	assert.Equal(t, 0, result.Diagnostics.Iterations)
	for _, s := range sectors {
		assert.InDelta(t, 0.10, result.SectorExposure[s], 1e-9)
	}
}

func TestAllocate_RiskOffStrongIsNearAllCash(t *testing.T) {
	e := NewEngine(zerolog.Nop())

	for _, strategy := range []domain.Strategy{domain.StrategyEqualWeight, domain.StrategyScoreWeighted} {
		t.Run(string(strategy), func(t *testing.T) {
			cs := withScores(candidates(10), 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
			result, err := e.Allocate(AllocationRequest{
				Candidates: cs,
				Strategy:   strategy,
				Positions:  10,
				Regime:     domain.RegimeRiskOffStrong,
			})
			require.NoError(t, err)
			require.Len(t, result.Holdings, 10)

			for _, h := range result.Holdings {
				assert.InDelta(t, 0.005, h.Weight, 1e-9)
				assert.LessOrEqual(t, h.Weight, 0.02+1e-6)
			}
			assert.InDelta(t, 0.05, sum(result.Holdings), 1e-9)
		})
	}
}

func TestAllocate_ScoreWeightedShiftedFallback(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	cs := withScores(candidates(10), 0.9, 0.4, -0.1, -0.2, -0.3, -0.4, -0.5, -0.6, -0.7, -0.8)

	result, err := e.Allocate(AllocationRequest{
		Candidates: cs,
		Strategy:   domain.StrategyScoreWeighted,
		Positions:  10,
		Regime:     domain.RegimeTransition,
	})
	require.NoError(t, err)
	require.Len(t, result.Holdings, 10)

	assert.Contains(t, result.Diagnostics.Note, "2/10 ativos tinham score positivo")
	assert.Equal(t, 2, result.Diagnostics.PositiveScoreAssets)

	positive := 0
	for _, h := range result.Holdings {
		if h.Weight > 0 {
			positive++
		}
		assert.LessOrEqual(t, h.Weight, 0.06+1e-6)
	}
	assert.Greater(t, positive, 2, "shifted scores spread weight beyond the positive names")
	assert.InDelta(t, 0.50, sum(result.Holdings), 0.001)

	// weights follow rank order
	for i := 1; i < len(result.Holdings); i++ {
		assert.GreaterOrEqual(t, result.Holdings[i-1].Weight, result.Holdings[i].Weight)
	}
}

func TestAllocate_ScoreWeightedWithoutPositives(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	cs := withScores(candidates(10), -1, -1, -1, -1, -1, -1, -1, -1, -1, -1)

	result, err := e.Allocate(AllocationRequest{
		Candidates: cs,
		Strategy:   domain.StrategyScoreWeighted,
		Positions:  10,
		Regime:     domain.RegimeRiskOn,
	})
	require.NoError(t, err)

	assert.Contains(t, result.Diagnostics.Note, "fallback equal_weight")
	assert.Equal(t, 0, result.Diagnostics.PositiveScoreAssets)
	for _, h := range result.Holdings {
		assert.InDelta(t, 0.095, h.Weight, 1e-9)
	}
	assert.InDelta(t, 0.95, sum(result.Holdings), 1e-9)
}

func TestAllocate_ScoreWeightedRedistributesCappedExcess(t *testing.T) {
	e := NewEngine(zerolog.Nop())

	result, err := e.Allocate(AllocationRequest{
		Candidates: candidates(10),
		Strategy:   domain.StrategyScoreWeighted,
		Positions:  10,
		Regime:     domain.RegimeRiskOn,
	})
	require.NoError(t, err)

	assert.Empty(t, result.Diagnostics.Note)
	assert.InDelta(t, 0.95, sum(result.Holdings), 0.001)
	assert.Greater(t, result.Diagnostics.AssetCapsApplied, 0)
	assert.Greater(t, result.Diagnostics.Iterations, 0)
	for _, h := range result.Holdings {
		assert.LessOrEqual(t, h.Weight, 0.12+1e-6)
	}
}

func TestAllocate_UnreachableTargetIsReported(t *testing.T) {
	e := NewEngine(zerolog.Nop())

	t.Run("asset caps", func(t *testing.T) {
		result, err := e.Allocate(AllocationRequest{
			Candidates: candidates(3),
			Strategy:   domain.StrategyEqualWeight,
			Positions:  3,
			Regime:     domain.RegimeRiskOn,
		})
		require.NoError(t, err)

		for _, h := range result.Holdings {
			assert.InDelta(t, 0.12, h.Weight, 1e-9)
			assert.True(t, h.AssetCapped)
		}
		assert.InDelta(t, 0.59, result.Diagnostics.Gap, 1e-9)
		assert.Contains(t, result.Diagnostics.Note, "Alocação abaixo do alvo")
		assert.Contains(t, result.Diagnostics.Note, "ativos no teto: 3")
	})

	t.Run("sector caps", func(t *testing.T) {
		cs := candidates(10)
		for i := range cs {
			cs[i].Sector = "Financeiro"
		}
		result, err := e.Allocate(AllocationRequest{
			Candidates: cs,
			Strategy:   domain.StrategyEqualWeight,
			Positions:  10,
			Regime:     domain.RegimeTransition,
		})
		require.NoError(t, err)

		for _, h := range result.Holdings {
			assert.InDelta(t, 0.02, h.Weight, 1e-9)
			assert.True(t, h.SectorCapped)
		}
		assert.InDelta(t, 0.20, result.SectorExposure["Financeiro"], 1e-9)
		assert.Equal(t, 10, result.Diagnostics.SectorCapsApplied)
		assert.Contains(t, result.Diagnostics.Note, "ajustes setoriais: 10")
	})
}

func TestAllocate_ShortfallNoteFollowsStrategyNote(t *testing.T) {
	e := NewEngine(zerolog.Nop())

	tests := []struct {
		name       string
		scores     []float64
		leadingMsg string
	}{
		{"no positive scores", []float64{-0.1, -0.2, -0.3}, "Nenhum ativo com score positivo"},
		{"shifted scores", []float64{0.9, -0.1, -0.2}, "Apenas 1/3 ativos tinham score positivo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Allocate(AllocationRequest{
				Candidates: withScores(candidates(3), tt.scores...),
				Strategy:   domain.StrategyScoreWeighted,
				Positions:  3,
				Regime:     domain.RegimeRiskOn,
			})
			require.NoError(t, err)

			for _, h := range result.Holdings {
				assert.LessOrEqual(t, h.Weight, 0.12+1e-9)
			}
			assert.Greater(t, result.Diagnostics.Gap, GapTolerance)
			assert.True(t, strings.HasPrefix(result.Diagnostics.Note, tt.leadingMsg), result.Diagnostics.Note)
			assert.Contains(t, result.Diagnostics.Note, ". Alocação abaixo do alvo por restrições ativas")
		})
	}
}

func TestAllocate_RiskParity(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	cs := candidates(5)
	vols := []float64{0.2, 0.3, 0.4, 0, 0.5}
	for i := range cs {
		cs[i].Vol63D = domain.Float(vols[i])
	}

	result, err := e.Allocate(AllocationRequest{
		Candidates: cs,
		Strategy:   domain.StrategyRiskParity,
		Positions:  5,
		Regime:     domain.RegimeRiskOn,
	})
	require.NoError(t, err)
	require.Len(t, result.Holdings, 5)

	for _, h := range result.Holdings {
		assert.InDelta(t, 0.12, h.Weight, 1e-9)
	}
	assert.NotEmpty(t, result.Diagnostics.Note)
}

func TestRiskParityWeight(t *testing.T) {
	tests := []struct {
		name     string
		vol      float64
		expected float64
	}{
		{"zero volatility", 0, domain.MinPositionSize},
		{"negative volatility", -0.1, domain.MinPositionSize},
		{"low volatility hits ceiling", 0.05, domain.MaxConcentration},
		{"mid volatility", 0.3, 0.15 / (0.3 * 3.1622776601683795)},
		{"high volatility hits floor", 10, domain.MinPositionSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, RiskParityWeight(tt.vol), 1e-9)
		})
	}
}

func TestAllocate_PriorityFactorsReorderCandidates(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	cs := candidates(6)
	// the lowest ranked name has by far the best value score
	cs[5].Value = 5
	cs[0].Momentum = 1

	result, err := e.Allocate(AllocationRequest{
		Candidates:      cs,
		Strategy:        domain.StrategyEqualWeight,
		Positions:       2,
		Regime:          domain.RegimeRiskOn,
		PriorityFactors: []domain.Factor{domain.FactorValue},
	})
	require.NoError(t, err)
	require.Len(t, result.Holdings, 2)
	assert.Equal(t, "T06", result.Holdings[0].Ticker)
	assert.Equal(t, "T01", result.Holdings[1].Ticker)
}

func TestPriorityWeights(t *testing.T) {
	w := PriorityWeights([]domain.Factor{domain.FactorQuality})
	assert.InDelta(t, 1.0, w.Sum(), 1e-12)
	assert.InDelta(t, 0.35/0.90, w.Quality, 1e-12)
	assert.InDelta(t, 0.10/0.90, w.Liquidity, 1e-12)

	base := PriorityWeights(nil)
	assert.InDelta(t, 0.15/0.70, base.Momentum, 1e-12)
}

func TestAllocate_RiskOffReblendsScores(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	cs := candidates(2)
	cs[0].Value, cs[0].Quality, cs[0].Momentum = 1, 0.5, -1

	result, err := e.Allocate(AllocationRequest{
		Candidates: cs,
		Strategy:   domain.StrategyEqualWeight,
		Positions:  2,
		Regime:     domain.RegimeRiskOff,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.4*1+0.4*0.5+0.2*-1, result.Holdings[0].Score, 1e-12)
	assert.InDelta(t, 0, result.Holdings[1].Score, 1e-12)
}

func TestAllocate_Empty(t *testing.T) {
	e := NewEngine(zerolog.Nop())

	result, err := e.Allocate(AllocationRequest{
		Strategy:  domain.StrategyScoreWeighted,
		Positions: 5,
		Regime:    domain.RegimeRiskOn,
	})
	require.NoError(t, err)
	assert.NotNil(t, result.Holdings)
	assert.Empty(t, result.Holdings)
	assert.NotEmpty(t, result.Diagnostics.Note)
	assert.InDelta(t, 0.95, result.Diagnostics.Gap, 1e-9)
}

func TestAllocate_CallerContractErrors(t *testing.T) {
	e := NewEngine(zerolog.Nop())

	tests := []struct {
		name string
		req  AllocationRequest
		want error
	}{
		{"zero positions", AllocationRequest{Strategy: domain.StrategyEqualWeight, Positions: 0, Regime: domain.RegimeRiskOn}, ErrInvalidPositionCount},
		{"negative positions", AllocationRequest{Strategy: domain.StrategyEqualWeight, Positions: -3, Regime: domain.RegimeRiskOn}, ErrInvalidPositionCount},
		{"unknown strategy", AllocationRequest{Strategy: "momentum_tilt", Positions: 5, Regime: domain.RegimeRiskOn}, ErrUnknownStrategy},
		{"unknown regime", AllocationRequest{Strategy: domain.StrategyEqualWeight, Positions: 5, Regime: "BULL"}, ErrUnknownRegime},
		{"unknown factor", AllocationRequest{Strategy: domain.StrategyEqualWeight, Positions: 5, Regime: domain.RegimeRiskOn,
			PriorityFactors: []domain.Factor{"growth"}}, ErrUnknownFactor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Allocate(tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestCandidateMultiplier(t *testing.T) {
	assert.Equal(t, 8, CandidateMultiplier(domain.StrategyScoreWeighted))
	assert.Equal(t, 3, CandidateMultiplier(domain.StrategyEqualWeight))
	assert.Equal(t, 3, CandidateMultiplier(domain.StrategyRiskParity))
}

// Random universes across every regime and strategy must respect caps,
// terminate within the iteration bound and either hit the target or explain why.
func TestAllocate_Invariants(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	rng := rand.New(rand.NewSource(7))
	strategies := []domain.Strategy{domain.StrategyEqualWeight, domain.StrategyScoreWeighted, domain.StrategyRiskParity}

	for trial := 0; trial < 500; trial++ {
		regime := domain.Regimes[rng.Intn(len(domain.Regimes))]
		strategy := strategies[rng.Intn(len(strategies))]
		positions := 1 + rng.Intn(25)
		nSectors := 1 + rng.Intn(len(sectors))

		cs := make([]Candidate, rng.Intn(40))
		for i := range cs {
			cs[i] = Candidate{
				ScoreRecord: domain.ScoreRecord{
					Ticker: fmt.Sprintf("A%03d", i),
					Final:  rng.NormFloat64(),
					Rank:   i + 1,
				},
				Sector: sectors[rng.Intn(nSectors)],
				Vol63D: domain.Float(rng.Float64() * 0.8),
			}
		}

		result, err := e.Allocate(AllocationRequest{
			Candidates: cs,
			Strategy:   strategy,
			Positions:  positions,
			Regime:     regime,
		})
		require.NoError(t, err)

		params := regime.Params()
		for _, h := range result.Holdings {
			require.LessOrEqual(t, h.Weight, params.MaxAssetExposure+1e-6, "trial %d %s", trial, h.Ticker)
			require.GreaterOrEqual(t, h.Weight, 0.0)
		}
		for sector, exposure := range result.SectorExposure {
			require.LessOrEqual(t, exposure, params.MaxSectorExposure+1e-6, "trial %d %s", trial, sector)
		}
		require.LessOrEqual(t, result.Diagnostics.Iterations, MaxIterations)

		achieved := sum(result.Holdings)
		if d := achieved - params.TargetAllocation; d > 0.001 || d < -0.001 {
			require.NotEmpty(t, result.Diagnostics.Note, "trial %d: achieved %.4f of %.4f", trial, achieved, params.TargetAllocation)
		}
	}
}
