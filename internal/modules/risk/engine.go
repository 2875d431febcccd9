// Package risk evaluates proposed portfolios against a risk budget before they are recommended.
package risk

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aimquant/aim/internal/domain"
	"github.com/aimquant/aim/pkg/formulas"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

const (
	// LookbackDays is the number of most recent trading dates used for the covariance matrix
	LookbackDays = 126
	// MissingHistoryVolatility is the annualized volatility assumed without price history
	MissingHistoryVolatility = 0.5
	// LimitTolerance is the slack allowed over the volatility and drawdown limits
	LimitTolerance = 1.2
	// MinObservations is the number of real closes in the window a ticker needs
	// before its sample variance is trusted
	MinObservations = 21

	z95 = 1.645
	z99 = 2.326
)

var drawdownMultipliers = map[domain.RiskTolerance]float64{
	domain.ToleranceConservative: 1.5,
	domain.ToleranceModerate:     2.0,
	domain.ToleranceAggressive:   2.5,
	domain.ToleranceSpeculative:  3.0,
}

var budgetScale = map[domain.RiskTolerance]float64{
	domain.ToleranceConservative: 0.7,
	domain.ToleranceModerate:     1.0,
	domain.ToleranceAggressive:   1.3,
	domain.ToleranceSpeculative:  1.6,
}

// DrawdownMultiplier maps a tolerance to the volatility multiple used to
// estimate the maximum drawdown. Unknown tolerances use the moderate multiple.
func DrawdownMultiplier(t domain.RiskTolerance) float64 {
	if m, ok := drawdownMultipliers[t]; ok {
		return m
	}
	return drawdownMultipliers[domain.ToleranceModerate]
}

// DefaultBudget returns the risk limits associated with a tolerance
func DefaultBudget(t domain.RiskTolerance) domain.RiskBudget {
	scale, ok := budgetScale[t]
	if !ok {
		t, scale = domain.ToleranceModerate, 1.0
	}
	return domain.RiskBudget{
		Tolerance:        t,
		MaxVolatility:    math.Min(0.20*scale, 0.50),
		MaxDrawdown:      math.Min(0.12*scale, 0.40),
		MaxConcentration: 0.15 * scale,
	}
}

// Engine computes portfolio risk metrics from daily closes.
// It holds no state between calls and is safe for concurrent use.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a new risk engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "risk_engine").Logger(),
	}
}

// Assess computes the risk of holdings over the trailing LookbackDays of history
// and checks it against budget. Missing history never approves silently: it is
// replaced by MissingHistoryVolatility and reported as a warning.
func (e *Engine) Assess(holdings []domain.Holding, history map[string][]domain.PricePoint, budget domain.RiskBudget) domain.RiskAssessment {
	assessment := domain.RiskAssessment{
		Contributions: []domain.RiskContribution{},
		Warnings:      []string{},
	}

	weights := make([]float64, len(holdings))
	tickers := make([]string, len(holdings))
	for i, h := range holdings {
		weights[i] = h.Weight
		tickers[i] = h.Ticker
	}

	assessment.Concentration, assessment.Top5Weight = Concentration(weights)

	if len(holdings) > 0 {
		closes, observed := alignCloses(tickers, history, LookbackDays)
		cov, missing := covariance(tickers, closes, observed)

		if len(missing) == len(tickers) {
			assessment.PortfolioVolatility = MissingHistoryVolatility
			assessment.Warnings = append(assessment.Warnings,
				fmt.Sprintf("Sem histórico de preços; volatilidade assumida %.1f%%", MissingHistoryVolatility*100))
			for i, t := range tickers {
				assessment.Contributions = append(assessment.Contributions, domain.RiskContribution{
					Ticker: t, Weight: weights[i], Contribution: 1 / float64(len(tickers)),
				})
			}
		} else {
			if len(missing) > 0 {
				assessment.Warnings = append(assessment.Warnings,
					fmt.Sprintf("Sem histórico de preços para %s; volatilidade assumida %.1f%%",
						strings.Join(missing, ", "), MissingHistoryVolatility*100))
			}
			variance, sigmaW := formulas.QuadraticForm(cov, weights)
			variance = math.Max(variance, 0)
			assessment.PortfolioVolatility = math.Sqrt(variance * formulas.TradingDaysPerYear)
			assessment.Contributions = contributions(tickers, weights, sigmaW, variance)
		}
	}

	assessment.ExpectedMaxDrawdown = assessment.PortfolioVolatility * DrawdownMultiplier(budget.Tolerance)
	assessment.VaR95 = z95 * assessment.PortfolioVolatility
	assessment.VaR99 = z99 * assessment.PortfolioVolatility

	violations := checkLimits(assessment, budget)
	assessment.Warnings = append(assessment.Warnings, violations...)
	assessment.WithinLimits = len(violations) == 0

	e.log.Info().
		Int("holdings", len(holdings)).
		Float64("volatility", assessment.PortfolioVolatility).
		Float64("expected_drawdown", assessment.ExpectedMaxDrawdown).
		Float64("var_95", assessment.VaR95).
		Float64("concentration", assessment.Concentration).
		Bool("within_limits", assessment.WithinLimits).
		Msg("Risk assessed")
	for _, w := range assessment.Warnings {
		e.log.Warn().Str("warning", w).Msg("Risk warning")
	}

	return assessment
}

// Validate assesses holdings and returns whether they may be recommended,
// along with a human-readable reason.
func (e *Engine) Validate(holdings []domain.Holding, history map[string][]domain.PricePoint, budget domain.RiskBudget) (bool, domain.RiskAssessment, string) {
	assessment := e.Assess(holdings, history, budget)
	if !assessment.WithinLimits {
		return false, assessment, "Risco excede limites: " + strings.Join(assessment.Warnings, ", ")
	}
	return true, assessment, "Risco dentro dos parâmetros aceitáveis"
}

// Concentration returns the Herfindahl index of the weights and the sum of the five largest
func Concentration(weights []float64) (hhi float64, top5 float64) {
	sorted := make([]float64, len(weights))
	copy(sorted, weights)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	for i, w := range sorted {
		hhi += w * w
		if i < 5 {
			top5 += w
		}
	}
	return hhi, top5
}

func checkLimits(a domain.RiskAssessment, budget domain.RiskBudget) []string {
	var violations []string
	if a.PortfolioVolatility > budget.MaxVolatility*LimitTolerance {
		violations = append(violations, fmt.Sprintf("Volatilidade %.1f%% excede limite %.1f%%",
			a.PortfolioVolatility*100, budget.MaxVolatility*100))
	}
	if a.ExpectedMaxDrawdown > budget.MaxDrawdown*LimitTolerance {
		violations = append(violations, fmt.Sprintf("Drawdown esperado %.1f%% excede limite %.1f%%",
			a.ExpectedMaxDrawdown*100, budget.MaxDrawdown*100))
	}
	if a.Concentration > budget.MaxConcentration {
		violations = append(violations, fmt.Sprintf("Concentração %.1f%% excede limite %.1f%%",
			a.Concentration*100, budget.MaxConcentration*100))
	}
	return violations
}

func contributions(tickers []string, weights, sigmaW []float64, variance float64) []domain.RiskContribution {
	out := make([]domain.RiskContribution, len(tickers))
	for i, t := range tickers {
		c := 1 / float64(len(tickers))
		if variance > 0 {
			c = weights[i] * sigmaW[i] / variance
		}
		out[i] = domain.RiskContribution{Ticker: t, Weight: weights[i], Contribution: c}
	}
	return out
}

// covariance builds the daily covariance matrix of the tickers. Tickers with
// fewer than MinObservations real closes get a diagonal entry matching
// MissingHistoryVolatility and are returned in missing, in ticker order.
func covariance(tickers []string, closes map[string][]float64, observed map[string]int) (*mat.SymDense, []string) {
	var (
		available []int
		series    [][]float64
		missing   []string
	)
	cov := mat.NewSymDense(len(tickers), nil)
	missingVariance := MissingHistoryVolatility * MissingHistoryVolatility / formulas.TradingDaysPerYear

	for i, t := range tickers {
		prices, ok := closes[t]
		if !ok || len(prices) < 3 || observed[t] < MinObservations {
			missing = append(missing, t)
			cov.SetSym(i, i, missingVariance)
			continue
		}
		available = append(available, i)
		series = append(series, formulas.CalculateReturns(prices))
	}
	if len(available) == 0 {
		return cov, missing
	}

	sample := formulas.CovarianceMatrix(series)
	if sample == nil {
		for _, i := range available {
			cov.SetSym(i, i, missingVariance)
		}
		return cov, append([]string(nil), tickers...)
	}
	for a, i := range available {
		for b := a; b < len(available); b++ {
			cov.SetSym(i, available[b], sample.At(a, b))
		}
	}
	return cov, missing
}
