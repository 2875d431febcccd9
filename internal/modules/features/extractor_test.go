package features

import (
	"context"
	"math"
	"testing"

	"github.com/aimquant/aim/internal/domain"
	testhelpers "github.com/aimquant/aim/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMomentum(t *testing.T) {
	closes := []float64{100, 105, 110, 120}

	m := Momentum(closes, 4)
	require.NotNil(t, m)
	assert.InDelta(t, 0.20, *m, 1e-12)

	m = Momentum(closes, 2)
	require.NotNil(t, m)
	assert.InDelta(t, 120.0/110-1, *m, 1e-12)

	assert.Nil(t, Momentum(closes, 5))
	assert.Nil(t, Momentum([]float64{0, 1, 2}, 3), "non-positive start price")
}

func TestVolatility(t *testing.T) {
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 50
	}
	flatVol := Volatility(flat, 21)
	require.NotNil(t, flatVol, "flat prices have a known volatility")
	assert.Equal(t, 0.0, *flatVol)
	assert.Nil(t, Volatility(flat[:21], 21), "needs window+1 closes")

	wavy := make([]float64, 30)
	for i := range wavy {
		wavy[i] = 100 * (1 + 0.02*math.Sin(float64(i)))
	}
	v := Volatility(wavy, 21)
	require.NotNil(t, v)
	assert.Greater(t, *v, 0.0)
}

func TestLiquidity(t *testing.T) {
	closes := make([]float64, 20)
	volumes := make([]float64, 20)
	for i := range closes {
		closes[i] = 10
		volumes[i] = 99_900 // 999k traded per day
	}

	avgVol, avgDollar, score := Liquidity(closes, volumes, 20)
	require.NotNil(t, avgVol)
	require.NotNil(t, avgDollar)
	require.NotNil(t, score)
	assert.InDelta(t, 99_900, *avgVol, 1e-9)
	assert.InDelta(t, 999_000, *avgDollar, 1e-6)
	assert.InDelta(t, math.Log10(1+0.999)/3, *score, 1e-12)

	for i := range volumes {
		volumes[i] = 1e12
	}
	_, _, score = Liquidity(closes, volumes, 20)
	require.NotNil(t, score)
	assert.Equal(t, 1.0, *score, "score is capped at 1")

	avgVol, _, _ = Liquidity(closes[:10], volumes[:10], 20)
	assert.Nil(t, avgVol)
}

func TestExtract(t *testing.T) {
	e := NewExtractor(2, zerolog.Nop())

	_, ok := e.Extract("SHORT3", testhelpers.TrendingPrices("SHORT3", 62, 10, 0.001, 0.01, 1000))
	assert.False(t, ok)

	history := testhelpers.TrendingPrices("PETR4", 126, 30, 0.001, 0.01, 1_000_000)
	fs, ok := e.Extract("PETR4", history)
	require.True(t, ok)

	assert.Equal(t, "PETR4", fs.Ticker)
	assert.Equal(t, history[len(history)-1].Date, fs.Date)
	assert.NotNil(t, fs.Momentum3M)
	assert.NotNil(t, fs.Momentum6M)
	assert.Nil(t, fs.Momentum12M, "126 bars cannot cover 252 days")
	assert.NotNil(t, fs.Vol21D)
	assert.NotNil(t, fs.Vol63D)
	assert.Nil(t, fs.Vol126D, "126 returns need 127 closes")
	assert.NotNil(t, fs.LiquidityScore)
}

func TestExtract_IgnoresInputOrder(t *testing.T) {
	e := NewExtractor(1, zerolog.Nop())
	history := testhelpers.TrendingPrices("VALE3", 80, 60, 0.002, 0.01, 500_000)

	reversed := make([]domain.PricePoint, len(history))
	for i := range history {
		reversed[len(history)-1-i] = history[i]
	}

	a, ok := e.Extract("VALE3", history)
	require.True(t, ok)
	b, ok := e.Extract("VALE3", reversed)
	require.True(t, ok)
	assert.Equal(t, a, b)
}

func TestExtractUniverse(t *testing.T) {
	e := NewExtractor(3, zerolog.Nop())
	histories := map[string][]domain.PricePoint{
		"WEGE3": testhelpers.TrendingPrices("WEGE3", 100, 40, 0.001, 0.01, 200_000),
		"ABEV3": testhelpers.TrendingPrices("ABEV3", 100, 14, -0.001, 0.01, 900_000),
		"TINY3": testhelpers.TrendingPrices("TINY3", 10, 5, 0, 0.01, 100),
		"ITUB4": testhelpers.TrendingPrices("ITUB4", 100, 30, 0.0005, 0.01, 700_000),
	}

	sets, err := e.ExtractUniverse(context.Background(), histories)
	require.NoError(t, err)
	require.Len(t, sets, 3)
	assert.Equal(t, "ABEV3", sets[0].Ticker)
	assert.Equal(t, "ITUB4", sets[1].Ticker)
	assert.Equal(t, "WEGE3", sets[2].Ticker)
}

func TestExtractUniverse_Cancelled(t *testing.T) {
	e := NewExtractor(1, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ExtractUniverse(ctx, map[string][]domain.PricePoint{
		"WEGE3": testhelpers.TrendingPrices("WEGE3", 100, 40, 0.001, 0.01, 200_000),
	})
	assert.ErrorIs(t, err, context.Canceled)
}
