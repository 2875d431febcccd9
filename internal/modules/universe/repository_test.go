package universe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aimquant/aim/internal/domain"
	testhelpers "github.com/aimquant/aim/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Assets(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "universe_assets")
	defer cleanup()

	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.UpsertAssets(ctx, []domain.Asset{
		{Ticker: "vale3", Name: "Vale", Sector: "Mineração"},
		{Ticker: "PETR4", Name: "Petrobras", Sector: "Petróleo"},
		{Ticker: domain.IndexTicker, Name: "Ibovespa", IsIndex: true},
	}))
	require.NoError(t, repo.UpsertAssets(ctx, []domain.Asset{
		{Ticker: "PETR4", Name: "Petrobras PN", Sector: "Energia"},
	}))

	assets, err := repo.Assets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Asset{
		{Ticker: "PETR4", Name: "Petrobras PN", Sector: "Energia"},
		{Ticker: "VALE3", Name: "Vale", Sector: "Mineração"},
	}, assets)

	sectors, err := repo.Sectors(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"PETR4": "Energia", "VALE3": "Mineração"}, sectors)
}

func TestRepository_Prices(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "universe_prices")
	defer cleanup()

	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	_, err := repo.LatestPriceDate(ctx)
	assert.True(t, errors.Is(err, ErrNoPrices))

	bars := testhelpers.TrendingPrices("PETR4", 30, 30, 0.001, 0.01, 1e6)
	require.NoError(t, repo.UpsertPrices(ctx, bars))
	require.NoError(t, repo.UpsertPrices(ctx, testhelpers.TrendingPrices("VALE3", 10, 60, 0, 0, 1e6)))

	last := bars[len(bars)-1].Date
	latest, err := repo.LatestPriceDate(ctx)
	require.NoError(t, err)
	assert.True(t, last.Equal(latest))

	history, err := repo.PriceHistory(ctx, "PETR4", last, 5)
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i, p := range history {
		assert.True(t, bars[25+i].Date.Equal(p.Date))
		assert.InDelta(t, bars[25+i].Close, p.Close, 1e-9)
	}

	all, err := repo.PriceHistory(ctx, "PETR4", bars[9].Date, 0)
	require.NoError(t, err)
	assert.Len(t, all, 10)

	histories, err := repo.PriceHistories(ctx, []string{"PETR4", "VALE3", "ITUB4"}, last, 0)
	require.NoError(t, err)
	assert.Len(t, histories, 2)
	assert.Len(t, histories["VALE3"], 10)
	assert.NotContains(t, histories, "ITUB4")
}

func TestRepository_MacroSeries(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "universe_macro")
	defer cleanup()

	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	series := testhelpers.MacroSeries(domain.IndicatorSELIC, 20, 10.5, 0.01)
	require.NoError(t, repo.UpsertMacro(ctx, series))
	require.NoError(t, repo.UpsertMacro(ctx, testhelpers.MacroSeries(domain.IndicatorUSDBRL, 20, 5, 0)))

	points, err := repo.MacroSeries(ctx, domain.IndicatorSELIC, series[14].Date, 3)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.InDelta(t, 10.62, points[0].Value, 1e-9)
	assert.InDelta(t, 10.64, points[2].Value, 1e-9)
	assert.Equal(t, domain.IndicatorSELIC, points[2].Indicator)

	none, err := repo.MacroSeries(ctx, domain.IndicatorIPCA, series[19].Date, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_LatestFundamentals(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "universe_fundamentals")
	defer cleanup()

	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()
	march := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	june := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpsertFundamentals(ctx, []domain.Fundamentals{
		{Ticker: "PETR4", ReferenceDate: march, PE: domain.Float(4), ROE: domain.Float(0.25)},
		{Ticker: "PETR4", ReferenceDate: june, PE: domain.Float(5)},
		{Ticker: "VALE3", ReferenceDate: march, PB: domain.Float(1.4)},
	}))

	tests := []struct {
		name   string
		asOf   time.Time
		wantPE map[string]*float64
	}{
		{"before any report", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), map[string]*float64{}},
		{"after first quarter", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			map[string]*float64{"PETR4": domain.Float(4), "VALE3": nil}},
		{"after second quarter", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			map[string]*float64{"PETR4": domain.Float(5), "VALE3": nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.LatestFundamentals(ctx, tt.asOf)
			require.NoError(t, err)
			require.Len(t, got, len(tt.wantPE))
			for ticker, pe := range tt.wantPE {
				assert.Equal(t, pe, got[ticker].PE, ticker)
			}
		})
	}

	latest, err := repo.LatestFundamentals(ctx, june)
	require.NoError(t, err)
	assert.Nil(t, latest["PETR4"].ROE)
	assert.Equal(t, 1.4, *latest["VALE3"].PB)
}
