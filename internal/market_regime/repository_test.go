package market_regime

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

func TestRepository_UpsertIsLastWriterWins(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "regime")
	defer cleanup()

	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()
	date := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)

	first := domain.RegimeState{
		Date:       date,
		Regime:     domain.RegimeRiskOff,
		ScoreTotal: -4.2,
		Components: domain.RegimeComponents{YieldCurve: domain.Float(-2)},
	}
	require.NoError(t, repo.Upsert(ctx, first))

	second := domain.RegimeState{
		Date:       date,
		Regime:     domain.RegimeTransition,
		ScoreTotal: 1.1,
		Components: domain.RegimeComponents{IndexTrend: domain.Float(1)},
	}
	require.NoError(t, repo.Upsert(ctx, second))

	got, err := repo.ForDate(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, domain.RegimeTransition, got.Regime)
	assert.InDelta(t, 1.1, got.ScoreTotal, 1e-12)
	assert.Nil(t, got.Components.YieldCurve)
	require.NotNil(t, got.Components.IndexTrend)
	assert.Equal(t, 1.0, *got.Components.IndexTrend)

	history, err := repo.History(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRepository_ForDateMissing(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "regime")
	defer cleanup()

	repo := NewRepository(db.Conn(), zerolog.Nop())
	_, err := repo.ForDate(context.Background(), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.True(t, errors.Is(err, ErrNoRegime))
}

func TestRepository_CurrentFallsBackToTransition(t *testing.T) {
	db, cleanup := testhelpers.NewTestDB(t, "regime")
	defer cleanup()

	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	current, err := repo.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RegimeTransition, current.Regime)

	for i, regime := range []domain.Regime{domain.RegimeRiskOn, domain.RegimeRiskOff} {
		require.NoError(t, repo.Upsert(ctx, domain.RegimeState{
			Date:   time.Date(2024, 1, 2+i, 0, 0, 0, 0, time.UTC),
			Regime: regime,
		}))
	}

	current, err = repo.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RegimeRiskOff, current.Regime)

	history, err := repo.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.RegimeRiskOff, history[0].Regime)
}
