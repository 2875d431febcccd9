package universe

import (
	"testing"
	"time"

	"github.com/aimquant/aim/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(ticker string, day int, closePrice float64) domain.PricePoint {
	return domain.PricePoint{
		Ticker: ticker,
		Date:   time.Date(2024, 6, day, 0, 0, 0, 0, time.UTC),
		Open:   closePrice,
		High:   closePrice,
		Low:    closePrice,
		Close:  closePrice,
		Volume: 1000,
	}
}

func TestValidator_Check(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	prev := bar("PETR4", 3, 10)

	tests := []struct {
		name   string
		bar    domain.PricePoint
		prev   *domain.PricePoint
		reason string
	}{
		{"normal move", bar("PETR4", 4, 10.5), &prev, ""},
		{"first bar", bar("PETR4", 4, 10.5), nil, ""},
		{"spike", bar("PETR4", 4, 120), &prev, "spike_detected"},
		{"crash", bar("PETR4", 4, 0.5), &prev, "crash_detected"},
		{"zero close", bar("PETR4", 4, 0), nil, "below_minimum"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.reason, v.Check(tt.bar, tt.prev))
		})
	}
}

func TestValidator_CleanInterpolatesSpike(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	prices := []domain.PricePoint{
		bar("PETR4", 5, 12),
		bar("PETR4", 3, 10),
		bar("PETR4", 4, 500),
	}

	cleaned, adjustments := v.Clean(prices)
	require.Len(t, cleaned, 3)
	assert.Equal(t, 10.0, cleaned[0].Close)
	assert.InDelta(t, 11.0, cleaned[1].Close, 1e-9)
	assert.Equal(t, 12.0, cleaned[2].Close)

	require.Len(t, adjustments, 1)
	assert.Equal(t, "linear", adjustments[0].Method)
	assert.Equal(t, "spike_detected", adjustments[0].Reason)
	assert.Equal(t, 500.0, adjustments[0].OriginalClose)
}

func TestValidator_CleanEdges(t *testing.T) {
	v := NewValidator(zerolog.Nop())

	t.Run("leading bad bar is back-filled", func(t *testing.T) {
		cleaned, adjustments := v.Clean([]domain.PricePoint{bar("VALE3", 3, 0), bar("VALE3", 4, 60)})
		require.Len(t, cleaned, 2)
		assert.Equal(t, 60.0, cleaned[0].Close)
		assert.Equal(t, "backward_fill", adjustments[0].Method)
	})

	t.Run("trailing bad bar is forward-filled", func(t *testing.T) {
		cleaned, adjustments := v.Clean([]domain.PricePoint{bar("VALE3", 3, 60), bar("VALE3", 4, 1)})
		require.Len(t, cleaned, 2)
		assert.Equal(t, 60.0, cleaned[1].Close)
		assert.Equal(t, "forward_fill", adjustments[0].Method)
	})

	t.Run("isolated bad bar is dropped", func(t *testing.T) {
		cleaned, adjustments := v.Clean([]domain.PricePoint{bar("VALE3", 3, -1)})
		assert.Empty(t, cleaned)
		require.Len(t, adjustments, 1)
		assert.Equal(t, "dropped", adjustments[0].Method)
	})
}

func TestValidator_CleanRepairsRange(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	b := bar("ITUB4", 3, 30)
	b.High = 29
	b.Low = 31

	cleaned, adjustments := v.Clean([]domain.PricePoint{b})
	require.Len(t, cleaned, 1)
	assert.Equal(t, 30.0, cleaned[0].High)
	assert.Equal(t, 30.0, cleaned[0].Low)
	require.Len(t, adjustments, 1)
	assert.Equal(t, "ohlc", adjustments[0].Method)
}

func TestValidator_CleanGroupsByTicker(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	cleaned, adjustments := v.Clean([]domain.PricePoint{
		bar("VALE3", 3, 60),
		bar("PETR4", 3, 10),
		bar("VALE3", 4, 61),
	})
	require.Len(t, cleaned, 3)
	assert.Empty(t, adjustments)
	assert.Equal(t, "PETR4", cleaned[0].Ticker)
	assert.Equal(t, "VALE3", cleaned[1].Ticker)
	assert.Equal(t, "VALE3", cleaned[2].Ticker)
}
