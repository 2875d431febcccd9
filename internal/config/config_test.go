package config

import (
	"path/filepath"
	"testing"

	"github.com/aimquant/aim/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AIM_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, domain.StrategyScoreWeighted, cfg.DefaultStrategy)
	assert.Equal(t, 10, cfg.DefaultPositions)
	assert.Equal(t, domain.ToleranceModerate, cfg.RiskTolerance)
	assert.Equal(t, filepath.Join(dir, "aim.db"), cfg.DatabasePath())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AIM_DATA_DIR", t.TempDir())
	t.Setenv("AIM_DEFAULT_STRATEGY", "risk_parity")
	t.Setenv("AIM_DEFAULT_POSITIONS", "15")
	t.Setenv("AIM_RISK_TOLERANCE", "aggressive")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, domain.StrategyRiskParity, cfg.DefaultStrategy)
	assert.Equal(t, 15, cfg.DefaultPositions)
	assert.Equal(t, domain.ToleranceAggressive, cfg.RiskTolerance)
	assert.True(t, cfg.LogPretty)
}

func TestLoad_InvalidStrategy(t *testing.T) {
	t.Setenv("AIM_DATA_DIR", t.TempDir())
	t.Setenv("AIM_DEFAULT_STRATEGY", "martingale")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{DataDir: "/tmp", DatabaseName: "aim", DefaultPositions: 5, FeatureWorkers: 2}, false},
		{"missing data dir", Config{DatabaseName: "aim", DefaultPositions: 5, FeatureWorkers: 2}, true},
		{"zero positions", Config{DataDir: "/tmp", DatabaseName: "aim", FeatureWorkers: 2}, true},
		{"zero workers", Config{DataDir: "/tmp", DatabaseName: "aim", DefaultPositions: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
