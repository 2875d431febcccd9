package market_regime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aimquant/aim/internal/database"
	"github.com/aimquant/aim/internal/domain"
	"github.com/rs/zerolog"
)

// ErrNoRegime is returned when no regime was stored for the requested date
var ErrNoRegime = errors.New("no regime stored")

// Repository persists one RegimeState per date (last writer wins)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new regime repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "regime_repository").Logger(),
	}
}

// Upsert stores the state, replacing any earlier run for the same date
func (r *Repository) Upsert(ctx context.Context, state domain.RegimeState) error {
	query := `INSERT INTO regime_state
	          (date, regime, score_total, score_yield_curve, score_risk_spread,
	           score_index_trend, score_capital_flow, score_liquidity, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(date) DO UPDATE SET
	            regime = excluded.regime,
	            score_total = excluded.score_total,
	            score_yield_curve = excluded.score_yield_curve,
	            score_risk_spread = excluded.score_risk_spread,
	            score_index_trend = excluded.score_index_trend,
	            score_capital_flow = excluded.score_capital_flow,
	            score_liquidity = excluded.score_liquidity,
	            created_at = excluded.created_at`

	_, err := r.db.ExecContext(ctx, query,
		database.FormatDate(state.Date),
		string(state.Regime),
		state.ScoreTotal,
		database.NullFloat(state.Components.YieldCurve),
		database.NullFloat(state.Components.RiskSpread),
		database.NullFloat(state.Components.IndexTrend),
		database.NullFloat(state.Components.CapitalFlow),
		database.NullFloat(state.Components.LiquiditySentiment),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert regime for %s: %w", database.FormatDate(state.Date), err)
	}

	r.log.Debug().
		Str("date", database.FormatDate(state.Date)).
		Str("regime", string(state.Regime)).
		Msg("Stored regime state")
	return nil
}

// ForDate returns the state stored for date, or ErrNoRegime
func (r *Repository) ForDate(ctx context.Context, date time.Time) (domain.RegimeState, error) {
	row := r.db.QueryRowContext(ctx, selectRegime+` WHERE date = ?`, database.FormatDate(date))
	state, err := scanRegime(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RegimeState{}, fmt.Errorf("%w for %s", ErrNoRegime, database.FormatDate(date))
	}
	return state, err
}

// Current returns the most recent state. With no history yet it returns a
// neutral TRANSITION state dated today.
func (r *Repository) Current(ctx context.Context) (domain.RegimeState, error) {
	row := r.db.QueryRowContext(ctx, selectRegime+` ORDER BY date DESC LIMIT 1`)
	state, err := scanRegime(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RegimeState{
			Date:   domain.TruncateDate(time.Now()),
			Regime: domain.RegimeTransition,
		}, nil
	}
	return state, err
}

// History returns up to limit states, newest first
func (r *Repository) History(ctx context.Context, limit int) ([]domain.RegimeState, error) {
	rows, err := r.db.QueryContext(ctx, selectRegime+` ORDER BY date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query regime history: %w", err)
	}
	defer rows.Close()

	var states []domain.RegimeState
	for rows.Next() {
		state, err := scanRegime(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

const selectRegime = `SELECT date, regime, score_total, score_yield_curve, score_risk_spread,
	score_index_trend, score_capital_flow, score_liquidity FROM regime_state`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRegime(s scanner) (domain.RegimeState, error) {
	var (
		date, regime                                   string
		total                                          float64
		yieldCurve, riskSpread, trend, flow, liquidity sql.NullFloat64
	)
	if err := s.Scan(&date, &regime, &total, &yieldCurve, &riskSpread, &trend, &flow, &liquidity); err != nil {
		return domain.RegimeState{}, err
	}

	parsed, err := database.ParseDate(date)
	if err != nil {
		return domain.RegimeState{}, fmt.Errorf("invalid regime date %q: %w", date, err)
	}

	return domain.RegimeState{
		Date:       parsed,
		Regime:     domain.Regime(regime),
		ScoreTotal: total,
		Components: domain.RegimeComponents{
			YieldCurve:         database.FloatPtr(yieldCurve),
			RiskSpread:         database.FloatPtr(riskSpread),
			IndexTrend:         database.FloatPtr(trend),
			CapitalFlow:        database.FloatPtr(flow),
			LiquiditySentiment: database.FloatPtr(liquidity),
		},
	}, nil
}
