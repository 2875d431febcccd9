package features

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aimquant/aim/internal/database"
	"github.com/aimquant/aim/internal/domain"
	"github.com/rs/zerolog"
)

// Repository persists FeatureSets keyed by (ticker, date)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new feature repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "feature_repository").Logger(),
	}
}

// Upsert stores feature sets, replacing earlier rows for the same (ticker, date)
func (r *Repository) Upsert(ctx context.Context, sets []domain.FeatureSet) error {
	if len(sets) == 0 {
		return nil
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO features
			(ticker, date, momentum_3m, momentum_6m, momentum_12m, vol_21d, vol_63d, vol_126d,
			 avg_volume, avg_dollar_volume, liquidity_score)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(ticker, date) DO UPDATE SET
			  momentum_3m = excluded.momentum_3m,
			  momentum_6m = excluded.momentum_6m,
			  momentum_12m = excluded.momentum_12m,
			  vol_21d = excluded.vol_21d,
			  vol_63d = excluded.vol_63d,
			  vol_126d = excluded.vol_126d,
			  avg_volume = excluded.avg_volume,
			  avg_dollar_volume = excluded.avg_dollar_volume,
			  liquidity_score = excluded.liquidity_score`)
		if err != nil {
			return fmt.Errorf("failed to prepare feature upsert: %w", err)
		}
		defer stmt.Close()

		for _, fs := range sets {
			_, err := stmt.ExecContext(ctx,
				fs.Ticker,
				database.FormatDate(fs.Date),
				database.NullFloat(fs.Momentum3M),
				database.NullFloat(fs.Momentum6M),
				database.NullFloat(fs.Momentum12M),
				database.NullFloat(fs.Vol21D),
				database.NullFloat(fs.Vol63D),
				database.NullFloat(fs.Vol126D),
				database.NullFloat(fs.AvgVolume),
				database.NullFloat(fs.AvgDollarVolume),
				database.NullFloat(fs.LiquidityScore),
			)
			if err != nil {
				return fmt.Errorf("failed to upsert features for %s: %w", fs.Ticker, err)
			}
		}
		return nil
	})
}

// ForDate returns every feature set stored for date, ordered by ticker
func (r *Repository) ForDate(ctx context.Context, date time.Time) ([]domain.FeatureSet, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ticker, date, momentum_3m, momentum_6m, momentum_12m,
		vol_21d, vol_63d, vol_126d, avg_volume, avg_dollar_volume, liquidity_score
		FROM features WHERE date = ? ORDER BY ticker`, database.FormatDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	var sets []domain.FeatureSet
	for rows.Next() {
		var (
			fs                           domain.FeatureSet
			day                          string
			m3, m6, m12, v21, v63, v126  sql.NullFloat64
			avgVol, avgDollar, liquidity sql.NullFloat64
		)
		if err := rows.Scan(&fs.Ticker, &day, &m3, &m6, &m12, &v21, &v63, &v126, &avgVol, &avgDollar, &liquidity); err != nil {
			return nil, fmt.Errorf("failed to scan features: %w", err)
		}
		if fs.Date, err = database.ParseDate(day); err != nil {
			return nil, fmt.Errorf("invalid feature date %q: %w", day, err)
		}
		fs.Momentum3M = database.FloatPtr(m3)
		fs.Momentum6M = database.FloatPtr(m6)
		fs.Momentum12M = database.FloatPtr(m12)
		fs.Vol21D = database.FloatPtr(v21)
		fs.Vol63D = database.FloatPtr(v63)
		fs.Vol126D = database.FloatPtr(v126)
		fs.AvgVolume = database.FloatPtr(avgVol)
		fs.AvgDollarVolume = database.FloatPtr(avgDollar)
		fs.LiquidityScore = database.FloatPtr(liquidity)
		sets = append(sets, fs)
	}
	return sets, rows.Err()
}
