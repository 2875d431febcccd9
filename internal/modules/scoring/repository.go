package scoring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aimquant/aim/internal/database"
	"github.com/aimquant/aim/internal/domain"
	"github.com/aimquant/aim/internal/modules/allocation"
	"github.com/rs/zerolog"
)

// ErrNoScores is returned when no scores have been stored yet
var ErrNoScores = errors.New("no scores stored")

// Repository persists ScoreRecords keyed by (date, ticker)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new score repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "score_repository").Logger(),
	}
}

// Upsert replaces the scores of a date. Tickers missing from records are
// removed so that ranks for the date stay a contiguous 1..N.
func (r *Repository) Upsert(ctx context.Context, records []domain.ScoreRecord) error {
	if len(records) == 0 {
		return nil
	}
	date := database.FormatDate(records[0].Date)

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM signals WHERE date = ?`, date); err != nil {
			return fmt.Errorf("failed to clear scores for %s: %w", date, err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO signals
			(date, ticker, regime, score_momentum, score_quality, score_value,
			 score_volatility, score_liquidity, score_final, rank_universe)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare score insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx,
				date, rec.Ticker, string(rec.Regime),
				rec.Momentum, rec.Quality, rec.Value, rec.Volatility, rec.Liquidity,
				rec.Final, rec.Rank,
			); err != nil {
				return fmt.Errorf("failed to insert score for %s: %w", rec.Ticker, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Str("date", date).Int("records", len(records)).Msg("Stored scores")
	return nil
}

// ForDate returns the scores of date in rank order
func (r *Repository) ForDate(ctx context.Context, date time.Time) ([]domain.ScoreRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT date, ticker, regime, score_momentum, score_quality,
		score_value, score_volatility, score_liquidity, score_final, rank_universe
		FROM signals WHERE date = ? ORDER BY rank_universe`, database.FormatDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	var records []domain.ScoreRecord
	for rows.Next() {
		var (
			rec         domain.ScoreRecord
			day, regime string
		)
		if err := rows.Scan(&day, &rec.Ticker, &regime, &rec.Momentum, &rec.Quality, &rec.Value,
			&rec.Volatility, &rec.Liquidity, &rec.Final, &rec.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		if rec.Date, err = database.ParseDate(day); err != nil {
			return nil, fmt.Errorf("invalid score date %q: %w", day, err)
		}
		rec.Regime = domain.Regime(regime)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TopRanked returns the n best-ranked scores of date as allocation candidates,
// joined with the asset sector and the 63-day volatility of the same date.
// A non-positive n returns every score of the date.
func (r *Repository) TopRanked(ctx context.Context, date time.Time, n int) ([]allocation.Candidate, error) {
	query := `SELECT s.date, s.ticker, s.regime, s.score_momentum, s.score_quality,
			s.score_value, s.score_volatility, s.score_liquidity, s.score_final, s.rank_universe,
			COALESCE(a.sector, ''), f.vol_63d
		FROM signals s
		LEFT JOIN assets a ON a.ticker = s.ticker
		LEFT JOIN features f ON f.ticker = s.ticker AND f.date = s.date
		WHERE s.date = ?
		ORDER BY s.rank_universe`
	args := []any{database.FormatDate(date)}
	if n > 0 {
		query += " LIMIT ?"
		args = append(args, n)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranked candidates: %w", err)
	}
	defer rows.Close()

	candidates := []allocation.Candidate{}
	for rows.Next() {
		var (
			c           allocation.Candidate
			day, regime string
			vol         sql.NullFloat64
		)
		if err := rows.Scan(&day, &c.Ticker, &regime, &c.Momentum, &c.Quality, &c.Value,
			&c.ScoreRecord.Volatility, &c.Liquidity, &c.Final, &c.Rank, &c.Sector, &vol); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		if c.Date, err = database.ParseDate(day); err != nil {
			return nil, fmt.Errorf("invalid score date %q: %w", day, err)
		}
		c.Regime = domain.Regime(regime)
		c.Vol63D = database.FloatPtr(vol)
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// LatestDate returns the most recent date with stored scores
func (r *Repository) LatestDate(ctx context.Context) (time.Time, error) {
	var day sql.NullString
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(date) FROM signals`).Scan(&day); err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest score date: %w", err)
	}
	if !day.Valid {
		return time.Time{}, ErrNoScores
	}
	return database.ParseDate(day.String)
}
