// Package universe stores and loads the tradable universe and its market data.
package universe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aimquant/aim/internal/database"
	"github.com/aimquant/aim/internal/domain"
	"github.com/rs/zerolog"
)

// ErrNoPrices is returned when no price has been stored yet
var ErrNoPrices = errors.New("no prices stored")

// Repository reads and writes assets, prices, macro series and fundamentals
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new universe repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "universe_repository").Logger(),
	}
}

// UpsertAssets inserts or updates universe members
func (r *Repository) UpsertAssets(ctx context.Context, assets []domain.Asset) error {
	now := time.Now().Unix()
	return r.batch(ctx, "asset", len(assets), `INSERT INTO assets (ticker, name, sector, is_index, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			name = excluded.name,
			sector = excluded.sector,
			is_index = excluded.is_index,
			updated_at = excluded.updated_at`,
		func(stmt *sql.Stmt, i int) error {
			a := assets[i]
			_, err := stmt.ExecContext(ctx, strings.ToUpper(a.Ticker), a.Name, a.Sector, boolToInt(a.IsIndex), now)
			return err
		})
}

// Assets returns every tradable asset ordered by ticker. Index series are excluded.
func (r *Repository) Assets(ctx context.Context) ([]domain.Asset, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ticker, name, sector, is_index
		FROM assets WHERE is_index = 0 ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	assets := []domain.Asset{}
	for rows.Next() {
		var a domain.Asset
		var isIndex int
		if err := rows.Scan(&a.Ticker, &a.Name, &a.Sector, &isIndex); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		a.IsIndex = isIndex != 0
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}
	return assets, nil
}

// Sectors maps each known ticker to its sector
func (r *Repository) Sectors(ctx context.Context) (map[string]string, error) {
	assets, err := r.Assets(ctx)
	if err != nil {
		return nil, err
	}
	sectors := make(map[string]string, len(assets))
	for _, a := range assets {
		sectors[a.Ticker] = a.Sector
	}
	return sectors, nil
}

// UpsertPrices stores daily bars; a bar already stored for (ticker, date) is replaced
func (r *Repository) UpsertPrices(ctx context.Context, prices []domain.PricePoint) error {
	return r.batch(ctx, "price", len(prices), `INSERT INTO prices (ticker, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume`,
		func(stmt *sql.Stmt, i int) error {
			p := prices[i]
			_, err := stmt.ExecContext(ctx, strings.ToUpper(p.Ticker), database.FormatDate(p.Date),
				p.Open, p.High, p.Low, p.Close, p.Volume)
			return err
		})
}

// PriceHistory returns up to limit bars of ticker ending at end, oldest first.
// A non-positive limit returns the whole history up to end.
func (r *Repository) PriceHistory(ctx context.Context, ticker string, end time.Time, limit int) ([]domain.PricePoint, error) {
	query := `SELECT ticker, date, open, high, low, close, volume FROM prices
		WHERE ticker = ? AND date <= ? ORDER BY date DESC`
	args := []any{ticker, database.FormatDate(end)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices for %s: %w", ticker, err)
	}
	defer rows.Close()

	prices := []domain.PricePoint{}
	for rows.Next() {
		var p domain.PricePoint
		var date string
		if err := rows.Scan(&p.Ticker, &date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		if p.Date, err = database.ParseDate(date); err != nil {
			return nil, fmt.Errorf("invalid price date %q: %w", date, err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	sort.Slice(prices, func(i, j int) bool { return prices[i].Date.Before(prices[j].Date) })
	return prices, nil
}

// PriceHistories returns the histories of several tickers keyed by ticker.
// Tickers without any bar are left out.
func (r *Repository) PriceHistories(ctx context.Context, tickers []string, end time.Time, limit int) (map[string][]domain.PricePoint, error) {
	histories := make(map[string][]domain.PricePoint, len(tickers))
	for _, t := range tickers {
		prices, err := r.PriceHistory(ctx, t, end, limit)
		if err != nil {
			return nil, err
		}
		if len(prices) > 0 {
			histories[t] = prices
		}
	}
	return histories, nil
}

// LatestPriceDate returns the most recent date with a stored bar
func (r *Repository) LatestPriceDate(ctx context.Context) (time.Time, error) {
	var date sql.NullString
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(date) FROM prices`).Scan(&date); err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest price date: %w", err)
	}
	if !date.Valid {
		return time.Time{}, ErrNoPrices
	}
	return database.ParseDate(date.String)
}

// UpsertMacro stores macro observations keyed by (indicator, date)
func (r *Repository) UpsertMacro(ctx context.Context, points []domain.MacroPoint) error {
	return r.batch(ctx, "macro point", len(points), `INSERT INTO macro_indicators (indicator, date, value)
		VALUES (?, ?, ?)
		ON CONFLICT(indicator, date) DO UPDATE SET value = excluded.value`,
		func(stmt *sql.Stmt, i int) error {
			p := points[i]
			_, err := stmt.ExecContext(ctx, string(p.Indicator), database.FormatDate(p.Date), p.Value)
			return err
		})
}

// MacroSeries returns up to limit observations of indicator ending at end, oldest first
func (r *Repository) MacroSeries(ctx context.Context, indicator domain.MacroIndicator, end time.Time, limit int) ([]domain.MacroPoint, error) {
	query := `SELECT indicator, date, value FROM macro_indicators
		WHERE indicator = ? AND date <= ? ORDER BY date DESC`
	args := []any{string(indicator), database.FormatDate(end)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", indicator, err)
	}
	defer rows.Close()

	points := []domain.MacroPoint{}
	for rows.Next() {
		var p domain.MacroPoint
		var name, date string
		if err := rows.Scan(&name, &date, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan macro point: %w", err)
		}
		p.Indicator = domain.MacroIndicator(name)
		if p.Date, err = database.ParseDate(date); err != nil {
			return nil, fmt.Errorf("invalid macro date %q: %w", date, err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating macro points: %w", err)
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

// UpsertFundamentals stores fundamental snapshots keyed by (ticker, reference date)
func (r *Repository) UpsertFundamentals(ctx context.Context, items []domain.Fundamentals) error {
	return r.batch(ctx, "fundamentals", len(items), `INSERT INTO fundamentals
		(ticker, reference_date, pe, pb, dividend_yield, roe, net_margin, roic)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker, reference_date) DO UPDATE SET
			pe = excluded.pe,
			pb = excluded.pb,
			dividend_yield = excluded.dividend_yield,
			roe = excluded.roe,
			net_margin = excluded.net_margin,
			roic = excluded.roic`,
		func(stmt *sql.Stmt, i int) error {
			f := items[i]
			_, err := stmt.ExecContext(ctx, strings.ToUpper(f.Ticker), database.FormatDate(f.ReferenceDate),
				database.NullFloat(f.PE), database.NullFloat(f.PB), database.NullFloat(f.DividendYield),
				database.NullFloat(f.ROE), database.NullFloat(f.NetMargin), database.NullFloat(f.ROIC))
			return err
		})
}

// LatestFundamentals returns, per ticker, the most recent snapshot dated on or before asOf
func (r *Repository) LatestFundamentals(ctx context.Context, asOf time.Time) (map[string]domain.Fundamentals, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT f.ticker, f.reference_date, f.pe, f.pb, f.dividend_yield,
			f.roe, f.net_margin, f.roic
		FROM fundamentals f
		JOIN (SELECT ticker, MAX(reference_date) AS reference_date
			FROM fundamentals WHERE reference_date <= ? GROUP BY ticker) latest
		ON f.ticker = latest.ticker AND f.reference_date = latest.reference_date`,
		database.FormatDate(asOf))
	if err != nil {
		return nil, fmt.Errorf("failed to query fundamentals: %w", err)
	}
	defer rows.Close()

	result := make(map[string]domain.Fundamentals)
	for rows.Next() {
		var (
			f                             domain.Fundamentals
			date                          string
			pe, pb, dy, roe, margin, roic sql.NullFloat64
		)
		if err := rows.Scan(&f.Ticker, &date, &pe, &pb, &dy, &roe, &margin, &roic); err != nil {
			return nil, fmt.Errorf("failed to scan fundamentals: %w", err)
		}
		if f.ReferenceDate, err = database.ParseDate(date); err != nil {
			return nil, fmt.Errorf("invalid reference date %q: %w", date, err)
		}
		f.PE = database.FloatPtr(pe)
		f.PB = database.FloatPtr(pb)
		f.DividendYield = database.FloatPtr(dy)
		f.ROE = database.FloatPtr(roe)
		f.NetMargin = database.FloatPtr(margin)
		f.ROIC = database.FloatPtr(roic)
		result[f.Ticker] = f
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fundamentals: %w", err)
	}
	return result, nil
}

// batch runs one prepared statement n times inside a single transaction
func (r *Repository) batch(ctx context.Context, kind string, n int, query string, exec func(*sql.Stmt, int) error) error {
	if n == 0 {
		return nil
	}
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare %s upsert: %w", kind, err)
		}
		defer stmt.Close()

		for i := 0; i < n; i++ {
			if err := exec(stmt, i); err != nil {
				return fmt.Errorf("failed to upsert %s: %w", kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Str("kind", kind).Int("rows", n).Msg("Upserted rows")
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
