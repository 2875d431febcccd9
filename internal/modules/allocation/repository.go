package allocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aimquant/aim/internal/database"
	"github.com/aimquant/aim/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrSnapshotNotFound is returned when no snapshot exists under a name
var ErrSnapshotNotFound = errors.New("portfolio snapshot not found")

// Snapshot is a named, persisted allocation run
type Snapshot struct {
	ID          string
	Name        string
	Date        time.Time
	Regime      domain.Regime
	Strategy    domain.Strategy
	Holdings    []domain.Holding
	Diagnostics domain.AllocationDiagnostics
	CreatedAt   time.Time
}

// Repository stores portfolio snapshots in the portfolios and portfolio_holdings tables
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new portfolio snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "portfolio_repository").Logger(),
	}
}

// Save persists an allocation result under name and returns the snapshot id
func (r *Repository) Save(ctx context.Context, name string, date time.Time, regime domain.Regime,
	strategy domain.Strategy, result AllocationResult) (string, error) {
	blob, err := msgpack.Marshal(result.Diagnostics)
	if err != nil {
		return "", fmt.Errorf("failed to encode diagnostics: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO portfolios
			(id, name, date, regime, strategy, diagnostics, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, name, database.FormatDate(date), string(regime), string(strategy), blob, now.UnixNano(),
		); err != nil {
			return fmt.Errorf("failed to insert portfolio: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO portfolio_holdings
			(portfolio_id, ticker, sector, weight, score, asset_capped, sector_capped)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare holding insert: %w", err)
		}
		defer stmt.Close()

		for _, h := range result.Holdings {
			if _, err := stmt.ExecContext(ctx, id, h.Ticker, h.Sector, h.Weight, h.Score,
				boolToInt(h.AssetCapped), boolToInt(h.SectorCapped)); err != nil {
				return fmt.Errorf("failed to insert holding %s: %w", h.Ticker, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	r.log.Info().
		Str("id", id).
		Str("name", name).
		Int("holdings", len(result.Holdings)).
		Msg("Saved portfolio snapshot")
	return id, nil
}

// Latest returns the most recent snapshot saved under name
func (r *Repository) Latest(ctx context.Context, name string) (Snapshot, error) {
	var (
		snap      Snapshot
		date      string
		regime    string
		strategy  string
		blob      []byte
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, name, date, regime, strategy, diagnostics, created_at
		FROM portfolios WHERE name = ? ORDER BY created_at DESC LIMIT 1`, name).
		Scan(&snap.ID, &snap.Name, &date, &regime, &strategy, &blob, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to query portfolio %s: %w", name, err)
	}

	if snap.Date, err = database.ParseDate(date); err != nil {
		return Snapshot{}, err
	}
	snap.Regime = domain.Regime(regime)
	snap.Strategy = domain.Strategy(strategy)
	snap.CreatedAt = time.Unix(0, createdAt).UTC()
	if len(blob) > 0 {
		if err := msgpack.Unmarshal(blob, &snap.Diagnostics); err != nil {
			return Snapshot{}, fmt.Errorf("failed to decode diagnostics: %w", err)
		}
	}

	rows, err := r.db.QueryContext(ctx, `SELECT ticker, sector, weight, score, asset_capped, sector_capped
		FROM portfolio_holdings WHERE portfolio_id = ? ORDER BY weight DESC, ticker`, snap.ID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	snap.Holdings = []domain.Holding{}
	for rows.Next() {
		var h domain.Holding
		var assetCapped, sectorCapped int
		if err := rows.Scan(&h.Ticker, &h.Sector, &h.Weight, &h.Score, &assetCapped, &sectorCapped); err != nil {
			return Snapshot{}, fmt.Errorf("failed to scan holding: %w", err)
		}
		h.AssetCapped = assetCapped != 0
		h.SectorCapped = sectorCapped != 0
		snap.Holdings = append(snap.Holdings, h)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("error iterating holdings: %w", err)
	}

	return snap, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
