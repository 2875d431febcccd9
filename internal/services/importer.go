package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/aimquant/aim/internal/modules/universe"
	"github.com/rs/zerolog"
)

// ImportStats summarizes one import call
type ImportStats struct {
	Rows     int
	Adjusted int
	Dropped  int
}

// Importer loads universe definitions and market data files into storage.
// Price bars pass through the price validator before they are stored.
type Importer struct {
	repo      *universe.Repository
	validator *universe.Validator
	log       zerolog.Logger
}

// NewImporter creates a new importer over db
func NewImporter(db *sql.DB, log zerolog.Logger) *Importer {
	return &Importer{
		repo:      universe.NewRepository(db, log),
		validator: universe.NewValidator(log),
		log:       log.With().Str("component", "importer").Logger(),
	}
}

// ImportUniverse stores the assets listed in a YAML universe file
func (i *Importer) ImportUniverse(ctx context.Context, path string) (ImportStats, error) {
	assets, err := universe.LoadFile(path)
	if err != nil {
		return ImportStats{}, err
	}
	if err := i.repo.UpsertAssets(ctx, assets); err != nil {
		return ImportStats{}, err
	}
	i.log.Info().Str("file", path).Int("assets", len(assets)).Msg("Imported universe")
	return ImportStats{Rows: len(assets)}, nil
}

// ImportPrices reads a price CSV, repairs abnormal bars and stores the result
func (i *Importer) ImportPrices(ctx context.Context, r io.Reader) (ImportStats, error) {
	prices, err := universe.ReadPricesCSV(r)
	if err != nil {
		return ImportStats{}, fmt.Errorf("prices: %w", err)
	}

	cleaned, adjustments := i.validator.Clean(prices)
	stats := ImportStats{Rows: len(cleaned), Adjusted: len(adjustments)}
	for _, a := range adjustments {
		if a.Method == "dropped" {
			stats.Dropped++
			stats.Adjusted--
		}
	}

	if err := i.repo.UpsertPrices(ctx, cleaned); err != nil {
		return ImportStats{}, err
	}
	i.log.Info().
		Int("bars", stats.Rows).
		Int("adjusted", stats.Adjusted).
		Int("dropped", stats.Dropped).
		Msg("Imported prices")
	return stats, nil
}

// ImportMacro reads and stores a macro indicator CSV
func (i *Importer) ImportMacro(ctx context.Context, r io.Reader) (ImportStats, error) {
	points, err := universe.ReadMacroCSV(r)
	if err != nil {
		return ImportStats{}, fmt.Errorf("macro: %w", err)
	}
	if err := i.repo.UpsertMacro(ctx, points); err != nil {
		return ImportStats{}, err
	}
	i.log.Info().Int("points", len(points)).Msg("Imported macro series")
	return ImportStats{Rows: len(points)}, nil
}

// ImportFundamentals reads and stores a fundamentals CSV
func (i *Importer) ImportFundamentals(ctx context.Context, r io.Reader) (ImportStats, error) {
	items, err := universe.ReadFundamentalsCSV(r)
	if err != nil {
		return ImportStats{}, fmt.Errorf("fundamentals: %w", err)
	}
	if err := i.repo.UpsertFundamentals(ctx, items); err != nil {
		return ImportStats{}, err
	}
	i.log.Info().Int("snapshots", len(items)).Msg("Imported fundamentals")
	return ImportStats{Rows: len(items)}, nil
}
