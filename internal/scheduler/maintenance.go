package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aimquant/aim/internal/database"
	"github.com/rs/zerolog"
)

// MaintenanceJob verifies the store's integrity and compacts it with VACUUM
type MaintenanceJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(db *database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:  db,
		log: log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run checks integrity first; a failed check skips the VACUUM
func (j *MaintenanceJob) Run(ctx context.Context) error {
	if j.db == nil {
		return nil
	}
	start := time.Now()

	if err := j.db.HealthCheck(ctx); err != nil {
		return err
	}

	before, err := j.sizeMB(ctx)
	if err != nil {
		return err
	}
	if _, err := j.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("VACUUM failed for %s: %w", j.db.Name(), err)
	}
	after, err := j.sizeMB(ctx)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("database", j.db.Name()).
		Float64("size_before_mb", before).
		Float64("size_after_mb", after).
		Float64("space_reclaimed_mb", before-after).
		Dur("duration", time.Since(start)).
		Msg("Maintenance completed")
	return nil
}

func (j *MaintenanceJob) sizeMB(ctx context.Context) (float64, error) {
	var pageCount, pageSize int
	if err := j.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("failed to read page count: %w", err)
	}
	if err := j.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("failed to read page size: %w", err)
	}
	return float64(pageCount*pageSize) / 1024 / 1024, nil
}
