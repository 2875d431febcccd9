package scheduler

import (
	"context"
	"time"

	"github.com/aimquant/aim/internal/database"
	"github.com/aimquant/aim/internal/services"
	"github.com/rs/zerolog"
)

// PipelineRunner runs one portfolio pipeline
type PipelineRunner interface {
	Run(ctx context.Context, req services.PipelineRequest) (*services.PipelineResult, error)
}

// PipelineJob runs the daily pipeline on the latest stored price date
type PipelineJob struct {
	pipeline PipelineRunner
	request  services.PipelineRequest
	log      zerolog.Logger
}

// NewPipelineJob creates a job that runs req through pipeline. req.Date is
// ignored so every run targets the latest stored prices.
func NewPipelineJob(pipeline PipelineRunner, req services.PipelineRequest, log zerolog.Logger) *PipelineJob {
	return &PipelineJob{
		pipeline: pipeline,
		request:  req,
		log:      log.With().Str("job", "daily_pipeline").Logger(),
	}
}

// Name returns the job name
func (j *PipelineJob) Name() string {
	return "daily_pipeline"
}

// Run executes the pipeline job
func (j *PipelineJob) Run(ctx context.Context) error {
	req := j.request
	req.Date = time.Time{}

	result, err := j.pipeline.Run(ctx, req)
	if err != nil {
		return err
	}

	event := j.log.Info()
	if !result.Approved {
		event = j.log.Warn()
	}
	event.
		Str("regime", string(result.Regime.Regime)).
		Int("holdings", len(result.Allocation.Holdings)).
		Bool("approved", result.Approved).
		Str("snapshot", result.SnapshotID).
		Msg("Daily pipeline finished")
	return nil
}

// walFrameWarning is the WAL size, in frames, above which a checkpoint is logged as overdue
const walFrameWarning = 1000

// WALCheckpointJob checkpoints the SQLite WAL and reports its size
type WALCheckpointJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewWALCheckpointJob creates a new WALCheckpointJob
func NewWALCheckpointJob(db *database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		db:  db,
		log: log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run executes a passive checkpoint. A nil database is skipped.
func (j *WALCheckpointJob) Run(ctx context.Context) error {
	if j.db == nil {
		return nil
	}

	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, frames, checkpointed int
	err := j.db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
	if err != nil {
		j.log.Warn().
			Err(err).
			Str("database", j.db.Name()).
			Msg("Failed to check WAL checkpoint")
		return err
	}

	if frames > walFrameWarning {
		j.log.Warn().
			Str("database", j.db.Name()).
			Int("wal_frames", frames).
			Int("checkpointed", checkpointed).
			Msg("WAL file is large, checkpoint may be needed")
	} else {
		j.log.Debug().
			Str("database", j.db.Name()).
			Int("wal_frames", frames).
			Msg("WAL checkpoint status OK")
	}
	return nil
}
