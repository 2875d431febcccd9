package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aimquant/aim/internal/config"
	"github.com/aimquant/aim/internal/database"
	"github.com/aimquant/aim/internal/domain"
	"github.com/aimquant/aim/internal/services"
	"github.com/aimquant/aim/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app holds what every subcommand shares once the root command has run
type app struct {
	cfg *config.Config
	log zerolog.Logger
	db  *database.DB

	dataDir  string
	logLevel string
	pretty   bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "aim",
		Short:         "Regime-adaptive multi-factor portfolio allocation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "directory holding the SQLite database (overrides AIM_DATA_DIR)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	root.PersistentFlags().BoolVar(&a.pretty, "pretty", false, "human readable log output")

	root.AddCommand(
		newImportCmd(a),
		newRegimeCmd(a),
		newScoreCmd(a),
		newAllocateCmd(a),
		newPipelineCmd(a),
		newScheduleCmd(a),
	)
	return root
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if cmd.Flags().Changed("pretty") {
		cfg.LogPretty = a.pretty
	}
	a.cfg = cfg

	a.log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(a.log)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	a.db, err = database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileStandard,
		Name:    cfg.DatabaseName,
	})
	if err != nil {
		return err
	}
	if err := a.db.Migrate(); err != nil {
		_ = a.db.Close()
		return err
	}

	a.log.Debug().Str("database", cfg.DatabasePath()).Str("command", cmd.Name()).Msg("Database ready")
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *app) pipeline(metrics *services.Metrics) *services.Pipeline {
	return services.NewPipeline(a.db.Conn(), a.cfg.FeatureWorkers, metrics, a.log)
}

// parseDate accepts an empty string as "latest"
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	date, err := database.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, want YYYY-MM-DD", s)
	}
	return date, nil
}

func parseFactors(list []string) ([]domain.Factor, error) {
	factors := make([]domain.Factor, 0, len(list))
	for _, item := range list {
		f, err := domain.ParseFactor(strings.TrimSpace(item))
		if err != nil {
			return nil, err
		}
		factors = append(factors, f)
	}
	return factors, nil
}

func parseRegime(s string) (domain.Regime, error) {
	if s == "" {
		return "", nil
	}
	return domain.ParseRegime(s)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
