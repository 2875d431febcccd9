package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aimquant/aim/internal/scheduler"
	"github.com/aimquant/aim/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const (
	walCheckpointSchedule = "0 0 * * * *"
	maintenanceSchedule   = "0 0 3 * * SUN"
	jobTimeout            = 30 * time.Minute
)

func newScheduleCmd(a *app) *cobra.Command {
	var (
		schedule    string
		metricsAddr string
		strategy    string
		positions   int
		tolerance   string
		runNow      bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily pipeline on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if schedule == "" {
				schedule = a.cfg.Schedule
			}
			if metricsAddr == "" {
				metricsAddr = a.cfg.MetricsAddr
			}

			req, err := pipelineRequest(a, strategy, positions, "", nil, tolerance)
			if err != nil {
				return err
			}

			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			pipeline := a.pipeline(services.NewMetrics(registry))

			sched := scheduler.New(jobTimeout, a.log)
			job := scheduler.NewPipelineJob(pipeline, req, a.log)
			if err := sched.AddJob(schedule, job); err != nil {
				return err
			}
			if err := sched.AddJob(walCheckpointSchedule, scheduler.NewWALCheckpointJob(a.db, a.log)); err != nil {
				return err
			}
			if err := sched.AddJob(maintenanceSchedule, scheduler.NewMaintenanceJob(a.db, a.log)); err != nil {
				return err
			}

			var srv *http.Server
			if metricsAddr != "" {
				srv = serveMetrics(a, metricsAddr, registry)
			}

			if runNow {
				if err := sched.RunNow(job); err != nil {
					a.log.Error().Err(err).Msg("Initial pipeline run failed")
				}
			}

			sched.Start()
			<-ctx.Done()
			a.log.Info().Msg("Shutdown signal received")
			sched.Stop()

			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schedule, "cron", "", "six-field cron expression (defaults to AIM_SCHEDULE)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "listen address of the /metrics endpoint, e.g. :9090 (defaults to AIM_METRICS_ADDR)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "allocation strategy (defaults to AIM_DEFAULT_STRATEGY)")
	cmd.Flags().IntVar(&positions, "positions", 0, "number of positions (defaults to AIM_DEFAULT_POSITIONS)")
	cmd.Flags().StringVar(&tolerance, "tolerance", "", "risk tolerance (defaults to AIM_RISK_TOLERANCE)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "run the pipeline once before waiting for the schedule")
	return cmd
}

func serveMetrics(a *app, addr string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return srv
}
