package main

import (
	"github.com/aimquant/aim/internal/domain"
	"github.com/aimquant/aim/internal/modules/allocation"
	"github.com/spf13/cobra"
)

func newAllocateCmd(a *app) *cobra.Command {
	var (
		date      string
		strategy  string
		positions int
		regime    string
		priority  []string
	)

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Build a constrained allocation from the stored scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req, err := allocationRequest(a, strategy, positions, regime, priority)
			if err != nil {
				return err
			}

			p := a.pipeline(nil)
			day, err := parseDate(date)
			if err != nil {
				return err
			}
			if day.IsZero() {
				if day, err = p.LatestScoreDate(ctx); err != nil {
					return err
				}
			}
			if req.Regime == "" {
				state, err := p.CurrentRegime(ctx)
				if err != nil {
					return err
				}
				req.Regime = state.Regime
			}

			result, err := p.Allocate(ctx, day, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "score date, YYYY-MM-DD (defaults to the latest scored date)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "equal_weight, score_weighted or risk_parity (defaults to AIM_DEFAULT_STRATEGY)")
	cmd.Flags().IntVar(&positions, "positions", 0, "number of positions (defaults to AIM_DEFAULT_POSITIONS)")
	cmd.Flags().StringVar(&regime, "regime", "", "regime override (defaults to the latest stored regime)")
	cmd.Flags().StringSliceVar(&priority, "priority", nil, "factors that re-rank the candidate pool, e.g. value,quality")
	return cmd
}

// allocationRequest builds a request from flags, falling back to configured defaults
func allocationRequest(a *app, strategy string, positions int, regime string, priority []string) (allocation.AllocationRequest, error) {
	req := allocation.AllocationRequest{
		Strategy:  a.cfg.DefaultStrategy,
		Positions: a.cfg.DefaultPositions,
	}
	if strategy != "" {
		s, err := domain.ParseStrategy(strategy)
		if err != nil {
			return req, err
		}
		req.Strategy = s
	}
	if positions != 0 {
		req.Positions = positions
	}

	var err error
	if req.Regime, err = parseRegime(regime); err != nil {
		return req, err
	}
	if req.PriorityFactors, err = parseFactors(priority); err != nil {
		return req, err
	}
	return req, nil
}
