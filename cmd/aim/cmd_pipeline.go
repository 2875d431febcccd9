package main

import (
	"context"
	"errors"

	"github.com/aimquant/aim/internal/domain"
	"github.com/aimquant/aim/internal/modules/allocation"
	"github.com/aimquant/aim/internal/services"
	"github.com/spf13/cobra"
)

// pipelineOutput is what `aim pipeline` prints
type pipelineOutput struct {
	*services.PipelineResult
	Trades []allocation.Trade `json:"trades,omitempty"`
}

func newPipelineCmd(a *app) *cobra.Command {
	var (
		date      string
		strategy  string
		positions int
		regime    string
		priority  []string
		tolerance string
		name      string
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run classification, scoring, allocation and risk validation for one date",
		Long: "Run classification, scoring, allocation and risk validation for one date. " +
			"An approved portfolio is saved and compared with the previous snapshot of the same name.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			day, err := parseDate(date)
			if err != nil {
				return err
			}
			req, err := pipelineRequest(a, strategy, positions, regime, priority, tolerance)
			if err != nil {
				return err
			}
			req.Date = day
			req.PortfolioName = name

			p := a.pipeline(nil)
			previous, err := previousWeights(ctx, p, name)
			if err != nil {
				return err
			}

			result, err := p.Run(ctx, req)
			if err != nil {
				return err
			}

			out := pipelineOutput{PipelineResult: result}
			if result.Approved && previous != nil {
				target := make(map[string]float64, len(result.Allocation.Holdings))
				for _, h := range result.Allocation.Holdings {
					target[h.Ticker] = h.Weight
				}
				out.Trades = allocation.PlanRebalance(previous, target, threshold)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "run date, YYYY-MM-DD (defaults to the latest price date)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "equal_weight, score_weighted or risk_parity (defaults to AIM_DEFAULT_STRATEGY)")
	cmd.Flags().IntVar(&positions, "positions", 0, "number of positions (defaults to AIM_DEFAULT_POSITIONS)")
	cmd.Flags().StringVar(&regime, "regime", "", "regime override (defaults to the classified regime)")
	cmd.Flags().StringSliceVar(&priority, "priority", nil, "factors that re-rank the candidate pool, e.g. value,quality")
	cmd.Flags().StringVar(&tolerance, "tolerance", "", "conservative, moderate, aggressive or speculative (defaults to AIM_RISK_TOLERANCE)")
	cmd.Flags().StringVar(&name, "name", services.DefaultPortfolio, "portfolio snapshot name")
	cmd.Flags().Float64Var(&threshold, "rebalance-threshold", allocation.DefaultRebalanceThreshold, "minimum weight change that produces a trade")
	return cmd
}

func pipelineRequest(a *app, strategy string, positions int, regime string, priority []string, tolerance string) (services.PipelineRequest, error) {
	alloc, err := allocationRequest(a, strategy, positions, regime, priority)
	if err != nil {
		return services.PipelineRequest{}, err
	}

	req := services.PipelineRequest{
		Strategy:        alloc.Strategy,
		Positions:       alloc.Positions,
		Tolerance:       a.cfg.RiskTolerance,
		RegimeOverride:  alloc.Regime,
		PriorityFactors: alloc.PriorityFactors,
	}
	if tolerance != "" {
		req.Tolerance = domain.ParseRiskTolerance(tolerance)
	}
	return req, nil
}

// previousWeights returns the weights of the last snapshot saved under name, or nil when there is none
func previousWeights(ctx context.Context, p *services.Pipeline, name string) (map[string]float64, error) {
	snap, err := p.LatestPortfolio(ctx, name)
	if errors.Is(err, allocation.ErrSnapshotNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	weights := make(map[string]float64, len(snap.Holdings))
	for _, h := range snap.Holdings {
		weights[h.Ticker] = h.Weight
	}
	return weights, nil
}
