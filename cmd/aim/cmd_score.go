package main

import (
	"github.com/spf13/cobra"
)

func newScoreCmd(a *app) *cobra.Command {
	var (
		date   string
		regime string
		top    int
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Extract features, then score and rank the universe",
		Long: "Extract features, then score and rank the universe. Without --regime the " +
			"most recently stored regime is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			day, err := parseDate(date)
			if err != nil {
				return err
			}
			r, err := parseRegime(regime)
			if err != nil {
				return err
			}

			p := a.pipeline(nil)
			if day, err = p.ResolveDate(ctx, day); err != nil {
				return err
			}
			if r == "" {
				state, err := p.CurrentRegime(ctx)
				if err != nil {
					return err
				}
				r = state.Regime
			}

			_, records, err := p.ScoreUniverse(ctx, day, r)
			if err != nil {
				return err
			}
			if top > 0 && len(records) > top {
				records = records[:top]
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "scoring date, YYYY-MM-DD (defaults to the latest price date)")
	cmd.Flags().StringVar(&regime, "regime", "", "regime override, e.g. RISK_ON")
	cmd.Flags().IntVar(&top, "top", 20, "number of ranked records to print (0 prints all)")
	return cmd
}
