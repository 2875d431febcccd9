package main

import (
	"github.com/spf13/cobra"
)

func newRegimeCmd(a *app) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "regime",
		Short: "Classify the market regime of a date and store it",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDate(date)
			if err != nil {
				return err
			}

			p := a.pipeline(nil)
			day, err = p.ResolveDate(cmd.Context(), day)
			if err != nil {
				return err
			}
			state, err := p.ClassifyRegime(cmd.Context(), day)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), state)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "classification date, YYYY-MM-DD (defaults to the latest price date)")
	return cmd
}
