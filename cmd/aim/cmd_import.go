package main

import (
	"fmt"
	"os"

	"github.com/aimquant/aim/internal/services"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var universeFile, pricesFile, macroFile, fundamentalsFile string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import the universe definition and market data files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if universeFile == "" {
				universeFile = a.cfg.UniverseFile
			}
			if universeFile == "" && pricesFile == "" && macroFile == "" && fundamentalsFile == "" {
				return fmt.Errorf("nothing to import: pass --universe, --prices, --macro or --fundamentals")
			}

			ctx := cmd.Context()
			imp := services.NewImporter(a.db.Conn(), a.log)
			out := map[string]services.ImportStats{}

			if universeFile != "" {
				stats, err := imp.ImportUniverse(ctx, universeFile)
				if err != nil {
					return err
				}
				out["universe"] = stats
			}

			files := []struct {
				kind string
				path string
				load func(*os.File) (services.ImportStats, error)
			}{
				{"prices", pricesFile, func(f *os.File) (services.ImportStats, error) { return imp.ImportPrices(ctx, f) }},
				{"macro", macroFile, func(f *os.File) (services.ImportStats, error) { return imp.ImportMacro(ctx, f) }},
				{"fundamentals", fundamentalsFile, func(f *os.File) (services.ImportStats, error) { return imp.ImportFundamentals(ctx, f) }},
			}
			for _, file := range files {
				if file.path == "" {
					continue
				}
				f, err := os.Open(file.path)
				if err != nil {
					return fmt.Errorf("failed to open %s file: %w", file.kind, err)
				}
				stats, err := file.load(f)
				_ = f.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", file.path, err)
				}
				out[file.kind] = stats
			}

			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&universeFile, "universe", "", "YAML universe file (defaults to AIM_UNIVERSE_FILE)")
	cmd.Flags().StringVar(&pricesFile, "prices", "", "CSV of daily bars: ticker,date,open,high,low,close,volume")
	cmd.Flags().StringVar(&macroFile, "macro", "", "CSV of macro observations: indicator,date,value")
	cmd.Flags().StringVar(&fundamentalsFile, "fundamentals", "", "CSV of fundamentals: ticker,reference_date,pe,pb,dividend_yield,roe,net_margin,roic")
	return cmd
}
