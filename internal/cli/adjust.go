package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"breakeven-analyzer/internal/adjust"
	"breakeven-analyzer/internal/engine"
	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/pkg/utils"
)

func addAdjustmentCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAdjustCmd(app))
	rootCmd.AddCommand(newRecommendCmd(app))
}

func newAdjustCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "Find positions that move a breakeven to a target",
		Long: `Search for up to three additional positions that move a breakeven of
the open positions to the target price, ranked by theta/gamma ratio.

Positions come from the journal (see 'breakeven positions'). --position
adds positions for this run only, as ACTION:TYPE:STRIKE:LOTS@PREMIUM.
Without --target the volatility-based recommended strike is used.`,
		Example: `  breakeven adjust --symbol NIFTY --spot 25000 --expiry 2025-07-31 --target 25300
  breakeven adjust -s NIFTY -e 2025-07-31 --spot 25000 --position SELL:CE:25000:1@150 --mode beam`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol, _ := cmd.Flags().GetString("symbol")
			flagSpot, _ := cmd.Flags().GetFloat64("spot")
			save, _ := cmd.Flags().GetBool("save")
			expiry, err := expiryFlag(cmd, true)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("mode") {
				mode, _ := cmd.Flags().GetString("mode")
				app.Config.Adjustment.SearchMode = adjust.SearchMode(mode)
				if err := app.Config.Validate(); err != nil {
					return err
				}
			}

			req := engine.AdjustRequest{
				Symbol: symbol,
				Expiry: expiry,
				Save:   save,
			}
			if cmd.Flags().Changed("target") {
				target, _ := cmd.Flags().GetFloat64("target")
				req.Target = &target
			}
			if req.Positions, err = positionsFromFlags(cmd, app, symbol); err != nil {
				return err
			}
			if req.Spot, err = app.spot(cmd.Context(), symbol, flagSpot); err != nil {
				return err
			}

			results, err := app.Engine().Adjust(cmd.Context(), req)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(results)
			}
			printAdjustments(output, results)
			return nil
		},
	}
	cmd.Flags().StringP("symbol", "s", "NIFTY", "underlying symbol")
	cmd.Flags().StringP("expiry", "e", "", "expiry of the new positions (YYYY-MM-DD)")
	cmd.Flags().Float64("spot", 0, "underlying price (default: Kite quote)")
	cmd.Flags().Float64("target", 0, "target breakeven (default: recommended strike)")
	cmd.Flags().StringArray("position", nil, "position as ACTION:TYPE:STRIKE:LOTS@PREMIUM (repeatable)")
	cmd.Flags().String("mode", "", "search mode: capped or beam (default from config)")
	cmd.Flags().Bool("save", false, "record the search in the journal")
	return cmd
}

// positionsFromFlags turns --position values into positions. Nil means
// none were given and the journal's positions are used.
func positionsFromFlags(cmd *cobra.Command, app *App, symbol string) ([]models.Position, error) {
	specs, _ := cmd.Flags().GetStringArray("position")
	if len(specs) == 0 {
		return nil, nil
	}
	expiry, err := expiryFlag(cmd, true)
	if err != nil {
		return nil, err
	}

	lot := app.Config.Adjustment.MarketLot(symbol)
	positions := make([]models.Position, 0, len(specs))
	for _, s := range specs {
		leg, err := ParseLeg(s, symbol, expiry)
		if err != nil {
			return nil, err
		}
		p, ok := leg.PremiumValue()
		if !ok {
			return nil, errors.NewInvalidInputError("position", s, "premium is required")
		}
		positions = append(positions, models.Position{
			Symbol:    leg.Symbol,
			Expiry:    leg.Expiry,
			Strike:    leg.Strike,
			Type:      leg.Type,
			Quantity:  leg.SignedQuantity(),
			Premium:   p,
			MarketLot: lot,
		})
	}
	return positions, nil
}

func printAdjustments(output *Output, results []adjust.Result) {
	if len(results) == 0 {
		output.Warning("No combination brings a breakeven within tolerance of the target")
		return
	}

	first := results[0]
	output.Printf("Current breakevens: %s\n", formatPrices(first.OriginalBreakevens))
	output.Printf("Target breakeven:   %s\n", output.Cyan(utils.FormatPrice(first.TargetBreakeven)))
	output.Println()

	for i, r := range results {
		added := make([]string, len(r.RecommendedPositions))
		for j, p := range r.RecommendedPositions {
			added[j] = p.String()
		}
		output.Bold("#%d  %s", i+1, strings.Join(added, " + "))
		output.Printf("  New breakevens:  %s (closest %s)\n", formatPrices(r.NewBreakevens), utils.FormatPrice(r.ClosestBreakeven()))
		output.Printf("  Premium:         %s\n", output.PnL(r.TotalAdditionalPremium))
		output.Printf("  Theta/Gamma:     %s\n", formatRatio(r.ThetaGammaRatio))
		output.Printf("  Confidence:      %.0f%%\n", r.ConfidenceScore*100)
		output.Printf("  Greeks after:    Δ %.2f  Γ %.4f  Θ %.2f  V %.2f\n",
			r.GreeksAfter.Delta, r.GreeksAfter.Gamma, r.GreeksAfter.Theta, r.GreeksAfter.Vega)
		for _, w := range r.Warnings {
			output.Warning("  %s", w)
		}
		output.Println()
	}
}

func formatRatio(r adjust.Ratio) string {
	data, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%g", float64(r))
	}
	return strings.Trim(string(data), `"`)
}

func newRecommendCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend a safe target strike",
		Long: `Suggest a strike to aim a breakeven at, by each method, and check the
chosen one against spot and the time left to expiry.

Methods: atm, volatility_based, support_resistance, momentum.`,
		Example: `  breakeven recommend --symbol NIFTY --spot 25020 --expiry 2025-07-31
  breakeven recommend --spot 25020 --expiry 2025-07-31 --method atm`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol, _ := cmd.Flags().GetString("symbol")
			flagSpot, _ := cmd.Flags().GetFloat64("spot")
			method, _ := cmd.Flags().GetString("method")
			expiry, err := expiryFlag(cmd, true)
			if err != nil {
				return err
			}
			if method != "" && !knownMethod(adjust.Method(method)) {
				return errors.NewInvalidInputError("method", method, "unknown recommendation method")
			}
			spot, err := app.spot(cmd.Context(), symbol, flagSpot)
			if err != nil {
				return err
			}

			report, err := app.Engine().Recommend(symbol, spot, expiry, adjust.Method(method))
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(report)
			}

			output.Printf("%s spot %s, expiry %s\n", report.Symbol, utils.FormatPrice(report.Spot), formatDate(report.Expiry))
			output.Printf("Recommended strike (%s): %s\n", report.Method, output.Green(utils.FormatPrice(report.Strike)))
			output.Println()

			t := NewTable(output, "Method", "Strike")
			for _, m := range adjust.Methods {
				t.AddRow(string(m), utils.FormatPrice(report.Alternatives[m]))
			}
			t.Render()
			output.Println()

			v := report.Validation
			output.Printf("Confidence: %s  (%.2f%% from spot, %d days to expiry)\n", v.Confidence, v.DistanceFromSpotPercent, v.DaysToExpiry)
			for _, w := range v.Warnings {
				output.Warning("%s", w)
			}
			return nil
		},
	}
	cmd.Flags().StringP("symbol", "s", "NIFTY", "underlying symbol")
	cmd.Flags().StringP("expiry", "e", "", "expiry date (YYYY-MM-DD)")
	cmd.Flags().Float64("spot", 0, "underlying price (default: Kite quote)")
	cmd.Flags().String("method", "", "method (default volatility_based)")
	return cmd
}

func knownMethod(m adjust.Method) bool {
	for _, known := range adjust.Methods {
		if m == known {
			return true
		}
	}
	return false
}
