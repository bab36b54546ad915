package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"breakeven-analyzer/internal/engine"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/internal/solver"
	"breakeven-analyzer/internal/strategy"
	"breakeven-analyzer/pkg/utils"
)

func addAnalysisCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newBreakevensCmd(app))
	rootCmd.AddCommand(newPayoffCmd(app))
	rootCmd.AddCommand(newClassifyCmd(app))
	rootCmd.AddCommand(newStrategiesCmd())
}

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a multi-leg option strategy",
		Long: `Find the breakevens, maximum profit and loss, profit zones and
risk-reward ratio of a strategy.

The numeric analysis runs by default and works for any combination of
legs. --closed-form uses the textbook formulas of the identified strategy,
and --strategy NAME additionally checks that the legs match NAME.

Legs without a premium are priced from the configured market data source.`,
		Example: `  breakeven analyze --leg BUY:CE:25000:1@100 --leg SELL:CE:25200:1@40
  breakeven analyze --legs-file straddle.yaml --closed-form
  breakeven analyze -e 2025-07-31 --leg SELL:CE:25000:1 --leg SELL:PE:25000:1 --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			legs, err := legsFromFlags(cmd)
			if err != nil {
				return err
			}
			closedForm, _ := cmd.Flags().GetBool("closed-form")
			name, _ := cmd.Flags().GetString("strategy")
			save, _ := cmd.Flags().GetBool("save")

			result, err := app.Engine().Analyze(cmd.Context(), engine.AnalyzeRequest{
				Legs:       legs,
				Strategy:   name,
				ClosedForm: closedForm,
				Save:       save,
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			printAnalysis(output, result)
			if save {
				output.Dim("Saved to journal")
			}
			return nil
		},
	}
	addLegFlags(cmd)
	cmd.Flags().Bool("closed-form", false, "use the closed-form formulas of the identified strategy")
	cmd.Flags().String("strategy", "", "expected strategy name (implies --closed-form)")
	cmd.Flags().Bool("save", false, "record the analysis in the journal")
	return cmd
}

func printAnalysis(output *Output, r *models.StrategyAnalysisResult) {
	output.Bold(r.StrategyName)
	output.Println()

	legs := NewTable(output, "Action", "Type", "Strike", "Qty", "Premium")
	for _, l := range r.Legs {
		premium := "-"
		if p, ok := l.PremiumValue(); ok {
			premium = utils.FormatIndianCurrency(p)
		}
		action := output.Green(string(l.Action))
		if l.Action == models.ActionSell {
			action = output.Red(string(l.Action))
		}
		legs.AddRow(action, string(l.Type), utils.FormatPrice(l.Strike), fmt.Sprintf("%d", l.Quantity), premium)
	}
	legs.Render()
	output.Println()

	output.Printf("Breakevens:    %s\n", output.Cyan(formatPrices(r.BreakevenPoints)))
	output.Printf("Max profit:    %s\n", output.Amount(r.MaxProfit))
	output.Printf("Max loss:      %s\n", output.Amount(r.MaxLoss))
	if r.RiskRewardRatio != nil {
		output.Printf("Risk/reward:   %s\n", r.RiskRewardRatio.String())
	}
	if len(r.ProfitZones) > 0 {
		zones := make([]string, len(r.ProfitZones))
		for i, z := range r.ProfitZones {
			zones[i] = z.String()
		}
		output.Printf("Profit zones:  %s\n", strings.Join(zones, ", "))
	}

	if note, ok := r.Details["note"].(string); ok && note != "" {
		output.Println()
		output.Dim(note)
	}
	if src, ok := r.Details["price_source"].(string); ok && src != engine.SourceInput {
		output.Dim("Premiums from %s", src)
	}
}

func newBreakevensCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breakevens",
		Short: "Numeric breakeven points of a strategy",
		Long: `Find every price where the expiry payoff crosses zero.

The search range defaults to the strikes widened by the configured buffer.`,
		Example: `  breakeven breakevens --leg BUY:CE:25000:1@120 --leg BUY:PE:25000:1@110
  breakeven breakevens --legs-file condor.json --min 23000 --max 27000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			legs, err := legsFromFlags(cmd)
			if err != nil {
				return err
			}

			var opts []solver.Option
			if cmd.Flags().Changed("min") {
				v, _ := cmd.Flags().GetFloat64("min")
				opts = append(opts, solver.WithMinPrice(v))
			}
			if cmd.Flags().Changed("max") {
				v, _ := cmd.Flags().GetFloat64("max")
				opts = append(opts, solver.WithMaxPrice(v))
			}
			if cmd.Flags().Changed("samples") {
				n, _ := cmd.Flags().GetInt("samples")
				opts = append(opts, solver.WithSamples(n))
			}

			points, err := app.Engine().Breakevens(cmd.Context(), legs, opts...)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"breakeven_points": points,
				})
			}
			output.Printf("Breakevens: %s\n", output.Cyan(formatPrices(points)))
			return nil
		},
	}
	addLegFlags(cmd)
	cmd.Flags().Float64("min", 0, "lowest price searched")
	cmd.Flags().Float64("max", 0, "highest price searched")
	cmd.Flags().Int("samples", 0, "bracketing samples (default from config)")
	return cmd
}

func newPayoffCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payoff",
		Short: "Expiry payoff table of a strategy",
		Long: `Print the expiry payoff at the given prices, or at evenly spaced prices
across the search range when no --at is given.`,
		Example: `  breakeven payoff --leg SELL:CE:25000:1@150 --at 24800,25000,25200
  breakeven payoff --legs-file spread.yaml --points 11`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			legs, err := legsFromFlags(cmd)
			if err != nil {
				return err
			}
			prices, _ := cmd.Flags().GetFloat64Slice("at")
			points, _ := cmd.Flags().GetInt("points")

			table, err := app.Engine().PayoffTable(cmd.Context(), legs, prices, points)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(table)
			}
			t := NewTable(output, "Price", "Payoff")
			for _, p := range table {
				t.AddRow(utils.FormatPrice(p.Price), output.PnL(p.Payoff))
			}
			t.Render()
			return nil
		},
	}
	addLegFlags(cmd)
	cmd.Flags().Float64Slice("at", nil, "prices to evaluate")
	cmd.Flags().Int("points", 21, "number of prices when --at is not given")
	return cmd
}

func newClassifyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Identify the strategy formed by a set of legs",
		Long: `Name the strategy formed by the legs and show the breakeven of each leg
on its own. Premiums are only needed for the per-leg breakevens.`,
		Example: `  breakeven classify --leg BUY:PE:24800:1 --leg BUY:PE:24800:1 --leg SELL:PE:25000:1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			legs, err := legsFromFlags(cmd)
			if err != nil {
				return err
			}

			name := strategy.Identify(legs)
			perLeg := strategy.LegBreakevens(legs)
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"strategy":       name,
					"known":          name != strategy.CustomStrategy,
					"leg_breakevens": perLeg,
				})
			}

			output.Bold(name)
			if len(perLeg) > 0 {
				output.Println()
				t := NewTable(output, "Leg", "Breakeven")
				for _, lb := range perLeg {
					t.AddRow(lb.Leg.String(), utils.FormatPrice(lb.Breakeven))
				}
				t.Render()
			}
			return nil
		},
	}
	addLegFlags(cmd)
	return cmd
}

func newStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the strategies with closed-form analysis",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(strategy.Names)
				return
			}
			for _, name := range strategy.Names {
				output.Println(name)
			}
		},
	}
}
