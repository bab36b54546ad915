package cli

import (
	"time"

	"github.com/spf13/cobra"

	"breakeven-analyzer/internal/engine"
	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/internal/pricing"
	"breakeven-analyzer/pkg/utils"
)

func addPricingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPriceCmd(app))
	rootCmd.AddCommand(newGreeksCmd(app))
	rootCmd.AddCommand(newIVCmd(app))
}

// addContractFlags registers the flags read by pricingInputs.
func addContractFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("spot", 0, "underlying price")
	cmd.Flags().Float64("strike", 0, "strike price")
	cmd.Flags().StringP("type", "t", "CE", "option type (CE or PE)")
	cmd.Flags().StringP("expiry", "e", "", "expiry date (YYYY-MM-DD)")
	cmd.Flags().Int("days", 0, "calendar days to expiry (instead of --expiry)")
	cmd.Flags().Float64("vol", 0.15, "annual volatility as a decimal")
	cmd.Flags().Float64("rate", 0, "risk-free rate (default from config)")
}

func pricingInputs(cmd *cobra.Command, app *App, now time.Time) (models.OptionPricingInputs, error) {
	spot, _ := cmd.Flags().GetFloat64("spot")
	strike, _ := cmd.Flags().GetFloat64("strike")
	typStr, _ := cmd.Flags().GetString("type")
	days, _ := cmd.Flags().GetInt("days")
	vol, _ := cmd.Flags().GetFloat64("vol")

	typ, err := models.ParseOptionType(typStr)
	if err != nil {
		return models.OptionPricingInputs{}, errors.NewInvalidInputError("type", typStr, err.Error())
	}

	rate := app.Config.Pricing.RiskFreeRate
	if cmd.Flags().Changed("rate") {
		rate, _ = cmd.Flags().GetFloat64("rate")
	}

	var T float64
	if cmd.Flags().Changed("days") {
		T = float64(days) / 365
	} else {
		expiry, err := expiryFlag(cmd, true)
		if err != nil {
			return models.OptionPricingInputs{}, err
		}
		T = pricing.TimeToExpiry(expiry, now)
	}

	return models.OptionPricingInputs{
		Spot:         spot,
		Strike:       strike,
		TimeToExpiry: T,
		RiskFreeRate: rate,
		Volatility:   vol,
		Type:         typ,
	}, nil
}

func newPriceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Black-Scholes option price",
		Long: `Price a European option with Black-Scholes.

Time to expiry comes from --days or from --expiry counted in calendar days
from today. The risk-free rate defaults to the configured rate.`,
		Example: `  breakeven price --spot 25000 --strike 25200 --type CE --days 24 --vol 0.14
  breakeven price --spot 25000 --strike 24800 --type PE --expiry 2025-07-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			in, err := pricingInputs(cmd, app, time.Now())
			if err != nil {
				return err
			}
			price, err := app.Engine().Model().Price(in)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"inputs": in,
					"price":  price,
				})
			}
			output.Printf("%s %s %s  T=%.4fy  σ=%.2f%%  r=%.2f%%\n",
				output.BoldText(string(in.Type)), utils.FormatPrice(in.Strike),
				output.Cyan("spot "+utils.FormatPrice(in.Spot)),
				in.TimeToExpiry, in.Volatility*100, in.RiskFreeRate*100)
			output.Printf("Price: %s\n", output.Green(utils.FormatIndianCurrency(price)))
			return nil
		},
	}
	addContractFlags(cmd)
	return cmd
}

func newGreeksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "greeks",
		Short: "Black-Scholes option Greeks",
		Long: `Compute delta, gamma, theta, vega and rho for one contract.

Theta is per calendar day and vega per one percentage point of volatility.`,
		Example: `  breakeven greeks --spot 25000 --strike 25000 --type PE --days 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			in, err := pricingInputs(cmd, app, time.Now())
			if err != nil {
				return err
			}
			g, err := app.Engine().Model().Greeks(in)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"inputs": in,
					"greeks": g,
				})
			}
			table := NewTable(output, "Greek", "Value")
			table.AddRow("Delta", formatFloat(g.Delta, 4))
			table.AddRow("Gamma", formatFloat(g.Gamma, 6))
			table.AddRow("Theta", formatFloat(g.Theta, 4))
			table.AddRow("Vega", formatFloat(g.Vega, 4))
			table.AddRow("Rho", formatFloat(g.Rho, 4))
			table.Render()
			return nil
		},
	}
	addContractFlags(cmd)
	return cmd
}

func newIVCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iv",
		Short: "Implied volatility from market premiums",
		Long: `Back out implied volatility.

With --premium the volatility of a single contract is solved from that
premium. Otherwise the call and put premiums of the strike are read from
the configured market data source for --date (default: yesterday) and both
sides are solved, with time to expiry measured from that date.`,
		Example: `  breakeven iv --symbol NIFTY --strike 25000 --expiry 2025-07-31 --spot 25050
  breakeven iv --spot 25000 --strike 25200 --type CE --days 24 --premium 120`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if cmd.Flags().Changed("premium") {
				return runContractIV(cmd, app, output)
			}

			symbol, _ := cmd.Flags().GetString("symbol")
			strike, _ := cmd.Flags().GetFloat64("strike")
			flagSpot, _ := cmd.Flags().GetFloat64("spot")
			save, _ := cmd.Flags().GetBool("save")
			expiry, err := expiryFlag(cmd, true)
			if err != nil {
				return err
			}
			date, err := dateFlag(cmd, "date", false)
			if err != nil {
				return err
			}
			req := engine.IVRequest{
				Symbol:     symbol,
				Strike:     strike,
				Expiry:     expiry,
				MarketDate: date,
				Save:       save,
			}
			if cmd.Flags().Changed("rate") {
				req.RiskFreeRate, _ = cmd.Flags().GetFloat64("rate")
			}
			if req.Spot, err = app.spot(cmd.Context(), symbol, flagSpot); err != nil {
				return err
			}

			report, err := app.Engine().ImpliedVolatility(cmd.Context(), req)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(report)
			}
			printIVReport(output, report)
			return nil
		},
	}
	addContractFlags(cmd)
	cmd.Flags().StringP("symbol", "s", "NIFTY", "underlying symbol")
	cmd.Flags().String("date", "", "market data date (default: yesterday)")
	cmd.Flags().Float64("premium", 0, "solve a single contract from this premium")
	cmd.Flags().Bool("save", false, "record the result in the journal")
	return cmd
}

func runContractIV(cmd *cobra.Command, app *App, output *Output) error {
	premium, _ := cmd.Flags().GetFloat64("premium")
	in, err := pricingInputs(cmd, app, time.Now())
	if err != nil {
		return err
	}
	model := app.Engine().Model()
	res, err := model.ImpliedVolatility(premium, in)
	if err != nil {
		return err
	}
	side := engine.OptionIV{
		Type:              in.Type,
		ImpliedVolatility: utils.Round2(res.Volatility * 100),
		CalculatedPremium: res.ModelPrice,
		MarketPremium:     premium,
		Converged:         model.ConvergenceAchieved(res.ModelPrice, premium),
		Iterations:        res.Iterations,
		Capped:            res.Capped,
	}

	if output.IsJSON() {
		return output.JSON(side)
	}
	printIVSide(output, side)
	return nil
}

func printIVReport(output *Output, r *engine.IVReport) {
	output.Bold("%s %s  expiry %s", r.Symbol, utils.FormatPrice(r.Strike), formatDate(r.Expiry))
	output.Printf("Market date: %s  (%d days to expiry)\n", formatDate(r.MarketDate), r.DaysToExpiry)
	output.Printf("Spot: %s", utils.FormatPrice(r.Spot))
	if r.UnderlyingValue > 0 {
		output.Printf("  Underlying close: %s", utils.FormatPrice(r.UnderlyingValue))
	}
	output.Println()
	output.Println()

	table := NewTable(output, "Side", "IV", "Market", "Model", "Converged")
	for _, side := range []engine.OptionIV{r.Call, r.Put} {
		table.AddRow(ivRow(output, side)...)
	}
	table.Render()
}

func printIVSide(output *Output, side engine.OptionIV) {
	table := NewTable(output, "Side", "IV", "Market", "Model", "Converged")
	table.AddRow(ivRow(output, side)...)
	table.Render()
	if side.Capped {
		output.Warning("Volatility hit the search bound after %d iterations", side.Iterations)
	}
}

func ivRow(output *Output, side engine.OptionIV) []string {
	converged := output.Green("yes")
	if !side.Converged {
		converged = output.Red("no")
	}
	return []string{
		string(side.Type),
		formatFloat(side.ImpliedVolatility, 2) + "%",
		utils.FormatIndianCurrency(side.MarketPremium),
		utils.FormatIndianCurrency(side.CalculatedPremium),
		converged,
	}
}
