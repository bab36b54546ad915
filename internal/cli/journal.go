package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"breakeven-analyzer/internal/engine"
	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/internal/store"
	"breakeven-analyzer/pkg/utils"
)

func addJournalCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPositionsCmd(app))
	rootCmd.AddCommand(newQuotesCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
}

func newPositionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "positions",
		Aliases: []string{"pos"},
		Short:   "Manage open option positions",
		Long: `Open positions feed the breakeven adjustment search. They can be
entered by hand or synced from Kite.`,
	}

	cmd.AddCommand(newPositionsListCmd(app))
	cmd.AddCommand(newPositionsAddCmd(app))
	cmd.AddCommand(newPositionsCloseCmd(app))
	cmd.AddCommand(newPositionsBreakevensCmd(app))
	cmd.AddCommand(newPositionsSyncCmd(app))
	return cmd
}

func newPositionsListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.Store()
			if err != nil {
				return err
			}
			symbol, _ := cmd.Flags().GetString("symbol")
			source, _ := cmd.Flags().GetString("source")

			positions, err := s.GetPositions(cmd.Context(), store.PositionFilter{Symbol: symbol, Source: source})
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(positions)
			}
			if len(positions) == 0 {
				output.Dim("No open positions")
				return nil
			}
			printPositions(output, positions)

			if last := s.GetLastSync(engine.SyncDataType); !last.IsZero() {
				output.Println()
				output.Dim("Last synced %s", last.In(utils.IndiaLocation).Format("02-Jan-2006 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().StringP("symbol", "s", "", "filter by symbol")
	cmd.Flags().String("source", "", "filter by source (manual or kite)")
	return cmd
}

func printPositions(output *Output, positions []models.Position) {
	t := NewTable(output, "ID", "Symbol", "Expiry", "Strike", "Type", "Lots", "Premium", "Lot", "Source")
	for _, p := range positions {
		lots := utils.FormatQuantity(int64(p.Quantity))
		if p.Quantity < 0 {
			lots = output.Red(lots)
		} else {
			lots = output.Green("+" + lots)
		}
		t.AddRow(shortID(p.ID), p.Symbol, formatDate(p.Expiry), utils.FormatPrice(p.Strike), string(p.Type),
			lots, utils.FormatIndianCurrency(p.Premium), fmt.Sprintf("%d", p.MarketLot), p.Source)
	}
	t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newPositionsAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an open position",
		Long: `Record an open position. --qty is in lots and signed: positive for a
long position, negative for a short one.`,
		Example: `  breakeven positions add -s NIFTY -e 2025-07-31 --strike 25000 --type CE --qty -1 --premium 150`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.Store()
			if err != nil {
				return err
			}

			symbol, _ := cmd.Flags().GetString("symbol")
			strike, _ := cmd.Flags().GetFloat64("strike")
			typStr, _ := cmd.Flags().GetString("type")
			qty, _ := cmd.Flags().GetInt("qty")
			premium, _ := cmd.Flags().GetFloat64("premium")
			lot, _ := cmd.Flags().GetInt("lot")
			expiry, err := expiryFlag(cmd, true)
			if err != nil {
				return err
			}
			typ, err := models.ParseOptionType(typStr)
			if err != nil {
				return errors.NewInvalidInputError("type", typStr, err.Error())
			}
			if qty == 0 {
				return errors.NewInvalidInputError("qty", qty, "must be non-zero")
			}
			if lot <= 0 {
				lot = app.Config.Adjustment.MarketLot(symbol)
			}

			p := &models.Position{
				Symbol:    symbol,
				Expiry:    expiry,
				Strike:    strike,
				Type:      typ,
				Quantity:  qty,
				Premium:   premium,
				MarketLot: lot,
			}
			if err := s.AddPosition(cmd.Context(), p); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(p)
			}
			output.Success("Added %s %+d x %s %s (id %s)", p.Symbol, p.Quantity, utils.FormatPrice(p.Strike), p.Type, shortID(p.ID))
			return nil
		},
	}
	cmd.Flags().StringP("symbol", "s", "NIFTY", "underlying symbol")
	cmd.Flags().StringP("expiry", "e", "", "expiry date (YYYY-MM-DD)")
	cmd.Flags().Float64("strike", 0, "strike price")
	cmd.Flags().StringP("type", "t", "CE", "option type (CE or PE)")
	cmd.Flags().Int("qty", 0, "signed quantity in lots")
	cmd.Flags().Float64("premium", 0, "entry premium per unit")
	cmd.Flags().Int("lot", 0, "market lot (default from config)")
	return cmd
}

func newPositionsCloseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "close <id>",
		Short: "Close a position",
		Long: `Mark a position closed. The id may be the full id or the 8 character
prefix shown by 'positions list'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.Store()
			if err != nil {
				return err
			}

			id, err := resolvePositionID(cmd, s, args[0])
			if err != nil {
				return err
			}
			if err := s.ClosePosition(cmd.Context(), id); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"closed": id})
			}
			output.Success("Closed %s", shortID(id))
			return nil
		},
	}
}

func resolvePositionID(cmd *cobra.Command, s store.DataStore, prefix string) (string, error) {
	positions, err := s.GetPositions(cmd.Context(), store.PositionFilter{})
	if err != nil {
		return "", err
	}
	var matches []string
	for _, p := range positions {
		if p.ID == prefix {
			return p.ID, nil
		}
		if strings.HasPrefix(p.ID, prefix) {
			matches = append(matches, p.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", errors.Wrapf(errors.ErrPositionNotFound, "position %s", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", errors.NewInvalidInputError("id", prefix, "matches more than one position")
	}
}

func newPositionsBreakevensCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breakevens",
		Short: "Breakevens of the open positions of a symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol, _ := cmd.Flags().GetString("symbol")

			report, err := app.Engine().PositionBreakevens(cmd.Context(), symbol)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(report)
			}
			if len(report.Positions) == 0 {
				output.Dim("No open %s positions", report.Symbol)
				return nil
			}

			printPositions(output, report.Positions)
			output.Println()
			output.Printf("Strategy:   %s\n", output.BoldText(report.Strategy))
			output.Printf("Breakevens: %s\n", output.Cyan(formatPrices(report.Breakevens)))
			if len(report.LegBreakevens) > 0 {
				output.Println()
				t := NewTable(output, "Leg", "Breakeven")
				for _, lb := range report.LegBreakevens {
					t.AddRow(lb.Leg.String(), utils.FormatPrice(lb.Breakeven))
				}
				t.Render()
			}
			return nil
		},
	}
	cmd.Flags().StringP("symbol", "s", "NIFTY", "underlying symbol")
	return cmd
}

func newPositionsSyncCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replace synced positions with the open positions in Kite",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			k, err := app.Kite()
			if err != nil {
				return err
			}

			n, err := app.Engine().SyncPositions(cmd.Context(), k.Name(), k)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int{"synced": n})
			}
			output.Success("Synced %d open positions from %s", n, k.Name())
			return nil
		},
	}
}

func newQuotesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quotes",
		Short: "Manage end-of-day option quotes",
		Long: `End-of-day option quotes in the journal are the premium source when
market_data.source is "store". They can be entered by hand or fetched from Kite.`,
	}

	cmd.AddCommand(newQuotesListCmd(app))
	cmd.AddCommand(newQuotesAddCmd(app))
	cmd.AddCommand(newQuotesFetchCmd(app))
	return cmd
}

func newQuotesListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored quotes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.Store()
			if err != nil {
				return err
			}
			symbol, _ := cmd.Flags().GetString("symbol")
			strike, _ := cmd.Flags().GetFloat64("strike")
			limit, _ := cmd.Flags().GetInt("limit")
			expiry, err := expiryFlag(cmd, false)
			if err != nil {
				return err
			}

			quotes, err := s.GetQuotes(cmd.Context(), store.QuoteFilter{
				Symbol: symbol,
				Expiry: expiry,
				Strike: strike,
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(quotes)
			}
			if len(quotes) == 0 {
				output.Dim("No quotes")
				return nil
			}

			t := NewTable(output, "Date", "Symbol", "Expiry", "Strike", "Type", "LTP", "Close", "Underlying")
			for _, q := range quotes {
				t.AddRow(formatDate(q.Date), q.Symbol, formatDate(q.Expiry), utils.FormatPrice(q.Strike), string(q.Type),
					utils.FormatPrice(q.LastTradedPrice), utils.FormatPrice(q.ClosingPrice), utils.FormatPrice(q.UnderlyingValue))
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringP("symbol", "s", "", "filter by symbol")
	cmd.Flags().StringP("expiry", "e", "", "filter by expiry")
	cmd.Flags().Float64("strike", 0, "filter by strike")
	cmd.Flags().Int("limit", 50, "maximum rows")
	return cmd
}

func newQuotesAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an end-of-day option quote",
		Long: `Record the end-of-day price of one contract. A quote for the same
contract and date replaces the earlier one.`,
		Example: `  breakeven quotes add -s NIFTY -e 2025-07-31 --strike 25000 --type CE --date 2025-07-07 --ltp 210 --underlying 25050`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.Store()
			if err != nil {
				return err
			}

			symbol, _ := cmd.Flags().GetString("symbol")
			strike, _ := cmd.Flags().GetFloat64("strike")
			typStr, _ := cmd.Flags().GetString("type")
			ltp, _ := cmd.Flags().GetFloat64("ltp")
			closing, _ := cmd.Flags().GetFloat64("close")
			underlying, _ := cmd.Flags().GetFloat64("underlying")
			expiry, err := expiryFlag(cmd, true)
			if err != nil {
				return err
			}
			date, err := dateFlag(cmd, "date", false)
			if err != nil {
				return err
			}
			if date.IsZero() {
				date = utils.DateOf(time.Now())
			}
			typ, err := models.ParseOptionType(typStr)
			if err != nil {
				return errors.NewInvalidInputError("type", typStr, err.Error())
			}
			if !(strike > 0) {
				return errors.NewInvalidInputError("strike", strike, "must be positive")
			}
			if !(ltp > 0) && !(closing > 0) {
				return errors.NewInvalidInputError("ltp", ltp, "--ltp or --close is required")
			}

			q := models.OptionQuote{
				Symbol:          strings.ToUpper(symbol),
				Strike:          strike,
				Type:            typ,
				Expiry:          expiry,
				Date:            date,
				LastTradedPrice: ltp,
				ClosingPrice:    closing,
				UnderlyingValue: underlying,
			}
			if err := s.SaveQuotes(cmd.Context(), []models.OptionQuote{q}); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(q)
			}
			output.Success("Saved %s %s %s %s on %s: %s", q.Symbol, formatDate(q.Expiry), utils.FormatPrice(q.Strike), q.Type,
				formatDate(q.Date), utils.FormatIndianCurrency(q.Price()))
			return nil
		},
	}
	cmd.Flags().StringP("symbol", "s", "NIFTY", "underlying symbol")
	cmd.Flags().StringP("expiry", "e", "", "expiry date (YYYY-MM-DD)")
	cmd.Flags().Float64("strike", 0, "strike price")
	cmd.Flags().StringP("type", "t", "CE", "option type (CE or PE)")
	cmd.Flags().String("date", "", "trading date (default: today)")
	cmd.Flags().Float64("ltp", 0, "last traded price")
	cmd.Flags().Float64("close", 0, "closing price")
	cmd.Flags().Float64("underlying", 0, "underlying close")
	return cmd
}

func newQuotesFetchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch end-of-day quotes from Kite into the journal",
		Long: `Fetch the daily candle of the call and put at each strike for --date
(default: the previous trading day) and store them, so later analyses
work offline.`,
		Example: `  breakeven quotes fetch -s NIFTY -e 2025-07-31 --strike 24900,25000,25100 --date 2025-07-07`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.Store()
			if err != nil {
				return err
			}
			k, err := app.Kite()
			if err != nil {
				return err
			}

			symbol, _ := cmd.Flags().GetString("symbol")
			strikes, _ := cmd.Flags().GetFloat64Slice("strike")
			expiry, err := expiryFlag(cmd, true)
			if err != nil {
				return err
			}
			date, err := dateFlag(cmd, "date", false)
			if err != nil {
				return err
			}
			if date.IsZero() {
				date = utils.PreviousTradingDay(time.Now())
			}
			if len(strikes) == 0 {
				return errors.NewInvalidInputError("strike", nil, "at least one strike is required")
			}

			var quotes []models.OptionQuote
			for _, strike := range strikes {
				for _, typ := range []models.OptionType{models.OptionTypeCall, models.OptionTypePut} {
					q, err := k.HistoricalOptionPrice(cmd.Context(), models.OptionQuoteRequest{
						Symbol: strings.ToUpper(symbol),
						Strike: strike,
						Type:   typ,
						Expiry: expiry,
						From:   date,
						To:     date,
					})
					if err != nil {
						return err
					}
					quotes = append(quotes, *q)
				}
			}
			if err := s.SaveQuotes(cmd.Context(), quotes); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(quotes)
			}
			output.Success("Saved %d quotes for %s", len(quotes), formatDate(date))
			return nil
		},
	}
	cmd.Flags().StringP("symbol", "s", "NIFTY", "underlying symbol")
	cmd.Flags().StringP("expiry", "e", "", "expiry date (YYYY-MM-DD)")
	cmd.Flags().Float64Slice("strike", nil, "strike prices")
	cmd.Flags().String("date", "", "trading date (default: previous trading day)")
	return cmd
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show saved analyses, newest first",
		Long: `Show analyses saved with --save. Use 'history iv' for implied
volatility records.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.Store()
			if err != nil {
				return err
			}
			kind, _ := cmd.Flags().GetString("kind")
			symbol, _ := cmd.Flags().GetString("symbol")
			limit, _ := cmd.Flags().GetInt("limit")
			days, _ := cmd.Flags().GetInt("days")

			filter := store.AnalysisFilter{
				Kind:   store.AnalysisKind(kind),
				Symbol: strings.ToUpper(symbol),
				Limit:  limit,
			}
			if days > 0 {
				filter.Since = time.Now().AddDate(0, 0, -days)
			}
			records, err := s.GetAnalyses(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(records)
			}
			if len(records) == 0 {
				output.Dim("No saved analyses")
				return nil
			}

			t := NewTable(output, "When", "Kind", "Symbol", "Strategy", "ID")
			for _, r := range records {
				t.AddRow(r.CreatedAt.In(utils.IndiaLocation).Format("02-Jan 15:04"), string(r.Kind), r.Symbol, r.StrategyName, shortID(r.ID))
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().String("kind", "", "filter by kind: numeric, closed_form or adjustment")
	cmd.Flags().StringP("symbol", "s", "", "filter by symbol")
	cmd.Flags().Int("days", 0, "only the last N days")
	cmd.Flags().Int("limit", 20, "maximum rows")

	cmd.AddCommand(newIVHistoryCmd(app))
	return cmd
}

func newIVHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iv",
		Short: "Show saved implied volatility records",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.Store()
			if err != nil {
				return err
			}
			symbol, _ := cmd.Flags().GetString("symbol")
			limit, _ := cmd.Flags().GetInt("limit")

			records, err := s.GetIVRecords(cmd.Context(), strings.ToUpper(symbol), limit)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(records)
			}
			if len(records) == 0 {
				output.Dim("No implied volatility records")
				return nil
			}

			t := NewTable(output, "Date", "Symbol", "Expiry", "Strike", "Type", "IV", "Market", "Model")
			for _, r := range records {
				iv := formatFloat(r.ImpliedVolatility, 2) + "%"
				if !r.Converged {
					iv = output.Yellow(iv)
				}
				t.AddRow(formatDate(r.MarketDate), r.Symbol, formatDate(r.Expiry), utils.FormatPrice(r.Strike), string(r.Type),
					iv, utils.FormatIndianCurrency(r.MarketPremium), utils.FormatIndianCurrency(r.CalculatedPremium))
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringP("symbol", "s", "", "filter by symbol")
	cmd.Flags().Int("limit", 20, "maximum rows")
	return cmd
}
