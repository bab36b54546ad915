package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"breakeven-analyzer/internal/config"
	"breakeven-analyzer/internal/engine"
	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/logging"
	"breakeven-analyzer/internal/marketdata"
	"breakeven-analyzer/internal/pricing"
	"breakeven-analyzer/internal/solver"
	"breakeven-analyzer/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-07-01"
)

// App holds the application dependencies. Everything except the config
// and logger is created on first use.
type App struct {
	ConfigDir string
	Config    *config.Config
	Logger    zerolog.Logger

	store  *store.SQLiteStore
	kite   *marketdata.KiteSource
	engine *engine.Engine
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: logging.NewLogger()}

	rootCmd := &cobra.Command{
		Use:   "breakeven",
		Short: "Options breakeven analyzer for NSE index derivatives",
		Long: `Breakeven analyzes multi-leg option strategies on NSE indices.

It prices options with Black-Scholes, backs out implied volatility from
market premiums, finds strategy breakevens and profit zones, and searches
for positions that move a portfolio breakeven to a target price.

Legs are given as ACTION:TYPE:STRIKE:QTY[@PREMIUM], for example
--leg BUY:CE:25000:1@100 --leg SELL:CE:25200:1@40.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/breakeven-analyzer)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addPricingCommands(rootCmd, app)
	addAnalysisCommands(rootCmd, app)
	addAdjustmentCommands(rootCmd, app)
	addJournalCommands(rootCmd, app)

	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		out := NewOutput(cmd)
		out.Error("Error: %s", ErrorMessage(err))
		return 1
	}
	return 0
}

// ErrorMessage maps an error to the one-line message shown to the user.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, errors.ErrNotAuthenticated):
		return "kite credentials missing or expired; set api_key and access_token in credentials.toml"
	case errors.Is(err, errors.ErrConfigInvalid):
		return fmt.Sprintf("configuration: %v", err)
	default:
		return err.Error()
	}
}

func (a *App) setup(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		dir = config.DefaultConfigDir()
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return errors.Wrap(errors.ErrConfigInvalid, err.Error())
	}
	a.ConfigDir = dir
	a.Config = cfg
	a.Logger = logging.NewLoggerWithConfig(cfg.Logging)

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}
	return nil
}

// Close releases the journal database.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close store")
		}
		a.store = nil
	}
}

// Store opens the journal database.
func (a *App) Store() (*store.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	path := a.Config.Store.Path
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseError, err.Error())
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseError, err.Error())
	}
	a.Logger.Debug().Str("path", path).Msg("SQLite store initialized")
	a.store = s
	return s, nil
}

// Kite connects to Kite Connect with the configured credentials.
func (a *App) Kite() (*marketdata.KiteSource, error) {
	if a.kite != nil {
		return a.kite, nil
	}
	creds := a.Config.Credentials.Kite
	k, err := marketdata.NewKiteSource(marketdata.KiteConfig{
		APIKey:            creds.APIKey,
		AccessToken:       creds.AccessToken,
		Exchange:          a.Config.MarketData.Exchange,
		RequestsPerSecond: a.Config.MarketData.RequestsPerSecond,
	}, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Msg("Kite source initialized")
	a.kite = k
	return k, nil
}

// Engine builds the analytics engine from the current configuration. A
// premium source that cannot be opened is logged and left out; legs with
// premiums still work without one.
func (a *App) Engine() *engine.Engine {
	if a.engine != nil {
		return a.engine
	}

	opts := engine.Options{
		Model:          pricing.NewModel(a.Config.Pricing, a.Logger),
		Solver:         solver.New(a.Config.Solver, a.Logger),
		Adjust:         a.Config.Adjustment,
		Recommendation: a.Config.Recommendation,
		Logger:         a.Logger,
	}

	if s, err := a.Store(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to initialize store, journal features unavailable")
	} else {
		opts.Store = s
	}

	var src marketdata.Source
	switch a.Config.MarketData.Source {
	case "kite":
		if k, err := a.Kite(); err != nil {
			a.Logger.Warn().Err(err).Msg("Kite source unavailable")
		} else {
			src = k
		}
	default:
		if opts.Store != nil {
			src = a.store
		}
	}
	if src != nil {
		resolver, err := marketdata.NewResolver(src, a.Config.MarketData, a.Logger)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to create premium resolver")
		} else {
			opts.Resolver = resolver
		}
	}

	a.engine = engine.New(opts)
	return a.engine
}

// spot returns flagSpot when set and otherwise asks Kite for the index
// level.
func (a *App) spot(ctx context.Context, symbol string, flagSpot float64) (float64, error) {
	if flagSpot > 0 {
		return flagSpot, nil
	}
	if !a.Config.HasKiteCredentials() {
		return 0, errors.NewInvalidInputError("spot", flagSpot, "--spot is required without kite credentials")
	}
	k, err := a.Kite()
	if err != nil {
		return 0, err
	}
	var src marketdata.SpotSource = k
	return src.Spot(ctx, symbol)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Breakeven Analyzer v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := config.Path(app.ConfigDir)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Pricing")
	output.Printf("  Risk-free rate:   %.2f%%\n", cfg.Pricing.RiskFreeRate*100)
	output.Printf("  IV iterations:    %d\n", cfg.Pricing.MaxIterations)
	output.Printf("  IV tolerance:     %.2f\n", cfg.Pricing.ConvergenceTolerance)
	output.Println()

	output.Bold("Solver")
	output.Printf("  Samples:          %d\n", cfg.Solver.Samples)
	output.Printf("  Min buffer:       %.0f\n", cfg.Solver.MinBuffer)
	output.Printf("  Unlimited rule:   %s\n", cfg.Solver.UnlimitedRule)
	output.Println()

	output.Bold("Adjustment")
	output.Printf("  Search mode:      %s\n", cfg.Adjustment.SearchMode)
	output.Printf("  Strike range:     %.0f%%\n", cfg.Adjustment.StrikeRangePercent*100)
	output.Printf("  Quantities:       %v\n", cfg.Adjustment.Quantities)
	output.Printf("  Tolerance:        %.0f\n", cfg.Adjustment.BreakevenTolerance)
	output.Printf("  Top results:      %d\n", cfg.Adjustment.TopN)
	output.Println()

	output.Bold("Market Data")
	output.Printf("  Source:           %s\n", cfg.MarketData.Source)
	output.Printf("  Market close:     %s %s\n", cfg.MarketData.MarketClose, cfg.MarketData.Timezone)
	output.Printf("  Kite credentials: %v\n", cfg.HasKiteCredentials())
	output.Println()

	output.Bold("Journal")
	output.Printf("  Path:             %s\n", cfg.Store.Path)
}
