// Package config provides configuration management for the analyzer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"breakeven-analyzer/internal/adjust"
	"breakeven-analyzer/internal/logging"
	"breakeven-analyzer/internal/marketdata"
	"breakeven-analyzer/internal/pricing"
	"breakeven-analyzer/internal/solver"
)

// Config holds all application configuration.
type Config struct {
	Pricing        pricing.Config              `mapstructure:"pricing"`
	Solver         solver.Config               `mapstructure:"solver"`
	Adjustment     adjust.Config               `mapstructure:"adjustment"`
	Recommendation adjust.RecommendationConfig `mapstructure:"recommendation"`
	MarketData     marketdata.Config           `mapstructure:"market_data"`
	Store          StoreConfig                 `mapstructure:"store"`
	Logging        logging.LogConfig           `mapstructure:"logging"`
	Credentials    Credentials                 `mapstructure:"-" json:"-"` // Loaded separately
}

// StoreConfig holds the journal database location.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// Credentials holds API credentials.
type Credentials struct {
	Kite KiteCredentials `mapstructure:"kite"`
}

// KiteCredentials holds Kite Connect credentials. The access token comes
// from a session created outside this tool.
type KiteCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	APISecret   string `mapstructure:"api_secret"`
	AccessToken string `mapstructure:"access_token"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/breakeven-analyzer"
	}
	return filepath.Join(home, ".config", "breakeven-analyzer")
}

// Default returns the built-in configuration for configDir.
func Default(configDir string) *Config {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	logCfg := logging.DefaultLogConfig()
	logCfg.FilePath = filepath.Join(configDir, "logs", "breakeven.log")
	return &Config{
		Pricing:        pricing.DefaultConfig(),
		Solver:         solver.DefaultConfig(),
		Adjustment:     adjust.DefaultConfig(),
		Recommendation: adjust.DefaultRecommendationConfig(),
		MarketData:     marketdata.DefaultConfig(),
		Store:          StoreConfig{Path: filepath.Join(configDir, "data", "breakeven.db")},
		Logging:        logCfg,
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files
// are written from templates and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	// Load main config
	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	// Load credentials
	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	def := Default(configDir)
	if cfg.Store.Path == "" {
		cfg.Store.Path = def.Store.Path
	}
	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = def.Logging.FilePath
	}
	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Logging.FilePath = expandHome(cfg.Logging.FilePath)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Path returns the location of the main config file.
func Path(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, Default(configDir))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

// setDefaults registers every key so env-free runs without a config file
// still see the full configuration.
func setDefaults(v *viper.Viper, d *Config) {
	// Pricing
	v.SetDefault("pricing.risk_free_rate", d.Pricing.RiskFreeRate)
	v.SetDefault("pricing.max_iterations", d.Pricing.MaxIterations)
	v.SetDefault("pricing.precision", d.Pricing.Precision)
	v.SetDefault("pricing.initial_volatility", d.Pricing.InitialVolatility)
	v.SetDefault("pricing.max_volatility", d.Pricing.MaxVolatility)
	v.SetDefault("pricing.min_volatility", d.Pricing.MinVolatility)
	v.SetDefault("pricing.convergence_tolerance", d.Pricing.ConvergenceTolerance)
	v.SetDefault("pricing.permissive_greeks", d.Pricing.PermissiveGreeks)

	// Solver
	v.SetDefault("solver.min_buffer", d.Solver.MinBuffer)
	v.SetDefault("solver.buffer_fraction", d.Solver.BufferFraction)
	v.SetDefault("solver.samples", d.Solver.Samples)
	v.SetDefault("solver.grid_steps", d.Solver.GridSteps)
	v.SetDefault("solver.curve_points", d.Solver.CurvePoints)
	v.SetDefault("solver.root_tolerance", d.Solver.RootTolerance)
	v.SetDefault("solver.max_root_iterations", d.Solver.MaxRootIterations)
	v.SetDefault("solver.unlimited_rule", string(d.Solver.UnlimitedRule))

	// Adjustment
	a := d.Adjustment
	v.SetDefault("adjustment.strike_range_percent", a.StrikeRangePercent)
	v.SetDefault("adjustment.default_strike_interval", a.DefaultStrikeInterval)
	v.SetDefault("adjustment.strike_intervals", a.StrikeIntervals)
	v.SetDefault("adjustment.quantities", a.Quantities)
	v.SetDefault("adjustment.max_combinations", a.MaxCombinations)
	v.SetDefault("adjustment.triple_candidate_limit", a.TripleCandidateLimit)
	v.SetDefault("adjustment.breakeven_tolerance", a.BreakevenTolerance)
	v.SetDefault("adjustment.top_n", a.TopN)
	v.SetDefault("adjustment.default_volatility", a.DefaultVolatility)
	v.SetDefault("adjustment.risk_free_rate", a.RiskFreeRate)
	v.SetDefault("adjustment.default_market_lot", a.DefaultMarketLot)
	v.SetDefault("adjustment.market_lots", a.MarketLots)
	v.SetDefault("adjustment.min_premium", a.MinPremium)
	v.SetDefault("adjustment.workers", a.Workers)
	v.SetDefault("adjustment.search_mode", string(a.SearchMode))
	v.SetDefault("adjustment.beam_width", a.BeamWidth)
	v.SetDefault("adjustment.max_legs", a.MaxLegs)

	// Recommendation
	v.SetDefault("recommendation.interval", d.Recommendation.Interval)
	v.SetDefault("recommendation.volatility", d.Recommendation.Volatility)

	// Market data
	m := d.MarketData
	v.SetDefault("market_data.source", m.Source)
	v.SetDefault("market_data.exchange", m.Exchange)
	v.SetDefault("market_data.cache_size_mb", m.CacheSizeMB)
	v.SetDefault("market_data.cache_ttl_seconds", m.CacheTTLSeconds)
	v.SetDefault("market_data.fetch_concurrency", m.FetchConcurrency)
	v.SetDefault("market_data.market_close", m.MarketClose)
	v.SetDefault("market_data.timezone", m.Timezone)
	v.SetDefault("market_data.requests_per_second", m.RequestsPerSecond)
	v.SetDefault("market_data.retry.max_attempts", m.Retry.MaxAttempts)
	v.SetDefault("market_data.retry.initial_delay", m.Retry.InitialDelay)
	v.SetDefault("market_data.retry.max_delay", m.Retry.MaxDelay)
	v.SetDefault("market_data.retry.backoff_factor", m.Retry.BackoffFactor)

	// Store
	v.SetDefault("store.path", d.Store.Path)

	// Logging
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.console", d.Logging.Console)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.file_path", d.Logging.FilePath)
	v.SetDefault("logging.max_size", d.Logging.MaxSize)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)
}

func applyEnvOverrides(cfg *Config) {
	// Kite credentials
	if v := os.Getenv("BREAKEVEN_KITE_API_KEY"); v != "" {
		cfg.Credentials.Kite.APIKey = v
	}
	if v := os.Getenv("BREAKEVEN_KITE_API_SECRET"); v != "" {
		cfg.Credentials.Kite.APISecret = v
	}
	if v := os.Getenv("BREAKEVEN_KITE_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Kite.AccessToken = v
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Pricing
	if c.Pricing.RiskFreeRate < 0 || c.Pricing.RiskFreeRate >= 1 {
		return fmt.Errorf("pricing.risk_free_rate must be in [0, 1)")
	}
	if c.Pricing.MinVolatility <= 0 || c.Pricing.MaxVolatility <= c.Pricing.MinVolatility {
		return fmt.Errorf("pricing volatility bounds must satisfy 0 < min_volatility < max_volatility")
	}

	// Solver
	switch c.Solver.UnlimitedRule {
	case solver.RuleSlope, solver.RuleNetPosition:
	default:
		return fmt.Errorf("invalid solver.unlimited_rule: %s (must be 'slope' or 'net_position')", c.Solver.UnlimitedRule)
	}

	// Adjustment
	switch c.Adjustment.SearchMode {
	case adjust.ModeCapped, adjust.ModeBeam:
	default:
		return fmt.Errorf("invalid adjustment.search_mode: %s (must be 'capped' or 'beam')", c.Adjustment.SearchMode)
	}
	if c.Adjustment.BreakevenTolerance <= 0 {
		return fmt.Errorf("adjustment.breakeven_tolerance must be positive")
	}
	if c.Adjustment.StrikeRangePercent <= 0 || c.Adjustment.StrikeRangePercent >= 1 {
		return fmt.Errorf("adjustment.strike_range_percent must be in (0, 1)")
	}
	for _, q := range c.Adjustment.Quantities {
		if q <= 0 {
			return fmt.Errorf("adjustment.quantities must be positive")
		}
	}

	// Market data
	switch c.MarketData.Source {
	case "store", "kite":
	default:
		return fmt.Errorf("invalid market_data.source: %s (must be 'store' or 'kite')", c.MarketData.Source)
	}
	if _, err := marketdata.NewSession(c.MarketData.MarketClose, c.MarketData.Timezone); err != nil {
		return fmt.Errorf("invalid market_data session: %w", err)
	}

	// Logging
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// HasKiteCredentials reports whether Kite can be used.
func (c *Config) HasKiteCredentials() bool {
	return c.Credentials.Kite.APIKey != "" && c.Credentials.Kite.AccessToken != ""
}
