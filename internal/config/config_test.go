package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breakeven-analyzer/internal/adjust"
	"breakeven-analyzer/internal/solver"
)

func TestLoad_WritesTemplatesAndUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "config.toml"))
	assert.FileExists(t, filepath.Join(dir, "credentials.toml"))

	info, err := os.Stat(filepath.Join(dir, "credentials.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	def := Default(dir)
	assert.Equal(t, def.Pricing, cfg.Pricing)
	assert.Equal(t, def.Solver, cfg.Solver)
	assert.Equal(t, def.Recommendation, cfg.Recommendation)
	assert.Equal(t, def.MarketData, cfg.MarketData)
	assert.Equal(t, filepath.Join(dir, "data", "breakeven.db"), cfg.Store.Path)
	assert.Equal(t, 0.10, cfg.Adjustment.StrikeRangePercent)
	assert.Equal(t, 50.0, cfg.Adjustment.StrikeInterval("NIFTY"))
	assert.Equal(t, 100.0, cfg.Adjustment.StrikeInterval("BANKNIFTY"))
	assert.False(t, cfg.HasKiteCredentials())
}

func TestLoad_TemplateMatchesDefaults(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.NoError(t, err)

	// The second load reads the written template instead of the defaults.
	cfg, err := Load(dir)
	require.NoError(t, err)

	def := Default(dir)
	assert.Equal(t, def.Pricing, cfg.Pricing)
	assert.Equal(t, def.Solver, cfg.Solver)
	assert.Equal(t, def.Recommendation, cfg.Recommendation)
	assert.Equal(t, def.MarketData, cfg.MarketData)
	assert.Equal(t, def.Logging, cfg.Logging)
	assert.Equal(t, def.Store, cfg.Store)
	assert.Equal(t, def.Adjustment.Quantities, cfg.Adjustment.Quantities)
	assert.Equal(t, def.Adjustment.SearchMode, cfg.Adjustment.SearchMode)
	assert.Equal(t, 75, cfg.Adjustment.MarketLot("NIFTY"))
	assert.Equal(t, 200*time.Millisecond, cfg.MarketData.Retry.InitialDelay)
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
[solver]
unlimited_rule = "net_position"

[adjustment]
search_mode = "beam"
quantities = [1]

[adjustment.strike_intervals]
BANKNIFTY = 100.0
NIFTY = 50.0

[market_data]
source = "kite"

[store]
path = "~/journal.db"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, solver.RuleNetPosition, cfg.Solver.UnlimitedRule)
	assert.Equal(t, adjust.ModeBeam, cfg.Adjustment.SearchMode)
	assert.Equal(t, []int{1}, cfg.Adjustment.Quantities)
	assert.Equal(t, 100.0, cfg.Adjustment.StrikeInterval("banknifty"))
	assert.Equal(t, "kite", cfg.MarketData.Source)
	assert.Equal(t, 0.065, cfg.Pricing.RiskFreeRate, "unset keys keep defaults")

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "journal.db"), cfg.Store.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BREAKEVEN_KITE_API_KEY", "key")
	t.Setenv("BREAKEVEN_KITE_ACCESS_TOKEN", "token")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "key", cfg.Credentials.Kite.APIKey)
	assert.True(t, cfg.HasKiteCredentials())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative rate", func(c *Config) { c.Pricing.RiskFreeRate = -0.1 }},
		{"volatility bounds", func(c *Config) { c.Pricing.MaxVolatility = c.Pricing.MinVolatility }},
		{"unlimited rule", func(c *Config) { c.Solver.UnlimitedRule = "guess" }},
		{"search mode", func(c *Config) { c.Adjustment.SearchMode = "exhaustive" }},
		{"tolerance", func(c *Config) { c.Adjustment.BreakevenTolerance = 0 }},
		{"strike range", func(c *Config) { c.Adjustment.StrikeRangePercent = 1.5 }},
		{"quantities", func(c *Config) { c.Adjustment.Quantities = []int{1, 0} }},
		{"source", func(c *Config) { c.MarketData.Source = "nse" }},
		{"market close", func(c *Config) { c.MarketData.MarketClose = "late" }},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }},
	}

	require.NoError(t, Default(t.TempDir()).Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[adjustment]\nsearch_mode = \"wide\"\n"), 0644))
	_, err := Load(dir)
	assert.Error(t, err)
}
