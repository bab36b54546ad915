package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Breakeven Analyzer Configuration

[pricing]
# Annual risk-free rate used by Black-Scholes
risk_free_rate = 0.065
# Implied volatility search
max_iterations = 100
precision = 1e-6
initial_volatility = 0.5
max_volatility = 5.0
min_volatility = 0.0001
# A model premium within this many rupees of the market premium counts as converged
convergence_tolerance = 5.0
# Return zero Greeks instead of failing on invalid inputs
permissive_greeks = false

[solver]
# Search range buffer around the strikes: max(min_buffer, buffer_fraction x strike width)
min_buffer = 2000.0
buffer_fraction = 0.2
# Bracketing samples for breakeven search
samples = 1000
# Grid steps for max profit / max loss
grid_steps = 1000
# Points in the reported payoff curve
curve_points = 50
root_tolerance = 1e-12
max_root_iterations = 100
# Unlimited profit/loss detection: "slope" or "net_position"
unlimited_rule = "slope"

[adjustment]
# Candidate strikes span spot +/- this fraction
strike_range_percent = 0.10
default_strike_interval = 100.0
# Lots per candidate position
quantities = [1, 2, 3]
max_combinations = 100
triple_candidate_limit = 20
# A new breakeven must land strictly within this distance of the target
breakeven_tolerance = 100.0
top_n = 5
default_volatility = 0.15
risk_free_rate = 0.065
default_market_lot = 75
min_premium = 0.1
workers = 4
# Combination search: "capped" or "beam"
search_mode = "capped"
beam_width = 10
max_legs = 3

[adjustment.strike_intervals]
NIFTY = 50.0

[adjustment.market_lots]
NIFTY = 75

[recommendation]
# Recommended strikes are rounded to this interval
interval = 50.0
volatility = 0.15

[market_data]
# Premium source for legs without a premium: "store" or "kite"
source = "store"
exchange = "NFO"
cache_size_mb = 8
cache_ttl_seconds = 300
fetch_concurrency = 4
# After this time the current day's prices are used
market_close = "15:30"
timezone = "Asia/Kolkata"
requests_per_second = 3.0

[market_data.retry]
max_attempts = 3
initial_delay = "200ms"
max_delay = "5s"
backoff_factor = 2.0

[store]
# Leave empty for ~/.config/breakeven-analyzer/data/breakeven.db
path = ""

[logging]
# debug, info, warn, error
level = "warn"
console = true
file = false
file_path = ""
max_size = 100
max_backups = 7
max_age = 30
`

const credentialsTemplate = `# Breakeven Analyzer Credentials
# WARNING: Keep this file secure! Do not commit to version control.

[kite]
api_key = ""
api_secret = ""
# Access token from an existing Kite session
access_token = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Use restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}

	return nil
}
