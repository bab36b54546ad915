package adjust

import "strings"

// SearchMode selects how combinations of additional positions are enumerated.
type SearchMode string

const (
	// ModeCapped evaluates singles, then distinct-strike pairs, then triples
	// drawn from the first TripleCandidateLimit candidates, stopping after
	// MaxCombinations.
	ModeCapped SearchMode = "capped"
	// ModeBeam grows combinations one leg at a time, keeping the BeamWidth
	// combinations whose breakevens land closest to the target.
	ModeBeam SearchMode = "beam"
)

// Config tunes the adjustment search.
type Config struct {
	StrikeRangePercent    float64            `mapstructure:"strike_range_percent"`
	DefaultStrikeInterval float64            `mapstructure:"default_strike_interval"`
	StrikeIntervals       map[string]float64 `mapstructure:"strike_intervals"`
	Quantities            []int              `mapstructure:"quantities"`
	MaxCombinations       int                `mapstructure:"max_combinations"`
	TripleCandidateLimit  int                `mapstructure:"triple_candidate_limit"`
	BreakevenTolerance    float64            `mapstructure:"breakeven_tolerance"`
	TopN                  int                `mapstructure:"top_n"`
	DefaultVolatility     float64            `mapstructure:"default_volatility"`
	RiskFreeRate          float64            `mapstructure:"risk_free_rate"`
	DefaultMarketLot      int                `mapstructure:"default_market_lot"`
	MarketLots            map[string]int     `mapstructure:"market_lots"`
	MinPremium            float64            `mapstructure:"min_premium"`
	Workers               int                `mapstructure:"workers"`
	SearchMode            SearchMode         `mapstructure:"search_mode"`
	BeamWidth             int                `mapstructure:"beam_width"`
	MaxLegs               int                `mapstructure:"max_legs"`
}

// DefaultConfig returns defaults tuned for NSE index options.
func DefaultConfig() Config {
	return Config{
		StrikeRangePercent:    0.10,
		DefaultStrikeInterval: 100,
		StrikeIntervals:       map[string]float64{"NIFTY": 50},
		Quantities:            []int{1, 2, 3},
		MaxCombinations:       100,
		TripleCandidateLimit:  20,
		BreakevenTolerance:    100,
		TopN:                  5,
		DefaultVolatility:     0.15,
		RiskFreeRate:          0.065,
		DefaultMarketLot:      75,
		MarketLots:            map[string]int{"NIFTY": 75},
		MinPremium:            0.1,
		Workers:               4,
		SearchMode:            ModeCapped,
		BeamWidth:             10,
		MaxLegs:               3,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.StrikeRangePercent <= 0 {
		c.StrikeRangePercent = def.StrikeRangePercent
	}
	if c.DefaultStrikeInterval <= 0 {
		c.DefaultStrikeInterval = def.DefaultStrikeInterval
	}
	if c.StrikeIntervals == nil {
		c.StrikeIntervals = def.StrikeIntervals
	}
	if len(c.Quantities) == 0 {
		c.Quantities = def.Quantities
	}
	if c.MaxCombinations <= 0 {
		c.MaxCombinations = def.MaxCombinations
	}
	if c.TripleCandidateLimit <= 0 {
		c.TripleCandidateLimit = def.TripleCandidateLimit
	}
	if c.BreakevenTolerance <= 0 {
		c.BreakevenTolerance = def.BreakevenTolerance
	}
	if c.TopN <= 0 {
		c.TopN = def.TopN
	}
	if c.DefaultVolatility <= 0 {
		c.DefaultVolatility = def.DefaultVolatility
	}
	if c.DefaultMarketLot <= 0 {
		c.DefaultMarketLot = def.DefaultMarketLot
	}
	if c.MarketLots == nil {
		c.MarketLots = def.MarketLots
	}
	if c.MinPremium <= 0 {
		c.MinPremium = def.MinPremium
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.SearchMode == "" {
		c.SearchMode = def.SearchMode
	}
	if c.BeamWidth <= 0 {
		c.BeamWidth = def.BeamWidth
	}
	if c.MaxLegs <= 0 {
		c.MaxLegs = def.MaxLegs
	}
	return c
}

// StrikeInterval returns the strike spacing for symbol. Config keys are
// matched case-insensitively since viper lowercases map keys.
func (c Config) StrikeInterval(symbol string) float64 {
	for k, v := range c.StrikeIntervals {
		if strings.EqualFold(k, symbol) && v > 0 {
			return v
		}
	}
	return c.DefaultStrikeInterval
}

// MarketLot returns the contract multiplier for symbol.
func (c Config) MarketLot(symbol string) int {
	for k, v := range c.MarketLots {
		if strings.EqualFold(k, symbol) && v > 0 {
			return v
		}
	}
	return c.DefaultMarketLot
}
