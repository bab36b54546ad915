package solver

// UnlimitedRule selects how unbounded profit or loss is detected.
type UnlimitedRule string

const (
	// RuleSlope reads the payoff's slope as the underlying goes to infinity.
	RuleSlope UnlimitedRule = "slope"
	// RuleNetPosition uses the net call/put position heuristic.
	RuleNetPosition UnlimitedRule = "net_position"
)

// Config tunes the numeric solver. Buffers are in underlying price units.
type Config struct {
	MinBuffer         float64       `mapstructure:"min_buffer"`
	BufferFraction    float64       `mapstructure:"buffer_fraction"`
	Samples           int           `mapstructure:"samples"`
	GridSteps         int           `mapstructure:"grid_steps"`
	CurvePoints       int           `mapstructure:"curve_points"`
	RootTolerance     float64       `mapstructure:"root_tolerance"`
	MaxRootIterations int           `mapstructure:"max_root_iterations"`
	UnlimitedRule     UnlimitedRule `mapstructure:"unlimited_rule"`
}

// DefaultConfig returns defaults sized for index options.
func DefaultConfig() Config {
	return Config{
		MinBuffer:         2000,
		BufferFraction:    0.2,
		Samples:           1000,
		GridSteps:         1000,
		CurvePoints:       50,
		RootTolerance:     1e-12,
		MaxRootIterations: 100,
		UnlimitedRule:     RuleSlope,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinBuffer < 0 {
		c.MinBuffer = def.MinBuffer
	}
	if c.BufferFraction < 0 {
		c.BufferFraction = def.BufferFraction
	}
	if c.Samples < 2 {
		c.Samples = def.Samples
	}
	if c.GridSteps < 1 {
		c.GridSteps = def.GridSteps
	}
	if c.CurvePoints < 2 {
		c.CurvePoints = def.CurvePoints
	}
	if c.RootTolerance <= 0 {
		c.RootTolerance = def.RootTolerance
	}
	if c.MaxRootIterations <= 0 {
		c.MaxRootIterations = def.MaxRootIterations
	}
	if c.UnlimitedRule != RuleNetPosition {
		c.UnlimitedRule = RuleSlope
	}
	return c
}
