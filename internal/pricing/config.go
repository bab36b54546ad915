package pricing

// Config tunes the Black-Scholes model and its implied volatility solver.
type Config struct {
	RiskFreeRate         float64 `mapstructure:"risk_free_rate"`
	MaxIterations        int     `mapstructure:"max_iterations"`
	Precision            float64 `mapstructure:"precision"`
	InitialVolatility    float64 `mapstructure:"initial_volatility"`
	MaxVolatility        float64 `mapstructure:"max_volatility"`
	MinVolatility        float64 `mapstructure:"min_volatility"`
	ConvergenceTolerance float64 `mapstructure:"convergence_tolerance"`
	// PermissiveGreeks returns zero Greeks instead of an error on bad inputs.
	PermissiveGreeks bool `mapstructure:"permissive_greeks"`
}

// DefaultConfig returns the NSE defaults.
func DefaultConfig() Config {
	return Config{
		RiskFreeRate:         0.065,
		MaxIterations:        100,
		Precision:            1e-6,
		InitialVolatility:    0.5,
		MaxVolatility:        5.0,
		MinVolatility:        0.0001,
		ConvergenceTolerance: 5.0,
	}
}
