// Package pricing implements the Black-Scholes model: option prices,
// implied volatility and Greeks.
package pricing

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/pkg/utils"
)

// Model prices European options. It holds no mutable state and is safe
// for concurrent use.
type Model struct {
	cfg    Config
	logger zerolog.Logger
}

// NewModel creates a model with the given configuration.
func NewModel(cfg Config, logger zerolog.Logger) *Model {
	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.Precision <= 0 {
		cfg.Precision = def.Precision
	}
	if cfg.InitialVolatility <= 0 {
		cfg.InitialVolatility = def.InitialVolatility
	}
	if cfg.MaxVolatility <= 0 {
		cfg.MaxVolatility = def.MaxVolatility
	}
	if cfg.MinVolatility <= 0 {
		cfg.MinVolatility = def.MinVolatility
	}
	if cfg.ConvergenceTolerance <= 0 {
		cfg.ConvergenceTolerance = def.ConvergenceTolerance
	}
	return &Model{cfg: cfg, logger: logger}
}

var defaultModel = NewModel(DefaultConfig(), zerolog.Nop())

// Default returns a model with DefaultConfig and no logging.
func Default() *Model { return defaultModel }

// Config returns the model configuration.
func (m *Model) Config() Config { return m.cfg }

func cdf(x float64) float64 { return distuv.UnitNormal.CDF(x) }

func pdf(x float64) float64 { return distuv.UnitNormal.Prob(x) }

func validateInputs(in models.OptionPricingInputs, needVol bool) error {
	switch {
	case !(in.TimeToExpiry > 0):
		return errors.NewInvalidInputError("time_to_expiry", in.TimeToExpiry, "must be positive")
	case needVol && !(in.Volatility > 0):
		return errors.NewInvalidInputError("volatility", in.Volatility, "must be positive")
	case !(in.Spot > 0):
		return errors.NewInvalidInputError("spot", in.Spot, "must be positive")
	case !(in.Strike > 0):
		return errors.NewInvalidInputError("strike", in.Strike, "must be positive")
	case !in.Type.Valid():
		return errors.NewInvalidInputError("option_type", in.Type, "must be CE or PE")
	}
	return nil
}

func d1d2(in models.OptionPricingInputs) (float64, float64) {
	volT := in.Volatility * math.Sqrt(in.TimeToExpiry)
	d1 := (math.Log(in.Spot/in.Strike) + (in.RiskFreeRate+0.5*in.Volatility*in.Volatility)*in.TimeToExpiry) / volT
	return d1, d1 - volT
}

// theoretical is the unrounded model price; inputs must be valid.
func theoretical(in models.OptionPricingInputs) float64 {
	d1, d2 := d1d2(in)
	discounted := in.Strike * math.Exp(-in.RiskFreeRate*in.TimeToExpiry)
	if in.Type == models.OptionTypeCall {
		return in.Spot*cdf(d1) - discounted*cdf(d2)
	}
	return discounted*cdf(-d2) - in.Spot*cdf(-d1)
}

// Price returns the Black-Scholes premium rounded to two decimals.
func (m *Model) Price(in models.OptionPricingInputs) (float64, error) {
	if err := validateInputs(in, true); err != nil {
		return 0, err
	}
	price := theoretical(in)
	m.logger.Debug().
		Float64("spot", in.Spot).
		Float64("strike", in.Strike).
		Float64("tte", in.TimeToExpiry).
		Float64("vol", in.Volatility).
		Str("type", string(in.Type)).
		Float64("price", price).
		Msg("Black-Scholes price")
	return utils.Round2(price), nil
}

// Price prices with the default model.
func Price(in models.OptionPricingInputs) (float64, error) {
	return defaultModel.Price(in)
}
