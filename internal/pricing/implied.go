package pricing

import (
	"math"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/models"
)

// IVResult is the outcome of an implied volatility search. A result that
// did not converge is still the best estimate found.
type IVResult struct {
	Volatility float64 `json:"volatility"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Capped     bool    `json:"capped"`
	ModelPrice float64 `json:"model_price"`
}

const vegaFloor = 1e-10

// ImpliedVolatility finds sigma such that the model price matches
// marketPrice, by Newton-Raphson on vega. in.Volatility is ignored.
func (m *Model) ImpliedVolatility(marketPrice float64, in models.OptionPricingInputs) (IVResult, error) {
	if !(marketPrice > 0) {
		return IVResult{}, errors.NewInvalidInputError("market_price", marketPrice, "must be positive")
	}
	if err := validateInputs(in, false); err != nil {
		return IVResult{}, err
	}

	log := m.logger.With().
		Float64("market_price", marketPrice).
		Float64("strike", in.Strike).
		Str("type", string(in.Type)).
		Logger()

	sigma := m.cfg.InitialVolatility
	for i := 0; i < m.cfg.MaxIterations; i++ {
		in.Volatility = sigma
		diff := marketPrice - theoretical(in)
		if math.Abs(diff) < m.cfg.Precision {
			return m.result(in, sigma, i+1, true, false), nil
		}

		d1, _ := d1d2(in)
		vega := in.Spot * math.Sqrt(in.TimeToExpiry) * pdf(d1)
		if vega < vegaFloor {
			log.Debug().Int("iteration", i).Float64("sigma", sigma).Msg("Vega vanished, stopping IV search")
			return m.result(in, sigma, i+1, false, false), nil
		}

		sigma += diff / vega
		if sigma <= 0 {
			sigma = m.cfg.MinVolatility
		}
		if sigma > m.cfg.MaxVolatility {
			log.Debug().Int("iteration", i).Msg("IV capped")
			return m.result(in, m.cfg.MaxVolatility, i+1, false, true), nil
		}
	}

	log.Debug().Float64("sigma", sigma).Msg("IV search hit iteration cap")
	return m.result(in, sigma, m.cfg.MaxIterations, false, false), nil
}

func (m *Model) result(in models.OptionPricingInputs, sigma float64, iterations int, converged, capped bool) IVResult {
	in.Volatility = sigma
	price, _ := m.Price(in)
	return IVResult{
		Volatility: sigma,
		Iterations: iterations,
		Converged:  converged,
		Capped:     capped,
		ModelPrice: price,
	}
}

// ConvergenceAchieved reports whether a model premium is close enough to
// the market premium to trust the implied volatility.
func (m *Model) ConvergenceAchieved(calculated, market float64) bool {
	return math.Abs(calculated-market) < m.cfg.ConvergenceTolerance
}

// ImpliedVolatility runs the search with the default model.
func ImpliedVolatility(marketPrice float64, in models.OptionPricingInputs) (IVResult, error) {
	return defaultModel.ImpliedVolatility(marketPrice, in)
}
