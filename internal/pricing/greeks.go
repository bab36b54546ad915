package pricing

import (
	"fmt"
	"math"
	"time"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/pkg/utils"
)

// gammaFloor is the smallest gamma treated as non-zero by ThetaGammaRatio.
const gammaFloor = 1e-10

// Greeks computes per-unit sensitivities. Expired options (T <= 0) have
// zero Greeks. Invalid inputs yield a *errors.GreeksError unless the model
// is permissive, in which case zeros are returned.
func (m *Model) Greeks(in models.OptionPricingInputs) (models.Greeks, error) {
	if in.TimeToExpiry <= 0 {
		return models.Greeks{}, nil
	}
	if err := validateInputs(in, true); err != nil {
		return m.greeksFailure(in, err)
	}

	sqrtT := math.Sqrt(in.TimeToExpiry)
	d1, d2 := d1d2(in)
	nd1 := pdf(d1)
	discounted := in.Strike * math.Exp(-in.RiskFreeRate*in.TimeToExpiry)
	decay := -(in.Spot * nd1 * in.Volatility) / (2 * sqrtT)

	var g models.Greeks
	g.Gamma = nd1 / (in.Spot * in.Volatility * sqrtT)
	g.Vega = in.Spot * nd1 * sqrtT / 100
	if in.Type == models.OptionTypeCall {
		g.Delta = cdf(d1)
		g.Theta = (decay - in.RiskFreeRate*discounted*cdf(d2)) / 365
		g.Rho = in.TimeToExpiry * discounted * cdf(d2)
	} else {
		g.Delta = cdf(d1) - 1
		g.Theta = (decay + in.RiskFreeRate*discounted*cdf(-d2)) / 365
		g.Rho = -in.TimeToExpiry * discounted * cdf(-d2)
	}

	for _, v := range []float64{g.Delta, g.Gamma, g.Theta, g.Vega, g.Rho} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return m.greeksFailure(in, fmt.Errorf("non-finite sensitivity"))
		}
	}
	return roundGreeks(g), nil
}

func (m *Model) greeksFailure(in models.OptionPricingInputs, err error) (models.Greeks, error) {
	gerr := errors.NewGreeksError(in.Spot, in.Strike, err)
	if m.cfg.PermissiveGreeks {
		m.logger.Warn().Err(gerr).Msg("Returning zero Greeks")
		return models.Greeks{}, nil
	}
	return models.Greeks{}, gerr
}

func roundGreeks(g models.Greeks) models.Greeks {
	return models.Greeks{
		Delta: utils.Round6(g.Delta),
		Gamma: utils.Round6(g.Gamma),
		Theta: utils.Round6(g.Theta),
		Vega:  utils.Round6(g.Vega),
		Rho:   utils.Round6(g.Rho),
	}
}

// Greeks computes sensitivities with the default (strict) model.
func Greeks(in models.OptionPricingInputs) (models.Greeks, error) {
	return defaultModel.Greeks(in)
}

// PositionGreeks is one position's per-unit Greeks and its size.
// Quantity is signed: positive long, negative short.
type PositionGreeks struct {
	Greeks    models.Greeks
	Quantity  int
	MarketLot int
}

// PortfolioGreeks sums per-unit Greeks scaled by signed quantity times lot size.
func PortfolioGreeks(positions []PositionGreeks) models.Greeks {
	var total models.Greeks
	for _, p := range positions {
		total = total.Add(p.Greeks.Scale(float64(p.Quantity * p.MarketLot)))
	}
	return roundGreeks(total)
}

// ThetaGammaRatio ranks positions by time decay earned per unit of gamma.
// A vanishing gamma maps to +Inf or -Inf by the sign of theta.
func ThetaGammaRatio(theta, gamma float64) float64 {
	if math.Abs(gamma) < gammaFloor {
		if theta > 0 {
			return math.Inf(1)
		}
		return math.Inf(-1)
	}
	return utils.Round6(theta / gamma)
}

// TimeToExpiry is the year fraction from asOf to expiry in whole calendar
// days, never negative.
func TimeToExpiry(expiry, asOf time.Time) float64 {
	days := utils.DaysBetween(asOf, expiry)
	if days <= 0 {
		return 0
	}
	return float64(days) / 365
}
