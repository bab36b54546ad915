package solver

import (
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/internal/payoff"
)

// NetPositions returns the signed call and put quantities of legs.
func NetPositions(legs []models.OptionLeg) (calls, puts int) {
	for _, leg := range legs {
		if leg.Type == models.OptionTypeCall {
			calls += leg.SignedQuantity()
		} else {
			puts += leg.SignedQuantity()
		}
	}
	return calls, puts
}

// CheckUnlimitedProfitPotential applies the net-position rule: profit is
// unbounded when the legs are net long calls or net short puts.
func CheckUnlimitedProfitPotential(legs []models.OptionLeg) bool {
	calls, puts := NetPositions(legs)
	return calls > 0 || puts < 0
}

// CheckUnlimitedLossPotential applies the net-position rule: loss is
// unbounded only when the legs are net short calls. A long put loses at
// most its strike times quantity.
func CheckUnlimitedLossPotential(legs []models.OptionLeg) bool {
	calls, _ := NetPositions(legs)
	return calls < 0
}

// Exposure describes the payoff's behaviour at the ends of the price axis.
type Exposure struct {
	NetCallPosition int     `json:"net_call_position"`
	NetPutPosition  int     `json:"net_put_position"`
	UpperSlope      float64 `json:"upper_slope"`
	ValueAtZero     float64 `json:"value_at_zero"`
	UnlimitedProfit bool    `json:"unlimited_profit"`
	UnlimitedLoss   bool    `json:"unlimited_loss"`
}

// AsymptoticExposure reads unbounded profit and loss off the piecewise
// linear payoff. Above the highest strike every put is worthless and the
// slope equals the net call position, so the payoff diverges exactly when
// that slope is non-zero. The underlying cannot fall below zero, so the
// lower tail is always bounded by the payoff at zero.
func AsymptoticExposure(strat *payoff.Strategy) Exposure {
	legs := strat.Legs()
	calls, puts := NetPositions(legs)
	slope := float64(calls)
	return Exposure{
		NetCallPosition: calls,
		NetPutPosition:  puts,
		UpperSlope:      slope,
		ValueAtZero:     strat.At(0),
		UnlimitedProfit: slope > 0,
		UnlimitedLoss:   slope < 0,
	}
}

// Exposure evaluates unbounded profit and loss with the configured rule.
func (s *Solver) Exposure(strat *payoff.Strategy) Exposure {
	exp := AsymptoticExposure(strat)
	if s.cfg.UnlimitedRule == RuleNetPosition {
		legs := strat.Legs()
		exp.UnlimitedProfit = CheckUnlimitedProfitPotential(legs)
		exp.UnlimitedLoss = CheckUnlimitedLossPotential(legs)
	}
	return exp
}
