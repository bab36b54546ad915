// Package payoff evaluates the expiry profit and loss of a set of option legs.
package payoff

import (
	"math"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/models"
)

// LegPayoff is one leg's P&L at expiry for an underlying price of spot.
// The premium must be resolved.
func LegPayoff(spot float64, leg models.OptionLeg, premium float64) float64 {
	sign := float64(leg.Sign())
	qty := float64(leg.Quantity)
	return sign*leg.Intrinsic(spot)*qty - sign*premium*qty
}

// Strategy is a validated leg set with every premium resolved.
type Strategy struct {
	legs     []models.OptionLeg
	premiums []float64
}

// New validates legs. Every leg must satisfy its invariants and carry a
// premium; a missing premium is an error, never zero.
func New(legs []models.OptionLeg) (*Strategy, error) {
	if len(legs) == 0 {
		return nil, errors.ErrNoLegs
	}
	s := &Strategy{
		legs:     models.CloneLegs(legs),
		premiums: make([]float64, len(legs)),
	}
	for i, leg := range s.legs {
		if err := leg.Validate(); err != nil {
			return nil, errors.NewLegError(i, leg.String(), errors.NewInvalidInputError("leg", leg.String(), err.Error()))
		}
		p, ok := leg.PremiumValue()
		if !ok {
			return nil, errors.NewLegError(i, leg.String(), errors.ErrMissingPremium)
		}
		s.premiums[i] = p
	}
	return s, nil
}

// MustNew is New for leg sets known to be valid, such as test fixtures.
func MustNew(legs []models.OptionLeg) *Strategy {
	s, err := New(legs)
	if err != nil {
		panic(err)
	}
	return s
}

// At returns the total P&L at spot.
func (s *Strategy) At(spot float64) float64 {
	total := 0.0
	for i, leg := range s.legs {
		total += LegPayoff(spot, leg, s.premiums[i])
	}
	return total
}

// Legs returns a copy of the legs.
func (s *Strategy) Legs() []models.OptionLeg {
	return models.CloneLegs(s.legs)
}

// Len is the number of legs.
func (s *Strategy) Len() int { return len(s.legs) }

// StrikeRange returns the lowest and highest strike.
func (s *Strategy) StrikeRange() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, leg := range s.legs {
		lo = math.Min(lo, leg.Strike)
		hi = math.Max(hi, leg.Strike)
	}
	return lo, hi
}

// NetPremium is the premium cash flow, positive for a net credit.
func (s *Strategy) NetPremium() float64 {
	total := 0.0
	for i, leg := range s.legs {
		total -= float64(leg.Sign()) * s.premiums[i] * float64(leg.Quantity)
	}
	return total
}

// CombinedPayoff is the total P&L of legs at spot. It fails if any leg is
// invalid or lacks a premium.
func CombinedPayoff(spot float64, legs []models.OptionLeg) (float64, error) {
	s, err := New(legs)
	if err != nil {
		return 0, err
	}
	return s.At(spot), nil
}

// Curve evaluates the strategy at each price.
func (s *Strategy) Curve(prices []float64) []float64 {
	out := make([]float64, len(prices))
	for i, p := range prices {
		out[i] = s.At(p)
	}
	return out
}
