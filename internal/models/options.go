package models

import (
	"fmt"
	"math"
	"time"
)

// OptionLeg is one option position within a strategy. Legs are values:
// filling in a premium produces a new leg.
type OptionLeg struct {
	Symbol   string     `json:"symbol" yaml:"symbol"`
	Expiry   time.Time  `json:"expiry" yaml:"expiry"`
	Strike   float64    `json:"strike" yaml:"strike"`
	Type     OptionType `json:"option_type" yaml:"option_type"`
	Action   Action     `json:"action" yaml:"action"`
	Quantity int        `json:"quantity" yaml:"quantity"`
	Premium  *float64   `json:"premium,omitempty" yaml:"premium,omitempty"`
}

// Sign returns +1 for a bought leg and -1 for a sold one.
func (l OptionLeg) Sign() int { return l.Action.Sign() }

// SignedQuantity is the quantity with the action sign applied.
func (l OptionLeg) SignedQuantity() int { return l.Sign() * l.Quantity }

// HasPremium reports whether the premium has been resolved.
func (l OptionLeg) HasPremium() bool { return l.Premium != nil }

// PremiumValue returns the premium and whether it is present.
func (l OptionLeg) PremiumValue() (float64, bool) {
	if l.Premium == nil {
		return 0, false
	}
	return *l.Premium, true
}

// WithPremium returns a copy of the leg carrying premium p.
func (l OptionLeg) WithPremium(p float64) OptionLeg {
	l.Premium = &p
	return l
}

// Intrinsic is the exercise value of one contract at spot.
func (l OptionLeg) Intrinsic(spot float64) float64 {
	if l.Type == OptionTypeCall {
		return math.Max(0, spot-l.Strike)
	}
	return math.Max(0, l.Strike-spot)
}

// Validate checks the leg invariants. The premium may be absent.
func (l OptionLeg) Validate() error {
	if !l.Type.Valid() {
		return fmt.Errorf("option_type %q: must be CE or PE", l.Type)
	}
	if !l.Action.Valid() {
		return fmt.Errorf("action %q: must be BUY or SELL", l.Action)
	}
	if !(l.Strike > 0) || math.IsInf(l.Strike, 0) {
		return fmt.Errorf("strike %v: must be positive", l.Strike)
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("quantity %d: must be positive", l.Quantity)
	}
	if l.Premium != nil && (*l.Premium < 0 || math.IsNaN(*l.Premium) || math.IsInf(*l.Premium, 0)) {
		return fmt.Errorf("premium %v: must be finite and non-negative", *l.Premium)
	}
	return nil
}

// String renders the leg in the CLI leg syntax.
func (l OptionLeg) String() string {
	s := fmt.Sprintf("%s:%s:%g:%d", l.Action, l.Type, l.Strike, l.Quantity)
	if l.Premium != nil {
		s += fmt.Sprintf("@%g", *l.Premium)
	}
	return s
}

// CloneLegs returns a shallow copy of legs with premiums detached from the
// caller's pointers.
func CloneLegs(legs []OptionLeg) []OptionLeg {
	out := make([]OptionLeg, len(legs))
	for i, l := range legs {
		if p, ok := l.PremiumValue(); ok {
			l = l.WithPremium(p)
		}
		out[i] = l
	}
	return out
}

// OptionPricingInputs are the Black-Scholes model inputs.
type OptionPricingInputs struct {
	Spot         float64    `json:"spot"`
	Strike       float64    `json:"strike"`
	TimeToExpiry float64    `json:"time_to_expiry"`
	RiskFreeRate float64    `json:"risk_free_rate"`
	Volatility   float64    `json:"volatility"`
	Type         OptionType `json:"option_type"`
}

// Greeks are per-unit option sensitivities. Theta is per day and vega per
// one percentage point of volatility.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// Add returns g + o.
func (g Greeks) Add(o Greeks) Greeks {
	return Greeks{
		Delta: g.Delta + o.Delta,
		Gamma: g.Gamma + o.Gamma,
		Theta: g.Theta + o.Theta,
		Vega:  g.Vega + o.Vega,
		Rho:   g.Rho + o.Rho,
	}
}

// Scale returns g multiplied by f.
func (g Greeks) Scale(f float64) Greeks {
	return Greeks{
		Delta: g.Delta * f,
		Gamma: g.Gamma * f,
		Theta: g.Theta * f,
		Vega:  g.Vega * f,
		Rho:   g.Rho * f,
	}
}

// IsZero reports whether every sensitivity is zero.
func (g Greeks) IsZero() bool {
	return g == Greeks{}
}
