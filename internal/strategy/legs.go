package strategy

import "breakeven-analyzer/internal/models"

// LegBreakeven is the standalone breakeven of one leg held on its own.
type LegBreakeven struct {
	Leg       models.OptionLeg `json:"leg"`
	Breakeven float64          `json:"breakeven"`
}

// LegBreakevens returns each leg's own breakeven: strike plus premium for
// calls, strike minus premium for puts. Legs without a premium are skipped.
func LegBreakevens(legs []models.OptionLeg) []LegBreakeven {
	out := make([]LegBreakeven, 0, len(legs))
	for _, l := range legs {
		p, ok := l.PremiumValue()
		if !ok {
			continue
		}
		be := l.Strike - p
		if l.Type == models.OptionTypeCall {
			be = l.Strike + p
		}
		out = append(out, LegBreakeven{Leg: l, Breakeven: be})
	}
	return out
}
