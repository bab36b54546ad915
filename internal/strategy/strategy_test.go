package strategy

import (
	"math"
	"testing"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/internal/payoff"
	"breakeven-analyzer/internal/solver"
)

func leg(action models.Action, typ models.OptionType, strike float64, qty int, premium float64) models.OptionLeg {
	return models.OptionLeg{Symbol: "NIFTY", Strike: strike, Type: typ, Action: action, Quantity: qty}.WithPremium(premium)
}

var (
	buy  = models.ActionBuy
	sell = models.ActionSell
	ce   = models.OptionTypeCall
	pe   = models.OptionTypePut
)

type fixture struct {
	name string
	legs []models.OptionLeg
}

func catalog() []fixture {
	return []fixture{
		{BuyCall, []models.OptionLeg{leg(buy, ce, 25000, 75, 120)}},
		{SellCall, []models.OptionLeg{leg(sell, ce, 25000, 75, 120)}},
		{BuyPut, []models.OptionLeg{leg(buy, pe, 24000, 50, 150)}},
		{SellPut, []models.OptionLeg{leg(sell, pe, 24000, 50, 150)}},
		{BullCallSpread, []models.OptionLeg{leg(buy, ce, 25600, 75, 24.45), leg(sell, ce, 25700, 75, 15)}},
		{BearCallSpread, []models.OptionLeg{leg(sell, ce, 25000, 75, 150), leg(buy, ce, 25200, 75, 80)}},
		{BullPutSpread, []models.OptionLeg{leg(sell, pe, 24000, 75, 120), leg(buy, pe, 23800, 75, 60)}},
		{BearPutSpread, []models.OptionLeg{leg(buy, pe, 24000, 75, 150), leg(sell, pe, 23800, 75, 80)}},
		{BullButterfly, []models.OptionLeg{leg(buy, ce, 24800, 75, 300), leg(sell, ce, 25000, 150, 180), leg(buy, ce, 25200, 75, 90)}},
		{BearButterfly, []models.OptionLeg{leg(buy, pe, 25200, 75, 300), leg(sell, pe, 25000, 150, 180), leg(buy, pe, 24800, 75, 90)}},
		{CallRatioBackSpread, []models.OptionLeg{leg(sell, ce, 24000, 75, 250), leg(buy, ce, 24200, 75, 150), leg(buy, ce, 24200, 75, 150)}},
		{PutRatioBackSpread, []models.OptionLeg{leg(buy, pe, 23800, 75, 150), leg(sell, pe, 24000, 75, 250), leg(buy, pe, 23800, 75, 150)}},
		{BullCondor, []models.OptionLeg{leg(buy, ce, 24600, 75, 400), leg(sell, ce, 24800, 75, 260), leg(sell, ce, 25200, 75, 60), leg(buy, ce, 25400, 75, 20)}},
		{BearCondor, []models.OptionLeg{leg(buy, pe, 25400, 75, 400), leg(sell, pe, 25200, 75, 260), leg(sell, pe, 24800, 75, 60), leg(buy, pe, 24600, 75, 20)}},
	}
}

func TestIdentify_Catalog(t *testing.T) {
	for _, f := range catalog() {
		t.Run(f.name, func(t *testing.T) {
			if got := Identify(f.legs); got != f.name {
				t.Errorf("Identify = %q, want %q", got, f.name)
			}
		})
	}
}

func TestIdentify_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		legs []models.OptionLeg
		want string
	}{
		{"empty", nil, CustomStrategy},
		{"straddle", []models.OptionLeg{leg(buy, ce, 24000, 75, 100), leg(buy, pe, 24000, 75, 100)}, CustomStrategy},
		{"two-leg call ratio is a vertical", []models.OptionLeg{leg(sell, ce, 24000, 75, 250), leg(buy, ce, 24200, 150, 150)}, BearCallSpread},
		{"two-leg put ratio is a vertical", []models.OptionLeg{leg(sell, pe, 24000, 75, 250), leg(buy, pe, 23800, 150, 150)}, BullPutSpread},
		{"two-leg call ratio below sold strike", []models.OptionLeg{leg(sell, ce, 24200, 75, 100), leg(buy, ce, 24000, 150, 250)}, BullCallSpread},
		{"split ratio with mixed strikes", []models.OptionLeg{leg(sell, ce, 24000, 75, 250), leg(buy, ce, 24200, 75, 150), leg(buy, ce, 24300, 75, 100)}, CustomStrategy},
		{"unbalanced butterfly", []models.OptionLeg{leg(buy, ce, 24800, 75, 300), leg(sell, ce, 25000, 75, 180), leg(buy, ce, 25200, 75, 90)}, CustomStrategy},
		{"condor with repeated strike", []models.OptionLeg{leg(buy, ce, 24600, 75, 400), leg(sell, ce, 24800, 75, 260), leg(sell, ce, 24800, 75, 260), leg(buy, ce, 25400, 75, 20)}, CustomStrategy},
		{"five legs", append(catalog()[12].legs, leg(buy, pe, 24000, 75, 10)), CustomStrategy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Identify(tt.legs); got != tt.want {
				t.Errorf("Identify = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyze_BullCallSpreadScenario(t *testing.T) {
	legs := []models.OptionLeg{
		leg(buy, ce, 25600, 75, 24.45),
		leg(sell, ce, 25700, 75, 15.00),
	}
	name := Identify(legs)
	if name != BullCallSpread {
		t.Fatalf("Identify = %q", name)
	}
	res, err := Analyze(name, legs)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := res.Details["net_premium"]; got != 9.45 {
		t.Errorf("net premium = %v, want 9.45", got)
	}
	if len(res.BreakevenPoints) != 1 || res.BreakevenPoints[0] != 25609.45 {
		t.Errorf("breakevens = %v, want [25609.45]", res.BreakevenPoints)
	}
	if v, _ := res.MaxLoss.Value(); v != 708.75 {
		t.Errorf("max loss = %v, want 708.75", res.MaxLoss)
	}
	if v, _ := res.MaxProfit.Value(); v != 6791.25 {
		t.Errorf("max profit = %v, want 6791.25", res.MaxProfit)
	}
	want := models.Between(models.Finite(25609.45), models.Finite(25700))
	if len(res.ProfitZones) != 1 || res.ProfitZones[0] != want {
		t.Errorf("zones = %v, want [%v]", res.ProfitZones, want)
	}
}

func TestAnalyze_AgreesWithNumericSolver(t *testing.T) {
	for _, f := range catalog() {
		t.Run(f.name, func(t *testing.T) {
			closed, err := Analyze(f.name, f.legs)
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			numeric, err := solver.AnalyzeNumerically(f.legs)
			if err != nil {
				t.Fatalf("AnalyzeNumerically: %v", err)
			}

			if len(closed.BreakevenPoints) != len(numeric.BreakevenPoints) {
				t.Fatalf("breakevens closed=%v numeric=%v", closed.BreakevenPoints, numeric.BreakevenPoints)
			}
			for i := range closed.BreakevenPoints {
				if math.Abs(closed.BreakevenPoints[i]-numeric.BreakevenPoints[i]) > 0.011 {
					t.Errorf("breakeven %d closed=%v numeric=%v", i, closed.BreakevenPoints[i], numeric.BreakevenPoints[i])
				}
			}

			if closed.MaxLoss.IsUnlimited() != numeric.MaxLoss.IsUnlimited() {
				t.Errorf("max loss closed=%v numeric=%v", closed.MaxLoss, numeric.MaxLoss)
			}
			if closed.MaxProfit.IsUnlimited() != numeric.MaxProfit.IsUnlimited() {
				t.Errorf("max profit closed=%v numeric=%v", closed.MaxProfit, numeric.MaxProfit)
			}

			// The numeric grid may straddle a kink by one step, and put
			// payoffs peak at a zero underlying outside the sampled range.
			strat := payoff.MustNew(f.legs)
			rng := numeric.Details["price_range"].([]float64)
			totalQty := 0
			for _, l := range f.legs {
				totalQty += l.Quantity
			}
			tol := 0.011 + (rng[1]-rng[0])/float64(solver.DefaultConfig().GridSteps)*float64(totalQty)
			if v, ok := closed.MaxProfit.Value(); ok {
				want := math.Max(numeric.MaxProfit.Float(), strat.At(0))
				if math.Abs(v-want) > tol {
					t.Errorf("max profit closed=%v want %v", v, want)
				}
			}
			if v, ok := closed.MaxLoss.Value(); ok {
				if math.Abs(v-numeric.MaxLoss.Float()) > tol && math.Abs(v+strat.At(0)) > 0.011 {
					t.Errorf("max loss closed=%v numeric=%v", v, numeric.MaxLoss)
				}
			}
		})
	}
}

func TestAnalyze_CallRatioBackSpreadCredit(t *testing.T) {
	legs := []models.OptionLeg{leg(sell, ce, 24000, 75, 300), leg(buy, ce, 24200, 75, 100), leg(buy, ce, 24200, 75, 100)}
	res, err := Analyze(CallRatioBackSpread, legs)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	want := []float64{24100, 24300}
	if len(res.BreakevenPoints) != 2 || res.BreakevenPoints[0] != want[0] || res.BreakevenPoints[1] != want[1] {
		t.Errorf("breakevens = %v, want %v", res.BreakevenPoints, want)
	}
	if v, _ := res.MaxLoss.Value(); v != 7500 {
		t.Errorf("max loss = %v, want 7500", res.MaxLoss)
	}
	if len(res.ProfitZones) != 2 || res.ProfitZones[0] != models.Below(24100) || res.ProfitZones[1] != models.Above(24300) {
		t.Errorf("zones = %v", res.ProfitZones)
	}
}

func TestAnalyze_CustomFallback(t *testing.T) {
	legs := []models.OptionLeg{leg(buy, ce, 24000, 75, 100), leg(buy, pe, 24000, 75, 90)}
	res, err := Analyze(CustomStrategy, legs)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Details["warning"] != CustomWarning {
		t.Errorf("missing warning: %v", res.Details)
	}
	// blended net premium is -95 per contract, estimate = 95 * 150 / 2
	if v, _ := res.MaxLoss.Value(); v != 7125 {
		t.Errorf("max loss estimate = %v, want 7125", res.MaxLoss)
	}
	if len(res.BreakevenPoints) != 0 {
		t.Errorf("custom fallback should not report breakevens: %v", res.BreakevenPoints)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	legs := catalog()[4].legs
	if _, err := Analyze("Iron Fly", legs); !errors.Is(err, errors.ErrUnknownStrategy) {
		t.Errorf("unknown name: got %v", err)
	}
	if _, err := Analyze(BearPutSpread, legs); !errors.Is(err, errors.ErrStrategyMismatch) {
		t.Errorf("mismatched legs: got %v", err)
	}
	missing := []models.OptionLeg{{Symbol: "NIFTY", Strike: 25000, Type: ce, Action: buy, Quantity: 1}}
	if _, err := Analyze(BuyCall, missing); !errors.Is(err, errors.ErrMissingPremium) {
		t.Errorf("missing premium: got %v", err)
	}
}

func TestLegBreakevens(t *testing.T) {
	got := LegBreakevens([]models.OptionLeg{
		leg(buy, ce, 25600, 75, 24.45),
		leg(sell, pe, 24000, 75, 80),
		{Symbol: "NIFTY", Strike: 25000, Type: ce, Action: buy, Quantity: 1},
	})
	if len(got) != 2 {
		t.Fatalf("got %d breakevens, want 2", len(got))
	}
	if got[0].Breakeven != 25624.45 || got[1].Breakeven != 23920 {
		t.Errorf("breakevens = %+v", got)
	}
}
