package solver

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/internal/payoff"
)

func leg(action models.Action, typ models.OptionType, strike float64, qty int, premium float64) models.OptionLeg {
	return models.OptionLeg{Symbol: "NIFTY", Strike: strike, Type: typ, Action: action, Quantity: qty}.WithPremium(premium)
}

func bullCallSpread() []models.OptionLeg {
	return []models.OptionLeg{
		leg(models.ActionBuy, models.OptionTypeCall, 25600, 75, 24.45),
		leg(models.ActionSell, models.OptionTypeCall, 25700, 75, 15.00),
	}
}

func TestBrent(t *testing.T) {
	f := func(x float64) float64 { return 3*x - 7 }
	root, ok := brent(f, 0, 10, 1e-12, 100)
	if !ok || math.Abs(root-7.0/3) > 1e-9 {
		t.Fatalf("brent = %v, %v", root, ok)
	}
	if _, ok := brent(f, 5, 10, 1e-12, 100); ok {
		t.Fatal("non-bracketing interval should report !ok")
	}
	root, ok = brent(func(x float64) float64 { return x*x - 2 }, 0, 2, 1e-12, 100)
	if !ok || math.Abs(root-math.Sqrt2) > 1e-9 {
		t.Fatalf("brent(x^2-2) = %v, %v", root, ok)
	}
}

func TestFindBreakevenPoints_BullCallSpread(t *testing.T) {
	got, err := FindBreakevenPoints(bullCallSpread())
	if err != nil {
		t.Fatalf("FindBreakevenPoints: %v", err)
	}
	if len(got) != 1 || got[0] != 25609.45 {
		t.Fatalf("breakevens = %v, want [25609.45]", got)
	}
}

func TestFindBreakevenPoints_LongStraddle(t *testing.T) {
	legs := []models.OptionLeg{
		leg(models.ActionBuy, models.OptionTypeCall, 24000, 50, 180),
		leg(models.ActionBuy, models.OptionTypePut, 24000, 50, 170),
	}
	got, err := FindBreakevenPoints(legs)
	if err != nil {
		t.Fatalf("FindBreakevenPoints: %v", err)
	}
	want := []float64{23650, 24350}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("breakevens = %v, want %v", got, want)
	}
}

func TestFindBreakevenPoints_Bounds(t *testing.T) {
	legs := bullCallSpread()
	got, err := FindBreakevenPoints(legs, WithMinPrice(25650), WithMaxPrice(26000))
	if err != nil {
		t.Fatalf("FindBreakevenPoints: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("breakeven outside bounds reported: %v", got)
	}
	got, _ = FindBreakevenPoints(legs, WithMinPrice(25500), WithSamples(10))
	if len(got) != 1 || math.Abs(got[0]-25609.45) > 0.01 {
		t.Errorf("coarse search = %v", got)
	}
}

func TestFindBreakevenPoints_MissingPremium(t *testing.T) {
	legs := []models.OptionLeg{{Symbol: "NIFTY", Strike: 25000, Type: models.OptionTypeCall, Action: models.ActionBuy, Quantity: 1}}
	if _, err := FindBreakevenPoints(legs); !errors.Is(err, errors.ErrMissingPremium) {
		t.Fatalf("expected ErrMissingPremium, got %v", err)
	}
}

func TestAnalyzeNumerically_BullCallSpread(t *testing.T) {
	res, err := AnalyzeNumerically(bullCallSpread())
	if err != nil {
		t.Fatalf("AnalyzeNumerically: %v", err)
	}
	if res.StrategyName != CustomStrategyName {
		t.Errorf("name = %q", res.StrategyName)
	}
	if v, ok := res.MaxProfit.Value(); !ok || v != 6791.25 {
		t.Errorf("max profit = %v, want 6791.25", res.MaxProfit)
	}
	if v, ok := res.MaxLoss.Value(); !ok || v != 708.75 {
		t.Errorf("max loss = %v, want 708.75", res.MaxLoss)
	}
	if res.RiskRewardRatio == nil || res.RiskRewardRatio.Float() != 9.58 {
		t.Errorf("risk/reward = %v, want 9.58", res.RiskRewardRatio)
	}
	if len(res.ProfitZones) != 1 {
		t.Fatalf("zones = %v", res.ProfitZones)
	}
	zone := res.ProfitZones[0]
	if zone.Lower.Float() < 25609.45 || zone.Lower.Float() > 25609.45+5 {
		t.Errorf("zone lower = %v, want just above 25609.45", zone.Lower)
	}
	if zone.Upper.IsUnlimited() {
		t.Errorf("capped spread must not have an open zone: %v", zone)
	}
	curve, ok := res.Details["payoff_curve"].(PayoffCurve)
	if !ok || len(curve.Prices) != 50 || len(curve.Payoffs) != 50 {
		t.Errorf("payoff curve = %#v", res.Details["payoff_curve"])
	}
}

func TestAnalyzeNumerically_BuyCall(t *testing.T) {
	res, err := AnalyzeNumerically([]models.OptionLeg{leg(models.ActionBuy, models.OptionTypeCall, 25000, 75, 120)})
	if err != nil {
		t.Fatalf("AnalyzeNumerically: %v", err)
	}
	if !res.MaxProfit.IsUnlimited() {
		t.Errorf("max profit = %v, want Unlimited", res.MaxProfit)
	}
	if v, _ := res.MaxLoss.Value(); v != 9000 {
		t.Errorf("max loss = %v, want 9000", res.MaxLoss)
	}
	if res.RiskRewardRatio == nil || !res.RiskRewardRatio.IsUnlimited() {
		t.Errorf("risk/reward = %v, want Unlimited", res.RiskRewardRatio)
	}
	last := res.ProfitZones[len(res.ProfitZones)-1]
	if !last.Upper.IsUnlimited() {
		t.Errorf("trailing zone = %v, want open-ended", last)
	}
	if len(res.BreakevenPoints) != 1 || res.BreakevenPoints[0] != 25120 {
		t.Errorf("breakevens = %v, want [25120]", res.BreakevenPoints)
	}
}

func TestAnalyzeNumerically_SellPutByRule(t *testing.T) {
	legs := []models.OptionLeg{leg(models.ActionSell, models.OptionTypePut, 24000, 75, 90)}

	res, err := AnalyzeNumerically(legs)
	if err != nil {
		t.Fatalf("AnalyzeNumerically: %v", err)
	}
	if v, ok := res.MaxProfit.Value(); !ok || v != 6750 {
		t.Errorf("slope rule: max profit = %v, want 6750", res.MaxProfit)
	}
	if res.MaxLoss.IsUnlimited() {
		t.Errorf("slope rule: a short put loss is bounded")
	}

	cfg := DefaultConfig()
	cfg.UnlimitedRule = RuleNetPosition
	res, err = New(cfg, zerolog.Nop()).AnalyzeNumerically(legs)
	if err != nil {
		t.Fatalf("AnalyzeNumerically: %v", err)
	}
	if !res.MaxProfit.IsUnlimited() {
		t.Errorf("net position rule flags short puts as unlimited profit, got %v", res.MaxProfit)
	}
}

func TestAsymptoticExposure_ShortCallLongPut(t *testing.T) {
	strat := payoff.MustNew([]models.OptionLeg{
		leg(models.ActionSell, models.OptionTypeCall, 25000, 2, 100),
		leg(models.ActionBuy, models.OptionTypePut, 25000, 1, 100),
	})
	exp := AsymptoticExposure(strat)
	if !exp.UnlimitedLoss || exp.UnlimitedProfit {
		t.Errorf("exposure = %+v", exp)
	}
	if exp.ValueAtZero != 25000-100+200 {
		t.Errorf("value at zero = %v", exp.ValueAtZero)
	}
}
