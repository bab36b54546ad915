package pricing

import (
	"math"
	"testing"
	"time"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/models"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestPrice_ReferenceValues(t *testing.T) {
	tests := []struct {
		name string
		in   models.OptionPricingInputs
		want float64
	}{
		{"ATM call", models.OptionPricingInputs{Spot: 100, Strike: 100, TimeToExpiry: 1, RiskFreeRate: 0.05, Volatility: 0.2, Type: models.OptionTypeCall}, 10.45},
		{"ATM put", models.OptionPricingInputs{Spot: 100, Strike: 100, TimeToExpiry: 1, RiskFreeRate: 0.05, Volatility: 0.2, Type: models.OptionTypePut}, 5.57},
		{"OTM call", models.OptionPricingInputs{Spot: 42, Strike: 40, TimeToExpiry: 0.5, RiskFreeRate: 0.1, Volatility: 0.2, Type: models.OptionTypeCall}, 4.76},
		{"ITM put", models.OptionPricingInputs{Spot: 42, Strike: 40, TimeToExpiry: 0.5, RiskFreeRate: 0.1, Volatility: 0.2, Type: models.OptionTypePut}, 0.81},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Price(tt.in)
			if err != nil {
				t.Fatalf("Price: %v", err)
			}
			if got != tt.want {
				t.Errorf("Price = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrice_InvalidInput(t *testing.T) {
	base := models.OptionPricingInputs{Spot: 100, Strike: 100, TimeToExpiry: 1, RiskFreeRate: 0.05, Volatility: 0.2, Type: models.OptionTypeCall}
	cases := map[string]func(*models.OptionPricingInputs){
		"zero tte":      func(in *models.OptionPricingInputs) { in.TimeToExpiry = 0 },
		"negative vol":  func(in *models.OptionPricingInputs) { in.Volatility = -0.1 },
		"zero spot":     func(in *models.OptionPricingInputs) { in.Spot = 0 },
		"zero strike":   func(in *models.OptionPricingInputs) { in.Strike = 0 },
		"bad type":      func(in *models.OptionPricingInputs) { in.Type = "XX" },
		"NaN volatility": func(in *models.OptionPricingInputs) { in.Volatility = math.NaN() },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := base
			mutate(&in)
			if _, err := Price(in); !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestGreeks_ReferenceValues(t *testing.T) {
	in := models.OptionPricingInputs{Spot: 100, Strike: 100, TimeToExpiry: 1, RiskFreeRate: 0.05, Volatility: 0.2, Type: models.OptionTypeCall}
	g, err := Greeks(in)
	if err != nil {
		t.Fatalf("Greeks: %v", err)
	}
	want := models.Greeks{Delta: 0.636831, Gamma: 0.018762, Theta: -0.017573, Vega: 0.375207, Rho: 0.532325}
	checks := []struct {
		name      string
		got, want float64
	}{
		{"delta", g.Delta, want.Delta},
		{"gamma", g.Gamma, want.Gamma},
		{"theta", g.Theta, want.Theta},
		{"vega", g.Vega, want.Vega},
		{"rho", g.Rho, want.Rho},
	}
	for _, c := range checks {
		if !approxEqual(c.got, c.want, 1e-4) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	in.Type = models.OptionTypePut
	p, err := Greeks(in)
	if err != nil {
		t.Fatalf("Greeks(put): %v", err)
	}
	if !approxEqual(p.Delta, g.Delta-1, 1e-6) || p.Gamma != g.Gamma || p.Vega != g.Vega {
		t.Errorf("put Greeks inconsistent with call: %+v vs %+v", p, g)
	}
}

func TestGreeks_StrictAndPermissive(t *testing.T) {
	bad := models.OptionPricingInputs{Spot: 100, Strike: 100, TimeToExpiry: 0.5, Volatility: 0, Type: models.OptionTypeCall}

	_, err := Greeks(bad)
	var gerr *errors.GreeksError
	if !errors.As(err, &gerr) || !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("strict model should return GreeksError wrapping ErrInvalidInput, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.PermissiveGreeks = true
	m := NewModel(cfg, Default().logger)
	g, err := m.Greeks(bad)
	if err != nil || !g.IsZero() {
		t.Fatalf("permissive model should return zero Greeks, got %+v, %v", g, err)
	}
}

func TestImpliedVolatility_Guards(t *testing.T) {
	in := models.OptionPricingInputs{Spot: 100, Strike: 100, TimeToExpiry: 1, RiskFreeRate: 0.05, Type: models.OptionTypeCall}

	if _, err := ImpliedVolatility(0, in); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("zero market price: expected ErrInvalidInput, got %v", err)
	}

	// Above the spot no volatility can reproduce the price.
	res, err := ImpliedVolatility(150, in)
	if err != nil {
		t.Fatalf("ImpliedVolatility: %v", err)
	}
	if res.Converged {
		t.Errorf("price above spot should not converge: %+v", res)
	}
	if !res.Capped && res.Volatility <= 1 {
		t.Errorf("expected a capped or very large volatility, got %+v", res)
	}
}

func TestConvergenceAchieved(t *testing.T) {
	m := Default()
	if !m.ConvergenceAchieved(104.99, 100) {
		t.Error("4.99 difference should count as converged")
	}
	if m.ConvergenceAchieved(105, 100) {
		t.Error("5.00 difference should not count as converged")
	}
}

func TestPortfolioGreeks(t *testing.T) {
	g := models.Greeks{Delta: 0.5, Gamma: 0.001, Theta: -2, Vega: 1.5, Rho: 0.3}
	total := PortfolioGreeks([]PositionGreeks{
		{Greeks: g, Quantity: 2, MarketLot: 75},
		{Greeks: g, Quantity: -1, MarketLot: 75},
	})
	want := g.Scale(75)
	if !approxEqual(total.Delta, want.Delta, 1e-9) || !approxEqual(total.Theta, want.Theta, 1e-9) {
		t.Errorf("PortfolioGreeks = %+v, want %+v", total, want)
	}
}

func TestThetaGammaRatio(t *testing.T) {
	if !math.IsInf(ThetaGammaRatio(5, 0), 1) {
		t.Error("positive theta with zero gamma should be +Inf")
	}
	if !math.IsInf(ThetaGammaRatio(-5, 1e-12), -1) {
		t.Error("negative theta with vanishing gamma should be -Inf")
	}
	if got := ThetaGammaRatio(-10, 0.5); got != -20 {
		t.Errorf("ratio = %v, want -20", got)
	}
}

func TestTimeToExpiry(t *testing.T) {
	asOf := time.Date(2025, 7, 1, 14, 0, 0, 0, time.UTC)
	if got := TimeToExpiry(asOf.AddDate(0, 0, 73), asOf); !approxEqual(got, 0.2, 1e-12) {
		t.Errorf("TimeToExpiry = %v, want 0.2", got)
	}
	if got := TimeToExpiry(asOf.AddDate(0, 0, -3), asOf); got != 0 {
		t.Errorf("expired TimeToExpiry = %v, want 0", got)
	}
}
