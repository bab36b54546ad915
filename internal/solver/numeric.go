package solver

import (
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/internal/payoff"
	"breakeven-analyzer/pkg/utils"
)

// CustomStrategyName labels results that are not tied to a catalog strategy.
const CustomStrategyName = "Custom Strategy"

// AnalyzeNumerically derives breakevens, extremes, profit zones and the
// risk/reward ratio of any leg set by sampling its payoff.
func (s *Solver) AnalyzeNumerically(legs []models.OptionLeg) (*models.StrategyAnalysisResult, error) {
	strat, err := payoff.New(legs)
	if err != nil {
		return nil, err
	}
	return s.Analyze(strat), nil
}

// Analyze is AnalyzeNumerically for an already validated strategy.
func (s *Solver) Analyze(strat *payoff.Strategy) *models.StrategyAnalysisResult {
	lo, hi := s.PriceRange(strat)
	breakevens := s.Breakevens(strat, WithMinPrice(lo), WithMaxPrice(hi))

	prices := linspace(lo, hi, s.cfg.GridSteps+1)
	payoffs := strat.Curve(prices)
	maxIdx, minIdx := 0, 0
	for i, v := range payoffs {
		if v > payoffs[maxIdx] {
			maxIdx = i
		}
		if v < payoffs[minIdx] {
			minIdx = i
		}
	}

	exposure := s.Exposure(strat)
	details := map[string]any{
		"price_range":    []float64{utils.Round2(lo), utils.Round2(hi)},
		"unlimited_rule": string(s.cfg.UnlimitedRule),
		"exposure":       exposure,
	}

	maxProfit := models.Finite(utils.Round2(payoffs[maxIdx]))
	if exposure.UnlimitedProfit {
		maxProfit = models.Unlimited
		details["max_profit_note"] = "Unlimited profit potential"
	} else {
		details["max_profit_at"] = utils.Round2(prices[maxIdx])
	}

	maxLoss := models.Finite(0)
	if exposure.UnlimitedLoss {
		maxLoss = models.Unlimited
		details["max_loss_note"] = "Unlimited loss potential"
	} else if payoffs[minIdx] < 0 {
		maxLoss = models.Finite(utils.Round2(-payoffs[minIdx]))
		details["max_loss_at"] = utils.Round2(prices[minIdx])
	}

	details["payoff_curve"] = s.curve(strat, lo, hi)

	s.logger.Debug().
		Int("legs", strat.Len()).
		Int("breakevens", len(breakevens)).
		Str("max_profit", maxProfit.String()).
		Str("max_loss", maxLoss.String()).
		Msg("Numeric analysis complete")

	return &models.StrategyAnalysisResult{
		StrategyName:    CustomStrategyName,
		BreakevenPoints: breakevens,
		MaxProfit:       maxProfit,
		MaxLoss:         maxLoss,
		ProfitZones:     profitZones(prices, payoffs, exposure.UnlimitedProfit),
		RiskRewardRatio: models.RiskReward(maxProfit, maxLoss),
		Legs:            strat.Legs(),
		Details:         details,
	}
}

// AnalyzeNumerically analyzes with the default solver.
func AnalyzeNumerically(legs []models.OptionLeg) (*models.StrategyAnalysisResult, error) {
	return defaultSolver.AnalyzeNumerically(legs)
}

// PayoffCurve is a reduced-resolution payoff sample for plotting.
type PayoffCurve struct {
	Prices  []float64 `json:"prices"`
	Payoffs []float64 `json:"payoffs"`
}

func (s *Solver) curve(strat *payoff.Strategy, lo, hi float64) PayoffCurve {
	prices := linspace(lo, hi, s.cfg.CurvePoints)
	c := PayoffCurve{Prices: make([]float64, len(prices)), Payoffs: make([]float64, len(prices))}
	for i, p := range prices {
		c.Prices[i] = utils.Round2(p)
		c.Payoffs[i] = utils.Round2(strat.At(p))
	}
	return c
}

// profitZones coalesces runs of positive payoff into intervals. A run that
// reaches the right edge is open-ended when profit is unbounded.
func profitZones(prices, payoffs []float64, unlimitedProfit bool) []models.ProfitZone {
	zones := []models.ProfitZone{}
	start := -1
	for i, v := range payoffs {
		switch {
		case v > 0 && start < 0:
			start = i
		case v <= 0 && start >= 0:
			zones = append(zones, models.Between(
				models.Finite(utils.Round2(prices[start])),
				models.Finite(utils.Round2(prices[i-1])),
			))
			start = -1
		}
	}
	if start >= 0 {
		upper := models.Finite(utils.Round2(prices[len(prices)-1]))
		if unlimitedProfit {
			upper = models.Unlimited
		}
		zones = append(zones, models.Between(models.Finite(utils.Round2(prices[start])), upper))
	}
	return zones
}
