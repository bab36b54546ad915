package engine

import (
	"context"
	"fmt"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/logging"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/internal/payoff"
	"breakeven-analyzer/internal/solver"
	"breakeven-analyzer/internal/store"
	"breakeven-analyzer/internal/strategy"
	"breakeven-analyzer/pkg/utils"
)

const numericNote = "Strategy identified and analyzed using numerical methods for precise results."

// AnalyzeRequest selects the legs and method of an analysis.
type AnalyzeRequest struct {
	Legs []models.OptionLeg `json:"legs"`
	// Strategy names a catalog strategy for the closed-form path. Empty
	// means identify it from the legs.
	Strategy   string `json:"strategy,omitempty"`
	ClosedForm bool   `json:"closed_form"`
	Save       bool   `json:"-"`
}

// Analyze resolves premiums and analyzes the legs. The numeric path runs
// by default and labels the result with the identified strategy; the
// closed-form path runs when requested or when a strategy is named.
func (e *Engine) Analyze(ctx context.Context, req AnalyzeRequest) (*models.StrategyAnalysisResult, error) {
	if req.Strategy != "" && !strategy.IsKnown(req.Strategy) {
		return nil, errors.NewStrategyError(req.Strategy, "not in catalog", errors.ErrUnknownStrategy)
	}

	legs, source, err := e.ResolveLegs(ctx, req.Legs)
	if err != nil {
		return nil, err
	}

	var (
		res    *models.StrategyAnalysisResult
		kind   store.AnalysisKind
		method string
	)
	if req.ClosedForm || req.Strategy != "" {
		name := req.Strategy
		if name == "" {
			name = strategy.Identify(legs)
		}
		res, err = strategy.Analyze(name, legs)
		if err != nil {
			return nil, err
		}
		kind, method = store.KindClosedForm, "closed_form"
	} else {
		res, err = e.solver.AnalyzeNumerically(legs)
		if err != nil {
			return nil, err
		}
		res.StrategyName = strategy.Identify(legs)
		if res.Details == nil {
			res.Details = map[string]any{}
		}
		if res.StrategyName != strategy.CustomStrategy {
			res.Details["note"] = numericNote
		}
		kind, method = store.KindNumeric, "numeric"
	}
	if res.Details == nil {
		res.Details = map[string]any{}
	}
	res.Details["price_source"] = source

	logging.LogAnalysis(e.logger, res.StrategyName, method, len(legs), res.BreakevenPoints)

	if req.Save {
		saved := req
		saved.Legs = legs
		if err := e.journal(ctx, kind, res.StrategyName, legSymbol(legs), saved, res); err != nil {
			return nil, fmt.Errorf("failed to save analysis: %w", err)
		}
	}
	return res, nil
}

// Breakevens resolves premiums and returns the numeric breakeven prices.
func (e *Engine) Breakevens(ctx context.Context, legs []models.OptionLeg, opts ...solver.Option) ([]float64, error) {
	resolved, _, err := e.ResolveLegs(ctx, legs)
	if err != nil {
		return nil, err
	}
	return e.solver.FindBreakevenPoints(resolved, opts...)
}

// PayoffPoint is the combined payoff at one underlying price.
type PayoffPoint struct {
	Price  float64 `json:"price"`
	Payoff float64 `json:"payoff"`
}

// PayoffTable evaluates the combined payoff at each price. Without prices
// it samples points evenly across the solver's search range.
func (e *Engine) PayoffTable(ctx context.Context, legs []models.OptionLeg, prices []float64, points int) ([]PayoffPoint, error) {
	resolved, _, err := e.ResolveLegs(ctx, legs)
	if err != nil {
		return nil, err
	}
	strat, err := payoff.New(resolved)
	if err != nil {
		return nil, err
	}

	if len(prices) == 0 {
		if points < 2 {
			points = 21
		}
		lo, hi := e.solver.PriceRange(strat)
		step := (hi - lo) / float64(points-1)
		prices = make([]float64, points)
		for i := range prices {
			prices[i] = utils.Round2(lo + float64(i)*step)
		}
	}

	table := make([]PayoffPoint, len(prices))
	for i, p := range prices {
		table[i] = PayoffPoint{Price: p, Payoff: utils.Round2(strat.At(p))}
	}
	return table, nil
}
