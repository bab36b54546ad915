package engine

import (
	"context"
	"strings"
	"time"

	"breakeven-analyzer/internal/adjust"
	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/logging"
	"breakeven-analyzer/internal/marketdata"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/internal/store"
	"breakeven-analyzer/internal/strategy"
)

// SyncDataType keys the position sync in the journal's sync table.
const SyncDataType = "positions"

// AdjustRequest asks for positions that move a breakeven to a target.
type AdjustRequest struct {
	Symbol string    `json:"symbol"`
	Spot   float64   `json:"spot"`
	Expiry time.Time `json:"expiry"`
	Target *float64  `json:"target,omitempty"`
	// Positions nil loads the open positions for Symbol from the journal.
	Positions []models.Position `json:"positions"`
	Save      bool              `json:"-"`
}

// Adjust runs the breakeven adjustment search.
func (e *Engine) Adjust(ctx context.Context, req AdjustRequest) ([]adjust.Result, error) {
	positions := req.Positions
	if positions == nil {
		if e.store == nil {
			return nil, errors.NewInvalidInputError("positions", nil, "no positions given and no journal configured")
		}
		var err error
		positions, err = e.store.GetPositions(ctx, store.PositionFilter{Symbol: req.Symbol})
		if err != nil {
			return nil, err
		}
	}
	log := logging.WithOperation(logging.WithSymbol(e.logger, strings.ToUpper(req.Symbol)), "adjust")
	log.Debug().Int("positions", len(positions)).Msg("Starting adjustment search")

	start := e.now()
	areq := adjust.Request{
		Positions: positions,
		Symbol:    strings.ToUpper(req.Symbol),
		Spot:      req.Spot,
		Expiry:    req.Expiry,
		Target:    req.Target,
		AsOf:      start,
	}
	results, err := e.adjuster.Calculate(ctx, areq)
	if err != nil {
		return nil, err
	}

	target := 0.0
	if len(results) > 0 {
		target = results[0].TargetBreakeven
	} else if req.Target != nil {
		target = *req.Target
	}
	logging.LogAdjustment(log, areq.Symbol, target, len(results), time.Since(start))

	if req.Save {
		saved := req
		saved.Positions = positions
		if err := e.journal(ctx, store.KindAdjustment, "Breakeven Adjustment", areq.Symbol, saved, results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// RecommendReport lists the strike suggested by each method and validates
// the chosen one.
type RecommendReport struct {
	Symbol       string                    `json:"symbol"`
	Spot         float64                   `json:"spot"`
	Expiry       time.Time                 `json:"expiry"`
	Method       adjust.Method             `json:"method"`
	Strike       float64                   `json:"recommended_strike"`
	Alternatives map[adjust.Method]float64 `json:"alternatives"`
	Validation   adjust.Validation         `json:"validation"`
}

// Recommend proposes a safe target strike.
func (e *Engine) Recommend(symbol string, spot float64, expiry time.Time, method adjust.Method) (*RecommendReport, error) {
	if !(spot > 0) {
		return nil, errors.NewInvalidInputError("spot", spot, "must be positive")
	}
	if method == "" {
		method = adjust.MethodVolatilityBased
	}
	strike := e.recommender.Recommend(symbol, spot, expiry, method)
	return &RecommendReport{
		Symbol:       strings.ToUpper(symbol),
		Spot:         spot,
		Expiry:       expiry,
		Method:       method,
		Strike:       strike,
		Alternatives: e.recommender.All(symbol, spot, expiry),
		Validation:   e.recommender.Validate(spot, strike, expiry),
	}, nil
}

// PositionReport summarizes the open positions of one underlying.
type PositionReport struct {
	Symbol        string                  `json:"symbol"`
	Positions     []models.Position       `json:"positions"`
	Strategy      string                  `json:"strategy"`
	Breakevens    []float64               `json:"breakeven_points"`
	LegBreakevens []strategy.LegBreakeven `json:"leg_breakevens"`
}

// PositionBreakevens computes the combined and per-leg breakevens of the
// open positions in the journal.
func (e *Engine) PositionBreakevens(ctx context.Context, symbol string) (*PositionReport, error) {
	if e.store == nil {
		return nil, errors.Wrap(errors.ErrConfigInvalid, "positions need a journal")
	}
	positions, err := e.store.GetPositions(ctx, store.PositionFilter{Symbol: symbol})
	if err != nil {
		return nil, err
	}

	legs := models.PositionLegs(positions)
	report := &PositionReport{
		Symbol:        strings.ToUpper(symbol),
		Positions:     positions,
		Breakevens:    []float64{},
		LegBreakevens: strategy.LegBreakevens(legs),
	}
	if len(legs) == 0 {
		return report, nil
	}

	report.Strategy = strategy.Identify(legs)
	report.Breakevens, err = e.solver.FindBreakevenPoints(legs)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// SyncPositions replaces the journal's positions from source with the
// broker's current open positions.
func (e *Engine) SyncPositions(ctx context.Context, name string, src marketdata.PositionSource) (int, error) {
	if e.store == nil {
		return 0, errors.Wrap(errors.ErrConfigInvalid, "position sync needs a journal")
	}
	positions, err := src.OpenPositions(ctx)
	if err != nil {
		return 0, err
	}
	if err := e.store.ReplacePositions(ctx, name, positions); err != nil {
		return 0, err
	}
	if err := e.store.SetLastSync(SyncDataType, e.now()); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to record sync time")
	}
	e.logger.Info().Str("source", name).Int("positions", len(positions)).Msg("Positions synced")
	return len(positions), nil
}
