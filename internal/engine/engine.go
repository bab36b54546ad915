// Package engine wires the pricing model, solver, strategy analyzer and
// adjustment search to market data and the local journal. The CLI talks
// only to this package.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"breakeven-analyzer/internal/adjust"
	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/marketdata"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/internal/pricing"
	"breakeven-analyzer/internal/solver"
	"breakeven-analyzer/internal/store"
)

// SourceInput marks premiums supplied with the legs themselves.
const SourceInput = "input"

// Options holds the engine's collaborators. Nil Model and Solver fall back
// to the package defaults; Resolver and Store are optional.
type Options struct {
	Model          *pricing.Model
	Solver         *solver.Solver
	Adjust         adjust.Config
	Recommendation adjust.RecommendationConfig
	Resolver       *marketdata.Resolver
	Store          store.DataStore
	Logger         zerolog.Logger
}

// Engine runs the analytics operations.
type Engine struct {
	model       *pricing.Model
	solver      *solver.Solver
	adjuster    *adjust.Adjuster
	recommender *adjust.Recommender
	resolver    *marketdata.Resolver
	store       store.DataStore
	now         func() time.Time
	logger      zerolog.Logger
}

// New creates an engine.
func New(opts Options) *Engine {
	if opts.Model == nil {
		opts.Model = pricing.Default()
	}
	if opts.Solver == nil {
		opts.Solver = solver.Default()
	}
	rec := adjust.NewRecommender(opts.Recommendation)
	return &Engine{
		model:       opts.Model,
		solver:      opts.Solver,
		adjuster:    adjust.New(opts.Adjust, opts.Model, opts.Solver, rec, opts.Logger),
		recommender: rec,
		resolver:    opts.Resolver,
		store:       opts.Store,
		now:         time.Now,
		logger:      opts.Logger,
	}
}

// Model returns the pricing model.
func (e *Engine) Model() *pricing.Model { return e.model }

// Solver returns the numeric solver.
func (e *Engine) Solver() *solver.Solver { return e.solver }

// ResolveLegs validates legs and fills in missing premiums from market
// data. It returns the resolved copy and where the premiums came from.
func (e *Engine) ResolveLegs(ctx context.Context, legs []models.OptionLeg) ([]models.OptionLeg, string, error) {
	if len(legs) == 0 {
		return nil, "", errors.ErrNoLegs
	}

	missing := -1
	for i, l := range legs {
		if err := l.Validate(); err != nil {
			return nil, "", errors.NewLegError(i, l.String(), errors.NewInvalidInputError("leg", l.String(), err.Error()))
		}
		if !l.HasPremium() && missing < 0 {
			missing = i
		}
	}
	if missing < 0 {
		return models.CloneLegs(legs), SourceInput, nil
	}
	if e.resolver == nil {
		return nil, "", errors.NewLegError(missing, legs[missing].String(), errors.ErrMissingPremium)
	}

	out, _, err := e.resolver.Resolve(ctx, legs)
	if err != nil {
		return nil, "", err
	}
	return out, e.resolver.SourceName(), nil
}

// journal saves an analysis record. Without a store the request is
// logged and skipped.
func (e *Engine) journal(ctx context.Context, kind store.AnalysisKind, name, symbol string, input, output any) error {
	if e.store == nil {
		e.logger.Warn().Str("kind", string(kind)).Msg("No journal configured, analysis not saved")
		return nil
	}

	in, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to encode analysis input: %w", err)
	}
	out, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to encode analysis output: %w", err)
	}

	rec := &store.AnalysisRecord{
		CreatedAt:    e.now(),
		Kind:         kind,
		StrategyName: name,
		Symbol:       symbol,
		Input:        in,
		Output:       out,
	}
	if err := e.store.SaveAnalysis(ctx, rec); err != nil {
		return err
	}
	e.logger.Debug().Str("id", rec.ID).Str("kind", string(kind)).Msg("Analysis saved")
	return nil
}

// legSymbol returns the common underlying of legs, or "" when mixed.
func legSymbol(legs []models.OptionLeg) string {
	if len(legs) == 0 {
		return ""
	}
	sym := strings.ToUpper(legs[0].Symbol)
	for _, l := range legs[1:] {
		if strings.ToUpper(l.Symbol) != sym {
			return ""
		}
	}
	return sym
}
