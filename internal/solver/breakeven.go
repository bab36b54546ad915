// Package solver locates breakevens and profit zones of arbitrary leg sets
// by sampling the payoff function and refining sign changes.
package solver

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/internal/payoff"
	"breakeven-analyzer/pkg/utils"
)

// Solver is safe for concurrent use.
type Solver struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates a solver.
func New(cfg Config, logger zerolog.Logger) *Solver {
	return &Solver{cfg: cfg.withDefaults(), logger: logger}
}

var defaultSolver = New(DefaultConfig(), zerolog.Nop())

// Default returns a solver with DefaultConfig and no logging.
func Default() *Solver { return defaultSolver }

// Config returns the effective configuration.
func (s *Solver) Config() Config { return s.cfg }

// Option adjusts a single breakeven search.
type Option func(*searchOptions)

type searchOptions struct {
	min     *float64
	max     *float64
	samples int
}

// WithMinPrice fixes the lower end of the search range.
func WithMinPrice(p float64) Option {
	return func(o *searchOptions) { o.min = &p }
}

// WithMaxPrice fixes the upper end of the search range.
func WithMaxPrice(p float64) Option {
	return func(o *searchOptions) { o.max = &p }
}

// WithSamples overrides the number of sample points.
func WithSamples(n int) Option {
	return func(o *searchOptions) { o.samples = n }
}

// PriceRange derives the analysis range from the strikes of legs: the
// strike span widened on both sides by max(MinBuffer, BufferFraction*span),
// floored at zero.
func (s *Solver) PriceRange(strat *payoff.Strategy) (lo, hi float64) {
	minStrike, maxStrike := strat.StrikeRange()
	buffer := math.Max(s.cfg.MinBuffer, s.cfg.BufferFraction*(maxStrike-minStrike))
	return math.Max(0, minStrike-buffer), maxStrike + buffer
}

// FindBreakevenPoints returns the ascending prices, rounded to two
// decimals, where the combined payoff of legs crosses zero.
func (s *Solver) FindBreakevenPoints(legs []models.OptionLeg, opts ...Option) ([]float64, error) {
	strat, err := payoff.New(legs)
	if err != nil {
		return nil, err
	}
	return s.Breakevens(strat, opts...), nil
}

// Breakevens is FindBreakevenPoints for an already validated strategy.
func (s *Solver) Breakevens(strat *payoff.Strategy, opts ...Option) []float64 {
	o := searchOptions{samples: s.cfg.Samples}
	for _, opt := range opts {
		opt(&o)
	}
	if o.samples < 2 {
		o.samples = 2
	}

	lo, hi := s.PriceRange(strat)
	if o.min != nil {
		lo = *o.min
	}
	if o.max != nil {
		hi = *o.max
	}
	if !(hi > lo) {
		return []float64{}
	}

	prices := linspace(lo, hi, o.samples)
	roots := make([]float64, 0, 4)
	prevX, prevV := prices[0], strat.At(prices[0])
	for _, x := range prices[1:] {
		v := strat.At(x)
		if prevV*v <= 0 {
			root, ok := brent(strat.At, prevX, x, s.cfg.RootTolerance, s.cfg.MaxRootIterations)
			if ok {
				roots = append(roots, utils.Round2(root))
			} else {
				s.logger.Debug().Float64("lo", prevX).Float64("hi", x).Msg("Bracket does not cross zero, skipped")
			}
		}
		prevX, prevV = x, v
	}

	sort.Float64s(roots)
	return dedupe(roots)
}

// FindBreakevenPoints searches with the default solver.
func FindBreakevenPoints(legs []models.OptionLeg, opts ...Option) ([]float64, error) {
	return defaultSolver.FindBreakevenPoints(legs, opts...)
}

// linspace returns n evenly spaced values from lo to hi inclusive.
func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

func dedupe(sorted []float64) []float64 {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
