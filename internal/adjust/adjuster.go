// Package adjust searches for additional option positions that move a
// portfolio's breakeven onto a target strike, ranked by theta/gamma.
package adjust

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/internal/payoff"
	"breakeven-analyzer/internal/performance"
	"breakeven-analyzer/internal/pricing"
	"breakeven-analyzer/internal/solver"
	"breakeven-analyzer/pkg/utils"
)

// TargetRecommender supplies a target breakeven when the caller has none.
type TargetRecommender interface {
	Primary(symbol string, spot float64, expiry time.Time) float64
}

// Request describes the portfolio to adjust.
type Request struct {
	Positions []models.Position `json:"positions"`
	Symbol    string            `json:"symbol"`
	Spot      float64           `json:"spot"`
	Expiry    time.Time         `json:"expiry"`
	Target    *float64          `json:"target,omitempty"`
	// AsOf is the valuation time; zero means now.
	AsOf time.Time `json:"as_of,omitempty"`
}

// AdditionalPosition is one candidate position the search may add.
// Greeks are per unit for a long contract.
type AdditionalPosition struct {
	Symbol    string            `json:"symbol"`
	Strike    float64           `json:"strike"`
	Type      models.OptionType `json:"option_type"`
	Action    models.Action     `json:"action"`
	Quantity  int               `json:"quantity"`
	Premium   float64           `json:"premium"`
	MarketLot int               `json:"market_lot"`
	Greeks    models.Greeks     `json:"greeks"`
}

// Leg converts the candidate into a strategy leg expiring on expiry.
func (p AdditionalPosition) Leg(expiry time.Time) models.OptionLeg {
	return models.OptionLeg{
		Symbol:   p.Symbol,
		Expiry:   expiry,
		Strike:   p.Strike,
		Type:     p.Type,
		Action:   p.Action,
		Quantity: p.Quantity,
	}.WithPremium(p.Premium)
}

func (p AdditionalPosition) String() string {
	return fmt.Sprintf("%s %dx %s %s @ %s", p.Action, p.Quantity, utils.FormatPrice(p.Strike), p.Type, strconv.FormatFloat(p.Premium, 'f', 2, 64))
}

// Ratio is a theta/gamma ratio. Infinite values encode as the JSON strings
// "Infinity" and "-Infinity".
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Infinity"`), nil
	case math.IsNaN(f):
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"Infinity"`:
		*r = Ratio(math.Inf(1))
		return nil
	case `"-Infinity"`:
		*r = Ratio(math.Inf(-1))
		return nil
	case "null":
		*r = Ratio(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("theta/gamma ratio: %w", err)
	}
	*r = Ratio(f)
	return nil
}

// Result is one ranked adjustment.
type Result struct {
	OriginalBreakevens     []float64            `json:"original_breakeven"`
	TargetBreakeven        float64              `json:"target_breakeven"`
	RecommendedPositions   []AdditionalPosition `json:"recommended_positions"`
	NewBreakevens          []float64            `json:"new_breakeven"`
	ThetaGammaRatio        Ratio                `json:"theta_gamma_ratio"`
	TotalAdditionalPremium float64              `json:"total_additional_premium"`
	GreeksBefore           models.Greeks        `json:"portfolio_greeks_before"`
	GreeksAfter            models.Greeks        `json:"portfolio_greeks_after"`
	ConfidenceScore        float64              `json:"confidence_score"`
	Warnings               []string             `json:"warnings"`
}

// ClosestBreakeven returns the new breakeven nearest the target.
func (r Result) ClosestBreakeven() float64 {
	best, dist := math.NaN(), math.Inf(1)
	for _, be := range r.NewBreakevens {
		if d := math.Abs(be - r.TargetBreakeven); d < dist {
			best, dist = be, d
		}
	}
	return best
}

// Adjuster runs the breakeven adjustment search.
type Adjuster struct {
	cfg         Config
	model       *pricing.Model
	solver      *solver.Solver
	recommender TargetRecommender
	logger      zerolog.Logger
}

// New creates an adjuster. Nil collaborators are replaced with defaults.
func New(cfg Config, model *pricing.Model, slv *solver.Solver, rec TargetRecommender, logger zerolog.Logger) *Adjuster {
	if model == nil {
		model = pricing.Default()
	}
	if slv == nil {
		slv = solver.Default()
	}
	if rec == nil {
		rec = NewRecommender(DefaultRecommendationConfig())
	}
	return &Adjuster{
		cfg:         cfg.withDefaults(),
		model:       model,
		solver:      slv,
		recommender: rec,
		logger:      logger,
	}
}

// Config returns the effective configuration.
func (a *Adjuster) Config() Config { return a.cfg }

// search is the read-only snapshot shared by every evaluation.
type search struct {
	symbol        string
	expiry        time.Time
	target        float64
	currentLegs   []models.OptionLeg
	currentGreeks []pricing.PositionGreeks
	before        models.Greeks
	original      []float64
	candidates    []AdditionalPosition
}

// evaluation is the outcome for one combination. result is nil when no
// breakeven lands within tolerance of the target.
type evaluation struct {
	combo    []int
	distance float64
	result   *Result
}

// Calculate returns up to TopN adjustments whose new breakevens include one
// strictly within BreakevenTolerance of the target, best theta/gamma first.
func (a *Adjuster) Calculate(ctx context.Context, req Request) ([]Result, error) {
	start := time.Now()

	if !(req.Spot > 0) {
		return nil, errors.NewInvalidInputError("spot", req.Spot, "must be positive")
	}
	if req.Expiry.IsZero() {
		return nil, errors.NewInvalidInputError("expiry", req.Expiry, "is required")
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	var target float64
	if req.Target != nil {
		target = *req.Target
	} else {
		target = a.recommender.Primary(req.Symbol, req.Spot, req.Expiry)
		a.logger.Debug().Str("symbol", req.Symbol).Float64("target", target).Msg("Target from recommender")
	}
	if !(target > 0) {
		return nil, errors.NewInvalidInputError("target", target, "must be positive")
	}

	s, err := a.prepare(req, asOf, target)
	if err != nil {
		return nil, err
	}

	var evals []evaluation
	switch a.cfg.SearchMode {
	case ModeCapped:
		evals, err = a.evaluateAll(ctx, s, a.enumerate(s.candidates))
	case ModeBeam:
		evals, err = a.beamSearch(ctx, s)
	default:
		return nil, errors.NewInvalidInputError("search_mode", a.cfg.SearchMode, "must be capped or beam")
	}
	if err != nil {
		return nil, fmt.Errorf("adjustment search: %w", err)
	}

	results := make([]Result, 0, len(evals))
	for _, e := range evals {
		if e.result != nil {
			results = append(results, *e.result)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ThetaGammaRatio > results[j].ThetaGammaRatio
	})
	if len(results) > a.cfg.TopN {
		results = results[:a.cfg.TopN]
	}

	a.logger.Info().
		Str("symbol", req.Symbol).
		Str("mode", string(a.cfg.SearchMode)).
		Float64("target", target).
		Floats64("current_breakevens", s.original).
		Int("candidates", len(s.candidates)).
		Int("evaluated", len(evals)).
		Int("results", len(results)).
		Dur("elapsed", time.Since(start)).
		Msg("Adjustment search complete")

	return results, nil
}

// prepare computes the current breakevens and Greeks and the candidate grid.
func (a *Adjuster) prepare(req Request, asOf time.Time, target float64) (*search, error) {
	s := &search{
		symbol:   req.Symbol,
		expiry:   req.Expiry,
		target:   target,
		original: []float64{},
	}

	s.currentLegs = models.PositionLegs(req.Positions)
	if len(s.currentLegs) > 0 {
		strat, err := payoff.New(s.currentLegs)
		if err != nil {
			return nil, fmt.Errorf("current positions: %w", err)
		}
		s.original = a.solver.Breakevens(strat)
	}

	for _, p := range req.Positions {
		if p.Quantity == 0 {
			continue
		}
		expiry := p.Expiry
		if expiry.IsZero() {
			expiry = req.Expiry
		}
		g, err := a.model.Greeks(models.OptionPricingInputs{
			Spot:         req.Spot,
			Strike:       p.Strike,
			TimeToExpiry: pricing.TimeToExpiry(expiry, asOf),
			RiskFreeRate: a.cfg.RiskFreeRate,
			Volatility:   a.cfg.DefaultVolatility,
			Type:         p.Type,
		})
		if err != nil {
			return nil, fmt.Errorf("greeks for %s %g %s: %w", p.Symbol, p.Strike, p.Type, err)
		}
		lot := p.MarketLot
		if lot <= 0 {
			lot = a.cfg.MarketLot(p.Symbol)
		}
		s.currentGreeks = append(s.currentGreeks, pricing.PositionGreeks{Greeks: g, Quantity: p.Quantity, MarketLot: lot})
	}
	s.before = pricing.PortfolioGreeks(s.currentGreeks)

	candidates, err := a.candidates(req.Symbol, req.Spot, req.Expiry, asOf, target)
	if err != nil {
		return nil, err
	}
	s.candidates = candidates
	return s, nil
}

// strikes spans spot +/- StrikeRangePercent at the symbol's interval,
// starting from the truncated lower bound, plus the truncated target.
func (a *Adjuster) strikes(symbol string, spot, target float64) []float64 {
	interval := a.cfg.StrikeInterval(symbol)
	width := spot * a.cfg.StrikeRangePercent
	lo := utils.TruncateTo(math.Max(spot-width, 0), interval)
	hi := spot + width

	strikes := make([]float64, 0, int((hi-lo)/interval)+2)
	for i := 0; ; i++ {
		k := lo + float64(i)*interval
		if k > hi {
			break
		}
		if k > 0 {
			strikes = append(strikes, k)
		}
	}

	t := utils.TruncateTo(target, interval)
	if t > 0 {
		found := false
		for _, k := range strikes {
			if k == t {
				found = true
				break
			}
		}
		if !found {
			strikes = append(strikes, t)
		}
	}
	return strikes
}

// candidates builds the full strike x type x action x quantity grid.
// Premiums are theoretical prices at the default volatility.
func (a *Adjuster) candidates(symbol string, spot float64, expiry, asOf time.Time, target float64) ([]AdditionalPosition, error) {
	tte := pricing.TimeToExpiry(expiry, asOf)
	lot := a.cfg.MarketLot(symbol)
	strikes := a.strikes(symbol, spot, target)

	out := make([]AdditionalPosition, 0, len(strikes)*4*len(a.cfg.Quantities))
	for _, k := range strikes {
		for _, typ := range []models.OptionType{models.OptionTypeCall, models.OptionTypePut} {
			in := models.OptionPricingInputs{
				Spot:         spot,
				Strike:       k,
				TimeToExpiry: tte,
				RiskFreeRate: a.cfg.RiskFreeRate,
				Volatility:   a.cfg.DefaultVolatility,
				Type:         typ,
			}
			g, err := a.model.Greeks(in)
			if err != nil {
				return nil, fmt.Errorf("candidate greeks at %g %s: %w", k, typ, err)
			}
			premium := a.estimatePremium(in)

			for _, action := range []models.Action{models.ActionBuy, models.ActionSell} {
				for _, qty := range a.cfg.Quantities {
					out = append(out, AdditionalPosition{
						Symbol:    symbol,
						Strike:    k,
						Type:      typ,
						Action:    action,
						Quantity:  qty,
						Premium:   premium,
						MarketLot: lot,
						Greeks:    g,
					})
				}
			}
		}
	}
	return out, nil
}

// estimatePremium prices a candidate with Black-Scholes, or at intrinsic
// value once expired, never below MinPremium.
func (a *Adjuster) estimatePremium(in models.OptionPricingInputs) float64 {
	var premium float64
	if in.TimeToExpiry > 0 {
		p, err := a.model.Price(in)
		if err == nil {
			premium = p
		}
	}
	if premium == 0 {
		if in.Type.IsCall() {
			premium = math.Max(in.Spot-in.Strike, 0)
		} else {
			premium = math.Max(in.Strike-in.Spot, 0)
		}
	}
	return math.Max(premium, a.cfg.MinPremium)
}

// enumerate lists combinations in order: singles, distinct-strike pairs,
// then distinct-strike triples from the first TripleCandidateLimit
// candidates, stopping at MaxCombinations.
func (a *Adjuster) enumerate(candidates []AdditionalPosition) [][]int {
	limit := a.cfg.MaxCombinations
	n := len(candidates)
	combos := make([][]int, 0, min(limit, n))
	full := func() bool { return len(combos) >= limit }

	for i := 0; i < n && !full(); i++ {
		combos = append(combos, []int{i})
	}
	for i := 0; i < n && !full(); i++ {
		for j := i + 1; j < n && !full(); j++ {
			if candidates[i].Strike != candidates[j].Strike {
				combos = append(combos, []int{i, j})
			}
		}
	}
	m := min(n, a.cfg.TripleCandidateLimit)
	for i := 0; i < m && !full(); i++ {
		for j := i + 1; j < m && !full(); j++ {
			if candidates[i].Strike == candidates[j].Strike {
				continue
			}
			for k := j + 1; k < m && !full(); k++ {
				if candidates[k].Strike != candidates[i].Strike && candidates[k].Strike != candidates[j].Strike {
					combos = append(combos, []int{i, j, k})
				}
			}
		}
	}
	return combos
}

// beamSearch grows combinations one leg at a time up to MaxLegs, expanding
// only the BeamWidth combinations with a breakeven closest to target.
func (a *Adjuster) beamSearch(ctx context.Context, s *search) ([]evaluation, error) {
	n := len(s.candidates)
	frontier := make([][]int, n)
	for i := range frontier {
		frontier[i] = []int{i}
	}

	seen := make(map[string]struct{})
	var all []evaluation
	for depth := 1; depth <= a.cfg.MaxLegs && len(frontier) > 0; depth++ {
		evals, err := a.evaluateAll(ctx, s, frontier)
		if err != nil {
			return nil, err
		}
		all = append(all, evals...)
		if depth == a.cfg.MaxLegs {
			break
		}

		sort.SliceStable(evals, func(i, j int) bool { return evals[i].distance < evals[j].distance })
		beam := evals[:min(a.cfg.BeamWidth, len(evals))]

		frontier = frontier[:0:0]
		for _, e := range beam {
			for j := 0; j < n; j++ {
				if usesStrike(s.candidates, e.combo, s.candidates[j].Strike) {
					continue
				}
				next := append(append(make([]int, 0, len(e.combo)+1), e.combo...), j)
				sort.Ints(next)
				key := comboKey(next)
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				frontier = append(frontier, next)
			}
		}
		a.logger.Debug().Int("depth", depth+1).Int("frontier", len(frontier)).Msg("Beam expanded")
	}
	return all, nil
}

func usesStrike(candidates []AdditionalPosition, combo []int, strike float64) bool {
	for _, i := range combo {
		if candidates[i].Strike == strike {
			return true
		}
	}
	return false
}

func comboKey(combo []int) string {
	parts := make([]string, len(combo))
	for i, c := range combo {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}

// evaluateAll scores combos on the worker pool. Results keep combo order.
func (a *Adjuster) evaluateAll(ctx context.Context, s *search, combos [][]int) ([]evaluation, error) {
	evals := make([]evaluation, len(combos))
	pool := performance.NewWorkerPool(a.cfg.Workers)
	defer pool.Stop()

	if err := pool.Run(ctx, len(combos), func(i int) {
		evals[i] = a.evaluate(s, combos[i])
	}); err != nil {
		return nil, err
	}

	stats := pool.Stats()
	a.logger.Debug().
		Int("workers", stats.Workers).
		Uint64("evaluated", stats.TasksDone).
		Msg("Combinations evaluated")
	return evals, nil
}

func (a *Adjuster) evaluate(s *search, combo []int) evaluation {
	e := evaluation{combo: combo, distance: math.Inf(1)}

	added := make([]AdditionalPosition, len(combo))
	legs := make([]models.OptionLeg, 0, len(s.currentLegs)+len(combo))
	legs = append(legs, s.currentLegs...)
	for i, idx := range combo {
		added[i] = s.candidates[idx]
		legs = append(legs, added[i].Leg(s.expiry))
	}

	strat, err := payoff.New(legs)
	if err != nil {
		a.logger.Debug().Err(err).Msg("Combination rejected")
		return e
	}
	breakevens := a.solver.Breakevens(strat)
	for _, be := range breakevens {
		e.distance = math.Min(e.distance, math.Abs(be-s.target))
	}
	if !(e.distance < a.cfg.BreakevenTolerance) {
		return e
	}

	positions := make([]pricing.PositionGreeks, 0, len(s.currentGreeks)+len(added))
	positions = append(positions, s.currentGreeks...)
	var premium float64
	for _, p := range added {
		sign := p.Action.Sign()
		positions = append(positions, pricing.PositionGreeks{Greeks: p.Greeks, Quantity: p.Quantity * sign, MarketLot: p.MarketLot})
		premium += p.Premium * float64(p.Quantity*p.MarketLot*sign)
	}
	after := pricing.PortfolioGreeks(positions)

	e.result = &Result{
		OriginalBreakevens:     s.original,
		TargetBreakeven:        s.target,
		RecommendedPositions:   added,
		NewBreakevens:          breakevens,
		ThetaGammaRatio:        Ratio(pricing.ThetaGammaRatio(after.Theta, after.Gamma)),
		TotalAdditionalPremium: utils.Round2(premium),
		GreeksBefore:           s.before,
		GreeksAfter:            after,
		ConfidenceScore:        confidence(e.distance, after.Gamma),
		Warnings:               warnings(added, after),
	}
	return e
}

// confidence averages closeness to target and gamma stability, each on a
// 0-100 scale.
func confidence(distance, gamma float64) float64 {
	distanceScore := math.Max(0, 100-distance)
	gammaScore := math.Max(0, 100-math.Abs(gamma)*1000)
	return utils.Round2((distanceScore + gammaScore) / 2)
}

func warnings(added []AdditionalPosition, g models.Greeks) []string {
	out := []string{}
	if math.Abs(g.Gamma) > 0.1 {
		out = append(out, "High gamma - position may be sensitive to spot moves")
	}
	if g.Theta < -100 {
		out = append(out, "High negative theta - significant time decay")
	}
	if len(added) > 2 {
		out = append(out, "Complex strategy with multiple legs - monitor carefully")
	}
	return out
}
