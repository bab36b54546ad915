package strategy

import (
	"fmt"
	"math"
	"sort"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/internal/payoff"
	"breakeven-analyzer/pkg/utils"
)

// CustomWarning annotates the premium-only estimate for unrecognized legs.
const CustomWarning = "This appears to be a custom or unrecognized strategy. Basic calculations may not fully represent its characteristics."

// calc carries one closed-form evaluation. Premiums are per unit: the net
// premium is the credit (positive) or debit (negative) per unit of the
// strategy's base quantity.
type calc struct {
	g   legGroups
	res *models.StrategyAnalysisResult
}

type analyzer func(c *calc)

var analyzers = map[string]analyzer{
	BuyCall:             (*calc).single,
	SellCall:            (*calc).single,
	BuyPut:              (*calc).single,
	SellPut:             (*calc).single,
	BullCallSpread:      (*calc).bullCallSpread,
	BearCallSpread:      (*calc).bearCallSpread,
	BullPutSpread:       (*calc).bullPutSpread,
	BearPutSpread:       (*calc).bearPutSpread,
	BullButterfly:       (*calc).butterfly,
	BearButterfly:       (*calc).butterfly,
	CallRatioBackSpread: (*calc).callRatioBackSpread,
	PutRatioBackSpread:  (*calc).putRatioBackSpread,
	BullCondor:          (*calc).condor,
	BearCondor:          (*calc).condor,
	CustomStrategy:      (*calc).custom,
}

// Analyze computes breakevens, extremes and profit zones of a catalog
// strategy from its strikes and premiums. The legs must form the named
// strategy; CustomStrategy accepts any legs and returns a rough estimate.
func Analyze(name string, legs []models.OptionLeg) (*models.StrategyAnalysisResult, error) {
	fn, ok := analyzers[name]
	if !ok {
		return nil, errors.NewStrategyError(name, "not in catalog", errors.ErrUnknownStrategy)
	}
	strat, err := payoff.New(legs)
	if err != nil {
		return nil, err
	}
	if name != CustomStrategy {
		if got := Identify(legs); got != name {
			return nil, errors.NewStrategyError(name, fmt.Sprintf("legs form %q", got), errors.ErrStrategyMismatch)
		}
	}

	totalQty := 0
	for _, l := range legs {
		totalQty += l.Quantity
	}
	c := &calc{
		g: group(legs),
		res: &models.StrategyAnalysisResult{
			StrategyName:    name,
			BreakevenPoints: []float64{},
			MaxProfit:       models.Finite(0),
			MaxLoss:         models.Finite(0),
			ProfitZones:     []models.ProfitZone{},
			Legs:            strat.Legs(),
			Details: map[string]any{
				"blended_net_premium": utils.Round(strat.NetPremium()/float64(totalQty), 4),
			},
		},
	}
	fn(c)
	c.finish()
	return c.res, nil
}

// AnalyzeLegs classifies legs and analyzes them in closed form.
func AnalyzeLegs(legs []models.OptionLeg) (*models.StrategyAnalysisResult, error) {
	return Analyze(Identify(legs), legs)
}

func premium(l models.OptionLeg) float64 {
	p, _ := l.PremiumValue()
	return p
}

// netPerUnit is the credit-positive premium flow divided by unit.
func netPerUnit(legs []models.OptionLeg, unit int) float64 {
	total := 0.0
	for _, l := range legs {
		total -= float64(l.Sign()) * premium(l) * float64(l.Quantity)
	}
	return total / float64(unit)
}

func minQuantity(legs []models.OptionLeg) int {
	q := legs[0].Quantity
	for _, l := range legs[1:] {
		if l.Quantity < q {
			q = l.Quantity
		}
	}
	return q
}

func sortedStrikes(legs []models.OptionLeg) []float64 {
	out := make([]float64, len(legs))
	for i, l := range legs {
		out[i] = l.Strike
	}
	sort.Float64s(out)
	return out
}

func (c *calc) legs() []models.OptionLeg { return c.res.Legs }

func (c *calc) notePremium(net float64, unit int) {
	flow := "credit"
	if net < 0 {
		flow = "debit"
	}
	c.res.Details["net_premium"] = utils.Round(math.Abs(net), 4)
	c.res.Details["premium_flow"] = flow
	c.res.Details["unit_quantity"] = unit
}

func (c *calc) set(breakevens []float64, maxProfit, maxLoss models.Amount, zones ...models.ProfitZone) {
	c.res.BreakevenPoints = breakevens
	c.res.MaxProfit = maxProfit
	c.res.MaxLoss = maxLoss
	c.res.ProfitZones = append(c.res.ProfitZones, zones...)
}

func (c *calc) single() {
	l := c.legs()[0]
	k, p, q := l.Strike, premium(l), float64(l.Quantity)
	c.notePremium(netPerUnit(c.legs(), l.Quantity), l.Quantity)
	switch c.res.StrategyName {
	case BuyCall:
		be := k + p
		c.set([]float64{be}, models.Unlimited, models.Finite(p*q), models.Above(be))
	case SellCall:
		be := k + p
		c.set([]float64{be}, models.Finite(p*q), models.Unlimited, models.Below(be))
	case BuyPut:
		be := k - p
		c.set([]float64{be}, models.Finite(math.Max(0, be)*q), models.Finite(p*q), models.Below(be))
	case SellPut:
		be := k - p
		c.set([]float64{be}, models.Finite(p*q), models.Finite(math.Max(0, be)*q), models.Above(be))
	}
}

func (c *calc) bullCallSpread() {
	buy, sell := c.g.buyCalls[0], c.g.sellCalls[0]
	unit := minQuantity(c.legs())
	net := netPerUnit(c.legs(), unit)
	c.notePremium(net, unit)
	d, q := math.Abs(net), float64(unit)
	be := buy.Strike + d
	width := sell.Strike - buy.Strike
	c.set([]float64{be}, models.Finite((width-d)*q), models.Finite(d*q),
		models.Between(models.Finite(be), models.Finite(sell.Strike)))
}

func (c *calc) bearCallSpread() {
	sell, buy := c.g.sellCalls[0], c.g.buyCalls[0]
	unit := minQuantity(c.legs())
	net := netPerUnit(c.legs(), unit)
	c.notePremium(net, unit)
	cr, q := math.Abs(net), float64(unit)
	be := sell.Strike + cr
	width := buy.Strike - sell.Strike
	c.set([]float64{be}, models.Finite(cr*q), models.Finite((width-cr)*q), models.Below(be))
}

func (c *calc) bullPutSpread() {
	sell, buy := c.g.sellPuts[0], c.g.buyPuts[0]
	unit := minQuantity(c.legs())
	net := netPerUnit(c.legs(), unit)
	c.notePremium(net, unit)
	cr, q := math.Abs(net), float64(unit)
	be := sell.Strike - cr
	width := sell.Strike - buy.Strike
	c.set([]float64{be}, models.Finite(cr*q), models.Finite((width-cr)*q), models.Above(be))
}

func (c *calc) bearPutSpread() {
	buy, sell := c.g.buyPuts[0], c.g.sellPuts[0]
	unit := minQuantity(c.legs())
	net := netPerUnit(c.legs(), unit)
	c.notePremium(net, unit)
	d, q := math.Abs(net), float64(unit)
	be := buy.Strike - d
	width := buy.Strike - sell.Strike
	c.set([]float64{be}, models.Finite((width-d)*q), models.Finite(d*q),
		models.Between(models.Finite(sell.Strike), models.Finite(be)))
}

func (c *calc) butterfly() {
	wings := c.g.buyCalls
	if c.res.StrategyName == BearButterfly {
		wings = c.g.buyPuts
	}
	unit := wings[0].Quantity
	net := netPerUnit(c.legs(), unit)
	c.notePremium(net, unit)
	d, q := math.Abs(net), float64(unit)

	k := sortedStrikes(c.legs())
	lower, upper := k[0]+d, k[2]-d
	wing := k[1] - k[0]
	if c.res.StrategyName == BearButterfly {
		wing = k[2] - k[1]
	}
	c.set([]float64{lower, upper}, models.Finite((wing-d)*q), models.Finite(d*q),
		models.Between(models.Finite(lower), models.Finite(upper)))
	c.res.Details["max_profit_at"] = k[1]
}

// ratio returns the bought strike and the bought to sold quantity ratio.
func ratio(buys []models.OptionLeg, sell models.OptionLeg) (float64, float64) {
	bought := 0
	for _, b := range buys {
		bought += b.Quantity
	}
	return buys[0].Strike, float64(bought) / float64(sell.Quantity)
}

// callRatioBackSpread: short q calls at K1, long r*q calls at K2 > K1.
// Above K2 the payoff rises with slope (r-1)*q, so profit is unbounded.
func (c *calc) callRatioBackSpread() {
	sell := c.g.sellCalls[0]
	k2, r := ratio(c.g.buyCalls, sell)
	k1 := sell.Strike
	unit := sell.Quantity
	net := netPerUnit(c.legs(), unit)
	c.notePremium(net, unit)
	q := float64(unit)

	upper := (r*k2 - k1 - net) / (r - 1)
	breakevens := []float64{upper}
	zones := []models.ProfitZone{}
	if net > 0 {
		lower := k1 + net
		breakevens = []float64{lower, upper}
		zones = append(zones, models.Below(lower))
	}
	zones = append(zones, models.Above(upper))
	c.set(breakevens, models.Unlimited, models.Finite(math.Max(0, k2-k1-net)*q), zones...)
	c.res.Details["max_loss_at"] = k2
	c.res.Details["ratio"] = r
}

// putRatioBackSpread: short q puts at K2, long r*q puts at K1 < K2.
// The underlying stops at zero, so the downside profit is finite.
func (c *calc) putRatioBackSpread() {
	sell := c.g.sellPuts[0]
	k1, r := ratio(c.g.buyPuts, sell)
	k2 := sell.Strike
	unit := sell.Quantity
	net := netPerUnit(c.legs(), unit)
	c.notePremium(net, unit)
	q := float64(unit)

	breakevens := []float64{}
	zones := []models.ProfitZone{}
	if lower := (r*k1 - k2 + net) / (r - 1); lower > 0 {
		breakevens = append(breakevens, lower)
		zones = append(zones, models.Below(lower))
	}
	if net > 0 {
		upper := k2 - net
		breakevens = append(breakevens, upper)
		zones = append(zones, models.Above(upper))
	}
	maxProfit := math.Max(net, r*k1-k2+net) * q
	c.set(breakevens, models.Finite(maxProfit), models.Finite(math.Max(0, k2-k1-net)*q), zones...)
	c.res.Details["max_loss_at"] = k1
	c.res.Details["ratio"] = r
}

// condor handles both the long (debit) and short (credit) shapes.
func (c *calc) condor() {
	unit := minQuantity(c.legs())
	net := netPerUnit(c.legs(), unit)
	c.notePremium(net, unit)
	q := float64(unit)
	k := sortedStrikes(c.legs())
	wing := k[1] - k[0]
	if c.res.StrategyName == BearCondor {
		wing = k[3] - k[2]
	}

	if net < 0 {
		d := -net
		lower, upper := k[0]+d, k[3]-d
		c.set([]float64{lower, upper}, models.Finite((wing-d)*q), models.Finite(d*q),
			models.Between(models.Finite(lower), models.Finite(upper)))
		return
	}
	lower, upper := k[0]+net, k[3]-net
	c.set([]float64{lower, upper}, models.Finite(net*q), models.Finite((wing-net)*q),
		models.Below(lower), models.Above(upper))
}

func (c *calc) custom() {
	legs := c.legs()
	totalQty := 0
	for _, l := range legs {
		totalQty += l.Quantity
	}
	net := netPerUnit(legs, totalQty)
	estimate := math.Abs(net) * float64(totalQty) / float64(len(legs))
	c.res.Details["warning"] = CustomWarning
	c.res.Details["net_premium"] = utils.Round(net, 4)
	if net > 0 {
		c.res.MaxProfit = models.Finite(estimate)
		c.res.Details["max_profit_note"] = "This is an estimate based on net premium received."
	} else {
		c.res.MaxLoss = models.Finite(estimate)
		c.res.Details["max_loss_note"] = "This is an estimate based on net premium paid."
	}
}

// finish rounds to two decimals, orders breakevens and derives risk/reward.
func (c *calc) finish() {
	for i, be := range c.res.BreakevenPoints {
		c.res.BreakevenPoints[i] = utils.Round2(be)
	}
	sort.Float64s(c.res.BreakevenPoints)
	c.res.MaxProfit = roundAmount(c.res.MaxProfit)
	c.res.MaxLoss = roundAmount(c.res.MaxLoss)
	for i, z := range c.res.ProfitZones {
		c.res.ProfitZones[i] = models.ProfitZone{Kind: z.Kind, Lower: roundAmount(z.Lower), Upper: roundAmount(z.Upper)}
	}
	c.res.RiskRewardRatio = models.RiskReward(c.res.MaxProfit, c.res.MaxLoss)
}

func roundAmount(a models.Amount) models.Amount {
	if v, ok := a.Value(); ok {
		return models.Finite(utils.Round2(v))
	}
	return a
}
