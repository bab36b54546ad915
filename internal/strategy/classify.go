// Package strategy recognizes catalog option strategies and analyzes them
// with closed-form strike arithmetic.
package strategy

import (
	"sort"

	"breakeven-analyzer/internal/models"
)

// Catalog strategy names.
const (
	BuyCall             = "Buy Call"
	SellCall            = "Sell Call"
	BuyPut              = "Buy Put"
	SellPut             = "Sell Put"
	BullCallSpread      = "Bull Call Spread"
	BearCallSpread      = "Bear Call Spread"
	BullPutSpread       = "Bull Put Spread"
	BearPutSpread       = "Bear Put Spread"
	BullButterfly       = "Bull Butterfly"
	BearButterfly       = "Bear Butterfly"
	CallRatioBackSpread = "Call Ratio Back Spread"
	PutRatioBackSpread  = "Put Ratio Back Spread"
	BullCondor          = "Bull Condor"
	BearCondor          = "Bear Condor"
	CustomStrategy      = "Custom Strategy"
)

// Names lists every recognized name, custom last.
var Names = []string{
	BuyCall, SellCall, BuyPut, SellPut,
	BullCallSpread, BearCallSpread, BullPutSpread, BearPutSpread,
	BullButterfly, BearButterfly,
	CallRatioBackSpread, PutRatioBackSpread,
	BullCondor, BearCondor,
	CustomStrategy,
}

// IsKnown reports whether name is in the catalog.
func IsKnown(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// legGroups splits legs by type and action. Calls are ordered by ascending
// strike, puts by descending strike; ties break on quantity so that input
// order never affects the result.
type legGroups struct {
	calls, puts         []models.OptionLeg
	buyCalls, sellCalls []models.OptionLeg
	buyPuts, sellPuts   []models.OptionLeg
}

func group(legs []models.OptionLeg) legGroups {
	var g legGroups
	for _, l := range legs {
		if l.Type == models.OptionTypeCall {
			g.calls = append(g.calls, l)
		} else {
			g.puts = append(g.puts, l)
		}
	}
	sort.SliceStable(g.calls, func(i, j int) bool {
		if g.calls[i].Strike != g.calls[j].Strike {
			return g.calls[i].Strike < g.calls[j].Strike
		}
		return g.calls[i].Quantity < g.calls[j].Quantity
	})
	sort.SliceStable(g.puts, func(i, j int) bool {
		if g.puts[i].Strike != g.puts[j].Strike {
			return g.puts[i].Strike > g.puts[j].Strike
		}
		return g.puts[i].Quantity < g.puts[j].Quantity
	})
	for _, l := range g.calls {
		if l.Action == models.ActionBuy {
			g.buyCalls = append(g.buyCalls, l)
		} else {
			g.sellCalls = append(g.sellCalls, l)
		}
	}
	for _, l := range g.puts {
		if l.Action == models.ActionBuy {
			g.buyPuts = append(g.buyPuts, l)
		} else {
			g.sellPuts = append(g.sellPuts, l)
		}
	}
	return g
}

// Identify names the catalog strategy formed by legs, or CustomStrategy.
// Rules are tried by leg count; the first match wins.
func Identify(legs []models.OptionLeg) string {
	g := group(legs)
	switch len(legs) {
	case 1:
		return identifySingle(legs[0])
	case 2:
		return identifyPair(g)
	case 3:
		return identifyTriple(g)
	case 4:
		return identifyQuad(g)
	}
	return CustomStrategy
}

func identifySingle(l models.OptionLeg) string {
	switch {
	case l.Type == models.OptionTypeCall && l.Action == models.ActionBuy:
		return BuyCall
	case l.Type == models.OptionTypeCall:
		return SellCall
	case l.Action == models.ActionBuy:
		return BuyPut
	default:
		return SellPut
	}
}

func identifyPair(g legGroups) string {
	switch {
	case len(g.calls) == 2 && len(g.buyCalls) == 1 && len(g.sellCalls) == 1:
		if g.buyCalls[0].Strike < g.sellCalls[0].Strike {
			return BullCallSpread
		}
		return BearCallSpread
	case len(g.puts) == 2 && len(g.buyPuts) == 1 && len(g.sellPuts) == 1:
		if g.buyPuts[0].Strike > g.sellPuts[0].Strike {
			return BearPutSpread
		}
		return BullPutSpread
	}
	return CustomStrategy
}

func identifyTriple(g legGroups) string {
	switch {
	case len(g.calls) == 3 && len(g.buyCalls) == 2 && len(g.sellCalls) == 1:
		if g.sellCalls[0].Quantity == 2*g.buyCalls[0].Quantity {
			return BullButterfly
		}
		if isSplitRatio(g.buyCalls, g.sellCalls[0]) && g.buyCalls[0].Strike > g.sellCalls[0].Strike {
			return CallRatioBackSpread
		}
	case len(g.puts) == 3 && len(g.buyPuts) == 2 && len(g.sellPuts) == 1:
		if g.sellPuts[0].Quantity == 2*g.buyPuts[0].Quantity {
			return BearButterfly
		}
		if isSplitRatio(g.buyPuts, g.sellPuts[0]) && g.buyPuts[0].Strike < g.sellPuts[0].Strike {
			return PutRatioBackSpread
		}
	}
	return CustomStrategy
}

// isSplitRatio reports whether two bought legs at one strike add up to
// twice the sold quantity.
func isSplitRatio(buys []models.OptionLeg, sell models.OptionLeg) bool {
	return buys[0].Strike == buys[1].Strike && buys[0].Quantity+buys[1].Quantity == 2*sell.Quantity
}

func identifyQuad(g legGroups) string {
	switch {
	case len(g.calls) == 4 && len(g.buyCalls) == 2 && len(g.sellCalls) == 2 && distinctStrikes(g.calls):
		return BullCondor
	case len(g.puts) == 4 && len(g.buyPuts) == 2 && len(g.sellPuts) == 2 && distinctStrikes(g.puts):
		return BearCondor
	}
	return CustomStrategy
}

func distinctStrikes(legs []models.OptionLeg) bool {
	seen := make(map[float64]bool, len(legs))
	for _, l := range legs {
		if seen[l.Strike] {
			return false
		}
		seen[l.Strike] = true
	}
	return true
}
