package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"breakeven-analyzer/pkg/utils"
)

// UnlimitedLabel is the wire form of an unbounded amount.
const UnlimitedLabel = "Unlimited"

// Amount is either a finite number or Unlimited.
type Amount struct {
	value     float64
	unlimited bool
}

// Finite returns a bounded amount.
func Finite(v float64) Amount { return Amount{value: v} }

// Unlimited is the unbounded amount.
var Unlimited = Amount{unlimited: true}

// IsUnlimited reports whether a is unbounded.
func (a Amount) IsUnlimited() bool { return a.unlimited }

// Value returns the finite value. ok is false for Unlimited.
func (a Amount) Value() (v float64, ok bool) {
	if a.unlimited {
		return math.Inf(1), false
	}
	return a.value, true
}

// Float returns the value, +Inf when unlimited.
func (a Amount) Float() float64 {
	v, _ := a.Value()
	return v
}

func (a Amount) String() string {
	if a.unlimited {
		return UnlimitedLabel
	}
	return strconv.FormatFloat(a.value, 'f', -1, 64)
}

// MarshalJSON encodes a finite amount as a number and Unlimited as the
// string "Unlimited".
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.unlimited {
		return json.Marshal(UnlimitedLabel)
	}
	if math.IsNaN(a.value) || math.IsInf(a.value, 0) {
		return nil, fmt.Errorf("amount %v is not representable", a.value)
	}
	return json.Marshal(a.value)
}

// UnmarshalJSON accepts a number or the string "Unlimited".
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != UnlimitedLabel {
			return fmt.Errorf("amount: unexpected string %q", s)
		}
		*a = Unlimited
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Finite(v)
	return nil
}

// ZoneKind identifies the shape of a profit zone.
type ZoneKind string

const (
	ZoneBetween ZoneKind = "between"
	ZoneAbove   ZoneKind = "above"
	ZoneBelow   ZoneKind = "below"
)

// ProfitZone is a price interval where the total payoff is positive.
type ProfitZone struct {
	Kind  ZoneKind
	Lower Amount
	Upper Amount
}

// Between is the zone lo < price < hi. hi may be Unlimited.
func Between(lo, hi Amount) ProfitZone {
	return ProfitZone{Kind: ZoneBetween, Lower: lo, Upper: hi}
}

// Above is the zone price > x.
func Above(x float64) ProfitZone {
	return ProfitZone{Kind: ZoneAbove, Lower: Finite(x), Upper: Unlimited}
}

// Below is the zone price < x.
func Below(x float64) ProfitZone {
	return ProfitZone{Kind: ZoneBelow, Lower: Finite(0), Upper: Finite(x)}
}

// Contains reports whether price falls strictly inside the zone.
func (z ProfitZone) Contains(price float64) bool {
	switch z.Kind {
	case ZoneAbove:
		return price > z.Lower.Float()
	case ZoneBelow:
		return price < z.Upper.Float()
	default:
		return price > z.Lower.Float() && price < z.Upper.Float()
	}
}

func (z ProfitZone) String() string {
	switch z.Kind {
	case ZoneAbove:
		return "above " + z.Lower.String()
	case ZoneBelow:
		return "below " + z.Upper.String()
	default:
		return z.Lower.String() + " - " + z.Upper.String()
	}
}

// MarshalJSON emits {"between":[lo,hi]}, {"above":x} or {"below":x}.
func (z ProfitZone) MarshalJSON() ([]byte, error) {
	switch z.Kind {
	case ZoneAbove:
		return json.Marshal(map[string]Amount{"above": z.Lower})
	case ZoneBelow:
		return json.Marshal(map[string]Amount{"below": z.Upper})
	case ZoneBetween:
		return json.Marshal(map[string][2]Amount{"between": {z.Lower, z.Upper}})
	default:
		return nil, fmt.Errorf("profit zone: unknown kind %q", z.Kind)
	}
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (z *ProfitZone) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("profit zone: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("profit zone: expected exactly one key, got %d", len(raw))
	}
	for k, v := range raw {
		switch ZoneKind(k) {
		case ZoneBetween:
			var bounds [2]Amount
			if err := json.Unmarshal(v, &bounds); err != nil {
				return fmt.Errorf("profit zone between: %w", err)
			}
			*z = Between(bounds[0], bounds[1])
		case ZoneAbove, ZoneBelow:
			var x Amount
			if err := json.Unmarshal(v, &x); err != nil {
				return fmt.Errorf("profit zone %s: %w", k, err)
			}
			if ZoneKind(k) == ZoneAbove {
				*z = Above(x.Float())
			} else {
				*z = Below(x.Float())
			}
		default:
			return fmt.Errorf("profit zone: unknown kind %q", k)
		}
	}
	return nil
}

// StrategyAnalysisResult is the outcome of a numeric or closed-form analysis.
type StrategyAnalysisResult struct {
	StrategyName    string         `json:"strategy_name"`
	BreakevenPoints []float64      `json:"breakeven_points"`
	MaxProfit       Amount         `json:"max_profit"`
	MaxLoss         Amount         `json:"max_loss"`
	ProfitZones     []ProfitZone   `json:"profit_zones"`
	RiskRewardRatio *Amount        `json:"risk_reward_ratio"`
	Legs            []OptionLeg    `json:"legs"`
	Details         map[string]any `json:"details"`
}

// RiskReward derives the risk/reward ratio from max profit and max loss.
// It returns nil when the ratio is undefined.
func RiskReward(maxProfit, maxLoss Amount) *Amount {
	profit, profitFinite := maxProfit.Value()
	loss, lossFinite := maxLoss.Value()
	var r Amount
	switch {
	case profitFinite && lossFinite && loss > 0:
		r = Finite(utils.Round(profit/loss, 2))
	case !profitFinite && lossFinite && loss > 0:
		r = Unlimited
	case profitFinite && !lossFinite:
		r = Finite(0)
	default:
		return nil
	}
	return &r
}
