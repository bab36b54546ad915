package models

import "time"

// Position is an open option position as reported by a position source.
// Quantity is in lots and signed: positive long, negative short.
type Position struct {
	ID        string     `json:"id,omitempty"`
	Symbol    string     `json:"symbol"`
	Expiry    time.Time  `json:"expiry"`
	Strike    float64    `json:"strike"`
	Type      OptionType `json:"option_type"`
	Quantity  int        `json:"quantity"`
	Premium   float64    `json:"premium"`
	MarketLot int        `json:"market_lot"`
	Source    string     `json:"source,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
}

// Action derives the leg action from the quantity sign.
func (p Position) Action() Action {
	if p.Quantity < 0 {
		return ActionSell
	}
	return ActionBuy
}

// Leg converts the position into a strategy leg with its premium resolved.
func (p Position) Leg() OptionLeg {
	qty := p.Quantity
	if qty < 0 {
		qty = -qty
	}
	return OptionLeg{
		Symbol:   p.Symbol,
		Expiry:   p.Expiry,
		Strike:   p.Strike,
		Type:     p.Type,
		Action:   p.Action(),
		Quantity: qty,
	}.WithPremium(p.Premium)
}

// PositionLegs converts positions to legs, skipping flat ones.
func PositionLegs(positions []Position) []OptionLeg {
	legs := make([]OptionLeg, 0, len(positions))
	for _, p := range positions {
		if p.Quantity == 0 {
			continue
		}
		legs = append(legs, p.Leg())
	}
	return legs
}
