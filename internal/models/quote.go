package models

import "time"

// OptionQuoteRequest identifies a contract and the trading-date window to
// look it up in. From and To are inclusive calendar dates.
type OptionQuoteRequest struct {
	Symbol string
	Strike float64
	Type   OptionType
	Expiry time.Time
	From   time.Time
	To     time.Time
}

// OptionQuote is the end-of-day price record of one contract.
type OptionQuote struct {
	Symbol          string     `json:"symbol"`
	Strike          float64    `json:"strike"`
	Type            OptionType `json:"option_type"`
	Expiry          time.Time  `json:"expiry"`
	Date            time.Time  `json:"date"`
	LastTradedPrice float64    `json:"last_traded_price"`
	ClosingPrice    float64    `json:"closing_price"`
	UnderlyingValue float64    `json:"underlying_value,omitempty"`
}

// Price returns the last traded price, falling back to the close.
func (q OptionQuote) Price() float64 {
	if q.LastTradedPrice > 0 {
		return q.LastTradedPrice
	}
	return q.ClosingPrice
}
