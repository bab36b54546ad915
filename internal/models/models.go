// Package models contains the data model shared by the pricing, payoff,
// solver, strategy and adjustment packages.
package models

import (
	"fmt"
	"strings"
)

// OptionType is the option right. Wire values follow the NSE convention.
type OptionType string

const (
	OptionTypeCall OptionType = "CE"
	OptionTypePut  OptionType = "PE"
)

// ParseOptionType accepts CE/PE as well as CALL/PUT and C/P, case-insensitive.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CE", "CALL", "C":
		return OptionTypeCall, nil
	case "PE", "PUT", "P":
		return OptionTypePut, nil
	default:
		return "", fmt.Errorf("unsupported option type %q", s)
	}
}

// IsCall reports whether t is a call.
func (t OptionType) IsCall() bool { return t == OptionTypeCall }

// IsPut reports whether t is a put.
func (t OptionType) IsPut() bool { return t == OptionTypePut }

// Valid reports whether t is one of the known option types.
func (t OptionType) Valid() bool { return t == OptionTypeCall || t == OptionTypePut }

// Action is the side of a leg.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// ParseAction accepts BUY/SELL and B/S, case-insensitive.
func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "B", "LONG":
		return ActionBuy, nil
	case "SELL", "S", "SHORT":
		return ActionSell, nil
	default:
		return "", fmt.Errorf("unsupported action %q", s)
	}
}

// Sign returns +1 for BUY and -1 for SELL.
func (a Action) Sign() int {
	if a == ActionSell {
		return -1
	}
	return 1
}

// Valid reports whether a is BUY or SELL.
func (a Action) Valid() bool { return a == ActionBuy || a == ActionSell }
