// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrMissingPremium     = errors.New("premium not resolved")
	ErrNoLegs             = errors.New("no option legs")
	ErrUnknownStrategy    = errors.New("unknown strategy")
	ErrStrategyMismatch   = errors.New("legs do not match strategy")
	ErrPremiumUnavailable = errors.New("premium unavailable from market data")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrSymbolNotFound     = errors.New("symbol not found")
	ErrPositionNotFound   = errors.New("position not found")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrDataNotFound       = errors.New("data not found")
	ErrDatabaseError      = errors.New("database error")
	ErrRateLimited        = errors.New("rate limited")
)

// InvalidInputError is a precondition violation on a named input.
type InvalidInputError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// NewInvalidInputError creates a new InvalidInputError.
func NewInvalidInputError(field string, value interface{}, message string) *InvalidInputError {
	return &InvalidInputError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// LegError ties an error to a leg position in the request.
type LegError struct {
	Index int
	Leg   string
	Err   error
}

func (e *LegError) Error() string {
	return fmt.Sprintf("leg %d [%s]: %v", e.Index, e.Leg, e.Err)
}

func (e *LegError) Unwrap() error {
	return e.Err
}

// NewLegError creates a new LegError.
func NewLegError(index int, leg string, err error) *LegError {
	return &LegError{
		Index: index,
		Leg:   leg,
		Err:   err,
	}
}

// GreeksError is returned by strict Greeks computation.
type GreeksError struct {
	Spot   float64
	Strike float64
	Err    error
}

func (e *GreeksError) Error() string {
	return fmt.Sprintf("greeks error [S=%g K=%g]: %v", e.Spot, e.Strike, e.Err)
}

func (e *GreeksError) Unwrap() error {
	return e.Err
}

// NewGreeksError creates a new GreeksError.
func NewGreeksError(spot, strike float64, err error) *GreeksError {
	return &GreeksError{
		Spot:   spot,
		Strike: strike,
		Err:    err,
	}
}

// StrategyError reports a closed-form analysis that could not run.
type StrategyError struct {
	Strategy string
	Reason   string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy error [%s]: %s: %v", e.Strategy, e.Reason, e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

// NewStrategyError creates a new StrategyError.
func NewStrategyError(strategy, reason string, err error) *StrategyError {
	return &StrategyError{
		Strategy: strategy,
		Reason:   reason,
		Err:      err,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// BrokerError represents an error from the broker API.
type BrokerError struct {
	Code    string
	Message string
	Err     error
}

func (e *BrokerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("broker error [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("broker error [%s]: %s", e.Code, e.Message)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewBrokerError creates a new BrokerError.
func NewBrokerError(code, message string, err error) *BrokerError {
	return &BrokerError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
