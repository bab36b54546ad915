// Package store provides the local journal: positions, end-of-day option
// quotes, saved analyses and implied-volatility records.
package store

import (
	"context"
	"encoding/json"
	"time"

	"breakeven-analyzer/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Positions
	AddPosition(ctx context.Context, p *models.Position) error
	GetPositions(ctx context.Context, filter PositionFilter) ([]models.Position, error)
	ClosePosition(ctx context.Context, id string) error
	ReplacePositions(ctx context.Context, source string, positions []models.Position) error

	// Option quotes
	SaveQuotes(ctx context.Context, quotes []models.OptionQuote) error
	GetQuotes(ctx context.Context, filter QuoteFilter) ([]models.OptionQuote, error)

	// Analysis journal
	SaveAnalysis(ctx context.Context, rec *AnalysisRecord) error
	GetAnalyses(ctx context.Context, filter AnalysisFilter) ([]AnalysisRecord, error)

	// Implied volatility
	SaveIVRecord(ctx context.Context, rec *IVRecord) error
	GetIVRecords(ctx context.Context, symbol string, limit int) ([]IVRecord, error)

	// Sync
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error

	// Lifecycle
	Close() error
}

// PositionFilter represents filters for querying open positions.
type PositionFilter struct {
	Symbol string
	Expiry time.Time
	Source string
}

// QuoteFilter represents filters for querying option quotes.
type QuoteFilter struct {
	Symbol string
	Expiry time.Time
	Strike float64
	Type   models.OptionType
	From   time.Time
	To     time.Time
	Limit  int
}

// AnalysisKind tags a journal entry.
type AnalysisKind string

const (
	KindNumeric    AnalysisKind = "numeric"
	KindClosedForm AnalysisKind = "closed_form"
	KindAdjustment AnalysisKind = "adjustment"
)

// AnalysisRecord is one saved analysis. Input and Output hold the request
// and result as JSON so every kind shares one table.
type AnalysisRecord struct {
	ID           string          `json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	Kind         AnalysisKind    `json:"kind"`
	StrategyName string          `json:"strategy_name"`
	Symbol       string          `json:"symbol"`
	Input        json.RawMessage `json:"input"`
	Output       json.RawMessage `json:"output"`
}

// AnalysisFilter represents filters for querying the journal.
type AnalysisFilter struct {
	Kind   AnalysisKind
	Symbol string
	Since  time.Time
	Limit  int
}

// IVRecord is one implied-volatility solve against a market premium.
// ImpliedVolatility is in percent.
type IVRecord struct {
	ID                string            `json:"id"`
	CreatedAt         time.Time         `json:"created_at"`
	Symbol            string            `json:"symbol"`
	Strike            float64           `json:"strike"`
	Type              models.OptionType `json:"option_type"`
	Expiry            time.Time         `json:"expiry"`
	MarketDate        time.Time         `json:"market_data_date"`
	Spot              float64           `json:"spot_price"`
	MarketPremium     float64           `json:"market_premium"`
	CalculatedPremium float64           `json:"calculated_premium"`
	ImpliedVolatility float64           `json:"implied_volatility"`
	Converged         bool              `json:"convergence_achieved"`
}
