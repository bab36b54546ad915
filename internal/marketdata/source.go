// Package marketdata resolves option premiums and open positions from a
// market-data collaborator before legs reach the analytics core.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/pkg/utils"
)

// Source looks up end-of-day option prices.
type Source interface {
	// Name labels the source in analysis details.
	Name() string
	// HistoricalOptionPrice returns the latest quote inside the request's
	// date window, or an error wrapping errors.ErrDataNotFound.
	HistoricalOptionPrice(ctx context.Context, req models.OptionQuoteRequest) (*models.OptionQuote, error)
}

// PositionSource returns the open option positions to adjust.
type PositionSource interface {
	OpenPositions(ctx context.Context) ([]models.Position, error)
}

// SpotSource returns the current underlying price.
type SpotSource interface {
	Spot(ctx context.Context, symbol string) (float64, error)
}

// Config configures premium resolution.
type Config struct {
	Source            string            `mapstructure:"source"`
	Exchange          string            `mapstructure:"exchange"`
	CacheSizeMB       int               `mapstructure:"cache_size_mb"`
	CacheTTLSeconds   int               `mapstructure:"cache_ttl_seconds"`
	FetchConcurrency  int               `mapstructure:"fetch_concurrency"`
	MarketClose       string            `mapstructure:"market_close"`
	Timezone          string            `mapstructure:"timezone"`
	RequestsPerSecond float64           `mapstructure:"requests_per_second"`
	Retry             utils.RetryConfig `mapstructure:"retry"`
}

// DefaultConfig reads from the local store and closes the session at 15:30 IST.
func DefaultConfig() Config {
	return Config{
		Source:            "store",
		Exchange:          "NFO",
		CacheSizeMB:       8,
		CacheTTLSeconds:   300,
		FetchConcurrency:  4,
		MarketClose:       "15:30",
		Timezone:          "Asia/Kolkata",
		RequestsPerSecond: 3,
		Retry:             utils.DefaultRetryConfig(),
	}
}

// Window is an inclusive range of trading dates.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) String() string {
	return w.From.Format("2006-01-02") + ".." + w.To.Format("2006-01-02")
}

// Session is the exchange clock used to pick lookup windows.
type Session struct {
	Location    *time.Location
	CloseHour   int
	CloseMinute int
}

// NewSession parses an HH:MM close in the named time zone.
func NewSession(marketClose, timezone string) (Session, error) {
	loc := utils.IndiaLocation
	if timezone != "" && timezone != "Asia/Kolkata" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return Session{}, fmt.Errorf("timezone %q: %w", timezone, err)
		}
		loc = l
	}
	s := Session{Location: loc, CloseHour: utils.MarketCloseHour, CloseMinute: utils.MarketCloseMinute}
	if marketClose != "" {
		t, err := time.Parse("15:04", marketClose)
		if err != nil {
			return Session{}, fmt.Errorf("market close %q: %w", marketClose, err)
		}
		s.CloseHour, s.CloseMinute = t.Hour(), t.Minute()
	}
	return s, nil
}

// Windows returns the primary and fallback lookup windows at now. After
// the close the primary window is today..tomorrow, before it
// yesterday..today. The fallback is always yesterday..today.
func (s Session) Windows(now time.Time) (primary, fallback Window) {
	local := now.In(s.Location)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.Location)
	closeAt := today.Add(time.Duration(s.CloseHour)*time.Hour + time.Duration(s.CloseMinute)*time.Minute)
	yesterday := today.AddDate(0, 0, -1)

	fallback = Window{From: yesterday, To: today}
	if !local.Before(closeAt) {
		return Window{From: today, To: today.AddDate(0, 0, 1)}, fallback
	}
	return fallback, fallback
}
