package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/pkg/utils"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, utils.IndiaLocation)
}

func TestPositions_AddListClose(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	short := &models.Position{Symbol: "nifty", Expiry: date(2025, 7, 31), Strike: 25600, Type: models.OptionTypeCall, Quantity: -2, Premium: 120.5, MarketLot: 75}
	long := &models.Position{Symbol: "NIFTY", Expiry: date(2025, 7, 31), Strike: 25800, Type: models.OptionTypeCall, Quantity: 2, Premium: 60, MarketLot: 75}
	require.NoError(t, s.AddPosition(ctx, short))
	require.NoError(t, s.AddPosition(ctx, long))
	assert.NotEmpty(t, short.ID)
	assert.Equal(t, "manual", short.Source)

	positions, err := s.GetPositions(ctx, PositionFilter{Symbol: "nifty"})
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "NIFTY", positions[0].Symbol)
	assert.Equal(t, -2, positions[0].Quantity)
	assert.True(t, positions[0].Expiry.Equal(date(2025, 7, 31)))
	assert.Equal(t, models.ActionSell, positions[0].Leg().Action)

	require.NoError(t, s.ClosePosition(ctx, short.ID))
	open, err := s.OpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, long.ID, open[0].ID)

	err = s.ClosePosition(ctx, short.ID)
	assert.ErrorIs(t, err, errors.ErrPositionNotFound)
}

func TestPositions_RejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	err := s.AddPosition(context.Background(), &models.Position{Symbol: "NIFTY", Strike: 25000, Type: "XX", Quantity: 1, MarketLot: 75})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestPositions_ReplaceBySource(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	manual := &models.Position{Symbol: "NIFTY", Expiry: date(2025, 7, 31), Strike: 25000, Type: models.OptionTypePut, Quantity: 1, Premium: 80, MarketLot: 75}
	require.NoError(t, s.AddPosition(ctx, manual))

	first := []models.Position{
		{Symbol: "NIFTY", Expiry: date(2025, 7, 31), Strike: 25600, Type: models.OptionTypeCall, Quantity: -1, Premium: 100, MarketLot: 75},
		{Symbol: "NIFTY", Expiry: date(2025, 7, 31), Strike: 24400, Type: models.OptionTypePut, Quantity: -1, Premium: 90, MarketLot: 75},
	}
	require.NoError(t, s.ReplacePositions(ctx, "kite", first))

	second := []models.Position{
		{Symbol: "NIFTY", Expiry: date(2025, 7, 31), Strike: 25700, Type: models.OptionTypeCall, Quantity: -1, Premium: 70, MarketLot: 75},
	}
	require.NoError(t, s.ReplacePositions(ctx, "kite", second))

	synced, err := s.GetPositions(ctx, PositionFilter{Source: "kite"})
	require.NoError(t, err)
	require.Len(t, synced, 1)
	assert.Equal(t, 25700.0, synced[0].Strike)

	all, err := s.OpenPositions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "manual positions survive a broker sync")
}

func TestQuotes_HistoricalOptionPrice(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	expiry := date(2025, 7, 31)

	require.NoError(t, s.SaveQuotes(ctx, []models.OptionQuote{
		{Symbol: "NIFTY", Expiry: expiry, Strike: 25600, Type: models.OptionTypeCall, Date: date(2025, 7, 4), LastTradedPrice: 40, ClosingPrice: 41},
		{Symbol: "NIFTY", Expiry: expiry, Strike: 25600, Type: models.OptionTypeCall, Date: date(2025, 7, 7), LastTradedPrice: 24.45, ClosingPrice: 25},
		{Symbol: "NIFTY", Expiry: expiry, Strike: 25600, Type: models.OptionTypePut, Date: date(2025, 7, 7), LastTradedPrice: 180, ClosingPrice: 181},
	}))

	q, err := s.HistoricalOptionPrice(ctx, models.OptionQuoteRequest{
		Symbol: "nifty", Expiry: expiry, Strike: 25600, Type: models.OptionTypeCall,
		From: date(2025, 7, 1), To: date(2025, 7, 8),
	})
	require.NoError(t, err)
	assert.Equal(t, 24.45, q.Price(), "newest quote in the window wins")
	assert.True(t, q.Date.Equal(date(2025, 7, 7)))

	_, err = s.HistoricalOptionPrice(ctx, models.OptionQuoteRequest{
		Symbol: "NIFTY", Expiry: expiry, Strike: 25600, Type: models.OptionTypeCall,
		From: date(2025, 7, 8), To: date(2025, 7, 9),
	})
	assert.ErrorIs(t, err, errors.ErrDataNotFound)
	assert.Equal(t, "store", s.Name())
}

func TestQuotes_UpsertSameDay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	q := models.OptionQuote{Symbol: "NIFTY", Expiry: date(2025, 7, 31), Strike: 25600, Type: models.OptionTypeCall, Date: date(2025, 7, 7), LastTradedPrice: 20}
	require.NoError(t, s.SaveQuotes(ctx, []models.OptionQuote{q}))
	q.LastTradedPrice = 22
	require.NoError(t, s.SaveQuotes(ctx, []models.OptionQuote{q}))

	quotes, err := s.GetQuotes(ctx, QuoteFilter{Symbol: "NIFTY"})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, 22.0, quotes[0].LastTradedPrice)
}

func TestAnalyses_Journal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2025, 7, 8, 10, 0, 0, 0, time.UTC)

	for i, kind := range []AnalysisKind{KindNumeric, KindClosedForm, KindAdjustment} {
		rec := &AnalysisRecord{
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			Kind:         kind,
			StrategyName: "Bull Call Spread",
			Symbol:       "NIFTY",
			Input:        json.RawMessage(`{"legs":[]}`),
			Output:       json.RawMessage(`{"breakeven_points":[25650]}`),
		}
		require.NoError(t, s.SaveAnalysis(ctx, rec))
		assert.NotEmpty(t, rec.ID)
	}

	all, err := s.GetAnalyses(ctx, AnalysisFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, KindAdjustment, all[0].Kind, "newest first")
	assert.JSONEq(t, `{"breakeven_points":[25650]}`, string(all[0].Output))

	numeric, err := s.GetAnalyses(ctx, AnalysisFilter{Kind: KindNumeric})
	require.NoError(t, err)
	require.Len(t, numeric, 1)

	limited, err := s.GetAnalyses(ctx, AnalysisFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestIVRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := &IVRecord{
		Symbol: "nifty", Strike: 25600, Type: models.OptionTypeCall,
		Expiry: date(2025, 7, 31), MarketDate: date(2025, 7, 7), Spot: 25461,
		MarketPremium: 24.45, CalculatedPremium: 24.45, ImpliedVolatility: 10.52, Converged: true,
	}
	require.NoError(t, s.SaveIVRecord(ctx, rec))

	records, err := s.GetIVRecords(ctx, "NIFTY", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	got := records[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "NIFTY", got.Symbol)
	assert.Equal(t, 10.52, got.ImpliedVolatility)
	assert.True(t, got.Converged)
	assert.True(t, got.MarketDate.Equal(date(2025, 7, 7)))
}

func TestSyncStatus(t *testing.T) {
	s := newTestStore(t)
	assert.True(t, s.GetLastSync("positions").IsZero())

	now := time.Date(2025, 7, 8, 9, 15, 0, 0, time.UTC)
	require.NoError(t, s.SetLastSync("positions", now))
	assert.True(t, s.GetLastSync("positions").Equal(now))

	// Bypass the in-memory cache.
	s.syncTimes = make(map[string]time.Time)
	assert.True(t, s.GetLastSync("positions").Equal(now))
}
