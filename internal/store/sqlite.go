package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/marketdata"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/pkg/utils"
)

const dateLayout = "2006-01-02"

var (
	_ DataStore                 = (*SQLiteStore)(nil)
	_ marketdata.Source         = (*SQLiteStore)(nil)
	_ marketdata.PositionSource = (*SQLiteStore)(nil)
)

// SQLiteStore implements DataStore using SQLite. It also serves as a
// premium source and a position source for the analytics commands.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Open option positions, quantity in signed lots
	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		expiry TEXT NOT NULL,
		strike REAL NOT NULL,
		option_type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		premium REAL NOT NULL,
		market_lot INTEGER NOT NULL,
		source TEXT NOT NULL DEFAULT 'manual',
		closed INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_positions_open ON positions(closed, symbol, expiry);

	-- End-of-day option prices
	CREATE TABLE IF NOT EXISTS option_quotes (
		symbol TEXT NOT NULL,
		expiry TEXT NOT NULL,
		strike REAL NOT NULL,
		option_type TEXT NOT NULL,
		trade_date TEXT NOT NULL,
		last_traded_price REAL NOT NULL,
		closing_price REAL NOT NULL,
		underlying_value REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (symbol, expiry, strike, option_type, trade_date)
	);

	-- Saved analyses
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		kind TEXT NOT NULL,
		strategy_name TEXT,
		symbol TEXT,
		input TEXT NOT NULL,
		output TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at);

	-- Implied volatility solves
	CREATE TABLE IF NOT EXISTS iv_records (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		strike REAL NOT NULL,
		option_type TEXT NOT NULL,
		expiry TEXT NOT NULL,
		market_date TEXT NOT NULL,
		spot REAL NOT NULL,
		market_premium REAL NOT NULL,
		calculated_premium REAL NOT NULL,
		implied_volatility REAL NOT NULL,
		converged INTEGER NOT NULL
	);

	-- Sync bookkeeping
	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return utils.DateOf(t).Format(dateLayout)
}

func parseDate(s string) time.Time {
	t, err := time.ParseInLocation(dateLayout, s, utils.IndiaLocation)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ============================================================================
// Positions Methods
// ============================================================================

// AddPosition saves an open position, assigning an id if it has none.
func (s *SQLiteStore) AddPosition(ctx context.Context, p *models.Position) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Source == "" {
		p.Source = "manual"
	}
	p.Symbol = strings.ToUpper(p.Symbol)
	if err := p.Leg().Validate(); err != nil {
		return errors.NewInvalidInputError("position", p.ID, err.Error())
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (id, symbol, expiry, strike, option_type, quantity, premium, market_lot, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Symbol, formatDate(p.Expiry), p.Strike, string(p.Type), p.Quantity, p.Premium, p.MarketLot, p.Source, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add position: %w", errors.Wrap(errors.ErrDatabaseError, err.Error()))
	}
	return nil
}

// GetPositions returns open positions, oldest first.
func (s *SQLiteStore) GetPositions(ctx context.Context, filter PositionFilter) ([]models.Position, error) {
	query := "SELECT id, symbol, expiry, strike, option_type, quantity, premium, market_lot, source, created_at FROM positions WHERE closed = 0"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, strings.ToUpper(filter.Symbol))
	}
	if !filter.Expiry.IsZero() {
		query += " AND expiry = ?"
		args = append(args, formatDate(filter.Expiry))
	}
	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, filter.Source)
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var p models.Position
		var expiry, typ string
		if err := rows.Scan(&p.ID, &p.Symbol, &expiry, &p.Strike, &typ, &p.Quantity, &p.Premium, &p.MarketLot, &p.Source, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		p.Expiry = parseDate(expiry)
		p.Type = models.OptionType(typ)
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// ClosePosition marks a position closed.
func (s *SQLiteStore) ClosePosition(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE positions SET closed = 1 WHERE id = ? AND closed = 0`, id)
	if err != nil {
		return fmt.Errorf("failed to close position: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to close position: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("position %s: %w", id, errors.ErrPositionNotFound)
	}
	return nil
}

// ReplacePositions swaps every open position from source for positions in
// one transaction. Used by broker sync.
func (s *SQLiteStore) ReplacePositions(ctx context.Context, source string, positions []models.Position) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE positions SET closed = 1 WHERE source = ? AND closed = 0`, source); err != nil {
		return fmt.Errorf("failed to close synced positions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO positions (id, symbol, expiry, strike, option_type, quantity, premium, market_lot, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for i := range positions {
		p := &positions[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.Symbol = strings.ToUpper(p.Symbol)
		p.Source = source
		p.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, p.ID, p.Symbol, formatDate(p.Expiry), p.Strike, string(p.Type), p.Quantity, p.Premium, p.MarketLot, source, now); err != nil {
			return fmt.Errorf("failed to insert position: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// OpenPositions returns every open position in the journal.
func (s *SQLiteStore) OpenPositions(ctx context.Context) ([]models.Position, error) {
	return s.GetPositions(ctx, PositionFilter{})
}

// ============================================================================
// Quote Methods
// ============================================================================

// SaveQuotes upserts end-of-day quotes.
func (s *SQLiteStore) SaveQuotes(ctx context.Context, quotes []models.OptionQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO option_quotes (symbol, expiry, strike, option_type, trade_date, last_traded_price, closing_price, underlying_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, q := range quotes {
		_, err := stmt.ExecContext(ctx, strings.ToUpper(q.Symbol), formatDate(q.Expiry), q.Strike, string(q.Type), formatDate(q.Date), q.LastTradedPrice, q.ClosingPrice, q.UnderlyingValue)
		if err != nil {
			return fmt.Errorf("failed to insert quote: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetQuotes returns quotes matching filter, newest trade date first.
func (s *SQLiteStore) GetQuotes(ctx context.Context, filter QuoteFilter) ([]models.OptionQuote, error) {
	query := "SELECT symbol, expiry, strike, option_type, trade_date, last_traded_price, closing_price, COALESCE(underlying_value, 0) FROM option_quotes WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, strings.ToUpper(filter.Symbol))
	}
	if !filter.Expiry.IsZero() {
		query += " AND expiry = ?"
		args = append(args, formatDate(filter.Expiry))
	}
	if filter.Strike > 0 {
		query += " AND strike = ?"
		args = append(args, filter.Strike)
	}
	if filter.Type != "" {
		query += " AND option_type = ?"
		args = append(args, string(filter.Type))
	}
	if !filter.From.IsZero() {
		query += " AND trade_date >= ?"
		args = append(args, formatDate(filter.From))
	}
	if !filter.To.IsZero() {
		query += " AND trade_date <= ?"
		args = append(args, formatDate(filter.To))
	}

	query += " ORDER BY trade_date DESC, strike ASC, option_type ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	var quotes []models.OptionQuote
	for rows.Next() {
		var q models.OptionQuote
		var expiry, typ, date string
		if err := rows.Scan(&q.Symbol, &expiry, &q.Strike, &typ, &date, &q.LastTradedPrice, &q.ClosingPrice, &q.UnderlyingValue); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		q.Expiry = parseDate(expiry)
		q.Date = parseDate(date)
		q.Type = models.OptionType(typ)
		quotes = append(quotes, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quotes: %w", err)
	}

	return quotes, nil
}

// Name labels the journal as a premium source.
func (s *SQLiteStore) Name() string { return "store" }

// HistoricalOptionPrice returns the newest stored quote inside the request
// window.
func (s *SQLiteStore) HistoricalOptionPrice(ctx context.Context, req models.OptionQuoteRequest) (*models.OptionQuote, error) {
	quotes, err := s.GetQuotes(ctx, QuoteFilter{
		Symbol: req.Symbol,
		Expiry: req.Expiry,
		Strike: req.Strike,
		Type:   req.Type,
		From:   req.From,
		To:     req.To,
		Limit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, errors.NewDataError("quote", req.Symbol,
			fmt.Sprintf("no %g %s quote between %s and %s", req.Strike, req.Type, formatDate(req.From), formatDate(req.To)),
			errors.ErrDataNotFound)
	}
	return &quotes[0], nil
}

// ============================================================================
// Analysis Journal Methods
// ============================================================================

// SaveAnalysis appends a journal entry, assigning an id if it has none.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, rec *AnalysisRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, created_at, kind, strategy_name, symbol, input, output)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.CreatedAt, string(rec.Kind), rec.StrategyName, rec.Symbol, string(rec.Input), string(rec.Output))
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// GetAnalyses returns journal entries, newest first.
func (s *SQLiteStore) GetAnalyses(ctx context.Context, filter AnalysisFilter) ([]AnalysisRecord, error) {
	query := "SELECT id, created_at, kind, COALESCE(strategy_name, ''), COALESCE(symbol, ''), input, output FROM analyses WHERE 1=1"
	args := []interface{}{}

	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(filter.Kind))
	}
	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.Since)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		var r AnalysisRecord
		var kind, input, output string
		if err := rows.Scan(&r.ID, &r.CreatedAt, &kind, &r.StrategyName, &r.Symbol, &input, &output); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		r.Kind = AnalysisKind(kind)
		r.Input = []byte(input)
		r.Output = []byte(output)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analyses: %w", err)
	}

	return records, nil
}

// ============================================================================
// Implied Volatility Methods
// ============================================================================

// SaveIVRecord stores an implied-volatility solve.
func (s *SQLiteStore) SaveIVRecord(ctx context.Context, rec *IVRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO iv_records (id, created_at, symbol, strike, option_type, expiry, market_date, spot, market_premium, calculated_premium, implied_volatility, converged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.CreatedAt, strings.ToUpper(rec.Symbol), rec.Strike, string(rec.Type), formatDate(rec.Expiry), formatDate(rec.MarketDate),
		rec.Spot, rec.MarketPremium, rec.CalculatedPremium, rec.ImpliedVolatility, boolInt(rec.Converged))
	if err != nil {
		return fmt.Errorf("failed to save iv record: %w", err)
	}
	return nil
}

// GetIVRecords returns the latest solves for symbol, newest first.
func (s *SQLiteStore) GetIVRecords(ctx context.Context, symbol string, limit int) ([]IVRecord, error) {
	query := "SELECT id, created_at, symbol, strike, option_type, expiry, market_date, spot, market_premium, calculated_premium, implied_volatility, converged FROM iv_records WHERE 1=1"
	args := []interface{}{}
	if symbol != "" {
		query += " AND symbol = ?"
		args = append(args, strings.ToUpper(symbol))
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query iv records: %w", err)
	}
	defer rows.Close()

	var records []IVRecord
	for rows.Next() {
		var r IVRecord
		var typ, expiry, marketDate string
		var converged int
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Symbol, &r.Strike, &typ, &expiry, &marketDate, &r.Spot, &r.MarketPremium, &r.CalculatedPremium, &r.ImpliedVolatility, &converged); err != nil {
			return nil, fmt.Errorf("failed to scan iv record: %w", err)
		}
		r.Type = models.OptionType(typ)
		r.Expiry = parseDate(expiry)
		r.MarketDate = parseDate(marketDate)
		r.Converged = converged == 1
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating iv records: %w", err)
	}

	return records, nil
}

// ============================================================================
// Sync Methods
// ============================================================================

// GetLastSync returns the last sync time for a data type.
func (s *SQLiteStore) GetLastSync(dataType string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[dataType]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE data_type = ?
	`, dataType).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[dataType] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last sync time for a data type.
func (s *SQLiteStore) SetLastSync(dataType string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, dataType, t, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()

	return nil
}
