package marketdata

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/logging"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/internal/performance"
	"breakeven-analyzer/pkg/utils"
)

// KiteConfig holds Kite Connect credentials. The access token comes from
// an existing session; this package never performs the login flow.
type KiteConfig struct {
	APIKey            string
	AccessToken       string
	Exchange          string
	RequestsPerSecond float64
}

// KiteSource reads NFO option candles, index quotes and net positions
// from Kite Connect.
type KiteSource struct {
	client   *kiteconnect.Client
	exchange string
	limiter  *performance.RateLimiter
	logger   zerolog.Logger

	mu       sync.RWMutex
	loaded   bool
	options  map[string]kiteconnect.Instrument
	bySymbol map[string]kiteconnect.Instrument
}

// NewKiteSource creates a Kite-backed source.
func NewKiteSource(cfg KiteConfig, logger zerolog.Logger) (*KiteSource, error) {
	if cfg.APIKey == "" || cfg.AccessToken == "" {
		return nil, errors.NewBrokerError("credentials", "kite api key and access token are required", errors.ErrNotAuthenticated)
	}
	if cfg.Exchange == "" {
		cfg.Exchange = "NFO"
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 3
	}

	client := kiteconnect.New(cfg.APIKey)
	client.SetAccessToken(cfg.AccessToken)

	return &KiteSource{
		client:   client,
		exchange: cfg.Exchange,
		limiter:  performance.NewRateLimiter(cfg.RequestsPerSecond, 1),
		logger:   logger,
		options:  make(map[string]kiteconnect.Instrument),
		bySymbol: make(map[string]kiteconnect.Instrument),
	}, nil
}

// Name implements Source.
func (k *KiteSource) Name() string { return "kite" }

// HistoricalOptionPrice returns the last daily candle in the request window.
// Daily candles carry no separate last trade, so both prices are the close.
func (k *KiteSource) HistoricalOptionPrice(ctx context.Context, req models.OptionQuoteRequest) (*models.OptionQuote, error) {
	inst, err := k.instrument(ctx, req.Symbol, req.Expiry, req.Strike, req.Type)
	if err != nil {
		return nil, err
	}
	if err := k.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	from := utils.DateOf(req.From)
	to := utils.DateOf(req.To).Add(24*time.Hour - time.Second)
	start := time.Now()
	candles, err := k.client.GetHistoricalData(inst.InstrumentToken, "day", from, to, false, false)
	logging.LogAPICall(k.logger, "GET", "/instruments/historical", time.Since(start), err)
	if err != nil {
		return nil, mapKiteError("historical data", err)
	}
	if len(candles) == 0 {
		return nil, errors.NewDataError("candles", inst.Tradingsymbol,
			fmt.Sprintf("no daily candles between %s and %s", from.Format("2006-01-02"), to.Format("2006-01-02")),
			errors.ErrDataNotFound)
	}

	last := candles[len(candles)-1]
	return &models.OptionQuote{
		Symbol:          req.Symbol,
		Strike:          req.Strike,
		Type:            req.Type,
		Expiry:          req.Expiry,
		Date:            utils.DateOf(last.Date.Time),
		LastTradedPrice: last.Close,
		ClosingPrice:    last.Close,
	}, nil
}

// indexQuoteSymbols maps derivative underlyings to their NSE index quote.
var indexQuoteSymbols = map[string]string{
	"NIFTY":      "NSE:NIFTY 50",
	"BANKNIFTY":  "NSE:NIFTY BANK",
	"FINNIFTY":   "NSE:NIFTY FIN SERVICE",
	"MIDCPNIFTY": "NSE:NIFTY MID SELECT",
}

// Spot implements SpotSource.
func (k *KiteSource) Spot(ctx context.Context, symbol string) (float64, error) {
	key, ok := indexQuoteSymbols[strings.ToUpper(symbol)]
	if !ok {
		key = "NSE:" + strings.ToUpper(symbol)
	}
	if err := k.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	start := time.Now()
	quotes, err := k.client.GetQuote(key)
	logging.LogAPICall(k.logger, "GET", "/quote", time.Since(start), err)
	if err != nil {
		return 0, mapKiteError("quote", err)
	}
	q, ok := quotes[key]
	if !ok || q.LastPrice <= 0 {
		return 0, errors.NewDataError("quote", symbol, "no last price", errors.ErrDataNotFound)
	}
	return q.LastPrice, nil
}

// OpenPositions implements PositionSource. Kite reports quantity in units;
// it is converted to signed lots using the instrument lot size.
func (k *KiteSource) OpenPositions(ctx context.Context) ([]models.Position, error) {
	if err := k.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	positions, err := k.client.GetPositions()
	logging.LogAPICall(k.logger, "GET", "/portfolio/positions", time.Since(start), err)
	if err != nil {
		return nil, mapKiteError("positions", err)
	}
	if err := k.loadInstruments(ctx); err != nil {
		return nil, err
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	result := make([]models.Position, 0, len(positions.Net))
	for _, p := range positions.Net {
		if p.Exchange != k.exchange || p.Quantity == 0 {
			continue
		}
		inst, ok := k.bySymbol[p.Tradingsymbol]
		if !ok {
			k.logger.Debug().Str("symbol", p.Tradingsymbol).Msg("Position is not an option, skipped")
			continue
		}
		lot := int(inst.LotSize)
		if lot <= 0 {
			lot = 1
		}
		result = append(result, models.Position{
			Symbol:    inst.Name,
			Expiry:    utils.DateOf(inst.Expiry.Time),
			Strike:    inst.StrikePrice,
			Type:      models.OptionType(inst.InstrumentType),
			Quantity:  int(p.Quantity) / lot,
			Premium:   p.AveragePrice,
			MarketLot: lot,
			Source:    "kite",
		})
	}
	return result, nil
}

func optionKey(name string, expiry time.Time, strike float64, typ models.OptionType) string {
	return fmt.Sprintf("%s|%s|%g|%s", strings.ToUpper(name), utils.DateOf(expiry).Format("2006-01-02"), strike, typ)
}

func (k *KiteSource) instrument(ctx context.Context, symbol string, expiry time.Time, strike float64, typ models.OptionType) (kiteconnect.Instrument, error) {
	if err := k.loadInstruments(ctx); err != nil {
		return kiteconnect.Instrument{}, err
	}

	k.mu.RLock()
	inst, ok := k.options[optionKey(symbol, expiry, strike, typ)]
	k.mu.RUnlock()
	if !ok {
		return kiteconnect.Instrument{}, errors.NewDataError("instrument", symbol,
			fmt.Sprintf("no %s %g %s contract expiring %s", k.exchange, strike, typ, expiry.Format("2006-01-02")),
			errors.ErrSymbolNotFound)
	}
	return inst, nil
}

// loadInstruments downloads the instrument dump once and indexes the
// exchange's options.
func (k *KiteSource) loadInstruments(ctx context.Context) error {
	k.mu.RLock()
	loaded := k.loaded
	k.mu.RUnlock()
	if loaded {
		return nil
	}

	if err := k.limiter.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	instruments, err := k.client.GetInstruments()
	logging.LogAPICall(k.logger, "GET", "/instruments", time.Since(start), err)
	if err != nil {
		return mapKiteError("instruments", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for _, inst := range instruments {
		if inst.Exchange != k.exchange {
			continue
		}
		typ := models.OptionType(inst.InstrumentType)
		if !typ.Valid() {
			continue
		}
		k.options[optionKey(inst.Name, inst.Expiry.Time, inst.StrikePrice, typ)] = inst
		k.bySymbol[inst.Tradingsymbol] = inst
	}
	k.loaded = true
	k.logger.Debug().Int("options", len(k.options)).Str("exchange", k.exchange).Msg("Instruments loaded")
	return nil
}

// mapKiteError classifies Kite API errors onto domain sentinels.
func mapKiteError(op string, err error) error {
	var kerr kiteconnect.Error
	if errors.As(err, &kerr) {
		switch kerr.ErrorType {
		case kiteconnect.TokenError:
			return errors.NewBrokerError(kerr.ErrorType, op+": "+kerr.Message, errors.ErrNotAuthenticated)
		case kiteconnect.DataError:
			return errors.NewBrokerError(kerr.ErrorType, op+": "+kerr.Message, errors.ErrDataNotFound)
		}
		if kerr.Code == 429 {
			return errors.NewBrokerError(kerr.ErrorType, op+": "+kerr.Message, errors.ErrRateLimited)
		}
	}
	return fmt.Errorf("kite %s: %w", op, err)
}
