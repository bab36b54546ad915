package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coocood/freecache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/pkg/utils"
)

// Resolver fills missing leg premiums from a Source. Quotes are cached
// for CacheTTLSeconds so repeated analyses of the same contracts do not
// hit the source again.
type Resolver struct {
	source  Source
	cfg     Config
	session Session
	cache   *freecache.Cache
	now     func() time.Time
	logger  zerolog.Logger
}

// NewResolver creates a resolver over source.
func NewResolver(source Source, cfg Config, logger zerolog.Logger) (*Resolver, error) {
	def := DefaultConfig()
	if cfg.CacheSizeMB <= 0 {
		cfg.CacheSizeMB = def.CacheSizeMB
	}
	if cfg.CacheTTLSeconds < 0 {
		cfg.CacheTTLSeconds = 0
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = def.FetchConcurrency
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	// Missing data and credentials do not improve with another attempt.
	cfg.Retry.PermanentErrors = append(cfg.Retry.PermanentErrors,
		errors.ErrDataNotFound, errors.ErrNotAuthenticated, errors.ErrSymbolNotFound)

	session, err := NewSession(cfg.MarketClose, cfg.Timezone)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigInvalid, err.Error())
	}

	return &Resolver{
		source:  source,
		cfg:     cfg,
		session: session,
		cache:   freecache.NewCache(cfg.CacheSizeMB * 1024 * 1024),
		now:     time.Now,
		logger:  logger,
	}, nil
}

// SourceName returns the underlying source's name.
func (r *Resolver) SourceName() string { return r.source.Name() }

// Quote fetches a quote through the cache, retrying transient failures.
func (r *Resolver) Quote(ctx context.Context, req models.OptionQuoteRequest) (*models.OptionQuote, error) {
	key := []byte(cacheKey(req))
	if data, err := r.cache.Get(key); err == nil {
		var q models.OptionQuote
		if err := json.Unmarshal(data, &q); err == nil {
			return &q, nil
		}
	}

	q, err := utils.RetryWithResult(ctx, r.cfg.Retry, func() (*models.OptionQuote, error) {
		return r.source.HistoricalOptionPrice(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	if r.cfg.CacheTTLSeconds > 0 {
		if data, err := json.Marshal(q); err == nil {
			if err := r.cache.Set(key, data, r.cfg.CacheTTLSeconds); err != nil {
				r.logger.Debug().Err(err).Msg("Quote not cached")
			}
		}
	}
	return q, nil
}

// Resolve returns a copy of legs with every missing premium filled in,
// and the number of premiums fetched. Legs that already carry a premium
// are passed through untouched. The first leg that cannot be priced
// fails the whole call with errors.ErrPremiumUnavailable.
func (r *Resolver) Resolve(ctx context.Context, legs []models.OptionLeg) ([]models.OptionLeg, int, error) {
	out := models.CloneLegs(legs)
	primary, fallback := r.session.Windows(r.now())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.FetchConcurrency)

	fetched := 0
	for i := range out {
		if out[i].HasPremium() {
			continue
		}
		fetched++
		i := i
		g.Go(func() error {
			leg := out[i]
			price, err := r.premium(gctx, leg, primary, fallback)
			if err != nil {
				return errors.NewLegError(i, leg.String(), err)
			}
			out[i] = leg.WithPremium(price)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	if fetched > 0 {
		r.logger.Info().
			Str("source", r.source.Name()).
			Int("fetched", fetched).
			Str("primary", primary.String()).
			Msg("Premiums resolved")
	}
	return out, fetched, nil
}

// premium tries the primary window, then the fallback, taking the last
// traded price or the close when no trade printed.
func (r *Resolver) premium(ctx context.Context, leg models.OptionLeg, windows ...Window) (float64, error) {
	var lastErr error
	for n, w := range windows {
		if n > 0 && w == windows[n-1] {
			continue
		}
		q, err := r.Quote(ctx, models.OptionQuoteRequest{
			Symbol: leg.Symbol,
			Strike: leg.Strike,
			Type:   leg.Type,
			Expiry: leg.Expiry,
			From:   w.From,
			To:     w.To,
		})
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			r.logger.Warn().Err(err).Str("leg", leg.String()).Str("window", w.String()).Msg("Quote lookup failed")
			lastErr = err
			continue
		}
		if p := q.Price(); p > 0 {
			r.logger.Debug().Str("leg", leg.String()).Float64("premium", p).Str("window", w.String()).Msg("Premium fetched")
			return p, nil
		}
		r.logger.Warn().Str("leg", leg.String()).Str("window", w.String()).Msg("Zero price returned")
	}

	if lastErr != nil {
		return 0, fmt.Errorf("%s %g %s: %w (%v)", leg.Symbol, leg.Strike, leg.Type, errors.ErrPremiumUnavailable, lastErr)
	}
	return 0, fmt.Errorf("%s %g %s: %w", leg.Symbol, leg.Strike, leg.Type, errors.ErrPremiumUnavailable)
}

func cacheKey(req models.OptionQuoteRequest) string {
	return fmt.Sprintf("%s|%g|%s|%s|%s|%s",
		req.Symbol, req.Strike, req.Type,
		req.Expiry.Format("2006-01-02"), req.From.Format("2006-01-02"), req.To.Format("2006-01-02"))
}
