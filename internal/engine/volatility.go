package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/logging"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/internal/store"
	"breakeven-analyzer/pkg/utils"
)

// IVRequest asks for the call and put implied volatility of one strike.
type IVRequest struct {
	Symbol string    `json:"symbol"`
	Strike float64   `json:"strike_price"`
	Expiry time.Time `json:"expiry_date"`
	Spot   float64   `json:"spot_price"`
	// MarketDate is the trading day whose premiums are used. Zero means
	// the previous calendar day.
	MarketDate time.Time `json:"market_data_date"`
	// RiskFreeRate overrides the model rate when positive.
	RiskFreeRate float64 `json:"risk_free_rate,omitempty"`
	Save         bool    `json:"-"`
}

// OptionIV is the implied volatility of one side. ImpliedVolatility is in
// percent.
type OptionIV struct {
	Type              models.OptionType `json:"option_type"`
	ImpliedVolatility float64           `json:"implied_volatility"`
	CalculatedPremium float64           `json:"calculated_premium"`
	MarketPremium     float64           `json:"market_premium"`
	Converged         bool              `json:"convergence_achieved"`
	Iterations        int               `json:"iterations"`
	Capped            bool              `json:"capped"`
}

// IVReport holds both sides of a strike.
type IVReport struct {
	Symbol          string    `json:"symbol"`
	Strike          float64   `json:"strike_price"`
	Expiry          time.Time `json:"expiry_date"`
	MarketDate      time.Time `json:"market_data_date"`
	Spot            float64   `json:"spot_price"`
	DaysToExpiry    int       `json:"days_to_expiry"`
	TimeToExpiry    float64   `json:"time_to_expiry"`
	UnderlyingValue float64   `json:"underlying_value,omitempty"`
	Call            OptionIV  `json:"call_option"`
	Put             OptionIV  `json:"put_option"`
}

// ImpliedVolatility backs out the call and put volatility of a strike from
// the market premiums of MarketDate. Time to expiry is measured from the
// market date, not from today.
func (e *Engine) ImpliedVolatility(ctx context.Context, req IVRequest) (*IVReport, error) {
	if !(req.Strike > 0) {
		return nil, errors.NewInvalidInputError("strike_price", req.Strike, "must be positive")
	}
	if !(req.Spot > 0) {
		return nil, errors.NewInvalidInputError("spot_price", req.Spot, "must be positive")
	}
	if req.Expiry.IsZero() {
		return nil, errors.NewInvalidInputError("expiry_date", "", "is required")
	}
	if e.resolver == nil {
		return nil, errors.Wrap(errors.ErrConfigInvalid, "implied volatility needs a market data source")
	}

	date := req.MarketDate
	if date.IsZero() {
		date = utils.DateOf(e.now()).AddDate(0, 0, -1)
	}
	date = utils.DateOf(date)

	days := utils.DaysBetween(date, req.Expiry)
	T := float64(days) / 365.0
	if T <= 0 {
		return nil, errors.NewInvalidInputError("expiry_date", req.Expiry.Format("2006-01-02"), "must be after the market data date")
	}

	rate := e.model.Config().RiskFreeRate
	if req.RiskFreeRate > 0 {
		rate = req.RiskFreeRate
	}

	report := &IVReport{
		Symbol:       strings.ToUpper(req.Symbol),
		Strike:       req.Strike,
		Expiry:       utils.DateOf(req.Expiry),
		MarketDate:   date,
		Spot:         req.Spot,
		DaysToExpiry: days,
		TimeToExpiry: T,
	}
	quotes := make([]*models.OptionQuote, 2)
	sides := []*OptionIV{&report.Call, &report.Put}
	types := []models.OptionType{models.OptionTypeCall, models.OptionTypePut}

	g, gctx := errgroup.WithContext(ctx)
	for i := range types {
		i := i
		g.Go(func() error {
			q, err := e.resolver.Quote(gctx, models.OptionQuoteRequest{
				Symbol: report.Symbol,
				Strike: req.Strike,
				Type:   types[i],
				Expiry: report.Expiry,
				From:   date,
				To:     date,
			})
			if err != nil {
				return fmt.Errorf("%s %g %s on %s: %w", report.Symbol, req.Strike, types[i], date.Format("2006-01-02"), err)
			}
			quotes[i] = q

			side, err := e.solveIV(q.Price(), models.OptionPricingInputs{
				Spot:         req.Spot,
				Strike:       req.Strike,
				TimeToExpiry: T,
				RiskFreeRate: rate,
				Type:         types[i],
			})
			if err != nil {
				return fmt.Errorf("%s %g %s: %w", report.Symbol, req.Strike, types[i], err)
			}
			*sides[i] = side
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	report.UnderlyingValue = quotes[0].UnderlyingValue

	log := logging.WithOperation(e.logger, "implied_volatility")
	for _, side := range sides {
		logging.LogIV(log, report.Symbol, report.Strike, string(side.Type), side.ImpliedVolatility, side.Converged)
	}

	if req.Save {
		if err := e.saveIV(ctx, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func (e *Engine) solveIV(market float64, in models.OptionPricingInputs) (OptionIV, error) {
	if !(market > 0) {
		return OptionIV{}, errors.ErrPremiumUnavailable
	}
	res, err := e.model.ImpliedVolatility(market, in)
	if err != nil {
		return OptionIV{}, err
	}
	return OptionIV{
		Type:              in.Type,
		ImpliedVolatility: utils.Round2(res.Volatility * 100),
		CalculatedPremium: res.ModelPrice,
		MarketPremium:     market,
		Converged:         e.model.ConvergenceAchieved(res.ModelPrice, market),
		Iterations:        res.Iterations,
		Capped:            res.Capped,
	}, nil
}

func (e *Engine) saveIV(ctx context.Context, r *IVReport) error {
	if e.store == nil {
		e.logger.Warn().Msg("No journal configured, implied volatility not saved")
		return nil
	}
	for _, side := range []OptionIV{r.Call, r.Put} {
		rec := &store.IVRecord{
			CreatedAt:         e.now(),
			Symbol:            r.Symbol,
			Strike:            r.Strike,
			Type:              side.Type,
			Expiry:            r.Expiry,
			MarketDate:        r.MarketDate,
			Spot:              r.Spot,
			MarketPremium:     side.MarketPremium,
			CalculatedPremium: side.CalculatedPremium,
			ImpliedVolatility: side.ImpliedVolatility,
			Converged:         side.Converged,
		}
		if err := e.store.SaveIVRecord(ctx, rec); err != nil {
			return fmt.Errorf("failed to save implied volatility: %w", err)
		}
	}
	return nil
}
