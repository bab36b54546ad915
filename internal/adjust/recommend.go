package adjust

import (
	"math"
	"time"

	"breakeven-analyzer/pkg/utils"
)

// Method names a safe-strike recommendation method.
type Method string

const (
	MethodATM               Method = "atm"
	MethodVolatilityBased   Method = "volatility_based"
	MethodSupportResistance Method = "support_resistance"
	MethodMomentum          Method = "momentum"
)

// Methods lists every method in report order.
var Methods = []Method{MethodATM, MethodVolatilityBased, MethodSupportResistance, MethodMomentum}

// RecommendationConfig tunes the recommender.
type RecommendationConfig struct {
	Interval   float64 `mapstructure:"interval"`
	Volatility float64 `mapstructure:"volatility"`
}

// DefaultRecommendationConfig rounds to 50-point strikes at 15% volatility.
func DefaultRecommendationConfig() RecommendationConfig {
	return RecommendationConfig{Interval: 50, Volatility: 0.15}
}

// Recommender proposes a target strike for the adjustment search.
type Recommender struct {
	cfg RecommendationConfig
	now func() time.Time
}

// NewRecommender creates a recommender.
func NewRecommender(cfg RecommendationConfig) *Recommender {
	def := DefaultRecommendationConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Volatility <= 0 {
		cfg.Volatility = def.Volatility
	}
	return &Recommender{cfg: cfg, now: time.Now}
}

// Recommend returns the strike suggested by method. Unknown methods fall
// back to ATM.
func (r *Recommender) Recommend(symbol string, spot float64, expiry time.Time, method Method) float64 {
	switch method {
	case MethodVolatilityBased:
		return r.volatilityBased(spot, expiry)
	case MethodSupportResistance:
		// No level data yet; a strike just above spot.
		return r.round(spot * 1.02)
	case MethodMomentum:
		return r.round(spot * 1.01)
	default:
		return r.round(spot)
	}
}

// All returns a recommendation for every method.
func (r *Recommender) All(symbol string, spot float64, expiry time.Time) map[Method]float64 {
	out := make(map[Method]float64, len(Methods))
	for _, m := range Methods {
		out[m] = r.Recommend(symbol, spot, expiry, m)
	}
	return out
}

// Primary is the recommendation used when an adjustment request has no target.
func (r *Recommender) Primary(symbol string, spot float64, expiry time.Time) float64 {
	return r.Recommend(symbol, spot, expiry, MethodVolatilityBased)
}

// volatilityBased sits half of a one standard deviation move above spot.
func (r *Recommender) volatilityBased(spot float64, expiry time.Time) float64 {
	days := utils.DaysBetween(r.now(), expiry)
	if days <= 0 {
		return r.round(spot)
	}
	move := spot * r.cfg.Volatility * math.Sqrt(float64(days)/365)
	return r.round(spot + 0.5*move)
}

func (r *Recommender) round(price float64) float64 {
	return utils.NearestTo(price, r.cfg.Interval)
}

// Confidence grades a recommendation.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Validation describes how usable a recommended strike is.
type Validation struct {
	IsValid                 bool       `json:"is_valid"`
	Confidence              Confidence `json:"confidence"`
	Warnings                []string   `json:"warnings"`
	DistanceFromSpotPercent float64    `json:"distance_from_spot_percent"`
	DaysToExpiry            int        `json:"days_to_expiry"`
}

// Validate checks strike against spot and the time left to expiry.
func (r *Recommender) Validate(spot, strike float64, expiry time.Time) Validation {
	days := utils.DaysBetween(r.now(), expiry)
	distance := 0.0
	if spot > 0 {
		distance = math.Abs(strike-spot) / spot * 100
	}

	v := Validation{
		IsValid:                 true,
		Confidence:              ConfidenceMedium,
		Warnings:                []string{},
		DistanceFromSpotPercent: utils.Round2(distance),
		DaysToExpiry:            days,
	}
	if days < 1 {
		v.Warnings = append(v.Warnings, "Very close to expiry - high time decay risk")
		v.Confidence = ConfidenceLow
	}
	if distance > 10 {
		v.Warnings = append(v.Warnings, "Strike is far from current spot - consider closer strikes")
		v.Confidence = ConfidenceLow
	}
	if distance < 1 {
		v.Confidence = ConfidenceHigh
	}
	return v
}
