package pricing

import (
	"math"

	"tidybeast/internal/metrics"
	"tidybeast/internal/models"

	"github.com/rs/zerolog"
)

// Engine computes prices from the static catalog. It has no mutable state
// and never fails: unknown inputs resolve to a defined default so the caller
// always has a number to show.
type Engine struct {
	catalog *Catalog
	logger  *zerolog.Logger
}

func NewEngine(catalog *Catalog, logger *zerolog.Logger) *Engine {
	return &Engine{catalog: catalog, logger: logger}
}

// resolveWithDefault looks up a service, substituting the first catalog entry
// for unknown ids. The substitution is logged so catalog gaps stay visible.
func (e *Engine) resolveWithDefault(serviceID string) *ServiceConfig {
	if svc := e.catalog.ByID(serviceID); svc != nil {
		return svc
	}
	fallback := e.catalog.Default()
	metrics.IncPricingFallback()
	e.logger.Warn().
		Str("service_id", serviceID).
		Str("fallback_id", fallback.ID).
		Msg("unknown service id, resolved to default catalog entry")
	return fallback
}

// PriceForBHK returns the price of a home-sized service for the given
// category. The override table wins; without one the price is
// round(base × multiplier). Unrecognized labels price as 2 BHK.
func (e *Engine) PriceForBHK(serviceID, bhkLabel string) int64 {
	svc := e.resolveWithDefault(serviceID)

	if _, known := models.BHKMultipliers[bhkLabel]; !known {
		metrics.IncPricingFallback()
		e.logger.Warn().
			Str("service_id", svc.ID).
			Str("bhk_label", bhkLabel).
			Msg("unknown home size, pricing as reference category")
		bhkLabel = models.BHKReference
	}

	if price, ok := svc.BHKPrices[bhkLabel]; ok {
		return price
	}
	if len(svc.BHKPrices) > 0 {
		e.logger.Warn().
			Str("service_id", svc.ID).
			Str("bhk_label", bhkLabel).
			Msg("category missing from price table, using multiplier fallback")
	}

	// Rounding happens here, once; downstream never re-rounds.
	return int64(math.Round(float64(svc.BasePrice) * models.BHKMultipliers[bhkLabel]))
}

// PriceForQuantity returns perUnit × quantity for unit-priced services.
// Quantities below 1 are treated as 1; the caller clamps the ceiling.
func (e *Engine) PriceForQuantity(serviceID, unit string, quantity int) int64 {
	svc := e.resolveWithDefault(serviceID)

	if quantity < 1 {
		quantity = 1
	}
	if quantity > models.MaxQuantity {
		quantity = models.MaxQuantity
	}

	return e.perUnitPrice(svc, unit) * int64(quantity)
}

func (e *Engine) perUnitPrice(svc *ServiceConfig, unit string) int64 {
	if len(svc.UnitPrices) == 0 {
		return svc.BasePrice
	}
	if price, ok := svc.UnitPrices[unit]; ok {
		return price
	}
	e.logger.Warn().
		Str("service_id", svc.ID).
		Str("unit", unit).
		Msg("unknown unit selector, pricing at base")
	return svc.BasePrice
}

// PriceForArea returns max(rate × area, minimum charge). Non-positive areas
// are invalid and price at the minimum charge.
func (e *Engine) PriceForArea(serviceID string, area float64) int64 {
	svc := e.resolveWithDefault(serviceID)

	if area <= 0 {
		e.logger.Warn().
			Str("service_id", svc.ID).
			Float64("area", area).
			Msg("non-positive area, pricing at minimum charge")
		return svc.MinCharge
	}

	price := int64(math.Round(float64(svc.RatePerSqFt) * area))
	if price < svc.MinCharge {
		return svc.MinCharge
	}
	return price
}

// PriceFor dispatches on the service's pricing mode using the selector the
// customer chose. This is the single entry point the booking flow uses.
func (e *Engine) PriceFor(serviceID string, sel models.Selector) int64 {
	svc := e.resolveWithDefault(serviceID)

	switch svc.PricingMode {
	case models.PricingFlatPerUnit:
		return e.PriceForQuantity(svc.ID, sel.Unit, sel.Quantity)
	case models.PricingAreaScaled:
		return e.PriceForArea(svc.ID, sel.Area)
	default:
		return e.PriceForBHK(svc.ID, sel.HomeSize)
	}
}
