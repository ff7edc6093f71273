package pricing

import (
	"fmt"

	"tidybeast/internal/models"
)

// ServiceConfig is one catalog entry. The pricing mode is fixed at load time
// and decides which of the price tables is consulted.
type ServiceConfig struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Duration    string `yaml:"duration" json:"duration"`
	Description string `yaml:"description" json:"description"`
	PricingMode string `yaml:"pricing_mode" json:"pricing_mode"`

	// BasePrice is the 2 BHK reference price for bhk_scaled services without
	// an override table, or the flat per-unit price for flat_per_unit ones.
	BasePrice int64 `yaml:"base_price" json:"base_price"`

	// BHKPrices is the explicit per-category override table. When present it
	// is the single source of truth; multipliers are only a fallback.
	BHKPrices map[string]int64 `yaml:"bhk_prices,omitempty" json:"bhk_prices,omitempty"`

	// UnitPrices keys per-unit prices by unit descriptor (sofa seaters).
	UnitPrices map[string]int64 `yaml:"unit_prices,omitempty" json:"unit_prices,omitempty"`

	// Area pricing for area_scaled services.
	RatePerSqFt int64 `yaml:"rate_per_sqft,omitempty" json:"rate_per_sqft,omitempty"`
	MinCharge   int64 `yaml:"min_charge,omitempty" json:"min_charge,omitempty"`
}

// Catalog is the read-only service catalog, loaded once at startup.
type Catalog struct {
	services []ServiceConfig
	byID     map[string]*ServiceConfig
}

// NewCatalog validates the entries and builds the lookup index. Order is
// preserved; the first entry is the fallback for unknown service ids.
func NewCatalog(services []ServiceConfig) (*Catalog, error) {
	if len(services) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	c := &Catalog{
		services: services,
		byID:     make(map[string]*ServiceConfig, len(services)),
	}

	for i := range services {
		svc := &c.services[i]
		if svc.ID == "" {
			return nil, fmt.Errorf("service %q has empty id", svc.Name)
		}
		if _, dup := c.byID[svc.ID]; dup {
			return nil, fmt.Errorf("duplicate service id: %s", svc.ID)
		}
		if err := validateService(svc); err != nil {
			return nil, fmt.Errorf("service %s: %w", svc.ID, err)
		}
		c.byID[svc.ID] = svc
	}

	return c, nil
}

func validateService(svc *ServiceConfig) error {
	switch svc.PricingMode {
	case models.PricingBHKScaled:
		if svc.BasePrice <= 0 && len(svc.BHKPrices) == 0 {
			return fmt.Errorf("needs base_price or bhk_prices")
		}
		if len(svc.BHKPrices) > 0 {
			return validateBHKTable(svc.BHKPrices)
		}
	case models.PricingFlatPerUnit:
		if svc.BasePrice <= 0 && len(svc.UnitPrices) == 0 {
			return fmt.Errorf("needs base_price or unit_prices")
		}
	case models.PricingAreaScaled:
		if svc.RatePerSqFt <= 0 {
			return fmt.Errorf("needs rate_per_sqft")
		}
		if svc.MinCharge < 0 {
			return fmt.Errorf("min_charge must not be negative")
		}
	default:
		return fmt.Errorf("unknown pricing mode %q", svc.PricingMode)
	}
	return nil
}

// validateBHKTable requires every category present and prices non-decreasing
// with size. A table that disagrees with that ordering is a catalog bug, not
// a behavior to carry.
func validateBHKTable(table map[string]int64) error {
	var prev int64
	for i, category := range models.BHKCategories {
		price, ok := table[category]
		if !ok {
			return fmt.Errorf("bhk_prices missing category %q", category)
		}
		if price <= 0 {
			return fmt.Errorf("bhk_prices[%q] must be positive", category)
		}
		if i > 0 && price < prev {
			return fmt.Errorf("bhk_prices[%q]=%d breaks size ordering (previous %d)", category, price, prev)
		}
		prev = price
	}
	return nil
}

// Services returns entries in catalog order.
func (c *Catalog) Services() []ServiceConfig {
	out := make([]ServiceConfig, len(c.services))
	copy(out, c.services)
	return out
}

// ByID returns the entry or nil when unknown.
func (c *Catalog) ByID(id string) *ServiceConfig {
	return c.byID[id]
}

// Default is the fallback entry used when a service id is unknown.
func (c *Catalog) Default() *ServiceConfig {
	return &c.services[0]
}
