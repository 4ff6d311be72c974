package entity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type SortKey string

const (
	SortPriceAsc    SortKey = "price_asc"
	SortPriceDesc   SortKey = "price_desc"
	SortRatingDesc  SortKey = "rating_desc"
	SortShippingAsc SortKey = "shipping_asc"
	SortNewest      SortKey = "newest"
)

const (
	ConditionAll = "all"
	CategoryAll  = "all"
)

// FilterConfig is the user-editable search state. Bounds are inclusive and nil means unbounded.
type FilterConfig struct {
	Query        string               `json:"query" validate:"max=200"`
	MinPrice     *float64             `json:"minPrice,omitempty" validate:"omitempty,gte=0"`
	MaxPrice     *float64             `json:"maxPrice,omitempty" validate:"omitempty,gte=0"`
	Marketplaces map[Marketplace]bool `json:"marketplaces"`
	Condition    string               `json:"condition" validate:"omitempty,oneof=all new used refurbished"`
	Category     string               `json:"category" validate:"max=100"`
	SortBy       SortKey              `json:"sortBy" validate:"omitempty,oneof=price_asc price_desc rating_desc shipping_asc newest"`
}

func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		Marketplaces: map[Marketplace]bool{
			MarketplaceAmazon: true,
			MarketplaceEbay:   true,
		},
		Condition: ConditionAll,
		Category:  CategoryAll,
		SortBy:    SortRatingDesc,
	}
}

// Includes reports whether products from m pass the marketplace stage.
// Keys match case-insensitively; a marketplace missing from the map is enabled
// and one disabled under any spelling is excluded.
func (f FilterConfig) Includes(m Marketplace) bool {
	if enabled, ok := f.Marketplaces[m]; ok && !enabled {
		return false
	}
	for k, enabled := range f.Marketplaces {
		if !enabled && k != m && canonicalMarketplace(k) == canonicalMarketplace(m) {
			return false
		}
	}
	return true
}

func canonicalMarketplace(m Marketplace) Marketplace {
	return Marketplace(strings.ToLower(strings.TrimSpace(string(m))))
}

// Normalize returns a copy whose marketplace keys are the canonical tags.
// When two spellings of one marketplace disagree the marketplace is disabled.
func (f FilterConfig) Normalize() (FilterConfig, error) {
	out := f.Clone()
	if f.Marketplaces == nil {
		return out, nil
	}
	out.Marketplaces = make(map[Marketplace]bool, len(f.Marketplaces))
	for k, enabled := range f.Marketplaces {
		m, err := ParseMarketplace(string(k))
		if err != nil {
			return f, err
		}
		if prev, seen := out.Marketplaces[m]; seen {
			enabled = prev && enabled
		}
		out.Marketplaces[m] = enabled
	}
	return out, nil
}

// EnabledMarketplaces returns the marketplaces that pass the marketplace stage.
func (f FilterConfig) EnabledMarketplaces() []Marketplace {
	out := make([]Marketplace, 0, len(Marketplaces))
	for _, m := range Marketplaces {
		if f.Includes(m) {
			out = append(out, m)
		}
	}
	return out
}

func (f FilterConfig) ConditionActive() bool {
	return f.Condition != "" && f.Condition != ConditionAll
}

func (f FilterConfig) CategoryActive() bool {
	return f.Category != "" && !strings.EqualFold(f.Category, CategoryAll)
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (f FilterConfig) Clone() FilterConfig {
	out := f
	if f.MinPrice != nil {
		v := *f.MinPrice
		out.MinPrice = &v
	}
	if f.MaxPrice != nil {
		v := *f.MaxPrice
		out.MaxPrice = &v
	}
	if f.Marketplaces != nil {
		out.Marketplaces = make(map[Marketplace]bool, len(f.Marketplaces))
		for k, v := range f.Marketplaces {
			out.Marketplaces[k] = v
		}
	}
	return out
}

var filterValidate = newFilterValidator()

func newFilterValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(priceBoundsValidation, FilterConfig{})
	return v
}

func priceBoundsValidation(sl validator.StructLevel) {
	f := sl.Current().Interface().(FilterConfig)
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		sl.ReportError(f.MinPrice, "MinPrice", "minPrice", "ltefield", "MaxPrice")
	}
}

// Validate rejects configurations the transport layer must not accept, e.g. minPrice > maxPrice.
// The predicate engine itself never calls it.
func (f FilterConfig) Validate() error {
	for m := range f.Marketplaces {
		if _, err := ParseMarketplace(string(m)); err != nil {
			return err
		}
	}
	if err := filterValidate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed on %q: %w", fe.Field(), fe.Tag(), ErrInvalidFilter)
		}
		return fmt.Errorf("%v: %w", err, ErrInvalidFilter)
	}
	return nil
}
