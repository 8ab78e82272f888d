package catalog

import (
	"github.com/biyariq/storefront/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProductKind is the fulfilment kind of a product
type ProductKind string

const (
	ProductKindPhysical ProductKind = "physical"
	ProductKindDigital  ProductKind = "digital"
	ProductKindCourse   ProductKind = "course"
)

// IsValid reports whether k is a known product kind
func (k ProductKind) IsValid() bool {
	switch k {
	case ProductKindPhysical, ProductKindDigital, ProductKindCourse:
		return true
	}
	return false
}

// LocalizedText is a display string in both storefront languages
type LocalizedText struct {
	Ar string `json:"ar"`
	En string `json:"en"`
}

// In returns the text for lang ("ar" or "en"), falling back to the other
// language when the requested one is empty.
func (t LocalizedText) In(lang string) string {
	if lang == "en" {
		if t.En != "" {
			return t.En
		}
		return t.Ar
	}
	if t.Ar != "" {
		return t.Ar
	}
	return t.En
}

// OptionGroup is a named variant dimension (e.g. color, size) with its allowed values
type OptionGroup struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Product is a read-only reference to a catalog product owned by the backend.
// Cart lines and favorites embed a snapshot of it taken when they were added.
type Product struct {
	ID            string           `json:"id"`
	Name          LocalizedText    `json:"name"`
	Description   LocalizedText    `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice,omitempty"`
	Thumbnail     string           `json:"thumbnail,omitempty"`
	Images        []string         `json:"images,omitempty"`
	CategoryID    string           `json:"category,omitempty"`
	Kind          ProductKind      `json:"type"`
	Stock         *int             `json:"stock,omitempty"`
	Options       []OptionGroup    `json:"options,omitempty"`
}

// Validate checks the invariants a product snapshot must satisfy before it is
// placed in a cart or favorites collection.
func (p *Product) Validate() error {
	if p.ID == "" {
		return shared.NewDomainError("INVALID_PRODUCT", "Product id cannot be empty")
	}
	if p.Price.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Product price cannot be negative")
	}
	if p.DiscountPrice != nil {
		if p.DiscountPrice.IsNegative() {
			return shared.NewDomainError("INVALID_PRICE", "Discount price cannot be negative")
		}
		if p.DiscountPrice.GreaterThan(p.Price) {
			return shared.NewDomainError("INVALID_PRICE", "Discount price cannot exceed price")
		}
	}
	if p.Kind != "" && !p.Kind.IsValid() {
		return shared.NewDomainError("INVALID_KIND", "Unknown product type: "+string(p.Kind))
	}
	return nil
}

// EffectivePrice returns the discounted price when one is set and positive,
// otherwise the list price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice != nil && p.DiscountPrice.IsPositive() {
		return *p.DiscountPrice
	}
	return p.Price
}

// InStock reports whether the product can be bought. Unknown stock counts as available.
func (p *Product) InStock() bool {
	return p.Stock == nil || *p.Stock > 0
}
