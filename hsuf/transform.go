package hsuf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rossjameslee/hermes-api-demo/ebay"
)

// ListingContext carries the taxonomy and defaults the transform runs under.
type ListingContext struct {
	Taxonomy        *ebay.TaxonomyResponse
	CategoryID      string
	DefaultCurrency string
}

var (
	// ErrMissingPrice means neither offers.price nor the nested price
	// specification carried a value.
	ErrMissingPrice = errors.New("offer missing price information")
	// ErrMissingImages means every image entry was empty after trimming.
	ErrMissingImages = errors.New("product image set is empty")
)

// BuildListingDraft assembles the marketplace draft from a normalized
// product: price extraction, image filtering, aspect reconciliation against
// the taxonomy, and a synthesized description when the product carries none.
func BuildListingDraft(product *Product, ctx ListingContext) (*ebay.ListingDraft, error) {
	price, currency, err := extractPrice(&product.Offers, ctx.DefaultCurrency)
	if err != nil {
		return nil, err
	}
	images, err := extractImages(product.Image)
	if err != nil {
		return nil, err
	}
	var aspects = BuildAspects(product, ctx.Taxonomy)
	var description = product.Description
	if description == "" {
		description = FallbackDescription(product)
	}
	var sku = product.SKU
	if sku == "" {
		sku = "hsuf-sku"
	}

	return &ebay.ListingDraft{
		SKU:         sku,
		Title:       Truncate(product.Name, 80),
		Description: Truncate(description, 50000),
		Price:       price,
		Currency:    currency,
		CategoryID:  ctx.CategoryID,
		Quantity:    1,
		Aspects:     aspects,
		Images:      images,
	}, nil
}

// EstimatePackage produces a shipping package payload when all four
// dimensional/weight values convert; otherwise nil.
func EstimatePackage(product *Product) *ebay.PackagePayload {
	height, ok := LengthToInches(product.Height)
	if !ok {
		return nil
	}
	width, ok := LengthToInches(product.Width)
	if !ok {
		return nil
	}
	length, ok := LengthToInches(product.Depth)
	if !ok {
		return nil
	}
	weight, ok := WeightToPounds(product.Weight)
	if !ok {
		return nil
	}
	if weight < 0.1 {
		weight = 0.1
	}
	return &ebay.PackagePayload{
		PackageWeight: ebay.WeightPayload{Value: RoundTwo(weight), Unit: "POUND"},
		PackageSize: ebay.DimensionsPayload{
			Height: RoundOne(height),
			Length: RoundOne(length),
			Width:  RoundOne(width),
			Unit:   "INCH",
		},
	}
}

func extractPrice(offer *Offer, defaultCurrency string) (float64, string, error) {
	if offer.Price != nil {
		var currency = offer.PriceCurrency
		if currency == "" {
			currency = defaultCurrency
		}
		return float64(*offer.Price), strings.ToUpper(currency), nil
	}
	if spec := offer.PriceSpecification; spec != nil && spec.Price != nil {
		var currency = spec.PriceCurrency
		if currency == "" {
			currency = defaultCurrency
		}
		return float64(*spec.Price), strings.ToUpper(currency), nil
	}
	return 0, "", ErrMissingPrice
}

func extractImages(field ImageField) ([]string, error) {
	var cleaned []string
	for _, entry := range field.AsSlice() {
		if strings.TrimSpace(entry) != "" {
			cleaned = append(cleaned, entry)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrMissingImages
	}
	return cleaned, nil
}

// BuildAspects reconciles product fields against the taxonomy aspects,
// returning an aspect-name keyed map (encoding/json emits map keys sorted,
// keeping the wire order deterministic).
func BuildAspects(product *Product, taxonomy *ebay.TaxonomyResponse) map[string][]string {
	var values = make(map[string][]string)
	if taxonomy == nil {
		return values
	}
	for _, aspect := range taxonomy.Aspects {
		var name = strings.TrimSpace(aspect.LocalizedAspectName)
		if name == "" {
			continue
		}
		var candidates = valuesForAspect(product, &aspect)
		if len(candidates) == 0 {
			continue
		}
		var filtered = applyConstraints(candidates, &aspect)
		if len(filtered) == 0 {
			continue
		}
		var cardinality = ebay.CardinalitySingle
		if aspect.AspectConstraint != nil {
			cardinality = ebay.ParseCardinality(aspect.AspectConstraint.ItemToAspectCardinality)
		}
		if cardinality == ebay.CardinalityMulti {
			values[name] = filtered
		} else {
			values[name] = filtered[:1]
		}
	}
	return values
}

func valuesForAspect(product *Product, aspect *ebay.Aspect) []string {
	switch strings.ToLower(strings.TrimSpace(aspect.LocalizedAspectName)) {
	case "brand", "manufacturer":
		if name := product.BrandName(); name != "" {
			return []string{name}
		}
	case "color", "main color":
		return splitField(product.Color)
	case "mpn":
		if product.MPN != "" {
			return []string{product.MPN}
		}
	case "sku":
		if product.SKU != "" {
			return []string{product.SKU}
		}
	}
	return nil
}

func splitField(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, segment := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == '/' || r == '|' || r == ',' || r == '&' || r == '\n'
	}) {
		if segment = strings.TrimSpace(segment); segment != "" {
			out = append(out, segment)
		}
	}
	return out
}

func applyConstraints(candidates []string, aspect *ebay.Aspect) []string {
	var constraint = aspect.AspectConstraint
	if constraint == nil {
		return candidates
	}
	mode, ok := ebay.ParseAspectMode(constraint.AspectMode)
	if !ok || mode != ebay.AspectModeSelectionOnly {
		return candidates
	}
	// SELECTION_ONLY: retain candidates matching an aspect value after
	// case folding and whitespace collapse, emitting the taxonomy's
	// original casing.
	var allowed = make(map[string]string, len(aspect.AspectValues))
	for _, value := range aspect.AspectValues {
		allowed[normalizeText(value.LocalizedValue)] = strings.TrimSpace(value.LocalizedValue)
	}
	var matched []string
	for _, candidate := range candidates {
		if original, ok := allowed[normalizeText(candidate)]; ok {
			matched = append(matched, original)
		}
	}
	return matched
}

func normalizeText(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

// FallbackDescription synthesizes a description from the product's known
// attributes; when none exist it falls back to the name.
func FallbackDescription(product *Product) string {
	var lines []string
	if brand := product.BrandName(); brand != "" {
		lines = append(lines, fmt.Sprintf("Brand: %s", brand))
	}
	if product.Color != "" {
		lines = append(lines, fmt.Sprintf("Color: %s", product.Color))
	}
	if product.Material != "" {
		lines = append(lines, fmt.Sprintf("Material: %s", product.Material))
	}
	if size := product.Size.Resolve(); size != "" {
		lines = append(lines, fmt.Sprintf("Size: %s", size))
	}
	if product.Description != "" {
		lines = append(lines, product.Description)
	}
	if len(lines) == 0 {
		return product.Name
	}
	return strings.Join(lines, "\n")
}

// Truncate clips value to limit bytes, appending "..." and trimming trailing
// whitespace before the ellipsis.
func Truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	var cut = limit - 3
	if cut < 0 {
		cut = 0
	}
	return strings.TrimRight(value[:cut], " \t\n") + "..."
}
