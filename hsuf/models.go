// Package hsuf models schema.org-flavored product records and their
// transformation into marketplace listing drafts.
package hsuf

import (
	"encoding/json"
	"fmt"
)

// Brand is a schema.org Brand.
type Brand struct {
	Name string `json:"name,omitempty"`
}

// QuantitativeValue carries a number plus a UN/CEFACT unit code and/or a
// human unit text.
type QuantitativeValue struct {
	UnitCode string   `json:"unitCode,omitempty"`
	UnitText string   `json:"unitText,omitempty"`
	Value    *float64 `json:"value,omitempty"`
}

// SizeSpecification is a named size (e.g. "US 10").
type SizeSpecification struct {
	Name       string `json:"name,omitempty"`
	SizeGroup  string `json:"sizeGroup,omitempty"`
	SizeSystem string `json:"sizeSystem,omitempty"`
}

// Offer is the schema.org offers block. Price may be a bare number or a
// numeric string on the wire.
type Offer struct {
	Price              *FlexibleNumber         `json:"price,omitempty"`
	PriceCurrency      string                  `json:"priceCurrency,omitempty"`
	ItemCondition      string                  `json:"itemCondition,omitempty"`
	PriceSpecification *UnitPriceSpecification `json:"priceSpecification,omitempty"`
}

// UnitPriceSpecification is the nested price fallback.
type UnitPriceSpecification struct {
	Price         *FlexibleNumber `json:"price,omitempty"`
	PriceCurrency string          `json:"priceCurrency,omitempty"`
}

// FlexibleNumber accepts either a JSON number or a numeric string.
type FlexibleNumber float64

func (n *FlexibleNumber) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = FlexibleNumber(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("price must be a number or numeric string")
	}
	var parsed float64
	if _, err := fmt.Sscanf(s, "%f", &parsed); err != nil {
		return fmt.Errorf("invalid numeric string %q", s)
	}
	*n = FlexibleNumber(parsed)
	return nil
}

func (n FlexibleNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(n))
}

// ImageField accepts either a single URL string or a list of URLs.
type ImageField struct {
	single string
	values []string
	multi  bool
}

// SingleImage wraps one URL.
func SingleImage(url string) ImageField { return ImageField{single: url} }

// MultipleImages wraps an ordered list.
func MultipleImages(urls []string) ImageField { return ImageField{values: urls, multi: true} }

// AsSlice returns the sequence form.
func (f ImageField) AsSlice() []string {
	if f.multi {
		return f.values
	}
	if f.single == "" {
		return nil
	}
	return []string{f.single}
}

func (f ImageField) MarshalJSON() ([]byte, error) {
	if f.multi {
		return json.Marshal(f.values)
	}
	return json.Marshal(f.single)
}

func (f *ImageField) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*f = ImageField{single: single}
		return nil
	}
	var values []string
	if err := json.Unmarshal(data, &values); err == nil {
		*f = ImageField{values: values, multi: true}
		return nil
	}
	return fmt.Errorf("image must be a string or an array of strings")
}

// SizeField accepts free text, a QuantitativeValue, or a SizeSpecification.
type SizeField struct {
	Text          string
	Quantitative  *QuantitativeValue
	Specification *SizeSpecification
}

// Resolve returns the display form of the size, if any.
func (f *SizeField) Resolve() string {
	switch {
	case f == nil:
		return ""
	case f.Text != "":
		return f.Text
	case f.Quantitative != nil && f.Quantitative.Value != nil:
		return fmt.Sprintf("%v", *f.Quantitative.Value)
	case f.Specification != nil:
		return f.Specification.Name
	default:
		return ""
	}
}

func (f SizeField) MarshalJSON() ([]byte, error) {
	switch {
	case f.Quantitative != nil:
		return json.Marshal(f.Quantitative)
	case f.Specification != nil:
		return json.Marshal(f.Specification)
	default:
		return json.Marshal(f.Text)
	}
}

func (f *SizeField) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*f = SizeField{Text: text}
		return nil
	}
	// Object form: quantitative when a value or unit code is present,
	// otherwise a named specification.
	var probe struct {
		Value    *float64 `json:"value"`
		UnitCode string   `json:"unitCode"`
		UnitText string   `json:"unitText"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("size must be a string or an object")
	}
	if probe.Value != nil || probe.UnitCode != "" || probe.UnitText != "" {
		var qv QuantitativeValue
		if err := json.Unmarshal(data, &qv); err != nil {
			return err
		}
		*f = SizeField{Quantitative: &qv}
		return nil
	}
	var spec SizeSpecification
	if err := json.Unmarshal(data, &spec); err != nil {
		return err
	}
	*f = SizeField{Specification: &spec}
	return nil
}

// Product is the normalized extraction result.
type Product struct {
	Name        string             `json:"name"`
	Image       ImageField         `json:"image"`
	Offers      Offer              `json:"offers"`
	Description string             `json:"description,omitempty"`
	Brand       *Brand             `json:"brand,omitempty"`
	Color       string             `json:"color,omitempty"`
	Material    string             `json:"material,omitempty"`
	Size        *SizeField         `json:"size,omitempty"`
	SKU         string             `json:"sku,omitempty"`
	MPN         string             `json:"mpn,omitempty"`
	Height      *QuantitativeValue `json:"height,omitempty"`
	Width       *QuantitativeValue `json:"width,omitempty"`
	Depth       *QuantitativeValue `json:"depth,omitempty"`
	Weight      *QuantitativeValue `json:"weight,omitempty"`
}

// BrandName returns the brand name or "".
func (p *Product) BrandName() string {
	if p.Brand == nil {
		return ""
	}
	return p.Brand.Name
}
