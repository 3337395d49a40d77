package hsuf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rossjameslee/hermes-api-demo/llm"
)

const systemPrompt = `You are a product ingestion agent. Given a set of product image URLs and metadata, respond with a valid
JSON object that conforms to schema.org Product. Include ` + "`image`, `offers`" + `, and dimensional metadata when
possible. Omitting required fields is not allowed. If uncertain, make the best reasonable assumption and note it in
the description. Output JSON only.`

// ErrUnparsableProduct means the gateway output could not be coerced into a
// Product record.
var ErrUnparsableProduct = errors.New("unable to parse product json")

// InferProduct asks the LLM gateway for a schema.org Product built from the
// image set, then normalizes the result. Callers substitute FallbackProduct
// on any error.
func InferProduct(ctx context.Context, client *llm.Client, sku string, images []string) (*Product, error) {
	if len(images) == 0 {
		return nil, ErrUnparsableProduct
	}

	payload, err := json.Marshal(map[string]any{
		"sku":         sku,
		"images":      images,
		"instruction": "Return a schema.org Product JSON with offers.price, offers.priceCurrency, image, color, material, dimensions, and weight when possible.",
	})
	if err != nil {
		return nil, err
	}

	response, err := client.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: string(payload)},
	})
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}

	var cleaned = StripMarkdownFence(response.Text)
	var value map[string]any
	if err := json.Unmarshal([]byte(cleaned), &value); err != nil {
		return nil, ErrUnparsableProduct
	}
	NormalizeProductValue(value, images)

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, ErrUnparsableProduct
	}
	var product Product
	if err := json.Unmarshal(normalized, &product); err != nil {
		return nil, ErrUnparsableProduct
	}
	return &product, nil
}

// StripMarkdownFence drops a leading ``` fence line and stops the body at the
// next fence line. Input without a fence is returned trimmed.
func StripMarkdownFence(input string) string {
	var trimmed = strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	var body []string
	var lines = strings.Split(trimmed, "\n")
	for _, line := range lines[1:] {
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "```") {
			break
		}
		body = append(body, line)
	}
	return strings.Join(body, "\n")
}

// NormalizeProductValue patches the decoded JSON document in place: name,
// sku, image, and the offers block each receive documented defaults.
func NormalizeProductValue(obj map[string]any, images []string) {
	if name, _ := obj["name"].(string); strings.TrimSpace(name) == "" {
		obj["name"] = "Untitled Product"
	}
	if _, ok := obj["sku"]; !ok {
		obj["sku"] = uuid.NewString()
	}

	var imageField = obj["image"]
	switch v := imageField.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			imageField = nil
		}
	case []any:
		if len(v) == 0 {
			imageField = nil
		}
	default:
		imageField = nil
	}
	if imageField == nil {
		var filled []any
		for _, url := range images {
			if len(filled) == 6 {
				break
			}
			filled = append(filled, url)
		}
		obj["image"] = filled
	}

	offers, ok := obj["offers"].(map[string]any)
	if !ok {
		offers = map[string]any{}
		obj["offers"] = offers
	}
	if _, ok := offers["price"]; !ok {
		offers["price"] = "49.99"
	}
	if _, ok := offers["priceCurrency"]; !ok {
		offers["priceCurrency"] = "USD"
	}
	if _, ok := offers["itemCondition"]; !ok {
		offers["itemCondition"] = "https://schema.org/UsedCondition"
	}
}

// FallbackProduct is the deterministic stand-in used when inference fails.
func FallbackProduct(sku string, images []string) *Product {
	var image ImageField
	if len(images) == 1 {
		image = SingleImage(images[0])
	} else {
		image = MultipleImages(append([]string(nil), images...))
	}
	var price = FlexibleNumber(99.0)
	var five, eight, twelve, three = 5.0, 8.0, 12.0, 3.0
	return &Product{
		Name:        fmt.Sprintf("%s listing", sku),
		Image:       image,
		Offers:      Offer{Price: &price, PriceCurrency: "USD"},
		Description: "Automated fallback description",
		Brand:       &Brand{Name: "Hermes Labs"},
		Color:       "Black",
		Material:    "Mixed materials",
		SKU:         sku,
		MPN:         fmt.Sprintf("MPN-%s", sku),
		Height:      &QuantitativeValue{UnitCode: "INH", UnitText: "Inches", Value: &five},
		Width:       &QuantitativeValue{UnitCode: "INH", UnitText: "Inches", Value: &eight},
		Depth:       &QuantitativeValue{UnitCode: "INH", UnitText: "Inches", Value: &twelve},
		Weight:      &QuantitativeValue{UnitCode: "LBR", UnitText: "Pounds", Value: &three},
	}
}
