package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// TaxonomyResponse is the raw aspect metadata for a category.
type TaxonomyResponse struct {
	Aspects []Aspect `json:"aspects"`
}

// Aspect is one named attribute the category requires or accepts.
type Aspect struct {
	LocalizedAspectName string            `json:"localizedAspectName"`
	AspectValues        []AspectValue     `json:"aspectValues,omitempty"`
	AspectConstraint    *AspectConstraint `json:"aspectConstraint,omitempty"`
}

type AspectValue struct {
	LocalizedValue string `json:"localizedValue"`
}

type AspectConstraint struct {
	AspectMode              string `json:"aspectMode,omitempty"`
	AspectRequired          bool   `json:"aspectRequired,omitempty"`
	ItemToAspectCardinality string `json:"itemToAspectCardinality,omitempty"`
}

// AspectMode constrains the value space of an aspect.
type AspectMode int

const (
	AspectModeFreeText AspectMode = iota
	AspectModeSelectionOnly
)

// ParseAspectMode returns (mode, true) for recognized raw values.
func ParseAspectMode(raw string) (AspectMode, bool) {
	switch strings.ToUpper(raw) {
	case "FREE_TEXT":
		return AspectModeFreeText, true
	case "SELECTION_ONLY":
		return AspectModeSelectionOnly, true
	default:
		return AspectModeFreeText, false
	}
}

// Cardinality says whether an aspect accepts one value or many.
type Cardinality int

const (
	CardinalitySingle Cardinality = iota
	CardinalityMulti
)

// ParseCardinality defaults to SINGLE for unknown raw values.
func ParseCardinality(raw string) Cardinality {
	if strings.ToUpper(raw) == "MULTI" {
		return CardinalityMulti
	}
	return CardinalitySingle
}

// FetchCategoryAspects looks up the aspect metadata for a category in the
// client's category tree.
func (c *Client) FetchCategoryAspects(ctx context.Context, categoryID, accessToken string) (*TaxonomyResponse, error) {
	var endpoint = fmt.Sprintf(
		"%s/commerce/taxonomy/v1/category_tree/%s/get_item_aspects_for_category",
		c.Root, c.CategoryTreeID,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var q = req.URL.Query()
	q.Set("category_id", categoryID)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch category aspects: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError("fetch category aspects", resp)
	}
	var payload TaxonomyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("taxonomy response: %w", err)
	}
	return &payload, nil
}
