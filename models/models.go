// Package models holds the wire types shared by the HTTP surface and the
// listing pipeline. Pipeline request/response bodies use snake_case JSON;
// marketplace payloads (package ebay) use camelCase.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ListingRequest is the client input driving a full pipeline run.
type ListingRequest struct {
	ImagesSource        ImagesSource       `json:"images_source"`
	SKU                 string             `json:"sku" validate:"required"`
	MerchantLocationKey string             `json:"merchant_location_key" validate:"required"`
	FulfillmentPolicyID string             `json:"fulfillment_policy_id" validate:"required"`
	PaymentPolicyID     string             `json:"payment_policy_id" validate:"required"`
	ReturnPolicyID      string             `json:"return_policy_id" validate:"required"`
	Marketplace         MarketplaceID      `json:"marketplace"`
	LLMProvider         string             `json:"llm_provider,omitempty"`
	LLMListingModel     string             `json:"llm_listing_model,omitempty"`
	LLMCategoryModel    string             `json:"llm_category_model,omitempty"`
	UseSignedURLs       bool               `json:"use_signed_urls"`
	Overrides           *PipelineOverrides `json:"overrides,omitempty"`
	DryRun              bool               `json:"dry_run"`
}

// ListingResponse is returned by every successful pipeline run: the final
// listing id plus the ordered per-stage transcript.
type ListingResponse struct {
	ListingID string        `json:"listing_id"`
	Stages    []StageReport `json:"stages"`
}

// StageReport records one executed pipeline stage.
type StageReport struct {
	Name      string         `json:"name"`
	ElapsedMS int64          `json:"elapsed_ms"`
	Timestamp time.Time      `json:"timestamp"`
	Output    map[string]any `json:"output"`
}

// NewStageReport stamps a report with the current wall-clock time.
func NewStageReport(name string, elapsed time.Duration, output map[string]any) StageReport {
	return StageReport{
		Name:      name,
		ElapsedMS: elapsed.Milliseconds(),
		Timestamp: time.Now().UTC(),
		Output:    output,
	}
}

// APIError is the JSON error payload of the HTTP surface.
type APIError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// CategorySelectionInput is the client-supplied category override.
type CategorySelectionInput struct {
	ID         string  `json:"id"`
	TreeID     string  `json:"tree_id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// PipelineOverrides short-circuit the overridable stages.
type PipelineOverrides struct {
	ResolvedImages []string                `json:"resolved_images,omitempty"`
	Category       *CategorySelectionInput `json:"category,omitempty"`
	Product        json.RawMessage         `json:"product,omitempty"`
}

// MarketplaceID identifies the target marketplace. The JSON form is
// EBAY_US | EBAY_UK | EBAY_DE; the marketplace API form (EbayCode) uses
// EBAY_GB for the UK site.
type MarketplaceID string

const (
	MarketplaceEbayUS MarketplaceID = "EBAY_US"
	MarketplaceEbayUK MarketplaceID = "EBAY_UK"
	MarketplaceEbayDE MarketplaceID = "EBAY_DE"
)

// ParseMarketplaceID accepts either the request form or the marketplace API
// form (EBAY_GB aliases EBAY_UK).
func ParseMarketplaceID(input string) (MarketplaceID, bool) {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "EBAY_US":
		return MarketplaceEbayUS, true
	case "EBAY_UK", "EBAY_GB":
		return MarketplaceEbayUK, true
	case "EBAY_DE":
		return MarketplaceEbayDE, true
	default:
		return "", false
	}
}

// EbayCode returns the marketplace API identifier.
func (m MarketplaceID) EbayCode() string {
	switch m {
	case MarketplaceEbayUK:
		return "EBAY_GB"
	case MarketplaceEbayDE:
		return "EBAY_DE"
	default:
		return "EBAY_US"
	}
}

// Route returns the sell API root for the marketplace.
func (m MarketplaceID) Route() string {
	switch m {
	case MarketplaceEbayUK:
		return "https://api.ebay.co.uk/sell"
	case MarketplaceEbayDE:
		return "https://api.ebay.de/sell"
	default:
		return "https://api.ebay.com/sell"
	}
}

func (m MarketplaceID) MarshalJSON() ([]byte, error) {
	if m == "" {
		m = MarketplaceEbayUS
	}
	return json.Marshal(string(m))
}

func (m *MarketplaceID) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*m = MarketplaceEbayUS
		return nil
	}
	parsed, ok := ParseMarketplaceID(raw)
	if !ok {
		return fmt.Errorf("unknown marketplace %q", raw)
	}
	*m = parsed
	return nil
}

// OrDefault maps the zero value to EBAY_US.
func (m MarketplaceID) OrDefault() MarketplaceID {
	if m == "" {
		return MarketplaceEbayUS
	}
	return m
}

// ImagesSource is the polymorphic image input: either one string (which may
// carry delimiter characters splitting it into several URLs) or an ordered
// list of strings.
type ImagesSource struct {
	Single   string
	Multiple []string
	isMulti  bool
}

// SingleSource wraps one raw string.
func SingleSource(value string) ImagesSource {
	return ImagesSource{Single: value}
}

// MultipleSource wraps an ordered list.
func MultipleSource(values []string) ImagesSource {
	return ImagesSource{Multiple: values, isMulti: true}
}

// IsMultiple reports whether the source was provided in list form.
func (s ImagesSource) IsMultiple() bool { return s.isMulti }

func (s ImagesSource) MarshalJSON() ([]byte, error) {
	if s.isMulti {
		return json.Marshal(s.Multiple)
	}
	return json.Marshal(s.Single)
}

func (s *ImagesSource) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = ImagesSource{Single: single}
		return nil
	}
	var multiple []string
	if err := json.Unmarshal(data, &multiple); err == nil {
		*s = ImagesSource{Multiple: multiple, isMulti: true}
		return nil
	}
	return fmt.Errorf("images_source must be a string or an array of strings")
}
