package ebay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrEntityExists signals a create conflict (HTTP 409): an offer already
// exists for the SKU and triggers the reconciliation path.
var ErrEntityExists = errors.New("entity already exists")

// Price is the monetary amount of an offer.
type Price struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// PriceFromAmount formats the amount with two decimals.
func PriceFromAmount(amount float64, currency string) Price {
	return Price{Value: fmt.Sprintf("%.2f", amount), Currency: currency}
}

type PricingSummary struct {
	Price Price `json:"price"`
}

// CreateOfferRequest is the offer creation payload.
type CreateOfferRequest struct {
	SKU                  string              `json:"sku"`
	MarketplaceID        string              `json:"marketplaceId"`
	Format               string              `json:"format"`
	CategoryID           string              `json:"categoryId"`
	ListingDescription   string              `json:"listingDescription"`
	PricingSummary       PricingSummary      `json:"pricingSummary"`
	AvailableQuantity    int                 `json:"availableQuantity"`
	MerchantLocationKey  string              `json:"merchantLocationKey"`
	ListingPolicies      ListingPolicies     `json:"listingPolicies"`
	Aspects              map[string][]string `json:"aspects,omitempty"`
	PackageWeightAndSize *PackagePayload     `json:"packageWeightAndSize,omitempty"`
	ImageURLs            []string            `json:"imageUrls,omitempty"`
}

// UpdateOfferRequest replaces the mutable portion of an existing offer.
type UpdateOfferRequest struct {
	Format               string          `json:"format"`
	CategoryID           string          `json:"categoryId"`
	ListingDescription   string          `json:"listingDescription"`
	PricingSummary       PricingSummary  `json:"pricingSummary"`
	AvailableQuantity    int             `json:"availableQuantity"`
	ListingPolicies      ListingPolicies `json:"listingPolicies"`
	MerchantLocationKey  string          `json:"merchantLocationKey"`
	PackageWeightAndSize *PackagePayload `json:"packageWeightAndSize,omitempty"`
}

// OfferSummary is one entry of a lookup-by-SKU response.
type OfferSummary struct {
	OfferID       string `json:"offerId"`
	MarketplaceID string `json:"marketplaceId"`
}

// CreateOffer creates an offer, returning its id. A 409 response maps to
// ErrEntityExists.
func (c *Client) CreateOffer(ctx context.Context, request *CreateOfferRequest, accessToken string) (string, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, c.Root+"/sell/inventory/v1/offer", request, accessToken)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return "", ErrEntityExists
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError("create offer", resp)
	}
	var payload struct {
		OfferID string `json:"offerId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("create offer response: %w", err)
	}
	return payload.OfferID, nil
}

// PublishOffer turns an offer into a live listing, returning the listing id
// (possibly empty; callers substitute a fallback).
func (c *Client) PublishOffer(ctx context.Context, offerID, accessToken string) (string, error) {
	var endpoint = fmt.Sprintf("%s/sell/inventory/v1/offer/%s/publish", c.Root, offerID)
	resp, err := c.doJSON(ctx, http.MethodPost, endpoint, nil, accessToken)
	if err != nil {
		return "", fmt.Errorf("publish offer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError("publish offer", resp)
	}
	var payload struct {
		ListingID string `json:"listingId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("publish offer response: %w", err)
	}
	return payload.ListingID, nil
}

// GetOffersBySKU lists existing offers for a SKU across marketplaces.
func (c *Client) GetOffersBySKU(ctx context.Context, sku, accessToken string) ([]OfferSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Root+"/sell/inventory/v1/offer", nil)
	if err != nil {
		return nil, err
	}
	var q = req.URL.Query()
	q.Set("sku", sku)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("get offers by sku: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError("get offers by sku", resp)
	}
	var payload struct {
		Offers []OfferSummary `json:"offers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("get offers response: %w", err)
	}
	return payload.Offers, nil
}

// UpdateOffer replaces an existing offer's listing data.
func (c *Client) UpdateOffer(ctx context.Context, offerID string, payload *UpdateOfferRequest, accessToken string) error {
	var endpoint = fmt.Sprintf("%s/sell/inventory/v1/offer/%s", c.Root, offerID)
	resp, err := c.doJSON(ctx, http.MethodPut, endpoint, payload, accessToken)
	if err != nil {
		return fmt.Errorf("update offer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError("update offer", resp)
	}
	return nil
}

// WithdrawOffer ends the live listing backed by an offer.
func (c *Client) WithdrawOffer(ctx context.Context, offerID, accessToken string) error {
	var endpoint = fmt.Sprintf("%s/sell/inventory/v1/offer/%s/withdraw", c.Root, offerID)
	resp, err := c.doJSON(ctx, http.MethodPost, endpoint, nil, accessToken)
	if err != nil {
		return fmt.Errorf("withdraw offer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError("withdraw offer", resp)
	}
	return nil
}

// DeleteOffer removes an unpublished offer.
func (c *Client) DeleteOffer(ctx context.Context, offerID, accessToken string) error {
	var endpoint = fmt.Sprintf("%s/sell/inventory/v1/offer/%s", c.Root, offerID)
	resp, err := c.doJSON(ctx, http.MethodDelete, endpoint, nil, accessToken)
	if err != nil {
		return fmt.Errorf("delete offer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError("delete offer", resp)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload any, accessToken string) (*http.Response, error) {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient().Do(req)
}
