package ebay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// InventoryItemRequest is the inventory upsert payload.
type InventoryItemRequest struct {
	Availability        InventoryAvailability `json:"availability"`
	Product             InventoryProduct      `json:"product"`
	PackageWeightAndSize *PackagePayload      `json:"packageWeightAndSize,omitempty"`
}

type InventoryAvailability struct {
	ShipToLocationAvailability ShipToLocationAvailability `json:"shipToLocationAvailability"`
}

type ShipToLocationAvailability struct {
	Quantity int `json:"quantity"`
}

type InventoryProduct struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Aspects     map[string][]string `json:"aspects,omitempty"`
	ImageURLs   []string            `json:"imageUrls,omitempty"`
}

// InventoryLocationRequest is the merchant location upsert payload.
type InventoryLocationRequest struct {
	MerchantLocationStatus string          `json:"merchantLocationStatus"`
	LocationTypes          []string        `json:"locationTypes"`
	Name                   string          `json:"name"`
	Location               LocationDetails `json:"location"`
}

type LocationDetails struct {
	Address        LocationAddress `json:"address"`
	GeoCoordinates *LocationGeo    `json:"geoCoordinates,omitempty"`
}

type LocationAddress struct {
	AddressLine1    string `json:"addressLine1"`
	AddressLine2    string `json:"addressLine2,omitempty"`
	City            string `json:"city"`
	StateOrProvince string `json:"stateOrProvince"`
	PostalCode      string `json:"postalCode"`
	Country         string `json:"country"`
}

type LocationGeo struct {
	Latitude  string `json:"latitude,omitempty"`
	Longitude string `json:"longitude,omitempty"`
}

// UpsertInventoryItem creates or replaces the inventory record for a SKU.
func (c *Client) UpsertInventoryItem(ctx context.Context, sku string, payload *InventoryItemRequest, accessToken string) error {
	var endpoint = fmt.Sprintf("%s/sell/inventory/v1/inventory_item/%s", c.Root, url.PathEscape(sku))
	return c.putJSON(ctx, "upsert inventory item", endpoint, payload, accessToken)
}

// UpsertInventoryLocation creates or replaces a merchant location.
func (c *Client) UpsertInventoryLocation(ctx context.Context, merchantLocationKey string, payload *InventoryLocationRequest, accessToken string) error {
	var endpoint = fmt.Sprintf("%s/sell/inventory/v1/location/%s", c.Root, url.PathEscape(merchantLocationKey))
	return c.putJSON(ctx, "upsert inventory location", endpoint, payload, accessToken)
}

func (c *Client) putJSON(ctx context.Context, op, endpoint string, payload any, accessToken string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(op, resp)
	}
	return nil
}
