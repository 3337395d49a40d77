// Package supabase looks up organization-scoped marketplace credentials from
// the tenant-config store.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Client queries the store's REST surface with a service-role key.
type Client struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

// NewClient returns nil when the store is not configured; pipeline callers
// treat a nil client as "no tenant config".
func NewClient(httpClient *http.Client, baseURL, serviceKey string) *Client {
	if baseURL == "" || serviceKey == "" {
		return nil
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		http:       httpClient,
	}
}

// EbayOrgConfig is one organization's marketplace settings.
type EbayOrgConfig struct {
	OrgID               string `json:"org_id"`
	MerchantLocationKey string `json:"merchant_location_key"`
	FulfillmentPolicyID string `json:"fulfillment_policy_id"`
	PaymentPolicyID     string `json:"payment_policy_id"`
	ReturnPolicyID      string `json:"return_policy_id"`
	Marketplace         string `json:"marketplace"`
	LocationName        string `json:"location_name"`
	AddressLine1        string `json:"address_line1"`
	AddressLine2        string `json:"address_line2"`
	City                string `json:"city"`
	StateOrProvince     string `json:"state_or_province"`
	PostalCode          string `json:"postal_code"`
	Country             string `json:"country"`
	Latitude            string `json:"latitude"`
	Longitude           string `json:"longitude"`
}

// FetchEbayOrgConfig returns the first config row for the org, or nil when
// none exists.
func (c *Client) FetchEbayOrgConfig(ctx context.Context, orgID string) (*EbayOrgConfig, error) {
	var endpoint = fmt.Sprintf(
		"%s/rest/v1/ebay_org_config?org_id=eq.%s&select=*&limit=1",
		c.baseURL, orgID,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("org config request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("org config request: HTTP %d", resp.StatusCode)
	}

	var rows []EbayOrgConfig
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("org config response: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
