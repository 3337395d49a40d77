// Package ebay is a typed client for the marketplace sell APIs: OAuth token
// exchange, inventory and location upserts, offer CRUD, and taxonomy lookup.
// All request payloads use camelCase JSON keys.
package ebay

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	productionRoot = "https://api.ebay.com"
	sandboxRoot    = "https://api.sandbox.ebay.com"
)

// Client issues authenticated requests against a single API root.
type Client struct {
	HTTP           *http.Client
	Root           string
	AppID          string
	CertID         string
	CategoryTreeID string
}

// NewClient selects the API root from the environment name (PROD uses the
// production root, anything else the sandbox).
func NewClient(httpClient *http.Client, env, appID, certID, categoryTreeID string) *Client {
	var root = sandboxRoot
	if strings.EqualFold(strings.TrimSpace(env), "PROD") {
		root = productionRoot
	}
	if categoryTreeID == "" {
		categoryTreeID = "0"
	}
	return &Client{
		HTTP:           httpClient,
		Root:           root,
		AppID:          appID,
		CertID:         certID,
		CategoryTreeID: categoryTreeID,
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func statusError(op string, resp *http.Response) error {
	return fmt.Errorf("%s: HTTP %d", op, resp.StatusCode)
}
