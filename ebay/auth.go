package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrMissingCredentials is returned when the client has no app id/secret.
var ErrMissingCredentials = errors.New("missing ebay app credentials")

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// AppAccessToken exchanges client credentials for an application token.
func (c *Client) AppAccessToken(ctx context.Context, scopes []string) (string, error) {
	var form = url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {strings.Join(scopes, " ")},
	}
	return c.requestToken(ctx, form)
}

// UserAccessTokenFromRefresh exchanges a seller refresh token for a user
// access token.
func (c *Client) UserAccessTokenFromRefresh(ctx context.Context, refreshToken string, scopes []string) (string, error) {
	var form = url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"scope":         {strings.Join(scopes, " ")},
	}
	return c.requestToken(ctx, form)
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (string, error) {
	if c.AppID == "" || c.CertID == "" {
		return "", ErrMissingCredentials
	}
	var endpoint = c.Root + "/identity/v1/oauth2/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.AppID, c.CertID)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError("oauth token", resp)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("oauth response: %w", err)
	}
	return payload.AccessToken, nil
}
