package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresConfiguration(t *testing.T) {
	require.Nil(t, NewClient(http.DefaultClient, "", "key"))
	require.Nil(t, NewClient(http.DefaultClient, "https://store.example.com", ""))
	require.NotNil(t, NewClient(http.DefaultClient, "https://store.example.com/", "key"))
}

func TestFetchEbayOrgConfig(t *testing.T) {
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/v1/ebay_org_config", r.URL.Path)
		require.Equal(t, "eq.org-a", r.URL.Query().Get("org_id"))
		require.Equal(t, "service-key", r.Header.Get("apikey"))
		require.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]EbayOrgConfig{{
			OrgID:               "org-a",
			MerchantLocationKey: "loc-tenant",
			Marketplace:         "EBAY_US",
		}})
	}))
	defer server.Close()

	var client = NewClient(server.Client(), server.URL, "service-key")
	cfg, err := client.FetchEbayOrgConfig(context.Background(), "org-a")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, "loc-tenant", cfg.MerchantLocationKey)
}

func TestFetchEbayOrgConfigNoRows(t *testing.T) {
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	defer server.Close()

	var client = NewClient(server.Client(), server.URL, "service-key")
	cfg, err := client.FetchEbayOrgConfig(context.Background(), "org-a")
	require.NoError(t, err)
	require.Nil(t, cfg)
}

func TestFetchEbayOrgConfigErrorStatus(t *testing.T) {
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	var client = NewClient(server.Client(), server.URL, "service-key")
	_, err := client.FetchEbayOrgConfig(context.Background(), "org-a")
	require.ErrorContains(t, err, "HTTP 403")
}
