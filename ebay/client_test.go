package ebay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func testClient(server *httptest.Server) *Client {
	var client = NewClient(server.Client(), "SANDBOX", "app-1", "cert-1", "0")
	client.Root = server.URL
	return client
}

func TestNewClientSelectsRoot(t *testing.T) {
	require.Equal(t, "https://api.ebay.com", NewClient(nil, "PROD", "", "", "").Root)
	require.Equal(t, "https://api.ebay.com", NewClient(nil, " prod ", "", "", "").Root)
	require.Equal(t, "https://api.sandbox.ebay.com", NewClient(nil, "SANDBOX", "", "", "").Root)
	require.Equal(t, "https://api.sandbox.ebay.com", NewClient(nil, "", "", "", "").Root)
	require.Equal(t, "0", NewClient(nil, "", "", "", "").CategoryTreeID)
}

func TestCreateOfferConflictMapsToErrEntityExists(t *testing.T) {
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/sell/inventory/v1/offer", r.URL.Path)
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	_, err := testClient(server).CreateOffer(context.Background(), &CreateOfferRequest{SKU: "sku-1"}, "token-1")
	require.ErrorIs(t, err, ErrEntityExists)
}

func TestCreateOfferReturnsOfferID(t *testing.T) {
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload CreateOfferRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "sku-1", payload.SKU)
		require.Equal(t, "EBAY_US", payload.MarketplaceID)
		_ = json.NewEncoder(w).Encode(map[string]string{"offerId": "OFFER-1"})
	}))
	defer server.Close()

	offerID, err := testClient(server).CreateOffer(context.Background(), &CreateOfferRequest{
		SKU:           "sku-1",
		MarketplaceID: "EBAY_US",
	}, "token-1")
	require.NoError(t, err)
	require.Equal(t, "OFFER-1", offerID)
}

func TestGetOffersBySKU(t *testing.T) {
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "sku-1", r.URL.Query().Get("sku"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"offers": []map[string]string{{"offerId": "OFFER-1", "marketplaceId": "EBAY_US"}},
		})
	}))
	defer server.Close()

	offers, err := testClient(server).GetOffersBySKU(context.Background(), "sku-1", "token-1")
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.Equal(t, "OFFER-1", offers[0].OfferID)
	require.Equal(t, "EBAY_US", offers[0].MarketplaceID)
}

func TestPublishOfferParsesListingID(t *testing.T) {
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sell/inventory/v1/offer/OFFER-1/publish", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"listingId": "110550000001"})
	}))
	defer server.Close()

	listingID, err := testClient(server).PublishOffer(context.Background(), "OFFER-1", "token-1")
	require.NoError(t, err)
	require.Equal(t, "110550000001", listingID)
}

func TestUpdateAndWithdrawOfferStatusHandling(t *testing.T) {
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	var client = testClient(server)
	require.NoError(t, client.UpdateOffer(context.Background(), "OFFER-1", &UpdateOfferRequest{}, "token-1"))
	require.ErrorContains(t, client.WithdrawOffer(context.Background(), "OFFER-1", "token-1"), "HTTP 500")
}

func TestUserAccessTokenFromRefresh(t *testing.T) {
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/identity/v1/oauth2/token", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "app-1", user)
		require.Equal(t, "cert-1", pass)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "user-token"})
	}))
	defer server.Close()

	token, err := testClient(server).UserAccessTokenFromRefresh(context.Background(), "refresh-1", []string{"scope-a"})
	require.NoError(t, err)
	require.Equal(t, "user-token", token)
}

func TestTokenRequestRequiresCredentials(t *testing.T) {
	var client = NewClient(http.DefaultClient, "SANDBOX", "", "", "")
	_, err := client.AppAccessToken(context.Background(), nil)
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestDeleteOffer(t *testing.T) {
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/sell/inventory/v1/offer/OFFER-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	require.NoError(t, testClient(server).DeleteOffer(context.Background(), "OFFER-1", "token-1"))
}

func TestFetchCategoryAspects(t *testing.T) {
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/commerce/taxonomy/v1/category_tree/0/get_item_aspects_for_category", r.URL.Path)
		require.Equal(t, "11450", r.URL.Query().Get("category_id"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"aspects": []map[string]any{{
				"localizedAspectName": "Brand",
				"aspectConstraint": map[string]any{
					"aspectMode":              "SELECTION_ONLY",
					"aspectRequired":          true,
					"itemToAspectCardinality": "MULTI",
				},
			}},
		})
	}))
	defer server.Close()

	taxonomy, err := testClient(server).FetchCategoryAspects(context.Background(), "11450", "token-1")
	require.NoError(t, err)
	require.Len(t, taxonomy.Aspects, 1)
	require.Equal(t, "Brand", taxonomy.Aspects[0].LocalizedAspectName)
	require.True(t, taxonomy.Aspects[0].AspectConstraint.AspectRequired)
}

func TestAspectModeAndCardinalityParsing(t *testing.T) {
	mode, ok := ParseAspectMode("selection_only")
	require.True(t, ok)
	require.Equal(t, AspectModeSelectionOnly, mode)

	mode, ok = ParseAspectMode("FREE_TEXT")
	require.True(t, ok)
	require.Equal(t, AspectModeFreeText, mode)

	_, ok = ParseAspectMode("OTHER")
	require.False(t, ok)

	require.Equal(t, CardinalityMulti, ParseCardinality("multi"))
	require.Equal(t, CardinalitySingle, ParseCardinality("SINGLE"))
	require.Equal(t, CardinalitySingle, ParseCardinality(""))
}

func TestPriceFromAmount(t *testing.T) {
	require.Equal(t, Price{Value: "129.50", Currency: "USD"}, PriceFromAmount(129.5, "USD"))
	require.Equal(t, Price{Value: "0.99", Currency: "EUR"}, PriceFromAmount(0.994, "EUR"))
}
