package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImagesSourceDecodesBothShapes(t *testing.T) {
	var single ImagesSource
	require.NoError(t, json.Unmarshal([]byte(`"https://a/1,https://a/2"`), &single))
	require.False(t, single.IsMultiple())
	require.Equal(t, "https://a/1,https://a/2", single.Single)

	var multiple ImagesSource
	require.NoError(t, json.Unmarshal([]byte(`["https://a/1","https://a/2"]`), &multiple))
	require.True(t, multiple.IsMultiple())
	require.Equal(t, []string{"https://a/1", "https://a/2"}, multiple.Multiple)

	var bad ImagesSource
	require.Error(t, json.Unmarshal([]byte(`{"url":"x"}`), &bad))
}

func TestImagesSourceRoundTrip(t *testing.T) {
	body, err := json.Marshal(MultipleSource([]string{"a", "b"}))
	require.NoError(t, err)
	require.JSONEq(t, `["a","b"]`, string(body))

	body, err = json.Marshal(SingleSource("a"))
	require.NoError(t, err)
	require.JSONEq(t, `"a"`, string(body))
}

func TestMarketplaceParsing(t *testing.T) {
	parsed, ok := ParseMarketplaceID("EBAY_US")
	require.True(t, ok)
	require.Equal(t, MarketplaceEbayUS, parsed)

	// The marketplace API alias for the UK site is accepted on input.
	parsed, ok = ParseMarketplaceID("ebay_gb")
	require.True(t, ok)
	require.Equal(t, MarketplaceEbayUK, parsed)

	_, ok = ParseMarketplaceID("EBAY_FR")
	require.False(t, ok)
}

func TestMarketplaceEbayCodeAndRoute(t *testing.T) {
	require.Equal(t, "EBAY_GB", MarketplaceEbayUK.EbayCode())
	require.Equal(t, "EBAY_US", MarketplaceEbayUS.EbayCode())
	require.Equal(t, "https://api.ebay.co.uk/sell", MarketplaceEbayUK.Route())
	require.Equal(t, "https://api.ebay.com/sell", MarketplaceID("").OrDefault().Route())
}

func TestMarketplaceJSONDefaultsToUS(t *testing.T) {
	var m MarketplaceID
	require.NoError(t, json.Unmarshal([]byte(`""`), &m))
	require.Equal(t, MarketplaceEbayUS, m)

	require.Error(t, json.Unmarshal([]byte(`"EBAY_XX"`), &m))
}

func TestListingRequestDecode(t *testing.T) {
	var raw = `{
		"images_source": ["https://example.com/a.jpg"],
		"sku": "test-sku-001",
		"merchant_location_key": "loc-1",
		"fulfillment_policy_id": "fulfill-123",
		"payment_policy_id": "payment-123",
		"return_policy_id": "return-123",
		"marketplace": "EBAY_US",
		"dry_run": true,
		"overrides": {"resolved_images": ["https://a/1"]}
	}`
	var request ListingRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &request))
	require.Equal(t, "test-sku-001", request.SKU)
	require.True(t, request.DryRun)
	require.NotNil(t, request.Overrides)
	require.Equal(t, []string{"https://a/1"}, request.Overrides.ResolvedImages)
}
