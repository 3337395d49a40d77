package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rossjameslee/hermes-api-demo/ebay"
	"github.com/rossjameslee/hermes-api-demo/llm"
	"github.com/rossjameslee/hermes-api-demo/models"
	"github.com/rossjameslee/hermes-api-demo/supabase"
)

// sellAPIFake scripts the inventory and offer endpoints of the sell API.
type sellAPIFake struct {
	createStatus   int
	updateFailures int32

	createCalls   atomic.Int32
	updateCalls   atomic.Int32
	withdrawCalls atomic.Int32
	publishCalls  atomic.Int32
}

func (f *sellAPIFake) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var path = r.URL.Path
		switch {
		case path == "/identity/v1/oauth2/token":
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "user-token-1"})
		case r.Method == http.MethodPut && strings.HasPrefix(path, "/sell/inventory/v1/inventory_item/"):
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPut && strings.HasPrefix(path, "/sell/inventory/v1/location/"):
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost && path == "/sell/inventory/v1/offer":
			f.createCalls.Add(1)
			if f.createStatus == http.StatusConflict {
				w.WriteHeader(http.StatusConflict)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"offerId": "OFFER-9"})
		case r.Method == http.MethodGet && path == "/sell/inventory/v1/offer":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"offers": []map[string]string{
					{"offerId": "OFFER-2", "marketplaceId": "EBAY_GB"},
					{"offerId": "OFFER-1", "marketplaceId": "EBAY_US"},
				},
			})
		case r.Method == http.MethodPut && strings.HasPrefix(path, "/sell/inventory/v1/offer/"):
			if f.updateCalls.Add(1) <= atomic.LoadInt32(&f.updateFailures) {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost && strings.HasSuffix(path, "/withdraw"):
			f.withdrawCalls.Add(1)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && strings.HasSuffix(path, "/publish"):
			f.publishCalls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]string{"listingId": "110553344556"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func networkPipeline(server *httptest.Server) *Pipeline {
	var client = ebay.NewClient(server.Client(), "SANDBOX", "app-1", "cert-1", "0")
	client.Root = server.URL
	return &Pipeline{
		Config:         DefaultConfig(),
		LLM:            llm.NewClient(http.DefaultClient, llm.Config{}),
		Ebay:           client,
		RefreshToken:   "refresh-1",
		NetworkEnabled: true,
	}
}

func TestPublishOfferCreateSucceeds(t *testing.T) {
	var fake = &sellAPIFake{createStatus: http.StatusOK}
	var server = httptest.NewServer(fake.handler())
	defer server.Close()

	response, err := networkPipeline(server).Run(context.Background(), baseRequest(), nil)
	require.NoError(t, err)
	require.Equal(t, "110553344556", response.ListingID)
	require.EqualValues(t, 1, fake.createCalls.Load())
	require.EqualValues(t, 0, fake.updateCalls.Load())

	publish := findStage(t, response.Stages, "publish_offer")
	require.Equal(t, "OFFER-9", publish.Output["offer_id"])
	require.Equal(t, "110553344556", publish.Output["listing_id"])
}

func TestPublishOfferReconcilesConflict(t *testing.T) {
	var fake = &sellAPIFake{createStatus: http.StatusConflict}
	var server = httptest.NewServer(fake.handler())
	defer server.Close()

	response, err := networkPipeline(server).Run(context.Background(), baseRequest(), nil)
	require.NoError(t, err)
	require.Equal(t, "110553344556", response.ListingID)

	// The EBAY_US offer is preferred over the first (EBAY_GB) entry.
	publish := findStage(t, response.Stages, "publish_offer")
	require.Equal(t, "OFFER-1", publish.Output["offer_id"])

	require.EqualValues(t, 1, fake.createCalls.Load())
	require.EqualValues(t, 1, fake.updateCalls.Load())
	require.EqualValues(t, 0, fake.withdrawCalls.Load())
	require.EqualValues(t, 1, fake.publishCalls.Load())
}

func TestPublishOfferWithdrawRetry(t *testing.T) {
	var fake = &sellAPIFake{createStatus: http.StatusConflict, updateFailures: 1}
	var server = httptest.NewServer(fake.handler())
	defer server.Close()

	response, err := networkPipeline(server).Run(context.Background(), baseRequest(), nil)
	require.NoError(t, err)
	require.Equal(t, "110553344556", response.ListingID)

	require.EqualValues(t, 2, fake.updateCalls.Load())
	require.EqualValues(t, 1, fake.withdrawCalls.Load())
	require.EqualValues(t, 1, fake.publishCalls.Load())
}

func TestRunRequiresRefreshTokenOnline(t *testing.T) {
	var fake = &sellAPIFake{createStatus: http.StatusOK}
	var server = httptest.NewServer(fake.handler())
	defer server.Close()

	var p = networkPipeline(server)
	p.RefreshToken = ""
	_, err := p.Run(context.Background(), baseRequest(), nil)
	require.Error(t, err)
	perr := AsError(err, "run")
	require.Equal(t, "ebay_auth", perr.Stage)
	require.Equal(t, KindInternal, perr.Kind)
}

func TestResolveRuntimeConfigPrefersTenantValues(t *testing.T) {
	var p = offlinePipeline()
	var cfg = &supabase.EbayOrgConfig{
		MerchantLocationKey: "tenant-loc",
		FulfillmentPolicyID: "tenant-fulfill",
		Marketplace:         "EBAY_GB",
	}

	runtime, err := p.resolveRuntimeConfig(baseRequest(), cfg)
	require.NoError(t, err)
	require.Equal(t, "tenant-loc", runtime.MerchantLocationKey)
	require.Equal(t, "tenant-fulfill", runtime.Policies.FulfillmentPolicyID)
	// Fields the tenant config leaves blank fall back to the request.
	require.Equal(t, "payment-1", runtime.Policies.PaymentPolicyID)
	require.Equal(t, models.MarketplaceEbayUK, runtime.Marketplace)
}

func TestResolveRuntimeConfigRejectsEmptyMergedField(t *testing.T) {
	var p = offlinePipeline()
	var request = baseRequest()
	request.ReturnPolicyID = "  "

	_, err := p.resolveRuntimeConfig(request, nil)
	require.Error(t, err)
	perr := AsError(err, "run")
	require.Equal(t, "ebay_config", perr.Stage)
	require.Equal(t, "missing_return_policy_id", perr.Detail)
}

func TestLocationFromConfigRequiresCompleteAddress(t *testing.T) {
	require.Nil(t, locationFromConfig(nil))
	require.Nil(t, locationFromConfig(&supabase.EbayOrgConfig{LocationName: "HQ", City: "Austin"}))

	var cfg = &supabase.EbayOrgConfig{
		LocationName:    "HQ",
		AddressLine1:    "100 Congress Ave",
		City:            "Austin",
		StateOrProvince: "TX",
		PostalCode:      "78701",
		Country:         "US",
	}
	location := locationFromConfig(cfg)
	require.NotNil(t, location)
	require.Equal(t, "HQ", location.Name)
	require.Equal(t, "78701", location.PostalCode)
}
