// Package pipeline implements the staged listing-creation state machine:
// image resolution, category classification, taxonomy lookup, credential
// acquisition, condition preparation, product extraction, listing assembly,
// inventory push, and offer publication. Every executed stage emits one
// StageReport; the ordered transcript is returned with the response.
package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rossjameslee/hermes-api-demo/auth"
	"github.com/rossjameslee/hermes-api-demo/ebay"
	"github.com/rossjameslee/hermes-api-demo/hsuf"
	"github.com/rossjameslee/hermes-api-demo/llm"
	"github.com/rossjameslee/hermes-api-demo/metrics"
	"github.com/rossjameslee/hermes-api-demo/models"
	"github.com/rossjameslee/hermes-api-demo/supabase"
)

// Config is the immutable pipeline configuration, built once at startup.
type Config struct {
	Categories      []CategoryDefinition
	MaxImages       int
	ImageAllowlist  []string
	DefaultCurrency string
}

// DefaultConfig uses the built-in category pool, six images, no allowlist.
func DefaultConfig() Config {
	return Config{
		Categories:      CategoryPool,
		MaxImages:       6,
		DefaultCurrency: "USD",
	}
}

// Pipeline is safe for concurrent use; all fields are immutable after
// construction.
type Pipeline struct {
	Config         Config
	LLM            *llm.Client
	Ebay           *ebay.Client
	Supabase       *supabase.Client
	RefreshToken   string
	NetworkEnabled bool
}

// CategoryDefinition is one entry of the classification pool.
type CategoryDefinition struct {
	ID        string
	TreeID    string
	Label     string
	Narrative string
	Keywords  []string
}

// CategoryPool is the default classification pool.
var CategoryPool = []CategoryDefinition{
	{
		ID: "11450", TreeID: "0", Label: "Clothing, Shoes & Accessories",
		Narrative: "image cues show lifestyle apparel and footwear",
		Keywords:  []string{"shoe", "sneaker", "apparel"},
	},
	{
		ID: "31387", TreeID: "0", Label: "Consumer Electronics",
		Narrative: "close-up product shots with polished surfaces",
		Keywords:  []string{"headphones", "camera", "electronics"},
	},
	{
		ID: "261178", TreeID: "0", Label: "Collectibles",
		Narrative: "studio backgrounds and creative props",
		Keywords:  []string{"collectible", "vintage", "retro"},
	},
	{
		ID: "281", TreeID: "0", Label: "Motors Parts & Accessories",
		Narrative: "detail shots of textured materials and components",
		Keywords:  []string{"auto", "motors", "component"},
	},
	{
		ID: "293", TreeID: "0", Label: "Health & Beauty",
		Narrative: "soft lighting and product laydowns",
		Keywords:  []string{"beauty", "wellness", "care"},
	},
}

var ebayUserScopes = []string{
	"https://api.ebay.com/oauth/api_scope/sell.inventory",
	"https://api.ebay.com/oauth/api_scope/sell.account",
}

// CategorySelection is the classification result.
type CategorySelection struct {
	ID         string  `json:"id"`
	TreeID     string  `json:"tree_id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// TaxonomySpec carries both the simplified aspect view and the raw taxonomy
// retained for the downstream transform.
type TaxonomySpec struct {
	CategoryID string           `json:"category_id"`
	TreeID     string           `json:"tree_id"`
	Aspects    []TaxonomyAspect `json:"aspects"`
	Raw        *ebay.TaxonomyResponse `json:"-"`
}

// TaxonomyAspect is the simplified aspect view.
type TaxonomyAspect struct {
	Name     string   `json:"name"`
	Required bool     `json:"required"`
	Samples  []string `json:"samples"`
}

// DemoCredentials is the opaque user credential of the reference path.
type DemoCredentials struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// ConditionBundle is the allowed condition codes for the category.
type ConditionBundle struct {
	Allowed          []string `json:"allowed"`
	DefaultCondition string   `json:"default_condition"`
}

// ListingPlan is the fully assembled listing payload.
type ListingPlan struct {
	SKU                 string               `json:"sku"`
	Title               string               `json:"title"`
	Price               float64              `json:"price"`
	Currency            string               `json:"currency"`
	Condition           string               `json:"condition"`
	Description         string               `json:"description"`
	Marketplace         models.MarketplaceID `json:"marketplace"`
	MerchantLocationKey string               `json:"merchant_location_key"`
	CategoryID          string               `json:"category_id"`
	Media               []string             `json:"media"`
	Policies            ebay.ListingPolicies `json:"policies"`
	Aspects             map[string][]string  `json:"aspects"`
	Package             *ebay.PackagePayload `json:"package,omitempty"`
}

// InventoryReceipt summarizes the inventory push.
type InventoryReceipt struct {
	SKU      string `json:"sku"`
	Location string `json:"location"`
	Quantity int    `json:"quantity"`
	Package  string `json:"package"`
	Status   string `json:"status"`
}

// OfferResult is the publication outcome.
type OfferResult struct {
	ListingID  string `json:"listing_id"`
	Route      string `json:"route"`
	PreviewURL string `json:"preview_url"`
}

// Run executes the staged pipeline for one request. The transcript is
// returned on success; on failure the accumulated reports are logged and the
// error alone reaches the caller.
func (p *Pipeline) Run(ctx context.Context, request *models.ListingRequest, authCtx *auth.Context) (*models.ListingResponse, error) {
	var stages []models.StageReport
	var orgConfig = p.lookupOrgConfig(ctx, authCtx)

	images, err := p.resolveImagesStage(ctx, request, &stages)
	if err != nil {
		logAbandonedRun(request, stages, err)
		return nil, err
	}

	var seed = ComputeSeed(request, images)

	selection, err := p.selectCategoryStage(ctx, request, images, seed, &stages)
	if err != nil {
		logAbandonedRun(request, stages, err)
		return nil, err
	}

	var taxonomy *TaxonomySpec
	if err := p.capture("fetch_taxonomy", &stages, func() (map[string]any, error) {
		var out map[string]any
		taxonomy, out, err = FetchTaxonomy(ctx, selection)
		return out, err
	}); err != nil {
		logAbandonedRun(request, stages, err)
		return nil, err
	}

	var token *DemoCredentials
	if err := p.capture("acquire_user_token", &stages, func() (map[string]any, error) {
		var out map[string]any
		token, out, err = AcquireUserToken(ctx)
		return out, err
	}); err != nil {
		logAbandonedRun(request, stages, err)
		return nil, err
	}

	var conditions *ConditionBundle
	if err := p.capture("prepare_conditions", &stages, func() (map[string]any, error) {
		var out map[string]any
		conditions, out, err = PrepareConditions(ctx, selection)
		return out, err
	}); err != nil {
		logAbandonedRun(request, stages, err)
		return nil, err
	}

	product, err := p.extractProductStage(ctx, request, images, seed, &stages)
	if err != nil {
		logAbandonedRun(request, stages, err)
		return nil, err
	}

	runtime, err := p.resolveRuntimeConfig(request, orgConfig)
	if err != nil {
		logAbandonedRun(request, stages, err)
		return nil, err
	}

	var listing *ListingPlan
	if err := p.capture("build_listing", &stages, func() (map[string]any, error) {
		var out map[string]any
		listing, out, err = p.buildListing(ctx, request, product, taxonomy, conditions, runtime)
		return out, err
	}); err != nil {
		logAbandonedRun(request, stages, err)
		return nil, err
	}

	if request.DryRun {
		return &models.ListingResponse{
			ListingID: "PREVIEW-" + simpleUUID(),
			Stages:    stages,
		}, nil
	}

	var accessToken string
	if p.NetworkEnabled {
		accessToken, err = p.fetchEbayToken(ctx)
		if err != nil {
			logAbandonedRun(request, stages, err)
			return nil, err
		}
	}

	if err := p.capture("push_inventory", &stages, func() (map[string]any, error) {
		return p.pushInventory(ctx, request, listing, accessToken, runtime.Location)
	}); err != nil {
		logAbandonedRun(request, stages, err)
		return nil, err
	}

	var offer *OfferResult
	if err := p.capture("publish_offer", &stages, func() (map[string]any, error) {
		var out map[string]any
		offer, out, err = p.publishOffer(ctx, request, listing, selection, token, accessToken)
		return out, err
	}); err != nil {
		logAbandonedRun(request, stages, err)
		return nil, err
	}

	return &models.ListingResponse{ListingID: offer.ListingID, Stages: stages}, nil
}

// StageResolveImages runs only the image-resolution stage; the granular
// stage endpoints use these wrappers.
func (p *Pipeline) StageResolveImages(ctx context.Context, request *models.ListingRequest) ([]string, error) {
	images, _, err := ResolveImages(ctx, request, p.maxImages(), p.Config.ImageAllowlist)
	return images, err
}

// StageSelectCategory runs only the classification stage, returning the
// selection plus the alternatives emitted in the stage output.
func (p *Pipeline) StageSelectCategory(ctx context.Context, request *models.ListingRequest, images []string) (*CategorySelection, []map[string]any, error) {
	var seed = ComputeSeed(request, images)
	selection, output, err := SelectCategory(ctx, request, images, p.Config.Categories, seed)
	if err != nil {
		return nil, nil, err
	}
	alternatives, _ := output["alternatives"].([]map[string]any)
	return selection, alternatives, nil
}

// StageExtractProduct runs only the product-extraction stage.
func (p *Pipeline) StageExtractProduct(ctx context.Context, request *models.ListingRequest, images []string) (*hsuf.Product, error) {
	product, _, err := ExtractProduct(ctx, request, images, 0, p.LLM)
	return product, err
}

// capture runs one stage body, timing it and appending its report.
func (p *Pipeline) capture(name string, stages *[]models.StageReport, fn func() (map[string]any, error)) error {
	var started = time.Now()
	output, err := fn()
	if err != nil {
		return err
	}
	var elapsed = time.Since(started)
	metrics.StageElapsed.WithLabelValues(name).Observe(elapsed.Seconds())
	*stages = append(*stages, models.NewStageReport(name, elapsed, output))
	return nil
}

func (p *Pipeline) resolveImagesStage(ctx context.Context, request *models.ListingRequest, stages *[]models.StageReport) ([]string, error) {
	if ov := request.Overrides; ov != nil && ov.ResolvedImages != nil {
		var imgs = ov.ResolvedImages
		if len(imgs) == 0 {
			return nil, InvalidInput("resolve_images", "no images provided")
		}
		if len(imgs) > p.maxImages() {
			return nil, InvalidInput("resolve_images", "too_many_images")
		}
		var preview = imgs
		if len(preview) > 2 {
			preview = preview[:2]
		}
		return imgs, p.capture("resolve_images", stages, func() (map[string]any, error) {
			return map[string]any{
				"count":           len(imgs),
				"preview":         preview,
				"use_signed_urls": request.UseSignedURLs,
				"source":          "override",
			}, nil
		})
	}

	var images []string
	var err = p.capture("resolve_images", stages, func() (map[string]any, error) {
		var out map[string]any
		var innerErr error
		images, out, innerErr = ResolveImages(ctx, request, p.maxImages(), p.Config.ImageAllowlist)
		return out, innerErr
	})
	return images, err
}

func (p *Pipeline) selectCategoryStage(ctx context.Context, request *models.ListingRequest, images []string, seed uint64, stages *[]models.StageReport) (*CategorySelection, error) {
	if ov := request.Overrides; ov != nil && ov.Category != nil {
		var selection = &CategorySelection{
			ID:         ov.Category.ID,
			TreeID:     ov.Category.TreeID,
			Label:      ov.Category.Label,
			Confidence: ov.Category.Confidence,
			Rationale:  ov.Category.Rationale,
		}
		return selection, p.capture("select_category", stages, func() (map[string]any, error) {
			var alternatives []map[string]any
			for _, item := range p.Config.Categories {
				if item.Label == selection.Label || len(alternatives) == 2 {
					continue
				}
				alternatives = append(alternatives, map[string]any{
					"id":       item.ID,
					"label":    item.Label,
					"keywords": item.Keywords,
				})
			}
			return map[string]any{
				"selected":        selection,
				"alternatives":    alternatives,
				"image_signature": firstOrNil(images),
				"source":          "override",
			}, nil
		})
	}

	var selection *CategorySelection
	var err = p.capture("select_category", stages, func() (map[string]any, error) {
		var out map[string]any
		var innerErr error
		selection, out, innerErr = SelectCategory(ctx, request, images, p.Config.Categories, seed)
		return out, innerErr
	})
	return selection, err
}

func (p *Pipeline) extractProductStage(ctx context.Context, request *models.ListingRequest, images []string, seed uint64, stages *[]models.StageReport) (*hsuf.Product, error) {
	if ov := request.Overrides; ov != nil && len(ov.Product) > 0 {
		var product hsuf.Product
		if err := json.Unmarshal(ov.Product, &product); err != nil {
			return nil, InvalidInput("extract_product", "invalid_product_override")
		}
		return &product, p.capture("extract_product", stages, func() (map[string]any, error) {
			return map[string]any{
				"name":   product.Name,
				"brand":  product.BrandName(),
				"color":  product.Color,
				"images": len(images),
				"source": "override",
			}, nil
		})
	}

	var product *hsuf.Product
	var err = p.capture("extract_product", stages, func() (map[string]any, error) {
		var out map[string]any
		var innerErr error
		product, out, innerErr = ExtractProduct(ctx, request, images, seed, p.LLM)
		return out, innerErr
	})
	return product, err
}

func (p *Pipeline) lookupOrgConfig(ctx context.Context, authCtx *auth.Context) *supabase.EbayOrgConfig {
	if authCtx == nil || p.Supabase == nil {
		return nil
	}
	cfg, err := p.Supabase.FetchEbayOrgConfig(ctx, authCtx.OrgID)
	if err != nil {
		log.WithFields(log.Fields{
			"orgId": authCtx.OrgID,
			"err":   err,
		}).Warn("ebay org config lookup failed")
		return nil
	}
	return cfg
}

func (p *Pipeline) fetchEbayToken(ctx context.Context) (string, error) {
	if p.RefreshToken == "" {
		return "", Internal("ebay_auth", "EBAY_REFRESH_TOKEN is not set")
	}
	token, err := p.Ebay.UserAccessTokenFromRefresh(ctx, p.RefreshToken, ebayUserScopes)
	if err != nil {
		return "", Internal("ebay_auth", "%s", err.Error())
	}
	return token, nil
}

func (p *Pipeline) maxImages() int {
	if p.Config.MaxImages >= 1 {
		return p.Config.MaxImages
	}
	return 6
}

func logAbandonedRun(request *models.ListingRequest, stages []models.StageReport, err error) {
	var names = make([]string, 0, len(stages))
	for _, stage := range stages {
		names = append(names, stage.Name)
	}
	log.WithFields(log.Fields{
		"sku":       request.SKU,
		"completed": names,
		"err":       err,
	}).Warn("pipeline run abandoned")
}

// runtimeConfig is the merged view of request fields and tenant config.
type runtimeConfig struct {
	MerchantLocationKey string
	Policies            ebay.ListingPolicies
	Marketplace         models.MarketplaceID
	Location            *LocationMetadata
}

// LocationMetadata is the merchant location sourced from tenant config.
type LocationMetadata struct {
	Name            string
	AddressLine1    string
	AddressLine2    string
	City            string
	StateOrProvince string
	PostalCode      string
	Country         string
	Latitude        string
	Longitude       string
}

// resolveRuntimeConfig prefers tenant-config values over request values and
// rejects empty merged fields.
func (p *Pipeline) resolveRuntimeConfig(request *models.ListingRequest, cfg *supabase.EbayOrgConfig) (*runtimeConfig, error) {
	var pick = func(configValue, requestValue, field string) (string, error) {
		var candidate = requestValue
		if cfg != nil && configValue != "" {
			candidate = configValue
		}
		if strings.TrimSpace(candidate) == "" {
			return "", InvalidInput("ebay_config", "missing_%s", field)
		}
		return candidate, nil
	}
	var configVal = func(get func(*supabase.EbayOrgConfig) string) string {
		if cfg == nil {
			return ""
		}
		return get(cfg)
	}

	locationKey, err := pick(configVal(func(c *supabase.EbayOrgConfig) string { return c.MerchantLocationKey }), request.MerchantLocationKey, "merchant_location_key")
	if err != nil {
		return nil, err
	}
	fulfillment, err := pick(configVal(func(c *supabase.EbayOrgConfig) string { return c.FulfillmentPolicyID }), request.FulfillmentPolicyID, "fulfillment_policy_id")
	if err != nil {
		return nil, err
	}
	payment, err := pick(configVal(func(c *supabase.EbayOrgConfig) string { return c.PaymentPolicyID }), request.PaymentPolicyID, "payment_policy_id")
	if err != nil {
		return nil, err
	}
	ret, err := pick(configVal(func(c *supabase.EbayOrgConfig) string { return c.ReturnPolicyID }), request.ReturnPolicyID, "return_policy_id")
	if err != nil {
		return nil, err
	}

	var marketplace = request.Marketplace.OrDefault()
	if cfg != nil && cfg.Marketplace != "" {
		if parsed, ok := models.ParseMarketplaceID(cfg.Marketplace); ok {
			marketplace = parsed
		}
	}

	return &runtimeConfig{
		MerchantLocationKey: locationKey,
		Policies: ebay.ListingPolicies{
			FulfillmentPolicyID: fulfillment,
			PaymentPolicyID:     payment,
			ReturnPolicyID:      ret,
		},
		Marketplace: marketplace,
		Location:    locationFromConfig(cfg),
	}, nil
}

// locationFromConfig returns nil unless the config carries a complete
// address.
func locationFromConfig(cfg *supabase.EbayOrgConfig) *LocationMetadata {
	if cfg == nil {
		return nil
	}
	for _, required := range []string{cfg.LocationName, cfg.AddressLine1, cfg.City, cfg.StateOrProvince, cfg.PostalCode, cfg.Country} {
		if strings.TrimSpace(required) == "" {
			return nil
		}
	}
	return &LocationMetadata{
		Name:            strings.TrimSpace(cfg.LocationName),
		AddressLine1:    strings.TrimSpace(cfg.AddressLine1),
		AddressLine2:    strings.TrimSpace(cfg.AddressLine2),
		City:            strings.TrimSpace(cfg.City),
		StateOrProvince: strings.TrimSpace(cfg.StateOrProvince),
		PostalCode:      strings.TrimSpace(cfg.PostalCode),
		Country:         strings.TrimSpace(cfg.Country),
		Latitude:        strings.TrimSpace(cfg.Latitude),
		Longitude:       strings.TrimSpace(cfg.Longitude),
	}
}

func simpleUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func fallbackListingID() string {
	return "HER-" + simpleUUID()
}

func firstOrNil(values []string) any {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}

func previewToken(token string) string {
	var runes = []rune(token)
	if len(runes) > 6 {
		runes = runes[:6]
	}
	return string(runes) + "…"
}
