package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rossjameslee/hermes-api-demo/ebay"
	"github.com/rossjameslee/hermes-api-demo/hsuf"
	"github.com/rossjameslee/hermes-api-demo/llm"
	"github.com/rossjameslee/hermes-api-demo/models"
)

// Synthetic per-stage pauses model wall-clock jitter so transcripts carry
// non-zero elapsed times even on the offline path.
const (
	pauseResolveImages    = 18 * time.Millisecond
	pauseSelectCategory   = 22 * time.Millisecond
	pauseFetchTaxonomy    = 25 * time.Millisecond
	pauseAcquireToken     = 12 * time.Millisecond
	pausePrepareCondition = 10 * time.Millisecond
	pauseExtractProduct   = 40 * time.Millisecond
	pauseBuildListing     = 28 * time.Millisecond
	pausePushInventory    = 15 * time.Millisecond
	pausePublishOffer     = 20 * time.Millisecond
)

func shortPause(ctx context.Context, d time.Duration) {
	var timer = time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// ResolveImages expands the image source into a validated, deduplicated URL
// list: split single-string input on delimiters, trim, optionally append the
// demo signature, then enforce count, scheme, and allowlist rules.
func ResolveImages(ctx context.Context, request *models.ListingRequest, maxImages int, allowlist []string) ([]string, map[string]any, error) {
	shortPause(ctx, pauseResolveImages)

	var resolved []string
	if request.ImagesSource.IsMultiple() {
		for _, value := range request.ImagesSource.Multiple {
			resolved = append(resolved, tokenize(value)...)
		}
	} else {
		resolved = tokenize(request.ImagesSource.Single)
	}

	var cleaned []string
	for _, entry := range resolved {
		if entry = strings.TrimSpace(entry); entry != "" {
			cleaned = append(cleaned, entry)
		}
	}
	resolved = cleaned

	if request.UseSignedURLs {
		for i, entry := range resolved {
			resolved[i] = addSignature(entry)
		}
	}

	resolved = deduplicate(resolved)

	if len(resolved) > maxImages {
		return nil, nil, InvalidInput("resolve_images", "too_many_images")
	}
	if len(resolved) == 0 {
		return nil, nil, InvalidInput("resolve_images", "no images provided")
	}

	for _, raw := range resolved {
		parsed, err := url.Parse(raw)
		if err != nil {
			return nil, nil, InvalidInput("resolve_images", "invalid_image_url: %s", raw)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return nil, nil, InvalidInput("resolve_images", "unsupported_url_scheme: %s", raw)
		}
		if len(allowlist) > 0 {
			if host := parsed.Hostname(); host != "" && !hostAllowed(host, allowlist) {
				return nil, nil, InvalidInput("resolve_images", "domain_not_allowed: %s", host)
			}
		}
	}

	var preview = resolved
	if len(preview) > 4 {
		preview = preview[:4]
	}
	return resolved, map[string]any{
		"count":           len(resolved),
		"preview":         preview,
		"use_signed_urls": request.UseSignedURLs,
	}, nil
}

// SelectCategory picks categories[seed mod len] and derives a confidence from
// the seed: 0.55 + (seed mod 40)/100, capped at 0.95, rounded to two
// decimals, clamped to [0, 0.99].
func SelectCategory(ctx context.Context, request *models.ListingRequest, images []string, categories []CategoryDefinition, seed uint64) (*CategorySelection, map[string]any, error) {
	shortPause(ctx, pauseSelectCategory)
	if len(categories) == 0 {
		return nil, nil, Internal("select_category", "no categories configured")
	}

	var idx = int(seed % uint64(len(categories)))
	var category = categories[idx]

	var confidence = 0.55 + float64(seed%40)/100
	if confidence > 0.95 {
		confidence = 0.95
	}
	confidence = RoundConfidence(confidence)

	var selection = &CategorySelection{
		ID:         category.ID,
		TreeID:     category.TreeID,
		Label:      category.Label,
		Confidence: confidence,
		Rationale:  fmt.Sprintf("sku signal `%s` + image hash matched `%s`", request.SKU, category.Narrative),
	}

	var alternatives []map[string]any
	for pos, item := range categories {
		if pos == idx || len(alternatives) == 2 {
			continue
		}
		alternatives = append(alternatives, map[string]any{
			"id":       item.ID,
			"label":    item.Label,
			"keywords": item.Keywords,
		})
	}

	return selection, map[string]any{
		"selected":        selection,
		"alternatives":    alternatives,
		"image_signature": firstOrNil(images),
	}, nil
}

// RoundConfidence rounds to two decimals and clamps to [0, 0.99].
func RoundConfidence(confidence float64) float64 {
	var rounded = float64(int(confidence*100+0.5)) / 100
	if rounded < 0 {
		return 0
	}
	if rounded > 0.99 {
		return 0.99
	}
	return rounded
}

// FetchTaxonomy synthesizes the deterministic aspect set for the selected
// category: Brand and Color required, Condition optional, plus
// BatteryIncluded when the label mentions Electronics. Required aspects are
// SELECTION_ONLY; all carry MULTI cardinality. The production path calling
// the taxonomy endpoint lives in ebay.FetchCategoryAspects.
func FetchTaxonomy(ctx context.Context, selection *CategorySelection) (*TaxonomySpec, map[string]any, error) {
	shortPause(ctx, pauseFetchTaxonomy)

	var aspects = []TaxonomyAspect{
		{Name: "Brand", Required: true, Samples: []string{"Hermes Labs", "Demo Labs"}},
		{Name: "Color", Required: true, Samples: []string{"Black", "White", "Sand"}},
		{Name: "Condition", Required: false, Samples: []string{"New", "Used"}},
	}
	if strings.Contains(selection.Label, "Electronics") {
		aspects = append(aspects, TaxonomyAspect{
			Name: "BatteryIncluded", Required: false, Samples: []string{"Yes", "No"},
		})
	}

	var raw ebay.TaxonomyResponse
	for _, aspect := range aspects {
		var values = make([]ebay.AspectValue, 0, len(aspect.Samples))
		for _, sample := range aspect.Samples {
			values = append(values, ebay.AspectValue{LocalizedValue: sample})
		}
		var mode = "FREE_TEXT"
		if aspect.Required {
			mode = "SELECTION_ONLY"
		}
		raw.Aspects = append(raw.Aspects, ebay.Aspect{
			LocalizedAspectName: aspect.Name,
			AspectValues:        values,
			AspectConstraint: &ebay.AspectConstraint{
				AspectMode:              mode,
				AspectRequired:          aspect.Required,
				ItemToAspectCardinality: "MULTI",
			},
		})
	}

	var spec = &TaxonomySpec{
		CategoryID: selection.ID,
		TreeID:     selection.TreeID,
		Aspects:    aspects,
		Raw:        &raw,
	}
	var samples = aspects
	if len(samples) > 3 {
		samples = samples[:3]
	}
	return spec, map[string]any{
		"category_id":    spec.CategoryID,
		"aspect_count":   len(spec.Aspects),
		"sample_aspects": samples,
	}, nil
}

// AcquireUserToken mints the opaque demo credential.
func AcquireUserToken(ctx context.Context) (*DemoCredentials, map[string]any, error) {
	shortPause(ctx, pauseAcquireToken)
	var token = "demo_" + uuid.NewString()
	return &DemoCredentials{Token: token, ExpiresIn: 3600}, map[string]any{
		"token_preview":      previewToken(token),
		"scopes":             ebayUserScopes,
		"expires_in_seconds": 3600,
	}, nil
}

// PrepareConditions picks the allowed condition codes by label keyword.
func PrepareConditions(ctx context.Context, selection *CategorySelection) (*ConditionBundle, map[string]any, error) {
	shortPause(ctx, pausePrepareCondition)

	var allowed []string
	var label = strings.ToLower(selection.Label)
	switch {
	case strings.Contains(label, "shoe"):
		allowed = []string{"NEW_IN_BOX", "USED_LIKE_NEW", "USED_GOOD", "USED_FAIR"}
	case strings.Contains(label, "collectible"):
		allowed = []string{"NEW", "UNOPENED", "DISPLAY_ONLY", "USED"}
	default:
		allowed = []string{"NEW", "USED_LIKE_NEW", "USED_GOOD", "USED"}
	}
	if len(allowed) == 0 {
		allowed = []string{"USED"}
	}

	var bundle = &ConditionBundle{Allowed: allowed, DefaultCondition: allowed[0]}
	return bundle, map[string]any{
		"allowed": bundle.Allowed,
		"default": bundle.DefaultCondition,
	}, nil
}

// ExtractProduct runs LLM inference over the image set, substituting the
// deterministic fallback product when inference fails or cannot be parsed.
func ExtractProduct(ctx context.Context, request *models.ListingRequest, images []string, seed uint64, client *llm.Client) (*hsuf.Product, map[string]any, error) {
	shortPause(ctx, pauseExtractProduct)
	product, err := hsuf.InferProduct(ctx, client, request.SKU, images)
	if err != nil {
		log.WithFields(log.Fields{
			"sku": request.SKU,
			"err": err,
		}).Warn("product inference fell back to synthetic record")
		product = hsuf.FallbackProduct(request.SKU, images)
	}
	return product, map[string]any{
		"name":   product.Name,
		"brand":  product.BrandName(),
		"color":  product.Color,
		"images": len(images),
	}, nil
}

func (p *Pipeline) buildListing(ctx context.Context, request *models.ListingRequest, product *hsuf.Product, taxonomy *TaxonomySpec, conditions *ConditionBundle, runtime *runtimeConfig) (*ListingPlan, map[string]any, error) {
	shortPause(ctx, pauseBuildListing)

	draft, err := hsuf.BuildListingDraft(product, hsuf.ListingContext{
		Taxonomy:        taxonomy.Raw,
		CategoryID:      taxonomy.CategoryID,
		DefaultCurrency: p.defaultCurrency(),
	})
	if err != nil {
		return nil, nil, Internal("build_listing", "%s", err.Error())
	}
	var pkg = hsuf.EstimatePackage(product)

	var bullets = BulletPoints(product)
	description, _ := GenerateDescription(ctx, p.LLM, draft.Title, bullets)

	var listing = &ListingPlan{
		SKU:                 request.SKU,
		Title:               draft.Title,
		Price:               draft.Price,
		Currency:            draft.Currency,
		Condition:           conditions.DefaultCondition,
		Description:         description,
		Marketplace:         runtime.Marketplace,
		MerchantLocationKey: runtime.MerchantLocationKey,
		CategoryID:          draft.CategoryID,
		Media:               draft.Images,
		Policies:            runtime.Policies,
		Aspects:             draft.Aspects,
		Package:             pkg,
	}

	return listing, map[string]any{
		"title":        listing.Title,
		"price":        listing.Price,
		"currency":     listing.Currency,
		"condition":    listing.Condition,
		"aspect_count": len(listing.Aspects),
	}, nil
}

// BulletPoints derives up to four highlight lines from the product record.
func BulletPoints(product *hsuf.Product) []string {
	var bullets []string
	if brand := product.BrandName(); brand != "" {
		bullets = append(bullets, fmt.Sprintf("Authentic %s craftsmanship", brand))
	}
	if product.Color != "" {
		bullets = append(bullets, fmt.Sprintf("Distinctive %s finish", product.Color))
	}
	if product.Material != "" {
		bullets = append(bullets, fmt.Sprintf("Premium %s materials", product.Material))
	}
	if product.Description != "" {
		var first = product.Description
		if i := strings.IndexByte(first, '\n'); i >= 0 {
			first = first[:i]
		}
		bullets = append(bullets, first)
	}
	if len(bullets) == 0 {
		bullets = append(bullets, "LLM-enriched listing details")
	}
	if len(bullets) > 4 {
		bullets = bullets[:4]
	}
	return bullets
}

// GenerateDescription asks the gateway for a polished description, reporting
// whether the templated fallback had to be used instead.
func GenerateDescription(ctx context.Context, client *llm.Client, title string, bullets []string) (string, bool) {
	bulletsJSON, _ := json.Marshal(bullets)
	var prompt = fmt.Sprintf(
		"Generate a compelling, policy-compliant eBay listing description. Title: %s. Bullet points: %s.",
		title, bulletsJSON,
	)
	resp, err := client.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}})
	if err == nil {
		return resp.Text, false
	}
	log.WithField("err", err).Warn("description generation fell back to template")

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\nHighlights:\n")
	for _, bullet := range bullets {
		fmt.Fprintf(&b, "- %s\n", bullet)
	}
	b.WriteString("\nAuto-generated demo description. Details may be approximations.")
	return b.String(), true
}

func (p *Pipeline) pushInventory(ctx context.Context, request *models.ListingRequest, listing *ListingPlan, accessToken string, location *LocationMetadata) (map[string]any, error) {
	shortPause(ctx, pausePushInventory)

	var inventoryRequest = inventoryRequestFromListing(listing)
	if accessToken != "" {
		if location != nil && location.AddressLine1 != "" {
			var payload = &ebay.InventoryLocationRequest{
				MerchantLocationStatus: "ENABLED",
				LocationTypes:          []string{"WAREHOUSE"},
				Name:                   location.Name,
				Location: ebay.LocationDetails{
					Address: ebay.LocationAddress{
						AddressLine1:    location.AddressLine1,
						AddressLine2:    location.AddressLine2,
						City:            location.City,
						StateOrProvince: location.StateOrProvince,
						PostalCode:      location.PostalCode,
						Country:         location.Country,
					},
					GeoCoordinates: &ebay.LocationGeo{
						Latitude:  location.Latitude,
						Longitude: location.Longitude,
					},
				},
			}
			if err := p.Ebay.UpsertInventoryLocation(ctx, listing.MerchantLocationKey, payload, accessToken); err != nil {
				log.WithFields(log.Fields{
					"location": listing.MerchantLocationKey,
					"err":      err,
				}).Warn("inventory location upsert failed")
			}
		}
		if err := p.Ebay.UpsertInventoryItem(ctx, request.SKU, inventoryRequest, accessToken); err != nil {
			return nil, Internal("push_inventory", "%s", err.Error())
		}
	}

	var receipt = InventoryReceipt{
		SKU:      listing.SKU,
		Location: listing.MerchantLocationKey,
		Quantity: 1,
		Package:  "DEFAULT_SHOES",
		Status:   "UPSERTED",
	}
	return map[string]any{
		"sku":               receipt.SKU,
		"location":          receipt.Location,
		"status":            receipt.Status,
		"media_attached":    len(listing.Media),
		"inventory_request": inventoryRequest,
	}, nil
}

func (p *Pipeline) publishOffer(ctx context.Context, request *models.ListingRequest, listing *ListingPlan, selection *CategorySelection, token *DemoCredentials, accessToken string) (*OfferResult, map[string]any, error) {
	shortPause(ctx, pausePublishOffer)

	createReq, updateReq := buildOfferRequests(listing)

	var listingID string
	var offerID any
	if accessToken != "" {
		newOfferID, err := p.Ebay.CreateOffer(ctx, createReq, accessToken)
		switch {
		case err == nil:
			published, err := p.Ebay.PublishOffer(ctx, newOfferID, accessToken)
			if err != nil {
				return nil, nil, Internal("publish_offer", "%s", err.Error())
			}
			if published == "" {
				published = fallbackListingID()
			}
			listingID, offerID = published, newOfferID
		case errors.Is(err, ebay.ErrEntityExists):
			reconciledListing, reconciledOffer, rerr := p.reconcileExistingOffer(ctx, createReq, updateReq, accessToken)
			if rerr != nil {
				return nil, nil, rerr
			}
			listingID, offerID = reconciledListing, reconciledOffer
		default:
			return nil, nil, Internal("publish_offer", "%s", err.Error())
		}
	} else {
		listingID = fallbackListingID()
	}

	var id = listingID
	if len(id) > 12 {
		id = id[:12]
	}
	var offer = &OfferResult{
		ListingID:  listingID,
		Route:      request.Marketplace.OrDefault().Route() + "/offers",
		PreviewURL: "https://sandbox.ebay.com/itm/" + id,
	}
	return offer, map[string]any{
		"listing_id":    offer.ListingID,
		"category":      selection.Label,
		"token_preview": previewToken(token.Token),
		"title":         listing.Title,
		"media_count":   len(listing.Media),
		"create_offer":  createReq,
		"update_offer":  updateReq,
		"offer_id":      offerID,
	}, nil
}

// reconcileExistingOffer converges a create conflict to a single published
// offer: look up offers by SKU, prefer the marketplace match, update it
// (withdrawing and retrying the update once on failure), then publish.
func (p *Pipeline) reconcileExistingOffer(ctx context.Context, createReq *ebay.CreateOfferRequest, updateReq *ebay.UpdateOfferRequest, accessToken string) (string, string, error) {
	offers, err := p.Ebay.GetOffersBySKU(ctx, createReq.SKU, accessToken)
	if err != nil {
		return "", "", Internal("publish_offer", "%s", err.Error())
	}
	var candidate string
	for _, offer := range offers {
		if offer.MarketplaceID == createReq.MarketplaceID {
			candidate = offer.OfferID
			break
		}
	}
	if candidate == "" && len(offers) > 0 {
		candidate = offers[0].OfferID
	}
	if candidate == "" {
		return "", "", Internal("publish_offer", "no existing offer found for reconciliation")
	}

	if err := p.Ebay.UpdateOffer(ctx, candidate, updateReq, accessToken); err != nil {
		log.WithFields(log.Fields{
			"offerId": candidate,
			"err":     err,
		}).Warn("offer update failed, withdrawing and retrying")
		if err := p.Ebay.WithdrawOffer(ctx, candidate, accessToken); err != nil {
			return "", "", Internal("publish_offer", "%s", err.Error())
		}
		if err := p.Ebay.UpdateOffer(ctx, candidate, updateReq, accessToken); err != nil {
			return "", "", Internal("publish_offer", "%s", err.Error())
		}
	}

	listingID, err := p.Ebay.PublishOffer(ctx, candidate, accessToken)
	if err != nil {
		return "", "", Internal("publish_offer", "%s", err.Error())
	}
	if listingID == "" {
		listingID = fallbackListingID()
	}
	return listingID, candidate, nil
}

func (p *Pipeline) defaultCurrency() string {
	if p.Config.DefaultCurrency != "" {
		return p.Config.DefaultCurrency
	}
	return "USD"
}

func inventoryRequestFromListing(listing *ListingPlan) *ebay.InventoryItemRequest {
	var aspects map[string][]string
	if len(listing.Aspects) > 0 {
		aspects = listing.Aspects
	}
	return &ebay.InventoryItemRequest{
		Availability: ebay.InventoryAvailability{
			ShipToLocationAvailability: ebay.ShipToLocationAvailability{Quantity: 1},
		},
		Product: ebay.InventoryProduct{
			Title:       listing.Title,
			Description: listing.Description,
			Aspects:     aspects,
			ImageURLs:   listing.Media,
		},
		PackageWeightAndSize: listing.Package,
	}
}

func buildOfferRequests(listing *ListingPlan) (*ebay.CreateOfferRequest, *ebay.UpdateOfferRequest) {
	var pricing = ebay.PricingSummary{
		Price: ebay.PriceFromAmount(listing.Price, listing.Currency),
	}
	var create = &ebay.CreateOfferRequest{
		SKU:                  listing.SKU,
		MarketplaceID:        listing.Marketplace.EbayCode(),
		Format:               "FIXED_PRICE",
		CategoryID:           listing.CategoryID,
		ListingDescription:   listing.Description,
		PricingSummary:       pricing,
		AvailableQuantity:    1,
		MerchantLocationKey:  listing.MerchantLocationKey,
		ListingPolicies:      listing.Policies,
		Aspects:              listing.Aspects,
		PackageWeightAndSize: listing.Package,
		ImageURLs:            listing.Media,
	}
	var update = &ebay.UpdateOfferRequest{
		Format:               "FIXED_PRICE",
		CategoryID:           listing.CategoryID,
		ListingDescription:   listing.Description,
		PricingSummary:       pricing,
		AvailableQuantity:    1,
		ListingPolicies:      listing.Policies,
		MerchantLocationKey:  listing.MerchantLocationKey,
		PackageWeightAndSize: listing.Package,
	}
	return create, update
}

func tokenize(value string) []string {
	if !strings.ContainsAny(value, "\n,;|") {
		return []string{strings.TrimSpace(value)}
	}
	var out []string
	for _, entry := range strings.FieldsFunc(value, func(r rune) bool {
		return r == '\n' || r == ',' || r == ';' || r == '|'
	}) {
		if entry = strings.TrimSpace(entry); entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

func deduplicate(values []string) []string {
	var seen = make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func addSignature(raw string) string {
	switch {
	case strings.Contains(raw, "signature=demo"):
		return raw
	case strings.Contains(raw, "?"):
		return raw + "&signature=demo"
	default:
		return raw + "?signature=demo"
	}
}

func hostAllowed(host string, allowlist []string) bool {
	host = strings.ToLower(host)
	for _, allowed := range allowlist {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
