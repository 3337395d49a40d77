package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rossjameslee/hermes-api-demo/auth"
	"github.com/rossjameslee/hermes-api-demo/hsuf"
	"github.com/rossjameslee/hermes-api-demo/metrics"
	"github.com/rossjameslee/hermes-api-demo/models"
	"github.com/rossjameslee/hermes-api-demo/pipeline"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "hermes-api",
	})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	if key := s.config.Auth.OpenAPIKey; key != "" && r.Header.Get("X-Docs-Key") != key {
		writeJSON(w, http.StatusBadRequest, models.APIError{Error: "docs", Detail: "unauthorized"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapiDocument)
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(swaggerHTML))
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("/listings").Inc()
	authCtx, _ := auth.FromContext(r.Context())

	var payload models.ListingRequest
	if !s.decodeListingRequest(w, r, &payload) {
		return
	}
	log.WithFields(log.Fields{
		"orgId":  authCtx.OrgID,
		"apiKey": authCtx.APIKeyID,
	}).Info("listing pipeline invoked")

	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		if cached, ok := s.idempotency.Lookup(r.Context(), key); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
		response, err := s.pipeline.Run(r.Context(), &payload, authCtx)
		if err != nil {
			writePipelineError(w, err)
			return
		}
		body, err := json.Marshal(response)
		if err != nil {
			writePipelineError(w, pipeline.Internal("listings", "%s", err.Error()))
			return
		}
		s.idempotency.Save(r.Context(), key, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	response, err := s.pipeline.Run(r.Context(), &payload, authCtx)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// continueRequest resumes a run with client-supplied overrides; the image
// source is optional because the override may carry resolved images.
type continueRequest struct {
	ImagesSource        *models.ImagesSource      `json:"images_source,omitempty"`
	SKU                 string                    `json:"sku"`
	MerchantLocationKey string                    `json:"merchant_location_key"`
	FulfillmentPolicyID string                    `json:"fulfillment_policy_id"`
	PaymentPolicyID     string                    `json:"payment_policy_id"`
	ReturnPolicyID      string                    `json:"return_policy_id"`
	Marketplace         models.MarketplaceID      `json:"marketplace"`
	Overrides           *models.PipelineOverrides `json:"overrides,omitempty"`
}

func (c *continueRequest) listingRequest() *models.ListingRequest {
	var source models.ImagesSource
	if c.ImagesSource != nil {
		source = *c.ImagesSource
	}
	return &models.ListingRequest{
		ImagesSource:        source,
		SKU:                 c.SKU,
		MerchantLocationKey: c.MerchantLocationKey,
		FulfillmentPolicyID: c.FulfillmentPolicyID,
		PaymentPolicyID:     c.PaymentPolicyID,
		ReturnPolicyID:      c.ReturnPolicyID,
		Marketplace:         c.Marketplace,
		Overrides:           c.Overrides,
	}
}

func (s *Server) handleContinueListing(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("/listings/continue").Inc()
	authCtx, _ := auth.FromContext(r.Context())

	var payload continueRequest
	if !decodeJSON(w, r, &payload) {
		return
	}
	response, err := s.pipeline.Run(r.Context(), payload.listingRequest(), authCtx)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

type enqueueResponse struct {
	JobID string `json:"job_id"`
}

func (s *Server) handleEnqueueListing(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("/jobs/listings").Inc()
	authCtx, _ := auth.FromContext(r.Context())

	var payload models.ListingRequest
	if !s.decodeListingRequest(w, r, &payload) {
		return
	}
	s.enqueue(w, &payload, authCtx)
}

func (s *Server) handleEnqueueContinue(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("/jobs/listings/continue").Inc()
	authCtx, _ := auth.FromContext(r.Context())

	var payload continueRequest
	if !decodeJSON(w, r, &payload) {
		return
	}
	s.enqueue(w, payload.listingRequest(), authCtx)
}

func (s *Server) enqueue(w http.ResponseWriter, request *models.ListingRequest, authCtx *auth.Context) {
	id, err := s.queue.Enqueue(request, authCtx)
	if err != nil {
		writePipelineError(w, pipeline.Internal("enqueue", "%s", err.Error()))
		return
	}
	metrics.JobsEnqueued.Inc()
	writeJSON(w, http.StatusOK, enqueueResponse{JobID: id.String()})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writePipelineError(w, pipeline.InvalidInput("jobs", "invalid_job_id"))
		return
	}
	info, ok := s.queue.Get(id)
	if !ok {
		writePipelineError(w, pipeline.InvalidInput("jobs", "not_found"))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// -------- Stage endpoints (manual granular control) --------

type resolveImagesRequest struct {
	ImagesSource  models.ImagesSource `json:"images_source"`
	UseSignedURLs bool                `json:"use_signed_urls"`
}

type resolveImagesResponse struct {
	Images []string `json:"images"`
}

func (s *Server) handleStageResolveImages(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("/stages/resolve_images").Inc()

	var payload resolveImagesRequest
	if !decodeJSON(w, r, &payload) {
		return
	}
	images, err := s.pipeline.StageResolveImages(r.Context(), &models.ListingRequest{
		ImagesSource:        payload.ImagesSource,
		SKU:                 "_stage_",
		MerchantLocationKey: "_stage_",
		FulfillmentPolicyID: "_stage_",
		PaymentPolicyID:     "_stage_",
		ReturnPolicyID:      "_stage_",
		UseSignedURLs:       payload.UseSignedURLs,
	})
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveImagesResponse{Images: images})
}

type selectCategoryRequest struct {
	Images              []string             `json:"images"`
	SKU                 string               `json:"sku"`
	MerchantLocationKey string               `json:"merchant_location_key"`
	FulfillmentPolicyID string               `json:"fulfillment_policy_id"`
	PaymentPolicyID     string               `json:"payment_policy_id"`
	ReturnPolicyID      string               `json:"return_policy_id"`
	Marketplace         models.MarketplaceID `json:"marketplace"`
}

type selectCategoryResponse struct {
	Selection    *pipeline.CategorySelection `json:"selection"`
	Alternatives []map[string]any            `json:"alternatives"`
}

func (s *Server) handleStageSelectCategory(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("/stages/select_category").Inc()

	var payload selectCategoryRequest
	if !decodeJSON(w, r, &payload) {
		return
	}
	selection, alternatives, err := s.pipeline.StageSelectCategory(r.Context(), &models.ListingRequest{
		ImagesSource:        models.MultipleSource(nil),
		SKU:                 payload.SKU,
		MerchantLocationKey: payload.MerchantLocationKey,
		FulfillmentPolicyID: payload.FulfillmentPolicyID,
		PaymentPolicyID:     payload.PaymentPolicyID,
		ReturnPolicyID:      payload.ReturnPolicyID,
		Marketplace:         payload.Marketplace,
	}, payload.Images)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	if alternatives == nil {
		alternatives = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, selectCategoryResponse{
		Selection:    selection,
		Alternatives: alternatives,
	})
}

type extractProductRequest struct {
	SKU    string   `json:"sku"`
	Images []string `json:"images"`
}

type extractProductResponse struct {
	Product *hsuf.Product `json:"product"`
}

func (s *Server) handleStageExtractProduct(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("/stages/extract_product").Inc()

	var payload extractProductRequest
	if !decodeJSON(w, r, &payload) {
		return
	}
	product, err := s.pipeline.StageExtractProduct(r.Context(), &models.ListingRequest{
		ImagesSource:        models.MultipleSource(nil),
		SKU:                 payload.SKU,
		MerchantLocationKey: "_stage_",
		FulfillmentPolicyID: "_stage_",
		PaymentPolicyID:     "_stage_",
		ReturnPolicyID:      "_stage_",
	}, payload.Images)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, extractProductResponse{Product: product})
}

type descriptionRequest struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
}

type descriptionResponse struct {
	Description  string `json:"description"`
	UsedFallback bool   `json:"used_fallback"`
}

func (s *Server) handleStageDescription(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("/stages/description").Inc()

	var payload descriptionRequest
	if !decodeJSON(w, r, &payload) {
		return
	}
	description, usedFallback := pipeline.GenerateDescription(r.Context(), s.pipeline.LLM, payload.Title, payload.Bullets)
	writeJSON(w, http.StatusOK, descriptionResponse{
		Description:  description,
		UsedFallback: usedFallback,
	})
}

// -------- Decoding and error mapping --------

func (s *Server) decodeListingRequest(w http.ResponseWriter, r *http.Request, payload *models.ListingRequest) bool {
	if !decodeJSON(w, r, payload) {
		return false
	}
	if err := s.validate.Struct(payload); err != nil {
		writePipelineError(w, pipeline.InvalidInput("listings", "%s", err.Error()))
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeJSON(w, http.StatusBadRequest, models.APIError{
			Error:  "invalid_request",
			Detail: err.Error(),
		})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithField("err", err).Warn("response encode failed")
	}
}

// writePipelineError maps error kinds onto status codes and emits the
// {"error": stage, "detail": message} payload.
func writePipelineError(w http.ResponseWriter, err error) {
	var perr = pipeline.AsError(err, "pipeline")
	var status = http.StatusInternalServerError
	if perr.Kind == pipeline.KindInvalidInput {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, models.APIError{Error: perr.Stage, Detail: perr.Detail})
}
