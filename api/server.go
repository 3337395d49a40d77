// Package api is the HTTP surface: routing, request decoding, error mapping,
// and the idempotency replay wrapper around the pipeline.
package api

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rossjameslee/hermes-api-demo/auth"
	"github.com/rossjameslee/hermes-api-demo/config"
	"github.com/rossjameslee/hermes-api-demo/idempotency"
	"github.com/rossjameslee/hermes-api-demo/jobs"
	"github.com/rossjameslee/hermes-api-demo/pipeline"
)

//go:embed docs/openapi.json
var openapiDocument []byte

const swaggerHTML = `<!doctype html>
<html>
<head>
  <meta charset='utf-8'/>
  <title>Hermes API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.onload = () => {
      window.ui = SwaggerUIBundle({ url: '/openapi.json', dom_id: '#swagger-ui' });
    };
  </script>
</body>
</html>`

// Server binds the service components to the router.
type Server struct {
	config      *config.Config
	pipeline    *pipeline.Pipeline
	queue       *jobs.Queue
	auth        *auth.State
	idempotency *idempotency.Store
	validate    *validator.Validate
}

// NewServer wires the handler dependencies.
func NewServer(cfg *config.Config, p *pipeline.Pipeline, queue *jobs.Queue, authState *auth.State, store *idempotency.Store) *Server {
	return &Server{
		config:      cfg,
		pipeline:    p,
		queue:       queue,
		auth:        authState,
		idempotency: store,
		validate:    validator.New(),
	}
}

// Router assembles the public and keyed route groups.
func (s *Server) Router() http.Handler {
	var r = chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(s.limitBody)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.gateMetrics(promhttp.Handler()))
	r.Get("/openapi.json", s.handleOpenAPI)
	r.Get("/docs", s.handleDocs)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Post("/listings", s.handleCreateListing)
		r.Post("/listings/continue", s.handleContinueListing)

		r.Route("/stages", func(r chi.Router) {
			r.Post("/resolve_images", s.handleStageResolveImages)
			r.Post("/select_category", s.handleStageSelectCategory)
			r.Post("/extract_product", s.handleStageExtractProduct)
			r.Post("/description", s.handleStageDescription)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/listings", s.handleEnqueueListing)
			r.Post("/listings/continue", s.handleEnqueueContinue)
			r.Get("/{id}", s.handleJobStatus)
		})
	})

	return r
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.config.HTTP.RequestMaxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// gateMetrics requires X-Metrics-Key only when a key is configured.
func (s *Server) gateMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := s.config.Auth.MetricsKey; key != "" && r.Header.Get("X-Metrics-Key") != key {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
