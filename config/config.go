// Package config is the single place process environment is read. The
// resulting Config is populated once in main and injected; nothing else in
// the repository consults os.Getenv.
package config

import (
	"strings"

	"github.com/jessevdk/go-flags"
)

// Config is the top-level configuration object of the hermes API server.
type Config struct {
	HTTP struct {
		Port            int   `long:"port" env:"PORT" default:"8000" description:"Listen port"`
		RequestMaxBytes int64 `long:"request-max-bytes" env:"REQUEST_MAX_BYTES" default:"262144" description:"Request body limit"`
		TimeoutSecs     int   `long:"timeout-secs" env:"HTTP_TIMEOUT_SECS" default:"15" description:"Outbound read timeout"`
		ConnectSecs     int   `long:"connect-secs" env:"HTTP_CONNECT_TIMEOUT_SECS" default:"5" description:"Outbound connect timeout"`
	} `group:"HTTP" namespace:"http"`

	Pipeline struct {
		MaxImages       int    `long:"max-images" env:"MAX_IMAGES" default:"6" description:"Maximum resolved images per request"`
		DomainAllowlist string `long:"image-domain-allowlist" env:"IMAGE_DOMAIN_ALLOWLIST" description:"Allowed image hosts (comma/space separated)"`
	} `group:"Pipeline" namespace:"pipeline"`

	RateLimit struct {
		PerSec   float64 `long:"per-sec" env:"RATE_LIMIT_PER_SEC" default:"5" description:"Token refill rate per org"`
		Capacity float64 `long:"capacity" env:"RATE_LIMIT_CAPACITY" default:"10" description:"Token bucket capacity"`
	} `group:"RateLimit" namespace:"rate"`

	Auth struct {
		DemoAPIKeys string `long:"demo-api-keys" env:"DEMO_API_KEYS" default:"demo-org:demo-key" description:"org:key pairs, comma separated"`
		MetricsKey  string `long:"metrics-key" env:"METRICS_KEY" description:"Optional X-Metrics-Key gate"`
		OpenAPIKey  string `long:"openapi-key" env:"OPENAPI_KEY" description:"Optional X-Docs-Key gate"`
	} `group:"Auth" namespace:"auth"`

	Jobs struct {
		QueueCapacity int `long:"queue-capacity" env:"QUEUE_CAPACITY" default:"64" description:"Bounded job channel capacity"`
	} `group:"Jobs" namespace:"jobs"`

	Idempotency struct {
		TTLSecs  int    `long:"ttl-secs" env:"IDEMPOTENCY_TTL_SECS" default:"3600" description:"Cached response TTL"`
		RedisURL string `long:"redis-url" env:"REDIS_URL" description:"Optional remote KV"`
	} `group:"Idempotency" namespace:"idem"`

	LLM struct {
		GatewayURL string `long:"gateway-url" env:"TENSORZERO_GATEWAY_URL" default:"http://localhost:3000" description:"Inference gateway base URL"`
		APIKey     string `long:"api-key" env:"TENSORZERO_API_KEY" description:"Gateway API key"`
		Function   string `long:"function" env:"TENSORZERO_FUNCTION" description:"Gateway function name"`
		Model      string `long:"model" env:"TENSORZERO_MODEL" description:"Model override"`
	} `group:"LLM" namespace:"llm"`

	Ebay struct {
		Env            string `long:"env" env:"EBAY_ENV" default:"SANDBOX" description:"PROD or SANDBOX"`
		AppID          string `long:"app-id" env:"EBAY_APP_ID_PRODUCTION" description:"OAuth client id"`
		CertID         string `long:"cert-id" env:"EBAY_CERT_ID_PRODUCTION" description:"OAuth client secret"`
		RefreshToken   string `long:"refresh-token" env:"EBAY_REFRESH_TOKEN" description:"Seller refresh token"`
		CategoryTreeID string `long:"category-tree-id" env:"EBAY_CATEGORY_TREE_ID" default:"0" description:"Taxonomy tree"`
		EnableNetwork  bool   `long:"enable-network" env:"EBAY_ENABLE_NETWORK" description:"Allow live marketplace calls"`
	} `group:"Ebay" namespace:"ebay"`

	Supabase struct {
		URL        string `long:"url" env:"SUPABASE_URL" description:"Tenant config store URL"`
		ServiceKey string `long:"service-key" env:"SUPABASE_SERVICE_ROLE_KEY" description:"Service role key"`
	} `group:"Supabase" namespace:"supabase"`
}

// Load parses flags and environment into a Config.
func Load(args []string) (*Config, error) {
	var cfg = new(Config)
	var parser = flags.NewParser(cfg, flags.Default|flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if cfg.RateLimit.PerSec <= 0 {
		cfg.RateLimit.PerSec = 5
	}
	if cfg.RateLimit.Capacity < 1 {
		cfg.RateLimit.Capacity = 10
	}
	if cfg.Pipeline.MaxImages < 1 {
		cfg.Pipeline.MaxImages = 6
	}
	if cfg.Jobs.QueueCapacity < 1 {
		cfg.Jobs.QueueCapacity = 64
	}
	if cfg.HTTP.RequestMaxBytes <= 0 {
		cfg.HTTP.RequestMaxBytes = 256 * 1024
	}
	return cfg, nil
}

// ImageAllowlist splits the configured allowlist on commas, whitespace and
// tabs, lower-casing entries. Nil when unset.
func (c *Config) ImageAllowlist() []string {
	var raw = c.Pipeline.DomainAllowlist
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, entry := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	}) {
		if entry = strings.ToLower(strings.TrimSpace(entry)); entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
