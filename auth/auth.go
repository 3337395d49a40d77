// Package auth implements the admission layer: API key authentication from
// the Authorization or X-Hermes-Key header, and a per-organization token
// bucket that annotates every decision with rate-limit headers.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rossjameslee/hermes-api-demo/metrics"
	"github.com/rossjameslee/hermes-api-demo/models"
)

// Context identifies the authenticated caller.
type Context struct {
	OrgID    string
	APIKeyID string
}

type contextKey struct{}

// FromContext extracts the auth context attached by the middleware.
func FromContext(ctx context.Context) (*Context, bool) {
	value, ok := ctx.Value(contextKey{}).(*Context)
	return value, ok
}

type orgRecord struct {
	orgID    string
	apiKeyID string
}

// State is the immutable key table plus the shared limiter.
type State struct {
	records map[string]orgRecord
	Limiter *TokenBuckets
}

// NewState parses the `org:key,org:key,…` table. An empty or fully malformed
// table falls back to the demo credential pair.
func NewState(rawKeys string, limiter *TokenBuckets) *State {
	if strings.TrimSpace(rawKeys) == "" {
		rawKeys = "demo-org:demo-key"
	}
	var records = make(map[string]orgRecord)
	for idx, token := range strings.Split(rawKeys, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		org, secret, found := strings.Cut(token, ":")
		org = strings.TrimSpace(org)
		secret = strings.TrimSpace(secret)
		if !found || org == "" || secret == "" {
			log.WithField("entry", token).Warn("ignored malformed DEMO_API_KEYS entry")
			continue
		}
		records[secret] = orgRecord{
			orgID:    org,
			apiKeyID: fmt.Sprintf("key-%02d", idx+1),
		}
	}
	if len(records) == 0 {
		log.Warn("DEMO_API_KEYS produced no keys, falling back to demo credentials")
		records["demo-key"] = orgRecord{orgID: "demo-org", apiKeyID: "key-01"}
	} else {
		log.WithField("keyCount", len(records)).Info("loaded API keys")
	}
	return &State{records: records, Limiter: limiter}
}

// Authenticate resolves a presented secret to its auth context.
func (s *State) Authenticate(presented string) (*Context, bool) {
	record, ok := s.records[presented]
	if !ok {
		return nil, false
	}
	return &Context{OrgID: record.orgID, APIKeyID: record.apiKeyID}, true
}

// Middleware enforces authentication and rate limiting for keyed routes.
func (s *State) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented, ok := ExtractAPIKey(r.Header)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_api_key", "Provide X-Hermes-Key or Bearer token")
			return
		}
		authCtx, ok := s.Authenticate(presented)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid_api_key", "Key not recognized")
			return
		}

		permit, exceeded := s.Limiter.Consume(authCtx.OrgID)
		if exceeded != nil {
			metrics.RateLimited.WithLabelValues(authCtx.OrgID).Inc()
			exceeded.ApplyHeaders(w.Header())
			writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
			return
		}
		permit.ApplyHeaders(w.Header())

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, authCtx)))
	})
}

// ExtractAPIKey pulls the key from `Authorization: Bearer …` (token matched
// case-insensitively) or the X-Hermes-Key header.
func ExtractAPIKey(headers http.Header) (string, bool) {
	if raw := headers.Get("Authorization"); len(raw) >= 7 && strings.EqualFold(raw[:6], "bearer") {
		if key := strings.TrimSpace(raw[6:]); key != "" {
			return key, true
		}
	}
	if key := strings.TrimSpace(headers.Get("X-Hermes-Key")); key != "" {
		return key, true
	}
	return "", false
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.APIError{Error: code, Detail: detail})
}

type bucketState struct {
	tokens     float64
	lastRefill time.Time
}

// TokenBuckets keeps one bucket per organization under a single mutex. The
// clock is injectable so refill math is testable.
type TokenBuckets struct {
	ratePerSec float64
	capacity   float64
	now        func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucketState
}

// NewTokenBuckets applies the documented floors: rate must be positive,
// capacity at least one.
func NewTokenBuckets(ratePerSec, capacity float64) *TokenBuckets {
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	if capacity < 1 {
		capacity = 10
	}
	return &TokenBuckets{
		ratePerSec: ratePerSec,
		capacity:   capacity,
		now:        time.Now,
		buckets:    make(map[string]*bucketState),
	}
}

// SetClock replaces the time source; tests use a fake clock.
func (b *TokenBuckets) SetClock(now func() time.Time) { b.now = now }

// Permit is an admitted request's rate-limit snapshot.
type Permit struct {
	Capacity float64
	Tokens   float64
	Rate     float64
}

// Exceeded is a rejected request's rate-limit snapshot.
type Exceeded struct {
	RetryAfter float64
	Capacity   float64
	Tokens     float64
	Rate       float64
}

// Consume refills the caller's bucket and takes one token. Exactly one of
// the results is non-nil.
func (b *TokenBuckets) Consume(key string) (*Permit, *Exceeded) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var now = b.now()
	state, ok := b.buckets[key]
	if !ok {
		state = &bucketState{tokens: b.capacity, lastRefill: now}
		b.buckets[key] = state
	}

	if elapsed := now.Sub(state.lastRefill).Seconds(); elapsed > 0 {
		state.tokens = math.Min(b.capacity, state.tokens+elapsed*b.ratePerSec)
		state.lastRefill = now
	}

	if state.tokens >= 1 {
		state.tokens--
		return &Permit{Capacity: b.capacity, Tokens: state.tokens, Rate: b.ratePerSec}, nil
	}
	var retryAfter = math.Max(0, (1-state.tokens)/b.ratePerSec)
	return nil, &Exceeded{
		RetryAfter: retryAfter,
		Capacity:   b.capacity,
		Tokens:     state.tokens,
		Rate:       b.ratePerSec,
	}
}

// ApplyHeaders stamps the admitted-response rate-limit headers.
func (p *Permit) ApplyHeaders(headers http.Header) {
	headers.Set("X-RateLimit-Limit", formatWhole(p.Capacity))
	headers.Set("X-RateLimit-Remaining", formatWhole(math.Max(0, p.Tokens)))
	headers.Set("X-RateLimit-Reset", formatCeil((p.Capacity-p.Tokens)/p.Rate))
}

// ApplyHeaders stamps the rejection headers, including Retry-After.
func (e *Exceeded) ApplyHeaders(headers http.Header) {
	headers.Set("Retry-After", formatCeil(e.RetryAfter))
	headers.Set("X-RateLimit-Limit", formatWhole(e.Capacity))
	headers.Set("X-RateLimit-Remaining", "0")
	headers.Set("X-RateLimit-Reset", formatCeil((e.Capacity-e.Tokens)/e.Rate))
}

func formatWhole(value float64) string {
	return strconv.FormatUint(uint64(math.Floor(value)), 10)
}

func formatCeil(value float64) string {
	return strconv.FormatUint(uint64(math.Max(0, math.Ceil(value))), 10)
}
