// Package geocode provides address geocoding via Census Geocoder (primary) and Google (fallback).
package geocode

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lscrefer/internal/cache"
)

// Client geocodes addresses using Census Geocoder (primary) and Google (fallback).
type Client interface {
	// Geocode geocodes a single address. An unmatched address is not an
	// error; callers check Result.Matched.
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)

	// BatchGeocode geocodes multiple addresses. Results line up with addrs.
	BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error)
}

// AddressInput represents an address to geocode.
type AddressInput struct {
	ID      string // Optional identifier for batch correlation
	Street  string
	Unit    string
	City    string
	State   string
	ZipCode string
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Source         string  `json:"source"`  // "census" or "google"
	Quality        string  `json:"quality"` // "rooftop", "range", "centroid", "approximate"
	MatchedAddress string  `json:"matched_address,omitempty"`
	Matched        bool    `json:"matched"`
}

// Observer is told about every provider round trip. status is 0 when no
// response was received.
type Observer func(status int, elapsed time.Duration)

// Option configures the geocoder.
type Option func(*geocoder)

// WithGoogleAPIKey enables Google Geocoding API as a fallback.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithHTTPClient sets a custom HTTP client for both Census and Google requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit shared by both providers.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCache stores results in store for ttl, keyed by the normalized address.
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(g *geocoder) {
		g.cache = store
		g.cacheTTL = ttl
	}
}

// WithObserver registers a callback for provider round trips.
func WithObserver(obs Observer) Option {
	return func(g *geocoder) {
		g.observe = obs
	}
}

type geocoder struct {
	httpClient *http.Client
	googleKey  string
	limiter    *rate.Limiter
	cache      cache.Store
	cacheTTL   time.Duration
	observe    Observer
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(50, 50), // Census default: 50 req/s
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode geocodes a single address, trying Census first, then Google if configured.
func (g *geocoder) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	key := cacheKey(addr)
	if cached := g.checkCache(ctx, key); cached != nil {
		return cached, nil
	}

	result := g.geocodeUncached(ctx, addr)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.storeCache(ctx, key, result)
	return result, nil
}

func (g *geocoder) geocodeUncached(ctx context.Context, addr AddressInput) *Result {
	log := zap.L().With(zap.String("address", formatOneLine(addr)))

	result, censusErr := g.geocodeCensus(ctx, addr)
	if censusErr == nil && result.Matched {
		return result
	}
	if censusErr != nil {
		log.Debug("geocode: census failed", zap.Error(censusErr))
	}

	// If Census failed or didn't match, try Google if configured.
	if g.googleKey != "" {
		googleResult, googleErr := g.geocodeGoogle(ctx, addr)
		if googleErr == nil && googleResult.Matched {
			return googleResult
		}
		if googleErr != nil {
			log.Debug("geocode: google failed", zap.Error(googleErr))
		}
	}

	// No match from any provider. This is not an error, just unmatched.
	return &Result{Matched: false}
}

// BatchGeocode geocodes multiple addresses using Census batch API, falling back
// to Google for individual unmatched addresses.
func (g *geocoder) BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	if len(addrs) == 0 {
		return nil, nil
	}

	// Assign IDs for batch correlation if not set.
	for i := range addrs {
		if addrs[i].ID == "" {
			addrs[i].ID = strconv.Itoa(i)
		}
	}

	results, err := g.batchGeocodeCensus(ctx, addrs)
	if err != nil {
		zap.L().Warn("geocode: census batch failed, geocoding individually", zap.Error(err))
		results = make([]Result, len(addrs))
		for i, addr := range addrs {
			r, geocodeErr := g.Geocode(ctx, addr)
			if geocodeErr != nil {
				return nil, geocodeErr
			}
			results[i] = *r
		}
		return results, nil
	}

	for i, r := range results {
		if !r.Matched && g.googleKey != "" {
			googleResult, googleErr := g.geocodeGoogle(ctx, addrs[i])
			if googleErr == nil && googleResult.Matched {
				results[i] = *googleResult
			}
		}
		g.storeCache(ctx, cacheKey(addrs[i]), &results[i])
	}

	return results, nil
}
