package geocode

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const cacheKeyPrefix = "geocode:"

// cacheKey returns the store key for the normalized address.
func cacheKey(addr AddressInput) string {
	normalized := fmt.Sprintf("%s|%s|%s|%s|%s",
		strings.ToLower(strings.TrimSpace(addr.Street)),
		strings.ToLower(strings.TrimSpace(addr.Unit)),
		strings.ToLower(strings.TrimSpace(addr.City)),
		strings.ToLower(strings.TrimSpace(addr.State)),
		strings.TrimSpace(addr.ZipCode),
	)
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%s%x", cacheKeyPrefix, h)
}

// checkCache returns a cached result or nil. Cache errors are logged and
// treated as a miss.
func (g *geocoder) checkCache(ctx context.Context, key string) *Result {
	if g.cache == nil {
		return nil
	}
	raw, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("geocode: cache get failed", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		zap.L().Warn("geocode: discarding unreadable cache entry", zap.Error(err))
		return nil
	}
	zap.L().Debug("geocode cache hit", zap.String("key", shortKey(key)), zap.Bool("matched", r.Matched))
	return &r
}

// storeCache writes a matched result with the configured TTL. Unmatched
// results are not stored: they also stand for provider outages, and the next
// lookup must reach the providers again. Failures are logged.
func (g *geocoder) storeCache(ctx context.Context, key string, result *Result) {
	if g.cache == nil || result == nil || !result.Matched {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		zap.L().Warn("geocode: marshal cache entry", zap.Error(err))
		return
	}
	if err := g.cache.Set(ctx, key, raw); err != nil {
		zap.L().Warn("geocode: cache set failed", zap.Error(err))
		return
	}
	if g.cacheTTL > 0 {
		if err := g.cache.Expire(ctx, key, g.cacheTTL); err != nil {
			zap.L().Warn("geocode: cache expire failed", zap.Error(err))
		}
	}
}

func shortKey(key string) string {
	key = strings.TrimPrefix(key, cacheKeyPrefix)
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
