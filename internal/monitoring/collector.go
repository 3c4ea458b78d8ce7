package monitoring

import (
	"bytes"
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lscrefer/internal/cache"
)

// IndexStats describes the program index currently being served.
type IndexStats struct {
	Generation string    `json:"generation"`
	BuiltAt    time.Time `json:"built_at"`
	ByArea     int       `json:"by_area"`
	ByRIN      int       `json:"by_rin"`
	ByServA    int       `json:"by_serv_a"`
}

// IndexSource reports stats for the live index.
type IndexSource interface {
	IndexStats() IndexStats
}

// MetricsSnapshot holds a point-in-time view of resolver health.
type MetricsSnapshot struct {
	Index IndexStats `json:"index"`

	// Cache state for the service-area payload.
	CachePresent bool `json:"cache_present"`
	CacheEmpty   bool `json:"cache_empty"`
	CacheBytes   int  `json:"cache_bytes"`

	IndexAge    time.Duration `json:"index_age"`
	CollectedAt time.Time     `json:"collected_at"`
}

// Collector gathers a snapshot from the index and the cache store.
type Collector struct {
	index IndexSource
	store cache.Store
	key   string
	now   func() time.Time
}

// NewCollector creates a new metrics collector. store may be nil when the
// cache is not inspected.
func NewCollector(index IndexSource, store cache.Store, key string) *Collector {
	return &Collector{index: index, store: store, key: key, now: time.Now}
}

// Collect gathers a snapshot of resolver health.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		Index:       c.index.IndexStats(),
		CollectedAt: now,
	}
	if !snap.Index.BuiltAt.IsZero() {
		snap.IndexAge = now.Sub(snap.Index.BuiltAt)
	}

	if c.store == nil {
		return snap, nil
	}
	val, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: read cache")
	}
	snap.CachePresent = ok
	snap.CacheBytes = len(val)
	snap.CacheEmpty = ok && bytes.Equal(bytes.TrimSpace(val), []byte("{}"))
	return snap, nil
}
