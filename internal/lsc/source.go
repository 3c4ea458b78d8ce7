package lsc

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lscrefer/internal/cache"
	"github.com/sells-group/lscrefer/internal/monitoring"
	"github.com/sells-group/lscrefer/pkg/arcgis"
)

// emptyPayload is cached when the bulk fetch fails so the remote service is
// not hit again until the entry expires.
var emptyPayload = []byte("{}")

// ServiceAreaSource returns the bulk service-area feature set, fetching it
// into the cache store on a miss.
type ServiceAreaSource struct {
	client  *arcgis.Client
	url     string
	store   cache.Store
	key     string
	ttl     time.Duration
	metrics *monitoring.Metrics
}

// NewServiceAreaSource creates a source that caches the layer at layerURL under
// key for ttl. metrics may be nil.
func NewServiceAreaSource(client *arcgis.Client, layerURL string, store cache.Store, key string, ttl time.Duration, metrics *monitoring.Metrics) *ServiceAreaSource {
	return &ServiceAreaSource{
		client:  client,
		url:     layerURL,
		store:   store,
		key:     key,
		ttl:     ttl,
		metrics: metrics,
	}
}

// Fetch returns the cached feature set. A missing or expired entry triggers
// one remote fetch. Remote failures are absorbed into an empty payload and
// yield an empty feature set; only cache errors and cancellation are
// returned.
func (s *ServiceAreaSource) Fetch(ctx context.Context) (*arcgis.FeatureSet, error) {
	raw, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, eris.Wrap(err, "lsc: read service-area cache")
	}
	if !ok {
		if err := s.populate(ctx); err != nil {
			return nil, err
		}
		// Re-read so both paths decode the stored representation.
		raw, _, err = s.store.Get(ctx, s.key)
		if err != nil {
			return nil, eris.Wrap(err, "lsc: read service-area cache")
		}
	}

	fs, err := arcgis.DecodeFeatureSet(raw)
	if err != nil {
		zap.L().Warn("lsc: service-area data is empty", zap.String("key", s.key))
		return &arcgis.FeatureSet{}, nil
	}
	return fs, nil
}

// Refresh drops the cached payload so the next Fetch goes to the remote
// service.
func (s *ServiceAreaSource) Refresh(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.key); err != nil {
		return eris.Wrap(err, "lsc: delete service-area cache")
	}
	return nil
}

func (s *ServiceAreaSource) populate(ctx context.Context) error {
	log := zap.L().With(zap.String("url", s.url))
	payload := emptyPayload
	var remoteErr *RemoteServiceError

	resp, err := observedQuery(ctx, s.client, s.metrics, monitoring.ServiceBulk, s.url, arcgis.BulkServiceAreaParams())
	switch {
	case err != nil && ctx.Err() != nil:
		return eris.Wrap(ctx.Err(), "lsc: fetch service areas")
	case errors.As(err, &remoteErr) && remoteErr.StatusCode != 0:
		log.Error("lsc: service-area layer returned an error",
			zap.Int("status", remoteErr.StatusCode),
			zap.String("body", remoteErr.Body),
		)
	case err != nil:
		log.Error("lsc: service-area request failed", zap.Error(err))
	default:
		fs, decodeErr := arcgis.DecodeFeatureSet(resp.Body)
		switch {
		case decodeErr != nil:
			log.Error("lsc: invalid service-area response", zap.Error(decodeErr))
		case len(fs.Features) == 0:
			log.Error("lsc: invalid service-area response", zap.String("reason", "no features"))
		default:
			payload = resp.Body
		}
	}

	if bytes.Equal(payload, emptyPayload) {
		s.metrics.IncFallback()
	}
	if err := s.store.Set(ctx, s.key, payload); err != nil {
		return eris.Wrap(err, "lsc: write service-area cache")
	}
	if err := s.store.Expire(ctx, s.key, s.ttl); err != nil {
		return eris.Wrap(err, "lsc: expire service-area cache")
	}
	return nil
}

// observedQuery runs a layer query and records it. Transport failures and
// non-200 replies come back as *RemoteServiceError.
func observedQuery(ctx context.Context, client *arcgis.Client, metrics *monitoring.Metrics, service, layerURL string, params url.Values) (*arcgis.Response, error) {
	start := time.Now()
	resp, err := client.Query(ctx, layerURL, params)
	if err != nil {
		metrics.ObserveRemote(service, 0, time.Since(start))
		return nil, &RemoteServiceError{Service: service, Err: err}
	}
	metrics.ObserveRemote(service, resp.StatusCode, time.Since(start))
	if !resp.OK() {
		return resp, &RemoteServiceError{Service: service, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	return resp, nil
}
