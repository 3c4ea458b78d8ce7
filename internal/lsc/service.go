package lsc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lscrefer/internal/geo"
	"github.com/sells-group/lscrefer/internal/monitoring"
	"github.com/sells-group/lscrefer/internal/refdata"
	"github.com/sells-group/lscrefer/pkg/arcgis"
	"github.com/sells-group/lscrefer/pkg/geocode"
)

// Remote service names used in errors and metrics.
const (
	ServicePoint   = monitoring.ServicePoint
	ServiceBulk    = monitoring.ServiceBulk
	ServiceOffices = monitoring.ServiceOffices
)

// DefaultPointTimeout bounds the point-in-polygon query.
const DefaultPointTimeout = 10 * time.Second

// ServiceConfig holds the layer endpoints used by the resolvers.
type ServiceConfig struct {
	ServiceAreaURL string
	OfficeURL      string
	PointTimeout   time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records remote calls and index sizes.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// Service resolves programs and offices against the current Index.
type Service struct {
	cfg       ServiceConfig
	client    *arcgis.Client
	geocoder  geocode.Client
	source    *ServiceAreaSource
	directory []refdata.DirectoryEntry
	metrics   *monitoring.Metrics

	index    atomic.Pointer[Index]
	reloadMu sync.Mutex
}

// NewService creates a Service. Until Reload succeeds the index holds the
// directory with no service-area mappings.
func NewService(cfg ServiceConfig, client *arcgis.Client, geocoder geocode.Client, source *ServiceAreaSource, directory []refdata.DirectoryEntry, opts ...Option) *Service {
	if cfg.PointTimeout <= 0 {
		cfg.PointTimeout = DefaultPointTimeout
	}
	s := &Service{
		cfg:       cfg,
		client:    client,
		geocoder:  geocoder,
		source:    source,
		directory: directory,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.index.Store(newIndex(directory))
	return s
}

// Index returns the index currently in use.
func (s *Service) Index() *Index {
	return s.index.Load()
}

// IndexStats implements monitoring.IndexSource.
func (s *Service) IndexStats() monitoring.IndexStats {
	return s.Index().Stats()
}

// Reload rebuilds the index from the directory and the cached service-area
// payload and swaps it in. Concurrent readers keep the old index until the
// swap.
func (s *Service) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	fs, err := s.source.Fetch(ctx)
	if err != nil {
		return eris.Wrap(err, "lsc: reload")
	}
	idx := BuildIndex(s.directory, FeaturesFromSet(fs))
	s.index.Store(idx)

	st := idx.Stats()
	s.metrics.SetIndexEntries(st.ByArea, st.ByRIN, st.ByServA)
	return nil
}

// Refresh drops the cached service-area payload and reloads.
func (s *Service) Refresh(ctx context.Context) error {
	if err := s.source.Refresh(ctx); err != nil {
		return err
	}
	return s.Reload(ctx)
}

// pointMatch is the first feature of a point lookup.
type pointMatch struct {
	code    string
	grantee string
}

// ProgramFor returns the program serving the person's address, or nil when
// the address lies in no service area.
func (s *Service) ProgramFor(ctx context.Context, person *Person) (*Program, error) {
	const op = "program for"
	m, err := s.lookupPoint(ctx, op, person)
	if err != nil || m == nil {
		return nil, err
	}
	prog, ok := s.Index().ByServA(m.code)
	if !ok {
		return nil, &UnresolvedReference{Kind: "service area", Code: m.code}
	}
	out := *prog
	return &out, nil
}

// ServiceAreaFor returns the raw service-area match for the person's address
// along with its program, or nil when the address lies in no service area.
func (s *Service) ServiceAreaFor(ctx context.Context, person *Person) (*ServiceArea, error) {
	const op = "service area for"
	m, err := s.lookupPoint(ctx, op, person)
	if err != nil || m == nil {
		return nil, err
	}
	prog, ok := s.Index().ByServA(m.code)
	if !ok {
		return nil, &UnresolvedReference{Kind: "service area", Code: m.code}
	}
	out := *prog
	return &ServiceArea{
		Code:    m.code,
		Grantee: m.grantee,
		RIN:     prog.RIN,
		ServA:   prog.ServA,
		Program: &out,
	}, nil
}

func (s *Service) lookupPoint(ctx context.Context, op string, person *Person) (*pointMatch, error) {
	if person == nil {
		return nil, eris.Errorf("lsc: %s: no person", op)
	}
	pt, err := s.locate(ctx, op, &person.Address)
	if err != nil {
		return nil, err
	}

	qctx, cancel := context.WithTimeout(ctx, s.cfg.PointTimeout)
	defer cancel()
	resp, err := observedQuery(qctx, s.client, s.metrics, ServicePoint, s.cfg.ServiceAreaURL,
		arcgis.PointQueryParams(pt.Longitude, pt.Latitude))
	if err != nil {
		return nil, err
	}

	fs, err := arcgis.DecodeFeatureSet(resp.Body)
	if err != nil {
		return nil, &MalformedResponse{Op: op, Reason: err.Error(), Err: err}
	}
	if len(fs.Features) == 0 {
		zap.L().Debug("lsc: no service area at point", zap.Stringer("point", pt))
		return nil, nil
	}

	attrs := fs.Features[0].Attributes
	if !attrs.Has("Grantee") || !attrs.Has("ServArea") {
		return nil, &MalformedResponse{Op: op, Reason: "missing Grantee or ServArea attribute"}
	}
	code, ok := attrs.Text("ServArea")
	if !ok || code == "" {
		return nil, &MalformedResponse{Op: op, Reason: "ServArea is empty"}
	}
	grantee, _ := attrs.Text("Grantee")
	return &pointMatch{code: code, grantee: grantee}, nil
}

// locate returns the address's coordinates, geocoding it when they are not
// already known. A successful geocode is stored on the address.
func (s *Service) locate(ctx context.Context, op string, addr *Address) (geo.Point, error) {
	if addr.Location != nil && addr.Location.Valid() {
		return *addr.Location, nil
	}
	if s.geocoder == nil {
		return geo.Point{}, &GeocodeFailure{Op: op, Address: addr.OneLine()}
	}
	res, err := s.geocoder.Geocode(ctx, addr.geocodeInput())
	if err != nil {
		return geo.Point{}, eris.Wrapf(err, "lsc: %s: geocode", op)
	}
	if res == nil || !res.Matched {
		return geo.Point{}, &GeocodeFailure{Op: op, Address: addr.OneLine()}
	}
	pt := geo.Point{Latitude: res.Latitude, Longitude: res.Longitude}
	addr.Location = &pt
	return pt, nil
}
