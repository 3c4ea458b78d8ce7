package lsc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lscrefer/internal/cache"
	"github.com/sells-group/lscrefer/internal/refdata"
	"github.com/sells-group/lscrefer/pkg/arcgis"
	"github.com/sells-group/lscrefer/pkg/geocode"
)

// --- Geocoder Mock ---

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Geocode(ctx context.Context, addr geocode.AddressInput) (*geocode.Result, error) {
	args := m.Called(ctx, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Result), args.Error(1)
}

func (m *mockGeocoder) BatchGeocode(ctx context.Context, addrs []geocode.AddressInput) ([]geocode.Result, error) {
	args := m.Called(ctx, addrs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]geocode.Result), args.Error(1)
}

func matched(lat, lon float64) *geocode.Result {
	return &geocode.Result{Latitude: lat, Longitude: lon, Source: "census", Matched: true}
}

// --- Fake ArcGIS layers ---

const (
	bulkPath   = "/bulk/FeatureServer/0/query"
	pointPath  = "/point/FeatureServer/0/query"
	officePath = "/offices/FeatureServer/0/query"
)

// layerReply is a canned status and body for one layer.
type layerReply struct {
	status int
	body   string
}

type fakeLayers struct {
	srv *httptest.Server

	mu     sync.Mutex
	bulk   layerReply
	point  layerReply
	office layerReply

	bulkHits  atomic.Int32
	pointHits atomic.Int32
	lastWhere atomic.Value
}

func newFakeLayers(t *testing.T) *fakeLayers {
	t.Helper()
	f := &fakeLayers{
		bulk:   layerReply{http.StatusOK, bulkBody},
		point:  layerReply{http.StatusOK, `{"features":[]}`},
		office: layerReply{http.StatusOK, `{"features":[]}`},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var reply layerReply
		switch r.URL.Path {
		case bulkPath:
			f.bulkHits.Add(1)
			reply = f.bulk
		case pointPath:
			f.pointHits.Add(1)
			reply = f.point
		case officePath:
			f.lastWhere.Store(r.URL.Query().Get("where"))
			reply = f.office
		default:
			reply = layerReply{http.StatusNotFound, "not found"}
		}
		w.WriteHeader(reply.status)
		_, _ = w.Write([]byte(reply.body))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLayers) setPoint(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.point = layerReply{status, body}
}

func (f *fakeLayers) setOffices(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.office = layerReply{status, body}
}

func (f *fakeLayers) setBulk(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulk = layerReply{status, body}
}

func (f *fakeLayers) config() ServiceConfig {
	return ServiceConfig{
		ServiceAreaURL: f.srv.URL + pointPath,
		OfficeURL:      f.srv.URL + officePath,
		PointTimeout:   2 * time.Second,
	}
}

const bulkBody = `{"features":[
	{"attributes":{"ServArea":"AK-1","ServArea_1":"AK-1","RIN":"102000","servA":"AK01"}},
	{"attributes":{"ServArea":"MA-4","ServArea_1":"MA04","RIN":"122040","servA":"MA-4"}},
	{"attributes":{"ServArea":"NC-5","ServArea_1":" NC-5 ","RIN":"934010","servA":"NC05"}},
	{"attributes":{"ServArea":"ZZ-9","ServArea_1":"ZZ-9","RIN":"999999","servA":"ZZ09"}}
]}`

var testDirectory = []refdata.DirectoryEntry{
	{ServAreaID: "AK-1", LegalName: "Alaska Legal Services Corporation", Phone: "888-478-2572", URL: "https://www.alsc-law.org"},
	{ServAreaID: " MA-4 ", LegalName: "Community Legal Aid, Inc. ", Phone: "855-252-5342", URL: "https://www.communitylegal.org"},
	{ServAreaID: "NC-5", LegalName: "Legal Aid of North Carolina", Phone: "866-219-5262", URL: "https://www.legalaidnc.org"},
	{ServAreaID: "PA-1", LegalName: "Philadelphia Legal Assistance", Phone: "215-981-3800", URL: "https://www.philalegal.org"},
}

// newTestService wires a Service to the fake layers with a memory cache and
// loads the index.
func newTestService(t *testing.T, layers *fakeLayers, geocoder geocode.Client) (*Service, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemoryStore()
	client := arcgis.NewClient(arcgis.WithHTTPClient(layers.srv.Client()))
	source := NewServiceAreaSource(client, layers.srv.URL+bulkPath, store, "lsc_service_areas", time.Hour, nil)
	svc := NewService(layers.config(), client, geocoder, source, testDirectory)
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return svc, store
}
