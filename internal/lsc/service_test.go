package lsc

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lscrefer/internal/geo"
	"github.com/sells-group/lscrefer/pkg/arcgis"
	"github.com/sells-group/lscrefer/pkg/geocode"
)

const anchoragePoint = `{"features":[{"attributes":{"Grantee":"Alaska Legal Services Corporation","ServArea":" AK01 "}}]}`

func anchorage() *Person {
	return &Person{
		Name: "Pat",
		Address: Address{
			Street: "1016 W 6th Ave",
			Unit:   "Suite 200",
			City:   "Anchorage",
			State:  "AK",
			Zip:    "99501",
		},
	}
}

func TestProgramFor_Found(t *testing.T) {
	layers := newFakeLayers(t)
	layers.setPoint(http.StatusOK, anchoragePoint)
	gc := new(mockGeocoder)
	gc.On("Geocode", mock.Anything, mock.MatchedBy(func(a geocode.AddressInput) bool {
		return a.Street == "1016 W 6th Ave" && a.Unit == "Suite 200" && a.ZipCode == "99501"
	})).
		Return(matched(61.2176, -149.8997), nil).Once()
	svc, _ := newTestService(t, layers, gc)

	person := anchorage()
	prog, err := svc.ProgramFor(context.Background(), person)
	require.NoError(t, err)
	require.NotNil(t, prog)
	assert.Equal(t, "AK-1", prog.ServiceArea)
	assert.Equal(t, "Alaska Legal Services Corporation", prog.Name)
	assert.Equal(t, "102000", prog.RIN)
	assert.Equal(t, "AK01", prog.ServA)

	require.NotNil(t, person.Address.Location)
	assert.InDelta(t, 61.2176, person.Address.Location.Latitude, 1e-9)
	gc.AssertExpectations(t)

	// The caller gets a copy.
	prog.Name = "changed"
	shared, _ := svc.Index().ByServA("AK01")
	assert.Equal(t, "Alaska Legal Services Corporation", shared.Name)
}

func TestProgramFor_KnownLocationSkipsGeocoder(t *testing.T) {
	layers := newFakeLayers(t)
	layers.setPoint(http.StatusOK, anchoragePoint)
	gc := new(mockGeocoder)
	svc, _ := newTestService(t, layers, gc)

	person := anchorage()
	person.Address.Location = &geo.Point{Latitude: 61.2176, Longitude: -149.8997}
	prog, err := svc.ProgramFor(context.Background(), person)
	require.NoError(t, err)
	assert.Equal(t, "AK-1", prog.ServiceArea)
	gc.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
}

func TestProgramFor_NoServiceArea(t *testing.T) {
	layers := newFakeLayers(t)
	gc := new(mockGeocoder)
	gc.On("Geocode", mock.Anything, mock.Anything).Return(matched(0, 0), nil)
	svc, _ := newTestService(t, layers, gc)

	prog, err := svc.ProgramFor(context.Background(), anchorage())
	require.NoError(t, err)
	assert.Nil(t, prog)
	assert.Equal(t, int32(1), layers.pointHits.Load())
}

func TestProgramFor_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unknown service area",
			status: http.StatusOK,
			body:   `{"features":[{"attributes":{"Grantee":"Nobody","ServArea":"ZZ09"}}]}`,
			check: func(t *testing.T, err error) {
				var unresolved *UnresolvedReference
				require.ErrorAs(t, err, &unresolved)
				assert.Equal(t, "ZZ09", unresolved.Code)
			},
		},
		{
			name:   "missing grantee",
			status: http.StatusOK,
			body:   `{"features":[{"attributes":{"ServArea":"AK01"}}]}`,
			check: func(t *testing.T, err error) {
				var malformed *MalformedResponse
				require.ErrorAs(t, err, &malformed)
				assert.Contains(t, malformed.Reason, "Grantee")
			},
		},
		{
			name:   "blank service area",
			status: http.StatusOK,
			body:   `{"features":[{"attributes":{"Grantee":"Alaska Legal Services Corporation","ServArea":"  "}}]}`,
			check: func(t *testing.T, err error) {
				var malformed *MalformedResponse
				require.ErrorAs(t, err, &malformed)
				assert.Contains(t, malformed.Reason, "ServArea is empty")
				var unresolved *UnresolvedReference
				assert.False(t, errors.As(err, &unresolved))
			},
		},
		{
			name:   "not json",
			status: http.StatusOK,
			body:   "<html/>",
			check: func(t *testing.T, err error) {
				var malformed *MalformedResponse
				require.ErrorAs(t, err, &malformed)
				assert.ErrorIs(t, err, arcgis.ErrMalformed)
			},
		},
		{
			name:   "no features key",
			status: http.StatusOK,
			body:   `{"error":{"code":499,"message":"Token Required"}}`,
			check: func(t *testing.T, err error) {
				var malformed *MalformedResponse
				require.ErrorAs(t, err, &malformed)
				assert.Contains(t, err.Error(), "missing features list")
			},
		},
		{
			name:   "server error",
			status: http.StatusServiceUnavailable,
			body:   "try later",
			check: func(t *testing.T, err error) {
				var remote *RemoteServiceError
				require.ErrorAs(t, err, &remote)
				assert.Equal(t, http.StatusServiceUnavailable, remote.StatusCode)
				assert.Equal(t, ServicePoint, remote.Service)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layers := newFakeLayers(t)
			layers.setPoint(tt.status, tt.body)
			gc := new(mockGeocoder)
			gc.On("Geocode", mock.Anything, mock.Anything).Return(matched(61.2, -149.9), nil)
			svc, _ := newTestService(t, layers, gc)

			prog, err := svc.ProgramFor(context.Background(), anchorage())
			require.Error(t, err)
			assert.Nil(t, prog)
			tt.check(t, err)
		})
	}
}

func TestProgramFor_GeocodeFailures(t *testing.T) {
	t.Run("unmatched", func(t *testing.T) {
		layers := newFakeLayers(t)
		gc := new(mockGeocoder)
		gc.On("Geocode", mock.Anything, mock.Anything).Return(&geocode.Result{Source: "census"}, nil)
		svc, _ := newTestService(t, layers, gc)

		_, err := svc.ProgramFor(context.Background(), anchorage())
		var failure *GeocodeFailure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, "program for", failure.Op)
		assert.Equal(t, "1016 W 6th Ave Suite 200, Anchorage, AK 99501", failure.Address)
		assert.Zero(t, layers.pointHits.Load())
	})

	t.Run("geocoder error", func(t *testing.T) {
		layers := newFakeLayers(t)
		gc := new(mockGeocoder)
		gc.On("Geocode", mock.Anything, mock.Anything).Return(nil, errors.New("census down"))
		svc, _ := newTestService(t, layers, gc)

		_, err := svc.ProgramFor(context.Background(), anchorage())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "census down")
	})

	t.Run("no geocoder", func(t *testing.T) {
		layers := newFakeLayers(t)
		svc, _ := newTestService(t, layers, nil)

		_, err := svc.ProgramFor(context.Background(), anchorage())
		var failure *GeocodeFailure
		require.ErrorAs(t, err, &failure)
	})
}

func TestServiceAreaFor(t *testing.T) {
	layers := newFakeLayers(t)
	layers.setPoint(http.StatusOK, anchoragePoint)
	gc := new(mockGeocoder)
	gc.On("Geocode", mock.Anything, mock.Anything).Return(matched(61.2176, -149.8997), nil)
	svc, _ := newTestService(t, layers, gc)

	area, err := svc.ServiceAreaFor(context.Background(), anchorage())
	require.NoError(t, err)
	require.NotNil(t, area)
	assert.Equal(t, "AK01", area.Code)
	assert.Equal(t, "Alaska Legal Services Corporation", area.Grantee)
	assert.Equal(t, "102000", area.RIN)
	require.NotNil(t, area.Program)
	assert.Equal(t, "AK-1", area.Program.ServiceArea)
}

func TestReload_EmptyPayloadKeepsDirectory(t *testing.T) {
	layers := newFakeLayers(t)
	layers.setBulk(http.StatusInternalServerError, "down")
	svc, store := newTestService(t, layers, nil)

	st := svc.IndexStats()
	assert.Equal(t, 4, st.ByArea)
	assert.Zero(t, st.ByRIN)
	assert.Zero(t, st.ByServA)

	raw, ok, err := store.Get(context.Background(), "lsc_service_areas")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "{}", string(raw))
}

func TestReload_SwapsIndex(t *testing.T) {
	layers := newFakeLayers(t)
	svc, _ := newTestService(t, layers, nil)
	before := svc.Index()

	require.NoError(t, svc.Reload(context.Background()))
	after := svc.Index()
	assert.NotEqual(t, before.Generation(), after.Generation())
	assert.Equal(t, int32(1), layers.bulkHits.Load())
}

func TestRefresh_RefetchesLayer(t *testing.T) {
	layers := newFakeLayers(t)
	layers.setBulk(http.StatusInternalServerError, "down")
	svc, _ := newTestService(t, layers, nil)
	assert.Zero(t, svc.IndexStats().ByRIN)

	layers.setBulk(http.StatusOK, bulkBody)
	require.NoError(t, svc.Refresh(context.Background()))

	assert.Equal(t, int32(2), layers.bulkHits.Load())
	assert.Equal(t, 3, svc.IndexStats().ByRIN)
}

func TestNewService_EmptyIndexBeforeReload(t *testing.T) {
	svc := NewService(ServiceConfig{}, nil, nil, nil, testDirectory)
	st := svc.IndexStats()
	assert.Equal(t, 4, st.ByArea)
	assert.Zero(t, st.ByServA)
	assert.Equal(t, DefaultPointTimeout, svc.cfg.PointTimeout)
}
