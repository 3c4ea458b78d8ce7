package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/lscrefer/internal/export"
	"github.com/sells-group/lscrefer/internal/geo"
	"github.com/sells-group/lscrefer/internal/lsc"
)

// api serves the resolver over HTTP.
type api struct {
	env *resolverEnv
}

// newRouter builds the HTTP routes for env.
func newRouter(env *resolverEnv, origins []string) http.Handler {
	a := &api{env: env}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", env.Metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/program", a.handleProgram)
		r.Get("/service-area", a.handleServiceArea)
		r.Get("/offices", a.handleOffices)
		r.Get("/cities", a.handleCities)
		r.Get("/poverty", a.handlePoverty)
		r.Get("/index", a.handleIndex)
		r.Post("/reload", a.handleReload)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

func (a *api) handleProgram(w http.ResponseWriter, r *http.Request) {
	person, err := personFromQuery(r)
	if err != nil {
		respondError(w, err)
		return
	}
	prog, err := a.env.Service.ProgramFor(r.Context(), person)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"program": prog})
}

func (a *api) handleServiceArea(w http.ResponseWriter, r *http.Request) {
	person, err := personFromQuery(r)
	if err != nil {
		respondError(w, err)
		return
	}
	area, err := a.env.Service.ServiceAreaFor(r.Context(), person)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"service_area": area})
}

func (a *api) handleOffices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	person, err := personFromQuery(r)
	if err != nil {
		respondError(w, err)
		return
	}
	prog, err := a.env.Service.ProgramFor(ctx, person)
	if err != nil {
		respondError(w, err)
		return
	}

	ref := &person.Address
	if r.URL.Query().Get("sort") == "false" {
		ref = nil
	}
	offices, err := a.env.Service.OfficesFor(ctx, prog, ref)
	if err != nil {
		respondError(w, err)
		return
	}
	if offices == nil {
		offices = []lsc.Office{}
	}

	if r.URL.Query().Get("format") == "geojson" {
		data, err := export.OfficesGeoJSON(offices)
		if err != nil {
			respondError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"program": prog, "offices": offices})
}

func (a *api) handleCities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	person, err := personFromQuery(r)
	if err != nil {
		respondError(w, err)
		return
	}
	prog, err := a.env.Service.ProgramFor(ctx, person)
	if err != nil {
		respondError(w, err)
		return
	}
	cities, err := a.env.Service.CitiesNear(ctx, prog, person)
	if err != nil {
		respondError(w, err)
		return
	}
	if cities == nil {
		cities = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"cities": cities})
}

func (a *api) handlePoverty(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	income, err := strconv.ParseFloat(q.Get("income"), 64)
	if err != nil {
		respondError(w, &lsc.InvalidInput{Field: "income", Value: q.Get("income"), Reason: "not a number"})
		return
	}
	pct, err := a.env.Poverty.Percentage(income, q.Get("size"), q.Get("state"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]float64{"percentage": pct})
}

func (a *api) handleIndex(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, a.env.Service.IndexStats())
}

func (a *api) handleReload(w http.ResponseWriter, r *http.Request) {
	var err error
	if r.URL.Query().Get("refresh") == "true" {
		err = a.env.Service.Refresh(r.Context())
	} else {
		err = a.env.Service.Reload(r.Context())
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a.env.Service.IndexStats())
}

// personFromQuery reads the household address from query parameters. lat
// and lon must be given together.
func personFromQuery(r *http.Request) (*lsc.Person, error) {
	q := r.URL.Query()
	p := &lsc.Person{
		Name: q.Get("name"),
		Address: lsc.Address{
			Street: q.Get("street"),
			Unit:   q.Get("unit"),
			City:   q.Get("city"),
			State:  q.Get("state"),
			Zip:    q.Get("zip"),
		},
	}

	latStr, lonStr := q.Get("lat"), q.Get("lon")
	if latStr == "" && lonStr == "" {
		if p.Address.OneLine() == "" {
			return nil, &lsc.InvalidInput{Field: "address", Value: "", Reason: "street, city and state or lat and lon are required"}
		}
		return p, nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, &lsc.InvalidInput{Field: "lat", Value: latStr, Reason: "not a number"}
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, &lsc.InvalidInput{Field: "lon", Value: lonStr, Reason: "not a number"}
	}
	pt := geo.Point{Latitude: lat, Longitude: lon}
	if !pt.Valid() {
		return nil, &lsc.InvalidInput{Field: "location", Value: pt.String(), Reason: "out of range"}
	}
	p.Address.Location = &pt
	return p, nil
}

// statusFor maps resolver error kinds to HTTP status codes.
func statusFor(err error) int {
	var (
		geocodeErr   *lsc.GeocodeFailure
		invalidErr   *lsc.InvalidInput
		remoteErr    *lsc.RemoteServiceError
		malformedErr *lsc.MalformedResponse
	)
	switch {
	case errors.As(err, &invalidErr):
		return http.StatusBadRequest
	case errors.As(err, &geocodeErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &remoteErr), errors.As(err, &malformedErr):
		return http.StatusBadGateway
	default:
		// Includes *lsc.UnresolvedReference: the two remote datasets disagree.
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
