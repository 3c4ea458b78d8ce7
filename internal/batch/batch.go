// Package batch resolves the program and poverty percentage for many
// households at once. Addresses are geocoded in one batch request up front,
// then rows are resolved concurrently. A failing row records its error and
// does not stop the others.
package batch

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lscrefer/internal/geo"
	"github.com/sells-group/lscrefer/internal/lsc"
	"github.com/sells-group/lscrefer/internal/poverty"
	"github.com/sells-group/lscrefer/pkg/geocode"
)

// DefaultConcurrency is the number of rows resolved at once.
const DefaultConcurrency = 5

// Request is one input row.
type Request struct {
	ID            string
	Street        string
	Unit          string
	City          string
	State         string
	Zip           string
	Income        string
	HouseholdSize string
}

// Result is a request with its resolution. Program fields are empty when no
// program serves the address or the row failed; Error holds the reason for
// a failure.
type Result struct {
	Request

	Location       *geo.Point
	ServiceArea    string
	Program        string
	Phone          string
	URL            string
	PovertyPercent *float64
	Error          string
}

// Resolver finds the program serving a person's address.
type Resolver interface {
	ProgramFor(ctx context.Context, person *lsc.Person) (*lsc.Program, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithGeocoder geocodes all addresses in one batch before resolution.
func WithGeocoder(g geocode.Client) Option {
	return func(r *Runner) {
		r.geocoder = g
	}
}

// WithConcurrency sets how many rows are resolved at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// Runner resolves batches of requests.
type Runner struct {
	resolver    Resolver
	table       *poverty.Table
	geocoder    geocode.Client
	concurrency int
}

// NewRunner creates a Runner. table may be nil, in which case poverty
// percentages are not computed.
func NewRunner(resolver Resolver, table *poverty.Table, opts ...Option) *Runner {
	r := &Runner{
		resolver:    resolver,
		table:       table,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run resolves every request. Results line up with reqs. The only errors
// returned are cancellation; per-row failures land in Result.Error.
func (r *Runner) Run(ctx context.Context, reqs []Request) ([]Result, error) {
	log := zap.L().With(zap.Int("rows", len(reqs)), zap.Int("concurrency", r.concurrency))
	results := make([]Result, len(reqs))
	persons := make([]*lsc.Person, len(reqs))
	for i, req := range reqs {
		results[i].Request = req
		persons[i] = &lsc.Person{
			Name: req.ID,
			Address: lsc.Address{
				Street: req.Street,
				Unit:   req.Unit,
				City:   req.City,
				State:  req.State,
				Zip:    req.Zip,
			},
		}
	}

	skip := r.geocodeAll(ctx, persons, results)

	var failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range reqs {
		if skip[i] {
			failed.Add(1)
			continue
		}
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if !r.resolve(gctx, persons[i], &results[i]) {
				failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, eris.Wrap(err, "batch: run")
	}

	log.Info("batch: resolved", zap.Int32("failed", failed.Load()))
	return results, nil
}

// geocodeAll places every address in one batch call and reports the rows
// that could not be placed. Without a geocoder, or when the batch call
// fails, nothing is skipped and each row is geocoded during resolution.
func (r *Runner) geocodeAll(ctx context.Context, persons []*lsc.Person, results []Result) []bool {
	skip := make([]bool, len(persons))
	if r.geocoder == nil || len(persons) == 0 {
		return skip
	}

	inputs := make([]geocode.AddressInput, len(persons))
	for i, p := range persons {
		inputs[i] = geocode.AddressInput{
			ID:      strconv.Itoa(i),
			Street:  p.Address.Street,
			Unit:    p.Address.Unit,
			City:    p.Address.City,
			State:   p.Address.State,
			ZipCode: p.Address.Zip,
		}
	}
	geocoded, err := r.geocoder.BatchGeocode(ctx, inputs)
	if err != nil {
		zap.L().Warn("batch: batch geocode failed, geocoding rows individually", zap.Error(err))
		return skip
	}

	for i := range persons {
		if i >= len(geocoded) || !geocoded[i].Matched {
			skip[i] = true
			results[i].Error = (&lsc.GeocodeFailure{Op: "batch", Address: persons[i].Address.OneLine()}).Error()
			continue
		}
		pt := geo.Point{Latitude: geocoded[i].Latitude, Longitude: geocoded[i].Longitude}
		persons[i].Address.Location = &pt
		results[i].Location = &pt
	}
	return skip
}

// resolve fills res for one row and reports whether it succeeded.
func (r *Runner) resolve(ctx context.Context, person *lsc.Person, res *Result) bool {
	var errs []string

	if pct, err := r.povertyPercent(res.Request); err != nil {
		errs = append(errs, err.Error())
	} else {
		res.PovertyPercent = pct
	}

	prog, err := r.resolver.ProgramFor(ctx, person)
	switch {
	case err != nil:
		errs = append(errs, err.Error())
	case prog != nil:
		res.ServiceArea = prog.ServiceArea
		res.Program = prog.Name
		res.Phone = prog.Phone
		res.URL = prog.URL
	}
	if res.Location == nil && person.Address.Location != nil {
		pt := *person.Address.Location
		res.Location = &pt
	}

	if len(errs) > 0 {
		res.Error = strings.Join(errs, "; ")
		zap.L().Debug("batch: row failed", zap.String("id", res.ID), zap.String("error", res.Error))
		return false
	}
	return true
}

func (r *Runner) povertyPercent(req Request) (*float64, error) {
	if r.table == nil || strings.TrimSpace(req.Income) == "" {
		return nil, nil
	}
	income, err := strconv.ParseFloat(strings.TrimSpace(req.Income), 64)
	if err != nil {
		return nil, &poverty.InvalidInput{Field: "income", Value: req.Income, Reason: "not a number"}
	}
	pct, err := r.table.Percentage(income, req.HouseholdSize, req.State)
	if err != nil {
		return nil, err
	}
	return &pct, nil
}
