package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// do sends req after waiting on the limiter and returns the body of a 200
// response. Every round trip is reported to the observer.
func (g *geocoder) do(ctx context.Context, provider string, req *http.Request) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrapf(err, "geocode: %s rate limit", provider)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.report(0, start)
		return nil, eris.Wrapf(err, "geocode: %s request", provider)
	}
	defer resp.Body.Close() //nolint:errcheck
	g.report(resp.StatusCode, start)

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: %s returned status %d", provider, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: %s read body", provider)
	}
	return body, nil
}

// getJSON performs a GET and decodes the JSON body into out.
func (g *geocoder) getJSON(ctx context.Context, provider, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrapf(err, "geocode: %s build request", provider)
	}
	body, err := g.do(ctx, provider, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "geocode: %s parse response", provider)
	}
	return nil
}

func (g *geocoder) report(status int, start time.Time) {
	if g.observe != nil {
		g.observe(status, time.Since(start))
	}
}
