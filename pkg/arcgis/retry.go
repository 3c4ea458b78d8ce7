package arcgis

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy controls how Query retries transient layer failures.
// A policy with MaxAttempts <= 1 disables retries.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Default: 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts. Default: 10s.
	MaxBackoff time.Duration

	// JitterFraction randomizes each delay by up to +/- this fraction.
	JitterFraction float64
}

// WithRetry makes Query retry network errors and transient HTTP statuses.
func WithRetry(p RetryPolicy) Option {
	return func(c *Client) {
		if p.InitialBackoff <= 0 {
			p.InitialBackoff = 500 * time.Millisecond
		}
		if p.MaxBackoff <= 0 {
			p.MaxBackoff = 10 * time.Second
		}
		if p.JitterFraction < 0 {
			p.JitterFraction = 0
		}
		c.retry = p
	}
}

// transientStatus reports whether a layer reply is worth retrying.
func transientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// transientErr reports whether a transport error is worth retrying.
func transientErr(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED)
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := float64(p.InitialBackoff) * math.Pow(2, float64(attempt))
	if delay > float64(p.MaxBackoff) {
		delay = float64(p.MaxBackoff)
	}
	if p.JitterFraction > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.JitterFraction
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// withRetry runs fn until it yields a non-transient outcome, the attempts
// run out, or ctx is done. The last outcome is returned unchanged.
func (c *Client) withRetry(ctx context.Context, layerURL string, fn func() (*Response, error)) (*Response, error) {
	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		resp *Response
		err  error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err = fn()
		switch {
		case err != nil:
			if ctx.Err() != nil || !transientErr(err) {
				return resp, err
			}
		case !transientStatus(resp.StatusCode):
			return resp, nil
		}
		if attempt == attempts-1 {
			break
		}

		fields := []zap.Field{zap.String("layer", layerURL), zap.Int("attempt", attempt+1)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.Int("status", resp.StatusCode))
		}
		zap.L().Warn("arcgis: retrying layer query", fields...)

		timer := time.NewTimer(c.retry.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return resp, err
		case <-timer.C:
		}
	}
	return resp, err
}
