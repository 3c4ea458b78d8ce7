package lsc

import (
	"fmt"

	"github.com/sells-group/lscrefer/internal/poverty"
)

// maxBodyInMessage caps how much of a remote body is echoed in Error().
const maxBodyInMessage = 512

// GeocodeFailure reports an address that could not be placed on the map.
type GeocodeFailure struct {
	Op      string
	Address string
}

func (e *GeocodeFailure) Error() string {
	return fmt.Sprintf("lsc: %s: failed to geocode %q", e.Op, e.Address)
}

// RemoteServiceError reports a remote call that failed or answered with a
// status other than 200. Err is set when no response was received.
type RemoteServiceError struct {
	Service    string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lsc: %s request failed: %v", e.Service, e.Err)
	}
	body := e.Body
	if len(body) > maxBodyInMessage {
		body = body[:maxBodyInMessage] + "..."
	}
	return fmt.Sprintf("lsc: %s returned status %d: %s", e.Service, e.StatusCode, body)
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

// MalformedResponse reports a remote payload with an unexpected shape.
type MalformedResponse struct {
	Op     string
	Reason string
	Err    error
}

func (e *MalformedResponse) Error() string {
	return fmt.Sprintf("lsc: %s: unexpected response: %s", e.Op, e.Reason)
}

func (e *MalformedResponse) Unwrap() error { return e.Err }

// UnresolvedReference reports a code returned by one remote dataset that the
// program index built from the other does not know.
type UnresolvedReference struct {
	Kind string
	Code string
}

func (e *UnresolvedReference) Error() string {
	return fmt.Sprintf("lsc: %s %q not found in program index", e.Kind, e.Code)
}

// InvalidInput reports a caller-supplied value that cannot be used.
type InvalidInput = poverty.InvalidInput
